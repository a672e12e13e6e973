package services

import (
	"context"
	"testing"

	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/repositories"
)

// fakeUserRepo — пользователи в памяти, достаточно для сервисных тестов.
type fakeUserRepo struct {
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
	for _, u := range users {
		if u.ID == 0 {
			u.ID = r.nextID
		}
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	for _, existing := range r.users {
		if existing.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id int) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range r.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeUserRepo) UpdateMMR(_ context.Context, id int, mmr int) error {
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.MMR = mmr
	return nil
}

func TestEloDelta(t *testing.T) {
	cases := []struct {
		name      string
		winnerMMR int
		loserMMR  int
		want      int
	}{
		{name: "equal ratings", winnerMMR: 1000, loserMMR: 1000, want: 12},
		{name: "slight favorite wins", winnerMMR: 1020, loserMMR: 1000, want: 11},
		{name: "slight underdog wins", winnerMMR: 1000, loserMMR: 1020, want: 13},
		{name: "heavy favorite wins", winnerMMR: 1400, loserMMR: 1000, want: 2},
		{name: "heavy underdog wins", winnerMMR: 1000, loserMMR: 1400, want: 22},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := eloDelta(tc.winnerMMR, tc.loserMMR)
			if got != tc.want {
				t.Fatalf("eloDelta(%d, %d) = %d, want %d", tc.winnerMMR, tc.loserMMR, got, tc.want)
			}
		})
	}
}

func TestApplyWinIsZeroSum(t *testing.T) {
	repo := newFakeUserRepo(
		&models.User{ID: 1, Username: "alice", MMR: 1000},
		&models.User{ID: 2, Username: "bob", MMR: 1020},
	)
	svc := NewRatingService(repo)

	winner, loser, err := svc.ApplyWin(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if winner.Delta <= 0 {
		t.Fatalf("winner delta must be positive, got %d", winner.Delta)
	}
	if winner.Delta+loser.Delta != 0 {
		t.Fatalf("deltas must sum to zero: %d + %d", winner.Delta, loser.Delta)
	}
	if winner.NewMMR != 1000+winner.Delta {
		t.Fatalf("winner NewMMR = %d, want %d", winner.NewMMR, 1000+winner.Delta)
	}
	if loser.NewMMR != 1020+loser.Delta {
		t.Fatalf("loser NewMMR = %d, want %d", loser.NewMMR, 1020+loser.Delta)
	}

	stored, _ := repo.GetByID(context.Background(), 1)
	if stored.MMR != winner.NewMMR {
		t.Fatalf("winner MMR not persisted: have %d, want %d", stored.MMR, winner.NewMMR)
	}
	stored, _ = repo.GetByID(context.Background(), 2)
	if stored.MMR != loser.NewMMR {
		t.Fatalf("loser MMR not persisted: have %d, want %d", stored.MMR, loser.NewMMR)
	}
}

func TestApplyWinClampsAtFloor(t *testing.T) {
	repo := newFakeUserRepo(
		&models.User{ID: 1, Username: "alice", MMR: 10},
		&models.User{ID: 2, Username: "bob", MMR: 5},
	)
	svc := NewRatingService(repo)

	winner, loser, err := svc.ApplyWin(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if loser.NewMMR != 0 {
		t.Fatalf("loser MMR must clamp at 0, got %d", loser.NewMMR)
	}
	if loser.Delta != -5 {
		t.Fatalf("loser delta must stop at the floor, got %d", loser.Delta)
	}
	// Победитель получает полную дельту даже при ограничении проигравшего.
	if winner.Delta <= -loser.Delta {
		t.Fatalf("winner delta %d must exceed clamped loser delta %d", winner.Delta, -loser.Delta)
	}
}

func TestApplyDrawLeavesRatingsUntouched(t *testing.T) {
	repo := newFakeUserRepo(
		&models.User{ID: 1, Username: "alice", MMR: 980},
		&models.User{ID: 2, Username: "bob", MMR: 1050},
	)
	svc := NewRatingService(repo)

	first, second, err := svc.ApplyDraw(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if first.Delta != 0 || second.Delta != 0 {
		t.Fatalf("draw deltas must be zero: %d, %d", first.Delta, second.Delta)
	}
	if first.NewMMR != 980 || second.NewMMR != 1050 {
		t.Fatalf("draw must not change MMR: %d, %d", first.NewMMR, second.NewMMR)
	}
}

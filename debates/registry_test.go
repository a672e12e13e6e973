package debates

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/debatearena/debate-platform/models"
)

type fakeRatings struct{}

func (fakeRatings) ApplyWin(_ context.Context, winnerID, loserID int) (models.RatingChange, models.RatingChange, error) {
	return models.RatingChange{UserID: winnerID, Delta: 12, NewMMR: 1012},
		models.RatingChange{UserID: loserID, Delta: -12, NewMMR: 988}, nil
}

func (fakeRatings) ApplyDraw(_ context.Context, user1ID, user2ID int) (models.RatingChange, models.RatingChange, error) {
	return models.RatingChange{UserID: user1ID, NewMMR: 1000},
		models.RatingChange{UserID: user2ID, NewMMR: 1000}, nil
}

type fakeDebateRepo struct {
	mu        sync.Mutex
	nextID    int
	finalized map[int]models.EndReason
	results   map[int]string
}

func newFakeDebateRepo() *fakeDebateRepo {
	return &fakeDebateRepo{nextID: 1, finalized: make(map[int]models.EndReason), results: make(map[int]string)}
}

func (r *fakeDebateRepo) Create(_ context.Context, debate *models.Debate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	debate.ID = r.nextID
	r.nextID++
	debate.CreatedAt = time.Now()
	return nil
}

func (r *fakeDebateRepo) GetByID(context.Context, int) (*models.Debate, error) {
	return nil, ErrDebateNotFound
}

func (r *fakeDebateRepo) UpdateLog(context.Context, int, string) error { return nil }

func (r *fakeDebateRepo) Finalize(_ context.Context, id int, _ *int, reason models.EndReason, _ string, result string, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finalized[id] = reason
	r.results[id] = result
	return nil
}

func (r *fakeDebateRepo) finalizedReason(id int) (models.EndReason, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reason, ok := r.finalized[id]
	return reason, ok
}

func newTestRegistry(t *testing.T, repo *fakeDebateRepo) *Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := NewHub(logger)
	return NewRegistry(hub, fakeRatings{}, repo, nil, logger, testSessionConfig)
}

func TestRegistryTracksLiveSessions(t *testing.T) {
	repo := newFakeDebateRepo()
	registry := newTestRegistry(t, repo)

	p1 := Participant{UserID: 1, Username: "alice", MMR: 1000, Side: models.SideFor}
	p2 := Participant{UserID: 2, Username: "bob", MMR: 1010, Side: models.SideAgainst}
	session, err := registry.CreateSession(context.Background(), "Technology makes us more isolated", p1, p2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if got, ok := registry.Get(session.ID); !ok || got != session {
		t.Fatal("Get did not return the created session")
	}
	for _, userID := range []int{1, 2} {
		if got, ok := registry.ForUser(userID); !ok || got != session {
			t.Fatalf("ForUser(%d) did not return the session", userID)
		}
		if !registry.HasLiveSession(userID) {
			t.Fatalf("HasLiveSession(%d) = false", userID)
		}
	}
	if registry.HasLiveSession(3) {
		t.Fatal("unrelated user reported as in session")
	}

	if err := registry.Join(1, session.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := registry.Join(1, session.ID+100); err != ErrDebateNotFound {
		t.Fatalf("want ErrDebateNotFound, got %v", err)
	}
}

func TestRegistryRetiresSessionAfterForfeit(t *testing.T) {
	repo := newFakeDebateRepo()
	registry := newTestRegistry(t, repo)

	p1 := Participant{UserID: 1, Username: "alice", MMR: 1000, Side: models.SideFor}
	p2 := Participant{UserID: 2, Username: "bob", MMR: 1010, Side: models.SideAgainst}
	session, err := registry.CreateSession(context.Background(), "Free speech should have no limitations", p1, p2)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := session.Join(1); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := session.Join(2); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := session.Forfeit(2); err != nil {
		t.Fatalf("forfeit: %v", err)
	}

	// Итоговая обработка асинхронна; ждём снятия сессии с учёта.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !registry.HasLiveSession(1) && !registry.HasLiveSession(2) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if registry.HasLiveSession(1) || registry.HasLiveSession(2) {
		t.Fatal("session was not retired after forfeit")
	}
	if _, ok := registry.Get(session.ID); ok {
		t.Fatal("ended session still resolvable by id")
	}

	reason, ok := repo.finalizedReason(session.ID)
	if !ok {
		t.Fatal("debate was not finalized in storage")
	}
	if reason != models.EndReasonForfeit {
		t.Fatalf("finalized reason = %q, want forfeit", reason)
	}
}

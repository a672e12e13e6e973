package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/debatearena/debate-platform/debates"
	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/repositories"
)

var testMatchmakingConfig = MatchmakingConfig{
	BandInitial:  50,
	BandStep:     25,
	BandInterval: 10 * time.Second,
}

type fakeRegistry struct {
	mu       sync.Mutex
	live     map[int]bool
	nextID   int
	sessions int
	failNext bool
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{live: make(map[int]bool), nextID: 1}
}

func (r *fakeRegistry) HasLiveSession(userID int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.live[userID]
}

func (r *fakeRegistry) CreateSession(_ context.Context, topic string, p1, p2 debates.Participant) (*debates.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return nil, errors.New("create failed")
	}
	s := &debates.Session{ID: r.nextID, Topic: topic}
	r.nextID++
	r.sessions++
	r.live[p1.UserID] = true
	r.live[p2.UserID] = true
	return s, nil
}

type fakeTopicRepo struct {
	empty bool
}

func (r *fakeTopicRepo) Random(context.Context) (string, error) {
	if r.empty {
		return "", repositories.ErrNoTopics
	}
	return "Remote work is better than office work", nil
}

func (r *fakeTopicRepo) EnsureDefaults(context.Context) error { return nil }

type fakeNotifier struct {
	mu     sync.Mutex
	events map[int][]interface{}
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(map[int][]interface{})}
}

func (n *fakeNotifier) SendToUser(userID int, v interface{}) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], v)
	return true
}

func (n *fakeNotifier) matchFoundFor(userID int) (debates.MatchFound, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, e := range n.events[userID] {
		if mf, ok := e.(debates.MatchFound); ok {
			return mf, true
		}
	}
	return debates.MatchFound{}, false
}

func newTestMatchmaking(registry *fakeRegistry, topics *fakeTopicRepo, notifier *fakeNotifier) MatchmakingService {
	return NewMatchmakingService(registry, topics, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)), testMatchmakingConfig)
}

func TestSelectPair(t *testing.T) {
	now := time.Now()
	fresh := now.Add(-time.Second)
	waited := now.Add(-25 * time.Second) // окно 50 + 2*25 = 100

	cases := []struct {
		name       string
		queue      []queueEntry
		wantI      int
		wantJ      int
		wantNoPair bool
	}{
		{
			name:       "empty queue",
			wantNoPair: true,
		},
		{
			name:       "single entry",
			queue:      []queueEntry{{userID: 1, mmr: 1000, enqueuedAt: fresh}},
			wantNoPair: true,
		},
		{
			name: "difference outside both fresh bands",
			queue: []queueEntry{
				{userID: 1, mmr: 1000, enqueuedAt: fresh},
				{userID: 2, mmr: 1060, enqueuedAt: fresh},
			},
			wantNoPair: true,
		},
		{
			name: "band must satisfy both sides",
			queue: []queueEntry{
				{userID: 1, mmr: 1000, enqueuedAt: waited},
				{userID: 2, mmr: 1060, enqueuedAt: fresh},
			},
			wantNoPair: true,
		},
		{
			name: "widened bands admit the pair",
			queue: []queueEntry{
				{userID: 1, mmr: 1000, enqueuedAt: waited},
				{userID: 2, mmr: 1060, enqueuedAt: waited},
			},
			wantI: 0, wantJ: 1,
		},
		{
			name: "smallest difference wins",
			queue: []queueEntry{
				{userID: 1, mmr: 1000, enqueuedAt: fresh},
				{userID: 2, mmr: 1040, enqueuedAt: fresh},
				{userID: 3, mmr: 1010, enqueuedAt: fresh},
			},
			wantI: 0, wantJ: 2,
		},
		{
			name: "earlier pair wins a tie",
			queue: []queueEntry{
				{userID: 1, mmr: 1000, enqueuedAt: fresh},
				{userID: 2, mmr: 1010, enqueuedAt: fresh},
				{userID: 3, mmr: 1020, enqueuedAt: fresh},
			},
			wantI: 0, wantJ: 1,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			i, j, ok := selectPair(tc.queue, now, testMatchmakingConfig)
			if tc.wantNoPair {
				if ok {
					t.Fatalf("expected no pair, got (%d, %d)", i, j)
				}
				return
			}
			if !ok {
				t.Fatal("expected a pair, got none")
			}
			if i != tc.wantI || j != tc.wantJ {
				t.Fatalf("selectPair = (%d, %d), want (%d, %d)", i, j, tc.wantI, tc.wantJ)
			}
		})
	}
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	registry := newFakeRegistry()
	svc := newTestMatchmaking(registry, &fakeTopicRepo{}, newFakeNotifier())

	user := &models.User{ID: 1, Username: "alice", MMR: 1000}
	if _, err := svc.Enqueue(context.Background(), user); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Enqueue(context.Background(), user); !errors.Is(err, ErrAlreadyQueued) {
		t.Fatalf("want ErrAlreadyQueued, got %v", err)
	}
}

func TestEnqueueRejectsUserInLiveDebate(t *testing.T) {
	registry := newFakeRegistry()
	registry.live[1] = true
	svc := newTestMatchmaking(registry, &fakeTopicRepo{}, newFakeNotifier())

	_, err := svc.Enqueue(context.Background(), &models.User{ID: 1, Username: "alice", MMR: 1000})
	if !errors.Is(err, ErrAlreadyInDebate) {
		t.Fatalf("want ErrAlreadyInDebate, got %v", err)
	}
}

func TestEnqueuePairsCompatibleUsers(t *testing.T) {
	registry := newFakeRegistry()
	notifier := newFakeNotifier()
	svc := newTestMatchmaking(registry, &fakeTopicRepo{}, notifier)

	if _, err := svc.Enqueue(context.Background(), &models.User{ID: 1, Username: "alice", MMR: 1000}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.Enqueue(context.Background(), &models.User{ID: 2, Username: "bob", MMR: 1030}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if registry.sessions != 1 {
		t.Fatalf("want 1 session created, got %d", registry.sessions)
	}
	if svc.QueueSize() != 0 {
		t.Fatalf("queue must be empty after pairing, size %d", svc.QueueSize())
	}

	mfAlice, ok := notifier.matchFoundFor(1)
	if !ok {
		t.Fatal("alice did not receive match_found")
	}
	mfBob, ok := notifier.matchFoundFor(2)
	if !ok {
		t.Fatal("bob did not receive match_found")
	}

	if mfAlice.Opponent.Username != "bob" || mfBob.Opponent.Username != "alice" {
		t.Fatalf("opponent info mismatch: %q vs %q", mfAlice.Opponent.Username, mfBob.Opponent.Username)
	}
	if mfAlice.YourSide == mfBob.YourSide {
		t.Fatalf("both players got side %q", mfAlice.YourSide)
	}
	if mfAlice.YourSide != mfBob.OpponentSide || mfBob.YourSide != mfAlice.OpponentSide {
		t.Fatal("side assignments are not consistent between players")
	}
	if mfAlice.DebateID != mfBob.DebateID {
		t.Fatalf("debate ids differ: %d vs %d", mfAlice.DebateID, mfBob.DebateID)
	}
}

func TestEnqueueUsesFallbackTopicWhenTableIsEmpty(t *testing.T) {
	registry := newFakeRegistry()
	notifier := newFakeNotifier()
	svc := newTestMatchmaking(registry, &fakeTopicRepo{empty: true}, notifier)

	svc.Enqueue(context.Background(), &models.User{ID: 1, Username: "alice", MMR: 1000})
	svc.Enqueue(context.Background(), &models.User{ID: 2, Username: "bob", MMR: 1000})

	mf, ok := notifier.matchFoundFor(1)
	if !ok {
		t.Fatal("no match_found delivered")
	}
	if mf.Topic != fallbackTopic {
		t.Fatalf("topic = %q, want fallback", mf.Topic)
	}
}

func TestDequeueRemovesUser(t *testing.T) {
	svc := newTestMatchmaking(newFakeRegistry(), &fakeTopicRepo{}, newFakeNotifier())

	svc.Enqueue(context.Background(), &models.User{ID: 1, Username: "alice", MMR: 1000})
	if !svc.Dequeue(1) {
		t.Fatal("Dequeue must report removal")
	}
	if svc.Dequeue(1) {
		t.Fatal("second Dequeue must report absence")
	}
	if svc.QueueSize() != 0 {
		t.Fatalf("queue size = %d, want 0", svc.QueueSize())
	}
}

func TestFailedMatchReturnsUsersToQueue(t *testing.T) {
	registry := newFakeRegistry()
	registry.failNext = true
	svc := newTestMatchmaking(registry, &fakeTopicRepo{}, newFakeNotifier())

	svc.Enqueue(context.Background(), &models.User{ID: 1, Username: "alice", MMR: 1000})
	svc.Enqueue(context.Background(), &models.User{ID: 2, Username: "bob", MMR: 1000})

	if svc.QueueSize() != 2 {
		t.Fatalf("queue size = %d, want 2 after failed match", svc.QueueSize())
	}

	// Следующий проход должен собрать пару успешно.
	svc.RunPass(context.Background())
	if registry.sessions != 1 {
		t.Fatalf("sessions = %d, want 1", registry.sessions)
	}
	if svc.QueueSize() != 0 {
		t.Fatalf("queue size = %d, want 0", svc.QueueSize())
	}
}

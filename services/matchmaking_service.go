package services

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/debatearena/debate-platform/debates"
	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/repositories"
)

// fallbackTopic используется, когда таблица тем пуста.
const fallbackTopic = "Should pineapple be on pizza?"

// MatchmakingConfig — параметры расширяющегося MMR-окна.
type MatchmakingConfig struct {
	// BandInitial — начальная половина ширины окна допустимой разницы MMR.
	BandInitial int
	// BandStep — на сколько окно расширяется за каждый BandInterval ожидания.
	BandStep     int
	BandInterval time.Duration
}

// sessionRegistry — срез реестра сессий, нужный подбору.
type sessionRegistry interface {
	HasLiveSession(userID int) bool
	CreateSession(ctx context.Context, topic string, p1, p2 debates.Participant) (*debates.Session, error)
}

// MatchmakingService держит очередь подбора и собирает пары в сессии.
type MatchmakingService interface {
	// Enqueue ставит пользователя в очередь и возвращает её размер после
	// постановки. Постановка сразу запускает проход подбора.
	Enqueue(ctx context.Context, user *models.User) (int, error)
	// Dequeue убирает пользователя из очереди. Возвращает false, если его
	// там не было; повторный вызов безвреден.
	Dequeue(userID int) bool
	QueueSize() int
	// RunPass выполняет один проход подбора по текущей очереди.
	RunPass(ctx context.Context)
	// Run запускает периодические проходы до отмены контекста.
	Run(ctx context.Context, interval time.Duration)
}

type queueEntry struct {
	userID     int
	username   string
	mmr        int
	enqueuedAt time.Time
}

type matchmakingService struct {
	mu    sync.Mutex
	queue []queueEntry

	registry  sessionRegistry
	topicRepo repositories.TopicRepository
	notifier  debates.Notifier
	logger    *slog.Logger
	cfg       MatchmakingConfig
}

func NewMatchmakingService(registry sessionRegistry, topicRepo repositories.TopicRepository, notifier debates.Notifier, logger *slog.Logger, cfg MatchmakingConfig) MatchmakingService {
	return &matchmakingService{
		registry:  registry,
		topicRepo: topicRepo,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

func (s *matchmakingService) Enqueue(ctx context.Context, user *models.User) (int, error) {
	if s.registry.HasLiveSession(user.ID) {
		return 0, ErrAlreadyInDebate
	}

	s.mu.Lock()
	for _, e := range s.queue {
		if e.userID == user.ID {
			s.mu.Unlock()
			return 0, ErrAlreadyQueued
		}
	}
	s.queue = append(s.queue, queueEntry{
		userID:     user.ID,
		username:   user.Username,
		mmr:        user.MMR,
		enqueuedAt: time.Now(),
	})
	size := len(s.queue)
	s.mu.Unlock()

	s.logger.Info("user joined matchmaking queue",
		slog.Int("user_id", user.ID), slog.Int("queue_size", size))

	s.RunPass(ctx)
	return size, nil
}

func (s *matchmakingService) Dequeue(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.queue {
		if e.userID == userID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

func (s *matchmakingService) QueueSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *matchmakingService) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPass(ctx)
		}
	}
}

// RunPass снимает из очереди все пары, проходящие по окну MMR, и создаёт
// для каждой сессию. Создание выполняется вне блокировки очереди.
func (s *matchmakingService) RunPass(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		i, j, ok := selectPair(s.queue, now, s.cfg)
		if !ok {
			s.mu.Unlock()
			return
		}
		a, b := s.queue[i], s.queue[j]
		// j > i, удаляем с конца.
		s.queue = append(s.queue[:j], s.queue[j+1:]...)
		s.queue = append(s.queue[:i], s.queue[i+1:]...)
		s.mu.Unlock()

		if err := s.createMatch(ctx, a, b); err != nil {
			s.logger.Error("failed to create match",
				slog.Int("user1_id", a.userID),
				slog.Int("user2_id", b.userID),
				slog.Any("error", err))
			// Возвращаем обоих в очередь с исходным временем постановки.
			s.mu.Lock()
			s.queue = append(s.queue, a, b)
			s.mu.Unlock()
			return
		}
	}
}

// selectPair находит в очереди пару с минимальной разницей MMR, допустимую
// окнами обоих участников. Окно участника растёт с временем ожидания:
// BandInitial + BandStep за каждый полный BandInterval. При равной разнице
// побеждает пара, встретившаяся раньше при обходе в порядке постановки.
func selectPair(queue []queueEntry, now time.Time, cfg MatchmakingConfig) (int, int, bool) {
	band := func(e queueEntry) int {
		waited := now.Sub(e.enqueuedAt)
		if waited < 0 {
			waited = 0
		}
		return cfg.BandInitial + cfg.BandStep*int(waited/cfg.BandInterval)
	}

	bestI, bestJ, bestDiff := -1, -1, 0
	for i := 0; i < len(queue); i++ {
		for j := i + 1; j < len(queue); j++ {
			diff := queue[i].mmr - queue[j].mmr
			if diff < 0 {
				diff = -diff
			}
			if diff > band(queue[i]) || diff > band(queue[j]) {
				continue
			}
			if bestI == -1 || diff < bestDiff {
				bestI, bestJ, bestDiff = i, j, diff
			}
		}
	}
	if bestI == -1 {
		return 0, 0, false
	}
	return bestI, bestJ, true
}

func (s *matchmakingService) createMatch(ctx context.Context, a, b queueEntry) error {
	topicText, err := s.topicRepo.Random(ctx)
	if err != nil {
		if !errors.Is(err, repositories.ErrNoTopics) {
			return err
		}
		topicText = fallbackTopic
	}

	p1 := debates.Participant{UserID: a.userID, Username: a.username, MMR: a.mmr}
	p2 := debates.Participant{UserID: b.userID, Username: b.username, MMR: b.mmr}
	// Стороны распределяются жребием.
	if rand.Intn(2) == 0 {
		p1.Side, p2.Side = models.SideFor, models.SideAgainst
	} else {
		p1.Side, p2.Side = models.SideAgainst, models.SideFor
	}

	session, err := s.registry.CreateSession(ctx, topicText, p1, p2)
	if err != nil {
		return err
	}

	s.notifier.SendToUser(p1.UserID, debates.MatchFound{
		Type:         debates.EventMatchFound,
		DebateID:     session.ID,
		Topic:        topicText,
		Opponent:     debates.OpponentInfo{Username: p2.Username, MMR: p2.MMR},
		YourSide:     p1.Side,
		OpponentSide: p2.Side,
	})
	s.notifier.SendToUser(p2.UserID, debates.MatchFound{
		Type:         debates.EventMatchFound,
		DebateID:     session.ID,
		Topic:        topicText,
		Opponent:     debates.OpponentInfo{Username: p1.Username, MMR: p1.MMR},
		YourSide:     p2.Side,
		OpponentSide: p1.Side,
	})

	s.logger.Info("match created",
		slog.Int("debate_id", session.ID),
		slog.Int("user1_id", p1.UserID),
		slog.Int("user2_id", p2.UserID),
		slog.Int("mmr_diff", absInt(p1.MMR-p2.MMR)))
	return nil
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package debates

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/repositories"
)

// RatingAdjuster применяет изменения рейтинга по итогам сессии.
type RatingAdjuster interface {
	ApplyWin(ctx context.Context, winnerID, loserID int) (winner, loser models.RatingChange, err error)
	ApplyDraw(ctx context.Context, user1ID, user2ID int) (first, second models.RatingChange, err error)
}

// TranscriptArchiver выгружает текстовую расшифровку завершённой сессии во
// внешнее хранилище. Необязательная зависимость: nil отключает архивацию.
type TranscriptArchiver interface {
	Archive(ctx context.Context, debateID int, topic string, messages []models.Message) error
}

// Registry — реестр живых сессий. Отвечает за их создание, маршрутизацию
// команд участников и итоговую обработку: рейтинги, запись в БД, рассылку
// debate_ended и снятие сессии с учёта.
type Registry struct {
	mu     sync.RWMutex
	byID   map[int]*Session
	byUser map[int]*Session

	hub        *Hub
	ratings    RatingAdjuster
	debateRepo repositories.DebateRepository
	archiver   TranscriptArchiver
	logger     *slog.Logger
	cfg        Config
}

func NewRegistry(hub *Hub, ratings RatingAdjuster, debateRepo repositories.DebateRepository, archiver TranscriptArchiver, logger *slog.Logger, cfg Config) *Registry {
	return &Registry{
		byID:       make(map[int]*Session),
		byUser:     make(map[int]*Session),
		hub:        hub,
		ratings:    ratings,
		debateRepo: debateRepo,
		archiver:   archiver,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateSession создаёт запись дебатов в БД, регистрирует живую сессию для
// обоих участников и запускает её цикл.
func (r *Registry) CreateSession(ctx context.Context, topic string, p1, p2 Participant) (*Session, error) {
	debate := &models.Debate{
		User1ID: p1.UserID,
		User2ID: p2.UserID,
		Topic:   topic,
	}
	if err := r.debateRepo.Create(ctx, debate); err != nil {
		return nil, err
	}

	var session *Session
	session = newSession(debate.ID, topic, p1, p2, r.cfg, r.hub, r.debateRepo, r.logger, func(o Outcome) {
		r.finish(session, o)
	})

	r.mu.Lock()
	r.byID[session.ID] = session
	r.byUser[p1.UserID] = session
	r.byUser[p2.UserID] = session
	r.mu.Unlock()

	go session.run()

	r.logger.Info("debate session created",
		slog.Int("debate_id", session.ID),
		slog.Int("user1_id", p1.UserID),
		slog.Int("user2_id", p2.UserID),
		slog.String("topic", topic))
	return session, nil
}

// Get возвращает живую сессию по её идентификатору.
func (r *Registry) Get(debateID int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[debateID]
	return s, ok
}

// ForUser возвращает живую сессию, в которой состоит пользователь.
func (r *Registry) ForUser(userID int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byUser[userID]
	return s, ok
}

// HasLiveSession reports whether the user is bound to a live session.
func (r *Registry) HasLiveSession(userID int) bool {
	_, ok := r.ForUser(userID)
	return ok
}

// Join присоединяет участника к его сессии по идентификатору дебатов.
func (r *Registry) Join(userID, debateID int) error {
	s, ok := r.Get(debateID)
	if !ok {
		return ErrDebateNotFound
	}
	return s.Join(userID)
}

// HandleDisconnect передаёт сессии пользователя факт обрыва соединения.
func (r *Registry) HandleDisconnect(userID int) {
	if s, ok := r.ForUser(userID); ok {
		s.HandleDisconnect(userID)
	}
}

// HandleReconnect отменяет льготный период после восстановления соединения.
func (r *Registry) HandleReconnect(userID int) {
	if s, ok := r.ForUser(userID); ok {
		s.HandleReconnect(userID)
	}
}

// finish — итоговая обработка завершённой сессии. Порядок фиксирован:
// сначала рейтинги, затем запись итога, затем рассылка debate_ended и
// снятие сессии с учёта. Ошибки БД не блокируют рассылку.
func (r *Registry) finish(s *Session, o Outcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	changes := r.applyRatings(ctx, o)

	payload := DebateEnded{
		Type:      EventDebateEnded,
		DebateID:  o.DebateID,
		WinnerID:  o.WinnerID,
		Reason:    o.Reason,
		Duration:  int(o.Duration.Seconds()),
		Topic:     o.Topic,
		Arguments: o.Messages,
		FinalLog:  o.Messages,
	}
	for _, p := range o.Players {
		change := changes[p.UserID]
		payload.Players = append(payload.Players, PlayerResult{
			UserID:    p.UserID,
			Username:  p.Username,
			Side:      p.Side,
			MMRChange: change.Delta,
			NewMMR:    change.NewMMR,
		})
	}

	logJSON, err := json.Marshal(o.Messages)
	if err != nil {
		r.logger.Error("failed to marshal final debate log", slog.Any("error", err))
		logJSON = []byte("[]")
	}
	resultJSON, err := json.Marshal(payload)
	if err != nil {
		r.logger.Error("failed to marshal debate result", slog.Any("error", err))
		resultJSON = []byte("{}")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.debateRepo.Finalize(gctx, o.DebateID, o.WinnerID, o.Reason, string(logJSON), string(resultJSON), o.Duration)
	})
	if r.archiver != nil {
		g.Go(func() error {
			// Архивация необязательна: неудача только логируется.
			if err := r.archiver.Archive(gctx, o.DebateID, o.Topic, o.Messages); err != nil {
				r.logger.Error("failed to archive transcript",
					slog.Int("debate_id", o.DebateID), slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("failed to finalize debate",
			slog.Int("debate_id", o.DebateID), slog.Any("error", err))
	}

	for _, p := range o.Players {
		r.hub.SendToUser(p.UserID, payload)
	}

	r.mu.Lock()
	delete(r.byID, o.DebateID)
	for _, p := range o.Players {
		if r.byUser[p.UserID] == s {
			delete(r.byUser, p.UserID)
		}
	}
	r.mu.Unlock()

	r.logger.Info("debate session retired",
		slog.Int("debate_id", o.DebateID),
		slog.String("reason", string(o.Reason)))
}

func (r *Registry) applyRatings(ctx context.Context, o Outcome) map[int]models.RatingChange {
	changes := make(map[int]models.RatingChange, 2)
	var (
		first, second models.RatingChange
		err           error
	)
	if o.WinnerID != nil {
		loserID := o.Players[0].UserID
		if loserID == *o.WinnerID {
			loserID = o.Players[1].UserID
		}
		first, second, err = r.ratings.ApplyWin(ctx, *o.WinnerID, loserID)
	} else {
		first, second, err = r.ratings.ApplyDraw(ctx, o.Players[0].UserID, o.Players[1].UserID)
	}
	if err != nil {
		r.logger.Error("failed to apply rating changes",
			slog.Int("debate_id", o.DebateID), slog.Any("error", err))
		return changes
	}
	changes[first.UserID] = first
	changes[second.UserID] = second
	return changes
}

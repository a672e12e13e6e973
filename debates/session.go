package debates

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/debatearena/debate-platform/models"
)

const maxArgumentLength = 1000

// Config — тайминги сессии; заполняется из конфигурации приложения.
type Config struct {
	PrepDuration    time.Duration
	TurnDuration    time.Duration
	TurnsPerSide    int
	DisconnectGrace time.Duration
}

// Notifier доставляет событие пользователю. Реализуется хабом; в тестах
// подменяется заглушкой.
type Notifier interface {
	SendToUser(userID int, v interface{}) bool
}

// LogStore сохраняет журнал сессии после каждого принятого аргумента.
type LogStore interface {
	UpdateLog(ctx context.Context, id int, log string) error
}

// Participant — участник сессии. Пара участников и их стороны фиксируются
// при создании и не меняются до конца сессии.
type Participant struct {
	UserID   int
	Username string
	MMR      int
	Side     models.Side

	joined        bool
	graceDeadline time.Time // ноль — участник на связи
}

// PlayerSummary — снимок участника для итогов сессии.
type PlayerSummary struct {
	UserID   int
	Username string
	Side     models.Side
}

// Outcome — неизменяемый итог завершённой сессии, передаётся реестру.
type Outcome struct {
	DebateID int
	Topic    string
	Reason   models.EndReason
	WinnerID *int
	Duration time.Duration
	Messages []models.Message
	Players  [2]PlayerSummary
}

// Session — конечный автомат одной дебатной сессии:
// preparation → active → ended. Все мутации выполняются под мьютексом
// (единственный писатель); секундный тикер останавливается при завершении.
type Session struct {
	ID    int
	Topic string

	mu      sync.Mutex
	players [2]*Participant
	phase   models.Phase
	started bool // оба участника присоединились, подготовка запущена

	turnIdx    int // индекс текущего хода в players
	turnNumber int
	messages   []models.Message
	deadline   time.Time // дедлайн текущей фазы или хода

	joinDeadline time.Time
	createdAt    time.Time
	startedAt    time.Time

	reason    models.EndReason
	winnerIdx int // -1 — победителя нет

	notifier Notifier
	store    LogStore
	logger   *slog.Logger
	cfg      Config

	// onEnd вызывается ровно один раз после перехода в ended.
	onEnd func(outcome Outcome)

	done chan struct{}
}

func newSession(id int, topic string, p1, p2 Participant, cfg Config, notifier Notifier, store LogStore, logger *slog.Logger, onEnd func(Outcome)) *Session {
	if p1.UserID == p2.UserID {
		// Нарушение инварианта подбора — ошибка программиста.
		panic(fmt.Sprintf("debate %d: self-pairing of user %d", id, p1.UserID))
	}
	now := time.Now()
	return &Session{
		ID:           id,
		Topic:        topic,
		players:      [2]*Participant{&p1, &p2},
		phase:        models.PhasePreparation,
		winnerIdx:    -1,
		joinDeadline: now.Add(cfg.DisconnectGrace),
		createdAt:    now,
		notifier:     notifier,
		store:        store,
		logger:       logger.With(slog.Int("debate_id", id)),
		cfg:          cfg,
		onEnd:        onEnd,
		done:         make(chan struct{}),
	}
}

// run — секундный цикл сессии; единственный источник событий времени.
func (s *Session) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Session) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == models.PhaseEnded {
		return
	}

	if !s.started {
		// Ждём, пока оба участника присоединятся; кто не пришёл за
		// отведённое время — проиграл.
		if now.After(s.joinDeadline) {
			s.endAbandonedLocked(now)
		}
		return
	}

	if idx, expired := s.graceExpiredLocked(now); expired {
		s.logger.Info("participant disconnect grace expired", slog.Int("user_id", s.players[idx].UserID))
		s.endLocked(now, models.EndReasonTimeout, 1-idx)
		return
	}

	remaining := s.deadline.Sub(now)
	switch s.phase {
	case models.PhasePreparation:
		if remaining <= 0 {
			s.beginDebateLocked(now)
			return
		}
		s.broadcastLocked(TimerTick{Type: EventPrepTimer, Display: formatCountdown(remaining)})

	case models.PhaseActive:
		if remaining <= 0 {
			// Ход истёк без аргумента — молча переходит к оппоненту.
			s.logger.Info("turn skipped on timeout",
				slog.Int("turn", s.turnNumber),
				slog.Int("user_id", s.players[s.turnIdx].UserID))
			s.advanceTurnLocked(now)
			return
		}
		s.broadcastLocked(TimerTick{Type: EventTurnTimer, Display: formatCountdown(remaining)})
	}
}

// Join отмечает участника присоединившимся. Когда присоединились оба,
// запускается фаза подготовки. Повторный Join уже идущей сессии выполняет
// полную ресинхронизацию состояния для этого участника.
func (s *Session) Join(userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == models.PhaseEnded {
		return ErrDebateFinished
	}
	idx, ok := s.indexOf(userID)
	if !ok {
		return ErrNotParticipant
	}

	p := s.players[idx]
	if p.joined && s.started {
		s.resyncLocked(idx)
		return nil
	}
	p.joined = true

	if s.players[0].joined && s.players[1].joined && !s.started {
		s.startLocked(time.Now())
	}
	return nil
}

func (s *Session) startLocked(now time.Time) {
	s.started = true
	s.startedAt = now
	s.deadline = now.Add(s.cfg.PrepDuration)

	for i, p := range s.players {
		s.sendLocked(p.UserID, DebateStarted{
			Type:         EventDebateStarted,
			YourSide:     p.Side,
			OpponentSide: s.players[1-i].Side,
		})
	}
	s.broadcastLocked(Plain{Type: EventPrepTimerStart})
	s.broadcastLocked(TimerTick{Type: EventPrepTimer, Display: formatCountdown(s.cfg.PrepDuration)})
	s.logger.Info("debate started", slog.String("topic", s.Topic))
}

// beginDebateLocked переводит сессию из подготовки в активную фазу.
// Первый ход всегда у стороны "for".
func (s *Session) beginDebateLocked(now time.Time) {
	s.phase = models.PhaseActive
	s.turnNumber = 1
	s.broadcastLocked(Plain{Type: EventDebatePhaseStart})

	first := 0
	if s.players[1].Side == models.SideFor {
		first = 1
	}
	s.beginTurnLocked(now, first)
}

func (s *Session) beginTurnLocked(now time.Time, idx int) {
	s.turnIdx = idx
	s.deadline = now.Add(s.cfg.TurnDuration)

	holder := s.players[idx]
	other := s.players[1-idx]
	s.sendLocked(holder.UserID, YourTurn{
		Type:       EventYourTurn,
		TurnNumber: s.turnNumber,
		YourSide:   holder.Side,
	})
	s.sendLocked(other.UserID, OpponentTurn{
		Type:         EventOpponentTurn,
		TurnNumber:   s.turnNumber,
		OpponentSide: holder.Side,
	})
	s.broadcastLocked(TimerTick{Type: EventTurnTimer, Display: formatCountdown(s.cfg.TurnDuration)})
}

// advanceTurnLocked передаёт ход оппоненту или завершает сессию, когда
// исчерпан лимит ходов (использованных либо пропущенных).
func (s *Session) advanceTurnLocked(now time.Time) {
	if s.turnNumber >= 2*s.cfg.TurnsPerSide {
		s.endLocked(now, models.EndReasonNatural, -1)
		return
	}
	s.turnNumber++
	s.beginTurnLocked(now, 1-s.turnIdx)
}

// SubmitArgument принимает аргумент текущего хода. Все предусловия
// проверяются до какой-либо мутации; отказ не меняет состояние сессии.
func (s *Session) SubmitArgument(userID int, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == models.PhaseEnded {
		return models.Message{}, ErrDebateFinished
	}
	if s.phase != models.PhaseActive {
		return models.Message{}, ErrDebateNotActive
	}
	idx, ok := s.indexOf(userID)
	if !ok {
		return models.Message{}, ErrNotParticipant
	}
	if idx != s.turnIdx {
		return models.Message{}, ErrNotYourTurn
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return models.Message{}, ErrArgumentEmpty
	}
	if len([]rune(content)) > maxArgumentLength {
		return models.Message{}, ErrArgumentTooLong
	}

	now := time.Now()
	p := s.players[idx]
	msg := models.Message{
		SenderID:       p.UserID,
		SenderUsername: p.Username,
		Side:           p.Side,
		Content:        content,
		Timestamp:      now.UTC().Format(time.RFC3339),
		TurnNumber:     s.turnNumber,
	}
	s.messages = append(s.messages, msg)
	s.broadcastLocked(MessageEvent{Type: EventMessage, Message: msg})
	s.persistLogLocked()
	s.advanceTurnLocked(now)
	return msg, nil
}

// Forfeit немедленно завершает сессию; оппонент объявляется победителем.
func (s *Session) Forfeit(userID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == models.PhaseEnded {
		return ErrDebateFinished
	}
	idx, ok := s.indexOf(userID)
	if !ok {
		return ErrNotParticipant
	}

	s.broadcastLocked(PlayerForfeited{Type: EventPlayerForfeited, PlayerName: s.players[idx].Username})
	s.endLocked(time.Now(), models.EndReasonForfeit, 1-idx)
	return nil
}

// HandleDisconnect запускает отсчёт льготного периода для участника.
func (s *Session) HandleDisconnect(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == models.PhaseEnded {
		return
	}
	if idx, ok := s.indexOf(userID); ok {
		s.players[idx].graceDeadline = time.Now().Add(s.cfg.DisconnectGrace)
	}
}

// HandleReconnect отменяет льготный период; клиент пересинхронизируется
// повторным join_debate.
func (s *Session) HandleReconnect(userID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == models.PhaseEnded {
		return
	}
	if idx, ok := s.indexOf(userID); ok {
		s.players[idx].graceDeadline = time.Time{}
	}
}

// HasParticipant reports whether the user is one of the two participants.
func (s *Session) HasParticipant(userID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.indexOf(userID)
	return ok
}

func (s *Session) indexOf(userID int) (int, bool) {
	for i, p := range s.players {
		if p.UserID == userID {
			return i, true
		}
	}
	return 0, false
}

func (s *Session) graceExpiredLocked(now time.Time) (int, bool) {
	for i, p := range s.players {
		if !p.graceDeadline.IsZero() && now.After(p.graceDeadline) {
			return i, true
		}
	}
	return 0, false
}

// endAbandonedLocked — ни один или только один участник явился к началу.
// Явившийся побеждает; если не явился никто, победителя нет.
func (s *Session) endAbandonedLocked(now time.Time) {
	winner := -1
	switch {
	case s.players[0].joined && !s.players[1].joined:
		winner = 0
	case s.players[1].joined && !s.players[0].joined:
		winner = 1
	}
	s.endLocked(now, models.EndReasonTimeout, winner)
}

func (s *Session) endLocked(now time.Time, reason models.EndReason, winnerIdx int) {
	s.phase = models.PhaseEnded
	s.reason = reason
	s.winnerIdx = winnerIdx
	close(s.done)

	started := s.startedAt
	if started.IsZero() {
		started = s.createdAt
	}

	outcome := Outcome{
		DebateID: s.ID,
		Topic:    s.Topic,
		Reason:   reason,
		Duration: now.Sub(started),
		Messages: append([]models.Message(nil), s.messages...),
	}
	if winnerIdx >= 0 {
		id := s.players[winnerIdx].UserID
		outcome.WinnerID = &id
	}
	for i, p := range s.players {
		outcome.Players[i] = PlayerSummary{UserID: p.UserID, Username: p.Username, Side: p.Side}
	}

	s.logger.Info("debate ended",
		slog.String("reason", string(reason)),
		slog.Int("messages", len(s.messages)))

	// Итоговая обработка (рейтинги, запись в БД, рассылка debate_ended)
	// выполняется вне мьютекса сессии.
	go s.onEnd(outcome)
}

// resyncLocked повторно отправляет участнику полное состояние идущей
// сессии: стороны, фазу, журнал и текущий ход.
func (s *Session) resyncLocked(idx int) {
	p := s.players[idx]
	s.sendLocked(p.UserID, DebateStarted{
		Type:         EventDebateStarted,
		YourSide:     p.Side,
		OpponentSide: s.players[1-idx].Side,
	})

	switch s.phase {
	case models.PhasePreparation:
		s.sendLocked(p.UserID, Plain{Type: EventPrepTimerStart})
	case models.PhaseActive:
		s.sendLocked(p.UserID, Plain{Type: EventDebatePhaseStart})
		for _, msg := range s.messages {
			s.sendLocked(p.UserID, MessageEvent{Type: EventMessage, Message: msg})
		}
		if s.turnIdx == idx {
			s.sendLocked(p.UserID, YourTurn{Type: EventYourTurn, TurnNumber: s.turnNumber, YourSide: p.Side})
		} else {
			s.sendLocked(p.UserID, OpponentTurn{Type: EventOpponentTurn, TurnNumber: s.turnNumber, OpponentSide: s.players[s.turnIdx].Side})
		}
	}
}

func (s *Session) persistLogLocked() {
	data, err := json.Marshal(s.messages)
	if err != nil {
		s.logger.Error("failed to marshal debate log", slog.Any("error", err))
		return
	}
	id := s.ID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.UpdateLog(ctx, id, string(data)); err != nil {
			s.logger.Error("failed to persist debate log", slog.Any("error", err))
		}
	}()
}

func (s *Session) broadcastLocked(v interface{}) {
	for _, p := range s.players {
		s.notifier.SendToUser(p.UserID, v)
	}
}

func (s *Session) sendLocked(userID int, v interface{}) {
	s.notifier.SendToUser(userID, v)
}

// formatCountdown renders a remaining duration as m:ss, never negative.
func formatCountdown(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/debatearena/debate-platform/debates"
	"github.com/debatearena/debate-platform/repositories"
	"github.com/debatearena/debate-platform/services"
)

// ClientMessage — плоский конверт всех клиентских команд. Поле type
// определяет команду, остальные поля заполняются по необходимости.
type ClientMessage struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Email    string `json:"email,omitempty"`
	UserID   int    `json:"user_id,omitempty"`
	DebateID int    `json:"debate_id,omitempty"`
	Content  string `json:"content,omitempty"`
	Argument string `json:"argument,omitempty"`
}

// Dispatcher маршрутизирует клиентские команды WebSocket-канала.
// Поддерживаются два диалекта команд (join_/leave_ и start_/stop_
// для подбора, debate_message/submit_argument для аргументов); ответ
// всегда в диалекте запроса.
type Dispatcher struct {
	hub         *debates.Hub
	authService services.AuthService
	matchmaking services.MatchmakingService
	registry    *debates.Registry
	debateRepo  repositories.DebateRepository
	jwtSecret   []byte
	logger      *slog.Logger
}

func NewDispatcher(hub *debates.Hub, authService services.AuthService, matchmaking services.MatchmakingService, registry *debates.Registry, debateRepo repositories.DebateRepository, jwtSecret string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		hub:         hub,
		authService: authService,
		matchmaking: matchmaking,
		registry:    registry,
		debateRepo:  debateRepo,
		jwtSecret:   []byte(jwtSecret),
		logger:      logger,
	}
}

// Dispatch обрабатывает одно входящее сообщение клиента. Любая ошибка
// превращается в событие error этому же клиенту; соединение не рвётся.
func (d *Dispatcher) Dispatch(client *debates.Client, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		client.SendJSON(debates.NewErrorEvent("invalid message format"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch msg.Type {
	case "authenticate":
		d.handleAuthenticate(ctx, client, msg)
	case "create_account":
		d.handleCreateAccount(ctx, client, msg)
	case "join_matchmaking", "start_matchmaking":
		d.handleJoinMatchmaking(ctx, client, msg)
	case "leave_matchmaking", "stop_matchmaking":
		d.handleLeaveMatchmaking(client, msg)
	case "start_debate", "join_debate":
		d.handleJoinDebate(client, msg)
	case "debate_message", "submit_argument":
		d.handleArgument(client, msg)
	case "forfeit_debate":
		d.handleForfeit(client, msg)
	case "get_debate_results":
		d.handleGetResults(ctx, client, msg)
	case "ping":
		client.SendJSON(debates.Plain{Type: debates.EventPong})
	default:
		client.SendJSON(debates.NewErrorEvent(fmt.Sprintf("unknown message type: %s", msg.Type)))
	}
}

func (d *Dispatcher) handleAuthenticate(ctx context.Context, client *debates.Client, msg ClientMessage) {
	user, err := d.authService.Authenticate(ctx, msg.Username, msg.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			client.SendJSON(debates.AuthResponse{Type: debates.EventAuthResponse, Success: false, Error: err.Error()})
			return
		}
		d.logger.Error("authentication failed", slog.Any("error", err))
		client.SendJSON(debates.AuthResponse{Type: debates.EventAuthResponse, Success: false, Error: "internal server error"})
		return
	}

	token, err := d.signToken(user.ID, user.Username)
	if err != nil {
		d.logger.Error("failed to sign token", slog.Any("error", err))
		client.SendJSON(debates.AuthResponse{Type: debates.EventAuthResponse, Success: false, Error: "internal server error"})
		return
	}

	d.hub.BindUser(client, user.ID, user.Username)
	client.SendJSON(debates.AuthResponse{
		Type:     debates.EventAuthResponse,
		Success:  true,
		UserID:   user.ID,
		Username: user.Username,
		MMR:      user.MMR,
		Token:    token,
	})
}

func (d *Dispatcher) signToken(userID int, username string) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"name":    username,
		"exp":     time.Now().Add(time.Hour * 24).Unix(),
		"iat":     time.Now().Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(d.jwtSecret)
}

func (d *Dispatcher) handleCreateAccount(ctx context.Context, client *debates.Client, msg ClientMessage) {
	_, err := d.authService.Register(ctx, services.RegisterInput{
		Username: msg.Username,
		Password: msg.Password,
		Email:    msg.Email,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken),
			errors.Is(err, services.ErrUsernameRequired),
			errors.Is(err, services.ErrPasswordTooShort):
			client.SendJSON(debates.AccountCreationResponse{Type: debates.EventAccountCreationResponse, Success: false, Error: err.Error()})
		default:
			d.logger.Error("account creation failed", slog.Any("error", err))
			client.SendJSON(debates.AccountCreationResponse{Type: debates.EventAccountCreationResponse, Success: false, Error: "internal server error"})
		}
		return
	}
	client.SendJSON(debates.AccountCreationResponse{Type: debates.EventAccountCreationResponse, Success: true})
}

// requireAuth проверяет, что клиент аутентифицирован и что user_id в
// команде (если указан) принадлежит ему.
func (d *Dispatcher) requireAuth(client *debates.Client, msg ClientMessage) bool {
	if client.UserID == 0 {
		client.SendJSON(debates.NewErrorEvent("authentication required"))
		return false
	}
	if msg.UserID != 0 && msg.UserID != client.UserID {
		client.SendJSON(debates.NewErrorEvent("user_id does not match the authenticated user"))
		return false
	}
	return true
}

func (d *Dispatcher) handleJoinMatchmaking(ctx context.Context, client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	user, err := d.authService.GetUser(ctx, client.UserID)
	if err != nil {
		d.logger.Error("failed to load user for matchmaking", slog.Int("user_id", client.UserID), slog.Any("error", err))
		client.SendJSON(debates.NewErrorEvent("internal server error"))
		return
	}

	size, err := d.matchmaking.Enqueue(ctx, user)
	if err != nil {
		client.SendJSON(debates.NewErrorEvent(err.Error()))
		return
	}

	if msg.Type == "start_matchmaking" {
		client.SendJSON(debates.Plain{Type: debates.EventMatchmakingStarted})
		return
	}
	client.SendJSON(debates.QueueJoined{
		Type:        debates.EventQueueJoined,
		QueueStatus: debates.QueueStatus{QueueSize: size},
	})
}

func (d *Dispatcher) handleLeaveMatchmaking(client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	// Выход из очереди идемпотентен: подтверждаем, даже если пользователя
	// там уже не было.
	d.matchmaking.Dequeue(client.UserID)

	if msg.Type == "stop_matchmaking" {
		client.SendJSON(debates.Plain{Type: debates.EventMatchmakingStopped})
		return
	}
	client.SendJSON(debates.Plain{Type: debates.EventQueueLeft})
}

func (d *Dispatcher) handleJoinDebate(client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	err := d.registry.Join(client.UserID, msg.DebateID)
	if msg.Type == "start_debate" {
		if err != nil {
			client.SendJSON(debates.StartDebateResponse{Type: debates.EventStartDebateResponse, Success: false, Error: err.Error()})
			return
		}
		client.SendJSON(debates.StartDebateResponse{Type: debates.EventStartDebateResponse, Success: true})
		return
	}
	if err != nil {
		client.SendJSON(debates.NewErrorEvent(err.Error()))
	}
}

func (d *Dispatcher) handleArgument(client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	content := msg.Content
	if content == "" {
		content = msg.Argument
	}

	session, ok := d.registry.ForUser(client.UserID)
	if !ok {
		client.SendJSON(debates.NewErrorEvent(debates.ErrDebateNotFound.Error()))
		return
	}
	if _, err := session.SubmitArgument(client.UserID, content); err != nil {
		client.SendJSON(debates.NewErrorEvent(err.Error()))
	}
}

func (d *Dispatcher) handleForfeit(client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	session, ok := d.registry.Get(msg.DebateID)
	if !ok {
		client.SendJSON(debates.NewErrorEvent(debates.ErrDebateNotFound.Error()))
		return
	}
	if err := session.Forfeit(client.UserID); err != nil {
		client.SendJSON(debates.NewErrorEvent(err.Error()))
	}
}

// handleGetResults отдаёт сохранённый итог завершённых дебатов. Это тот же
// объект, что рассылался как debate_ended, но с типом debate_results.
func (d *Dispatcher) handleGetResults(ctx context.Context, client *debates.Client, msg ClientMessage) {
	if !d.requireAuth(client, msg) {
		return
	}

	debate, err := d.debateRepo.GetByID(ctx, msg.DebateID)
	if err != nil {
		if errors.Is(err, repositories.ErrDebateNotFound) {
			client.SendJSON(debates.NewErrorEvent(err.Error()))
			return
		}
		d.logger.Error("failed to load debate", slog.Int("debate_id", msg.DebateID), slog.Any("error", err))
		client.SendJSON(debates.NewErrorEvent("internal server error"))
		return
	}
	if debate.User1ID != client.UserID && debate.User2ID != client.UserID {
		client.SendJSON(debates.NewErrorEvent(debates.ErrNotParticipant.Error()))
		return
	}
	if debate.Result == nil {
		client.SendJSON(debates.NewErrorEvent("debate is not finished yet"))
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(*debate.Result), &payload); err != nil {
		d.logger.Error("failed to decode stored debate result", slog.Int("debate_id", msg.DebateID), slog.Any("error", err))
		client.SendJSON(debates.NewErrorEvent("internal server error"))
		return
	}
	payload["type"] = debates.EventDebateResults
	client.SendJSON(payload)
}

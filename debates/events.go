package debates

import "github.com/debatearena/debate-platform/models"

// Серверные события протокола. Каждое сообщение — плоский JSON-объект с
// обязательным полем "type"; клиенты маршрутизируют по нему.
const (
	EventAuthResponse            = "auth_response"
	EventAccountCreationResponse = "account_creation_response"
	EventQueueJoined             = "queue_joined"
	EventMatchmakingStarted      = "matchmaking_started"
	EventQueueLeft               = "queue_left"
	EventMatchmakingStopped      = "matchmaking_stopped"
	EventMatchFound              = "match_found"
	EventStartDebateResponse     = "start_debate_response"
	EventDebateStarted           = "debate_started"
	EventPrepTimerStart          = "prep_timer_start"
	EventPrepTimer               = "prep_timer"
	EventDebatePhaseStart        = "debate_phase_start"
	EventYourTurn                = "your_turn"
	EventOpponentTurn            = "opponent_turn"
	EventTurnTimer               = "turn_timer"
	EventMessage                 = "message"
	EventDebateEnded             = "debate_ended"
	EventDebateResults           = "debate_results"
	EventPlayerForfeited         = "player_forfeited"
	EventPong                    = "pong"
	EventError                   = "error"
)

// Plain — событие без полезной нагрузки (prep_timer_start,
// debate_phase_start, pong и простые подтверждения).
type Plain struct {
	Type string `json:"type"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Message: message}
}

type AuthResponse struct {
	Type     string `json:"type"`
	Success  bool   `json:"success"`
	UserID   int    `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	MMR      int    `json:"mmr,omitempty"`
	Token    string `json:"token,omitempty"`
	Error    string `json:"error,omitempty"`
}

type AccountCreationResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type QueueStatus struct {
	QueueSize int `json:"queue_size"`
}

type QueueJoined struct {
	Type        string      `json:"type"`
	QueueStatus QueueStatus `json:"queue_status"`
}

type OpponentInfo struct {
	Username string `json:"username"`
	MMR      int    `json:"mmr"`
}

type MatchFound struct {
	Type         string       `json:"type"`
	DebateID     int          `json:"debate_id"`
	Topic        string       `json:"topic"`
	Opponent     OpponentInfo `json:"opponent"`
	YourSide     models.Side  `json:"your_side"`
	OpponentSide models.Side  `json:"opponent_side"`
}

type StartDebateResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type DebateStarted struct {
	Type         string      `json:"type"`
	YourSide     models.Side `json:"your_side"`
	OpponentSide models.Side `json:"opponent_side"`
}

// TimerTick — секундный тик подготовки или хода; Display в формате m:ss.
type TimerTick struct {
	Type    string `json:"type"`
	Display string `json:"display"`
}

type YourTurn struct {
	Type       string      `json:"type"`
	TurnNumber int         `json:"turn_number"`
	YourSide   models.Side `json:"your_side"`
}

type OpponentTurn struct {
	Type         string      `json:"type"`
	TurnNumber   int         `json:"turn_number"`
	OpponentSide models.Side `json:"opponent_side"`
}

type MessageEvent struct {
	Type string `json:"type"`
	models.Message
}

type PlayerForfeited struct {
	Type       string `json:"type"`
	PlayerName string `json:"player_name"`
}

type PlayerResult struct {
	UserID    int         `json:"user_id"`
	Username  string      `json:"username"`
	Side      models.Side `json:"side"`
	MMRChange int         `json:"mmr_change"`
	NewMMR    int         `json:"new_mmr"`
}

// DebateEnded — терминальное событие сессии. Этот же объект сохраняется в
// колонку result таблицы debates и позже отдаётся как debate_results.
type DebateEnded struct {
	Type      string           `json:"type"`
	DebateID  int              `json:"debate_id"`
	WinnerID  *int             `json:"winner_id"`
	Reason    models.EndReason `json:"reason"`
	Duration  int              `json:"duration"`
	Topic     string           `json:"topic"`
	Players   []PlayerResult   `json:"players"`
	Arguments []models.Message `json:"arguments"`
	FinalLog  []models.Message `json:"final_log"`
}

package models

import "time"

type Side string

const (
	SideFor     Side = "for"
	SideAgainst Side = "against"
)

// Opposite returns the other debate stance.
func (s Side) Opposite() Side {
	if s == SideFor {
		return SideAgainst
	}
	return SideFor
}

type Phase string

const (
	PhasePreparation Phase = "preparation"
	PhaseActive      Phase = "active"
	PhaseEnded       Phase = "ended"
)

type EndReason string

const (
	// EndReasonNatural — the turn cap was reached, nobody wins.
	EndReasonNatural EndReason = "natural"
	// EndReasonForfeit — a participant gave up, the opponent wins.
	EndReasonForfeit EndReason = "forfeit"
	// EndReasonTimeout — a participant stayed disconnected past the grace
	// period, the opponent wins.
	EndReasonTimeout EndReason = "timeout"
)

// Debate is the persistent record of a session. Log is appended after every
// accepted argument; WinnerID, Reason, Result and DurationSeconds are written
// once when the session ends and never change afterwards.
type Debate struct {
	ID              int        `json:"id"`
	User1ID         int        `json:"user1_id"`
	User2ID         int        `json:"user2_id"`
	Topic           string     `json:"topic"`
	Log             string     `json:"log"`
	WinnerID        *int       `json:"winner_id,omitempty"`
	Reason          EndReason  `json:"reason,omitempty"`
	Result          *string    `json:"result,omitempty"`
	DurationSeconds int        `json:"duration_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

// Message is a single argument in a debate log. Immutable once appended;
// ordering is append order.
type Message struct {
	SenderID       int    `json:"sender_id"`
	SenderUsername string `json:"sender_username"`
	Side           Side   `json:"side"`
	Content        string `json:"content"`
	Timestamp      string `json:"timestamp"`
	TurnNumber     int    `json:"turn_number"`
}

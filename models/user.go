package models

import "time"

// DefaultMMR is assigned to every new account.
const DefaultMMR = 1000

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"`
	MMR          int       `json:"mmr"`
	CreatedAt    time.Time `json:"created_at"`
}

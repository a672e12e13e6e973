package models

// RatingChange describes one participant's MMR movement after a finished
// debate. Delta is zero for a draw.
type RatingChange struct {
	UserID int `json:"user_id"`
	Delta  int `json:"delta"`
	NewMMR int `json:"new_mmr"`
}

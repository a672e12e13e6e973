package services

import (
	"context"
	"fmt"
	"math"

	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/repositories"
)

const (
	// ratingK — фиксированный K-фактор Elo.
	ratingK = 24
	// ratingFloor — рейтинг никогда не опускается ниже этого значения.
	ratingFloor = 0
)

// RatingService применяет изменения MMR по итогам завершённой сессии.
// Пользователь может состоять только в одной живой сессии, поэтому два
// завершения никогда не обновляют один рейтинг конкурентно.
type RatingService interface {
	ApplyWin(ctx context.Context, winnerID, loserID int) (winner, loser models.RatingChange, err error)
	ApplyDraw(ctx context.Context, user1ID, user2ID int) (first, second models.RatingChange, err error)
}

type ratingService struct {
	userRepo repositories.UserRepository
}

func NewRatingService(userRepo repositories.UserRepository) RatingService {
	return &ratingService{userRepo: userRepo}
}

// eloDelta возвращает количество очков, которое победитель забирает у
// проигравшего: K × (1 − ожидаемый результат победителя).
func eloDelta(winnerMMR, loserMMR int) int {
	expected := 1.0 / (1.0 + math.Pow(10, float64(loserMMR-winnerMMR)/400.0))
	return int(math.Round(ratingK * (1.0 - expected)))
}

func (s *ratingService) ApplyWin(ctx context.Context, winnerID, loserID int) (models.RatingChange, models.RatingChange, error) {
	w, err := s.userRepo.GetByID(ctx, winnerID)
	if err != nil {
		return models.RatingChange{}, models.RatingChange{}, fmt.Errorf("failed to load winner %d: %w", winnerID, err)
	}
	l, err := s.userRepo.GetByID(ctx, loserID)
	if err != nil {
		return models.RatingChange{}, models.RatingChange{}, fmt.Errorf("failed to load loser %d: %w", loserID, err)
	}

	delta := eloDelta(w.MMR, l.MMR)

	winner := models.RatingChange{UserID: winnerID, Delta: delta, NewMMR: w.MMR + delta}
	loser := models.RatingChange{UserID: loserID, Delta: -delta, NewMMR: l.MMR - delta}
	if loser.NewMMR < ratingFloor {
		// Единственный случай, когда обмен очками не нулевой суммы.
		loser.NewMMR = ratingFloor
		loser.Delta = ratingFloor - l.MMR
	}

	if err := s.userRepo.UpdateMMR(ctx, winner.UserID, winner.NewMMR); err != nil {
		return models.RatingChange{}, models.RatingChange{}, err
	}
	if err := s.userRepo.UpdateMMR(ctx, loser.UserID, loser.NewMMR); err != nil {
		return models.RatingChange{}, models.RatingChange{}, err
	}
	return winner, loser, nil
}

// ApplyDraw — ничья (естественное завершение без победителя): рейтинг не
// меняется, обе стороны получают нулевую дельту.
func (s *ratingService) ApplyDraw(ctx context.Context, user1ID, user2ID int) (models.RatingChange, models.RatingChange, error) {
	u1, err := s.userRepo.GetByID(ctx, user1ID)
	if err != nil {
		return models.RatingChange{}, models.RatingChange{}, fmt.Errorf("failed to load user %d: %w", user1ID, err)
	}
	u2, err := s.userRepo.GetByID(ctx, user2ID)
	if err != nil {
		return models.RatingChange{}, models.RatingChange{}, fmt.Errorf("failed to load user %d: %w", user2ID, err)
	}

	first := models.RatingChange{UserID: user1ID, Delta: 0, NewMMR: u1.MMR}
	second := models.RatingChange{UserID: user2ID, Delta: 0, NewMMR: u2.MMR}
	return first, second, nil
}

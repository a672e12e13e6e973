package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/debatearena/debate-platform/models"
)

var ErrDebateNotFound = errors.New("debate not found")

type DebateRepository interface {
	Create(ctx context.Context, debate *models.Debate) error
	GetByID(ctx context.Context, id int) (*models.Debate, error)
	UpdateLog(ctx context.Context, id int, log string) error
	Finalize(ctx context.Context, id int, winnerID *int, reason models.EndReason, log, result string, duration time.Duration) error
}

type postgresDebateRepository struct {
	db *sql.DB
}

func NewPostgresDebateRepository(db *sql.DB) DebateRepository {
	return &postgresDebateRepository{db: db}
}

func (r *postgresDebateRepository) Create(ctx context.Context, debate *models.Debate) error {
	if debate.Log == "" {
		debate.Log = "[]"
	}
	query := `
		INSERT INTO debates (user1_id, user2_id, topic, log)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		debate.User1ID,
		debate.User2ID,
		debate.Topic,
		debate.Log,
	).Scan(&debate.ID, &debate.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create debate: %w", err)
	}
	return nil
}

func (r *postgresDebateRepository) GetByID(ctx context.Context, id int) (*models.Debate, error) {
	query := `
		SELECT id, user1_id, user2_id, topic, log, winner_id, reason, result, duration_seconds, created_at, ended_at
		FROM debates
		WHERE id = $1`

	debate := &models.Debate{}
	var (
		winnerID sql.NullInt64
		reason   sql.NullString
		result   sql.NullString
		duration sql.NullInt64
		endedAt  sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&debate.ID,
		&debate.User1ID,
		&debate.User2ID,
		&debate.Topic,
		&debate.Log,
		&winnerID,
		&reason,
		&result,
		&duration,
		&debate.CreatedAt,
		&endedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDebateNotFound
		}
		return nil, err
	}

	if winnerID.Valid {
		w := int(winnerID.Int64)
		debate.WinnerID = &w
	}
	if reason.Valid {
		debate.Reason = models.EndReason(reason.String)
	}
	if result.Valid {
		debate.Result = &result.String
	}
	if duration.Valid {
		debate.DurationSeconds = int(duration.Int64)
	}
	if endedAt.Valid {
		debate.EndedAt = &endedAt.Time
	}
	return debate, nil
}

func (r *postgresDebateRepository) UpdateLog(ctx context.Context, id int, log string) error {
	query := `UPDATE debates SET log = $1 WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, log, id)
	if err != nil {
		return fmt.Errorf("failed to update debate log: %w", err)
	}

	rowsAffected, checkErr := checkRowsAffected(result)
	if checkErr != nil {
		return checkErr
	}
	if rowsAffected == 0 {
		return ErrDebateNotFound
	}
	return nil
}

// Finalize записывает итог завершённой сессии. Вызывается ровно один раз;
// после этого запись не изменяется.
func (r *postgresDebateRepository) Finalize(ctx context.Context, id int, winnerID *int, reason models.EndReason, log, result string, duration time.Duration) error {
	query := `
		UPDATE debates
		SET winner_id = $1, reason = $2, log = $3, result = $4, duration_seconds = $5, ended_at = NOW()
		WHERE id = $6`

	res, err := r.db.ExecContext(ctx, query,
		winnerID,
		string(reason),
		log,
		result,
		int(duration.Seconds()),
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to finalize debate %d: %w", id, err)
	}

	rowsAffected, checkErr := checkRowsAffected(res)
	if checkErr != nil {
		return checkErr
	}
	if rowsAffected == 0 {
		return ErrDebateNotFound
	}
	return nil
}

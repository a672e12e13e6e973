package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNoTopics = errors.New("no debate topics available")

type TopicRepository interface {
	Random(ctx context.Context) (string, error)
	EnsureDefaults(ctx context.Context) error
}

type postgresTopicRepository struct {
	db *sql.DB
}

func NewPostgresTopicRepository(db *sql.DB) TopicRepository {
	return &postgresTopicRepository{db: db}
}

func (r *postgresTopicRepository) Random(ctx context.Context) (string, error) {
	var text string
	err := r.db.QueryRowContext(ctx, `SELECT topic_text FROM topics ORDER BY RANDOM() LIMIT 1`).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoTopics
		}
		return "", fmt.Errorf("failed to draw random topic: %w", err)
	}
	return text, nil
}

var defaultTopics = []string{
	"Social media has a positive impact on society",
	"Remote work is better than office work",
	"Artificial intelligence will benefit humanity more than it will harm it",
	"Video games have a positive impact on children",
	"Climate change is the most pressing issue of our time",
	"Free speech should have no limitations",
	"Technology makes us more isolated",
	"Education should be free for everyone",
	"Space exploration is worth the investment",
	"Democracy is the best form of government",
}

// EnsureDefaults заполняет таблицу тем стартовым набором, если она пуста.
func (r *postgresTopicRepository) EnsureDefaults(ctx context.Context) error {
	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM topics`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count topics: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, topic := range defaultTopics {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO topics (topic_text) VALUES ($1)`, topic); err != nil {
			return fmt.Errorf("failed to insert default topic: %w", err)
		}
	}
	return nil
}

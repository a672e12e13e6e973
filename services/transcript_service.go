package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/debatearena/debate-platform/models"
	"github.com/debatearena/debate-platform/storage"
)

// TranscriptService выгружает текстовые расшифровки завершённых дебатов в
// объектное хранилище. Реализует debates.TranscriptArchiver.
type TranscriptService struct {
	uploader storage.FileUploader
	logger   *slog.Logger
}

func NewTranscriptService(uploader storage.FileUploader, logger *slog.Logger) *TranscriptService {
	return &TranscriptService{uploader: uploader, logger: logger}
}

func (s *TranscriptService) Archive(ctx context.Context, debateID int, topic string, messages []models.Message) error {
	key := fmt.Sprintf("transcripts/debate_%d.txt", debateID)
	body := renderTranscript(topic, messages)

	result, err := s.uploader.Upload(ctx, key, "text/plain; charset=utf-8", strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to upload transcript for debate %d: %w", debateID, err)
	}

	s.logger.Info("transcript archived",
		slog.Int("debate_id", debateID),
		slog.String("location", result.Location))
	return nil
}

func renderTranscript(topic string, messages []models.Message) string {
	var b strings.Builder
	b.WriteString("Debate Transcript\n")
	b.WriteString("Topic: " + topic + "\n")
	b.WriteString("Date: " + time.Now().UTC().Format("2006-01-02") + "\n\n")

	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s (Turn %d):\n%s\n\n", m.Timestamp, m.SenderUsername, m.TurnNumber, m.Content)
	}
	return b.String()
}

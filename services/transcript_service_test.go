package services

import (
	"strings"
	"testing"

	"github.com/debatearena/debate-platform/models"
)

func TestRenderTranscript(t *testing.T) {
	messages := []models.Message{
		{SenderUsername: "alice", Side: models.SideFor, Content: "opening statement", Timestamp: "2026-08-29T10:00:00Z", TurnNumber: 1},
		{SenderUsername: "bob", Side: models.SideAgainst, Content: "rebuttal", Timestamp: "2026-08-29T10:01:30Z", TurnNumber: 2},
	}

	got := renderTranscript("Education should be free for everyone", messages)

	for _, want := range []string{
		"Debate Transcript",
		"Topic: Education should be free for everyone",
		"[2026-08-29T10:00:00Z] alice (Turn 1):\nopening statement",
		"[2026-08-29T10:01:30Z] bob (Turn 2):\nrebuttal",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("transcript missing %q:\n%s", want, got)
		}
	}

	if strings.Index(got, "alice") > strings.Index(got, "bob") {
		t.Fatal("messages must keep their original order")
	}
}

func TestRenderTranscriptEmptyLog(t *testing.T) {
	got := renderTranscript("Space exploration is worth the investment", nil)
	if !strings.Contains(got, "Topic: Space exploration is worth the investment") {
		t.Fatalf("header missing from empty transcript:\n%s", got)
	}
}

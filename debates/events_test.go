package debates

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/debatearena/debate-platform/models"
)

// Итог сессии хранится в БД как JSON и позже отдаётся без изменений,
// поэтому сериализация обязана быть обратимой.
func TestDebateEndedRoundTrip(t *testing.T) {
	winnerID := 1
	original := DebateEnded{
		Type:     EventDebateEnded,
		DebateID: 7,
		WinnerID: &winnerID,
		Reason:   models.EndReasonForfeit,
		Duration: 245,
		Topic:    "Democracy is the best form of government",
		Players: []PlayerResult{
			{UserID: 1, Username: "alice", Side: models.SideFor, MMRChange: 12, NewMMR: 1012},
			{UserID: 2, Username: "bob", Side: models.SideAgainst, MMRChange: -12, NewMMR: 998},
		},
		Arguments: []models.Message{
			{SenderID: 1, SenderUsername: "alice", Side: models.SideFor, Content: "opening", Timestamp: "2026-08-29T10:00:00Z", TurnNumber: 1},
		},
		FinalLog: []models.Message{
			{SenderID: 1, SenderUsername: "alice", Side: models.SideFor, Content: "opening", Timestamp: "2026-08-29T10:00:00Z", TurnNumber: 1},
		},
	}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var restored DebateEnded
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !reflect.DeepEqual(original, restored) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", original, restored)
	}
}

func TestDebateEndedDrawKeepsNullWinner(t *testing.T) {
	data, err := json.Marshal(DebateEnded{Type: EventDebateEnded, DebateID: 3, Reason: models.EndReasonNatural})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if v, ok := decoded["winner_id"]; !ok || v != nil {
		t.Fatalf("winner_id must serialize as explicit null, got %v", v)
	}
}

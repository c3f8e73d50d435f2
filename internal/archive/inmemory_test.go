package archive

import (
	"context"
	"fmt"
	"testing"
)

func TestInMemoryRecentTurnsWindow(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		err := s.SaveTurn(ctx, TurnRecord{SessionKey: "k1", Role: "user", Content: fmt.Sprintf("m%d", i)})
		if err != nil {
			t.Fatalf("SaveTurn() error = %v", err)
		}
	}

	got, err := s.RecentTurns(ctx, "k1", 2)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(got) != 2 || got[0].Content != "m3" || got[1].Content != "m4" {
		t.Fatalf("unexpected window: %+v", got)
	}
	if got[0].ID == "" {
		t.Fatalf("record ID should be assigned")
	}
}

func TestInMemoryUnknownSession(t *testing.T) {
	s := NewInMemoryStore()
	got, err := s.RecentTurns(context.Background(), "missing", 10)
	if err != nil {
		t.Fatalf("RecentTurns() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

package archive

import (
	"context"
	"time"
)

// TurnRecord is one archived conversation turn. The archive is best effort
// and write-mostly; the session store stays authoritative for live context.
type TurnRecord struct {
	ID         string    `json:"id"`
	SessionKey string    `json:"session_key"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Operations string    `json:"operations,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store persists conversation turns beyond the bounded in-memory window.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, sessionKey string, limit int) ([]TurnRecord, error)
	Close() error
}

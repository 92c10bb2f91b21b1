// Package session carries the logged-in operator through a station run.
// The operator's prefix lives here rather than in shared state, so every
// print is attributed to the session that issued it.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/packingline/internal/credential"
)

// Session tracks one operator login at a station.
type Session struct {
	ID        string              `json:"session_id"`
	StationID string              `json:"station_id"`
	Operator  credential.Identity `json:"operator"`
	StartedAt time.Time           `json:"started_at"`
}

// New creates a session for operator with a generated session ID.
func New(stationID string, operator credential.Identity) *Session {
	return &Session{
		ID:        "sess-" + uuid.NewString(),
		StationID: stationID,
		Operator:  operator,
		StartedAt: time.Now().UTC(),
	}
}

// Prefix returns the operator prefix injected into product labels.
func (s *Session) Prefix() string {
	return s.Operator.Prefix
}

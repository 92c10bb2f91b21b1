package audit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Filter selects audit entries. Zero fields match everything.
type Filter struct {
	SessionID string
	Serial    string
	Event     string
	From      time.Time
	To        time.Time
	// Last keeps only the newest N matches when positive.
	Last int
}

// Summary counts the outcomes of the selected entries.
type Summary struct {
	Total          int    `json:"total"`
	Logins         int    `json:"logins"`
	LoginFailures  int    `json:"login_failures"`
	Orders         int    `json:"orders"`
	Prints         int    `json:"prints"`
	PrintFailures  int    `json:"print_failures"`
	FirstTimestamp string `json:"first_timestamp"`
	LastTimestamp  string `json:"last_timestamp"`
}

// QueryResult holds filtered entries and their summary.
type QueryResult struct {
	Entries []Entry `json:"entries"`
	Summary Summary `json:"summary"`
}

func (f Filter) match(e Entry) bool {
	if f.SessionID != "" && e.SessionID != f.SessionID {
		return false
	}
	if f.Serial != "" && e.Serial != f.Serial {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	if f.From.IsZero() && f.To.IsZero() {
		return true
	}
	ts, err := time.Parse(TimestampFormat, e.Timestamp)
	if err != nil {
		return false
	}
	if !f.From.IsZero() && ts.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && ts.After(f.To) {
		return false
	}
	return true
}

// Query reads the audit log and returns entries matching the filter in
// file order. Malformed lines are skipped; use Verify to detect them.
func Query(path string, filter Filter) (*QueryResult, error) {
	var entries []Entry
	err := scanLines(path, func(_ int, line []byte) error {
		var entry Entry
		if json.Unmarshal(line, &entry) == nil && filter.match(entry) {
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	if filter.Last > 0 && len(entries) > filter.Last {
		entries = entries[len(entries)-filter.Last:]
	}

	result := &QueryResult{Entries: entries}
	for _, e := range entries {
		updateSummary(&result.Summary, e)
	}
	return result, nil
}

func updateSummary(s *Summary, e Entry) {
	s.Total++
	switch e.Event {
	case EventLogin:
		s.Logins++
	case EventLoginFailed, EventLoginThrottled:
		s.LoginFailures++
	case EventOrderOpen:
		s.Orders++
	case EventPrint:
		s.Prints++
		if e.Outcome != OutcomeOK {
			s.PrintFailures++
		}
	}
	if s.FirstTimestamp == "" {
		s.FirstTimestamp = e.Timestamp
	}
	s.LastTimestamp = e.Timestamp
}

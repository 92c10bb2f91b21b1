package audit

import (
	"path/filepath"
	"testing"
	"time"
)

func writeTestLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	entries := []Entry{
		{Timestamp: "2025-03-01T08:00:00.000Z", StationID: "line-1", Event: EventLoginFailed, Outcome: OutcomeFailed, Reason: "no matching credential"},
		{Timestamp: "2025-03-01T08:00:05.000Z", StationID: "line-1", SessionID: "sess-a", Event: EventLogin, Operator: "NJ", Outcome: OutcomeOK},
		{Timestamp: "2025-03-01T08:01:00.000Z", StationID: "line-1", SessionID: "sess-a", Event: EventOrderOpen, Operator: "NJ", Order: "P123", Product: "9155211", Outcome: OutcomeOK},
		{Timestamp: "2025-03-01T08:02:00.000Z", StationID: "line-1", SessionID: "sess-a", Event: EventPrint, Operator: "NJ", Order: "P123", Serial: "24-0001-0002", Branch: "product", Outcome: OutcomeOK},
		{Timestamp: "2025-03-01T08:02:00.500Z", StationID: "line-1", SessionID: "sess-a", Event: EventPrint, Operator: "NJ", Order: "P123", Serial: "24-0001-0002", Branch: "my2n", Outcome: OutcomeFailed, Reason: "report file does not exist"},
		{Timestamp: "2025-03-01T09:00:00.000Z", StationID: "line-1", SessionID: "sess-b", Event: EventPrint, Operator: "AB", Order: "P124", Serial: "24-0001-0003", Branch: "product", Outcome: OutcomeOK},
	}
	for _, e := range entries {
		if err := l.Record(e); err != nil {
			t.Fatal(err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestQueryAll(t *testing.T) {
	result, err := Query(writeTestLog(t), Filter{})
	if err != nil {
		t.Fatal(err)
	}
	s := result.Summary
	if s.Total != 6 || s.Logins != 1 || s.LoginFailures != 1 || s.Orders != 1 || s.Prints != 3 || s.PrintFailures != 1 {
		t.Errorf("unexpected summary %+v", s)
	}
	if s.FirstTimestamp != "2025-03-01T08:00:00.000Z" || s.LastTimestamp != "2025-03-01T09:00:00.000Z" {
		t.Errorf("unexpected range %s - %s", s.FirstTimestamp, s.LastTimestamp)
	}
}

func TestQueryBySession(t *testing.T) {
	result, err := Query(writeTestLog(t), Filter{SessionID: "sess-a"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 4 {
		t.Fatalf("expected 4 entries for sess-a, got %d", len(result.Entries))
	}
}

func TestQueryBySerialAndEvent(t *testing.T) {
	result, err := Query(writeTestLog(t), Filter{Serial: "24-0001-0002", Event: EventPrint})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 branch entries, got %d", len(result.Entries))
	}
	if result.Entries[1].Branch != "my2n" {
		t.Errorf("entries must keep file order, got %s", result.Entries[1].Branch)
	}
}

func TestQueryTimeRange(t *testing.T) {
	from := time.Date(2025, 3, 1, 8, 1, 0, 0, time.UTC)
	to := time.Date(2025, 3, 1, 8, 30, 0, 0, time.UTC)
	result, err := Query(writeTestLog(t), Filter{From: from, To: to})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("expected 3 entries in range, got %d", len(result.Entries))
	}
}

func TestQueryLast(t *testing.T) {
	result, err := Query(writeTestLog(t), Filter{Last: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(result.Entries))
	}
	if result.Entries[1].SessionID != "sess-b" {
		t.Errorf("expected newest entry last, got %+v", result.Entries[1])
	}
	if result.Summary.Total != 2 {
		t.Errorf("summary must cover kept entries only, got %d", result.Summary.Total)
	}
}

func TestQueryMissingLog(t *testing.T) {
	if _, err := Query(filepath.Join(t.TempDir(), "none.jsonl"), Filter{}); err == nil {
		t.Fatal("expected error for missing log")
	}
}

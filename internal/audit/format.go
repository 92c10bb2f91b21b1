package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const separator = "──────────────────────────────────────────────────────────────────"

// FormatTimeline renders a QueryResult as a human-readable text timeline.
func FormatTimeline(result *QueryResult) string {
	if len(result.Entries) == 0 {
		return "No audit entries found.\n"
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("Audit | %s–%s UTC\n",
		formatDateRange(result.Summary.FirstTimestamp),
		formatDateRange(result.Summary.LastTimestamp)))
	b.WriteString(separator + "\n")

	for _, e := range result.Entries {
		subject := e.Serial
		if subject == "" {
			subject = e.Order
		}
		detail := e.Branch
		if e.Reason != "" {
			if detail != "" {
				detail += ": "
			}
			detail += e.Reason
		}
		b.WriteString(fmt.Sprintf("%-10s %-15s %-6s %-7s %-14s %s\n",
			formatTimeOnly(e.Timestamp),
			e.Event,
			truncate(e.Operator, 6),
			strings.ToUpper(e.Outcome),
			truncate(subject, 14),
			truncate(detail, 60)))
	}

	b.WriteString(separator + "\n")
	b.WriteString(formatSummary(result.Summary))
	return b.String()
}

// FormatJSON renders a QueryResult as indented JSON.
func FormatJSON(result *QueryResult) (string, error) {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal audit result: %w", err)
	}
	return string(data), nil
}

func formatDateRange(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

func formatTimeOnly(ts string) string {
	t, err := time.Parse(TimestampFormat, ts)
	if err != nil {
		return ts
	}
	return t.Format("15:04:05")
}

func formatSummary(s Summary) string {
	parts := []string{fmt.Sprintf("%d entries", s.Total)}
	if s.Logins > 0 {
		parts = append(parts, fmt.Sprintf("%d login", s.Logins))
	}
	if s.LoginFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed login", s.LoginFailures))
	}
	if s.Orders > 0 {
		parts = append(parts, fmt.Sprintf("%d order", s.Orders))
	}
	if s.Prints > 0 {
		parts = append(parts, fmt.Sprintf("%d print", s.Prints))
	}
	if s.PrintFailures > 0 {
		parts = append(parts, fmt.Sprintf("%d failed print", s.PrintFailures))
	}
	return "Summary: " + strings.Join(parts, ", ") + "\n"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

package audit

import (
	"encoding/json"
	"errors"
	"fmt"
)

// VerifyResult is the outcome of walking a log's hash chain.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	// Lines is the number of entries that passed.
	Lines int    `json:"lines"`
	// Tail is the hash the next entry must reference. Only set when Valid.
	Tail  string `json:"tail,omitempty"`

	Error     string `json:"error,omitempty"`
	ErrorLine int    `json:"error_line,omitempty"`
}

// brokenLink stops the scan at the first bad entry.
type brokenLink struct {
	line int
	msg  string
}

func (b *brokenLink) Error() string { return b.msg }

// Verify checks that every entry of the log at path references the hash
// of the line before it, and the first entry references GenesisHash.
// It reports the first broken link.
func Verify(path string) VerifyResult {
	expected := GenesisHash
	count := 0

	err := scanLines(path, func(num int, line []byte) error {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return &brokenLink{line: num, msg: fmt.Sprintf("parse error: %v", err)}
		}
		if entry.PrevHash != expected {
			if num == 1 {
				return &brokenLink{line: num, msg: fmt.Sprintf("first entry prev_hash is %q, expected genesis hash", entry.PrevHash)}
			}
			return &brokenLink{line: num, msg: fmt.Sprintf("hash mismatch: expected %s, got %s", expected, entry.PrevHash)}
		}
		expected = HashLine(line)
		count = num
		return nil
	})

	var broken *brokenLink
	switch {
	case errors.As(err, &broken):
		return VerifyResult{Lines: count, Error: broken.msg, ErrorLine: broken.line}
	case err != nil:
		return VerifyResult{Lines: count, Error: fmt.Sprintf("read: %v", err)}
	}
	return VerifyResult{Valid: true, Lines: count, Tail: expected}
}

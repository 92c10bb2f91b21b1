// Package report reads My2N security tokens from the per-serial test
// reports. A report may accumulate several token lines over time; the
// last one is current.
package report

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TokenMarker introduces the token value. Matched case-insensitively.
const TokenMarker = "my2n token:"

// TriggerMy2N is the fixed trigger file name for My2N labels.
const TriggerMy2N = "SF_MY2N_A"

var (
	ErrInvalidFormat = errors.New("invalid serial number format")
	ErrReportMissing = errors.New("report file does not exist")
	ErrTokenMissing  = errors.New("no My2N token in report")
	ErrEmptyToken    = errors.New("My2N token line has no value")
)

// Path returns the report file for serial under root:
// root/20{yy}/{block}/{block}{seq}.{yy} for serial yy-block-seq.
func Path(serial, root string) (string, error) {
	parts := strings.Split(serial, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidFormat, serial)
	}
	yy, block, seq := parts[0], parts[1], parts[2]
	return filepath.Join(root, "20"+yy, block, block+seq+"."+yy), nil
}

// ExtractMy2nToken returns the most recent My2N token recorded for serial.
func ExtractMy2nToken(serial, root string) (string, error) {
	path, err := Path(serial, root)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrReportMissing, path)
		}
		return "", fmt.Errorf("stat report: %w", err)
	}

	lines, err := readLines(path)
	if err != nil {
		return "", err
	}
	return FindToken(lines)
}

// FindToken scans lines from the end for the token marker and returns
// the value after it with its original case.
func FindToken(lines []string) (string, error) {
	for i := len(lines) - 1; i >= 0; i-- {
		idx := strings.Index(asciiLower(lines[i]), TokenMarker)
		if idx < 0 {
			continue
		}
		value := strings.TrimSpace(lines[i][idx+len(TokenMarker):])
		if value == "" {
			return "", ErrEmptyToken
		}
		return value, nil
	}
	return "", ErrTokenMissing
}

// asciiLower lowers A-Z bytes only, so offsets match the input even
// for reports that are not valid UTF-8.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open report: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	return lines, nil
}

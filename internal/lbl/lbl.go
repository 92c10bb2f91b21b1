// Package lbl extracts label data from the lines of a work order's .lbl
// file. Lines have the form {serial}{letter}={payload}; the letter selects
// the protocol and the role of the line (trigger list, header, record).
package lbl

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// FieldDelimiter separates fields of header and record payloads.
// Payloads are quoted pseudo-CSV rows without escaping.
const FieldDelimiter = `","`

// PrefixField is the header field that receives the operator prefix.
const PrefixField = "P Znacka balice"

var serialPattern = regexp.MustCompile(`^\d{2}-\d{4}-\d{4}$`)

var (
	// ErrMissing means a required line or value was not found.
	ErrMissing = errors.New("label data missing")
	// ErrInvalidSerial means the serial is not in the 00-0000-0000 form.
	ErrInvalidSerial = errors.New("serial number must be in format 00-0000-0000")
)

// Lines is the content of one .lbl file.
type Lines []string

// Load reads a .lbl file into lines.
func Load(path string) (Lines, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open lbl file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines Lines
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lbl file: %w", err)
	}
	return lines, nil
}

// ValidateSerial checks the 00-0000-0000 serial format.
func ValidateSerial(serial string) error {
	if !serialPattern.MatchString(serial) {
		return fmt.Errorf("%w: %q", ErrInvalidSerial, serial)
	}
	return nil
}

// NormalizeSerial trims and upper-cases a scanned serial.
func NormalizeSerial(serial string) string {
	return strings.ToUpper(strings.TrimSpace(serial))
}

// Protocol describes the line-prefix conventions of one label family.
type Protocol struct {
	Name     string
	Required []string
	Header   string
	Record   string
	Trigger  string
	// Hint is shown to the operator when required lines are missing.
	Hint string
}

// Product is the generic product label protocol.
var Product = Protocol{
	Name:     "product",
	Required: []string{"B=", "D=", "E="},
	Header:   "D=",
	Record:   "E=",
	Trigger:  "B=",
	Hint:     "serial number does not belong to the work order",
}

// Control4 is the Control4 label protocol.
var Control4 = Protocol{
	Name:     "control4",
	Required: []string{"I=", "J=", "K="},
	Header:   "J=",
	Record:   "K=",
	Trigger:  "I=",
}

// MissingLinesError lists the {serial}{prefix} keys absent from a line set.
type MissingLinesError struct {
	Serial   string
	Protocol string
	Missing  []string
	Hint     string
}

func (e *MissingLinesError) Error() string {
	msg := fmt.Sprintf("%s: required lines missing: %s", e.Protocol, strings.Join(e.Missing, ", "))
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *MissingLinesError) Is(target error) bool { return target == ErrMissing }

// ValidateRequiredLines checks that every required prefixed line exists
// for serial. Only presence is checked, not content.
func ValidateRequiredLines(lines Lines, serial string, p Protocol) error {
	var missing []string
	for _, prefix := range p.Required {
		key := serial + prefix
		if !hasLine(lines, key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return &MissingLinesError{Serial: serial, Protocol: p.Name, Missing: missing, Hint: p.Hint}
	}
	return nil
}

func hasLine(lines Lines, key string) bool {
	for _, line := range lines {
		if strings.HasPrefix(line, key) {
			return true
		}
	}
	return false
}

// payload returns the text after the first occurrence of token in line.
func payload(line, token string) string {
	_, after, _ := strings.Cut(line, token)
	return after
}

// ExtractHeaderAndRecord returns the header and record payloads for serial.
// Every line is visited; when a prefix occurs on several lines the last one
// wins. Both values must be non-empty.
func ExtractHeaderAndRecord(lines Lines, serial, headerPrefix, recordPrefix string) (header, record string, err error) {
	headerKey := serial + headerPrefix
	recordKey := serial + recordPrefix
	for _, line := range lines {
		if strings.HasPrefix(line, headerKey) {
			header = strings.TrimSpace(payload(line, headerPrefix))
		} else if strings.HasPrefix(line, recordKey) {
			record = strings.TrimSpace(payload(line, recordPrefix))
		}
	}
	if header == "" || record == "" {
		return "", "", fmt.Errorf("%w: header or record for %q", ErrMissing, serial)
	}
	return header, record, nil
}

// ExtractTriggerValues returns the ';'-separated trigger names from the
// first {serial}{prefix} line. Empty entries are dropped.
func ExtractTriggerValues(lines Lines, serial, prefix string) ([]string, error) {
	key := serial + prefix
	for _, line := range lines {
		if !strings.HasPrefix(line, key) {
			continue
		}
		values := []string{}
		for _, v := range strings.Split(payload(line, prefix), ";") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		return values, nil
	}
	return nil, fmt.Errorf("%w: line %q", ErrMissing, key)
}

// Extracted is the label data of one protocol for one serial.
type Extracted struct {
	Protocol string   `json:"protocol"`
	Header   string   `json:"header"`
	Record   string   `json:"record"`
	Triggers []string `json:"triggers"`
}

// Extract validates and extracts everything protocol p needs for serial.
// A trigger line without any names counts as missing.
func Extract(lines Lines, serial string, p Protocol) (*Extracted, error) {
	if err := ValidateRequiredLines(lines, serial, p); err != nil {
		return nil, err
	}
	header, record, err := ExtractHeaderAndRecord(lines, serial, p.Header, p.Record)
	if err != nil {
		return nil, err
	}
	triggers, err := ExtractTriggerValues(lines, serial, p.Trigger)
	if err != nil {
		return nil, err
	}
	if len(triggers) == 0 {
		return nil, fmt.Errorf("%w: no trigger names in %q", ErrMissing, serial+p.Trigger)
	}
	return &Extracted{Protocol: p.Name, Header: header, Record: record, Triggers: triggers}, nil
}

package credential

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Attribute positions inside the comma-joined record
// (index 0 is the secret, index 1 the first attribute).
const (
	surnameIndex   = 2
	givenNameIndex = 3
	prefixIndex    = 4
	minParts       = prefixIndex + 1
)

var (
	// ErrNoMatch means no record carries the submitted password.
	ErrNoMatch = errors.New("password not recognized")
	// ErrMalformedRecord means the matching record has too few attributes.
	ErrMalformedRecord = errors.New("credential record has too few fields")
)

// Identity is the operator resolved from a matching record.
type Identity struct {
	Surname   string `json:"surname"`
	GivenName string `json:"given_name"`
	Prefix    string `json:"prefix"`
}

// DisplayName returns "GivenName Surname".
func (id Identity) DisplayName() string {
	return strings.TrimSpace(id.GivenName + " " + id.Surname)
}

// Record is one decoded line of the credential file.
type Record struct {
	Digest string // SHA-256 hex of the secret
	Joined string // all decoded segments joined with ","
}

// LoadError reports a credential file that could not be read or decoded.
// Line is 0 when the file itself could not be opened.
type LoadError struct {
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("credential file %s line %d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("credential file %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// LoadAndDigest reads every record of the credential file at path.
// Any unreadable line fails the whole load; a file without records
// returns an empty slice and nil error.
func LoadAndDigest(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	defer func() { _ = f.Close() }()

	records := []Record{}
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		segments, err := DecodeLine(line)
		if err != nil {
			return nil, &LoadError{Path: path, Line: lineNum, Err: err}
		}
		records = append(records, Record{
			Digest: Digest(segments[0]),
			Joined: strings.Join(segments, ","),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return records, nil
}

// Store verifies passwords against a credential file. The file is
// re-read on every attempt.
type Store struct {
	path   string
	logger *zap.Logger
}

// NewStore creates a Store for the credential file at path.
func NewStore(path string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger.Named("credential")}
}

// Path returns the credential file path.
func (s *Store) Path() string { return s.path }

// Authenticate resolves the operator whose secret equals password.
// Records are scanned in file order and the first digest match wins.
func (s *Store) Authenticate(password string) (*Identity, error) {
	records, err := LoadAndDigest(s.path)
	if err != nil {
		return nil, err
	}

	digest := Digest(password)
	for _, rec := range records {
		if !digestEqual(digest, rec.Digest) {
			continue
		}
		parts := strings.Split(rec.Joined, ",")
		if len(parts) < minParts {
			return nil, fmt.Errorf("%w: got %d, need %d", ErrMalformedRecord, len(parts), minParts)
		}
		return &Identity{
			Surname:   strings.TrimSpace(parts[surnameIndex]),
			GivenName: strings.TrimSpace(parts[givenNameIndex]),
			Prefix:    strings.TrimSpace(parts[prefixIndex]),
		}, nil
	}
	return nil, ErrNoMatch
}

// CheckLogin is the fail-closed form of Authenticate: every error,
// including an unreadable file, is logged and reported as a failed login.
func (s *Store) CheckLogin(password string) (*Identity, bool) {
	id, err := s.Authenticate(password)
	switch {
	case err == nil:
		s.logger.Info("operator logged in",
			zap.String("surname", id.Surname),
			zap.String("given_name", id.GivenName),
			zap.String("prefix", id.Prefix))
		return id, true
	case errors.Is(err, ErrNoMatch):
		s.logger.Warn("password not found in credential file", zap.String("file", s.path))
	case errors.Is(err, ErrMalformedRecord):
		s.logger.Warn("matching credential record is malformed", zap.Error(err))
	default:
		s.logger.Error("credential check failed", zap.Error(err))
	}
	return nil, false
}

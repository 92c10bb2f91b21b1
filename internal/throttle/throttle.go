// Package throttle limits failed login attempts per station. State is kept
// in small JSON files so the limit survives a station restart.
package throttle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// defaultMaxFailures is the number of failed logins allowed per window.
const defaultMaxFailures = 5

// defaultWindow is the sliding window for counting failures.
const defaultWindow = 5 * time.Minute

// ErrThrottled is matched by *ThrottledError.
var ErrThrottled = errors.New("too many failed logins")

// ThrottledError reports a station that must wait before the next login.
type ThrottledError struct {
	Station    string
	Failures   int
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("too many failed logins at %s: %d in window, retry in %s",
		e.Station, e.Failures, e.RetryAfter.Round(time.Second))
}

func (e *ThrottledError) Is(target error) bool {
	return target == ErrThrottled
}

// Limiter counts failed logins per station using state files.
type Limiter struct {
	stateDir    string
	maxFailures int
	window      time.Duration
	now         func() time.Time
}

// failureState tracks timestamps of recent failed logins at a station.
type failureState struct {
	Failures []time.Time `json:"failures"`
}

// NewLimiter creates a limiter. Non-positive values select the defaults.
func NewLimiter(stateDir string, maxFailures int, window time.Duration) *Limiter {
	if maxFailures <= 0 {
		maxFailures = defaultMaxFailures
	}
	if window <= 0 {
		window = defaultWindow
	}
	return &Limiter{
		stateDir:    stateDir,
		maxFailures: maxFailures,
		window:      window,
		now:         time.Now,
	}
}

// Allow returns a *ThrottledError while station has reached the failure
// limit inside the window, nil otherwise. It does not record anything.
func (l *Limiter) Allow(station string) error {
	recent := l.recent(l.loadState(l.statePath(station)))
	if len(recent) < l.maxFailures {
		return nil
	}
	// The oldest failure in the window decides when a slot frees up.
	retry := recent[0].Add(l.window).Sub(l.now())
	if retry < 0 {
		retry = 0
	}
	return &ThrottledError{Station: station, Failures: len(recent), RetryAfter: retry}
}

// RecordFailure stores a failed login for station.
func (l *Limiter) RecordFailure(station string) error {
	if err := os.MkdirAll(l.stateDir, 0750); err != nil {
		return fmt.Errorf("create throttle dir: %w", err)
	}
	path := l.statePath(station)
	state := &failureState{Failures: l.recent(l.loadState(path))}
	state.Failures = append(state.Failures, l.now().UTC())
	return l.saveState(path, state)
}

// Reset clears the failures of station after a successful login.
func (l *Limiter) Reset(station string) error {
	err := os.Remove(l.statePath(station))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset throttle: %w", err)
	}
	return nil
}

func (l *Limiter) recent(state *failureState) []time.Time {
	cutoff := l.now().Add(-l.window)
	var recent []time.Time
	for _, ts := range state.Failures {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	return recent
}

// statePath returns the state file path for a station (hashed to avoid FS issues).
func (l *Limiter) statePath(station string) string {
	h := sha256.Sum256([]byte(station))
	return filepath.Join(l.stateDir, "login-"+hex.EncodeToString(h[:8])+".json")
}

func (l *Limiter) loadState(path string) *failureState {
	data, err := os.ReadFile(path)
	if err != nil {
		return &failureState{}
	}
	var s failureState
	if err := json.Unmarshal(data, &s); err != nil {
		return &failureState{}
	}
	return &s
}

func (l *Limiter) saveState(path string, state *failureState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

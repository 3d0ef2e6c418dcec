// Package settings holds the per-user session preferences and the rules for
// changing them.
package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultSecondsPerProblem  = 30
	DefaultProblemsPerSession = 5

	MinSecondsPerProblem  = 10
	MaxSecondsPerProblem  = 120
	MinProblemsPerSession = 3
	MaxProblemsPerSession = 20
)

var (
	// ErrUnknownKey is returned for a setting name that does not exist.
	ErrUnknownKey = errors.New("unknown setting")

	// ErrNotInteger is returned when a setting value is not a whole number.
	ErrNotInteger = errors.New("setting value must be a whole number")

	// ErrOutOfRange is wrapped by RangeError.
	ErrOutOfRange = errors.New("setting value out of range")
)

// Settings are the per-user session preferences.
type Settings struct {
	SecondsPerProblem  int
	ProblemsPerSession int
}

// Default returns the settings a new user starts with.
func Default() Settings {
	return Settings{
		SecondsPerProblem:  DefaultSecondsPerProblem,
		ProblemsPerSession: DefaultProblemsPerSession,
	}
}

// Key identifies a user-changeable setting.
type Key string

const (
	KeySecondsPerProblem  Key = "time_per_problem"
	KeyProblemsPerSession Key = "problems_per_session"
)

// AllKeys returns the settable keys in display order.
func AllKeys() []Key {
	return []Key{KeySecondsPerProblem, KeyProblemsPerSession}
}

// ParseKey resolves a user-supplied setting name.
func ParseKey(s string) (Key, error) {
	switch k := Key(strings.ToLower(strings.TrimSpace(s))); k {
	case KeySecondsPerProblem, KeyProblemsPerSession:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
	}
}

// DisplayName returns a human-readable label for the key.
func (k Key) DisplayName() string {
	switch k {
	case KeySecondsPerProblem:
		return "Seconds per problem"
	case KeyProblemsPerSession:
		return "Problems per session"
	default:
		return string(k)
	}
}

// Bounds returns the inclusive range accepted for the key.
func (k Key) Bounds() (lo, hi int) {
	switch k {
	case KeySecondsPerProblem:
		return MinSecondsPerProblem, MaxSecondsPerProblem
	case KeyProblemsPerSession:
		return MinProblemsPerSession, MaxProblemsPerSession
	default:
		return 0, 0
	}
}

// Value returns the current value of key in s.
func (s Settings) Value(k Key) int {
	switch k {
	case KeySecondsPerProblem:
		return s.SecondsPerProblem
	case KeyProblemsPerSession:
		return s.ProblemsPerSession
	default:
		return 0
	}
}

// RangeError reports a value outside a key's bounds.
type RangeError struct {
	Key   Key
	Value int
	Min   int
	Max   int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %d", e.Key.DisplayName(), e.Min, e.Max, e.Value)
}

func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}

// Apply returns a copy of s with key set to raw. s itself is not modified.
func Apply(s Settings, key Key, raw string) (Settings, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return s, fmt.Errorf("%w: %q", ErrNotInteger, raw)
	}
	return Set(s, key, v)
}

// Set is Apply for an already parsed value.
func Set(s Settings, key Key, v int) (Settings, error) {
	lo, hi := key.Bounds()
	if lo == 0 && hi == 0 {
		return s, fmt.Errorf("%w: %q", ErrUnknownKey, string(key))
	}
	if v < lo || v > hi {
		return s, &RangeError{Key: key, Value: v, Min: lo, Max: hi}
	}

	switch key {
	case KeySecondsPerProblem:
		s.SecondsPerProblem = v
	case KeyProblemsPerSession:
		s.ProblemsPerSession = v
	}
	return s, nil
}

// Clamp forces out-of-range values back into bounds. Zero values fall back
// to the defaults.
func Clamp(s Settings) Settings {
	if s.SecondsPerProblem == 0 {
		s.SecondsPerProblem = DefaultSecondsPerProblem
	}
	if s.ProblemsPerSession == 0 {
		s.ProblemsPerSession = DefaultProblemsPerSession
	}
	s.SecondsPerProblem = min(max(s.SecondsPerProblem, MinSecondsPerProblem), MaxSecondsPerProblem)
	s.ProblemsPerSession = min(max(s.ProblemsPerSession, MinProblemsPerSession), MaxProblemsPerSession)
	return s
}

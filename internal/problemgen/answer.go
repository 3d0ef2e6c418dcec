package problemgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedAnswer is returned when learner input is not an integer.
var ErrMalformedAnswer = errors.New("answer must be a whole number")

// ParseAnswer normalizes learner input into an integer.
//
// Normalization rules:
// - Whitespace is trimmed
// - Leading zeros are ignored (e.g., "007" is 7)
// - A leading "+" or "-" sign is accepted
func ParseAnswer(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, fmt.Errorf("%w: empty input", ErrMalformedAnswer)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedAnswer, raw)
	}
	return n, nil
}

// CheckAnswer reports whether value is the correct answer to p.
func CheckAnswer(value int, p Problem) bool {
	return value == p.Answer
}

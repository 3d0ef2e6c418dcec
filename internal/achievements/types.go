package achievements

import "time"

// ConditionType identifies which statistic a definition is checked against.
type ConditionType string

const (
	ConditionLevel  ConditionType = "level"  // current level reached
	ConditionTotal  ConditionType = "total"  // problems solved across all sessions
	ConditionSpeed  ConditionType = "speed"  // one correct answer within N seconds
	ConditionStreak ConditionType = "streak" // N correct answers in a row
)

// AllConditionTypes returns all condition types in display order.
func AllConditionTypes() []ConditionType {
	return []ConditionType{ConditionLevel, ConditionTotal, ConditionSpeed, ConditionStreak}
}

// DisplayName returns a human-readable label for the condition type.
func (c ConditionType) DisplayName() string {
	switch c {
	case ConditionLevel:
		return "Level"
	case ConditionTotal:
		return "Endurance"
	case ConditionSpeed:
		return "Speed"
	case ConditionStreak:
		return "Streak"
	default:
		return string(c)
	}
}

// Definition is one badge of the catalog.
type Definition struct {
	ID          int64
	Name        string
	Description string
	Icon        string
	Condition   ConditionType
	Threshold   int
}

// Earned is a definition a user holds, with the time it was awarded.
type Earned struct {
	Definition
	EarnedAt time.Time
}

// ProblemRecord is the part of a persisted attempt the evaluator looks at.
type ProblemRecord struct {
	IsCorrect     bool
	TimeTakenSecs float64
}

// SessionRecord is one persisted session with its attempts in the order
// they were answered.
type SessionRecord struct {
	ProblemsSolved int
	Problems       []ProblemRecord
}

// History is everything the evaluator needs to know about a user.
// Sessions are ordered oldest first.
type History struct {
	CurrentLevel int
	Sessions     []SessionRecord
}

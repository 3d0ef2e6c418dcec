package problemgen

// MaxLevel is the highest difficulty level in the level table.
const MaxLevel = 10

// Problem is a generated arithmetic problem ready for display.
type Problem struct {
	// Text is the problem statement, e.g. "12 + 7 = ?" or "8 × 6 = ?".
	Text string

	// Answer is the correct integer answer. Never negative.
	Answer int

	// Level is the difficulty level the problem was generated for, after
	// unknown levels have been mapped to level 1.
	Level int

	// Kind is the operation family of the level that produced the problem.
	Kind Kind
}

// Kind identifies the operation family of a level.
type Kind string

const (
	KindAddition       Kind = "addition"
	KindSubtraction    Kind = "subtraction"
	KindMultiplication Kind = "multiplication"
	KindMixed          Kind = "mixed"          // two-term addition or subtraction
	KindMixedAdvanced  Kind = "mixed_advanced" // multi-term +/- chain
	KindChallenge      Kind = "challenge"      // multi-term sums, chains, a × b ± c
)

// LevelConfig describes how problems for one level are sampled.
type LevelConfig struct {
	Kind  Kind
	Min   int // inclusive lower bound of operand sampling
	Max   int // inclusive upper bound of operand sampling
	Terms int // number of operands
}

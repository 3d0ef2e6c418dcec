package problemgen

// levelTable maps each level to its sampling configuration.
var levelTable = map[int]LevelConfig{
	1:  {Kind: KindAddition, Min: 1, Max: 10, Terms: 2},
	2:  {Kind: KindSubtraction, Min: 1, Max: 10, Terms: 2},
	3:  {Kind: KindAddition, Min: 10, Max: 50, Terms: 2},
	4:  {Kind: KindSubtraction, Min: 10, Max: 50, Terms: 2},
	5:  {Kind: KindAddition, Min: 1, Max: 20, Terms: 3},
	6:  {Kind: KindMixed, Min: 10, Max: 30, Terms: 2},
	7:  {Kind: KindMultiplication, Min: 2, Max: 12, Terms: 2},
	8:  {Kind: KindAddition, Min: 50, Max: 100, Terms: 2},
	9:  {Kind: KindMixedAdvanced, Min: 10, Max: 50, Terms: 3},
	10: {Kind: KindChallenge, Min: 10, Max: 100, Terms: 4},
}

var levelDescriptions = map[int]string{
	1:  "Addition of numbers from 1 to 10",
	2:  "Subtraction of numbers from 1 to 10",
	3:  "Addition of numbers from 10 to 50",
	4:  "Subtraction of numbers from 10 to 50",
	5:  "Addition of three numbers",
	6:  "Mixed addition and subtraction",
	7:  "Multiplication table",
	8:  "Big numbers (up to 100)",
	9:  "Multi-step expressions",
	10: "Master level",
}

// Config returns the sampling configuration for level. Levels outside the
// table resolve to level 1; the resolved level is returned alongside.
func Config(level int) (LevelConfig, int) {
	if cfg, ok := levelTable[level]; ok {
		return cfg, level
	}
	return levelTable[1], 1
}

// ValidLevel reports whether level is in the level table.
func ValidLevel(level int) bool {
	_, ok := levelTable[level]
	return ok
}

// Describe returns a short human-readable description of a level.
func Describe(level int) string {
	if d, ok := levelDescriptions[level]; ok {
		return d
	}
	return "Regular level"
}

// DifficultyIcon returns a colored marker for the level's difficulty band.
func DifficultyIcon(level int) string {
	switch {
	case level <= 2:
		return "🟢"
	case level <= 5:
		return "🟡"
	case level <= 8:
		return "🟠"
	default:
		return "🔴"
	}
}

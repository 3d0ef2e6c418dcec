package achievements

// Evaluate returns the catalog entries whose condition h satisfies and that
// are not yet in earned. It does not award anything.
func Evaluate(h History, catalog []Definition, earned map[int64]bool) []Definition {
	var (
		total    int
		streak   = -1 // computed lazily
		newlyMet []Definition
	)
	for _, s := range h.Sessions {
		total += s.ProblemsSolved
	}

	for _, def := range catalog {
		if earned[def.ID] {
			continue
		}

		met := false
		switch def.Condition {
		case ConditionLevel:
			met = h.CurrentLevel >= def.Threshold
		case ConditionTotal:
			met = total >= def.Threshold
		case ConditionSpeed:
			met = hasFastCorrect(h, float64(def.Threshold))
		case ConditionStreak:
			if streak < 0 {
				streak = LongestStreak(h)
			}
			met = streak >= def.Threshold
		}
		if met {
			newlyMet = append(newlyMet, def)
		}
	}
	return newlyMet
}

// LongestStreak returns the longest run of consecutive correct attempts
// across all sessions in chronological order. Any incorrect or timed-out
// attempt resets the run.
func LongestStreak(h History) int {
	longest, current := 0, 0
	for _, s := range h.Sessions {
		for _, p := range s.Problems {
			if !p.IsCorrect {
				current = 0
				continue
			}
			current++
			if current > longest {
				longest = current
			}
		}
	}
	return longest
}

func hasFastCorrect(h History, limitSecs float64) bool {
	for _, s := range h.Sessions {
		for _, p := range s.Problems {
			if p.IsCorrect && p.TimeTakenSecs <= limitSecs {
				return true
			}
		}
	}
	return false
}

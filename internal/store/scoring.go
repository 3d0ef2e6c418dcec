package store

const (
	PointsPerCorrect        = 10
	AccuracyBonusPerProblem = 5
)

// ScoreFor returns the points a session earns and its accuracy. A session
// scores PointsPerCorrect per correct answer, plus AccuracyBonusPerProblem
// per planned problem when at least 80% of them were answered correctly.
func ScoreFor(correct, target int) (gained int, accuracy float64) {
	if target <= 0 {
		return 0, 0
	}
	accuracy = float64(correct) / float64(target)
	gained = correct * PointsPerCorrect
	if MeetsPromotionAccuracy(correct, target) {
		gained += target * AccuracyBonusPerProblem
	}
	return gained, accuracy
}

// MeetsPromotionAccuracy reports whether correct/target is at least 80%.
// It compares integers so 4/5 is never lost to rounding.
func MeetsPromotionAccuracy(correct, target int) bool {
	return target > 0 && correct*5 >= target*4
}

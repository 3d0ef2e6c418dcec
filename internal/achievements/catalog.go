package achievements

// DefaultCatalog returns the badges seeded into a fresh database. IDs are
// left zero; the store assigns them on insert.
func DefaultCatalog() []Definition {
	return []Definition{
		{Name: "Novice", Description: "Solve your first problem", Icon: "🎯", Condition: ConditionLevel, Threshold: 1},
		{Name: "Student", Description: "Reach level 3", Icon: "📚", Condition: ConditionLevel, Threshold: 3},
		{Name: "Expert", Description: "Reach level 5", Icon: "🧠", Condition: ConditionLevel, Threshold: 5},
		{Name: "Master", Description: "Reach level 7", Icon: "🏆", Condition: ConditionLevel, Threshold: 7},
		{Name: "Genius", Description: "Reach level 10", Icon: "👑", Condition: ConditionLevel, Threshold: 10},
		{Name: "Speed", Description: "Solve a problem in 5 seconds", Icon: "⚡", Condition: ConditionSpeed, Threshold: 5},
		{Name: "Accuracy", Description: "Solve 10 problems in a row correctly", Icon: "🎯", Condition: ConditionStreak, Threshold: 10},
		{Name: "Endurance", Description: "Solve 50 problems", Icon: "💪", Condition: ConditionTotal, Threshold: 50},
	}
}

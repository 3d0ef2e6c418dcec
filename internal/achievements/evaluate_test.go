package achievements

import "testing"

func catalogWithIDs() []Definition {
	defs := DefaultCatalog()
	for i := range defs {
		defs[i].ID = int64(i + 1)
	}
	return defs
}

func names(defs []Definition) map[string]bool {
	out := make(map[string]bool, len(defs))
	for _, d := range defs {
		out[d.Name] = true
	}
	return out
}

func session(answers ...ProblemRecord) SessionRecord {
	return SessionRecord{ProblemsSolved: len(answers), Problems: answers}
}

func correct(secs float64) ProblemRecord { return ProblemRecord{IsCorrect: true, TimeTakenSecs: secs} }
func wrong(secs float64) ProblemRecord   { return ProblemRecord{IsCorrect: false, TimeTakenSecs: secs} }

func TestEvaluate_LevelThresholds(t *testing.T) {
	tests := []struct {
		level int
		want  []string
	}{
		{1, []string{"Novice"}},
		{3, []string{"Novice", "Student"}},
		{5, []string{"Novice", "Student", "Expert"}},
		{7, []string{"Novice", "Student", "Expert", "Master"}},
		{10, []string{"Novice", "Student", "Expert", "Master", "Genius"}},
	}

	for _, tc := range tests {
		got := names(Evaluate(History{CurrentLevel: tc.level}, catalogWithIDs(), nil))
		if len(got) != len(tc.want) {
			t.Errorf("level %d: got %v, want %v", tc.level, got, tc.want)
			continue
		}
		for _, n := range tc.want {
			if !got[n] {
				t.Errorf("level %d: missing %s", tc.level, n)
			}
		}
	}
}

func TestEvaluate_SkipsEarned(t *testing.T) {
	catalog := catalogWithIDs()
	h := History{CurrentLevel: 3}

	first := Evaluate(h, catalog, nil)
	earned := make(map[int64]bool)
	for _, d := range first {
		earned[d.ID] = true
	}

	if second := Evaluate(h, catalog, earned); len(second) != 0 {
		t.Errorf("second evaluation returned %d definitions, want 0", len(second))
	}
}

func TestEvaluate_Total(t *testing.T) {
	catalog := catalogWithIDs()
	var sessions []SessionRecord
	for i := 0; i < 9; i++ {
		sessions = append(sessions, SessionRecord{ProblemsSolved: 5})
	}

	got := names(Evaluate(History{Sessions: sessions}, catalog, nil))
	if got["Endurance"] {
		t.Error("45 problems should not earn Endurance")
	}

	sessions = append(sessions, SessionRecord{ProblemsSolved: 5})
	got = names(Evaluate(History{Sessions: sessions}, catalog, nil))
	if !got["Endurance"] {
		t.Error("50 problems should earn Endurance")
	}
}

func TestEvaluate_Speed(t *testing.T) {
	catalog := catalogWithIDs()

	tests := []struct {
		name string
		h    History
		want bool
	}{
		{"fast correct", History{Sessions: []SessionRecord{session(correct(4.2))}}, true},
		{"exactly at limit", History{Sessions: []SessionRecord{session(correct(5))}}, true},
		{"fast but wrong", History{Sessions: []SessionRecord{session(wrong(1))}}, false},
		{"slow correct", History{Sessions: []SessionRecord{session(correct(5.1))}}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := names(Evaluate(tc.h, catalog, nil))["Speed"]
			if got != tc.want {
				t.Errorf("Speed earned = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestLongestStreak_AcrossSessions(t *testing.T) {
	h := History{Sessions: []SessionRecord{
		session(correct(10), correct(10), correct(10), correct(10)),
		session(correct(10), correct(10), correct(10), correct(10), correct(10), correct(10)),
	}}
	if got := LongestStreak(h); got != 10 {
		t.Fatalf("LongestStreak = %d, want 10", got)
	}
	if !names(Evaluate(h, catalogWithIDs(), nil))["Accuracy"] {
		t.Error("10 correct in a row across sessions should earn Accuracy")
	}
}

func TestLongestStreak_ResetsOnWrong(t *testing.T) {
	run := func(n int) []ProblemRecord {
		out := make([]ProblemRecord, n)
		for i := range out {
			out[i] = correct(10)
		}
		return out
	}

	problems := append(run(9), wrong(10))
	problems = append(problems, run(9)...)
	h := History{Sessions: []SessionRecord{session(problems...)}}

	if got := LongestStreak(h); got != 9 {
		t.Fatalf("LongestStreak = %d, want 9", got)
	}
	if names(Evaluate(h, catalogWithIDs(), nil))["Accuracy"] {
		t.Error("broken streaks of 9 should not earn Accuracy")
	}
}

func TestLongestStreak_Empty(t *testing.T) {
	if got := LongestStreak(History{}); got != 0 {
		t.Errorf("LongestStreak(empty) = %d, want 0", got)
	}
}

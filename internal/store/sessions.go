package store

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/mentalmath/internal/achievements"
	"github.com/abhisek/mentalmath/internal/problemgen"
)

// SaveSession persists a finished session with its attempts and applies the
// scoring and promotion rules in one transaction.
//
// Promotion only happens when the session was played at the user's current
// level: replays of lower levels score points but never move the level.
func (s *Store) SaveSession(ctx context.Context, in SessionInput) (SaveResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return SaveResult{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	b := s.builder()
	if _, err := getUser(ctx, tx, b, in.UserID); err != nil {
		return SaveResult{}, err
	}

	correct := in.Correct()
	gained, accuracy := ScoreFor(correct, in.Target)

	var sessionID int64
	query, args := sessionInsert(b, in, correct)
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&sessionID); err != nil {
		return SaveResult{}, fmt.Errorf("insert session: %w", err)
	}

	for _, p := range in.Problems {
		query, args := problemInsert(b, sessionID, in.Level, p)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return SaveResult{}, fmt.Errorf("insert problem: %w", err)
		}
	}

	query, args = b.Update("users").
		Add("total_score", gained).
		Set("last_activity", in.FinishedAt.UTC()).
		Where(entsql.EQ("id", in.UserID)).
		Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return SaveResult{}, fmt.Errorf("add score: %w", err)
	}

	promoted := false
	if MeetsPromotionAccuracy(correct, in.Target) && in.Level < problemgen.MaxLevel {
		query, args := promoteUpdate(b, in.UserID, in.Level)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return SaveResult{}, fmt.Errorf("promote: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return SaveResult{}, fmt.Errorf("promote: %w", err)
		}
		promoted = n == 1
	}

	user, err := getUser(ctx, tx, b, in.UserID)
	if err != nil {
		return SaveResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return SaveResult{}, fmt.Errorf("commit: %w", err)
	}

	s.logger.Info("session saved",
		"user_id", in.UserID,
		"level", in.Level,
		"correct", correct,
		"target", in.Target,
		"score_gained", gained,
		"promoted", promoted,
	)
	return SaveResult{
		SessionID:   sessionID,
		ScoreGained: gained,
		Accuracy:    accuracy,
		Promoted:    promoted,
		NewLevel:    user.CurrentLevel,
		TotalScore:  user.TotalScore,
	}, nil
}

// sessionInsert builds the INSERT of a finished session. It returns the new
// row's id on both dialects.
func sessionInsert(b *entsql.DialectBuilder, in SessionInput, correct int) (string, []any) {
	return b.Insert("learning_sessions").
		Columns("session_key", "user_id", "level", "problems_solved", "correct_answers",
			"total_time", "completed", "started_at", "finished_at").
		Values(in.SessionKey, in.UserID, in.Level, len(in.Problems), correct,
			in.FinishedAt.Sub(in.StartedAt).Seconds(), in.Completed, in.StartedAt.UTC(), in.FinishedAt.UTC()).
		Returning("id").
		Query()
}

func problemInsert(b *entsql.DialectBuilder, sessionID int64, level int, p ProblemInput) (string, []any) {
	var answer any
	if p.UserAnswer != nil {
		answer = *p.UserAnswer
	}
	return b.Insert("problems").
		Columns("session_id", "level", "problem_text", "correct_answer", "user_answer",
			"is_correct", "time_taken", "answered_at").
		Values(sessionID, level, p.Text, p.CorrectAnswer, answer,
			p.IsCorrect, p.TimeTaken.Seconds(), p.AnsweredAt.UTC()).
		Query()
}

// promoteUpdate raises the user to level+1 only while their stored level is
// still level, so a replayed or concurrent save never promotes twice.
func promoteUpdate(b *entsql.DialectBuilder, userID int64, level int) (string, []any) {
	return b.Update("users").
		Set("current_level", level+1).
		Where(entsql.And(
			entsql.EQ("id", userID),
			entsql.EQ("current_level", level),
		)).
		Query()
}

// GetStats summarizes the user's sessions.
func (s *Store) GetStats(ctx context.Context, userID int64) (Stats, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Level: user.CurrentLevel, TotalScore: user.TotalScore}

	b := s.builder()
	query, args := b.Select("problems_solved", "correct_answers", "completed").
		From(b.Table("learning_sessions")).
		Where(entsql.EQ("user_id", userID)).
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Stats{}, fmt.Errorf("query sessions: %w", err)
	}
	for rows.Next() {
		var solved, correct int
		var completed bool
		if err := rows.Scan(&solved, &correct, &completed); err != nil {
			rows.Close()
			return Stats{}, fmt.Errorf("scan session: %w", err)
		}
		st.TotalSessions++
		if completed {
			st.CompletedSessions++
		}
		st.TotalProblems += solved
		st.CorrectAnswers += correct
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("query sessions: %w", err)
	}

	if st.TotalProblems > 0 {
		st.Accuracy = float64(st.CorrectAnswers) / float64(st.TotalProblems) * 100
	}

	query, args = b.Select(entsql.Count("*")).
		From(b.Table("user_achievements")).
		Where(entsql.EQ("user_id", userID)).
		Query()
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.AchievementsCount); err != nil {
		return Stats{}, fmt.Errorf("count achievements: %w", err)
	}
	return st, nil
}

// History loads the user's level and every persisted attempt, oldest first.
func (s *Store) History(ctx context.Context, userID int64) (achievements.History, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return achievements.History{}, err
	}
	h := achievements.History{CurrentLevel: user.CurrentLevel}

	b := s.builder()
	query, args := b.Select("id", "problems_solved").
		From(b.Table("learning_sessions")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy("id").
		Query()
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return h, fmt.Errorf("query sessions: %w", err)
	}
	index := make(map[int64]int)
	for rows.Next() {
		var id int64
		var rec achievements.SessionRecord
		if err := rows.Scan(&id, &rec.ProblemsSolved); err != nil {
			rows.Close()
			return h, fmt.Errorf("scan session: %w", err)
		}
		index[id] = len(h.Sessions)
		h.Sessions = append(h.Sessions, rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return h, fmt.Errorf("query sessions: %w", err)
	}
	if len(h.Sessions) == 0 {
		return h, nil
	}

	p := b.Table("problems")
	ls := b.Table("learning_sessions")
	query, args = b.Select(p.C("session_id"), p.C("is_correct"), p.C("time_taken")).
		From(p).
		Join(ls).On(p.C("session_id"), ls.C("id")).
		Where(entsql.EQ(ls.C("user_id"), userID)).
		OrderBy(p.C("session_id"), p.C("id")).
		Query()
	rows, err = s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return h, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sessionID int64
		var rec achievements.ProblemRecord
		if err := rows.Scan(&sessionID, &rec.IsCorrect, &rec.TimeTakenSecs); err != nil {
			return h, fmt.Errorf("scan problem: %w", err)
		}
		if i, ok := index[sessionID]; ok {
			h.Sessions[i].Problems = append(h.Sessions[i].Problems, rec)
		}
	}
	return h, rows.Err()
}

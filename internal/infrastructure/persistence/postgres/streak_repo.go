package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/shared"
	"github.com/alem-hub/progress-engine/internal/domain/streak"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StreakRepository implements streak.Repository for PostgreSQL.
type StreakRepository struct {
	conn *Connection
	loc  *time.Location
}

// NewStreakRepository creates a new StreakRepository.
func NewStreakRepository(conn *Connection, loc *time.Location) *StreakRepository {
	return &StreakRepository{conn: conn, loc: loc}
}

const streakColumns = `user_id, current_streak, longest_streak, last_active_date, updated_at`

func (r *StreakRepository) scan(row pgx.Row) (*streak.State, error) {
	var s streak.State
	var userID string
	if err := row.Scan(&userID, &s.CurrentStreak, &s.LongestStreak, &s.LastActiveDate, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.UserID = shared.UserID(userID)
	if s.LastActiveDate != nil {
		local := s.LastActiveDate.In(r.loc)
		s.LastActiveDate = &local
	}
	return &s, nil
}

// Get returns the user's streak.
func (r *StreakRepository) Get(ctx context.Context, userID shared.UserID) (*streak.State, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+streakColumns+` FROM streaks WHERE user_id = $1`, userID.String())
	s, err := r.scan(row)
	return s, mapError("GetStreak", err, shared.ErrStreakNotFound)
}

// Update locks the row, applies fn and writes back when fn reports a change.
func (r *StreakRepository) Update(ctx context.Context, userID shared.UserID, fn func(s *streak.State) bool) (*streak.State, error) {
	var result *streak.State
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO streaks (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING
		`, userID.String()); err != nil {
			return err
		}

		state, err := r.scan(tx.QueryRow(ctx, `
			SELECT `+streakColumns+` FROM streaks WHERE user_id = $1 FOR UPDATE
		`, userID.String()))
		if err != nil {
			return err
		}

		if !fn(state) {
			result = state
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE streaks
			SET current_streak = $2, longest_streak = $3, last_active_date = $4, updated_at = $5
			WHERE user_id = $1
		`, userID.String(), state.CurrentStreak, state.LongestStreak, state.LastActiveDate, state.UpdatedAt)
		result = state
		return err
	})
	if err != nil {
		return nil, mapError("UpdateStreak", err, nil)
	}
	return result, nil
}

// ListStale returns up to limit non-zero streaks whose last active day is before cutoff.
func (r *StreakRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*streak.State, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+streakColumns+`
		FROM streaks
		WHERE current_streak > 0 AND last_active_date < $1
		ORDER BY user_id
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, mapError("ListStaleStreaks", err, nil)
	}
	defer rows.Close()

	out := make([]*streak.State, 0)
	for rows.Next() {
		s, err := r.scan(rows)
		if err != nil {
			return nil, mapError("ScanStreak", err, nil)
		}
		out = append(out, s)
	}
	return out, mapError("ScanStreak", rows.Err(), nil)
}

// ResetIfStale zeroes the streak only if it is still stale.
func (r *StreakRepository) ResetIfStale(ctx context.Context, userID shared.UserID, cutoff, now time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE streaks SET current_streak = 0, updated_at = $3
		WHERE user_id = $1 AND current_streak > 0 AND last_active_date < $2
	`, userID.String(), cutoff, now)
	if err != nil {
		return false, mapError("ResetStreak", err, nil)
	}
	return tag.RowsAffected() == 1, nil
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/ledger"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LedgerRepository implements ledger.Repository for PostgreSQL.
type LedgerRepository struct {
	conn *Connection
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(conn *Connection) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

const weeklyXPColumns = `user_id, iso_year, iso_week, xp, seq, created_at, updated_at`

func scanWeeklyXP(row pgx.Row) (*ledger.WeeklyXPEntry, error) {
	var e ledger.WeeklyXPEntry
	var userID string
	if err := row.Scan(&userID, &e.Key.Year, &e.Key.Week, &e.XP, &e.Seq, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.UserID = shared.UserID(userID)
	return &e, nil
}

// Increment adds amount in one upsert; concurrent increments never lose updates.
func (r *LedgerRepository) Increment(ctx context.Context, userID shared.UserID, key ledger.WeekKey, amount int, at time.Time) (*ledger.WeeklyXPEntry, error) {
	return incrementWeeklyXP(ctx, r.conn, userID, key, amount, at)
}

// incrementWeeklyXP runs the XP upsert on q, which may be a transaction.
func incrementWeeklyXP(ctx context.Context, q Querier, userID shared.UserID, key ledger.WeekKey, amount int, at time.Time) (*ledger.WeeklyXPEntry, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO weekly_xp (user_id, iso_year, iso_week, xp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, iso_year, iso_week)
		DO UPDATE SET xp = weekly_xp.xp + EXCLUDED.xp, updated_at = EXCLUDED.updated_at
		RETURNING `+weeklyXPColumns,
		userID.String(), key.Year, key.Week, amount, at,
	)
	e, err := scanWeeklyXP(row)
	return e, mapError("IncrementWeeklyXP", err, nil)
}

// Ensure creates an empty entry if none exists.
func (r *LedgerRepository) Ensure(ctx context.Context, userID shared.UserID, key ledger.WeekKey, at time.Time) (*ledger.WeeklyXPEntry, error) {
	// The no-op update makes RETURNING yield the existing row.
	row := r.conn.QueryRow(ctx, `
		INSERT INTO weekly_xp (user_id, iso_year, iso_week, xp, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, $4)
		ON CONFLICT (user_id, iso_year, iso_week)
		DO UPDATE SET xp = weekly_xp.xp
		RETURNING `+weeklyXPColumns,
		userID.String(), key.Year, key.Week, at,
	)
	e, err := scanWeeklyXP(row)
	return e, mapError("EnsureWeeklyXP", err, nil)
}

// SeedWeek copies every participant of from into to with zero XP.
func (r *LedgerRepository) SeedWeek(ctx context.Context, from, to ledger.WeekKey, at time.Time) (int, error) {
	tag, err := r.conn.Exec(ctx, `
		INSERT INTO weekly_xp (user_id, iso_year, iso_week, xp, created_at, updated_at)
		SELECT user_id, $3, $4, 0, $5, $5
		FROM weekly_xp
		WHERE iso_year = $1 AND iso_week = $2
		ORDER BY xp DESC, seq ASC
		ON CONFLICT (user_id, iso_year, iso_week) DO NOTHING
	`, from.Year, from.Week, to.Year, to.Week, at)
	if err != nil {
		return 0, mapError("SeedWeek", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

// Get returns one entry.
func (r *LedgerRepository) Get(ctx context.Context, userID shared.UserID, key ledger.WeekKey) (*ledger.WeeklyXPEntry, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT `+weeklyXPColumns+`
		FROM weekly_xp
		WHERE user_id = $1 AND iso_year = $2 AND iso_week = $3
	`, userID.String(), key.Year, key.Week)
	e, err := scanWeeklyXP(row)
	return e, mapError("GetWeeklyXP", err, shared.ErrNotFound)
}

// ListWeek returns all entries of the window in ranking order.
func (r *LedgerRepository) ListWeek(ctx context.Context, key ledger.WeekKey) ([]*ledger.WeeklyXPEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+weeklyXPColumns+`
		FROM weekly_xp
		WHERE iso_year = $1 AND iso_week = $2
		ORDER BY xp DESC, seq ASC
	`, key.Year, key.Week)
	if err != nil {
		return nil, mapError("ListWeek", err, nil)
	}
	return collectWeeklyXP(rows)
}

// ListUser returns the user's entries, newest window first.
func (r *LedgerRepository) ListUser(ctx context.Context, userID shared.UserID, limit int) ([]*ledger.WeeklyXPEntry, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+weeklyXPColumns+`
		FROM weekly_xp
		WHERE user_id = $1
		ORDER BY iso_year DESC, iso_week DESC
		LIMIT $2
	`, userID.String(), limit)
	if err != nil {
		return nil, mapError("ListUserWeeks", err, nil)
	}
	return collectWeeklyXP(rows)
}

func collectWeeklyXP(rows pgx.Rows) ([]*ledger.WeeklyXPEntry, error) {
	defer rows.Close()

	out := make([]*ledger.WeeklyXPEntry, 0)
	for rows.Next() {
		e, err := scanWeeklyXP(rows)
		if err != nil {
			return nil, mapError("ScanWeeklyXP", err, nil)
		}
		out = append(out, e)
	}
	return out, mapError("ScanWeeklyXP", rows.Err(), nil)
}

package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/reward"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// BalanceRepository implements reward.BalanceRepository for PostgreSQL.
type BalanceRepository struct {
	conn *Connection
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(conn *Connection) *BalanceRepository {
	return &BalanceRepository{conn: conn}
}

func scanBalance(row pgx.Row) (*reward.Balance, error) {
	var b reward.Balance
	var userID string
	if err := row.Scan(&userID, &b.Points, &b.Gems, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.UserID = shared.UserID(userID)
	return &b, nil
}

// Add credits points and gems in one upsert.
func (r *BalanceRepository) Add(ctx context.Context, userID shared.UserID, points, gems int, at time.Time) (*reward.Balance, error) {
	return addBalance(ctx, r.conn, userID, points, gems, at)
}

func addBalance(ctx context.Context, q Querier, userID shared.UserID, points, gems int, at time.Time) (*reward.Balance, error) {
	row := q.QueryRow(ctx, `
		INSERT INTO reward_balances (user_id, points, gems, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			points = reward_balances.points + EXCLUDED.points,
			gems = reward_balances.gems + EXCLUDED.gems,
			updated_at = EXCLUDED.updated_at
		RETURNING user_id, points, gems, updated_at
	`, userID.String(), points, gems, at)
	b, err := scanBalance(row)
	return b, mapError("AddBalance", err, nil)
}

// Get returns the user's balance.
func (r *BalanceRepository) Get(ctx context.Context, userID shared.UserID) (*reward.Balance, error) {
	row := r.conn.QueryRow(ctx, `
		SELECT user_id, points, gems, updated_at FROM reward_balances WHERE user_id = $1
	`, userID.String())
	b, err := scanBalance(row)
	return b, mapError("GetBalance", err, shared.ErrNotFound)
}

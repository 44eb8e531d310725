package postgres

import (
	"context"
	"time"
)

// Store bundles all PostgreSQL repositories over one connection pool.
type Store struct {
	conn *Connection

	Ledger      *LedgerRepository
	Quests      *QuestRepository
	Definitions *DefinitionRepository
	Challenges  *ChallengeRepository
	Streaks     *StreakRepository
	Balances    *BalanceRepository
	Claims      *ClaimStore
}

// NewStore connects, applies pending migrations and builds the repositories.
// loc is the engine's business timezone used for dates read back from the database.
func NewStore(ctx context.Context, cfg Config, loc *time.Location) (*Store, error) {
	conn, err := NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := NewMigrator(conn).Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	quests := NewQuestRepository(conn, loc)
	return &Store{
		conn:        conn,
		Ledger:      NewLedgerRepository(conn),
		Quests:      quests,
		Definitions: NewDefinitionRepository(conn),
		Challenges:  NewChallengeRepository(conn),
		Streaks:     NewStreakRepository(conn, loc),
		Balances:    NewBalanceRepository(conn),
		Claims:      NewClaimStore(conn, quests),
	}, nil
}

// Connection returns the underlying connection.
func (s *Store) Connection() *Connection {
	return s.conn
}

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

// Close closes the pool.
func (s *Store) Close() {
	s.conn.Close()
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/progress-engine/internal/domain/quest"
	"github.com/alem-hub/progress-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUEST INSTANCE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// QuestRepository implements quest.Repository for PostgreSQL.
type QuestRepository struct {
	conn *Connection
	loc  *time.Location
}

// NewQuestRepository creates a new QuestRepository. Dates are returned in loc.
func NewQuestRepository(conn *Connection, loc *time.Location) *QuestRepository {
	return &QuestRepository{conn: conn, loc: loc}
}

const questColumns = `id, user_id, definition_id, type, title, day_start, target, progress, status,
	min_accuracy, challenge_type, reward_xp, reward_gems, completed_at, claimed, claimed_at,
	expires_at, created_at`

func (r *QuestRepository) scan(row pgx.Row) (*quest.Instance, error) {
	var (
		inst                   quest.Instance
		userID, typ, status    string
		minAccuracy            int
		completedAt, claimedAt *time.Time
	)
	err := row.Scan(
		&inst.ID, &userID, &inst.DefinitionID, &typ, &inst.Title, &inst.Date,
		&inst.Target, &inst.Progress, &status, &minAccuracy, &inst.ChallengeType,
		&inst.Reward.XP, &inst.Reward.Gems, &completedAt, &inst.Claimed, &claimedAt,
		&inst.ExpiresAt, &inst.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	inst.UserID = shared.UserID(userID)
	inst.Type = quest.Type(typ)
	inst.Status = quest.Status(status)
	inst.MinAccuracy = shared.Accuracy(minAccuracy)
	inst.Date = inst.Date.In(r.loc)
	inst.ExpiresAt = inst.ExpiresAt.In(r.loc)
	inst.CompletedAt = completedAt
	inst.ClaimedAt = claimedAt
	return &inst, nil
}

func (r *QuestRepository) collect(rows pgx.Rows) ([]*quest.Instance, error) {
	defer rows.Close()

	out := make([]*quest.Instance, 0)
	for rows.Next() {
		inst, err := r.scan(rows)
		if err != nil {
			return nil, mapError("ScanQuest", err, nil)
		}
		out = append(out, inst)
	}
	return out, mapError("ScanQuest", rows.Err(), nil)
}

// ─────────────────────────────────────────────────────────────────────────────
// GENERATION
// ─────────────────────────────────────────────────────────────────────────────

// CreateDaily inserts the batch unless the user already has quests for date.
// A transaction-scoped advisory lock on (user, day) serialises generators.
func (r *QuestRepository) CreateDaily(ctx context.Context, userID shared.UserID, date time.Time, batch []*quest.Instance) ([]*quest.Instance, bool, error) {
	var (
		result  []*quest.Instance
		created bool
	)
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		lockKey := fmt.Sprintf("quest-daily|%s|%d", userID, date.Unix())
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
			return err
		}

		existing, err := r.listByUserDate(ctx, tx, userID, date)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			result = existing
			return nil
		}

		b := &pgx.Batch{}
		for slot, inst := range batch {
			b.Queue(`
				INSERT INTO quest_instances
				(id, user_id, definition_id, slot, type, title, day_start, target, progress, status,
				 min_accuracy, challenge_type, reward_xp, reward_gems, expires_at, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			`,
				inst.ID, inst.UserID.String(), inst.DefinitionID, slot, string(inst.Type), inst.Title,
				inst.Date, inst.Target, inst.Progress, string(inst.Status),
				int(inst.MinAccuracy), inst.ChallengeType, inst.Reward.XP, inst.Reward.Gems,
				inst.ExpiresAt, inst.CreatedAt,
			)
		}
		br := tx.SendBatch(ctx, b)
		for range batch {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}

		result, err = r.listByUserDate(ctx, tx, userID, date)
		created = true
		return err
	})
	if err != nil {
		return nil, false, mapError("CreateDaily", err, nil)
	}
	return result, created, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// READS
// ─────────────────────────────────────────────────────────────────────────────

// Get returns an instance by ID.
func (r *QuestRepository) Get(ctx context.Context, id string) (*quest.Instance, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+questColumns+` FROM quest_instances WHERE id = $1`, id)
	inst, err := r.scan(row)
	return inst, mapError("GetQuest", err, shared.ErrQuestNotFound)
}

// ListByUserDate returns the user's quests for one day in generation order.
func (r *QuestRepository) ListByUserDate(ctx context.Context, userID shared.UserID, date time.Time) ([]*quest.Instance, error) {
	out, err := r.listByUserDate(ctx, r.conn, userID, date)
	return out, mapError("ListDailyQuests", err, nil)
}

func (r *QuestRepository) listByUserDate(ctx context.Context, q Querier, userID shared.UserID, date time.Time) ([]*quest.Instance, error) {
	rows, err := q.Query(ctx, `
		SELECT `+questColumns+`
		FROM quest_instances
		WHERE user_id = $1 AND day_start = $2
		ORDER BY slot, id
	`, userID.String(), date)
	if err != nil {
		return nil, err
	}
	return r.collect(rows)
}

// ListClaimable returns completed, unclaimed, unexpired instances.
func (r *QuestRepository) ListClaimable(ctx context.Context, userID shared.UserID, now time.Time) ([]*quest.Instance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+questColumns+`
		FROM quest_instances
		WHERE user_id = $1 AND status = 'COMPLETED' AND NOT claimed AND expires_at >= $2
		ORDER BY day_start, id
	`, userID.String(), now)
	if err != nil {
		return nil, mapError("ListClaimable", err, nil)
	}
	return r.collect(rows)
}

// ListOverdue returns up to limit non-terminal instances past their deadline.
func (r *QuestRepository) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*quest.Instance, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+questColumns+`
		FROM quest_instances
		WHERE status IN ('IN_PROGRESS', 'COMPLETED') AND expires_at < $1
		ORDER BY day_start, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, mapError("ListOverdue", err, nil)
	}
	return r.collect(rows)
}

// CountCompleted counts COMPLETED and CLAIMED instances with a day in [from, to).
func (r *QuestRepository) CountCompleted(ctx context.Context, userID shared.UserID, from, to time.Time) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM quest_instances
		WHERE user_id = $1 AND status IN ('COMPLETED', 'CLAIMED')
		  AND day_start >= $2 AND day_start < $3
	`, userID.String(), from, to).Scan(&n)
	return n, mapError("CountCompleted", err, nil)
}

// ─────────────────────────────────────────────────────────────────────────────
// TRANSITIONS
// ─────────────────────────────────────────────────────────────────────────────

// AddProgress clamps and completes in one statement. SET expressions see the
// pre-update row, so the completing update is the only one whose RETURNING
// shows status COMPLETED with the old row IN_PROGRESS.
func (r *QuestRepository) AddProgress(ctx context.Context, id string, amount int, now time.Time) (*quest.Instance, bool, error) {
	if amount < 0 {
		return nil, false, shared.ErrNegativeProgress
	}
	if amount == 0 {
		inst, err := r.Get(ctx, id)
		return inst, false, err
	}

	row := r.conn.QueryRow(ctx, `
		UPDATE quest_instances SET
			progress = LEAST(progress + $2, target),
			status = CASE WHEN progress + $2 >= target THEN 'COMPLETED' ELSE status END,
			completed_at = CASE WHEN progress + $2 >= target THEN $3 ELSE completed_at END
		WHERE id = $1 AND status = 'IN_PROGRESS' AND expires_at >= $3
		RETURNING `+questColumns,
		id, amount, now,
	)
	inst, err := r.scan(row)
	if IsNoRows(err) {
		// Not in progress or overdue: no-op, report current state.
		inst, err = r.Get(ctx, id)
		return inst, false, err
	}
	if err != nil {
		return nil, false, mapError("AddProgress", err, nil)
	}
	return inst, inst.Status == quest.StatusCompleted, nil
}

// Expire moves an overdue non-terminal instance to EXPIRED.
func (r *QuestRepository) Expire(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE quest_instances SET status = 'EXPIRED'
		WHERE id = $1 AND status IN ('IN_PROGRESS', 'COMPLETED') AND expires_at < $2
	`, id, now)
	if err != nil {
		return false, mapError("ExpireQuest", err, nil)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// QUEST DEFINITION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// DefinitionRepository implements quest.DefinitionRepository for PostgreSQL.
type DefinitionRepository struct {
	conn *Connection
}

// NewDefinitionRepository creates a new DefinitionRepository.
func NewDefinitionRepository(conn *Connection) *DefinitionRepository {
	return &DefinitionRepository{conn: conn}
}

const definitionColumns = `id, type, title, description, target_value, reward_xp, reward_gems,
	min_accuracy, challenge_type, active`

func scanDefinition(row pgx.Row) (*quest.Definition, error) {
	var (
		d           quest.Definition
		typ         string
		minAccuracy int
	)
	err := row.Scan(&d.ID, &typ, &d.Title, &d.Description, &d.TargetValue,
		&d.Reward.XP, &d.Reward.Gems, &minAccuracy, &d.ChallengeType, &d.Active)
	if err != nil {
		return nil, err
	}
	d.Type = quest.Type(typ)
	d.MinAccuracy = shared.Accuracy(minAccuracy)
	return &d, nil
}

// ListActive returns active definitions.
func (r *DefinitionRepository) ListActive(ctx context.Context) ([]quest.Definition, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT `+definitionColumns+`
		FROM quest_definitions
		WHERE active
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, mapError("ListDefinitions", err, nil)
	}
	defer rows.Close()

	out := make([]quest.Definition, 0)
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, mapError("ScanDefinition", err, nil)
		}
		out = append(out, *d)
	}
	return out, mapError("ScanDefinition", rows.Err(), nil)
}

// GetDefinition returns one definition, active or not.
func (r *DefinitionRepository) GetDefinition(ctx context.Context, id string) (*quest.Definition, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+definitionColumns+` FROM quest_definitions WHERE id = $1`, id)
	d, err := scanDefinition(row)
	return d, mapError("GetDefinition", err, shared.ErrQuestDefinitionNotFound)
}

// Upsert stores definitions; used to sync a YAML catalog into the database.
func (r *DefinitionRepository) Upsert(ctx context.Context, defs []quest.Definition) error {
	return mapError("UpsertDefinitions", r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		for _, d := range defs {
			_, err := tx.Exec(ctx, `
				INSERT INTO quest_definitions
				(id, type, title, description, target_value, reward_xp, reward_gems, min_accuracy, challenge_type, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				ON CONFLICT (id) DO UPDATE SET
					type = EXCLUDED.type,
					title = EXCLUDED.title,
					description = EXCLUDED.description,
					target_value = EXCLUDED.target_value,
					reward_xp = EXCLUDED.reward_xp,
					reward_gems = EXCLUDED.reward_gems,
					min_accuracy = EXCLUDED.min_accuracy,
					challenge_type = EXCLUDED.challenge_type,
					active = EXCLUDED.active
			`, d.ID, string(d.Type), d.Title, d.Description, d.TargetValue,
				d.Reward.XP, d.Reward.Gems, int(d.MinAccuracy), d.ChallengeType, d.Active)
			if err != nil {
				return fmt.Errorf("definition %s: %w", d.ID, err)
			}
		}
		return nil
	}), nil)
}

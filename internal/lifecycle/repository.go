package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides the transactional lifecycle operations on admins.
// Every mutation re-reads the row under a lock so the precondition it
// enforces holds at commit time, not just at check time.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new lifecycle repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SetActive flips the admin's active flag and stamps the change.
// Returns InvalidState when the admin is already in the target state.
func (r *Repository) SetActive(ctx context.Context, id types.ID, active bool, by types.ID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	var current bool
	err = tx.QueryRow(ctx, `SELECT active FROM org.admins WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return errors.NotFound("admin", id.String())
	}
	if err != nil {
		return errors.Wrap(err, "failed to lock admin")
	}

	if current == active {
		if active {
			return errors.InvalidState("admin is already active")
		}
		return errors.InvalidState("admin is already disabled")
	}

	_, err = tx.Exec(ctx, `
		UPDATE org.admins
		SET active = $2, status_changed_at = $3, status_changed_by = $4, status_reason = $5, updated_at = now()
		WHERE id = $1`,
		id, active, time.Now().UTC(), by, reason,
	)
	if err != nil {
		return errors.Wrap(err, "failed to update admin status")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// MoveJurisdiction atomically moves the jurisdiction pair from one
// admin to another. Both rows are locked in id order so two concurrent
// moves touching the same admins cannot deadlock. The destination must
// be active, hold the same role as the source and carry no jurisdiction
// of its own. In replace mode the source is deactivated in the same
// transaction; in transfer mode it stays active without a jurisdiction.
func (r *Repository) MoveJurisdiction(ctx context.Context, fromID, toID types.ID, mode MoveMode, by types.ID, reason string) (*MoveResult, error) {
	if fromID == toID {
		return nil, errors.InvalidState("source and destination admin are the same")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	rows, err := r.lockPair(ctx, tx, fromID, toID)
	if err != nil {
		return nil, err
	}

	source, ok := rows[fromID]
	if !ok {
		return nil, errors.NotFound("admin", fromID.String())
	}
	dest, ok := rows[toID]
	if !ok {
		return nil, errors.NotFound("admin", toID.String())
	}

	if source.Level == nil || source.NodeID == nil {
		return nil, errors.InvalidState("source admin holds no jurisdiction")
	}
	if dest.Level != nil || dest.NodeID != nil {
		return nil, errors.InvalidState("destination admin already holds a jurisdiction")
	}
	if source.Role != dest.Role {
		return nil, errors.InvalidState(fmt.Sprintf("destination role %s does not match source role %s", dest.Role, source.Role))
	}
	if !dest.Active {
		return nil, errors.InvalidState("destination admin is disabled")
	}
	if !source.Active {
		return nil, errors.InvalidState("source admin is disabled")
	}

	now := time.Now().UTC()

	if mode == MoveReplace {
		_, err = tx.Exec(ctx, `
			UPDATE org.admins
			SET jurisdiction_level = NULL, jurisdiction_node_id = NULL,
				active = false, status_changed_at = $2, status_changed_by = $3, status_reason = $4,
				updated_at = now()
			WHERE id = $1`,
			fromID, now, by, reason,
		)
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE org.admins
			SET jurisdiction_level = NULL, jurisdiction_node_id = NULL, updated_at = now()
			WHERE id = $1`,
			fromID,
		)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to clear source jurisdiction")
	}

	_, err = tx.Exec(ctx, `
		UPDATE org.admins
		SET jurisdiction_level = $2, jurisdiction_node_id = $3, updated_at = now()
		WHERE id = $1`,
		toID, *source.Level, *source.NodeID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to assign destination jurisdiction")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	return &MoveResult{
		Mode:        mode,
		FromAdminID: fromID,
		ToAdminID:   toID,
		Level:       *source.Level,
		NodeID:      *source.NodeID,
		MovedAt:     now,
	}, nil
}

// lockPair locks both admin rows in id order
func (r *Repository) lockPair(ctx context.Context, tx pgx.Tx, a, b types.ID) (map[types.ID]adminRow, error) {
	query := `
		SELECT id, role, jurisdiction_level, jurisdiction_node_id, active
		FROM org.admins
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`

	rows, err := tx.Query(ctx, query, []string{a.String(), b.String()})
	if err != nil {
		return nil, errors.Wrap(err, "failed to lock admins")
	}
	defer rows.Close()

	result := make(map[types.ID]adminRow, 2)
	for rows.Next() {
		var row adminRow
		var level *access.Level
		var nodeID *types.ID
		if err := rows.Scan(&row.ID, &row.Role, &level, &nodeID, &row.Active); err != nil {
			return nil, errors.Wrap(err, "failed to scan admin")
		}
		row.Level = level
		row.NodeID = nodeID
		result[row.ID] = row
	}

	return result, nil
}

// GetJurisdiction reads the current jurisdiction pair of an admin
func (r *Repository) GetJurisdiction(ctx context.Context, id types.ID) (*access.Level, *types.ID, access.Role, error) {
	var level *access.Level
	var nodeID *types.ID
	var role access.Role

	err := r.pool.QueryRow(ctx, `
		SELECT jurisdiction_level, jurisdiction_node_id, role
		FROM org.admins
		WHERE id = $1`, id,
	).Scan(&level, &nodeID, &role)

	if err == pgx.ErrNoRows {
		return nil, nil, "", errors.NotFound("admin", id.String())
	}
	if err != nil {
		return nil, nil, "", errors.Wrap(err, "failed to get jurisdiction")
	}

	return level, nodeID, role, nil
}

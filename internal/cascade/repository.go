package cascade

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/metrics"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxConflictRetries bounds the internal retries on serialization
// failures before the conflict surfaces to the caller
const maxConflictRetries = 3

// Repository provides database operations for events, delegation sets
// and station assignments
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new cascade repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// --- Event Operations ---

// CreateEvent inserts the event and its initial delegation rows in one
// transaction
func (r *Repository) CreateEvent(ctx context.Context, event *Event, initial map[DelegationKind][]types.ID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO events.events (
			id, title, description, status, starts_at, ends_at,
			created_by, creator_role
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = tx.Exec(ctx, query,
		event.ID, event.Title, event.Description, event.Status,
		event.StartsAt, event.EndsAt, event.CreatedBy, event.CreatorRole,
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("event already exists")
		}
		return errors.Wrap(err, "failed to create event")
	}

	for kind, ids := range initial {
		for _, id := range ids {
			_, err = tx.Exec(ctx, `
				INSERT INTO events.delegations (event_id, kind, node_id, delegated_by)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (event_id, kind, node_id) DO NOTHING`,
				event.ID, kind, id, event.CreatedBy,
			)
			if err != nil {
				return errors.Wrap(err, "failed to insert delegation")
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	return nil
}

// GetEvent retrieves an event by ID
func (r *Repository) GetEvent(ctx context.Context, id types.ID) (*Event, error) {
	query := `
		SELECT id, title, description, status, starts_at, ends_at,
			created_by, creator_role, created_at, updated_at
		FROM events.events
		WHERE id = $1`

	event := &Event{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&event.ID, &event.Title, &event.Description, &event.Status,
		&event.StartsAt, &event.EndsAt,
		&event.CreatedBy, &event.CreatorRole,
		&event.CreatedAt, &event.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("event", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get event")
	}

	return event, nil
}

// ListEventsForScope lists events visible to an admin scope. An event
// is visible when one of the admin's jurisdiction nodes, or a direct
// ancestor of them, is a member of a delegation set.
func (r *Repository) ListEventsForScope(ctx context.Context, scope access.Scope, filter ListEventsFilter) ([]Event, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	switch scope.Role {
	case access.RoleSuperAdmin:
		// sees everything

	case access.RoleStateAdmin:
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM events.delegations d
			WHERE d.event_id = e.id AND d.kind = 'state' AND d.node_id = $%d
		)`, argNum))
		args = append(args, scope.StateID)
		argNum++

	case access.RoleBranchAdmin:
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM events.delegations d
			WHERE d.event_id = e.id AND (
				(d.kind = 'branch' AND d.node_id = $%d) OR
				(d.kind = 'state' AND d.node_id = $%d)
			)
		)`, argNum, argNum+1))
		args = append(args, scope.BranchID, scope.StateID)
		argNum += 2

	case access.RoleZonalAdmin:
		conditions = append(conditions, fmt.Sprintf(`EXISTS (
			SELECT 1 FROM events.delegations d
			WHERE d.event_id = e.id AND (
				(d.kind = 'zone' AND d.node_id = $%d) OR
				(d.kind = 'branch' AND d.node_id = $%d)
			)
		)`, argNum, argNum+1))
		args = append(args, scope.ZoneID, scope.BranchID)
		argNum += 2

	default:
		return nil, 0, errors.Forbidden("role may not list events")
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events.events e %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count events")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.title, e.description, e.status, e.starts_at, e.ends_at,
			e.created_by, e.creator_role, e.created_at, e.updated_at
		FROM events.events e
		%s
		ORDER BY e.starts_at DESC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list events")
	}
	defer rows.Close()

	var eventsList []Event
	for rows.Next() {
		var event Event
		err := rows.Scan(
			&event.ID, &event.Title, &event.Description, &event.Status,
			&event.StartsAt, &event.EndsAt,
			&event.CreatedBy, &event.CreatorRole,
			&event.CreatedAt, &event.UpdatedAt,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan event")
		}
		eventsList = append(eventsList, event)
	}

	return eventsList, total, nil
}

// --- Delegation Operations ---

// GetDelegations loads the full delegation sets of an event
func (r *Repository) GetDelegations(ctx context.Context, eventID types.ID) (DelegationSets, error) {
	var sets DelegationSets

	query := `
		SELECT kind, node_id
		FROM events.delegations
		WHERE event_id = $1
		ORDER BY delegated_at`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return sets, errors.Wrap(err, "failed to get delegations")
	}
	defer rows.Close()

	for rows.Next() {
		var kind DelegationKind
		var nodeID types.ID
		if err := rows.Scan(&kind, &nodeID); err != nil {
			return sets, errors.Wrap(err, "failed to scan delegation")
		}

		switch kind {
		case DelegationState:
			sets.States = append(sets.States, nodeID)
		case DelegationBranch:
			sets.Branches = append(sets.Branches, nodeID)
		case DelegationZone:
			sets.Zones = append(sets.Zones, nodeID)
		}
	}

	err = r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM events.station_assignments WHERE event_id = $1)`,
		eventID,
	).Scan(&sets.StationsAssigned)
	if err != nil {
		return sets, errors.Wrap(err, "failed to check station assignments")
	}

	return sets, nil
}

// AppendDelegations adds nodes to a delegation set. Duplicates fall
// through silently: two admins appending the same node concurrently
// both succeed and the set stays a set.
func (r *Repository) AppendDelegations(ctx context.Context, eventID types.ID, kind DelegationKind, ids []types.ID, by types.ID) (int, error) {
	inserted := 0

	err := r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		defer tx.Rollback(ctx)

		inserted = 0
		for _, id := range ids {
			tag, err := tx.Exec(ctx, `
				INSERT INTO events.delegations (event_id, kind, node_id, delegated_by)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (event_id, kind, node_id) DO NOTHING`,
				eventID, kind, id, by,
			)
			if err != nil {
				return err
			}
			inserted += int(tag.RowsAffected())
		}

		return tx.Commit(ctx)
	})

	if err != nil {
		return 0, err
	}

	return inserted, nil
}

// --- Station Assignment Operations ---

// ReplaceZoneStations replaces the station selection of one zone. The
// event row is locked first so two assignments for different zones of
// the same event serialize without touching each other's rows.
func (r *Repository) ReplaceZoneStations(ctx context.Context, eventID, zoneID types.ID, assignments []StationAssignment) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return errors.Wrap(err, "failed to begin transaction")
		}
		defer tx.Rollback(ctx)

		var exists bool
		err = tx.QueryRow(ctx, `SELECT true FROM events.events WHERE id = $1 FOR UPDATE`, eventID).Scan(&exists)
		if err == pgx.ErrNoRows {
			return errors.NotFound("event", eventID.String())
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			DELETE FROM events.station_assignments
			WHERE event_id = $1 AND zone_id = $2`,
			eventID, zoneID,
		)
		if err != nil {
			return err
		}

		for _, a := range assignments {
			_, err = tx.Exec(ctx, `
				INSERT INTO events.station_assignments (
					event_id, zone_id, station_id, capacity, occupancy, assigned_by
				) VALUES ($1, $2, $3, $4, $5, $6)`,
				a.EventID, a.ZoneID, a.StationID, a.Capacity, a.Occupancy, a.AssignedBy,
			)
			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}

// ListAssignments lists the station assignments of an event
func (r *Repository) ListAssignments(ctx context.Context, eventID types.ID) ([]StationAssignment, error) {
	query := `
		SELECT event_id, zone_id, station_id, capacity, occupancy, assigned_by, assigned_at
		FROM events.station_assignments
		WHERE event_id = $1
		ORDER BY zone_id, station_id`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list assignments")
	}
	defer rows.Close()

	var assignments []StationAssignment
	for rows.Next() {
		var a StationAssignment
		err := rows.Scan(&a.EventID, &a.ZoneID, &a.StationID, &a.Capacity, &a.Occupancy, &a.AssignedBy, &a.AssignedAt)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan assignment")
		}
		assignments = append(assignments, a)
	}

	return assignments, nil
}

// --- Retry ---

// withRetry reruns a transaction on serialization failures, up to
// maxConflictRetries attempts, then reports a conflict
func (r *Repository) withRetry(ctx context.Context, fn func() error) error {
	var err error

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			if appErr, ok := err.(*errors.AppError); ok {
				return appErr
			}
			return errors.Wrap(err, "transaction failed")
		}
		metrics.RecordDelegationRetry()
	}

	return errors.Conflict("concurrent update conflict, please retry")
}

// isSerializationFailure matches Postgres serialization and deadlock
// error codes
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

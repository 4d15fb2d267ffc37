package participation

import (
	"context"

	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides database operations for participations and the
// event timeline. Every write locks the event row first: the lock
// serializes the hash chain, so sequences never collide and each entry
// links to the true predecessor.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new participation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertParticipation writes the participant's standing and appends the
// matching timeline entry in one transaction. Station occupancy moves
// with the status: entering a counted status takes a slot, leaving one
// releases it.
func (r *Repository) UpsertParticipation(ctx context.Context, p *Participation) (*TimelineEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	status, err := r.lockEvent(ctx, tx, p.EventID)
	if err != nil {
		return nil, err
	}
	if status == cascade.EventStatusConcluded || status == cascade.EventStatusCancelled {
		return nil, errors.InvalidState("event is closed for participation updates")
	}

	var prevStatus *Status
	var prevStation *types.ID
	err = tx.QueryRow(ctx, `
		SELECT status, station_id
		FROM events.participations
		WHERE event_id = $1 AND participant_id = $2`,
		p.EventID, p.ParticipantID,
	).Scan(&prevStatus, &prevStation)
	if err != nil && err != pgx.ErrNoRows {
		return nil, errors.Wrap(err, "failed to read participation")
	}

	if err := r.moveOccupancy(ctx, tx, p, prevStatus, prevStation); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO events.participations (
			event_id, participant_id, station_id, status, updated_by, reason
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, participant_id) DO UPDATE SET
			station_id = EXCLUDED.station_id,
			status = EXCLUDED.status,
			updated_by = EXCLUDED.updated_by,
			reason = EXCLUDED.reason,
			updated_at = now()`,
		p.EventID, p.ParticipantID, p.StationID, p.Status, p.UpdatedBy, p.Reason,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert participation")
	}

	fromStatus := ""
	if prevStatus != nil {
		fromStatus = string(*prevStatus)
	}

	entry, err := r.appendEntry(ctx, tx, p.EventID, p.UpdatedBy, "", ActionParticipationUpdated,
		&p.ParticipantID, fromStatus, string(p.Status), p.Reason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	return entry, nil
}

// moveOccupancy adjusts station slot usage when the counted standing of
// a participant changes
func (r *Repository) moveOccupancy(ctx context.Context, tx pgx.Tx, p *Participation, prevStatus *Status, prevStation *types.ID) error {
	wasCounted := prevStatus != nil && prevStatus.Counted() && prevStation != nil
	isCounted := p.Status.Counted() && p.StationID != nil

	sameStation := wasCounted && isCounted && *prevStation == *p.StationID
	if sameStation {
		return nil
	}

	if wasCounted {
		_, err := tx.Exec(ctx, `
			UPDATE events.station_assignments
			SET occupancy = occupancy - 1
			WHERE event_id = $1 AND station_id = $2 AND occupancy > 0`,
			p.EventID, *prevStation,
		)
		if err != nil {
			return errors.Wrap(err, "failed to release station slot")
		}
	}

	if isCounted {
		var capacity, occupancy int
		err := tx.QueryRow(ctx, `
			SELECT capacity, occupancy
			FROM events.station_assignments
			WHERE event_id = $1 AND station_id = $2
			FOR UPDATE`,
			p.EventID, *p.StationID,
		).Scan(&capacity, &occupancy)
		if err == pgx.ErrNoRows {
			return errors.InvalidState("station is not assigned on this event")
		}
		if err != nil {
			return errors.Wrap(err, "failed to lock station assignment")
		}

		// Zero capacity means unbounded
		if capacity > 0 && occupancy >= capacity {
			return errors.InvalidState("station is at capacity")
		}

		_, err = tx.Exec(ctx, `
			UPDATE events.station_assignments
			SET occupancy = occupancy + 1
			WHERE event_id = $1 AND station_id = $2`,
			p.EventID, *p.StationID,
		)
		if err != nil {
			return errors.Wrap(err, "failed to take station slot")
		}
	}

	return nil
}

// UpdateEventStatus moves the event to a new status and appends the
// transition to the timeline in one transaction
func (r *Repository) UpdateEventStatus(ctx context.Context, eventID types.ID, to cascade.EventStatus, by types.ID, byRole, reason string) (*TimelineEntry, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	from, err := r.lockEvent(ctx, tx, eventID)
	if err != nil {
		return nil, err
	}

	if from == to {
		return nil, errors.InvalidState("event is already " + string(to))
	}
	if !CanTransition(from, to) {
		return nil, errors.InvalidState("cannot move event from " + string(from) + " to " + string(to))
	}

	_, err = tx.Exec(ctx, `
		UPDATE events.events SET status = $2, updated_at = now() WHERE id = $1`,
		eventID, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update event status")
	}

	entry, err := r.appendEntry(ctx, tx, eventID, by, byRole, ActionEventStatusChanged,
		nil, string(from), string(to), reason)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to commit transaction")
	}

	return entry, nil
}

// lockEvent locks the event row and returns its current status
func (r *Repository) lockEvent(ctx context.Context, tx pgx.Tx, eventID types.ID) (cascade.EventStatus, error) {
	var status cascade.EventStatus
	err := tx.QueryRow(ctx, `
		SELECT status FROM events.events WHERE id = $1 FOR UPDATE`, eventID,
	).Scan(&status)
	if err == pgx.ErrNoRows {
		return "", errors.NotFound("event", eventID.String())
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to lock event")
	}
	return status, nil
}

// appendEntry builds and inserts the next chain link. Must run under
// the event row lock.
func (r *Repository) appendEntry(ctx context.Context, tx pgx.Tx, eventID, actorID types.ID, actorRole, action string, subjectID *types.ID, fromStatus, toStatus, reason string) (*TimelineEntry, error) {
	var lastSequence int64
	var lastHash string
	err := tx.QueryRow(ctx, `
		SELECT sequence, hash
		FROM events.timeline
		WHERE event_id = $1
		ORDER BY sequence DESC
		LIMIT 1`, eventID,
	).Scan(&lastSequence, &lastHash)
	if err != nil && err != pgx.ErrNoRows {
		return nil, errors.Wrap(err, "failed to read chain head")
	}

	entry := NewTimelineEntry(eventID, actorID, actorRole, action, subjectID,
		fromStatus, toStatus, reason, lastHash, lastSequence+1)

	_, err = tx.Exec(ctx, `
		INSERT INTO events.timeline (
			id, event_id, sequence, timestamp, hash, prev_hash,
			actor_id, actor_role, action, subject_id,
			from_status, to_status, reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		entry.ID, entry.EventID, entry.Sequence, entry.Timestamp, entry.Hash, entry.PrevHash,
		entry.ActorID, entry.ActorRole, entry.Action, entry.SubjectID,
		entry.FromStatus, entry.ToStatus, entry.Reason,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to append timeline entry")
	}

	return entry, nil
}

// GetParticipation retrieves one participant's standing on an event
func (r *Repository) GetParticipation(ctx context.Context, eventID, participantID types.ID) (*Participation, error) {
	query := `
		SELECT event_id, participant_id, station_id, status, updated_by, reason, created_at, updated_at
		FROM events.participations
		WHERE event_id = $1 AND participant_id = $2`

	p := &Participation{}
	err := r.pool.QueryRow(ctx, query, eventID, participantID).Scan(
		&p.EventID, &p.ParticipantID, &p.StationID, &p.Status,
		&p.UpdatedBy, &p.Reason, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("participation", participantID.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get participation")
	}

	return p, nil
}

// ListParticipations lists the participants of an event
func (r *Repository) ListParticipations(ctx context.Context, eventID types.ID) ([]Participation, error) {
	query := `
		SELECT event_id, participant_id, station_id, status, updated_by, reason, created_at, updated_at
		FROM events.participations
		WHERE event_id = $1
		ORDER BY updated_at DESC`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list participations")
	}
	defer rows.Close()

	var list []Participation
	for rows.Next() {
		var p Participation
		err := rows.Scan(
			&p.EventID, &p.ParticipantID, &p.StationID, &p.Status,
			&p.UpdatedBy, &p.Reason, &p.CreatedAt, &p.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan participation")
		}
		list = append(list, p)
	}

	return list, nil
}

// ListTimeline returns the event timeline, newest entry first
func (r *Repository) ListTimeline(ctx context.Context, eventID types.ID, limit, offset int) ([]TimelineEntry, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM events.timeline WHERE event_id = $1`, eventID,
	).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count timeline entries")
	}

	if limit <= 0 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, event_id, sequence, timestamp, hash, prev_hash,
			actor_id, actor_role, action, subject_id,
			from_status, to_status, reason
		FROM events.timeline
		WHERE event_id = $1
		ORDER BY sequence DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, eventID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to list timeline")
	}
	defer rows.Close()

	var entries []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		err := rows.Scan(
			&e.ID, &e.EventID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorID, &e.ActorRole, &e.Action, &e.SubjectID,
			&e.FromStatus, &e.ToStatus, &e.Reason,
		)
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to scan timeline entry")
		}
		entries = append(entries, e)
	}

	return entries, total, nil
}

// VerifyChain walks the full timeline of an event oldest-first and
// checks every hash and link
func (r *Repository) VerifyChain(ctx context.Context, eventID types.ID) (*ChainReport, error) {
	query := `
		SELECT id, event_id, sequence, timestamp, hash, prev_hash,
			actor_id, actor_role, action, subject_id,
			from_status, to_status, reason
		FROM events.timeline
		WHERE event_id = $1
		ORDER BY sequence ASC`

	rows, err := r.pool.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read timeline")
	}
	defer rows.Close()

	report := &ChainReport{EventID: eventID, Valid: true}
	prevHash := ""

	for rows.Next() {
		var e TimelineEntry
		err := rows.Scan(
			&e.ID, &e.EventID, &e.Sequence, &e.Timestamp, &e.Hash, &e.PrevHash,
			&e.ActorID, &e.ActorRole, &e.Action, &e.SubjectID,
			&e.FromStatus, &e.ToStatus, &e.Reason,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan timeline entry")
		}

		report.Entries++

		if report.Valid && (e.PrevHash != prevHash || !e.VerifyHash()) {
			report.Valid = false
			seq := e.Sequence
			report.BrokenAt = &seq
		}
		prevHash = e.Hash
	}

	return report, nil
}

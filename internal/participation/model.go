package participation

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/shared/types"
)

// Status defines the participation status of a principal on an event
type Status string

const (
	StatusPending          Status = "pending"
	StatusParticipating    Status = "participating"
	StatusNotParticipating Status = "not_participating"
)

// Valid reports whether the status is a known participation status
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusParticipating, StatusNotParticipating:
		return true
	}
	return false
}

// Counted reports whether the status occupies a station slot
func (s Status) Counted() bool {
	return s == StatusParticipating
}

// Participation is one principal's standing on one event. There is at
// most one row per (event, participant); updates overwrite in place and
// leave their trace on the timeline instead.
type Participation struct {
	EventID       types.ID  `json:"event_id"`
	ParticipantID types.ID  `json:"participant_id"`
	StationID     *types.ID `json:"station_id,omitempty"`
	Status        Status    `json:"status"`

	UpdatedBy types.ID  `json:"updated_by"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Timeline actions
const (
	ActionParticipationUpdated = "participation.updated"
	ActionEventStatusChanged   = "event.status_changed"
)

// TimelineEntry is one link of an event's append-only history. Entries
// are hash chained: each hash covers the entry's own fields plus the
// hash of the previous entry, so rewriting history breaks the chain.
type TimelineEntry struct {
	ID        types.ID  `json:"id"`
	EventID   types.ID  `json:"event_id"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Hash      string    `json:"hash"`
	PrevHash  string    `json:"prev_hash,omitempty"`

	ActorID   types.ID `json:"actor_id"`
	ActorRole string   `json:"actor_role"`

	Action     string    `json:"action"`
	SubjectID  *types.ID `json:"subject_id,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Reason     string    `json:"reason,omitempty"`
}

// NewTimelineEntry creates a chained timeline entry
func NewTimelineEntry(eventID, actorID types.ID, actorRole, action string, subjectID *types.ID, fromStatus, toStatus, reason, prevHash string, sequence int64) *TimelineEntry {
	entry := &TimelineEntry{
		ID:         types.NewID(),
		EventID:    eventID,
		Sequence:   sequence,
		Timestamp:  time.Now().UTC().Truncate(time.Microsecond),
		PrevHash:   prevHash,
		ActorID:    actorID,
		ActorRole:  actorRole,
		Action:     action,
		SubjectID:  subjectID,
		FromStatus: fromStatus,
		ToStatus:   toStatus,
		Reason:     reason,
	}

	entry.Hash = entry.calculateHash()
	return entry
}

// calculateHash computes the SHA-256 hash over the entry's fields in a
// canonical encoding, so verification is independent of map ordering
// and timezone
func (e *TimelineEntry) calculateHash() string {
	data := map[string]any{
		"id":        e.ID,
		"event_id":  e.EventID,
		"sequence":  e.Sequence,
		"timestamp": e.Timestamp.UTC().Format(time.RFC3339Nano),
		"prev_hash": e.PrevHash,
		"actor_id":  e.ActorID,
		"action":    e.Action,
		"to_status": e.ToStatus,
	}

	if e.SubjectID != nil {
		data["subject_id"] = e.SubjectID
	}
	if e.FromStatus != "" {
		data["from_status"] = e.FromStatus
	}
	if e.Reason != "" {
		data["reason"] = e.Reason
	}

	jsonData, _ := canonicalJSON(data)
	hash := sha256.Sum256(jsonData)
	return hex.EncodeToString(hash[:])
}

// VerifyHash verifies the entry's hash
func (e *TimelineEntry) VerifyHash() bool {
	return e.Hash == e.calculateHash()
}

// canonicalJSON produces deterministic JSON output with sorted map keys
func canonicalJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}

	return canonicalMarshal(parsed)
}

func canonicalMarshal(v any) ([]byte, error) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyBytes, _ := json.Marshal(k)
			buf.Write(keyBytes)
			buf.WriteByte(':')
			valBytes, err := canonicalMarshal(val[k])
			if err != nil {
				return nil, err
			}
			buf.Write(valBytes)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil

	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			itemBytes, err := canonicalMarshal(item)
			if err != nil {
				return nil, err
			}
			buf.Write(itemBytes)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil

	default:
		return json.Marshal(val)
	}
}

// statusTransitions is the closed set of legal event status moves
var statusTransitions = map[cascade.EventStatus][]cascade.EventStatus{
	cascade.EventStatusScheduled: {cascade.EventStatusOngoing, cascade.EventStatusCancelled},
	cascade.EventStatusOngoing:   {cascade.EventStatusConcluded, cascade.EventStatusCancelled},
}

// CanTransition reports whether an event status move is legal.
// Concluded and cancelled are terminal.
func CanTransition(from, to cascade.EventStatus) bool {
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// UpdateParticipationRequest sets a participant's standing on an event
type UpdateParticipationRequest struct {
	ParticipantID types.ID  `json:"participant_id" validate:"required"`
	StationID     *types.ID `json:"station_id,omitempty"`
	Status        Status    `json:"status" validate:"required"`
	Reason        string    `json:"reason"`
}

// UpdateEventStatusRequest moves an event to a new status
type UpdateEventStatusRequest struct {
	Status cascade.EventStatus `json:"status" validate:"required"`
	Reason string              `json:"reason"`
}

// ChainReport is the result of a timeline verification walk
type ChainReport struct {
	EventID  types.ID `json:"event_id"`
	Entries  int      `json:"entries"`
	Valid    bool     `json:"valid"`
	BrokenAt *int64   `json:"broken_at,omitempty"`
}

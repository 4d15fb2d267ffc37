package participation

import (
	"testing"

	"github.com/eventgrid/platform/internal/cascade"
	"github.com/eventgrid/platform/internal/shared/types"
)

// --- Status Tests ---

func TestParticipationStatus(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
		counted  bool
	}{
		{StatusPending, "pending", false},
		{StatusParticipating, "participating", true},
		{StatusNotParticipating, "not_participating", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if string(tt.status) != tt.expected {
				t.Errorf("Expected '%s', got '%s'", tt.expected, tt.status)
			}
			if !tt.status.Valid() {
				t.Errorf("Status %s should be valid", tt.status)
			}
			if tt.status.Counted() != tt.counted {
				t.Errorf("Expected Counted()=%v for %s", tt.counted, tt.status)
			}
		})
	}

	if Status("maybe").Valid() {
		t.Error("Unknown status should not be valid")
	}
}

// --- Event Status Transition Tests ---

func TestEventStatusTransitions(t *testing.T) {
	tests := []struct {
		from    cascade.EventStatus
		to      cascade.EventStatus
		allowed bool
	}{
		{cascade.EventStatusScheduled, cascade.EventStatusOngoing, true},
		{cascade.EventStatusScheduled, cascade.EventStatusCancelled, true},
		{cascade.EventStatusScheduled, cascade.EventStatusConcluded, false},
		{cascade.EventStatusOngoing, cascade.EventStatusConcluded, true},
		{cascade.EventStatusOngoing, cascade.EventStatusCancelled, true},
		{cascade.EventStatusOngoing, cascade.EventStatusScheduled, false},
		{cascade.EventStatusConcluded, cascade.EventStatusOngoing, false},
		{cascade.EventStatusCancelled, cascade.EventStatusScheduled, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

// --- Timeline Chain Tests ---

func TestTimelineEntryHash(t *testing.T) {
	eventID := types.NewID()
	actorID := types.NewID()

	entry := NewTimelineEntry(eventID, actorID, "branch_admin", ActionEventStatusChanged,
		nil, "scheduled", "ongoing", "kickoff", "", 1)

	if entry.Hash == "" {
		t.Fatal("Hash should be computed at creation")
	}

	if !entry.VerifyHash() {
		t.Error("Freshly created entry should verify")
	}

	// Tampering with any hashed field breaks verification
	entry.ToStatus = "cancelled"
	if entry.VerifyHash() {
		t.Error("Tampered entry should not verify")
	}
}

func TestTimelineChainLinks(t *testing.T) {
	eventID := types.NewID()
	actorID := types.NewID()
	participantID := types.NewID()

	first := NewTimelineEntry(eventID, actorID, "zonal_admin", ActionParticipationUpdated,
		&participantID, "", "pending", "", "", 1)
	second := NewTimelineEntry(eventID, actorID, "zonal_admin", ActionParticipationUpdated,
		&participantID, "pending", "participating", "", first.Hash, 2)

	if second.PrevHash != first.Hash {
		t.Error("Second entry should link to the first")
	}

	if !first.VerifyHash() || !second.VerifyHash() {
		t.Error("Both entries should verify")
	}

	if first.Hash == second.Hash {
		t.Error("Distinct entries should not share a hash")
	}
}

func TestTimelineEntryHashIsDeterministic(t *testing.T) {
	entry := NewTimelineEntry(types.NewID(), types.NewID(), "state_admin", ActionEventStatusChanged,
		nil, "ongoing", "concluded", "wrap up", "abc", 7)

	h1 := entry.calculateHash()
	h2 := entry.calculateHash()

	if h1 != h2 {
		t.Error("Hash should be deterministic for the same entry")
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	data := map[string]any{
		"zulu":  1,
		"alpha": 2,
		"mike":  3,
	}

	out, err := canonicalJSON(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := `{"alpha":2,"mike":3,"zulu":1}`
	if string(out) != expected {
		t.Errorf("Expected %s, got %s", expected, out)
	}
}

// --- Request Tests ---

func TestUpdateParticipationRequest(t *testing.T) {
	participantID := types.NewID()
	stationID := types.NewID()

	req := UpdateParticipationRequest{
		ParticipantID: participantID,
		StationID:     &stationID,
		Status:        StatusParticipating,
		Reason:        "confirmed by phone",
	}

	if req.ParticipantID.IsZero() {
		t.Error("Participant ID should be set")
	}

	if req.StationID == nil || *req.StationID != stationID {
		t.Error("Station ID should be set correctly")
	}

	if !req.Status.Counted() {
		t.Error("Participating status should count against capacity")
	}
}

package participation

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/auth"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/events"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/go-chi/chi/v5"
)

// Handler provides HTTP handlers for the participation module
type Handler struct {
	svc *Service
	dir *directory.Service
	bus events.EventBus
}

// NewHandler creates a new participation handler
func NewHandler(svc *Service, dir *directory.Service, bus events.EventBus) *Handler {
	return &Handler{svc: svc, dir: dir, bus: bus}
}

// Routes registers the participation routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Route("/participations", func(r chi.Router) {
			r.Get("/", h.ListParticipations)
			r.Put("/", h.UpdateParticipation)
		})

		r.Post("/status", h.UpdateEventStatus)

		r.Route("/timeline", func(r chi.Router) {
			r.Get("/", h.GetTimeline)
			r.Get("/verify", h.VerifyTimeline)
		})
	})

	return r
}

func (h *Handler) resolveActor(r *http.Request) (*directory.ResolvedAdmin, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return h.dir.ResolveAdmin(r.Context(), user.ID)
}

func eventIDFrom(r *http.Request) (types.ID, error) {
	id, err := types.ParseID(chi.URLParam(r, "eventID"))
	if err != nil {
		return "", errors.BadRequest("invalid event ID")
	}
	return id, nil
}

// ListParticipations lists the participants of an event
func (h *Handler) ListParticipations(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := eventIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	list, err := h.svc.ListParticipations(r.Context(), actor, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": list})
}

// UpdateParticipation sets a participant's standing on an event
func (h *Handler) UpdateParticipation(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := eventIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateParticipationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	p, entry, err := h.svc.UpdateParticipation(r.Context(), actor, eventID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "participation.updated", map[string]any{
		"event_id":       eventID,
		"participant_id": p.ParticipantID,
		"status":         p.Status,
		"sequence":       entry.Sequence,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"participation": p,
		"timeline":      entry,
	})
}

// UpdateEventStatus moves the event to a new status
func (h *Handler) UpdateEventStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := eventIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req UpdateEventStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	entry, err := h.svc.UpdateEventStatus(r.Context(), actor, eventID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "participation.event.status_changed", map[string]any{
		"event_id":    eventID,
		"from_status": entry.FromStatus,
		"to_status":   entry.ToStatus,
		"reason":      entry.Reason,
	})

	writeJSON(w, http.StatusOK, entry)
}

// GetTimeline returns the event timeline, newest first
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := eventIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	entries, total, err := h.svc.GetTimeline(r.Context(), actor, eventID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  entries,
		"total": total,
	})
}

// VerifyTimeline checks the integrity of the event's chain
func (h *Handler) VerifyTimeline(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := eventIDFrom(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.svc.VerifyTimeline(r.Context(), actor, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// --- Helpers ---

func (h *Handler) publish(r *http.Request, actor *directory.ResolvedAdmin, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "participation", data).
		WithActor(actor.ID, string(actor.Role))

	h.bus.Publish(r.Context(), event)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}

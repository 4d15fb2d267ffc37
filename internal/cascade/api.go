package cascade

import (
	"encoding/json"
	"net/http"

	"github.com/eventgrid/platform/internal/directory"
	"github.com/eventgrid/platform/internal/shared/auth"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/events"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/go-chi/chi/v5"
)

// Handler provides HTTP handlers for the cascade module
type Handler struct {
	svc *Service
	dir *directory.Service
	bus events.EventBus
}

// NewHandler creates a new cascade handler
func NewHandler(svc *Service, dir *directory.Service, bus events.EventBus) *Handler {
	return &Handler{svc: svc, dir: dir, bus: bus}
}

// Routes registers the cascade routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)

		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Post("/delegations", h.Delegate)
			r.Get("/assignments", h.ListAssignments)
			r.Put("/zones/{zoneID}/stations", h.AssignStations)
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

// ListEvents lists events visible to the caller
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	filter := ListEventsFilter{}
	if s := r.URL.Query().Get("status"); s != "" {
		status := EventStatus(s)
		if !status.Valid() {
			writeError(w, errors.BadRequest("unknown event status"))
			return
		}
		filter.Status = &status
	}

	list, total, err := h.svc.ListEvents(r.Context(), actor, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  list,
		"total": total,
	})
}

// GetEvent gets an event with its delegation sets
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := types.ParseID(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid event ID"))
		return
	}

	detail, err := h.svc.GetEventDetail(r.Context(), actor, eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, detail)
}

// CreateEvent creates an event at the caller's level
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	detail, err := h.svc.CreateEvent(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "cascade.event.created", map[string]any{
		"event_id": detail.ID,
		"title":    detail.Title,
		"level":    detail.Level,
	})

	writeJSON(w, http.StatusCreated, detail)
}

// Delegate appends nodes to a delegation set of the event
func (h *Handler) Delegate(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := types.ParseID(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid event ID"))
		return
	}

	var req DelegateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	detail, err := h.svc.Delegate(r.Context(), actor, eventID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "cascade.event.delegated", map[string]any{
		"event_id": eventID,
		"kind":     req.Kind,
		"node_ids": req.NodeIDs,
		"level":    detail.Level,
	})

	writeJSON(w, http.StatusOK, detail)
}

// AssignStations replaces the station selection of one zone
func (h *Handler) AssignStations(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := types.ParseID(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid event ID"))
		return
	}

	zoneID, err := types.ParseID(chi.URLParam(r, "zoneID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid zone ID"))
		return
	}

	var req AssignStationsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	assignments, err := h.svc.AssignStations(r.Context(), actor, eventID, zoneID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "cascade.stations.assigned", map[string]any{
		"event_id": eventID,
		"zone_id":  zoneID,
		"stations": len(assignments),
	})

	writeJSON(w, http.StatusOK, map[string]any{"data": assignments})
}

// ListAssignments lists the station assignments of an event
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	eventID, err := types.ParseID(chi.URLParam(r, "eventID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid event ID"))
		return
	}

	// Visibility piggybacks on the detail check
	if _, err := h.svc.GetEventDetail(r.Context(), actor, eventID); err != nil {
		writeError(w, err)
		return
	}

	assignments, err := h.svc.repo.ListAssignments(r.Context(), eventID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": assignments})
}

// --- Helpers ---

func (h *Handler) publish(r *http.Request, actor *directory.ResolvedAdmin, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "cascade", data).
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

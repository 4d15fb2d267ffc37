package lifecycle

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

// Handler provides HTTP handlers for the lifecycle module
type Handler struct {
	svc *Service
	dir *directory.Service
	bus events.EventBus
}

// NewHandler creates a new lifecycle handler
func NewHandler(svc *Service, dir *directory.Service, bus events.EventBus) *Handler {
	return &Handler{svc: svc, dir: dir, bus: bus}
}

// Routes registers the lifecycle routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/admins/{adminID}", func(r chi.Router) {
		r.Post("/disable", h.Disable)
		r.Post("/enable", h.Enable)

		r.Route("/jurisdiction", func(r chi.Router) {
			r.Post("/transfer", h.Transfer)
			r.Post("/replace", h.Replace)
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

// Disable deactivates an admin
func (h *Handler) Disable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, false)
}

// Enable reactivates an admin
func (h *Handler) Enable(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, true)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request, active bool) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	targetID, err := types.ParseID(chi.URLParam(r, "adminID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid admin ID"))
		return
	}

	var req StatusRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	if active {
		err = h.svc.Enable(r.Context(), actor, targetID, req.Reason)
	} else {
		err = h.svc.Disable(r.Context(), actor, targetID, req.Reason)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	eventType := "lifecycle.admin.disabled"
	if active {
		eventType = "lifecycle.admin.enabled"
	}
	h.publish(r, actor, eventType, map[string]any{
		"admin_id": targetID,
		"reason":   req.Reason,
	})

	writeJSON(w, http.StatusOK, map[string]any{"admin_id": targetID, "active": active})
}

// Transfer moves the jurisdiction to another admin, leaving the source
// active without one
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, MoveTransfer)
}

// Replace moves the jurisdiction to another admin and deactivates the
// source
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, MoveReplace)
}

func (h *Handler) move(w http.ResponseWriter, r *http.Request, mode MoveMode) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	fromID, err := types.ParseID(chi.URLParam(r, "adminID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid admin ID"))
		return
	}

	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	result, err := h.svc.Move(r.Context(), actor, fromID, req, mode)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "lifecycle.jurisdiction.moved", map[string]any{
		"mode":          result.Mode,
		"from_admin_id": result.FromAdminID,
		"to_admin_id":   result.ToAdminID,
		"level":         result.Level,
		"node_id":       result.NodeID,
	})

	writeJSON(w, http.StatusOK, result)
}

// --- Helpers ---

func (h *Handler) publish(r *http.Request, actor *directory.ResolvedAdmin, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "lifecycle", data).
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

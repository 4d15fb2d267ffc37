package directory

import (
	"encoding/json"
	"net/http"

	"github.com/eventgrid/platform/internal/access"
	"github.com/eventgrid/platform/internal/shared/auth"
	"github.com/eventgrid/platform/internal/shared/errors"
	"github.com/eventgrid/platform/internal/shared/events"
	"github.com/eventgrid/platform/internal/shared/types"
	"github.com/go-chi/chi/v5"
)

// Handler provides HTTP handlers for the directory module
type Handler struct {
	repo *Repository
	svc  *Service
	bus  events.EventBus
}

// NewHandler creates a new directory handler
func NewHandler(repo *Repository, svc *Service, bus events.EventBus) *Handler {
	return &Handler{repo: repo, svc: svc, bus: bus}
}

// Routes registers the directory routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/states", func(r chi.Router) {
		r.Get("/", h.ListStates)
		r.Post("/", h.CreateState)

		r.Route("/{stateID}", func(r chi.Router) {
			r.Get("/", h.GetState)

			r.Route("/branches", func(r chi.Router) {
				r.Get("/", h.ListBranches)
				r.Post("/", h.CreateBranch)
			})
		})
	})

	r.Route("/branches/{branchID}", func(r chi.Router) {
		r.Get("/", h.GetBranch)

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", h.ListZones)
			r.Post("/", h.CreateZone)
		})
	})

	r.Route("/zones/{zoneID}", func(r chi.Router) {
		r.Get("/", h.GetZone)

		r.Route("/stations", func(r chi.Router) {
			r.Get("/", h.ListStations)
			r.Post("/", h.CreateStation)
		})
	})

	r.Get("/stations/{stationID}", h.GetStation)

	r.Post("/nodes/{kind}/{nodeID}/approve", h.ApproveNode)
	r.Post("/nodes/{kind}/{nodeID}/reject", h.RejectNode)

	r.Get("/profile", h.GetProfile)

	r.Route("/admins", func(r chi.Router) {
		r.Get("/", h.ListAdmins)
		r.Post("/", h.CreateAdmin)
		r.Get("/{adminID}", h.GetAdmin)
	})

	return r
}

// GetProfile resolves the caller into their admin record, jurisdiction
// and derived scope
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, actor)
}

// resolveActor resolves the authenticated caller into a scoped admin
func (h *Handler) resolveActor(r *http.Request) (*ResolvedAdmin, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, errors.Unauthorized("authentication required")
	}
	return h.svc.ResolveAdmin(r.Context(), user.ID)
}

// --- State Handlers ---

// ListStates lists all states
func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.repo.ListStates(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": states})
}

// GetState gets a state by ID
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "stateID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid state ID"))
		return
	}

	state, err := h.repo.GetState(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// CreateState creates a new state
func (h *Handler) CreateState(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.Code == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
			"code": "code is required",
		}))
		return
	}

	state, err := h.svc.CreateState(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.state.created", map[string]any{
		"state_id":   state.ID,
		"state_name": state.Name,
	})

	writeJSON(w, http.StatusCreated, state)
}

// --- Branch Handlers ---

// ListBranches lists branches under a state
func (h *Handler) ListBranches(w http.ResponseWriter, r *http.Request) {
	stateID, err := types.ParseID(chi.URLParam(r, "stateID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid state ID"))
		return
	}

	branches, err := h.repo.ListBranches(r.Context(), stateID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": branches})
}

// GetBranch gets a branch by ID
func (h *Handler) GetBranch(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
		return
	}

	branch, err := h.repo.GetBranch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, branch)
}

// CreateBranch creates a branch under a state
func (h *Handler) CreateBranch(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	stateID, err := types.ParseID(chi.URLParam(r, "stateID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid state ID"))
		return
	}

	var req CreateBranchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.Code == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
			"code": "code is required",
		}))
		return
	}

	branch, err := h.svc.CreateBranch(r.Context(), actor, stateID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.branch.created", map[string]any{
		"branch_id": branch.ID,
		"state_id":  branch.StateID,
		"status":    branch.Status,
	})

	writeJSON(w, http.StatusCreated, branch)
}

// --- Zone Handlers ---

// ListZones lists zones under a branch
func (h *Handler) ListZones(w http.ResponseWriter, r *http.Request) {
	branchID, err := types.ParseID(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
		return
	}

	zones, err := h.repo.ListZones(r.Context(), branchID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": zones})
}

// GetZone gets a zone by ID
func (h *Handler) GetZone(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "zoneID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid zone ID"))
		return
	}

	zone, err := h.repo.GetZone(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, zone)
}

// CreateZone creates a zone under a branch
func (h *Handler) CreateZone(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	branchID, err := types.ParseID(chi.URLParam(r, "branchID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid branch ID"))
		return
	}

	var req CreateZoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.Code == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
			"code": "code is required",
		}))
		return
	}

	zone, err := h.svc.CreateZone(r.Context(), actor, branchID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.zone.created", map[string]any{
		"zone_id":   zone.ID,
		"branch_id": zone.BranchID,
		"status":    zone.Status,
	})

	writeJSON(w, http.StatusCreated, zone)
}

// --- Station Handlers ---

// ListStations lists pickup stations under a zone
func (h *Handler) ListStations(w http.ResponseWriter, r *http.Request) {
	zoneID, err := types.ParseID(chi.URLParam(r, "zoneID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid zone ID"))
		return
	}

	stations, err := h.repo.ListStations(r.Context(), zoneID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"data": stations})
}

// GetStation gets a pickup station by ID
func (h *Handler) GetStation(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "stationID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid station ID"))
		return
	}

	station, err := h.repo.GetStation(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, station)
}

// CreateStation creates a pickup station under a zone
func (h *Handler) CreateStation(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	zoneID, err := types.ParseID(chi.URLParam(r, "zoneID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid zone ID"))
		return
	}

	var req CreateStationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name": "name is required",
		}))
		return
	}

	station, err := h.svc.CreateStation(r.Context(), actor, zoneID, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.station.created", map[string]any{
		"station_id": station.ID,
		"zone_id":    station.ZoneID,
		"capacity":   station.Capacity,
	})

	writeJSON(w, http.StatusCreated, station)
}

// --- Approval Handler ---

// ApproveNode activates a pending geography node
func (h *Handler) ApproveNode(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	kind := access.NodeKind(chi.URLParam(r, "kind"))
	nodeID, err := types.ParseID(chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid node ID"))
		return
	}

	if err := h.svc.ApproveNode(r.Context(), actor, kind, nodeID); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.node.approved", map[string]any{
		"kind":    kind,
		"node_id": nodeID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": NodeStatusActive})
}

// RejectNode rejects a pending geography node
func (h *Handler) RejectNode(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	kind := access.NodeKind(chi.URLParam(r, "kind"))
	nodeID, err := types.ParseID(chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid node ID"))
		return
	}

	if err := h.svc.RejectNode(r.Context(), actor, kind, nodeID); err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.node.rejected", map[string]any{
		"kind":    kind,
		"node_id": nodeID,
	})

	writeJSON(w, http.StatusOK, map[string]any{"status": NodeStatusRejected})
}

// --- Admin Handlers ---

// ListAdmins lists admins
func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	filter := ListAdminsFilter{
		Search: r.URL.Query().Get("search"),
	}

	if roleParam := r.URL.Query().Get("role"); roleParam != "" {
		role, ok := access.ParseRole(roleParam)
		if !ok {
			writeError(w, errors.BadRequest("unknown role"))
			return
		}
		filter.Role = &role
	}

	if activeParam := r.URL.Query().Get("active"); activeParam != "" {
		active := activeParam == "true"
		filter.Active = &active
	}

	admins, total, err := h.repo.ListAdmins(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  admins,
		"total": total,
	})
}

// GetAdmin gets an admin by ID
func (h *Handler) GetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseID(chi.URLParam(r, "adminID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid admin ID"))
		return
	}

	admin, err := h.repo.GetAdmin(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, admin)
}

// CreateAdmin creates a new admin
func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	actor, err := h.resolveActor(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req CreateAdminRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	if req.Name == "" || req.Email == "" {
		writeError(w, errors.Validation("validation failed", map[string]string{
			"name":  "name is required",
			"email": "email is required",
		}))
		return
	}

	admin, err := h.svc.CreateAdmin(r.Context(), actor, req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.publish(r, actor, "directory.admin.created", map[string]any{
		"admin_id": admin.ID,
		"role":     admin.Role,
	})

	writeJSON(w, http.StatusCreated, admin)
}

// --- Helpers ---

func (h *Handler) publish(r *http.Request, actor *ResolvedAdmin, eventType string, data map[string]any) {
	if h.bus == nil {
		return
	}

	event := events.NewEvent(eventType, "directory", data).
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

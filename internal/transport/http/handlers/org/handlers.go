package orghandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/org"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Positions *org.Store
	Audit     *audit.Service
	Perms     middleware.PermissionStore
}

func NewHandler(positions *org.Store, auditSvc *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Positions: positions, Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/positions", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/tree", h.handleTree)
		r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Post("/", h.handleCreate)
		r.Route("/{positionID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/subordinates", h.handleSubordinates)
			r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Put("/", h.handleUpdate)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	positions, err := h.Positions.ListPositions(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_list_failed", "failed to list positions", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, positions, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Positions.Snapshot(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_tree_failed", "failed to build position tree", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, snap.Tree(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseInt(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid position id", middleware.GetRequestID(r.Context()))
		return
	}
	position, err := h.Positions.Get(r.Context(), positionID)
	if errors.Is(err, org.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "position not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_get_failed", "failed to load position", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, position, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubordinates(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseInt(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid position id", middleware.GetRequestID(r.Context()))
		return
	}

	snap, err := h.Positions.Snapshot(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_tree_failed", "failed to build position tree", middleware.GetRequestID(r.Context()))
		return
	}

	var ids []int64
	if r.URL.Query().Get("direct") == "true" {
		ids = snap.DirectSubordinatePositionIDs(positionID)
	} else {
		ids = snap.SubordinatePositionIDs(positionID)
	}
	api.Success(w, map[string]any{"positionIds": ids}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.Position
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	if payload.ReportsTo < 0 {
		v.Add("reportsTo", "must reference an existing position")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	if payload.ReportsTo != 0 {
		if _, err := h.Positions.Get(r.Context(), payload.ReportsTo); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_parent", "reportsTo position does not exist", middleware.GetRequestID(r.Context()))
			return
		}
	}

	id, err := h.Positions.Create(r.Context(), payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_create_failed", "failed to create position", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "org.position.create", "position", strconv.FormatInt(id, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit org.position.create failed", "err", err)
	}

	api.Created(w, map[string]int64{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	positionID, err := strconv.ParseInt(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid position id", middleware.GetRequestID(r.Context()))
		return
	}

	var payload org.Position
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	v.Required("name", payload.Name, "name is required")
	if payload.ReportsTo == positionID {
		v.Add("reportsTo", "a position cannot report to itself")
	}
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Positions.Get(r.Context(), positionID)
	if errors.Is(err, org.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "position not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "position_update_failed", "failed to update position", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Positions.Update(r.Context(), positionID, payload); err != nil {
		if errors.Is(err, org.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "position not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "position_update_failed", "failed to update position", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "org.position.update", "position", strconv.FormatInt(positionID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, payload); err != nil {
		slog.Warn("audit org.position.update failed", "err", err)
	}

	api.Success(w, map[string]string{"status": "updated"}, middleware.GetRequestID(r.Context()))
}

package kpihandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/kpi"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Kpis  *kpi.Store
	Audit *audit.Service
	Perms middleware.PermissionStore
}

func NewHandler(kpis *kpi.Store, auditSvc *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Kpis: kpis, Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kpis", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermKpisRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermKpisWrite, h.Perms)).Post("/", h.handleCreate)
		r.Route("/{kpiID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermKpisRead, h.Perms)).Get("/", h.handleGet)
			r.With(middleware.RequirePermission(auth.PermKpisWrite, h.Perms)).Put("/", h.handleUpdate)
			r.With(middleware.RequirePermission(auth.PermKpisWrite, h.Perms)).Delete("/", h.handleDelete)
		})
	})
	r.Route("/positions/{positionID}/assignments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermKpisRead, h.Perms)).Get("/", h.handleListAssignments)
		r.With(middleware.RequirePermission(auth.PermAssignmentsWrite, h.Perms)).Put("/", h.handleReplaceAssignments)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	departmentID, _ := strconv.ParseInt(r.URL.Query().Get("departmentId"), 10, 64)
	kpis, err := h.Kpis.List(r.Context(), departmentID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_list_failed", "failed to list kpis", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, kpis, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	kpiID, err := strconv.ParseInt(chi.URLParam(r, "kpiID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid kpi id", middleware.GetRequestID(r.Context()))
		return
	}
	definition, err := h.Kpis.Get(r.Context(), kpiID)
	if errors.Is(err, kpi.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "kpi not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_get_failed", "failed to load kpi", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, definition, middleware.GetRequestID(r.Context()))
}

// validateDefinition checks the score-type configuration: numeric types
// need both thresholds, the criterion type needs at least one label.
func validateDefinition(v *shared.Validator, payload kpi.KPI) {
	v.Required("name", payload.Name, "name is required")
	if !kpi.ValidScoreType(payload.ScoreType) {
		v.Add("scoreType", "must be PERCENT, NUMBER or CRITERION")
		return
	}
	if payload.ScoreType == kpi.ScoreTypeCriterion {
		if payload.CriterionRed == "" && payload.CriterionYellow == "" && payload.CriterionGreen == "" {
			v.Add("criterionGreen", "criterion kpis need at least one criterion label")
		}
		return
	}
	if !kpi.ValidDirection(payload.Direction) {
		v.Add("direction", "must be HIGHER_BETTER or LOWER_BETTER")
	}
	if payload.ThresholdYellow == nil || payload.ThresholdGreen == nil {
		v.Add("thresholdGreen", "numeric kpis need both thresholds")
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kpi.KPI
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	validateDefinition(v, payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	id, err := h.Kpis.Create(r.Context(), payload)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_create_failed", "failed to create kpi", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "kpi.create", "kpi", strconv.FormatInt(id, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, payload); err != nil {
		slog.Warn("audit kpi.create failed", "err", err)
	}

	api.Created(w, map[string]int64{"id": id}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	kpiID, err := strconv.ParseInt(chi.URLParam(r, "kpiID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid kpi id", middleware.GetRequestID(r.Context()))
		return
	}

	var payload kpi.KPI
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	v := shared.NewValidator()
	validateDefinition(v, payload)
	if v.Reject(w, middleware.GetRequestID(r.Context())) {
		return
	}

	before, err := h.Kpis.Get(r.Context(), kpiID)
	if errors.Is(err, kpi.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "kpi not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_update_failed", "failed to update kpi", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Kpis.Update(r.Context(), kpiID, payload); err != nil {
		if errors.Is(err, kpi.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "kpi not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "kpi_update_failed", "failed to update kpi", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "kpi.update", "kpi", strconv.FormatInt(kpiID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, payload); err != nil {
		slog.Warn("audit kpi.update failed", "err", err)
	}

	api.Success(w, map[string]string{"status": "updated"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	kpiID, err := strconv.ParseInt(chi.URLParam(r, "kpiID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid kpi id", middleware.GetRequestID(r.Context()))
		return
	}

	before, err := h.Kpis.Get(r.Context(), kpiID)
	if errors.Is(err, kpi.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "kpi not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "kpi_delete_failed", "failed to delete kpi", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Kpis.Delete(r.Context(), kpiID); err != nil {
		if errors.Is(err, kpi.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "kpi not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "kpi_delete_failed", "failed to delete kpi", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "kpi.delete", "kpi", strconv.FormatInt(kpiID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, nil); err != nil {
		slog.Warn("audit kpi.delete failed", "err", err)
	}

	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseInt(chi.URLParam(r, "positionID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid position id", middleware.GetRequestID(r.Context()))
		return
	}
	assignments, err := h.Kpis.ListAssignments(r.Context(), positionID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "assignment_list_failed", "failed to list assignments", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, assignments, middleware.GetRequestID(r.Context()))
}

// handleReplaceAssignments swaps a position's KPI set. Weights come in
// as strings so the UI can send "12,5" or "25%"; they must sum to 100.
func (h *Handler) handleReplaceAssignments(w http.ResponseWriter, r *http.Request) {
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

	var payload struct {
		Weights map[int64]string `json:"weights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	assignments, err := kpi.NormalizeWeights(positionID, payload.Weights)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_weights", err.Error(), middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Kpis.ReplaceAssignments(r.Context(), positionID, assignments); err != nil {
		if errors.Is(err, kpi.ErrWeightSum) {
			api.Fail(w, http.StatusBadRequest, "invalid_weights", err.Error(), middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "assignment_replace_failed", "failed to replace assignments", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "kpi.assignments.replace", "position", strconv.FormatInt(positionID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, assignments); err != nil {
		slog.Warn("audit kpi.assignments.replace failed", "err", err)
	}

	api.Success(w, assignments, middleware.GetRequestID(r.Context()))
}

package jobshandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/auth"
	"kpitrack/internal/platform/jobs"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Jobs  *jobs.Service
	Perms middleware.PermissionStore
}

func NewHandler(jobsSvc *jobs.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Jobs: jobsSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermJobsRun, h.Perms)).Post("/monthly-report/run", h.handleRunMonthlyReport)
		r.With(middleware.RequirePermission(auth.PermJobsRun, h.Perms)).Get("/runs", h.handleListRuns)
	})
}

// handleRunMonthlyReport executes the report job synchronously so the
// operator sees the outcome in the response.
func (h *Handler) handleRunMonthlyReport(w http.ResponseWriter, r *http.Request) {
	details, err := h.Jobs.RunNow(r.Context(), jobs.JobMonthlyReport, h.Jobs.RunMonthlyReport)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_run_failed", "monthly report job failed", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, details, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 50, 200)
	runs, err := h.Jobs.ListRuns(r.Context(), r.URL.Query().Get("jobType"), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

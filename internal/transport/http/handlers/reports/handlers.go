package reporthandler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/report"
	"kpitrack/internal/domain/result"
	"kpitrack/internal/platform/jobs"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Reports *report.Service
	Jobs    *jobs.Service
	Perms   middleware.PermissionStore
}

func NewHandler(reports *report.Service, jobsSvc *jobs.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Reports: reports, Jobs: jobsSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/position-score", h.handlePositionScore)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/monthly", h.handleMonthly)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/export.xlsx", h.handleExportXLSX)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/export.pdf", h.handleExportPDF)
		r.With(middleware.RequirePermission(auth.PermReportsRun, h.Perms)).Post("/email", h.handleEmail)
		r.Route("/archive", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/", h.handleListArchive)
			r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/{archiveID}", h.handleGetArchive)
		})
	})
}

func periodFromQuery(r *http.Request) result.Period {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	if year == 0 && month == 0 {
		return result.DefaultPeriod(time.Now())
	}
	return result.Period{Year: year, Month: month}
}

func (h *Handler) handlePositionScore(w http.ResponseWriter, r *http.Request) {
	positionID, err := strconv.ParseInt(r.URL.Query().Get("positionId"), 10, 64)
	if err != nil || positionID <= 0 {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "positionId query parameter is required", middleware.GetRequestID(r.Context()))
		return
	}
	period := periodFromQuery(r)
	if !period.Valid() {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "year and month must form a valid period", middleware.GetRequestID(r.Context()))
		return
	}

	rep, err := h.Reports.PositionScore(r.Context(), positionID, period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_build_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	period := periodFromQuery(r)
	if !period.Valid() {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "year and month must form a valid period", middleware.GetRequestID(r.Context()))
		return
	}

	rep, err := h.Reports.Monthly(r.Context(), period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_build_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, rep, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	period := periodFromQuery(r)
	if !period.Valid() {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "year and month must form a valid period", middleware.GetRequestID(r.Context()))
		return
	}

	rep, err := h.Reports.Monthly(r.Context(), period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_build_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	content, err := report.BuildWorkbook(rep)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_export_failed", "failed to render workbook", middleware.GetRequestID(r.Context()))
		return
	}

	filename := fmt.Sprintf("kpi-report-%04d-%02d.xlsx", period.Year, period.Month)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(content)
}

func (h *Handler) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	period := periodFromQuery(r)
	if !period.Valid() {
		api.Fail(w, http.StatusBadRequest, "invalid_period", "year and month must form a valid period", middleware.GetRequestID(r.Context()))
		return
	}

	rep, err := h.Reports.Monthly(r.Context(), period)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_build_failed", "failed to build report", middleware.GetRequestID(r.Context()))
		return
	}
	content, err := report.BuildPDF(rep)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "report_export_failed", "failed to render pdf", middleware.GetRequestID(r.Context()))
		return
	}

	filename := fmt.Sprintf("kpi-report-%04d-%02d.pdf", period.Year, period.Month)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(content)
}

// handleEmail queues the monthly report mail-out instead of blocking the
// request on report generation and SMTP.
func (h *Handler) handleEmail(w http.ResponseWriter, r *http.Request) {
	h.Jobs.Enqueue(jobs.JobMonthlyReport, h.Jobs.RunMonthlyReport)
	api.Success(w, map[string]string{"status": "queued"}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListArchive(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 20, 100)
	archives, err := h.Reports.Store.ListArchive(r.Context(), page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "archive_list_failed", "failed to list archived reports", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, archives, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	archiveID, err := strconv.ParseInt(chi.URLParam(r, "archiveID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid archive id", middleware.GetRequestID(r.Context()))
		return
	}

	archive, err := h.Reports.Store.GetArchive(r.Context(), archiveID)
	if errors.Is(err, report.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "archived report not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "archive_get_failed", "failed to load archived report", middleware.GetRequestID(r.Context()))
		return
	}

	contentType := "application/octet-stream"
	if archive.Format == "xlsx" {
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+archive.FileKey+`"`)
	_, _ = w.Write(archive.Content)
}

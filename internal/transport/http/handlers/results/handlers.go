package resulthandler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"kpitrack/internal/domain/access"
	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/domain/notifications"
	"kpitrack/internal/domain/org"
	"kpitrack/internal/domain/result"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Results     *result.Service
	Positions   *org.Store
	Directory   *directory.Store
	Notify      *notifications.Service
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
	Perms       middleware.PermissionStore
}

func NewHandler(results *result.Service, positions *org.Store, dir *directory.Store, notify *notifications.Service, auditSvc *audit.Service, idem *middleware.IdempotencyStore, perms middleware.PermissionStore) *Handler {
	return &Handler{
		Results:     results,
		Positions:   positions,
		Directory:   dir,
		Notify:      notify,
		Audit:       auditSvc,
		Idempotency: idem,
		Perms:       perms,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/results", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermResultsRead, h.Perms)).Get("/period", h.handlePeriod)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermResultsRead, h.Perms)).Get("/", h.handleList)
			r.Route("/{kpiID}", func(r chi.Router) {
				r.With(middleware.RequirePermission(auth.PermResultsCapture, h.Perms)).Post("/", h.handleCapture)
				r.With(middleware.RequirePermission(auth.PermResultsApprove, h.Perms)).Post("/approve", h.handleApprove)
				r.With(middleware.RequirePermission(auth.PermResultsReview, h.Perms)).Post("/send-to-review", h.handleSendToReview)
			})
		})
	})
}

// requester resolves the acting user's employee record. Users without
// one (admins managing the system) act with a zero employee id and rely
// on their role.
func (h *Handler) requester(r *http.Request) (access.Requester, error) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		return access.Requester{}, errors.New("no authenticated user")
	}
	out := access.Requester{UserID: user.UserID, Role: user.RoleName}
	emp, err := h.Directory.GetEmployeeByUserID(r.Context(), user.UserID)
	if errors.Is(err, directory.ErrNotFound) {
		return out, nil
	}
	if err != nil {
		return access.Requester{}, err
	}
	out.EmployeeID = emp.ID
	out.PositionID = emp.PositionID
	return out, nil
}

// policy builds a fresh hierarchy snapshot for this request.
func (h *Handler) policy(r *http.Request) (*access.Policy, error) {
	snap, err := h.Positions.Snapshot(r.Context())
	if err != nil {
		return nil, err
	}
	return access.New(snap, h.Directory), nil
}

func periodFromQuery(r *http.Request) result.Period {
	year, _ := strconv.Atoi(r.URL.Query().Get("year"))
	month, _ := strconv.Atoi(r.URL.Query().Get("month"))
	if year == 0 && month == 0 {
		return result.DefaultPeriod(time.Now())
	}
	return result.Period{Year: year, Month: month}
}

func pathIDs(r *http.Request) (int64, int64, error) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	kpiID, err := strconv.ParseInt(chi.URLParam(r, "kpiID"), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return employeeID, kpiID, nil
}

func failLifecycle(w http.ResponseWriter, err error, requestID string) {
	switch {
	case errors.Is(err, result.ErrForbidden):
		api.Fail(w, http.StatusForbidden, "forbidden", "not allowed for this employee", requestID)
	case errors.Is(err, result.ErrLocked):
		api.Fail(w, http.StatusConflict, "result_locked", "result is approved and locked", requestID)
	case errors.Is(err, result.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "kpi or result not found", requestID)
	case errors.Is(err, result.ErrInvalidInput):
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid result input", requestID)
	default:
		api.Fail(w, http.StatusInternalServerError, "result_write_failed", "failed to write result", requestID)
	}
}

func (h *Handler) handlePeriod(w http.ResponseWriter, r *http.Request) {
	period := result.DefaultPeriod(time.Now())
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee id", middleware.GetRequestID(r.Context()))
		return
	}

	actor, err := h.requester(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	policy, err := h.policy(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_snapshot_failed", "failed to load org structure", middleware.GetRequestID(r.Context()))
		return
	}

	results, err := h.Results.ResultsForEmployee(r.Context(), policy, actor, employeeID, periodFromQuery(r))
	if err != nil {
		failLifecycle(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, results, middleware.GetRequestID(r.Context()))
}

type captureRequest struct {
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Value   *string `json:"value"`
	Grade   string  `json:"grade"`
	Comment *string `json:"comment"`
}

func (h *Handler) handleCapture(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, kpiID, err := pathIDs(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee or kpi id", middleware.GetRequestID(r.Context()))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	var payload captureRequest
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	endpoint := "results.capture"
	requestHash := middleware.RequestHash(append(body, []byte(r.URL.Path)...))
	if idemKey != "" {
		stored, replay, err := h.Idempotency.Check(r.Context(), user.UserID, endpoint, idemKey, requestHash)
		if errors.Is(err, middleware.ErrIdempotencyConflict) {
			api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key was used with a different request", middleware.GetRequestID(r.Context()))
			return
		}
		if err != nil {
			slog.Warn("idempotency check failed", "err", err)
		}
		if replay {
			api.Success(w, stored, middleware.GetRequestID(r.Context()))
			return
		}
	}

	actor, err := h.requester(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	policy, err := h.policy(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_snapshot_failed", "failed to load org structure", middleware.GetRequestID(r.Context()))
		return
	}

	period := result.Period{Year: payload.Year, Month: payload.Month}
	if payload.Year == 0 && payload.Month == 0 {
		period = result.DefaultPeriod(time.Now())
	}

	record, err := h.Results.Capture(r.Context(), policy, actor, result.CaptureInput{
		EmployeeID:    employeeID,
		KpiID:         kpiID,
		Period:        period,
		Value:         payload.Value,
		GradeOverride: payload.Grade,
		Comment:       payload.Comment,
	})
	if err != nil {
		failLifecycle(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	if idemKey != "" {
		response, marshalErr := json.Marshal(record)
		if marshalErr == nil {
			if err := h.Idempotency.Save(r.Context(), user.UserID, endpoint, idemKey, requestHash, response); err != nil {
				slog.Warn("idempotency save failed", "err", err)
			}
		}
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "results.capture", "kpi_result", strconv.FormatInt(record.ID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, record); err != nil {
		slog.Warn("audit results.capture failed", "err", err)
	}

	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

type approveRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, kpiID, err := pathIDs(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee or kpi id", middleware.GetRequestID(r.Context()))
		return
	}

	var payload approveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	period := result.Period{Year: payload.Year, Month: payload.Month}
	if payload.Year == 0 && payload.Month == 0 {
		period = result.DefaultPeriod(time.Now())
	}

	actor, err := h.requester(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	policy, err := h.policy(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_snapshot_failed", "failed to load org structure", middleware.GetRequestID(r.Context()))
		return
	}

	record, err := h.Results.Approve(r.Context(), policy, actor, employeeID, kpiID, period)
	if err != nil {
		failLifecycle(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.notifyEmployee(r, employeeID, notifications.TypeResultApproved,
		"KPI result approved",
		"Your KPI result for "+periodLabel(period)+" was approved.")

	if err := h.Audit.Record(r.Context(), user.UserID, "results.approve", "kpi_result", strconv.FormatInt(record.ID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, record); err != nil {
		slog.Warn("audit results.approve failed", "err", err)
	}

	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

type reviewRequest struct {
	Year   int    `json:"year"`
	Month  int    `json:"month"`
	Reason string `json:"reason"`
}

func (h *Handler) handleSendToReview(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, kpiID, err := pathIDs(r)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee or kpi id", middleware.GetRequestID(r.Context()))
		return
	}

	var payload reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	period := result.Period{Year: payload.Year, Month: payload.Month}
	if payload.Year == 0 && payload.Month == 0 {
		period = result.DefaultPeriod(time.Now())
	}

	actor, err := h.requester(r)
	if err != nil {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}
	policy, err := h.policy(r)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "org_snapshot_failed", "failed to load org structure", middleware.GetRequestID(r.Context()))
		return
	}

	record, err := h.Results.SendToReview(r.Context(), policy, actor, employeeID, kpiID, period, payload.Reason)
	if err != nil {
		failLifecycle(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	h.notifyEmployee(r, employeeID, notifications.TypeResultSentBack,
		"KPI result sent back for review",
		"Your KPI result for "+periodLabel(period)+" was sent back: "+payload.Reason)

	if err := h.Audit.Record(r.Context(), user.UserID, "results.send_to_review", "kpi_result", strconv.FormatInt(record.ID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, record); err != nil {
		slog.Warn("audit results.send_to_review failed", "err", err)
	}

	api.Success(w, record, middleware.GetRequestID(r.Context()))
}

// notifyEmployee delivers a lifecycle notification to the employee's
// linked user, if any. Failures never affect the request outcome.
func (h *Handler) notifyEmployee(r *http.Request, employeeID int64, ntype, title, body string) {
	emp, err := h.Directory.GetEmployee(r.Context(), employeeID)
	if err != nil || emp.UserID == 0 {
		return
	}
	if err := h.Notify.Create(r.Context(), emp.UserID, ntype, title, body); err != nil {
		slog.Warn("result notification failed", "employeeId", employeeID, "err", err)
	}
}

func periodLabel(p result.Period) string {
	return strconv.Itoa(p.Year) + "-" + twoDigit(p.Month)
}

func twoDigit(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

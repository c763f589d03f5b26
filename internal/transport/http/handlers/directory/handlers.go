package directoryhandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"kpitrack/internal/domain/audit"
	"kpitrack/internal/domain/auth"
	"kpitrack/internal/domain/directory"
	"kpitrack/internal/transport/http/api"
	"kpitrack/internal/transport/http/middleware"
	"kpitrack/internal/transport/http/shared"
)

type Handler struct {
	Directory *directory.Service
	Audit     *audit.Service
	Perms     middleware.PermissionStore
}

func NewHandler(svc *directory.Service, auditSvc *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Directory: svc, Audit: auditSvc, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Route("/branches", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/", h.handleListBranches)
		r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Post("/", h.handleCreateBranch)
	})
	r.Route("/departments", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermOrgRead, h.Perms)).Get("/", h.handleListDepartments)
		r.With(middleware.RequirePermission(auth.PermOrgWrite, h.Perms)).Post("/", h.handleCreateDepartment)
	})
	r.Route("/employees", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleListEmployees)
		r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Post("/", h.handleCreateEmployee)
		r.Route("/{employeeID}", func(r chi.Router) {
			r.With(middleware.RequirePermission(auth.PermEmployeesRead, h.Perms)).Get("/", h.handleGetEmployee)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Put("/", h.handleUpdateEmployee)
			r.With(middleware.RequirePermission(auth.PermEmployeesWrite, h.Perms)).Delete("/", h.handleDeleteEmployee)
		})
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var employee *directory.Employee
	if emp, err := h.Directory.GetEmployeeByUserID(r.Context(), user.UserID); err == nil {
		employee = emp
	}

	api.Success(w, map[string]any{
		"user": map[string]any{
			"id":     user.UserID,
			"roleId": user.RoleID,
			"role":   user.RoleName,
		},
		"employee": employee,
	}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.Directory.ListBranches(r.Context())
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "branch_list_failed", "failed to list branches", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, branches, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateBranch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	branch, err := h.Directory.CreateBranch(r.Context(), payload.Name)
	if errors.Is(err, directory.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "branch name is required", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "branch_create_failed", "failed to create branch", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, branch, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	branchID, _ := strconv.ParseInt(r.URL.Query().Get("branchId"), 10, 64)
	departments, err := h.Directory.ListDepartments(r.Context(), branchID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_list_failed", "failed to list departments", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, departments, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name     string `json:"name"`
		BranchID int64  `json:"branchId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}
	department, err := h.Directory.CreateDepartment(r.Context(), payload.Name, payload.BranchID)
	if errors.Is(err, directory.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "department name is required", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "department_create_failed", "failed to create department", middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, department, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListEmployees(w http.ResponseWriter, r *http.Request) {
	positionID, _ := strconv.ParseInt(r.URL.Query().Get("positionId"), 10, 64)
	employees, err := h.Directory.ListEmployees(r.Context(), positionID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_list_failed", "failed to list employees", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employees, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee id", middleware.GetRequestID(r.Context()))
		return
	}
	employee, err := h.Directory.GetEmployee(r.Context(), employeeID)
	if errors.Is(err, directory.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_get_failed", "failed to load employee", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload directory.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	employee, err := h.Directory.CreateEmployee(r.Context(), payload)
	if errors.Is(err, directory.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "employee name is required", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			api.Fail(w, http.StatusConflict, "employee_exists", "employee email already exists", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_create_failed", "failed to create employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "directory.employee.create", "employee", strconv.FormatInt(employee.ID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, employee); err != nil {
		slog.Warn("audit directory.employee.create failed", "err", err)
	}

	api.Created(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee id", middleware.GetRequestID(r.Context()))
		return
	}

	var payload directory.Employee
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
		return
	}

	before, err := h.Directory.GetEmployee(r.Context(), employeeID)
	if errors.Is(err, directory.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}

	employee, err := h.Directory.UpdateEmployee(r.Context(), employeeID, payload)
	if errors.Is(err, directory.ErrInvalidInput) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "employee name is required", middleware.GetRequestID(r.Context()))
		return
	}
	if errors.Is(err, directory.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_update_failed", "failed to update employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "directory.employee.update", "employee", strconv.FormatInt(employeeID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, employee); err != nil {
		slog.Warn("audit directory.employee.update failed", "err", err)
	}

	api.Success(w, employee, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDeleteEmployee(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	employeeID, err := strconv.ParseInt(chi.URLParam(r, "employeeID"), 10, 64)
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_id", "invalid employee id", middleware.GetRequestID(r.Context()))
		return
	}

	before, err := h.Directory.GetEmployee(r.Context(), employeeID)
	if errors.Is(err, directory.ErrNotFound) {
		api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "employee_delete_failed", "failed to delete employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Directory.DeleteEmployee(r.Context(), employeeID); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "employee not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "employee_delete_failed", "failed to delete employee", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.UserID, "directory.employee.delete", "employee", strconv.FormatInt(employeeID, 10), middleware.GetRequestID(r.Context()), shared.ClientIP(r), before, nil); err != nil {
		slog.Warn("audit directory.employee.delete failed", "err", err)
	}

	api.Success(w, map[string]string{"status": "deleted"}, middleware.GetRequestID(r.Context()))
}

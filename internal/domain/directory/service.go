package directory

import (
	"context"
	"errors"
	"strings"
)

var ErrInvalidInput = errors.New("invalid directory input")

type Service struct {
	store *Store
}

func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) ListBranches(ctx context.Context) ([]Branch, error) {
	return s.store.ListBranches(ctx)
}

func (s *Service) CreateBranch(ctx context.Context, name string) (*Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.store.CreateBranch(ctx, name)
}

func (s *Service) ListDepartments(ctx context.Context, branchID int64) ([]Department, error) {
	return s.store.ListDepartments(ctx, branchID)
}

func (s *Service) CreateDepartment(ctx context.Context, name string, branchID int64) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidInput
	}
	return s.store.CreateDepartment(ctx, name, branchID)
}

func (s *Service) ListEmployees(ctx context.Context, positionID int64) ([]Employee, error) {
	return s.store.ListEmployees(ctx, positionID)
}

func (s *Service) GetEmployee(ctx context.Context, employeeID int64) (*Employee, error) {
	return s.store.GetEmployee(ctx, employeeID)
}

func (s *Service) GetEmployeeByUserID(ctx context.Context, userID int64) (*Employee, error) {
	return s.store.GetEmployeeByUserID(ctx, userID)
}

func (s *Service) CreateEmployee(ctx context.Context, e Employee) (*Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return nil, ErrInvalidInput
	}
	return s.store.CreateEmployee(ctx, e)
}

func (s *Service) UpdateEmployee(ctx context.Context, employeeID int64, e Employee) (*Employee, error) {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return nil, ErrInvalidInput
	}
	return s.store.UpdateEmployee(ctx, employeeID, e)
}

func (s *Service) DeleteEmployee(ctx context.Context, employeeID int64) error {
	return s.store.DeleteEmployee(ctx, employeeID)
}

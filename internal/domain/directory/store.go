package directory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("directory record not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

func (s *Store) ListBranches(ctx context.Context) ([]Branch, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, created_at FROM branches ORDER BY name, id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *Store) CreateBranch(ctx context.Context, name string) (*Branch, error) {
	var b Branch
	err := s.DB.QueryRow(ctx, `
    INSERT INTO branches (name) VALUES ($1) RETURNING id, name, created_at
  `, name).Scan(&b.ID, &b.Name, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) ListDepartments(ctx context.Context, branchID int64) ([]Department, error) {
	query := `SELECT id, name, COALESCE(branch_id, 0), created_at FROM departments`
	args := []any{}
	if branchID != 0 {
		query += ` WHERE branch_id = $1`
		args = append(args, branchID)
	}
	query += ` ORDER BY name, id`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name, &d.BranchID, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) CreateDepartment(ctx context.Context, name string, branchID int64) (*Department, error) {
	var d Department
	err := s.DB.QueryRow(ctx, `
    INSERT INTO departments (name, branch_id)
    VALUES ($1, $2)
    RETURNING id, name, COALESCE(branch_id, 0), created_at
  `, name, nullIfZero(branchID)).Scan(&d.ID, &d.Name, &d.BranchID, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const employeeColumns = `
    id, name, COALESCE(email, ''), COALESCE(user_id, 0), COALESCE(position_id, 0), created_at`

func scanEmployee(row pgx.Row) (*Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.UserID, &e.PositionID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListEmployees(ctx context.Context, positionID int64) ([]Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	args := []any{}
	if positionID != 0 {
		query += ` WHERE position_id = $1`
		args = append(args, positionID)
	}
	query += ` ORDER BY name, id`

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) GetEmployee(ctx context.Context, employeeID int64) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+` FROM employees WHERE id = $1
  `, employeeID)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *Store) GetEmployeeByUserID(ctx context.Context, userID int64) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+` FROM employees WHERE user_id = $1
  `, userID)
	e, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

func (s *Store) CreateEmployee(ctx context.Context, e Employee) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO employees (name, email, user_id, position_id)
    VALUES ($1, $2, $3, $4)
    RETURNING `+employeeColumns,
		e.Name, nullIfEmpty(e.Email), nullIfZero(e.UserID), nullIfZero(e.PositionID))
	return scanEmployee(row)
}

func (s *Store) UpdateEmployee(ctx context.Context, employeeID int64, e Employee) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    UPDATE employees
    SET name = $1, email = $2, user_id = $3, position_id = $4
    WHERE id = $5
    RETURNING `+employeeColumns,
		e.Name, nullIfEmpty(e.Email), nullIfZero(e.UserID), nullIfZero(e.PositionID), employeeID)
	updated, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return updated, err
}

func (s *Store) DeleteEmployee(ctx context.Context, employeeID int64) error {
	cmd, err := s.DB.Exec(ctx, `DELETE FROM employees WHERE id = $1`, employeeID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// PositionOfEmployee satisfies the access-policy resolver: 0 when the
// employee has no position or does not exist.
func (s *Store) PositionOfEmployee(ctx context.Context, employeeID int64) (int64, error) {
	var positionID int64
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(position_id, 0) FROM employees WHERE id = $1
  `, employeeID).Scan(&positionID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return positionID, err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

package report

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kpitrack/internal/domain/result"
)

var ErrNotFound = errors.New("report not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// EmployeeHeader is the identity part of a report row; entries are
// loaded separately.
type EmployeeHeader struct {
	EmployeeID     int64
	EmployeeName   string
	PositionID     int64
	PositionName   string
	DepartmentName string
}

// ListEmployees returns every employee holding a position, optionally
// restricted to one position, in department/position/name order.
func (s *Store) ListEmployees(ctx context.Context, positionID int64) ([]EmployeeHeader, error) {
	query := `
    SELECT e.id, e.name, p.id, p.name, COALESCE(d.name, '')
    FROM employees e
    JOIN positions p ON p.id = e.position_id
    LEFT JOIN departments d ON d.id = p.department_id
  `
	args := []any{}
	if positionID != 0 {
		query += " WHERE p.id = $1"
		args = append(args, positionID)
	}
	query += " ORDER BY COALESCE(d.name, ''), p.name, e.name, e.id"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EmployeeHeader
	for rows.Next() {
		var h EmployeeHeader
		if err := rows.Scan(&h.EmployeeID, &h.EmployeeName, &h.PositionID, &h.PositionName, &h.DepartmentName); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// EntriesForEmployee joins the employee's position assignments with
// whatever was captured for the period. KPIs with no result for the
// period come back with grade 'none' and a nil score.
func (s *Store) EntriesForEmployee(ctx context.Context, employeeID int64, period result.Period) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT k.id, k.name, a.weight::text, r.value, COALESCE(r.grade, 'none'), r.score
    FROM employees e
    JOIN kpi_assignments a ON a.position_id = e.position_id
    JOIN kpis k ON k.id = a.kpi_id
    LEFT JOIN kpi_results r
      ON r.kpi_id = k.id AND r.employee_id = e.id AND r.year = $2 AND r.month = $3
    WHERE e.id = $1
    ORDER BY k.id
  `, employeeID, period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.KpiID, &e.KpiName, &e.Weight, &e.Value, &e.Grade, &e.Score); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Archive metadata; Content is only populated by GetArchive.
type Archive struct {
	ID        int64     `json:"id"`
	FileKey   string    `json:"fileKey"`
	Year      int       `json:"year"`
	Month     int       `json:"month"`
	Format    string    `json:"format"`
	Content   []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Store) SaveArchive(ctx context.Context, fileKey string, period result.Period, format string, content []byte) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO report_archive (file_key, year, month, format, content)
    VALUES ($1, $2, $3, $4, $5)
    RETURNING id
  `, fileKey, period.Year, period.Month, format, content).Scan(&id)
	return id, err
}

func (s *Store) ListArchive(ctx context.Context, limit, offset int) ([]Archive, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, file_key, year, month, format, created_at
    FROM report_archive
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Archive
	for rows.Next() {
		var a Archive
		if err := rows.Scan(&a.ID, &a.FileKey, &a.Year, &a.Month, &a.Format, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) GetArchive(ctx context.Context, id int64) (*Archive, error) {
	var a Archive
	err := s.DB.QueryRow(ctx, `
    SELECT id, file_key, year, month, format, content, created_at
    FROM report_archive
    WHERE id = $1
  `, id).Scan(&a.ID, &a.FileKey, &a.Year, &a.Month, &a.Format, &a.Content, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

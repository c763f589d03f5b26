package result

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)

const resultColumns = `
    id, employee_id, kpi_id, year, month, value, grade, score, reason, comment,
    approved, approved_by, approved_at,
    review_requested_by, review_requested_at, review_reason,
    created_at, updated_at`

func scanResult(row pgx.Row) (*Result, error) {
	var r Result
	err := row.Scan(
		&r.ID, &r.EmployeeID, &r.KpiID, &r.Year, &r.Month,
		&r.Value, &r.Grade, &r.Score, &r.Reason, &r.Comment,
		&r.Approved, &r.ApprovedBy, &r.ApprovedAt,
		&r.ReviewRequestedBy, &r.ReviewRequestedAt, &r.ReviewReason,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) Get(ctx context.Context, key Key) (*Result, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+resultColumns+`
    FROM kpi_results
    WHERE employee_id = $1 AND kpi_id = $2 AND year = $3 AND month = $4
  `, key.EmployeeID, key.KpiID, key.Period.Year, key.Period.Month)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

func (s *Store) ListForEmployee(ctx context.Context, employeeID int64, period Period) ([]Result, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+resultColumns+`
    FROM kpi_results
    WHERE employee_id = $1 AND year = $2 AND month = $3
    ORDER BY kpi_id
  `, employeeID, period.Year, period.Month)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Result
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// CaptureValue is a single conditional upsert: the approved check runs
// inside the statement, so a concurrent approve that commits first
// makes this write observe the lock instead of clobbering it.
func (s *Store) CaptureValue(ctx context.Context, key Key, value, grade string, score *float64, reason string, comment *string, unlock UnlockSet) (*Result, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_results (employee_id, kpi_id, year, month, value, grade, score, reason, comment)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,COALESCE($9,''))
    ON CONFLICT (employee_id, kpi_id, year, month) DO UPDATE
    SET value = EXCLUDED.value,
        grade = EXCLUDED.grade,
        score = EXCLUDED.score,
        reason = EXCLUDED.reason,
        comment = COALESCE($9, kpi_results.comment),
        updated_at = now()
    WHERE NOT kpi_results.approved
       OR $10
       OR kpi_results.approved_by = ANY($11)
    RETURNING `+resultColumns,
		key.EmployeeID, key.KpiID, key.Period.Year, key.Period.Month,
		value, grade, score, reason, comment, unlock.All, unlock.ApproverIDs)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLocked
	}
	return r, err
}

func (s *Store) CaptureComment(ctx context.Context, key Key, comment string, unlock UnlockSet) (*Result, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_results (employee_id, kpi_id, year, month, grade, comment)
    VALUES ($1,$2,$3,$4,'none',$5)
    ON CONFLICT (employee_id, kpi_id, year, month) DO UPDATE
    SET comment = EXCLUDED.comment,
        updated_at = now()
    WHERE NOT kpi_results.approved
       OR $6
       OR kpi_results.approved_by = ANY($7)
    RETURNING `+resultColumns,
		key.EmployeeID, key.KpiID, key.Period.Year, key.Period.Month,
		comment, unlock.All, unlock.ApproverIDs)
	r, err := scanResult(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrLocked
	}
	return r, err
}

// Approve creates the record when absent; approving an empty result is
// permitted. A fresh approval replaces any previous approver and clears
// pending review fields.
func (s *Store) Approve(ctx context.Context, key Key, approverID int64, now time.Time) (*Result, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_results (employee_id, kpi_id, year, month, grade, approved, approved_by, approved_at)
    VALUES ($1,$2,$3,$4,'none',true,$5,$6)
    ON CONFLICT (employee_id, kpi_id, year, month) DO UPDATE
    SET approved = true,
        approved_by = EXCLUDED.approved_by,
        approved_at = EXCLUDED.approved_at,
        review_requested_by = NULL,
        review_requested_at = NULL,
        review_reason = NULL,
        updated_at = now()
    RETURNING `+resultColumns,
		key.EmployeeID, key.KpiID, key.Period.Year, key.Period.Month,
		nullIfZero(approverID), now)
	return scanResult(row)
}

func (s *Store) SendToReview(ctx context.Context, key Key, requesterID int64, reason string, now time.Time) (*Result, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO kpi_results (employee_id, kpi_id, year, month, grade, review_requested_by, review_requested_at, review_reason)
    VALUES ($1,$2,$3,$4,'none',$5,$6,$7)
    ON CONFLICT (employee_id, kpi_id, year, month) DO UPDATE
    SET approved = false,
        approved_by = NULL,
        approved_at = NULL,
        review_requested_by = EXCLUDED.review_requested_by,
        review_requested_at = EXCLUDED.review_requested_at,
        review_reason = EXCLUDED.review_reason,
        updated_at = now()
    RETURNING `+resultColumns,
		key.EmployeeID, key.KpiID, key.Period.Year, key.Period.Month,
		nullIfZero(requesterID), now, reason)
	return scanResult(row)
}

func (s *Store) EmployeesInPositions(ctx context.Context, positionIDs []int64) ([]int64, error) {
	if len(positionIDs) == 0 {
		return nil, nil
	}
	rows, err := s.DB.Query(ctx, `
    SELECT id FROM employees WHERE position_id = ANY($1)
  `, positionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func nullIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

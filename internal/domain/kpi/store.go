package kpi

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("kpi not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const kpiColumns = `
    id, name, target, unit,
    COALESCE(department_id, 0),
    score_type,
    COALESCE(direction, ''),
    threshold_yellow, threshold_green,
    COALESCE(criterion_red, ''),
    COALESCE(criterion_yellow, ''),
    COALESCE(criterion_green, ''),
    created_at`

func scanKPI(row pgx.Row) (KPI, error) {
	var k KPI
	err := row.Scan(
		&k.ID, &k.Name, &k.Target, &k.Unit, &k.DepartmentID, &k.ScoreType,
		&k.Direction, &k.ThresholdYellow, &k.ThresholdGreen,
		&k.CriterionRed, &k.CriterionYellow, &k.CriterionGreen, &k.CreatedAt,
	)
	return k, err
}

func (s *Store) List(ctx context.Context, departmentID int64) ([]KPI, error) {
	query := "SELECT " + kpiColumns + " FROM kpis"
	args := []any{}
	if departmentID > 0 {
		query += " WHERE department_id = $1"
		args = append(args, departmentID)
	}
	query += " ORDER BY name"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []KPI
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, kpiID int64) (*KPI, error) {
	row := s.DB.QueryRow(ctx, "SELECT "+kpiColumns+" FROM kpis WHERE id = $1", kpiID)
	k, err := scanKPI(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) Create(ctx context.Context, k KPI) (int64, error) {
	Normalize(&k)
	var id int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO kpis (name, target, unit, department_id, score_type, direction,
      threshold_yellow, threshold_green, criterion_red, criterion_yellow, criterion_green)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
    RETURNING id
  `, k.Name, k.Target, k.Unit, nullIfZero(k.DepartmentID), k.ScoreType, nullIfEmpty(k.Direction),
		k.ThresholdYellow, k.ThresholdGreen,
		nullIfEmpty(k.CriterionRed), nullIfEmpty(k.CriterionYellow), nullIfEmpty(k.CriterionGreen),
	).Scan(&id)
	return id, err
}

func (s *Store) Update(ctx context.Context, kpiID int64, k KPI) error {
	Normalize(&k)
	cmd, err := s.DB.Exec(ctx, `
    UPDATE kpis
    SET name = $1, target = $2, unit = $3, department_id = $4, score_type = $5,
        direction = $6, threshold_yellow = $7, threshold_green = $8,
        criterion_red = $9, criterion_yellow = $10, criterion_green = $11
    WHERE id = $12
  `, k.Name, k.Target, k.Unit, nullIfZero(k.DepartmentID), k.ScoreType, nullIfEmpty(k.Direction),
		k.ThresholdYellow, k.ThresholdGreen,
		nullIfEmpty(k.CriterionRed), nullIfEmpty(k.CriterionYellow), nullIfEmpty(k.CriterionGreen),
		kpiID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, kpiID int64) error {
	cmd, err := s.DB.Exec(ctx, "DELETE FROM kpis WHERE id = $1", kpiID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) ListAssignments(ctx context.Context, positionID int64) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT a.id, a.position_id, a.kpi_id, k.name, a.weight
    FROM kpi_assignments a
    JOIN kpis k ON a.kpi_id = k.id
    WHERE a.position_id = $1
    ORDER BY k.name
  `, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.PositionID, &a.KpiID, &a.KpiName, &a.Weight); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReplaceAssignments swaps the position's assignment set in one
// transaction. The weight-sum invariant is checked here, at write time.
func (s *Store) ReplaceAssignments(ctx context.Context, positionID int64, assignments []Assignment) error {
	if err := ValidateWeightSum(assignments); err != nil {
		return err
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM kpi_assignments WHERE position_id = $1", positionID); err != nil {
		return err
	}
	for _, a := range assignments {
		if _, err := tx.Exec(ctx, `
      INSERT INTO kpi_assignments (position_id, kpi_id, weight)
      VALUES ($1,$2,$3)
    `, positionID, a.KpiID, a.Weight); err != nil {
			return fmt.Errorf("assign kpi %d: %w", a.KpiID, err)
		}
	}
	return tx.Commit(ctx)
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

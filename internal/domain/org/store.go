package org

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("position not found")

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

// ListPositions fetches the full flat position list. Access decisions
// always run against a fresh fetch; the snapshot is never cached across
// requests because the org structure can change between calls.
func (s *Store) ListPositions(ctx context.Context) ([]Position, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, name, COALESCE(department_id, 0), COALESCE(reports_to, 0), role_tag
    FROM positions
    ORDER BY id
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.Name, &p.DepartmentID, &p.ReportsTo, &p.RoleTag); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Snapshot fetches positions and indexes them for traversal.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	positions, err := s.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	return BuildSnapshot(positions), nil
}

func (s *Store) Get(ctx context.Context, positionID int64) (*Position, error) {
	var p Position
	err := s.DB.QueryRow(ctx, `
    SELECT id, name, COALESCE(department_id, 0), COALESCE(reports_to, 0), role_tag
    FROM positions
    WHERE id = $1
  `, positionID).Scan(&p.ID, &p.Name, &p.DepartmentID, &p.ReportsTo, &p.RoleTag)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) Create(ctx context.Context, p Position) (int64, error) {
	var id int64
	err := s.DB.QueryRow(ctx, `
    INSERT INTO positions (name, department_id, reports_to, role_tag)
    VALUES ($1,$2,$3,$4)
    RETURNING id
  `, p.Name, nullIfZero(p.DepartmentID), nullIfZero(p.ReportsTo), p.RoleTag).Scan(&id)
	return id, err
}

func (s *Store) Update(ctx context.Context, positionID int64, p Position) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE positions
    SET name = $1, department_id = $2, reports_to = $3, role_tag = $4
    WHERE id = $5
  `, p.Name, nullIfZero(p.DepartmentID), nullIfZero(p.ReportsTo), p.RoleTag, positionID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func nullIfZero(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

package employee

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"timesheets/internal/platform/querier"
)

type Store struct {
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

func (s *Store) Lookup(ctx context.Context, id string) (Employee, error) {
	var emp Employee
	err := s.DB.QueryRow(ctx, `
    SELECT e.id, e.first_name, e.last_name,
           COALESCE(e.department_id, ''),
           COALESCE(d.name, ''),
           e.position, e.status
    FROM employees e
    LEFT JOIN departments d ON d.id = e.department_id
    WHERE e.id = $1 AND e.deleted_at IS NULL
  `, id).Scan(&emp.ID, &emp.FirstName, &emp.LastName, &emp.DepartmentID, &emp.Department, &emp.Position, &emp.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	return emp, nil
}

func (s *Store) Upsert(ctx context.Context, emp Employee) error {
	if emp.DepartmentID != "" {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO departments (id, name) VALUES ($1, $2)
      ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name
    `, emp.DepartmentID, emp.Department); err != nil {
			return err
		}
	}
	status := emp.Status
	if status == "" {
		status = "active"
	}
	_, err := s.DB.Exec(ctx, `
    INSERT INTO employees (id, first_name, last_name, department_id, position, status)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO UPDATE
    SET first_name = EXCLUDED.first_name,
        last_name = EXCLUDED.last_name,
        department_id = EXCLUDED.department_id,
        position = EXCLUDED.position,
        status = EXCLUDED.status
  `, emp.ID, emp.FirstName, emp.LastName, nullIfEmpty(emp.DepartmentID), emp.Position, status)
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

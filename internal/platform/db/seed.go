package db

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"timesheets/internal/domain/employee"
)

// EmployeeWriter is satisfied by employee.Store and employee.MemoryDirectory.
type EmployeeWriter interface {
	Upsert(ctx context.Context, emp employee.Employee) error
}

// LoadEmployees reads a JSON array of employee records.
func LoadEmployees(path string) ([]employee.Employee, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var employees []employee.Employee
	if err := json.Unmarshal(raw, &employees); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return employees, nil
}

// Seed upserts the employee directory consumed by exports. Records without an
// id or name are rejected before anything is written.
func Seed(ctx context.Context, store EmployeeWriter, employees []employee.Employee) (int, error) {
	for i, emp := range employees {
		if strings.TrimSpace(emp.ID) == "" {
			return 0, fmt.Errorf("employee %d: id is required", i)
		}
		if strings.TrimSpace(emp.FirstName) == "" && strings.TrimSpace(emp.LastName) == "" {
			return 0, fmt.Errorf("employee %s: name is required", emp.ID)
		}
	}
	for i, emp := range employees {
		if err := store.Upsert(ctx, emp); err != nil {
			return i, fmt.Errorf("employee %s: %w", emp.ID, err)
		}
	}
	return len(employees), nil
}

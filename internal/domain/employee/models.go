package employee

import (
	"context"
	"errors"
	"strings"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type Employee struct {
	ID           string `json:"id"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	DepartmentID string `json:"departmentId"`
	Department   string `json:"department"`
	Position     string `json:"position"`
	Status       string `json:"status"`
}

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}

// Directory resolves employee records owned by the HR core.
type Directory interface {
	Lookup(ctx context.Context, id string) (Employee, error)
}

package employee

import (
	"context"
	"sync"
)

type MemoryDirectory struct {
	mu        sync.RWMutex
	employees map[string]Employee
}

func NewMemoryDirectory(employees ...Employee) *MemoryDirectory {
	d := &MemoryDirectory{employees: map[string]Employee{}}
	for _, emp := range employees {
		d.employees[emp.ID] = emp
	}
	return d
}

func (d *MemoryDirectory) Lookup(_ context.Context, id string) (Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	emp, ok := d.employees[id]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return emp, nil
}

func (d *MemoryDirectory) Upsert(_ context.Context, emp Employee) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.employees[emp.ID] = emp
	return nil
}

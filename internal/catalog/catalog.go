package catalog

import (
	"context"
	"sync"

	"github.com/BIecoSRL/aweyt/internal/models"
	"github.com/BIecoSRL/aweyt/internal/store"
)

// Directory resolves service and department references for the queue
// engine. Departments and services are owned externally; the engine only
// reads them.
type Directory interface {
	ResolveService(ctx context.Context, serviceID string) (models.Service, error)
	ResolveDepartment(ctx context.Context, departmentID string) (models.Department, error)
}

// Static is a mutable in-memory Directory for embedding and tests.
type Static struct {
	mu          sync.RWMutex
	services    map[string]models.Service
	departments map[string]models.Department
}

func NewStatic() *Static {
	return &Static{
		services:    make(map[string]models.Service),
		departments: make(map[string]models.Department),
	}
}

func (s *Static) PutService(svc models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ServiceID] = svc
}

func (s *Static) PutDepartment(dept models.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[dept.DepartmentID] = dept
}

func (s *Static) ResolveService(ctx context.Context, serviceID string) (models.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[serviceID]
	if !ok {
		return models.Service{}, store.ErrServiceNotFound
	}
	return svc, nil
}

func (s *Static) ResolveDepartment(ctx context.Context, departmentID string) (models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dept, ok := s.departments[departmentID]
	if !ok {
		return models.Department{}, store.ErrDepartmentNotFound
	}
	return dept, nil
}

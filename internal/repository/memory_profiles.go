package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/nurpe/obras-service/internal/model"
)

// MemoryProfiles is the profile store used with the memory remote driver.
type MemoryProfiles struct {
	mu       sync.Mutex
	profiles map[string]model.Profile
}

func NewMemoryProfiles() *MemoryProfiles {
	return &MemoryProfiles{profiles: make(map[string]model.Profile)}
}

func (m *MemoryProfiles) Get(_ context.Context, id string) (*model.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *MemoryProfiles) Create(_ context.Context, p model.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return fmt.Errorf("profile %s already exists", p.ID)
	}
	m.profiles[p.ID] = model.Profile{ID: p.ID, FullName: p.FullName, Position: p.Position}
	return nil
}

func (m *MemoryProfiles) UpdateBranding(_ context.Context, id, logo, legend string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrProfileNotFound
	}
	p.ReportLogo = logo
	p.ReportLegend = legend
	m.profiles[id] = p
	return nil
}

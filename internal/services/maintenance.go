package services

import "sync"

// MaintenanceState is the operator-controlled maintenance toggle. It is
// passed explicitly to the components that consult it; nothing reads it
// through a package global.
type MaintenanceState struct {
	mu      sync.RWMutex
	enabled bool
}

// NewMaintenanceState creates the toggle in the off position
func NewMaintenanceState() *MaintenanceState {
	return &MaintenanceState{}
}

// Enabled reports whether maintenance mode is on
func (m *MaintenanceState) Enabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Set flips maintenance mode
func (m *MaintenanceState) Set(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

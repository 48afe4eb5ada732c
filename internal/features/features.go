package features

import (
	"sort"
	"sync"
)

// FeatureFlag represents a feature flag configuration.
type FeatureFlag struct {
	Name        string `json:"name"`
	Enabled     bool   `json:"enabled"`
	Description string `json:"description"`
}

// Manager manages feature flags.
type Manager struct {
	mu    sync.RWMutex
	flags map[string]*FeatureFlag
}

func NewManager() *Manager {
	return &Manager{flags: make(map[string]*FeatureFlag)}
}

// NewDefaultManager registers every known flag with its default value,
// then applies overrides. Overrides for unknown names are ignored.
func NewDefaultManager(overrides map[string]bool) *Manager {
	m := NewManager()
	m.Register(DailyLeadLimit, true, "Cap offers per partner per UTC day by subscription tier")
	m.Register(RejectLosingOffers, true, "Reject the other pending offers when a quote is selected")
	m.Register(LowBalanceAlerts, true, "Publish wallet.low_balance after a lead-cost debit")

	for name, enabled := range overrides {
		if enabled {
			m.Enable(name)
		} else {
			m.Disable(name)
		}
	}
	return m
}

func (m *Manager) Register(name string, enabled bool, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.flags[name] = &FeatureFlag{
		Name:        name,
		Enabled:     enabled,
		Description: description,
	}
}

// IsEnabled reports false for unregistered flags.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	flag, exists := m.flags[name]
	if !exists {
		return false
	}
	return flag.Enabled
}

func (m *Manager) Enable(name string) {
	m.set(name, true)
}

func (m *Manager) Disable(name string) {
	m.set(name, false)
}

func (m *Manager) set(name string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if flag, exists := m.flags[name]; exists {
		flag.Enabled = enabled
	}
}

// List returns a copy of every flag ordered by name.
func (m *Manager) List() []FeatureFlag {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]FeatureFlag, 0, len(m.flags))
	for _, v := range m.flags {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

const (
	// DailyLeadLimit enforces the per-tier maximum number of offers a
	// partner may submit in one UTC day.
	DailyLeadLimit = "daily_lead_limit"
	// RejectLosingOffers marks the other pending offers REJECTED on selection.
	// When off they stay PENDING, but can never be selected.
	RejectLosingOffers = "reject_losing_offers"
	LowBalanceAlerts   = "low_balance_alerts"
)

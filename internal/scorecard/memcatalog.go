package scorecard

import (
	"context"
	"sync"
)

// MemCatalog is an in-memory [Catalog] for tests and local development.
// Scorecards are matched on CallType; a scorecard with an empty CallType
// acts as the default. Safe for concurrent use.
type MemCatalog struct {
	mu         sync.RWMutex
	byCallType map[string]*Scorecard
}

// Compile-time interface check.
var _ Catalog = (*MemCatalog)(nil)

// NewMemCatalog creates an empty [MemCatalog].
func NewMemCatalog() *MemCatalog {
	return &MemCatalog{byCallType: make(map[string]*Scorecard)}
}

// Put registers sc for the given call type. An empty callType registers the
// default scorecard.
func (m *MemCatalog) Put(callType string, sc *Scorecard) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byCallType[callType] = sc
}

// SelectForCall implements [Catalog].
func (m *MemCatalog) SelectForCall(_ context.Context, cc CallContext) (*Scorecard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sc, ok := m.byCallType[cc.CallType]; ok {
		return sc, nil
	}
	return m.byCallType[""], nil
}

// CriteriaFor implements [Catalog].
func (m *MemCatalog) CriteriaFor(_ context.Context, scorecardID string) ([]Criterion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sc := range m.byCallType {
		if sc != nil && sc.ID == scorecardID {
			return sc.Criteria, nil
		}
	}
	return nil, nil
}

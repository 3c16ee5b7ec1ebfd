// Package candidates supplies the sibling sets used in original mode.
// The engine does not compute visual similarity; it consumes the groups
// a scanner produced and validates recording targets against them.
package candidates

import (
	"sync"

	"github.com/paramita1949/C-Canvas-sub007/internal/store"
)

// Provider resolves a grouping key to the sibling stops eligible as
// transition targets.
type Provider interface {
	Siblings(groupKey string) []store.StopID
	Contains(groupKey string, id store.StopID) bool
}

// Static is a map-backed Provider for hosts that hand the engine a
// pre-computed candidate set directly.
type Static struct {
	mu     sync.RWMutex
	groups map[string][]store.StopID
}

// NewStatic creates a Static provider from a group map. A nil map yields
// an empty provider.
func NewStatic(groups map[string][]store.StopID) *Static {
	if groups == nil {
		groups = make(map[string][]store.StopID)
	}
	return &Static{groups: groups}
}

// Set replaces the sibling set for a group.
func (p *Static) Set(groupKey string, members []store.StopID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.groups[groupKey] = members
}

func (p *Static) Siblings(groupKey string) []store.StopID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := p.groups[groupKey]
	out := make([]store.StopID, len(members))
	copy(out, members)
	return out
}

func (p *Static) Contains(groupKey string, id store.StopID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for _, m := range p.groups[groupKey] {
		if m == id {
			return true
		}
	}
	return false
}

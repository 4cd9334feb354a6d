package service

import (
	"sync"

	"github.com/Harshitk-cp/veritas/internal/domain"
)

// BranchRegistry resolves branch adapters by branch tag. At most one adapter
// is registered per branch so results can never be mixed.
type BranchRegistry struct {
	mu       sync.RWMutex
	adapters map[domain.Branch]domain.BranchAdapter
}

func NewBranchRegistry(adapters ...domain.BranchAdapter) *BranchRegistry {
	r := &BranchRegistry{adapters: make(map[domain.Branch]domain.BranchAdapter)}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// Register installs a, replacing any adapter already serving its branch.
func (r *BranchRegistry) Register(a domain.BranchAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Branch()] = a
}

func (r *BranchRegistry) Get(b domain.Branch) (domain.BranchAdapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[b]
	return a, ok
}

// Branches lists registered branches in descending trust order.
func (r *BranchRegistry) Branches() []domain.Branch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Branch
	for _, b := range domain.AllBranches {
		if _, ok := r.adapters[b]; ok {
			out = append(out, b)
		}
	}
	return out
}

// CouncilRegistry resolves council members by name, preserving registration
// order.
type CouncilRegistry struct {
	mu      sync.RWMutex
	members map[string]domain.CouncilMember
	order   []string
}

func NewCouncilRegistry(members ...domain.CouncilMember) *CouncilRegistry {
	r := &CouncilRegistry{members: make(map[string]domain.CouncilMember)}
	for _, m := range members {
		r.Register(m)
	}
	return r
}

func (r *CouncilRegistry) Register(m domain.CouncilMember) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[m.Name()]; !exists {
		r.order = append(r.order, m.Name())
	}
	r.members[m.Name()] = m
}

func (r *CouncilRegistry) Get(name string) (domain.CouncilMember, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[name]
	return m, ok
}

func (r *CouncilRegistry) Members() []domain.CouncilMember {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.CouncilMember, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.members[name])
	}
	return out
}

func (r *CouncilRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

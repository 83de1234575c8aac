package services

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/tahirov/eduadmin-api/model"
	"gorm.io/gorm"
)

// TreeNode is one institution inside an immutable tree snapshot
type TreeNode struct {
	ID       uint
	ParentID *uint
	Level    int
	Type     string
	Name     string
	IsActive bool
}

// TreeSnapshot is a read-only, point-in-time view of the institution
// hierarchy. Snapshots are never mutated after construction, so they can
// be shared across requests without locking. The version is part of the
// scope cache key: bumping it on refresh invalidates cached scopes.
type TreeSnapshot struct {
	version  uint64
	nodes    map[uint]*TreeNode
	children map[uint][]uint
}

// NewTreeSnapshot builds a snapshot from a flat list of institutions
func NewTreeSnapshot(institutions []model.Institution, version uint64) *TreeSnapshot {
	s := &TreeSnapshot{
		version:  version,
		nodes:    make(map[uint]*TreeNode, len(institutions)),
		children: make(map[uint][]uint),
	}
	for i := range institutions {
		inst := &institutions[i]
		s.nodes[inst.ID] = &TreeNode{
			ID:       inst.ID,
			ParentID: inst.ParentID,
			Level:    inst.Level,
			Type:     inst.Type,
			Name:     inst.Name,
			IsActive: inst.IsActive,
		}
	}
	for id, node := range s.nodes {
		if node.ParentID != nil {
			s.children[*node.ParentID] = append(s.children[*node.ParentID], id)
		}
	}
	return s
}

// Version returns the snapshot's version counter
func (s *TreeSnapshot) Version() uint64 {
	return s.version
}

// Node returns the institution node with the given id
func (s *TreeSnapshot) Node(id uint) (*TreeNode, bool) {
	node, ok := s.nodes[id]
	return node, ok
}

// Size returns the number of institutions in the snapshot
func (s *TreeSnapshot) Size() int {
	return len(s.nodes)
}

// Subtree returns the given institution plus all its descendants,
// following parent->child edges transitively. The root id is always
// first. Returns nil when the id is unknown.
func (s *TreeSnapshot) Subtree(id uint) []uint {
	if _, ok := s.nodes[id]; !ok {
		return nil
	}
	result := []uint{id}
	queue := append([]uint(nil), s.children[id]...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)
		queue = append(queue, s.children[current]...)
	}
	return result
}

// Ancestors returns the chain of ancestors from the immediate parent up
// to the root. Empty for roots and unknown ids.
func (s *TreeSnapshot) Ancestors(id uint) []uint {
	var result []uint
	node, ok := s.nodes[id]
	if !ok {
		return result
	}
	for node.ParentID != nil {
		parent, ok := s.nodes[*node.ParentID]
		if !ok {
			break
		}
		result = append(result, parent.ID)
		node = parent
	}
	return result
}

// AncestorAtLevel returns the ancestor-or-self of id at the given
// hierarchy level
func (s *TreeSnapshot) AncestorAtLevel(id uint, level int) (uint, bool) {
	node, ok := s.nodes[id]
	if !ok {
		return 0, false
	}
	for node != nil {
		if node.Level == level {
			return node.ID, true
		}
		if node.ParentID == nil {
			break
		}
		node = s.nodes[*node.ParentID]
	}
	return 0, false
}

// IsAncestorOrSelf reports whether ancestor is id itself or one of its
// ancestors
func (s *TreeSnapshot) IsAncestorOrSelf(ancestor, id uint) bool {
	if ancestor == id {
		_, ok := s.nodes[id]
		return ok
	}
	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	for node.ParentID != nil {
		if *node.ParentID == ancestor {
			return true
		}
		node, ok = s.nodes[*node.ParentID]
		if !ok {
			return false
		}
	}
	return false
}

// TreeService loads institution tree snapshots from the database and
// hands out the current one. Structural changes to the tree must go
// through Refresh so cached access scopes keyed by the old version stop
// being served.
type TreeService struct {
	db *gorm.DB

	mu       sync.RWMutex
	snapshot *TreeSnapshot
	version  uint64
}

// NewTreeService creates a new tree service
func NewTreeService(db *gorm.DB) *TreeService {
	return &TreeService{db: db}
}

// Snapshot returns the current tree snapshot, loading it on first use
func (s *TreeService) Snapshot(ctx context.Context) (*TreeSnapshot, error) {
	s.mu.RLock()
	snapshot := s.snapshot
	s.mu.RUnlock()
	if snapshot != nil {
		return snapshot, nil
	}
	return s.Refresh(ctx)
}

// Refresh reloads the tree from the database and bumps the version
func (s *TreeService) Refresh(ctx context.Context) (*TreeSnapshot, error) {
	var institutions []model.Institution
	if err := s.db.WithContext(ctx).Find(&institutions).Error; err != nil {
		return nil, fmt.Errorf("failed to load institutions: %w", err)
	}

	s.mu.Lock()
	s.version++
	s.snapshot = NewTreeSnapshot(institutions, s.version)
	snapshot := s.snapshot
	s.mu.Unlock()

	log.Printf("Institution tree refreshed: %d institutions, version %d", snapshot.Size(), snapshot.Version())
	return snapshot, nil
}

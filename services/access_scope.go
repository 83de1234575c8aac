package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tahirov/eduadmin-api/model"
	"github.com/tahirov/eduadmin-api/utils/cache"
)

// scopeCacheTTL bounds how long a resolved scope may be served without
// recomputation. Invalidation is explicit (user change or tree refresh);
// the TTL is a backstop.
const scopeCacheTTL = 10 * time.Minute

// ScopeResult is the set of institutions a user may access. Unrestricted
// is a sentinel for superadmin: callers must treat it as "no filter
// applied", never enumerate all institutions.
type ScopeResult struct {
	Unrestricted   bool   `json:"unrestricted"`
	InstitutionIDs []uint `json:"institution_ids"`
}

// IsEmpty reports whether the scope denies all access
func (r ScopeResult) IsEmpty() bool {
	return !r.Unrestricted && len(r.InstitutionIDs) == 0
}

// Contains reports whether the institution is inside the scope
func (r ScopeResult) Contains(institutionID uint) bool {
	if r.Unrestricted {
		return true
	}
	for _, id := range r.InstitutionIDs {
		if id == institutionID {
			return true
		}
	}
	return false
}

// scopeStrategy computes a scope for one role against a tree snapshot.
// Strategies are pure: same user and snapshot always yield the same
// result. Adding a role means adding one table entry.
type scopeStrategy func(user *model.User, tree *TreeSnapshot) (ScopeResult, error)

var scopeStrategies = map[string]scopeStrategy{
	model.RoleSuperAdmin:     unrestrictedScope,
	model.RoleRegionAdmin:    subtreeScope,
	model.RoleRegionOperator: subtreeScope,
	model.RoleSektorAdmin:    subtreeScope,
	model.RoleSchoolAdmin:    subtreeScope,
	model.RoleTeacher:        subtreeScope,
}

func unrestrictedScope(_ *model.User, _ *TreeSnapshot) (ScopeResult, error) {
	return ScopeResult{Unrestricted: true}, nil
}

// subtreeScope grants the home institution plus its entire subtree. An
// inactive home institution denies all access; ancestor activity is not
// inherited and does not affect descendants.
func subtreeScope(user *model.User, tree *TreeSnapshot) (ScopeResult, error) {
	home := user.HomeInstitutionID()
	if home == 0 {
		return ScopeResult{}, fmt.Errorf("user %d has no home institution: %w", user.ID, ErrUnresolvableScope)
	}
	node, ok := tree.Node(home)
	if !ok {
		return ScopeResult{}, fmt.Errorf("institution %d not in tree: %w", home, ErrUnresolvableScope)
	}
	if !node.IsActive {
		return ScopeResult{}, nil
	}
	return ScopeResult{InstitutionIDs: tree.Subtree(home)}, nil
}

// AccessScopeService resolves the set of institutions a user may access.
// Results are cached in Redis keyed by (tree version, user, role, home
// institution) so any change to those recomputes the scope.
type AccessScopeService struct {
	tree  *TreeService
	cache *cache.RedisCache // optional; nil disables caching
}

// NewAccessScopeService creates a new access scope service
func NewAccessScopeService(tree *TreeService, redisCache *cache.RedisCache) *AccessScopeService {
	return &AccessScopeService{
		tree:  tree,
		cache: redisCache,
	}
}

// Resolve computes the access scope for a user. Unknown roles resolve to
// the empty scope (deny-all), never to unrestricted.
func (s *AccessScopeService) Resolve(ctx context.Context, user *model.User) (ScopeResult, error) {
	if user == nil {
		return ScopeResult{}, fmt.Errorf("nil user: %w", ErrUnresolvableScope)
	}

	tree, err := s.tree.Snapshot(ctx)
	if err != nil {
		return ScopeResult{}, err
	}

	key := s.cacheKey(user, tree.Version())
	if s.cache != nil {
		var cached ScopeResult
		if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, cache.ErrNotFound) {
			log.Printf("Scope cache read failed for user %d: %v", user.ID, err)
		}
	}

	strategy, ok := scopeStrategies[user.Role]
	if !ok {
		// Unknown role denies all access
		return ScopeResult{}, nil
	}

	scope, err := strategy(user, tree)
	if err != nil {
		return ScopeResult{}, err
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, scope, scopeCacheTTL); err != nil {
			log.Printf("Scope cache write failed for user %d: %v", user.ID, err)
		}
	}
	return scope, nil
}

// InvalidateUser drops every cached scope for a user. Call after a role
// or institution assignment change.
func (s *AccessScopeService) InvalidateUser(ctx context.Context, userID uint) error {
	if s.cache == nil {
		return nil
	}
	keys, err := s.cache.Keys(ctx, fmt.Sprintf("scope:*:u%d:*", userID))
	if err != nil {
		return fmt.Errorf("failed to list scope cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.cache.Delete(ctx, keys...)
}

// InvalidateTree refreshes the tree snapshot. The version bump makes
// every previously cached scope unreachable, which is the write barrier
// required after structural tree changes.
func (s *AccessScopeService) InvalidateTree(ctx context.Context) error {
	_, err := s.tree.Refresh(ctx)
	return err
}

func (s *AccessScopeService) cacheKey(user *model.User, treeVersion uint64) string {
	return fmt.Sprintf("scope:v%d:u%d:%s:i%d", treeVersion, user.ID, user.Role, user.HomeInstitutionID())
}

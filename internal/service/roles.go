package service

import (
	"context"
	"sync"

	"github.com/Vishesh-Tomer/school-erp/internal/domain"
	"github.com/Vishesh-Tomer/school-erp/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleResolver maps role names to permission sets, with a small read-through
// cache. Roles are read-mostly: the cache is invalidated only on the rare
// role write and on seeding.
type RoleResolver struct {
	pool  *pgxpool.Pool
	roles repository.RoleRepository

	mu    sync.RWMutex
	cache map[string][]string
}

// NewRoleResolver creates a RoleResolver.
func NewRoleResolver(pool *pgxpool.Pool, roles repository.RoleRepository) *RoleResolver {
	return &RoleResolver{
		pool:  pool,
		roles: roles,
		cache: make(map[string][]string),
	}
}

// SeedDefaults inserts the bootstrap roles. Safe to call on every startup:
// the unique name constraint makes concurrent seeds converge on one row per
// role.
func (r *RoleResolver) SeedDefaults(ctx context.Context) error {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	if err := r.roles.Seed(ctx, r.pool, domain.SeedRoles()); err != nil {
		return storeErr("seed roles", err)
	}
	r.Invalidate()
	return nil
}

// ListRoles returns all known role names.
func (r *RoleResolver) ListRoles(ctx context.Context) ([]string, error) {
	ctx, cancel := storeCtx(ctx)
	defer cancel()

	names, err := r.roles.ListNames(ctx, r.pool)
	if err != nil {
		return nil, storeErr("list roles", err)
	}
	return names, nil
}

// RightsFor returns the permission set for a role, empty if unknown.
func (r *RoleResolver) RightsFor(ctx context.Context, roleName string) ([]string, error) {
	r.mu.RLock()
	cached, ok := r.cache[roleName]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	ctx, cancel := storeCtx(ctx)
	defer cancel()

	role, err := r.roles.FindByName(ctx, r.pool, roleName)
	if err != nil {
		return nil, storeErr("find role", err)
	}

	perms := []string{}
	if role != nil {
		perms = role.Permissions
	}

	r.mu.Lock()
	r.cache[roleName] = perms
	r.mu.Unlock()
	return perms, nil
}

// Invalidate drops the permission cache.
func (r *RoleResolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string][]string)
	r.mu.Unlock()
}

package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testGuild  = "200000000000000001"
	testRoleA  = "300000000000000001"
	testRoleB  = "300000000000000002"
	testRoleC  = "300000000000000003"
	testUserA  = "100000000000000001"
	testUserB  = "100000000000000002"
	otherGuild = "200000000000000002"
)

type storeFactory func(t *testing.T) Store

// Both backends must satisfy the same observable behavior, so every test in
// this file runs once per backend.
func backends() map[string]storeFactory {
	return map[string]storeFactory{
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "grants.json"), zap.NewNop())
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "grants.db"), zap.NewNop())
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return s
		},
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, s Store)) {
	for name, factory := range backends() {
		t.Run(name, func(t *testing.T) {
			fn(t, factory(t))
		})
	}
}

// ============================================================================
// Idempotence and symmetry
// ============================================================================

func TestStore_AddServerManagerIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		added, err := s.AddServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = s.AddServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		assert.False(t, added, "duplicate insert must be a no-op")

		managers, err := s.GetServerManagers(ctx, testGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleA}, managers)
	})
}

func TestStore_AddRoleManagerIdempotent(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		added, err := s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.True(t, added)

		added, err = s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.False(t, added)

		managers, err := s.GetRoleManagers(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		assert.Equal(t, []string{testUserA}, managers, "stored set contains the user exactly once")
	})
}

func TestStore_RemoveAbsentGrantReturnsFalse(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		removed, err := s.RemoveRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.False(t, removed)

		removed, err = s.RemoveServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		assert.False(t, removed)

		grants, err := s.AllGrants(ctx)
		require.NoError(t, err)
		assert.Empty(t, grants.ServerManagers)
		assert.Empty(t, grants.RoleManagers)
	})
}

func TestStore_RemoveThenReAdd(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)

		removed, err := s.RemoveRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.True(t, removed)

		isManager, err := s.IsRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.False(t, isManager)

		added, err := s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		assert.True(t, added)
	})
}

// ============================================================================
// Validation
// ============================================================================

func TestStore_BlankInputsAreRejectedQuietly(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		added, err := s.AddServerManager(ctx, "", testRoleA)
		require.NoError(t, err)
		assert.False(t, added)

		added, err = s.AddRoleManager(ctx, testGuild, "   ", testUserA)
		require.NoError(t, err)
		assert.False(t, added)

		removed, err := s.RemoveServerManager(ctx, testGuild, "")
		require.NoError(t, err)
		assert.False(t, removed)

		isManager, err := s.IsRoleManager(ctx, "", "", "")
		require.NoError(t, err)
		assert.False(t, isManager)

		managers, err := s.GetServerManagers(ctx, " ")
		require.NoError(t, err)
		assert.Empty(t, managers)

		roles, err := s.GetManagedRoles(ctx, "")
		require.NoError(t, err)
		assert.Empty(t, roles)
	})
}

// ============================================================================
// Accessors
// ============================================================================

func TestStore_Accessors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleB, testUserA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleB, testUserB)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, otherGuild, testRoleC, testUserA)
		require.NoError(t, err)

		isServer, err := s.IsServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		assert.True(t, isServer)

		isServer, err = s.IsServerManager(ctx, testGuild, testRoleB)
		require.NoError(t, err)
		assert.False(t, isServer)

		isRole, err := s.IsRoleManager(ctx, testGuild, testRoleB, testUserA)
		require.NoError(t, err)
		assert.True(t, isRole)

		isRole, err = s.IsRoleManager(ctx, testGuild, testRoleC, testUserA)
		require.NoError(t, err)
		assert.False(t, isRole, "grants are scoped per guild and role")

		managed, err := s.GetManagedRoles(ctx, testGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleB}, managed)

		roleManagers, err := s.GetRoleManagers(ctx, testGuild, testRoleB)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{testUserA, testUserB}, roleManagers)

		grants, err := s.AllGrants(ctx)
		require.NoError(t, err)
		assert.Len(t, grants.ServerManagers, 1)
		assert.Len(t, grants.RoleManagers, 3)
	})
}

func TestStore_GetManagedRolesIsDistinct(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleA, testUserB)
		require.NoError(t, err)

		managed, err := s.GetManagedRoles(ctx, testGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleA}, managed)
	})
}

// ============================================================================
// Bulk pruning
// ============================================================================

func TestStore_DeleteGrantsNotIn(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		_, err = s.AddServerManager(ctx, testGuild, testRoleC)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleB, testUserA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleC, testUserA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleC, testUserB)
		require.NoError(t, err)
		// Another guild's grants must be untouched.
		_, err = s.AddServerManager(ctx, otherGuild, testRoleC)
		require.NoError(t, err)

		valid := map[string]struct{}{testRoleA: {}, testRoleB: {}}
		result, err := s.DeleteGrantsNotIn(ctx, testGuild, valid)
		require.NoError(t, err)
		assert.Equal(t, 1, result.RemovedServerManagers)
		assert.Equal(t, 2, result.RemovedRoleManagers)

		managers, err := s.GetServerManagers(ctx, testGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleA}, managers)

		managed, err := s.GetManagedRoles(ctx, testGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleB}, managed)

		otherManagers, err := s.GetServerManagers(ctx, otherGuild)
		require.NoError(t, err)
		assert.Equal(t, []string{testRoleC}, otherManagers)

		// Second pass with the same cache state removes nothing.
		result, err = s.DeleteGrantsNotIn(ctx, testGuild, valid)
		require.NoError(t, err)
		assert.Zero(t, result.RemovedServerManagers)
		assert.Zero(t, result.RemovedRoleManagers)
	})
}

func TestStore_DeleteGrantsNotInEmptySetRemovesAll(t *testing.T) {
	forEachBackend(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.AddServerManager(ctx, testGuild, testRoleA)
		require.NoError(t, err)
		_, err = s.AddRoleManager(ctx, testGuild, testRoleB, testUserA)
		require.NoError(t, err)

		result, err := s.DeleteGrantsNotIn(ctx, testGuild, map[string]struct{}{})
		require.NoError(t, err)
		assert.Equal(t, 1, result.RemovedServerManagers)
		assert.Equal(t, 1, result.RemovedRoleManagers)

		grants, err := s.AllGrants(ctx)
		require.NoError(t, err)
		assert.Empty(t, grants.ServerManagers)
		assert.Empty(t, grants.RoleManagers)
	})
}

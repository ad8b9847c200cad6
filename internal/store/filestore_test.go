package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStore_StartsEmptyWhenFileMissing(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "grants.json"), zap.NewNop())
	require.NoError(t, err)

	grants, err := s.AllGrants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, grants.ServerManagers)
	assert.Empty(t, grants.RoleManagers)
}

func TestFileStore_RejectsMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileStore(path, zap.NewNop())
	assert.Error(t, err)
	assert.Nil(t, s)
}

func TestFileStore_PrunesEmptyEntriesOnLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	doc := map[string]guildGrants{
		testGuild: {
			Managers: []string{testRoleA},
			// Role with no managers must be dropped on load.
			Roles: map[string][]string{testRoleB: {}},
		},
		otherGuild: {
			// Entirely empty guild entry must be dropped on load.
			Managers: []string{},
			Roles:    map[string][]string{},
		},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	managed, err := s.GetManagedRoles(ctx, testGuild)
	require.NoError(t, err)
	assert.Empty(t, managed)

	managers, err := s.GetServerManagers(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{testRoleA}, managers)

	assert.NotContains(t, s.data, otherGuild)
}

func TestFileStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	ctx := context.Background()

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	_, err = s.AddServerManager(ctx, testGuild, testRoleA)
	require.NoError(t, err)
	_, err = s.AddRoleManager(ctx, testGuild, testRoleB, testUserA)
	require.NoError(t, err)

	reopened, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)

	isServer, err := reopened.IsServerManager(ctx, testGuild, testRoleA)
	require.NoError(t, err)
	assert.True(t, isServer)

	isRole, err := reopened.IsRoleManager(ctx, testGuild, testRoleB, testUserA)
	require.NoError(t, err)
	assert.True(t, isRole)
}

func TestFileStore_DropsEmptyRoleListOnSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.json")
	ctx := context.Background()

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	_, err = s.AddRoleManager(ctx, testGuild, testRoleA, testUserA)
	require.NoError(t, err)
	_, err = s.RemoveRoleManager(ctx, testGuild, testRoleA, testUserA)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]guildGrants
	require.NoError(t, json.Unmarshal(raw, &doc))
	if node, ok := doc[testGuild]; ok {
		assert.NotContains(t, node.Roles, testRoleA)
	}
}

func TestFileStore_WriteGoesThroughRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grants.json")
	ctx := context.Background()

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	_, err = s.AddServerManager(ctx, testGuild, testRoleA)
	require.NoError(t, err)

	// No temp files may survive a successful save.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "grants.json", entries[0].Name())
}

func TestFileStore_SaveFailureLeavesStateUntouched(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "grants.json")
	ctx := context.Background()

	s, err := NewFileStore(path, zap.NewNop())
	require.NoError(t, err)
	_, err = s.AddServerManager(ctx, testGuild, testRoleA)
	require.NoError(t, err)

	// Point the store at an unwritable location to force a save failure.
	s.path = filepath.Join(dir, "missing", "grants.json")

	added, err := s.AddServerManager(ctx, testGuild, testRoleB)
	assert.Error(t, err)
	assert.False(t, added)

	s.path = path
	managers, err := s.GetServerManagers(ctx, testGuild)
	require.NoError(t, err)
	assert.Equal(t, []string{testRoleA}, managers, "failed write must not leak into memory")
}

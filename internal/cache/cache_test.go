package cache

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/models"
)

func newTestCache() *Cache {
	return New(zap.NewNop())
}

func TestCache_UpsertThenGet(t *testing.T) {
	c := newTestCache()

	guild := models.CachedGuild{ID: "200000000000000001", Name: "Test Guild", OwnerID: "100000000000000001"}
	c.UpsertGuild(guild)

	got, ok := c.Guild(guild.ID)
	require.True(t, ok)
	assert.Equal(t, guild, got)

	_, ok = c.Guild("200000000000000999")
	assert.False(t, ok)
}

func TestCache_UpsertOverwritesByID(t *testing.T) {
	c := newTestCache()

	c.UpsertRole(models.CachedRole{ID: "300000000000000001", GuildID: "200000000000000001", Name: "Mods", Position: 3})
	c.UpsertRole(models.CachedRole{ID: "300000000000000001", GuildID: "200000000000000001", Name: "Moderators", Position: 4})

	role, ok := c.Role("300000000000000001")
	require.True(t, ok)
	assert.Equal(t, "Moderators", role.Name)
	assert.Equal(t, 4, role.Position)
	assert.Len(t, c.GuildRoles("200000000000000001"), 1)
}

func TestCache_RemoveThenGetIsNotFound(t *testing.T) {
	c := newTestCache()

	role := models.CachedRole{ID: "300000000000000001", GuildID: "200000000000000001", Name: "Mods"}
	c.UpsertRole(role)
	c.RemoveRole(role.ID)

	_, ok := c.Role(role.ID)
	assert.False(t, ok)

	// Removing an absent entity is a no-op, not an error.
	c.RemoveRole(role.ID)
	c.RemoveGuild("200000000000000404")
	c.RemoveChannel("400000000000000404")
	c.RemoveThread("500000000000000404")
	c.RemoveMember("100000000000000404")
}

func TestCache_UpsertIgnoresEmptyID(t *testing.T) {
	c := newTestCache()

	c.UpsertGuild(models.CachedGuild{Name: "nameless"})
	c.UpsertMember(models.CachedMember{Username: "ghost"})

	guilds, _, _, members, _ := c.Counts()
	assert.Zero(t, guilds)
	assert.Zero(t, members)
}

func TestCache_ListByGuildNeverLeaksOtherGuilds(t *testing.T) {
	c := newTestCache()

	c.UpsertRole(models.CachedRole{ID: "300000000000000001", GuildID: "200000000000000001", Name: "Mods"})
	c.UpsertRole(models.CachedRole{ID: "300000000000000002", GuildID: "200000000000000002", Name: "Admins"})
	c.UpsertMember(models.CachedMember{ID: "100000000000000001", GuildID: "200000000000000001", Username: "isahooman"})
	c.UpsertMember(models.CachedMember{ID: "100000000000000002", GuildID: "200000000000000002", Username: "someone"})
	c.UpsertChannel(models.CachedChannel{ID: "400000000000000001", GuildID: "200000000000000001", Name: "general"})
	c.UpsertThread(models.CachedThread{ID: "500000000000000001", GuildID: "200000000000000002", Name: "help"})

	roles := c.GuildRoles("200000000000000001")
	require.Len(t, roles, 1)
	assert.Equal(t, "Mods", roles[0].Name)

	members := c.GuildMembers("200000000000000002")
	require.Len(t, members, 1)
	assert.Equal(t, "someone", members[0].Username)

	assert.Len(t, c.GuildChannels("200000000000000001"), 1)
	assert.Empty(t, c.GuildChannels("200000000000000002"))
	assert.Len(t, c.GuildThreads("200000000000000002"), 1)
	assert.Empty(t, c.GuildThreads("200000000000000001"))
}

func TestCache_ListByGuildEmptyResultIsNotNil(t *testing.T) {
	c := newTestCache()

	assert.NotNil(t, c.GuildRoles("200000000000000001"))
	assert.NotNil(t, c.GuildMembers("200000000000000001"))
	assert.NotNil(t, c.GuildChannels("200000000000000001"))
	assert.NotNil(t, c.GuildThreads("200000000000000001"))
	assert.Empty(t, c.GuildRoles("200000000000000001"))
}

func TestCache_GuildRoleIDSet(t *testing.T) {
	c := newTestCache()

	c.UpsertRole(models.CachedRole{ID: "300000000000000001", GuildID: "200000000000000001"})
	c.UpsertRole(models.CachedRole{ID: "300000000000000002", GuildID: "200000000000000001"})
	c.UpsertRole(models.CachedRole{ID: "300000000000000003", GuildID: "200000000000000002"})

	ids := c.GuildRoleIDSet("200000000000000001")
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "300000000000000001")
	assert.Contains(t, ids, "300000000000000002")
	assert.NotContains(t, ids, "300000000000000003")
}

func TestCache_ConcurrentAccess(t *testing.T) {
	c := newTestCache()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("3000000000000000%02d", n)
			for j := 0; j < 100; j++ {
				c.UpsertRole(models.CachedRole{ID: id, GuildID: "200000000000000001", Position: j})
				c.Role(id)
				c.GuildRoles("200000000000000001")
			}
		}(i)
	}
	wg.Wait()

	// Per-ID last write wins: every role ends at its final position.
	for i := 0; i < 16; i++ {
		role, ok := c.Role(fmt.Sprintf("3000000000000000%02d", i))
		require.True(t, ok)
		assert.Equal(t, 99, role.Position)
	}
}

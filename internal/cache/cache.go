// Package cache holds the in-memory mirror of Discord entities. It is fed by
// gateway events and bulk snapshot loads and serves point and per-guild
// lookups. State is last-write-wins per entity ID and has no durability:
// losing the cache is a cold start requiring a fresh snapshot.
package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/models"
)

// Cache is the entity cache. All methods are safe for concurrent use.
type Cache struct {
	mu       sync.RWMutex
	guilds   map[string]models.CachedGuild
	channels map[string]models.CachedChannel
	threads  map[string]models.CachedThread
	members  map[string]models.CachedMember
	roles    map[string]models.CachedRole

	log *zap.Logger
}

// New creates an empty cache.
func New(log *zap.Logger) *Cache {
	return &Cache{
		guilds:   make(map[string]models.CachedGuild),
		channels: make(map[string]models.CachedChannel),
		threads:  make(map[string]models.CachedThread),
		members:  make(map[string]models.CachedMember),
		roles:    make(map[string]models.CachedRole),
		log:      log,
	}
}

// UpsertGuild inserts or overwrites a guild by ID.
func (c *Cache) UpsertGuild(guild models.CachedGuild) {
	if guild.ID == "" {
		return
	}
	c.mu.Lock()
	c.guilds[guild.ID] = guild
	c.mu.Unlock()
	c.log.Debug("cached guild", zap.String("guild_id", guild.ID), zap.String("name", guild.Name))
}

// RemoveGuild deletes a guild if present.
func (c *Cache) RemoveGuild(guildID string) {
	c.mu.Lock()
	delete(c.guilds, guildID)
	c.mu.Unlock()
	c.log.Debug("removed guild from cache", zap.String("guild_id", guildID))
}

// Guild returns the cached guild with the given ID.
func (c *Cache) Guild(guildID string) (models.CachedGuild, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	guild, ok := c.guilds[guildID]
	return guild, ok
}

// UpsertChannel inserts or overwrites a channel by ID.
func (c *Cache) UpsertChannel(channel models.CachedChannel) {
	if channel.ID == "" {
		return
	}
	c.mu.Lock()
	c.channels[channel.ID] = channel
	c.mu.Unlock()
	c.log.Debug("cached channel", zap.String("channel_id", channel.ID), zap.String("name", channel.Name))
}

// RemoveChannel deletes a channel if present.
func (c *Cache) RemoveChannel(channelID string) {
	c.mu.Lock()
	delete(c.channels, channelID)
	c.mu.Unlock()
	c.log.Debug("removed channel from cache", zap.String("channel_id", channelID))
}

// Channel returns the cached channel with the given ID.
func (c *Cache) Channel(channelID string) (models.CachedChannel, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channel, ok := c.channels[channelID]
	return channel, ok
}

// UpsertThread inserts or overwrites a thread by ID.
func (c *Cache) UpsertThread(thread models.CachedThread) {
	if thread.ID == "" {
		return
	}
	c.mu.Lock()
	c.threads[thread.ID] = thread
	c.mu.Unlock()
	c.log.Debug("cached thread", zap.String("thread_id", thread.ID), zap.String("name", thread.Name))
}

// RemoveThread deletes a thread if present.
func (c *Cache) RemoveThread(threadID string) {
	c.mu.Lock()
	delete(c.threads, threadID)
	c.mu.Unlock()
	c.log.Debug("removed thread from cache", zap.String("thread_id", threadID))
}

// Thread returns the cached thread with the given ID.
func (c *Cache) Thread(threadID string) (models.CachedThread, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	thread, ok := c.threads[threadID]
	return thread, ok
}

// UpsertMember inserts or overwrites a member by user ID.
func (c *Cache) UpsertMember(member models.CachedMember) {
	if member.ID == "" {
		return
	}
	c.mu.Lock()
	c.members[member.ID] = member
	c.mu.Unlock()
	c.log.Debug("cached member", zap.String("user_id", member.ID), zap.String("username", member.Username))
}

// RemoveMember deletes a member if present.
func (c *Cache) RemoveMember(userID string) {
	c.mu.Lock()
	delete(c.members, userID)
	c.mu.Unlock()
	c.log.Debug("removed member from cache", zap.String("user_id", userID))
}

// Member returns the cached member with the given user ID.
func (c *Cache) Member(userID string) (models.CachedMember, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	member, ok := c.members[userID]
	return member, ok
}

// UpsertRole inserts or overwrites a role by ID.
func (c *Cache) UpsertRole(role models.CachedRole) {
	if role.ID == "" {
		return
	}
	c.mu.Lock()
	c.roles[role.ID] = role
	c.mu.Unlock()
	c.log.Debug("cached role", zap.String("role_id", role.ID), zap.String("name", role.Name))
}

// RemoveRole deletes a role if present.
func (c *Cache) RemoveRole(roleID string) {
	c.mu.Lock()
	delete(c.roles, roleID)
	c.mu.Unlock()
	c.log.Debug("removed role from cache", zap.String("role_id", roleID))
}

// Role returns the cached role with the given ID.
func (c *Cache) Role(roleID string) (models.CachedRole, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	role, ok := c.roles[roleID]
	return role, ok
}

// GuildChannels returns all cached channels that belong to the guild. The
// result is never nil.
func (c *Cache) GuildChannels(guildID string) []models.CachedChannel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]models.CachedChannel, 0)
	for _, channel := range c.channels {
		if channel.GuildID == guildID {
			channels = append(channels, channel)
		}
	}
	return channels
}

// GuildThreads returns all cached threads that belong to the guild.
func (c *Cache) GuildThreads(guildID string) []models.CachedThread {
	c.mu.RLock()
	defer c.mu.RUnlock()
	threads := make([]models.CachedThread, 0)
	for _, thread := range c.threads {
		if thread.GuildID == guildID {
			threads = append(threads, thread)
		}
	}
	return threads
}

// GuildMembers returns all cached members that belong to the guild.
func (c *Cache) GuildMembers(guildID string) []models.CachedMember {
	c.mu.RLock()
	defer c.mu.RUnlock()
	members := make([]models.CachedMember, 0)
	for _, member := range c.members {
		if member.GuildID == guildID {
			members = append(members, member)
		}
	}
	return members
}

// GuildRoles returns all cached roles that belong to the guild.
func (c *Cache) GuildRoles(guildID string) []models.CachedRole {
	c.mu.RLock()
	defer c.mu.RUnlock()
	roles := make([]models.CachedRole, 0)
	for _, role := range c.roles {
		if role.GuildID == guildID {
			roles = append(roles, role)
		}
	}
	return roles
}

// GuildRoleIDSet returns the IDs of all cached roles in the guild as a set.
// Used by reconciliation to compute the authoritative role set.
func (c *Cache) GuildRoleIDSet(guildID string) map[string]struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make(map[string]struct{})
	for _, role := range c.roles {
		if role.GuildID == guildID {
			ids[role.ID] = struct{}{}
		}
	}
	return ids
}

// Counts returns the number of cached entities per kind, for startup logging.
func (c *Cache) Counts() (guilds, channels, threads, members, roles int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.guilds), len(c.channels), len(c.threads), len(c.members), len(c.roles)
}

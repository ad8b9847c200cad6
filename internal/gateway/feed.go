// Package gateway keeps the entity cache in lockstep with Discord. The feed
// applies gateway events as they arrive; the snapshot loader fills the cache
// over REST when a shard comes up. Snowflakes are converted to plain strings
// at this boundary and stay strings everywhere inside.
package gateway

import (
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/models"
)

// Feed translates gateway events into cache mutations.
type Feed struct {
	cache *cache.Cache
	log   *zap.Logger
}

// NewFeed creates a feed writing into the cache.
func NewFeed(c *cache.Cache, log *zap.Logger) *Feed {
	return &Feed{cache: c, log: log}
}

// Listeners returns the event listeners to install on the bot client.
func (f *Feed) Listeners() []bot.EventListener {
	return []bot.EventListener{
		bot.NewListenerFunc(f.onGuildJoin),
		bot.NewListenerFunc(f.onGuildUpdate),
		bot.NewListenerFunc(f.onGuildLeave),
		bot.NewListenerFunc(f.onGuildUnavailable),
		bot.NewListenerFunc(f.onGuildAvailable),
		bot.NewListenerFunc(f.onChannelCreate),
		bot.NewListenerFunc(f.onChannelUpdate),
		bot.NewListenerFunc(f.onChannelDelete),
		bot.NewListenerFunc(f.onThreadCreate),
		bot.NewListenerFunc(f.onThreadUpdate),
		bot.NewListenerFunc(f.onThreadDelete),
		bot.NewListenerFunc(f.onMemberJoin),
		bot.NewListenerFunc(f.onMemberUpdate),
		bot.NewListenerFunc(f.onMemberLeave),
		bot.NewListenerFunc(f.onRoleCreate),
		bot.NewListenerFunc(f.onRoleUpdate),
		bot.NewListenerFunc(f.onRoleDelete),
	}
}

func (f *Feed) onGuildJoin(event *events.GuildJoin) {
	f.cache.UpsertGuild(models.CachedGuild{
		ID:      event.GuildID.String(),
		Name:    event.Guild.Name,
		OwnerID: event.Guild.OwnerID.String(),
	})
	f.log.Info("joined guild", zap.String("guild_id", event.GuildID.String()), zap.String("name", event.Guild.Name))
}

func (f *Feed) onGuildUpdate(event *events.GuildUpdate) {
	f.cache.UpsertGuild(models.CachedGuild{
		ID:      event.GuildID.String(),
		Name:    event.Guild.Name,
		OwnerID: event.Guild.OwnerID.String(),
	})
}

func (f *Feed) onGuildLeave(event *events.GuildLeave) {
	f.removeGuild(event.GuildID.String(), "left guild")
}

// An unavailable guild is dropped from the cache entirely. Reconciliation
// treats a guild it cannot see as unreachable and leaves its grants alone.
func (f *Feed) onGuildUnavailable(event *events.GuildUnavailable) {
	f.removeGuild(event.GuildID.String(), "guild unavailable")
}

func (f *Feed) onGuildAvailable(event *events.GuildAvailable) {
	f.cache.UpsertGuild(models.CachedGuild{
		ID:      event.GuildID.String(),
		Name:    event.Guild.Name,
		OwnerID: event.Guild.OwnerID.String(),
	})
}

func (f *Feed) removeGuild(guildID, reason string) {
	for _, channel := range f.cache.GuildChannels(guildID) {
		f.cache.RemoveChannel(channel.ID)
	}
	for _, thread := range f.cache.GuildThreads(guildID) {
		f.cache.RemoveThread(thread.ID)
	}
	for _, member := range f.cache.GuildMembers(guildID) {
		f.cache.RemoveMember(member.ID)
	}
	for _, role := range f.cache.GuildRoles(guildID) {
		f.cache.RemoveRole(role.ID)
	}
	f.cache.RemoveGuild(guildID)
	f.log.Info(reason, zap.String("guild_id", guildID))
}

func (f *Feed) onChannelCreate(event *events.GuildChannelCreate) {
	f.cache.UpsertChannel(models.CachedChannel{
		ID:      event.ChannelID.String(),
		GuildID: event.GuildID.String(),
		Name:    event.Channel.Name(),
	})
}

func (f *Feed) onChannelUpdate(event *events.GuildChannelUpdate) {
	f.cache.UpsertChannel(models.CachedChannel{
		ID:      event.ChannelID.String(),
		GuildID: event.GuildID.String(),
		Name:    event.Channel.Name(),
	})
}

func (f *Feed) onChannelDelete(event *events.GuildChannelDelete) {
	f.cache.RemoveChannel(event.ChannelID.String())
}

func (f *Feed) onThreadCreate(event *events.ThreadCreate) {
	f.cache.UpsertThread(threadModel(event.ThreadID.String(), event.GuildID.String(), event.Thread))
}

func (f *Feed) onThreadUpdate(event *events.ThreadUpdate) {
	f.cache.UpsertThread(threadModel(event.ThreadID.String(), event.GuildID.String(), event.Thread))
}

func (f *Feed) onThreadDelete(event *events.ThreadDelete) {
	f.cache.RemoveThread(event.ThreadID.String())
}

func (f *Feed) onMemberJoin(event *events.GuildMemberJoin) {
	f.cache.UpsertMember(memberModel(event.GuildID.String(), event.Member))
}

func (f *Feed) onMemberUpdate(event *events.GuildMemberUpdate) {
	f.cache.UpsertMember(memberModel(event.GuildID.String(), event.Member))
}

func (f *Feed) onMemberLeave(event *events.GuildMemberLeave) {
	f.cache.RemoveMember(event.User.ID.String())
}

func (f *Feed) onRoleCreate(event *events.RoleCreate) {
	f.cache.UpsertRole(roleModel(event.GuildID.String(), event.Role))
}

func (f *Feed) onRoleUpdate(event *events.RoleUpdate) {
	f.cache.UpsertRole(roleModel(event.GuildID.String(), event.Role))
}

func (f *Feed) onRoleDelete(event *events.RoleDelete) {
	f.cache.RemoveRole(event.RoleID.String())
}

package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/models"
	"github.com/isahooman/rolewarden/internal/ratelimit"
)

const memberPageSize = 1000

// Snapshot fills the cache over REST when a session comes up. Threads are
// not fetched here; they arrive through gateway events only. All REST calls
// go through the pacer so a large snapshot cannot starve interaction
// responses.
type Snapshot struct {
	client bot.Client
	cache  *cache.Cache
	pacer  *ratelimit.Pacer
	log    *zap.Logger
}

// NewSnapshot creates a snapshot loader writing into the cache.
func NewSnapshot(client bot.Client, c *cache.Cache, pacer *ratelimit.Pacer, log *zap.Logger) *Snapshot {
	return &Snapshot{client: client, cache: c, pacer: pacer, log: log}
}

// LoadAll loads every listed guild concurrently and returns when all of them
// are done. A guild that fails to load is logged and skipped; it stays out
// of the cache, which downstream consumers treat as unreachable.
func (s *Snapshot) LoadAll(ctx context.Context, guildIDs []snowflake.ID) {
	var wg sync.WaitGroup
	for _, guildID := range guildIDs {
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			if err := s.LoadGuild(ctx, id); err != nil {
				s.log.Warn("failed to snapshot guild", zap.String("guild_id", id.String()), zap.Error(err))
			}
		}(guildID)
	}
	wg.Wait()

	guilds, channels, _, members, roles := s.cache.Counts()
	s.log.Info("snapshot complete",
		zap.Int("guilds", guilds), zap.Int("channels", channels),
		zap.Int("members", members), zap.Int("roles", roles))
}

// LoadGuild loads one guild's entities: the guild itself, its roles, its
// channels, and its full member list.
func (s *Snapshot) LoadGuild(ctx context.Context, guildID snowflake.ID) error {
	rest := s.client.Rest()

	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	guild, err := rest.GetGuild(guildID, false)
	if err != nil {
		return fmt.Errorf("failed to fetch guild: %w", err)
	}
	s.cache.UpsertGuild(models.CachedGuild{
		ID:      guild.ID.String(),
		Name:    guild.Name,
		OwnerID: guild.OwnerID.String(),
	})
	for _, role := range guild.Roles {
		s.cache.UpsertRole(roleModel(guild.ID.String(), role))
	}

	if err := s.pacer.Wait(ctx); err != nil {
		return err
	}
	channels, err := rest.GetGuildChannels(guildID)
	if err != nil {
		return fmt.Errorf("failed to fetch channels: %w", err)
	}
	for _, channel := range channels {
		s.cache.UpsertChannel(models.CachedChannel{
			ID:      channel.ID().String(),
			GuildID: guildID.String(),
			Name:    channel.Name(),
		})
	}

	after := snowflake.ID(0)
	total := 0
	for {
		if err := s.pacer.Wait(ctx); err != nil {
			return err
		}
		members, err := rest.GetMembers(guildID, memberPageSize, after)
		if err != nil {
			return fmt.Errorf("failed to fetch members after %s: %w", after, err)
		}
		for _, member := range members {
			s.cache.UpsertMember(memberModel(guildID.String(), member))
		}
		total += len(members)
		if len(members) < memberPageSize {
			break
		}
		after = members[len(members)-1].User.ID
	}

	s.log.Debug("guild snapshot loaded",
		zap.String("guild_id", guildID.String()), zap.String("name", guild.Name), zap.Int("members", total))
	return nil
}

// Package reconcile prunes persisted grants that reference roles no longer
// present in the entity cache. It runs once, after the startup snapshot has
// fully populated the cache.
package reconcile

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/store"
)

// Result reports how many grants a reconciliation pass removed.
type Result struct {
	RemovedServerManagers int
	RemovedRoleManagers   int
}

// Job validates stored grants against the live entity cache.
type Job struct {
	cache *cache.Cache
	store store.Store
	log   *zap.Logger
	ran   atomic.Bool
}

// New creates a reconciliation job. A job runs at most once; see Run.
func New(c *cache.Cache, s store.Store, log *zap.Logger) *Job {
	return &Job{cache: c, store: s, log: log}
}

// Run prunes grants whose role no longer exists, one guild at a time. Guilds
// that are not present in the cache are skipped entirely: an unreachable
// guild at startup must not cause false deletions.
//
// A job executes at most once. The gateway can re-deliver its ready signal
// after a failed resume while the first pass is still walking a large
// snapshot, so later calls, concurrent or not, are skipped and return an
// empty result.
func (j *Job) Run(ctx context.Context) (Result, error) {
	var result Result

	if !j.ran.CompareAndSwap(false, true) {
		j.log.Warn("grant reconciliation already ran, skipping")
		return result, nil
	}

	grants, err := j.store.AllGrants(ctx)
	if err != nil {
		return result, err
	}

	guildIDs := make(map[string]struct{})
	for _, grant := range grants.ServerManagers {
		guildIDs[grant.GuildID] = struct{}{}
	}
	for _, grant := range grants.RoleManagers {
		guildIDs[grant.GuildID] = struct{}{}
	}

	for guildID := range guildIDs {
		if _, ok := j.cache.Guild(guildID); !ok {
			j.log.Debug("skipping unreachable guild", zap.String("guild_id", guildID))
			continue
		}

		pruned, err := j.store.DeleteGrantsNotIn(ctx, guildID, j.cache.GuildRoleIDSet(guildID))
		if err != nil {
			// A failed guild leaves its grants in place, they self-heal on
			// the next pass.
			j.log.Error("failed to prune grants for guild",
				zap.String("guild_id", guildID), zap.Error(err))
			continue
		}
		result.RemovedServerManagers += pruned.RemovedServerManagers
		result.RemovedRoleManagers += pruned.RemovedRoleManagers
	}

	j.log.Info("grant reconciliation finished",
		zap.Int("guilds_checked", len(guildIDs)),
		zap.Int("removed_server_managers", result.RemovedServerManagers),
		zap.Int("removed_role_managers", result.RemovedRoleManagers))
	return result, nil
}

// Package store persists delegation grants. Two interchangeable backends
// implement the same interface: a flat JSON document rewritten atomically on
// every mutation, and a relational two-table schema where every mutation is a
// single statement.
//
// Grants are soft-referential: they name guild and role IDs that are expected
// to exist in the entity cache, but the store never checks that at write
// time. Reconciliation is the sole enforcer.
package store

import (
	"context"
	"strings"

	"github.com/isahooman/rolewarden/internal/models"
)

// Grants is the full grant set, used by reconciliation.
type Grants struct {
	ServerManagers []models.ServerManagerGrant
	RoleManagers   []models.RoleManagerGrant
}

// PruneResult reports how many grants a bulk delete removed.
type PruneResult struct {
	RemovedServerManagers int
	RemovedRoleManagers   int
}

// Store is the persistence interface for delegation grants.
//
// Mutations report whether they changed anything: adding an existing grant or
// removing an absent one returns false with a nil error. Blank identifier
// arguments also return false, never an error. Every successful mutation is
// durable before the call returns.
type Store interface {
	AddServerManager(ctx context.Context, guildID, roleID string) (bool, error)
	RemoveServerManager(ctx context.Context, guildID, roleID string) (bool, error)
	AddRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error)
	RemoveRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error)

	IsServerManager(ctx context.Context, guildID, roleID string) (bool, error)
	IsRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error)

	// GetServerManagers returns the role IDs granted blanket management
	// rights in the guild.
	GetServerManagers(ctx context.Context, guildID string) ([]string, error)
	// GetManagedRoles returns the role IDs that have at least one individual
	// role manager in the guild.
	GetManagedRoles(ctx context.Context, guildID string) ([]string, error)
	// GetRoleManagers returns the user IDs allowed to manage the given role.
	GetRoleManagers(ctx context.Context, guildID, roleID string) ([]string, error)

	// AllGrants returns every stored grant. Used only by reconciliation.
	AllGrants(ctx context.Context) (Grants, error)
	// DeleteGrantsNotIn removes every grant for the guild whose role ID is
	// absent from validRoleIDs. An empty set removes all grants for the guild.
	DeleteGrantsNotIn(ctx context.Context, guildID string, validRoleIDs map[string]struct{}) (PruneResult, error)

	Close() error
}

// validIDs reports whether all inputs are non-blank identifier strings.
func validIDs(ids ...string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return false
		}
	}
	return true
}

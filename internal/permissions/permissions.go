// Package permissions implements the delegated role-management authorization
// model: who may manage which role, combining Discord-native permissions
// (ownership, Administrator, ManageRoles + hierarchy) with persisted
// server-manager and role-manager grants.
package permissions

import (
	"context"

	"github.com/disgoorg/disgo/discord"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/models"
	"github.com/isahooman/rolewarden/internal/store"
)

// Service resolves authorization decisions and owns the grant mutation
// surface exposed to the command layer.
type Service struct {
	cache *cache.Cache
	store store.Store
	log   *zap.Logger
}

// New creates a permission service over the entity cache and grant store.
func New(c *cache.Cache, s store.Store, log *zap.Logger) *Service {
	return &Service{cache: c, store: s, log: log}
}

// effectivePermissions ORs the permission bitfields of every role the actor
// holds, including the guild's @everyone role (whose ID equals the guild ID).
func (s *Service) effectivePermissions(actor models.CachedMember) int64 {
	var perms int64
	if everyone, ok := s.cache.Role(actor.GuildID); ok {
		perms |= everyone.Permissions
	}
	for _, roleID := range actor.RoleIDs {
		if role, ok := s.cache.Role(roleID); ok {
			perms |= role.Permissions
		}
	}
	return perms
}

// highestPosition returns the position of the most senior role the actor
// holds, or -1 when the actor holds no cached role.
func (s *Service) highestPosition(actor models.CachedMember) int {
	highest := -1
	for _, roleID := range actor.RoleIDs {
		if role, ok := s.cache.Role(roleID); ok && role.Position > highest {
			highest = role.Position
		}
	}
	return highest
}

// IsServerAdmin reports whether the actor is the guild owner or holds the
// Administrator permission.
func (s *Service) IsServerAdmin(actor models.CachedMember) bool {
	if actor.ID == "" || actor.GuildID == "" {
		return false
	}
	if guild, ok := s.cache.Guild(actor.GuildID); ok && guild.OwnerID == actor.ID {
		return true
	}
	return s.effectivePermissions(actor)&int64(discord.PermissionAdministrator) != 0
}

// hasServerManagerRole reports whether the actor holds any role granted
// blanket management rights. Storage failures are logged and treated as "no".
func (s *Service) hasServerManagerRole(ctx context.Context, actor models.CachedMember) bool {
	if len(actor.RoleIDs) == 0 {
		return false
	}
	managers, err := s.store.GetServerManagers(ctx, actor.GuildID)
	if err != nil {
		s.log.Error("failed to load server manager grants",
			zap.String("guild_id", actor.GuildID), zap.Error(err))
		return false
	}
	for _, roleID := range managers {
		if actor.HasRole(roleID) {
			return true
		}
	}
	return false
}

// IsServerManager reports whether the actor is the guild owner, an
// administrator, or holds a server-manager role.
func (s *Service) IsServerManager(ctx context.Context, actor models.CachedMember) bool {
	if actor.ID == "" || actor.GuildID == "" {
		return false
	}
	if s.IsServerAdmin(actor) {
		return true
	}
	return s.hasServerManagerRole(ctx, actor)
}

// CheckPermission decides whether the actor may manage the target role. The
// chain is ordered and short-circuits on the first pass: ownership and
// Administrator always win, the native ManageRoles + hierarchy check comes
// before delegated grants, then server-manager and role-manager grants.
func (s *Service) CheckPermission(ctx context.Context, actor models.CachedMember, target models.CachedRole) bool {
	if actor.ID == "" || actor.GuildID == "" || target.ID == "" {
		return false
	}

	if guild, ok := s.cache.Guild(actor.GuildID); ok && guild.OwnerID == actor.ID {
		return true
	}

	perms := s.effectivePermissions(actor)
	if perms&int64(discord.PermissionAdministrator) != 0 {
		return true
	}

	if perms&int64(discord.PermissionManageRoles) != 0 && s.highestPosition(actor) > target.Position {
		return true
	}

	if s.hasServerManagerRole(ctx, actor) {
		return true
	}

	isManager, err := s.store.IsRoleManager(ctx, actor.GuildID, target.ID, actor.ID)
	if err != nil {
		s.log.Error("failed to check role manager grant",
			zap.String("guild_id", actor.GuildID),
			zap.String("role_id", target.ID),
			zap.String("user_id", actor.ID),
			zap.Error(err))
		return false
	}
	return isManager
}

// AddRoleManager grants targetUserID management rights over a role. When a
// requester is given, only server admins may configure role managers.
func (s *Service) AddRoleManager(ctx context.Context, guildID, roleID, targetUserID string, requester *models.CachedMember) (bool, error) {
	if requester != nil && !s.IsServerAdmin(*requester) {
		s.log.Warn("requester lacks permission to add role managers",
			zap.String("guild_id", guildID), zap.String("user_id", requester.ID))
		return false, nil
	}
	return s.store.AddRoleManager(ctx, guildID, roleID, targetUserID)
}

// RemoveRoleManager revokes a user's management rights over a role.
func (s *Service) RemoveRoleManager(ctx context.Context, guildID, roleID, targetUserID string, requester *models.CachedMember) (bool, error) {
	if requester != nil && !s.IsServerAdmin(*requester) {
		s.log.Warn("requester lacks permission to remove role managers",
			zap.String("guild_id", guildID), zap.String("user_id", requester.ID))
		return false, nil
	}
	return s.store.RemoveRoleManager(ctx, guildID, roleID, targetUserID)
}

// AddServerManager grants a role blanket management rights in a guild.
func (s *Service) AddServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	return s.store.AddServerManager(ctx, guildID, roleID)
}

// RemoveServerManager revokes a server-manager role.
func (s *Service) RemoveServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	return s.store.RemoveServerManager(ctx, guildID, roleID)
}

// GetRoleManagers returns the user IDs that manage the given role.
func (s *Service) GetRoleManagers(ctx context.Context, guildID, roleID string) ([]string, error) {
	return s.store.GetRoleManagers(ctx, guildID, roleID)
}

// GetManagedRoles returns the role IDs that have at least one role manager.
func (s *Service) GetManagedRoles(ctx context.Context, guildID string) ([]string, error) {
	return s.store.GetManagedRoles(ctx, guildID)
}

// GetServerManagers returns the server-manager role IDs for the guild.
func (s *Service) GetServerManagers(ctx context.Context, guildID string) ([]string, error) {
	return s.store.GetServerManagers(ctx, guildID)
}

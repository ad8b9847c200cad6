package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/models"
)

// guildGrants is the per-guild node of the persisted JSON document.
type guildGrants struct {
	// Managers are the server-manager role IDs.
	Managers []string `json:"managers"`
	// Roles maps a role ID to the user IDs allowed to manage it.
	Roles map[string][]string `json:"roles"`
}

func (g *guildGrants) empty() bool {
	return len(g.Managers) == 0 && len(g.Roles) == 0
}

// FileStore keeps all grants in one JSON document, rewritten in full through
// a temp-file-then-rename sequence on every mutation so a crash mid-write
// never leaves a partial document behind.
type FileStore struct {
	mu   sync.Mutex
	path string
	data map[string]*guildGrants
	log  *zap.Logger
}

// NewFileStore loads the document at path, creating an empty store if the
// file does not exist yet. Guild entries with no managers and no roles, and
// roles with no managers, are pruned during load.
func NewFileStore(path string, log *zap.Logger) (*FileStore, error) {
	s := &FileStore{
		path: path,
		data: make(map[string]*guildGrants),
		log:  log,
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("grant file does not exist yet, starting empty", zap.String("path", path))
			return s, nil
		}
		return nil, fmt.Errorf("failed to read grant file: %w", err)
	}

	var doc map[string]guildGrants
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse grant file: %w", err)
	}

	for guildID, node := range doc {
		entry := &guildGrants{
			Managers: append([]string(nil), node.Managers...),
			Roles:    make(map[string][]string),
		}
		for roleID, userIDs := range node.Roles {
			if len(userIDs) == 0 {
				s.log.Debug("pruning role with no managers",
					zap.String("guild_id", guildID), zap.String("role_id", roleID))
				continue
			}
			entry.Roles[roleID] = append([]string(nil), userIDs...)
		}
		if entry.empty() {
			s.log.Debug("pruning guild with no grants", zap.String("guild_id", guildID))
			continue
		}
		s.data[guildID] = entry
	}

	log.Info("grant file loaded", zap.String("path", path), zap.Int("guilds", len(s.data)))
	return s, nil
}

// saveLocked rewrites the whole document. Callers must hold s.mu. Roles with
// an empty manager list are dropped from the written document.
func (s *FileStore) saveLocked() error {
	doc := make(map[string]guildGrants, len(s.data))
	for guildID, entry := range s.data {
		node := guildGrants{Managers: entry.Managers, Roles: make(map[string][]string)}
		for roleID, userIDs := range entry.Roles {
			if len(userIDs) > 0 {
				node.Roles[roleID] = userIDs
			}
		}
		doc[guildID] = node
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode grant file: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".grants-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp grant file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp grant file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp grant file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp grant file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace grant file: %w", err)
	}
	return nil
}

// entryLocked returns the guild node, creating it when missing.
func (s *FileStore) entryLocked(guildID string) *guildGrants {
	entry, ok := s.data[guildID]
	if !ok {
		entry = &guildGrants{Roles: make(map[string][]string)}
		s.data[guildID] = entry
	}
	return entry
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func removeString(list []string, v string) []string {
	out := list[:0]
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}

// AddServerManager grants a role blanket management rights in a guild.
func (s *FileStore) AddServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(guildID)
	if containsString(entry.Managers, roleID) {
		s.dropIfEmptyLocked(guildID)
		return false, nil
	}

	entry.Managers = append(entry.Managers, roleID)
	if err := s.saveLocked(); err != nil {
		entry.Managers = removeString(entry.Managers, roleID)
		s.dropIfEmptyLocked(guildID)
		return false, err
	}
	s.log.Info("added server manager role",
		zap.String("guild_id", guildID), zap.String("role_id", roleID))
	return true, nil
}

// RemoveServerManager revokes a server-manager role.
func (s *FileStore) RemoveServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok || !containsString(entry.Managers, roleID) {
		return false, nil
	}

	entry.Managers = removeString(entry.Managers, roleID)
	if err := s.saveLocked(); err != nil {
		entry.Managers = append(entry.Managers, roleID)
		return false, err
	}
	s.dropIfEmptyLocked(guildID)
	s.log.Info("removed server manager role",
		zap.String("guild_id", guildID), zap.String("role_id", roleID))
	return true, nil
}

// AddRoleManager grants a user management rights over one role.
func (s *FileStore) AddRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := s.entryLocked(guildID)
	if containsString(entry.Roles[roleID], userID) {
		s.dropIfEmptyLocked(guildID)
		return false, nil
	}

	entry.Roles[roleID] = append(entry.Roles[roleID], userID)
	if err := s.saveLocked(); err != nil {
		entry.Roles[roleID] = removeString(entry.Roles[roleID], userID)
		if len(entry.Roles[roleID]) == 0 {
			delete(entry.Roles, roleID)
		}
		s.dropIfEmptyLocked(guildID)
		return false, err
	}
	s.log.Info("added role manager",
		zap.String("guild_id", guildID), zap.String("role_id", roleID), zap.String("user_id", userID))
	return true, nil
}

// RemoveRoleManager revokes a user's management rights over one role.
func (s *FileStore) RemoveRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok || !containsString(entry.Roles[roleID], userID) {
		return false, nil
	}

	entry.Roles[roleID] = removeString(entry.Roles[roleID], userID)
	removedRole := false
	if len(entry.Roles[roleID]) == 0 {
		delete(entry.Roles, roleID)
		removedRole = true
	}
	if err := s.saveLocked(); err != nil {
		entry.Roles[roleID] = append(entry.Roles[roleID], userID)
		return false, err
	}
	if removedRole {
		s.log.Debug("dropped role with no remaining managers",
			zap.String("guild_id", guildID), zap.String("role_id", roleID))
	}
	s.dropIfEmptyLocked(guildID)
	s.log.Info("removed role manager",
		zap.String("guild_id", guildID), zap.String("role_id", roleID), zap.String("user_id", userID))
	return true, nil
}

func (s *FileStore) dropIfEmptyLocked(guildID string) {
	if entry, ok := s.data[guildID]; ok && entry.empty() {
		delete(s.data, guildID)
	}
}

// IsServerManager reports whether the role is a server-manager role.
func (s *FileStore) IsServerManager(ctx context.Context, guildID, roleID string) (bool, error) {
	if !validIDs(guildID, roleID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	return ok && containsString(entry.Managers, roleID), nil
}

// IsRoleManager reports whether the user manages the given role.
func (s *FileStore) IsRoleManager(ctx context.Context, guildID, roleID, userID string) (bool, error) {
	if !validIDs(guildID, roleID, userID) {
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	return ok && containsString(entry.Roles[roleID], userID), nil
}

// GetServerManagers returns the server-manager role IDs for the guild.
func (s *FileStore) GetServerManagers(ctx context.Context, guildID string) ([]string, error) {
	if !validIDs(guildID) {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, entry.Managers...), nil
}

// GetManagedRoles returns the role IDs with at least one role manager.
func (s *FileStore) GetManagedRoles(ctx context.Context, guildID string) ([]string, error) {
	if !validIDs(guildID) {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok {
		return []string{}, nil
	}
	roleIDs := make([]string, 0, len(entry.Roles))
	for roleID, userIDs := range entry.Roles {
		if len(userIDs) > 0 {
			roleIDs = append(roleIDs, roleID)
		}
	}
	sort.Strings(roleIDs)
	return roleIDs, nil
}

// GetRoleManagers returns the user IDs that manage the given role.
func (s *FileStore) GetRoleManagers(ctx context.Context, guildID, roleID string) ([]string, error) {
	if !validIDs(guildID, roleID) {
		return []string{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok {
		return []string{}, nil
	}
	return append([]string{}, entry.Roles[roleID]...), nil
}

// AllGrants returns every stored grant.
func (s *FileStore) AllGrants(ctx context.Context) (Grants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var grants Grants
	for guildID, entry := range s.data {
		for _, roleID := range entry.Managers {
			grants.ServerManagers = append(grants.ServerManagers, models.ServerManagerGrant{GuildID: guildID, RoleID: roleID})
		}
		for roleID, userIDs := range entry.Roles {
			for _, userID := range userIDs {
				grants.RoleManagers = append(grants.RoleManagers, models.RoleManagerGrant{GuildID: guildID, RoleID: roleID, UserID: userID})
			}
		}
	}
	return grants, nil
}

// DeleteGrantsNotIn removes every grant for the guild whose role ID is absent
// from validRoleIDs.
func (s *FileStore) DeleteGrantsNotIn(ctx context.Context, guildID string, validRoleIDs map[string]struct{}) (PruneResult, error) {
	var result PruneResult
	if !validIDs(guildID) {
		return result, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[guildID]
	if !ok {
		return result, nil
	}

	// Snapshot so a failed save leaves the in-memory state untouched.
	restore := &guildGrants{
		Managers: append([]string(nil), entry.Managers...),
		Roles:    make(map[string][]string, len(entry.Roles)),
	}
	for roleID, userIDs := range entry.Roles {
		restore.Roles[roleID] = append([]string(nil), userIDs...)
	}

	kept := entry.Managers[:0]
	for _, roleID := range entry.Managers {
		if _, valid := validRoleIDs[roleID]; valid {
			kept = append(kept, roleID)
		} else {
			result.RemovedServerManagers++
		}
	}
	entry.Managers = kept

	for roleID, userIDs := range entry.Roles {
		if _, valid := validRoleIDs[roleID]; !valid {
			result.RemovedRoleManagers += len(userIDs)
			delete(entry.Roles, roleID)
		}
	}

	if result.RemovedServerManagers == 0 && result.RemovedRoleManagers == 0 {
		return result, nil
	}

	if err := s.saveLocked(); err != nil {
		s.data[guildID] = restore
		return PruneResult{}, err
	}
	s.dropIfEmptyLocked(guildID)
	s.log.Info("pruned stale grants",
		zap.String("guild_id", guildID),
		zap.Int("server_managers", result.RemovedServerManagers),
		zap.Int("role_managers", result.RemovedRoleManagers))
	return result, nil
}

// Close is a no-op: every mutation is already flushed to disk.
func (s *FileStore) Close() error {
	return nil
}

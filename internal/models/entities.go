// Package models defines the entity records mirrored from Discord and the
// persisted delegation grant records.
package models

// CachedGuild is a guild as last seen from the gateway.
type CachedGuild struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_id"`
}

// CachedChannel is a guild channel as last seen from the gateway.
type CachedChannel struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Name    string `json:"name"`
}

// CachedThread is a thread. Threads are tracked separately from their parent
// channels.
type CachedThread struct {
	ID       string `json:"id"`
	GuildID  string `json:"guild_id"`
	ParentID string `json:"parent_id"`
	Name     string `json:"name"`
}

// CachedMember is a user's membership in one guild.
type CachedMember struct {
	ID       string   `json:"id"`
	GuildID  string   `json:"guild_id"`
	Username string   `json:"username"`
	Nickname string   `json:"nickname"`
	RoleIDs  []string `json:"role_ids"`
}

// EffectiveName returns the nickname when set, otherwise the username.
func (m CachedMember) EffectiveName() string {
	if m.Nickname != "" {
		return m.Nickname
	}
	return m.Username
}

// HasRole reports whether the member holds the given role.
func (m CachedMember) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// CachedRole is a guild role. Position is the role's rank in the guild
// hierarchy, higher means more senior. Permissions is the Discord permission
// bitfield attached to the role.
type CachedRole struct {
	ID          string `json:"id"`
	GuildID     string `json:"guild_id"`
	Name        string `json:"name"`
	Position    int    `json:"position"`
	Color       int    `json:"color"`
	Permissions int64  `json:"permissions"`
}

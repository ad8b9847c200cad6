package models

// ServerManagerGrant marks a role whose holders act as full server managers
// in a guild.
type ServerManagerGrant struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

// RoleManagerGrant authorizes one user to manage one specific role.
type RoleManagerGrant struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
	UserID  string `json:"user_id"`
}

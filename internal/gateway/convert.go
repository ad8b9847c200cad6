package gateway

import (
	"github.com/disgoorg/disgo/discord"

	"github.com/isahooman/rolewarden/internal/models"
)

func memberModel(guildID string, member discord.Member) models.CachedMember {
	nickname := ""
	if member.Nick != nil {
		nickname = *member.Nick
	}
	roleIDs := make([]string, 0, len(member.RoleIDs))
	for _, id := range member.RoleIDs {
		roleIDs = append(roleIDs, id.String())
	}
	return models.CachedMember{
		ID:       member.User.ID.String(),
		GuildID:  guildID,
		Username: member.User.Username,
		Nickname: nickname,
		RoleIDs:  roleIDs,
	}
}

func roleModel(guildID string, role discord.Role) models.CachedRole {
	return models.CachedRole{
		ID:          role.ID.String(),
		GuildID:     guildID,
		Name:        role.Name,
		Position:    role.Position,
		Color:       role.Color,
		Permissions: int64(role.Permissions),
	}
}

func threadModel(threadID, guildID string, thread discord.GuildThread) models.CachedThread {
	parentID := ""
	if pid := thread.ParentID(); pid != nil {
		parentID = pid.String()
	}
	return models.CachedThread{
		ID:       threadID,
		GuildID:  guildID,
		ParentID: parentID,
		Name:     thread.Name(),
	}
}

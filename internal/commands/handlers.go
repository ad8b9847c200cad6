package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"go.uber.org/zap"

	"github.com/isahooman/rolewarden/internal/cache"
	"github.com/isahooman/rolewarden/internal/models"
	"github.com/isahooman/rolewarden/internal/permissions"
	"github.com/isahooman/rolewarden/internal/preview"
	"github.com/isahooman/rolewarden/internal/search"
)

// Deps carries everything the built-in handlers need.
type Deps struct {
	Cache    *cache.Cache
	Perms    *permissions.Service
	Search   *search.Index
	Previews *preview.Manager
	Log      *zap.Logger
}

// RegisterAll installs the built-in command handlers on the registry.
func RegisterAll(r *Registry, d Deps) error {
	if err := r.Register("role", roleHandler(d)); err != nil {
		return err
	}
	if err := r.Register("managers", managersHandler(d)); err != nil {
		return err
	}
	if err := r.Register("rolemanagers", roleManagersHandler(d)); err != nil {
		return err
	}
	return nil
}

// Definitions returns the application command definitions to register with
// Discord on startup.
func Definitions() []discord.ApplicationCommandCreate {
	roleOption := discord.ApplicationCommandOptionString{
		Name:        "role",
		Description: "Role name, ID, or mention",
		Required:    true,
	}
	userOption := discord.ApplicationCommandOptionUser{
		Name:        "user",
		Description: "Member to change",
		Required:    true,
	}
	return []discord.ApplicationCommandCreate{
		discord.SlashCommandCreate{
			Name:        "role",
			Description: "Give or take a role, with a confirmation preview",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "give",
					Description: "Give a role to a member",
					Options:     []discord.ApplicationCommandOption{roleOption, userOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "take",
					Description: "Take a role from a member",
					Options:     []discord.ApplicationCommandOption{roleOption, userOption},
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        "managers",
			Description: "Manage which roles act as server managers",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "add",
					Description: "Grant a role server-manager status",
					Options:     []discord.ApplicationCommandOption{roleOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Revoke a role's server-manager status",
					Options:     []discord.ApplicationCommandOption{roleOption},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "list",
					Description: "List server-manager roles",
				},
			},
		},
		discord.SlashCommandCreate{
			Name:        "rolemanagers",
			Description: "Delegate management of a single role",
			Options: []discord.ApplicationCommandOption{
				discord.ApplicationCommandOptionSubCommand{
					Name:        "add",
					Description: "Allow a user to manage a role",
					Options: []discord.ApplicationCommandOption{
						roleOption,
						discord.ApplicationCommandOptionUser{
							Name:        "user",
							Description: "User to delegate to",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "remove",
					Description: "Revoke a user's delegation for a role",
					Options: []discord.ApplicationCommandOption{
						roleOption,
						discord.ApplicationCommandOptionUser{
							Name:        "user",
							Description: "User to revoke",
							Required:    true,
						},
					},
				},
				discord.ApplicationCommandOptionSubCommand{
					Name:        "list",
					Description: "List who may manage a role",
					Options:     []discord.ApplicationCommandOption{roleOption},
				},
			},
		},
	}
}

func reply(event *events.ApplicationCommandInteractionCreate, content string) error {
	return event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(content).
		SetEphemeral(true).
		Build())
}

// requester resolves the invoking user to their cached membership. Commands
// are guild-only, so a missing guild or membership is a hard stop.
func requester(d Deps, event *events.ApplicationCommandInteractionCreate) (models.CachedMember, string, error) {
	guildID := event.GuildID()
	if guildID == nil {
		return models.CachedMember{}, "", fmt.Errorf("command used outside a guild")
	}
	member := event.Member()
	if member == nil {
		return models.CachedMember{}, "", fmt.Errorf("interaction carries no member")
	}
	cached, ok := d.Cache.Member(member.User.ID.String())
	if !ok || cached.GuildID != guildID.String() {
		return models.CachedMember{}, "", fmt.Errorf("member %s not in cache for guild %s", member.User.ID, guildID)
	}
	return cached, guildID.String(), nil
}

func managersHandler(d Deps) Handler {
	return func(ctx context.Context, event *events.ApplicationCommandInteractionCreate) error {
		actor, guildID, err := requester(d, event)
		if err != nil {
			return reply(event, "This command only works inside a server.")
		}
		if !d.Perms.IsServerAdmin(actor) {
			return reply(event, "Only the server owner or an administrator can change server managers.")
		}

		data := event.SlashCommandInteractionData()
		sub := ""
		if data.SubCommandName != nil {
			sub = *data.SubCommandName
		}

		switch sub {
		case "add", "remove":
			role, ok := d.Search.Role(guildID, data.String("role"))
			if !ok {
				return reply(event, "No matching role found.")
			}
			var changed bool
			if sub == "add" {
				changed, err = d.Perms.AddServerManager(ctx, guildID, role.ID)
			} else {
				changed, err = d.Perms.RemoveServerManager(ctx, guildID, role.ID)
			}
			if err != nil {
				d.Log.Error("failed to update server managers",
					zap.String("guild_id", guildID), zap.String("role_id", role.ID), zap.Error(err))
				return reply(event, "Something went wrong updating server managers.")
			}
			if !changed {
				return reply(event, fmt.Sprintf("**%s** was already in that state.", role.Name))
			}
			if sub == "add" {
				return reply(event, fmt.Sprintf("**%s** is now a server-manager role.", role.Name))
			}
			return reply(event, fmt.Sprintf("**%s** is no longer a server-manager role.", role.Name))

		case "list":
			roleIDs, err := d.Perms.GetServerManagers(ctx, guildID)
			if err != nil {
				return reply(event, "Something went wrong reading server managers.")
			}
			if len(roleIDs) == 0 {
				return reply(event, "No server-manager roles are set.")
			}
			names := make([]string, 0, len(roleIDs))
			for _, id := range roleIDs {
				if role, ok := d.Cache.Role(id); ok {
					names = append(names, role.Name)
				} else {
					names = append(names, id)
				}
			}
			return reply(event, "Server-manager roles: "+strings.Join(names, ", "))

		default:
			return reply(event, "Unknown subcommand.")
		}
	}
}

func roleManagersHandler(d Deps) Handler {
	return func(ctx context.Context, event *events.ApplicationCommandInteractionCreate) error {
		actor, guildID, err := requester(d, event)
		if err != nil {
			return reply(event, "This command only works inside a server.")
		}

		data := event.SlashCommandInteractionData()
		sub := ""
		if data.SubCommandName != nil {
			sub = *data.SubCommandName
		}

		role, ok := d.Search.Role(guildID, data.String("role"))
		if !ok {
			return reply(event, "No matching role found.")
		}

		switch sub {
		case "add", "remove":
			if !d.Perms.IsServerAdmin(actor) {
				return reply(event, "Only the server owner or an administrator can delegate role management.")
			}
			userID := data.Snowflake("user").String()
			var changed bool
			if sub == "add" {
				changed, err = d.Perms.AddRoleManager(ctx, guildID, role.ID, userID, &actor)
			} else {
				changed, err = d.Perms.RemoveRoleManager(ctx, guildID, role.ID, userID, &actor)
			}
			if err != nil {
				d.Log.Error("failed to update role managers",
					zap.String("guild_id", guildID), zap.String("role_id", role.ID), zap.Error(err))
				return reply(event, "Something went wrong updating role managers.")
			}
			if !changed {
				return reply(event, "Nothing to change.")
			}
			if sub == "add" {
				return reply(event, fmt.Sprintf("<@%s> can now manage **%s**.", userID, role.Name))
			}
			return reply(event, fmt.Sprintf("<@%s> can no longer manage **%s**.", userID, role.Name))

		case "list":
			userIDs, err := d.Perms.GetRoleManagers(ctx, guildID, role.ID)
			if err != nil {
				return reply(event, "Something went wrong reading role managers.")
			}
			if len(userIDs) == 0 {
				return reply(event, fmt.Sprintf("Nobody is delegated to manage **%s**.", role.Name))
			}
			mentions := make([]string, 0, len(userIDs))
			for _, id := range userIDs {
				mentions = append(mentions, "<@"+id+">")
			}
			return reply(event, fmt.Sprintf("Managers of **%s**: %s", role.Name, strings.Join(mentions, ", ")))

		default:
			return reply(event, "Unknown subcommand.")
		}
	}
}

package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
)

const previewPrefix = "rolepreview"

// roleHandler serves /role give and /role take. Instead of applying the
// change immediately it parks a preview session and shows confirm/cancel
// buttons; the component handler below finishes the job.
func roleHandler(d Deps) Handler {
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
		if sub != "give" && sub != "take" {
			return reply(event, "Unknown subcommand.")
		}

		role, ok := d.Search.Role(guildID, data.String("role"))
		if !ok {
			return reply(event, "No matching role found.")
		}
		if !d.Perms.CheckPermission(ctx, actor, role) {
			return reply(event, fmt.Sprintf("You are not allowed to manage **%s**.", role.Name))
		}

		targetID := data.Snowflake("user").String()
		target, ok := d.Cache.Member(targetID)
		if !ok || target.GuildID != guildID {
			return reply(event, "That user is not in this server.")
		}
		if sub == "give" && target.HasRole(role.ID) {
			return reply(event, fmt.Sprintf("%s already has **%s**.", target.EffectiveName(), role.Name))
		}
		if sub == "take" && !target.HasRole(role.ID) {
			return reply(event, fmt.Sprintf("%s does not have **%s**.", target.EffectiveName(), role.Name))
		}

		key := event.ID().String()
		session := d.Previews.Create(key, guildID, actor.ID, targetID, sub, []string{role.ID})

		content := fmt.Sprintf("Give **%s** to %s?", role.Name, target.EffectiveName())
		if sub == "take" {
			content = fmt.Sprintf("Take **%s** from %s?", role.Name, target.EffectiveName())
		}

		return event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(content).
			SetEphemeral(true).
			AddActionRow(
				discord.NewPrimaryButton("Confirm", componentID("confirm", key, session.Nonce)),
				discord.NewSecondaryButton("Cancel", componentID("cancel", key, session.Nonce)),
			).
			Build())
	}
}

func componentID(action, key, nonce string) string {
	return strings.Join([]string{previewPrefix, action, key, nonce}, ":")
}

// NewComponentHandler returns the listener that resolves preview buttons.
// Unrelated component interactions are ignored.
func NewComponentHandler(d Deps) func(event *events.ComponentInteractionCreate) {
	return func(event *events.ComponentInteractionCreate) {
		parts := strings.Split(event.Data.CustomID(), ":")
		if len(parts) != 4 || parts[0] != previewPrefix {
			return
		}
		action, key, nonce := parts[1], parts[2], parts[3]

		closeOut := func(content string) {
			if err := event.UpdateMessage(discord.NewMessageUpdateBuilder().
				SetContent(content).
				SetContainerComponents().
				Build()); err != nil {
				d.Log.Error("failed to update preview message", zap.Error(err))
			}
		}

		session, ok := d.Previews.Get(key, nonce)
		if !ok {
			closeOut("This preview has expired. Run the command again.")
			return
		}
		if event.User().ID.String() != session.UserID {
			// Ephemeral messages make this unlikely, but the session owner
			// is still the only one who may act on it.
			return
		}

		if action == "cancel" {
			d.Previews.Delete(key)
			closeOut("Cancelled, nothing changed.")
			return
		}

		actor, ok := d.Cache.Member(session.UserID)
		role, roleOK := d.Cache.Role(session.RoleIDs[0])
		if !ok || !roleOK || actor.GuildID != session.GuildID {
			d.Previews.Delete(key)
			closeOut("The server state changed, nothing was applied.")
			return
		}
		// The actor's standing may have changed since the preview was shown.
		if !d.Perms.CheckPermission(context.Background(), actor, role) {
			d.Previews.Delete(key)
			closeOut(fmt.Sprintf("You are no longer allowed to manage **%s**.", role.Name))
			return
		}

		guildID := snowflake.MustParse(session.GuildID)
		targetID := snowflake.MustParse(session.TargetID)
		roleID := snowflake.MustParse(role.ID)

		var err error
		if session.Action == "give" {
			err = event.Client().Rest().AddMemberRole(guildID, targetID, roleID)
		} else {
			err = event.Client().Rest().RemoveMemberRole(guildID, targetID, roleID)
		}
		d.Previews.Delete(key)
		if err != nil {
			d.Log.Error("failed to apply role change",
				zap.String("guild_id", session.GuildID),
				zap.String("role_id", role.ID),
				zap.String("target_id", session.TargetID),
				zap.String("action", session.Action),
				zap.Error(err))
			closeOut("Discord rejected the change. Check the bot's role position.")
			return
		}

		d.Log.Info("applied role change",
			zap.String("guild_id", session.GuildID),
			zap.String("role_id", role.ID),
			zap.String("target_id", session.TargetID),
			zap.String("action", session.Action))
		if session.Action == "give" {
			closeOut(fmt.Sprintf("Gave **%s** to <@%s>.", role.Name, session.TargetID))
		} else {
			closeOut(fmt.Sprintf("Took **%s** from <@%s>.", role.Name, session.TargetID))
		}
	}
}

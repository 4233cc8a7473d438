package grant

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordDirectory is the RoleDirectory backed by a live bot session.
type DiscordDirectory struct {
	session *discordgo.Session
}

func NewDiscordDirectory(s *discordgo.Session) *DiscordDirectory {
	return &DiscordDirectory{session: s}
}

func (d *DiscordDirectory) RoleByName(ctx context.Context, guildID, name string) (string, error) {
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetch guild roles: %w", err)
	}

	for _, role := range roles {
		if strings.EqualFold(role.Name, name) {
			return role.ID, nil
		}
	}
	return "", ErrRoleNotFound
}

func (d *DiscordDirectory) GrantRole(ctx context.Context, guildID, userID, roleID string) error {
	// Discord treats adding an already-held role as success, which is what
	// the executor relies on.
	return d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
}

// DiscordNotifier delivers DMs through the bot session.
type DiscordNotifier struct {
	session *discordgo.Session
}

func NewDiscordNotifier(s *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{session: s}
}

func (n *DiscordNotifier) DirectMessage(ctx context.Context, userID, content string) error {
	dm, err := n.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUserUnreachable, err)
	}

	if _, err := n.session.ChannelMessageSend(dm.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("%w: %v", ErrUserUnreachable, err)
	}
	return nil
}

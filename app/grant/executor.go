package grant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aoisuzu/Gatekeeper/app/models"
)

var (
	// ErrRoleNotFound means the configured role name does not exist in the
	// guild. Operator error, not a policy deny.
	ErrRoleNotFound = errors.New("verified role not found in guild")

	// ErrUserUnreachable means a DM could not be delivered (closed DMs,
	// user left, etc).
	ErrUserUnreachable = errors.New("user unreachable by direct message")
)

// Fixed user-facing messages, mirrored to the user by DM on a deny.
var denyMessages = map[models.DenyReason]string{
	models.DenyVPNDetected:   "VPNまたはプロキシを使用しているため認証できません。",
	models.DenyAccountTooNew: "アカウントの作成日が3日以内のため認証できません。",
}

// DenyMessage returns the fixed human-readable text for a deny reason.
func DenyMessage(reason models.DenyReason) string {
	return denyMessages[reason]
}

// RoleDirectory reads and mutates role membership in a guild.
type RoleDirectory interface {
	// RoleByName resolves a role id by name, case-insensitively.
	RoleByName(ctx context.Context, guildID, name string) (string, error)
	// GrantRole adds the role to the member. Granting an already-held role
	// is a no-op, not an error.
	GrantRole(ctx context.Context, guildID, userID, roleID string) error
}

// Notifier delivers a direct message to a user.
type Notifier interface {
	DirectMessage(ctx context.Context, userID, content string) error
}

// Executor applies a Decision to a guild member: role grant on allow, denial
// DM on deny. It touches nothing else.
type Executor struct {
	directory RoleDirectory
	notifier  Notifier
	roleName  string
	logger    *slog.Logger
}

func NewExecutor(dir RoleDirectory, notifier Notifier, roleName string, logger *slog.Logger) *Executor {
	return &Executor{directory: dir, notifier: notifier, roleName: roleName, logger: logger}
}

// Apply executes exactly one side effect for the decision. DM delivery
// failure on a deny is logged but does not fail the deny itself.
func (e *Executor) Apply(ctx context.Context, decision models.Decision, member models.MemberRef) error {
	if !decision.Allowed {
		if err := e.notifier.DirectMessage(ctx, member.UserID, DenyMessage(decision.Reason)); err != nil {
			e.logger.Warn("failed to DM denial reason",
				slog.String("user_id", member.UserID),
				slog.Any("err", err))
		}
		return nil
	}

	roleID, err := e.directory.RoleByName(ctx, member.GuildID, e.roleName)
	if err != nil {
		return fmt.Errorf("resolve role %q: %w", e.roleName, err)
	}

	if err := e.directory.GrantRole(ctx, member.GuildID, member.UserID, roleID); err != nil {
		return fmt.Errorf("grant role %q to %s: %w", e.roleName, member.UserID, err)
	}

	return nil
}

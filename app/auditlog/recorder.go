package auditlog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/aoisuzu/Gatekeeper/app/database"
	"github.com/aoisuzu/Gatekeeper/app/models"
)

const (
	colorPassed = 7789422
	colorFailed = 16724542

	// How far back another account on the same address is worth flagging.
	duplicateIPWindow = 7 * 24 * time.Hour
)

// EmbedSender posts an embed to a channel. Extension point so the recorder
// can run without a live bot session.
type EmbedSender interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error
}

// DiscordEmbedSender sends through the bot session.
type DiscordEmbedSender struct {
	session *discordgo.Session
}

func NewDiscordEmbedSender(s *discordgo.Session) *DiscordEmbedSender {
	return &DiscordEmbedSender{session: s}
}

func (d *DiscordEmbedSender) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	return err
}

// Recorder writes the audit trail for resolved attempts: a database row
// always, plus an embed to the guild's log channel when one is configured.
// Recording never influences the decision and never fails the attempt.
type Recorder struct {
	store  database.Store
	sender EmbedSender
	logger *slog.Logger
}

func NewRecorder(store database.Store, sender EmbedSender, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, sender: sender, logger: logger}
}

func (r *Recorder) Record(ctx context.Context, rec models.VerifyRecord) {
	// Other accounts seen on this address recently are flagged in the log,
	// not fed back into the decision.
	duplicates, err := r.store.RecentIPUsers(ctx, rec.IP, rec.UserID, rec.At.Add(-duplicateIPWindow))
	if err != nil {
		r.logger.Warn("failed to check recent ip usage", slog.Any("err", err))
	}

	if err := r.store.AddRecord(ctx, rec); err != nil {
		r.logger.Warn("failed to store verify record", slog.Any("err", err))
	}

	if rec.Passed {
		if err := r.store.RecordIPUsage(ctx, rec.IP, rec.UserID, rec.At); err != nil {
			r.logger.Warn("failed to record ip usage", slog.Any("err", err))
		}
	}

	channelID, err := r.store.LogChannel(ctx, rec.GuildID)
	if err != nil {
		r.logger.Warn("failed to look up log channel", slog.Any("err", err))
		return
	}
	if channelID == "" {
		return
	}

	if err := r.sender.SendEmbed(ctx, channelID, buildEmbed(rec, duplicates)); err != nil {
		r.logger.Warn("failed to send verify result to log channel",
			slog.String("channel", channelID),
			slog.Any("err", err))
	}
}

func buildEmbed(rec models.VerifyRecord, duplicates []string) *discordgo.MessageEmbed {
	status := "Failed"
	color := colorFailed
	if rec.Passed {
		status = "Success"
		color = colorPassed
	}

	country := rec.CountryCode
	if country == "" {
		country = "unknown"
	}

	fields := []*discordgo.MessageEmbedField{
		{Name: "User", Value: fmt.Sprintf("<@%s>", rec.UserID)},
		{Name: "Email", Value: orUnknown(rec.Email)},
		{Name: "IP", Value: rec.IP},
		{Name: "Country", Value: country},
		{Name: "VPN/Proxy", Value: fmt.Sprintf("%t", rec.ProxyOrVPN)},
		{Name: "Status", Value: status},
	}
	if rec.Reason != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Reason", Value: rec.Reason})
	}
	if len(duplicates) > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Same IP within 7 days",
			Value: "<@" + strings.Join(duplicates, ">, <@") + ">",
		})
	}

	return &discordgo.MessageEmbed{
		Title:     "Verification Log",
		Fields:    fields,
		Color:     color,
		Timestamp: rec.At.Format("2006-01-02T15:04:05-0700"),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// severityEmbedColors maps event severities to Discord embed colors.
var severityEmbedColors = map[string]int{
	"info":    0x439fe0,
	"warning": 0xdaa038,
	"error":   0xd00000,
	"success": 0x36a64f,
}

// discordSession abstracts the discordgo methods we use, enabling test mocks.
type discordSession interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordSink posts events to a Discord channel over the REST API.
type DiscordSink struct {
	sess    discordSession
	channel string
}

// DiscordOpts holds parameters for creating a DiscordSink.
type DiscordOpts struct {
	BotToken string
	Channel  string
	// For testing: inject a mock session instead of the real Discord API.
	Session discordSession
}

// NewDiscordSink creates a DiscordSink.
func NewDiscordSink(opts DiscordOpts) (*DiscordSink, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	d := &DiscordSink{sess: opts.Session, channel: opts.Channel}
	if d.sess == nil {
		sess, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		d.sess = sess
	}
	return d, nil
}

// Name implements Sink.
func (d *DiscordSink) Name() string { return "discord" }

// Post sends the event as an embed.
func (d *DiscordSink) Post(ctx context.Context, e Event) error {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Body,
		Color:       severityEmbedColors[e.Severity],
	}
	_, err := d.sess.ChannelMessageSendEmbed(d.channel, embed, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: post %q: %w", e.Title, err)
	}
	return nil
}

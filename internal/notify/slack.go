package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// severityColors maps event severities to Slack attachment colors.
var severityColors = map[string]string{
	"info":    "#439fe0",
	"warning": "#daa038",
	"error":   "#d00000",
	"success": "#36a64f",
}

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackSink posts events to a Slack channel.
type SlackSink struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackSink.
type SlackOpts struct {
	BotToken string
	Channel  string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlackSink creates a SlackSink.
func NewSlackSink(opts SlackOpts) (*SlackSink, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	s := &SlackSink{client: opts.Client, channel: opts.Channel}
	if s.client == nil {
		s.client = slackapi.New(opts.BotToken)
	}
	return s, nil
}

// Name implements Sink.
func (s *SlackSink) Name() string { return "slack" }

// Post sends the event as an attachment-formatted message.
func (s *SlackSink) Post(ctx context.Context, e Event) error {
	attachment := slackapi.Attachment{
		Title: e.Title,
		Text:  e.Body,
		Color: severityColors[e.Severity],
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post %q: %w", e.Title, err)
	}
	return nil
}

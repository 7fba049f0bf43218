package notify

import (
	"context"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackAdapter posts lifecycle events to a Slack channel.
type SlackAdapter struct {
	client  slackClient
	channel string
}

// NewSlack creates a Slack adapter posting to the given channel.
func NewSlack(token, channel string) *SlackAdapter {
	return &SlackAdapter{client: slackapi.New(token), channel: channel}
}

// Name identifies the adapter in logs.
func (a *SlackAdapter) Name() string { return "slack" }

// Send posts the event message.
func (a *SlackAdapter) Send(ctx context.Context, ev Event) error {
	_, _, err := a.client.PostMessage(a.channel,
		slackapi.MsgOptionText(formatEvent(ev), false))
	return err
}

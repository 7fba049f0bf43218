package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// discordSession abstracts the Discord API surface we use.
type discordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// DiscordAdapter posts lifecycle events to a Discord channel. Outbound
// only, so the gateway connection is never opened.
type DiscordAdapter struct {
	session discordSession
	channel string
}

// NewDiscord creates a Discord adapter posting to the given channel id.
func NewDiscord(token, channel string) (*DiscordAdapter, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("notify: discord session: %w", err)
	}
	return &DiscordAdapter{session: session, channel: channel}, nil
}

// Name identifies the adapter in logs.
func (a *DiscordAdapter) Name() string { return "discord" }

// Send posts the event message.
func (a *DiscordAdapter) Send(ctx context.Context, ev Event) error {
	_, err := a.session.ChannelMessageSend(a.channel, formatEvent(ev))
	return err
}

package notify

import (
	"context"
	"fmt"
	"net/http"
)

const discordMaxContent = 2000

// DiscordSender posts alerts to a webhook. The title is bold.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender. username overrides the webhook's
// display name when non-empty.
func NewDiscordSender(webhookURL, username string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   username,
		client:     &http.Client{Timeout: sendTimeout},
	}
}

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	payload := map[string]any{
		"content": truncate(fmt.Sprintf("**%s**\n%s", title, message), discordMaxContent),
	}
	if d.username != "" {
		payload["username"] = d.username
	}
	// Discord answers 204 on success.
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

func (d *DiscordSender) Name() string { return "discord" }

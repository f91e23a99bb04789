package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
	"unicode/utf8"
)

// discordMaxContent is Discord's limit on a webhook message body, in runes.
const discordMaxContent = 2000

type discordMessage struct {
	Content         string          `json:"content"`
	Username        string          `json:"username,omitempty"`
	AllowedMentions allowedMentions `json:"allowed_mentions"`
}

// allowedMentions with an empty Parse list stops symbols or venue messages
// that contain @everyone from pinging the channel.
type allowedMentions struct {
	Parse []string `json:"parse"`
}

// DiscordSender posts gateway notices to a Discord channel webhook.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   "AlphaGate",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts "**title** message", cut to Discord's length limit.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(discordMessage{
		Content:         clip(fmt.Sprintf("**%s** %s", title, message), discordMaxContent),
		Username:        d.username,
		AllowedMentions: allowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("discord: encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("discord: status 429, retry after %ss: %s",
			resp.Header.Get("Retry-After"), bytes.TrimSpace(detail))
	}
	return fmt.Errorf("discord: status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

// clip cuts s to at most limit runes, marking the cut with an ellipsis.
func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-1]) + "…"
}

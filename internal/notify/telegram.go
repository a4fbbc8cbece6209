// Package notify delivers fire-and-forget trade notifications. Delivery
// failures are logged by callers and never fail an order or ledger write.
package notify

import (
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Sink is a pluggable notification target.
type Sink interface {
	Send(message string) error
}

// Telegram posts messages to a chat via the bot API.
type Telegram struct {
	BotToken   string
	ChatID     string
	HTTPClient *http.Client
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken:   botToken,
		ChatID:     chatID,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *Telegram) Send(message string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return nil // not configured; silently skip
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.BotToken)
	params := url.Values{}
	params.Set("chat_id", t.ChatID)
	params.Set("text", message)

	res, err := t.HTTPClient.PostForm(endpoint, params)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram status %d", res.StatusCode)
	}
	return nil
}

// Noop discards all messages; used when Telegram is not configured.
type Noop struct{}

func (Noop) Send(string) error { return nil }

package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Telegram messages are rejected by the API past 4096 characters; long
// decision dumps get truncated rather than failing the push.
const telegramMaxLen = 4000

// Telegram pushes executable decisions and hard-rule alerts to a chat or
// channel via the Bot API.
type Telegram struct {
	botToken string
	chatID   string
	client   *http.Client
	attempts int
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 15 * time.Second},
		attempts: 3,
	}
}

// SendText sends a Markdown message, retrying transient failures with a
// linear backoff.
func (t *Telegram) SendText(text string) error {
	if t.botToken == "" || t.chatID == "" {
		return fmt.Errorf("telegram notifier missing bot_token or chat_id")
	}
	if len(text) > telegramMaxLen {
		text = text[:telegramMaxLen] + "\n...(truncated)"
	}
	body, err := json.Marshal(map[string]any{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram payload: %w", err)
	}
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	var lastErr error
	for attempt := 1; attempt <= t.attempts; attempt++ {
		lastErr = t.post(endpoint, body)
		if lastErr == nil {
			return nil
		}
		if attempt < t.attempts {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("telegram send after %d attempts: %w", t.attempts, lastErr)
}

func (t *Telegram) post(endpoint string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return nil
}

// Package slack sends messages to a Slack incoming-webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/osbuild/fedora-bot/internal/logfields"
)

const defHTTPTimeout = 30 * time.Second

// Notifier posts messages to a Slack channel via an incoming-webhook.
//
// Notifications are fire-and-forget: failures are logged and swallowed, a
// broken chat integration must never block or fail the calling bot.
type Notifier struct {
	webhookURL string
	botName    string
	runURL     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewNotifier returns a notifier that posts as botName.
// If webhookURL is empty, messages are only logged.
// The message header links to the CI run that invoked the bot, taken from
// the GITHUB_SERVER_URL, GITHUB_REPOSITORY and GITHUB_RUN_ID environment
// variables.
func NewNotifier(webhookURL, botName string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		botName:    botName,
		runURL: fmt.Sprintf("%s/%s/actions/runs/%s",
			os.Getenv("GITHUB_SERVER_URL"),
			os.Getenv("GITHUB_REPOSITORY"),
			os.Getenv("GITHUB_RUN_ID"),
		),
		httpClient: &http.Client{Timeout: defHTTPTimeout},
		logger:     zap.L().Named("slack"),
	}
}

type webhookMessage struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string    `json:"type"`
	Text blockText `json:"text"`
}

type blockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify sends message to the configured webhook.
// All failures are logged, never returned.
func (n *Notifier) Notify(ctx context.Context, message string) {
	logger := n.logger.With(zap.String("message", message))

	if n.webhookURL == "" {
		logger.Info(
			"no webhook url configured, skipping notification",
			logfields.Event("slack_notification_skipped"),
		)

		return
	}

	payload, err := json.Marshal(&webhookMessage{
		Text: "fallback",
		Blocks: []block{
			{
				Type: "section",
				Text: blockText{
					Type: "mrkdwn",
					Text: fmt.Sprintf("<%s|%s>: %s", n.runURL, n.botName, message),
				},
			},
		},
	})
	if err != nil {
		logger.Warn(
			"marshaling webhook payload failed",
			logfields.Event("slack_notification_failed"),
			zap.Error(err),
		)

		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(payload))
	if err != nil {
		logger.Warn(
			"creating webhook request failed",
			logfields.Event("slack_notification_failed"),
			zap.Error(err),
		)

		return
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		logger.Warn(
			"sending webhook request failed",
			logfields.Event("slack_notification_failed"),
			zap.Error(err),
		)

		return
	}

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.Warn(
			"reading webhook response body failed",
			logfields.Event("slack_notification_failed"),
			zap.Int("http_response_code", resp.StatusCode),
		)

		return
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Warn(
			"webhook returned unexpected status",
			logfields.Event("slack_notification_failed"),
			zap.Int("http_response_code", resp.StatusCode),
			zap.ByteString("http_response_body", body),
		)

		return
	}

	logger.Debug(
		"notification sent",
		logfields.Event("slack_notification_sent"),
	)
}

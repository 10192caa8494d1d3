package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bllfield/intelliwatt-costengine/internal/storage"
)

// AlertConfig holds alerting configuration.
type AlertConfig struct {
	// WebhookURL is a generic webhook endpoint (Slack, Discord, or custom)
	WebhookURL string
	// WebhookType determines the payload format: "slack", "discord", or "generic"
	WebhookType string
	// Enabled controls whether alerts are sent
	Enabled bool
	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultAlertConfig returns config from environment variables.
func DefaultAlertConfig() AlertConfig {
	cfg := AlertConfig{
		WebhookURL:  os.Getenv("COSTENGINE_ALERT_WEBHOOK_URL"),
		WebhookType: os.Getenv("COSTENGINE_ALERT_WEBHOOK_TYPE"),
		Timeout:     10 * time.Second,
	}

	cfg.Enabled = cfg.WebhookURL != ""

	if cfg.WebhookType == "" {
		// Auto-detect from URL
		if strings.Contains(cfg.WebhookURL, "slack.com") {
			cfg.WebhookType = "slack"
		} else if strings.Contains(cfg.WebhookURL, "discord.com") {
			cfg.WebhookType = "discord"
		} else {
			cfg.WebhookType = "generic"
		}
	}

	return cfg
}

// Alerter sends alerts to configured webhooks.
type Alerter struct {
	cfg    AlertConfig
	client *http.Client
}

// NewAlerter creates a new alerter instance.
func NewAlerter(cfg AlertConfig) *Alerter {
	return &Alerter{
		cfg: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// QuarantineOpened implements the quarantine notifier contract: it fires
// when a plan defect lands in the review queue for the first time.
func (a *Alerter) QuarantineOpened(ctx context.Context, item storage.QuarantineItem) {
	if err := a.SendQuarantineAlert(ctx, item); err != nil {
		log.Printf("alerting: quarantine alert failed: %v", err)
	}
}

// SendQuarantineAlert posts a new quarantine item to the webhook.
func (a *Alerter) SendQuarantineAlert(ctx context.Context, item storage.QuarantineItem) error {
	if !a.cfg.Enabled {
		log.Printf("alerting: alerts disabled, skipping")
		return nil
	}

	var payload []byte
	var err error

	switch a.cfg.WebhookType {
	case "slack":
		payload, err = a.buildSlackPayload(item)
	case "discord":
		payload, err = a.buildDiscordPayload(item)
	default:
		payload, err = a.buildGenericPayload(item)
	}

	if err != nil {
		return fmt.Errorf("build payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	log.Printf("alerting: sent quarantine alert for plan %s (%s)", item.PlanID, item.ReasonCode)
	return nil
}

func (a *Alerter) buildSlackPayload(item storage.QuarantineItem) ([]byte, error) {
	payload := map[string]interface{}{
		"blocks": []map[string]interface{}{
			{
				"type": "header",
				"text": map[string]string{
					"type": "plain_text",
					"text": ":warning: Plan quarantined",
				},
			},
			{
				"type": "section",
				"fields": []map[string]string{
					{"type": "mrkdwn", "text": fmt.Sprintf("*Plan:*\n%s", item.PlanID)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:*\n%s", item.ReasonCode)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*Detail:*\n%s", item.Detail)},
					{"type": "mrkdwn", "text": fmt.Sprintf("*First seen:*\n%s", item.FirstSeenAt.Format(time.RFC3339))},
				},
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildDiscordPayload(item storage.QuarantineItem) ([]byte, error) {
	payload := map[string]interface{}{
		"embeds": []map[string]interface{}{
			{
				"title":       "Plan quarantined",
				"description": fmt.Sprintf("Plan %s pulled from comparison results", item.PlanID),
				"color":       16776960, // Yellow
				"fields": []map[string]interface{}{
					{"name": "Reason", "value": item.ReasonCode, "inline": true},
					{"name": "Detail", "value": item.Detail, "inline": false},
				},
				"timestamp": item.FirstSeenAt.Format(time.RFC3339),
			},
		},
	}

	return json.Marshal(payload)
}

func (a *Alerter) buildGenericPayload(item storage.QuarantineItem) ([]byte, error) {
	payload := map[string]interface{}{
		"alert_type":    "plan_quarantined",
		"plan_id":       item.PlanID,
		"home_id":       item.HomeID,
		"reason_code":   item.ReasonCode,
		"detail":        item.Detail,
		"first_seen_at": item.FirstSeenAt.Format(time.RFC3339),
		"seen_count":    item.SeenCount,
	}

	return json.Marshal(payload)
}

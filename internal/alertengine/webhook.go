package alertengine

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/errs"
)

// webhookPayload is the msgpack-encoded body delivered to a registered
// webhook: the fired alert's fields. Each delivery attempt is recorded
// separately as a webhook_deliveries row.
type webhookPayload struct {
	AlertID        string    `msgpack:"alert_id"`
	User           string    `msgpack:"user"`
	PositionRef    string    `msgpack:"position_ref"`
	Metric         string    `msgpack:"metric"`
	Severity       string    `msgpack:"severity"`
	RiskScore      float64   `msgpack:"risk_score"`
	CurrentValue   string    `msgpack:"current_value"`
	ThresholdValue string    `msgpack:"threshold_value"`
	FiredAt        time.Time `msgpack:"fired_at"`
}

// WebhookSink delivers fired alerts to a user's registered webhook URL.
type WebhookSink struct {
	httpClient *http.Client
}

func NewWebhookSink(timeout time.Duration) *WebhookSink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{httpClient: &http.Client{Timeout: timeout}}
}

// Deliver POSTs the msgpack-encoded alert to the webhook URL and reports
// the HTTP status observed (or an error if the request never completed).
func (s *WebhookSink) Deliver(ctx context.Context, webhook domain.Webhook, alert domain.Alert) (int, error) {
	payload := webhookPayload{
		AlertID:        alert.ID.String(),
		User:           alert.User,
		PositionRef:    alert.PositionRef,
		Metric:         alert.Metric,
		Severity:       string(alert.Severity),
		RiskScore:      alert.RiskScore,
		CurrentValue:   alert.CurrentValue.String(),
		ThresholdValue: alert.ThresholdValue.String(),
		FiredAt:        alert.CreatedAt,
	}

	body, err := msgpack.Marshal(payload)
	if err != nil {
		return 0, errs.New(errs.Internal, "alertengine.WebhookSink.Deliver", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, errs.New(errs.Internal, "alertengine.WebhookSink.Deliver", err)
	}
	req.Header.Set("Content-Type", "application/msgpack")
	if webhook.Secret != "" {
		req.Header.Set("X-Webhook-Secret", webhook.Secret)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, errs.New(errs.Transient, "alertengine.WebhookSink.Deliver", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return resp.StatusCode, errs.Newf(errs.Transient, "alertengine.WebhookSink.Deliver", "webhook returned status %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

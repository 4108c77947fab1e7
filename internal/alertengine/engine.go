// Package alertengine evaluates user-configured thresholds against
// streamed risk assessments (RiskComputed events), materializes
// deduplicated alerts, and hands fired alerts to the webhook sink.
// PositionChanged events are not read directly; position changes reach the
// engine as the risk assessments riskengine.Bridge publishes for them.
// Modeled structurally on
// internal/alerts/alert_service.go's rule/channel/history/subscribe shape,
// generalized from its generic "system alert" shape to position/risk alerts.
package alertengine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/store"
	"github.com/riskmonitor/engine/internal/streambus"
	"github.com/riskmonitor/engine/pkg/observability"
)

// Engine subscribes to the stream bus and turns threshold breaches into
// persisted, deduplicated alerts with a webhook delivery side effect.
type Engine struct {
	thresholds store.ThresholdRepository
	alerts     store.AlertRepository
	webhooks   store.WebhookRepository
	bus        *streambus.Bus
	sink       *WebhookSink
	dedup      *dedup
	cfg        config.AlertingConfig
	logger     *observability.Logger
}

func NewEngine(thresholds store.ThresholdRepository, alerts store.AlertRepository, webhooks store.WebhookRepository, bus *streambus.Bus, sink *WebhookSink, cfg config.AlertingConfig, logger *observability.Logger) *Engine {
	return &Engine{
		thresholds: thresholds,
		alerts:     alerts,
		webhooks:   webhooks,
		bus:        bus,
		sink:       sink,
		dedup:      newDedup(cfg.DefaultCooldown),
		cfg:        cfg,
		logger:     logger,
	}
}

// Run processes RiskComputed events until ctx is canceled.
func (e *Engine) Run(ctx context.Context) error {
	sub := e.bus.Subscribe(func(ev streambus.Event) bool {
		return ev.Type == streambus.EventRiskComputed
	})
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-sub.Events():
			e.evaluate(ctx, ev)
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, ev streambus.Event) {
	if ev.Risk == nil {
		return
	}
	metric := string(ev.Risk.RiskType)

	thresholds, err := e.thresholds.ListEnabledByMetric(ctx, metric)
	if err != nil {
		if e.logger != nil {
			e.logger.Error(ctx, "alertengine: threshold lookup failed", err, map[string]interface{}{"metric": metric})
		}
		return
	}

	for _, t := range thresholds {
		if t.User != "" && t.User != ev.User {
			continue
		}
		e.evaluateThreshold(ctx, t, *ev.Risk)
	}
}

func (e *Engine) evaluateThreshold(ctx context.Context, t domain.Threshold, risk domain.RiskAssessment) {
	thresholdValue, _ := t.Value.Float64()
	breached := breach(t.Operator, risk.Score, thresholdValue)

	open, err := e.alerts.OpenForThreshold(ctx, t.ID, risk.EntityID)
	hasOpen := err == nil

	switch {
	case breached && !hasOpen:
		e.fire(ctx, t, risk, thresholdValue)
	case !breached && hasOpen:
		if resolves(t.Operator, risk.Score, thresholdValue, e.cfg.ResolutionHysteresis) {
			e.resolve(ctx, open)
		}
	}
}

// breach reports whether value crosses threshold in the direction op names.
func breach(op domain.Operator, value, threshold float64) bool {
	switch op {
	case domain.OpGreaterThan:
		return value > threshold
	case domain.OpLessThan:
		return value < threshold
	default:
		return false
	}
}

// breachOvershoot reports how far value has crossed threshold, as a
// fraction of the threshold, in the direction op treats as a breach: how
// far above for OpGreaterThan, how far below for OpLessThan.
func breachOvershoot(op domain.Operator, value, threshold float64) float64 {
	if threshold == 0 {
		return 0
	}
	switch op {
	case domain.OpLessThan:
		return (threshold - value) / threshold
	default:
		return (value - threshold) / threshold
	}
}

// resolves reports whether value has retreated past threshold by at least
// the hysteresis margin, preventing flapping right at the boundary.
func resolves(op domain.Operator, value, threshold, hysteresis float64) bool {
	margin := threshold * hysteresis
	switch op {
	case domain.OpGreaterThan:
		return value < threshold-margin
	case domain.OpLessThan:
		return value > threshold+margin
	default:
		return false
	}
}

func (e *Engine) fire(ctx context.Context, t domain.Threshold, risk domain.RiskAssessment, thresholdValue float64) {
	if e.dedup.Seen(t.User, t.Metric, risk.EntityID, time.Now()) {
		return
	}

	overshoot := breachOvershoot(t.Operator, risk.Score, thresholdValue)

	alert := domain.Alert{
		ThresholdID:    t.ID,
		User:           t.User,
		PositionRef:    risk.EntityID,
		Metric:         t.Metric,
		Type:           string(risk.RiskType),
		Severity:       domain.SeverityFromOvershoot(overshoot),
		RiskScore:      risk.Score,
		CurrentValue:   decimal.NewFromFloat(risk.Score),
		ThresholdValue: t.Value,
		CreatedAt:      time.Now(),
	}

	id, err := e.alerts.Insert(ctx, alert)
	if err != nil {
		if e.logger != nil {
			e.logger.Error(ctx, "alertengine: alert insert failed", err, nil)
		}
		return
	}
	alert.ID = id

	if e.bus != nil {
		e.bus.Publish(streambus.Event{Type: streambus.EventAlertFired, User: t.User, Alert: &alert})
	}
	e.deliverWebhooks(ctx, alert)
}

func (e *Engine) resolve(ctx context.Context, alert domain.Alert) {
	if err := e.alerts.Resolve(ctx, alert.ID); err != nil {
		if e.logger != nil {
			e.logger.Error(ctx, "alertengine: alert resolve failed", err, nil)
		}
		return
	}
	alert.Resolved = true
	if e.bus != nil {
		e.bus.Publish(streambus.Event{Type: streambus.EventAlertResolved, User: alert.User, Alert: &alert})
	}
}

func (e *Engine) deliverWebhooks(ctx context.Context, alert domain.Alert) {
	if e.sink == nil || e.webhooks == nil {
		return
	}
	hooks, err := e.webhooks.ListEnabledByUser(ctx, alert.User)
	if err != nil {
		return
	}
	for _, hook := range hooks {
		status, deliverErr := e.sink.Deliver(ctx, hook, alert)
		delivery := domain.WebhookDelivery{
			WebhookID:   hook.ID,
			AlertID:     alert.ID,
			StatusCode:  status,
			DeliveredOK: deliverErr == nil,
			AttemptedAt: time.Now(),
		}
		if deliverErr != nil {
			delivery.Error = deliverErr.Error()
		}
		_ = e.webhooks.RecordDelivery(ctx, delivery)
	}
}

package alertengine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/config"
	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/streambus"
)

type fakeThresholdRepo struct {
	byMetric map[string][]domain.Threshold
}

func (f *fakeThresholdRepo) Upsert(ctx context.Context, t domain.Threshold) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeThresholdRepo) ListByUser(ctx context.Context, user string) ([]domain.Threshold, error) {
	return nil, nil
}
func (f *fakeThresholdRepo) ListEnabledByMetric(ctx context.Context, metric string) ([]domain.Threshold, error) {
	return f.byMetric[metric], nil
}
func (f *fakeThresholdRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

type fakeAlertRepo struct {
	inserted []domain.Alert
	open     map[string]domain.Alert
	resolved []uuid.UUID
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{open: make(map[string]domain.Alert)}
}

func (f *fakeAlertRepo) Insert(ctx context.Context, a domain.Alert) (uuid.UUID, error) {
	a.ID = uuid.New()
	f.inserted = append(f.inserted, a)
	f.open[a.ThresholdID.String()+a.PositionRef] = a
	return a.ID, nil
}
func (f *fakeAlertRepo) Resolve(ctx context.Context, id uuid.UUID) error {
	f.resolved = append(f.resolved, id)
	for k, a := range f.open {
		if a.ID == id {
			delete(f.open, k)
		}
	}
	return nil
}
func (f *fakeAlertRepo) OpenForThreshold(ctx context.Context, thresholdID uuid.UUID, positionRef string) (domain.Alert, error) {
	a, ok := f.open[thresholdID.String()+positionRef]
	if !ok {
		return domain.Alert{}, assert.AnError
	}
	return a, nil
}
func (f *fakeAlertRepo) ListByUser(ctx context.Context, user string, includeResolved bool) ([]domain.Alert, error) {
	return nil, nil
}

type fakeWebhookRepo struct {
	delivered []domain.WebhookDelivery
}

func (f *fakeWebhookRepo) Upsert(ctx context.Context, w domain.Webhook) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeWebhookRepo) ListEnabledByUser(ctx context.Context, user string) ([]domain.Webhook, error) {
	return nil, nil
}
func (f *fakeWebhookRepo) RecordDelivery(ctx context.Context, d domain.WebhookDelivery) error {
	f.delivered = append(f.delivered, d)
	return nil
}

func newTestEngine(thresholds map[string][]domain.Threshold) (*Engine, *fakeAlertRepo, *streambus.Bus) {
	bus := streambus.New(0, nil)
	alerts := newFakeAlertRepo()
	e := NewEngine(&fakeThresholdRepo{byMetric: thresholds}, alerts, &fakeWebhookRepo{}, bus, nil, config.AlertingConfig{
		DefaultCooldown:      time.Minute,
		ResolutionHysteresis: 0.1,
	}, nil)
	return e, alerts, bus
}

func TestEngineFiresAlertOnBreach(t *testing.T) {
	thresholdID := uuid.New()
	thresholds := map[string][]domain.Threshold{
		"health_factor": {{ID: thresholdID, User: "alice", Metric: "health_factor", Operator: domain.OpGreaterThan, Value: decimal.NewFromFloat(0.5), Enabled: true}},
	}
	e, alerts, bus := newTestEngine(thresholds)
	defer bus.Stop()

	risk := domain.RiskAssessment{EntityID: "pos-1", RiskType: "health_factor", Score: 0.9, Severity: domain.SeverityHigh}
	e.evaluate(context.Background(), streambus.Event{Type: streambus.EventRiskComputed, User: "alice", Risk: &risk})

	require.Len(t, alerts.inserted, 1)
	assert.Equal(t, "pos-1", alerts.inserted[0].PositionRef)
}

func TestEngineAlertSeverityFromOwnOvershootNotRiskSeverity(t *testing.T) {
	thresholdID := uuid.New()
	// Same risk score (0.9) and same Severity label (Low, deliberately wrong
	// if copied through) against two very different thresholds should yield
	// two different alert severities, derived from each alert's own
	// overshoot rather than the risk assessment's severity.
	lowThreshold := map[string][]domain.Threshold{
		"health_factor": {{ID: thresholdID, User: "alice", Metric: "health_factor", Operator: domain.OpGreaterThan, Value: decimal.NewFromFloat(0.1), Enabled: true}},
	}
	e, alerts, bus := newTestEngine(lowThreshold)
	defer bus.Stop()
	risk := domain.RiskAssessment{EntityID: "pos-1", RiskType: "health_factor", Score: 0.9, Severity: domain.SeverityLow}
	e.evaluate(context.Background(), streambus.Event{Type: streambus.EventRiskComputed, User: "alice", Risk: &risk})
	require.Len(t, alerts.inserted, 1)
	assert.Equal(t, domain.SeverityCritical, alerts.inserted[0].Severity, "overshoot of (0.9-0.1)/0.1=8.0 should band Critical regardless of risk.Severity")

	highThresholdID := uuid.New()
	highThreshold := map[string][]domain.Threshold{
		"health_factor": {{ID: highThresholdID, User: "bob", Metric: "health_factor", Operator: domain.OpGreaterThan, Value: decimal.NewFromFloat(0.85), Enabled: true}},
	}
	e2, alerts2, bus2 := newTestEngine(highThreshold)
	defer bus2.Stop()
	risk2 := domain.RiskAssessment{EntityID: "pos-2", RiskType: "health_factor", Score: 0.9, Severity: domain.SeverityLow}
	e2.evaluate(context.Background(), streambus.Event{Type: streambus.EventRiskComputed, User: "bob", Risk: &risk2})
	require.Len(t, alerts2.inserted, 1)
	assert.Equal(t, domain.SeverityLow, alerts2.inserted[0].Severity, "overshoot of (0.9-0.85)/0.85≈0.059 should band Low")
}

func TestBreachOvershoot(t *testing.T) {
	assert.InDelta(t, 8.0, breachOvershoot(domain.OpGreaterThan, 0.9, 0.1), 0.0001)
	assert.InDelta(t, 0.8, breachOvershoot(domain.OpLessThan, 0.1, 0.5), 0.0001, "OpLessThan breaches below threshold, overshoot grows the further under")
	assert.Equal(t, 0.0, breachOvershoot(domain.OpGreaterThan, 1, 0))
}

func TestEngineSkipsThresholdForOtherUser(t *testing.T) {
	thresholds := map[string][]domain.Threshold{
		"health_factor": {{ID: uuid.New(), User: "bob", Metric: "health_factor", Operator: domain.OpGreaterThan, Value: decimal.NewFromFloat(0.5), Enabled: true}},
	}
	e, alerts, bus := newTestEngine(thresholds)
	defer bus.Stop()

	risk := domain.RiskAssessment{EntityID: "pos-1", RiskType: "health_factor", Score: 0.9}
	e.evaluate(context.Background(), streambus.Event{Type: streambus.EventRiskComputed, User: "alice", Risk: &risk})

	assert.Empty(t, alerts.inserted, "threshold scoped to bob should not fire for alice's event")
}

func TestEngineDedupSuppressesRepeatFire(t *testing.T) {
	thresholdID := uuid.New()
	thresholds := map[string][]domain.Threshold{
		"health_factor": {{ID: thresholdID, User: "alice", Metric: "health_factor", Operator: domain.OpGreaterThan, Value: decimal.NewFromFloat(0.5), Enabled: true}},
	}
	e, alerts, bus := newTestEngine(thresholds)
	defer bus.Stop()

	risk := domain.RiskAssessment{EntityID: "pos-1", RiskType: "health_factor", Score: 0.9}
	e.fire(context.Background(), thresholds["health_factor"][0], risk, 0.5)
	e.fire(context.Background(), thresholds["health_factor"][0], risk, 0.5)

	assert.Len(t, alerts.inserted, 1, "second fire within cooldown bucket should be suppressed by dedup")
}

func TestResolvesRequiresHysteresisMargin(t *testing.T) {
	assert.False(t, resolves(domain.OpGreaterThan, 0.48, 0.5, 0.1), "just under threshold should not resolve yet")
	assert.True(t, resolves(domain.OpGreaterThan, 0.4, 0.5, 0.1), "comfortably under threshold minus margin should resolve")
	assert.False(t, resolves(domain.OpLessThan, 0.52, 0.5, 0.1), "just over threshold should not resolve yet")
	assert.True(t, resolves(domain.OpLessThan, 0.6, 0.5, 0.1), "comfortably over threshold plus margin should resolve")
}

func TestBreach(t *testing.T) {
	assert.True(t, breach(domain.OpGreaterThan, 0.9, 0.5))
	assert.False(t, breach(domain.OpGreaterThan, 0.4, 0.5))
	assert.True(t, breach(domain.OpLessThan, 0.1, 0.5))
}

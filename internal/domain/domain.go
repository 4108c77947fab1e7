// Package domain holds the shared entities the rest of the engine operates
// on: chains, tokens, pools, positions, price points, risk assessments,
// thresholds and alerts. Besides validation, types here carry small derived
// helpers (identity keys, the position hash, severity banding); risk
// computation lives in internal/numeric and internal/riskengine.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Chain describes one EVM-compatible network the engine tracks.
type Chain struct {
	ID            uint64
	Name          string
	NativeSymbol  string
	BlockTime     time.Duration
	Confirmations uint64
	Contracts     map[string]string
}

// Token identifies a fungible asset on a specific chain.
type Token struct {
	ChainID   uint64
	Address   string
	Symbol    string
	Decimals  uint8
	PriceFeed *string
}

// Key returns the (chainID, address) identity used as a map/cache key.
func (t Token) Key() string {
	return fmt.Sprintf("%d:%s", t.ChainID, t.Address)
}

// PoolKind distinguishes the structurally different pool/market shapes
// adapters can report.
type PoolKind string

const (
	PoolKindCLAMM         PoolKind = "clamm"
	PoolKindLending       PoolKind = "lending"
	PoolKindLiquidStaking PoolKind = "liquid_staking"
	PoolKindVault         PoolKind = "vault"
)

// CollateralAsset is one entry in a lending market's collateral list.
type CollateralAsset struct {
	Token             Token
	LiquidationFactor decimal.Decimal // collateral usable against debt, 0..1
	InterestRateApr   decimal.Decimal
}

// Pool is the generic market/pool record; fields not applicable to a given
// Kind are left at their zero value.
type Pool struct {
	ChainID     uint64
	Address     string
	Protocol    string
	Kind        PoolKind
	Token0      Token
	Token1      Token
	FeeTier      uint32
	SqrtPriceX96 *big.Int // Q64.96 sqrt price, CL-AMM only
	Tick         int32
	Liquidity   decimal.Decimal
	TVLUSD      decimal.Decimal
	Volume24hUSD decimal.Decimal

	// Lending-market fields.
	BaseAsset   Token
	Collateral  []CollateralAsset

	LastUpdated time.Time
}

// Position is a single user's stake in a pool/market.
type Position struct {
	ID            uuid.UUID
	UserAddress   string
	Protocol      string
	PoolAddress   string
	ChainID       uint64
	Kind          PoolKind
	TickLower     int32
	TickUpper     int32
	Token0Amount  decimal.Decimal
	Token1Amount  decimal.Decimal
	Liquidity     decimal.Decimal
	FeeTier       uint32
	CollateralUSD decimal.Decimal
	DebtUSD       decimal.Decimal
	CreatedAt     time.Time
	LastUpdated   time.Time
	LastPriced    time.Time
}

// Validate enforces the position invariants from spec.md §3.
func (p Position) Validate() error {
	if p.Token0Amount.IsNegative() {
		return fmt.Errorf("token0 amount must be non-negative")
	}
	if p.Token1Amount.IsNegative() {
		return fmt.Errorf("token1 amount must be non-negative")
	}
	if p.TickLower > p.TickUpper {
		return fmt.Errorf("tick_lower %d must not exceed tick_upper %d", p.TickLower, p.TickUpper)
	}
	return nil
}

// Hash returns a stable content hash used by the ingestion pipeline to
// skip writes for positions that have not changed since the last poll.
func (p Position) Hash() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%d|%d",
		p.Token0Amount.String(), p.Token1Amount.String(), p.Liquidity.String(),
		p.CollateralUSD.String(), p.DebtUSD.String(), p.TickLower, p.TickUpper)
}

// PoolSnapshot is an append-only per-tick record of a pool's observed state.
type PoolSnapshot struct {
	ID          uuid.UUID
	ChainID     uint64
	PoolAddress string
	Tick        int32
	Liquidity   decimal.Decimal
	TVLUSD      decimal.Decimal
	ObservedAt  time.Time
}

// PricePoint is an append-only record of a single price observation.
type PricePoint struct {
	ID         uuid.UUID
	Token      Token
	Timestamp  time.Time
	PriceUSD   decimal.Decimal
	Source     string
	Confidence float64
}

// Severity classifies how far a metric has overshot its threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityFromOvershoot bands how far a value has crossed its threshold,
// as a fraction of the threshold itself: o<0.1 Low, [0.1,0.5) Medium,
// [0.5,1.0) High, >=1.0 Critical.
func SeverityFromOvershoot(o float64) Severity {
	switch {
	case o >= 1.0:
		return SeverityCritical
	case o >= 0.5:
		return SeverityHigh
	case o >= 0.1:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityFromScore bands a position's own [0,1] risk score, independent
// of any user threshold: score<0.25 Low, [0.25,0.5) Medium, [0.5,0.75)
// High, >=0.75 Critical. Used for the assessment-level severity recorded
// alongside a RiskAssessment, before any threshold overshoot is known;
// alert severity is banded separately by SeverityFromOvershoot once a
// threshold is in play.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 0.75:
		return SeverityCritical
	case score >= 0.5:
		return SeverityHigh
	case score >= 0.25:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RiskEntityType names what a RiskAssessment is about.
type RiskEntityType string

const (
	EntityPosition  RiskEntityType = "position"
	EntityProtocol  RiskEntityType = "protocol"
	EntityUser      RiskEntityType = "user"
	EntityPortfolio RiskEntityType = "portfolio"
	EntityPool      RiskEntityType = "pool"
	EntityToken     RiskEntityType = "token"
)

// RiskType names which risk dimension a RiskAssessment scores.
type RiskType string

const (
	RiskImpermanentLoss RiskType = "impermanent_loss"
	RiskLiquidity       RiskType = "liquidity"
	RiskProtocol        RiskType = "protocol"
	RiskMev             RiskType = "mev"
	RiskCrossChain      RiskType = "cross_chain"
	RiskMarket          RiskType = "market"
	RiskSlippage        RiskType = "slippage"
	RiskCorrelation     RiskType = "correlation"
	RiskVolatility      RiskType = "volatility"
	RiskOverall         RiskType = "overall"
)

// RiskAssessment is the current (or historical) score for one entity/risk
// type pair. At most one row with IsActive=true may exist per
// (EntityID, RiskType); superseded rows move to RiskAssessmentHistory.
type RiskAssessment struct {
	ID          uuid.UUID
	EntityType  RiskEntityType
	EntityID    string
	UserID      *uuid.UUID
	RiskType    RiskType
	Score       float64 // 0..1
	Severity    Severity
	Confidence  float64 // 0..1
	Description string
	Metadata    map[string]interface{}
	ExpiresAt   *time.Time
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RiskAssessmentHistory records a superseded RiskAssessment for audit trail.
type RiskAssessmentHistory struct {
	ID               uuid.UUID
	RiskAssessmentID uuid.UUID
	PreviousScore    float64
	NewScore         float64
	PreviousSeverity Severity
	NewSeverity      Severity
	ChangeReason     string
	CreatedAt        time.Time
}

// Operator is a threshold comparison operator.
type Operator string

const (
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
)

// Threshold is a user-configured trigger on a named metric.
type Threshold struct {
	ID       uuid.UUID
	User     string
	Metric   string
	Operator Operator
	Value    decimal.Decimal
	Cooldown time.Duration
	Enabled  bool
}

// Alert is a single fired (or resolved) threshold breach.
type Alert struct {
	ID             uuid.UUID
	ThresholdID    uuid.UUID
	User           string
	PositionRef    string
	Metric         string
	Type           string
	Severity       Severity
	RiskScore      float64
	CurrentValue   decimal.Decimal
	ThresholdValue decimal.Decimal
	Resolved       bool
	CreatedAt      time.Time
	ResolvedAt     *time.Time
}

// Webhook is a user-registered HTTP delivery target for fired alerts.
type Webhook struct {
	ID        uuid.UUID
	User      string
	URL       string
	Secret    string
	Enabled   bool
	CreatedAt time.Time
}

// WebhookDelivery records one attempted delivery of an alert to a webhook.
type WebhookDelivery struct {
	ID          uuid.UUID
	WebhookID   uuid.UUID
	AlertID     uuid.UUID
	StatusCode  int
	Error       string
	AttemptedAt time.Time
	DeliveredOK bool
}

// Capability is consumed by the engine to authorize actions; it is never
// constructed here (JWT-claims issuance and verification live outside the
// engine's scope).
type Capability interface {
	May(permission string) bool
}

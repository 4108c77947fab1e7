package domain

import "time"

// BridgeType classifies how a cross-chain bridge moves value, grounded on
// original_source's CrossChainRisk model.
type BridgeType string

const (
	BridgeLockAndMint BridgeType = "lock_and_mint"
	BridgeAtomic      BridgeType = "atomic"
	BridgeLiquidity   BridgeType = "liquidity"
	BridgeOptimistic  BridgeType = "optimistic"
	BridgeZkProof     BridgeType = "zk_proof"
	BridgeFederated   BridgeType = "federated"
)

// BridgeRisk scores a single bridge's exposure.
type BridgeRisk struct {
	BridgeAddress  string
	BridgeType     BridgeType
	TVLUSD         float64
	ExploitCount   int
	AuditScorePct  float64 // 0..100
	RiskScore      float64 // 0..1
}

// ChainRisk scores a single chain's ecosystem health.
type ChainRisk struct {
	ChainID                  uint64
	SecurityScorePct         float64 // 0..100
	ValidatorDecentralization float64 // 0..100
	EcosystemMaturityPct     float64 // 0..100
	RiskScore                float64 // 0..1
}

// ChainCorrelation captures how correlated two chains' asset prices are.
type ChainCorrelation struct {
	ChainA      uint64
	ChainB      uint64
	Correlation float64 // -1..1
}

// CrossChainRisk is the composed risk for a position spanning bridges/chains.
type CrossChainRisk struct {
	PositionID          string
	BridgeRiskScore     float64
	FragmentationScore  float64
	GovernanceScore     float64
	TechnicalScore      float64
	CorrelationScore    float64
	OverallScore        float64
	ComputedAt          time.Time
}

// CrossChainRiskConfig carries the pinned defaults from
// original_source/backend/src/models/cross_chain_risk.rs, confirmed to
// match spec.md §9: bridge 30%, fragmentation 25%, governance 20%,
// technical 15%, correlation 10%.
type CrossChainRiskConfig struct {
	BridgeRiskWeight               float64
	LiquidityFragmentationWeight   float64
	GovernanceDivergenceWeight     float64
	TechnicalRiskWeight            float64
	CorrelationRiskWeight          float64

	BridgeTVLCriticalUSD            float64
	BridgeExploitCriticalCount      int
	BridgeAuditMinimumPct           float64
	ChainSecurityMinimumPct         float64
	ValidatorDecentralizationMinPct float64
	EcosystemMaturityMinimumPct     float64
	HighCorrelationThreshold        float64
	CriticalCorrelationThreshold    float64
	FragmentationWarningPct         float64
	FragmentationCriticalPct        float64
}

// DefaultCrossChainRiskConfig returns the pinned weights and thresholds.
func DefaultCrossChainRiskConfig() CrossChainRiskConfig {
	return CrossChainRiskConfig{
		BridgeRiskWeight:             0.30,
		LiquidityFragmentationWeight: 0.25,
		GovernanceDivergenceWeight:   0.20,
		TechnicalRiskWeight:          0.15,
		CorrelationRiskWeight:        0.10,

		BridgeTVLCriticalUSD:            10_000_000,
		BridgeExploitCriticalCount:      2,
		BridgeAuditMinimumPct:           80,
		ChainSecurityMinimumPct:         70,
		ValidatorDecentralizationMinPct: 60,
		EcosystemMaturityMinimumPct:     50,
		HighCorrelationThreshold:        0.70,
		CriticalCorrelationThreshold:    0.85,
		FragmentationWarningPct:         0.30,
		FragmentationCriticalPct:        0.60,
	}
}

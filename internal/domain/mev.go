package domain

import "time"

// MevType classifies a detected MEV pattern, grounded on
// original_source/src/models/mev_risk.rs.
type MevType string

const (
	MevSandwichAttack MevType = "sandwich_attack"
	MevFrontrunning   MevType = "frontrunning"
	MevBackrunning    MevType = "backrunning"
	MevArbitrage      MevType = "arbitrage"
	MevLiquidation    MevType = "liquidation"
	MevUnknown        MevType = "unknown"
)

// OracleDeviationSeverity classifies how far an oracle price has drifted
// from the observed market price.
type OracleDeviationSeverity string

const (
	OracleDeviationMinor       OracleDeviationSeverity = "minor"
	OracleDeviationModerate    OracleDeviationSeverity = "moderate"
	OracleDeviationSignificant OracleDeviationSeverity = "significant"
	OracleDeviationCritical    OracleDeviationSeverity = "critical"
)

// MevOracleRisk is the composed MEV/oracle risk for a pool.
type MevOracleRisk struct {
	PoolAddress            string
	ChainID                uint64
	SandwichRiskScore      float64
	FrontrunRiskScore      float64
	OracleManipulationRisk float64
	OracleDeviationRisk    float64
	OverallScore           float64
	Confidence             float64
	ComputedAt             time.Time
}

// MevRiskConfig carries the pinned defaults from
// original_source/src/models/mev_risk.rs, confirmed: sandwich 30%,
// frontrun 25%, oracle-manipulation 25%, oracle-deviation 20%.
type MevRiskConfig struct {
	SandwichPriceImpactThreshold float64
	SandwichTimeWindow           time.Duration

	OracleDeviationWarningPct  float64
	OracleDeviationCriticalPct float64
	OracleStalenessThreshold   time.Duration

	SandwichWeight        float64
	FrontrunWeight        float64
	OracleManipulationWeight float64
	OracleDeviationWeight    float64

	MinTransactionValueUSD float64
	LookbackBlocks         int64
}

// DefaultMevRiskConfig returns the pinned weights and thresholds.
func DefaultMevRiskConfig() MevRiskConfig {
	return MevRiskConfig{
		SandwichPriceImpactThreshold: 0.05,
		SandwichTimeWindow:           60 * time.Second,

		OracleDeviationWarningPct:  0.02,
		OracleDeviationCriticalPct: 0.10,
		OracleStalenessThreshold:   time.Hour,

		SandwichWeight:           0.30,
		FrontrunWeight:           0.25,
		OracleManipulationWeight: 0.25,
		OracleDeviationWeight:    0.20,

		MinTransactionValueUSD: 1000,
		LookbackBlocks:         100,
	}
}

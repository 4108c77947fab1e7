package riskengine

import (
	"time"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/oracle"
)

// ComputeMevOracleRisk composes sandwich, frontrun, oracle-manipulation,
// and oracle-deviation risk into the fixed-weight score from
// domain.DefaultMevRiskConfig (confirmed pinned against
// original_source/src/models/mev_risk.rs).
//
// sandwichRisk and frontrunRisk are placeholders until a transaction
// sequencing analyzer is available (spec.md §4.5); both default to 0 when
// the caller has no signal.
func ComputeMevOracleRisk(poolAddr string, chainID uint64, sandwichRisk, frontrunRisk float64, price oracle.ValidatedPrice, tvlUSD float64, updatesPerHour float64, cfg domain.MevRiskConfig) domain.MevOracleRisk {
	oracleDeviationRisk := 1 - price.Confidence

	oracleManipulationRisk := oracleManipulationScore(tvlUSD, updatesPerHour)

	overall := cfg.SandwichWeight*clamp01(sandwichRisk) +
		cfg.FrontrunWeight*clamp01(frontrunRisk) +
		cfg.OracleManipulationWeight*oracleManipulationRisk +
		cfg.OracleDeviationWeight*clamp01(oracleDeviationRisk)

	return domain.MevOracleRisk{
		PoolAddress:            poolAddr,
		ChainID:                chainID,
		SandwichRiskScore:      clamp01(sandwichRisk),
		FrontrunRiskScore:      clamp01(frontrunRisk),
		OracleManipulationRisk: oracleManipulationRisk,
		OracleDeviationRisk:    clamp01(oracleDeviationRisk),
		OverallScore:           clamp01(overall),
		Confidence:             price.Confidence,
		ComputedAt:             time.Now(),
	}
}

// oracleManipulationScore treats a high TVL-to-update-frequency ratio as
// risky: a large pool whose price rarely updates is easier to manipulate
// within a single block.
func oracleManipulationScore(tvlUSD, updatesPerHour float64) float64 {
	if updatesPerHour <= 0 {
		return 1.0
	}
	const referenceRatio = 1_000_000.0 // $1M TVL per hourly update treated as the neutral baseline
	ratio := (tvlUSD / updatesPerHour) / referenceRatio
	return clamp01(ratio)
}

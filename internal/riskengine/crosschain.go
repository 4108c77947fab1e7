package riskengine

import (
	"time"

	"github.com/riskmonitor/engine/internal/domain"
)

// ComputeCrossChainRisk composes bridge, fragmentation, governance,
// correlation, and technical risk into the fixed-weight score from
// domain.DefaultCrossChainRiskConfig (confirmed pinned against
// original_source/backend/src/models/cross_chain_risk.rs).
func ComputeCrossChainRisk(positionID string, bridges []domain.BridgeRisk, chains []domain.ChainRisk, correlations []domain.ChainCorrelation, fragmentationShare float64, governanceDivergent bool, cfg domain.CrossChainRiskConfig) domain.CrossChainRisk {
	bridgeScore := maxBridgeRisk(bridges)
	technicalScore := averageChainRisk(chains)
	correlationScore := maxCorrelation(correlations)
	governanceScore := 0.0
	if governanceDivergent {
		governanceScore = 1.0
	}

	overall := cfg.BridgeRiskWeight*bridgeScore +
		cfg.LiquidityFragmentationWeight*clamp01(fragmentationShare) +
		cfg.GovernanceDivergenceWeight*governanceScore +
		cfg.TechnicalRiskWeight*technicalScore +
		cfg.CorrelationRiskWeight*correlationScore

	return domain.CrossChainRisk{
		PositionID:         positionID,
		BridgeRiskScore:    bridgeScore,
		FragmentationScore: clamp01(fragmentationShare),
		GovernanceScore:    governanceScore,
		TechnicalScore:     technicalScore,
		CorrelationScore:   correlationScore,
		OverallScore:       clamp01(overall),
		ComputedAt:         time.Now(),
	}
}

func maxBridgeRisk(bridges []domain.BridgeRisk) float64 {
	max := 0.0
	for _, b := range bridges {
		if b.RiskScore > max {
			max = b.RiskScore
		}
	}
	return max
}

func averageChainRisk(chains []domain.ChainRisk) float64 {
	if len(chains) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range chains {
		sum += c.RiskScore
	}
	return sum / float64(len(chains))
}

func maxCorrelation(correlations []domain.ChainCorrelation) float64 {
	max := 0.0
	for _, c := range correlations {
		v := c.Correlation
		if v < 0 {
			v = -v
		}
		if v > max {
			max = v
		}
	}
	return max
}

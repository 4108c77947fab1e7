// Package query wraps the position and alert repositories with the
// degraded-response envelope: per-chain outages must never fail a user's
// query globally, only flag which chains its data cannot speak for.
package query

import (
	"context"
	"sort"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/store"
)

// ChainHealth reports which chains are currently unreachable. Satisfied by
// *chainclient.HealthTracker; kept as an interface so this package doesn't
// need to import chainclient just to read a slice of IDs.
type ChainHealth interface {
	OpenChainIDs() []uint64
}

// PositionResult wraps a position listing with its degraded status.
type PositionResult struct {
	Positions     []domain.Position
	Degraded      bool
	MissingChains []uint64
}

// AlertResult wraps an alert listing with its degraded status.
type AlertResult struct {
	Alerts        []domain.Alert
	Degraded      bool
	MissingChains []uint64
}

// Service answers position/alert queries, annotating results with
// degraded/missing_chains whenever the underlying data spans a chain whose
// circuit is currently open.
type Service struct {
	positions store.PositionRepository
	alerts    store.AlertRepository
	health    ChainHealth
}

func NewService(positions store.PositionRepository, alerts store.AlertRepository, health ChainHealth) *Service {
	return &Service{positions: positions, alerts: alerts, health: health}
}

// ListPositions returns every position for user. It never fails because a
// chain is down; instead, Degraded reports whether any of the returned
// positions belong to a chain whose circuit breaker is currently open, and
// MissingChains names those chains so callers know which rows may be stale.
func (s *Service) ListPositions(ctx context.Context, user string) (PositionResult, error) {
	positions, err := s.positions.ListByUser(ctx, user)
	if err != nil {
		return PositionResult{}, err
	}
	missing := s.missingChains(chainIDsOf(positions))
	return PositionResult{Positions: positions, Degraded: len(missing) > 0, MissingChains: missing}, nil
}

// ListAlerts returns a user's alerts with the same degraded envelope,
// keyed off the positions a chain outage would have left stale.
func (s *Service) ListAlerts(ctx context.Context, user string, includeResolved bool) (AlertResult, error) {
	alerts, err := s.alerts.ListByUser(ctx, user, includeResolved)
	if err != nil {
		return AlertResult{}, err
	}
	positions, err := s.positions.ListByUser(ctx, user)
	if err != nil {
		// Alerts themselves were readable; degrade the chain-health
		// annotation rather than failing the whole query over it.
		return AlertResult{Alerts: alerts}, nil
	}
	missing := s.missingChains(chainIDsOf(positions))
	return AlertResult{Alerts: alerts, Degraded: len(missing) > 0, MissingChains: missing}, nil
}

func chainIDsOf(positions []domain.Position) []uint64 {
	seen := make(map[uint64]bool, len(positions))
	var ids []uint64
	for _, p := range positions {
		if !seen[p.ChainID] {
			seen[p.ChainID] = true
			ids = append(ids, p.ChainID)
		}
	}
	return ids
}

// missingChains intersects a user's chains with the chains currently
// reporting an open (or still half-open) circuit breaker.
func (s *Service) missingChains(userChains []uint64) []uint64 {
	if s.health == nil {
		return nil
	}
	open := s.health.OpenChainIDs()
	if len(open) == 0 {
		return nil
	}
	openSet := make(map[uint64]bool, len(open))
	for _, id := range open {
		openSet[id] = true
	}
	var missing []uint64
	for _, id := range userChains {
		if openSet[id] {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

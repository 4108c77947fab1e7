package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/internal/streambus"
	"github.com/riskmonitor/engine/pkg/observability"
)

// PushStreamConfig names the subscriber endpoint for one chain's pool
// event stream, for protocols that support a push-stream in addition to
// polling (spec.md §4.6).
type PushStreamConfig struct {
	ChainID       uint64
	URL           string
	ReconnectWait time.Duration
	MaxReconnects int
}

// poolEventMessage is the wire shape of a single pool update pushed by the
// upstream stream, deliberately permissive since the upstream format is
// protocol-specific.
type poolEventMessage struct {
	PoolAddress string `json:"pool_address"`
	Tick        int32  `json:"tick"`
	Liquidity   string `json:"liquidity"`
	TVLUSD      string `json:"tvl_usd"`
}

// PushStreamSubscriber maintains one websocket connection per chain,
// reconnecting with a fixed delay on drop, modeled on
// internal/realtime/market_data_service.go's ExchangeConnection/
// handleMessages/reconnectExchange loop.
type PushStreamSubscriber struct {
	cfg    PushStreamConfig
	bus    *streambus.Bus
	logger *observability.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	reconnects  int
	isConnected bool
}

func NewPushStreamSubscriber(cfg PushStreamConfig, bus *streambus.Bus, logger *observability.Logger) *PushStreamSubscriber {
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 5 * time.Second
	}
	if cfg.MaxReconnects <= 0 {
		cfg.MaxReconnects = 10
	}
	return &PushStreamSubscriber{cfg: cfg, bus: bus, logger: logger}
}

// Run connects and processes messages until ctx is canceled or the
// reconnect budget is exhausted.
func (s *PushStreamSubscriber) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.connect(ctx); err != nil {
			if s.logger != nil {
				s.logger.Error(ctx, "pushstream: connect failed", err, map[string]interface{}{"chain_id": s.cfg.ChainID})
			}
			if !s.waitForReconnect(ctx) {
				return fmt.Errorf("pushstream: chain %d exhausted reconnect budget", s.cfg.ChainID)
			}
			continue
		}

		s.handleMessages(ctx)

		if !s.waitForReconnect(ctx) {
			return fmt.Errorf("pushstream: chain %d exhausted reconnect budget", s.cfg.ChainID)
		}
	}
}

func (s *PushStreamSubscriber) connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.isConnected = true
	s.mu.Unlock()
	return nil
}

func (s *PushStreamSubscriber) waitForReconnect(ctx context.Context) bool {
	s.mu.Lock()
	s.reconnects++
	exhausted := s.reconnects > s.cfg.MaxReconnects
	s.isConnected = false
	s.mu.Unlock()

	if exhausted {
		return false
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.cfg.ReconnectWait):
		return true
	}
}

func (s *PushStreamSubscriber) handleMessages(ctx context.Context) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}
		var raw json.RawMessage
		if err := conn.ReadJSON(&raw); err != nil {
			if s.logger != nil {
				s.logger.Error(ctx, "pushstream: read failed", err, map[string]interface{}{"chain_id": s.cfg.ChainID})
			}
			return
		}

		var msg poolEventMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		s.publish(msg)
	}
}

func (s *PushStreamSubscriber) publish(msg poolEventMessage) {
	if s.bus == nil {
		return
	}
	liquidity, _ := decimal.NewFromString(msg.Liquidity)
	tvl, _ := decimal.NewFromString(msg.TVLUSD)
	pool := &domain.Pool{
		ChainID:     s.cfg.ChainID,
		Address:     msg.PoolAddress,
		Tick:        msg.Tick,
		Liquidity:   liquidity,
		TVLUSD:      tvl,
		LastUpdated: time.Now(),
	}
	s.bus.Publish(streambus.Event{Type: streambus.EventPoolUpdated, Pool: pool})
}

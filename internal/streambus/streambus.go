// Package streambus fans out position, pool, risk, and alert events to
// in-process subscribers, generalized from the alert-topic subscriber map
// in internal/alerts/alert_service.go and the market-data subscriber map in
// internal/realtime/market_data_service.go into a single typed bus.
package streambus

import (
	"context"
	"sync"
	"time"

	"github.com/riskmonitor/engine/internal/domain"
	"github.com/riskmonitor/engine/pkg/observability"
)

// EventType distinguishes the message shapes carried on the bus.
type EventType string

const (
	EventPositionChanged EventType = "position_changed"
	EventPoolUpdated     EventType = "pool_updated"
	EventRiskComputed    EventType = "risk_computed"
	EventAlertFired      EventType = "alert_fired"
	EventAlertResolved   EventType = "alert_resolved"
	EventHeartbeat       EventType = "heartbeat"
)

// Event is the envelope carried to every matching subscriber.
type Event struct {
	Type      EventType
	User      string
	Position  *domain.Position
	Pool      *domain.Pool
	Risk      *domain.RiskAssessment
	Alert     *domain.Alert
	Token     domain.Token
	Timestamp time.Time
}

// Filter decides whether a subscriber wants a given event. A nil Filter
// matches everything.
type Filter func(Event) bool

// ByUser matches events addressed to the given user, plus events with no
// user scope (pool/token-level updates).
func ByUser(user string) Filter {
	return func(e Event) bool { return e.User == "" || e.User == user }
}

// ByPool matches events about a specific (chainID, poolAddress) pair.
func ByPool(chainID uint64, poolAddress string) Filter {
	return func(e Event) bool {
		return e.Pool != nil && e.Pool.ChainID == chainID && e.Pool.Address == poolAddress
	}
}

// ByToken matches events about a specific token.
func ByToken(token domain.Token) Filter {
	return func(e Event) bool { return e.Token.Key() == token.Key() }
}

// Union matches an event accepted by any of the given filters.
func Union(filters ...Filter) Filter {
	return func(e Event) bool {
		for _, f := range filters {
			if f(e) {
				return true
			}
		}
		return false
	}
}

const subscriberBuffer = 128

type subscriber struct {
	id     uint64
	ch     chan Event
	filter Filter
}

// Bus is a single in-process fan-out point. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	logger      *observability.Logger

	heartbeatStop chan struct{}
	heartbeatDone chan struct{}
}

// New builds a Bus and starts its heartbeat goroutine, emitting
// EventHeartbeat every interval (spec.md §4.8 default 30s).
func New(interval time.Duration, logger *observability.Logger) *Bus {
	b := &Bus{
		subscribers:   make(map[uint64]*subscriber),
		logger:        logger,
		heartbeatStop: make(chan struct{}),
		heartbeatDone: make(chan struct{}),
	}
	go b.heartbeatLoop(interval)
	return b
}

func (b *Bus) heartbeatLoop(interval time.Duration) {
	defer close(b.heartbeatDone)
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.heartbeatStop:
			return
		case <-ticker.C:
			b.Publish(Event{Type: EventHeartbeat, Timestamp: time.Now()})
		}
	}
}

// Stop halts the heartbeat goroutine and closes every subscriber channel.
func (b *Bus) Stop() {
	close(b.heartbeatStop)
	<-b.heartbeatDone

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		close(sub.ch)
	}
	b.subscribers = make(map[uint64]*subscriber)
}

// Subscription is a handle returned by Subscribe; call Close to unsubscribe.
type Subscription struct {
	bus *Bus
	id  uint64
	ch  chan Event
}

// Events returns the channel this subscription receives matching events on.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close unsubscribes and closes the underlying channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if _, ok := s.bus.subscribers[s.id]; ok {
		delete(s.bus.subscribers, s.id)
		close(s.ch)
	}
}

// Subscribe registers a new subscriber matching filter (nil matches all
// events) and returns a handle to its channel.
func (b *Bus) Subscribe(filter Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscriber{id: b.nextID, ch: make(chan Event, subscriberBuffer), filter: filter}
	b.subscribers[sub.id] = sub
	return &Subscription{bus: b, id: sub.id, ch: sub.ch}
}

// Publish delivers event to every matching subscriber. A subscriber whose
// channel is full has its oldest buffered event dropped to make room,
// rather than blocking the publisher or dropping the new event.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		if sub.filter != nil && !sub.filter(event) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
				if b.logger != nil {
					b.logger.Warn(context.Background(), "streambus: dropping event for slow subscriber", map[string]interface{}{
						"subscriber_id": sub.id,
						"event_type":    string(event.Type),
					})
				}
			}
		}
	}
}

package streambus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskmonitor/engine/internal/domain"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(0, nil)
	defer bus.Stop()

	sub := bus.Subscribe(nil)
	defer sub.Close()

	bus.Publish(Event{Type: EventPositionChanged, User: "alice"})

	select {
	case e := <-sub.Events():
		assert.Equal(t, EventPositionChanged, e.Type)
		assert.Equal(t, "alice", e.User)
	case <-time.After(time.Second):
		t.Fatal("expected event, got none")
	}
}

func TestByUserFilter(t *testing.T) {
	bus := New(0, nil)
	defer bus.Stop()

	sub := bus.Subscribe(ByUser("alice"))
	defer sub.Close()

	bus.Publish(Event{Type: EventAlertFired, User: "bob"})
	bus.Publish(Event{Type: EventAlertFired, User: "alice"})

	select {
	case e := <-sub.Events():
		assert.Equal(t, "alice", e.User)
	case <-time.After(time.Second):
		t.Fatal("expected one matching event")
	}

	select {
	case e := <-sub.Events():
		t.Fatalf("unexpected second event: %+v", e)
	default:
	}
}

func TestByPoolFilter(t *testing.T) {
	bus := New(0, nil)
	defer bus.Stop()

	pool := domain.Pool{ChainID: 1, Address: "0xabc"}
	sub := bus.Subscribe(ByPool(1, "0xabc"))
	defer sub.Close()

	bus.Publish(Event{Type: EventPoolUpdated, Pool: &domain.Pool{ChainID: 1, Address: "0xdef"}})
	bus.Publish(Event{Type: EventPoolUpdated, Pool: &pool})

	select {
	case e := <-sub.Events():
		require.NotNil(t, e.Pool)
		assert.Equal(t, "0xabc", e.Pool.Address)
	case <-time.After(time.Second):
		t.Fatal("expected matching pool event")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus := New(0, nil)
	defer bus.Stop()

	sub := bus.Subscribe(nil)
	sub.Close()

	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: EventHeartbeat})
	})
}

func TestOverflowDropsOldestNotNewest(t *testing.T) {
	bus := New(0, nil)
	defer bus.Stop()

	sub := bus.Subscribe(nil)
	defer sub.Close()

	for i := 0; i < subscriberBuffer+10; i++ {
		bus.Publish(Event{Type: EventPoolUpdated, User: "filler"})
	}
	bus.Publish(Event{Type: EventAlertFired, User: "last"})

	var last Event
	for {
		select {
		case e := <-sub.Events():
			last = e
			continue
		default:
		}
		break
	}
	assert.Equal(t, "last", last.User, "the newest event should survive overflow eviction")
}

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversInOrder(t *testing.T) {
	var got []string
	record := func(tag string) Observer {
		return ObserverFunc(func(_ context.Context, n Notification) error {
			got = append(got, tag+":"+string(n.Type))
			return nil
		})
	}

	bus := NewBus("run-1", nil, record("a"))
	bus.Register(record("b"))

	bus.PublishState(context.Background(), "kusama", state.ProcessorState{LastScannedBlock: 1})
	bus.PublishEvent(context.Background(), "kusama", source.EventContext{Event: source.Event{ID: "1-0"}})

	require.Equal(t, []string{
		"a:STATE_CHANGE", "b:STATE_CHANGE",
		"a:PROCESSED_EVENT", "b:PROCESSED_EVENT",
	}, got)
}

func TestBusStampsNotification(t *testing.T) {
	var received Notification
	bus := NewBus("run-42", nil, ObserverFunc(func(_ context.Context, n Notification) error {
		received = n
		return nil
	}))

	bus.PublishQueueSize(context.Background(), "polkadot", 7)

	require.Equal(t, "run-42", received.RunID)
	require.Equal(t, "polkadot", received.Chain)
	require.Equal(t, QueueSizeChange, received.Type)
	require.NotNil(t, received.QueueSize)
	require.Equal(t, 7, *received.QueueSize)
	require.False(t, received.Time.IsZero())
}

func TestBusIsolatesFailingObservers(t *testing.T) {
	delivered := 0
	bus := NewBus("run", nil,
		ObserverFunc(func(context.Context, Notification) error { panic("boom") }),
		ObserverFunc(func(context.Context, Notification) error { return errors.New("fail") }),
		ObserverFunc(func(context.Context, Notification) error {
			delivered++
			return nil
		}),
	)

	require.NotPanics(t, func() {
		bus.PublishStatus(context.Background(), "kusama", source.IndexerStatus{Head: 10})
	})
	require.Equal(t, 1, delivered)
}

func TestNilBus(t *testing.T) {
	var bus *Bus
	require.NotPanics(t, func() {
		bus.Publish(context.Background(), Notification{Type: StateChange})
	})
}

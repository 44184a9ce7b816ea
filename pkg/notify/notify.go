// Package notify carries processor notifications to registered observers.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
)

// EventType identifies a notification.
type EventType string

const (
	StateChange         EventType = "STATE_CHANGE"
	ProcessedEvent      EventType = "PROCESSED_EVENT"
	IndexerStatusChange EventType = "INDEXER_STATUS_CHANGE"
	QueueSizeChange     EventType = "QUEUE_SIZE_CHANGE"
)

// AllEventTypes lists every notification type.
var AllEventTypes = []EventType{StateChange, ProcessedEvent, IndexerStatusChange, QueueSizeChange}

// Notification is a single message. Only the payload matching Type is set.
type Notification struct {
	Type  EventType `json:"type"`
	Chain string    `json:"chain"`
	RunID string    `json:"runId"`
	Time  time.Time `json:"time"`

	State     *state.ProcessorState `json:"state,omitempty"`
	Event     *source.EventContext  `json:"event,omitempty"`
	Status    *source.IndexerStatus `json:"status,omitempty"`
	QueueSize *int                  `json:"queueSize,omitempty"`
}

// Observer receives notifications. Notify runs on the publisher's goroutine and should return quickly.
type Observer interface {
	Notify(ctx context.Context, n Notification) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, n Notification) error

func (f ObserverFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Bus fans notifications out to observers in registration order.
// A failing or panicking observer is logged and never reaches the publisher.
type Bus struct {
	runID string
	log   *logger.Logger

	mu        sync.RWMutex
	observers []Observer
}

// NewBus creates a bus stamping every notification with runID.
func NewBus(runID string, log *logger.Logger, observers ...Observer) *Bus {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Bus{
		runID:     runID,
		log:       log.WithComponent(common.ComponentNotifier),
		observers: observers,
	}
}

// RunID returns the id stamped on notifications.
func (b *Bus) RunID() string {
	return b.runID
}

// Register adds an observer.
func (b *Bus) Register(o Observer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observers = append(b.observers, o)
}

// Publish delivers n to every observer. A nil bus drops the notification.
func (b *Bus) Publish(ctx context.Context, n Notification) {
	if b == nil {
		return
	}

	n.RunID = b.runID
	if n.Time.IsZero() {
		n.Time = time.Now().UTC()
	}

	b.mu.RLock()
	observers := b.observers
	b.mu.RUnlock()

	for _, o := range observers {
		if err := deliver(ctx, o, n); err != nil {
			b.log.Warnw("observer failed", "type", n.Type, "chain", n.Chain, "error", err)
		}
	}
}

// PublishState is a shorthand for a STATE_CHANGE notification.
func (b *Bus) PublishState(ctx context.Context, chain string, s state.ProcessorState) {
	b.Publish(ctx, Notification{Type: StateChange, Chain: chain, State: &s})
}

// PublishEvent is a shorthand for a PROCESSED_EVENT notification.
func (b *Bus) PublishEvent(ctx context.Context, chain string, ev source.EventContext) {
	b.Publish(ctx, Notification{Type: ProcessedEvent, Chain: chain, Event: &ev})
}

// PublishStatus is a shorthand for an INDEXER_STATUS_CHANGE notification.
func (b *Bus) PublishStatus(ctx context.Context, chain string, s source.IndexerStatus) {
	b.Publish(ctx, Notification{Type: IndexerStatusChange, Chain: chain, Status: &s})
}

// PublishQueueSize is a shorthand for a QUEUE_SIZE_CHANGE notification.
func (b *Bus) PublishQueueSize(ctx context.Context, chain string, size int) {
	b.Publish(ctx, Notification{Type: QueueSizeChange, Chain: chain, QueueSize: &size})
}

func deliver(ctx context.Context, o Observer, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("observer panicked: %v", r)
		}
	}()
	return o.Notify(ctx, n)
}

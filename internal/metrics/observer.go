package metrics

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/alitto/pond/v2"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
)

// allEvents is the name label of the per chain total.
const allEvents = ""

var _ notify.Observer = (*Observer)(nil)

// EventCounter reports how many events a chain has processed so far.
type EventCounter interface {
	ProcessedEvents(ctx context.Context) (int64, error)
}

// Chain is what Seed needs to know about a chain.
type Chain struct {
	Name    string
	Range   state.Range
	Counter EventCounter
}

// Observer mirrors processor notifications into Prometheus gauges.
type Observer struct{}

// NewObserver creates an observer.
func NewObserver() *Observer {
	return &Observer{}
}

// Notify updates the gauge matching the notification.
func (o *Observer) Notify(_ context.Context, n notify.Notification) error {
	switch n.Type {
	case notify.StateChange:
		if n.State != nil {
			LastScannedBlock.WithLabelValues(n.Chain).Set(float64(n.State.LastScannedBlock))
		}
	case notify.ProcessedEvent:
		if n.Event != nil {
			ProcessedEvents.WithLabelValues(n.Chain, allEvents).Inc()
			ProcessedEvents.WithLabelValues(n.Chain, n.Event.Event.Name).Inc()
		}
	case notify.IndexerStatusChange:
		if n.Status != nil {
			ChainHeight.WithLabelValues(n.Chain).Set(float64(n.Status.ChainHeight))
			IndexerHead.WithLabelValues(n.Chain).Set(float64(n.Status.Head))
		}
	case notify.QueueSizeChange:
		if n.QueueSize != nil {
			EventQueueSize.WithLabelValues(n.Chain).Set(float64(*n.QueueSize))
		}
	}
	return nil
}

// Seed sets the range gauges and the processed event totals persisted by earlier runs.
// Chains are counted concurrently.
func (o *Observer) Seed(ctx context.Context, chains []Chain) error {
	if len(chains) == 0 {
		return nil
	}

	pool := pond.NewPool(len(chains))
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for _, c := range chains {
		RangeFrom.WithLabelValues(c.Name).Set(float64(c.Range.From))
		if c.Range.To == state.Unbounded {
			RangeTo.WithLabelValues(c.Name).Set(math.Inf(1))
		} else {
			RangeTo.WithLabelValues(c.Name).Set(float64(c.Range.To))
		}

		if c.Counter == nil {
			continue
		}
		group.SubmitErr(func() error {
			total, err := c.Counter.ProcessedEvents(groupCtx)
			if err != nil {
				return fmt.Errorf("failed to count processed events of %s: %w", c.Name, err)
			}
			ProcessedEvents.WithLabelValues(c.Name, allEvents).Set(float64(total))
			return nil
		})
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, pond.ErrGroupStopped) {
		return err
	}
	return nil
}

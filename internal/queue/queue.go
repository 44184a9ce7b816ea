// Package queue prefetches blocks with relevant events from the indexer and buffers them for the processor.
package queue

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	isource "github.com/goran-ethernal/ChainProcessor/internal/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
)

var (
	// ErrNotStarted is returned when blocks are requested before Start.
	ErrNotStarted = errors.New("block queue not started")

	// ErrStopped is returned when blocks are requested after Stop.
	ErrStopped = errors.New("block queue stopped")
)

// Options configure a BlockQueue.
type Options struct {
	Chain string
	Range state.Range
	// Filter selects the events to fetch.
	Filter source.Filter
	// HasHooks tells whether every block of a range is needed or only its last one.
	HasHooks bool
	Queue    config.QueueConfig
}

// BlockQueue pages blocks with relevant events from the source into a bounded buffer
// and serves the blocks between them on demand.
type BlockQueue struct {
	opts Options
	src  source.Source
	bus  *notify.Bus
	log  *logger.Logger

	events   chan source.BlockData
	done     chan struct{}
	stopped  chan struct{}
	headMove chan struct{}

	// exhaustedAt is the last height covered once done is closed.
	exhaustedAt atomic.Int64
	head        atomic.Int64
	pageSize    atomic.Int64

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once
	fetchErrs atomic.Int64
}

// New creates a block queue. Start must be called before reading blocks.
func New(opts Options, src source.Source, bus *notify.Bus, log *logger.Logger) *BlockQueue {
	if log == nil {
		log = logger.NewNopLogger()
	}
	opts.Queue.ApplyDefaults()

	q := &BlockQueue{
		opts:     opts,
		src:      src,
		bus:      bus,
		log:      log.WithComponent(common.ComponentBlockQueue),
		events:   make(chan source.BlockData, opts.Queue.Capacity),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		headMove: make(chan struct{}, 1),
	}
	q.head.Store(-1)
	q.pageSize.Store(int64(opts.Queue.PageSize))

	return q
}

// Start begins fetching blocks after lastScannedBlock.
func (q *BlockQueue) Start(ctx context.Context, lastScannedBlock int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return errors.New("block queue already started")
	}

	status, err := q.src.GetIndexerStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get indexer status: %w", err)
	}
	q.onStatus(ctx, status)

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true

	q.wg.Add(2)
	go func() {
		defer q.wg.Done()
		isource.WatchStatus(ctx, q.src, q.opts.Queue.PollInterval.Duration, q.log,
			func(st source.IndexerStatus) { q.onStatus(ctx, st) })
	}()
	go func() {
		defer q.wg.Done()
		q.fetchLoop(ctx, lastScannedBlock+1)
	}()

	q.log.Infow("block queue started", "from_block", lastScannedBlock+1, "range", q.opts.Range.String(),
		"page_size", q.opts.Queue.PageSize, "capacity", q.opts.Queue.Capacity)

	return nil
}

// Stop halts fetching. Blocks already buffered are dropped.
func (q *BlockQueue) Stop() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		cancel := q.cancel
		q.mu.Unlock()

		close(q.stopped)
		if cancel != nil {
			cancel()
		}
		q.wg.Wait()
		q.log.Info("block queue stopped")
	})
}

// Size returns the number of buffered blocks.
func (q *BlockQueue) Size() int {
	return len(q.events)
}

// Head returns the last known indexer head.
func (q *BlockQueue) Head() int64 {
	return q.head.Load()
}

// ExhaustedAt returns the last height the queue covered. It is meaningful once
// NextBlockWithEvents has reported exhaustion.
func (q *BlockQueue) ExhaustedAt() int64 {
	return q.exhaustedAt.Load()
}

// NextBlockWithEvents blocks until the next block with relevant events is available.
// It returns false once the range is exhausted and no buffered blocks remain.
func (q *BlockQueue) NextBlockWithEvents(ctx context.Context) (source.BlockData, bool, error) {
	q.mu.Lock()
	started := q.started
	q.mu.Unlock()
	if !started {
		return source.BlockData{}, false, ErrNotStarted
	}

	select {
	case b := <-q.events:
		q.bus.PublishQueueSize(ctx, q.opts.Chain, len(q.events))
		return b, true, nil
	default:
	}

	select {
	case b := <-q.events:
		q.bus.PublishQueueSize(ctx, q.opts.Chain, len(q.events))
		return b, true, nil
	case <-q.done:
		// the fetch loop closes done after its last send
		select {
		case b := <-q.events:
			q.bus.PublishQueueSize(ctx, q.opts.Chain, len(q.events))
			return b, true, nil
		default:
			return source.BlockData{}, false, nil
		}
	case <-q.stopped:
		return source.BlockData{}, false, ErrStopped
	case <-ctx.Done():
		return source.BlockData{}, false, ctx.Err()
	}
}

// BlocksWithHooks yields the blocks of r without relevant events, in height order.
// Without hooks only the last block of r is yielded, as that is all the checkpoint needs.
func (q *BlockQueue) BlocksWithHooks(ctx context.Context, r state.Range) iter.Seq2[source.BlockData, error] {
	return func(yield func(source.BlockData, error) bool) {
		if r.Empty() {
			return
		}

		from := r.From
		if !q.opts.HasHooks {
			from = r.To
		}

		pageSize := int64(q.opts.Queue.PageSize)
		for pageFrom := from; pageFrom <= r.To; pageFrom += pageSize {
			pageTo := min(r.To, pageFrom+pageSize-1)

			blocks, err := q.src.Blocks(ctx, pageFrom, pageTo)
			if err != nil {
				yield(source.BlockData{}, fmt.Errorf("failed to fetch blocks [%d, %d]: %w", pageFrom, pageTo, err))
				return
			}
			if int64(len(blocks)) != pageTo-pageFrom+1 {
				yield(source.BlockData{}, fmt.Errorf("indexer returned %d blocks for range [%d, %d]",
					len(blocks), pageFrom, pageTo))
				return
			}

			for _, b := range blocks {
				if !yield(source.BlockData{Block: b}, nil) {
					return
				}
			}
		}
	}
}

func (q *BlockQueue) onStatus(ctx context.Context, status source.IndexerStatus) {
	if old := q.head.Swap(status.Head); old == status.Head {
		return
	}

	q.bus.PublishStatus(ctx, q.opts.Chain, status)

	select {
	case q.headMove <- struct{}{}:
	default:
	}
}

func (q *BlockQueue) fetchLoop(ctx context.Context, from int64) {
	next := from

	for ctx.Err() == nil {
		upper := min(q.opts.Range.To, q.head.Load())

		if next > upper {
			if next > q.opts.Range.To {
				q.finish(q.opts.Range.To)
				return
			}
			if q.opts.Queue.StopAtHead {
				q.finish(next - 1)
				return
			}
			if !q.waitForHead(ctx) {
				return
			}
			continue
		}

		pageTo := min(upper, next+q.pageSize.Load()-1)
		req := source.BlocksRequest{
			From:   next,
			To:     pageTo,
			Limit:  int(q.pageSize.Load()),
			Filter: q.opts.Filter,
		}

		blocks, err := q.src.BlocksWithEvents(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.handleFetchError(ctx, req, err)
			continue
		}
		if err := validatePage(req, blocks); err != nil {
			q.handleFetchError(ctx, req, err)
			continue
		}
		q.fetchErrs.Store(0)

		for _, b := range blocks {
			select {
			case q.events <- b:
				q.bus.PublishQueueSize(ctx, q.opts.Chain, len(q.events))
			case <-ctx.Done():
				return
			}
		}

		if len(blocks) == req.Limit && blocks[len(blocks)-1].Block.Height < pageTo {
			next = blocks[len(blocks)-1].Block.Height + 1
		} else {
			next = pageTo + 1
		}

		q.log.Debugw("fetched blocks with events", "from_block", req.From, "to_block", next-1,
			"blocks", len(blocks), "queue_size", len(q.events))
	}
}

// validatePage rejects pages with blocks outside the requested window or out of order.
func validatePage(req source.BlocksRequest, blocks []source.BlockData) error {
	prev := req.From - 1
	for _, b := range blocks {
		h := b.Block.Height
		if h < req.From || h > req.To {
			return fmt.Errorf("indexer returned block %d outside of requested range [%d, %d]", h, req.From, req.To)
		}
		if h <= prev {
			return fmt.Errorf("indexer returned block %d after block %d", h, prev)
		}
		prev = h
	}
	return nil
}

func (q *BlockQueue) handleFetchError(ctx context.Context, req source.BlocksRequest, err error) {
	if tooLarge, limit := isource.IsPageTooLargeError(err); tooLarge {
		smaller := int64(req.Limit / 2)
		if limit > 0 && int64(limit) < smaller {
			smaller = int64(limit)
		}
		q.pageSize.Store(max(smaller, 1))
		q.log.Warnw("indexer rejected page size, shrinking", "page_size", q.pageSize.Load())
		return
	}

	attempt := q.fetchErrs.Add(1)
	q.log.Warnw("failed to fetch blocks with events, retrying", "from_block", req.From, "to_block", req.To,
		"attempt", attempt, "error", err)

	timer := time.NewTimer(q.opts.Queue.PollInterval.Duration)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (q *BlockQueue) waitForHead(ctx context.Context) bool {
	timer := time.NewTimer(q.opts.Queue.PollInterval.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-q.headMove:
		return true
	case <-timer.C:
		return true
	}
}

func (q *BlockQueue) finish(at int64) {
	q.exhaustedAt.Store(at)
	close(q.done)
	q.log.Infow("block range exhausted", "last_block", at)
}

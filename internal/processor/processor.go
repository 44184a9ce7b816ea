// Package processor drives the block processing loop of each chain.
package processor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/internal/metrics"
	"github.com/goran-ethernal/ChainProcessor/internal/queue"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
)

// ErrAlreadyStarted is returned when Start is called on a processor that is not Created.
var ErrAlreadyStarted = errors.New("processor already started")

// Status is the lifecycle stage of a processor.
type Status int32

const (
	Created Status = iota
	Running
	Stopped
	Faulted
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Faulted:
		return "faulted"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// BlockExecutor runs the handlers of one block.
type BlockExecutor interface {
	ExecuteBlock(ctx context.Context, blk source.BlockData, onStateUpdate mapping.StateUpdateFunc) error
}

// BlockQueue supplies blocks to process.
type BlockQueue interface {
	Start(ctx context.Context, lastScannedBlock int64) error
	Stop()
	NextBlockWithEvents(ctx context.Context) (source.BlockData, bool, error)
	BlocksWithHooks(ctx context.Context, r state.Range) iter.Seq2[source.BlockData, error]
	ExhaustedAt() int64
}

var _ BlockQueue = (*queue.BlockQueue)(nil)

// Processor processes the blocks of one chain in height order.
type Processor struct {
	chain    string
	keeper   state.Keeper
	queue    BlockQueue
	executor BlockExecutor
	bus      *notify.Bus
	log      *logger.Logger

	mu     sync.Mutex
	status Status
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a processor in the Created state.
func New(chain string, keeper state.Keeper, q BlockQueue, executor BlockExecutor, bus *notify.Bus,
	log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Processor{
		chain:    chain,
		keeper:   keeper,
		queue:    q,
		executor: executor,
		bus:      bus,
		log:      log.WithComponent(common.ComponentProcessor),
		status:   Created,
		done:     make(chan struct{}),
	}
}

// Chain returns the chain the processor works on.
func (p *Processor) Chain() string {
	return p.chain
}

// Status returns the current lifecycle stage.
func (p *Processor) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Err returns the error that faulted the processor, if any.
func (p *Processor) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Done is closed once Start has returned.
func (p *Processor) Done() <-chan struct{} {
	return p.done
}

// Start initializes the state, starts the queue and processes blocks until the range is
// exhausted, Stop is called or a block fails. It returns nil on a clean finish or stop.
func (p *Processor) Start(parent context.Context) error {
	p.mu.Lock()
	if p.status != Created {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.status = Running
	p.mu.Unlock()

	defer close(p.done)
	defer cancel()

	p.log.Infow("starting processor", "chain", p.chain)
	metrics.ComponentHealthSet(common.ComponentProcessor, p.chain, true)

	if err := p.run(ctx); err != nil {
		if p.stopping() || parent.Err() != nil {
			p.setStatus(Stopped)
			p.log.Infow("processor stopped", "chain", p.chain)
			return nil
		}
		p.fault(err)
		return err
	}

	p.setStatus(Stopped)
	p.log.Infow("processor finished", "chain", p.chain, "state", p.keeper.GetState())
	return nil
}

// Stop asks the processor to halt after the block in progress and waits for it.
// It is idempotent and safe to call before Start.
func (p *Processor) Stop() {
	p.mu.Lock()
	switch p.status {
	case Created:
		p.status = Stopped
		close(p.done)
		p.mu.Unlock()
		return
	case Running:
		p.status = Stopped
	default:
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	p.log.Infow("stopping processor", "chain", p.chain)
	cancel()
	<-p.done
}

func (p *Processor) run(ctx context.Context) error {
	initial, err := p.keeper.Init(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize state: %w", err)
	}

	if err := p.queue.Start(ctx, initial.LastScannedBlock); err != nil {
		return fmt.Errorf("failed to start block queue: %w", err)
	}
	defer p.queue.Stop()

	return p.processingLoop(ctx)
}

func (p *Processor) processingLoop(ctx context.Context) error {
	for p.running() {
		next, ok, err := p.queue.NextBlockWithEvents(ctx)
		if err != nil {
			return err
		}

		hookTo := p.queue.ExhaustedAt()
		if ok {
			hookTo = next.Block.Height - 1
		}

		from := p.keeper.GetState().LastScannedBlock + 1
		for blk, err := range p.queue.BlocksWithHooks(ctx, state.Range{From: from, To: hookTo}) {
			if err != nil {
				return err
			}
			if !p.running() {
				return nil
			}
			if err := p.processBlock(ctx, blk); err != nil {
				return err
			}
		}

		if !ok {
			return nil
		}
		if !p.running() {
			return nil
		}
		if err := p.processBlock(ctx, next); err != nil {
			return err
		}
	}

	return nil
}

// processBlock runs a block to completion even if ctx is cancelled meanwhile.
func (p *Processor) processBlock(ctx context.Context, blk source.BlockData) error {
	execCtx := context.WithoutCancel(ctx)
	start := time.Now()

	err := p.executor.ExecuteBlock(execCtx, blk, func(ctx context.Context, bc mapping.BlockContext) error {
		update := state.Update{
			LastScannedBlock:   bc.BlockData().Block.Height,
			LastProcessedEvent: bc.BlockData().LastEventID(),
		}

		switch b := bc.(type) {
		case mapping.TxBlock:
			return p.keeper.UpdateState(ctx, update, b.Tx)
		case mapping.PlainBlock:
			return p.keeper.UpdateState(ctx, update, nil)
		default:
			return fmt.Errorf("unexpected block context %T", bc)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to process block %d: %w", blk.Block.Height, err)
	}
	metrics.BlockExecutionTimeLog(p.chain, time.Since(start))

	for _, ev := range blk.Events {
		p.bus.PublishEvent(execCtx, p.chain, ev)
	}

	return nil
}

func (p *Processor) running() bool {
	return p.Status() == Running
}

func (p *Processor) stopping() bool {
	return p.Status() == Stopped
}

func (p *Processor) setStatus(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == Running {
		p.status = s
	}
}

func (p *Processor) fault(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = Faulted
	p.err = err
	metrics.ComponentHealthSet(common.ComponentProcessor, p.chain, false)
	metrics.ErrorsInc(common.ComponentProcessor, "fatal")
	p.log.Errorw("processor faulted", "chain", p.chain, "error", err)
}

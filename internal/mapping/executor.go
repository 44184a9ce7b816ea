package mapping

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/russross/meddler"
)

// ErrHandlerPanic wraps a panic raised by a handler.
var ErrHandlerPanic = errors.New("handler panicked")

// Executor runs the handlers of a block and its state update in a single transaction.
type Executor struct {
	chain       string
	db          *sql.DB
	dialect     *meddler.Database
	bindType    int
	lookup      *Lookup
	maintenance db.Maintenance
	log         *logger.Logger
}

// NewExecutor creates an executor over database for the handlers in lookup.
func NewExecutor(chain string, database *sql.DB, driver string, lookup *Lookup, maintenance db.Maintenance,
	log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if maintenance == nil {
		maintenance = &db.NoOpMaintenance{}
	}

	return &Executor{
		chain:       chain,
		db:          database,
		dialect:     db.Dialect(driver),
		bindType:    db.BindType(driver),
		lookup:      lookup,
		maintenance: maintenance,
		log:         log.WithComponent(common.ComponentExecutor),
	}
}

// ExecuteBlock runs pre-block hooks, the handlers of every event in order, post-block hooks and
// finally onStateUpdate, then commits. Any failure rolls back everything the block wrote.
// A block with no events and no hooks skips the transaction and is passed as a PlainBlock.
func (e *Executor) ExecuteBlock(ctx context.Context, blk source.BlockData, onStateUpdate mapping.StateUpdateFunc) (err error) {
	if len(blk.Events) == 0 && !e.lookup.HasHooks() {
		return onStateUpdate(ctx, mapping.PlainBlock{Data: blk})
	}

	unlock := e.maintenance.AcquireOperationLock()
	defer unlock()

	sqlTx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for block %d: %w", blk.Block.Height, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			e.log.Errorw("failed to rollback block transaction", "block", blk.Block.Height, "error", rbErr)
		}
	}()

	tx := mapping.NewTx(sqlTx, e.dialect, e.bindType)

	if err := e.runBlockHooks(ctx, e.lookup.PreBlockHooks(), blk.Block, tx, "pre-block hook"); err != nil {
		return err
	}

	for i := range blk.Events {
		ev := &blk.Events[i]
		for _, h := range e.lookup.HandlersFor(*ev) {
			hc := &mapping.Context{Chain: e.chain, Block: blk.Block, Event: ev, Store: tx, Log: e.log}
			if err := e.run(ctx, h, hc); err != nil {
				return fmt.Errorf("handler for event %s (%s) failed: %w", ev.Event.ID, ev.Event.Name, err)
			}
		}
	}

	if err := e.runBlockHooks(ctx, e.lookup.PostBlockHooks(), blk.Block, tx, "post-block hook"); err != nil {
		return err
	}

	if err := onStateUpdate(ctx, mapping.TxBlock{Data: blk, Tx: tx}); err != nil {
		return fmt.Errorf("failed to update state for block %d: %w", blk.Block.Height, err)
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit block %d: %w", blk.Block.Height, err)
	}
	tx.Committed()

	e.log.Debugw("block executed", "block", blk.Block.Height, "events", len(blk.Events))

	return nil
}

func (e *Executor) runBlockHooks(ctx context.Context, hooks []mapping.HandlerFunc, block source.Block,
	tx *mapping.Tx, kind string) error {
	for i, h := range hooks {
		hc := &mapping.Context{Chain: e.chain, Block: block, Store: tx, Log: e.log}
		if err := e.run(ctx, h, hc); err != nil {
			return fmt.Errorf("%s #%d failed at block %d: %w", kind, i, block.Height, err)
		}
	}
	return nil
}

func (e *Executor) run(ctx context.Context, h mapping.HandlerFunc, hc *mapping.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("handler panicked", "block", hc.Block.Height, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h(ctx, hc)
}

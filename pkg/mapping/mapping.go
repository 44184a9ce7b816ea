// Package mapping defines the contract between the processor and user mappings:
// handlers, the transactional store they write through, and the block context.
package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
)

var (
	// ErrUnresolvedHandler reports configured handler references with no registered handler.
	ErrUnresolvedHandler = errors.New("unresolved handler")

	// ErrNotFound is returned by Store.Load when no row matches.
	ErrNotFound = errors.New("entity not found")
)

// HandlerFunc is a user mapping. Event handlers get Context.Event set, block hooks do not.
type HandlerFunc func(ctx context.Context, hc *Context) error

// Context is what a handler sees.
type Context struct {
	Chain string
	Block source.Block
	// Event is nil for block hooks.
	Event *source.EventContext
	Store *Tx
	Log   *logger.Logger
}

// DecodeParams unmarshals the event params into v.
func (c *Context) DecodeParams(v any) error {
	if c.Event == nil {
		return errors.New("no event in a block hook")
	}
	if err := json.Unmarshal(c.Event.Event.Params, v); err != nil {
		return fmt.Errorf("failed to decode params of %s: %w", c.Event.Event.ID, err)
	}
	return nil
}

// DecodeArgs unmarshals the extrinsic arguments into v.
func (c *Context) DecodeArgs(v any) error {
	if c.Event == nil || c.Event.Extrinsic == nil {
		return errors.New("no extrinsic in context")
	}
	if err := json.Unmarshal(c.Event.Extrinsic.Args, v); err != nil {
		return fmt.Errorf("failed to decode args of %s: %w", c.Event.Extrinsic.ID, err)
	}
	return nil
}

// BlockContext is a block on its way to a state update, either outside any
// transaction or inside the transaction that ran its handlers.
type BlockContext interface {
	BlockData() source.BlockData
	isBlockContext()
}

// PlainBlock is a block with nothing to run, committed without a transaction.
type PlainBlock struct {
	Data source.BlockData
}

func (b PlainBlock) BlockData() source.BlockData { return b.Data }
func (PlainBlock) isBlockContext()               {}

// TxBlock is a block whose handlers ran in Tx.
type TxBlock struct {
	Data source.BlockData
	Tx   *Tx
}

func (b TxBlock) BlockData() source.BlockData { return b.Data }
func (TxBlock) isBlockContext()               {}

// StateUpdateFunc persists progress for a block. For a TxBlock it must write through the transaction.
type StateUpdateFunc func(ctx context.Context, block BlockContext) error

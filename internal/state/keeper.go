// Package state keeps the processing progress of a chain in memory and in the processed events log.
package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	pkgstate "github.com/goran-ethernal/ChainProcessor/pkg/state"
)

var (
	_ pkgstate.Keeper = (*Keeper)(nil)
	_ notify.Observer = (*Keeper)(nil)
)

// StatusProvider reports the current indexer status.
type StatusProvider interface {
	GetIndexerStatus(ctx context.Context) (source.IndexerStatus, error)
}

// KeeperConfig holds the static inputs of a keeper.
type KeeperConfig struct {
	ProcessorID         string
	Chain               string
	Range               pkgstate.Range
	IndexerVersionRange string
}

// Keeper implements pkgstate.Keeper for one chain.
type Keeper struct {
	cfg    KeeperConfig
	store  *Store
	status StatusProvider
	bus    *notify.Bus
	log    *logger.Logger

	mu            sync.RWMutex
	state         pkgstate.ProcessorState
	indexerStatus source.IndexerStatus
}

// NewKeeper creates a keeper. Init must be called before any update.
func NewKeeper(cfg KeeperConfig, store *Store, status StatusProvider, bus *notify.Bus, log *logger.Logger) *Keeper {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Keeper{
		cfg:    cfg,
		store:  store,
		status: status,
		bus:    bus,
		log:    log.WithComponent(common.ComponentStateKeeper),
	}
}

// Init validates the indexer and derives the starting state from the last checkpoint.
func (k *Keeper) Init(ctx context.Context) (pkgstate.ProcessorState, error) {
	k.log.Infof("Mappings will be executed for blocks in the range %s, inclusively", k.cfg.Range)

	status, err := k.status.GetIndexerStatus(ctx)
	if err != nil {
		return pkgstate.ProcessorState{}, fmt.Errorf("failed to get indexer status: %w", err)
	}

	k.log.Infow("indexer status", "head", status.Head, "chain_height", status.ChainHeight,
		"version", status.HydraVersion)

	if err := pkgstate.CheckIndexerVersion(status.HydraVersion, k.cfg.IndexerVersionRange); err != nil {
		return pkgstate.ProcessorState{}, err
	}

	checkpoint, err := k.store.LoadCheckpoint(ctx, k.cfg.ProcessorID, k.cfg.Chain)
	if err != nil {
		return pkgstate.ProcessorState{}, err
	}

	initial, resume, err := pkgstate.InitState(k.cfg.Range, checkpoint)
	if err != nil {
		return pkgstate.ProcessorState{}, err
	}

	switch resume {
	case pkgstate.ResumeFresh:
		k.log.Debugf("No checkpoint found, starting from block %d", k.cfg.Range.From)
	case pkgstate.ResumeCheckpoint:
		k.log.Infof("The processor will continue from block %d", initial.LastScannedBlock+1)
	case pkgstate.ResumeRewound:
		k.log.Warnf("The last processed block %d is behind the starting block %d. Make sure it is intended.",
			checkpoint.LastScannedBlock, k.cfg.Range.From)
	}

	k.mu.Lock()
	k.state = initial
	k.indexerStatus = status
	k.mu.Unlock()

	k.bus.PublishState(ctx, k.cfg.Chain, initial)

	return initial, nil
}

// UpdateState appends a checkpoint and advances the in-memory state.
// Updates that do not move lastScannedBlock forward are ignored. With a transaction the in-memory
// state and the STATE_CHANGE notification follow the commit.
func (k *Keeper) UpdateState(ctx context.Context, update pkgstate.Update, tx pkgstate.TxHandle) error {
	k.mu.RLock()
	current := k.state
	status := k.indexerStatus
	k.mu.RUnlock()

	if update.LastScannedBlock == current.LastScannedBlock {
		return nil
	}

	if update.LastScannedBlock < current.LastScannedBlock {
		k.log.Warnw("ignoring state update that moves lastScannedBlock backwards",
			"current", current.LastScannedBlock, "update", update.LastScannedBlock)
		return nil
	}

	next := current
	if update.LastProcessedEvent != "" {
		next.LastProcessedEvent = update.LastProcessedEvent
	}

	eventHeight, err := pkgstate.EventHeight(next.LastProcessedEvent)
	if err != nil {
		return err
	}
	next.LastScannedBlock = max(update.LastScannedBlock, eventHeight-1)

	entry := &LogEntry{
		Processor:        k.cfg.ProcessorID,
		Chain:            k.cfg.Chain,
		EventID:          next.LastProcessedEvent,
		IndexerHead:      status.Head,
		ChainHead:        status.ChainHeight,
		LastScannedBlock: next.LastScannedBlock,
		UpdatedAt:        time.Now().UTC(),
	}

	apply := func() {
		k.mu.Lock()
		k.state = next
		k.mu.Unlock()

		k.bus.PublishState(ctx, k.cfg.Chain, next)
	}

	if tx == nil {
		if err := k.store.Append(nil, entry); err != nil {
			return err
		}
		apply()
		return nil
	}

	if err := k.store.Append(tx, entry); err != nil {
		return err
	}
	tx.AfterCommit(apply)

	return nil
}

// GetState returns the current state.
func (k *Keeper) GetState() pkgstate.ProcessorState {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// Range returns the configured block range.
func (k *Keeper) Range() pkgstate.Range {
	return k.cfg.Range
}

// GetIndexerStatus returns the last known indexer status.
func (k *Keeper) GetIndexerStatus() source.IndexerStatus {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.indexerStatus
}

// ProcessedEvents returns the number of distinct events checkpointed so far.
func (k *Keeper) ProcessedEvents(ctx context.Context) (int64, error) {
	return k.store.CountProcessedEvents(ctx, k.cfg.ProcessorID, k.cfg.Chain)
}

// Notify tracks indexer status changes and processed events of the keeper's chain.
func (k *Keeper) Notify(_ context.Context, n notify.Notification) error {
	if n.Chain != k.cfg.Chain {
		return nil
	}

	switch n.Type {
	case notify.IndexerStatusChange:
		if n.Status == nil {
			return nil
		}
		k.mu.Lock()
		k.indexerStatus = *n.Status
		k.mu.Unlock()

	case notify.ProcessedEvent:
		if n.Event == nil {
			return nil
		}
		k.mu.Lock()
		defer k.mu.Unlock()
		if newer(n.Event.Event.ID, k.state.LastProcessedEvent) {
			k.state.LastProcessedEvent = n.Event.Event.ID
		}
	}

	return nil
}

func newer(candidate, current string) bool {
	ch, ci, err := pkgstate.ParseEventID(candidate)
	if err != nil {
		return false
	}
	h, i, err := pkgstate.ParseEventID(current)
	if err != nil {
		return true
	}
	return ch > h || (ch == h && ci > i)
}

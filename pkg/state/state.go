// Package state defines the processing progress of a chain and the rules for resuming it.
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/russross/meddler"
)

var (
	// ErrBeyondRange reports a checkpoint at or past the end of the configured range.
	ErrBeyondRange = errors.New("checkpoint is beyond the configured block range")

	// ErrIncompatibleIndexer reports an indexer version outside the configured range.
	ErrIncompatibleIndexer = errors.New("incompatible indexer version")

	// ErrInvalidEventID reports an event id that is not <height>-<index>.
	ErrInvalidEventID = errors.New("invalid event id")
)

// Unbounded is the upper bound of a range without an end.
const Unbounded int64 = math.MaxInt64

// Range is an inclusive block height interval.
type Range struct {
	From int64 `json:"from"`
	To   int64 `json:"to"`
}

// NewRange builds a range from configuration, where to == 0 means unbounded.
func NewRange(from, to int64) Range {
	if to == 0 {
		to = Unbounded
	}
	return Range{From: from, To: to}
}

// Contains reports whether height is within the range.
func (r Range) Contains(height int64) bool {
	return height >= r.From && height <= r.To
}

// Empty reports whether the range holds no heights.
func (r Range) Empty() bool {
	return r.From > r.To
}

func (r Range) String() string {
	if r.To == Unbounded {
		return fmt.Sprintf("[%d, ∞)", r.From)
	}
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// ProcessorState is the progress of one chain.
// LastScannedBlock >= height(LastProcessedEvent) - 1 holds after every update.
type ProcessorState struct {
	LastScannedBlock   int64  `json:"lastScannedBlock"`
	LastProcessedEvent string `json:"lastProcessedEvent"`
}

// Checkpoint is the latest persisted progress row.
type Checkpoint struct {
	EventID          string
	LastScannedBlock int64
}

// Update is a partial state change. An empty LastProcessedEvent keeps the current one.
type Update struct {
	LastScannedBlock   int64
	LastProcessedEvent string
}

// TxHandle is the transaction a state update joins. The update becomes visible
// in memory only once the transaction commits.
type TxHandle interface {
	meddler.DB
	AfterCommit(fn func())
}

// Keeper owns the progress of one chain.
type Keeper interface {
	Init(ctx context.Context) (ProcessorState, error)
	// UpdateState persists an update, inside tx when tx is not nil.
	UpdateState(ctx context.Context, update Update, tx TxHandle) error
	GetState() ProcessorState
	GetIndexerStatus() source.IndexerStatus
}

// FormatEventID renders an event id.
func FormatEventID(height int64, index int) string {
	return fmt.Sprintf("%d-%d", height, index)
}

// SortableEventID renders an event id zero padded, so that lexical order equals event order.
func SortableEventID(id string) (string, error) {
	height, index, err := ParseEventID(id)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%010d-%06d", height, index), nil
}

// ParseEventID splits an event id into block height and index. Padded ids are accepted.
func ParseEventID(id string) (int64, int, error) {
	heightPart, indexPart, ok := strings.Cut(id, "-")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}

	height, err := strconv.ParseInt(heightPart, 10, 64)
	if err != nil || height < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}

	index, err := strconv.Atoi(indexPart)
	if err != nil || index < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidEventID, id)
	}

	return height, index, nil
}

// EventHeight returns the block height of an event id.
func EventHeight(id string) (int64, error) {
	height, _, err := ParseEventID(id)
	return height, err
}

// Resume tells how InitState derived the starting state.
type Resume int

const (
	// ResumeFresh means no checkpoint exists.
	ResumeFresh Resume = iota
	// ResumeCheckpoint continues right after the checkpoint.
	ResumeCheckpoint
	// ResumeRewound restarts at the range start because the checkpoint predates it.
	ResumeRewound
)

// InitState derives the starting state from the last checkpoint and the configured range.
// A nil checkpoint starts before range.From. A checkpoint whose next block is inside the range
// is resumed. A checkpoint behind the range restarts at range.From. Anything else is ErrBeyondRange.
func InitState(r Range, cp *Checkpoint) (ProcessorState, Resume, error) {
	if cp == nil {
		return ProcessorState{
			LastScannedBlock:   r.From - 1,
			LastProcessedEvent: FormatEventID(0, 0),
		}, ResumeFresh, nil
	}

	if r.Contains(cp.LastScannedBlock + 1) {
		return ProcessorState{
			LastScannedBlock:   cp.LastScannedBlock,
			LastProcessedEvent: cp.EventID,
		}, ResumeCheckpoint, nil
	}

	if cp.LastScannedBlock < r.From {
		return ProcessorState{
			LastScannedBlock:   r.From - 1,
			LastProcessedEvent: cp.EventID,
		}, ResumeRewound, nil
	}

	return ProcessorState{}, ResumeFresh, fmt.Errorf("%w: last processed block %d, range %s",
		ErrBeyondRange, cp.LastScannedBlock, r)
}

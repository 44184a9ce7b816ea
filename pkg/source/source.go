// Package source describes the upstream indexer the processor consumes.
package source

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ethereum/go-ethereum"
)

// ExtrinsicSuccessEvent is emitted once per successful extrinsic. Extrinsic handlers
// fire on it, with the extrinsic attached to the event context.
const ExtrinsicSuccessEvent = "system.ExtrinsicSuccess"

// IndexerStatus is the liveness report of the upstream indexer.
type IndexerStatus struct {
	Head         int64  `json:"head"`
	ChainHeight  int64  `json:"chainHeight"`
	HydraVersion string `json:"hydraVersion"`
}

// Block is a block header as served by the indexer.
type Block struct {
	Height     int64  `json:"height"`
	Hash       string `json:"hash"`
	ParentHash string `json:"parentHash"`
	// Timestamp is in milliseconds since the epoch.
	Timestamp int64 `json:"timestamp"`
}

// Event is a decoded runtime event.
type Event struct {
	// ID is <blockHeight>-<indexInBlock>
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	BlockHeight  int64           `json:"blockHeight"`
	IndexInBlock int             `json:"indexInBlock"`
	Params       json.RawMessage `json:"params,omitempty"`
}

// Extrinsic is the call that emitted an event.
type Extrinsic struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Hash   string          `json:"hash"`
	Signer string          `json:"signer,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// EventContext is an event together with its extrinsic, when it has one.
type EventContext struct {
	Event     Event      `json:"event"`
	Extrinsic *Extrinsic `json:"extrinsic,omitempty"`
}

// BlockData is a block with its relevant events in block order.
type BlockData struct {
	Block  Block          `json:"block"`
	Events []EventContext `json:"events"`
}

// LastEventID returns the id of the last event in the block, or "" for a block without events.
func (b BlockData) LastEventID() string {
	if len(b.Events) == 0 {
		return ""
	}
	return b.Events[len(b.Events)-1].Event.ID
}

// Filter selects the events a mapping is interested in.
type Filter struct {
	Events     []string `json:"events"`
	Extrinsics []string `json:"extrinsics"`
}

// BlocksRequest asks for blocks in [From, To] that carry at least one event matching Filter.
// At most Limit blocks are returned, ordered by height.
type BlocksRequest struct {
	From   int64  `json:"from"`
	To     int64  `json:"to"`
	Limit  int    `json:"limit"`
	Filter Filter `json:"filter"`
}

// Source is the pull interface to an upstream indexer.
type Source interface {
	GetIndexerStatus(ctx context.Context) (IndexerStatus, error)
	BlocksWithEvents(ctx context.Context, req BlocksRequest) ([]BlockData, error)
	// Blocks returns every block header in [from, to].
	Blocks(ctx context.Context, from, to int64) ([]Block, error)
	// SubscribeStatus pushes status updates into ch until the subscription ends.
	SubscribeStatus(ctx context.Context, ch chan<- IndexerStatus) (ethereum.Subscription, error)
}

// ErrSubscriptionUnsupported is returned by SubscribeStatus when the transport cannot push updates.
var ErrSubscriptionUnsupported = errors.New("status subscription not supported")

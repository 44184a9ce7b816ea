package helpers

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/event"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
)

var _ source.Source = (*FakeIndexer)(nil)

// ErrFakeUnavailable is returned by FakeIndexer while failures are injected.
var ErrFakeUnavailable = errors.New("service unavailable")

// FakeIndexer is an in-memory indexer. Blocks exist up to the head; events are added per block.
type FakeIndexer struct {
	mu       sync.Mutex
	status   source.IndexerStatus
	blocks   map[int64]*source.BlockData
	failures int
	requests []source.BlocksRequest
	headers  [][2]int64

	feed      event.Feed
	subscribe bool
}

// NewFakeIndexer creates an indexer reporting the given version with its head at head.
func NewFakeIndexer(version string, head int64) *FakeIndexer {
	return &FakeIndexer{
		status: source.IndexerStatus{Head: head, ChainHeight: head, HydraVersion: version},
		blocks: make(map[int64]*source.BlockData),
	}
}

// EnableSubscriptions makes SubscribeStatus succeed instead of reporting it unsupported.
func (f *FakeIndexer) EnableSubscriptions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribe = true
}

// SetHead moves the indexer head and notifies subscribers.
func (f *FakeIndexer) SetHead(head int64) {
	f.mu.Lock()
	f.status.Head = head
	f.status.ChainHeight = max(f.status.ChainHeight, head)
	status := f.status
	f.mu.Unlock()

	f.feed.Send(status)
}

// AddEvent appends an event to a block and returns its id.
func (f *FakeIndexer) AddEvent(height int64, name string, params string) string {
	return f.add(height, name, params, nil)
}

// AddExtrinsic records a successful extrinsic in a block and returns the id of its success event.
// args is the JSON encoded call arguments and may be empty.
func (f *FakeIndexer) AddExtrinsic(height int64, name, signer, args string) string {
	ext := &source.Extrinsic{Name: name, Signer: signer}
	if args != "" {
		ext.Args = []byte(args)
	}
	return f.add(height, source.ExtrinsicSuccessEvent, "", ext)
}

func (f *FakeIndexer) add(height int64, name, params string, ext *source.Extrinsic) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.blocks[height]
	if !ok {
		b = &source.BlockData{Block: header(height)}
		f.blocks[height] = b
	}

	index := len(b.Events)
	id := fmt.Sprintf("%d-%d", height, index)
	ev := source.EventContext{Event: source.Event{
		ID:           id,
		Name:         name,
		BlockHeight:  height,
		IndexInBlock: index,
	}}
	if params != "" {
		ev.Event.Params = []byte(params)
	}
	if ext != nil {
		ext.ID = fmt.Sprintf("%d-x%d", height, index)
		ev.Extrinsic = ext
	}
	b.Events = append(b.Events, ev)

	return id
}

// FailNext makes the next n BlocksWithEvents or Blocks calls fail.
func (f *FakeIndexer) FailNext(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

// Requests returns every BlocksWithEvents request served so far.
func (f *FakeIndexer) Requests() []source.BlocksRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

// HeaderRequests returns the [from, to] of every Blocks call served so far.
func (f *FakeIndexer) HeaderRequests() [][2]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.headers)
}

func (f *FakeIndexer) GetIndexerStatus(ctx context.Context) (source.IndexerStatus, error) {
	if err := ctx.Err(); err != nil {
		return source.IndexerStatus{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

func (f *FakeIndexer) BlocksWithEvents(ctx context.Context, req source.BlocksRequest) ([]source.BlockData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return nil, ErrFakeUnavailable
	}
	f.requests = append(f.requests, req)

	heights := make([]int64, 0, len(f.blocks))
	for h := range f.blocks {
		if h >= req.From && h <= req.To && h <= f.status.Head {
			heights = append(heights, h)
		}
	}
	slices.Sort(heights)

	var out []source.BlockData
	for _, h := range heights {
		if len(out) == req.Limit {
			break
		}

		b := f.blocks[h]
		var events []source.EventContext
		for _, ev := range b.Events {
			if matches(req.Filter, ev) {
				events = append(events, ev)
			}
		}
		if len(events) > 0 {
			out = append(out, source.BlockData{Block: b.Block, Events: events})
		}
	}

	return out, nil
}

func (f *FakeIndexer) Blocks(ctx context.Context, from, to int64) ([]source.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failures > 0 {
		f.failures--
		return nil, ErrFakeUnavailable
	}
	if to > f.status.Head {
		return nil, fmt.Errorf("block %d is not indexed yet", to)
	}
	f.headers = append(f.headers, [2]int64{from, to})

	out := make([]source.Block, 0, to-from+1)
	for h := from; h <= to; h++ {
		out = append(out, header(h))
	}
	return out, nil
}

func (f *FakeIndexer) SubscribeStatus(_ context.Context, ch chan<- source.IndexerStatus) (ethereum.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.subscribe {
		return nil, source.ErrSubscriptionUnsupported
	}
	return f.feed.Subscribe(ch), nil
}

func matches(filter source.Filter, ev source.EventContext) bool {
	if slices.Contains(filter.Events, ev.Event.Name) {
		return true
	}
	return ev.Event.Name == source.ExtrinsicSuccessEvent && ev.Extrinsic != nil &&
		slices.Contains(filter.Extrinsics, ev.Extrinsic.Name)
}

func header(height int64) source.Block {
	return source.Block{
		Height:     height,
		Hash:       fmt.Sprintf("0x%064x", height),
		ParentHash: fmt.Sprintf("0x%064x", height-1),
		Timestamp:  1_600_000_000_000 + height*6000,
	}
}

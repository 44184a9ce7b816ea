package source

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/stretchr/testify/require"
)

type indexerService struct {
	status   source.IndexerStatus
	blocks   []source.BlockData
	updates  []source.IndexerStatus
	failures atomic.Int32
}

func (s *indexerService) Status(context.Context) (source.IndexerStatus, error) {
	if s.failures.Add(-1) >= 0 {
		return source.IndexerStatus{}, errors.New("service unavailable")
	}
	return s.status, nil
}

func (s *indexerService) BlocksWithEvents(_ context.Context, req source.BlocksRequest) ([]source.BlockData, error) {
	var out []source.BlockData
	for _, b := range s.blocks {
		if b.Block.Height >= req.From && b.Block.Height <= req.To && len(out) < req.Limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *indexerService) Blocks(_ context.Context, from, to int64) ([]source.Block, error) {
	if from > to {
		return nil, errors.New("invalid range")
	}
	out := make([]source.Block, 0, to-from+1)
	for h := from; h <= to; h++ {
		out = append(out, source.Block{Height: h, Hash: "0x"})
	}
	return out, nil
}

func (s *indexerService) StatusUpdates(ctx context.Context) (*rpc.Subscription, error) {
	notifier, ok := rpc.NotifierFromContext(ctx)
	if !ok {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}

	sub := notifier.CreateSubscription()
	go func() {
		for _, st := range s.updates {
			if err := notifier.Notify(sub.ID, st); err != nil {
				return
			}
		}
	}()
	return sub, nil
}

func newTestClient(t *testing.T, svc *indexerService, retry *config.RetryConfig) *Client {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("indexer", svc))
	t.Cleanup(server.Stop)

	client := NewClientFromRPC(rpc.DialInProc(server), retry, nil)
	t.Cleanup(client.Close)

	return client
}

func fastRetry(attempts int) *config.RetryConfig {
	return &config.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    common.NewDuration(time.Millisecond),
		MaxBackoff:        common.NewDuration(5 * time.Millisecond),
		BackoffMultiplier: 2,
	}
}

func TestClient_GetIndexerStatus(t *testing.T) {
	svc := &indexerService{status: source.IndexerStatus{Head: 120, ChainHeight: 125, HydraVersion: "3.1.0"}}
	client := newTestClient(t, svc, nil)

	status, err := client.GetIndexerStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, svc.status, status)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	svc := &indexerService{status: source.IndexerStatus{Head: 7}}
	svc.failures.Store(2)
	client := newTestClient(t, svc, fastRetry(3))

	status, err := client.GetIndexerStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(7), status.Head)
}

func TestClient_GivesUpAfterMaxAttempts(t *testing.T) {
	svc := &indexerService{}
	svc.failures.Store(10)
	client := newTestClient(t, svc, fastRetry(2))

	_, err := client.GetIndexerStatus(context.Background())
	require.ErrorContains(t, err, "all 2 attempts failed")
}

func TestClient_BlocksWithEvents(t *testing.T) {
	svc := &indexerService{blocks: []source.BlockData{
		{Block: source.Block{Height: 10}, Events: []source.EventContext{{Event: source.Event{ID: "10-0", Name: "balances.Transfer"}}}},
		{Block: source.Block{Height: 12}, Events: []source.EventContext{{
			Event:     source.Event{ID: "12-1", Name: source.ExtrinsicSuccessEvent},
			Extrinsic: &source.Extrinsic{ID: "12-0", Name: "balances.setBalance"},
		}}},
		{Block: source.Block{Height: 40}},
	}}
	client := newTestClient(t, svc, nil)

	blocks, err := client.BlocksWithEvents(context.Background(), source.BlocksRequest{From: 0, To: 20, Limit: 10})
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	require.Equal(t, "10-0", blocks[0].LastEventID())
	require.Equal(t, "balances.setBalance", blocks[1].Events[0].Extrinsic.Name)
}

func TestClient_Blocks(t *testing.T) {
	client := newTestClient(t, &indexerService{}, nil)

	blocks, err := client.Blocks(context.Background(), 5, 9)
	require.NoError(t, err)
	require.Len(t, blocks, 5)
	require.Equal(t, int64(9), blocks[4].Height)

	_, err = client.Blocks(context.Background(), 9, 5)
	require.ErrorContains(t, err, "invalid range")
}

func TestClient_SubscribeStatus(t *testing.T) {
	svc := &indexerService{updates: []source.IndexerStatus{{Head: 1}, {Head: 2}}}
	client := newTestClient(t, svc, nil)

	ch := make(chan source.IndexerStatus, 4)
	sub, err := client.SubscribeStatus(context.Background(), ch)
	require.NoError(t, err)
	defer sub.Unsubscribe()

	for _, want := range []int64{1, 2} {
		select {
		case st := <-ch:
			require.Equal(t, want, st.Head)
		case <-time.After(5 * time.Second):
			t.Fatal("status update not received")
		}
	}
}

func TestWatchStatus_Subscription(t *testing.T) {
	svc := &indexerService{updates: []source.IndexerStatus{{Head: 11}}}
	client := newTestClient(t, svc, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan source.IndexerStatus, 1)
	go WatchStatus(ctx, client, time.Hour, nil, func(st source.IndexerStatus) {
		select {
		case got <- st:
		default:
		}
	})

	select {
	case st := <-got:
		require.Equal(t, int64(11), st.Head)
	case <-time.After(5 * time.Second):
		t.Fatal("status not delivered")
	}
}

type pollingSource struct {
	source.Source
	head atomic.Int64
}

func (p *pollingSource) GetIndexerStatus(context.Context) (source.IndexerStatus, error) {
	return source.IndexerStatus{Head: p.head.Add(1)}, nil
}

func (p *pollingSource) SubscribeStatus(context.Context, chan<- source.IndexerStatus) (ethereum.Subscription, error) {
	return nil, source.ErrSubscriptionUnsupported
}

func TestWatchStatus_FallsBackToPolling(t *testing.T) {
	src := &pollingSource{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var calls atomic.Int32

	go func() {
		defer close(done)
		WatchStatus(ctx, src, time.Millisecond, nil, func(source.IndexerStatus) {
			if calls.Add(1) == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
	require.GreaterOrEqual(t, calls.Load(), int32(3))
}

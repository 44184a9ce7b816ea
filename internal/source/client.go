// Package source implements the indexer JSON-RPC client and the status watcher.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
)

// Compile-time check to ensure Client implements source.Source.
var _ source.Source = (*Client)(nil)

const (
	methodStatus           = "indexer_status"
	methodBlocksWithEvents = "indexer_blocksWithEvents"
	methodBlocks           = "indexer_blocks"

	namespace        = "indexer"
	statusUpdatesSub = "statusUpdates"
)

// Client talks to an indexer over JSON-RPC.
type Client struct {
	rpc   *rpc.Client
	retry *config.RetryConfig
	log   *logger.Logger
}

// NewClient dials the indexer endpoint (http, ws or ipc).
func NewClient(ctx context.Context, endpoint string, retry *config.RetryConfig, log *logger.Logger) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial indexer %s: %w", endpoint, err)
	}

	return NewClientFromRPC(rpcClient, retry, log), nil
}

// NewClientFromRPC wraps an existing RPC client.
func NewClientFromRPC(rpcClient *rpc.Client, retry *config.RetryConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Client{
		rpc:   rpcClient,
		retry: retry,
		log:   log.WithComponent(common.ComponentEventSource),
	}
}

// Close closes the RPC client connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// GetIndexerStatus returns the current indexer status.
func (c *Client) GetIndexerStatus(ctx context.Context) (source.IndexerStatus, error) {
	var status source.IndexerStatus
	err := c.call(ctx, &status, methodStatus)
	return status, err
}

// BlocksWithEvents returns blocks in the requested range carrying matching events.
func (c *Client) BlocksWithEvents(ctx context.Context, req source.BlocksRequest) ([]source.BlockData, error) {
	var blocks []source.BlockData
	if err := c.call(ctx, &blocks, methodBlocksWithEvents, req); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Blocks returns all block headers in [from, to].
func (c *Client) Blocks(ctx context.Context, from, to int64) ([]source.Block, error) {
	var blocks []source.Block
	if err := c.call(ctx, &blocks, methodBlocks, from, to); err != nil {
		return nil, err
	}
	return blocks, nil
}

// SubscribeStatus subscribes to indexer status updates. Transports without
// notifications return source.ErrSubscriptionUnsupported.
func (c *Client) SubscribeStatus(ctx context.Context, ch chan<- source.IndexerStatus) (ethereum.Subscription, error) {
	sub, err := c.rpc.Subscribe(ctx, namespace, ch, statusUpdatesSub)
	if err != nil {
		if errors.Is(err, rpc.ErrNotificationsUnsupported) {
			return nil, fmt.Errorf("%w: %w", source.ErrSubscriptionUnsupported, err)
		}
		return nil, err
	}
	return sub, nil
}

func (c *Client) call(ctx context.Context, result any, method string, args ...any) error {
	return retryWithBackoff(ctx, c.retry, method, func() error {
		start := time.Now()
		MethodInc(method)

		err := c.rpc.CallContext(ctx, result, method, args...)
		MethodDuration(method, time.Since(start))

		if err != nil {
			MethodError(method, errorType(err))
			c.log.Debugw("indexer request failed", "method", method, "error", err)
		}
		return err
	})
}

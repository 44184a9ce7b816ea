package source

import (
	"context"
	"errors"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
)

const statusBuffer = 16

// WatchStatus reports indexer status to onStatus until ctx is done. It subscribes when the
// source supports it and polls every interval otherwise, or while a subscription cannot be made.
func WatchStatus(ctx context.Context, src source.Source, interval time.Duration, log *logger.Logger,
	onStatus func(source.IndexerStatus)) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	for ctx.Err() == nil {
		ch := make(chan source.IndexerStatus, statusBuffer)
		sub, err := src.SubscribeStatus(ctx, ch)
		if err != nil {
			if errors.Is(err, source.ErrSubscriptionUnsupported) {
				log.Debug("status subscription not supported, polling")
				pollStatus(ctx, src, interval, log, onStatus)
				return
			}
			log.Warnw("failed to subscribe to status updates", "error", err)
			if !sleep(ctx, interval) {
				return
			}
			continue
		}

		consume(ctx, sub.Err(), ch, log, onStatus)
		sub.Unsubscribe()
	}
}

func consume(ctx context.Context, errc <-chan error, ch <-chan source.IndexerStatus, log *logger.Logger,
	onStatus func(source.IndexerStatus)) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errc:
			if err != nil {
				log.Warnw("status subscription dropped", "error", err)
			}
			return
		case status := <-ch:
			onStatus(status)
		}
	}
}

func pollStatus(ctx context.Context, src source.Source, interval time.Duration, log *logger.Logger,
	onStatus func(source.IndexerStatus)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := src.GetIndexerStatus(ctx)
		switch {
		case err == nil:
			onStatus(status)
		case ctx.Err() != nil:
			return
		default:
			log.Warnw("failed to poll indexer status", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package notify

import (
	"context"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/puzpuzpuz/xsync/v4"
	"golang.org/x/time/rate"
)

var _ notify.Observer = (*ProgressLogger)(nil)

// ProgressLogger logs how far each chain is behind the indexer head, at most once per interval.
type ProgressLogger struct {
	interval time.Duration
	log      *logger.Logger

	heads     *xsync.Map[string, int64]
	throttles *xsync.Map[string, *rate.Sometimes]
}

// NewProgressLogger creates a progress logger.
func NewProgressLogger(interval time.Duration, log *logger.Logger) *ProgressLogger {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ProgressLogger{
		interval:  interval,
		log:       log.WithComponent(common.ComponentProcessor),
		heads:     xsync.NewMap[string, int64](),
		throttles: xsync.NewMap[string, *rate.Sometimes](),
	}
}

func (p *ProgressLogger) Notify(_ context.Context, n notify.Notification) error {
	switch n.Type {
	case notify.IndexerStatusChange:
		if n.Status != nil {
			p.heads.Store(n.Chain, n.Status.Head)
		}
	case notify.StateChange:
		if n.State == nil {
			return nil
		}
		throttle, _ := p.throttles.LoadOrStore(n.Chain, &rate.Sometimes{First: 1, Interval: p.interval})
		throttle.Do(func() {
			head, _ := p.heads.Load(n.Chain)
			p.log.Infow("Last scanned block", "chain", n.Chain, "block", n.State.LastScannedBlock,
				"behind", Behind(head, n.State.LastScannedBlock))
		})
	}
	return nil
}

// Behind returns how many blocks lastScanned trails head.
func Behind(head, lastScanned int64) int64 {
	return max(head-lastScanned, 0)
}

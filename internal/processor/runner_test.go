package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/internal/metrics"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/tests/helpers"
	"github.com/stretchr/testify/require"
)

func newRunnerConfig(stopAtHead bool, chains ...string) *config.Config {
	cfg := &config.Config{
		Processor: config.ProcessorConfig{ID: "balances", IndexerVersionRange: ">=3.0.0 <4.0.0"},
		DB:        config.DatabaseConfig{Driver: config.DriverSQLite},
	}
	for _, chain := range chains {
		cfg.Processor.Chains = append(cfg.Processor.Chains, config.ChainConfig{
			Name:            chain,
			IndexerEndpoint: "ws://" + chain,
			Queue: config.QueueConfig{
				StopAtHead:   stopAtHead,
				PollInterval: common.NewDuration(10 * time.Millisecond),
			},
		})
		cfg.Mappings = append(cfg.Mappings, transferMapping(0, 0))
		cfg.Mappings[len(cfg.Mappings)-1].Chain = chain
	}
	cfg.ApplyDefaults()
	return cfg
}

func dialFakes(indexers map[string]*helpers.FakeIndexer) DialFunc {
	return func(_ context.Context, chain config.ChainConfig, _ *logger.Logger) (source.Source, error) {
		idx, ok := indexers[chain.Name]
		if !ok {
			return nil, errors.New("unknown chain")
		}
		return idx, nil
	}
}

func TestRunner_RunsEveryChain(t *testing.T) {
	kusama := helpers.NewFakeIndexer(testVersion, 10)
	kusama.AddEvent(3, "balances.Transfer", "")
	polkadot := helpers.NewFakeIndexer(testVersion, 20)
	polkadot.AddEvent(7, "balances.Transfer", "")
	polkadot.AddEvent(15, "balances.Transfer", "")

	h := newHarness(t, kusama)
	var (
		mu        sync.Mutex
		processed []string
	)
	observer := notify.ObserverFunc(func(_ context.Context, n notify.Notification) error {
		mu.Lock()
		defer mu.Unlock()
		if n.Type == notify.ProcessedEvent {
			processed = append(processed, n.Chain+"/"+n.Event.Event.ID)
		}
		return nil
	})

	r, err := NewRunner(context.Background(), newRunnerConfig(true, "kusama", "polkadot"), h.db, Options{
		Resolver:  transferHandlers(),
		Observers: []notify.Observer{observer},
		Dial:      dialFakes(map[string]*helpers.FakeIndexer{"kusama": kusama, "polkadot": polkadot}),
	})
	require.NoError(t, err)
	t.Cleanup(r.Close)

	require.NotEmpty(t, r.RunID())
	require.Equal(t, []string{"kusama", "polkadot"}, r.Registry().Chains())

	require.NoError(t, r.Run(context.Background()))

	require.ElementsMatch(t, []string{"kusama/3-0", "polkadot/7-0", "polkadot/15-0"}, processed)
	require.Equal(t, 3, h.transfers(t))

	c, ok := r.Registry().Get("polkadot")
	require.True(t, ok)
	require.Equal(t, int64(20), c.Keeper.GetState().LastScannedBlock)
	require.Equal(t, Stopped, c.Processor.Status())

	statuses := r.Registry().Statuses()
	require.Len(t, statuses, 2)
	require.Equal(t, "polkadot", statuses[1].Chain)
	require.Equal(t, "stopped", statuses[1].Status)
	require.Empty(t, statuses[1].Error)
	require.Equal(t, int64(20), statuses[1].State.LastScannedBlock)
	require.Equal(t, "15-0", statuses[1].State.LastProcessedEvent)

	chains := r.Registry().ChainStates()
	require.Len(t, chains, 2)
	require.Equal(t, metrics.ChainState{
		Chain: "polkadot", Status: "stopped", Healthy: true, LastScannedBlock: 20, IndexerHead: 20,
	}, chains[1])
}

func TestRunner_Stop(t *testing.T) {
	kusama := helpers.NewFakeIndexer(testVersion, 5)
	polkadot := helpers.NewFakeIndexer(testVersion, 5)
	h := newHarness(t, kusama)

	r, err := NewRunner(context.Background(), newRunnerConfig(false, "kusama", "polkadot"), h.db, Options{
		Resolver: transferHandlers(),
		Dial:     dialFakes(map[string]*helpers.FakeIndexer{"kusama": kusama, "polkadot": polkadot}),
	})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	require.Eventually(t, func() bool {
		for _, c := range r.Registry().All() {
			if c.Processor.Status() != Running {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	r.Stop()
	require.NoError(t, <-errCh)
	for _, c := range r.Registry().All() {
		require.Equal(t, Stopped, c.Processor.Status())
	}
}

func TestRunner_FaultStopsOtherChains(t *testing.T) {
	kusama := helpers.NewFakeIndexer(testVersion, 5)
	kusama.AddEvent(2, "balances.Transfer", "")
	polkadot := helpers.NewFakeIndexer(testVersion, 5)
	h := newHarness(t, kusama)

	errBoom := errors.New("boom")
	r, err := NewRunner(context.Background(), newRunnerConfig(false, "kusama", "polkadot"), h.db, Options{
		Resolver: mapping.Handlers{"transfer": func(context.Context, *mapping.Context) error { return errBoom }},
		Dial:     dialFakes(map[string]*helpers.FakeIndexer{"kusama": kusama, "polkadot": polkadot}),
	})
	require.NoError(t, err)

	err = r.Run(context.Background())
	require.ErrorIs(t, err, errBoom)
	require.ErrorContains(t, err, "chain kusama")

	c, _ := r.Registry().Get("polkadot")
	require.Equal(t, Stopped, c.Processor.Status())

	chains := r.Registry().ChainStates()
	require.Equal(t, "kusama", chains[0].Chain)
	require.False(t, chains[0].Healthy)
	require.True(t, chains[1].Healthy)
}

func TestNewRunner_Errors(t *testing.T) {
	indexer := helpers.NewFakeIndexer(testVersion, 5)
	h := newHarness(t, indexer)
	dial := dialFakes(map[string]*helpers.FakeIndexer{"kusama": indexer})

	t.Run("unresolved handler", func(t *testing.T) {
		_, err := NewRunner(context.Background(), newRunnerConfig(true, "kusama"), h.db, Options{
			Resolver: mapping.Handlers{},
			Dial:     dial,
		})
		require.ErrorIs(t, err, mapping.ErrUnresolvedHandler)
	})

	t.Run("dial failure", func(t *testing.T) {
		_, err := NewRunner(context.Background(), newRunnerConfig(true, "westend"), h.db, Options{
			Resolver: transferHandlers(),
			Dial:     dial,
		})
		require.ErrorContains(t, err, "chain westend")
	})

	t.Run("missing mapping", func(t *testing.T) {
		cfg := newRunnerConfig(true, "kusama")
		cfg.Mappings = nil
		_, err := NewRunner(context.Background(), cfg, h.db, Options{Resolver: transferHandlers(), Dial: dial})
		require.ErrorContains(t, err, "no mapping configured")
	})
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(&Components{Chain: "polkadot"}))
	require.NoError(t, r.Add(&Components{Chain: "kusama"}))
	require.Error(t, r.Add(&Components{Chain: "kusama"}))

	require.Equal(t, []string{"kusama", "polkadot"}, r.Chains())
	require.Len(t, r.All(), 2)

	_, ok := r.Get("westend")
	require.False(t, ok)
}

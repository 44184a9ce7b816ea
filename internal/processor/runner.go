package processor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/alitto/pond/v2"
	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	imapping "github.com/goran-ethernal/ChainProcessor/internal/mapping"
	"github.com/goran-ethernal/ChainProcessor/internal/migrations"
	inotify "github.com/goran-ethernal/ChainProcessor/internal/notify"
	"github.com/goran-ethernal/ChainProcessor/internal/queue"
	isource "github.com/goran-ethernal/ChainProcessor/internal/source"
	istate "github.com/goran-ethernal/ChainProcessor/internal/state"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/source"
	"github.com/goran-ethernal/ChainProcessor/pkg/state"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DialFunc connects to the indexer of a chain.
type DialFunc func(ctx context.Context, chain config.ChainConfig, log *logger.Logger) (source.Source, error)

// DialRPC connects to the indexer over JSON-RPC.
func DialRPC(ctx context.Context, chain config.ChainConfig, log *logger.Logger) (source.Source, error) {
	return isource.NewClient(ctx, chain.IndexerEndpoint, chain.Retry, log)
}

// Options customize a Runner.
type Options struct {
	// Resolver resolves handler references; the global mapping registry by default.
	Resolver mapping.Resolver
	// Observers receive every notification in addition to the built-in ones.
	Observers []notify.Observer
	// Dial connects to indexers; DialRPC by default.
	Dial DialFunc
	// Maintenance serializes database housekeeping with block execution.
	Maintenance db.Maintenance
	Logger      *logger.Logger
}

// Runner owns one processor per configured chain and runs them side by side.
type Runner struct {
	cfg         *config.Config
	db          *sql.DB
	maintenance db.Maintenance
	bus         *notify.Bus
	registry    *Registry
	runID       string
	log         *logger.Logger
}

// NewRunner migrates the database and wires the components of every chain.
func NewRunner(ctx context.Context, cfg *config.Config, database *sql.DB, opts Options) (*Runner, error) {
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	if opts.Dial == nil {
		opts.Dial = DialRPC
	}
	if opts.Resolver == nil {
		opts.Resolver = mapping.DefaultResolver
	}
	if opts.Maintenance == nil {
		opts.Maintenance = &db.NoOpMaintenance{}
	}

	if err := migrations.RunMigrationsDB(log, database, cfg.DB.Driver); err != nil {
		return nil, fmt.Errorf("failed to migrate processor schema: %w", err)
	}
	if migs := mapping.RegisteredMigrations(); len(migs) > 0 {
		if err := db.RunMigrationsDB(log, database, cfg.DB.Driver, migs); err != nil {
			return nil, fmt.Errorf("failed to migrate mapping schema: %w", err)
		}
	}

	runID := uuid.NewString()
	r := &Runner{
		cfg:         cfg,
		db:          database,
		maintenance: opts.Maintenance,
		bus:         notify.NewBus(runID, log),
		registry:    NewRegistry(),
		runID:       runID,
		log:         log.WithComponent(common.ComponentRunner),
	}

	interval := config.NotificationsConfig{}
	if cfg.Notifications != nil {
		interval = *cfg.Notifications
	}
	interval.ApplyDefaults()
	r.bus.Register(inotify.NewProgressLogger(interval.StateLogInterval.Duration, log))
	for _, o := range opts.Observers {
		r.bus.Register(o)
	}

	for _, chain := range cfg.Processor.Chains {
		c, err := r.wire(ctx, chain, opts, log)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("chain %s: %w", chain.Name, err)
		}
		if err := r.registry.Add(c); err != nil {
			r.Close()
			return nil, err
		}
	}

	r.log.Infow("runner ready", "run_id", runID, "processor", cfg.Processor.ID, "chains", r.registry.Chains())

	return r, nil
}

func (r *Runner) wire(ctx context.Context, chain config.ChainConfig, opts Options, log *logger.Logger) (*Components, error) {
	mcfg, ok := r.cfg.MappingFor(chain.Name)
	if !ok {
		return nil, errors.New("no mapping configured")
	}

	lookup := imapping.NewLookup(mcfg, opts.Resolver)
	if err := lookup.Load(); err != nil {
		return nil, err
	}

	src, err := opts.Dial(ctx, chain, log)
	if err != nil {
		return nil, err
	}

	rng := state.NewRange(mcfg.Range.From, mcfg.Range.To)
	chainLogger := log.WithFields("chain", chain.Name)

	store := istate.NewStore(r.db, r.cfg.DB.Driver)
	keeper := istate.NewKeeper(istate.KeeperConfig{
		ProcessorID:         r.cfg.Processor.ID,
		Chain:               chain.Name,
		Range:               rng,
		IndexerVersionRange: r.cfg.Processor.IndexerVersionRange,
	}, store, src, r.bus, chainLogger)
	r.bus.Register(keeper)

	q := queue.New(queue.Options{
		Chain:    chain.Name,
		Range:    rng,
		Filter:   lookup.Filter(),
		HasHooks: lookup.HasHooks(),
		Queue:    chain.Queue,
	}, src, r.bus, chainLogger)

	executor := imapping.NewExecutor(chain.Name, r.db, r.cfg.DB.Driver, lookup, r.maintenance, chainLogger)

	return &Components{
		Chain:     chain.Name,
		Source:    src,
		Keeper:    keeper,
		Queue:     q,
		Lookup:    lookup,
		Executor:  executor,
		Processor: New(chain.Name, keeper, q, executor, r.bus, chainLogger),
	}, nil
}

// RunID identifies this run in notifications.
func (r *Runner) RunID() string {
	return r.runID
}

// Registry returns the wired chains.
func (r *Runner) Registry() *Registry {
	return r.registry
}

// Bus returns the notification bus shared by all chains.
func (r *Runner) Bus() *notify.Bus {
	return r.bus
}

// Run starts every processor and waits for them. A faulted chain stops the others
// and its error is returned.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.maintenance.Start(ctx); err != nil {
		return fmt.Errorf("failed to start maintenance: %w", err)
	}
	defer func() {
		if err := r.maintenance.Stop(); err != nil {
			r.log.Warnw("failed to stop maintenance", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range r.registry.All() {
		g.Go(func() error {
			if err := c.Processor.Start(gctx); err != nil {
				return fmt.Errorf("chain %s: %w", c.Chain, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// Stop stops every processor concurrently and waits for them.
func (r *Runner) Stop() {
	all := r.registry.All()
	if len(all) == 0 {
		return
	}

	pool := pond.NewPool(len(all))
	defer pool.StopAndWait()

	group := pool.NewGroup()
	for _, c := range all {
		group.Submit(c.Processor.Stop)
	}
	if err := group.Wait(); err != nil {
		r.log.Warnw("failed to stop processors", "error", err)
	}
}

// Close releases indexer connections.
func (r *Runner) Close() {
	for _, c := range r.registry.All() {
		if closer, ok := c.Source.(interface{ Close() }); ok {
			closer.Close()
		} else if closer, ok := c.Source.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}

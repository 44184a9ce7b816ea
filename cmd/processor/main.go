package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Import example mappings to register their handlers and entities
	_ "github.com/goran-ethernal/ChainProcessor/examples/mappings/balances"
	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/config"
	"github.com/goran-ethernal/ChainProcessor/internal/db"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/internal/metrics"
	inotify "github.com/goran-ethernal/ChainProcessor/internal/notify"
	"github.com/goran-ethernal/ChainProcessor/internal/processor"
	"github.com/goran-ethernal/ChainProcessor/pkg/api"
	pkgconfig "github.com/goran-ethernal/ChainProcessor/pkg/config"
	"github.com/goran-ethernal/ChainProcessor/pkg/mapping"
	"github.com/goran-ethernal/ChainProcessor/pkg/notify"
	"github.com/goran-ethernal/ChainProcessor/pkg/query"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║         ChainProcessor v%s             ║
║   Substrate Mappings Processor            ║
╚═══════════════════════════════════════════╝
`
	shutdownTimeout = 10 * time.Second
)

var (
	configPath string
	envFile    string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "processor",
	Short: "ChainProcessor - mappings processor for Hydra indexers",
	Long: `ChainProcessor consumes events and extrinsics from one or more Hydra indexers,
runs the configured mapping handlers block by block inside a database transaction
and serves the resulting entities over a read API.`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runProcessor,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered handlers and entities",
	Long:  `List the handler references and entities that can be used in the configuration file and queried over the API.`,
	Run: func(cmd *cobra.Command, args []string) {
		printList(cmd.OutOrStdout(), "Registered handlers:", mapping.ListRegistered())
		printList(cmd.OutOrStdout(), "Registered entities:", query.RegisteredEntities())
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := config.GenerateSchema()
		if err != nil {
			return fmt.Errorf("failed to generate schema: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file loaded before the configuration")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(listCmd, schemaCmd)
}

func printList(w io.Writer, title string, items []string) {
	fmt.Fprintln(w, title)
	if len(items) == 0 {
		fmt.Fprintln(w, "  (none)")
		return
	}
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}

// loadEnv loads the .env file so ${VAR} references in the configuration resolve.
// A missing default .env is not an error.
func loadEnv(path string) error {
	if path != "" {
		return godotenv.Load(path)
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func runProcessor(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	if err := loadEnv(envFile); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := logger.NewComponentLoggerFromConfig(common.ComponentRunner, cfg.Logging)

	database, err := db.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	maintenance := db.NewMaintenance(cfg.DB, database,
		logger.NewComponentLoggerFromConfig(common.ComponentMaintenance, cfg.Logging))

	sinks, closeSinks, err := newSinks(cfg.Notifications,
		logger.NewComponentLoggerFromConfig(common.ComponentNotifier, cfg.Logging))
	if err != nil {
		return err
	}
	defer closeSinks()

	metricsObserver := metrics.NewObserver()
	runner, err := processor.NewRunner(ctx, cfg, database, processor.Options{
		Observers:   append(sinks, metricsObserver),
		Maintenance: maintenance,
		Logger:      logger.NewComponentLoggerFromConfig(common.ComponentProcessor, cfg.Logging),
	})
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	defer runner.Close()

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		if err := metricsObserver.Seed(ctx, metricChains(runner.Registry())); err != nil {
			log.Warnw("failed to seed metrics", "error", err)
		}

		metricsServer := metrics.NewServer(cfg.Metrics, runner.Registry(), log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				log.Warnw("failed to stop metrics server", "error", err)
			}
		}()
	}

	if cfg.API != nil && cfg.API.Enabled {
		apiLog := logger.NewComponentLoggerFromConfig(common.ComponentAPI, cfg.Logging)
		catalog := query.NewCatalog(query.Open(database, cfg.DB.Driver),
			logger.NewComponentLoggerFromConfig(common.ComponentQuery, cfg.Logging))
		apiServer := api.NewServer(cfg.API, runner.Registry(), catalog, apiLog)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.Errorw("API server stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nShutting down gracefully...")
			runner.Stop()
		case <-ctx.Done():
		}
	}()

	log.Infow("starting processor", "id", cfg.Processor.ID, "run_id", runner.RunID())

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("processor failed: %w", err)
	}

	log.Info("ChainProcessor stopped successfully")
	return nil
}

// newSinks connects the configured external notification sinks.
func newSinks(cfg *pkgconfig.NotificationsConfig, log *logger.Logger) ([]notify.Observer, func(), error) {
	var (
		observers []notify.Observer
		closers   []io.Closer
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c.Close(); err != nil {
				log.Warnw("failed to close notification sink", "error", err)
			}
		}
	}

	if cfg == nil {
		return nil, closeAll, nil
	}

	if cfg.Redis != nil {
		sink, err := inotify.NewRedisSink(cfg.Redis, log)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create redis sink: %w", err)
		}
		observers = append(observers, sink)
		closers = append(closers, sink)
	}

	if cfg.NATS != nil {
		sink, err := inotify.NewNATSSink(cfg.NATS)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create nats sink: %w", err)
		}
		observers = append(observers, sink)
		closers = append(closers, sink)
	}

	return observers, closeAll, nil
}

func metricChains(registry *processor.Registry) []metrics.Chain {
	all := registry.All()
	chains := make([]metrics.Chain, 0, len(all))
	for _, c := range all {
		chains = append(chains, metrics.Chain{
			Name:    c.Chain,
			Range:   c.Keeper.Range(),
			Counter: c.Keeper,
		})
	}
	return chains
}

package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config represents the complete configuration for the mappings processor.
type Config struct {
	// Processor identifies the mapping set and lists the chains it consumes
	Processor ProcessorConfig `yaml:"processor" json:"processor" toml:"processor"`

	// Mappings declares the handlers bound to each chain
	Mappings []MappingConfig `yaml:"mappings" json:"mappings" toml:"mappings"`

	// DB contains the database shared by checkpoints and entities
	DB DatabaseConfig `yaml:"db" json:"db" toml:"db"`

	// Logging contains logging configuration
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty" toml:"logging,omitempty"`

	// Metrics contains Prometheus metrics configuration
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" toml:"metrics,omitempty"`

	// API contains the read API configuration
	API *APIConfig `yaml:"api,omitempty" json:"api,omitempty" toml:"api,omitempty"`

	// Notifications configures external sinks for processor notifications
	Notifications *NotificationsConfig `yaml:"notifications,omitempty" json:"notifications,omitempty" toml:"notifications,omitempty"` //nolint:lll
}

// ProcessorConfig identifies the processor and the chains it runs against.
type ProcessorConfig struct {
	// ID is the logical name of the mapping set, stored with every checkpoint row
	ID string `yaml:"id" json:"id" toml:"id"`

	// IndexerVersionRange constrains the upstream indexer version, e.g. ">=3.0.0 <4.0.0"
	IndexerVersionRange string `yaml:"indexer_version_range" json:"indexer_version_range" toml:"indexer_version_range"`

	// Chains lists the upstream indexers to consume, one processor per chain
	Chains []ChainConfig `yaml:"chains" json:"chains" toml:"chains"`
}

// ChainConfig describes a single upstream indexer.
type ChainConfig struct {
	// Name is the logical chain name, stored with every checkpoint row
	Name string `yaml:"name" json:"name" toml:"name"`

	// IndexerEndpoint is the JSON-RPC endpoint of the indexer (http, ws or ipc)
	IndexerEndpoint string `yaml:"indexer_endpoint" json:"indexer_endpoint" toml:"indexer_endpoint"`

	// Queue tunes the block queue
	Queue QueueConfig `yaml:"queue" json:"queue" toml:"queue"`

	// Retry contains retry configuration for indexer calls
	Retry *RetryConfig `yaml:"retry,omitempty" json:"retry,omitempty" toml:"retry,omitempty"`
}

// ApplyDefaults sets default values for optional chain configuration fields.
func (c *ChainConfig) ApplyDefaults() {
	c.Queue.ApplyDefaults()

	if c.Retry == nil {
		c.Retry = &RetryConfig{}
	}
	c.Retry.ApplyDefaults()
}

// QueueConfig tunes fetching and buffering of blocks.
type QueueConfig struct {
	// PageSize is the maximum number of blocks requested per indexer call
	PageSize int `yaml:"page_size" json:"page_size" toml:"page_size"`

	// Capacity is the maximum number of event blocks buffered ahead of the processor
	Capacity int `yaml:"capacity" json:"capacity" toml:"capacity"`

	// PollInterval is how long to wait for the indexer head to move when caught up
	PollInterval common.Duration `yaml:"poll_interval" json:"poll_interval" toml:"poll_interval"`

	// StopAtHead ends the run once the indexer head is reached instead of following it
	StopAtHead bool `yaml:"stop_at_head" json:"stop_at_head" toml:"stop_at_head"`
}

// ApplyDefaults sets default values for queue configuration.
func (q *QueueConfig) ApplyDefaults() {
	if q.PageSize == 0 {
		q.PageSize = 100
	}
	if q.Capacity == 0 {
		q.Capacity = 1000
	}
	if q.PollInterval.Duration == 0 {
		q.PollInterval = common.NewDuration(2 * time.Second) //nolint:mnd
	}
}

// Validate checks if the queue configuration is valid.
func (q *QueueConfig) Validate() error {
	if q.PageSize < 1 {
		return fmt.Errorf("page_size must be positive")
	}
	if q.Capacity < 1 {
		return fmt.Errorf("capacity must be positive")
	}
	return nil
}

// RetryConfig represents retry configuration with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including initial request)
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts" toml:"max_attempts"`

	// InitialBackoff is the initial backoff duration before first retry
	InitialBackoff common.Duration `yaml:"initial_backoff" json:"initial_backoff" toml:"initial_backoff"`

	// MaxBackoff is the maximum backoff duration
	MaxBackoff common.Duration `yaml:"max_backoff" json:"max_backoff" toml:"max_backoff"`

	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64 `yaml:"backoff_multiplier" json:"backoff_multiplier" toml:"backoff_multiplier"`
}

// ApplyDefaults sets default values for retry configuration.
func (r *RetryConfig) ApplyDefaults() {
	if r.MaxAttempts == 0 {
		r.MaxAttempts = 5
	}
	if r.InitialBackoff.Duration == 0 {
		r.InitialBackoff = common.NewDuration(1 * time.Second)
	}
	if r.MaxBackoff.Duration == 0 {
		r.MaxBackoff = common.NewDuration(30 * time.Second) //nolint:mnd
	}
	if r.BackoffMultiplier == 0 {
		r.BackoffMultiplier = 2.0
	}
}

// MappingConfig binds handlers to the events, calls and blocks of one chain.
// Handler references are names registered with mapping.Register.
type MappingConfig struct {
	// Chain is the name of the chain this mapping applies to
	Chain string `yaml:"chain" json:"chain" toml:"chain"`

	// Range is the inclusive block window to process
	Range RangeConfig `yaml:"range" json:"range" toml:"range"`

	// EventHandlers maps an event name (e.g. "balances.Transfer") to a handler reference
	EventHandlers map[string]string `yaml:"event_handlers,omitempty" json:"event_handlers,omitempty" toml:"event_handlers,omitempty"` //nolint:lll

	// ExtrinsicHandlers maps a call name (e.g. "balances.transfer") to a handler reference
	ExtrinsicHandlers map[string]string `yaml:"extrinsic_handlers,omitempty" json:"extrinsic_handlers,omitempty" toml:"extrinsic_handlers,omitempty"` //nolint:lll

	// PreBlockHooks run before the handlers of every block, in order
	PreBlockHooks []string `yaml:"pre_block_hooks,omitempty" json:"pre_block_hooks,omitempty" toml:"pre_block_hooks,omitempty"` //nolint:lll

	// PostBlockHooks run after the handlers of every block, in order
	PostBlockHooks []string `yaml:"post_block_hooks,omitempty" json:"post_block_hooks,omitempty" toml:"post_block_hooks,omitempty"` //nolint:lll
}

// RangeConfig is an inclusive block height window. To = 0 means unbounded.
type RangeConfig struct {
	From int64 `yaml:"from" json:"from" toml:"from"`
	To   int64 `yaml:"to" json:"to" toml:"to"`
}

// Validate checks the mapping definition.
func (m *MappingConfig) Validate() error {
	if m.Chain == "" {
		return fmt.Errorf("chain is required")
	}
	if m.Range.From < 0 || m.Range.To < 0 {
		return fmt.Errorf("range bounds must not be negative")
	}
	if m.Range.To != 0 && m.Range.To < m.Range.From {
		return fmt.Errorf("range.to (%d) is below range.from (%d)", m.Range.To, m.Range.From)
	}
	if len(m.EventHandlers) == 0 && len(m.ExtrinsicHandlers) == 0 &&
		len(m.PreBlockHooks) == 0 && len(m.PostBlockHooks) == 0 {
		return fmt.Errorf("at least one handler or hook must be declared")
	}
	return nil
}

// DatabaseConfig represents database configuration.
type DatabaseConfig struct {
	// Driver selects the database: "sqlite3" (default) or "postgres"
	Driver string `yaml:"driver" json:"driver" toml:"driver"`

	// Path is the file path to the SQLite database
	Path string `yaml:"path" json:"path" toml:"path"`

	// DSN is the PostgreSQL connection string
	DSN string `yaml:"dsn" json:"dsn" toml:"dsn"`

	// JournalMode sets the SQLite journal mode (e.g., "WAL", "DELETE")
	JournalMode string `yaml:"journal_mode" json:"journal_mode" toml:"journal_mode"`

	// Synchronous sets the SQLite synchronization level ("FULL", "NORMAL", "OFF")
	Synchronous string `yaml:"synchronous" json:"synchronous" toml:"synchronous"`

	// BusyTimeout is the time in milliseconds to wait when the database is locked
	BusyTimeout int `yaml:"busy_timeout" json:"busy_timeout" toml:"busy_timeout"`

	// CacheSize is the size of the page cache (negative = KB, positive = pages)
	CacheSize int `yaml:"cache_size" json:"cache_size" toml:"cache_size"`

	// MaxOpenConnections is the maximum number of open database connections
	MaxOpenConnections int `yaml:"max_open_connections" json:"max_open_connections" toml:"max_open_connections"`

	// MaxIdleConnections is the maximum number of idle connections in the pool
	MaxIdleConnections int `yaml:"max_idle_connections" json:"max_idle_connections" toml:"max_idle_connections"`

	// EnableForeignKeys enables foreign key constraint enforcement (SQLite)
	EnableForeignKeys bool `yaml:"enable_foreign_keys" json:"enable_foreign_keys" toml:"enable_foreign_keys"`

	// Maintenance contains optional SQLite maintenance settings
	Maintenance *MaintenanceConfig `yaml:"maintenance,omitempty" json:"maintenance,omitempty" toml:"maintenance,omitempty"`
}

// ApplyDefaults sets default values for optional database configuration fields.
func (d *DatabaseConfig) ApplyDefaults() {
	if d.Driver == "" {
		d.Driver = DriverSQLite
	}
	if d.JournalMode == "" {
		d.JournalMode = "WAL"
	}
	if d.Synchronous == "" {
		d.Synchronous = "NORMAL"
	}
	if d.BusyTimeout == 0 {
		d.BusyTimeout = 5000
	}
	if d.CacheSize == 0 {
		d.CacheSize = 10000
	}
	if d.MaxOpenConnections == 0 {
		d.MaxOpenConnections = 25
	}
	if d.MaxIdleConnections == 0 {
		d.MaxIdleConnections = 5
	}
	if d.Maintenance != nil {
		d.Maintenance.ApplyDefaults()
	}
}

// Validate checks if the database configuration is valid.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverSQLite:
		if d.Path == "" {
			return fmt.Errorf("path is required for the sqlite3 driver")
		}
		if !slices.Contains([]string{"WAL", "DELETE", "TRUNCATE", "PERSIST", "MEMORY"}, d.JournalMode) {
			return fmt.Errorf("journal_mode must be one of: WAL, DELETE, TRUNCATE, PERSIST, MEMORY")
		}
		if !slices.Contains([]string{"FULL", "NORMAL", "OFF"}, d.Synchronous) {
			return fmt.Errorf("synchronous must be one of: FULL, NORMAL, OFF")
		}
	case DriverPostgres:
		if d.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres driver")
		}
		if d.Maintenance != nil && d.Maintenance.Enabled {
			return fmt.Errorf("maintenance is only supported for the sqlite3 driver")
		}
	default:
		return fmt.Errorf("driver must be one of: %s, %s", DriverSQLite, DriverPostgres)
	}

	if d.Maintenance != nil {
		if err := d.Maintenance.Validate(); err != nil {
			return fmt.Errorf("maintenance: %w", err)
		}
	}

	return nil
}

// MaintenanceConfig configures database maintenance behavior.
type MaintenanceConfig struct {
	// Enabled controls whether background maintenance runs
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// CheckInterval is how often to run maintenance (e.g., "30m", "1h")
	CheckInterval common.Duration `yaml:"check_interval" json:"check_interval" toml:"check_interval"`

	// VacuumOnStartup runs maintenance immediately on startup
	VacuumOnStartup bool `yaml:"vacuum_on_startup" json:"vacuum_on_startup" toml:"vacuum_on_startup"`

	// WALCheckpointMode controls the WAL checkpoint aggressiveness
	// Options: PASSIVE, FULL, RESTART, TRUNCATE
	WALCheckpointMode string `yaml:"wal_checkpoint_mode" json:"wal_checkpoint_mode" toml:"wal_checkpoint_mode"`
}

// ApplyDefaults sets default values for optional maintenance configuration fields.
func (m *MaintenanceConfig) ApplyDefaults() {
	if m.CheckInterval.Duration == 0 {
		m.CheckInterval = common.NewDuration(30 * time.Minute) //nolint:mnd
	}
	if m.WALCheckpointMode == "" {
		m.WALCheckpointMode = "TRUNCATE"
	}
}

// Validate checks if the maintenance configuration is valid.
func (m *MaintenanceConfig) Validate() error {
	if m.WALCheckpointMode != "" {
		validModes := []string{"PASSIVE", "FULL", "RESTART", "TRUNCATE"}
		if !slices.Contains(validModes, m.WALCheckpointMode) {
			return fmt.Errorf("wal_checkpoint_mode: must be one of: PASSIVE, FULL, RESTART, TRUNCATE")
		}
	}

	return nil
}

// LoggingConfig configures logging behavior with per-component log levels.
type LoggingConfig struct {
	// DefaultLevel is the default log level for all components
	// Options: "debug", "info", "warn", "error"
	DefaultLevel string `yaml:"default_level" json:"default_level" toml:"default_level"`

	// Development enables development mode (stack traces, console encoder)
	Development bool `yaml:"development" json:"development" toml:"development"`

	// ComponentLevels sets log levels for specific components
	// Available components: processor, block-queue, state-keeper, executor,
	// event-source, runner, notifier, maintenance, api, query
	ComponentLevels map[string]string `yaml:"component_levels,omitempty" json:"component_levels,omitempty" toml:"component_levels,omitempty"` //nolint:lll
}

// ApplyDefaults sets default values for optional logging configuration fields.
func (l *LoggingConfig) ApplyDefaults() {
	if l.DefaultLevel == "" {
		l.DefaultLevel = "info"
	}
	if l.ComponentLevels == nil {
		l.ComponentLevels = make(map[string]string)
	}
}

// Validate checks if the logging configuration is valid.
func (l *LoggingConfig) Validate() error {
	if l.DefaultLevel != "" {
		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(l.DefaultLevel)]; !valid {
			return fmt.Errorf("logging.default_level: must be one of: debug, info, warn, error")
		}
	}

	for component, level := range l.ComponentLevels {
		if _, validComponent := common.AllComponents[common.ToLowerWithTrim(component)]; !validComponent {
			return fmt.Errorf("logging.component_levels: unknown component '%s'", component)
		}

		if _, valid := logger.ValidLogLevels[common.ToLowerWithTrim(level)]; !valid {
			return fmt.Errorf("logging.component_levels[%s]: must be one of: debug, info, warn, error", component)
		}
	}

	return nil
}

// GetComponentLevel returns the log level for a specific component.
// Falls back to DefaultLevel if no component-specific level is set.
// A nil config reports "info".
func (l *LoggingConfig) GetComponentLevel(component string) string {
	if l == nil {
		return "info"
	}
	if level, ok := l.ComponentLevels[component]; ok {
		return common.ToLowerWithTrim(level)
	}
	return l.GetDefaultLevel()
}

// GetDefaultLevel returns the default log level.
func (l *LoggingConfig) GetDefaultLevel() string {
	if l == nil || l.DefaultLevel == "" {
		return "info"
	}
	return common.ToLowerWithTrim(l.DefaultLevel)
}

// IsDevelopment returns whether development mode is enabled.
func (l *LoggingConfig) IsDevelopment() bool {
	return l != nil && l.Development
}

// MetricsConfig configures Prometheus metrics exposition.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP endpoint are active
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the metrics HTTP server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	// Path is the HTTP path where metrics are exposed
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ApplyDefaults sets default values for optional metrics configuration fields.
func (m *MetricsConfig) ApplyDefaults() {
	if m.ListenAddress == "" {
		m.ListenAddress = ":9090"
	}
	if m.Path == "" {
		m.Path = "/metrics"
	}
}

// Validate checks if the metrics configuration is valid.
func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.ListenAddress == "" {
			return fmt.Errorf("listen_address is required when metrics are enabled")
		}
		if m.Path == "" || m.Path[0] != '/' {
			return fmt.Errorf("path must start with '/'")
		}
	}
	return nil
}

// APIConfig configures the read API server.
type APIConfig struct {
	// Enabled controls whether the API server is started
	Enabled bool `yaml:"enabled" json:"enabled" toml:"enabled"`

	// ListenAddress is the address to bind the API server to
	ListenAddress string `yaml:"listen_address" json:"listen_address" toml:"listen_address"`

	ReadTimeout  common.Duration `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout common.Duration `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
	IdleTimeout  common.Duration `yaml:"idle_timeout" json:"idle_timeout" toml:"idle_timeout"`

	// CORS configures cross-origin access
	CORS CORSConfig `yaml:"cors" json:"cors" toml:"cors"`
}

// CORSConfig configures cross-origin resource sharing.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins" toml:"allowed_origins"`
}

// ApplyDefaults sets default values for optional API configuration fields.
func (a *APIConfig) ApplyDefaults() {
	if a.ListenAddress == "" {
		a.ListenAddress = ":8080"
	}
	if a.ReadTimeout.Duration == 0 {
		a.ReadTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.WriteTimeout.Duration == 0 {
		a.WriteTimeout = common.NewDuration(15 * time.Second) //nolint:mnd
	}
	if a.IdleTimeout.Duration == 0 {
		a.IdleTimeout = common.NewDuration(60 * time.Second) //nolint:mnd
	}
	if a.CORS.Enabled && len(a.CORS.AllowedOrigins) == 0 {
		a.CORS.AllowedOrigins = []string{"*"}
	}
}

// NotificationsConfig configures where processor notifications are republished.
type NotificationsConfig struct {
	// StateLogInterval throttles the "blocks behind" progress log line
	StateLogInterval common.Duration `yaml:"state_log_interval" json:"state_log_interval" toml:"state_log_interval"`

	Redis *RedisConfig `yaml:"redis,omitempty" json:"redis,omitempty" toml:"redis,omitempty"`
	NATS  *NATSConfig  `yaml:"nats,omitempty" json:"nats,omitempty" toml:"nats,omitempty"`
}

// RedisConfig configures the Redis pub/sub sink.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" toml:"addr"`
	Password string `yaml:"password" json:"password" toml:"password"`
	DB       int    `yaml:"db" json:"db" toml:"db"`

	// Prefix namespaces channels and keys: <prefix>:<chain>:<type>
	Prefix string `yaml:"prefix" json:"prefix" toml:"prefix"`
}

// NATSConfig configures the NATS sink.
type NATSConfig struct {
	URL string `yaml:"url" json:"url" toml:"url"`

	// SubjectPrefix namespaces subjects: <prefix>.<chain>.<type>
	SubjectPrefix string `yaml:"subject_prefix" json:"subject_prefix" toml:"subject_prefix"`
}

// ApplyDefaults sets default values for notification sinks.
func (n *NotificationsConfig) ApplyDefaults() {
	if n.StateLogInterval.Duration == 0 {
		n.StateLogInterval = common.NewDuration(time.Second)
	}
	if n.Redis != nil && n.Redis.Prefix == "" {
		n.Redis.Prefix = "processor"
	}
	if n.NATS != nil && n.NATS.SubjectPrefix == "" {
		n.NATS.SubjectPrefix = "processor"
	}
}

// Validate checks if the notification configuration is valid.
func (n *NotificationsConfig) Validate() error {
	if n.Redis != nil && n.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is configured")
	}
	if n.NATS != nil && n.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is configured")
	}
	return nil
}

// MappingFor returns the mapping declared for the given chain.
func (c *Config) MappingFor(chain string) (MappingConfig, bool) {
	for _, m := range c.Mappings {
		if m.Chain == chain {
			return m, true
		}
	}
	return MappingConfig{}, false
}

// ApplyDefaults sets default values for optional configuration fields.
func (c *Config) ApplyDefaults() {
	for i := range c.Processor.Chains {
		c.Processor.Chains[i].ApplyDefaults()
	}

	c.DB.ApplyDefaults()

	if c.Logging != nil {
		c.Logging.ApplyDefaults()
	}

	if c.Metrics != nil {
		c.Metrics.ApplyDefaults()
	}

	if c.API != nil {
		c.API.ApplyDefaults()
	}

	if c.Notifications == nil {
		c.Notifications = &NotificationsConfig{}
	}
	c.Notifications.ApplyDefaults()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Processor.ID == "" {
		return fmt.Errorf("processor.id is required")
	}

	if len(c.Processor.Chains) == 0 {
		return fmt.Errorf("at least one chain must be configured")
	}

	chainNames := make(map[string]bool)
	for i, chain := range c.Processor.Chains {
		if chain.Name == "" {
			return fmt.Errorf("processor.chains[%d]: name is required", i)
		}
		if chainNames[chain.Name] {
			return fmt.Errorf("processor.chains[%d]: duplicate chain name '%s'", i, chain.Name)
		}
		chainNames[chain.Name] = true

		if chain.IndexerEndpoint == "" {
			return fmt.Errorf("processor.chains[%d] (%s): indexer_endpoint is required", i, chain.Name)
		}
		if err := chain.Queue.Validate(); err != nil {
			return fmt.Errorf("processor.chains[%d] (%s): queue: %w", i, chain.Name, err)
		}
	}

	mapped := make(map[string]bool)
	for i := range c.Mappings {
		m := &c.Mappings[i]
		if err := m.Validate(); err != nil {
			return fmt.Errorf("mappings[%d]: %w", i, err)
		}
		if !chainNames[m.Chain] {
			return fmt.Errorf("mappings[%d]: unknown chain '%s'", i, m.Chain)
		}
		if mapped[m.Chain] {
			return fmt.Errorf("mappings[%d]: duplicate mapping for chain '%s'", i, m.Chain)
		}
		mapped[m.Chain] = true
	}

	for name := range chainNames {
		if !mapped[name] {
			return fmt.Errorf("chain '%s' has no mapping", name)
		}
	}

	if err := c.DB.Validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}

	if c.Logging != nil {
		if err := c.Logging.Validate(); err != nil {
			return err
		}
	}

	if c.Metrics != nil {
		if err := c.Metrics.Validate(); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	if c.Notifications != nil {
		if err := c.Notifications.Validate(); err != nil {
			return fmt.Errorf("notifications: %w", err)
		}
	}

	return nil
}

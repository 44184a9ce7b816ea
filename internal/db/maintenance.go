package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goran-ethernal/ChainProcessor/internal/common"
	"github.com/goran-ethernal/ChainProcessor/internal/logger"
	"github.com/goran-ethernal/ChainProcessor/pkg/config"
)

// Maintenance serializes database housekeeping against block execution.
// Block transactions hold the operation lock; WAL checkpoints and VACUUM take it exclusively.
type Maintenance interface {
	Start(ctx context.Context) error
	Stop() error
	// AcquireOperationLock returns an unlock function that must be called when the operation completes.
	AcquireOperationLock() func()
	GetMetrics() MaintenanceMetrics
	RunMaintenance(ctx context.Context) error
}

// NoOpMaintenance is used for PostgreSQL and when maintenance is not configured.
type NoOpMaintenance struct{}

func (m *NoOpMaintenance) Start(ctx context.Context) error          { return nil }
func (m *NoOpMaintenance) Stop() error                              { return nil }
func (m *NoOpMaintenance) RunMaintenance(ctx context.Context) error { return nil }
func (m *NoOpMaintenance) AcquireOperationLock() func()             { return func() {} }
func (m *NoOpMaintenance) GetMetrics() MaintenanceMetrics           { return MaintenanceMetrics{} }

// MaintenanceMetrics provides visibility into maintenance operations.
type MaintenanceMetrics struct {
	LastMaintenanceTime  time.Time
	MaintenanceCount     uint64
	LastMaintenanceError error
}

// SQLiteMaintenance runs WAL checkpoints and VACUUM on a SQLite database.
type SQLiteMaintenance struct {
	db     *sql.DB
	dbPath string
	config config.MaintenanceConfig
	log    *logger.Logger

	// readers = block transactions, writer = maintenance
	opLock sync.RWMutex

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	metrics MaintenanceMetrics
}

// NewMaintenance returns the maintenance implementation for the configured database.
func NewMaintenance(cfg config.DatabaseConfig, db *sql.DB, log *logger.Logger) Maintenance {
	if cfg.Driver == config.DriverPostgres || cfg.Maintenance == nil {
		return &NoOpMaintenance{}
	}

	return newSQLiteMaintenance(cfg.Path, db, *cfg.Maintenance, log)
}

func newSQLiteMaintenance(dbPath string, db *sql.DB, cfg config.MaintenanceConfig,
	log *logger.Logger) *SQLiteMaintenance {
	return &SQLiteMaintenance{
		db:     db,
		dbPath: dbPath,
		config: cfg,
		log:    log,
	}
}

// Start runs the optional startup pass and launches the periodic worker.
func (m *SQLiteMaintenance) Start(ctx context.Context) error {
	if !m.config.Enabled {
		m.log.Info("Background maintenance is disabled")
		return nil
	}
	if m.config.CheckInterval.Duration <= 0 {
		return fmt.Errorf("maintenance check interval must be positive")
	}

	ctx, m.cancel = context.WithCancel(ctx)

	if m.config.VacuumOnStartup {
		if err := m.RunMaintenance(ctx); err != nil {
			m.log.Warnf("Startup maintenance failed: %v", err)
		}
	}

	m.wg.Add(1)
	go m.worker(ctx)

	m.log.Infof("Background maintenance started - interval: %v, checkpoint mode: %s",
		m.config.CheckInterval.Duration, m.config.WALCheckpointMode)

	return nil
}

// Stop cancels the worker and waits for an in-flight pass to finish.
func (m *SQLiteMaintenance) Stop() error {
	if m.cancel == nil {
		return nil
	}

	m.cancel()
	m.wg.Wait()
	m.log.Info("Background maintenance stopped")

	return nil
}

func (m *SQLiteMaintenance) worker(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.CheckInterval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RunMaintenance(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.log.Warnf("Periodic maintenance failed: %v", err)
			}
		}
	}
}

// RunMaintenance waits for running block transactions, then checkpoints the WAL and vacuums.
func (m *SQLiteMaintenance) RunMaintenance(ctx context.Context) error {
	start := time.Now()
	maintenanceRuns.Inc()

	m.opLock.Lock()
	defer m.opLock.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	sizeBefore, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get initial DB size: %v", err)
	}

	runErr := m.walCheckpoint()
	if err := Vacuum(m.db); err != nil {
		runErr = errors.Join(runErr, err)
	} else {
		vacuumRuns.Inc()
	}

	sizeAfter, err := DBTotalSize(m.dbPath)
	if err != nil {
		m.log.Warnf("Failed to get final DB size: %v", err)
	}

	m.mu.Lock()
	m.metrics.LastMaintenanceTime = time.Now().UTC()
	m.metrics.MaintenanceCount++
	m.metrics.LastMaintenanceError = runErr
	m.mu.Unlock()

	maintenanceDuration.Observe(time.Since(start).Seconds())
	dbSize.Set(float64(sizeAfter))

	if runErr != nil {
		maintenanceOutcomes.WithLabelValues("error").Inc()
		return fmt.Errorf("maintenance failed: %w", runErr)
	}

	maintenanceOutcomes.WithLabelValues("success").Inc()
	if sizeBefore > sizeAfter {
		m.log.Infof("Maintenance reclaimed %d MB in %v",
			common.BytesToMB(uint64(sizeBefore-sizeAfter)), time.Since(start))
	}

	return nil
}

func (m *SQLiteMaintenance) walCheckpoint() error {
	var mode string
	if err := m.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		return fmt.Errorf("failed to check journal mode: %w", err)
	}
	if !strings.EqualFold(mode, "wal") {
		return nil
	}

	var busy, logFrames, checkpointed int
	err := m.db.QueryRow(fmt.Sprintf("PRAGMA wal_checkpoint(%s)", m.config.WALCheckpointMode)).
		Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to execute WAL checkpoint: %w", err)
	}

	walCheckpoints.WithLabelValues(strings.ToLower(m.config.WALCheckpointMode)).Inc()
	m.log.Debugf("WAL checkpoint complete - busy: %d, log_frames: %d, checkpointed: %d",
		busy, logFrames, checkpointed)

	return nil
}

// AcquireOperationLock takes the shared side of the maintenance lock.
func (m *SQLiteMaintenance) AcquireOperationLock() func() {
	m.opLock.RLock()
	return m.opLock.RUnlock
}

// GetMetrics returns current maintenance metrics.
func (m *SQLiteMaintenance) GetMetrics() MaintenanceMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Vacuum rebuilds the database file to reclaim free pages.
func Vacuum(db *sql.DB) error {
	if _, err := db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum failed: %w", err)
	}
	return nil
}

// DBTotalSize returns the combined size of the database file and its -wal and -shm companions.
// Missing files count as zero.
func DBTotalSize(dbPath string) (int64, error) {
	var total int64
	for _, p := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}

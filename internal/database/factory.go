package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// DatabaseFactory creates and configures database components
type DatabaseFactory struct {
	manager        *Manager
	transactionMgr *TransactionManager
	migrationMgr   *MigrationManager
	logger         logrus.FieldLogger
}

// NewDatabaseFactory opens driver/dsn and wires the managers around it
func NewDatabaseFactory(driver, dsn string, logger logrus.FieldLogger) (*DatabaseFactory, error) {
	config := DefaultConfig()
	config.Driver = driver
	config.DSN = dsn

	manager, err := NewManager(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}

	return &DatabaseFactory{
		manager:        manager,
		transactionMgr: NewTransactionManager(manager, logger),
		migrationMgr:   NewMigrationManager(manager, logger),
		logger:         logger,
	}, nil
}

// Initialize runs database migrations and validates their checksums
func (df *DatabaseFactory) Initialize(ctx context.Context) error {
	if err := df.migrationMgr.RunMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	if err := df.migrationMgr.ValidateMigrations(ctx); err != nil {
		return fmt.Errorf("migration validation failed: %w", err)
	}

	return nil
}

// GetManager returns the database manager
func (df *DatabaseFactory) GetManager() DatabaseManager {
	return df.manager
}

// GetTransactionManager returns the transaction manager
func (df *DatabaseFactory) GetTransactionManager() TransactionExecutor {
	return df.transactionMgr
}

// GetMigrationManager returns the migration manager
func (df *DatabaseFactory) GetMigrationManager() MigrationExecutor {
	return df.migrationMgr
}

// Close closes the database factory and all its resources
func (df *DatabaseFactory) Close() error {
	return df.manager.Close()
}

// GetMetrics returns database performance metrics
func (df *DatabaseFactory) GetMetrics() DatabaseMetrics {
	queryStats := df.manager.GetQueryStats()

	var total int64
	for _, stat := range queryStats {
		total += stat.Count
	}

	return DatabaseMetrics{
		Driver:       df.manager.Driver(),
		QueryStats:   queryStats,
		QueryCount:   len(queryStats),
		TotalQueries: total,
	}
}

// DatabaseMetrics holds database performance metrics
type DatabaseMetrics struct {
	Driver       string                 `json:"driver"`
	QueryStats   map[string]*QueryStats `json:"query_stats"`
	QueryCount   int                    `json:"query_count"`
	TotalQueries int64                  `json:"total_queries"`
}

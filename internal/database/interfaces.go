package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// DatabaseManager defines the interface for centralized database access
type DatabaseManager interface {
	Execute(ctx context.Context, queryName string, args ...any) (sql.Result, error)
	Query(ctx context.Context, queryName string, args ...any) (*sql.Rows, error)

	Transaction(ctx context.Context, fn func(*sql.Tx) error) error

	GetQuery(name string) (string, error)
	ListQueries() []string

	IsHealthy() bool
	GetQueryStats() map[string]*QueryStats

	Close() error
	GetConnection() *sql.DB
}

// TransactionExecutor defines the interface for transaction operations
type TransactionExecutor interface {
	ExecuteWithRetry(ctx context.Context, options *TxOptions, fn func(*sql.Tx) error) error
}

// MigrationExecutor defines the interface for database migrations
type MigrationExecutor interface {
	RunMigrations(ctx context.Context) error
	RollbackMigration(ctx context.Context) error
	GetMigrationStatus(ctx context.Context) ([]MigrationStatus, error)
	ValidateMigrations(ctx context.Context) error
	GetCurrentVersion(ctx context.Context) (int, error)
}

// RunRepositoryInterface stores analysed runs and re-reads them
type RunRepositoryInterface interface {
	SaveRun(ctx context.Context, run *RunEntity, tables *RunTables) error
	GetRun(ctx context.Context, id string) (*RunEntity, error)
	ListRuns(ctx context.Context) ([]*RunEntity, error)
	StoredPDR(ctx context.Context, runID string) ([]types.NodePDR, error)
	ArchivedPDR(ctx context.Context, runID string) ([]types.NodePDR, error)
	ArchivedDutyCycle(ctx context.Context, runID string) ([]types.NodeDutyCycle, error)
}

// RunEntity is one row of the runs table. Ratios that are undefined for
// the run are stored as NULL.
type RunEntity struct {
	ID         string          `json:"id"`
	LogFile    string          `json:"log_file"`
	Mode       string          `json:"mode"`
	Lines      int64           `json:"lines"`
	Skipped    int64           `json:"skipped"`
	OverallPDR sql.NullFloat64 `json:"overall_pdr"`
	MeanDC     sql.NullFloat64 `json:"mean_dc"`
	CreatedAt  time.Time       `json:"created_at"`
}

// RunTables carries the raw and reduced tables of one run
type RunTables struct {
	Sent      []types.SentRecord
	Recv      []types.RecvRecord
	Energy    []types.EnergySample
	PDR       []types.NodePDR
	DutyCycle []types.NodeDutyCycle
}

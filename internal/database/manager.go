package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

//go:embed queries/*.sql
var queryFiles embed.FS

// Supported drivers
const (
	DriverDuckDB = "duckdb"
	DriverSQLite = "sqlite3"
)

// Manager provides named-query access to the run archive. Writers are
// serialized because both embedded engines allow a single writer.
type Manager struct {
	db      *sql.DB
	logger  logrus.FieldLogger
	driver  string
	dsn     string
	queries map[string]string // immutable after NewManager

	mu           sync.RWMutex
	connectionMu sync.Mutex
	queryStats   map[string]*QueryStats
	statsMu      sync.RWMutex
	statsEnabled bool
}

// QueryStats tracks performance metrics for queries
type QueryStats struct {
	Count         int64
	TotalDuration time.Duration
	AvgDuration   time.Duration
	LastExecuted  time.Time
	ErrorCount    int64
}

// Config holds database manager configuration
type Config struct {
	Driver      string
	DSN         string
	PingTimeout time.Duration
	BusyTimeout time.Duration // sqlite3 only
	EnableStats bool
}

// DefaultConfig returns the configuration of an in-memory DuckDB archive
func DefaultConfig() *Config {
	return &Config{
		Driver:      DriverDuckDB,
		PingTimeout: 5 * time.Second,
		BusyTimeout: 5 * time.Second,
		EnableStats: true,
	}
}

// NewManager opens the archive and loads the embedded named queries
func NewManager(config *Config, logger logrus.FieldLogger) (*Manager, error) {
	if config == nil {
		config = DefaultConfig()
	}

	manager := &Manager{
		driver:     config.Driver,
		dsn:        config.DSN,
		logger:     logger,
		queries:    make(map[string]string),
		queryStats: make(map[string]*QueryStats),

		statsEnabled: config.EnableStats,
	}

	if err := manager.loadQueries(); err != nil {
		return nil, fmt.Errorf("failed to load queries: %w", err)
	}

	if err := manager.connect(config); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	manager.logger.WithField("driver", manager.driver).Debug("Database manager initialized")
	return manager, nil
}

// dataSource builds the driver specific connection string
func dataSource(config *Config) (string, error) {
	switch config.Driver {
	case DriverDuckDB:
		if config.DSN == ":memory:" {
			return "", nil
		}
		return config.DSN, nil
	case DriverSQLite:
		dsn := config.DSN
		if dsn == "" {
			dsn = ":memory:"
		}
		if strings.Contains(dsn, "?") {
			return dsn, nil
		}
		return fmt.Sprintf("%s?_foreign_keys=1&_busy_timeout=%d", dsn, config.BusyTimeout.Milliseconds()), nil
	default:
		return "", fmt.Errorf("unsupported driver %q", config.Driver)
	}
}

// connect establishes the database connection
func (m *Manager) connect(config *Config) error {
	m.connectionMu.Lock()
	defer m.connectionMu.Unlock()

	connStr, err := dataSource(config)
	if err != nil {
		return err
	}

	db, err := sql.Open(config.Driver, connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// one connection keeps in-memory databases alive and shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	timeout := config.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	m.db = db
	m.logger.WithFields(logrus.Fields{
		"driver": config.Driver,
		"dsn":    config.DSN,
	}).Debug("Database connection established")
	return nil
}

// loadQueries loads all SQL queries from embedded files
func (m *Manager) loadQueries() error {
	entries, err := queryFiles.ReadDir("queries")
	if err != nil {
		return fmt.Errorf("failed to read queries directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !entry.Type().IsRegular() {
			continue
		}

		filename := entry.Name()
		content, err := queryFiles.ReadFile("queries/" + filename)
		if err != nil {
			return fmt.Errorf("failed to read query file %s: %w", filename, err)
		}

		if err := m.parseQueryFile(filename, string(content)); err != nil {
			return fmt.Errorf("failed to parse query file %s: %w", filename, err)
		}
	}

	m.logger.WithField("query_count", len(m.queries)).Debug("SQL queries loaded")
	return nil
}

// parseQueryFile extracts named queries from SQL content
func (m *Manager) parseQueryFile(filename, content string) error {
	for name, query := range parseNamedQueries(content) {
		if !validateQueryName(name) {
			return fmt.Errorf("invalid query name '%s' in file %s", name, filename)
		}
		if _, exists := m.queries[name]; exists {
			return fmt.Errorf("duplicate query name '%s' in file %s", name, filename)
		}
		m.queries[name] = query
	}
	return nil
}

// GetQuery retrieves a named query. It is safe to call inside Transaction.
func (m *Manager) GetQuery(name string) (string, error) {
	query, exists := m.queries[name]
	if !exists {
		return "", fmt.Errorf("query '%s' not found", name)
	}
	return query, nil
}

// Driver returns the name of the SQL driver in use
func (m *Manager) Driver() string {
	return m.driver
}

// Execute runs a named query with parameters and returns the result
func (m *Manager) Execute(ctx context.Context, queryName string, args ...any) (sql.Result, error) {
	start := time.Now()

	query, err := m.GetQuery(queryName)
	if err != nil {
		m.recordQueryStats(queryName, time.Since(start), err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result, err := m.db.ExecContext(ctx, query, args...)
	m.recordQueryStats(queryName, time.Since(start), err)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"query":    queryName,
			"error":    err.Error(),
			"duration": time.Since(start),
		}).Error("Query execution failed")
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"query":    queryName,
		"duration": time.Since(start),
	}).Debug("Query executed successfully")

	return result, nil
}

// Query runs a named query and returns rows. The caller must close them
// before issuing the next statement.
func (m *Manager) Query(ctx context.Context, queryName string, args ...any) (*sql.Rows, error) {
	start := time.Now()

	query, err := m.GetQuery(queryName)
	if err != nil {
		m.recordQueryStats(queryName, time.Since(start), err)
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.QueryContext(ctx, query, args...)
	m.recordQueryStats(queryName, time.Since(start), err)
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"query":    queryName,
			"error":    err.Error(),
			"duration": time.Since(start),
		}).Error("Query failed")
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"query":    queryName,
		"duration": time.Since(start),
	}).Debug("Query executed successfully")

	return rows, nil
}

// Transaction provides a database transaction with proper cleanup
func (m *Manager) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			m.logger.WithError(rbErr).Error("Failed to rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// recordQueryStats tracks query performance metrics
func (m *Manager) recordQueryStats(queryName string, duration time.Duration, err error) {
	if !m.statsEnabled {
		return
	}
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	stats, exists := m.queryStats[queryName]
	if !exists {
		stats = &QueryStats{}
		m.queryStats[queryName] = stats
	}

	stats.Count++
	stats.TotalDuration += duration
	stats.AvgDuration = stats.TotalDuration / time.Duration(stats.Count)
	stats.LastExecuted = time.Now()

	if err != nil {
		stats.ErrorCount++
	}
}

// GetQueryStats returns a copy of the per-query statistics
func (m *Manager) GetQueryStats() map[string]*QueryStats {
	m.statsMu.RLock()
	defer m.statsMu.RUnlock()

	stats := make(map[string]*QueryStats, len(m.queryStats))
	for name, stat := range m.queryStats {
		s := *stat
		stats[name] = &s
	}
	return stats
}

// IsHealthy pings the database
func (m *Manager) IsHealthy() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.db.PingContext(ctx) == nil
}

// Close closes the database connection
func (m *Manager) Close() error {
	m.connectionMu.Lock()
	defer m.connectionMu.Unlock()

	if m.db != nil {
		err := m.db.Close()
		m.db = nil
		m.logger.Debug("Database connection closed")
		return err
	}
	return nil
}

// GetConnection returns the underlying database connection (use with caution)
func (m *Manager) GetConnection() *sql.DB {
	return m.db
}

// ListQueries returns all available query names, sorted
func (m *Manager) ListQueries() []string {
	queries := make([]string, 0, len(m.queries))
	for name := range m.queries {
		queries = append(queries, name)
	}
	sort.Strings(queries)
	return queries
}

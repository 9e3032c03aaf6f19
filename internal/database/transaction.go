package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// TransactionManager runs transactions with retries on lock contention
type TransactionManager struct {
	manager *Manager
	logger  logrus.FieldLogger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(manager *Manager, logger logrus.FieldLogger) *TransactionManager {
	return &TransactionManager{
		manager: manager,
		logger:  logger,
	}
}

// TxOptions configures transaction behavior
type TxOptions struct {
	RetryCount int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultTxOptions returns the options used for archiving a run
func DefaultTxOptions() *TxOptions {
	return &TxOptions{
		RetryCount: 3,
		RetryDelay: 100 * time.Millisecond,
		Timeout:    5 * time.Minute,
	}
}

// ExecuteWithRetry executes a function within a transaction with retry logic
func (tm *TransactionManager) ExecuteWithRetry(ctx context.Context, options *TxOptions, fn func(*sql.Tx) error) error {
	if options == nil {
		options = DefaultTxOptions()
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; attempt <= options.RetryCount; attempt++ {
		if attempt > 0 {
			tm.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   lastErr.Error(),
			}).Warn("Retrying transaction")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(options.RetryDelay):
			}
		}

		err := tm.manager.Transaction(ctx, fn)
		if err == nil {
			if attempt > 0 {
				tm.logger.WithField("attempt", attempt).Info("Transaction succeeded after retry")
			}
			return nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return err
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	tm.logger.WithFields(logrus.Fields{
		"attempts": options.RetryCount + 1,
		"error":    lastErr.Error(),
	}).Error("Transaction failed after all retries")

	return fmt.Errorf("transaction failed after %d attempts: %w", options.RetryCount+1, lastErr)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errorStr := strings.ToLower(err.Error())

	retryablePatterns := []string{
		"database is locked",
		"database table is locked",
		"could not set lock on file",
		"conflict on tuple",
		"temporary failure",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errorStr, pattern) {
			return true
		}
	}

	return false
}

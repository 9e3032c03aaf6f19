package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/database"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// ErrRunNotFound is returned when no run has the requested id
var ErrRunNotFound = errors.New("run not found")

// RunRepository implements database.RunRepositoryInterface
type RunRepository struct {
	dbManager database.DatabaseManager
	txManager database.TransactionExecutor
	logger    logrus.FieldLogger
}

// NewRunRepository creates a new RunRepository
func NewRunRepository(dbManager database.DatabaseManager, txManager database.TransactionExecutor, logger logrus.FieldLogger) *RunRepository {
	return &RunRepository{
		dbManager: dbManager,
		txManager: txManager,
		logger:    logger,
	}
}

// nullable maps NaN to NULL
func nullable(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

// orNaN maps NULL back to NaN
func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// SaveRun stores the run row together with all of its tables in one
// transaction
func (r *RunRepository) SaveRun(ctx context.Context, run *database.RunEntity, tables *database.RunTables) error {
	if tables == nil {
		tables = &database.RunTables{}
	}

	err := r.txManager.ExecuteWithRetry(ctx, nil, func(tx *sql.Tx) error {
		err := r.insertRows(ctx, tx, "InsertRun", 1, func(int) []any {
			return []any{run.ID, run.LogFile, run.Mode, run.Lines, run.Skipped, run.OverallPDR, run.MeanDC, run.CreatedAt}
		})
		if err != nil {
			return err
		}

		err = r.insertRows(ctx, tx, "InsertSentRecord", len(tables.Sent), func(i int) []any {
			s := tables.Sent[i]
			return []any{run.ID, i, string(s.TimeSent), int(s.Dest), int(s.Src), s.Seqn, s.Status}
		})
		if err != nil {
			return err
		}

		err = r.insertRows(ctx, tx, "InsertRecvRecord", len(tables.Recv), func(i int) []any {
			s := tables.Recv[i]
			return []any{run.ID, i, string(s.TimeRecv), int(s.Dest), int(s.Src), s.Seqn, s.Hops}
		})
		if err != nil {
			return err
		}

		err = r.insertRows(ctx, tx, "InsertEnergySample", len(tables.Energy), func(i int) []any {
			s := tables.Energy[i]
			return []any{run.ID, i, string(s.Time), int(s.Node),
				int64(s.Cnt), int64(s.CPU), int64(s.LPM), int64(s.TX), int64(s.RX)}
		})
		if err != nil {
			return err
		}

		err = r.insertRows(ctx, tx, "InsertNodePDR", len(tables.PDR), func(i int) []any {
			n := tables.PDR[i]
			return []any{run.ID, int(n.Node), n.SentTrials, n.Sent, n.Recv, nullable(n.PDR)}
		})
		if err != nil {
			return err
		}

		return r.insertRows(ctx, tx, "InsertNodeDutyCycle", len(tables.DutyCycle), func(i int) []any {
			n := tables.DutyCycle[i]
			return []any{run.ID, int(n.Node), int64(n.TotalTime), int64(n.RadioTime), nullable(n.DC)}
		})
	})
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	r.logger.WithFields(logrus.Fields{
		"run_id": run.ID,
		"sent":   len(tables.Sent),
		"recv":   len(tables.Recv),
		"energy": len(tables.Energy),
	}).Debug("Run archived")
	return nil
}

// insertRows prepares queryName once and executes it for n argument rows
func (r *RunRepository) insertRows(ctx context.Context, tx *sql.Tx, queryName string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}

	query, err := r.dbManager.GetQuery(queryName)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare %s: %w", queryName, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("failed to execute %s row %d: %w", queryName, i, err)
		}
	}
	return nil
}

func scanRun(row interface{ Scan(...any) error }) (*database.RunEntity, error) {
	var run database.RunEntity
	err := row.Scan(&run.ID, &run.LogFile, &run.Mode, &run.Lines, &run.Skipped, &run.OverallPDR, &run.MeanDC, &run.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun retrieves a run by ID
func (r *RunRepository) GetRun(ctx context.Context, id string) (*database.RunEntity, error) {
	rows, err := r.dbManager.Query(ctx, "GetRun", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get run: %w", err)
		}
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	run, err := scanRun(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves every archived run, oldest first
func (r *RunRepository) ListRuns(ctx context.Context) ([]*database.RunEntity, error) {
	rows, err := r.dbManager.Query(ctx, "ListRuns")
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*database.RunEntity
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// StoredPDR returns the per-node table as it was computed at analysis time
func (r *RunRepository) StoredPDR(ctx context.Context, runID string) ([]types.NodePDR, error) {
	rows, err := r.dbManager.Query(ctx, "StoredPDR", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to read stored pdr: %w", err)
	}
	defer rows.Close()

	var nodes []types.NodePDR
	for rows.Next() {
		var node, trials, sent, recv int64
		var pdr sql.NullFloat64
		if err := rows.Scan(&node, &trials, &sent, &recv, &pdr); err != nil {
			return nil, fmt.Errorf("failed to scan stored pdr: %w", err)
		}
		nodes = append(nodes, types.NodePDR{
			Node:       types.NodeID(node),
			SentTrials: int(trials),
			Sent:       int(sent),
			Recv:       int(recv),
			PDR:        orNaN(pdr),
		})
	}
	return nodes, rows.Err()
}

// ArchivedPDR recomputes the per-node PDR table from the raw sent and recv
// rows in SQL. The result matches stats.ComputePDR for the same tables.
func (r *RunRepository) ArchivedPDR(ctx context.Context, runID string) ([]types.NodePDR, error) {
	rows, err := r.dbManager.Query(ctx, "ArchivedPDR", runID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute pdr: %w", err)
	}
	defer rows.Close()

	var nodes []types.NodePDR
	for rows.Next() {
		var node, trials, sent, recv int64
		if err := rows.Scan(&node, &trials, &sent, &recv); err != nil {
			return nil, fmt.Errorf("failed to scan pdr: %w", err)
		}
		n := types.NodePDR{
			Node:       types.NodeID(node),
			SentTrials: int(trials),
			Sent:       int(sent),
			Recv:       int(recv),
			PDR:        math.NaN(),
		}
		if n.Sent > 0 {
			n.PDR = 100 * float64(n.Recv) / float64(n.Sent)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ArchivedDutyCycle recomputes per-node duty cycles from the raw energest
// samples, skipping the warm-up reports
func (r *RunRepository) ArchivedDutyCycle(ctx context.Context, runID string) ([]types.NodeDutyCycle, error) {
	rows, err := r.dbManager.Query(ctx, "ArchivedDutyCycle", runID)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute duty cycle: %w", err)
	}
	defer rows.Close()

	var nodes []types.NodeDutyCycle
	for rows.Next() {
		var node, total, radio int64
		if err := rows.Scan(&node, &total, &radio); err != nil {
			return nil, fmt.Errorf("failed to scan duty cycle: %w", err)
		}
		n := types.NodeDutyCycle{
			Node:      types.NodeID(node),
			TotalTime: uint64(total),
			RadioTime: uint64(radio),
			DC:        math.NaN(),
		}
		if total > 0 {
			n.DC = 100 * float64(radio) / float64(total)
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

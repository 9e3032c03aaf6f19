package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/database"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

func nullFloat(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: !math.IsNaN(v)}
}

// archive stores the run and checks the SQL recomputation of the PDR table
// against the in-memory one
func (p *Pipeline) archive(ctx context.Context, report *Report, sent []types.SentRecord, recv []types.RecvRecord,
	energy []types.EnergySample, logger logrus.FieldLogger) error {
	run := &database.RunEntity{
		ID:         report.RunID,
		LogFile:    report.LogFile,
		Mode:       report.Mode.String(),
		Lines:      int64(report.Collected.Lines),
		Skipped:    int64(report.Collected.Skipped),
		OverallPDR: nullFloat(report.PDR.Summary.PDR),
		MeanDC:     nullFloat(report.DutyCycle.Stats.Mean),
		CreatedAt:  p.now().UTC(),
	}

	err := p.c.Runs.SaveRun(ctx, run, &database.RunTables{
		Sent:      sent,
		Recv:      recv,
		Energy:    energy,
		PDR:       report.PDR.Nodes,
		DutyCycle: report.DutyCycle.Nodes,
	})
	if err != nil {
		return fmt.Errorf("failed to archive run: %w", err)
	}

	archived, err := p.c.Runs.ArchivedPDR(ctx, run.ID)
	if err != nil {
		return fmt.Errorf("failed to verify archived run: %w", err)
	}
	if mismatch := comparePDR(report.PDR.Nodes, archived); mismatch != "" {
		logger.WithField("mismatch", mismatch).Warn("Archived PDR differs from computed PDR")
	}

	logger.WithField("driver", p.c.Config.Archive.Driver).Info("Run archived")
	return nil
}

// comparePDR returns a description of the first difference in the counters
// of two PDR tables, or "" when they agree
func comparePDR(want, got []types.NodePDR) string {
	if len(want) != len(got) {
		return fmt.Sprintf("%d nodes computed, %d archived", len(want), len(got))
	}
	for i := range want {
		w, g := want[i], got[i]
		if w.Node != g.Node || w.SentTrials != g.SentTrials || w.Sent != g.Sent || w.Recv != g.Recv {
			return fmt.Sprintf("node %d: computed %d/%d/%d, archived node %d %d/%d/%d",
				w.Node, w.SentTrials, w.Sent, w.Recv, g.Node, g.SentTrials, g.Sent, g.Recv)
		}
	}
	return ""
}

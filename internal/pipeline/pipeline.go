// Package pipeline runs one analysis of an experiment log from parsing to
// the result tables and console report.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/container"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/logparse"
	"github.com/sebinsphilip/LowPowerWN-IOT/internal/stats"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Report describes what one run produced
type Report struct {
	RunID     string
	LogFile   string
	Mode      types.Mode
	Tables    logparse.TablePaths
	Collected *logparse.Result
	PDR       *stats.PDRResult
	DutyCycle *stats.DutyCycleResult

	// Outputs lists every file written besides the three raw tables
	Outputs []string
}

// Pipeline drives a container through one log file
type Pipeline struct {
	c   *container.Container
	out io.Writer
	now func() time.Time
}

// New creates a pipeline printing its console report to out
func New(c *container.Container, out io.Writer) *Pipeline {
	return &Pipeline{c: c, out: out, now: time.Now}
}

// ValidateInput checks that logPath names an existing regular file
func ValidateInput(logPath string) error {
	info, err := os.Stat(logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &types.InputError{Path: logPath, Reason: "does not exist"}
		}
		return &types.InputError{Path: logPath, Reason: "cannot be accessed", WrappedErr: err}
	}
	if !info.Mode().IsRegular() {
		return &types.InputError{Path: logPath, Reason: "is not a regular file"}
	}
	return nil
}

// Run parses logPath, writes the raw and result tables next to it, prints
// the console report and produces the optional outputs.
func (p *Pipeline) Run(ctx context.Context, logPath string) (*Report, error) {
	if err := ValidateInput(logPath); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:   uuid.NewString(),
		LogFile: logPath,
		Mode:    p.c.Mode,
	}
	logger := p.c.Logger.WithFields(logrus.Fields{
		"run_id": report.RunID,
		"log":    logPath,
	})

	tables, collected, err := p.c.Collector.CollectFile(ctx, logPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log: %w", err)
	}
	report.Tables = tables
	report.Collected = collected

	stats.PrintNoDataWarnings(p.out, collected.NodesWithoutData())

	sent, err := logparse.ReadSentFile(tables.Sent)
	if err != nil {
		return nil, err
	}
	recv, err := logparse.ReadRecvFile(tables.Recv)
	if err != nil {
		return nil, err
	}
	energy, err := logparse.ReadEnergyFile(tables.Energest)
	if err != nil {
		return nil, err
	}

	report.PDR = stats.ComputePDR(sent, recv)
	pdrPath := stats.PDRPath(tables.Sent)
	if err := stats.WritePDRFile(pdrPath, report.PDR.Nodes); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", pdrPath, err)
	}
	report.Outputs = append(report.Outputs, pdrPath)

	report.DutyCycle = stats.ComputeDutyCycle(energy)
	dcPath := stats.DutyCyclePath(tables.Energest)
	if err := stats.WriteDutyCycleFile(dcPath, report.DutyCycle.NonSink()); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dcPath, err)
	}
	report.Outputs = append(report.Outputs, dcPath)

	stats.PrintPDR(p.out, report.PDR)
	stats.PrintDutyCycle(p.out, report.DutyCycle)

	if p.c.Exporter != nil {
		if err := p.exportParquet(report); err != nil {
			return nil, err
		}
	}

	if p.c.Config.Output.Summary {
		path := SummaryPath(tables.Sent)
		if err := WriteSummaryFile(path, NewSummary(report, p.now())); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		report.Outputs = append(report.Outputs, path)
	}

	if p.c.Runs != nil {
		if err := p.archive(ctx, report, sent, recv, energy, logger); err != nil {
			return nil, err
		}
	}

	logger.WithFields(logrus.Fields{
		"nodes":       len(report.PDR.Nodes),
		"overall_pdr": stats.FormatFloat(report.PDR.Summary.PDR, 2),
		"mean_dc":     stats.FormatFloat(report.DutyCycle.Stats.Mean, 3),
	}).Info("Analysis complete")
	return report, nil
}

func (p *Pipeline) exportParquet(report *Report) error {
	pdrPath := logparse.SiblingPath(report.Tables.Sent, "-sent", "-pdr", ".parquet")
	if err := p.c.Exporter.WritePDR(pdrPath, report.PDR.Nodes); err != nil {
		return fmt.Errorf("failed to export %s: %w", pdrPath, err)
	}

	dcPath := logparse.SiblingPath(report.Tables.Energest, "-energest", "-dc", ".parquet")
	if err := p.c.Exporter.WriteDutyCycle(dcPath, report.DutyCycle.NonSink()); err != nil {
		return fmt.Errorf("failed to export %s: %w", dcPath, err)
	}

	report.Outputs = append(report.Outputs, pdrPath, dcPath)
	return nil
}

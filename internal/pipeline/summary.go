package pipeline

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/logparse"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Summary is the machine-readable digest of a run. Undefined ratios are
// encoded as null.
type Summary struct {
	RunID       string    `json:"run_id"`
	LogFile     string    `json:"log_file"`
	Mode        string    `json:"mode"`
	GeneratedAt time.Time `json:"generated_at"`

	Collector CollectorSummary `json:"collector"`
	PDR       PDRSummary       `json:"pdr"`
	DutyCycle DutyCycleSummary `json:"duty_cycle"`
}

// CollectorSummary counts what the parsing pass saw
type CollectorSummary struct {
	Lines            int            `json:"lines"`
	RecvRows         int            `json:"recv_rows"`
	SentRows         int            `json:"sent_rows"`
	EnergyRows       int            `json:"energy_rows"`
	Skipped          int            `json:"skipped"`
	NodesWithoutData []types.NodeID `json:"nodes_without_data"`
}

type PDRSummary struct {
	SentTrials int       `json:"sent_trials"`
	Sent       int       `json:"sent"`
	Recv       int       `json:"recv"`
	Lost       int       `json:"lost"`
	PDR        *float64  `json:"pdr"`
	MinSeqn    int       `json:"min_seqn"`
	MaxSeqn    int       `json:"max_seqn"`
	Nodes      []NodePDR `json:"nodes"`
}

type NodePDR struct {
	Node       types.NodeID `json:"node"`
	SentTrials int          `json:"sent_trials"`
	Sent       int          `json:"sent"`
	Recv       int          `json:"recv"`
	PDR        *float64     `json:"pdr"`
}

type DutyCycleSummary struct {
	Nodes   int             `json:"nodes"`
	Mean    *float64        `json:"mean"`
	StdDev  *float64        `json:"stddev"`
	Min     *float64        `json:"min"`
	Max     *float64        `json:"max"`
	PerNode []NodeDutyCycle `json:"per_node"`
}

type NodeDutyCycle struct {
	Node types.NodeID `json:"node"`
	DC   *float64     `json:"dc"`
}

// finite returns nil for NaN and infinities, which JSON cannot encode
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// NewSummary builds the digest of a finished report
func NewSummary(r *Report, at time.Time) *Summary {
	s := &Summary{
		RunID:       r.RunID,
		LogFile:     r.LogFile,
		Mode:        r.Mode.String(),
		GeneratedAt: at.UTC(),
	}

	if c := r.Collected; c != nil {
		s.Collector = CollectorSummary{
			Lines:            c.Lines,
			RecvRows:         c.RecvRows,
			SentRows:         c.SentRows,
			EnergyRows:       c.EnergyRows,
			Skipped:          c.Skipped,
			NodesWithoutData: c.NodesWithoutData(),
		}
	}
	if s.Collector.NodesWithoutData == nil {
		s.Collector.NodesWithoutData = []types.NodeID{}
	}

	if r.PDR != nil {
		sum := r.PDR.Summary
		s.PDR = PDRSummary{
			SentTrials: sum.SentTrials,
			Sent:       sum.Sent,
			Recv:       sum.Recv,
			Lost:       sum.Lost,
			PDR:        finite(sum.PDR),
			MinSeqn:    r.PDR.MinSeqn,
			MaxSeqn:    r.PDR.MaxSeqn,
			Nodes:      make([]NodePDR, 0, len(r.PDR.Nodes)),
		}
		for _, n := range r.PDR.Nodes {
			s.PDR.Nodes = append(s.PDR.Nodes, NodePDR{
				Node:       n.Node,
				SentTrials: n.SentTrials,
				Sent:       n.Sent,
				Recv:       n.Recv,
				PDR:        finite(n.PDR),
			})
		}
	}

	if r.DutyCycle != nil {
		st := r.DutyCycle.Stats
		s.DutyCycle = DutyCycleSummary{
			Nodes:   st.Nodes,
			Mean:    finite(st.Mean),
			StdDev:  finite(st.StdDev),
			Min:     finite(st.Min),
			Max:     finite(st.Max),
			PerNode: make([]NodeDutyCycle, 0, len(r.DutyCycle.Nodes)),
		}
		for _, n := range r.DutyCycle.Nodes {
			s.DutyCycle.PerNode = append(s.DutyCycle.PerNode, NodeDutyCycle{Node: n.Node, DC: finite(n.DC)})
		}
	}

	return s
}

// SummaryPath derives the summary path from the sent table path
func SummaryPath(sentPath string) string {
	return logparse.SiblingPath(sentPath, "-sent", "-summary", ".json")
}

// WriteSummaryFile writes s as indented JSON
func WriteSummaryFile(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

package stats

import (
	"io"
	"sort"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/logparse"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// DutyCycleHeader is the column order of the duty-cycle table
var DutyCycleHeader = []string{"node", "dc"}

// reports numbered below warmupReports are discarded
const warmupReports = 2

// DutyCycleResult is the outcome of ComputeDutyCycle
type DutyCycleResult struct {
	Nodes []types.NodeDutyCycle // every reporting node, ascending
	Stats types.DutyCycleStats  // over non-sink nodes only
}

// NonSink returns the nodes other than the sink
func (r *DutyCycleResult) NonSink() []types.NodeDutyCycle {
	out := make([]types.NodeDutyCycle, 0, len(r.Nodes))
	for _, n := range r.Nodes {
		if n.Node > types.SinkID {
			out = append(out, n)
		}
	}
	return out
}

// ComputeDutyCycle returns the percentage of time each node kept its radio
// on. The first two reports (cnt 0 and 1) are dropped because the counters
// have not settled yet.
func ComputeDutyCycle(samples []types.EnergySample) *DutyCycleResult {
	acc := make(map[types.NodeID]*types.NodeDutyCycle)
	for _, s := range samples {
		if s.Cnt < warmupReports {
			continue
		}
		n, ok := acc[s.Node]
		if !ok {
			n = &types.NodeDutyCycle{Node: s.Node}
			acc[s.Node] = n
		}
		n.TotalTime += s.CPU + s.LPM
		n.RadioTime += s.TX + s.RX
	}

	res := &DutyCycleResult{Nodes: make([]types.NodeDutyCycle, 0, len(acc))}
	for _, n := range acc {
		n.DC = ratio(float64(n.RadioTime), float64(n.TotalTime))
		res.Nodes = append(res.Nodes, *n)
	}
	sort.Slice(res.Nodes, func(i, j int) bool { return res.Nodes[i].Node < res.Nodes[j].Node })

	nonSink := res.NonSink()
	dcs := make([]float64, len(nonSink))
	for i, n := range nonSink {
		dcs[i] = n.DC
	}
	res.Stats = types.DutyCycleStats{
		Nodes:  len(dcs),
		Mean:   MeanFloat64(dcs...),
		StdDev: StdDevFloat64(dcs...),
		Min:    MinFloat64(dcs...),
		Max:    MaxFloat64(dcs...),
	}
	return res
}

// DutyCyclePath derives the duty-cycle table path from the energest table path
func DutyCyclePath(energestPath string) string {
	return logparse.SiblingPath(energestPath, "-energest", "-dc", ".csv")
}

// WriteDutyCycle writes the per-node table
func WriteDutyCycle(w io.Writer, nodes []types.NodeDutyCycle) error {
	tw, err := logparse.NewTableWriter(w, DutyCycleHeader)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := tw.Write(FormatFloat(float64(n.Node), 3), FormatFloat(n.DC, 3)); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WriteDutyCycleFile creates path and writes the per-node table to it
func WriteDutyCycleFile(path string, nodes []types.NodeDutyCycle) error {
	return writeFile(path, func(w io.Writer) error { return WriteDutyCycle(w, nodes) })
}

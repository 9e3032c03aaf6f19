// Package stats reduces the collected tables into delivery and duty-cycle figures.
package stats

import (
	"io"
	"os"
	"sort"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/logparse"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// PDRHeader is the column order of the PDR table
var PDRHeader = []string{"node", "sent_trials", "sent", "recv", "pdr"}

// PDRResult is the outcome of ComputePDR
type PDRResult struct {
	Nodes   []types.NodePDR
	Summary types.PDRSummary

	// MinSeqn and MaxSeqn are the boundary sequence numbers that were
	// discarded. Both are zero when no packet was sent.
	MinSeqn int
	MaxSeqn int
}

// joined is one sent attempt with its delivery, if any
type joined struct {
	src       types.NodeID
	seqn      int
	status    int
	delivered bool
}

// ComputePDR joins sent attempts with deliveries and computes the delivery
// ratio of every source node. The first and last sequence numbers of the
// whole run are not counted: the first may predate some nodes' boot and the
// last may be cut off by the end of the experiment.
func ComputePDR(sent []types.SentRecord, recv []types.RecvRecord) *PDRResult {
	sent = dedupe(sent)
	recv = dedupe(recv)

	delivered := make(map[types.PacketKey]struct{}, len(recv))
	for _, r := range recv {
		delivered[r.Key()] = struct{}{}
	}

	rows := make([]joined, 0, len(sent))
	for _, s := range sent {
		_, ok := delivered[s.Key()]
		rows = append(rows, joined{src: s.Src, seqn: s.Seqn, status: s.Status, delivered: ok})
	}

	res := &PDRResult{}
	if len(rows) > 0 {
		res.MinSeqn, res.MaxSeqn = rows[0].seqn, rows[0].seqn
		for _, r := range rows[1:] {
			res.MinSeqn = min(res.MinSeqn, r.seqn)
			res.MaxSeqn = max(res.MaxSeqn, r.seqn)
		}
	}

	acc := make(map[types.NodeID]*types.NodePDR)
	for _, s := range sent {
		if _, ok := acc[s.Src]; !ok {
			acc[s.Src] = &types.NodePDR{Node: s.Src}
		}
	}

	for _, r := range rows {
		if r.seqn <= res.MinSeqn || r.seqn >= res.MaxSeqn {
			continue
		}
		n := acc[r.src]
		n.SentTrials++
		if r.status != 0 {
			n.Sent++
		}
		if r.delivered {
			n.Recv++
		}
	}

	res.Nodes = make([]types.NodePDR, 0, len(acc))
	for _, n := range acc {
		n.PDR = ratio(float64(n.Recv), float64(n.Sent))
		res.Nodes = append(res.Nodes, *n)
	}
	sort.Slice(res.Nodes, func(i, j int) bool { return res.Nodes[i].Node < res.Nodes[j].Node })

	for _, n := range res.Nodes {
		res.Summary.SentTrials += n.SentTrials
		res.Summary.Sent += n.Sent
		res.Summary.Recv += n.Recv
	}
	res.Summary.Lost = res.Summary.Sent - res.Summary.Recv
	res.Summary.PDR = ratio(float64(res.Summary.Recv), float64(res.Summary.Sent))

	return res
}

// dedupe keeps the first record of every packet key, preserving order
func dedupe[T interface{ Key() types.PacketKey }](rows []T) []T {
	seen := make(map[types.PacketKey]struct{}, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := r.Key()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PDRPath derives the PDR table path from the sent table path
func PDRPath(sentPath string) string {
	return logparse.SiblingPath(sentPath, "-sent", "-pdr", ".csv")
}

// WritePDR writes the per-node table. Every numeric column is rendered with
// three decimals.
func WritePDR(w io.Writer, nodes []types.NodePDR) error {
	tw, err := logparse.NewTableWriter(w, PDRHeader)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		err := tw.Write(
			FormatFloat(float64(n.Node), 3),
			FormatFloat(float64(n.SentTrials), 3),
			FormatFloat(float64(n.Sent), 3),
			FormatFloat(float64(n.Recv), 3),
			FormatFloat(n.PDR, 3),
		)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

// WritePDRFile creates path and writes the per-node table to it
func WritePDRFile(path string, nodes []types.NodePDR) error {
	return writeFile(path, func(w io.Writer) error { return WritePDR(w, nodes) })
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

package stats

import (
	"fmt"
	"io"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// PrintNoDataWarnings lists booted nodes that never sent anything
func PrintNoDataWarnings(w io.Writer, nodes []types.NodeID) {
	if len(nodes) == 0 {
		return
	}
	fmt.Fprintln(w, "----- WARNING -----")
	for _, id := range nodes {
		fmt.Fprintf(w, "Warning: node %d did not send any data.\n", id)
	}
	fmt.Fprintln(w)
}

// PrintPDR writes the per-node and overall delivery figures
func PrintPDR(w io.Writer, res *PDRResult) {
	fmt.Fprintln(w, "\n***** PDR *****")
	for _, n := range res.Nodes {
		fmt.Fprintf(w, "Node: %2d  Sent trials: %d Packet actually sent: %d "+
			"Packets Received: %d Packets lost: %d "+
			"PDR over packets sent: %s%% (%d/%d)\n",
			n.Node, n.SentTrials, n.Sent, n.Recv, n.Lost(), FormatFloat(n.PDR, 3), n.Recv, n.Sent)
	}

	s := res.Summary
	fmt.Fprintf(w, "Overall PDR over packets actually sent: %s%% (%d lost / %d sent)\n",
		FormatFloat(s.PDR, 2), s.Lost, s.Sent)
	fmt.Fprintf(w, "Sent trials: %d Packets actually sent: %d\n", s.SentTrials, s.Sent)
}

// PrintDutyCycle writes the duty cycle of every node and the statistics of
// the non-sink nodes
func PrintDutyCycle(w io.Writer, res *DutyCycleResult) {
	fmt.Fprintln(w, "\n----- Node Duty Cycle -----")
	for _, n := range res.Nodes {
		fmt.Fprintf(w, "Node: %d Duty Cycle: %s%%\n", n.Node, FormatFloat(n.DC, 3))
	}

	s := res.Stats
	fmt.Fprintln(w, "\n----- Duty Cycle Stats -----")
	fmt.Fprintf(w, "Average Duty Cycle: %s%%\n", FormatFloat(s.Mean, 3))
	fmt.Fprintf(w, "Standard Deviation: %s\n", FormatFloat(s.StdDev, 3))
	fmt.Fprintf(w, "Minimum: %s\n", FormatFloat(s.Min, 3))
	fmt.Fprintf(w, "Maximum: %s\n", FormatFloat(s.Max, 3))
}

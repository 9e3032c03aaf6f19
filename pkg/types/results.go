// pkg/types/results.go
package types

// NodePDR is one row of the per-node packet delivery table
type NodePDR struct {
	Node       NodeID  `json:"node"`
	SentTrials int     `json:"sent_trials"`
	Sent       int     `json:"sent"`
	Recv       int     `json:"recv"`
	PDR        float64 `json:"pdr"` // NaN when Sent is zero
}

// Lost is the number of transmitted packets that never arrived
func (n NodePDR) Lost() int {
	return n.Sent - n.Recv
}

// PDRSummary aggregates the per-node table
type PDRSummary struct {
	SentTrials int     `json:"sent_trials"`
	Sent       int     `json:"sent"`
	Recv       int     `json:"recv"`
	Lost       int     `json:"lost"`
	PDR        float64 `json:"pdr"`
}

// NodeDutyCycle is the radio-on percentage of one node
type NodeDutyCycle struct {
	Node      NodeID  `json:"node"`
	TotalTime uint64  `json:"total_ticks"`
	RadioTime uint64  `json:"radio_ticks"`
	DC        float64 `json:"dc"` // NaN when TotalTime is zero
}

// DutyCycleStats aggregates duty cycles across non-sink nodes
type DutyCycleStats struct {
	Nodes  int     `json:"nodes"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

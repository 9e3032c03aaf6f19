// pkg/types/records.go
package types

import (
	"fmt"
	"strings"
)

// NodeID identifies a sensor node in the network
type NodeID int

// SinkID is the data-collection sink every other node reports to
const SinkID NodeID = 1

// Mode selects the log dialect being parsed
type Mode int

const (
	// ModeSimulation parses Cooja simulation logs
	ModeSimulation Mode = iota
	// ModeTestbed parses Firefly testbed serial dumps
	ModeTestbed
)

func (m Mode) String() string {
	switch m {
	case ModeSimulation:
		return "simulation"
	case ModeTestbed:
		return "testbed"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode converts a mode name into a Mode
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "simulation", "cooja":
		return ModeSimulation, nil
	case "testbed", "firefly":
		return ModeTestbed, nil
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Timestamp is the rendered time column of a record. Simulation timestamps
// are kept verbatim; testbed timestamps hold Unix epoch seconds.
type Timestamp string

// PacketKey identifies one logical packet in the sent and recv tables
type PacketKey struct {
	Src  NodeID
	Dest NodeID
	Seqn int
}

// SentRecord is one transmission attempt. Status 0 means the packet could
// not be scheduled.
type SentRecord struct {
	TimeSent Timestamp `json:"time_sent"`
	Dest     NodeID    `json:"dest"`
	Src      NodeID    `json:"src"`
	Seqn     int       `json:"seqn"`
	Status   int       `json:"status"`
}

// Key returns the packet identity of the record
func (r SentRecord) Key() PacketKey {
	return PacketKey{Src: r.Src, Dest: r.Dest, Seqn: r.Seqn}
}

// RecvRecord is one delivery observed at the receiving node
type RecvRecord struct {
	TimeRecv Timestamp `json:"time_recv"`
	Dest     NodeID    `json:"dest"`
	Src      NodeID    `json:"src"`
	Seqn     int       `json:"seqn"`
	Hops     int       `json:"hops"`
}

// Key returns the packet identity of the record
func (r RecvRecord) Key() PacketKey {
	return PacketKey{Src: r.Src, Dest: r.Dest, Seqn: r.Seqn}
}

// EnergySample is one Energest report. Tick counters are cumulative since boot.
type EnergySample struct {
	Time Timestamp `json:"time"`
	Node NodeID    `json:"node"`
	Cnt  uint64    `json:"cnt"`
	CPU  uint64    `json:"cpu"`
	LPM  uint64    `json:"lpm"`
	TX   uint64    `json:"tx"`
	RX   uint64    `json:"rx"`
}

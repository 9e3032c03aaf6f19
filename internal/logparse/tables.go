package logparse

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Table headers, in column order
var (
	RecvHeader   = []string{"time_recv", "dest", "src", "seqn", "hops"}
	SentHeader   = []string{"time_sent", "dest", "src", "seqn", "status"}
	EnergyHeader = []string{"time", "node", "cnt", "cpu", "lpm", "tx", "rx"}
)

// TablePaths are the intermediate tables derived from one log file
type TablePaths struct {
	Recv     string
	Sent     string
	Energest string
}

// TablePathsFor places the tables next to logPath, named after its base name
func TablePathsFor(logPath string) TablePaths {
	dir, stem := splitStem(logPath)
	return TablePaths{
		Recv:     filepath.Join(dir, stem+"-recv.csv"),
		Sent:     filepath.Join(dir, stem+"-sent.csv"),
		Energest: filepath.Join(dir, stem+"-energest.csv"),
	}
}

// SiblingPath derives an output path from a table path by dropping the
// table suffix (e.g. "-sent") from its stem and appending suffix and ext.
func SiblingPath(tablePath, tableSuffix, suffix, ext string) string {
	dir, stem := splitStem(tablePath)
	if tableSuffix != "" {
		stem = strings.ReplaceAll(stem, tableSuffix, "")
	}
	return filepath.Join(dir, stem+suffix+ext)
}

func splitStem(path string) (dir, stem string) {
	base := filepath.Base(path)
	return filepath.Dir(path), strings.TrimSuffix(base, filepath.Ext(base))
}

// TableWriter writes one tab-separated table with a header row
type TableWriter struct {
	w    *csv.Writer
	rows int
}

// NewTableWriter writes the header immediately
func NewTableWriter(w io.Writer, header []string) (*TableWriter, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &TableWriter{w: cw}, nil
}

// Write appends one row
func (t *TableWriter) Write(fields ...string) error {
	if err := t.w.Write(fields); err != nil {
		return err
	}
	t.rows++
	return nil
}

// Rows returns the number of data rows written
func (t *TableWriter) Rows() int {
	return t.rows
}

// Flush writes buffered rows to the underlying writer
func (t *TableWriter) Flush() error {
	t.w.Flush()
	return t.w.Error()
}

func sentFields(r types.SentRecord) []string {
	return []string{string(r.TimeSent), itoa(int(r.Dest)), itoa(int(r.Src)), itoa(r.Seqn), itoa(r.Status)}
}

func recvFields(r types.RecvRecord) []string {
	return []string{string(r.TimeRecv), itoa(int(r.Dest)), itoa(int(r.Src)), itoa(r.Seqn), itoa(r.Hops)}
}

func energyFields(s types.EnergySample) []string {
	return []string{
		string(s.Time), itoa(int(s.Node)),
		utoa(s.Cnt), utoa(s.CPU), utoa(s.LPM), utoa(s.TX), utoa(s.RX),
	}
}

func itoa(v int) string    { return strconv.Itoa(v) }
func utoa(v uint64) string { return strconv.FormatUint(v, 10) }

// ReadSent decodes a sent table
func ReadSent(r io.Reader) ([]types.SentRecord, error) {
	var out []types.SentRecord
	err := readTable(r, "sent", SentHeader, func(rec []string) error {
		ints, err := atoiAll(rec[1:])
		if err != nil {
			return err
		}
		out = append(out, types.SentRecord{
			TimeSent: types.Timestamp(rec[0]),
			Dest:     types.NodeID(ints[0]),
			Src:      types.NodeID(ints[1]),
			Seqn:     ints[2],
			Status:   ints[3],
		})
		return nil
	})
	return out, err
}

// ReadRecv decodes a recv table
func ReadRecv(r io.Reader) ([]types.RecvRecord, error) {
	var out []types.RecvRecord
	err := readTable(r, "recv", RecvHeader, func(rec []string) error {
		ints, err := atoiAll(rec[1:])
		if err != nil {
			return err
		}
		out = append(out, types.RecvRecord{
			TimeRecv: types.Timestamp(rec[0]),
			Dest:     types.NodeID(ints[0]),
			Src:      types.NodeID(ints[1]),
			Seqn:     ints[2],
			Hops:     ints[3],
		})
		return nil
	})
	return out, err
}

// ReadEnergy decodes an energest table
func ReadEnergy(r io.Reader) ([]types.EnergySample, error) {
	var out []types.EnergySample
	err := readTable(r, "energest", EnergyHeader, func(rec []string) error {
		node, err := strconv.Atoi(rec[1])
		if err != nil {
			return fmt.Errorf("invalid node %q: %w", rec[1], err)
		}
		var counters [5]uint64
		for i, raw := range rec[2:] {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", EnergyHeader[i+2], raw, err)
			}
			counters[i] = v
		}
		out = append(out, types.EnergySample{
			Time: types.Timestamp(rec[0]),
			Node: types.NodeID(node),
			Cnt:  counters[0],
			CPU:  counters[1],
			LPM:  counters[2],
			TX:   counters[3],
			RX:   counters[4],
		})
		return nil
	})
	return out, err
}

// ReadSentFile opens and decodes a sent table
func ReadSentFile(path string) ([]types.SentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSent(f)
}

// ReadRecvFile opens and decodes a recv table
func ReadRecvFile(path string) ([]types.RecvRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecv(f)
}

// ReadEnergyFile opens and decodes an energest table
func ReadEnergyFile(path string) ([]types.EnergySample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadEnergy(f)
}

func readTable(r io.Reader, name string, header []string, row func([]string) error) error {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(header)
	cr.ReuseRecord = true

	first, err := cr.Read()
	if err == io.EOF {
		return &TableError{Table: name, Row: 0, WrappedErr: fmt.Errorf("missing header")}
	}
	if err != nil {
		return &TableError{Table: name, Row: 0, WrappedErr: err}
	}
	if strings.Join(first, "\t") != strings.Join(header, "\t") {
		return &TableError{Table: name, Row: 0, WrappedErr: fmt.Errorf("unexpected header %q", first)}
	}

	for n := 1; ; n++ {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return &TableError{Table: name, Row: n, WrappedErr: err}
		}
		if err := row(rec); err != nil {
			return &TableError{Table: name, Row: n, WrappedErr: err}
		}
	}
}

func atoiAll(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, raw := range fields {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: %w", raw, err)
		}
		out[i] = v
	}
	return out, nil
}

package logparse

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/addrmap"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

const (
	readBufferSize = 64 * 1024
	maxLineSize    = 1024 * 1024
	ctxCheckLines  = 4096
)

// lineReader returns the lines of a log one by one. Lines longer than
// maxLineSize are reported as overlong and their content dropped.
type lineReader struct {
	r   *bufio.Reader
	buf []byte
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

// next returns io.EOF once the input is exhausted
func (lr *lineReader) next() (line string, overlong bool, err error) {
	lr.buf = lr.buf[:0]
	for {
		chunk, isPrefix, err := lr.r.ReadLine()
		if err != nil {
			return "", false, err
		}
		if !overlong {
			if len(lr.buf)+len(chunk) > maxLineSize {
				overlong = true
				lr.buf = lr.buf[:0]
			} else {
				lr.buf = append(lr.buf, chunk...)
			}
		}
		if !isPrefix {
			return string(lr.buf), overlong, nil
		}
	}
}

// Sink receives the records recognised by the collector, in log order
type Sink interface {
	Recv(types.RecvRecord) error
	Sent(types.SentRecord) error
	Energy(types.EnergySample) error
}

// Result describes one pass over a log
type Result struct {
	Lines      int
	RecvRows   int
	SentRows   int
	EnergyRows int
	Skipped    int // events dropped because the source address was unknown

	booted   map[types.NodeID]struct{}
	sentSeqn map[types.NodeID]map[int]types.Timestamp
}

func newResult() *Result {
	return &Result{
		booted:   make(map[types.NodeID]struct{}),
		sentSeqn: make(map[types.NodeID]map[int]types.Timestamp),
	}
}

// BootedNodes returns the nodes that reported their boot, sorted
func (r *Result) BootedNodes() []types.NodeID {
	nodes := make([]types.NodeID, 0, len(r.booted))
	for id := range r.booted {
		nodes = append(nodes, id)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// SendTimes returns the seqn -> time map of a source node, last attempt wins
func (r *Result) SendTimes(node types.NodeID) map[int]types.Timestamp {
	return r.sentSeqn[node]
}

// NodesWithoutData returns booted nodes, other than the sink, that never
// logged a send attempt
func (r *Result) NodesWithoutData() []types.NodeID {
	var fails []types.NodeID
	for _, id := range r.BootedNodes() {
		if id == types.SinkID {
			continue
		}
		if _, ok := r.sentSeqn[id]; !ok {
			fails = append(fails, id)
		}
	}
	return fails
}

// Collector drives one pass of a Matcher over a log
type Collector struct {
	matcher Matcher
	logger  logrus.FieldLogger
}

// NewCollector creates a collector for the matcher's dialect
func NewCollector(matcher Matcher, logger logrus.FieldLogger) *Collector {
	return &Collector{
		matcher: matcher,
		logger:  logger.WithField("mode", matcher.Mode().String()),
	}
}

// Collect reads r line by line and forwards every recognised record to sink.
// Lines matching no pattern are ignored; events whose source address cannot
// be resolved are logged and skipped, and so are lines over 1 MiB. Any other
// parse error aborts.
func (c *Collector) Collect(ctx context.Context, r io.Reader, sink Sink) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := newResult()

	lines := newLineReader(r)
	for {
		text, overlong, err := lines.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read log: %w", err)
		}

		res.Lines++
		if res.Lines%ctxCheckLines == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if overlong {
			c.logger.WithField("line", res.Lines).Debug("Skipping overlong line")
			continue
		}

		ev, err := c.matcher.Match(strings.TrimRight(text, "\r"))
		if err != nil {
			if errors.Is(err, addrmap.ErrUnknownAddress) {
				res.Skipped++
				c.logger.WithFields(logrus.Fields{
					"line": res.Lines,
					"node": ev.Node,
				}).WithError(err).Warn("Skipping event from unknown address")
				continue
			}
			var perr *ParseError
			if errors.As(err, &perr) {
				perr.Line = res.Lines
			}
			return nil, err
		}

		if err := c.dispatch(ev, res, sink); err != nil {
			return nil, fmt.Errorf("line %d: %w", res.Lines, err)
		}
	}

	for _, id := range res.NodesWithoutData() {
		c.logger.WithField("node", id).Warn("Node did not send any data")
	}

	c.logger.WithFields(logrus.Fields{
		"lines":   res.Lines,
		"recv":    res.RecvRows,
		"sent":    res.SentRows,
		"energy":  res.EnergyRows,
		"skipped": res.Skipped,
		"booted":  len(res.booted),
	}).Info("Log parsed")

	return res, nil
}

func (c *Collector) dispatch(ev Event, res *Result, sink Sink) error {
	switch ev.Kind {
	case Boot:
		res.booted[ev.Node] = struct{}{}
	case Recv:
		if err := sink.Recv(ev.Recv); err != nil {
			return err
		}
		res.RecvRows++
	case Send, SendFailure:
		if err := sink.Sent(ev.Sent); err != nil {
			return err
		}
		res.SentRows++
		seqns, ok := res.sentSeqn[ev.Sent.Src]
		if !ok {
			seqns = make(map[int]types.Timestamp)
			res.sentSeqn[ev.Sent.Src] = seqns
		}
		seqns[ev.Sent.Seqn] = ev.Sent.TimeSent
	case Energy:
		if err := sink.Energy(ev.Energy); err != nil {
			return err
		}
		res.EnergyRows++
	}
	return nil
}

// CollectFile parses logPath and writes the recv, sent and energest tables
// next to it.
func (c *Collector) CollectFile(ctx context.Context, logPath string) (TablePaths, *Result, error) {
	paths := TablePathsFor(logPath)

	in, err := os.Open(logPath)
	if err != nil {
		return paths, nil, &types.InputError{Path: logPath, Reason: "cannot be opened", WrappedErr: err}
	}
	defer in.Close()

	sink, err := CreateTSVSink(paths)
	if err != nil {
		return paths, nil, err
	}

	res, err := c.Collect(ctx, in, sink)
	if closeErr := sink.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		return paths, nil, err
	}

	c.logger.WithFields(logrus.Fields{
		"recv":     paths.Recv,
		"sent":     paths.Sent,
		"energest": paths.Energest,
	}).Debug("Tables written")
	return paths, res, nil
}

// TSVSink writes records to the three tab-separated tables
type TSVSink struct {
	recv, sent, energy *TableWriter
	files              []*os.File
}

// NewTSVSink writes headers to the three writers
func NewTSVSink(recv, sent, energy io.Writer) (*TSVSink, error) {
	s := &TSVSink{}
	var err error
	if s.recv, err = NewTableWriter(recv, RecvHeader); err != nil {
		return nil, err
	}
	if s.sent, err = NewTableWriter(sent, SentHeader); err != nil {
		return nil, err
	}
	if s.energy, err = NewTableWriter(energy, EnergyHeader); err != nil {
		return nil, err
	}
	return s, nil
}

// CreateTSVSink creates (truncating) the files in paths
func CreateTSVSink(paths TablePaths) (*TSVSink, error) {
	var files []*os.File
	for _, p := range []string{paths.Recv, paths.Sent, paths.Energest} {
		f, err := os.Create(p)
		if err != nil {
			for _, opened := range files {
				opened.Close()
			}
			return nil, fmt.Errorf("failed to create table %s: %w", p, err)
		}
		files = append(files, f)
	}

	s, err := NewTSVSink(files[0], files[1], files[2])
	if err != nil {
		for _, f := range files {
			f.Close()
		}
		return nil, err
	}
	s.files = files
	return s, nil
}

func (s *TSVSink) Recv(r types.RecvRecord) error     { return s.recv.Write(recvFields(r)...) }
func (s *TSVSink) Sent(r types.SentRecord) error     { return s.sent.Write(sentFields(r)...) }
func (s *TSVSink) Energy(e types.EnergySample) error { return s.energy.Write(energyFields(e)...) }

// Flush flushes the three tables
func (s *TSVSink) Flush() error {
	for _, t := range []*TableWriter{s.recv, s.sent, s.energy} {
		if err := t.Flush(); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the tables and closes any files opened by CreateTSVSink
func (s *TSVSink) Close() error {
	err := s.Flush()
	for _, f := range s.files {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}
	return err
}

// MemorySink keeps the records in memory
type MemorySink struct {
	RecvRecords   []types.RecvRecord
	SentRecords   []types.SentRecord
	EnergySamples []types.EnergySample
}

func (m *MemorySink) Recv(r types.RecvRecord) error {
	m.RecvRecords = append(m.RecvRecords, r)
	return nil
}

func (m *MemorySink) Sent(r types.SentRecord) error {
	m.SentRecords = append(m.SentRecords, r)
	return nil
}

func (m *MemorySink) Energy(e types.EnergySample) error {
	m.EnergySamples = append(m.EnergySamples, e)
	return nil
}

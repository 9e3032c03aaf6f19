// Package logparse turns data-collection logs into sent, recv and energest tables.
package logparse

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/addrmap"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

// Kind classifies a log line
type Kind int

const (
	NoMatch Kind = iota
	Boot
	Recv
	Send
	SendFailure
	Energy
)

func (k Kind) String() string {
	switch k {
	case Boot:
		return "boot"
	case Recv:
		return "recv"
	case Send:
		return "send"
	case SendFailure:
		return "send_failure"
	case Energy:
		return "energy"
	default:
		return "no_match"
	}
}

// Event is a classified log line. Only the record matching Kind is set.
type Event struct {
	Kind   Kind
	Node   types.NodeID // node that printed the line
	Sent   types.SentRecord
	Recv   types.RecvRecord
	Energy types.EnergySample
}

// Matcher classifies single log lines of one dialect
type Matcher interface {
	Match(line string) (Event, error)
	Mode() types.Mode
}

// TestbedTimeLayout is the timestamp format of the testbed serial dumps
const TestbedTimeLayout = "2006-01-02 15:04:05,000"

const (
	simulationHeader = `^(?P<time>[\w:.]+)\s+ID:(?P<id>\d+)\s+`
	testbedHeader    = `^\[(?P<time>.{23})\] INFO:firefly\.(?P<id>\d+): \d+\.firefly < b'`
	testbedTrailer   = `'`

	bootMessage    = `Rime (?:started|configured) with address (?P<hi>\d+)\.(?P<lo>\d+)`
	recvMessage    = `App: Recv from (?P<hi>\w+):(?P<lo>\w+) seqn (?P<seqn>\d+) hops (?P<hops>\d+)`
	sendMessage    = `App: Send seqn (?P<seqn>\d+)`
	notSentMessage = `App: packet with seqn (?P<seqn>\d+) could not be scheduled\.`
	energyMessage  = `Energest: (?P<cnt>\d+) (?P<cpu>\d+) (?P<lpm>\d+) (?P<tx>\d+) (?P<rx>\d+)`
)

// NewMatcher returns the matcher of the given mode. The resolver and
// location are only used in testbed mode; nil selects the built-in address
// table and the local time zone.
func NewMatcher(mode types.Mode, resolver *addrmap.Resolver, loc *time.Location) (Matcher, error) {
	switch mode {
	case types.ModeSimulation:
		return &simulationMatcher{patterns: newPatternSet(simulationHeader, "")}, nil
	case types.ModeTestbed:
		if resolver == nil {
			resolver = addrmap.New(nil)
		}
		if loc == nil {
			loc = time.Local
		}
		return &testbedMatcher{
			patterns: newPatternSet(testbedHeader, testbedTrailer),
			resolver: resolver,
			loc:      loc,
		}, nil
	}
	return nil, fmt.Errorf("unsupported mode %s", mode)
}

// dialect holds the mode-specific field conversions
type dialect interface {
	timestamp(raw string) (types.Timestamp, error)
	source(hi, lo string) (types.NodeID, error)
}

type simulationMatcher struct {
	patterns *patternSet
}

func (m *simulationMatcher) Match(line string) (Event, error) { return m.patterns.match(line, m) }
func (m *simulationMatcher) Mode() types.Mode                  { return types.ModeSimulation }

func (m *simulationMatcher) timestamp(raw string) (types.Timestamp, error) {
	return types.Timestamp(raw), nil
}

// source keeps the high byte of the Rime address, printed in hex
func (m *simulationMatcher) source(hi, _ string) (types.NodeID, error) {
	v, err := strconv.ParseInt(hi, 16, 32)
	if err != nil {
		return 0, &ParseError{Field: "src", Value: hi, WrappedErr: err}
	}
	return types.NodeID(v), nil
}

type testbedMatcher struct {
	patterns *patternSet
	resolver *addrmap.Resolver
	loc      *time.Location
}

func (m *testbedMatcher) Match(line string) (Event, error) { return m.patterns.match(line, m) }
func (m *testbedMatcher) Mode() types.Mode                  { return types.ModeTestbed }

func (m *testbedMatcher) timestamp(raw string) (types.Timestamp, error) {
	ts, err := time.ParseInLocation(TestbedTimeLayout, raw, m.loc)
	if err != nil {
		return "", &ParseError{Field: "time", Value: raw, WrappedErr: err}
	}
	epoch := float64(ts.UnixMilli()) / 1e3
	return types.Timestamp(strconv.FormatFloat(epoch, 'f', -1, 64)), nil
}

func (m *testbedMatcher) source(hi, lo string) (types.NodeID, error) {
	return m.resolver.Resolve(hi + ":" + lo)
}

// patternSet is one regexp per message shape, sharing a record header
type patternSet struct {
	boot    *regexp.Regexp
	recv    *regexp.Regexp
	send    *regexp.Regexp
	notSent *regexp.Regexp
	energy  *regexp.Regexp
}

func newPatternSet(header, trailer string) *patternSet {
	compile := func(msg string) *regexp.Regexp {
		return regexp.MustCompile(header + msg + trailer)
	}
	return &patternSet{
		boot:    compile(bootMessage),
		recv:    compile(recvMessage),
		send:    compile(sendMessage),
		notSent: compile(notSentMessage),
		energy:  compile(energyMessage),
	}
}

// match tries boot, recv, send, send failure and energy in that order
func (p *patternSet) match(line string, d dialect) (Event, error) {
	if m := p.boot.FindStringSubmatch(line); m != nil {
		node, err := nodeField(p.boot, m, "id")
		if err != nil {
			return Event{}, err
		}
		return Event{Kind: Boot, Node: node}, nil
	}

	if m := p.recv.FindStringSubmatch(line); m != nil {
		return p.matchRecv(m, d)
	}

	if m := p.send.FindStringSubmatch(line); m != nil {
		return p.matchSent(p.send, m, d, Send, 1)
	}

	if m := p.notSent.FindStringSubmatch(line); m != nil {
		return p.matchSent(p.notSent, m, d, SendFailure, 0)
	}

	if m := p.energy.FindStringSubmatch(line); m != nil {
		return p.matchEnergy(m, d)
	}

	return Event{Kind: NoMatch}, nil
}

func (p *patternSet) matchRecv(m []string, d dialect) (Event, error) {
	re := p.recv
	node, err := nodeField(re, m, "id")
	if err != nil {
		return Event{}, err
	}
	ev := Event{Kind: Recv, Node: node}

	ts, err := d.timestamp(field(re, m, "time"))
	if err != nil {
		return Event{}, err
	}
	seqn, err := intField(re, m, "seqn")
	if err != nil {
		return Event{}, err
	}
	hops, err := intField(re, m, "hops")
	if err != nil {
		return Event{}, err
	}
	src, err := d.source(field(re, m, "hi"), field(re, m, "lo"))
	if err != nil {
		// the caller decides whether an unresolved source is fatal
		return ev, err
	}

	ev.Recv = types.RecvRecord{TimeRecv: ts, Dest: node, Src: src, Seqn: seqn, Hops: hops}
	return ev, nil
}

func (p *patternSet) matchSent(re *regexp.Regexp, m []string, d dialect, kind Kind, status int) (Event, error) {
	node, err := nodeField(re, m, "id")
	if err != nil {
		return Event{}, err
	}
	ts, err := d.timestamp(field(re, m, "time"))
	if err != nil {
		return Event{}, err
	}
	seqn, err := intField(re, m, "seqn")
	if err != nil {
		return Event{}, err
	}
	return Event{
		Kind: kind,
		Node: node,
		Sent: types.SentRecord{TimeSent: ts, Dest: types.SinkID, Src: node, Seqn: seqn, Status: status},
	}, nil
}

func (p *patternSet) matchEnergy(m []string, d dialect) (Event, error) {
	re := p.energy
	node, err := nodeField(re, m, "id")
	if err != nil {
		return Event{}, err
	}
	ts, err := d.timestamp(field(re, m, "time"))
	if err != nil {
		return Event{}, err
	}

	var counters [5]uint64
	for i, name := range []string{"cnt", "cpu", "lpm", "tx", "rx"} {
		v, err := strconv.ParseUint(field(re, m, name), 10, 64)
		if err != nil {
			return Event{}, &ParseError{Field: name, Value: field(re, m, name), WrappedErr: err}
		}
		counters[i] = v
	}

	return Event{
		Kind: Energy,
		Node: node,
		Energy: types.EnergySample{
			Time: ts,
			Node: node,
			Cnt:  counters[0],
			CPU:  counters[1],
			LPM:  counters[2],
			TX:   counters[3],
			RX:   counters[4],
		},
	}, nil
}

func field(re *regexp.Regexp, m []string, name string) string {
	return m[re.SubexpIndex(name)]
}

func intField(re *regexp.Regexp, m []string, name string) (int, error) {
	raw := field(re, m, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParseError{Field: name, Value: raw, WrappedErr: err}
	}
	return v, nil
}

func nodeField(re *regexp.Regexp, m []string, name string) (types.NodeID, error) {
	v, err := intField(re, m, name)
	return types.NodeID(v), err
}

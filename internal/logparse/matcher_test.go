package logparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebinsphilip/LowPowerWN-IOT/internal/addrmap"
	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

func newTestMatcher(t *testing.T, mode types.Mode) Matcher {
	t.Helper()
	m, err := NewMatcher(mode, addrmap.New(nil), time.UTC)
	require.NoError(t, err)
	return m
}

func TestSimulationMatcher(t *testing.T) {
	m := newTestMatcher(t, types.ModeSimulation)
	assert.Equal(t, types.ModeSimulation, m.Mode())

	t.Run("boot", func(t *testing.T) {
		ev, err := m.Match("00:00.512\tID:4\tRime started with address 4.0")
		require.NoError(t, err)
		assert.Equal(t, Boot, ev.Kind)
		assert.Equal(t, types.NodeID(4), ev.Node)
	})

	t.Run("recv", func(t *testing.T) {
		ev, err := m.Match("01:05.123\tID:1\tApp: Recv from 0a:00 seqn 12 hops 3")
		require.NoError(t, err)
		require.Equal(t, Recv, ev.Kind)
		assert.Equal(t, types.RecvRecord{
			TimeRecv: "01:05.123",
			Dest:     1,
			Src:      10,
			Seqn:     12,
			Hops:     3,
		}, ev.Recv)
	})

	t.Run("send", func(t *testing.T) {
		ev, err := m.Match("01:04.900\tID:10\tApp: Send seqn 12")
		require.NoError(t, err)
		require.Equal(t, Send, ev.Kind)
		assert.Equal(t, types.SentRecord{TimeSent: "01:04.900", Dest: types.SinkID, Src: 10, Seqn: 12, Status: 1}, ev.Sent)
	})

	t.Run("send failure", func(t *testing.T) {
		ev, err := m.Match("01:04.900 ID:7 App: packet with seqn 9 could not be scheduled.")
		require.NoError(t, err)
		require.Equal(t, SendFailure, ev.Kind)
		assert.Equal(t, 0, ev.Sent.Status)
		assert.Equal(t, types.NodeID(7), ev.Sent.Src)
		assert.Equal(t, 9, ev.Sent.Seqn)
	})

	t.Run("energy", func(t *testing.T) {
		ev, err := m.Match("02:00.000\tID:3\tEnergest: 4 32768 294912 1200 5400")
		require.NoError(t, err)
		require.Equal(t, Energy, ev.Kind)
		assert.Equal(t, types.EnergySample{
			Time: "02:00.000", Node: 3, Cnt: 4, CPU: 32768, LPM: 294912, TX: 1200, RX: 5400,
		}, ev.Energy)
	})

	t.Run("no match", func(t *testing.T) {
		for _, line := range []string{
			"",
			"00:00.000\tID:1\tApp: I am sink 01:00 with node_id 1",
			"Starting Contiki",
			"[2019-03-04 10:20:30,123] INFO:firefly.2: 17.firefly < b'App: Send seqn 5'",
		} {
			ev, err := m.Match(line)
			require.NoError(t, err, line)
			assert.Equal(t, NoMatch, ev.Kind, line)
		}
	})
}

func TestTestbedMatcher(t *testing.T) {
	m := newTestMatcher(t, types.ModeTestbed)
	assert.Equal(t, types.ModeTestbed, m.Mode())

	const header = "[2019-03-04 10:20:30,123] INFO:firefly.2: 17.firefly < b'"

	t.Run("boot", func(t *testing.T) {
		ev, err := m.Match(header + "Rime configured with address 217.118'")
		require.NoError(t, err)
		assert.Equal(t, Boot, ev.Kind)
		assert.Equal(t, types.NodeID(2), ev.Node)
	})

	t.Run("timestamp is epoch seconds", func(t *testing.T) {
		ev, err := m.Match(header + "App: Send seqn 5'")
		require.NoError(t, err)
		require.Equal(t, Send, ev.Kind)
		assert.Equal(t, types.Timestamp("1551694830.123"), ev.Sent.TimeSent)
		assert.Equal(t, types.NodeID(2), ev.Sent.Src)
	})

	t.Run("recv resolves the source address", func(t *testing.T) {
		ev, err := m.Match("[2019-03-04 10:20:31,000] INFO:firefly.1: 18.firefly < b'App: Recv from d9:76 seqn 5 hops 2'")
		require.NoError(t, err)
		require.Equal(t, Recv, ev.Kind)
		assert.Equal(t, types.RecvRecord{TimeRecv: "1551694831", Dest: 1, Src: 2, Seqn: 5, Hops: 2}, ev.Recv)
	})

	t.Run("recv from unknown address", func(t *testing.T) {
		ev, err := m.Match(header + "App: Recv from aa:aa seqn 5 hops 2'")
		require.Error(t, err)
		assert.True(t, errors.Is(err, addrmap.ErrUnknownAddress))
		assert.Equal(t, Recv, ev.Kind)
	})

	t.Run("energy", func(t *testing.T) {
		ev, err := m.Match(header + "Energest: 2 10 90 1 4'")
		require.NoError(t, err)
		require.Equal(t, Energy, ev.Kind)
		assert.Equal(t, uint64(90), ev.Energy.LPM)
	})

	t.Run("simulation lines do not match", func(t *testing.T) {
		ev, err := m.Match("01:04.900\tID:10\tApp: Send seqn 12")
		require.NoError(t, err)
		assert.Equal(t, NoMatch, ev.Kind)
	})

	t.Run("bad timestamp is a parse error", func(t *testing.T) {
		_, err := m.Match("[2019-13-04 10:20:30,123] INFO:firefly.2: 17.firefly < b'App: Send seqn 5'")
		var perr *ParseError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "time", perr.Field)
	})
}

func TestNewMatcher_UnknownMode(t *testing.T) {
	_, err := NewMatcher(types.Mode(9), nil, nil)
	assert.Error(t, err)
}

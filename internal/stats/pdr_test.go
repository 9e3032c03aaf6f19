package stats

import (
	"bytes"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebinsphilip/LowPowerWN-IOT/pkg/types"
)

func sentRange(src types.NodeID, from, to int) []types.SentRecord {
	var out []types.SentRecord
	for seqn := from; seqn <= to; seqn++ {
		out = append(out, types.SentRecord{TimeSent: "t", Dest: types.SinkID, Src: src, Seqn: seqn, Status: 1})
	}
	return out
}

func recvFor(src types.NodeID, seqns ...int) []types.RecvRecord {
	var out []types.RecvRecord
	for _, seqn := range seqns {
		out = append(out, types.RecvRecord{TimeRecv: "t", Dest: types.SinkID, Src: src, Seqn: seqn, Hops: 1})
	}
	return out
}

func TestComputePDR_BoundaryTrim(t *testing.T) {
	t.Run("all middle packets delivered", func(t *testing.T) {
		res := ComputePDR(sentRange(2, 1, 5), recvFor(2, 2, 3, 4))
		require.Len(t, res.Nodes, 1)

		n := res.Nodes[0]
		assert.Equal(t, types.NodePDR{Node: 2, SentTrials: 3, Sent: 3, Recv: 3, PDR: 100}, n)
		assert.Equal(t, 1, res.MinSeqn)
		assert.Equal(t, 5, res.MaxSeqn)
	})

	t.Run("one middle packet lost", func(t *testing.T) {
		res := ComputePDR(sentRange(2, 1, 5), recvFor(2, 2, 3))
		n := res.Nodes[0]
		assert.Equal(t, 3, n.Sent)
		assert.Equal(t, 2, n.Recv)
		assert.InDelta(t, 66.667, n.PDR, 0.001)
		assert.Equal(t, 1, res.Summary.Lost)
	})

	t.Run("boundary packets never count", func(t *testing.T) {
		res := ComputePDR(sentRange(3, 5, 10), recvFor(3, 5, 10))
		n := res.Nodes[0]
		assert.Equal(t, 4, n.SentTrials)
		assert.Equal(t, 0, n.Recv)
		assert.Equal(t, float64(0), n.PDR)
	})
}

func TestComputePDR_StatusAndDuplicates(t *testing.T) {
	sent := sentRange(2, 1, 6)
	sent[2].Status = 0 // seqn 3 could not be scheduled
	sent = append(sent, sent[3])
	sent = append(sent, types.SentRecord{TimeSent: "late", Dest: 1, Src: 2, Seqn: 4, Status: 0})

	recv := recvFor(2, 2, 4, 4, 5)
	res := ComputePDR(sent, recv)

	n := res.Nodes[0]
	assert.Equal(t, 4, n.SentTrials, "seqn 2..5 after dedupe and trimming")
	assert.Equal(t, 3, n.Sent, "scheduling failures are not transmissions")
	assert.Equal(t, 3, n.Recv)
	assert.Equal(t, float64(100), n.PDR)
}

func TestComputePDR_NodesWithoutSurvivingRows(t *testing.T) {
	sent := append(sentRange(2, 1, 5), types.SentRecord{Dest: 1, Src: 3, Seqn: 5, Status: 1})
	res := ComputePDR(sent, nil)

	require.Len(t, res.Nodes, 2)
	assert.Equal(t, types.NodeID(3), res.Nodes[1].Node)
	assert.Equal(t, 0, res.Nodes[1].SentTrials)
	assert.True(t, math.IsNaN(res.Nodes[1].PDR))
	assert.Equal(t, float64(0), res.Nodes[0].PDR)
}

func TestComputePDR_Empty(t *testing.T) {
	res := ComputePDR(nil, nil)
	assert.Empty(t, res.Nodes)
	assert.True(t, math.IsNaN(res.Summary.PDR))
}

func TestComputePDR_Properties(t *testing.T) {
	sent := append(sentRange(2, 1, 20), sentRange(3, 1, 20)...)
	sent = append(sent, sentRange(4, 3, 18)...)
	recv := append(recvFor(2, 1, 2, 3, 5, 8, 13, 20), recvFor(3, 4, 6, 7, 9, 10)...)
	recv = append(recv, recvFor(4, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18)...)

	first := ComputePDR(sent, recv)
	second := ComputePDR(sent, recv)
	assert.Equal(t, first, second, "reduction must be idempotent")

	var sumSent, sumRecv int
	for _, n := range first.Nodes {
		sumSent += n.Sent
		sumRecv += n.Recv
		if n.Sent > 0 {
			assert.GreaterOrEqual(t, n.PDR, float64(0))
			assert.LessOrEqual(t, n.PDR, float64(100))
		}
	}
	assert.InDelta(t, 100*float64(sumRecv)/float64(sumSent), first.Summary.PDR, 1e-9)
	assert.Equal(t, sumSent, first.Summary.Sent)
	assert.Equal(t, float64(100), first.Nodes[2].PDR)
}

func TestWritePDR(t *testing.T) {
	var buf bytes.Buffer
	err := WritePDR(&buf, []types.NodePDR{
		{Node: 2, SentTrials: 3, Sent: 3, Recv: 2, PDR: 200.0 / 3},
		{Node: 3, PDR: math.NaN()},
	})
	require.NoError(t, err)

	assert.Equal(t, "node\tsent_trials\tsent\trecv\tpdr\n"+
		"2.000\t3.000\t3.000\t2.000\t66.667\n"+
		"3.000\t0.000\t0.000\t0.000\tnan\n", buf.String())
}

func TestPDRPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "exp-pdr.csv"), PDRPath(filepath.Join("out", "exp-sent.csv")))
}

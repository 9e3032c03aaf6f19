package logparse

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiblingPath(t *testing.T) {
	dir := filepath.Join("data", "exp")

	assert.Equal(t, filepath.Join(dir, "test-pdr.csv"),
		SiblingPath(filepath.Join(dir, "test-sent.csv"), "-sent", "-pdr", ".csv"))
	assert.Equal(t, filepath.Join(dir, "test-dc.csv"),
		SiblingPath(filepath.Join(dir, "test-energest.csv"), "-energest", "-dc", ".csv"))
	assert.Equal(t, filepath.Join(dir, "test-summary.json"),
		SiblingPath(filepath.Join(dir, "test.log"), "", "-summary", ".json"))
}

func TestReadTables_Errors(t *testing.T) {
	t.Run("wrong header", func(t *testing.T) {
		_, err := ReadSent(strings.NewReader("a\tb\tc\td\te\n"))
		var terr *TableError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, 0, terr.Row)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ReadEnergy(strings.NewReader(""))
		assert.Error(t, err)
	})

	t.Run("malformed number", func(t *testing.T) {
		data := "time_recv\tdest\tsrc\tseqn\thops\n0.1\t1\t2\tx\t1\n"
		_, err := ReadRecv(strings.NewReader(data))
		var terr *TableError
		require.True(t, errors.As(err, &terr))
		assert.Equal(t, "recv", terr.Table)
		assert.Equal(t, 1, terr.Row)
	})

	t.Run("wrong column count", func(t *testing.T) {
		data := "time\tnode\tcnt\tcpu\tlpm\ttx\trx\n0.1\t1\t2\n"
		_, err := ReadEnergy(strings.NewReader(data))
		assert.Error(t, err)
	})
}

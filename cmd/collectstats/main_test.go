package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testLog = "00:00.100\tID:1\tRime started with address 1.0\n" +
	"00:00.200\tID:2\tRime started with address 2.0\n" +
	"00:10.000\tID:2\tApp: Send seqn 1\n" +
	"00:20.000\tID:2\tApp: Send seqn 2\n" +
	"00:20.050\tID:1\tApp: Recv from 02:00 seqn 2 hops 1\n" +
	"00:30.000\tID:2\tApp: Send seqn 3\n" +
	"00:40.000\tID:2\tEnergest: 2 50 50 1 1\n"

func TestRun(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "exp.log")
	require.NoError(t, os.WriteFile(logPath, []byte(testLog), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-log-level", "error", "-summary", logPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	for _, name := range []string{"exp-recv.csv", "exp-sent.csv", "exp-energest.csv", "exp-pdr.csv", "exp-dc.csv", "exp-summary.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Contains(t, stdout.String(), "PDR over packets sent: 100.000% (1/1)")
	assert.Contains(t, stdout.String(), "Node: 2 Duty Cycle: 2.000%")
}

const testbedLog = "[2019-03-04 10:00:00,100] INFO:firefly.1: 16.firefly < b'Rime configured with address 1.1'\n" +
	"[2019-03-04 10:00:00,200] INFO:firefly.2: 17.firefly < b'Rime configured with address 2.2'\n" +
	"[2019-03-04 10:00:10,000] INFO:firefly.2: 17.firefly < b'App: Send seqn 1'\n" +
	"[2019-03-04 10:00:20,000] INFO:firefly.2: 17.firefly < b'App: Send seqn 2'\n" +
	"[2019-03-04 10:00:20,050] INFO:firefly.1: 16.firefly < b'App: Recv from d9:76 seqn 2 hops 1'\n" +
	"[2019-03-04 10:00:25,000] INFO:firefly.1: 16.firefly < b'App: Recv from F3:84 seqn 2 hops 1'\n" +
	"[2019-03-04 10:00:30,000] INFO:firefly.2: 17.firefly < b'App: Send seqn 3'\n" +
	"[2019-03-04 10:00:40,000] INFO:firefly.2: 17.firefly < b'Energest: 2 50 50 1 1'\n"

func TestRun_Testbed(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "exp.log")
	require.NoError(t, os.WriteFile(logPath, []byte(testbedLog), 0644))

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-t", "-tz", "UTC", "-log-level", "warn", logPath}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "PDR over packets sent: 100.000% (1/1)")
	assert.Contains(t, stdout.String(), "Node: 2 Duty Cycle: 2.000%")
	assert.Contains(t, stderr.String(), "Skipping event from unknown address", "upper-case addresses are not in the table")

	recv, err := os.ReadFile(filepath.Join(dir, "exp-recv.csv"))
	require.NoError(t, err)
	assert.Equal(t, "time_recv\tdest\tsrc\tseqn\thops\n1551693620.05\t1\t2\t2\t1\n", string(recv))
}

func TestRun_BadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer

	code := run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.log")}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "does not exist")

	stderr.Reset()
	code = run(context.Background(), []string{t.TempDir()}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "is not a regular file")
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Usage: collectstats")

	assert.Equal(t, 2, run(context.Background(), []string{"-bogus", "x.log"}, &stdout, &stderr))
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("mode: testbed\noutput:\n  parquet: true\n"), 0644))

	opts, fs, err := parseFlags([]string{"-config", cfgPath, "-archive", "runs.db", "-archive-driver", "sqlite3", "x.log"}, &bytes.Buffer{})
	require.NoError(t, err)

	cfg, err := loadConfig(opts, fs)
	require.NoError(t, err)
	assert.Equal(t, "testbed", cfg.Mode, "mode from the file survives when -t is not given")
	assert.True(t, cfg.Output.Parquet)
	assert.Equal(t, "runs.db", cfg.Archive.DSN)
	assert.Equal(t, "sqlite3", cfg.Archive.Driver)

	opts, fs, err = parseFlags([]string{"-config", cfgPath, "-t=false", "x.log"}, &bytes.Buffer{})
	require.NoError(t, err)
	cfg, err = loadConfig(opts, fs)
	require.NoError(t, err)
	assert.Equal(t, "simulation", cfg.Mode)
}

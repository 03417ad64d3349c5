package dispatch

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresRunDir(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSignalLaunchFailure(t *testing.T) {
	d, err := New(Config{
		RunDir:   t.TempDir(),
		ExecPath: "/nonexistent/cargohold-worker",
	})
	require.NoError(t, err)

	_, err = d.Signal()
	require.Error(t, err)
	assert.True(t, IsDispatch(err))
	assert.ErrorIs(t, err, ErrDispatch)
}

func TestSignalSpawnsAndIsIdempotent(t *testing.T) {
	runDir := t.TempDir()
	d, err := New(Config{
		RunDir:   runDir,
		ExecPath: "/bin/sh",
		Args:     []string{"-c", "sleep 5"},
	})
	require.NoError(t, err)

	pid, err := d.Signal()
	require.NoError(t, err)
	require.Greater(t, pid, 0)

	// Pidfile written for the liveness probe.
	b, err := os.ReadFile(filepath.Join(runDir, "worker.pid"))
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(pid), string(b[:len(b)-1]))

	// A second signal while the worker is alive must not spawn a duplicate.
	pid2, err := d.Signal()
	require.NoError(t, err)
	assert.Equal(t, pid, pid2)
}

func TestSignalReplacesDeadWorker(t *testing.T) {
	runDir := t.TempDir()

	// Produce a pid that is guaranteed dead.
	cmd := exec.Command("/bin/sh", "-c", "exit 0")
	require.NoError(t, cmd.Start())
	deadPID := cmd.Process.Pid
	require.NoError(t, cmd.Wait())

	require.NoError(t, os.WriteFile(filepath.Join(runDir, "worker.pid"),
		[]byte(strconv.Itoa(deadPID)+"\n"), 0644))

	d, err := New(Config{
		RunDir:   runDir,
		ExecPath: "/bin/sh",
		Args:     []string{"-c", "sleep 5"},
	})
	require.NoError(t, err)

	pid, err := d.Signal()
	require.NoError(t, err)
	assert.NotEqual(t, deadPID, pid)
}

func TestSignalIgnoresGarbagePidfile(t *testing.T) {
	runDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "worker.pid"),
		[]byte("not-a-pid\n"), 0644))

	d, err := New(Config{
		RunDir:   runDir,
		ExecPath: "/bin/sh",
		Args:     []string{"-c", "sleep 5"},
	})
	require.NoError(t, err)

	pid, err := d.Signal()
	require.NoError(t, err)
	assert.Greater(t, pid, 0)
}

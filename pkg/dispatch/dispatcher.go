// Package dispatch launches detached worker processes.
//
// Dispatch is fire-and-forget: a signal only ensures a worker exists (or will
// shortly), it never waits for job completion. Duplicate workers are safe
// solely because the job store's claim is exclusive; the pidfile check here
// is an optimization, not a correctness guarantee.
package dispatch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrDispatch indicates the worker process could not be launched. The
// triggering job stays pending and is picked up by a later signal or sweep.
var ErrDispatch = errors.New("worker dispatch failed")

// IsDispatch returns true if the error indicates a failed worker launch.
func IsDispatch(err error) bool {
	return errors.Is(err, ErrDispatch)
}

type Config struct {
	// RunDir holds the worker pidfile and log files.
	RunDir string

	// ExecPath is the worker binary. Empty means the current executable.
	ExecPath string

	// Args are the worker subcommand arguments (default: worker --drain).
	Args []string
}

// Dispatcher spawns detached worker processes of the cargohold binary.
type Dispatcher struct {
	cfg Config
}

func New(cfg Config) (*Dispatcher, error) {
	if strings.TrimSpace(cfg.RunDir) == "" {
		return nil, fmt.Errorf("dispatch run dir is required")
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"worker", "--drain"}
	}
	return &Dispatcher{cfg: cfg}, nil
}

func (d *Dispatcher) pidPath() string {
	return filepath.Join(d.cfg.RunDir, "worker.pid")
}

func (d *Dispatcher) stdoutPath() string {
	return filepath.Join(d.cfg.RunDir, "worker.stdout.log")
}

func (d *Dispatcher) stderrPath() string {
	return filepath.Join(d.cfg.RunDir, "worker.stderr.log")
}

// Signal ensures a worker process is running or will shortly run.
//
// It is idempotent and non-blocking: if the pidfile names a live worker the
// call returns immediately without spawning. Launch failures are reported as
// ErrDispatch, distinct from any job failure.
func (d *Dispatcher) Signal() (int, error) {
	if err := os.MkdirAll(d.cfg.RunDir, 0755); err != nil {
		return 0, fmt.Errorf("create run dir: %w: %w", err, ErrDispatch)
	}

	if pid, ok := d.livePID(); ok {
		return pid, nil
	}

	exe := d.cfg.ExecPath
	if exe == "" {
		resolved, err := os.Executable()
		if err != nil {
			return 0, fmt.Errorf("resolve executable: %w: %w", err, ErrDispatch)
		}
		exe = resolved
	}

	stdoutFile, err := os.OpenFile(d.stdoutPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("open stdout log: %w: %w", err, ErrDispatch)
	}
	stderrFile, err := os.OpenFile(d.stderrPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		_ = stdoutFile.Close()
		return 0, fmt.Errorf("open stderr log: %w: %w", err, ErrDispatch)
	}

	cmd := exec.Command(exe, d.cfg.Args...)
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		_ = stdoutFile.Close()
		_ = stderrFile.Close()
		return 0, fmt.Errorf("start worker: %w: %w", err, ErrDispatch)
	}

	pid := cmd.Process.Pid
	if err := d.writePID(pid); err != nil {
		// The worker is already running; a stale pidfile only costs an
		// extra spawn on the next signal.
		_ = err
	}

	// Reap the child when it exits so drained workers do not linger as
	// zombies under a long-lived server process.
	go func() { _ = cmd.Wait() }()

	_ = stdoutFile.Close()
	_ = stderrFile.Close()

	return pid, nil
}

func (d *Dispatcher) writePID(pid int) error {
	tmp, err := os.CreateTemp(d.cfg.RunDir, "worker.pid.tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, d.pidPath())
}

// livePID reads the pidfile and verifies the process still exists.
func (d *Dispatcher) livePID() (int, bool) {
	b, err := os.ReadFile(d.pidPath())
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !isProcessAlive(pid) {
		return 0, false
	}
	return pid, true
}

func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// signal 0 is supported on unix; it checks for existence without sending a signal.
	if err := p.Signal(os.Signal(syscall.Signal(0))); err != nil {
		return false
	}
	return true
}

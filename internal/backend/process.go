package backend

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"syscall"
)

// maxLineSize bounds a single streamed stdout line.
const maxLineSize = 1024 * 1024

// capture holds what a subprocess wrote to its pipes.
type capture struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

// groupCommand builds a command that runs in its own process group.
// Cancelling ctx kills the whole group so grandchildren release the pipes.
func groupCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return signalGroup(cmd, syscall.SIGKILL)
	}
	return cmd
}

// runCommand starts cmd and drains stdout and stderr concurrently before
// waiting, so output larger than the pipe buffer cannot stall the agent.
// A non-nil pm tracks the process while it runs. A non-nil onLine sees every
// stdout line as it arrives. The capture is returned even on failure.
func runCommand(ctx context.Context, cmd *exec.Cmd, pm *ProcessManager, onLine func(string)) (*capture, error) {
	out := &capture{}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return out, fmt.Errorf("stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return out, fmt.Errorf("starting %s: %w", cmd.Path, err)
	}
	if pm != nil {
		pm.Track(cmd)
		defer pm.Untrack(cmd)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		streamLines(stdout, &out.stdout, onLine)
	}()
	go func() {
		defer wg.Done()
		io.Copy(&out.stderr, stderr)
	}()
	wg.Wait()

	return out, out.explain(ctx, cmd.Wait())
}

func streamLines(r io.Reader, buf *bytes.Buffer, onLine func(string)) {
	if onLine == nil {
		io.Copy(buf, r)
		return
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		onLine(line)
	}
	// An oversized line stops the scanner; keep draining so the process exits
	io.Copy(buf, r)
}

// explain turns a Wait error into one that names the cause.
func (c *capture) explain(ctx context.Context, waitErr error) error {
	if waitErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("command interrupted: %w (%v)", ctxErr, waitErr)
	}
	if msg := strings.TrimSpace(c.stderr.String()); msg != "" {
		return fmt.Errorf("command failed: %w (stderr: %s)", waitErr, msg)
	}
	return fmt.Errorf("command failed: %w", waitErr)
}

// signalGroup delivers sig to every process in cmd's process group.
func signalGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return errors.New("process not started")
	}
	if err := syscall.Kill(-cmd.Process.Pid, sig); err != nil {
		return fmt.Errorf("signalling process group %d: %w", cmd.Process.Pid, err)
	}
	return nil
}

// ProcessManager tracks the agent CLIs that are running so a shutdown can
// take down every one of them, children included.
type ProcessManager struct {
	mu    sync.Mutex
	procs map[int]*exec.Cmd
}

// NewProcessManager creates an empty ProcessManager.
func NewProcessManager() *ProcessManager {
	return &ProcessManager{procs: make(map[int]*exec.Cmd)}
}

// Track registers a started command. Unstarted commands are ignored.
func (pm *ProcessManager) Track(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	pm.procs[cmd.Process.Pid] = cmd
	pm.mu.Unlock()
}

// Untrack forgets a command once it has been waited on.
func (pm *ProcessManager) Untrack(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pm.mu.Lock()
	delete(pm.procs, cmd.Process.Pid)
	pm.mu.Unlock()
}

// KillAll sends SIGKILL to the process group of every tracked command.
// Commands stay tracked until their runner untracks them.
func (pm *ProcessManager) KillAll() error {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	var errs []error
	for _, cmd := range pm.procs {
		if err := signalGroup(cmd, syscall.SIGKILL); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of tracked commands.
func (pm *ProcessManager) Count() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.procs)
}

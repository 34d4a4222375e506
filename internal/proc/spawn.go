// Package proc launches external analysis processes and exposes their output
// as line streams, with liveness timeouts and a retry policy around startup.
package proc

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Spec describes one process launch.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	// Env overlays the host environment.
	Env map[string]string
	// Timeout bounds the wait for the first output on either stream during
	// SpawnWithRetry. Zero means no wall clock: wait for the process's own
	// protocol (first output or exit) indefinitely.
	Timeout time.Duration
	Retry   Retry
}

// Retry is the retry policy applied by SpawnWithRetry. Attempts below 1
// behave as a single attempt.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// ExitStatus describes how a process terminated.
type ExitStatus struct {
	Code   int
	Signal string // empty unless terminated by a signal
}

// Handle owns a spawned process: its pid, line-framed output streams, and
// exit status. Closing a handle stops listening to the streams; it does not
// kill the OS process.
type Handle struct {
	PID int

	cmd        *exec.Cmd
	stdout     chan string
	stderr     chan string
	ready      chan struct{}
	readyOnce  sync.Once
	done       chan struct{}
	exit       ExitStatus
	stderrTail *tailBuffer

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Spawn starts the process described by spec. Launch failures (executable not
// found, permission denied) surface immediately as a SpawnError.
func Spawn(spec Spec) (*Handle, error) {
	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergedEnv(spec.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Command: spec.Command, Err: err}
	}

	h := &Handle{
		PID:        cmd.Process.Pid,
		cmd:        cmd,
		stdout:     make(chan string, 64),
		stderr:     make(chan string, 64),
		ready:      make(chan struct{}),
		done:       make(chan struct{}),
		stderrTail: newTailBuffer(8 * 1024),
		stopCh:     make(chan struct{}),
	}
	go h.run(stdout, stderr)
	return h, nil
}

// SpawnWithRetry spawns per spec and waits for liveness: the first output on
// either stream. A spawn failure, an exit before any output, or a liveness
// timeout consumes one attempt; the last attempt's error is returned when all
// attempts fail.
func SpawnWithRetry(ctx context.Context, spec Spec) (*Handle, error) {
	attempts := spec.Retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 && spec.Retry.Delay > 0 {
			select {
			case <-time.After(spec.Retry.Delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		h, err := Spawn(spec)
		if err != nil {
			lastErr = err
			continue
		}
		if err := h.awaitLiveness(ctx, spec.Timeout); err != nil {
			h.Close()
			lastErr = err
			continue
		}
		return h, nil
	}
	return nil, lastErr
}

// Stdout returns the stdout line stream. Chunk boundaries from the OS are
// reassembled into logical lines split on \n and \r; empty lines are dropped.
// The channel closes when the stream ends or the handle is closed.
func (h *Handle) Stdout() <-chan string { return h.stdout }

// Stderr returns the stderr line stream, framed like Stdout.
func (h *Handle) Stderr() <-chan string { return h.stderr }

// Ready is closed when the process produces its first output on either stream.
func (h *Handle) Ready() <-chan struct{} { return h.ready }

// Done is closed once the process has exited and its streams are drained.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the process exits and returns its exit status.
func (h *Handle) Wait() ExitStatus {
	<-h.done
	return h.exit
}

// Alive reports whether the process has not yet been observed to exit.
func (h *Handle) Alive() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// StderrTail returns the accumulated tail of stderr, for failure reporting.
func (h *Handle) StderrTail() string { return h.stderrTail.String() }

// Close stops listening to the process's streams. It does not terminate the
// OS process. Idempotent.
func (h *Handle) Close() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

// Kill terminates the OS process.
func (h *Handle) Kill() error {
	if h.cmd.Process == nil {
		return fmt.Errorf("process not started")
	}
	return h.cmd.Process.Kill()
}

// awaitLiveness waits for the first output, an early exit, the timeout, or
// context cancellation, in that order of preference.
func (h *Handle) awaitLiveness(ctx context.Context, timeout time.Duration) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	select {
	case <-h.ready:
		return nil
	case <-h.done:
		// The process may have produced output and exited in one breath.
		select {
		case <-h.ready:
			return nil
		default:
		}
		return &ProcessExitError{Code: h.exit.Code, Stderr: h.StderrTail()}
	case <-deadline:
		return &TimeoutError{After: timeout}
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) markReady() {
	h.readyOnce.Do(func() { close(h.ready) })
}

// run pumps both pipes until EOF, then reaps the process.
func (h *Handle) run(stdout, stderr io.Reader) {
	outChunks := make(chan string, 8)
	errChunks := make(chan string, 8)

	var g errgroup.Group
	g.Go(func() error {
		pumpChunks(stdout, outChunks, nil, h.markReady)
		return nil
	})
	g.Go(func() error {
		pumpChunks(stderr, errChunks, h.stderrTail, h.markReady)
		return nil
	})
	g.Go(func() error {
		assemble(outChunks, h.stdout, h.stopCh)
		return nil
	})
	g.Go(func() error {
		assemble(errChunks, h.stderr, h.stopCh)
		return nil
	})
	_ = g.Wait()

	err := h.cmd.Wait()
	h.exit = exitStatusFrom(h.cmd, err)
	close(h.done)
}

// pumpChunks reads raw chunks from pipe and forwards them. Chunk boundaries
// carry no meaning; the assembler reframes them into lines.
func pumpChunks(pipe io.Reader, chunks chan<- string, tail *tailBuffer, markReady func()) {
	defer close(chunks)
	buf := make([]byte, 4096)
	for {
		n, err := pipe.Read(buf)
		if n > 0 {
			markReady()
			s := string(buf[:n])
			if tail != nil {
				tail.write(s)
			}
			chunks <- s
		}
		if err != nil {
			return
		}
	}
}

// assemble reframes raw chunks into logical lines. Both \n and \r terminate a
// line: progress bars redraw in place with bare carriage returns. After stop
// fires, remaining chunks are drained and discarded so the pump never blocks.
func assemble(chunks <-chan string, lines chan<- string, stop <-chan struct{}) {
	defer close(lines)
	var pending strings.Builder
	for chunk := range chunks {
		pending.WriteString(chunk)
		text := pending.String()
		for {
			i := strings.IndexAny(text, "\r\n")
			if i < 0 {
				break
			}
			line := text[:i]
			if text[i] == '\r' && i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			text = text[i+1:]
			if line == "" {
				continue
			}
			select {
			case lines <- line:
			case <-stop:
				for range chunks {
				}
				return
			}
		}
		pending.Reset()
		pending.WriteString(text)
	}
	if rest := pending.String(); rest != "" {
		select {
		case lines <- rest:
		case <-stop:
		}
	}
}

// mergedEnv overlays env on the host environment. Overlay entries come last
// so they win.
func mergedEnv(env map[string]string) []string {
	if len(env) == 0 {
		return nil // inherit as-is
	}
	merged := os.Environ()
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		merged = append(merged, k+"="+env[k])
	}
	return merged
}

func exitStatusFrom(cmd *exec.Cmd, _ error) ExitStatus {
	st := ExitStatus{Code: -1}
	ps := cmd.ProcessState
	if ps == nil {
		return st
	}
	st.Code = ps.ExitCode()
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		st.Signal = ws.Signal().String()
	}
	return st
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) write(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, s...)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.TrimSpace(string(t.buf))
}

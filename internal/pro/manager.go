// Package pro manages the long-running companion analysis process: launch,
// readiness detection from the output stream, and session bootstrap from
// filesystem side-channel artifacts.
package pro

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"checkup/internal/conf"
	"checkup/internal/notify"
	"checkup/internal/proc"
)

const (
	// defaultReadyMarker is the stdout substring signalling the tool has
	// reached its serving phase.
	defaultReadyMarker = "Dashboard ready"
	// configDirName is the config-and-credential directory the tool creates
	// under the temp path once serving.
	configDirName = "checkup-pro"
	// tempDirEnv is the environment variable overridden so the tool places
	// its artifacts under our chosen temp path.
	tempDirEnv = "TMPDIR"

	defaultGrace = 250 * time.Millisecond
)

// errTmpFolderMissing is the Failed cause when the readiness marker was seen
// but the tool never created its config directory.
var errTmpFolderMissing = errors.New("tmp folder does not exist")

// Manager drives one pro session through its lifecycle:
// Idle -> Launching -> WaitingForReady -> Running -> Failed | Stopped.
type Manager struct {
	Binary  string
	Args    []string
	WorkDir string
	// ConfigPath pins the root config file. Empty means discover it in the
	// work directory.
	ConfigPath string
	// Registry resolves the launch configuration. Nil launches with the
	// static Args alone.
	Registry *conf.Registry
	// TempDir is the base temp path for the session's artifacts. Empty means
	// the OS default.
	TempDir string
	// ReadyMarker overrides the readiness substring scanned for in stdout.
	ReadyMarker string
	// Grace is the fixed pause between seeing the readiness marker and
	// checking for the config directory.
	Grace   time.Duration
	Timeout time.Duration
	Retry   proc.Retry

	// OnProgress receives the freshest progress marker from each output chunk.
	OnProgress func(Progress)
	Notifier   notify.Notifier
	Logger     *log.Logger

	mu      sync.Mutex
	state   State
	cause   string
	session *Session
}

// State returns the manager's current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Cause returns the human-readable failure cause, empty unless Failed.
func (m *Manager) Cause() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cause
}

// Session returns the running session, nil unless the manager reached Running.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// Start launches the pro process and drives the state machine to Running,
// returning the bootstrapped session. On any failure the manager transitions
// to Failed with a cause derived from stderr or the OS error, and the typed
// error is returned.
func (m *Manager) Start(ctx context.Context) (*Session, error) {
	if st := m.State(); st != StateIdle {
		return nil, fmt.Errorf("pro session already started (state %s)", st)
	}
	m.setState(StateLaunching)
	m.status("starting pro session")

	tempDir := m.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	configDir := filepath.Join(tempDir, configDirName)

	spec := proc.Spec{
		Command: m.Binary,
		Args:    append(m.resolveLaunchArgs(), "--watch"),
		Dir:     m.WorkDir,
		Env:     map[string]string{tempDirEnv: tempDir},
		Timeout: m.Timeout,
		Retry:   m.Retry,
	}
	h, err := proc.SpawnWithRetry(ctx, spec)
	if err != nil {
		return nil, m.fail(err)
	}

	m.setState(StateWaitingForReady)
	go m.drainStderr(h)

	if err := m.awaitReady(ctx, h); err != nil {
		h.Close()
		if ctx.Err() != nil {
			m.setState(StateStopped)
			return nil, err
		}
		return nil, m.fail(err)
	}

	// The tool announces readiness slightly before its artifacts land on
	// disk; give it a beat, then require the config directory.
	grace := m.Grace
	if grace <= 0 {
		grace = defaultGrace
	}
	select {
	case <-time.After(grace):
	case <-ctx.Done():
		h.Close()
		m.setState(StateStopped)
		return nil, ctx.Err()
	}
	if _, err := os.Stat(configDir); err != nil {
		h.Close()
		return nil, m.fail(errTmpFolderMissing)
	}

	session := newSession(h, configDir, m.Notifier, m.Logger)
	m.mu.Lock()
	m.state = StateRunning
	m.session = session
	m.mu.Unlock()
	m.status("pro session running")
	go m.watchOutput(h)

	if !session.LoggedIn() && m.Notifier != nil {
		m.Notifier.RequireLogin()
	}
	// Surface the port immediately when the artifact is already present;
	// callers re-poll for late discovery.
	session.Port()

	return session, nil
}

// resolveLaunchArgs derives the spawn arguments for the Launching transition:
// the static Args, then any pro.args entries from the resolved configuration.
// Config problems degrade to the static arguments with one logged line.
func (m *Manager) resolveLaunchArgs() []string {
	args := append([]string{}, m.Args...)
	if m.Registry == nil {
		return args
	}

	path := m.ConfigPath
	if path == "" {
		found, err := conf.FindConfig(m.WorkDir)
		if err != nil {
			logf(m.Logger, "pro session: %v, launching with default arguments", err)
			return args
		}
		path = found
	}

	resolver := &conf.Resolver{Registry: m.Registry, Logger: m.Logger}
	cfg, err := resolver.Resolve(path)
	if err != nil {
		logf(m.Logger, "pro session: config resolution failed (%v), launching with default arguments", err)
		return args
	}
	return append(args, m.proArgs(cfg)...)
}

// proArgs extracts the pro.args string list from the merged parameters.
func (m *Manager) proArgs(cfg *conf.Config) []string {
	section, ok := cfg.Parameters["pro"].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := section["args"].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			logf(m.Logger, "pro session: ignoring non-string pro.args entry %v", v)
			continue
		}
		out = append(out, s)
	}
	return out
}

// Stop disposes the session, if any, and moves the manager to Stopped.
// The underlying process is not killed. Idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	session := m.session
	m.state = StateStopped
	m.mu.Unlock()
	if session != nil {
		session.Stop()
	}
}

// awaitReady consumes stdout until the readiness marker appears, reporting
// progress markers along the way. The process exiting first is a failure.
func (m *Manager) awaitReady(ctx context.Context, h *proc.Handle) error {
	marker := m.ReadyMarker
	if marker == "" {
		marker = defaultReadyMarker
	}
	for {
		select {
		case line, ok := <-h.Stdout():
			if !ok {
				st := h.Wait()
				return &proc.ProcessExitError{Code: st.Code, Stderr: h.StderrTail()}
			}
			if p, found := ParseProgress(line); found {
				m.reportProgress(p)
			}
			if strings.Contains(line, marker) {
				return nil
			}
		case <-h.Done():
			return &proc.ProcessExitError{Code: h.Wait().Code, Stderr: h.StderrTail()}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// watchOutput keeps consuming stdout after readiness so the stream never
// backs up; progress markers from watch-mode re-checks keep flowing.
func (m *Manager) watchOutput(h *proc.Handle) {
	for line := range h.Stdout() {
		if p, found := ParseProgress(line); found {
			m.reportProgress(p)
		}
	}
}

// drainStderr forwards stderr lines to the logger so the channel never backs
// up; the handle's tail buffer keeps them for failure reporting.
func (m *Manager) drainStderr(h *proc.Handle) {
	for line := range h.Stderr() {
		logf(m.Logger, "pro stderr: %s", line)
	}
}

func (m *Manager) reportProgress(p Progress) {
	if m.OnProgress != nil {
		m.OnProgress(p)
	}
	m.status(fmt.Sprintf("analyzing %d/%d (%d%%)", p.Done, p.Total, p.Percentage))
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// fail records the cause, transitions to Failed, and passes the error through.
func (m *Manager) fail(err error) error {
	m.mu.Lock()
	m.state = StateFailed
	m.cause = err.Error()
	m.mu.Unlock()
	logf(m.Logger, "pro session failed: %v", err)
	m.status("pro session failed")
	return err
}

func (m *Manager) status(text string) {
	if m.Notifier != nil {
		m.Notifier.Status(text)
	}
}

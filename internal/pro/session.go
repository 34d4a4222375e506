package pro

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"checkup/internal/notify"
	"checkup/internal/proc"
)

const (
	// portFileName is the side-channel artifact carrying the listening port.
	portFileName = "port.json"
	// loginFileName signals authenticated state by its mere existence.
	loginFileName = "login.json"
)

// Session is a running pro session. Port and login state are discovered by
// polling filesystem artifacts under ConfigDir; both are re-checked on every
// query, there is no background refresh.
type Session struct {
	ConfigDir string

	handle   *proc.Handle
	notifier notify.Notifier
	logger   *log.Logger

	mu       sync.Mutex
	stopped  bool
	portSeen bool
	monitor  *errorMonitor
}

func newSession(h *proc.Handle, configDir string, n notify.Notifier, l *log.Logger) *Session {
	return &Session{
		ConfigDir: configDir,
		handle:    h,
		notifier:  n,
		logger:    l,
	}
}

// Port polls port.json under the config directory. The first successful
// discovery fires the port notification and attaches the error monitor.
func (s *Session) Port() (int, bool) {
	data, err := os.ReadFile(filepath.Join(s.ConfigDir, portFileName))
	if err != nil {
		return 0, false
	}
	var artifact struct {
		Port int `json:"port"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		logf(s.logger, "pro session: malformed %s: %v", portFileName, err)
		return 0, false
	}
	if artifact.Port == 0 {
		logf(s.logger, "pro session: %s carries no port value", portFileName)
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.portSeen && !s.stopped {
		s.portSeen = true
		if s.notifier != nil {
			s.notifier.PortDiscovered(artifact.Port)
		}
		s.monitor = startErrorMonitor(artifact.Port, 5*time.Second, s.logger)
	}
	return artifact.Port, true
}

// LoggedIn reports whether the login-credential artifact exists.
func (s *Session) LoggedIn() bool {
	_, err := os.Stat(filepath.Join(s.ConfigDir, loginFileName))
	return err == nil
}

// Alive reports whether the underlying process has not been observed to exit.
func (s *Session) Alive() bool { return s.handle.Alive() }

// Stop disposes the session: the error monitor is terminated and stream
// listening stops. The OS process is left running; use Kill to terminate it.
// Idempotent.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	monitor := s.monitor
	s.monitor = nil
	s.mu.Unlock()

	if monitor != nil {
		monitor.Stop()
	}
	s.handle.Close()
}

// Kill terminates the underlying OS process.
func (s *Session) Kill() error { return s.handle.Kill() }

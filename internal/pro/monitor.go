package pro

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// errorMonitor pings the pro session's local HTTP endpoint and logs once each
// time it becomes unreachable. Attached when the port is discovered, disposed
// with the session.
type errorMonitor struct {
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func startErrorMonitor(port int, interval time.Duration, logger *log.Logger) *errorMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := &errorMonitor{
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go m.loop(port, interval, logger)
	return m
}

func (m *errorMonitor) loop(port int, interval time.Duration, logger *log.Logger) {
	defer close(m.done)

	client := &http.Client{Timeout: 2 * time.Second}
	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reported := false
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			resp, err := client.Get(url)
			if err != nil {
				if !reported {
					logf(logger, "pro session unreachable on port %d: %v", port, err)
					reported = true
				}
				continue
			}
			resp.Body.Close()
			reported = false
		}
	}
}

// Stop terminates the monitor and waits for its loop to exit. Idempotent.
func (m *errorMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	<-m.done
}

func logf(l *log.Logger, format string, args ...any) {
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

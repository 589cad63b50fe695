// Package network tracks reachability of the sync endpoint.
package network

import (
	"context"
	"sync"
	"time"

	"raccolta/pkg/logger"
)

// Pinger probes the remote endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Listener is called on every online/offline transition.
type Listener func(online bool)

// Config tunes probing.
type Config struct {
	CheckInterval time.Duration
	CheckTimeout  time.Duration
	// FailureThreshold consecutive failed probes switch an online detector
	// to offline.
	FailureThreshold int
}

// DefaultConfig returns the probing defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:    15 * time.Second,
		CheckTimeout:     5 * time.Second,
		FailureThreshold: 2,
	}
}

type state int

const (
	stateUnknown state = iota
	stateOnline
	stateOffline
)

// Detector reports offline until its first probe completes; the first
// result is always delivered to listeners.
type Detector struct {
	pinger Pinger
	cfg    Config
	log    *logger.Logger

	mu        sync.Mutex
	state     state
	failures  int
	listeners []Listener
}

// NewDetector creates a detector. Zero config fields take defaults.
func NewDetector(p Pinger, cfg Config, log *logger.Logger) *Detector {
	def := DefaultConfig()
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = def.CheckInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if log == nil {
		log = logger.Default()
	}
	return &Detector{pinger: p, cfg: cfg, log: log.WithComponent("network")}
}

// OnChange registers a listener. Listeners run synchronously on the probe
// goroutine and must not block.
func (d *Detector) OnChange(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Online reports the last known state.
func (d *Detector) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == stateOnline
}

// Run probes until ctx is done.
func (d *Detector) Run(ctx context.Context) error {
	d.Check(ctx)
	ticker := time.NewTicker(d.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Check(ctx)
		}
	}
}

// Check runs one probe and returns the resulting state.
func (d *Detector) Check(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, d.cfg.CheckTimeout)
	err := d.pinger.Ping(pctx)
	cancel()

	d.mu.Lock()
	prev := d.state
	if err == nil {
		d.failures = 0
		d.state = stateOnline
	} else {
		d.failures++
		if prev != stateOnline || d.failures >= d.cfg.FailureThreshold {
			d.state = stateOffline
		}
	}
	next := d.state
	listeners := append([]Listener(nil), d.listeners...)
	failures := d.failures
	d.mu.Unlock()

	if next == prev {
		if err != nil {
			d.log.WithContext(ctx).Debugw("probe failed", "failures", failures, "error", err)
		}
		return next == stateOnline
	}

	online := next == stateOnline
	if online {
		d.log.WithContext(ctx).Infow("sync endpoint reachable")
	} else {
		d.log.WithContext(ctx).Warnw("sync endpoint unreachable", "failures", failures, "error", err)
	}
	for _, l := range listeners {
		l(online)
	}
	return online
}

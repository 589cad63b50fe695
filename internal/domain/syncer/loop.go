package syncer

import (
	"context"
	"time"

	appctx "raccolta/internal/core/context"
)

// Start enables automatic sync. While online a timer drains the retry
// queue and then pushes pending documents every Interval. Stop ends it.
func (m *Manager) Start(ctx context.Context) {
	m.loopMu.Lock()
	m.baseCtx = ctx
	m.loopMu.Unlock()
	if m.online.Load() {
		m.startLoop()
	}
}

// Stop halts automatic sync and waits for a running tick to finish.
func (m *Manager) Stop() {
	m.loopMu.Lock()
	m.baseCtx = nil
	m.loopMu.Unlock()
	m.haltLoop()
	m.wg.Wait()
}

// HandleNetworkChange reacts to connectivity transitions. Going online
// triggers one immediate pass and restarts the timer; going offline stops
// the timer without aborting an in-flight request.
func (m *Manager) HandleNetworkChange(online bool) {
	if m.online.Swap(online) == online {
		return
	}
	if online {
		m.events.publish(Event{Type: EventOnline})
		m.startLoop()
		m.trigger()
		return
	}
	m.events.publish(Event{Type: EventOffline})
	m.haltLoop()
}

func (m *Manager) startLoop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.baseCtx == nil || m.stopLoop != nil {
		return
	}
	ctx, cancel := context.WithCancel(m.baseCtx)
	m.stopLoop = cancel
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

func (m *Manager) haltLoop() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	if m.stopLoop != nil {
		m.stopLoop()
		m.stopLoop = nil
	}
}

// trigger holds loopMu through wg.Add so a concurrent Stop either sees
// the goroutine in Wait or prevents it from starting.
func (m *Manager) trigger() {
	m.loopMu.Lock()
	defer m.loopMu.Unlock()
	ctx := m.baseCtx
	if ctx == nil {
		return
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.tick(ctx)
	}()
}

// tick skips silently when a pass is already running or the agent is
// offline. Pass errors are logged and published by the pass itself.
func (m *Manager) tick(ctx context.Context) {
	if err := m.acquire(); err != nil {
		return
	}
	defer m.release()
	_, _ = m.drainThenPush(appctx.EnsureTrace(ctx))
}

package network

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"raccolta/pkg/logger"
)

type scriptedPinger struct {
	mu      sync.Mutex
	results []error
}

func (p *scriptedPinger) Ping(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return nil
	}
	err := p.results[0]
	p.results = p.results[1:]
	return err
}

var errDown = errors.New("connection refused")

func newTestDetector(results ...error) (*Detector, *[]bool) {
	d := NewDetector(&scriptedPinger{results: results}, Config{FailureThreshold: 2}, logger.NewNop())
	var seen []bool
	d.OnChange(func(online bool) { seen = append(seen, online) })
	return d, &seen
}

func TestFirstProbeAlwaysNotifies(t *testing.T) {
	d, seen := newTestDetector(errDown)
	assert.False(t, d.Online())

	assert.False(t, d.Check(context.Background()))
	assert.Equal(t, []bool{false}, *seen)
}

func TestOfflineNeedsConsecutiveFailures(t *testing.T) {
	d, seen := newTestDetector(nil, errDown, nil, errDown, errDown, nil)
	ctx := context.Background()

	assert.True(t, d.Check(ctx))
	assert.True(t, d.Check(ctx), "one failure is tolerated")
	assert.True(t, d.Check(ctx))
	assert.True(t, d.Check(ctx))
	assert.False(t, d.Check(ctx))
	assert.True(t, d.Check(ctx))

	assert.Equal(t, []bool{true, false, true}, *seen)
}

func TestRunStopsWithContext(t *testing.T) {
	d := NewDetector(&scriptedPinger{}, Config{CheckInterval: time.Millisecond}, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, d.Online, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

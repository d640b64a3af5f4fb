package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/libaccess/internal/libaccess/service"
)

type gauge struct {
	mu  sync.Mutex
	val int64
	set int
}

func (g *gauge) SetOccupancy(n int64) {
	g.mu.Lock()
	g.val, g.set = n, g.set+1
	g.mu.Unlock()
}

func (g *gauge) snapshot() (int64, int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.val, g.set
}

type countFunc func(context.Context) (int64, error)

func (f countFunc) CountOpen(ctx context.Context) (int64, error) { return f(ctx) }

func TestOccupancySampler_PublishesCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.tracker.CheckIn(ctx, 42, "Q")
	require.NoError(t, err)
	_, err = f.tracker.CheckIn(ctx, 43, "Q")
	require.NoError(t, err)

	g := &gauge{}
	s := service.NewOccupancySampler(f.sessions, g, time.Hour, silentLogger())
	s.Start(ctx)
	defer s.Stop()

	require.Eventually(t, func() bool {
		_, n := g.snapshot()
		return n >= 1
	}, time.Second, 5*time.Millisecond)

	val, _ := g.snapshot()
	assert.Equal(t, int64(2), val)
}

func TestOccupancySampler_Ticks(t *testing.T) {
	var calls int64
	var mu sync.Mutex
	counter := countFunc(func(context.Context) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return calls, nil
	})

	g := &gauge{}
	s := service.NewOccupancySampler(counter, g, 5*time.Millisecond, silentLogger())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		_, n := g.snapshot()
		return n >= 3
	}, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestOccupancySampler_ErrorLeavesGaugeUntouched(t *testing.T) {
	called := make(chan struct{}, 1)
	counter := countFunc(func(context.Context) (int64, error) {
		select {
		case called <- struct{}{}:
		default:
		}
		return 0, errors.New("db down")
	})

	g := &gauge{}
	s := service.NewOccupancySampler(counter, g, time.Hour, silentLogger())
	s.Start(context.Background())
	<-called
	s.Stop()

	_, n := g.snapshot()
	assert.Zero(t, n)
}

func TestOccupancySampler_DisabledAndStopBeforeStart(t *testing.T) {
	g := &gauge{}
	s := service.NewOccupancySampler(countFunc(func(context.Context) (int64, error) { return 1, nil }), g, 0, silentLogger())

	s.Stop()
	s.Start(context.Background())
	s.Stop()

	_, n := g.snapshot()
	assert.Zero(t, n)
}

func TestOccupancySampler_StopsOnContextCancel(t *testing.T) {
	g := &gauge{}
	s := service.NewOccupancySampler(countFunc(func(context.Context) (int64, error) { return 1, nil }), g, time.Millisecond, silentLogger())

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sampler did not stop after context cancel")
	}
}

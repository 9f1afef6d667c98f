package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/crnapay/crnapay-stack/common/budgetguard"
	"github.com/crnapay/crnapay-stack/common/logging"
	"github.com/crnapay/crnapay-stack/core/internal/service"
)

type switchGuard struct {
	mu     sync.Mutex
	paused bool
	err    error
}

func (g *switchGuard) set(paused bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused, g.err = paused, err
}

func (g *switchGuard) IsPaused(context.Context, budgetguard.Target) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused, g.err
}

type consumerCounter struct {
	mu      sync.Mutex
	starts  int
	stops   int
	failing bool
}

func (c *consumerCounter) start(context.Context) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return nil, errors.New("stream not found")
	}
	c.starts++
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.stops++
	}, nil
}

func (c *consumerCounter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.starts, c.stops
}

func TestSupervisor_PauseAndResume(t *testing.T) {
	guard := &switchGuard{}
	consumer := &consumerCounter{}
	sup := service.NewSupervisor(consumer.start, guard, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, sup.Running, time.Second, time.Millisecond)

	guard.set(true, nil)
	assert.Eventually(t, func() bool { return !sup.Running() }, time.Second, time.Millisecond)

	guard.set(false, nil)
	assert.Eventually(t, sup.Running, time.Second, time.Millisecond)

	cancel()
	<-done

	starts, stops := consumer.counts()
	assert.Equal(t, 2, starts)
	assert.Equal(t, 2, stops)
	assert.False(t, sup.Running())
}

func TestSupervisor_GuardErrorFailsOpen(t *testing.T) {
	guard := &switchGuard{err: errors.New("redis: connection refused")}
	consumer := &consumerCounter{}
	sup := service.NewSupervisor(consumer.start, guard, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	assert.Eventually(t, sup.Running, time.Second, time.Millisecond)
}

func TestSupervisor_RetriesFailedStart(t *testing.T) {
	consumer := &consumerCounter{failing: true}
	sup := service.NewSupervisor(consumer.start, nil, 5*time.Millisecond, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, sup.Running())

	consumer.mu.Lock()
	consumer.failing = false
	consumer.mu.Unlock()

	assert.Eventually(t, sup.Running, time.Second, time.Millisecond)
}

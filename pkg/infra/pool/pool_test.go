package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", nil)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, 1000, p.Cap())
}

func TestPoolSubmit(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 10, ExpiryDuration: 5 * time.Second})
	require.NoError(t, err)
	defer p.Release()

	var counter atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			counter.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(100), counter.Load())
	assert.Equal(t, int64(100), p.Stats().Submitted)
}

func TestPoolSubmitWithContext(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 5, ExpiryDuration: 5 * time.Second})
	require.NoError(t, err)
	defer p.Release()

	done := make(chan struct{})
	require.NoError(t, p.SubmitWithContext(context.Background(), func() { close(done) }))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task not executed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = p.SubmitWithContext(ctx, func() { t.Error("cancelled task must not run") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolOverloadAndFallback(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 1, ExpiryDuration: time.Second, Nonblocking: true})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolOverload)

	ran := make(chan struct{})
	p.Go(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("fallback goroutine did not run")
	}
	close(block)

	s := p.Stats()
	assert.Equal(t, int64(1), s.Rejected)
	assert.Equal(t, int64(1), s.Fallback)
}

func TestPoolReleased(t *testing.T) {
	p, err := NewPool("test", &Config{Capacity: 2})
	require.NoError(t, err)
	p.Release()
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)

	ran := make(chan struct{})
	p.Go(func() { close(ran) })
	<-ran
}

func TestNilPoolGo(t *testing.T) {
	var p *Pool
	ran := make(chan struct{})
	p.Go(func() { close(ran) })
	<-ran
}

func TestPoolPanicRecovery(t *testing.T) {
	caught := make(chan any, 1)
	p, err := NewPool("test", &Config{
		Capacity:     2,
		PanicHandler: func(r any) { caught <- r },
	})
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	select {
	case r := <-caught:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called")
	}
	assert.Eventually(t, func() bool { return p.Stats().Panics == 1 }, time.Second, 10*time.Millisecond)
}

func TestPoolFallbackPanicRecovery(t *testing.T) {
	caught := make(chan any, 1)
	p, err := NewPool("test", &Config{
		Capacity:       1,
		ExpiryDuration: time.Second,
		Nonblocking:    true,
		PanicHandler:   func(r any) { caught <- r },
	})
	require.NoError(t, err)
	defer p.Release()

	block := make(chan struct{})
	defer close(block)
	started := make(chan struct{})
	require.NoError(t, p.Submit(func() {
		close(started)
		<-block
	}))
	<-started

	p.Go(func() { panic("overloaded boom") })
	select {
	case r := <-caught:
		assert.Equal(t, "overloaded boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic handler not called on fallback goroutine")
	}
	assert.Equal(t, int64(1), p.Stats().Fallback)
	assert.Equal(t, int64(1), p.Stats().Panics)
}

func TestNilPoolGoRecoversPanic(t *testing.T) {
	var p *Pool
	done := make(chan struct{})
	p.Go(func() {
		defer close(done)
		panic("boom")
	})
	<-done
}

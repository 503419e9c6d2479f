// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{ListenAddr: "127.0.0.1:0"}, nil, nil)
	require.Error(t, err)

	_, err = NewManager(Config{}, okHandler(), nil)
	require.Error(t, err)

	m, err := NewManager(Config{ListenAddr: "127.0.0.1:0"}, okHandler(), nil)
	require.NoError(t, err)
	require.NotNil(t, m)
}

func TestShutdownBeforeStart(t *testing.T) {
	m, err := NewManager(Config{ListenAddr: "127.0.0.1:0"}, okHandler(), nil)
	require.NoError(t, err)

	err = m.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, err := NewManager(Config{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not stop after context cancel")
	}
}

func TestShutdownHooksRunInReverseOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	m, err := NewManager(Config{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	var mu sync.Mutex
	var order []string
	record := func(name string) ShutdownHook {
		return func(context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}
	m.RegisterShutdownHook("first", record("first"))
	m.RegisterShutdownHook("second", record("second"))
	m.RegisterShutdownHook("third", record("third"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestShutdownCollectsHookErrors(t *testing.T) {
	m, err := NewManager(Config{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	hookErr := errors.New("store close failed")
	ran := false
	m.RegisterShutdownHook("store", func(context.Context) error { return hookErr })
	m.RegisterShutdownHook("later", func(context.Context) error { ran = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	err = <-done
	require.Error(t, err)
	assert.ErrorIs(t, err, hookErr)
	assert.True(t, ran, "a failing hook must not stop the remaining hooks")
}

func TestShutdownIsIdempotent(t *testing.T) {
	m, err := NewManager(Config{
		ListenAddr:      "127.0.0.1:0",
		ShutdownTimeout: 2 * time.Second,
	}, okHandler(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	// Second shutdown is a no-op.
	assert.NoError(t, m.Shutdown(context.Background()))
}

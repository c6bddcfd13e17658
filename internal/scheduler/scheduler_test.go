package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) CleanupExpiredTokens(context.Context) (int64, error) {
	c.calls.Add(1)
	return 3, c.err
}

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := New(time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestRegisterTokenCleanup(t *testing.T) {
	m := newManager(t)
	require.NoError(t, m.RegisterTokenCleanup(&countingCleaner{}))
	assert.Equal(t, []string{"token-cleanup"}, m.Jobs())
}

func TestTokenCleanupRuns(t *testing.T) {
	m := newManager(t)
	m.cleanup = gocron.DurationJob(20 * time.Millisecond)
	c := &countingCleaner{err: errors.New("db down")}
	require.NoError(t, m.RegisterTokenCleanup(c))
	m.Start()

	assert.Eventually(t, func() bool { return c.calls.Load() >= 2 }, 2*time.Second, 10*time.Millisecond,
		"failures do not stop later runs")
}

func TestRunCleanupSwallowsErrors(t *testing.T) {
	m := newManager(t)
	c := &countingCleaner{err: errors.New("db down")}
	assert.NotPanics(t, func() { m.runCleanup(context.Background(), c) })
	assert.EqualValues(t, 1, c.calls.Load())
}

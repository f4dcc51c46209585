package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"replayhub/internal/testutil"
)

type fakePruner struct {
	before int64
	calls  int
}

func (f *fakePruner) Prune(ctx context.Context, before int64) (int64, error) {
	f.calls++
	f.before = before
	return 3, nil
}

func TestAuditRetention_RunOnce(t *testing.T) {
	clk := testutil.FixedClock()
	p := &fakePruner{}
	job := &AuditRetention{Pruner: p, Clock: clk, Retention: 24 * time.Hour}

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, clk.Now().Add(-24*time.Hour).UnixMilli(), p.before)
}

func TestAuditRetention_ZeroRetentionKeepsEverything(t *testing.T) {
	p := &fakePruner{}
	job := &AuditRetention{Pruner: p, Clock: testutil.FixedClock()}

	n, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, p.calls)
}

func TestEvery_RunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int32

	done := make(chan struct{})
	go func() {
		Every(ctx, "test", time.Millisecond, func(context.Context) (int64, error) {
			if atomic.AddInt32(&runs, 1) == 3 {
				cancel()
			}
			return 0, errors.New("keeps going")
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Every did not stop after cancel")
	}
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runs), int32(3))
}

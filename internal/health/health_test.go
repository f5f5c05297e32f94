package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeChain struct {
	calls     atomic.Int32
	block     bool
	slotErr   error
	height    uint64
	blockTime *solana.UnixTimeSeconds
}

func (f *fakeChain) GetSlot(ctx context.Context, _ solanarpc.CommitmentType) (uint64, error) {
	f.calls.Add(1)
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if f.slotErr != nil {
		return 0, f.slotErr
	}
	return 1_000, nil
}

func (f *fakeChain) GetBlockHeight(context.Context, solanarpc.CommitmentType) (uint64, error) {
	return f.height, nil
}

func (f *fakeChain) GetBlockTime(context.Context, uint64) (*solana.UnixTimeSeconds, error) {
	return f.blockTime, nil
}

func blockAt(t time.Time) *solana.UnixTimeSeconds {
	ts := solana.UnixTimeSeconds(t.Unix())
	return &ts
}

func testConfig() Config {
	return Config{
		Timeout:            20 * time.Millisecond,
		Retries:            2,
		RetryInterval:      time.Millisecond,
		StalenessThreshold: time.Minute,
	}
}

func TestCheckLivenessHealthy(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	chain := &fakeChain{height: 42, blockTime: blockAt(now.Add(-10 * time.Second))}
	m := NewRPCMonitor(chain, testConfig(), zaptest.NewLogger(t))
	m.now = func() time.Time { return now }

	status := m.CheckLiveness(context.Background())

	assert.True(t, status.Healthy)
	require.NotNil(t, status.BlockHeight)
	assert.Equal(t, uint64(42), *status.BlockHeight)
	assert.Empty(t, status.Error)
	assert.Equal(t, now, status.CheckedAt)
}

func TestCheckLivenessStaleBlock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	chain := &fakeChain{height: 42, blockTime: blockAt(now.Add(-2 * time.Minute))}
	m := NewRPCMonitor(chain, testConfig(), zaptest.NewLogger(t))
	m.now = func() time.Time { return now }

	status := m.CheckLiveness(context.Background())

	assert.False(t, status.Healthy)
	require.NotNil(t, status.BlockHeight, "a stale answer still reports the height it saw")
	assert.Equal(t, uint64(42), *status.BlockHeight)
	assert.Contains(t, status.Error, "2m0s")
}

func TestCheckLivenessTimeout(t *testing.T) {
	chain := &fakeChain{block: true}
	m := NewRPCMonitor(chain, testConfig(), zaptest.NewLogger(t))

	status := m.CheckLiveness(context.Background())

	assert.False(t, status.Healthy)
	assert.Equal(t, ErrorTimeout, status.Error)
	assert.Nil(t, status.BlockHeight)
	assert.Equal(t, int32(2), chain.calls.Load(), "every attempt is used before giving up")
}

func TestCheckLivenessRPCError(t *testing.T) {
	chain := &fakeChain{slotErr: errors.New("connection refused")}
	m := NewRPCMonitor(chain, testConfig(), zaptest.NewLogger(t))

	status := m.CheckLiveness(context.Background())

	assert.False(t, status.Healthy)
	assert.Contains(t, status.Error, "getSlot")
	assert.Contains(t, status.Error, "connection refused")
	assert.Equal(t, int32(2), chain.calls.Load())
}

func TestCheckLivenessMissingBlockTimeIsNotRetried(t *testing.T) {
	chain := &fakeChain{height: 1}
	m := NewRPCMonitor(chain, testConfig(), zaptest.NewLogger(t))

	status := m.CheckLiveness(context.Background())

	assert.False(t, status.Healthy)
	assert.Contains(t, status.Error, "no block time")
	assert.Equal(t, int32(1), chain.calls.Load())
}

func TestStatic(t *testing.T) {
	assert.True(t, Static{Healthy: true}.CheckLiveness(context.Background()).Healthy)

	status := Static{Error: "down"}.CheckLiveness(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, "down", status.Error)
}

type scriptedMonitor struct {
	mu       sync.Mutex
	statuses []Status
	calls    int
}

func (s *scriptedMonitor) CheckLiveness(context.Context) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.statuses[min(s.calls, len(s.statuses)-1)]
	s.calls++
	return st
}

func TestWatcherServesCachedResult(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	monitor := &scriptedMonitor{statuses: []Status{
		{Healthy: true, CheckedAt: now},
		{Healthy: false, Error: ErrorTimeout, CheckedAt: now},
	}}
	w := NewWatcher(monitor, time.Hour, time.Minute, zaptest.NewLogger(t))
	w.now = func() time.Time { return now }

	var seen []Status
	w.OnRefresh(func(s Status) { seen = append(seen, s) })

	assert.False(t, w.CheckLiveness(context.Background()).Healthy, "no check yet")

	w.Refresh(context.Background())
	assert.True(t, w.CheckLiveness(context.Background()).Healthy)
	assert.True(t, w.CheckLiveness(context.Background()).Healthy)
	assert.Equal(t, 1, monitor.calls, "reads never check")

	w.Refresh(context.Background())
	status := w.CheckLiveness(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, ErrorTimeout, status.Error)

	require.Len(t, seen, 2)
	assert.True(t, seen[0].Healthy)
	assert.False(t, seen[1].Healthy)
}

func TestWatcherExpiresOldResult(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	monitor := &scriptedMonitor{statuses: []Status{{Healthy: true, CheckedAt: now}}}
	w := NewWatcher(monitor, time.Hour, time.Minute, zaptest.NewLogger(t))
	w.now = func() time.Time { return now }
	w.Refresh(context.Background())

	w.now = func() time.Time { return now.Add(2 * time.Minute) }
	status := w.CheckLiveness(context.Background())

	assert.False(t, status.Healthy)
	assert.Equal(t, "liveness result expired", status.Error)
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	monitor := &scriptedMonitor{statuses: []Status{{Healthy: true, CheckedAt: time.Now()}}}
	w := NewWatcher(monitor, time.Hour, time.Minute, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 1, monitor.calls, "Run checks once before waiting")
	assert.True(t, w.CheckLiveness(context.Background()).Healthy)
}

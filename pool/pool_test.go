package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omartijn/ozo/conn"
	"github.com/omartijn/ozo/ozoerr"
)

type fakeRows struct{}

func (fakeRows) Next() bool            { return false }
func (fakeRows) Values() [][]byte      { return nil }
func (fakeRows) Fields() []conn.Field  { return nil }
func (fakeRows) Close() (int64, error) { return 0, nil }

type fakeNative struct {
	closed atomic.Bool
}

func (n *fakeNative) Exec(ctx context.Context, q conn.Query) conn.Rows {
	return fakeRows{}
}

func (n *fakeNative) CancelToken() conn.CancelToken { return nil }

func (n *fakeNative) Close(ctx context.Context) error {
	n.closed.Store(true)
	return nil
}

func (n *fakeNative) IsClosed() bool { return n.closed.Load() }

type fakeDriver struct {
	mu     sync.Mutex
	dialed int
	fail   error
}

func (d *fakeDriver) Connect(ctx context.Context, conninfo string) (conn.NativeConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed++
	if d.fail != nil {
		return nil, d.fail
	}
	return &fakeNative{}, nil
}

func (d *fakeDriver) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dialed
}

func newTestPool(t *testing.T, cfg Config) (*Pool, *fakeDriver) {
	t.Helper()
	driver := &fakeDriver{}
	p := New(cfg, NewSource(driver, "host=testpool", time.Second, nil))
	t.Cleanup(p.Close)
	return p, driver
}

func TestAcquireUpToCapacity(t *testing.T) {
	p, driver := newTestPool(t, Config{Capacity: 2})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, driver.dials())
	assert.Equal(t, 2, p.Stats().Live)

	p.Release(a, false)
	p.Release(b, false)
	assert.Equal(t, 2, p.Stats().Idle)
}

func TestAcquireReusesIdleLIFO(t *testing.T) {
	p, driver := newTestPool(t, Config{Capacity: 2, IdleTimeout: time.Minute})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(a, false)

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, b)
	assert.Equal(t, 1, driver.dials())

	// With two idle connections the most recently returned one goes first.
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(b, false)
	p.Release(c, false)

	d, err := p.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, c, d)
	assert.Equal(t, 2, driver.dials())
}

func TestAcquireOverflowFailsImmediately(t *testing.T) {
	p, _ := newTestPool(t, Config{Capacity: 1, QueueCapacity: 0})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(a, false)

	start := time.Now()
	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, ozoerr.CodePoolQueueOverflow, ozoerr.CodeOf(err))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitersServedFIFO(t *testing.T) {
	p, _ := newTestPool(t, Config{Capacity: 1, QueueCapacity: 2, QueueTimeout: time.Second})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)

	var order []string
	var mu sync.Mutex
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		record("b")
		time.Sleep(20 * time.Millisecond)
		p.Release(c, false)
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiters == 1 }, time.Second, time.Millisecond)

	wg.Add(1)
	go func() {
		defer wg.Done()
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		record("c")
		p.Release(c, false)
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiters == 2 }, time.Second, time.Millisecond)

	p.Release(a, false)
	wg.Wait()
	assert.Equal(t, []string{"b", "c"}, order)
}

func TestWaiterTimeout(t *testing.T) {
	p, _ := newTestPool(t, Config{Capacity: 1, QueueCapacity: 1, QueueTimeout: 50 * time.Millisecond})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(a, false)

	_, err = p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, ozoerr.CodeTimeout, ozoerr.CodeOf(err))
	assert.Equal(t, 0, p.Stats().Waiters)
	assert.Equal(t, uint64(1), p.Stats().Timeouts)
}

func TestReleaseBadGrantsSlotToWaiter(t *testing.T) {
	p, driver := newTestPool(t, Config{Capacity: 1, QueueCapacity: 1, QueueTimeout: time.Second})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan *conn.Connection, 1)
	go func() {
		c, err := p.Acquire(context.Background())
		require.NoError(t, err)
		done <- c
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiters == 1 }, time.Second, time.Millisecond)

	p.Release(a, true)

	select {
	case c := <-done:
		assert.NotSame(t, a, c)
		p.Release(c, false)
	case <-time.After(time.Second):
		t.Fatal("waiter was not served after bad release")
	}
	assert.Equal(t, 2, driver.dials())
	assert.Equal(t, 1, p.Stats().Live)
}

func TestStaleIdleReplacedWithinSlot(t *testing.T) {
	p, driver := newTestPool(t, Config{Capacity: 1, IdleTimeout: 10 * time.Millisecond})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(a, false)

	time.Sleep(30 * time.Millisecond)

	b, err := p.Acquire(context.Background())
	require.NoError(t, err)
	defer p.Release(b, false)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, driver.dials())
	assert.Equal(t, 1, p.Stats().Live)
	assert.Equal(t, uint64(1), p.Stats().Discarded)
}

func TestCloseFailsWaiters(t *testing.T) {
	p, _ := newTestPool(t, Config{Capacity: 1, QueueCapacity: 1, QueueTimeout: time.Second})

	a, err := p.Acquire(context.Background())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return p.Stats().Waiters == 1 }, time.Second, time.Millisecond)

	p.Close()

	select {
	case err := <-done:
		assert.Equal(t, ozoerr.CodePoolClosed, ozoerr.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("waiter not failed on close")
	}

	_, err = p.Acquire(context.Background())
	assert.Equal(t, ozoerr.CodePoolClosed, ozoerr.CodeOf(err))

	p.Release(a, false)
}

func TestDialFailureReleasesSlot(t *testing.T) {
	driver := &fakeDriver{fail: errors.New("connection refused")}
	p := New(Config{Capacity: 1, QueueCapacity: 0}, NewSource(driver, "host=testpool", time.Second, nil))
	defer p.Close()

	_, err := p.Acquire(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, p.Stats().Live)

	// The slot is free again for the next acquire.
	driver.mu.Lock()
	driver.fail = nil
	driver.mu.Unlock()
	c, err := p.Acquire(context.Background())
	require.NoError(t, err)
	p.Release(c, false)
}

func TestLeaseNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	p, _ := newTestPool(t, Config{Capacity: capacity, QueueCapacity: 64, QueueTimeout: 5 * time.Second})

	var leased atomic.Int32
	var maxLeased atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := p.Acquire(context.Background())
			require.NoError(t, err)
			now := leased.Add(1)
			for {
				prev := maxLeased.Load()
				if now <= prev || maxLeased.CompareAndSwap(prev, now) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			leased.Add(-1)
			p.Release(c, false)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, maxLeased.Load(), int32(capacity))
}

package writerpool

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"writerpool/internal/tablewriter"
)

// P1: at most one caller holds a writer from the pool at a time.
func TestSingleWriterPerTable(t *testing.T) {
	p, _, _ := newTestPool()

	w1, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	require.NotNil(t, w1)

	_, err = p.Get(2, "orders", "ingest")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryUnavailable)
}

// P2: a write performed by caller A before returning the writer is visible
// to caller B after B acquires the same writer.
func TestHappensBeforeAcrossHandoff(t *testing.T) {
	p, _, _ := newTestPool()

	w1, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)

	counter := 0
	counter = 41
	require.NoError(t, w1.Close())

	w2, err := p.Get(2, "orders", "ingest")
	require.NoError(t, err)
	// The release (owner store with release semantics) happened-before
	// this acquire's CAS (acquire semantics); a plain write to counter
	// before Close is visible here without any separate synchronization.
	counter++
	assert.Equal(t, 42, counter)
	assert.Same(t, w1, w2)
}

// P3: eviction and a concurrent acquire never produce a torn writer —
// every observed outcome is either a clean acquire or a clean refusal.
func TestEvictionDoesNotRaceAcquire(t *testing.T) {
	p, clock, _ := newTestPool(WithInactiveWriterTTL(0))

	w1, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	require.NoError(t, w1.Close())
	clock.Advance(1)

	var wg sync.WaitGroup
	results := make(chan error, 1)
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.ReleaseAll(clock.NowMicros())
	}()
	go func() {
		defer wg.Done()
		_, err := p.Get(2, "orders", "ingest")
		results <- err
	}()
	wg.Wait()
	close(results)

	for err := range results {
		if err != nil {
			assert.ErrorIs(t, err, ErrEntryUnavailable)
		}
	}
}

// P4: while an entry is administratively locked, no concurrent acquire
// produces a writer for that table.
func TestLockExcludesConcurrentAcquire(t *testing.T) {
	p, _, _ := newTestPool()

	require.NoError(t, p.Lock(1, "orders", "schema-change"))

	_, err := p.Get(2, "orders", "ingest")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEntryUnavailable)
}

// P5: after Unlock(name, nil, newTable=true), the very next acquire
// returns exactly the writer the pool constructed and installed in Unlock.
func TestUnlockWithNewTableHandsOffExactWriter(t *testing.T) {
	p, _, writers := newTestPool()

	require.NoError(t, p.Lock(1, "orders", "create"))
	require.NoError(t, p.Unlock(1, "orders", nil, true))

	w, err := p.Get(2, "orders", "ingest")
	require.NoError(t, err)
	assert.Same(t, writers["orders"], w)
}

// P6: if writer construction fails for caller T, T's next acquire re-sees
// the same error, then the entry disappears and a third acquire builds a
// fresh writer.
func TestConsistentCreationFailure(t *testing.T) {
	boom := errors.New("disk full")
	attempts := 0

	p := Open("/var/testroot",
		WithClock(&fakeClock{}),
		WithFS(newFakeFS()),
		WithWriterFactory(func(name string, isNewTable bool) (tablewriter.Writer, error) {
			attempts++
			if attempts == 1 {
				return nil, boom
			}
			return newFakeWriter(name), nil
		}),
	)

	_, err := p.Get(1, "orders", "ingest")
	require.Error(t, err)
	first := err

	_, err = p.Get(1, "orders", "ingest")
	require.Error(t, err)
	assert.ErrorIs(t, err, first)

	w, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 2, attempts)
}

// P7: if rollback fails on return, the entry is removed and the writer
// physically destroyed; the next acquire constructs a new writer.
func TestDistressedReturnRebuildsWriter(t *testing.T) {
	p, _, writers := newTestPool()

	w, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	fw := w.(*fakeWriter)
	fw.rollback = func() error { return errors.New("disk full") }

	require.NoError(t, w.Close())
	assert.True(t, fw.isClosed())

	w2, err := p.Get(2, "orders", "ingest")
	require.NoError(t, err)
	assert.NotSame(t, writers["orders"], fw)
	assert.Same(t, writers["orders"], w2)
}

// P8 (pool-closed race during claim): a writer handed back while the pool
// is concurrently closing must be repointed at the default lifecycle
// manager, so the caller's own Close() tears it down instead of routing
// back into a pool entry whose writer field has already been cleared.
func TestClaimOnPoolCloseRewiresLifecycle(t *testing.T) {
	p, _, writers := newTestPool()

	w1, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	require.NoError(t, w1.Close())

	e, ok := p.entries.Load("orders")
	require.True(t, ok)
	ent := e.(*entry)
	require.True(t, ent.owner.CompareAndSwap(Unallocated, 2))

	// Simulate Close() having flipped the pool shut between acquire's
	// initial open check and this entry's claim.
	p.closed.Store(true)

	w2, err := p.claim("orders", ent, 2, "ingest")
	require.NoError(t, err)
	require.NotNil(t, w2)

	require.NoError(t, w2.Close())
	assert.True(t, writers["orders"].isClosed())
}

// P8: closing the pool twice is safe, and new acquires fail PoolClosed.
func TestClosePoolIdempotent(t *testing.T) {
	p, _, _ := newTestPool()

	_, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, err = p.Get(2, "orders", "ingest")
	assert.ErrorIs(t, err, ErrPoolClosed)
}

// P9: any EntryUnavailable/EntryLocked error carries a non-empty reason.
func TestReasonNeverEmpty(t *testing.T) {
	p, _, _ := newTestPool()

	_, err := p.Get(1, "orders", "first-holder")
	require.NoError(t, err)

	_, err = p.Get(2, "orders", "ingest")
	require.Error(t, err)

	var re *ReasonError
	require.ErrorAs(t, err, &re)
	assert.NotEmpty(t, re.Reason)
}

func TestGetOrPublishCommandDeliversToBusyWriter(t *testing.T) {
	p, _, writers := newTestPool()

	w, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)

	var ran bool
	got, err := p.GetOrPublishCommand(2, "orders", "ingest", func() { ran = true })
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, w.Tick(true))
	assert.True(t, ran)
	assert.Same(t, writers["orders"], w)
}

func TestSizeBusyFreeCounts(t *testing.T) {
	p, _, _ := newTestPool()

	_, err := p.Get(1, "orders", "ingest")
	require.NoError(t, err)
	_, err = p.Get(2, "trades", "ingest")
	require.NoError(t, err)

	assert.Equal(t, 2, p.Size())
	assert.Equal(t, 2, p.BusyCount())
	assert.Equal(t, 0, p.FreeCount())
}

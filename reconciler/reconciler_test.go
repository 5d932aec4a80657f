package reconciler

import (
	"context"
	"testing"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agritrace/provenance-node/db"
	"github.com/agritrace/provenance-node/store"
	"github.com/agritrace/provenance-node/testutils"
)

var (
	testContract = ethcommon.HexToAddress("0x00000000000000000000000000000000000000aa")
	testActor    = ethcommon.HexToAddress("0x0000000000000000000000000000000000001111")
)

type fixture struct {
	reconciler *Reconciler
	client     *fakeStreamClient
	store      *store.Store
	database   *db.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.OpenInMemoryDB(true)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	st := store.NewStore(database.Client())
	client := newFakeStreamClient()
	r := New(client, testContract, st, zerolog.Nop())
	r.initialBackoff = 1 * time.Millisecond
	r.maxBackoff = 5 * time.Millisecond

	return &fixture{reconciler: r, client: client, store: st, database: database}
}

func (f *fixture) createBatch(t *testing.T, identifier string) {
	t.Helper()
	require.NoError(t, f.store.CreateBatch(&store.Batch{
		BatchIdentifier: identifier,
		ProductName:     "Arabica beans",
		Status:          store.BatchStatusPending,
	}))
}

func (f *fixture) start(t *testing.T) *session {
	t.Helper()
	require.NoError(t, f.reconciler.Start(context.Background()))
	t.Cleanup(func() { f.reconciler.Stop() })

	select {
	case s := <-f.client.sessionCh:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not subscribe")
		return nil
	}
}

func (f *fixture) waitForEvents(t *testing.T, want int64) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		var count int64
		require.NoError(t, f.database.Client().Model(&store.ProductEvent{}).Count(&count).Error)
		if count >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected %d mirrored events, have %d", want, count)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func mustLog(t *testing.T, identifier string, eventType uint8, txHash string, block uint64, index uint) types.Log {
	t.Helper()
	log, err := testutils.RecordedLog(
		identifier, testActor, eventType, "QmPayload",
		1_700_000_000, ethcommon.HexToHash(txHash), block, index,
	)
	require.NoError(t, err)
	return log
}

func TestReconcilerLifecycle(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.reconciler.Start(context.Background()))
	assert.True(t, f.reconciler.IsRunning())

	err := f.reconciler.Start(context.Background())
	assert.Error(t, err)

	require.NoError(t, f.reconciler.Stop())
	assert.False(t, f.reconciler.IsRunning())

	// Stopping twice is harmless.
	require.NoError(t, f.reconciler.Stop())
}

func TestReconcilerMirrorsEvents(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	s := f.start(t)

	s.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	f.waitForEvents(t, 1)

	row, err := f.store.GetProductEventByTxHash(ethcommon.HexToHash("0xabc").Hex())
	require.NoError(t, err)
	assert.Equal(t, "HRV-001", row.BatchIdentifier)
	assert.Equal(t, store.EventTypeHarvest, row.EventType)
	assert.Equal(t, "QmPayload", row.ContentHash)
	assert.Equal(t, uint64(10), row.BlockNumber)
	assert.Equal(t, int64(1_700_000_000), row.BlockTime)

	batch, err := f.store.GetBatchByIdentifier("HRV-001")
	require.NoError(t, err)
	assert.Equal(t, batch.ID, row.BatchID)
}

func TestReconcilerIdempotence(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	s := f.start(t)

	// Same event delivered twice, as after a reconnect replay.
	s.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	s.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	f.waitForEvents(t, 1)

	// Give the second delivery time to land before counting.
	time.Sleep(50 * time.Millisecond)

	var count int64
	require.NoError(t, f.database.Client().Model(&store.ProductEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcilerInterleavedBatches(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	f.createBatch(t, "HRV-002")
	s := f.start(t)

	s.logs <- mustLog(t, "HRV-001", 1, "0xaaa", 10, 0)
	s.logs <- mustLog(t, "HRV-002", 1, "0xbbb", 10, 1)
	s.logs <- mustLog(t, "HRV-001", 3, "0xccc", 11, 0)
	s.logs <- mustLog(t, "HRV-002", 5, "0xddd", 12, 0)
	f.waitForEvents(t, 4)

	first, err := f.store.ListEventsForBatch("HRV-001")
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, store.EventTypeHarvest, first[0].EventType)
	assert.Equal(t, store.EventTypePicked, first[1].EventType)

	second, err := f.store.ListEventsForBatch("HRV-002")
	require.NoError(t, err)
	require.Len(t, second, 2)
	for _, row := range second {
		assert.Equal(t, "HRV-002", row.BatchIdentifier)
	}
}

func TestReconcilerSurvivesBadEvents(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	s := f.start(t)

	// Unknown batch: logged and skipped, the loop keeps going.
	s.logs <- mustLog(t, "GHOST-99", 1, "0x111", 9, 0)
	// Removed log from a reorg: skipped.
	removed := mustLog(t, "HRV-001", 1, "0x222", 9, 1)
	removed.Removed = true
	s.logs <- removed
	// A healthy event afterwards still lands.
	s.logs <- mustLog(t, "HRV-001", 1, "0x333", 10, 0)
	f.waitForEvents(t, 1)

	row, err := f.store.GetProductEventByTxHash(ethcommon.HexToHash("0x333").Hex())
	require.NoError(t, err)
	assert.Equal(t, "HRV-001", row.BatchIdentifier)

	var count int64
	require.NoError(t, f.database.Client().Model(&store.ProductEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestReconcilerReconnects(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	s := f.start(t)

	s.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	f.waitForEvents(t, 1)

	// Drop the stream from the node side; the reconciler resubscribes.
	s.sub.Fail(assert.AnError)

	var next *session
	select {
	case next = <-f.client.sessionCh:
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not resubscribe after stream drop")
	}

	// At-least-once redelivery of the old event plus a new one.
	next.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	next.logs <- mustLog(t, "HRV-001", 99, "0xdef", 20, 0)
	f.waitForEvents(t, 2)

	assert.Equal(t, 2, f.client.sessionCount())

	var count int64
	require.NoError(t, f.database.Client().Model(&store.ProductEvent{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestReconcilerRetriesInitialSubscribe(t *testing.T) {
	f := newFixture(t)
	f.createBatch(t, "HRV-001")
	f.client.subscribeErrs = []error{assert.AnError, assert.AnError}

	s := f.start(t)
	s.logs <- mustLog(t, "HRV-001", 1, "0xabc", 10, 0)
	f.waitForEvents(t, 1)
}

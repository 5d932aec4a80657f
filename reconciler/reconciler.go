// Package reconciler keeps the relational mirror consistent with the
// ledger's live event stream.
//
// The reconciler holds one persistent subscription to the provenance
// contract's ProvenanceRecorded events and idempotently upserts a mirror
// row per delivered event, keyed by transaction hash. It tolerates
// reconnects, duplicate delivery, and racing against the synchronous
// write path, all through the same upsert.
package reconciler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/ledger"
	"github.com/agritrace/provenance-node/metrics"
	"github.com/agritrace/provenance-node/store"
)

const (
	// eventChanBuffer prevents a slow upsert from blocking the stream.
	eventChanBuffer = 100

	defaultInitialBackoff = 1 * time.Second
	defaultMaxBackoff     = 30 * time.Second
)

// Reconciler is the long-lived background task draining the ledger's
// event stream into the relational mirror.
type Reconciler struct {
	client   ledger.Client
	contract ethcommon.Address
	store    *store.Store
	logger   zerolog.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration

	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New creates a reconciler for the given contract address.
func New(client ledger.Client, contract ethcommon.Address, st *store.Store, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		client:         client,
		contract:       contract,
		store:          st,
		logger:         logger.With().Str("component", "reconciler").Logger(),
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		stopCh:         make(chan struct{}),
	}
}

// Start begins draining the event stream.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.running {
		return fmt.Errorf("reconciler is already running")
	}

	r.running = true
	r.stopCh = make(chan struct{})

	r.wg.Add(1)
	go r.run(ctx)

	r.logger.Info().Str("contract", r.contract.Hex()).Msg("reconciler started")
	return nil
}

// Stop gracefully stops the reconciler: stop consuming, close the
// subscription, wait for the loop to exit.
func (r *Reconciler) Stop() error {
	if !r.running {
		return nil
	}

	r.logger.Info().Msg("stopping reconciler")
	close(r.stopCh)
	r.running = false

	r.wg.Wait()
	r.logger.Info().Msg("reconciler stopped")
	return nil
}

// IsRunning returns whether the reconciler is currently running.
func (r *Reconciler) IsRunning() bool {
	return r.running
}

// run maintains the subscription, reconnecting with exponential backoff
// on a dropped stream.
func (r *Reconciler) run(ctx context.Context) {
	defer r.wg.Done()

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		default:
		}

		if attempt > 0 {
			delay := errors.ExponentialBackoff(attempt, r.initialBackoff, r.maxBackoff)
			r.logger.Info().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("reconnecting to event stream")
			select {
			case <-ctx.Done():
				return
			case <-r.stopCh:
				return
			case <-time.After(delay):
			}
		}

		subscribed, err := r.consume(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("event stream dropped")
			metrics.StreamReconnects.Inc()
			if subscribed {
				// The connection was healthy before it dropped; start the
				// backoff schedule over.
				attempt = 1
			} else {
				attempt++
			}
			continue
		}
		// consume returned without error: shutdown was requested.
		return
	}
}

// consume opens one subscription and drains it until the stream errors
// or shutdown is requested. A nil error means shutdown; subscribed
// reports whether the subscription was established at all.
func (r *Reconciler) consume(ctx context.Context) (subscribed bool, err error) {
	logsCh := make(chan types.Log, eventChanBuffer)
	query := ethereum.FilterQuery{
		Addresses: []ethcommon.Address{r.contract},
		Topics:    [][]ethcommon.Hash{{ledger.EventTopic()}},
	}

	sub, err := r.client.SubscribeFilterLogs(ctx, query, logsCh)
	if err != nil {
		return false, err
	}
	defer sub.Unsubscribe()

	r.logger.Info().Msg("subscribed to provenance event stream")

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case <-r.stopCh:
			return true, nil
		case err := <-sub.Err():
			return true, err
		case log := <-logsCh:
			// Per-event failures are logged and skipped; one bad event
			// must not terminate the subscription loop.
			r.handleLog(&log)
		}
	}
}

// handleLog mirrors one delivered event into the relational store.
func (r *Reconciler) handleLog(log *types.Log) {
	if log.Removed {
		r.logger.Warn().
			Str("tx_hash", log.TxHash.Hex()).
			Msg("skipping removed log from chain reorganization")
		metrics.EventsReconciled.WithLabelValues("skipped").Inc()
		return
	}

	event, err := ledger.ParseRecordedLog(log)
	if err != nil {
		r.logger.Error().Err(err).
			Str("tx_hash", log.TxHash.Hex()).
			Msg("failed to parse event log")
		metrics.EventsReconciled.WithLabelValues("failed").Inc()
		return
	}
	if event == nil {
		metrics.EventsReconciled.WithLabelValues("skipped").Inc()
		return
	}

	identifier := event.BatchIdentifier()
	batch, err := r.store.GetBatchByIdentifier(identifier)
	if err != nil {
		r.logger.Error().Err(err).
			Str("batch_identifier", identifier).
			Str("tx_hash", log.TxHash.Hex()).
			Msg("cannot attribute event to a batch")
		metrics.EventsReconciled.WithLabelValues("failed").Inc()
		return
	}

	row := &store.ProductEvent{
		BatchID:         batch.ID,
		BatchIdentifier: identifier,
		EventType:       store.EventType(event.EventType),
		ContentHash:     event.ContentHash,
		ActorAddress:    event.Actor.Hex(),
		TxHash:          log.TxHash.Hex(),
		BlockNumber:     log.BlockNumber,
		LogIndex:        log.Index,
	}
	if event.Timestamp != nil {
		row.BlockTime = event.Timestamp.Int64()
	}

	if err := r.store.UpsertProductEvent(row); err != nil {
		r.logger.Error().Err(err).
			Str("tx_hash", row.TxHash).
			Msg("failed to upsert product event")
		metrics.EventsReconciled.WithLabelValues("failed").Inc()
		return
	}

	metrics.EventsReconciled.WithLabelValues("upserted").Inc()
	r.logger.Debug().
		Str("batch_identifier", identifier).
		Str("tx_hash", row.TxHash).
		Uint64("block_number", row.BlockNumber).
		Msg("event mirrored")
}

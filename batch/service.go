package batch

import (
	"context"
	"encoding/json"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/ledger"
	"github.com/agritrace/provenance-node/store"
)

// LedgerWriter records one event on the ledger and blocks until finality.
type LedgerWriter interface {
	Write(ctx context.Context, actor ethcommon.Address, batchIdentifier, contentHash string, eventType uint8) (*ledger.WriteResult, error)
}

// ContentStore uploads event payloads before they are anchored on-ledger.
type ContentStore interface {
	Put(ctx context.Context, payload []byte, contentType string) (string, error)
}

// Service drives the synchronous request path. Every Record* call holds
// the caller for the full ledger finality latency: no event exists until
// the write returns.
type Service struct {
	store   *store.Store
	content ContentStore
	writer  LedgerWriter
	logger  zerolog.Logger
}

// NewService creates the batch service.
func NewService(st *store.Store, content ContentStore, writer LedgerWriter, logger zerolog.Logger) *Service {
	return &Service{
		store:   st,
		content: content,
		writer:  writer,
		logger:  logger.With().Str("component", "batch_service").Logger(),
	}
}

// RecordHarvest records a harvest event, creating the batch in PENDING
// status if this is its first event.
func (s *Service) RecordHarvest(
	ctx context.Context,
	actor ethcommon.Address,
	identifier string,
	productName string,
	farmerID uint,
	payload []byte,
) (*ledger.WriteResult, error) {
	b, err := s.store.GetBatchByIdentifier(identifier)
	if err != nil {
		if !errors.IsCode(err, errors.ErrCodeNotFound) {
			return nil, err
		}
		b = &store.Batch{
			BatchIdentifier: identifier,
			ProductName:     productName,
			Status:          store.BatchStatusPending,
			FarmerID:        farmerID,
		}
		if err := s.store.CreateBatch(b); err != nil {
			return nil, err
		}
		s.logger.Info().
			Str("batch_identifier", identifier).
			Str("product", productName).
			Msg("batch created")
	}

	return s.record(ctx, actor, b, store.EventTypeHarvest, payload)
}

// LogisticsDetails carries the shipment data attached to logistics events.
type LogisticsDetails struct {
	Latitude  float64
	Longitude float64
	Notes     string
}

// RecordLogistics records a shipment, pickup, processing or receipt event
// and attaches a shipment log to the mirrored row.
func (s *Service) RecordLogistics(
	ctx context.Context,
	actor ethcommon.Address,
	identifier string,
	eventType store.EventType,
	payload []byte,
	details LogisticsDetails,
) (*ledger.WriteResult, error) {
	if !eventType.IsLogistics() {
		return nil, errors.Newf(errors.ErrCodeValidation,
			"event type %d is not a logistics event", eventType)
	}

	b, err := s.store.GetBatchByIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	result, err := s.record(ctx, actor, b, eventType, payload)
	if err != nil {
		return nil, err
	}

	row, err := s.store.GetProductEventByTxHash(result.TxHash)
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateShipmentLog(&store.ShipmentLog{
		ProductEventID: row.ID,
		Latitude:       details.Latitude,
		Longitude:      details.Longitude,
		Notes:          details.Notes,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// verificationPayload is the content payload of a verification event; it
// references the certificate created by the verifying admin.
type verificationPayload struct {
	CertificateID uint   `json:"certificateId"`
	Remarks       string `json:"remarks,omitempty"`
}

// Verify records a verification event and confirms the batch. The batch
// must be PENDING; the terminal transition happens only after the ledger
// write succeeds.
func (s *Service) Verify(
	ctx context.Context,
	actor ethcommon.Address,
	adminID uint,
	identifier string,
	remarks string,
) (*ledger.WriteResult, error) {
	b, err := s.store.GetBatchByIdentifier(identifier)
	if err != nil {
		return nil, err
	}
	if err := ensurePending(b); err != nil {
		return nil, err
	}

	cert := &store.Certificate{
		BatchID:  b.ID,
		IssuerID: adminID,
		Remarks:  remarks,
	}
	if err := s.store.CreateCertificate(cert); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(verificationPayload{
		CertificateID: cert.ID,
		Remarks:       remarks,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to encode verification payload", err)
	}

	result, err := s.record(ctx, actor, b, store.EventTypeVerification, payload)
	if err != nil {
		return nil, err
	}

	// The conditional update is the final guard against a concurrent
	// transition between the check above and the ledger write.
	if err := s.store.TransitionBatch(identifier, store.BatchStatusConfirmed, &adminID, nil); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("batch_identifier", identifier).
		Uint("certificate_id", cert.ID).
		Msg("batch confirmed")

	return result, nil
}

// Reject moves a PENDING batch to REJECTED. Rejection is an off-ledger
// administrative action and requires notes of at least
// MinRejectionNotesLen characters.
func (s *Service) Reject(ctx context.Context, adminID uint, identifier, notes string) error {
	if err := ValidateRejectionNotes(notes); err != nil {
		return err
	}
	if err := s.store.TransitionBatch(identifier, store.BatchStatusRejected, &adminID, &notes); err != nil {
		return err
	}

	s.logger.Info().
		Str("batch_identifier", identifier).
		Uint("admin_id", adminID).
		Msg("batch rejected")
	return nil
}

// record stores the payload, anchors the event on the ledger, and mirrors
// it, sharing the reconciler's idempotency key so the two paths converge.
func (s *Service) record(
	ctx context.Context,
	actor ethcommon.Address,
	b *store.Batch,
	eventType store.EventType,
	payload []byte,
) (*ledger.WriteResult, error) {
	contentHash, err := s.content.Put(ctx, payload, "application/json")
	if err != nil {
		// Never anchor an event whose content is not durably stored.
		return nil, err
	}

	result, err := s.writer.Write(ctx, actor, b.BatchIdentifier, contentHash, uint8(eventType))
	if err != nil {
		return nil, err
	}

	if err := s.store.UpsertProductEvent(&store.ProductEvent{
		BatchID:         b.ID,
		BatchIdentifier: b.BatchIdentifier,
		EventType:       eventType,
		ContentHash:     contentHash,
		ActorAddress:    actor.Hex(),
		TxHash:          result.TxHash,
		BlockNumber:     result.BlockNumber,
		LogIndex:        result.LogIndex,
		BlockTime:       result.BlockTime,
	}); err != nil {
		return nil, err
	}

	return result, nil
}

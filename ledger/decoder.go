package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/store"
)

// TxStatus is the decoded finality status of a transaction.
type TxStatus string

const (
	// TxStatusPending means no receipt exists yet.
	TxStatusPending TxStatus = "PENDING"
	// TxStatusVerified means the receipt's success bit is set.
	TxStatusVerified TxStatus = "VERIFIED"
	// TxStatusFailure means the transaction reverted.
	TxStatusFailure TxStatus = "FAILURE"
)

// UnknownActorName is substituted when identity resolution fails.
const UnknownActorName = "Unknown Actor"

// ActorResolver resolves a ledger account to a display name.
type ActorResolver interface {
	DisplayName(ctx context.Context, address ethcommon.Address) (string, error)
}

// ContentFetcher fetches an event payload by content address. A nil
// result means the content is unavailable, never an error.
type ContentFetcher interface {
	Get(ctx context.Context, contentHash string) []byte
}

// DecodedEvent is a typed domain event recovered from a receipt log.
type DecodedEvent struct {
	BatchIdentifier string `json:"batchIdentifier"`
	EventType       uint8  `json:"eventType"`
	EventName       string `json:"eventName"`
	ActorAddress    string `json:"actorAddress"`
	ActorName       string `json:"actorName"`
	ContentHash     string `json:"contentHash"`
	Payload         []byte `json:"payload,omitempty"`
	Timestamp       uint64 `json:"timestamp"`
}

// Decoded is the full result of decoding a transaction identifier.
type Decoded struct {
	Status        TxStatus      `json:"status"`
	TxHash        string        `json:"txHash"`
	BlockNumber   uint64        `json:"blockNumber"`
	GasUsed       uint64        `json:"gasUsed"`
	EventsEmitted int           `json:"eventsEmitted"`
	DecodedEvent  *DecodedEvent `json:"decodedEvent"`
}

// Decoder converts transaction identifiers back into typed domain events.
// It is read-only: it never touches the relational mirror.
type Decoder struct {
	client   Client
	resolver ActorResolver
	content  ContentFetcher
	logger   zerolog.Logger
}

// NewDecoder creates a receipt decoder.
func NewDecoder(client Client, resolver ActorResolver, content ContentFetcher, logger zerolog.Logger) *Decoder {
	return &Decoder{
		client:   client,
		resolver: resolver,
		content:  content,
		logger:   logger.With().Str("component", "receipt_decoder").Logger(),
	}
}

// Decode fetches and decodes the receipt for txHash. A transaction with no
// receipt yet decodes to TxStatusPending with a nil event.
func (d *Decoder) Decode(ctx context.Context, txHash ethcommon.Hash) (*Decoded, error) {
	receipt, err := d.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if err == ethereum.NotFound {
			return &Decoded{Status: TxStatusPending, TxHash: txHash.Hex()}, nil
		}
		return nil, errors.Wrap(errors.ErrCodeChainUnavailable, "failed to fetch receipt", err)
	}

	decoded := &Decoded{
		Status:        TxStatusFailure,
		TxHash:        txHash.Hex(),
		BlockNumber:   receipt.BlockNumber.Uint64(),
		GasUsed:       receipt.GasUsed,
		EventsEmitted: len(receipt.Logs),
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		decoded.Status = TxStatusVerified
	}

	for _, log := range receipt.Logs {
		event, err := ParseRecordedLog(log)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("tx_hash", txHash.Hex()).
				Uint("log_index", log.Index).
				Msg("failed to unpack matching log")
			continue
		}
		if event == nil {
			continue
		}
		decoded.DecodedEvent = d.buildEvent(ctx, event)
		break
	}

	return decoded, nil
}

// buildEvent turns an unpacked log into a DecodedEvent, resolving the
// acting identity and fetching the content payload concurrently. Both
// sub-calls degrade rather than fail the decode.
func (d *Decoder) buildEvent(ctx context.Context, event *RecordedEvent) *DecodedEvent {
	out := &DecodedEvent{
		BatchIdentifier: event.BatchIdentifier(),
		EventType:       event.EventType,
		EventName:       store.EventType(event.EventType).DisplayName(),
		ActorAddress:    event.Actor.Hex(),
		ActorName:       UnknownActorName,
		ContentHash:     event.ContentHash,
	}
	if event.Timestamp != nil {
		out.Timestamp = event.Timestamp.Uint64()
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		name, err := d.resolver.DisplayName(ctx, event.Actor)
		if err != nil {
			d.logger.Warn().Err(err).
				Str("actor", event.Actor.Hex()).
				Msg("actor resolution failed, substituting placeholder")
			return
		}
		out.ActorName = name
	}()

	go func() {
		defer wg.Done()
		out.Payload = d.content.Get(ctx, event.ContentHash)
	}()

	wg.Wait()
	return out
}

package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/batchid"
	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/metrics"
)

const (
	// defaultGasLimit is used for recordEvent calls; the call is small and
	// its cost does not depend on input beyond the content hash string.
	defaultGasLimit = 500000

	// defaultReceiptPollInterval is how often the writer polls for the
	// receipt of a submitted transaction.
	defaultReceiptPollInterval = 1 * time.Second
)

// WriteResult carries the receipt facts of a finalized event write.
type WriteResult struct {
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
	BlockTime   int64 // Unix seconds of the containing block
}

// Writer builds, signs and submits event-recording transactions and blocks
// until finality.
type Writer struct {
	client       Client
	contractAddr ethcommon.Address
	signerKey    *ecdsa.PrivateKey
	signerAddr   ethcommon.Address
	chainID      *big.Int
	writeTimeout time.Duration
	pollInterval time.Duration
	logger       zerolog.Logger
}

// NewWriter creates a ledger writer signing with the given key.
func NewWriter(
	client Client,
	contractAddr ethcommon.Address,
	signerKey *ecdsa.PrivateKey,
	chainID *big.Int,
	writeTimeout time.Duration,
	logger zerolog.Logger,
) (*Writer, error) {
	if client == nil {
		return nil, errors.New(errors.ErrCodeValidation, "ledger client is required")
	}
	if signerKey == nil {
		return nil, errors.New(errors.ErrCodeValidation, "signer key is required")
	}
	if chainID == nil {
		return nil, errors.New(errors.ErrCodeValidation, "chain id is required")
	}
	if writeTimeout <= 0 {
		return nil, errors.New(errors.ErrCodeValidation, "write timeout must be positive")
	}

	return &Writer{
		client:       client,
		contractAddr: contractAddr,
		signerKey:    signerKey,
		signerAddr:   crypto.PubkeyToAddress(signerKey.PublicKey),
		chainID:      chainID,
		writeTimeout: writeTimeout,
		pollInterval: defaultReceiptPollInterval,
		logger:       logger.With().Str("component", "ledger_writer").Logger(),
	}, nil
}

// Write records one provenance event on the ledger and blocks until the
// transaction is included in a block. No event is considered recorded
// until this returns successfully.
func (w *Writer) Write(
	ctx context.Context,
	actor ethcommon.Address,
	batchIdentifier string,
	contentHash string,
	eventType uint8,
) (*WriteResult, error) {
	encodedID, err := batchid.Encode(batchIdentifier)
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// The transaction is signed by the node's key. If the nominal actor
	// differs, proceed with the signer's identity; the discrepancy is
	// recorded nowhere else.
	if actor != w.signerAddr {
		w.logger.Warn().
			Str("nominal_actor", actor.Hex()).
			Str("signer", w.signerAddr.Hex()).
			Msg("actor address differs from transaction signer, proceeding with signer identity")
		actor = w.signerAddr
	}

	data, err := packRecordEvent(encodedID, actor, eventType, contentHash)
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("rejected").Inc()
		return nil, err
	}

	tx, err := w.submit(ctx, data)
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("unavailable").Inc()
		return nil, err
	}

	w.logger.Info().
		Str("tx_hash", tx.Hash().Hex()).
		Str("batch_identifier", batchIdentifier).
		Uint8("event_type", eventType).
		Msg("event transaction submitted, awaiting inclusion")

	receipt, err := w.waitMined(ctx, tx.Hash())
	if err != nil {
		metrics.LedgerWrites.WithLabelValues("timeout").Inc()
		return nil, err
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		metrics.LedgerWrites.WithLabelValues("reverted").Inc()
		return nil, errors.Newf(errors.ErrCodeChainRejected,
			"transaction %s reverted in block %d", tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}

	result := &WriteResult{
		TxHash:      tx.Hash().Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		LogIndex:    w.findEventLogIndex(receipt),
		BlockTime:   w.blockTime(ctx, receipt.BlockNumber),
	}

	metrics.LedgerWrites.WithLabelValues("success").Inc()
	w.logger.Info().
		Str("tx_hash", result.TxHash).
		Uint64("block_number", result.BlockNumber).
		Uint("log_index", result.LogIndex).
		Msg("event recorded on ledger")

	return result, nil
}

// submit builds, signs and sends the transaction.
func (w *Writer) submit(ctx context.Context, data []byte) (*types.Transaction, error) {
	nonce, err := w.client.PendingNonceAt(ctx, w.signerAddr)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeChainUnavailable, "failed to fetch account nonce", err)
	}

	gasPrice, err := w.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeChainUnavailable, "failed to fetch gas price", err)
	}

	tx, err := types.SignNewTx(w.signerKey, types.LatestSignerForChainID(w.chainID), &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      defaultGasLimit,
		To:       &w.contractAddr,
		Data:     data,
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to sign transaction", err)
	}

	if err := w.client.SendTransaction(ctx, tx); err != nil {
		return nil, errors.Wrap(errors.ErrCodeChainUnavailable, "failed to submit transaction", err)
	}
	return tx, nil
}

// waitMined polls for the transaction receipt under the write timeout.
func (w *Writer) waitMined(ctx context.Context, txHash ethcommon.Hash) (*types.Receipt, error) {
	deadline := time.NewTimer(w.writeTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := w.client.TransactionReceipt(ctx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && err != ethereum.NotFound {
			// Transient RPC trouble; keep polling until the deadline.
			w.logger.Debug().Err(err).Str("tx_hash", txHash.Hex()).Msg("receipt poll failed")
		}

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(errors.ErrCodeWriteTimeout, "finality wait cancelled", ctx.Err())
		case <-deadline.C:
			return nil, errors.Newf(errors.ErrCodeWriteTimeout,
				"transaction %s not included within %s", txHash.Hex(), w.writeTimeout)
		case <-ticker.C:
		}
	}
}

// findEventLogIndex locates the ProvenanceRecorded log in the receipt.
func (w *Writer) findEventLogIndex(receipt *types.Receipt) uint {
	for _, log := range receipt.Logs {
		if log.Address == w.contractAddr && len(log.Topics) > 0 && log.Topics[0] == EventTopic() {
			return log.Index
		}
	}
	w.logger.Warn().
		Str("tx_hash", receipt.TxHash.Hex()).
		Msg("successful transaction emitted no ProvenanceRecorded log")
	return 0
}

// blockTime fetches the containing block's timestamp, falling back to
// wall-clock time if the secondary fetch fails.
func (w *Writer) blockTime(ctx context.Context, blockNumber *big.Int) int64 {
	header, err := w.client.HeaderByNumber(ctx, blockNumber)
	if err != nil || header == nil {
		w.logger.Warn().Err(err).
			Uint64("block_number", blockNumber.Uint64()).
			Msg("failed to fetch block header, falling back to wall clock")
		return time.Now().Unix()
	}
	return int64(header.Time)
}

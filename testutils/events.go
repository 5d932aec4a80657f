// Package testutils provides helpers for fabricating ledger artifacts in
// tests.
package testutils

import (
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/agritrace/provenance-node/batchid"
	"github.com/agritrace/provenance-node/ledger"
)

// RecordedLog builds a ProvenanceRecorded log as the ledger node would
// deliver it over a subscription.
func RecordedLog(
	identifier string,
	actor ethcommon.Address,
	eventType uint8,
	contentHash string,
	timestamp uint64,
	txHash ethcommon.Hash,
	blockNumber uint64,
	logIndex uint,
) (types.Log, error) {
	encoded, err := batchid.Encode(identifier)
	if err != nil {
		return types.Log{}, fmt.Errorf("encode identifier: %w", err)
	}
	data, err := ledger.PackRecordedEvent(encoded, actor, eventType, contentHash, new(big.Int).SetUint64(timestamp))
	if err != nil {
		return types.Log{}, fmt.Errorf("pack event data: %w", err)
	}
	return types.Log{
		Topics:      []ethcommon.Hash{ledger.EventTopic()},
		Data:        data,
		TxHash:      txHash,
		BlockNumber: blockNumber,
		Index:       logIndex,
	}, nil
}

// Package ledger anchors provenance events on the permissioned EVM ledger
// and reads them back: building and submitting event-recording
// transactions, decoding receipts into typed domain events, and exposing
// the event signature the reconciler subscribes to.
package ledger

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/agritrace/provenance-node/batchid"
	"github.com/agritrace/provenance-node/errors"
)

// recordEventMethod is the ledger's event-recording entry point.
const recordEventMethod = "recordEvent"

// recordedEventName is the event emitted by a successful recordEvent call.
const recordedEventName = "ProvenanceRecorded"

// contractABIJSON is the relevant slice of the provenance contract's ABI.
const contractABIJSON = `[
  {
    "type": "function",
    "name": "recordEvent",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "batchId", "type": "bytes32"},
      {"name": "actor", "type": "address"},
      {"name": "eventType", "type": "uint8"},
      {"name": "contentHash", "type": "string"}
    ],
    "outputs": []
  },
  {
    "type": "event",
    "name": "ProvenanceRecorded",
    "anonymous": false,
    "inputs": [
      {"name": "batchId", "type": "bytes32", "indexed": false},
      {"name": "actor", "type": "address", "indexed": false},
      {"name": "eventType", "type": "uint8", "indexed": false},
      {"name": "contentHash", "type": "string", "indexed": false},
      {"name": "timestamp", "type": "uint256", "indexed": false}
    ]
  }
]`

var contractABI = mustParseABI(contractABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EventTopic returns the topic hash of the ProvenanceRecorded event, the
// signature the writer, decoder and reconciler all match on.
func EventTopic() ethcommon.Hash {
	return contractABI.Events[recordedEventName].ID
}

// RecordedEvent is a ProvenanceRecorded log unpacked into Go values.
type RecordedEvent struct {
	BatchId     [batchid.Width]byte
	Actor       ethcommon.Address
	EventType   uint8
	ContentHash string
	Timestamp   *big.Int
}

// BatchIdentifier decodes the fixed-width on-ledger identifier.
func (e *RecordedEvent) BatchIdentifier() string {
	return batchid.Decode(e.BatchId)
}

// packRecordEvent ABI-encodes a recordEvent call.
func packRecordEvent(id [batchid.Width]byte, actor ethcommon.Address, eventType uint8, contentHash string) ([]byte, error) {
	data, err := contractABI.Pack(recordEventMethod, id, actor, eventType, contentHash)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to pack recordEvent call", err)
	}
	return data, nil
}

// PackRecordedEvent ABI-encodes the data section of a ProvenanceRecorded
// log, the inverse of ParseRecordedLog.
func PackRecordedEvent(id [batchid.Width]byte, actor ethcommon.Address, eventType uint8, contentHash string, timestamp *big.Int) ([]byte, error) {
	data, err := contractABI.Events[recordedEventName].Inputs.Pack(id, actor, eventType, contentHash, timestamp)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to pack ProvenanceRecorded data", err)
	}
	return data, nil
}

// ParseRecordedLog unpacks a ProvenanceRecorded log. Returns nil without
// error when the log does not carry the event signature.
func ParseRecordedLog(log *types.Log) (*RecordedEvent, error) {
	if len(log.Topics) == 0 || log.Topics[0] != EventTopic() {
		return nil, nil
	}
	var event RecordedEvent
	if err := contractABI.UnpackIntoInterface(&event, recordedEventName, log.Data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "failed to unpack ProvenanceRecorded log", err)
	}
	return &event, nil
}

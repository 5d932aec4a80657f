package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agritrace/provenance-node/ledger"
)

const testHash = "0x" + "ab" + "00000000000000000000000000000000000000000000000000000000000000"

// fakeDecoder returns a canned result.
type fakeDecoder struct {
	result *ledger.Decoded
	err    error
}

func (f *fakeDecoder) Decode(_ context.Context, _ ethcommon.Hash) (*ledger.Decoded, error) {
	return f.result, f.err
}

func doRequest(t *testing.T, decoder TransactionDecoder, path string) *httptest.ResponseRecorder {
	t.Helper()
	s := NewServer(decoder, zerolog.Nop(), 0)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.setupRoutes().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	rec := doRequest(t, &fakeDecoder{}, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleTransaction(t *testing.T) {
	t.Run("final transaction answers 200 with decoded event", func(t *testing.T) {
		decoder := &fakeDecoder{result: &ledger.Decoded{
			Status:        ledger.TxStatusVerified,
			TxHash:        testHash,
			BlockNumber:   10,
			GasUsed:       52_345,
			EventsEmitted: 1,
			DecodedEvent: &ledger.DecodedEvent{
				BatchIdentifier: "HRV-001",
				EventType:       1,
				EventName:       "Harvest",
				ActorName:       "Rosa the Farmer",
			},
		}}

		rec := doRequest(t, decoder, "/transactions/"+testHash)
		assert.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Success bool           `json:"success"`
			Data    ledger.Decoded `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(t, body.Success)
		assert.Equal(t, ledger.TxStatusVerified, body.Data.Status)
		require.NotNil(t, body.Data.DecodedEvent)
		assert.Equal(t, "HRV-001", body.Data.DecodedEvent.BatchIdentifier)
	})

	t.Run("pending transaction answers 202 with null event", func(t *testing.T) {
		decoder := &fakeDecoder{result: &ledger.Decoded{
			Status: ledger.TxStatusPending,
			TxHash: testHash,
		}}

		rec := doRequest(t, decoder, "/transactions/"+testHash)
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.Contains(t, rec.Body.String(), `"decodedEvent":null`)
	})

	t.Run("malformed hash answers 400", func(t *testing.T) {
		rec := doRequest(t, &fakeDecoder{}, "/transactions/not-a-hash")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "malformed transaction hash")
	})

	t.Run("short hex answers 400", func(t *testing.T) {
		rec := doRequest(t, &fakeDecoder{}, "/transactions/0xabc")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("decode failure answers 500", func(t *testing.T) {
		rec := doRequest(t, &fakeDecoder{err: assert.AnError}, "/transactions/"+testHash)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.False(t, body.Success)
		assert.Contains(t, body.Error, "failed to decode")
	})

	t.Run("post is not allowed", func(t *testing.T) {
		s := NewServer(&fakeDecoder{}, zerolog.Nop(), 0)
		req := httptest.NewRequest(http.MethodPost, "/transactions/"+testHash, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		s.setupRoutes().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

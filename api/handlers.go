package api

import (
	"encoding/json"
	"net/http"
	"regexp"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	"github.com/agritrace/provenance-node/ledger"
)

var txHashPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// handleHealth responds to liveness probes.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"status": "ok"}})
}

// handleTransaction decodes a transaction identifier into its typed
// domain event. A transaction that is not yet final answers 202.
func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["txHash"]
	if !txHashPattern.MatchString(raw) {
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "malformed transaction hash"})
		return
	}

	decoded, err := s.decoder.Decode(r.Context(), ethcommon.HexToHash(raw))
	if err != nil {
		s.logger.Error().Err(err).Str("tx_hash", raw).Msg("decode failed")
		s.writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to decode transaction"})
		return
	}

	status := http.StatusOK
	if decoded.Status == ledger.TxStatusPending {
		status = http.StatusAccepted
	}
	s.writeJSON(w, status, Response{Success: true, Data: decoded})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

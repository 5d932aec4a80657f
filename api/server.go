// Package api exposes the node's read-only HTTP boundary: transaction
// decoding, health, and metrics.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/ledger"
)

// TransactionDecoder converts a transaction identifier into a typed
// domain event. *ledger.Decoder satisfies it.
type TransactionDecoder interface {
	Decode(ctx context.Context, txHash ethcommon.Hash) (*ledger.Decoded, error)
}

// Server provides the HTTP endpoints.
type Server struct {
	decoder TransactionDecoder
	logger  zerolog.Logger
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(decoder TransactionDecoder, logger zerolog.Logger, port int) *Server {
	s := &Server{
		decoder: decoder,
		logger:  logger.With().Str("component", "api_server").Logger(),
	}

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.setupRoutes(),
	}

	return s
}

// Start starts the HTTP server, verifying the port binds before returning.
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("api server is nil")
	}

	startupChan := make(chan error, 1)

	go func() {
		ln, err := net.Listen("tcp", s.server.Addr)
		if err != nil {
			startupChan <- fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
			return
		}
		ln.Close()

		startupChan <- nil

		err = s.server.ListenAndServe()
		switch err {
		case nil:
			s.logger.Info().Msg("api server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("api server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("api server error")
		}
	}()

	select {
	case err := <-startupChan:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("server startup timeout")
	}
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Package node wires the provenance daemon together: configuration, database,
// ledger clients, the event reconciler, and the HTTP query server.
package node

import (
	"context"
	"math/big"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/api"
	"github.com/agritrace/provenance-node/batch"
	"github.com/agritrace/provenance-node/config"
	"github.com/agritrace/provenance-node/contentstore"
	"github.com/agritrace/provenance-node/db"
	"github.com/agritrace/provenance-node/errors"
	"github.com/agritrace/provenance-node/ledger"
	"github.com/agritrace/provenance-node/reconciler"
	"github.com/agritrace/provenance-node/store"
)

// Node is the long-running provenance daemon.
type Node struct {
	cfg *config.Config
	log zerolog.Logger

	database   *db.DB
	ethClient  *ethclient.Client
	reconciler *reconciler.Reconciler
	apiServer  *api.Server

	// Service exposes the batch lifecycle operations to embedders.
	Service *batch.Service
}

// New builds a fully wired node from the given configuration. It opens the
// database and dials the ledger RPC endpoint but does not start any loops.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Node, error) {
	if !ethcommon.IsHexAddress(cfg.ContractAddress) {
		return nil, errors.Newf(errors.ErrCodeValidation, "invalid contract address %q", cfg.ContractAddress)
	}
	contractAddr := ethcommon.HexToAddress(cfg.ContractAddress)

	signerKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SignerKeyHex, "0x"))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeValidation, "invalid signer key", err)
	}

	database, err := db.OpenFileDB(cfg.DataDir(), cfg.DatabaseFile, true)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDatabase, "failed to open database", err)
	}

	ethClient, err := ethclient.DialContext(ctx, cfg.LedgerRPCURL)
	if err != nil {
		_ = database.Close()
		return nil, errors.Wrap(errors.ErrCodeChainUnavailable, "failed to dial ledger rpc "+cfg.LedgerRPCURL, err)
	}

	st := store.NewStore(database.Client())
	content := contentstore.NewClient(cfg.ContentStoreAPIURL, cfg.ContentGatewayURL, log)

	writer, err := ledger.NewWriter(
		ethClient,
		contractAddr,
		signerKey,
		big.NewInt(cfg.LedgerChainID),
		time.Duration(cfg.WriteTimeoutSeconds)*time.Second,
		log,
	)
	if err != nil {
		ethClient.Close()
		_ = database.Close()
		return nil, err
	}

	resolver := ledger.NewStoreActorResolver(st)
	decoder := ledger.NewDecoder(ethClient, resolver, content, log)
	service := batch.NewService(st, content, writer, log)

	return &Node{
		cfg:        cfg,
		log:        log.With().Str("component", "node").Logger(),
		database:   database,
		ethClient:  ethClient,
		reconciler: reconciler.New(ethClient, contractAddr, st, log),
		apiServer:  api.NewServer(decoder, log, cfg.APIPort),
		Service:    service,
	}, nil
}

// Start launches the reconciler and the HTTP query server, then blocks until
// the context is cancelled and shuts everything down.
func (n *Node) Start(ctx context.Context) error {
	n.log.Info().
		Str("contract", n.cfg.ContractAddress).
		Str("rpc", n.cfg.LedgerRPCURL).
		Msg("🚀 starting provenance node")

	if err := n.reconciler.Start(ctx); err != nil {
		return err
	}
	if err := n.apiServer.Start(); err != nil {
		_ = n.reconciler.Stop()
		return err
	}

	n.log.Info().Msg("✅ initialization complete, entering main loop")

	<-ctx.Done()

	n.log.Info().Msg("🛑 shutting down provenance node")
	return n.shutdown()
}

func (n *Node) shutdown() error {
	var firstErr error

	if err := n.reconciler.Stop(); err != nil {
		firstErr = err
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.apiServer.Stop(stopCtx); err != nil && firstErr == nil {
		firstErr = err
	}

	n.ethClient.Close()

	if err := n.database.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

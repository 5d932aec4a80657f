package config

// Config holds the node's configuration, loaded from a JSON file under
// the node home with embedded defaults as fallback.
type Config struct {
	// Log Config
	LogLevel   int    `json:"log_level"`   // e.g., 0 = debug, 1 = info, etc.
	LogFormat  string `json:"log_format"`  // "json" or "console"
	LogSampler bool   `json:"log_sampler"` // if true, samples logs (e.g., 1 in 5)

	// Node Config
	NodeHome string `json:"node_home"` // Node home directory (default: ~/.provenanced)

	// Ledger configuration
	LedgerRPCURL        string `json:"ledger_rpc_url"`        // Ledger node RPC endpoint (websocket for subscriptions)
	LedgerChainID       int64  `json:"ledger_chain_id"`       // Chain id used for transaction signing
	ContractAddress     string `json:"contract_address"`      // Provenance contract address
	SignerKeyHex        string `json:"signer_key_hex"`        // Hex-encoded signing key; PROVENANCE_SIGNER_KEY overrides
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"` // Finality wait budget per event write (default: 120)

	// Content store configuration
	ContentStoreAPIURL string `json:"content_store_api_url"` // Store API base URL, e.g. http://127.0.0.1:5001/api/v0
	ContentGatewayURL  string `json:"content_gateway_url"`   // Read gateway base URL, e.g. http://127.0.0.1:8080

	// Query server config
	APIPort int `json:"api_port"` // Port for the HTTP query server (default: 8080)

	// Database config
	DatabaseFile string `json:"database_file"` // SQLite file name under <node_home>/data (default: provenance.db)
}

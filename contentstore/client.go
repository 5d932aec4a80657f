// Package contentstore talks to the content-addressed store holding event
// payloads. Payloads go in through the store's /add endpoint and come back
// out through a read gateway by content address.
package contentstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agritrace/provenance-node/errors"
)

const defaultRequestTimeout = 30 * time.Second

// addResponse is the store's reply to a successful /add.
type addResponse struct {
	Hash string `json:"Hash"`
	Name string `json:"Name"`
}

// Client uploads and fetches opaque payloads by content address.
type Client struct {
	apiURL     string // base URL of the store API, e.g. http://127.0.0.1:5001/api/v0
	gatewayURL string // base URL of the read gateway, e.g. http://127.0.0.1:8080
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a content store client for the given API and gateway
// base URLs.
func NewClient(apiURL, gatewayURL string, logger zerolog.Logger) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger.With().Str("component", "content_store").Logger(),
	}
}

// Put uploads a payload and returns its content address. Any non-success
// response, transport failure, or empty address in the reply fails with
// ErrCodeContentStore: an event must never reach the ledger without its
// content durably stored first.
func (c *Client) Put(ctx context.Context, payload []byte, contentType string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="payload"`)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "failed to build multipart payload", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "failed to write multipart payload", err)
	}
	if err := writer.Close(); err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "failed to finalize multipart payload", err)
	}

	url := fmt.Sprintf("%s/add", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "failed to build add request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "content store unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.Newf(errors.ErrCodeContentStore,
			"content store add returned status %d", resp.StatusCode)
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", errors.Wrap(errors.ErrCodeContentStore, "failed to decode add response", err)
	}
	if parsed.Hash == "" {
		return "", errors.New(errors.ErrCodeContentStore, "content store returned empty address")
	}

	c.logger.Debug().
		Str("content_hash", parsed.Hash).
		Int("payload_bytes", len(payload)).
		Msg("payload stored")

	return parsed.Hash, nil
}

// Get fetches a payload by content address through the read gateway.
// Failures degrade to a nil payload rather than an error; callers must
// treat an empty result as "content unavailable", not "content is empty".
func (c *Client) Get(ctx context.Context, contentHash string) []byte {
	if contentHash == "" {
		return nil
	}

	url := fmt.Sprintf("%s/ipfs/%s", c.gatewayURL, contentHash)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		c.logger.Warn().Err(err).Str("content_hash", contentHash).Msg("failed to build gateway request")
		return nil
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("content_hash", contentHash).Msg("content gateway unreachable")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("content_hash", contentHash).
			Msg("content gateway returned non-success status")
		return nil
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Warn().Err(err).Str("content_hash", contentHash).Msg("failed to read gateway response")
		return nil
	}
	return payload
}

// Package chain implements the blockchain/UTXO query proxy (spec §4.6):
// a stateless HTTP proxy over the naming node's JSON-RPC interface and
// the UTXO service's REST interface.
package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/blockstack/gaia-gateway/internal/cryptoutil"
	"github.com/blockstack/gaia-gateway/internal/gatewayerr"
	"github.com/blockstack/gaia-gateway/internal/logger"
)

// MainnetAddressVersion is the canonical version byte addresses are
// re-encoded to before every outgoing query (spec §4.6).
const MainnetAddressVersion byte = 0x00

// MaxRetryAttempts bounds retries for idempotent reads (spec §4.6: "≤ 3
// attempts with exponential backoff").
const MaxRetryAttempts = 3

// Client proxies naming-node JSON-RPC and UTXO REST calls.
type Client struct {
	httpClient  *http.Client
	namingNode  string
	utxoService string
}

// NewClient constructs a chain proxy client pointed at the given naming
// node JSON-RPC and UTXO REST base URLs.
func NewClient(namingNode, utxoService string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		namingNode:  namingNode,
		utxoService: utxoService,
	}
}

// ReencodeAddress rewrites addr to the canonical mainnet base58check
// encoding, keeping its original payload but replacing the version byte
// (spec §4.6 "re-encode addresses to the canonical mainnet form before
// every outgoing query").
func ReencodeAddress(addr string) (string, error) {
	_, payload, err := cryptoutil.Base58CheckDecode(addr)
	if err != nil {
		return "", gatewayerr.NewInvalidRequestError("malformed blockchain address", err)
	}
	return cryptoutil.Base58CheckEncode(MainnetAddressVersion, payload), nil
}

// rpcRequest is a minimal JSON-RPC 2.0 envelope.
type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      int           `json:"id"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// CallRPC invokes a naming-node JSON-RPC method, retrying idempotent
// reads up to MaxRetryAttempts times with exponential backoff (spec
// §4.6). Mutating calls (raw transaction broadcast) must pass retry=false.
func (c *Client) CallRPC(ctx context.Context, method string, params []interface{}, retry bool) (json.RawMessage, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: 1})
	if err != nil {
		return nil, gatewayerr.NewInternalError("failed to build rpc request", err)
	}

	operation := func() (json.RawMessage, error) {
		return c.doRPC(ctx, body)
	}

	if !retry {
		return operation()
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(MaxRetryAttempts),
		backoff.WithMaxElapsedTime(15*time.Second),
	)
}

func (c *Client) doRPC(ctx context.Context, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.namingNode, bytes.NewReader(body))
	if err != nil {
		return nil, gatewayerr.NewInternalError("failed to build naming node request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warnf("naming node unreachable: %v", err)
		return nil, gatewayerr.NewUpstreamError("naming node unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, gatewayerr.NewNotFoundError("naming node reported not found", nil)
	}

	var parsed rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, gatewayerr.NewUpstreamError("naming node returned malformed data", err)
	}
	if parsed.Error != nil {
		if isNotFoundMessage(parsed.Error.Message) {
			return nil, gatewayerr.NewNotFoundError(parsed.Error.Message, nil)
		}
		return nil, gatewayerr.NewUpstreamError(parsed.Error.Message, nil)
	}
	return parsed.Result, nil
}

// GetUnspent fetches the UTXO set for addr from the UTXO REST service.
// Reads are always retried (idempotent) per spec §4.6.
func (c *Client) GetUnspent(ctx context.Context, addr string) ([]byte, error) {
	canonical, err := ReencodeAddress(addr)
	if err != nil {
		return nil, err
	}

	operation := func() ([]byte, error) {
		return c.doUTXOGet(ctx, fmt.Sprintf("%s/addr/%s/utxo", c.utxoService, canonical))
	}

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(MaxRetryAttempts),
		backoff.WithMaxElapsedTime(15*time.Second),
	)
}

func (c *Client) doUTXOGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, gatewayerr.NewInternalError("failed to build utxo request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gatewayerr.NewUpstreamError("utxo service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, gatewayerr.NewNotFoundError("address not found", nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, gatewayerr.NewUpstreamError(fmt.Sprintf("utxo service returned status %d", resp.StatusCode), nil)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, gatewayerr.NewUpstreamError("utxo service returned malformed data", err)
	}
	return raw, nil
}

// BroadcastTx submits a raw signed transaction and is never retried
// (spec §4.6: "never attempt retries except for idempotent reads").
func (c *Client) BroadcastTx(ctx context.Context, rawTxHex string) (json.RawMessage, error) {
	return c.CallRPC(ctx, "sendrawtransaction", []interface{}{rawTxHex}, false)
}

func isNotFoundMessage(msg string) bool {
	return msg == "not found" || msg == "name not found" || msg == "no such name"
}

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pookie-sol/presale-api/internal/models"
	"go.uber.org/zap"
)

// Client is a Solana JSON-RPC client that rotates across several provider
// endpoints. Public providers throttle aggressively, so every call walks the
// endpoint list until one answers; the starting endpoint advances round-robin
// between calls to spread the load.
type Client struct {
	endpoints []string
	http      *http.Client
	logger    *zap.Logger
	next      atomic.Uint64
}

// New creates a client over the given endpoint URLs.
func New(endpoints []string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Call issues a JSON-RPC request, failing over to the next endpoint on
// transport errors, non-200 statuses, and JSON-RPC error responses. It
// returns the raw result member.
func (c *Client) Call(ctx context.Context, method string, params []interface{}) (json.RawMessage, error) {
	payload := models.RPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rpc request: %w", err)
	}

	start := int(c.next.Add(1) - 1)
	var lastErr error

	for attempt := 0; attempt < len(c.endpoints); attempt++ {
		endpoint := c.endpoints[(start+attempt)%len(c.endpoints)]

		result, err := c.post(ctx, endpoint, body)
		if err == nil {
			return result, nil
		}

		c.logger.Warn("RPC endpoint failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		// Brief pause before the fallback provider, mirroring how the
		// public endpoints expect to be treated.
		if attempt < len(c.endpoints)-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	return nil, fmt.Errorf("all rpc endpoints failed for %s: %w", method, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp models.RPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode rpc response: %w", err)
	}

	if rpcResp.Error != nil {
		return nil, fmt.Errorf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message)
	}

	return rpcResp.Result, nil
}

// GetBalance returns the wallet balance in SOL.
func (c *Client) GetBalance(ctx context.Context, address string) (float64, error) {
	result, err := c.Call(ctx, "getBalance", []interface{}{address})
	if err != nil {
		return 0, err
	}

	var balance models.BalanceResult
	if err := json.Unmarshal(result, &balance); err != nil {
		return 0, fmt.Errorf("failed to decode balance: %w", err)
	}

	return float64(balance.Value) / models.LamportsPerSOL, nil
}

// GetSignaturesForAddress fetches up to limit signatures for address, older
// than the before cursor when one is given.
func (c *Client) GetSignaturesForAddress(ctx context.Context, address string, limit int, before string) ([]models.SignatureInfo, error) {
	opts := map[string]interface{}{"limit": limit}
	if before != "" {
		opts["before"] = before
	}

	result, err := c.Call(ctx, "getSignaturesForAddress", []interface{}{address, opts})
	if err != nil {
		return nil, err
	}

	var sigs []models.SignatureInfo
	if err := json.Unmarshal(result, &sigs); err != nil {
		return nil, fmt.Errorf("failed to decode signatures: %w", err)
	}

	return sigs, nil
}

// GetTransaction fetches a transaction in jsonParsed encoding. A nil result
// with nil error means the node no longer has the transaction.
func (c *Client) GetTransaction(ctx context.Context, signature string) (*models.TransactionResult, error) {
	opts := map[string]interface{}{
		"encoding":                       "jsonParsed",
		"maxSupportedTransactionVersion": 0,
	}

	result, err := c.Call(ctx, "getTransaction", []interface{}{signature, opts})
	if err != nil {
		return nil, err
	}

	if len(result) == 0 || string(result) == "null" {
		return nil, nil
	}

	var tx models.TransactionResult
	if err := json.Unmarshal(result, &tx); err != nil {
		return nil, fmt.Errorf("failed to decode transaction %s: %w", signature, err)
	}

	return &tx, nil
}

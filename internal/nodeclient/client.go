/*

Minimal JSON-RPC 2.0 client for the custody/venue node. Both the asset
transfer gateway and the exchange venue adapter are thin method wrappers
around this client.

*/

package nodeclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/benjaminsmithx65-commits/techne-sub001/internal/logger"
	"github.com/rs/zerolog"
)

// Error definitions for zero-tolerance error handling
var (
	ErrInvalidEndpoint  = errors.New("endpoint is invalid")
	ErrRPCRequestFailed = errors.New("RPC request failed")
	ErrInvalidResponse  = errors.New("response data is invalid")
)

// Request defines the structure of a JSON-RPC request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response defines the structure of a JSON-RPC response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError defines the structure of a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Client is a JSON-RPC client bound to a single node endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
	log      zerolog.Logger
}

// New creates a client for the given endpoint.
func New(endpoint string) (*Client, error) {
	if endpoint == "" {
		return nil, errors.Join(ErrInvalidEndpoint, errors.New("endpoint cannot be empty"))
	}
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 20 * time.Second},
		log:      logger.GetForComponent("node_client"),
	}, nil
}

// Call executes method with params and unmarshals the result into result.
// A non-nil error means the call must be treated as failed as a whole; no
// partial result is ever returned.
func (c *Client) Call(ctx context.Context, method string, params any, result any) error {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("failed to marshal params for %s: %w", method, err))
	}

	reqBody, err := json.Marshal(Request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("failed to marshal JSON-RPC request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("failed to create HTTP request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.log.Debug().
		Str("endpoint", c.endpoint).
		Str("method", method).
		Msg("Executing JSON-RPC call")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("endpoint", c.endpoint).Str("method", method).Msg("Failed to execute HTTP request")
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("failed to execute HTTP request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("HTTP request failed with status: %d %s", resp.StatusCode, resp.Status))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("failed to read response body: %w", err))
	}
	if len(respBody) == 0 {
		return errors.Join(ErrInvalidResponse, errors.New("response body is empty"))
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.log.Error().Err(err).Str("body", string(respBody)).Msg("Failed to unmarshal JSON-RPC response")
		return errors.Join(ErrInvalidResponse, fmt.Errorf("failed to unmarshal JSON-RPC response: %w", err))
	}
	if rpcResp.Error != nil {
		return errors.Join(ErrRPCRequestFailed, fmt.Errorf("RPC error (code %d): %s", rpcResp.Error.Code, rpcResp.Error.Message))
	}

	if result != nil {
		if len(rpcResp.Result) == 0 {
			return errors.Join(ErrInvalidResponse, errors.New("result is empty"))
		}
		if err := json.Unmarshal(rpcResp.Result, result); err != nil {
			return errors.Join(ErrInvalidResponse, fmt.Errorf("failed to unmarshal result for %s: %w", method, err))
		}
	}

	return nil
}

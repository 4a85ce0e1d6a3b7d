package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// NodeRPC defines the interface for communicating with the chain node. These
// are the only collaborator calls the mining core consumes: template supply,
// tip identity, connectivity, and block submission.
type NodeRPC interface {
	GetChainTip(ctx context.Context) (Tip, error)
	GetConnectionCount(ctx context.Context) (int, error)
	GetHeaderTemplate(ctx context.Context) (*HeaderTemplate, error)
	SubmitBlockHeader(ctx context.Context, headerHex string) error
}

// RPCClient implements NodeRPC using JSON-RPC over HTTP.
type RPCClient struct {
	url      string
	user     string
	password string
	client   *http.Client
	idSeq    atomic.Int64
}

// NewRPCClient creates a new node JSON-RPC client.
func NewRPCClient(url, user, password string) *RPCClient {
	return &RPCClient{
		url:      url,
		user:     user,
		password: password,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

// call makes a JSON-RPC call and returns the raw result.
func (c *RPCClient) call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	id := c.idSeq.Add(1)

	req := RPCRequest{
		JSONRPC: "1.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.user, c.password)

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("RPC request failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(respBody))
	}

	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

// GetChainTip returns the node's current best header identity.
func (c *RPCClient) GetChainTip(ctx context.Context) (Tip, error) {
	result, err := c.call(ctx, "getchaintip")
	if err != nil {
		return Tip{}, fmt.Errorf("getchaintip: %w", err)
	}

	var tip Tip
	if err := json.Unmarshal(result, &tip); err != nil {
		return Tip{}, fmt.Errorf("unmarshal chain tip: %w", err)
	}
	return tip, nil
}

// GetConnectionCount returns the node's peer count.
func (c *RPCClient) GetConnectionCount(ctx context.Context) (int, error) {
	result, err := c.call(ctx, "getconnectioncount")
	if err != nil {
		return 0, fmt.Errorf("getconnectioncount: %w", err)
	}

	var count int
	if err := json.Unmarshal(result, &count); err != nil {
		return 0, fmt.Errorf("unmarshal connection count: %w", err)
	}
	return count, nil
}

// GetHeaderTemplate returns a new minable header template from the node.
func (c *RPCClient) GetHeaderTemplate(ctx context.Context) (*HeaderTemplate, error) {
	result, err := c.call(ctx, "getheadertemplate")
	if err != nil {
		return nil, fmt.Errorf("getheadertemplate: %w", err)
	}

	var tmpl HeaderTemplate
	if err := json.Unmarshal(result, &tmpl); err != nil {
		return nil, fmt.Errorf("unmarshal header template: %w", err)
	}
	return &tmpl, nil
}

// BlockRejectedError is returned when the node explicitly rejects a solved
// header (as opposed to a transport/RPC error). Rejections are not retried.
type BlockRejectedError struct {
	Reason string
}

func (e *BlockRejectedError) Error() string {
	return "block rejected: " + e.Reason
}

// SubmitBlockHeader hands a solved header back to the node for validation
// and broadcast.
func (c *RPCClient) SubmitBlockHeader(ctx context.Context, headerHex string) error {
	result, err := c.call(ctx, "submitblockheader", headerHex)
	if err != nil {
		return fmt.Errorf("submitblockheader: %w", err)
	}

	// submitblockheader returns null on success, or a reject reason string.
	var rejectReason string
	if err := json.Unmarshal(result, &rejectReason); err == nil && rejectReason != "" {
		return &BlockRejectedError{Reason: rejectReason}
	}

	return nil
}

package chain

import (
	"encoding/json"
	"fmt"
)

// Tip identifies the best-known chain tip.
type Tip struct {
	Hash   string `json:"hash"`
	Height int64  `json:"height"`
	Time   int64  `json:"time"`
}

// IsZero reports whether the tip has not been populated.
func (t Tip) IsZero() bool {
	return t.Hash == ""
}

// HeaderTemplate is a minable header template from the node: the serialized
// nonce-independent header bytes plus decoded convenience fields.
type HeaderTemplate struct {
	HeaderHex string `json:"headerhex"`
	Bits      string `json:"bits"`
	Height    int64  `json:"height"`
	CurTime   int64  `json:"curtime"`
}

// RPCRequest represents a JSON-RPC request.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError represents a JSON-RPC error.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

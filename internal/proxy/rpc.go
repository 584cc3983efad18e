// Package proxy implements the JSON-RPC interception proxy: a local HTTP
// front door a wallet points at instead of a public RPC endpoint. Mutating
// methods are scanned before they reach the real upstream; everything else
// is forwarded unchanged.
package proxy

import (
	"encoding/json"
)

// rpcRequest is one JSON-RPC 2.0 request entry, batch or single.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// isNotification reports whether req carries no id — JSON-RPC notifications
// receive no reply.
func (req rpcRequest) isNotification() bool {
	return len(req.ID) == 0 || string(req.ID) == "null"
}

// rpcError is a JSON-RPC 2.0 error object.
type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// rpcResponse is one JSON-RPC 2.0 response entry.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

const jsonrpcVersion = "2.0"

func errResponse(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: jsonrpcVersion, ID: id, Error: &rpcError{Code: code, Message: message}}
}

func blockedResponse(id json.RawMessage, recommendation, simSuccess interface{}) rpcResponse {
	return rpcResponse{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Error: &rpcError{
			Code:    4001,
			Message: "Transaction blocked",
			Data: map[string]interface{}{
				"recommendation":    recommendation,
				"simulationSuccess": simSuccess,
			},
		},
	}
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeInvalidParams  = -32602
)

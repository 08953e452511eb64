package models

import "encoding/json"

// Solana JSON-RPC wire shapes, limited to the fields the scanner reads from
// jsonParsed transactions.

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the error member of a JSON-RPC response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SignatureInfo is one entry from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
	BlockTime int64  `json:"blockTime"`
	Err       any    `json:"err"`
}

// BalanceResult is the result of getBalance.
type BalanceResult struct {
	Value int64 `json:"value"`
}

// TransactionResult is the result of getTransaction with jsonParsed encoding.
type TransactionResult struct {
	BlockTime   int64            `json:"blockTime"`
	Meta        *TransactionMeta `json:"meta"`
	Transaction TransactionBody  `json:"transaction"`
}

// TransactionMeta carries the pre/post account balances in lamports.
type TransactionMeta struct {
	PreBalances  []int64 `json:"preBalances"`
	PostBalances []int64 `json:"postBalances"`
}

// TransactionBody wraps the parsed message.
type TransactionBody struct {
	Message TransactionMessage `json:"message"`
}

// TransactionMessage holds account keys and instructions.
type TransactionMessage struct {
	AccountKeys  []AccountKey  `json:"accountKeys"`
	Instructions []Instruction `json:"instructions"`
}

// AccountKey is one entry of the parsed accountKeys list.
type AccountKey struct {
	Pubkey string `json:"pubkey"`
}

// Instruction is a single instruction in jsonParsed form. Parsed is kept raw
// because its shape varies by program; unparsable programs omit it entirely.
type Instruction struct {
	Program string          `json:"program,omitempty"`
	Parsed  json.RawMessage `json:"parsed,omitempty"`
}

// ParsedTransfer is the parsed payload of a system-program transfer.
type ParsedTransfer struct {
	Type string       `json:"type"`
	Info TransferInfo `json:"info"`
}

// TransferInfo identifies the endpoints and size of a transfer.
type TransferInfo struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Lamports    int64  `json:"lamports"`
}

// LamportsPerSOL is the lamport denomination of one SOL.
const LamportsPerSOL = 1_000_000_000

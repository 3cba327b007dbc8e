package solrpc

import "encoding/json"

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

type SignatureInfo struct {
	Signature          string      `json:"signature"`
	Slot               int64       `json:"slot"`
	BlockTime          *int64      `json:"blockTime"`
	Err                interface{} `json:"err"`
	ConfirmationStatus *string     `json:"confirmationStatus"`
}

type Transaction struct {
	Slot        int64 `json:"slot"`
	Transaction struct {
		Message struct {
			AccountKeys []AccountKey `json:"accountKeys"`
		} `json:"message"`
	} `json:"transaction"`
	Meta *TransactionMeta `json:"meta"`
}

type AccountKey struct {
	Pubkey string `json:"pubkey"`
}

type TransactionMeta struct {
	Err          interface{} `json:"err"`
	PreBalances  []int64     `json:"preBalances"`
	PostBalances []int64     `json:"postBalances"`
}

// LamportDelta is the balance change of address in this transaction.
func (t *Transaction) LamportDelta(address string) int64 {
	if t.Meta == nil {
		return 0
	}
	for i, k := range t.Transaction.Message.AccountKeys {
		if k.Pubkey != address {
			continue
		}
		if i >= len(t.Meta.PreBalances) || i >= len(t.Meta.PostBalances) {
			return 0
		}
		return t.Meta.PostBalances[i] - t.Meta.PreBalances[i]
	}
	return 0
}

type SignatureStatus struct {
	Slot               int64       `json:"slot"`
	Confirmations      *int        `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

type signatureStatusesResult struct {
	Value []*SignatureStatus `json:"value"`
}

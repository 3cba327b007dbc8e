package blockstream

import "fmt"

type Transaction struct {
	TxID   string   `json:"txid"`
	Vout   []Output `json:"vout"`
	Status TxStatus `json:"status"`
}

type Output struct {
	ScriptPubKeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

type TxStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height"`
	BlockTime   int64 `json:"block_time"`
}

// ReceivedBy sums the outputs paying address, in satoshis.
func (t Transaction) ReceivedBy(address string) int64 {
	var sats int64
	for _, out := range t.Vout {
		if out.ScriptPubKeyAddress == address {
			sats += out.Value
		}
	}
	return sats
}

// StatusError is a non-2xx answer from an endpoint.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status code: %d, url: %s, body: %s", e.StatusCode, e.URL, e.Body)
}

// retryable reports whether another endpoint or attempt may succeed.
func (e *StatusError) retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

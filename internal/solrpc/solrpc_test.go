package solrpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/icy-funding-backend/internal/chainadapter"
	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const (
	testSeed = "000102030405060708090a0b0c0d0e0f"
	deposit  = "DepositAddress1111111111111111111111111111"
	funder   = "Funder1111111111111111111111111111111111111"
)

// rpcServer answers JSON-RPC calls from canned results keyed by method.
func rpcServer(t *testing.T, results map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)

		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]interface{}{"code": -32601, "message": "method not found"},
			})
			return
		}
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + itoa(req.ID) + `,"result":` + result + `}`))
	}))
}

func itoa(i int64) string {
	b, _ := json.Marshal(i)
	return string(b)
}

func newAdapter(t *testing.T, client IClient) *SolRpc {
	t.Helper()
	s, err := NewWithClient(&config.AppConfig{Wallet: config.WalletConfig{HDMasterSeed: testSeed}}, logger.New(environments.Test), client)
	require.NoError(t, err)
	return s
}

const signatures = `[
  {"signature":"failedSig","slot":12,"err":{"InstructionError":[0,"Custom"]}},
  {"signature":"outSig","slot":11,"err":null},
  {"signature":"inSig","slot":10,"err":null}
]`

func transferTx(from, to string, fromDelta, toDelta int64) string {
	tx := map[string]interface{}{
		"slot": 10,
		"transaction": map[string]interface{}{
			"message": map[string]interface{}{
				"accountKeys": []map[string]string{{"pubkey": from}, {"pubkey": to}},
			},
		},
		"meta": map[string]interface{}{
			"err":          nil,
			"preBalances":  []int64{5_000_000_000, 1_000},
			"postBalances": []int64{5_000_000_000 + fromDelta, 1_000 + toDelta},
		},
	}
	b, _ := json.Marshal(tx)
	return string(b)
}

// txServer serves one transaction per signature: outSig moves funds away from the deposit.
func txServer(t *testing.T, statuses string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var result string
		switch req.Method {
		case "getSignaturesForAddress":
			result = signatures
		case "getTransaction":
			var sig string
			require.NoError(t, json.Unmarshal(req.Params[0], &sig))
			switch sig {
			case "outSig":
				result = transferTx(deposit, funder, 100, -100)
			case "inSig":
				result = transferTx(funder, deposit, -1_500_000_000, 1_500_000_000)
			default:
				t.Errorf("unexpected getTransaction for %s", sig)
				result = "null"
			}
		case "getSignatureStatuses":
			result = statuses
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jsonrpc":"2.0","id":` + itoa(req.ID) + `,"result":` + result + `}`))
	}))
}

func TestGenerateAddress(t *testing.T) {
	s := newAdapter(t, nil)

	a0, err := s.GenerateAddress(context.Background(), 0)
	require.NoError(t, err)
	a1, err := s.GenerateAddress(context.Background(), 1)
	require.NoError(t, err)
	again, err := s.GenerateAddress(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, a0.Address, again.Address)
	assert.NotEqual(t, a0.Address, a1.Address)
	assert.Len(t, base58.Decode(a0.Address), 32)
	assert.Len(t, a0.PrivateKey, 32)
	assert.NoError(t, s.ValidateAddress(a0.Address))

	want := newMasterKey(mustHex(t, testSeed)).derivePath(44, 501, 1, 0)
	assert.Equal(t, base58.Encode(want.publicKey()), a1.Address)
}

func TestGenerateAddress_WithoutSeed(t *testing.T) {
	s, err := NewWithClient(&config.AppConfig{}, logger.New(environments.Test), nil)
	require.NoError(t, err)
	_, err = s.GenerateAddress(context.Background(), 0)
	assert.ErrorIs(t, err, ErrNoSeed)
}

func TestValidateAddress(t *testing.T) {
	s := newAdapter(t, nil)
	assert.NoError(t, s.ValidateAddress("11111111111111111111111111111111"))
	assert.Error(t, s.ValidateAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"))
	assert.Error(t, s.ValidateAddress("not base58 0OIl"))
}

func TestCheckTransactions(t *testing.T) {
	tests := []struct {
		name          string
		statuses      string
		confirmed     bool
		confirmations int
	}{
		{"confirmed", `{"value":[{"slot":10,"confirmations":3,"err":null,"confirmationStatus":"confirmed"}]}`, true, 3},
		{"finalized reports null", `{"value":[{"slot":10,"confirmations":null,"err":null,"confirmationStatus":"finalized"}]}`, true, 32},
		{"processed", `{"value":[{"slot":10,"confirmations":0,"err":null,"confirmationStatus":"processed"}]}`, false, 0},
		{"unknown", `{"value":[null]}`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := txServer(t, tt.statuses)
			defer srv.Close()

			s := newAdapter(t, NewClient(srv.URL, 1000))
			res := s.CheckTransactions(context.Background(), chainadapter.Deposit{Address: deposit, MinConfirmations: 1})

			require.NoError(t, res.Err)
			assert.Equal(t, tt.confirmed, res.Confirmed)
			assert.Equal(t, tt.confirmations, res.Confirmations)
			assert.Equal(t, "inSig", res.TxHash)
			assert.True(t, res.Amount.Equal(decimal.RequireFromString("1.5")), res.Amount.String())
		})
	}
}

func TestCheckTransactions_RPCError(t *testing.T) {
	srv := rpcServer(t, map[string]string{})
	defer srv.Close()

	s := newAdapter(t, NewClient(srv.URL, 1000))
	res := s.CheckTransactions(context.Background(), chainadapter.Deposit{Address: deposit, MinConfirmations: 1})
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "method not found")
	assert.False(t, res.Confirmed)
	assert.True(t, res.Amount.IsZero())
}

func TestCheckTransactions_NoSignatures(t *testing.T) {
	srv := rpcServer(t, map[string]string{"getSignaturesForAddress": `[]`})
	defer srv.Close()

	s := newAdapter(t, NewClient(srv.URL, 1000))
	res := s.CheckTransactions(context.Background(), chainadapter.Deposit{Address: deposit, MinConfirmations: 1})
	assert.NoError(t, res.Err)
	assert.False(t, res.Confirmed)
}

func TestCheckTransactions_NoClient(t *testing.T) {
	s := newAdapter(t, nil)
	res := s.CheckTransactions(context.Background(), chainadapter.Deposit{Address: deposit, MinConfirmations: 1})
	assert.Error(t, res.Err)
}

func TestCheckTransactions_IgnoresTransfersBeforeAssignment(t *testing.T) {
	assigned := time.Unix(1_700_000_000, 0)
	old := assigned.Add(-time.Hour).Unix()
	srv := rpcServer(t, map[string]string{
		"getSignaturesForAddress": `[{"signature":"inSig","slot":10,"blockTime":` + itoa(old) + `,"err":null}]`,
	})
	defer srv.Close()

	s := newAdapter(t, NewClient(srv.URL, 1000))
	res := s.CheckTransactions(context.Background(), chainadapter.Deposit{Address: deposit, MinConfirmations: 1, Since: assigned})

	// getTransaction is not served, so reaching it would surface an error
	require.NoError(t, res.Err)
	assert.False(t, res.Confirmed)
	assert.Empty(t, res.TxHash)
}

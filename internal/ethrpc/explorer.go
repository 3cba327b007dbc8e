package ethrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type ExplorerTx struct {
	Hash          string `json:"hash"`
	From          string `json:"from"`
	To            string `json:"to"`
	Value         string `json:"value"`
	Confirmations string `json:"confirmations"`
	IsError       string `json:"isError"`
	BlockNumber   string `json:"blockNumber"`
	TimeStamp     string `json:"timeStamp"`
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type etherscan struct {
	baseURL string
	apiKey  string
	client  *resty.Client
	limiter *rate.Limiter
}

func NewExplorer(baseURL, apiKey string, requestsPerSecond float64) IExplorer {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 4
	}
	return &etherscan{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  resty.New().SetTimeout(15 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (e *etherscan) ListTransactions(ctx context.Context, address string) ([]ExplorerTx, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := map[string]string{
		"module":     "account",
		"action":     "txlist",
		"address":    address,
		"startblock": "0",
		"endblock":   "99999999",
		"page":       "1",
		"offset":     "50",
		"sort":       "desc",
	}
	if e.apiKey != "" {
		params["apikey"] = e.apiKey
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(e.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "explorer request failed")
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("explorer returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var body explorerResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.Wrap(err, "failed to parse explorer response")
	}

	var txs []ExplorerTx
	if err := json.Unmarshal(body.Result, &txs); err != nil {
		// on errors the result field holds a message string instead of a list
		var msg string
		_ = json.Unmarshal(body.Result, &msg)
		return nil, fmt.Errorf("explorer error: %s %s", body.Message, msg)
	}
	return txs, nil
}

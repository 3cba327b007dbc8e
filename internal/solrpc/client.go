package solrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

type IClient interface {
	GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}

type client struct {
	rpcURL    string
	http      *resty.Client
	limiter   *rate.Limiter
	requestID atomic.Int64
}

func NewClient(rpcURL string, requestsPerSecond float64) IClient {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &client{
		rpcURL:  rpcURL,
		http:    resty.New().SetTimeout(15 * time.Second),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (c *client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  method,
			Params:  params,
		}).
		Post(c.rpcURL)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", method)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("%s: http status %d: %s", method, resp.StatusCode(), string(resp.Body()))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return errors.Wrapf(err, "%s: failed to parse response", method)
	}
	if rpcResp.Error != nil {
		return errors.Wrap(rpcResp.Error, method)
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return errors.Wrapf(err, "%s: failed to parse result", method)
	}
	return nil
}

func (c *client) GetSignaturesForAddress(ctx context.Context, address string, limit int) ([]SignatureInfo, error) {
	var sigs []SignatureInfo
	err := c.call(ctx, "getSignaturesForAddress", []interface{}{
		address,
		map[string]interface{}{"limit": limit, "commitment": "confirmed"},
	}, &sigs)
	return sigs, err
}

// GetTransaction returns nil when the node does not know the signature yet.
func (c *client) GetTransaction(ctx context.Context, signature string) (*Transaction, error) {
	var tx *Transaction
	err := c.call(ctx, "getTransaction", []interface{}{
		signature,
		map[string]interface{}{
			"encoding":                       "jsonParsed",
			"commitment":                     "confirmed",
			"maxSupportedTransactionVersion": 0,
		},
	}, &tx)
	return tx, err
}

// GetSignatureStatus returns nil for an unknown signature.
func (c *client) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	var result signatureStatusesResult
	err := c.call(ctx, "getSignatureStatuses", []interface{}{
		[]string{signature},
		map[string]interface{}{"searchTransactionHistory": true},
	}, &result)
	if err != nil {
		return nil, err
	}
	if len(result.Value) == 0 {
		return nil, nil
	}
	return result.Value[0], nil
}

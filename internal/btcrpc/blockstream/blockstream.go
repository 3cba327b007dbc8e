package blockstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

const (
	defaultMaxRetries = 3
	defaultBackoff    = time.Second
)

type blockstream struct {
	baseURLs   []string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *logger.Logger
	maxRetries int
	backoff    time.Duration
}

func New(cfg *config.AppConfig, logger *logger.Logger) IBlockStream {
	rps := cfg.Bitcoin.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	return newClient(cfg.Bitcoin.BlockstreamAPIURLs, &http.Client{Timeout: cfg.Bitcoin.RequestTimeout},
		rate.NewLimiter(rate.Limit(rps), 1), logger, defaultBackoff)
}

func newClient(baseURLs []string, client *http.Client, limiter *rate.Limiter, logger *logger.Logger, backoff time.Duration) *blockstream {
	urls := make([]string, 0, len(baseURLs))
	for _, u := range baseURLs {
		if u = strings.TrimRight(strings.TrimSpace(u), "/"); u != "" {
			urls = append(urls, u)
		}
	}
	return &blockstream{
		baseURLs:   urls,
		client:     client,
		limiter:    limiter,
		logger:     logger,
		maxRetries: defaultMaxRetries,
		backoff:    backoff,
	}
}

func (c *blockstream) GetTransactionsByAddress(ctx context.Context, address string) ([]Transaction, error) {
	body, err := c.get(ctx, fmt.Sprintf("/address/%s/txs", address))
	if err != nil {
		return nil, err
	}

	var txs []Transaction
	if err := json.Unmarshal(body, &txs); err != nil {
		c.logger.Error("[GetTransactionsByAddress][json.Unmarshal]", map[string]string{
			"error":   err.Error(),
			"address": address,
		})
		return nil, errors.Wrap(err, "failed to parse transactions")
	}
	return txs, nil
}

func (c *blockstream) GetTipHeight(ctx context.Context) (int64, error) {
	body, err := c.get(ctx, "/blocks/tip/height")
	if err != nil {
		return 0, err
	}

	height, err := strconv.ParseInt(strings.TrimSpace(string(body)), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse tip height")
	}
	return height, nil
}

// get walks the endpoints in order on every attempt and backs off linearly between attempts.
// A 4xx other than 429 is returned at once.
func (c *blockstream) get(ctx context.Context, path string) ([]byte, error) {
	if len(c.baseURLs) == 0 {
		return nil, errors.New("no blockstream endpoint configured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		for _, baseURL := range c.baseURLs {
			body, err := c.do(ctx, baseURL+path)
			if err == nil {
				return body, nil
			}
			lastErr = err

			var statusErr *StatusError
			if errors.As(err, &statusErr) && !statusErr.retryable() {
				return nil, err
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			c.logger.Warn("[blockstream.get] endpoint failed", map[string]string{
				"error":   err.Error(),
				"url":     baseURL,
				"attempt": strconv.Itoa(attempt),
			})
		}

		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * c.backoff):
		}
	}

	return nil, errors.Wrapf(lastErr, "all blockstream endpoints failed after %d attempts", c.maxRetries)
}

func (c *blockstream) do(ctx context.Context, url string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}

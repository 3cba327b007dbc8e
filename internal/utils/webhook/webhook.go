// Package webhook pings uptime monitors after successful worker cycles.
package webhook

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

type Client struct {
	http   *resty.Client
	logger *logger.Logger
}

func New(logger *logger.Logger) *Client {
	return &Client{
		http:   resty.New().SetTimeout(10 * time.Second),
		logger: logger,
	}
}

// CallUptimeWebhook sends a GET to webhookURL. An empty URL is a no-op and failures are only logged.
func (c *Client) CallUptimeWebhook(ctx context.Context, webhookURL string) {
	if webhookURL == "" {
		return
	}

	resp, err := c.http.R().SetContext(ctx).Get(webhookURL)
	if err != nil {
		c.logger.Error("[CallUptimeWebhook] request failed", map[string]string{
			"url":   webhookURL,
			"error": err.Error(),
		})
		return
	}
	if resp.IsError() {
		c.logger.Warn("[CallUptimeWebhook] unexpected status", map[string]string{
			"url":         webhookURL,
			"status_code": resp.Status(),
		})
		return
	}

	c.logger.Debug("[CallUptimeWebhook] ok", map[string]string{
		"url": webhookURL,
	})
}

package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
)

type PriceSource string

const (
	SourceLive     PriceSource = "live"
	SourceCache    PriceSource = "cache"
	SourceFallback PriceSource = "fallback"
)

type Price struct {
	Chain     model.Chain     `json:"chain"`
	USD       decimal.Decimal `json:"usd"`
	Source    PriceSource     `json:"source"`
	FetchedAt time.Time       `json:"fetched_at"`
}

type IPriceFeed interface {
	// GetUSDPrice returns the USD price of the chain's native coin. It only fails for an
	// unknown chain: when the live feed is unreachable the fallback table answers.
	GetUSDPrice(ctx context.Context, chain model.Chain) (*Price, error)

	GetAllUSDPrices(ctx context.Context) map[model.Chain]*Price
}

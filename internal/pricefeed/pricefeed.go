package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

// coin ids on CoinGecko compatible feeds
var coinIDs = map[model.Chain]string{
	model.ChainBTC: "bitcoin",
	model.ChainETH: "ethereum",
	model.ChainSOL: "solana",
}

// FallbackPrices answer when the live feed is down.
var FallbackPrices = map[model.Chain]decimal.Decimal{
	model.ChainBTC: decimal.NewFromInt(60000),
	model.ChainETH: decimal.NewFromInt(3000),
	model.ChainSOL: decimal.NewFromInt(150),
}

type PriceFeed struct {
	baseURL string
	client  *resty.Client
	cache   *cache.Cache
	logger  *logger.Logger
}

func New(appConfig *config.AppConfig, logger *logger.Logger) IPriceFeed {
	ttl := appConfig.Reward.PriceCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &PriceFeed{
		baseURL: strings.TrimRight(appConfig.Reward.PriceFeedURL, "/"),
		client:  resty.New().SetTimeout(10 * time.Second),
		cache:   cache.New(ttl, 2*ttl),
		logger:  logger,
	}
}

func (p *PriceFeed) GetUSDPrice(ctx context.Context, chain model.Chain) (*Price, error) {
	if _, ok := coinIDs[chain]; !ok {
		return nil, fmt.Errorf("no price for chain %q", chain)
	}

	if cached, ok := p.cache.Get(string(chain)); ok {
		price := *cached.(*Price)
		price.Source = SourceCache
		return &price, nil
	}

	prices, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("[GetUSDPrice][fetch] using fallback price", map[string]string{
			"error": err.Error(),
			"chain": string(chain),
		})
		return &Price{
			Chain:     chain,
			USD:       FallbackPrices[chain],
			Source:    SourceFallback,
			FetchedAt: time.Now(),
		}, nil
	}

	if price, ok := prices[chain]; ok {
		return price, nil
	}
	return &Price{Chain: chain, USD: FallbackPrices[chain], Source: SourceFallback, FetchedAt: time.Now()}, nil
}

func (p *PriceFeed) GetAllUSDPrices(ctx context.Context) map[model.Chain]*Price {
	out := make(map[model.Chain]*Price, len(model.SupportedChains))
	for _, chain := range model.SupportedChains {
		price, err := p.GetUSDPrice(ctx, chain)
		if err != nil {
			continue
		}
		out[chain] = price
	}
	return out
}

// fetch loads every supported coin in one request and caches the result.
func (p *PriceFeed) fetch(ctx context.Context) (map[model.Chain]*Price, error) {
	if p.baseURL == "" {
		return nil, errors.New("price feed url is not configured")
	}

	ids := make([]string, 0, len(coinIDs))
	for _, chain := range model.SupportedChains {
		ids = append(ids, coinIDs[chain])
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":           strings.Join(ids, ","),
			"vs_currencies": "usd",
		}).
		Get(p.baseURL + "/simple/price")
	if err != nil {
		return nil, errors.Wrap(err, "price feed request failed")
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("price feed returned status %d", resp.StatusCode())
	}

	var body map[string]map[string]json.Number
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, errors.Wrap(err, "failed to parse price feed response")
	}

	now := time.Now()
	prices := make(map[model.Chain]*Price, len(coinIDs))
	for chain, id := range coinIDs {
		raw, ok := body[id]["usd"]
		if !ok {
			continue
		}
		usd, err := decimal.NewFromString(raw.String())
		if err != nil || !usd.IsPositive() {
			continue
		}
		price := &Price{Chain: chain, USD: usd, Source: SourceLive, FetchedAt: now}
		prices[chain] = price
		p.cache.SetDefault(string(chain), price)
	}
	if len(prices) == 0 {
		return nil, errors.New("price feed returned no usable prices")
	}
	return prices, nil
}

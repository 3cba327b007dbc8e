package pricefeed_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/dwarvesf/icy-funding-backend/internal/model"
	"github.com/dwarvesf/icy-funding-backend/internal/pricefeed"
	"github.com/dwarvesf/icy-funding-backend/internal/types/environments"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/config"
	"github.com/dwarvesf/icy-funding-backend/internal/utils/logger"
)

var _ = Describe("PriceFeed", func() {
	var (
		server *httptest.Server
		hits   int32
		status int
		body   string
		feed   pricefeed.IPriceFeed
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		atomic.StoreInt32(&hits, 0)
		status = http.StatusOK
		body = `{"bitcoin":{"usd":65000.5},"ethereum":{"usd":3200},"solana":{"usd":140.25}}`

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&hits, 1)
			Expect(r.URL.Path).To(Equal("/api/v3/simple/price"))
			Expect(r.URL.Query().Get("vs_currencies")).To(Equal("usd"))
			w.WriteHeader(status)
			w.Write([]byte(body))
		}))

		feed = pricefeed.New(&config.AppConfig{Reward: config.RewardConfig{
			PriceFeedURL:  server.URL + "/api/v3/",
			PriceCacheTTL: time.Minute,
		}}, logger.New(environments.Test))
	})

	AfterEach(func() {
		server.Close()
	})

	It("returns live prices and then serves them from cache", func() {
		price, err := feed.GetUSDPrice(ctx, model.ChainBTC)
		Expect(err).NotTo(HaveOccurred())
		Expect(price.Source).To(Equal(pricefeed.SourceLive))
		Expect(price.USD.Equal(decimal.RequireFromString("65000.5"))).To(BeTrue())

		price, err = feed.GetUSDPrice(ctx, model.ChainSOL)
		Expect(err).NotTo(HaveOccurred())
		Expect(price.Source).To(Equal(pricefeed.SourceCache))
		Expect(price.USD.Equal(decimal.RequireFromString("140.25"))).To(BeTrue())

		Expect(atomic.LoadInt32(&hits)).To(Equal(int32(1)))
	})

	It("falls back to the static table when the feed fails", func() {
		status = http.StatusTooManyRequests
		body = `{"status":{"error_code":429}}`

		price, err := feed.GetUSDPrice(ctx, model.ChainETH)
		Expect(err).NotTo(HaveOccurred())
		Expect(price.Source).To(Equal(pricefeed.SourceFallback))
		Expect(price.USD.Equal(decimal.NewFromInt(3000))).To(BeTrue())
	})

	It("falls back for a coin missing from the response", func() {
		body = `{"bitcoin":{"usd":65000}}`

		price, err := feed.GetUSDPrice(ctx, model.ChainSOL)
		Expect(err).NotTo(HaveOccurred())
		Expect(price.Source).To(Equal(pricefeed.SourceFallback))
		Expect(price.USD.Equal(decimal.NewFromInt(150))).To(BeTrue())
	})

	It("rejects unknown chains", func() {
		_, err := feed.GetUSDPrice(ctx, model.Chain("DOGE"))
		Expect(err).To(HaveOccurred())
	})

	It("lists every supported chain", func() {
		prices := feed.GetAllUSDPrices(ctx)
		Expect(prices).To(HaveLen(len(model.SupportedChains)))
		Expect(prices[model.ChainETH].USD.Equal(decimal.NewFromInt(3200))).To(BeTrue())
	})

	It("uses fallback prices when no feed is configured", func() {
		offline := pricefeed.New(&config.AppConfig{}, logger.New(environments.Test))
		price, err := offline.GetUSDPrice(ctx, model.ChainBTC)
		Expect(err).NotTo(HaveOccurred())
		Expect(price.Source).To(Equal(pricefeed.SourceFallback))
		Expect(price.USD.Equal(decimal.NewFromInt(60000))).To(BeTrue())
	})
})

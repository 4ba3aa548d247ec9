package handler

import (
	"net/http"
	"strconv"
	"strings"

	"stellariq/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetQuote godoc
// @Summary      Get a real-time stock quote
// @Tags         stocks
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol (e.g., AAPL)"
// @Success      200  {object}  domain.Quote
// @Failure      404  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/stocks/quote/{symbol} [get]
func (h *Handler) GetQuote(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-quote")
	defer span.End()

	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	quote, err := h.market.GetQuote(ctx, symbol)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetDailySeries godoc
// @Summary      Get daily stock price history
// @Tags         stocks
// @Produce      json
// @Param        symbol      path   string  true   "Stock symbol"
// @Param        outputsize  query  string  false  "compact or full"  default(compact)
// @Success      200  {object}  domain.TimeSeries
// @Failure      404  {object}  map[string]string
// @Router       /api/stocks/daily/{symbol} [get]
func (h *Handler) GetDailySeries(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-daily-series")
	defer span.End()

	series, err := h.market.GetDailySeries(ctx, c.Param("symbol"), c.Query("outputsize"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetIntradaySeries godoc
// @Summary      Get intraday stock price history
// @Tags         stocks
// @Produce      json
// @Param        symbol      path   string  true   "Stock symbol"
// @Param        interval    query  string  false  "1min, 5min, 15min, 30min or 60min"  default(5min)
// @Param        outputsize  query  string  false  "compact or full"  default(compact)
// @Success      200  {object}  domain.TimeSeries
// @Failure      400  {object}  map[string]string
// @Router       /api/stocks/intraday/{symbol} [get]
func (h *Handler) GetIntradaySeries(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-intraday-series")
	defer span.End()

	interval := strings.TrimSpace(c.DefaultQuery("interval", "5min"))
	if !domain.ValidIntradayInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported interval: " + interval,
			"supported_intervals": domain.IntradayIntervals,
		})
		return
	}

	series, err := h.market.GetIntradaySeries(ctx, c.Param("symbol"), interval, c.Query("outputsize"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetWeeklySeries godoc
// @Summary      Get weekly stock price history
// @Tags         stocks
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol"
// @Success      200  {object}  domain.TimeSeries
// @Router       /api/stocks/weekly/{symbol} [get]
func (h *Handler) GetWeeklySeries(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-weekly-series")
	defer span.End()

	series, err := h.market.GetWeeklySeries(ctx, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetMonthlySeries godoc
// @Summary      Get monthly stock price history
// @Tags         stocks
// @Produce      json
// @Param        symbol  path  string  true  "Stock symbol"
// @Success      200  {object}  domain.TimeSeries
// @Router       /api/stocks/monthly/{symbol} [get]
func (h *Handler) GetMonthlySeries(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-monthly-series")
	defer span.End()

	series, err := h.market.GetMonthlySeries(ctx, c.Param("symbol"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// SearchSymbols godoc
// @Summary      Search for symbols by keywords
// @Tags         stocks
// @Produce      json
// @Param        q  query  string  true  "Search keywords"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/stocks/search [get]
func (h *Handler) SearchSymbols(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.search-symbols")
	defer span.End()

	keywords := strings.TrimSpace(c.Query("q"))
	if keywords == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}

	results, err := h.market.Search(ctx, keywords)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// GetTrendingStocks godoc
// @Summary      Get trending stocks ranked by volume
// @Tags         stocks
// @Produce      json
// @Param        limit  query  int  false  "Number of entries"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/stocks/trending [get]
func (h *Handler) GetTrendingStocks(c *gin.Context) {
	h.trending(c, domain.AssetStock)
}

// GetTrendingCryptos godoc
// @Summary      Get trending cryptocurrencies
// @Tags         crypto
// @Produce      json
// @Param        limit  query  int  false  "Number of entries"  default(10)
// @Success      200  {object}  map[string]interface{}
// @Router       /api/crypto/trending [get]
func (h *Handler) GetTrendingCryptos(c *gin.Context) {
	h.trending(c, domain.AssetCrypto)
}

func (h *Handler) trending(c *gin.Context, assetType domain.AssetType) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-trending")
	defer span.End()
	span.SetAttributes(attribute.String("asset_type", string(assetType)))

	limit := 10
	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 || n > 30 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 30"})
			return
		}
		limit = n
	}

	listing, err := h.market.GetTrending(ctx, assetType, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trending": listing, "count": len(listing)})
}

// GetCryptoDaily godoc
// @Summary      Get daily crypto price history
// @Tags         crypto
// @Produce      json
// @Param        symbol  path   string  true   "Crypto symbol (e.g., BTC)"
// @Param        market  query  string  false  "Quote market"  default(USD)
// @Success      200  {object}  domain.TimeSeries
// @Router       /api/crypto/daily/{symbol} [get]
func (h *Handler) GetCryptoDaily(c *gin.Context) {
	h.cryptoSeries(c, "daily")
}

// GetCryptoWeekly godoc
// @Summary      Get weekly crypto price history
// @Tags         crypto
// @Produce      json
// @Param        symbol  path   string  true   "Crypto symbol"
// @Param        market  query  string  false  "Quote market"  default(USD)
// @Success      200  {object}  domain.TimeSeries
// @Router       /api/crypto/weekly/{symbol} [get]
func (h *Handler) GetCryptoWeekly(c *gin.Context) {
	h.cryptoSeries(c, "weekly")
}

// GetCryptoMonthly godoc
// @Summary      Get monthly crypto price history
// @Tags         crypto
// @Produce      json
// @Param        symbol  path   string  true   "Crypto symbol"
// @Param        market  query  string  false  "Quote market"  default(USD)
// @Success      200  {object}  domain.TimeSeries
// @Router       /api/crypto/monthly/{symbol} [get]
func (h *Handler) GetCryptoMonthly(c *gin.Context) {
	h.cryptoSeries(c, "monthly")
}

func (h *Handler) cryptoSeries(c *gin.Context, rangeName string) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-crypto-series")
	defer span.End()
	span.SetAttributes(attribute.String("range", rangeName))

	series, err := h.market.GetCryptoSeries(ctx, rangeName, c.Param("symbol"), c.Query("market"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetCryptoIntraday godoc
// @Summary      Get intraday crypto price history
// @Tags         crypto
// @Produce      json
// @Param        symbol    path   string  true   "Crypto symbol"
// @Param        market    query  string  false  "Quote market"  default(USD)
// @Param        interval  query  string  false  "1min, 5min, 15min, 30min or 60min"  default(5min)
// @Success      200  {object}  domain.TimeSeries
// @Failure      400  {object}  map[string]string
// @Router       /api/crypto/intraday/{symbol} [get]
func (h *Handler) GetCryptoIntraday(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-crypto-intraday")
	defer span.End()

	interval := strings.TrimSpace(c.DefaultQuery("interval", "5min"))
	if !domain.ValidIntradayInterval(interval) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":               "unsupported interval: " + interval,
			"supported_intervals": domain.IntradayIntervals,
		})
		return
	}

	series, err := h.market.GetCryptoIntradaySeries(ctx, c.Param("symbol"), c.Query("market"), interval)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, series)
}

// GetExchangeRate godoc
// @Summary      Get a realtime currency exchange rate
// @Tags         crypto
// @Produce      json
// @Param        from  path   string  true   "From currency (e.g., BTC)"
// @Param        to    query  string  false  "To currency"  default(USD)
// @Success      200  {object}  domain.ExchangeRate
// @Failure      404  {object}  map[string]string
// @Router       /api/crypto/rate/{from} [get]
func (h *Handler) GetExchangeRate(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-exchange-rate")
	defer span.End()

	rate, err := h.market.GetExchangeRate(ctx, c.Param("from"), c.Query("to"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rate)
}

package handler

import (
	"net/http"
	"strconv"
	"strings"

	"stellariq/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// AnalyzeSymbol godoc
// @Summary      Analyze a symbol with technical indicators
// @Description  Computes RSI, MACD, stochastic and Bollinger band signals and an overall verdict
// @Tags         analysis
// @Produce      json
// @Param        symbol           path   string   true   "Symbol to analyze"
// @Param        asset_type       query  string   false  "stock or crypto"  default(stock)
// @Param        rsi_overbought   query  number   false  "RSI overbought cutoff"  default(70)
// @Param        rsi_oversold     query  number   false  "RSI oversold cutoff"    default(30)
// @Param        stoch_overbought query  number   false  "Stochastic overbought cutoff"  default(80)
// @Param        stoch_oversold   query  number   false  "Stochastic oversold cutoff"    default(20)
// @Success      200  {object}  domain.AnalysisResult
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      429  {object}  map[string]string
// @Router       /api/analysis/symbol/{symbol} [get]
func (h *Handler) AnalyzeSymbol(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-symbol")
	defer span.End()

	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	span.SetAttributes(attribute.String("symbol", symbol))

	assetType := domain.AssetType(strings.ToLower(c.DefaultQuery("asset_type", string(domain.AssetStock))))
	if !assetType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or crypto"})
		return
	}

	overrides, err := thresholdOverrides(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.analysis.AnalyzeSymbol(ctx, symbol, assetType, overrides)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type bulkAnalysisRequest struct {
	Symbols    []string           `json:"symbols" binding:"required"`
	AssetType  domain.AssetType   `json:"asset_type"`
	Thresholds *domain.Thresholds `json:"thresholds,omitempty"`
}

// AnalyzeBulk godoc
// @Summary      Analyze up to 20 symbols in one request
// @Description  Per-symbol failures are reported alongside the successful results
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body  bulkAnalysisRequest  true  "Symbols to analyze"
// @Success      200  {object}  domain.BulkAnalysisResult
// @Failure      400  {object}  map[string]string
// @Router       /api/analysis/bulk [post]
func (h *Handler) AnalyzeBulk(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-bulk")
	defer span.End()

	var req bulkAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.AssetType == "" {
		req.AssetType = domain.AssetStock
	}
	if !req.AssetType.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "asset_type must be stock or crypto"})
		return
	}
	span.SetAttributes(attribute.Int("symbol_count", len(req.Symbols)))

	result, err := h.analysis.AnalyzeBulk(ctx, req.Symbols, req.AssetType, req.Thresholds)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// AnalyzeWatchlist godoc
// @Summary      Analyze every favorite of the requesting user
// @Tags         analysis
// @Produce      json
// @Param        X-User-ID  header  int  true  "Authenticated user id"
// @Success      200  {object}  domain.WatchlistAnalysis
// @Failure      401  {object}  map[string]string
// @Router       /api/analysis/watchlist [get]
func (h *Handler) AnalyzeWatchlist(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.analyze-watchlist")
	defer span.End()

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	span.SetAttributes(attribute.Int64("user_id", userID))

	analysis, err := h.analysis.AnalyzeWatchlist(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// Screen godoc
// @Summary      Screen popular symbols for a market condition
// @Tags         analysis
// @Accept       json
// @Produce      json
// @Param        request  body  domain.ScreenerRequest  true  "Screening criteria"
// @Success      200  {object}  domain.ScreenerResponse
// @Failure      400  {object}  map[string]string
// @Router       /api/analysis/screener [post]
func (h *Handler) Screen(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.screen")
	defer span.End()

	var req domain.ScreenerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	span.SetAttributes(attribute.String("condition", string(req.Condition)))

	resp, err := h.analysis.Screen(ctx, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// requireUserID reads the caller identity set by the upstream auth
// proxy. Authentication itself lives outside this service.
func requireUserID(c *gin.Context) (int64, bool) {
	raw := strings.TrimSpace(c.GetHeader("X-User-ID"))
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return 0, false
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID must be a positive integer"})
		return 0, false
	}
	return userID, true
}

// thresholdOverrides builds a Thresholds override from query params,
// or nil when none are supplied.
func thresholdOverrides(c *gin.Context) (*domain.Thresholds, error) {
	th := domain.DefaultThresholds()
	touched := false

	read := func(name string, dest *float64, lo, hi float64) error {
		raw := strings.TrimSpace(c.Query(name))
		if raw == "" {
			return nil
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < lo || v > hi {
			return &thresholdError{name: name, lo: lo, hi: hi}
		}
		*dest = v
		touched = true
		return nil
	}

	if err := read("rsi_overbought", &th.RSIOverbought, 50, 100); err != nil {
		return nil, err
	}
	if err := read("rsi_oversold", &th.RSIOversold, 0, 50); err != nil {
		return nil, err
	}
	if err := read("stoch_overbought", &th.StochOverbought, 50, 100); err != nil {
		return nil, err
	}
	if err := read("stoch_oversold", &th.StochOversold, 0, 50); err != nil {
		return nil, err
	}

	if !touched {
		return nil, nil
	}
	return &th, nil
}

type thresholdError struct {
	name   string
	lo, hi float64
}

func (e *thresholdError) Error() string {
	return e.name + " must be a number between " +
		strconv.FormatFloat(e.lo, 'f', -1, 64) + " and " +
		strconv.FormatFloat(e.hi, 'f', -1, 64)
}

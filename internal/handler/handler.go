package handler

import (
	"context"
	"errors"
	"net/http"

	"stellariq/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

// MarketData is the market-data surface the HTTP layer consumes.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetDailySeries(ctx context.Context, symbol, outputSize string) (*domain.TimeSeries, error)
	GetIntradaySeries(ctx context.Context, symbol, interval, outputSize string) (*domain.TimeSeries, error)
	GetWeeklySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error)
	GetMonthlySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error)
	GetCryptoSeries(ctx context.Context, rangeName, symbol, market string) (*domain.TimeSeries, error)
	GetCryptoIntradaySeries(ctx context.Context, symbol, market, interval string) (*domain.TimeSeries, error)
	Search(ctx context.Context, keywords string) ([]domain.SearchResult, error)
	GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error)
	GetTrending(ctx context.Context, assetType domain.AssetType, limit int) ([]domain.AssetOverview, error)
}

type Analyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.AnalysisResult, error)
	AnalyzeBulk(ctx context.Context, symbols []string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.BulkAnalysisResult, error)
	AnalyzeWatchlist(ctx context.Context, userID int64) (*domain.WatchlistAnalysis, error)
	Screen(ctx context.Context, req domain.ScreenerRequest) (*domain.ScreenerResponse, error)
}

type Favorites interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Favorite, error)
	Add(ctx context.Context, fav domain.Favorite) (*domain.Favorite, error)
	Remove(ctx context.Context, userID int64, symbol string, assetType domain.AssetType) error
	SetAlertEnabled(ctx context.Context, userID int64, symbol string, assetType domain.AssetType, enabled bool) error
}

type Handler struct {
	tracer    trace.Tracer
	market    MarketData
	analysis  Analyzer
	favorites Favorites
}

func New(tracer trace.Tracer, market MarketData, analysis Analyzer, favorites Favorites) *Handler {
	return &Handler{
		tracer:    tracer,
		market:    market,
		analysis:  analysis,
		favorites: favorites,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	r.GET("/api/stocks/quote/:symbol", h.GetQuote)
	r.GET("/api/stocks/daily/:symbol", h.GetDailySeries)
	r.GET("/api/stocks/intraday/:symbol", h.GetIntradaySeries)
	r.GET("/api/stocks/weekly/:symbol", h.GetWeeklySeries)
	r.GET("/api/stocks/monthly/:symbol", h.GetMonthlySeries)
	r.GET("/api/stocks/search", h.SearchSymbols)
	r.GET("/api/stocks/trending", h.GetTrendingStocks)

	r.GET("/api/crypto/daily/:symbol", h.GetCryptoDaily)
	r.GET("/api/crypto/weekly/:symbol", h.GetCryptoWeekly)
	r.GET("/api/crypto/monthly/:symbol", h.GetCryptoMonthly)
	r.GET("/api/crypto/intraday/:symbol", h.GetCryptoIntraday)
	r.GET("/api/crypto/rate/:from", h.GetExchangeRate)
	r.GET("/api/crypto/trending", h.GetTrendingCryptos)

	r.GET("/api/analysis/symbol/:symbol", h.AnalyzeSymbol)
	r.POST("/api/analysis/bulk", h.AnalyzeBulk)
	r.GET("/api/analysis/watchlist", h.AnalyzeWatchlist)
	r.POST("/api/analysis/screener", h.Screen)

	r.GET("/api/favorites", h.ListFavorites)
	r.POST("/api/favorites", h.AddFavorite)
	r.DELETE("/api/favorites/:symbol", h.RemoveFavorite)
	r.PATCH("/api/favorites/:symbol/alerts", h.SetFavoriteAlerts)
}

// Health godoc
// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// statusFor maps domain error kinds onto HTTP statuses. Anything
// unrecognized is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{
		"error": err.Error(),
		"kind":  domain.ErrorKind(err),
	})
}

package service

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"stellariq/internal/cache"
	"stellariq/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

const trendingSampleSize = 30

// MarketProvider is the upstream data source behind the cache.
type MarketProvider interface {
	Quote(ctx context.Context, symbol string) (*domain.Quote, error)
	DailySeries(ctx context.Context, symbol, outputSize string) (*domain.TimeSeries, error)
	IntradaySeries(ctx context.Context, symbol, interval, outputSize string) (*domain.TimeSeries, error)
	WeeklySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error)
	MonthlySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error)
	CryptoDailySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error)
	CryptoWeeklySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error)
	CryptoMonthlySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error)
	CryptoIntradaySeries(ctx context.Context, symbol, market, interval string) (*domain.TimeSeries, error)
	SearchSymbols(ctx context.Context, keywords string) ([]domain.SearchResult, error)
	ExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error)
}

// TTLConfig carries the per-request-type cache lifetimes.
type TTLConfig struct {
	Quote  time.Duration
	Series time.Duration
	Search time.Duration
}

// MarketDataService fronts the provider with the cache and coalesces
// concurrent fetches for the same key into one in-flight call, so
// duplicate requests never burn rate-limit budget.
type MarketDataService struct {
	tracer   trace.Tracer
	provider MarketProvider
	cache    *cache.Store
	ttl      TTLConfig
	group    singleflight.Group
}

func NewMarketDataService(tracer trace.Tracer, provider MarketProvider, store *cache.Store, ttl TTLConfig) *MarketDataService {
	return &MarketDataService{
		tracer:   tracer,
		provider: provider,
		cache:    store,
		ttl:      ttl,
	}
}

// fetchCached returns the cached value at key or coalesces callers onto
// one provider fetch. The cache write happens before any caller sees
// the value; co-flighted callers share the fetch outcome, success or
// failure.
func fetchCached[T any](ctx context.Context, s *MarketDataService, key string, ttl time.Duration, fetch func(context.Context) (*T, error)) (*T, error) {
	var cached T
	hit, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		log.Printf("cache read error for %s: %v", key, err)
	}
	if hit {
		return &cached, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		// A coalesced caller may arrive after the flight leader already
		// populated the cache.
		var refreshed T
		if hit, err := s.cache.Get(ctx, key, &refreshed); err == nil && hit {
			return &refreshed, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, key, value, ttl); err != nil {
			log.Printf("cache write error for %s: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*T), nil
}

func (s *MarketDataService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-quote")
	defer span.End()
	symbol = normalizeSymbol(symbol)
	span.SetAttributes(attribute.String("symbol", symbol))

	return fetchCached(ctx, s, cache.QuoteKey(symbol), s.ttl.Quote, func(ctx context.Context) (*domain.Quote, error) {
		return s.provider.Quote(ctx, symbol)
	})
}

func (s *MarketDataService) GetDailySeries(ctx context.Context, symbol, outputSize string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-daily-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)
	outputSize = normalizeOutputSize(outputSize)

	return fetchCached(ctx, s, cache.DailyKey(symbol, outputSize), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		return s.provider.DailySeries(ctx, symbol, outputSize)
	})
}

func (s *MarketDataService) GetIntradaySeries(ctx context.Context, symbol, interval, outputSize string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-intraday-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)
	outputSize = normalizeOutputSize(outputSize)

	return fetchCached(ctx, s, cache.IntradayKey(symbol, interval, outputSize), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		return s.provider.IntradaySeries(ctx, symbol, interval, outputSize)
	})
}

func (s *MarketDataService) GetWeeklySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-weekly-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)

	return fetchCached(ctx, s, cache.WeeklyKey(symbol), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		return s.provider.WeeklySeries(ctx, symbol)
	})
}

func (s *MarketDataService) GetMonthlySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-monthly-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)

	return fetchCached(ctx, s, cache.MonthlyKey(symbol), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		return s.provider.MonthlySeries(ctx, symbol)
	})
}

func (s *MarketDataService) GetCryptoSeries(ctx context.Context, rangeName, symbol, market string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-crypto-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)
	market = normalizeMarket(market)
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("range", rangeName))

	return fetchCached(ctx, s, cache.CryptoSeriesKey(rangeName, symbol, market), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		switch rangeName {
		case "weekly":
			return s.provider.CryptoWeeklySeries(ctx, symbol, market)
		case "monthly":
			return s.provider.CryptoMonthlySeries(ctx, symbol, market)
		default:
			return s.provider.CryptoDailySeries(ctx, symbol, market)
		}
	})
}

func (s *MarketDataService) GetCryptoIntradaySeries(ctx context.Context, symbol, market, interval string) (*domain.TimeSeries, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-crypto-intraday-series")
	defer span.End()
	symbol = normalizeSymbol(symbol)
	market = normalizeMarket(market)

	return fetchCached(ctx, s, cache.CryptoIntradayKey(symbol, market, interval), s.ttl.Series, func(ctx context.Context) (*domain.TimeSeries, error) {
		return s.provider.CryptoIntradaySeries(ctx, symbol, market, interval)
	})
}

func (s *MarketDataService) Search(ctx context.Context, keywords string) ([]domain.SearchResult, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.search")
	defer span.End()
	keywords = strings.TrimSpace(keywords)

	results, err := fetchCached(ctx, s, cache.SearchKey(keywords), s.ttl.Search, func(ctx context.Context) (*[]domain.SearchResult, error) {
		out, err := s.provider.SearchSymbols(ctx, keywords)
		if err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}
	return *results, nil
}

func (s *MarketDataService) GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-exchange-rate")
	defer span.End()
	from = normalizeSymbol(from)
	to = normalizeMarket(to)

	return fetchCached(ctx, s, cache.RateKey(from, to), s.ttl.Quote, func(ctx context.Context) (*domain.ExchangeRate, error) {
		return s.provider.ExchangeRate(ctx, from, to)
	})
}

// GetTrending quotes a sample of the popular universe. Stocks rank by
// volume; exchange rates carry no volume, so crypto keeps the curated
// universe order. Symbols that fail (rate limit, unknown) are skipped;
// the listing is best-effort.
func (s *MarketDataService) GetTrending(ctx context.Context, assetType domain.AssetType, limit int) ([]domain.AssetOverview, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-trending")
	defer span.End()
	if limit <= 0 {
		limit = 10
	}

	cacheKey := cache.TrendingKey(string(assetType))
	overviews, err := fetchCached(ctx, s, cacheKey, s.ttl.Quote, func(ctx context.Context) (*[]domain.AssetOverview, error) {
		universe := domain.PopularStocks
		if assetType == domain.AssetCrypto {
			universe = domain.PopularCryptos
		}
		if len(universe) > trendingSampleSize {
			universe = universe[:trendingSampleSize]
		}

		out := make([]domain.AssetOverview, 0, len(universe))
		for _, symbol := range universe {
			if assetType == domain.AssetCrypto {
				rate, err := s.GetExchangeRate(ctx, symbol, "USD")
				if err != nil {
					log.Printf("trending: skipping %s: %v", symbol, err)
					continue
				}
				out = append(out, domain.AssetOverview{
					Symbol:      symbol,
					Name:        rate.FromName,
					Price:       rate.Rate,
					LastUpdated: rate.LastRefreshed,
				})
				continue
			}

			quote, err := s.GetQuote(ctx, symbol)
			if err != nil {
				log.Printf("trending: skipping %s: %v", symbol, err)
				continue
			}
			out = append(out, domain.AssetOverview{
				Symbol:        quote.Symbol,
				Price:         quote.Price,
				ChangePercent: quote.ChangePercent,
				Volume:        quote.Volume,
				LastUpdated:   quote.LatestTradingDay,
			})
		}
		if assetType != domain.AssetCrypto {
			sort.Slice(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })
		}
		return &out, nil
	})
	if err != nil {
		return nil, err
	}

	listing := *overviews
	if len(listing) > limit {
		listing = listing[:limit]
	}
	return listing, nil
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func normalizeMarket(market string) string {
	market = strings.ToUpper(strings.TrimSpace(market))
	if market == "" {
		return "USD"
	}
	return market
}

func normalizeOutputSize(outputSize string) string {
	outputSize = strings.ToLower(strings.TrimSpace(outputSize))
	if outputSize != "full" {
		return "compact"
	}
	return "full"
}

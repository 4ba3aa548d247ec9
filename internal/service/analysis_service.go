package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"stellariq/internal/domain"
	"stellariq/internal/indicator"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	maxBulkSymbols          = 20
	defaultMinConfidence    = 0.6
	defaultScreenerLimit    = 20
	watchlistHighlightCount = 5
	defaultMaxConcurrency   = 4
)

// AnalysisMarketData is the slice of the market-data service the
// aggregator needs.
type AnalysisMarketData interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetDailySeries(ctx context.Context, symbol, outputSize string) (*domain.TimeSeries, error)
	GetCryptoSeries(ctx context.Context, rangeName, symbol, market string) (*domain.TimeSeries, error)
	GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error)
}

type FavoritesLister interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Favorite, error)
}

// AnalysisService folds indicator outputs into market-condition
// verdicts for single, bulk, watchlist and screener requests.
type AnalysisService struct {
	tracer         trace.Tracer
	market         AnalysisMarketData
	favorites      FavoritesLister
	thresholds     domain.Thresholds
	maxConcurrency int
	now            func() time.Time
}

func NewAnalysisService(
	tracer trace.Tracer,
	market AnalysisMarketData,
	favorites FavoritesLister,
	thresholds domain.Thresholds,
	maxConcurrency int,
) *AnalysisService {
	if maxConcurrency <= 0 {
		maxConcurrency = defaultMaxConcurrency
	}
	return &AnalysisService{
		tracer:         tracer,
		market:         market,
		favorites:      favorites,
		thresholds:     thresholds,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// AnalyzeSymbol computes the four indicator classifications for one
// symbol and aggregates them into an overall verdict. Indicators whose
// warm-up exceeds the available history are skipped, leaving a partial
// result rather than an error.
func (s *AnalysisService) AnalyzeSymbol(ctx context.Context, symbol string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.AnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.analyze-symbol")
	defer span.End()
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("asset_type", string(assetType)))

	if !assetType.IsValid() {
		return nil, fmt.Errorf("asset type must be stock or crypto, got %q", assetType)
	}
	th := s.thresholds
	if overrides != nil {
		th = *overrides
	}

	var (
		series *domain.TimeSeries
		err    error
	)
	if assetType == domain.AssetCrypto {
		series, err = s.market.GetCryptoSeries(ctx, "daily", symbol, "USD")
	} else {
		series, err = s.market.GetDailySeries(ctx, symbol, "compact")
	}
	if err != nil {
		return nil, err
	}

	price := s.currentPrice(ctx, symbol, assetType, series)
	signals := buildSignals(series.Bars, price, th)
	overall, confidence := aggregate(signals)
	recommendation, risk := describe(overall, confidence, len(signals))

	return &domain.AnalysisResult{
		Symbol:           symbol,
		AssetType:        assetType,
		Timestamp:        s.now().UTC(),
		CurrentPrice:     price,
		Signals:          signals,
		OverallCondition: overall,
		Confidence:       confidence,
		Recommendation:   recommendation,
		RiskLevel:        risk,
		Thresholds:       th,
	}, nil
}

// currentPrice prefers the live quote/exchange rate and falls back to
// the latest close; a quote failure must not fail the whole analysis.
func (s *AnalysisService) currentPrice(ctx context.Context, symbol string, assetType domain.AssetType, series *domain.TimeSeries) *float64 {
	if assetType == domain.AssetCrypto {
		if rate, err := s.market.GetExchangeRate(ctx, symbol, "USD"); err == nil {
			return &rate.Rate
		} else {
			log.Printf("analysis: exchange rate for %s unavailable: %v", symbol, err)
		}
	} else {
		if quote, err := s.market.GetQuote(ctx, symbol); err == nil {
			return &quote.Price
		} else {
			log.Printf("analysis: quote for %s unavailable: %v", symbol, err)
		}
	}
	if latest := series.Latest(); latest != nil {
		return &latest.Close
	}
	return nil
}

// AnalyzeBulk fans out per-symbol analyses with bounded concurrency.
// One symbol's failure never aborts the batch; failures come back as
// per-symbol annotations.
func (s *AnalysisService) AnalyzeBulk(ctx context.Context, symbols []string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.BulkAnalysisResult, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.analyze-bulk")
	defer span.End()

	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if len(symbols) > maxBulkSymbols {
		return nil, fmt.Errorf("maximum %d symbols allowed for bulk analysis", maxBulkSymbols)
	}

	results, failures := s.analyzeMany(ctx, symbols, assetType, overrides)

	summary := map[domain.MarketCondition]int{
		domain.ConditionOverbought: 0,
		domain.ConditionOversold:   0,
		domain.ConditionNeutral:    0,
	}
	for _, r := range results {
		summary[r.OverallCondition]++
	}

	return &domain.BulkAnalysisResult{
		Results:   results,
		Failures:  failures,
		Summary:   summary,
		Timestamp: s.now().UTC(),
	}, nil
}

// AnalyzeWatchlist analyzes the user's favorites and surfaces the
// strongest oversold entries as opportunities and the strongest
// overbought ones as risks.
func (s *AnalysisService) AnalyzeWatchlist(ctx context.Context, userID int64) (*domain.WatchlistAnalysis, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.analyze-watchlist")
	defer span.End()

	if s.favorites == nil {
		return nil, fmt.Errorf("watchlist analysis requires the favorites repository")
	}
	favorites, err := s.favorites.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}

	out := &domain.WatchlistAnalysis{
		UserID:           userID,
		TotalFavorites:   len(favorites),
		TopOpportunities: []domain.AnalysisResult{},
		TopRisks:         []domain.AnalysisResult{},
	}
	if len(favorites) == 0 {
		return out, nil
	}

	byType := map[domain.AssetType][]string{}
	for _, f := range favorites {
		byType[f.AssetType] = append(byType[f.AssetType], f.Symbol)
	}

	var results []domain.AnalysisResult
	for assetType, symbols := range byType {
		typed, failures := s.analyzeMany(ctx, symbols, assetType, nil)
		results = append(results, typed...)
		out.Failures = append(out.Failures, failures...)
	}

	var opportunities, risks []domain.AnalysisResult
	for _, r := range results {
		switch r.OverallCondition {
		case domain.ConditionOverbought:
			out.OverboughtCount++
			risks = append(risks, r)
		case domain.ConditionOversold:
			out.OversoldCount++
			opportunities = append(opportunities, r)
		default:
			out.NeutralCount++
		}
	}

	sort.Slice(opportunities, func(i, j int) bool { return opportunities[i].Confidence > opportunities[j].Confidence })
	sort.Slice(risks, func(i, j int) bool { return risks[i].Confidence > risks[j].Confidence })
	if len(opportunities) > watchlistHighlightCount {
		opportunities = opportunities[:watchlistHighlightCount]
	}
	if len(risks) > watchlistHighlightCount {
		risks = risks[:watchlistHighlightCount]
	}
	out.TopOpportunities = opportunities
	out.TopRisks = risks
	return out, nil
}

// Screen analyzes the popular universe for the requested asset type and
// keeps only symbols whose verdict matches the requested overall
// condition, confidence floor and any per-indicator conditions.
func (s *AnalysisService) Screen(ctx context.Context, req domain.ScreenerRequest) (*domain.ScreenerResponse, error) {
	ctx, span := s.tracer.Start(ctx, "analysis.screen")
	defer span.End()

	if !req.Condition.IsValid() {
		return nil, fmt.Errorf("condition must be overbought, oversold or neutral, got %q", req.Condition)
	}
	if req.AssetType == "" {
		req.AssetType = domain.AssetStock
	}
	if !req.AssetType.IsValid() {
		return nil, fmt.Errorf("asset type must be stock or crypto, got %q", req.AssetType)
	}
	for ind, cond := range req.Conditions {
		if !validIndicatorKey(ind) {
			return nil, fmt.Errorf("unknown indicator %q in conditions", ind)
		}
		if !cond.IsValid() {
			return nil, fmt.Errorf("invalid condition %q for indicator %s", cond, ind)
		}
	}
	minConfidence := req.MinConfidence
	if minConfidence <= 0 {
		minConfidence = defaultMinConfidence
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultScreenerLimit
	}

	universe := domain.PopularStocks
	if req.AssetType == domain.AssetCrypto {
		universe = domain.PopularCryptos
	}

	results, failures := s.analyzeMany(ctx, universe, req.AssetType, nil)

	matches := make([]domain.ScreenerResult, 0, limit)
	for _, r := range results {
		if r.OverallCondition != req.Condition || r.Confidence < minConfidence {
			continue
		}
		if !matchesIndicatorConditions(r.Signals, req.Conditions) {
			continue
		}
		matches = append(matches, domain.ScreenerResult{
			Symbol:     r.Symbol,
			Condition:  r.OverallCondition,
			Confidence: r.Confidence,
			Price:      r.CurrentPrice,
			KeySignals: keySignals(r.Signals),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Confidence > matches[j].Confidence })
	if len(matches) > limit {
		matches = matches[:limit]
	}

	return &domain.ScreenerResponse{
		Results:   matches,
		Failures:  failures,
		Timestamp: s.now().UTC(),
	}, nil
}

// analyzeMany runs per-symbol analyses with bounded fan-out, isolating
// every failure into an annotation.
func (s *AnalysisService) analyzeMany(ctx context.Context, symbols []string, assetType domain.AssetType, overrides *domain.Thresholds) ([]domain.AnalysisResult, []domain.SymbolFailure) {
	type slot struct {
		result  *domain.AnalysisResult
		failure *domain.SymbolFailure
	}
	slots := make([]slot, len(symbols))

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			result, err := s.AnalyzeSymbol(ctx, symbol, assetType, overrides)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Printf("analysis: %s failed: %v", symbol, err)
				slots[i].failure = &domain.SymbolFailure{
					Symbol: strings.ToUpper(strings.TrimSpace(symbol)),
					Kind:   domain.ErrorKind(err),
					Error:  err.Error(),
				}
				return nil
			}
			slots[i].result = result
			return nil
		})
	}
	// Workers never return errors; failures are collected per symbol.
	_ = g.Wait()

	results := make([]domain.AnalysisResult, 0, len(symbols))
	var failures []domain.SymbolFailure
	for _, sl := range slots {
		if sl.result != nil {
			results = append(results, *sl.result)
		}
		if sl.failure != nil {
			failures = append(failures, *sl.failure)
		}
	}
	return results, failures
}

// buildSignals classifies each indicator from the series tail. An
// indicator short on history contributes nothing; the caller decides
// what a partial verdict means.
func buildSignals(bars []domain.PriceBar, price *float64, th domain.Thresholds) []domain.IndicatorSignal {
	signals := make([]domain.IndicatorSignal, 0, 4)

	if rsi, err := indicator.RSI(bars, indicator.DefaultRSIPeriod); err == nil {
		signals = append(signals, classifyRSI(rsi[len(rsi)-1].Value, th))
	} else if !errors.Is(err, domain.ErrInsufficientData) {
		log.Printf("analysis: rsi failed: %v", err)
	}

	if macd, err := indicator.MACD(bars, indicator.DefaultMACDFast, indicator.DefaultMACDSlow, indicator.DefaultMACDSignal); err == nil && len(macd) >= 2 {
		signals = append(signals, classifyMACD(macd[len(macd)-2], macd[len(macd)-1]))
	} else if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		log.Printf("analysis: macd failed: %v", err)
	}

	if stoch, err := indicator.Stochastic(bars, indicator.DefaultStochKPeriod, indicator.DefaultStochDPeriod, indicator.DefaultStochSmooth); err == nil {
		signals = append(signals, classifyStochastic(stoch[len(stoch)-1], th))
	} else if !errors.Is(err, domain.ErrInsufficientData) {
		log.Printf("analysis: stochastic failed: %v", err)
	}

	if bands, err := indicator.Bollinger(bars, indicator.DefaultBollingerPeriod, indicator.DefaultBollingerStdDev); err == nil && price != nil {
		if sig, ok := classifyBollinger(bands[len(bands)-1], *price); ok {
			signals = append(signals, sig)
		}
	} else if err != nil && !errors.Is(err, domain.ErrInsufficientData) {
		log.Printf("analysis: bollinger failed: %v", err)
	}

	return signals
}

func classifyRSI(value float64, th domain.Thresholds) domain.IndicatorSignal {
	switch {
	case value >= th.RSIOverbought:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorRSI,
			Condition:   domain.ConditionOverbought,
			Value:       value,
			Strength:    clampStrength((value - th.RSIOverbought) / (100 - th.RSIOverbought)),
			Description: fmt.Sprintf("RSI at %.2f indicates overbought conditions", value),
		}
	case value <= th.RSIOversold:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorRSI,
			Condition:   domain.ConditionOversold,
			Value:       value,
			Strength:    clampStrength((th.RSIOversold - value) / th.RSIOversold),
			Description: fmt.Sprintf("RSI at %.2f indicates oversold conditions", value),
		}
	default:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorRSI,
			Condition:   domain.ConditionNeutral,
			Value:       value,
			Strength:    0.5,
			Description: fmt.Sprintf("RSI at %.2f indicates neutral conditions", value),
		}
	}
}

// classifyMACD looks for a crossover on the most recent bar. A bullish
// cross leans oversold (buy side), a bearish cross overbought.
func classifyMACD(prev, curr indicator.MACDPoint) domain.IndicatorSignal {
	prevDelta := prev.MACD - prev.Signal
	currDelta := curr.MACD - curr.Signal

	switch {
	case prevDelta <= 0 && currDelta > 0:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorMACD,
			Condition:   domain.ConditionOversold,
			Value:       curr.MACD,
			Strength:    crossStrength(currDelta, curr.MACD),
			Description: "MACD bullish crossover - potential buy signal",
		}
	case prevDelta >= 0 && currDelta < 0:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorMACD,
			Condition:   domain.ConditionOverbought,
			Value:       curr.MACD,
			Strength:    crossStrength(-currDelta, curr.MACD),
			Description: "MACD bearish crossover - potential sell signal",
		}
	case currDelta > 0:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorMACD,
			Condition:   domain.ConditionNeutral,
			Value:       curr.MACD,
			Strength:    0.3,
			Description: "MACD above signal line - bullish momentum",
		}
	default:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorMACD,
			Condition:   domain.ConditionNeutral,
			Value:       curr.MACD,
			Strength:    0.3,
			Description: "MACD below signal line - bearish momentum",
		}
	}
}

func classifyStochastic(point indicator.StochPoint, th domain.Thresholds) domain.IndicatorSignal {
	avg := (point.K + point.D) / 2
	switch {
	case avg >= th.StochOverbought:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorStoch,
			Condition:   domain.ConditionOverbought,
			Value:       avg,
			Strength:    clampStrength((avg - th.StochOverbought) / (100 - th.StochOverbought)),
			Description: fmt.Sprintf("Stochastic at %.2f indicates overbought conditions", avg),
		}
	case avg <= th.StochOversold:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorStoch,
			Condition:   domain.ConditionOversold,
			Value:       avg,
			Strength:    clampStrength((th.StochOversold - avg) / th.StochOversold),
			Description: fmt.Sprintf("Stochastic at %.2f indicates oversold conditions", avg),
		}
	default:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorStoch,
			Condition:   domain.ConditionNeutral,
			Value:       avg,
			Strength:    0.5,
			Description: fmt.Sprintf("Stochastic at %.2f indicates neutral conditions", avg),
		}
	}
}

func classifyBollinger(band indicator.BandPoint, price float64) (domain.IndicatorSignal, bool) {
	width := band.Upper - band.Lower
	if width <= 0 {
		return domain.IndicatorSignal{}, false
	}
	switch {
	case price >= band.Upper:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorBollinger,
			Condition:   domain.ConditionOverbought,
			Value:       price,
			Strength:    clampStrength((price - band.Upper) / width),
			Description: fmt.Sprintf("Price %.2f at upper band %.2f - overbought", price, band.Upper),
		}, true
	case price <= band.Lower:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorBollinger,
			Condition:   domain.ConditionOversold,
			Value:       price,
			Strength:    clampStrength((band.Lower - price) / width),
			Description: fmt.Sprintf("Price %.2f at lower band %.2f - oversold", price, band.Lower),
		}, true
	default:
		return domain.IndicatorSignal{
			Indicator:   domain.IndicatorBollinger,
			Condition:   domain.ConditionNeutral,
			Value:       price,
			Strength:    0.5,
			Description: fmt.Sprintf("Price %.2f within bands - neutral", price),
		}, true
	}
}

// aggregate derives the verdict by majority vote over the contributing
// classifications; any tie for the lead collapses to neutral. The
// confidence score is the strength-weighted share of the winning
// condition.
func aggregate(signals []domain.IndicatorSignal) (domain.MarketCondition, float64) {
	if len(signals) == 0 {
		return domain.ConditionNeutral, 0
	}

	votes := map[domain.MarketCondition]int{}
	weighted := map[domain.MarketCondition]float64{}
	var totalWeight float64
	for _, sig := range signals {
		votes[sig.Condition]++
		weighted[sig.Condition] += sig.Strength
		totalWeight += sig.Strength
	}

	overall := domain.ConditionNeutral
	if votes[domain.ConditionOverbought] > votes[domain.ConditionOversold] &&
		votes[domain.ConditionOverbought] > votes[domain.ConditionNeutral] {
		overall = domain.ConditionOverbought
	} else if votes[domain.ConditionOversold] > votes[domain.ConditionOverbought] &&
		votes[domain.ConditionOversold] > votes[domain.ConditionNeutral] {
		overall = domain.ConditionOversold
	}

	if totalWeight == 0 {
		return overall, 0
	}
	return overall, weighted[overall] / totalWeight
}

func describe(overall domain.MarketCondition, confidence float64, signalCount int) (string, string) {
	if signalCount == 0 {
		return "No signals available - insufficient history for analysis", "unknown"
	}
	switch overall {
	case domain.ConditionOverbought:
		risk := "medium"
		if confidence > 0.7 {
			risk = "high"
		}
		return "Consider selling - multiple indicators suggest overbought conditions", risk
	case domain.ConditionOversold:
		risk := "medium"
		if confidence > 0.7 {
			risk = "low"
		}
		return "Consider buying - multiple indicators suggest oversold conditions", risk
	default:
		return "Hold - mixed or neutral signals from technical indicators", "medium"
	}
}

func matchesIndicatorConditions(signals []domain.IndicatorSignal, conditions map[string]domain.MarketCondition) bool {
	for ind, want := range conditions {
		found := false
		for _, sig := range signals {
			if sig.Indicator == ind && sig.Condition == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func keySignals(signals []domain.IndicatorSignal) []string {
	out := make([]string, 0, 3)
	for _, sig := range signals {
		if sig.Strength <= 0.5 {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s", strings.ToUpper(sig.Indicator), sig.Description))
		if len(out) == 3 {
			break
		}
	}
	return out
}

func validIndicatorKey(key string) bool {
	switch key {
	case domain.IndicatorRSI, domain.IndicatorMACD, domain.IndicatorStoch, domain.IndicatorBollinger:
		return true
	}
	return false
}

func clampStrength(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func crossStrength(delta, line float64) float64 {
	if line == 0 {
		return 0.5
	}
	return clampStrength(delta / abs(line))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

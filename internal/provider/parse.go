package provider

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"stellariq/internal/domain"
)

var barTimeLayouts = []string{"2006-01-02 15:04:05", "2006-01-02"}

// parseSeries normalizes a time-series section into ascending,
// de-duplicated price bars. A missing or empty section is malformed.
func parseSeries(decoded payload, seriesKey, symbol, market, interval string) (*domain.TimeSeries, error) {
	raw, ok := decoded[seriesKey]
	if !ok {
		return nil, fmt.Errorf("response missing %q: %w", seriesKey, domain.ErrUpstream)
	}

	var entries map[string]map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("invalid series shape under %q: %w", seriesKey, domain.ErrUpstream)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("empty series under %q: %w", seriesKey, domain.ErrUpstream)
	}

	bars := make([]domain.PriceBar, 0, len(entries))
	seen := make(map[int64]struct{}, len(entries))
	for stamp, values := range entries {
		ts, err := parseBarTime(stamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp %q: %w", stamp, domain.ErrUpstream)
		}
		if _, dup := seen[ts.Unix()]; dup {
			continue
		}
		seen[ts.Unix()] = struct{}{}

		bar := domain.PriceBar{Timestamp: ts}
		fields := []struct {
			key  string
			dest *float64
		}{
			{"1. open", &bar.Open},
			{"2. high", &bar.High},
			{"3. low", &bar.Low},
			{"4. close", &bar.Close},
			{"5. volume", &bar.Volume},
		}
		for _, f := range fields {
			v, err := parseNumber(values, f.key)
			if err != nil {
				return nil, err
			}
			*f.dest = v
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})

	meta := metadata(decoded)
	return &domain.TimeSeries{
		Symbol:        strings.ToUpper(symbol),
		Market:        market,
		Interval:      interval,
		LastRefreshed: meta["last_refreshed"],
		Bars:          bars,
	}, nil
}

// parseQuote normalizes a GLOBAL_QUOTE section. The provider answers
// an unknown symbol with an empty object rather than an error field.
func parseQuote(decoded payload) (*domain.Quote, error) {
	raw, ok := decoded["Global Quote"]
	if !ok {
		return nil, fmt.Errorf("response missing global quote: %w", domain.ErrUpstream)
	}

	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid quote shape: %w", domain.ErrUpstream)
	}
	if len(values) == 0 || values["01. symbol"] == "" {
		return nil, fmt.Errorf("quote returned no data: %w", domain.ErrNotFound)
	}

	quote := &domain.Quote{
		Symbol:           values["01. symbol"],
		LatestTradingDay: values["07. latest trading day"],
		ChangePercent:    values["10. change percent"],
	}
	fields := []struct {
		key  string
		dest *float64
	}{
		{"02. open", &quote.Open},
		{"03. high", &quote.High},
		{"04. low", &quote.Low},
		{"05. price", &quote.Price},
		{"06. volume", &quote.Volume},
		{"08. previous close", &quote.PreviousClose},
		{"09. change", &quote.Change},
	}
	for _, f := range fields {
		v, err := parseNumber(values, f.key)
		if err != nil {
			return nil, err
		}
		*f.dest = v
	}
	return quote, nil
}

func parseSearchResults(decoded payload) ([]domain.SearchResult, error) {
	raw, ok := decoded["bestMatches"]
	if !ok {
		return nil, fmt.Errorf("response missing bestMatches: %w", domain.ErrUpstream)
	}

	var matches []map[string]string
	if err := json.Unmarshal(raw, &matches); err != nil {
		return nil, fmt.Errorf("invalid search shape: %w", domain.ErrUpstream)
	}

	results := make([]domain.SearchResult, 0, len(matches))
	for _, m := range matches {
		score, _ := strconv.ParseFloat(m["9. matchScore"], 64)
		results = append(results, domain.SearchResult{
			Symbol:     m["1. symbol"],
			Name:       m["2. name"],
			Type:       m["3. type"],
			Region:     m["4. region"],
			Currency:   m["8. currency"],
			MatchScore: score,
		})
	}
	return results, nil
}

func parseExchangeRate(decoded payload) (*domain.ExchangeRate, error) {
	raw, ok := decoded["Realtime Currency Exchange Rate"]
	if !ok {
		return nil, fmt.Errorf("response missing exchange rate: %w", domain.ErrUpstream)
	}

	var values map[string]string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid exchange rate shape: %w", domain.ErrUpstream)
	}

	rate, err := parseNumber(values, "5. Exchange Rate")
	if err != nil {
		return nil, err
	}
	return &domain.ExchangeRate{
		FromCode:      values["1. From_Currency Code"],
		FromName:      values["2. From_Currency Name"],
		ToCode:        values["3. To_Currency Code"],
		ToName:        values["4. To_Currency Name"],
		Rate:          rate,
		LastRefreshed: values["6. Last Refreshed"],
	}, nil
}

func metadata(decoded payload) map[string]string {
	out := map[string]string{}
	raw, ok := decoded["Meta Data"]
	if !ok {
		return out
	}
	var meta map[string]string
	if err := json.Unmarshal(raw, &meta); err != nil {
		return out
	}
	for key, value := range meta {
		if strings.Contains(key, "Last Refreshed") {
			out["last_refreshed"] = value
		}
		if strings.Contains(key, "Symbol") {
			out["symbol"] = value
		}
	}
	return out
}

func parseBarTime(stamp string) (time.Time, error) {
	for _, layout := range barTimeLayouts {
		if ts, err := time.Parse(layout, stamp); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", stamp)
}

func parseNumber(values map[string]string, key string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(values[key]), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric field %q: %w", key, domain.ErrUpstream)
	}
	return v, nil
}

// Package provider implements the Alpha Vantage client. It is the only
// place untyped provider JSON exists; everything it returns is a typed
// domain value.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"stellariq/internal/domain"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultBaseURL = "https://www.alphavantage.co/query"
	requestTimeout = 30 * time.Second
	maxAttempts    = 3
)

// Admitter gates outbound calls. Denial is surfaced as ErrRateLimited
// so callers can queue a retry.
type Admitter interface {
	Allow() bool
}

type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	limiter       Admitter
	tracer        trace.Tracer
	retryInterval time.Duration
}

func NewAlphaVantage(apiKey string, limiter Admitter, tracer trace.Tracer) *Client {
	return &Client{
		baseURL:       defaultBaseURL,
		apiKey:        apiKey,
		httpClient:    &http.Client{Timeout: requestTimeout},
		limiter:       limiter,
		tracer:        tracer,
		retryInterval: 500 * time.Millisecond,
	}
}

// payload is one decoded provider response, keyed by top-level section.
type payload map[string]json.RawMessage

// fetch performs one rate-limited provider request. Transport failures
// are retried with exponential backoff; provider-level failures
// (unknown symbol, provider throttling, malformed body) never are.
func (c *Client) fetch(ctx context.Context, function string, params url.Values) (payload, error) {
	ctx, span := c.tracer.Start(ctx, "alpha-vantage.request")
	defer span.End()
	span.SetAttributes(attribute.String("function", function))

	if !c.limiter.Allow() {
		return nil, fmt.Errorf("local quota exhausted for %s: %w", function, domain.ErrRateLimited)
	}

	params.Set("function", function)
	params.Set("apikey", c.apiKey)
	reqURL := c.baseURL + "?" + params.Encode()

	operation := func() (payload, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("provider returned status %d: %w", resp.StatusCode, domain.ErrUpstream))
		}

		var decoded payload
		if err := json.Unmarshal(body, &decoded); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("malformed provider response: %w", domain.ErrUpstream))
		}
		if kindErr := providerError(decoded); kindErr != nil {
			return nil, backoff.Permanent(kindErr)
		}
		return decoded, nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInterval
	decoded, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return nil, mapFetchError(function, err)
	}
	return decoded, nil
}

// providerError maps Alpha Vantage's in-band failure fields. An
// "Error Message" means the request itself is wrong (unknown symbol);
// "Note"/"Information" mean the provider's own quota is exhausted.
func providerError(decoded payload) error {
	if raw, ok := decoded["Error Message"]; ok {
		var msg string
		_ = json.Unmarshal(raw, &msg)
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	for _, field := range []string{"Note", "Information"} {
		if raw, ok := decoded[field]; ok {
			var msg string
			_ = json.Unmarshal(raw, &msg)
			return fmt.Errorf("provider throttled: %s: %w", msg, domain.ErrRateLimited)
		}
	}
	return nil
}

func mapFetchError(function string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, domain.ErrUpstream):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", function, domain.ErrTimeout)
	case errors.Is(err, context.Canceled):
		return err
	default:
		return fmt.Errorf("%s: %v: %w", function, err, domain.ErrUpstream)
	}
}

// Quote fetches the current global quote for a stock symbol.
func (c *Client) Quote(ctx context.Context, symbol string) (*domain.Quote, error) {
	decoded, err := c.fetch(ctx, "GLOBAL_QUOTE", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return parseQuote(decoded)
}

func (c *Client) DailySeries(ctx context.Context, symbol, outputSize string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "TIME_SERIES_DAILY", url.Values{
		"symbol": {symbol}, "outputsize": {outputSize},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Time Series (Daily)", symbol, "", "daily")
}

func (c *Client) IntradaySeries(ctx context.Context, symbol, interval, outputSize string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "TIME_SERIES_INTRADAY", url.Values{
		"symbol": {symbol}, "interval": {interval}, "outputsize": {outputSize},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, fmt.Sprintf("Time Series (%s)", interval), symbol, "", interval)
}

func (c *Client) WeeklySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "TIME_SERIES_WEEKLY", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Weekly Time Series", symbol, "", "weekly")
}

func (c *Client) MonthlySeries(ctx context.Context, symbol string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "TIME_SERIES_MONTHLY", url.Values{"symbol": {symbol}})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Monthly Time Series", symbol, "", "monthly")
}

func (c *Client) CryptoDailySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "DIGITAL_CURRENCY_DAILY", url.Values{
		"symbol": {symbol}, "market": {market},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Time Series (Digital Currency Daily)", symbol, market, "daily")
}

func (c *Client) CryptoWeeklySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "DIGITAL_CURRENCY_WEEKLY", url.Values{
		"symbol": {symbol}, "market": {market},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Time Series (Digital Currency Weekly)", symbol, market, "weekly")
}

func (c *Client) CryptoMonthlySeries(ctx context.Context, symbol, market string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "DIGITAL_CURRENCY_MONTHLY", url.Values{
		"symbol": {symbol}, "market": {market},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, "Time Series (Digital Currency Monthly)", symbol, market, "monthly")
}

func (c *Client) CryptoIntradaySeries(ctx context.Context, symbol, market, interval string) (*domain.TimeSeries, error) {
	decoded, err := c.fetch(ctx, "CRYPTO_INTRADAY", url.Values{
		"symbol": {symbol}, "market": {market}, "interval": {interval},
	})
	if err != nil {
		return nil, err
	}
	return parseSeries(decoded, fmt.Sprintf("Time Series Crypto (%s)", interval), symbol, market, interval)
}

func (c *Client) SearchSymbols(ctx context.Context, keywords string) ([]domain.SearchResult, error) {
	decoded, err := c.fetch(ctx, "SYMBOL_SEARCH", url.Values{"keywords": {keywords}})
	if err != nil {
		return nil, err
	}
	return parseSearchResults(decoded)
}

func (c *Client) ExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error) {
	decoded, err := c.fetch(ctx, "CURRENCY_EXCHANGE_RATE", url.Values{
		"from_currency": {from}, "to_currency": {to},
	})
	if err != nil {
		return nil, err
	}
	return parseExchangeRate(decoded)
}

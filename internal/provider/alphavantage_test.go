package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stellariq/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type allowAll struct{}

func (allowAll) Allow() bool { return true }

type denyAll struct{ calls int }

func (d *denyAll) Allow() bool { d.calls++; return false }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewAlphaVantage("test-key", allowAll{}, trace.NewNoopTracerProvider().Tracer("test"))
	client.baseURL = srv.URL
	client.retryInterval = time.Millisecond
	return client, &calls
}

func TestQuoteParsesGlobalQuote(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("unexpected function %q", got)
		}
		w.Write([]byte(`{"Global Quote": {
			"01. symbol": "AAPL",
			"02. open": "186.00",
			"03. high": "188.50",
			"04. low": "185.10",
			"05. price": "187.32",
			"06. volume": "52164723",
			"07. latest trading day": "2026-08-27",
			"08. previous close": "185.90",
			"09. change": "1.42",
			"10. change percent": "0.7639%"
		}}`))
	})

	quote, err := client.Quote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Symbol != "AAPL" || quote.Price != 187.32 || quote.Volume != 52164723 {
		t.Fatalf("unexpected quote: %+v", quote)
	}
}

func TestQuoteUnknownSymbolIsNotFound(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {}}`))
	})

	_, err := client.Quote(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("not-found must not be retried, got %d calls", *calls)
	}
}

func TestDailySeriesSortedAscending(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"Meta Data": {"2. Symbol": "IBM", "3. Last Refreshed": "2026-08-27"},
			"Time Series (Daily)": {
				"2026-08-27": {"1. open": "100", "2. high": "102", "3. low": "99", "4. close": "101", "5. volume": "1000"},
				"2026-08-25": {"1. open": "98", "2. high": "99", "3. low": "97", "4. close": "98.5", "5. volume": "900"},
				"2026-08-26": {"1. open": "98.5", "2. high": "100", "3. low": "98", "4. close": "99.7", "5. volume": "950"}
			}
		}`))
	})

	series, err := client.DailySeries(context.Background(), "ibm", "compact")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if series.Symbol != "IBM" || len(series.Bars) != 3 {
		t.Fatalf("unexpected series: %+v", series)
	}
	for i := 1; i < len(series.Bars); i++ {
		if !series.Bars[i-1].Timestamp.Before(series.Bars[i].Timestamp) {
			t.Fatalf("bars not strictly ascending at %d", i)
		}
	}
	if series.LastRefreshed != "2026-08-27" {
		t.Fatalf("unexpected last refreshed %q", series.LastRefreshed)
	}
}

func TestErrorMessageMapsToNotFoundWithoutRetry(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Error Message": "Invalid API call."}`))
	})

	_, err := client.DailySeries(context.Background(), "NOPE", "compact")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("invalid symbol must not be retried, got %d calls", *calls)
	}
}

func TestProviderThrottleNoteMapsToRateLimited(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`))
	})

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("provider throttling must not be retried, got %d calls", *calls)
	}
}

func TestMalformedResponseMapsToUpstreamWithoutRetry(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	})

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if *calls != 1 {
		t.Fatalf("malformed responses must not be retried, got %d calls", *calls)
	}
}

func TestServerErrorsAreRetriedThenUpstream(t *testing.T) {
	client, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream after retries, got %v", err)
	}
	if *calls != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, *calls)
	}
}

func TestLocalRateLimitDenialSkipsNetwork(t *testing.T) {
	limiter := &denyAll{}
	srvCalls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srvCalls++
	}))
	defer srv.Close()

	client := NewAlphaVantage("test-key", limiter, trace.NewNoopTracerProvider().Tracer("test"))
	client.baseURL = srv.URL

	_, err := client.Quote(context.Background(), "AAPL")
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if srvCalls != 0 {
		t.Fatalf("denied admission must not reach the network, got %d calls", srvCalls)
	}
}

func TestSearchResultsParsed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bestMatches": [
			{"1. symbol": "AAPL", "2. name": "Apple Inc", "3. type": "Equity", "4. region": "United States", "8. currency": "USD", "9. matchScore": "1.0000"}
		]}`))
	})

	results, err := client.SearchSymbols(context.Background(), "apple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].Symbol != "AAPL" || results[0].MatchScore != 1 {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExchangeRateParsed(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Realtime Currency Exchange Rate": {
			"1. From_Currency Code": "BTC",
			"2. From_Currency Name": "Bitcoin",
			"3. To_Currency Code": "USD",
			"4. To_Currency Name": "United States Dollar",
			"5. Exchange Rate": "64250.10000000",
			"6. Last Refreshed": "2026-08-28 10:00:01"
		}}`))
	})

	rate, err := client.ExchangeRate(context.Background(), "BTC", "USD")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate.FromCode != "BTC" || rate.Rate != 64250.1 {
		t.Fatalf("unexpected rate: %+v", rate)
	}
}

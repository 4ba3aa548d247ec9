package domain

import "time"

type AssetType string

const (
	AssetStock  AssetType = "stock"
	AssetCrypto AssetType = "crypto"
)

func (a AssetType) IsValid() bool {
	return a == AssetStock || a == AssetCrypto
}

// PriceBar is one OHLCV bar of a time series. Bars are immutable once
// produced by the provider.
type PriceBar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// TimeSeries holds bars sorted ascending by timestamp, no duplicate
// timestamps.
type TimeSeries struct {
	Symbol        string     `json:"symbol"`
	Market        string     `json:"market,omitempty"`
	Interval      string     `json:"interval"`
	LastRefreshed string     `json:"last_refreshed"`
	Bars          []PriceBar `json:"data"`
}

// Latest returns the most recent bar, or nil for an empty series.
func (s *TimeSeries) Latest() *PriceBar {
	if s == nil || len(s.Bars) == 0 {
		return nil
	}
	return &s.Bars[len(s.Bars)-1]
}

type Quote struct {
	Symbol           string  `json:"symbol"`
	Open             float64 `json:"open"`
	High             float64 `json:"high"`
	Low              float64 `json:"low"`
	Price            float64 `json:"price"`
	Volume           float64 `json:"volume"`
	LatestTradingDay string  `json:"latest_trading_day"`
	PreviousClose    float64 `json:"previous_close"`
	Change           float64 `json:"change"`
	ChangePercent    string  `json:"change_percent"`
}

type SearchResult struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Region     string  `json:"region"`
	Currency   string  `json:"currency"`
	MatchScore float64 `json:"match_score"`
}

type ExchangeRate struct {
	FromCode      string  `json:"from_currency_code"`
	FromName      string  `json:"from_currency_name"`
	ToCode        string  `json:"to_currency_code"`
	ToName        string  `json:"to_currency_name"`
	Rate          float64 `json:"exchange_rate"`
	LastRefreshed string  `json:"last_refreshed"`
}

// AssetOverview is the shape used by trending listings.
type AssetOverview struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	ChangePercent string  `json:"change_percent"`
	Volume        float64 `json:"volume"`
	LastUpdated   string  `json:"last_updated"`
}

// PopularStocks is the screener/trending universe for stocks.
var PopularStocks = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX",
	"JPM", "JNJ", "PG", "UNH", "HD", "V", "MA", "DIS", "PYPL", "ADBE",
	"CRM", "INTC", "CSCO", "PEP", "KO", "WMT", "MCD", "NKE",
	"BA", "CAT", "GE", "XOM", "CVX", "PFE", "MRK", "ABBV",
}

// PopularCryptos is the screener/trending universe for crypto.
var PopularCryptos = []string{
	"BTC", "ETH", "BNB", "XRP", "ADA", "SOL", "DOGE", "DOT",
	"AVAX", "SHIB", "MATIC", "LTC", "UNI", "LINK", "ATOM",
}

// IntradayIntervals are the intraday intervals the provider accepts.
var IntradayIntervals = []string{"1min", "5min", "15min", "30min", "60min"}

func ValidIntradayInterval(interval string) bool {
	for _, v := range IntradayIntervals {
		if v == interval {
			return true
		}
	}
	return false
}

type Favorite struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Symbol         string     `json:"symbol"`
	AssetType      AssetType  `json:"asset_type"`
	Name           string     `json:"name,omitempty"`
	AlertEnabled   bool       `json:"alert_enabled"`
	LastAlertState string     `json:"last_alert_state,omitempty"`
	LastAlertAt    *time.Time `json:"last_alert_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// MarketAlert is dispatched when a watched symbol's overall condition
// changes.
type MarketAlert struct {
	Symbol     string          `json:"symbol"`
	Previous   MarketCondition `json:"previous_condition"`
	Current    MarketCondition `json:"current_condition"`
	Confidence float64         `json:"confidence"`
	Price      float64         `json:"price,omitempty"`
}

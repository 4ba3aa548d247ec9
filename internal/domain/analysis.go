package domain

import "time"

type MarketCondition string

const (
	ConditionOverbought MarketCondition = "overbought"
	ConditionOversold   MarketCondition = "oversold"
	ConditionNeutral    MarketCondition = "neutral"
)

func (c MarketCondition) IsValid() bool {
	return c == ConditionOverbought || c == ConditionOversold || c == ConditionNeutral
}

const (
	IndicatorRSI       = "rsi"
	IndicatorMACD      = "macd"
	IndicatorStoch     = "stoch"
	IndicatorBollinger = "bollinger"
)

// Thresholds are the caller-overridable classification cutoffs.
type Thresholds struct {
	RSIOverbought   float64 `json:"rsi_overbought"`
	RSIOversold     float64 `json:"rsi_oversold"`
	StochOverbought float64 `json:"stoch_overbought"`
	StochOversold   float64 `json:"stoch_oversold"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		RSIOverbought:   70,
		RSIOversold:     30,
		StochOverbought: 80,
		StochOversold:   20,
	}
}

// IndicatorSignal is one indicator's contribution to a verdict.
type IndicatorSignal struct {
	Indicator   string          `json:"indicator"`
	Condition   MarketCondition `json:"condition"`
	Value       float64         `json:"value"`
	Strength    float64         `json:"signal_strength"`
	Description string          `json:"description"`
}

// AnalysisResult is the verdict for one symbol. It is derived state,
// recomputed on every call and never persisted.
type AnalysisResult struct {
	Symbol           string            `json:"symbol"`
	AssetType        AssetType         `json:"asset_type"`
	Timestamp        time.Time         `json:"analysis_timestamp"`
	CurrentPrice     *float64          `json:"current_price,omitempty"`
	Signals          []IndicatorSignal `json:"signals"`
	OverallCondition MarketCondition   `json:"overall_condition"`
	Confidence       float64           `json:"confidence_score"`
	Recommendation   string            `json:"recommendation"`
	RiskLevel        string            `json:"risk_level"`
	Thresholds       Thresholds        `json:"thresholds_used"`
}

// SymbolFailure annotates a symbol that could not be analyzed inside a
// batch operation.
type SymbolFailure struct {
	Symbol string `json:"symbol"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

type BulkAnalysisResult struct {
	Results   []AnalysisResult        `json:"results"`
	Failures  []SymbolFailure         `json:"failures"`
	Summary   map[MarketCondition]int `json:"summary"`
	Timestamp time.Time               `json:"analysis_timestamp"`
}

type WatchlistAnalysis struct {
	UserID           int64            `json:"user_id"`
	TotalFavorites   int              `json:"total_favorites"`
	OverboughtCount  int              `json:"overbought_count"`
	OversoldCount    int              `json:"oversold_count"`
	NeutralCount     int              `json:"neutral_count"`
	TopOpportunities []AnalysisResult `json:"top_opportunities"`
	TopRisks         []AnalysisResult `json:"top_risks"`
	Failures         []SymbolFailure  `json:"failures,omitempty"`
}

// ScreenerRequest filters a popular-symbol universe by verdict.
// Conditions maps indicator keys (rsi, macd, stoch, bollinger) to the
// classification that indicator must carry; MACD bullish crossovers
// classify as oversold, bearish as overbought.
type ScreenerRequest struct {
	AssetType     AssetType                  `json:"asset_type"`
	Condition     MarketCondition            `json:"condition"`
	MinConfidence float64                    `json:"min_confidence"`
	Conditions    map[string]MarketCondition `json:"conditions,omitempty"`
	Limit         int                        `json:"limit"`
}

type ScreenerResult struct {
	Symbol     string          `json:"symbol"`
	Condition  MarketCondition `json:"condition"`
	Confidence float64         `json:"confidence_score"`
	Price      *float64        `json:"current_price,omitempty"`
	KeySignals []string        `json:"key_signals"`
}

type ScreenerResponse struct {
	Results   []ScreenerResult `json:"results"`
	Failures  []SymbolFailure  `json:"failures,omitempty"`
	Timestamp time.Time        `json:"analysis_timestamp"`
}

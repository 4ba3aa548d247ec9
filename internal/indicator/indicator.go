// Package indicator computes technical indicator series from price
// bars. Everything here is pure: no I/O, no shared state, and
// deterministic for a given input series and parameters. Input bars
// must be sorted ascending by timestamp.
package indicator

import (
	"fmt"
	"math"
	"time"

	"stellariq/internal/domain"
)

const (
	DefaultRSIPeriod = 14

	DefaultMACDFast   = 12
	DefaultMACDSlow   = 26
	DefaultMACDSignal = 9

	DefaultStochKPeriod = 14
	DefaultStochDPeriod = 3
	DefaultStochSmooth  = 3

	DefaultBollingerPeriod = 20
	DefaultBollingerStdDev = 2.0
)

// Point is a single indicator value aligned to its source bar.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type MACDPoint struct {
	Timestamp time.Time `json:"timestamp"`
	MACD      float64   `json:"macd"`
	Signal    float64   `json:"macd_signal"`
	Histogram float64   `json:"macd_hist"`
}

type StochPoint struct {
	Timestamp time.Time `json:"timestamp"`
	K         float64   `json:"slowk"`
	D         float64   `json:"slowd"`
}

type BandPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Upper     float64   `json:"upper_band"`
	Middle    float64   `json:"middle_band"`
	Lower     float64   `json:"lower_band"`
}

// RSI computes the Relative Strength Index with Wilder's smoothing.
// The first output point aligns to bar index period; the series is
// shorter than the input by period bars and every value is in [0,100].
func RSI(bars []domain.PriceBar, period int) ([]Point, error) {
	if period <= 0 {
		return nil, fmt.Errorf("rsi period must be positive, got %d", period)
	}
	if len(bars) < period+1 {
		return nil, fmt.Errorf("rsi(%d) needs %d bars, have %d: %w",
			period, period+1, len(bars), domain.ErrInsufficientData)
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := bars[i].Close - bars[i-1].Close
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	out := make([]Point, 0, len(bars)-period)
	out = append(out, Point{Timestamp: bars[period].Timestamp, Value: rsiFromAvg(avgGain, avgLoss)})

	for i := period + 1; i < len(bars); i++ {
		delta := bars[i].Close - bars[i-1].Close
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out = append(out, Point{Timestamp: bars[i].Timestamp, Value: rsiFromAvg(avgGain, avgLoss)})
	}
	return out, nil
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// MACD computes the MACD line, signal line and histogram from fast and
// slow EMAs of the close. The first valid point aligns to bar index
// slow+signal-1; histogram == line − signal at every point.
func MACD(bars []domain.PriceBar, fast, slow, signal int) ([]MACDPoint, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return nil, fmt.Errorf("invalid macd periods (%d, %d, %d)", fast, slow, signal)
	}
	warmup := slow + signal - 1
	if len(bars) < slow+signal {
		return nil, fmt.Errorf("macd(%d,%d,%d) needs %d bars, have %d: %w",
			fast, slow, signal, slow+signal, len(bars), domain.ErrInsufficientData)
	}

	closes := extractCloses(bars)
	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)
	macdLine := make([]float64, len(closes))
	for i := range closes {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaSeries(macdLine, signal)

	out := make([]MACDPoint, 0, len(bars)-warmup)
	for i := warmup; i < len(bars); i++ {
		out = append(out, MACDPoint{
			Timestamp: bars[i].Timestamp,
			MACD:      macdLine[i],
			Signal:    signalLine[i],
			Histogram: macdLine[i] - signalLine[i],
		})
	}
	return out, nil
}

// Stochastic computes the slow stochastic oscillator: raw %K over
// kPeriod, smoothed by an SMA of length smooth, with %D an SMA of the
// smoothed %K over dPeriod. A flat high/low window yields %K = 50
// instead of dividing by zero.
func Stochastic(bars []domain.PriceBar, kPeriod, dPeriod, smooth int) ([]StochPoint, error) {
	if kPeriod <= 0 || dPeriod <= 0 || smooth <= 0 {
		return nil, fmt.Errorf("invalid stochastic periods (%d, %d, %d)", kPeriod, dPeriod, smooth)
	}
	minBars := kPeriod + smooth + dPeriod - 2
	if len(bars) < minBars {
		return nil, fmt.Errorf("stochastic(%d,%d,%d) needs %d bars, have %d: %w",
			kPeriod, dPeriod, smooth, minBars, len(bars), domain.ErrInsufficientData)
	}

	rawK := make([]float64, 0, len(bars)-kPeriod+1)
	for i := kPeriod - 1; i < len(bars); i++ {
		highest := bars[i-kPeriod+1].High
		lowest := bars[i-kPeriod+1].Low
		for j := i - kPeriod + 2; j <= i; j++ {
			highest = math.Max(highest, bars[j].High)
			lowest = math.Min(lowest, bars[j].Low)
		}
		if highest == lowest {
			rawK = append(rawK, 50)
			continue
		}
		rawK = append(rawK, 100*(bars[i].Close-lowest)/(highest-lowest))
	}

	smoothK := smaSeries(rawK, smooth)
	dLine := smaSeries(smoothK, dPeriod)

	// dLine[j] aligns to bar index kPeriod+smooth+dPeriod-3+j.
	offset := kPeriod + smooth + dPeriod - 3
	out := make([]StochPoint, 0, len(dLine))
	for j := range dLine {
		out = append(out, StochPoint{
			Timestamp: bars[offset+j].Timestamp,
			K:         smoothK[dPeriod-1+j],
			D:         dLine[j],
		})
	}
	return out, nil
}

// Bollinger computes the moving-average bands: middle = SMA(period) of
// the close, upper/lower = middle ± mult × population standard
// deviation over the same window.
func Bollinger(bars []domain.PriceBar, period int, mult float64) ([]BandPoint, error) {
	if period <= 0 || mult <= 0 {
		return nil, fmt.Errorf("invalid bollinger parameters (%d, %.2f)", period, mult)
	}
	if len(bars) < period {
		return nil, fmt.Errorf("bollinger(%d) needs %d bars, have %d: %w",
			period, period, len(bars), domain.ErrInsufficientData)
	}

	closes := extractCloses(bars)
	out := make([]BandPoint, 0, len(bars)-period+1)
	for i := period - 1; i < len(bars); i++ {
		mean, std := meanStd(closes[i-period+1 : i+1])
		out = append(out, BandPoint{
			Timestamp: bars[i].Timestamp,
			Upper:     mean + mult*std,
			Middle:    mean,
			Lower:     mean - mult*std,
		})
	}
	return out, nil
}

func extractCloses(bars []domain.PriceBar) []float64 {
	values := make([]float64, len(bars))
	for i := range bars {
		values[i] = bars[i].Close
	}
	return values
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// smaSeries returns the rolling simple moving average; the result is
// shorter than the input by period-1.
func smaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, 0, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out
}

func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	if len(values) == 1 {
		return mean, 0
	}
	for _, v := range values {
		d := v - mean
		std += d * d
	}
	std = math.Sqrt(std / float64(len(values)))
	return mean, std
}

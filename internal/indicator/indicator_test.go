package indicator

import (
	"errors"
	"math"
	"testing"
	"time"

	"stellariq/internal/domain"
)

func barsFromCloses(closes []float64) []domain.PriceBar {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = domain.PriceBar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      c,
			High:      c + 0.5,
			Low:       c - 0.5,
			Close:     c,
			Volume:    1000,
		}
	}
	return bars
}

func TestRSIFifteenBarWarmup(t *testing.T) {
	closes := []float64{
		44, 44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10,
		45.42, 45.84, 46.08, 45.89, 46.03, 45.61, 46.28,
	}
	bars := barsFromCloses(closes)

	points, err := RSI(bars, 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 {
		t.Fatalf("expected exactly one point from 15 bars, got %d", len(points))
	}
	if !points[0].Timestamp.Equal(bars[14].Timestamp) {
		t.Fatalf("point not aligned to bar 15: %v", points[0].Timestamp)
	}
	if math.Abs(points[0].Value-72.4409) > 0.001 {
		t.Fatalf("unexpected rsi value %.4f", points[0].Value)
	}

	_, err = RSI(bars[:14], 14)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData for 14 bars, got %v", err)
	}
}

func TestRSIBoundsAndConvergence(t *testing.T) {
	rising := make([]float64, 60)
	falling := make([]float64, 60)
	for i := range rising {
		rising[i] = 100 + float64(i)
		falling[i] = 200 - float64(i)
	}

	up, err := RSI(barsFromCloses(rising), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	down, err := RSI(barsFromCloses(falling), 14)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, p := range append(append([]Point{}, up...), down...) {
		if p.Value < 0 || p.Value > 100 {
			t.Fatalf("rsi %.4f outside [0,100]", p.Value)
		}
	}
	if up[len(up)-1].Value < 99.9 {
		t.Fatalf("strictly rising closes should converge toward 100, got %.4f", up[len(up)-1].Value)
	}
	if down[len(down)-1].Value > 0.1 {
		t.Fatalf("strictly falling closes should converge toward 0, got %.4f", down[len(down)-1].Value)
	}
}

func TestMACDHistogramIdentityAndWarmup(t *testing.T) {
	closes := make([]float64, 50)
	for i := range closes {
		closes[i] = 100 + 5*math.Sin(float64(i)/4)
	}
	bars := barsFromCloses(closes)

	points, err := MACD(bars, DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantLen := len(bars) - (DefaultMACDSlow + DefaultMACDSignal - 1)
	if len(points) != wantLen {
		t.Fatalf("expected %d points, got %d", wantLen, len(points))
	}
	for _, p := range points {
		if p.Histogram != p.MACD-p.Signal {
			t.Fatalf("histogram %.8f != line-signal %.8f", p.Histogram, p.MACD-p.Signal)
		}
	}

	_, err = MACD(bars[:DefaultMACDSlow+DefaultMACDSignal-1], DefaultMACDFast, DefaultMACDSlow, DefaultMACDSignal)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestStochasticFlatWindowResolvesToMidpoint(t *testing.T) {
	bars := make([]domain.PriceBar, 30)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = domain.PriceBar{
			Timestamp: base.AddDate(0, 0, i),
			Open:      50, High: 50, Low: 50, Close: 50,
			Volume: 100,
		}
	}

	points, err := Stochastic(bars, DefaultStochKPeriod, DefaultStochDPeriod, DefaultStochSmooth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected points from 30 bars")
	}
	for _, p := range points {
		if p.K != 50 || p.D != 50 {
			t.Fatalf("flat window must resolve to 50, got K=%.2f D=%.2f", p.K, p.D)
		}
	}
}

func TestStochasticBoundsAndAlignment(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/3)
	}
	bars := barsFromCloses(closes)

	points, err := Stochastic(bars, DefaultStochKPeriod, DefaultStochDPeriod, DefaultStochSmooth)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	warmup := DefaultStochKPeriod + DefaultStochSmooth + DefaultStochDPeriod - 3
	if len(points) != len(bars)-warmup {
		t.Fatalf("expected %d points, got %d", len(bars)-warmup, len(points))
	}
	if !points[0].Timestamp.Equal(bars[warmup].Timestamp) {
		t.Fatalf("first point misaligned: %v", points[0].Timestamp)
	}
	for _, p := range points {
		if p.K < 0 || p.K > 100 || p.D < 0 || p.D > 100 {
			t.Fatalf("stochastic outside [0,100]: K=%.2f D=%.2f", p.K, p.D)
		}
	}

	_, err = Stochastic(bars[:10], DefaultStochKPeriod, DefaultStochDPeriod, DefaultStochSmooth)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestBollingerBandOrdering(t *testing.T) {
	closes := make([]float64, 45)
	for i := range closes {
		closes[i] = 100 + 3*math.Cos(float64(i)/5) + float64(i%7)
	}
	bars := barsFromCloses(closes)

	points, err := Bollinger(bars, DefaultBollingerPeriod, DefaultBollingerStdDev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != len(bars)-DefaultBollingerPeriod+1 {
		t.Fatalf("expected %d points, got %d", len(bars)-DefaultBollingerPeriod+1, len(points))
	}
	for _, p := range points {
		if p.Upper < p.Middle || p.Middle < p.Lower {
			t.Fatalf("band ordering violated: %.4f / %.4f / %.4f", p.Upper, p.Middle, p.Lower)
		}
	}

	_, err = Bollinger(bars[:DefaultBollingerPeriod-1], DefaultBollingerPeriod, DefaultBollingerStdDev)
	if !errors.Is(err, domain.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

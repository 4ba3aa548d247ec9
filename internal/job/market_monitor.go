package job

import (
	"context"
	"log"
	"time"

	"stellariq/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const (
	defaultMonitorTick = 15 * time.Minute
	alertCooldown      = time.Hour
)

// AlertFavorites is the slice of the favorites repository the monitor
// needs.
type AlertFavorites interface {
	ListAlertEnabled(ctx context.Context) ([]domain.Favorite, error)
	UpdateAlertState(ctx context.Context, id int64, state string, at time.Time) error
}

type ConditionAnalyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.AnalysisResult, error)
}

// Notifier delivers a market alert to one user.
type Notifier interface {
	Notify(ctx context.Context, userID int64, alert domain.MarketAlert) error
}

// MarketMonitor periodically re-analyzes every alert-enabled favorite
// and notifies the owner when a symbol's overall condition changes.
// A per-favorite cooldown keeps a flapping symbol from spamming.
type MarketMonitor struct {
	tracer    trace.Tracer
	favorites AlertFavorites
	analyzer  ConditionAnalyzer
	notifier  Notifier
	tick      time.Duration
	now       func() time.Time
}

func NewMarketMonitor(
	tracer trace.Tracer,
	favorites AlertFavorites,
	analyzer ConditionAnalyzer,
	notifier Notifier,
	tick time.Duration,
) *MarketMonitor {
	if tick <= 0 {
		tick = defaultMonitorTick
	}
	return &MarketMonitor{
		tracer:    tracer,
		favorites: favorites,
		analyzer:  analyzer,
		notifier:  notifier,
		tick:      tick,
		now:       time.Now,
	}
}

func (m *MarketMonitor) Start(ctx context.Context) {
	if m == nil || m.favorites == nil || m.analyzer == nil {
		<-ctx.Done()
		return
	}

	log.Println("Market monitor starting...")
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	m.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Market monitor stopped")
			return
		case <-ticker.C:
			m.RunOnce(ctx)
		}
	}
}

// RunOnce walks the alert-enabled favorites a single time. Exported so
// a deploy hook or test can trigger a pass directly.
func (m *MarketMonitor) RunOnce(ctx context.Context) {
	ctx, span := m.tracer.Start(ctx, "market-monitor.run")
	defer span.End()

	favorites, err := m.favorites.ListAlertEnabled(ctx)
	if err != nil {
		log.Printf("market monitor: list favorites: %v", err)
		return
	}

	for _, fav := range favorites {
		if ctx.Err() != nil {
			return
		}
		m.checkFavorite(ctx, fav)
	}
}

func (m *MarketMonitor) checkFavorite(ctx context.Context, fav domain.Favorite) {
	result, err := m.analyzer.AnalyzeSymbol(ctx, fav.Symbol, fav.AssetType, nil)
	if err != nil {
		log.Printf("market monitor: analyze %s: %v", fav.Symbol, err)
		return
	}

	current := string(result.OverallCondition)
	if current == fav.LastAlertState {
		return
	}
	if fav.LastAlertAt != nil && m.now().Sub(*fav.LastAlertAt) < alertCooldown {
		return
	}

	if m.notifier != nil {
		alert := domain.MarketAlert{
			Symbol:     fav.Symbol,
			Previous:   domain.MarketCondition(fav.LastAlertState),
			Current:    result.OverallCondition,
			Confidence: result.Confidence,
		}
		if result.CurrentPrice != nil {
			alert.Price = *result.CurrentPrice
		}
		if err := m.notifier.Notify(ctx, fav.UserID, alert); err != nil {
			log.Printf("market monitor: notify user %d about %s: %v", fav.UserID, fav.Symbol, err)
			return
		}
	}

	if err := m.favorites.UpdateAlertState(ctx, fav.ID, current, m.now()); err != nil {
		log.Printf("market monitor: update alert state for %s: %v", fav.Symbol, err)
	}
}

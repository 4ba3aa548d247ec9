package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"stellariq/internal/domain"

	tele "gopkg.in/telebot.v3"
)

type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	GetExchangeRate(ctx context.Context, from, to string) (*domain.ExchangeRate, error)
}

type SymbolAnalyzer interface {
	AnalyzeSymbol(ctx context.Context, symbol string, assetType domain.AssetType, overrides *domain.Thresholds) (*domain.AnalysisResult, error)
}

// StartTelegramBot wires the chat commands and returns the alert
// dispatcher the market monitor feeds. Returns nil when no token is
// configured; the rest of the service runs without the bot.
func StartTelegramBot(token string, market QuoteGetter, analyzer SymbolAnalyzer) *AlertDispatcher {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}
	alerts := NewAlertDispatcher(b)

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/quote", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /quote AAPL")
		}
		symbol := strings.ToUpper(args[0])
		quote, err := market.GetQuote(context.Background(), symbol)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching quote for %s: %v", symbol, err))
		}
		msg := fmt.Sprintf(
			"%s\nPrice: $%.2f\nChange: %.2f (%s)\nVolume: %.0f\nAs of: %s",
			quote.Symbol, quote.Price, quote.Change, quote.ChangePercent, quote.Volume, quote.LatestTradingDay,
		)
		return c.Send(msg)
	})

	b.Handle("/rate", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /rate BTC [USD]")
		}
		from := strings.ToUpper(args[0])
		to := "USD"
		if len(args) > 1 {
			to = strings.ToUpper(args[1])
		}
		rate, err := market.GetExchangeRate(context.Background(), from, to)
		if err != nil {
			return c.Send(fmt.Sprintf("Error fetching rate for %s/%s: %v", from, to, err))
		}
		return c.Send(fmt.Sprintf("%s/%s\nRate: %.4f\nAs of: %s", rate.FromCode, rate.ToCode, rate.Rate, rate.LastRefreshed))
	})

	b.Handle("/analyze", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send("Usage: /analyze AAPL [stock|crypto]")
		}
		symbol := strings.ToUpper(args[0])
		assetType := domain.AssetStock
		if len(args) > 1 {
			assetType = domain.AssetType(strings.ToLower(args[1]))
			if !assetType.IsValid() {
				return c.Send("Asset type must be stock or crypto")
			}
		}

		result, err := analyzer.AnalyzeSymbol(context.Background(), symbol, assetType, nil)
		if err != nil {
			return c.Send(fmt.Sprintf("Error analyzing %s: %v", symbol, err))
		}
		return c.Send(formatAnalysis(result))
	})

	b.Handle("/alerts", func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return c.Send("Unable to detect chat")
		}

		mode, err := parseAlertMode(c.Args())
		if err != nil {
			return c.Send("Usage: /alerts on | /alerts off | /alerts status")
		}

		switch mode {
		case "on":
			if alerts.Subscribe(chat.ID) {
				return c.Send("Watchlist alerts enabled for this chat.")
			}
			return c.Send("Watchlist alerts are already enabled for this chat.")
		case "off":
			if alerts.Unsubscribe(chat.ID) {
				return c.Send("Watchlist alerts disabled for this chat.")
			}
			return c.Send("Watchlist alerts are already disabled for this chat.")
		default:
			if alerts.IsSubscribed(chat.ID) {
				return c.Send("Alerts status: ON")
			}
			return c.Send("Alerts status: OFF")
		}
	})

	log.Println("Telegram bot started")
	go b.Start()
	return alerts
}

func formatAnalysis(result *domain.AnalysisResult) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s analysis\n", result.Symbol))
	if result.CurrentPrice != nil {
		sb.WriteString(fmt.Sprintf("Price: $%.2f\n", *result.CurrentPrice))
	}
	sb.WriteString(fmt.Sprintf("Verdict: %s (%.0f%% confidence)\n", strings.ToUpper(string(result.OverallCondition)), result.Confidence*100))
	sb.WriteString(fmt.Sprintf("Risk: %s\n", result.RiskLevel))
	for _, sig := range result.Signals {
		sb.WriteString(fmt.Sprintf("- %s: %s (%.2f)\n", strings.ToUpper(sig.Indicator), sig.Condition, sig.Value))
	}
	sb.WriteString(result.Recommendation)
	return sb.String()
}

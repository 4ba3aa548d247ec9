package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"stellariq/internal/domain"

	tele "gopkg.in/telebot.v3"
)

func TestParseAlertMode(t *testing.T) {
	mode, err := parseAlertMode(nil)
	if err != nil || mode != "status" {
		t.Fatalf("expected default status mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"on"})
	if err != nil || mode != "on" {
		t.Fatalf("expected on mode, got mode=%q err=%v", mode, err)
	}

	mode, err = parseAlertMode([]string{"OFF"})
	if err != nil || mode != "off" {
		t.Fatalf("expected off mode, got mode=%q err=%v", mode, err)
	}

	if _, err := parseAlertMode([]string{"nope"}); err == nil {
		t.Fatal("expected invalid mode error")
	}
}

func TestAlertDispatcherNotify(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender)

	if !dispatcher.Subscribe(10) {
		t.Fatal("expected initial subscribe to return true")
	}
	if !dispatcher.Subscribe(20) {
		t.Fatal("expected initial subscribe to return true")
	}
	if dispatcher.Subscribe(10) {
		t.Fatal("expected duplicate subscribe to return false")
	}

	alert := domain.MarketAlert{
		Symbol:     "AAPL",
		Previous:   domain.ConditionNeutral,
		Current:    domain.ConditionOversold,
		Confidence: 0.82,
		Price:      187.32,
	}

	if err := dispatcher.Notify(context.Background(), 7, alert); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
	if len(sender.messages[10]) != 1 || len(sender.messages[20]) != 1 {
		t.Fatalf("expected one message per subscriber, got %+v", sender.messages)
	}
	body := sender.messages[10][0]
	if !strings.Contains(body, "AAPL is now OVERSOLD") || !strings.Contains(body, "was neutral") {
		t.Fatalf("unexpected alert body: %s", body)
	}
	if !strings.Contains(body, "$187.32") {
		t.Fatalf("expected price in alert body: %s", body)
	}
}

func TestAlertDispatcherUnsubscribe(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := NewAlertDispatcher(sender)

	dispatcher.Subscribe(10)
	if !dispatcher.Unsubscribe(10) {
		t.Fatal("expected unsubscribe to return true")
	}
	if dispatcher.Unsubscribe(10) {
		t.Fatal("expected second unsubscribe to return false")
	}

	if err := dispatcher.Notify(context.Background(), 7, domain.MarketAlert{Symbol: "AAPL"}); err != nil {
		t.Fatalf("unexpected notify error: %v", err)
	}
	if len(sender.messages) != 0 {
		t.Fatalf("unsubscribed chat must not receive alerts: %+v", sender.messages)
	}
}

func TestAlertDispatcherAggregatesSendFailures(t *testing.T) {
	sender := &fakeSender{failFor: map[int64]bool{20: true}}
	dispatcher := NewAlertDispatcher(sender)

	dispatcher.Subscribe(10)
	dispatcher.Subscribe(20)

	err := dispatcher.Notify(context.Background(), 7, domain.MarketAlert{Symbol: "AAPL", Current: domain.ConditionOverbought})
	if err == nil {
		t.Fatal("expected aggregated send error")
	}
	if !strings.Contains(err.Error(), "chat 20") {
		t.Fatalf("expected failing chat in error, got %v", err)
	}
	if len(sender.messages[10]) != 1 {
		t.Fatal("healthy chat must still receive the alert")
	}
}

type fakeSender struct {
	messages map[int64][]string
	failFor  map[int64]bool
}

func (f *fakeSender) Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error) {
	chat, ok := to.(*tele.Chat)
	if !ok {
		return nil, fmt.Errorf("unexpected recipient type %T", to)
	}
	if f.failFor[chat.ID] {
		return nil, fmt.Errorf("send failed")
	}
	if f.messages == nil {
		f.messages = make(map[int64][]string)
	}
	f.messages[chat.ID] = append(f.messages[chat.ID], fmt.Sprint(what))
	return &tele.Message{}, nil
}

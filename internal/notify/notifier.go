// Package notify turns billing events into outbound messages.
package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	billing "waterbill/internal/billing/domain"
	"waterbill/internal/eventing"
	payments "waterbill/internal/payments/domain"
)

const (
	EventBillGenerated   = "bill_generated"
	EventPaymentRecorded = "payment_recorded"
)

// Notifier renders billing events and sends them through a channel.
type Notifier struct {
	channel      Channel
	template     *Template
	logger       *zap.Logger
	now          func() time.Time
	dedupeWindow time.Duration

	mu   sync.Mutex
	sent map[string]time.Time
}

// Option configures the notifier.
type Option func(*Notifier)

// WithLogger sets the notifier logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithDedupeWindow suppresses identical messages within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs a notifier. A nil template uses DefaultTemplate.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("notifier: nil channel")
	}
	if template == nil {
		tpl, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = tpl
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		logger:   zap.NewNop(),
		now:      time.Now,
		sent:     make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Register subscribes the notifier to bill and payment events.
func (n *Notifier) Register(bus eventing.EventBus) {
	if n == nil || bus == nil {
		return
	}
	eventing.On(bus, "notify.bill_generated", n.logger, n.BillGenerated)
	eventing.On(bus, "notify.payment_recorded", n.logger, n.PaymentRecorded)
}

// BillGenerated sends a message for a newly issued bill.
func (n *Notifier) BillGenerated(ctx context.Context, evt billing.BillGenerated) error {
	return n.dispatch(ctx, TemplateData{
		Event:      EventBillGenerated,
		EventLabel: "Issued",
		Customer:   customerLabel(evt.CustomerName, evt.CustomerID),
		CustomerID: evt.CustomerID,
		BillID:     evt.BillID,
		Period:     evt.PeriodStart.UTC().Format(time.DateOnly) + " to " + evt.PeriodEnd.UTC().Format(time.DateOnly),
		Usage:      strconv.FormatFloat(evt.UsageM3, 'f', -1, 64),
		Amount:     evt.Total.StringFixed(2),
		Currency:   evt.Currency,
		DueDate:    evt.DueDate.UTC().Format(time.DateOnly),
	})
}

// PaymentRecorded sends a payment receipt.
func (n *Notifier) PaymentRecorded(ctx context.Context, evt payments.PaymentRecorded) error {
	return n.dispatch(ctx, TemplateData{
		Event:      EventPaymentRecorded,
		EventLabel: "Payment",
		Customer:   customerLabel("", evt.CustomerID),
		CustomerID: evt.CustomerID,
		BillID:     evt.BillID,
		Amount:     evt.Amount.StringFixed(2),
		Currency:   evt.Currency,
		Method:     evt.Method,
		Status:     string(evt.BillStatus),
		Balance:    evt.Balance.StringFixed(2),
	})
}

func (n *Notifier) dispatch(ctx context.Context, data TemplateData) error {
	if n == nil {
		return nil
	}
	content, err := n.template.Render(data)
	if err != nil {
		return err
	}
	key := data.Event + ":" + strconv.FormatInt(data.BillID, 10) + ":" + hashContent(content)
	if !n.shouldSend(key) {
		n.logger.Debug("notification suppressed", zap.String("event", data.Event), zap.Int64("bill_id", data.BillID))
		return nil
	}
	if err := n.channel.Send(ctx, content); err != nil {
		return err
	}
	n.markSent(key)
	n.logger.Info("notification sent", zap.String("event", data.Event), zap.Int64("bill_id", data.BillID))
	return nil
}

func (n *Notifier) shouldSend(key string) bool {
	if n.dedupeWindow <= 0 {
		return true
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	last, ok := n.sent[key]
	return !ok || n.now().Sub(last) >= n.dedupeWindow
}

func (n *Notifier) markSent(key string) {
	if n.dedupeWindow <= 0 {
		return
	}
	now := n.now()
	n.mu.Lock()
	defer n.mu.Unlock()
	for k, at := range n.sent {
		if now.Sub(at) >= n.dedupeWindow {
			delete(n.sent, k)
		}
	}
	n.sent[key] = now
}

func customerLabel(name string, id int64) string {
	if name == "" {
		return "#" + strconv.FormatInt(id, 10)
	}
	return name + " (#" + strconv.FormatInt(id, 10) + ")"
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// LogChannel writes notifications to a logger. It is used when no webhook is
// configured.
type LogChannel struct {
	logger *zap.Logger
}

// NewLogChannel constructs a LogChannel.
func NewLogChannel(logger *zap.Logger) *LogChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogChannel{logger: logger}
}

// Send logs content.
func (c *LogChannel) Send(_ context.Context, content string) error {
	c.logger.Info("notification", zap.String("content", content))
	return nil
}

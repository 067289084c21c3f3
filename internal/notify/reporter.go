package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
)

// NopReporter drops every report. Used when no bot is configured.
type NopReporter struct{}

func (NopReporter) OrderPlaced(context.Context, *models.Order)      {}
func (NopReporter) PaymentConfirmed(context.Context, *models.Order) {}

type TelegramConfig struct {
	Token  string
	ChatID int64
	// URL overrides the Bot API endpoint.
	URL     string
	Timeout time.Duration
}

// TelegramReporter posts order reports to an admin chat. Reports are sent in
// the background; Wait blocks until the pending ones are done.
type TelegramReporter struct {
	bot     *tele.Bot
	chat    tele.ChatID
	logger  *zap.Logger
	pending sync.WaitGroup
}

// NewTelegramReporter builds a send-only bot. It never polls for updates.
func NewTelegramReporter(cfg TelegramConfig, logger *zap.Logger) (*TelegramReporter, error) {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram reporter needs a token and a chat id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		URL:     cfg.URL,
		Offline: true,
		Client:  &http.Client{Timeout: cfg.Timeout},
		OnError: func(err error, _ tele.Context) {
			logger.Error("Telegram error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}

	return &TelegramReporter{bot: bot, chat: tele.ChatID(cfg.ChatID), logger: logger}, nil
}

func (r *TelegramReporter) OrderPlaced(_ context.Context, order *models.Order) {
	r.send(order.OrderID, orderPlacedText(order))
}

func (r *TelegramReporter) PaymentConfirmed(_ context.Context, order *models.Order) {
	r.send(order.OrderID, paymentConfirmedText(order))
}

func (r *TelegramReporter) send(orderID, text string) {
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		if _, err := r.bot.Send(r.chat, text, tele.ModeHTML); err != nil {
			r.logger.Warn("Failed to send order report", zap.String("order_id", orderID), zap.Error(err))
		}
	}()
}

// Wait blocks until every report handed to the reporter has been sent or
// has failed.
func (r *TelegramReporter) Wait() {
	r.pending.Wait()
}

func orderPlacedText(order *models.Order) string {
	var b strings.Builder
	b.WriteString("🛒 <b>New cash on delivery order</b>\n\n")
	writeOrderLines(&b, order)
	if order.HasShipping() {
		fmt.Fprintf(&b, "📍 Ship to: %s, %s %s\n",
			html.EscapeString(order.ShipCity),
			html.EscapeString(order.ShipState),
			html.EscapeString(order.ShipPincode),
		)
	}
	return b.String()
}

func paymentConfirmedText(order *models.Order) string {
	var b strings.Builder
	b.WriteString("💳 <b>Payment confirmed</b>\n\n")
	writeOrderLines(&b, order)
	fmt.Fprintf(&b, "🏦 Gateway: %s\n", html.EscapeString(order.Gateway))
	if order.GatewayRef != "" {
		fmt.Fprintf(&b, "🔖 Reference: <code>%s</code>\n", html.EscapeString(order.GatewayRef))
	}
	return b.String()
}

func writeOrderLines(b *strings.Builder, order *models.Order) {
	fmt.Fprintf(b, "🧾 Order: <code>%s</code>\n", html.EscapeString(order.OrderID))
	fmt.Fprintf(b, "💰 Amount: %s %s\n", order.Amount.StringFixed(2), html.EscapeString(strings.ToUpper(order.Currency)))
	fmt.Fprintf(b, "👤 Customer: %s (%s)\n", html.EscapeString(order.CustomerName), html.EscapeString(utils.MaskEmail(order.CustomerEmail)))
}

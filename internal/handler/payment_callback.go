package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
)

const (
	// maxWebhookBody bounds a Stripe event payload.
	maxWebhookBody = 1 << 16
	// eventDedupTTL outlasts Stripe's retry schedule for one event.
	eventDedupTTL = 24 * time.Hour
)

// WebhookVerifier checks a Stripe-Signature header.
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error)
}

// EventApplier records a verified gateway event.
type EventApplier interface {
	ApplyWebhookEvent(ctx context.Context, ev *payment.WebhookEvent) error
}

// EventDeduper holds a webhook event id while it is processed and after it
// was applied.
type EventDeduper interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// PaymentCallbackHandler handles gateway webhooks and browser returns.
type PaymentCallbackHandler struct {
	verifier WebhookVerifier
	events   EventApplier
	dedup    EventDeduper
	logger   *zap.Logger
}

// NewPaymentCallbackHandler builds the handler. dedup may be nil, in which
// case repeated deliveries are applied again; status transitions absorb them.
func NewPaymentCallbackHandler(verifier WebhookVerifier, events EventApplier, dedup EventDeduper, logger *zap.Logger) *PaymentCallbackHandler {
	return &PaymentCallbackHandler{verifier: verifier, events: events, dedup: dedup, logger: logger}
}

// StripeWebhook handles POST /payment/stripe/webhook.
// The signature is checked over the raw body before anything is decoded.
func (h *PaymentCallbackHandler) StripeWebhook(c echo.Context) error {
	if h.verifier == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "stripe is not configured"})
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unreadable body"})
	}
	if len(payload) > maxWebhookBody {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": "payload too large"})
	}

	event, err := h.verifier.VerifyWebhook(payload, c.Request().Header.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrMissingCredentials) {
			h.logger.Error("Stripe webhook secret is not configured")
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "webhook secret is not configured"})
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid signature"})
	}

	// Event ids are only claimed once the signature has been verified.
	if h.dedup != nil && event.ID != "" {
		ctx := c.Request().Context()
		key := "event:" + event.ID
		acquired, err := h.dedup.Acquire(ctx, key, eventDedupTTL)
		switch {
		case err != nil:
			h.logger.Warn("Webhook dedup unavailable", zap.String("event_id", event.ID), zap.Error(err))
		case !acquired:
			h.logger.Info("Duplicate webhook event ignored", zap.String("event_id", event.ID))
			return c.JSON(http.StatusOK, map[string]bool{"received": true, "duplicate": true})
		default:
			// A delivery that was not accepted leaves the id free for Stripe's retry.
			defer func() {
				if c.Response().Status >= http.StatusBadRequest {
					_ = h.dedup.Release(context.WithoutCancel(ctx), key)
				}
			}()
		}
	}

	ev, ok, err := payment.DecodeEvent(event)
	if err != nil {
		h.logger.Warn("Undecodable Stripe event", zap.String("event_id", event.ID), zap.Error(err))
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "malformed event"})
	}
	if !ok {
		h.logger.Debug("Ignoring Stripe event", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
		return c.JSON(http.StatusOK, map[string]bool{"received": true})
	}

	if err := h.events.ApplyWebhookEvent(c.Request().Context(), ev); err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			// Nothing will ever match; a retry would not help.
			return c.JSON(http.StatusOK, map[string]bool{"received": true})
		}
		h.logger.Error("Failed to apply Stripe event", zap.String("event_id", ev.ID), zap.String("order_id", ev.OrderID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "event not applied"})
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}

// CashfreeReturn handles GET /payment/cashfree/return. Cashfree sends the
// shopper back with the order id; the result page verifies it.
func (h *PaymentCallbackHandler) CashfreeReturn(c echo.Context) error {
	orderID := c.QueryParam("order_id")
	if orderID == "" {
		return c.Redirect(http.StatusSeeOther, "/")
	}
	return c.Redirect(http.StatusSeeOther, "/order-success?order_id="+url.QueryEscape(orderID))
}

package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
)

const stripeName = "stripe"

// StripeConfig holds the card processor credentials.
type StripeConfig struct {
	SecretKey          string
	PublishableKey     string
	WebhookSecret      string
	Currency           string
	PaymentMethodTypes []string
	Environment        string
	// APIBase overrides https://api.stripe.com.
	APIBase string
}

// StripeGateway implements the Gateway interface over the Stripe SDK.
type StripeGateway struct {
	cfg    StripeConfig
	api    *client.API
	logger *zap.Logger
}

// WebhookEvent is a verified vendor event reduced to what checkout needs.
type WebhookEvent struct {
	ID        string
	Type      string
	OrderID   string
	Reference string
	Status    models.PaymentStatus
	Amount    decimal.Decimal
}

func NewStripeGateway(cfg StripeConfig, logger *zap.Logger) *StripeGateway {
	if cfg.Currency == "" {
		cfg.Currency = "inr"
	}
	if len(cfg.PaymentMethodTypes) == 0 {
		cfg.PaymentMethodTypes = []string{"card"}
	}

	backendCfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     logger.Sugar(),
	}
	if cfg.APIBase != "" {
		backendCfg.URL = stripe.String(cfg.APIBase)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg)

	g := &StripeGateway{
		cfg:    cfg,
		api:    client.New(cfg.SecretKey, &stripe.Backends{API: backend, Connect: backend, Uploads: backend}),
		logger: logger.With(zap.String("gateway", stripeName)),
	}

	g.logger.Info("Stripe configuration", g.credentialFields()...)
	return g
}

func (g *StripeGateway) Name() string {
	return stripeName
}

// PublishableKey is safe to hand to browsers.
func (g *StripeGateway) PublishableKey() string {
	return g.cfg.PublishableKey
}

func (g *StripeGateway) credentialFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", g.cfg.Environment),
		zap.String("publishable_key", utils.Presence(g.cfg.PublishableKey)),
		zap.String("secret_key", utils.Presence(g.cfg.SecretKey)),
		zap.String("secret_fingerprint", utils.Fingerprint(g.cfg.SecretKey)),
		zap.String("webhook_secret", utils.Presence(g.cfg.WebhookSecret)),
	}
}

// CreatePayment opens a hosted checkout session when the request carries a
// return URL, and a payment intent for embedded confirmation otherwise.
func (g *StripeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if req.ReturnURL != "" {
		return g.CreateCheckoutSession(ctx, req)
	}
	return g.CreatePaymentIntent(ctx, req)
}

func (g *StripeGateway) currency(req PaymentRequest) string {
	if req.Currency != "" {
		return strings.ToLower(req.Currency)
	}
	return g.cfg.Currency
}

// CreatePaymentIntent creates a payment intent and returns its client secret.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	minor := ToMinorUnits(req.Amount)
	currency := g.currency(req)

	g.logger.Info("Creating Stripe payment intent",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.Int64("minor_units", minor),
		zap.String("currency", currency),
		zap.String("customer", req.Customer.Name),
	)

	if g.cfg.SecretKey == "" {
		g.logger.Error("Stripe credentials missing", g.credentialFields()...)
		return nil, missingCredentials(stripeName, "STRIPE_SECRET_KEY")
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(minor),
		Currency:    stripe.String(currency),
		Description: stripe.String("Payment for order " + req.OrderID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_id", req.Customer.ID)
	params.AddMetadata("customer_email", req.Customer.Email)
	params.AddMetadata("customer_name", req.Customer.Name)
	if req.Shipping != nil {
		params.Shipping = &stripe.ShippingDetailsParams{
			Name:  stripe.String(req.Customer.Name),
			Phone: stripe.String(req.Customer.Phone),
			Address: &stripe.AddressParams{
				Line1:      stripe.String(req.Shipping.Line1),
				City:       stripe.String(req.Shipping.City),
				State:      stripe.String(req.Shipping.State),
				PostalCode: stripe.String(req.Shipping.Pincode),
				Country:    stripe.String("IN"),
			},
		}
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		gerr := g.classifyError(err)
		g.logger.Error("Stripe payment intent failed",
			zap.String("order_id", req.OrderID),
			zap.String("kind", string(gerr.Kind)),
			zap.Error(err),
		)
		return nil, gerr
	}
	if pi == nil || pi.ID == "" || pi.ClientSecret == "" {
		return nil, newError(KindUnknownGatewayError, stripeName, "unexpected response from payment gateway", nil)
	}

	g.logger.Info("Stripe payment intent created",
		zap.String("order_id", req.OrderID),
		zap.String("payment_intent_id", pi.ID),
		zap.String("status", string(pi.Status)),
	)

	return &PaymentResult{
		Gateway:      stripeName,
		OrderID:      req.OrderID,
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
	}, nil
}

// CreateCheckoutSession creates a hosted checkout page carrying the whole
// order as one line item.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	minor := ToMinorUnits(req.Amount)
	currency := g.currency(req)

	g.logger.Info("Creating Stripe checkout session",
		zap.String("order_id", req.OrderID),
		zap.String("amount", req.Amount.StringFixed(2)),
		zap.Int64("minor_units", minor),
		zap.String("customer", req.Customer.Name),
	)

	if g.cfg.SecretKey == "" {
		g.logger.Error("Stripe credentials missing", g.credentialFields()...)
		return nil, missingCredentials(stripeName, "STRIPE_SECRET_KEY")
	}

	description := "Payment for order " + req.OrderID
	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice(g.cfg.PaymentMethodTypes),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("Order " + req.OrderID),
						Description: stripe.String(description),
					},
					UnitAmount: stripe.Int64(minor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.ReturnURL),
		ClientReferenceID: stripe.String(req.OrderID),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Description: stripe.String(description),
			Metadata:    map[string]string{"order_id": req.OrderID},
		},
		ShippingAddressCollection: &stripe.CheckoutSessionShippingAddressCollectionParams{
			AllowedCountries: stripe.StringSlice([]string{"IN"}),
		},
		CustomText: &stripe.CheckoutSessionCustomTextParams{
			Submit: &stripe.CheckoutSessionCustomTextSubmitParams{
				Message: stripe.String("Thank you for your order!"),
			},
		},
	}
	if req.CancelURL != "" {
		params.CancelURL = stripe.String(req.CancelURL)
	}
	if req.Customer.Email != "" {
		params.CustomerEmail = stripe.String(req.Customer.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", req.OrderID)
	params.AddMetadata("customer_id", req.Customer.ID)
	params.AddMetadata("customer_name", req.Customer.Name)

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		gerr := g.classifyError(err)
		g.logger.Error("Stripe checkout session failed",
			zap.String("order_id", req.OrderID),
			zap.String("kind", string(gerr.Kind)),
			zap.Error(err),
		)
		return nil, gerr
	}
	if s == nil || s.ID == "" || s.URL == "" {
		return nil, newError(KindUnknownGatewayError, stripeName, "unexpected response from payment gateway", nil)
	}

	echoed := minor
	if s.AmountTotal > 0 {
		echoed = s.AmountTotal
	}
	outCurrency := string(s.Currency)
	if outCurrency == "" {
		outCurrency = currency
	}

	g.logger.Info("Stripe checkout session created",
		zap.String("order_id", req.OrderID),
		zap.String("session_id", s.ID),
	)

	return &PaymentResult{
		Gateway:     stripeName,
		OrderID:     req.OrderID,
		Reference:   s.ID,
		CheckoutURL: s.URL,
		Amount:      FromMinorUnits(echoed),
		Currency:    outCurrency,
	}, nil
}

// GetPaymentStatus retrieves a checkout session (cs_ prefix) or a payment intent.
func (g *StripeGateway) GetPaymentStatus(ctx context.Context, reference string) (*StatusResult, error) {
	if g.cfg.SecretKey == "" {
		return nil, newError(KindStatusFetchFailed, stripeName, "failed to fetch payment status",
			missingCredentials(stripeName, "STRIPE_SECRET_KEY"))
	}

	if strings.HasPrefix(reference, "cs_") {
		params := &stripe.CheckoutSessionParams{}
		params.Context = ctx
		s, err := g.api.CheckoutSessions.Get(reference, params)
		if err != nil {
			g.logger.Error("Stripe retrieve checkout session failed", zap.String("session_id", reference), zap.Error(err))
			return nil, newError(KindStatusFetchFailed, stripeName, "failed to fetch payment status", g.classifyError(err))
		}
		orderID := s.Metadata["order_id"]
		if orderID == "" {
			orderID = s.ClientReferenceID
		}
		return &StatusResult{
			Reference:    s.ID,
			OrderID:      orderID,
			Status:       checkoutSessionStatus(s),
			VendorStatus: string(s.PaymentStatus),
			Amount:       FromMinorUnits(s.AmountTotal),
			Currency:     string(s.Currency),
		}, nil
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := g.api.PaymentIntents.Get(reference, params)
	if err != nil {
		g.logger.Error("Stripe retrieve payment intent failed", zap.String("payment_intent_id", reference), zap.Error(err))
		return nil, newError(KindStatusFetchFailed, stripeName, "failed to fetch payment status", g.classifyError(err))
	}
	return &StatusResult{
		Reference:    pi.ID,
		OrderID:      pi.Metadata["order_id"],
		Status:       paymentIntentStatus(pi),
		VendorStatus: string(pi.Status),
		Amount:       FromMinorUnits(pi.Amount),
		Currency:     string(pi.Currency),
	}, nil
}

func checkoutSessionStatus(s *stripe.CheckoutSession) models.PaymentStatus {
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return models.PaymentStatusSuccess
	case s.Status == stripe.CheckoutSessionStatusExpired:
		return models.PaymentStatusCancelled
	default:
		return models.PaymentStatusPending
	}
}

func paymentIntentStatus(pi *stripe.PaymentIntent) models.PaymentStatus {
	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentStatusSuccess
	case stripe.PaymentIntentStatusProcessing:
		return models.PaymentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return models.PaymentStatusCancelled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			return models.PaymentStatusFailed
		}
		return models.PaymentStatusPending
	default:
		return models.PaymentStatusPending
	}
}

// VerifyWebhookSignature checks the Stripe-Signature header against secret
// using the SDK's constant-time HMAC comparison and decodes the event.
func (g *StripeGateway) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (*stripe.Event, error) {
	if secret == "" {
		return nil, missingCredentials(stripeName, "STRIPE_WEBHOOK_SECRET")
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		g.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		return nil, newError(KindSignatureVerificationFailed, stripeName,
			"webhook signature verification failed: "+err.Error(), err)
	}

	g.logger.Info("Stripe webhook event", zap.String("event_id", event.ID), zap.String("type", string(event.Type)))
	return &event, nil
}

// VerifyWebhook verifies against the configured webhook secret.
func (g *StripeGateway) VerifyWebhook(payload []byte, signatureHeader string) (*stripe.Event, error) {
	return g.VerifyWebhookSignature(payload, signatureHeader, g.cfg.WebhookSecret)
}

// DecodeEvent reduces payment-related events to a WebhookEvent. Other event
// types report false.
func DecodeEvent(event *stripe.Event) (*WebhookEvent, bool, error) {
	if event == nil || event.Data == nil {
		return nil, false, nil
	}

	eventType := string(event.Type)
	switch eventType {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, false, fmt.Errorf("decode checkout session: %w", err)
		}
		status := checkoutSessionStatus(&s)
		switch eventType {
		case "checkout.session.async_payment_failed":
			status = models.PaymentStatusFailed
		case "checkout.session.expired":
			status = models.PaymentStatusCancelled
		}
		orderID := s.Metadata["order_id"]
		if orderID == "" {
			orderID = s.ClientReferenceID
		}
		return &WebhookEvent{
			ID:        event.ID,
			Type:      eventType,
			OrderID:   orderID,
			Reference: s.ID,
			Status:    status,
			Amount:    FromMinorUnits(s.AmountTotal),
		}, true, nil

	case "payment_intent.succeeded",
		"payment_intent.payment_failed",
		"payment_intent.canceled",
		"payment_intent.processing":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, false, fmt.Errorf("decode payment intent: %w", err)
		}
		status := models.PaymentStatusPending
		switch eventType {
		case "payment_intent.succeeded":
			status = models.PaymentStatusSuccess
		case "payment_intent.payment_failed":
			status = models.PaymentStatusFailed
		case "payment_intent.canceled":
			status = models.PaymentStatusCancelled
		case "payment_intent.processing":
			status = models.PaymentStatusProcessing
		}
		return &WebhookEvent{
			ID:        event.ID,
			Type:      eventType,
			OrderID:   pi.Metadata["order_id"],
			Reference: pi.ID,
			Status:    status,
			Amount:    FromMinorUnits(pi.Amount),
		}, true, nil
	}

	return nil, false, nil
}

func (g *StripeGateway) classifyError(err error) *Error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		switch {
		case serr.HTTPStatusCode == http.StatusUnauthorized:
			return newError(KindAuthenticationFailed, stripeName,
				"authentication failed, check the secret key", err)
		case serr.Type == stripe.ErrorTypeCard:
			e := newError(KindValidationError, stripeName, "card error", err)
			e.Detail = serr.Msg
			return e
		case serr.Type == stripe.ErrorTypeInvalidRequest || serr.HTTPStatusCode == http.StatusBadRequest:
			e := newError(KindValidationError, stripeName, "validation error", err)
			e.Detail = serr.Msg
			if serr.Param != "" {
				e.Detail = serr.Param + ": " + serr.Msg
			}
			return e
		default:
			msg := serr.Msg
			if msg == "" {
				msg = "payment gateway error"
			}
			return newError(KindUnknownGatewayError, stripeName, msg, err)
		}
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return newError(KindNetworkUnreachable, stripeName,
			"unable to connect to payment gateway, check your internet connection", err)
	}

	return newError(KindUnknownGatewayError, stripeName, err.Error(), err)
}

// TestConnection creates and cancels a 100-paise payment intent.
func (g *StripeGateway) TestConnection(ctx context.Context) *ConnectionReport {
	report := &ConnectionReport{
		Gateway:     stripeName,
		Environment: g.cfg.Environment,
	}

	res, err := g.CreatePaymentIntent(ctx, PaymentRequest{
		OrderID:  "connection-test",
		Amount:   decimal.NewFromInt(1),
		Currency: "inr",
	})
	if err == nil {
		params := &stripe.PaymentIntentCancelParams{}
		params.Context = ctx
		_, cerr := g.api.PaymentIntents.Cancel(res.Reference, params)
		if cerr != nil {
			err = g.classifyError(cerr)
		}
	}
	if err != nil {
		report.Error = err.Error()
		report.Kind = string(KindOf(err))
		report.Credentials = map[string]string{
			"secret_key":      utils.Presence(g.cfg.SecretKey),
			"publishable_key": utils.Presence(g.cfg.PublishableKey),
		}
		return report
	}
	report.Success = true
	return report
}

package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/httpclient"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
)

const (
	cashfreeName           = "cashfree"
	cashfreeSandboxURL     = "https://sandbox.cashfree.com/pg"
	cashfreeProductionURL  = "https://api.cashfree.com/pg"
	cashfreeDefaultVersion = "2022-09-01"
)

// CashfreeConfig holds the aggregator credentials and transport settings.
type CashfreeConfig struct {
	Environment string // "sandbox" or "production"
	AppID       string
	SecretKey   string
	APIVersion  string
	Timeout     time.Duration
	// BaseURL overrides the environment-derived host.
	BaseURL string
}

// CashfreeGateway implements the Gateway interface for Cashfree PG.
type CashfreeGateway struct {
	cfg    CashfreeConfig
	client *httpclient.Client
	logger *zap.Logger
}

func NewCashfreeGateway(cfg CashfreeConfig, logger *zap.Logger) *CashfreeGateway {
	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = cashfreeDefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = cashfreeSandboxURL
		if cfg.Environment == "production" {
			cfg.BaseURL = cashfreeProductionURL
		}
	}

	g := &CashfreeGateway{
		cfg:    cfg,
		logger: logger.With(zap.String("gateway", cashfreeName)),
		client: httpclient.New().
			WithoutRetry().
			WithTimeout(cfg.Timeout).
			WithHeader("Content-Type", "application/json").
			WithHeader("x-client-id", cfg.AppID).
			WithHeader("x-client-secret", cfg.SecretKey).
			WithHeader("x-api-version", cfg.APIVersion),
	}

	g.logger.Info("Cashfree configuration", append(g.credentialFields(), zap.String("base_url", cfg.BaseURL))...)
	return g
}

func (g *CashfreeGateway) Name() string {
	return cashfreeName
}

func (g *CashfreeGateway) credentialFields() []zap.Field {
	return []zap.Field{
		zap.String("environment", g.cfg.Environment),
		zap.String("app_id", utils.Presence(g.cfg.AppID)),
		zap.String("secret_key", utils.Presence(g.cfg.SecretKey)),
		zap.String("secret_fingerprint", utils.Fingerprint(g.cfg.SecretKey)),
	}
}

type cashfreeCustomer struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name,omitempty"`
}

type cashfreeOrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

type cashfreeOrderRequest struct {
	OrderID         string             `json:"order_id"`
	OrderAmount     json.Number        `json:"order_amount"`
	OrderCurrency   string             `json:"order_currency"`
	CustomerDetails cashfreeCustomer   `json:"customer_details"`
	OrderMeta       *cashfreeOrderMeta `json:"order_meta,omitempty"`
	OrderNote       string             `json:"order_note,omitempty"`
}

type cashfreeOrderResponse struct {
	CFOrderID        flexString  `json:"cf_order_id"`
	OrderID          string      `json:"order_id"`
	OrderAmount      json.Number `json:"order_amount"`
	OrderCurrency    string      `json:"order_currency"`
	OrderStatus      string      `json:"order_status"`
	PaymentSessionID string      `json:"payment_session_id"`
}

type cashfreeErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// CreatePayment creates a Cashfree order and returns its payment session.
func (g *CashfreeGateway) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	minor := ToMinorUnits(req.Amount)
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = "INR"
	}

	g.logger.Info("Creating Cashfree order",
		zap.String("order_id", req.OrderID),
		zap.String("order_amount", req.Amount.StringFixed(2)),
		zap.Int64("minor_units", minor),
		zap.String("customer", req.Customer.Name),
		zap.String("base_url", g.cfg.BaseURL),
	)

	if g.cfg.AppID == "" || g.cfg.SecretKey == "" {
		err := missingCredentials(cashfreeName, "CASHFREE_APP_ID", "CASHFREE_SECRET_KEY")
		g.logger.Error("Cashfree credentials missing", g.credentialFields()...)
		return nil, err
	}

	body := cashfreeOrderRequest{
		OrderID:       req.OrderID,
		OrderAmount:   json.Number(FromMinorUnits(minor).StringFixed(2)),
		OrderCurrency: currency,
		CustomerDetails: cashfreeCustomer{
			CustomerID:    req.Customer.ID,
			CustomerEmail: req.Customer.Email,
			CustomerPhone: req.Customer.Phone,
			CustomerName:  req.Customer.Name,
		},
		OrderNote: req.Description,
	}
	if req.ReturnURL != "" || req.NotifyURL != "" {
		body.OrderMeta = &cashfreeOrderMeta{ReturnURL: req.ReturnURL, NotifyURL: req.NotifyURL}
	}

	resp, err := g.client.Post(ctx, g.cfg.BaseURL+"/orders", body)
	if err != nil {
		g.logger.Error("Cashfree API unreachable", append(g.credentialFields(),
			zap.String("order_id", req.OrderID),
			zap.Error(err),
		)...)
		return nil, newError(KindNetworkUnreachable, cashfreeName,
			"unable to reach the payment gateway, check your internet connection", err)
	}

	if !resp.IsSuccess() {
		gerr := g.classifyError(resp)
		g.logger.Error("Cashfree API error", append(g.credentialFields(),
			zap.String("order_id", req.OrderID),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", string(gerr.Kind)),
			zap.ByteString("body", resp.Body),
		)...)
		return nil, gerr
	}

	var out cashfreeOrderResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, newError(KindUnknownGatewayError, cashfreeName, "unexpected response from payment gateway", err)
	}
	if out.OrderID == "" || out.PaymentSessionID == "" {
		g.logger.Error("Cashfree response missing fields",
			zap.String("order_id", req.OrderID),
			zap.Bool("has_order_id", out.OrderID != ""),
			zap.Bool("has_payment_session_id", out.PaymentSessionID != ""),
		)
		return nil, newError(KindUnknownGatewayError, cashfreeName, "unexpected response from payment gateway", nil)
	}

	echoed := minor
	if out.OrderAmount != "" {
		if amt, err := decimal.NewFromString(out.OrderAmount.String()); err == nil {
			echoed = ToMinorUnits(amt)
		}
	}
	outCurrency := out.OrderCurrency
	if outCurrency == "" {
		outCurrency = currency
	}

	g.logger.Info("Cashfree order created",
		zap.String("order_id", out.OrderID),
		zap.String("cf_order_id", string(out.CFOrderID)),
		zap.String("payment_session_id", utils.Presence(out.PaymentSessionID)),
		zap.String("order_status", out.OrderStatus),
	)

	return &PaymentResult{
		Gateway:          cashfreeName,
		OrderID:          out.OrderID,
		Reference:        out.OrderID,
		PaymentSessionID: out.PaymentSessionID,
		Amount:           FromMinorUnits(echoed),
		Currency:         outCurrency,
	}, nil
}

func (g *CashfreeGateway) classifyError(resp *httpclient.Response) *Error {
	var vendor cashfreeErrorResponse
	_ = json.Unmarshal(resp.Body, &vendor)

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return newError(KindAuthenticationFailed, cashfreeName,
			"authentication failed, check the app id and secret key match the environment and the account is activated", nil)
	case http.StatusBadRequest:
		e := newError(KindValidationError, cashfreeName, "validation error", nil)
		e.Detail = strings.TrimSpace(string(resp.Body))
		return e
	default:
		msg := vendor.Message
		if msg == "" {
			msg = fmt.Sprintf("payment gateway error (HTTP %d)", resp.StatusCode)
		}
		return newError(KindUnknownGatewayError, cashfreeName, msg, nil)
	}
}

// GetPaymentStatus fetches a Cashfree order by its order id.
func (g *CashfreeGateway) GetPaymentStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	if g.cfg.AppID == "" || g.cfg.SecretKey == "" {
		return nil, newError(KindStatusFetchFailed, cashfreeName, "failed to fetch order status",
			missingCredentials(cashfreeName, "CASHFREE_APP_ID", "CASHFREE_SECRET_KEY"))
	}

	resp, err := g.client.Get(ctx, g.cfg.BaseURL+"/orders/"+url.PathEscape(orderID))
	if err != nil {
		g.logger.Error("Cashfree get order failed", zap.String("order_id", orderID), zap.Error(err))
		return nil, newError(KindStatusFetchFailed, cashfreeName, "failed to fetch order status", err)
	}
	if !resp.IsSuccess() {
		g.logger.Error("Cashfree get order error",
			zap.String("order_id", orderID),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", resp.Body),
		)
		return nil, newError(KindStatusFetchFailed, cashfreeName, "failed to fetch order status", g.classifyError(resp))
	}

	var out cashfreeOrderResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil || out.OrderStatus == "" {
		return nil, newError(KindStatusFetchFailed, cashfreeName, "failed to fetch order status",
			newError(KindUnknownGatewayError, cashfreeName, "unexpected response from payment gateway", err))
	}

	amount := decimal.Zero
	if out.OrderAmount != "" {
		if amt, err := decimal.NewFromString(out.OrderAmount.String()); err == nil {
			amount = FromMinorUnits(ToMinorUnits(amt))
		}
	}

	status := cashfreeStatus(out.OrderStatus)
	g.logger.Info("Cashfree order status",
		zap.String("order_id", orderID),
		zap.String("order_status", out.OrderStatus),
		zap.String("payment_status", string(status)),
	)

	return &StatusResult{
		Reference:    out.OrderID,
		OrderID:      out.OrderID,
		Status:       status,
		VendorStatus: out.OrderStatus,
		Amount:       amount,
		Currency:     out.OrderCurrency,
	}, nil
}

func cashfreeStatus(s string) models.PaymentStatus {
	switch strings.ToUpper(s) {
	case "PAID":
		return models.PaymentStatusSuccess
	case "EXPIRED":
		return models.PaymentStatusFailed
	case "TERMINATED", "TERMINATION_REQUESTED":
		return models.PaymentStatusCancelled
	default:
		return models.PaymentStatusPending
	}
}

// TestConnection creates a ₹1 test order with the configured credentials.
func (g *CashfreeGateway) TestConnection(ctx context.Context) *ConnectionReport {
	report := &ConnectionReport{
		Gateway:     cashfreeName,
		Environment: g.cfg.Environment,
	}

	_, err := g.CreatePayment(ctx, PaymentRequest{
		OrderID:  fmt.Sprintf("TEST%d", time.Now().UnixMilli()),
		Amount:   decimal.NewFromInt(1),
		Currency: "INR",
		Customer: Customer{
			ID:    "test_user_1",
			Name:  "Test User",
			Email: "test@example.com",
			Phone: "9999999999",
		},
	})
	if err != nil {
		report.Error = err.Error()
		report.Kind = string(KindOf(err))
		report.Credentials = map[string]string{
			"app_id":     utils.Presence(g.cfg.AppID),
			"secret_key": utils.Presence(g.cfg.SecretKey),
		}
		return report
	}
	report.Success = true
	return report
}

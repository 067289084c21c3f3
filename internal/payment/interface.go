package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// Customer is the payer passed through to the gateway. It is not stored by adapters.
type Customer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// ShippingAddress is an optional delivery address forwarded to the gateway.
type ShippingAddress struct {
	Line1   string
	City    string
	State   string
	Pincode string
}

// PaymentRequest describes an order to be paid. Amount is in decimal currency
// units (rupees); adapters convert to minor units at the wire.
type PaymentRequest struct {
	OrderID     string
	Amount      decimal.Decimal
	Currency    string
	Customer    Customer
	Shipping    *ShippingAddress
	Description string
	ReturnURL   string
	CancelURL   string
	NotifyURL   string
}

// PaymentResult is the gateway-issued handle for a created payment.
type PaymentResult struct {
	Gateway          string          `json:"gateway"`
	OrderID          string          `json:"order_id"`
	Reference        string          `json:"reference"`
	PaymentSessionID string          `json:"payment_session_id,omitempty"`
	ClientSecret     string          `json:"client_secret,omitempty"`
	CheckoutURL      string          `json:"checkout_url,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
}

// StatusResult is the payment state reported by the gateway.
type StatusResult struct {
	Reference    string
	OrderID      string
	Status       models.PaymentStatus
	VendorStatus string
	Amount       decimal.Decimal
	Currency     string
}

// Gateway defines the interface for payment gateway implementations.
type Gateway interface {
	// Name returns the gateway identifier.
	Name() string

	// CreatePayment initiates a new payment.
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)

	// GetPaymentStatus fetches the current state of a payment by its
	// gateway reference or order id. Never retried.
	GetPaymentStatus(ctx context.Context, reference string) (*StatusResult, error)
}

// ConnectionTester is implemented by gateways that can probe their credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context) *ConnectionReport
}

// ConnectionReport is the outcome of a credentials probe.
type ConnectionReport struct {
	Gateway     string            `json:"gateway"`
	Success     bool              `json:"success"`
	Environment string            `json:"environment,omitempty"`
	Error       string            `json:"error,omitempty"`
	Kind        string            `json:"kind,omitempty"`
	Credentials map[string]string `json:"credentials,omitempty"`
}

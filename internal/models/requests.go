package models

import "github.com/shopspring/decimal"

// --- Checkout API Request Payloads ---

type ShippingAddressRequest struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
}

type PlaceOrderRequest struct {
	OrderID         string                  `json:"order_id,omitempty"`
	Amount          decimal.Decimal         `json:"amount"`
	Currency        string                  `json:"currency,omitempty"`
	PaymentMethod   PaymentMethod           `json:"payment_method"`
	Gateway         string                  `json:"gateway,omitempty"` // "cashfree" or "stripe"; online only
	Hosted          bool                    `json:"hosted,omitempty"`  // stripe: hosted checkout instead of an intent
	CustomerID      string                  `json:"-"` // from the caller's access token, never the body
	CustomerName    string                  `json:"customer_name"`
	CustomerEmail   string                  `json:"customer_email"`
	CustomerPhone   string                  `json:"customer_phone"`
	ShippingAddress *ShippingAddressRequest `json:"shipping_address,omitempty"`
}

// VerifyPaymentResponse is the body of GET /api/orders/verify-payment/:identifier.
type VerifyPaymentResponse struct {
	Success       bool            `json:"success"`
	OrderID       string          `json:"orderId"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	OrderStatus   OrderStatus     `json:"orderStatus"`
	Amount        decimal.Decimal `json:"amount"`
	Message       string          `json:"message,omitempty"`
}

// --- Customer API Request Payloads ---

type RegisterCustomerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginCustomerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

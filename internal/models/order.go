package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodOnline PaymentMethod = "online"
	PaymentMethodCOD    PaymentMethod = "cod"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodOnline || m == PaymentMethodCOD
}

// PaymentStatus is the payment state of an order as last reported by a gateway.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSuccess    PaymentStatus = "success"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// PaymentStatuses lists every payment status.
var PaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusProcessing,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusCancelled,
}

// Terminal reports whether no further gateway transition is expected.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed || s == PaymentStatusCancelled
}

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every order status.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Order maps to the `orders` table.
type Order struct {
	ID               uint            `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	OrderID          string          `gorm:"column:order_id;size:64;uniqueIndex" json:"orderId"`
	CustomerID       string          `gorm:"column:customer_id;size:64;index" json:"customerId"`
	CustomerName     string          `gorm:"column:customer_name;size:200" json:"customerName"`
	CustomerEmail    string          `gorm:"column:customer_email;size:200" json:"customerEmail"`
	CustomerPhone    string          `gorm:"column:customer_phone;size:32" json:"customerPhone"`
	ShipLine1        string          `gorm:"column:ship_line1;size:500" json:"shipLine1,omitempty"`
	ShipCity         string          `gorm:"column:ship_city;size:120" json:"shipCity,omitempty"`
	ShipState        string          `gorm:"column:ship_state;size:120" json:"shipState,omitempty"`
	ShipPincode      string          `gorm:"column:ship_pincode;size:16" json:"shipPincode,omitempty"`
	Amount           decimal.Decimal `gorm:"column:amount;type:decimal(12,2)" json:"amount"`
	Currency         string          `gorm:"column:currency;size:8" json:"currency"`
	PaymentMethod    PaymentMethod   `gorm:"column:payment_method;size:16" json:"paymentMethod"`
	PaymentStatus    PaymentStatus   `gorm:"column:payment_status;size:16;index" json:"paymentStatus"`
	OrderStatus      OrderStatus     `gorm:"column:order_status;size:16" json:"orderStatus"`
	Gateway          string          `gorm:"column:gateway;size:32" json:"gateway,omitempty"`
	GatewayRef       string          `gorm:"column:gateway_ref;size:255;index" json:"gatewayRef,omitempty"`
	PaymentSessionID string          `gorm:"column:payment_session_id;size:512" json:"-"`
	FailureReason    string          `gorm:"column:failure_reason;type:text" json:"failureReason,omitempty"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Order) TableName() string {
	return "orders"
}

// HasShipping reports whether a shipping address was captured.
func (o *Order) HasShipping() bool {
	return o.ShipLine1 != ""
}

package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/pkg/utils"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/repository"
)

var (
	ErrDuplicateRequest = errors.New("an order with this id is already being placed")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidOrder     = errors.New("invalid order")
	ErrUnknownGateway   = errors.New("unknown payment gateway")
)

// OrderStore persists orders.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByOrderID(ctx context.Context, orderID string) (*models.Order, error)
	FindByGatewayRef(ctx context.Context, ref string) (*models.Order, error)
	UpdateByOrderID(ctx context.Context, orderID string, updates map[string]interface{}) error
	TransitionPayment(ctx context.Context, orderID string, from []models.PaymentStatus, updates map[string]interface{}) (bool, error)
	FindPendingOnline(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error)
}

// Gateways resolves a gateway by name.
type Gateways interface {
	Get(name string) (payment.Gateway, error)
}

// Locker guards in-flight work by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Reporter is told about placed and paid orders.
type Reporter interface {
	OrderPlaced(ctx context.Context, order *models.Order)
	PaymentConfirmed(ctx context.Context, order *models.Order)
}

// Options tune the service.
type Options struct {
	// BaseURL is the public origin used for return and cancel links.
	BaseURL         string
	InflightTTL     time.Duration
	DefaultGateway  string
	DefaultCurrency string
	Now             func() time.Time
}

// Service places orders and keeps their payment status in step with the gateways.
type Service struct {
	orders   OrderStore
	gateways Gateways
	locker   Locker
	reporter Reporter
	opts     Options
	logger   *zap.Logger
}

func NewService(orders OrderStore, gateways Gateways, locker Locker, reporter Reporter, opts Options, logger *zap.Logger) *Service {
	if opts.InflightTTL <= 0 {
		opts.InflightTTL = 2 * time.Minute
	}
	if opts.DefaultGateway == "" {
		opts.DefaultGateway = "cashfree"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "INR"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	return &Service{
		orders:   orders,
		gateways: gateways,
		locker:   locker,
		reporter: reporter,
		opts:     opts,
		logger:   logger,
	}
}

// PlaceOrderResult is the stored order plus, for online orders, the
// gateway handle the client needs to pay.
type PlaceOrderResult struct {
	Order   *models.Order          `json:"order"`
	Payment *payment.PaymentResult `json:"payment,omitempty"`
}

// PlaceOrder validates and stores an order and, for online payment, opens a
// payment with the chosen gateway.
func (s *Service) PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (*PlaceOrderResult, error) {
	if err := validate(&req); err != nil {
		return nil, err
	}

	var gw payment.Gateway
	if req.PaymentMethod == models.PaymentMethodOnline {
		name := req.Gateway
		if name == "" {
			name = s.opts.DefaultGateway
		}
		g, err := s.gateways.Get(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
		}
		gw = g
	}

	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = utils.GenerateOrderID()
	}

	lockKey := "order:" + orderID
	acquired, err := s.locker.Acquire(ctx, lockKey, s.opts.InflightTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire order lock: %w", err)
	}
	if !acquired {
		s.logger.Warn("Duplicate order submission rejected", zap.String("order_id", orderID))
		return nil, ErrDuplicateRequest
	}
	defer func() {
		_ = s.locker.Release(context.WithoutCancel(ctx), lockKey)
	}()

	if _, err := s.orders.FindByOrderID(ctx, orderID); err == nil {
		return nil, ErrDuplicateRequest
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup order: %w", err)
	}

	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.opts.DefaultCurrency
	}

	order := &models.Order{
		OrderID:       orderID,
		CustomerID:    req.CustomerID,
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Amount:        req.Amount.Round(2),
		Currency:      currency,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.PaymentStatusPending,
		OrderStatus:   models.OrderStatusPending,
	}
	if order.CustomerID == "" {
		order.CustomerID = utils.GenerateGuestID()
	}
	if a := req.ShippingAddress; a != nil {
		order.ShipLine1 = a.Address
		order.ShipCity = a.City
		order.ShipState = a.State
		order.ShipPincode = a.Pincode
	}

	if req.PaymentMethod == models.PaymentMethodCOD {
		order.OrderStatus = models.OrderStatusConfirmed
		if err := s.orders.Create(ctx, order); err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}
		s.logger.Info("COD order placed",
			zap.String("order_id", order.OrderID),
			zap.String("amount", order.Amount.StringFixed(2)),
		)
		s.reporter.OrderPlaced(ctx, order)
		return &PlaceOrderResult{Order: order}, nil
	}

	order.Gateway = gw.Name()
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	result, err := gw.CreatePayment(ctx, s.paymentRequest(order, req.Hosted))
	if err != nil {
		s.logger.Error("Payment creation failed",
			zap.String("order_id", order.OrderID),
			zap.String("gateway", order.Gateway),
			zap.String("kind", string(payment.KindOf(err))),
			zap.Error(err),
		)
		updates := map[string]interface{}{
			"payment_status": models.PaymentStatusFailed,
			"failure_reason": err.Error(),
		}
		if uerr := s.orders.UpdateByOrderID(context.WithoutCancel(ctx), order.OrderID, updates); uerr != nil {
			s.logger.Error("Failed to record payment failure", zap.String("order_id", order.OrderID), zap.Error(uerr))
		}
		return nil, err
	}

	if !result.Amount.Equal(order.Amount) {
		s.logger.Warn("Gateway echoed a different amount",
			zap.String("order_id", order.OrderID),
			zap.String("amount", order.Amount.StringFixed(2)),
			zap.String("echoed", result.Amount.StringFixed(2)),
		)
	}

	order.GatewayRef = result.Reference
	order.PaymentSessionID = result.PaymentSessionID
	if err := s.orders.UpdateByOrderID(ctx, order.OrderID, map[string]interface{}{
		"gateway_ref":        order.GatewayRef,
		"payment_session_id": order.PaymentSessionID,
	}); err != nil {
		return nil, fmt.Errorf("store payment reference: %w", err)
	}

	s.logger.Info("Online order placed",
		zap.String("order_id", order.OrderID),
		zap.String("gateway", order.Gateway),
		zap.String("reference", order.GatewayRef),
	)
	return &PlaceOrderResult{Order: order, Payment: result}, nil
}

func (s *Service) paymentRequest(order *models.Order, hosted bool) payment.PaymentRequest {
	req := payment.PaymentRequest{
		OrderID:  order.OrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Customer: payment.Customer{
			ID:    order.CustomerID,
			Name:  order.CustomerName,
			Email: order.CustomerEmail,
			Phone: order.CustomerPhone,
		},
		Description: "Order " + order.OrderID,
	}
	if order.HasShipping() {
		req.Shipping = &payment.ShippingAddress{
			Line1:   order.ShipLine1,
			City:    order.ShipCity,
			State:   order.ShipState,
			Pincode: order.ShipPincode,
		}
	}

	id := url.QueryEscape(order.OrderID)
	switch order.Gateway {
	case "cashfree":
		req.ReturnURL = s.opts.BaseURL + "/payment/cashfree/return?order_id=" + id
	case "stripe":
		if hosted {
			// Stripe substitutes the literal placeholder; it must stay unescaped.
			req.ReturnURL = s.opts.BaseURL + "/order-success?order_id=" + id + "&session_id={CHECKOUT_SESSION_ID}"
			req.CancelURL = s.opts.BaseURL + "/order-success?order_id=" + id + "&canceled=true"
		}
	}
	return req
}

func validate(req *models.PlaceOrderRequest) error {
	if !req.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidOrder)
	}
	if !req.PaymentMethod.Valid() {
		return fmt.Errorf("%w: payment method must be online or cod", ErrInvalidOrder)
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return fmt.Errorf("%w: customer name is required", ErrInvalidOrder)
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(req.CustomerEmail)); err != nil {
		return fmt.Errorf("%w: a valid customer email is required", ErrInvalidOrder)
	}
	return nil
}

// GetOrder returns a stored order.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.orders.FindByOrderID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	return order, err
}

// TestGateway probes a gateway's credentials.
func (s *Service) TestGateway(ctx context.Context, name string) (*payment.ConnectionReport, error) {
	gw, err := s.gateways.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	tester, ok := gw.(payment.ConnectionTester)
	if !ok {
		return &payment.ConnectionReport{Gateway: gw.Name(), Error: "connection test not supported"}, nil
	}
	return tester.TestConnection(ctx), nil
}

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/checkout"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/middleware"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/reconcile"
)

// CheckoutService is what the order endpoints need from checkout.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, req models.PlaceOrderRequest) (*checkout.PlaceOrderResult, error)
	VerifyPayment(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
}

// OrderHandler serves /api/orders.
type OrderHandler struct {
	checkout     CheckoutService
	secureCookie bool
	logger       *zap.Logger
}

func NewOrderHandler(svc CheckoutService, secureCookie bool, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{checkout: svc, secureCookie: secureCookie, logger: logger}
}

// PlaceOrder handles POST /api/orders.
func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	var req models.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "Invalid request body")
	}
	// Guests get a generated id from checkout.
	req.CustomerID, _ = c.Get(middleware.CustomerIDKey).(string)

	result, err := h.checkout.PlaceOrder(c.Request().Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, checkout.ErrInvalidOrder), errors.Is(err, checkout.ErrUnknownGateway):
		return errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrDuplicateRequest):
		return errorResponse(c, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Failed to place order", zap.String("order_id", req.OrderID), zap.Error(err))
		return gatewayErrorResponse(c, err)
	}

	order := result.Order
	h.setHint(c, reconcile.Hint{
		OrderID:       order.OrderID,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		OrderStatus:   order.OrderStatus,
		Amount:        order.Amount,
	})

	return jsonResponse(c, http.StatusCreated, true, "Order placed", result)
}

// setHint stores the navigation hint the result page starts from.
func (h *OrderHandler) setHint(c echo.Context, hint reconcile.Hint) {
	value, err := reconcile.EncodeHint(hint)
	if err != nil {
		h.logger.Warn("Failed to encode checkout hint", zap.String("order_id", hint.OrderID), zap.Error(err))
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     reconcile.HintCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   int(time.Hour / time.Second),
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// VerifyPayment handles GET /api/orders/verify-payment/:identifier.
func (h *OrderHandler) VerifyPayment(c echo.Context) error {
	identifier := c.Param("identifier")
	orderID := c.QueryParam("order_id")

	resp, err := h.checkout.VerifyPayment(c.Request().Context(), identifier, orderID)
	if err == nil {
		return c.JSON(http.StatusOK, resp)
	}

	failed := &models.VerifyPaymentResponse{OrderID: orderID, Message: err.Error()}
	if failed.OrderID == "" {
		failed.OrderID = identifier
	}
	if errors.Is(err, checkout.ErrOrderNotFound) {
		return c.JSON(http.StatusNotFound, failed)
	}
	h.logger.Error("Payment verification failed", zap.String("identifier", identifier), zap.Error(err))
	return c.JSON(http.StatusBadGateway, failed)
}

// GetOrder handles GET /api/orders/:orderId.
func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.checkout.GetOrder(c.Request().Context(), c.Param("orderId"))
	if errors.Is(err, checkout.ErrOrderNotFound) {
		return errorResponse(c, http.StatusNotFound, "Order not found")
	}
	if err != nil {
		h.logger.Error("Failed to load order", zap.Error(err))
		return errorResponse(c, http.StatusInternalServerError, "Failed to retrieve order")
	}
	return successResponse(c, "Successful", order)
}

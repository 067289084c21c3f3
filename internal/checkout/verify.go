package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/payment"
	"github.com/ONE2ALLINFOTECH/ecomerce/internal/repository"
)

var openPaymentStatuses = []models.PaymentStatus{
	models.PaymentStatusPending,
	models.PaymentStatusProcessing,
}

// VerifyPayment backs the verification endpoint. identifier is an order id,
// a gateway reference or a Stripe checkout session id; orderID, when given,
// takes precedence for the lookup.
func (s *Service) VerifyPayment(ctx context.Context, identifier, orderID string) (*models.VerifyPaymentResponse, error) {
	order, err := s.findOrder(ctx, identifier, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentMethod == models.PaymentMethodCOD || order.PaymentStatus.Terminal() {
		return verifyResponse(order), nil
	}

	ref := order.GatewayRef
	if ref == "" {
		ref = identifier
	}
	if order.Gateway == "" || ref == "" {
		return verifyResponse(order), nil
	}

	gw, err := s.gateways.Get(order.Gateway)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, order.Gateway)
	}

	status, err := gw.GetPaymentStatus(ctx, ref)
	if err != nil {
		s.logger.Error("Payment verification failed",
			zap.String("order_id", order.OrderID),
			zap.String("gateway", order.Gateway),
			zap.String("reference", ref),
			zap.Error(err),
		)
		return nil, err
	}

	order, err = s.applyStatus(ctx, order, status.Status, status.Amount, "verify")
	if err != nil {
		return nil, err
	}
	return verifyResponse(order), nil
}

func (s *Service) findOrder(ctx context.Context, identifier, orderID string) (*models.Order, error) {
	lookups := make([]func() (*models.Order, error), 0, 3)
	if orderID != "" {
		lookups = append(lookups, func() (*models.Order, error) { return s.orders.FindByOrderID(ctx, orderID) })
	}
	if identifier != "" {
		lookups = append(lookups,
			func() (*models.Order, error) { return s.orders.FindByOrderID(ctx, identifier) },
			func() (*models.Order, error) { return s.orders.FindByGatewayRef(ctx, identifier) },
		)
	}

	for _, lookup := range lookups {
		order, err := lookup()
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup order: %w", err)
		}
	}
	return nil, ErrOrderNotFound
}

func verifyResponse(order *models.Order) *models.VerifyPaymentResponse {
	resp := &models.VerifyPaymentResponse{
		Success:       true,
		OrderID:       order.OrderID,
		PaymentStatus: order.PaymentStatus,
		PaymentMethod: order.PaymentMethod,
		OrderStatus:   order.OrderStatus,
		Amount:        order.Amount,
	}
	switch {
	case order.PaymentStatus == models.PaymentStatusFailed,
		order.PaymentStatus == models.PaymentStatusCancelled,
		order.OrderStatus == models.OrderStatusCancelled:
		resp.Success = false
		resp.Message = order.FailureReason
		if resp.Message == "" {
			resp.Message = "Payment was not completed"
		}
	}
	return resp
}

// ApplyWebhookEvent records a verified gateway event against its order.
func (s *Service) ApplyWebhookEvent(ctx context.Context, ev *payment.WebhookEvent) error {
	order, err := s.findOrder(ctx, ev.Reference, ev.OrderID)
	if err != nil {
		s.logger.Warn("Webhook for unknown order",
			zap.String("event_id", ev.ID),
			zap.String("order_id", ev.OrderID),
			zap.String("reference", ev.Reference),
		)
		return err
	}

	if order.GatewayRef == "" && ev.Reference != "" {
		if err := s.orders.UpdateByOrderID(ctx, order.OrderID, map[string]interface{}{"gateway_ref": ev.Reference}); err != nil {
			return fmt.Errorf("store payment reference: %w", err)
		}
	}

	_, err = s.applyStatus(ctx, order, ev.Status, ev.Amount, "webhook:"+ev.Type)
	return err
}

// applyStatus moves an open order to status. Terminal statuses are final and
// a success whose amount disagrees with the order is not applied.
func (s *Service) applyStatus(ctx context.Context, order *models.Order, status models.PaymentStatus, amount decimal.Decimal, source string) (*models.Order, error) {
	if status == "" || status == order.PaymentStatus || order.PaymentStatus.Terminal() {
		return order, nil
	}

	if status == models.PaymentStatusSuccess && !amount.IsZero() && !amount.Equal(order.Amount) {
		s.logger.Error("Paid amount does not match order",
			zap.String("order_id", order.OrderID),
			zap.String("amount", order.Amount.StringFixed(2)),
			zap.String("paid", amount.StringFixed(2)),
			zap.String("source", source),
		)
		return order, nil
	}

	updates := map[string]interface{}{"payment_status": status}
	switch status {
	case models.PaymentStatusSuccess:
		updates["order_status"] = models.OrderStatusConfirmed
	case models.PaymentStatusFailed, models.PaymentStatusCancelled:
		updates["order_status"] = models.OrderStatusCancelled
		updates["failure_reason"] = "payment " + string(status)
	}

	changed, err := s.orders.TransitionPayment(ctx, order.OrderID, openPaymentStatuses, updates)
	if err != nil {
		return nil, fmt.Errorf("update payment status: %w", err)
	}
	if !changed {
		// Another path moved the order first.
		return s.orders.FindByOrderID(ctx, order.OrderID)
	}

	updated := *order
	updated.PaymentStatus = status
	if st, ok := updates["order_status"].(models.OrderStatus); ok {
		updated.OrderStatus = st
	}
	if reason, ok := updates["failure_reason"].(string); ok {
		updated.FailureReason = reason
	}

	s.logger.Info("Payment status updated",
		zap.String("order_id", order.OrderID),
		zap.String("from", string(order.PaymentStatus)),
		zap.String("to", string(status)),
		zap.String("source", source),
	)
	if status == models.PaymentStatusSuccess {
		s.reporter.PaymentConfirmed(ctx, &updated)
	}
	return &updated, nil
}

// ReconcilePending polls the gateway for online orders left open longer than
// olderThan and returns how many changed.
func (s *Service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	orders, err := s.orders.FindPendingOnline(ctx, s.opts.Now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("find pending orders: %w", err)
	}

	changed := 0
	for i := range orders {
		order := &orders[i]
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		if order.Gateway == "" || order.GatewayRef == "" {
			continue
		}

		gw, err := s.gateways.Get(order.Gateway)
		if err != nil {
			s.logger.Warn("Pending order has unknown gateway", zap.String("order_id", order.OrderID), zap.String("gateway", order.Gateway))
			continue
		}

		status, err := gw.GetPaymentStatus(ctx, order.GatewayRef)
		if err != nil {
			s.logger.Warn("Reconcile status fetch failed", zap.String("order_id", order.OrderID), zap.Error(err))
			continue
		}

		updated, err := s.applyStatus(ctx, order, status.Status, status.Amount, "reconcile")
		if err != nil {
			s.logger.Error("Reconcile update failed", zap.String("order_id", order.OrderID), zap.Error(err))
			continue
		}
		if updated.PaymentStatus != order.PaymentStatus {
			changed++
		}
	}
	return changed, nil
}

// ExpireStale cancels online orders still open after maxAge and returns how
// many it cancelled. The gateway is asked first: a paid order is confirmed
// instead, and an order whose status cannot be fetched waits for the next
// sweep.
func (s *Service) ExpireStale(ctx context.Context, maxAge time.Duration, limit int) (int64, error) {
	orders, err := s.orders.FindPendingOnline(ctx, s.opts.Now().Add(-maxAge), limit)
	if err != nil {
		return 0, fmt.Errorf("find expired orders: %w", err)
	}

	var expired int64
	for i := range orders {
		order := &orders[i]
		if ctx.Err() != nil {
			return expired, ctx.Err()
		}

		if !s.gatewayAllowsExpiry(ctx, order) {
			continue
		}

		changed, err := s.orders.TransitionPayment(ctx, order.OrderID, openPaymentStatuses, map[string]interface{}{
			"payment_status": models.PaymentStatusCancelled,
			"order_status":   models.OrderStatusCancelled,
			"failure_reason": "payment expired",
		})
		if err != nil {
			s.logger.Error("Expire order failed", zap.String("order_id", order.OrderID), zap.Error(err))
			continue
		}
		if changed {
			expired++
		}
	}

	if expired > 0 {
		s.logger.Info("Expired pending orders", zap.Int64("count", expired))
	}
	return expired, nil
}

// gatewayAllowsExpiry reports whether the gateway still shows order as
// unpaid. Any other answer is applied to the order and blocks expiry.
func (s *Service) gatewayAllowsExpiry(ctx context.Context, order *models.Order) bool {
	if order.Gateway == "" || order.GatewayRef == "" {
		return true
	}
	gw, err := s.gateways.Get(order.Gateway)
	if err != nil {
		s.logger.Warn("Expiring order with unknown gateway", zap.String("order_id", order.OrderID), zap.String("gateway", order.Gateway))
		return true
	}

	status, err := gw.GetPaymentStatus(ctx, order.GatewayRef)
	if err != nil {
		s.logger.Warn("Expire status fetch failed", zap.String("order_id", order.OrderID), zap.Error(err))
		return false
	}
	if status.Status != models.PaymentStatusPending {
		if _, err := s.applyStatus(ctx, order, status.Status, status.Amount, "expire"); err != nil {
			s.logger.Error("Expire update failed", zap.String("order_id", order.OrderID), zap.Error(err))
		}
		return false
	}
	return true
}

package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// OrderRepository handles order database operations.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByOrderID returns an order by its public order id.
func (r *OrderRepository) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByGatewayRef returns an order by its gateway reference or payment session id.
func (r *OrderRepository) FindByGatewayRef(ctx context.Context, ref string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("gateway_ref = ? OR payment_session_id = ?", ref, ref).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

// FindByCustomerID returns a customer's orders, newest first.
func (r *OrderRepository) FindByCustomerID(ctx context.Context, customerID string, limit, page int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Order{}).Where("customer_id = ?", customerID)
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 50
	}
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	if err := db.Limit(limit).Offset(offset).Order("created_at DESC").Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// UpdateByOrderID updates an order by order id.
func (r *OrderRepository) UpdateByOrderID(ctx context.Context, orderID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("order_id = ?", orderID).Updates(updates).Error
}

// TransitionPayment applies updates only while the order's payment status is
// one of from. It reports whether a row changed.
func (r *OrderRepository) TransitionPayment(ctx context.Context, orderID string, from []models.PaymentStatus, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("order_id = ? AND payment_status IN ?", orderID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FindPendingOnline returns online orders still awaiting payment that were
// created before olderThan, oldest first.
func (r *OrderRepository) FindPendingOnline(ctx context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_method = ? AND payment_status IN ? AND created_at < ?",
			models.PaymentMethodOnline,
			[]models.PaymentStatus{models.PaymentStatusPending, models.PaymentStatusProcessing},
			olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

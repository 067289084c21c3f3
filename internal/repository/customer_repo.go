package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// CustomerRepository handles customer database operations.
type CustomerRepository struct {
	db *gorm.DB
}

func NewCustomerRepository(db *gorm.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a new customer.
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	customer.Email = normalizeEmail(customer.Email)
	return r.db.WithContext(ctx).Create(customer).Error
}

// FindByEmail finds a customer by email, case-insensitively.
func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&customer).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// FindByCustomerID finds a customer by public id.
func (r *CustomerRepository) FindByCustomerID(ctx context.Context, customerID string) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).Where("customer_id = ?", customerID).First(&customer).Error; err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

// EmailExists checks whether a customer with the email is registered.
func (r *CustomerRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Customer{}).Where("email = ?", normalizeEmail(email)).Count(&count).Error
	return count > 0, err
}

// UpdatePasswordHash replaces the stored hash only if it still equals
// currentHash, so a reset token cannot be replayed after a change.
func (r *CustomerRepository) UpdatePasswordHash(ctx context.Context, customerID, currentHash, newHash string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Customer{}).
		Where("customer_id = ? AND password_hash = ?", customerID, currentHash).
		Update("password_hash", newHash)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

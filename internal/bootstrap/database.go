package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/ONE2ALLINFOTECH/ecomerce/internal/models"
)

// Migrate ensures the checkout tables exist.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := ensureIndexes(db); err != nil {
		return fmt.Errorf("ensure indexes failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.Order{},
		&models.Customer{},
	}
}

// ensureIndexes adds the composite index the pending-payment sweep scans.
func ensureIndexes(db *gorm.DB) error {
	const name = "idx_orders_method_status_created"
	if db.Migrator().HasIndex(&models.Order{}, name) {
		return nil
	}
	return db.Exec("CREATE INDEX " + name + " ON orders (payment_method, payment_status, created_at)").Error
}

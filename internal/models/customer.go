package models

import "time"

// Customer maps to the `customers` table.
type Customer struct {
	ID           uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	CustomerID   string    `gorm:"column:customer_id;size:64;uniqueIndex" json:"customerId"`
	Name         string    `gorm:"column:name;size:200" json:"name"`
	Email        string    `gorm:"column:email;size:200;uniqueIndex" json:"email"`
	Phone        string    `gorm:"column:phone;size:32" json:"phone"`
	PasswordHash string    `gorm:"column:password_hash;size:100" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Customer) TableName() string {
	return "customers"
}

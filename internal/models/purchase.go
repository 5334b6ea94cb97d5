package models

import (
	"time"
)

// HourPackagePurchase records a confirmed hour-package credit against a
// course. The unique transaction id is what makes ApplyHoursPackage
// idempotent: replaying a confirmed transaction finds the existing row and
// credits nothing.
type HourPackagePurchase struct {
	ID            uint    `json:"id" gorm:"primaryKey"`
	CourseID      uint    `json:"course_id" gorm:"not null;index"`
	TransactionID string  `json:"transaction_id" gorm:"uniqueIndex;not null;size:255" validate:"required"`
	Hours         float64 `json:"hours" gorm:"not null" validate:"required,gt=0"`

	CreditedAt time.Time `json:"credited_at" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
}

func (HourPackagePurchase) TableName() string {
	return "hour_package_purchases"
}

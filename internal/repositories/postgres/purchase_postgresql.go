package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/driveschool-hub/scheduling-service/internal/models"
	"github.com/driveschool-hub/scheduling-service/internal/repositories"
)

type PurchasePostgreSQL struct {
	db *gorm.DB
}

func NewPurchasePostgreSQL(db *gorm.DB) repositories.PurchaseRepository {
	return &PurchasePostgreSQL{db: db}
}

// Create records an hour-package credit. The unique index on transaction_id
// turns a replayed payment notification into ErrDuplicateTransaction.
func (p *PurchasePostgreSQL) Create(ctx context.Context, purchase *models.HourPackagePurchase) error {
	if err := p.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "duplicate key") {
			return repositories.ErrDuplicateTransaction
		}
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	return nil
}

func (p *PurchasePostgreSQL) GetByTransactionID(ctx context.Context, transactionID string) (*models.HourPackagePurchase, error) {
	var purchase models.HourPackagePurchase
	err := p.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&purchase).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get purchase by transaction: %w", err)
	}
	return &purchase, nil
}

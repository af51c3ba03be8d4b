package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tarot-api/internal/models"
	apperrors "tarot-api/internal/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerRepository is the single source of truth for free-quota usage,
// paid deep-reading credits and processed payment references.
type LedgerRepository interface {
	GetFreeUsed(ctx context.Context, identity, day string) (int, error)
	IncrementFreeUsed(ctx context.Context, identity, day string, n int) error
	GetCreditBalance(ctx context.Context, identity string) (int, error)
	GrantCredits(ctx context.Context, identity string, n int) error
	ConsumeCredits(ctx context.Context, identity string, n int) (bool, error)
	IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error)
	MarkPaymentProcessed(ctx context.Context, paymentReference, identity string) error
	ApplyVerifiedPayment(ctx context.Context, identity, paymentReference string, creditsToGrant int) (bool, error)
	ListReadings(ctx context.Context, identity string, limit int) ([]*models.Reading, error)
	SaveReading(ctx context.Context, reading *models.Reading) error
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", apperrors.ErrStorage, err)
}

func (r *ledgerRepository) GetFreeUsed(ctx context.Context, identity, day string) (int, error) {
	var usage models.DailyUsage
	err := r.db.WithContext(ctx).
		Where("identity = ? AND day = ?", identity, day).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return usage.UsedCount, nil
}

func (r *ledgerRepository) IncrementFreeUsed(ctx context.Context, identity, day string, n int) error {
	if n <= 0 {
		return apperrors.ErrInvalidInput
	}

	now := time.Now()
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"used_count": gorm.Expr("used_count + ?", n),
			"updated_at": now,
		}),
	}).Create(&models.DailyUsage{
		Identity:  identity,
		Day:       day,
		UsedCount: n,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error

	if err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *ledgerRepository) GetCreditBalance(ctx context.Context, identity string) (int, error) {
	var balance models.CreditBalance
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr(err)
	}
	return balance.Balance, nil
}

func (r *ledgerRepository) GrantCredits(ctx context.Context, identity string, n int) error {
	if n <= 0 {
		return apperrors.ErrInvalidInput
	}
	return r.grantCredits(r.db.WithContext(ctx), identity, n)
}

func (r *ledgerRepository) grantCredits(tx *gorm.DB, identity string, n int) error {
	now := time.Now()
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "identity"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", n),
			"updated_at": now,
		}),
	}).Create(&models.CreditBalance{
		Identity:  identity,
		Balance:   n,
		UpdatedAt: now,
		CreatedAt: now,
	}).Error

	if err != nil {
		return storageErr(err)
	}
	return nil
}

// ConsumeCredits decrements the balance by n only when it covers n.
// The guarded UPDATE is a single statement, so two concurrent callers
// cannot both observe a sufficient balance and over-draw it.
func (r *ledgerRepository) ConsumeCredits(ctx context.Context, identity string, n int) (bool, error) {
	if n <= 0 {
		return false, apperrors.ErrInvalidInput
	}

	result := r.db.WithContext(ctx).Model(&models.CreditBalance{}).
		Where("identity = ? AND balance >= ?", identity, n).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", n),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return false, storageErr(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (r *ledgerRepository) IsPaymentProcessed(ctx context.Context, paymentReference string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ProcessedPayment{}).
		Where("payment_reference = ?", paymentReference).
		Count(&count).Error
	if err != nil {
		return false, storageErr(err)
	}
	return count > 0, nil
}

func (r *ledgerRepository) MarkPaymentProcessed(ctx context.Context, paymentReference, identity string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_reference"}},
		DoNothing: true,
	}).Create(&models.ProcessedPayment{
		PaymentReference: paymentReference,
		Identity:         identity,
		ProcessedAt:      time.Now(),
	}).Error

	if err != nil {
		return storageErr(err)
	}
	return nil
}

// ApplyVerifiedPayment converts a verified external payment into
// credits exactly once. The payment reference is claimed first, inside
// the same transaction as the grant: if the insert hits an existing
// row the reference has already been credited and the call reports
// success without granting again. A crash anywhere rolls back both the
// claim and the grant together, so a retry starts from a clean slate.
func (r *ledgerRepository) ApplyVerifiedPayment(ctx context.Context, identity, paymentReference string, creditsToGrant int) (bool, error) {
	if creditsToGrant <= 0 {
		return false, apperrors.ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "payment_reference"}},
			DoNothing: true,
		}).Create(&models.ProcessedPayment{
			PaymentReference: paymentReference,
			Identity:         identity,
			ProcessedAt:      time.Now(),
		})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			// Reference already credited; treat a retry as success.
			return nil
		}

		return r.grantCredits(tx, identity, creditsToGrant)
	})

	if err != nil {
		if errors.Is(err, apperrors.ErrStorage) {
			return false, err
		}
		return false, storageErr(err)
	}
	return true, nil
}

func (r *ledgerRepository) SaveReading(ctx context.Context, reading *models.Reading) error {
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return storageErr(err)
	}
	return nil
}

func (r *ledgerRepository) ListReadings(ctx context.Context, identity string, limit int) ([]*models.Reading, error) {
	if limit <= 0 {
		limit = 20
	}

	var readings []*models.Reading
	err := r.db.WithContext(ctx).
		Where("identity = ?", identity).
		Order("created_at DESC").
		Limit(limit).
		Find(&readings).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return readings, nil
}

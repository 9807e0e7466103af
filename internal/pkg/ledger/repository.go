package ledger

import (
	"errors"
	"time"

	"github.com/JonasKleint/ReelKit/app/models"
	"gorm.io/gorm"
)

// Repository provides DB operations used by the ledger service. Every
// mutation that touches the ledger row and its paired transaction log
// entry is applied inside a single database transaction.
type Repository interface {
	GetLedger(userID uint) (*models.UserLedger, error)
	GetLedgerByCustomerRef(ref string) (*models.UserLedger, error)
	SetPaymentCustomerRef(userID uint, ref string) error
	DebitCredit(userID uint, description string) (int, error)
	ApplySubscriptionState(userID uint, status string, endDate *time.Time, credits *int, logDescription string) (*models.UserLedger, error)
	AppendTransaction(userID uint, amount int, transactionType, description string) error
	ListTransactions(userID uint, limit int) ([]models.CreditTransaction, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a ledger repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) GetLedger(userID uint) (*models.UserLedger, error) {
	if userID == 0 {
		return nil, ErrNotFound
	}
	return models.GetOrCreateUserLedger(r.db, userID)
}

func (r *gormRepository) GetLedgerByCustomerRef(ref string) (*models.UserLedger, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	var ledger models.UserLedger
	err := r.db.Where("payment_customer_ref = ?", ref).First(&ledger).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &ledger, nil
}

func (r *gormRepository) SetPaymentCustomerRef(userID uint, ref string) error {
	// Only fills an empty ref so concurrent checkouts stay idempotent.
	return r.db.Model(&models.UserLedger{}).
		Where("user_id = ? AND (payment_customer_ref = '' OR payment_customer_ref IS NULL)", userID).
		UpdateColumn("payment_customer_ref", ref).Error
}

// DebitCredit consumes one credit and appends the matching edit_used log
// entry as a single atomic unit. The decrement is a conditional UPDATE
// guarded by credits > 0, so two racing debits can never both succeed on
// the last credit.
func (r *gormRepository) DebitCredit(userID uint, description string) (int, error) {
	var remaining int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.UserLedger{}).
			Where("user_id = ? AND credits > 0", userID).
			UpdateColumn("credits", gorm.Expr("credits - ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var ledger models.UserLedger
			if err := tx.Where("user_id = ?", userID).First(&ledger).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			return ErrInsufficientCredits
		}

		entry := models.CreditTransaction{
			UserID:          userID,
			Amount:          -1,
			TransactionType: models.TransactionTypeEditUsed,
			Description:     description,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}

		var ledger models.UserLedger
		if err := tx.Where("user_id = ?", userID).First(&ledger).Error; err != nil {
			return err
		}
		remaining = ledger.Credits
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (r *gormRepository) ApplySubscriptionState(userID uint, status string, endDate *time.Time, credits *int, logDescription string) (*models.UserLedger, error) {
	var ledger models.UserLedger
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if _, err := models.GetOrCreateUserLedger(tx, userID); err != nil {
			return err
		}

		updates := map[string]interface{}{
			"subscription_status":   status,
			"subscription_end_date": endDate,
		}
		if credits != nil {
			updates["credits"] = *credits
		}
		if err := tx.Model(&models.UserLedger{}).Where("user_id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}

		if logDescription != "" {
			entry := models.CreditTransaction{
				UserID:          userID,
				Amount:          0,
				TransactionType: models.TransactionTypeSubscriptionGranted,
				Description:     logDescription,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
		}

		return tx.Where("user_id = ?", userID).First(&ledger).Error
	})
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *gormRepository) AppendTransaction(userID uint, amount int, transactionType, description string) error {
	entry := models.CreditTransaction{
		UserID:          userID,
		Amount:          amount,
		TransactionType: transactionType,
		Description:     description,
	}
	return r.db.Create(&entry).Error
}

func (r *gormRepository) ListTransactions(userID uint, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []models.CreditTransaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

package repository

import (
	"context"
	"fmt"
	"time"

	"kopiaku-reconciliation-backend/internal/models"
	"kopiaku-reconciliation-backend/internal/services/matching"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Expose DB for wiring
func (r *TransactionRepository) DB() *gorm.DB {
	return r.db
}

// FetchCandidates returns the unverified transactions plus the subset of the
// requested order ids that already belong to a reconciled transaction.
func (r *TransactionRepository) FetchCandidates(ctx context.Context, orderIDs []string) ([]matching.DbRecord, []string, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ?", models.TransactionUnverified).
		Order("transaction_date ASC").
		Find(&txs).Error
	if err != nil {
		return nil, nil, err
	}

	records := make([]matching.DbRecord, 0, len(txs))
	for _, tx := range txs {
		rec := matching.DbRecord{
			ID:              tx.ID.String(),
			TransactionDate: tx.TransactionDate,
			TotalAmount:     tx.TotalAmount,
		}
		if tx.QrisOrderID != nil {
			rec.OrderID = *tx.QrisOrderID
		}
		records = append(records, rec)
	}

	var existing []string
	if len(orderIDs) > 0 {
		err = r.db.WithContext(ctx).
			Model(&models.Transaction{}).
			Where("qris_order_id IN ?", orderIDs).
			Pluck("qris_order_id", &existing).Error
		if err != nil {
			return nil, nil, err
		}
	}

	return records, existing, nil
}

// SubmitBatch persists the whole instruction list in a single DB
// transaction. Any failure rolls everything back.
func (r *TransactionRepository) SubmitBatch(ctx context.Context, instructions []matching.Instruction) error {
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ins := range instructions {
			switch {
			case ins.Verify != nil:
				updates := map[string]interface{}{
					"status":      models.TransactionVerified,
					"settled_at":  ins.Verify.TransactionTime,
					"net_amount":  ins.Verify.NetAmount,
					"verified_at": now,
				}
				if ins.Verify.OrderID != "" {
					updates["qris_order_id"] = ins.Verify.OrderID
				}
				res := tx.Model(&models.Transaction{}).
					Where("id = ? AND status = ?", ins.Verify.TransactionID, models.TransactionUnverified).
					Updates(updates)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return fmt.Errorf("transaction %s is not unverified", ins.Verify.TransactionID)
				}

			case ins.CreateNew != nil:
				record := models.Transaction{
					ID:              uuid.New(),
					TransactionDate: ins.CreateNew.TransactionTime,
					TotalAmount:     ins.CreateNew.TotalAmount,
					NetAmount:       ins.CreateNew.NetAmount,
					PaymentMethod:   "QRIS",
					Status:          models.TransactionVerified,
					SettledAt:       &ins.CreateNew.TransactionTime,
					VerifiedAt:      &now,
					CreatedAt:       now,
				}
				if ins.CreateNew.OrderID != "" {
					oid := ins.CreateNew.OrderID
					record.QrisOrderID = &oid
				}
				if err := tx.Create(&record).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ListByStatus pages through transactions for the operator view.
func (r *TransactionRepository) ListByStatus(ctx context.Context, status, cursor string, limit int) ([]models.Transaction, string, bool, error) {
	var txs []models.Transaction
	query := r.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit + 1)

	if status != "" && status != "all" {
		query = query.Where("status = ?", status)
	}
	if cursor != "" {
		query = query.Where("id > ?", cursor)
	}

	if err := query.Find(&txs).Error; err != nil {
		return nil, "", false, err
	}

	hasMore := false
	var nextCursor string
	if len(txs) > limit {
		hasMore = true
		nextCursor = txs[limit-1].ID.String()
		txs = txs[:limit]
	}

	return txs, nextCursor, hasMore, nil
}

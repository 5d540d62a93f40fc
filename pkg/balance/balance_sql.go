package balance

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type SQLRepository struct {
	db *gorm.DB
}

func NewSQLRepository(db *gorm.DB) *SQLRepository {
	return &SQLRepository{
		db: db,
	}
}

func (r *SQLRepository) dbWithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

func (r *SQLRepository) GetBalanceByID(ctx context.Context, id int64) (*Balance, error) {
	var b Balance
	if err := r.dbWithContext(ctx).Where("id = ?", id).Take(&b).Error; err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *SQLRepository) GetBalanceByCurrencyAndAccountID(ctx context.Context, currency, accountID string) (*Balance, error) {
	var b Balance
	err := r.dbWithContext(ctx).
		Where("currency = ? AND account_id = ?", currency, accountID).
		Take(&b).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (r *SQLRepository) GetAllCurrencyBalances(ctx context.Context, accountID string) ([]*Balance, error) {
	var out []*Balance
	err := r.dbWithContext(ctx).
		Where("account_id = ?", accountID).
		Order("currency").
		Find(&out).Error
	return out, err
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrBalanceNotFound
	}
	return err
}

// Package balance is the read side of account balances the exchange
// consults. Writes belong to the funds service and are not exposed here.
package balance

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrBalanceNotFound = errors.New("balance not found")

type Balance struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	Currency  string          `gorm:"uniqueIndex:idx_balances_account_currency" json:"currency"`
	AccountID string          `gorm:"uniqueIndex:idx_balances_account_currency" json:"account_id"`
	Available decimal.Decimal `gorm:"type:numeric(36,18)" json:"available"`
	Current   decimal.Decimal `gorm:"type:numeric(36,18)" json:"current"`
	Pending   decimal.Decimal `gorm:"type:numeric(36,18)" json:"pending"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func (Balance) TableName() string { return "balances" }

type Repository interface {
	GetBalanceByID(ctx context.Context, id int64) (*Balance, error)
	GetBalanceByCurrencyAndAccountID(ctx context.Context, currency, accountID string) (*Balance, error)
	GetAllCurrencyBalances(ctx context.Context, accountID string) ([]*Balance, error)
}

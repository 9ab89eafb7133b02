package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Penalty is one calendar day's accrual record for an overdue installment.
// Amount is the cumulative penalty to date as of Date. Rows are unique per
// (installment, date) and subject to retroactive rewrite when a payment is
// recorded with a backdated payment date.
type Penalty struct {
	ID            int64           `json:"id"`
	InstallmentID int64           `json:"installmentId"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
}

// LatestPenalty returns the accrued penalty to date: the cumulative amount of
// the newest row, or zero when none exist. Rows must be in ascending date
// order.
func LatestPenalty(rows []*Penalty) decimal.Decimal {
	if len(rows) == 0 {
		return decimal.Zero
	}
	return rows[len(rows)-1].Amount
}

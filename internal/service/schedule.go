package service

import (
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/shopspring/decimal"
)

// ScheduleEntryNotStarted marks a projected entry for a loan whose
// installments have not been materialized yet.
const ScheduleEntryNotStarted = "NOT_STARTED"

// ScheduleEntry is one row of an amortization schedule, either projected from
// loan terms or reflecting a persisted installment.
type ScheduleEntry struct {
	Order            int32           `json:"order"`
	DueDate          time.Time       `json:"dueDate"`
	SuggestedAmount  decimal.Decimal `json:"suggestedAmount"`
	Status           string          `json:"status"`
	PaidAmount       decimal.Decimal `json:"paidAmount"`
	Penalty          decimal.Decimal `json:"penalty"`
	PenaltyRemaining decimal.Decimal `json:"penaltyRemaining"`
}

// CalculateSchedule derives the amortization schedule for one loan share.
//
// Total payable = round(share + share*tenure*(interest/factor) + share*fee, 5).
// The total is split over the tenure in scaled integer units (10^-5); the
// floor-division remainder is distributed one unit at a time to the earliest
// installments so the entries sum to the total exactly.
func CalculateSchedule(share decimal.Decimal, tenure int32, interest, processingFee decimal.Decimal, periodicity domain.Periodicity, startDate time.Time) ([]ScheduleEntry, error) {
	factor, err := periodicity.Factor()
	if err != nil {
		return nil, err
	}

	interestTotal := share.Mul(decimal.NewFromInt32(tenure)).Mul(interest.Div(decimal.NewFromInt(factor)))
	feeTotal := share.Mul(processingFee)
	totalPayable := domain.RoundMoney(share.Add(interestTotal).Add(feeTotal))

	totalUnits := domain.ToScaledUnits(totalPayable)
	baseUnits := totalUnits / int64(tenure)
	remainder := totalUnits - baseUnits*int64(tenure)

	entries := make([]ScheduleEntry, 0, tenure)
	for t := 0; t < int(tenure); t++ {
		dueDate, err := periodicity.DueDate(startDate, t)
		if err != nil {
			return nil, err
		}

		units := baseUnits
		if remainder > 0 {
			units++
			remainder--
		}

		entries = append(entries, ScheduleEntry{
			Order:           int32(t + 1),
			DueDate:         dueDate,
			SuggestedAmount: domain.FromScaledUnits(units),
			Status:          ScheduleEntryNotStarted,
			PaidAmount:      decimal.Zero,
		})
	}

	return entries, nil
}

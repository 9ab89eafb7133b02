package service

import (
	"context"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PenaltyEngine accrues daily penalties on overdue installments and
// retroactively corrects penalty history when a payment is backdated.
type PenaltyEngine struct {
	txm          domain.TxManager
	installments domain.InstallmentRepository
	repayments   domain.RepaymentRepository
	penalties    domain.PenaltyRepository
	dailyRate    decimal.Decimal
}

// NewPenaltyEngine creates a PenaltyEngine with the system daily penalty rate.
func NewPenaltyEngine(txm domain.TxManager, installments domain.InstallmentRepository, repayments domain.RepaymentRepository, penalties domain.PenaltyRepository, dailyRate decimal.Decimal) *PenaltyEngine {
	return &PenaltyEngine{
		txm:          txm,
		installments: installments,
		repayments:   repayments,
		penalties:    penalties,
		dailyRate:    dailyRate,
	}
}

// Accrue walks the installment's penalty history forward one day at a time up
// to asOf, appending a row per chargeable day. It resumes from the last
// recorded penalty date, so repeat invocations for the same day are no-ops.
// Each call is its own transaction; the installment row is locked so accrual
// cannot race a concurrent payment allocation.
func (e *PenaltyEngine) Accrue(ctx context.Context, installmentID int64, asOf time.Time) error {
	_, err := e.accrue(ctx, installmentID, asOf)
	return err
}

func (e *PenaltyEngine) accrue(ctx context.Context, installmentID int64, asOf time.Time) (created int, err error) {
	err = e.txm.WithinTx(ctx, func(tx domain.Tx) error {
		installment, err := e.installments.GetForUpdate(ctx, tx, installmentID)
		if err != nil {
			return err
		}
		created, err = e.accrueTx(ctx, tx, installment, asOf)
		return err
	})
	return created, err
}

func (e *PenaltyEngine) accrueTx(ctx context.Context, tx domain.Tx, installment *domain.Installment, asOf time.Time) (int, error) {
	if installment.Status.PrincipalSettled() {
		return 0, nil
	}

	asOf = dateOnly(asOf)
	dueDate := dateOnly(installment.DueDate)
	if !asOf.After(dueDate) {
		return 0, nil
	}

	rows, err := e.penalties.ListByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return 0, err
	}

	cumulative := domain.LatestPenalty(rows)
	last := dueDate
	if len(rows) > 0 {
		if d := dateOnly(rows[len(rows)-1].Date); d.After(last) {
			last = d
		}
	}

	details, err := e.repayments.ListDetailsByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return 0, err
	}
	remaining := installment.AmountRemaining(details)
	increment := domain.RoundMoney(remaining.Mul(e.dailyRate))

	created := 0
	for day := last.AddDate(0, 0, 1); !day.After(asOf); day = day.AddDate(0, 0, 1) {
		// Days with no outstanding balance or a zero increment carry the
		// cumulative forward without a row.
		if remaining.LessThanOrEqual(decimal.Zero) || increment.LessThanOrEqual(decimal.Zero) {
			continue
		}
		cumulative = cumulative.Add(increment)
		if err := e.penalties.Create(ctx, tx, &domain.Penalty{
			InstallmentID: installment.ID,
			Date:          day,
			Amount:        cumulative,
		}); err != nil {
			return 0, err
		}
		created++
	}

	return created, nil
}

// CorrectAfter rewrites penalty rows dated strictly after effectiveDate,
// replaying them at the installment's current flat daily increment. When the
// balance is already settled as of the payment date the stale rows are
// deleted outright. Returns whether any row changed. Must run inside the
// caller's transaction with the installment row locked.
func (e *PenaltyEngine) CorrectAfter(ctx context.Context, tx domain.Tx, installment *domain.Installment, effectiveDate time.Time) (bool, error) {
	effectiveDate = dateOnly(effectiveDate)

	rows, err := e.penalties.ListByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return false, err
	}

	var stale []*domain.Penalty
	base := decimal.Zero
	for _, row := range rows {
		d := dateOnly(row.Date)
		if d.After(effectiveDate) {
			stale = append(stale, row)
		} else {
			base = row.Amount
		}
	}
	if len(stale) == 0 {
		return false, nil
	}

	details, err := e.repayments.ListDetailsByInstallment(ctx, tx, installment.ID)
	if err != nil {
		return false, err
	}
	remaining := installment.AmountRemaining(details)
	increment := domain.RoundMoney(remaining.Mul(e.dailyRate))

	// Fully settled as of the payment date: no penalty should have accrued
	// past it.
	if remaining.LessThanOrEqual(decimal.Zero) || increment.LessThanOrEqual(decimal.Zero) {
		if _, err := e.penalties.DeleteAfter(ctx, tx, installment.ID, effectiveDate); err != nil {
			return false, err
		}
		return true, nil
	}

	// Replay the remaining days at the single post-payment rate, not a
	// day-by-day resimulation.
	for _, row := range stale {
		base = base.Add(increment)
		if err := e.penalties.UpdateAmount(ctx, tx, row.ID, base); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SweepResult summarizes one daily sweep: the installments processed, the
// accrual failures, and the shares that gained at least one penalty row.
type SweepResult struct {
	Processed       int
	Failed          int
	AccruedShareIDs []int64
}

// RunDailySweep accrues penalties on every open installment of an approved
// share. Each installment is its own transaction; a failure is logged and the
// sweep moves on.
func (e *PenaltyEngine) RunDailySweep(ctx context.Context, asOf time.Time) SweepResult {
	var result SweepResult

	installments, err := e.installments.ListOpenForAccrual(ctx)
	if err != nil {
		log.Error().Err(err).Msg("penalty sweep: listing open installments")
		return result
	}

	accrued := make(map[int64]bool)
	for _, installment := range installments {
		created, err := e.accrue(ctx, installment.ID, asOf)
		if err != nil {
			result.Failed++
			log.Error().
				Err(err).
				Int64("installment_id", installment.ID).
				Time("as_of", asOf).
				Msg("penalty sweep: accrual failed")
			continue
		}
		result.Processed++
		if created > 0 && !accrued[installment.LoanShareID] {
			accrued[installment.LoanShareID] = true
			result.AccruedShareIDs = append(result.AccruedShareIDs, installment.LoanShareID)
		}
	}
	return result
}

// dateOnly strips the time-of-day component; ledger dates are calendar dates.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validLoan() *Loan {
	return &Loan{
		Amount:      decimal.NewFromInt(1000),
		Tenure:      10,
		Periodicity: PeriodicityMonthly,
		Status:      LoanStatusPending,
	}
}

func TestLoanValidate(t *testing.T) {
	assert.NoError(t, validLoan().Validate())

	loan := validLoan()
	loan.Amount = decimal.Zero
	assert.ErrorIs(t, loan.Validate(), ErrLoanAmountInvalid)

	loan = validLoan()
	loan.Tenure = 0
	assert.ErrorIs(t, loan.Validate(), ErrLoanTenureInvalid)

	loan = validLoan()
	loan.Tenure = 61
	assert.ErrorIs(t, loan.Validate(), ErrLoanTenureInvalid)

	loan = validLoan()
	loan.Interest = decimal.RequireFromString("-5")
	assert.ErrorIs(t, loan.Validate(), ErrLoanRateInvalid)

	loan = validLoan()
	loan.ProcessingFee = decimal.RequireFromString("-0.01")
	assert.ErrorIs(t, loan.Validate(), ErrLoanRateInvalid)

	loan = validLoan()
	loan.Periodicity = "fortnightly"
	assert.ErrorIs(t, loan.Validate(), ErrInvalidPeriodicity)
}

func TestLoanIsActive(t *testing.T) {
	loan := validLoan()
	assert.True(t, loan.IsActive())

	// A terminal status alone does not deactivate the loan
	loan.Status = LoanStatusCompleted
	assert.True(t, loan.IsActive())

	// Neither does a closing date alone
	closing := date(2024, time.June, 1)
	loan = validLoan()
	loan.ClosingDate = &closing
	assert.True(t, loan.IsActive())

	// Both together do
	loan.Status = LoanStatusCompleted
	assert.False(t, loan.IsActive())

	loan.Status = LoanStatusWrittenOff
	assert.False(t, loan.IsActive())

	loan.Status = LoanStatusSettled
	assert.False(t, loan.IsActive())

	loan.Status = LoanStatusHold
	assert.True(t, loan.IsActive())
}

func TestPeriodicityFactor(t *testing.T) {
	daily, err := PeriodicityDaily.Factor()
	assert.NoError(t, err)
	assert.Equal(t, int64(365), daily)

	weekly, err := PeriodicityWeekly.Factor()
	assert.NoError(t, err)
	assert.Equal(t, int64(52), weekly)

	monthly, err := PeriodicityMonthly.Factor()
	assert.NoError(t, err)
	assert.Equal(t, int64(12), monthly)

	_, err = Periodicity("hourly").Factor()
	assert.ErrorIs(t, err, ErrInvalidPeriodicity)
}

func TestPeriodicityDueDate_MonthlyClampsToMonthEnd(t *testing.T) {
	start := date(2023, time.January, 31)

	first, err := PeriodicityMonthly.DueDate(start, 0)
	assert.NoError(t, err)
	assert.Equal(t, date(2023, time.February, 28), first)

	second, err := PeriodicityMonthly.DueDate(start, 1)
	assert.NoError(t, err)
	assert.Equal(t, date(2023, time.March, 31), second)

	// Year rollover
	december, err := PeriodicityMonthly.DueDate(start, 11)
	assert.NoError(t, err)
	assert.Equal(t, date(2024, time.January, 31), december)
}

func TestInstallmentBalances(t *testing.T) {
	installment := &Installment{ID: 7, SuggestedAmount: decimal.NewFromInt(250)}
	details := []*InstallmentDetail{
		{InstallmentID: 7, Amount: decimal.NewFromInt(100), PenaltyAmount: decimal.NewFromInt(2)},
		{InstallmentID: 7, Amount: decimal.NewFromInt(50), PenaltyAmount: decimal.Zero},
		{InstallmentID: 8, Amount: decimal.NewFromInt(999)}, // other installment, ignored
	}

	assert.Equal(t, "100", installment.AmountRemaining(details).String())
	assert.Equal(t, "8", installment.PenaltyRemaining(decimal.NewFromInt(10), details).String())
}

func TestRoundMoneyHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, "0.00001", RoundMoney(decimal.RequireFromString("0.000005")).String())
	assert.Equal(t, "-0.00001", RoundMoney(decimal.RequireFromString("-0.000005")).String())
	assert.Equal(t, "1.23457", RoundMoney(decimal.RequireFromString("1.2345678")).String())
}

func TestScaledUnitsRoundTrip(t *testing.T) {
	amount := RoundMoney(decimal.RequireFromString("1008.33333"))
	units := ToScaledUnits(amount)
	assert.Equal(t, int64(100833333), units)
	assert.True(t, FromScaledUnits(units).Equal(amount))
}

package service

import (
	"testing"
	"time"

	"github.com/emibook/emibook-backend/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculateSchedule_SumsToTotalPayable(t *testing.T) {
	cases := []struct {
		name        string
		share       string
		tenure      int32
		interest    string
		fee         string
		periodicity domain.Periodicity
		wantTotal   string
	}{
		{"no interest", "1000", 4, "0", "0", domain.PeriodicityMonthly, "1000"},
		{"monthly interest", "1000", 10, "0.01", "0", domain.PeriodicityMonthly, "1008.33333"},
		{"with fee", "1000", 4, "0", "0.02", domain.PeriodicityMonthly, "1020"},
		{"weekly", "500", 7, "0.05", "0", domain.PeriodicityWeekly, "503.36538"},
		{"uneven split", "100", 3, "0", "0", domain.PeriodicityDaily, "100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := CalculateSchedule(
				decimal.RequireFromString(tc.share), tc.tenure,
				decimal.RequireFromString(tc.interest), decimal.RequireFromString(tc.fee),
				tc.periodicity, day(2024, time.January, 15))
			require.NoError(t, err)
			require.Len(t, entries, int(tc.tenure))

			sum := decimal.Zero
			for _, entry := range entries {
				sum = sum.Add(entry.SuggestedAmount)
			}
			assert.Equal(t, tc.wantTotal, sum.String())
		})
	}
}

func TestCalculateSchedule_RemainderGoesToEarliestInstallments(t *testing.T) {
	// 100 / 3 leaves a 1-unit remainder at the 5th decimal.
	entries, err := CalculateSchedule(decimal.NewFromInt(100), 3,
		decimal.Zero, decimal.Zero, domain.PeriodicityMonthly, day(2024, time.January, 1))
	require.NoError(t, err)

	assert.Equal(t, "33.33334", entries[0].SuggestedAmount.String())
	assert.Equal(t, "33.33333", entries[1].SuggestedAmount.String())
	assert.Equal(t, "33.33333", entries[2].SuggestedAmount.String())
}

func TestCalculateSchedule_DueDates(t *testing.T) {
	start := day(2024, time.January, 15)

	entries, err := CalculateSchedule(decimal.NewFromInt(300), 3,
		decimal.Zero, decimal.Zero, domain.PeriodicityDaily, start)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 16), entries[0].DueDate)
	assert.Equal(t, day(2024, time.January, 18), entries[2].DueDate)

	entries, err = CalculateSchedule(decimal.NewFromInt(300), 3,
		decimal.Zero, decimal.Zero, domain.PeriodicityWeekly, start)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.January, 22), entries[0].DueDate)
	assert.Equal(t, day(2024, time.February, 5), entries[2].DueDate)

	entries, err = CalculateSchedule(decimal.NewFromInt(300), 3,
		decimal.Zero, decimal.Zero, domain.PeriodicityMonthly, start)
	require.NoError(t, err)
	assert.Equal(t, day(2024, time.February, 15), entries[0].DueDate)
	assert.Equal(t, day(2024, time.April, 15), entries[2].DueDate)
}

func TestCalculateSchedule_MonthEndClamping(t *testing.T) {
	entries, err := CalculateSchedule(decimal.NewFromInt(300), 3,
		decimal.Zero, decimal.Zero, domain.PeriodicityMonthly, day(2024, time.January, 31))
	require.NoError(t, err)

	// 2024 is a leap year
	assert.Equal(t, day(2024, time.February, 29), entries[0].DueDate)
	assert.Equal(t, day(2024, time.March, 31), entries[1].DueDate)
	assert.Equal(t, day(2024, time.April, 30), entries[2].DueDate)
}

func TestCalculateSchedule_InvalidPeriodicity(t *testing.T) {
	_, err := CalculateSchedule(decimal.NewFromInt(300), 3,
		decimal.Zero, decimal.Zero, domain.Periodicity("quarterly"), day(2024, time.January, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidPeriodicity)
}

func TestInstallmentStatusFor(t *testing.T) {
	suggested := decimal.NewFromInt(250)

	assert.Equal(t, domain.InstallmentUnpaid,
		InstallmentStatusFor(suggested, decimal.NewFromInt(250), decimal.Zero))
	assert.Equal(t, domain.InstallmentPartiallyPaid,
		InstallmentStatusFor(suggested, decimal.NewFromInt(100), decimal.Zero))
	assert.Equal(t, domain.InstallmentPaidWithoutPenalty,
		InstallmentStatusFor(suggested, decimal.Zero, decimal.NewFromInt(10)))
	assert.Equal(t, domain.InstallmentPaid,
		InstallmentStatusFor(suggested, decimal.Zero, decimal.Zero))
	// Overpaid stays PAID even with negative remaining
	assert.Equal(t, domain.InstallmentPaid,
		InstallmentStatusFor(suggested, decimal.NewFromInt(-100), decimal.Zero))
}

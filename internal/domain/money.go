package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits carried by every monetary
// value in the ledger. Amounts are rounded to this scale at the boundary and
// whenever a derived amount is computed.
const MoneyScale = 5

// RoundMoney rounds d to the ledger's fixed scale.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ToScaledUnits converts an already-rounded amount into integer minimal units
// (10^-5). The schedule generator distributes remainders in these units so
// installment amounts sum to the total exactly.
func ToScaledUnits(d decimal.Decimal) int64 {
	return d.Shift(MoneyScale).IntPart()
}

// FromScaledUnits converts integer minimal units back into a decimal amount.
func FromScaledUnits(units int64) decimal.Decimal {
	return decimal.New(units, -MoneyScale)
}

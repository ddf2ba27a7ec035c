package service

import "github.com/shopspring/decimal"

// CommissionPolicy computes the platform's cut of a released payment. The
// owner is credited amount minus Fee(amount).
type CommissionPolicy interface {
	Fee(amount decimal.Decimal) decimal.Decimal
}

// FlatRatePolicy takes a fixed fraction expressed in basis points
// (500 = 5%). Rounded to 2 decimal places, half up.
type FlatRatePolicy struct {
	BasisPoints int64
}

func NewFlatRatePolicy(bps int64) FlatRatePolicy {
	return FlatRatePolicy{BasisPoints: bps}
}

func (p FlatRatePolicy) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.
		Mul(decimal.NewFromInt(p.BasisPoints)).
		Div(decimal.NewFromInt(10000)).
		Round(2)
}

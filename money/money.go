/*
Package money computes the financial totals of a sale.

PURPOSE:
  Turns a list of priced line items plus payment metadata into the rounded
  aggregates stored on a committed sale: revenue, cost, VAT, POS fee and
  net profit. Pure functions only. No state, no failure path.

ROUNDING:
  Every aggregate is summed in full precision and rounded ONCE at the end
  with Round2 (half-up, 2 decimal places, small epsilon bias). Rounding
  each line first and then summing gives different cents on multi-item
  sales and is NOT what this package does.

  lines: 3 x 0.335, 3 x 0.335
    aggregate: round2(2.01)            = 2.01
    per line:  round2(1.005) * 2       = 2.02

POS FEE:
  Only CARD payments carry a fee.
    RATE:  round2(totalRevenue * value)
    FIXED: round2(value)

SEE ALSO:
  - ledger/ledger.go: Calls CalcSaleTotals while committing a sale
  - reports/analytics.go: Reuses Round2 for period aggregates
*/
package money

import "github.com/shopspring/decimal"

// =============================================================================
// PAYMENT METADATA
// =============================================================================

type PaymentType string

const (
	PaymentCash PaymentType = "CASH"
	PaymentCard PaymentType = "CARD"
	PaymentIBAN PaymentType = "IBAN"
)

// Valid reports whether p is one of the known payment types.
func (p PaymentType) Valid() bool {
	switch p {
	case PaymentCash, PaymentCard, PaymentIBAN:
		return true
	}
	return false
}

type FeeType string

const (
	FeeRate  FeeType = "RATE"
	FeeFixed FeeType = "FIXED"
)

func (f FeeType) Valid() bool { return f == FeeRate || f == FeeFixed }

// =============================================================================
// LINES AND TOTALS
// =============================================================================

// Line is the priced part of a sale item needed for calculation.
type Line struct {
	Qty           int
	UnitSalePrice decimal.Decimal
	UnitCostPrice decimal.Decimal
	VatRate       decimal.Decimal
}

// Revenue returns qty * unit sale price, unrounded.
func (l Line) Revenue() decimal.Decimal {
	return l.UnitSalePrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Cost returns qty * unit cost price, unrounded.
func (l Line) Cost() decimal.Decimal {
	return l.UnitCostPrice.Mul(decimal.NewFromInt(int64(l.Qty)))
}

// Vat returns qty * unit sale price * VAT rate, unrounded.
func (l Line) Vat() decimal.Decimal {
	return l.Revenue().Mul(l.VatRate)
}

// Totals holds the rounded aggregates of a sale.
type Totals struct {
	TotalRevenue decimal.Decimal
	TotalCost    decimal.Decimal
	TotalVat     decimal.Decimal
	PosFeeAmount decimal.Decimal
	NetProfit    decimal.Decimal
}

// CalcSaleTotals computes the totals for lines paid with paymentType.
// feeValue is a fraction for FeeRate and an amount for FeeFixed.
func CalcSaleTotals(lines []Line, paymentType PaymentType, feeType FeeType, feeValue decimal.Decimal) Totals {
	revenue, cost, vat := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range lines {
		revenue = revenue.Add(l.Revenue())
		cost = cost.Add(l.Cost())
		vat = vat.Add(l.Vat())
	}

	t := Totals{
		TotalRevenue: Round2(revenue),
		TotalCost:    Round2(cost),
		TotalVat:     Round2(vat),
	}
	t.PosFeeAmount = PosFee(t.TotalRevenue, paymentType, feeType, feeValue)
	t.NetProfit = Round2(t.TotalRevenue.Sub(t.TotalCost).Sub(t.PosFeeAmount))
	return t
}

// PosFee returns the processing fee for an already rounded revenue.
func PosFee(revenue decimal.Decimal, paymentType PaymentType, feeType FeeType, feeValue decimal.Decimal) decimal.Decimal {
	if paymentType != PaymentCard {
		return Zero()
	}
	switch feeType {
	case FeeRate:
		return Round2(revenue.Mul(feeValue))
	case FeeFixed:
		return Round2(feeValue)
	}
	return Zero()
}

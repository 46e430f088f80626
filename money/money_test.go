package money_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/sale-ledger/money"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func line(qty int, sale, cost, vat string) money.Line {
	return money.Line{Qty: qty, UnitSalePrice: d(sale), UnitCostPrice: d(cost), VatRate: d(vat)}
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), field)
}

// =============================================================================
// TOTALS
// =============================================================================

func TestCalcSaleTotals_Cash(t *testing.T) {
	lines := []money.Line{line(2, "25", "17", "0.10")}

	got := money.CalcSaleTotals(lines, money.PaymentCash, money.FeeRate, d("0.02"))

	assertMoney(t, "50.00", got.TotalRevenue, "revenue")
	assertMoney(t, "34.00", got.TotalCost, "cost")
	assertMoney(t, "5.00", got.TotalVat, "vat")
	assertMoney(t, "0.00", got.PosFeeAmount, "fee")
	assertMoney(t, "16.00", got.NetProfit, "net profit")
}

func TestCalcSaleTotals_CardRateFee(t *testing.T) {
	lines := []money.Line{line(2, "25", "17", "0.10")}

	got := money.CalcSaleTotals(lines, money.PaymentCard, money.FeeRate, d("0.02"))

	assertMoney(t, "1.00", got.PosFeeAmount, "fee")
	assertMoney(t, "15.00", got.NetProfit, "net profit")
}

func TestCalcSaleTotals_CardFixedFee(t *testing.T) {
	lines := []money.Line{line(2, "25", "17", "0.10")}

	got := money.CalcSaleTotals(lines, money.PaymentCard, money.FeeFixed, d("5"))

	assertMoney(t, "5.00", got.PosFeeAmount, "fee")
	assertMoney(t, "11.00", got.NetProfit, "net profit")
}

func TestCalcSaleTotals_IBANHasNoFee(t *testing.T) {
	lines := []money.Line{line(1, "100", "60", "0.20")}

	got := money.CalcSaleTotals(lines, money.PaymentIBAN, money.FeeFixed, d("3"))

	assertMoney(t, "0.00", got.PosFeeAmount, "fee")
	assertMoney(t, "40.00", got.NetProfit, "net profit")
	assertMoney(t, "20.00", got.TotalVat, "vat")
}

func TestCalcSaleTotals_RoundsAggregateNotLines(t *testing.T) {
	// GIVEN: two lines whose line revenue sits exactly on a half cent (1.005)
	lines := []money.Line{line(3, "0.335", "0", "0"), line(3, "0.335", "0", "0")}

	// WHEN: totals are computed
	got := money.CalcSaleTotals(lines, money.PaymentCash, money.FeeRate, decimal.Zero)

	// THEN: the aggregate 2.01 is rounded once; per-line rounding would give 2.02
	assertMoney(t, "2.01", got.TotalRevenue, "revenue")

	perLine := money.Round2(lines[0].Revenue()).Add(money.Round2(lines[1].Revenue()))
	assertMoney(t, "2.02", perLine, "per-line sum")
}

func TestCalcSaleTotals_NegativeNetProfit(t *testing.T) {
	lines := []money.Line{line(1, "10", "12", "0")}

	got := money.CalcSaleTotals(lines, money.PaymentCard, money.FeeFixed, d("0.5"))

	assertMoney(t, "-2.50", got.NetProfit, "net profit")
}

func TestCalcSaleTotals_Empty(t *testing.T) {
	got := money.CalcSaleTotals(nil, money.PaymentCard, money.FeeRate, d("0.02"))

	assertMoney(t, "0.00", got.TotalRevenue, "revenue")
	assertMoney(t, "0.00", got.PosFeeAmount, "fee")
	assertMoney(t, "0.00", got.NetProfit, "net profit")
}

// =============================================================================
// ROUND2
// =============================================================================

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1.005", "1.01"},
		{"1.004", "1.00"},
		{"2.675", "2.68"},
		{"0.125", "0.13"},
		{"-1.005", "-1.00"},
		{"-1.006", "-1.01"},
		{"10", "10.00"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assertMoney(t, tc.want, money.Round2(d(tc.in)), tc.in)
		})
	}
}

func TestRound2_FloatSourcedInput(t *testing.T) {
	// 1.005 has no exact float64 form; FromFloat keeps the shortest decimal
	assertMoney(t, "1.01", money.Round2(money.FromFloat(1.005)), "1.005")
}

func TestPaymentAndFeeTypes_Valid(t *testing.T) {
	assert.True(t, money.PaymentCash.Valid())
	assert.True(t, money.PaymentIBAN.Valid())
	assert.False(t, money.PaymentType("CHEQUE").Valid())
	assert.True(t, money.FeeFixed.Valid())
	assert.False(t, money.FeeType("PERCENT").Valid())
}

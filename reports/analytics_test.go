package reports_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/ledger/store"
	"github.com/warp/sale-ledger/money"
	"github.com/warp/sale-ledger/reports"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var now = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func analyzer() *reports.Analyzer {
	return &reports.Analyzer{Now: func() time.Time { return now }}
}

func item(id string, qty int, sale, cost string) ledger.SaleItem {
	return ledger.SaleItem{
		ProductID:     catalog.ProductID(id),
		Name:          "Product " + id,
		Qty:           qty,
		UnitSalePrice: decimal.RequireFromString(sale),
		UnitCostPrice: decimal.RequireFromString(cost),
		VatRate:       decimal.RequireFromString("0.10"),
	}
}

// saleAt builds a committed-looking sale with totals from the calculator.
func saleAt(at time.Time, staff string, payment money.PaymentType, items ...ledger.SaleItem) ledger.Sale {
	t := money.CalcSaleTotals(ledger.Lines(items), payment, money.FeeFixed, decimal.NewFromInt(1))
	return ledger.Sale{
		ID:              ledger.SaleID(at.Format(time.RFC3339Nano) + staff),
		ClientRequestID: at.Format(time.RFC3339Nano) + staff,
		CreatedAt:       at,
		CreatedBy:       ledger.Creator{ID: staff, Name: "Staff " + staff, Role: "cashier"},
		PaymentType:     payment,
		PosFeeType:      money.FeeFixed,
		PosFeeValue:     decimal.NewFromInt(1),
		PosFeeAmount:    t.PosFeeAmount,
		TotalRevenue:    t.TotalRevenue,
		TotalCost:       t.TotalCost,
		TotalVat:        t.TotalVat,
		NetProfit:       t.NetProfit,
		Items:           items,
	}
}

func fixed(d decimal.Decimal) string { return d.StringFixed(2) }

// =============================================================================
// PERIOD WINDOWS
// =============================================================================

func TestPeriod_SaleTodayIsInEveryPeriod(t *testing.T) {
	sales := []ledger.Sale{saleAt(now.Add(-time.Hour), "u1", money.PaymentCash, item("p1", 2, "25", "17"))}

	for _, p := range reports.Periods() {
		t.Run(string(p), func(t *testing.T) {
			got := analyzer().CalcAnalyticsForPeriod(sales, p, "")
			assert.Equal(t, "50.00", fixed(got.Revenue))
			assert.Equal(t, 2, got.SoldQty)
		})
	}
}

func TestPeriod_SaleFrom400DaysAgoIsInNoPeriod(t *testing.T) {
	sales := []ledger.Sale{saleAt(now.AddDate(0, 0, -400), "u1", money.PaymentCash, item("p1", 2, "25", "17"))}

	for _, p := range reports.Periods() {
		t.Run(string(p), func(t *testing.T) {
			got := analyzer().CalcAnalyticsForPeriod(sales, p, "")
			assert.Equal(t, "0.00", fixed(got.Revenue))
			assert.Equal(t, 0, got.SaleCount)
		})
	}
}

func TestPeriod_WindowUsesCalendarDayBoundaries(t *testing.T) {
	// Start of the 7-day window is midnight six days ago, not now minus 7*24h.
	startOfWindow := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	assert.True(t, reports.Weekly.Contains(now, startOfWindow))
	assert.False(t, reports.Weekly.Contains(now, startOfWindow.Add(-time.Nanosecond)))
	assert.True(t, reports.Daily.Contains(now, time.Date(2026, 3, 10, 23, 59, 59, 0, time.UTC)))
	assert.False(t, reports.Daily.Contains(now, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)))

	from, to := reports.Yearly.Window(now)
	assert.Equal(t, time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2026, 3, 10, 23, 59, 59, 999999999, time.UTC), to)
}

func TestParsePeriod(t *testing.T) {
	p, err := reports.ParsePeriod("monthly")
	require.NoError(t, err)
	assert.Equal(t, 30, p.Days())

	_, err = reports.ParsePeriod("fortnightly")
	assert.ErrorIs(t, err, reports.ErrUnknownPeriod)
	assert.False(t, reports.Period("fortnightly").Valid())
	assert.Equal(t, 0, reports.Period("fortnightly").Days())
}

// =============================================================================
// SUMMARIES
// =============================================================================

func TestCalcAnalytics_WholeSaleTotals(t *testing.T) {
	sales := []ledger.Sale{
		saleAt(now.Add(-time.Hour), "u1", money.PaymentCash, item("p1", 2, "25", "17")),
		saleAt(now.AddDate(0, 0, -3), "u2", money.PaymentCard, item("p2", 1, "10", "4"), item("p1", 1, "25", "17")),
		saleAt(now.AddDate(0, 0, -20), "u1", money.PaymentCash, item("p1", 1, "25", "17")),
	}

	weekly := analyzer().CalcAnalyticsForPeriod(sales, reports.Weekly, "")

	assert.Equal(t, "85.00", fixed(weekly.Revenue))
	assert.Equal(t, "55.00", fixed(weekly.Cost))
	assert.Equal(t, "8.50", fixed(weekly.Vat))
	assert.Equal(t, "30.00", fixed(weekly.Profit))
	assert.Equal(t, "0.00", fixed(weekly.Loss))
	assert.Equal(t, "1.00", fixed(weekly.PosFees))
	assert.Equal(t, "29.00", fixed(weekly.NetProfit))
	assert.Equal(t, 4, weekly.SoldQty)
	assert.Equal(t, 2, weekly.SaleCount)
}

func TestCalcAnalytics_LossIsExclusiveWithProfit(t *testing.T) {
	sales := []ledger.Sale{saleAt(now, "u1", money.PaymentCash, item("p1", 2, "10", "13"))}

	got := analyzer().CalcAnalyticsForPeriod(sales, reports.Daily, "")

	assert.Equal(t, "0.00", fixed(got.Profit))
	assert.Equal(t, "6.00", fixed(got.Loss))
}

func TestCalcAnalytics_ProductFilterUsesLineValues(t *testing.T) {
	// GIVEN: p1 sold alone and alongside p2
	sales := []ledger.Sale{
		saleAt(now, "u1", money.PaymentCard, item("p1", 2, "25", "17")),
		saleAt(now, "u2", money.PaymentCash, item("p2", 1, "10", "4"), item("p1", 1, "25", "17")),
		saleAt(now, "u3", money.PaymentCash, item("p2", 5, "10", "4")),
	}

	// WHEN: filtering by p1
	got := analyzer().CalcAnalyticsForPeriod(sales, reports.Daily, "p1")

	// THEN: only p1 lines count, fees excluded
	assert.Equal(t, "75.00", fixed(got.Revenue))
	assert.Equal(t, "51.00", fixed(got.Cost))
	assert.Equal(t, "7.50", fixed(got.Vat))
	assert.Equal(t, "24.00", fixed(got.Profit))
	assert.Equal(t, "0.00", fixed(got.PosFees))
	assert.Equal(t, 3, got.SoldQty)
	assert.Equal(t, 2, got.SaleCount)
}

func TestCalcAnalytics_ProductFilterRoundsAggregateOnce(t *testing.T) {
	sales := []ledger.Sale{
		saleAt(now, "u1", money.PaymentCash, item("p1", 3, "0.335", "0")),
		saleAt(now, "u1", money.PaymentCash, item("p1", 3, "0.335", "0")),
	}

	got := analyzer().CalcAnalyticsForPeriod(sales, reports.Daily, "p1")

	assert.Equal(t, "2.01", fixed(got.Revenue))
}

func TestSummarizeByProduct(t *testing.T) {
	sales := []ledger.Sale{
		saleAt(now, "u1", money.PaymentCash, item("p1", 2, "25", "17")),
		saleAt(now, "u2", money.PaymentCash, item("p2", 10, "10", "4"), item("p1", 1, "25", "17")),
		saleAt(now.AddDate(-2, 0, 0), "u2", money.PaymentCash, item("p3", 1, "999", "1")),
	}

	rows := analyzer().SummarizeByProduct(sales, reports.Yearly)

	require.Len(t, rows, 2)
	assert.Equal(t, catalog.ProductID("p2"), rows[0].ProductID)
	assert.Equal(t, "100.00", fixed(rows[0].Revenue))
	assert.Equal(t, catalog.ProductID("p1"), rows[1].ProductID)
	assert.Equal(t, 3, rows[1].SoldQty)
	assert.Equal(t, 2, rows[1].SaleCount)
	assert.Equal(t, "Product p1", rows[1].Name)
}

func TestSummarizeByStaff(t *testing.T) {
	sales := []ledger.Sale{
		saleAt(now, "u1", money.PaymentCash, item("p1", 2, "25", "17")),
		saleAt(now.Add(-time.Minute), "u1", money.PaymentCash, item("p1", 1, "25", "17")),
		saleAt(now, "u2", money.PaymentCash, item("p2", 1, "10", "4")),
	}

	rows := analyzer().SummarizeByStaff(sales, reports.Daily)

	require.Len(t, rows, 2)
	assert.Equal(t, "u1", rows[0].StaffID)
	assert.Equal(t, "Staff u1", rows[0].Name)
	assert.Equal(t, "75.00", fixed(rows[0].Revenue))
	assert.Equal(t, 2, rows[0].SaleCount)
	assert.Equal(t, "u2", rows[1].StaffID)
}

// =============================================================================
// VIEWS
// =============================================================================

func TestViews_ListSalesAndSummary(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Append(ctx, saleAt(now.Add(-2*time.Hour), "u1", money.PaymentCash, item("p1", 1, "25", "17"))))
	require.NoError(t, mem.Append(ctx, saleAt(now.Add(-time.Hour), "u2", money.PaymentCash, item("p1", 2, "25", "17"))))

	v := reports.NewViews(mem, analyzer())

	recent, err := v.ListSales(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "u2", recent[0].CreatedBy.ID)

	summary, err := v.PeriodSummary(ctx, reports.Daily, "")
	require.NoError(t, err)
	assert.Equal(t, "75.00", fixed(summary.Revenue))

	staff, err := v.StaffBreakdown(ctx, reports.Daily)
	require.NoError(t, err)
	assert.Len(t, staff, 2)

	products, err := v.ProductBreakdown(ctx, reports.Daily)
	require.NoError(t, err)
	assert.Len(t, products, 1)
}

func TestViews_RejectUnknownPeriod(t *testing.T) {
	// GIVEN: a store with a sale from today
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.Append(ctx, saleAt(now.Add(-time.Hour), "u1", money.PaymentCash, item("p1", 1, "25", "17"))))
	v := reports.NewViews(mem, analyzer())
	fortnightly := reports.Period("fortnightly")

	// WHEN / THEN: every view refuses the period instead of reporting zeros
	_, err := v.PeriodSummary(ctx, fortnightly, "")
	assert.ErrorIs(t, err, reports.ErrUnknownPeriod)

	_, err = v.ProductBreakdown(ctx, fortnightly)
	assert.ErrorIs(t, err, reports.ErrUnknownPeriod)

	_, err = v.StaffBreakdown(ctx, fortnightly)
	assert.ErrorIs(t, err, reports.ErrUnknownPeriod)
}

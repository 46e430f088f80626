/*
Package reports derives read-only views from committed sales.

PURPOSE:
  Recent-sales listing and period analytics (whole-store, per product,
  per staff member). Nothing here mutates the ledger; stale reads are fine.

PERIOD WINDOW:
  A period of N days covers whole local calendar days:

    [startOfDay(today - N + 1), endOfDay(today)]

  so "daily" is today only and "yearly" is the last 365 days including
  today. A sale from 400 days ago falls outside every period.

PROFIT / LOSS:
  Both derive from the signed gross margin (revenue - cost):
    profit = max(0, revenue - cost)
    loss   = max(0, cost - revenue)
  Exactly one of them is non-zero (or both are zero).

PRODUCT FILTER:
  With a product id, only matching lines count, valued from their own
  qty and unit prices rather than from sale totals.

SEE ALSO:
  - ledger/ledger.go: Source of sales
  - money/round.go: Round2, applied once per aggregate
*/
package reports

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/sale-ledger/catalog"
	"github.com/warp/sale-ledger/ledger"
	"github.com/warp/sale-ledger/money"
)

// =============================================================================
// PERIOD
// =============================================================================

type Period string

const (
	Daily     Period = "daily"
	Weekly    Period = "weekly"
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
	Yearly    Period = "yearly"
)

var periodDays = map[Period]int{
	Daily:     1,
	Weekly:    7,
	Monthly:   30,
	Quarterly: 90,
	Yearly:    365,
}

// ErrUnknownPeriod is returned for a period name outside Periods.
var ErrUnknownPeriod = errors.New("unknown period")

// Periods lists every period, shortest first.
func Periods() []Period {
	return []Period{Daily, Weekly, Monthly, Quarterly, Yearly}
}

// ParsePeriod accepts a period name.
func ParsePeriod(s string) (Period, error) {
	p := Period(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownPeriod, s)
	}
	return p, nil
}

func (p Period) Valid() bool {
	_, ok := periodDays[p]
	return ok
}

// Days returns the number of calendar days the period covers, or 0 for an
// invalid period, whose window then holds no sale.
func (p Period) Days() int { return periodDays[p] }

// Window returns the inclusive [from, to] range of p ending on the local
// calendar day containing now.
func (p Period) Window(now time.Time) (from, to time.Time) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	from = today.AddDate(0, 0, -(p.Days() - 1))
	to = today.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return from, to
}

// Contains reports whether t falls inside p's window ending at now.
func (p Period) Contains(now, t time.Time) bool {
	from, to := p.Window(now)
	t = t.In(now.Location())
	return !t.Before(from) && !t.After(to)
}

// =============================================================================
// SUMMARY
// =============================================================================

type Summary struct {
	Revenue   decimal.Decimal
	Cost      decimal.Decimal
	Vat       decimal.Decimal
	Profit    decimal.Decimal
	Loss      decimal.Decimal
	PosFees   decimal.Decimal // whole-sale mode only
	NetProfit decimal.Decimal // whole-sale mode only: sum of sale net profits
	SoldQty   int
	SaleCount int
}

// accumulator sums in full precision; finish rounds once.
type accumulator struct {
	revenue, cost, vat, fees, net decimal.Decimal
	soldQty, saleCount            int
}

func (a *accumulator) addSale(s ledger.Sale) {
	a.revenue = a.revenue.Add(s.TotalRevenue)
	a.cost = a.cost.Add(s.TotalCost)
	a.vat = a.vat.Add(s.TotalVat)
	a.fees = a.fees.Add(s.PosFeeAmount)
	a.net = a.net.Add(s.NetProfit)
	a.soldQty += s.SoldQty()
	a.saleCount++
}

func (a *accumulator) addItem(item ledger.SaleItem) {
	line := ledger.Lines([]ledger.SaleItem{item})[0]
	a.revenue = a.revenue.Add(line.Revenue())
	a.cost = a.cost.Add(line.Cost())
	a.vat = a.vat.Add(line.Vat())
	a.soldQty += item.Qty
}

func (a *accumulator) finish() Summary {
	revenue := money.Round2(a.revenue)
	cost := money.Round2(a.cost)
	margin := money.Round2(revenue.Sub(cost))
	return Summary{
		Revenue:   revenue,
		Cost:      cost,
		Vat:       money.Round2(a.vat),
		Profit:    decimal.Max(margin, money.Zero()),
		Loss:      decimal.Max(margin.Neg(), money.Zero()),
		PosFees:   money.Round2(a.fees),
		NetProfit: money.Round2(a.net),
		SoldQty:   a.soldQty,
		SaleCount: a.saleCount,
	}
}

// =============================================================================
// ANALYZER
// =============================================================================

// Analyzer computes period analytics against a clock.
type Analyzer struct {
	Now func() time.Time
}

// NewAnalyzer returns an Analyzer on the local wall clock.
func NewAnalyzer() *Analyzer {
	return &Analyzer{Now: time.Now}
}

// CalcAnalyticsForPeriod summarizes sales created inside period. A
// non-empty productID restricts the summary to that product's lines.
// An invalid period yields a zero Summary; callers parse it first.
func (a *Analyzer) CalcAnalyticsForPeriod(sales []ledger.Sale, period Period, productID catalog.ProductID) Summary {
	now := a.Now()
	var acc accumulator
	for _, s := range sales {
		if !period.Contains(now, s.CreatedAt) {
			continue
		}
		if productID == "" {
			acc.addSale(s)
			continue
		}
		matched := false
		for _, item := range s.Items {
			if item.ProductID == productID {
				acc.addItem(item)
				matched = true
			}
		}
		if matched {
			acc.saleCount++
		}
	}
	return acc.finish()
}

// CalcAnalyticsForPeriod uses the local wall clock.
func CalcAnalyticsForPeriod(sales []ledger.Sale, period Period, productID catalog.ProductID) Summary {
	return NewAnalyzer().CalcAnalyticsForPeriod(sales, period, productID)
}

// ProductSummary is one row of a per-product breakdown.
type ProductSummary struct {
	ProductID catalog.ProductID
	Name      string // name on the most recent line seen
	Summary
}

// SummarizeByProduct breaks period sales down per product, highest revenue
// first (ties by product id).
func (a *Analyzer) SummarizeByProduct(sales []ledger.Sale, period Period) []ProductSummary {
	now := a.Now()
	accs := map[catalog.ProductID]*accumulator{}
	names := map[catalog.ProductID]string{}
	latest := map[catalog.ProductID]time.Time{}

	for _, s := range sales {
		if !period.Contains(now, s.CreatedAt) {
			continue
		}
		seen := map[catalog.ProductID]bool{}
		for _, item := range s.Items {
			acc, ok := accs[item.ProductID]
			if !ok {
				acc = &accumulator{}
				accs[item.ProductID] = acc
			}
			acc.addItem(item)
			if !seen[item.ProductID] {
				acc.saleCount++
				seen[item.ProductID] = true
			}
			if !s.CreatedAt.Before(latest[item.ProductID]) {
				latest[item.ProductID] = s.CreatedAt
				names[item.ProductID] = item.Name
			}
		}
	}

	rows := make([]ProductSummary, 0, len(accs))
	for id, acc := range accs {
		rows = append(rows, ProductSummary{ProductID: id, Name: names[id], Summary: acc.finish()})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].ProductID < rows[j].ProductID
	})
	return rows
}

// StaffSummary is one row of a per-staff breakdown.
type StaffSummary struct {
	StaffID string
	Name    string
	Role    string
	Summary
}

// SummarizeByStaff breaks period sales down by creator, highest revenue
// first (ties by staff id).
func (a *Analyzer) SummarizeByStaff(sales []ledger.Sale, period Period) []StaffSummary {
	now := a.Now()
	accs := map[string]*accumulator{}
	who := map[string]ledger.Creator{}

	for _, s := range sales {
		if !period.Contains(now, s.CreatedAt) {
			continue
		}
		acc, ok := accs[s.CreatedBy.ID]
		if !ok {
			acc = &accumulator{}
			accs[s.CreatedBy.ID] = acc
			who[s.CreatedBy.ID] = s.CreatedBy
		}
		acc.addSale(s)
	}

	rows := make([]StaffSummary, 0, len(accs))
	for id, acc := range accs {
		c := who[id]
		rows = append(rows, StaffSummary{StaffID: id, Name: c.Name, Role: c.Role, Summary: acc.finish()})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].StaffID < rows[j].StaffID
	})
	return rows
}

// =============================================================================
// VIEWS - Read access to the ledger
// =============================================================================

// SaleSource is the read side of the ledger.
type SaleSource interface {
	Recent(ctx context.Context, limit int) ([]ledger.Sale, error)
}

// Views serves the reporting read interface.
type Views struct {
	Sales    SaleSource
	Analyzer *Analyzer
}

func NewViews(sales SaleSource, analyzer *Analyzer) *Views {
	if analyzer == nil {
		analyzer = NewAnalyzer()
	}
	return &Views{Sales: sales, Analyzer: analyzer}
}

// ListSales returns up to limit sales, most recent first.
func (v *Views) ListSales(ctx context.Context, limit int) ([]ledger.Sale, error) {
	return v.Sales.Recent(ctx, limit)
}

// PeriodSummary loads every sale and summarizes period.
func (v *Views) PeriodSummary(ctx context.Context, period Period, productID catalog.ProductID) (Summary, error) {
	if !period.Valid() {
		return Summary{}, fmt.Errorf("%w %q", ErrUnknownPeriod, period)
	}
	sales, err := v.Sales.Recent(ctx, 0)
	if err != nil {
		return Summary{}, err
	}
	return v.Analyzer.CalcAnalyticsForPeriod(sales, period, productID), nil
}

func (v *Views) ProductBreakdown(ctx context.Context, period Period) ([]ProductSummary, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownPeriod, period)
	}
	sales, err := v.Sales.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	return v.Analyzer.SummarizeByProduct(sales, period), nil
}

func (v *Views) StaffBreakdown(ctx context.Context, period Period) ([]StaffSummary, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownPeriod, period)
	}
	sales, err := v.Sales.Recent(ctx, 0)
	if err != nil {
		return nil, err
	}
	return v.Analyzer.SummarizeByStaff(sales, period), nil
}

package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// Range keys accepted by the dashboard.
const (
	RangeAll    = "all"
	Range7Days  = "7d"
	Range30Days = "30d"
	RangeCustom = "custom"
)

// starPerformerCount is how many top-revenue products get highlighted.
const starPerformerCount = 3

var weekdayNames = [7]string{"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday"}

// TimeRange is the view-level filter applied before aggregation. From and
// To are inclusive YYYY-MM-DD bounds, used only when Key is "custom".
type TimeRange struct {
	Key  string `json:"key"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Validate checks the range key and, for custom ranges, the bounds.
func (tr TimeRange) Validate() error {
	switch tr.Key {
	case RangeAll, Range7Days, Range30Days:
		return nil
	case RangeCustom:
		if _, err := time.ParseInLocation(domain.DateLayout, tr.From, time.Local); err != nil {
			return fmt.Errorf("invalid from date %q: want YYYY-MM-DD", tr.From)
		}
		if _, err := time.ParseInLocation(domain.DateLayout, tr.To, time.Local); err != nil {
			return fmt.Errorf("invalid to date %q: want YYYY-MM-DD", tr.To)
		}
		if tr.From > tr.To {
			return fmt.Errorf("from date %s is after to date %s", tr.From, tr.To)
		}
		return nil
	default:
		return fmt.Errorf("unknown range key %q", tr.Key)
	}
}

// String is the cache key form of the range: custom windows include their
// bounds so two different windows never share a cached insight.
func (tr TimeRange) String() string {
	if tr.Key == RangeCustom {
		return fmt.Sprintf("custom:%s..%s", tr.From, tr.To)
	}
	return tr.Key
}

// bounds computes the inclusive date-string window. Trailing windows end
// today in local time, so same-day sales always count.
func (tr TimeRange) bounds(now time.Time) (from, to string, bounded bool) {
	switch tr.Key {
	case Range7Days:
		return now.AddDate(0, 0, -6).Format(domain.DateLayout), now.Format(domain.DateLayout), true
	case Range30Days:
		return now.AddDate(0, 0, -29).Format(domain.DateLayout), now.Format(domain.DateLayout), true
	case RangeCustom:
		return tr.From, tr.To, true
	default:
		return "", "", false
	}
}

// ProductStat aggregates one product inside the range.
type ProductStat struct {
	Product  string          `json:"product"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// CategoryStat aggregates one category inside the range. Share is the
// percentage of range revenue, 0 when total revenue is 0.
type CategoryStat struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Share    float64         `json:"share"`
}

// TrendPoint is revenue summed for one calendar day.
type TrendPoint struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
}

// WeekdayStat is one of the seven weekday buckets, Sunday first.
type WeekdayStat struct {
	Weekday  string          `json:"weekday"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

// Stats is everything the dashboard shows for one time range.
type Stats struct {
	Range        string          `json:"range"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	TotalSales   int             `json:"totalSales"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`

	TopProduct     *ProductStat   `json:"topProduct,omitempty"`
	StarPerformers []ProductStat  `json:"starPerformers"`
	Products       []ProductStat  `json:"products"`
	Categories     []CategoryStat `json:"categories"`
	Trend          []TrendPoint   `json:"trend"`
	Weekdays       []WeekdayStat  `json:"weekdays"`
}

// Filter returns the records inside the range. Comparison is lexicographic
// on the canonical YYYY-MM-DD form, which sorts identically to
// chronological order. The input slice is never mutated.
func Filter(records []domain.SaleRecord, tr TimeRange, now time.Time) []domain.SaleRecord {
	from, to, bounded := tr.bounds(now)
	if !bounded {
		out := make([]domain.SaleRecord, len(records))
		copy(out, records)
		return out
	}

	out := []domain.SaleRecord{}
	for _, r := range records {
		if r.Date >= from && r.Date <= to {
			out = append(out, r)
		}
	}
	return out
}

// Compute derives the dashboard statistics for one range. It is a pure
// function of its inputs: no side effects, deterministic ordering, safe to
// call on every request.
func Compute(records []domain.SaleRecord, tr TimeRange, now time.Time) *Stats {
	filtered := Filter(records, tr, now)

	stats := &Stats{
		Range:          tr.Key,
		TotalSales:     len(filtered),
		TotalRevenue:   decimal.Zero,
		StarPerformers: []ProductStat{},
		Products:       []ProductStat{},
		Categories:     []CategoryStat{},
		Trend:          []TrendPoint{},
	}
	if from, to, bounded := tr.bounds(now); bounded {
		stats.From, stats.To = from, to
	}

	products := make(map[string]*ProductStat)
	categories := make(map[string]decimal.Decimal)
	daily := make(map[string]decimal.Decimal)
	weekdays := make([]WeekdayStat, 7)
	for i := range weekdays {
		weekdays[i] = WeekdayStat{Weekday: weekdayNames[i], Revenue: decimal.Zero}
	}

	for _, r := range filtered {
		stats.TotalRevenue = stats.TotalRevenue.Add(r.Amount)

		p, ok := products[r.Product]
		if !ok {
			p = &ProductStat{Product: r.Product, Revenue: decimal.Zero}
			products[r.Product] = p
		}
		p.Quantity += r.Quantity
		p.Revenue = p.Revenue.Add(r.Amount)

		categories[r.Category] = categories[r.Category].Add(r.Amount)
		daily[r.Date] = daily[r.Date].Add(r.Amount)

		if wd, err := weekdayIndex(r.Date); err == nil {
			weekdays[wd].Quantity += r.Quantity
			weekdays[wd].Revenue = weekdays[wd].Revenue.Add(r.Amount)
		}
	}
	stats.Weekdays = weekdays

	for _, p := range products {
		stats.Products = append(stats.Products, *p)
	}
	sort.Slice(stats.Products, func(i, j int) bool {
		a, b := stats.Products[i], stats.Products[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Product < b.Product
	})

	for _, p := range stats.Products {
		if len(stats.StarPerformers) == starPerformerCount {
			break
		}
		if p.Revenue.IsPositive() {
			stats.StarPerformers = append(stats.StarPerformers, p)
		}
	}

	stats.TopProduct = topByQuantity(stats.Products)

	for cat, revenue := range categories {
		stats.Categories = append(stats.Categories, CategoryStat{
			Category: cat,
			Revenue:  revenue,
			Share:    share(revenue, stats.TotalRevenue),
		})
	}
	sort.Slice(stats.Categories, func(i, j int) bool {
		a, b := stats.Categories[i], stats.Categories[j]
		if !a.Revenue.Equal(b.Revenue) {
			return a.Revenue.GreaterThan(b.Revenue)
		}
		return a.Category < b.Category
	})

	for date, revenue := range daily {
		stats.Trend = append(stats.Trend, TrendPoint{Date: date, Revenue: revenue})
	}
	sort.Slice(stats.Trend, func(i, j int) bool {
		return stats.Trend[i].Date < stats.Trend[j].Date
	})

	return stats
}

// topByQuantity picks the product with the highest unit count. Ties break
// by revenue, then name, so the answer is deterministic.
func topByQuantity(products []ProductStat) *ProductStat {
	var top *ProductStat
	for i := range products {
		p := &products[i]
		if top == nil {
			top = p
			continue
		}
		switch {
		case p.Quantity > top.Quantity:
			top = p
		case p.Quantity == top.Quantity && p.Revenue.GreaterThan(top.Revenue):
			top = p
		case p.Quantity == top.Quantity && p.Revenue.Equal(top.Revenue) && p.Product < top.Product:
			top = p
		}
	}
	if top == nil {
		return nil
	}
	cp := *top
	return &cp
}

// share computes revenue as a percentage of total, guarding the zero-total
// case so it never divides by zero.
func share(revenue, total decimal.Decimal) float64 {
	if total.IsZero() {
		return 0
	}
	pct, _ := revenue.Div(total).Mul(decimal.NewFromInt(100)).Round(2).Float64()
	return pct
}

// weekdayIndex buckets a canonical date into 0..6 with Sunday = 0. The
// date is reconstructed in local time from its parts, so the weekday never
// shifts across timezones.
func weekdayIndex(date string) (int, error) {
	t, err := time.ParseInLocation(domain.DateLayout, date, time.Local)
	if err != nil {
		return 0, err
	}
	return int(t.Weekday()), nil
}

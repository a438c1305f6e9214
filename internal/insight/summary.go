package insight

import "github.com/dvloznov/sales-ledger/internal/aggregate"

// Caps keep the model prompt bounded no matter how large the ledger gets.
const (
	summaryTopProducts = 10
	summaryTrendDays   = 14
)

// Summary condenses range statistics into the compact document the model
// reasons over. Revenue is serialized as strings to keep exact decimal
// values out of float territory.
func Summary(business string, stats *aggregate.Stats) map[string]interface{} {
	products := stats.Products
	if len(products) > summaryTopProducts {
		products = products[:summaryTopProducts]
	}
	topProducts := make([]map[string]interface{}, 0, len(products))
	for _, p := range products {
		topProducts = append(topProducts, map[string]interface{}{
			"product":  p.Product,
			"quantity": p.Quantity,
			"revenue":  p.Revenue.String(),
		})
	}

	categories := make([]map[string]interface{}, 0, len(stats.Categories))
	for _, c := range stats.Categories {
		categories = append(categories, map[string]interface{}{
			"category": c.Category,
			"revenue":  c.Revenue.String(),
			"share":    c.Share,
		})
	}

	trend := stats.Trend
	if len(trend) > summaryTrendDays {
		trend = trend[len(trend)-summaryTrendDays:]
	}
	trendPoints := make([]map[string]interface{}, 0, len(trend))
	for _, p := range trend {
		trendPoints = append(trendPoints, map[string]interface{}{
			"date":    p.Date,
			"revenue": p.Revenue.String(),
		})
	}

	weekdays := make([]map[string]interface{}, 0, len(stats.Weekdays))
	for _, w := range stats.Weekdays {
		weekdays = append(weekdays, map[string]interface{}{
			"weekday":  w.Weekday,
			"quantity": w.Quantity,
			"revenue":  w.Revenue.String(),
		})
	}

	summary := map[string]interface{}{
		"business":      business,
		"range":         stats.Range,
		"total_sales":   stats.TotalSales,
		"total_revenue": stats.TotalRevenue.String(),
		"top_products":  topProducts,
		"categories":    categories,
		"recent_trend":  trendPoints,
		"weekdays":      weekdays,
	}
	if stats.TopProduct != nil {
		summary["best_seller"] = map[string]interface{}{
			"product":  stats.TopProduct.Product,
			"quantity": stats.TopProduct.Quantity,
			"revenue":  stats.TopProduct.Revenue.String(),
		}
	}
	return summary
}

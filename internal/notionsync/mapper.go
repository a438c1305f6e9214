package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/sales-ledger/internal/domain"
)

// SaleToNotionProperties converts a ledger sale record to Notion properties.
// Maps fields onto the sales database schema: Sale ID (title), Product,
// Category (select), Amount (number), Quantity (number), Date (date).
func SaleToNotionProperties(rec *domain.SaleRecord) notionapi.Properties {
	props := notionapi.Properties{
		"Sale ID": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.ID,
					},
				},
			},
		},
		"Product": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{
				{
					Type: notionapi.ObjectTypeText,
					Text: &notionapi.Text{
						Content: rec.Product,
					},
				},
			},
		},
		"Amount": notionapi.NumberProperty{
			Number: rec.Amount.InexactFloat64(),
		},
		"Quantity": notionapi.NumberProperty{
			Number: float64(rec.Quantity),
		},
	}

	// Category
	if rec.Category != "" {
		props["Category"] = notionapi.SelectProperty{
			Select: notionapi.Option{
				Name: rec.Category,
			},
		}
	}

	// Date — ledger dates are normalized YYYY-MM-DD, so a parse failure
	// only happens on a hand-edited file; the page is still created.
	if t, err := time.ParseInLocation(domain.DateLayout, rec.Date, time.UTC); err == nil {
		d := notionapi.Date(t)
		props["Date"] = notionapi.DateProperty{
			Date: &notionapi.DateObject{
				Start: &d,
			},
		}
	}

	return props
}

// extractSaleID extracts the sale ID from a Notion page's title property.
// Returns empty string if not found.
func extractSaleID(page notionapi.Page) string {
	if prop, ok := page.Properties["Sale ID"]; ok {
		if title, ok := prop.(*notionapi.TitleProperty); ok {
			if len(title.Title) > 0 {
				return title.Title[0].PlainText
			}
		}
	}
	return ""
}

package invoice

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is one weighed vegetable on an invoice. Total is fixed at creation.
type LineItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Total     float64 `json:"total"`
}

// Invoice represents a finalized, persisted invoice.
type Invoice struct {
	ID     string     `json:"id"`
	Number string     `json:"number"`
	Date   time.Time  `json:"date"`
	Items  []LineItem `json:"items"`
	Total  float64    `json:"total"`
}

// Draft is an in-progress invoice (a tab). Drafts live for one session only.
type Draft struct {
	ID        string
	Name      string
	Items     []LineItem
	CreatedAt time.Time
}

// LineTotal returns quantity × unitPrice computed in decimal arithmetic.
func LineTotal(quantity, unitPrice float64) float64 {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(unitPrice)).InexactFloat64()
}

// ComputeTotal sums the item totals. An empty slice totals 0.
func ComputeTotal(items []LineItem) float64 {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.Total))
	}
	return sum.InexactFloat64()
}

// Timestamp normalizes t the way stored dates are kept: UTC, millisecond precision.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// SortByDateDesc orders invoices newest first, keeping storage order for equal dates.
func SortByDateDesc(invoices []Invoice) {
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].Date.After(invoices[j].Date)
	})
}

// CloneItems returns a copy of items so snapshots never share backing arrays.
func CloneItems(items []LineItem) []LineItem {
	if items == nil {
		return []LineItem{}
	}
	out := make([]LineItem, len(items))
	copy(out, items)
	return out
}

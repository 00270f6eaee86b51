package invoice

import (
	"fmt"
	"strings"
)

// Vegetables is the fixed list offered when adding an item. Any other name is accepted as-is.
var Vegetables = []string{
	"Tomates",
	"Oignons",
	"Carottes",
	"Pommes de terre",
	"Aubergines",
	"Courgettes",
	"Poivrons",
	"Choux",
	"Salade",
	"Persil",
	"Menthe",
	"Gingembre",
	"Ail",
	"Piment",
	"Gombo",
}

// NormalizeName trims the name and maps case-insensitive catalog matches to the catalog spelling.
func NormalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	for _, v := range Vegetables {
		if strings.EqualFold(v, name) {
			return v
		}
	}
	return name
}

// Summary is the one-line description shown for a draft tab, e.g. "2 articles".
func Summary(items []LineItem) string {
	if len(items) > 1 {
		return fmt.Sprintf("%d articles", len(items))
	}
	return fmt.Sprintf("%d article", len(items))
}

package cart

import (
	"strings"

	"github.com/mealmajor/cartsync/models"
)

// Merge collapses items whose names match case-insensitively. The first
// occurrence keeps its position and unit details and takes the largest
// quantity seen. Quantities are never summed.
func Merge(items []models.ScrapedItem) []models.ScrapedItem {
	out := make([]models.ScrapedItem, 0, len(items))
	index := make(map[string]int, len(items))

	for _, it := range items {
		key := strings.ToLower(it.Name)
		if i, ok := index[key]; ok {
			if it.Quantity > out[i].Quantity {
				out[i].Quantity = it.Quantity
			}
			continue
		}
		index[key] = len(out)
		out = append(out, it)
	}
	return out
}

package models

// ScrapedItem is one purchasable cart line as read from the store page.
type ScrapedItem struct {
	// Name is the product name. Unique (case-insensitive) within one scrape.
	Name string `json:"name"`

	// Quantity is always >= 1; unreadable quantities default to 1.
	Quantity int `json:"quantity"`

	// UnitFactor is the magnitude of the pack size, e.g. 190 for "190 g".
	UnitFactor int `json:"unitFactor,omitempty"`

	// Unit is one of g, kg, ml, l, lb, oz.
	Unit string `json:"unit,omitempty"`

	// UnitQualifier is a free-text annotation such as "avg.".
	UnitQualifier string `json:"unitQualifier,omitempty"`
}

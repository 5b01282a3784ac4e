package models

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the cart page address. Required: its path is checked against
	// the cart segment even when HTML is supplied.
	URL string `json:"url" binding:"required,url"`

	// HTML is an already-rendered copy of the page. When empty the page is
	// fetched through the engine dispatcher.
	HTML string `json:"html,omitempty"`

	// Sync forwards the scraped items to the backend after the scrape.
	// Delivery is fire-and-forget.
	Sync bool `json:"sync,omitempty"`

	// Timeout is the maximum duration in seconds for fetching the page.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables anti-bot-detection evasions when the browser engine is used.
	Stealth bool `json:"stealth,omitempty"`

	// Cookies carries the store session so the cart renders for the user.
	Cookies []Cookie `json:"cookies,omitempty"`
}

// Cookie is a browser cookie forwarded to the fetch engines.
type Cookie struct {
	Name   string `json:"name" binding:"required"`
	Value  string `json:"value"`
	Domain string `json:"domain,omitempty"`
	Path   string `json:"path,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

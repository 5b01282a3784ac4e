// Package engine fetches rendered cart pages. Engines are tried in order of
// cost: a plain HTTP client first, Chrome after it.
package engine

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNeedsBrowser is returned by engines that fetched a page successfully
// but found only a client-side shell with no cart markup in it.
var ErrNeedsBrowser = errors.New("page needs a browser to render")

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "rod", "rod-stealth").
	Name() string

	// Fetch retrieves the rendered page for req.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a cart page.
type FetchRequest struct {
	URL     string
	Cookies []http.Cookie
	Timeout time.Duration
	Stealth bool
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

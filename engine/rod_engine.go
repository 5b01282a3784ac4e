package engine

import (
	"context"
	"fmt"
)

// RodFetchFunc renders a page in Chrome. It is injected by the caller so
// this package does not depend on the browser package.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (*FetchResult, error)

// RodEngine delegates to a Chrome-backed fetch function. The stealth
// variant always injects the stealth script.
type RodEngine struct {
	fetch        RodFetchFunc
	forceStealth bool
}

// NewRodEngine creates a RodEngine named "rod", or "rod-stealth" when
// forceStealth is set.
func NewRodEngine(fetch RodFetchFunc, forceStealth bool) *RodEngine {
	return &RodEngine{fetch: fetch, forceStealth: forceStealth}
}

func (e *RodEngine) Name() string {
	if e.forceStealth {
		return "rod-stealth"
	}
	return "rod"
}

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if e.fetch == nil {
		return nil, fmt.Errorf("%s: no browser configured", e.Name())
	}

	r := *req
	if e.forceStealth {
		r.Stealth = true
	}

	res, err := e.fetch(ctx, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.Name(), err)
	}
	res.EngineName = e.Name()
	return res, nil
}

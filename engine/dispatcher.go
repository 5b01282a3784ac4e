package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/mealmajor/cartsync/metrics"
)

// Dispatcher races engines with staged escalation. Engine i starts after
// delays[i]; the first success cancels the rest and is remembered for the
// host.
type Dispatcher struct {
	engines []Engine
	delays  []time.Duration
	memory  *DomainMemory
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. Missing delays default to zero.
func NewDispatcher(engines []Engine, delays []time.Duration, memory *DomainMemory, m *metrics.Metrics, logger *slog.Logger) *Dispatcher {
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{engines: engines, delays: d, memory: memory, metrics: m, logger: logger}
}

// Engines returns the engine names in escalation order.
func (d *Dispatcher) Engines() []string {
	names := make([]string, len(d.engines))
	for i, e := range d.engines {
		names[i] = e.Name()
	}
	return names
}

// Dispatch returns the first successful fetch. A remembered engine for the
// host is tried alone first; if it fails the memory is dropped and the
// full race runs.
func (d *Dispatcher) Dispatch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if len(d.engines) == 0 {
		return nil, fmt.Errorf("dispatcher: no engines configured")
	}
	domain := hostOf(req.URL)

	if remembered := d.memory.Get(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			res, err := d.fetch(ctx, eng, req)
			if err == nil {
				d.logger.Debug("domain memory hit", "domain", domain, "engine", remembered)
				return res, nil
			}
			d.logger.Info("remembered engine failed, running full race",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Delete(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

func (d *Dispatcher) fetch(ctx context.Context, eng Engine, req *FetchRequest) (*FetchResult, error) {
	start := time.Now()
	res, err := eng.Fetch(ctx, req)
	if err == nil {
		d.metrics.RecordFetch(eng.Name(), time.Since(start))
	}
	return res, err
}

func (d *Dispatcher) race(ctx context.Context, req *FetchRequest, domain string) (*FetchResult, error) {
	type outcome struct {
		res *FetchResult
		err error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()

			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			d.logger.Debug("engine starting", "engine", e.Name(), "url", req.URL)
			res, err := d.fetch(raceCtx, e, req)
			if err != nil {
				d.logger.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- outcome{res: res, err: err}
		}(eng, d.delays[i])
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for o := range results {
		if o.err != nil {
			lastErr = o.err
			continue
		}
		cancel()
		d.logger.Info("engine won race", "engine", o.res.EngineName, "url", req.URL)
		d.memory.Set(domain, o.res.EngineName)
		return o.res, nil
	}

	if lastErr == nil {
		lastErr = ctx.Err()
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, lastErr
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}

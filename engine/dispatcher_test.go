package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name  string
	delay time.Duration
	err   error
	calls atomic.Int32
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &FetchResult{HTML: "<html>" + f.name + "</html>", FinalURL: req.URL, EngineName: f.name}, nil
}

func quietDispatcher(engines []Engine, delays []time.Duration, mem *DomainMemory) *Dispatcher {
	return NewDispatcher(engines, delays, mem, nil, slog.New(slog.DiscardHandler))
}

func TestDispatch_EscalatesAndRemembers(t *testing.T) {
	httpEng := &fakeEngine{name: "http", err: ErrNeedsBrowser}
	rodEng := &fakeEngine{name: "rod"}
	mem := newDomainMemory(time.Hour, time.Now)

	d := quietDispatcher([]Engine{httpEng, rodEng}, []time.Duration{0, 10 * time.Millisecond}, mem)
	req := &FetchRequest{URL: "https://www.metro.ca/en/online-grocery/my-cart"}

	res, err := d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "rod", res.EngineName)
	assert.Equal(t, "rod", mem.Get("www.metro.ca"))

	// Second call goes straight to the remembered engine.
	_, err = d.Dispatch(context.Background(), req)
	require.NoError(t, err)
	assert.EqualValues(t, 1, httpEng.calls.Load())
	assert.EqualValues(t, 2, rodEng.calls.Load())
}

func TestDispatch_FastestWinsAndCancelsOthers(t *testing.T) {
	fast := &fakeEngine{name: "http"}
	slow := &fakeEngine{name: "rod", delay: 5 * time.Second}

	d := quietDispatcher([]Engine{fast, slow}, []time.Duration{0, 0}, nil)

	start := time.Now()
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/my-cart"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDispatch_ForgetsFailingMemory(t *testing.T) {
	httpEng := &fakeEngine{name: "http", err: errors.New("connection reset")}
	rodEng := &fakeEngine{name: "rod"}
	mem := newDomainMemory(time.Hour, time.Now)
	mem.Set("example.com", "http")

	d := quietDispatcher([]Engine{httpEng, rodEng}, nil, mem)
	res, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/my-cart"})
	require.NoError(t, err)
	assert.Equal(t, "rod", res.EngineName)
	assert.Equal(t, "rod", mem.Get("example.com"))
}

func TestDispatch_AllFail(t *testing.T) {
	boom := errors.New("boom")
	d := quietDispatcher([]Engine{
		&fakeEngine{name: "http", err: ErrNeedsBrowser},
		&fakeEngine{name: "rod", err: boom},
	}, []time.Duration{0, 5 * time.Millisecond}, nil)

	_, err := d.Dispatch(context.Background(), &FetchRequest{URL: "https://example.com/my-cart"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom) || errors.Is(err, ErrNeedsBrowser))
}

func TestDispatch_NoEngines(t *testing.T) {
	_, err := quietDispatcher(nil, nil, nil).Dispatch(context.Background(), &FetchRequest{URL: "https://example.com"})
	assert.Error(t, err)
}

func TestDomainMemory_Expiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mem := newDomainMemory(time.Minute, func() time.Time { return now })

	mem.Set("example.com", "rod")
	assert.Equal(t, "rod", mem.Get("example.com"))

	now = now.Add(2 * time.Minute)
	assert.Empty(t, mem.Get("example.com"))

	mem.Set("a.com", "http")
	now = now.Add(2 * time.Minute)
	mem.prune()
	assert.Empty(t, mem.entries)
}

func TestRodEngine_ForcesStealth(t *testing.T) {
	var sawStealth bool
	eng := NewRodEngine(func(_ context.Context, req *FetchRequest) (*FetchResult, error) {
		sawStealth = req.Stealth
		return &FetchResult{HTML: "<html></html>"}, nil
	}, true)

	req := &FetchRequest{URL: "https://example.com/my-cart"}
	res, err := eng.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, sawStealth)
	assert.False(t, req.Stealth, "caller's request must not be modified")
	assert.Equal(t, "rod-stealth", res.EngineName)
}

func TestRodEngine_NoBrowser(t *testing.T) {
	_, err := NewRodEngine(nil, false).Fetch(context.Background(), &FetchRequest{})
	assert.ErrorContains(t, err, "rod")
}

package ridesafety

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/nnar1o/meteoride/internal/cache/assessments"
	"github.com/nnar1o/meteoride/internal/cache/keys"
	"github.com/nnar1o/meteoride/internal/cache/redisstore"
	"github.com/nnar1o/meteoride/internal/core/model"
	"github.com/nnar1o/meteoride/internal/hitevents"
	"github.com/nnar1o/meteoride/internal/mapper/geohash"
	"github.com/nnar1o/meteoride/internal/scoring"
	"github.com/nnar1o/meteoride/internal/weather"
)

const (
	lat = 59.3293
	lon = 18.0686
)

type countingProvider struct {
	calls atomic.Int32
	obs   model.Observation
	err   error
}

func (p *countingProvider) Fetch(context.Context, float64, float64) (model.Observation, error) {
	p.calls.Add(1)
	return p.obs, p.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []hitevents.Event
}

func (r *recordingSink) Publish(ev hitevents.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

type countingHot struct {
	mu   sync.Mutex
	incs map[string]int
}

func (c *countingHot) Inc(b string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.incs == nil {
		c.incs = map[string]int{}
	}
	c.incs[b]++
}

func (c *countingHot) Score(b string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.incs[b])
}

func drizzle() model.Observation {
	return model.Observation{
		TemperatureC: 3, WindKph: 12, WindDir: "W", PrecipMm: 0.5,
		Humidity: 88, Condition: "Light drizzle", ConditionCode: 1153,
		FeelsLikeC: 1, UVIndex: 1, VisibilityKm: 9,
	}
}

func newStore(t *testing.T) (*assessments.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := redisstore.New(context.Background(), "redis://"+mr.Addr(), time.Second)
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	st, err := assessments.New(rc, keys.Deriver{Bucketer: geohash.New(), Precision: 6}, 300*time.Second, nil)
	if err != nil {
		t.Fatalf("assessments: %v", err)
	}
	return st, mr
}

func TestAssess_MissThenHitFetchesOnce(t *testing.T) {
	st, _ := newStore(t)
	p := &countingProvider{obs: drizzle()}
	sink := &recordingSink{}
	hot := &countingHot{}
	svc, err := New(st, p, WithEvents(sink), WithHotness(hot))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	first, err := svc.Assess(ctx, lat, lon, model.VehicleMotor)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	if first.CacheStatus != CacheMiss {
		t.Fatalf("first status=%s", first.CacheStatus)
	}
	want := scoring.Assess(drizzle(), model.VehicleMotor)
	if *first.Assessment.ProviderScore != *want.ProviderScore {
		t.Fatalf("score=%v want %v", *first.Assessment.ProviderScore, *want.ProviderScore)
	}

	// a nearby point in the same bucket is served from cache
	second, err := svc.Assess(ctx, lat+0.0001, lon+0.0001, model.VehicleMotor)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.CacheStatus != CacheHit {
		t.Fatalf("second status=%s", second.CacheStatus)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("provider calls=%d want 1", p.calls.Load())
	}
	if len(second.Assessment.Hints) != len(first.Assessment.Hints) {
		t.Fatalf("hit hints=%v miss hints=%v", second.Assessment.Hints, first.Assessment.Hints)
	}

	bucket := st.Bucket(lat, lon)
	if hot.Score(bucket) != 2 {
		t.Fatalf("hotness=%v want 2", hot.Score(bucket))
	}
	if len(sink.events) != 2 || sink.events[0].CacheStatus != CacheMiss || sink.events[1].CacheStatus != CacheHit {
		t.Fatalf("events=%+v", sink.events)
	}
	if sink.events[0].Bucket != bucket || sink.events[0].Vehicle != "motor" {
		t.Fatalf("event=%+v", sink.events[0])
	}
}

func TestAssess_VehiclesAreCachedSeparately(t *testing.T) {
	st, _ := newStore(t)
	p := &countingProvider{obs: drizzle()}
	svc, _ := New(st, p)
	ctx := context.Background()

	_, _ = svc.Assess(ctx, lat, lon, model.VehicleBike)
	res, err := svc.Assess(ctx, lat, lon, model.VehicleMotor)
	if err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if res.CacheStatus != CacheMiss || p.calls.Load() != 2 {
		t.Fatalf("status=%s calls=%d", res.CacheStatus, p.calls.Load())
	}
}

func TestAssess_StoreDownStillAnswers(t *testing.T) {
	st, mr := newStore(t)
	p := &countingProvider{obs: drizzle()}
	svc, _ := New(st, p)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := 0; i < 2; i++ {
		res, err := svc.Assess(ctx, lat, lon, model.VehicleBike)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if res.CacheStatus != CacheMiss {
			t.Fatalf("call %d status=%s", i, res.CacheStatus)
		}
	}
	if p.calls.Load() != 2 {
		t.Fatalf("provider calls=%d want 2", p.calls.Load())
	}
}

func TestAssess_UpstreamFailureIsNotCached(t *testing.T) {
	st, mr := newStore(t)
	boom := errors.New("dial tcp: refused")
	p := &countingProvider{err: boom}
	svc, _ := New(st, p)

	_, err := svc.Assess(context.Background(), lat, lon, model.VehicleBike)
	if !errors.Is(err, ErrUpstreamUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("err=%v", err)
	}
	if p.calls.Load() != 1 {
		t.Fatalf("provider calls=%d want 1 (no retry)", p.calls.Load())
	}
	if mr.Exists(st.Key(lat, lon, model.VehicleBike)) {
		t.Fatalf("failure must not be cached")
	}
}

func TestAssess_CorruptEntryIsRefetchedAndReplaced(t *testing.T) {
	st, mr := newStore(t)
	p := &countingProvider{obs: drizzle()}
	svc, _ := New(st, p)
	key := st.Key(lat, lon, model.VehicleBike)
	_ = mr.Set(key, "{broken")

	res, err := svc.Assess(context.Background(), lat, lon, model.VehicleBike)
	if err != nil || res.CacheStatus != CacheMiss {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	res, _ = svc.Assess(context.Background(), lat, lon, model.VehicleBike)
	if res.CacheStatus != CacheHit {
		t.Fatalf("status=%s after rewrite", res.CacheStatus)
	}
}

func TestAssess_CanceledRequestStillWritesCache(t *testing.T) {
	st, mr := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	p := weather.ProviderFunc(func(context.Context, float64, float64) (model.Observation, error) {
		cancel()
		return drizzle(), nil
	})
	svc, _ := New(st, p)

	if _, err := svc.Assess(ctx, lat, lon, model.VehicleMotor); err != nil {
		t.Fatalf("Assess: %v", err)
	}
	if !mr.Exists(st.Key(lat, lon, model.VehicleMotor)) {
		t.Fatalf("entry not written after client cancel")
	}
}

func TestNew_Validation(t *testing.T) {
	st, _ := newStore(t)
	if _, err := New(nil, &countingProvider{}); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := New(st, nil); err == nil {
		t.Fatalf("expected error for nil provider")
	}
}

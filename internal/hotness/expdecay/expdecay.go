// Package expdecay implements an exponential decay model for hotness scores.
package expdecay

import (
	"math"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nnar1o/meteoride/internal/hotness"
)

const numShards = 64

// Tracker keeps a decaying request score per bucket. Memory is bounded: each
// shard is an LRU, so the coldest buckets fall out first.
type Tracker struct {
	HalfLife time.Duration

	now func() time.Time

	shards [numShards]shard
}

type shard struct {
	mu sync.Mutex
	m  *lru.Cache[string, counter]
}

type counter struct {
	score float64
	last  time.Time
}

var _ hotness.Interface = (*Tracker)(nil)

// New returns a tracker holding at most maxBuckets entries (rounded up to a
// multiple of the shard count); maxBuckets <= 0 uses 10000.
func New(halfLife time.Duration, maxBuckets int) *Tracker {
	if halfLife <= 0 {
		halfLife = time.Minute
	}
	if maxBuckets <= 0 {
		maxBuckets = 10000
	}
	per := (maxBuckets + numShards - 1) / numShards
	t := &Tracker{HalfLife: halfLife, now: time.Now}
	for i := range t.shards {
		c, _ := lru.New[string, counter](per)
		t.shards[i].m = c
	}
	return t
}

func (t *Tracker) Inc(bucket string) {
	if bucket == "" {
		return
	}
	s := t.pick(bucket)
	n := t.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.m.Get(bucket)
	if !ok {
		s.m.Add(bucket, counter{score: 1, last: n})
		return
	}
	dt := n.Sub(c.last).Seconds()
	// apply exponential decay to the existing score before incrementing
	s.m.Add(bucket, counter{score: decay(c.score, dt, t.HalfLife.Seconds()) + 1.0, last: n})
}

func (t *Tracker) Score(bucket string) float64 {
	if bucket == "" {
		return 0
	}
	s := t.pick(bucket)
	n := t.now()

	s.mu.Lock()
	c, ok := s.m.Peek(bucket)
	s.mu.Unlock()
	if !ok {
		return 0
	}

	dt := n.Sub(c.last).Seconds()
	return decay(c.score, dt, t.HalfLife.Seconds())
}

func decay(score, dt, halfLife float64) float64 {
	if score == 0 || dt <= 0 || halfLife <= 0 {
		return score
	}
	lambda := math.Ln2 / halfLife
	// apply exponential decay (e^(-λt))
	return score * math.Exp(-lambda*dt)
}

func (t *Tracker) pick(bucket string) *shard {
	h := xxhash.Sum64String(bucket)
	idx := h & (uint64(len(t.shards)) - 1)
	return &t.shards[idx]
}

func (t *Tracker) Size() int {
	total := 0
	for i := range t.shards {
		total += t.shards[i].m.Len()
	}
	return total
}

package linker

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// DefaultTTL is how long a vocabulary snapshot is served before it is
// fetched again.
const DefaultTTL = 5 * time.Minute

// Source lists every distinct term currently known.
type Source interface {
	Terms(ctx context.Context) ([]string, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context) ([]string, error)

func (f SourceFunc) Terms(ctx context.Context) ([]string, error) {
	return f(ctx)
}

// A Snapshot is the whole vocabulary at one point in time. Snapshots are never
// modified after creation; a refresh replaces the snapshot instead.
type Snapshot struct {
	// Normalized terms, longest first, ties in lexical order.
	Terms     []string
	FetchedAt time.Time

	once sync.Once
	re   *regexp.Regexp
	err  error
}

// NewSnapshot normalizes and orders terms. Duplicates (after lowercasing and
// collapsing whitespace) and blank terms are dropped.
func NewSnapshot(terms []string, fetchedAt time.Time) *Snapshot {
	return &Snapshot{Terms: normalizeVocabulary(terms), FetchedAt: fetchedAt}
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Terms)
}

// pattern is compiled at most once per snapshot.
func (s *Snapshot) pattern() *regexp.Regexp {
	if s.Len() == 0 {
		return nil
	}
	s.once.Do(func() {
		s.re, s.err = compilePattern(s.Terms)
	})
	return s.re
}

func normalizeVocabulary(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	normalized := make([]string, 0, len(terms))
	for _, term := range terms {
		term = normalizeTerm(term)
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		normalized = append(normalized, term)
	}
	slices.SortFunc(normalized, func(a, b string) int {
		if c := cmp.Compare(utf8.RuneCountInString(b), utf8.RuneCountInString(a)); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	return normalized
}

var emptySnapshot = &Snapshot{}

// VocabularyCache holds the latest vocabulary snapshot and refetches it from
// its Source once the snapshot is older than the TTL.
//
// Reads and writes go through an atomic pointer. Two goroutines that both see
// an expired snapshot will both fetch, and whichever stores last wins.
type VocabularyCache struct {
	source Source
	ttl    time.Duration
	now    func() time.Time
	log    *zap.Logger

	current atomic.Pointer[Snapshot]
	stale   atomic.Bool
	// generation counts invalidations, so a fetch that started before one
	// does not clear it.
	generation atomic.Uint64
}

type Option func(*VocabularyCache)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *VocabularyCache) {
		c.now = now
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *VocabularyCache) {
		c.log = log
	}
}

func NewVocabularyCache(source Source, ttl time.Duration, opts ...Option) *VocabularyCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &VocabularyCache{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached snapshot, refreshing it first if it is missing or
// expired. It never fails: if the refresh fails it falls back to the previous
// snapshot, however old, and with no previous snapshot to an empty one.
func (c *VocabularyCache) Get(ctx context.Context) *Snapshot {
	now := c.now()
	current := c.current.Load()
	if current != nil && !c.stale.Load() && now.Sub(current.FetchedAt) < c.ttl {
		return current
	}
	snap, err := c.Refresh(ctx, now)
	if err == nil {
		return snap
	}
	if current != nil {
		c.log.Warn("vocabulary refresh failed, serving previous snapshot",
			zap.Error(err),
			zap.Int("terms", current.Len()),
			zap.Time("fetched_at", current.FetchedAt))
		return current
	}
	c.log.Warn("vocabulary refresh failed, linking disabled", zap.Error(err))
	return emptySnapshot
}

// Refresh fetches the vocabulary and, on success, replaces the cached
// snapshot with one stamped at now. A failed refresh leaves the cache as it was.
func (c *VocabularyCache) Refresh(ctx context.Context, now time.Time) (*Snapshot, error) {
	gen := c.generation.Load()
	terms, err := c.source.Terms(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch vocabulary: %w", err)
	}
	snap := NewSnapshot(terms, now)
	if snap.pattern(); snap.err != nil {
		return nil, fmt.Errorf("compile vocabulary pattern: %w", snap.err)
	}
	c.current.Store(snap)
	if c.generation.Load() == gen {
		c.stale.Store(false)
	}
	c.log.Debug("vocabulary refreshed", zap.Int("terms", snap.Len()))
	return snap, nil
}

// Invalidate marks the current snapshot as expired without dropping it, so the
// next Get refetches but can still fall back to it.
func (c *VocabularyCache) Invalidate() {
	c.generation.Add(1)
	c.stale.Store(true)
}

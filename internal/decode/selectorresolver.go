package decode

import (
	"context"
	"sync"
	"time"
)

// SelectorResolverTTL is how long a resolved (or negative) selector lookup
// is cached before the resolver will hit the backing fetcher again.
const SelectorResolverTTL = 24 * time.Hour

// SignatureFetcher is the underlying network lookup a SelectorResolver
// wraps (an open signature database such as 4byte.directory/openchain).
// A successful fetch is cached for the TTL window; a failed fetch is not
// cached, so the next lookup of that selector fetches again.
type SignatureFetcher interface {
	FetchSignatures(ctx context.Context, selector [4]byte) ([]string, error)
}

type resolverEntry struct {
	signatures []string
	expiresAt  time.Time
}

// SelectorResolver is a SignatureLookup backed by a SignatureFetcher with a
// TTL cache. Writes (populating a freshly-fetched entry) are serialized
// through a single mutex; reads of already-cached entries do not block
// each other's fetch work for distinct selectors because the fetch itself
// happens outside the lock.
type SelectorResolver struct {
	fetcher SignatureFetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[[4]byte]resolverEntry

	// inflight deduplicates concurrent misses for the same selector so a
	// burst of lookups for one popular selector triggers one fetch.
	inflightMu sync.Mutex
	inflight   map[[4]byte]*sync.WaitGroup
}

// NewSelectorResolver builds a resolver with the standard 24h TTL.
func NewSelectorResolver(fetcher SignatureFetcher) *SelectorResolver {
	return &SelectorResolver{
		fetcher:  fetcher,
		ttl:      SelectorResolverTTL,
		now:      time.Now,
		entries:  make(map[[4]byte]resolverEntry),
		inflight: make(map[[4]byte]*sync.WaitGroup),
	}
}

// Lookup implements SignatureLookup. A network failure on a cache miss
// returns the error; an expired or absent cache entry that fetches
// successfully (even to an empty result, which is itself cached to avoid
// hammering a fetcher for a selector with no known signature) is stored
// before returning.
func (r *SelectorResolver) Lookup(selector [4]byte) ([]string, error) {
	if sigs, ok := r.get(selector); ok {
		return sigs, nil
	}

	wg, leader := r.claim(selector)
	if !leader {
		wg.Wait()
		if sigs, ok := r.get(selector); ok {
			return sigs, nil
		}
		return nil, ErrUnresolvedSelector
	}
	defer r.release(selector, wg)

	sigs, err := r.fetcher.FetchSignatures(context.Background(), selector)
	if err != nil {
		return nil, err
	}
	r.put(selector, sigs)
	return sigs, nil
}

func (r *SelectorResolver) get(selector [4]byte) ([]string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[selector]
	if !ok || r.now().After(e.expiresAt) {
		return nil, false
	}
	return e.signatures, true
}

func (r *SelectorResolver) put(selector [4]byte, sigs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[selector] = resolverEntry{signatures: sigs, expiresAt: r.now().Add(r.ttl)}
}

// claim reports whether the calling goroutine became the single fetcher
// for this selector (leader==true) or should wait on another goroutine's
// in-flight fetch (leader==false).
func (r *SelectorResolver) claim(selector [4]byte) (*sync.WaitGroup, bool) {
	r.inflightMu.Lock()
	defer r.inflightMu.Unlock()
	if wg, ok := r.inflight[selector]; ok {
		return wg, false
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	r.inflight[selector] = wg
	return wg, true
}

func (r *SelectorResolver) release(selector [4]byte, wg *sync.WaitGroup) {
	r.inflightMu.Lock()
	delete(r.inflight, selector)
	r.inflightMu.Unlock()
	wg.Done()
}

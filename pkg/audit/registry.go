package audit

import (
	"time"

	"github.com/Velocidex/ttlcache/v2"
)

// registry holds parsed runs until their report is fetched or they expire.
// Expiry is driven by ttlcache; onExpire is called for every run dropped by
// the cache, including those removed explicitly, so it must be guarded by
// Run.claim.
type registry struct {
	lru *ttlcache.Cache
}

func newRegistry(ttl time.Duration, onExpire func(*Run)) *registry {
	r := &registry{lru: ttlcache.NewCache()}
	_ = r.lru.SetTTL(ttl)
	r.lru.SkipTTLExtensionOnHit(true)
	r.lru.SetExpirationCallback(func(key string, value interface{}) error {
		if run, ok := value.(*Run); ok {
			onExpire(run)
		}
		return nil
	})
	return r
}

func (r *registry) put(run *Run) error {
	return r.lru.Set(run.ID, run)
}

func (r *registry) get(id string) (*Run, bool) {
	v, err := r.lru.Get(id)
	if err != nil {
		return nil, false
	}
	run, ok := v.(*Run)
	return run, ok
}

func (r *registry) remove(id string) {
	_ = r.lru.Remove(id)
}

func (r *registry) all() []*Run {
	keys := r.lru.GetKeys()
	out := make([]*Run, 0, len(keys))
	for _, k := range keys {
		if run, ok := r.get(k); ok {
			out = append(out, run)
		}
	}
	return out
}

func (r *registry) len() int {
	return len(r.lru.GetKeys())
}

func (r *registry) close() {
	r.lru.Close()
}

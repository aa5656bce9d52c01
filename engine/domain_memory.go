package engine

import (
	"sync"
	"time"
)

// Resolution is what the dispatcher learned about a domain: the landing
// URL that answered and the engine that loaded it.
type Resolution struct {
	URL    string
	Engine string
}

type domainEntry struct {
	res       Resolution
	expiresAt time.Time
}

// DomainMemory remembers the last successful resolution of each registrable
// domain. Entries expire after the configured TTL and are pruned hourly.
type DomainMemory struct {
	store sync.Map // domain (string) -> *domainEntry
	ttl   time.Duration
	done  chan struct{}
	once  sync.Once
}

// NewDomainMemory creates a DomainMemory with the given TTL and starts
// a background goroutine that prunes expired entries every hour.
func NewDomainMemory(ttl time.Duration) *DomainMemory {
	dm := &DomainMemory{
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go dm.cleanupLoop(time.Hour)
	return dm
}

// Get returns the remembered resolution for a domain.
func (dm *DomainMemory) Get(domain string) (Resolution, bool) {
	if dm == nil {
		return Resolution{}, false
	}
	val, ok := dm.store.Load(domain)
	if !ok {
		return Resolution{}, false
	}
	entry := val.(*domainEntry)
	if time.Now().After(entry.expiresAt) {
		dm.store.Delete(domain)
		return Resolution{}, false
	}
	return entry.res, true
}

// Set records a successful resolution for a domain.
func (dm *DomainMemory) Set(domain string, res Resolution) {
	if dm == nil {
		return
	}
	dm.store.Store(domain, &domainEntry{
		res:       res,
		expiresAt: time.Now().Add(dm.ttl),
	})
}

// Delete forgets a domain, e.g. after its remembered URL stopped answering.
func (dm *DomainMemory) Delete(domain string) {
	if dm == nil {
		return
	}
	dm.store.Delete(domain)
}

// Stop terminates the background cleanup goroutine. Safe to call twice.
func (dm *DomainMemory) Stop() {
	if dm == nil {
		return
	}
	dm.once.Do(func() { close(dm.done) })
}

func (dm *DomainMemory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-dm.done:
			return
		case <-ticker.C:
			dm.prune(time.Now())
		}
	}
}

func (dm *DomainMemory) prune(now time.Time) {
	dm.store.Range(func(key, value any) bool {
		if now.After(value.(*domainEntry).expiresAt) {
			dm.store.Delete(key)
		}
		return true
	})
}

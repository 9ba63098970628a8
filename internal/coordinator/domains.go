package coordinator

import (
	"math"
	"sort"
	"time"
)

// Maintenance windows for domain state hygiene.
const (
	domainEvictionAgeMs = int64(time.Hour / time.Millisecond)
	stalledAfterMs      = int64(30 * time.Minute / time.Millisecond)
)

// domainScheduler owns per-domain politeness state: last fetch time, backoff
// deadline, and health counters.
type domainScheduler struct {
	states map[string]*DomainState
}

func newDomainScheduler() *domainScheduler {
	return &domainScheduler{states: make(map[string]*DomainState)}
}

// restore rebuilds the scheduler from a persisted slot.
func (d *domainScheduler) restore(states map[string]*DomainState) {
	if states == nil {
		states = make(map[string]*DomainState)
	}

	d.states = states
}

// get returns the state for a domain, creating it on first encounter.
func (d *domainScheduler) get(domain string) *DomainState {
	state, ok := d.states[domain]
	if !ok {
		state = &DomainState{}
		d.states[domain] = state
	}

	return state
}

func (d *domainScheduler) size() int {
	return len(d.states)
}

func (d *domainScheduler) clear() {
	d.states = make(map[string]*DomainState)
}

// recordFailure increments the error counter and extends the backoff
// deadline exponentially: minDelay * multiplier^errorCount, capped at
// maxDelay. Successive failures yield non-decreasing deadlines.
func (d *domainScheduler) recordFailure(domain string, now int64, rate *RateLimitingConfig) {
	state := d.get(domain)
	state.ErrorCount++

	backoff := float64(rate.MinDomainDelayMs) * math.Pow(rate.ErrorBackoffMultiplier, float64(state.ErrorCount))
	if backoff > float64(rate.MaxDomainDelayMs) {
		backoff = float64(rate.MaxDomainDelayMs)
	}

	state.BackoffUntil = now + int64(backoff)
}

// recordSuccess zeroes the failure state and accumulates response totals.
func (d *domainScheduler) recordSuccess(domain string, responseTimeMs, bytes int64) {
	state := d.get(domain)
	state.ErrorCount = 0
	state.BackoffUntil = 0
	state.SuccessCount++
	state.TotalResponseTimeMs += responseTimeMs
	state.BytesDownloaded += bytes
}

// clearElapsedBackoffs zeroes deadlines that have passed. Returns the number
// of domains cleared.
func (d *domainScheduler) clearElapsedBackoffs(now int64) int {
	cleared := 0

	for _, state := range d.states {
		if state.BackoffUntil > 0 && state.BackoffUntil <= now {
			state.BackoffUntil = 0
			cleared++
		}
	}

	return cleared
}

// evictStale drops domains that were never dispatched and have not been
// fetched within the eviction window. Returns the number evicted.
func (d *domainScheduler) evictStale(now int64) int {
	evicted := 0

	for domain, state := range d.states {
		if state.RequestCount == 0 && state.LastFetchAt < now-domainEvictionAgeMs {
			delete(d.states, domain)
			evicted++
		}
	}

	return evicted
}

// snapshot returns the domain slot for persistence.
func (d *domainScheduler) snapshot() map[string]*DomainState {
	if d.states == nil {
		return map[string]*DomainState{}
	}

	return d.states
}

// breakdown returns up to limit domains ordered by request count descending,
// for the operator stats view.
func (d *domainScheduler) breakdown(limit int) []DomainBreakdownEntry {
	entries := make([]DomainBreakdownEntry, 0, len(d.states))

	for domain, state := range d.states {
		entries = append(entries, DomainBreakdownEntry{
			Domain:          domain,
			RequestCount:    state.RequestCount,
			SuccessCount:    state.SuccessCount,
			ErrorCount:      state.ErrorCount,
			BackoffUntil:    state.BackoffUntil,
			LastFetchAt:     state.LastFetchAt,
			BytesDownloaded: state.BytesDownloaded,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].RequestCount != entries[j].RequestCount {
			return entries[i].RequestCount > entries[j].RequestCount
		}

		return entries[i].Domain < entries[j].Domain
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}

	return entries
}

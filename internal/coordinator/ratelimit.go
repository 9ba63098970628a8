package coordinator

const rateWindowMs = int64(60000)

// rateWindow is a 60-second sliding window over dispatch timestamps, used to
// enforce globalRateLimitPerMinute. It is deliberately in-memory only: after
// a restart the window starts empty, which briefly over-admits rather than
// blocking dispatch on stale data.
type rateWindow struct {
	events []int64
}

// prune drops events older than the window.
func (w *rateWindow) prune(now int64) {
	cutoff := now - rateWindowMs
	keep := 0

	for _, ts := range w.events {
		if ts > cutoff {
			w.events[keep] = ts
			keep++
		}
	}

	w.events = w.events[:keep]
}

// count returns the number of dispatches inside the window.
func (w *rateWindow) count(now int64) int {
	w.prune(now)
	return len(w.events)
}

// record adds n dispatches at the given instant.
func (w *rateWindow) record(now int64, n int) {
	for i := 0; i < n; i++ {
		w.events = append(w.events, now)
	}
}

package coordinator

import "sort"

// frontier holds admitted-but-undispatched URLs. The dispatch ordering
// (higher priority first, then oldest first) is applied lazily by
// sortForDispatch rather than maintained on insertion.
type frontier struct {
	items []QueuedURL
	index map[string]struct{}
}

func newFrontier() *frontier {
	return &frontier{index: make(map[string]struct{})}
}

// restore rebuilds the frontier from a persisted queue slot.
func (f *frontier) restore(items []QueuedURL) {
	f.items = items
	f.index = make(map[string]struct{}, len(items))

	for i := range items {
		f.index[items[i].URL] = struct{}{}
	}
}

// contains reports whether a normalized URL is already queued.
func (f *frontier) contains(url string) bool {
	_, ok := f.index[url]
	return ok
}

func (f *frontier) push(item QueuedURL) {
	f.items = append(f.items, item)
	f.index[item.URL] = struct{}{}
}

func (f *frontier) size() int {
	return len(f.items)
}

// sortForDispatch orders items by (-priority, addedAt): higher priority
// first, ties broken by oldest first. Stable so equal items keep their
// admission order.
func (f *frontier) sortForDispatch() {
	sort.SliceStable(f.items, func(i, j int) bool {
		if f.items[i].Priority != f.items[j].Priority {
			return f.items[i].Priority > f.items[j].Priority
		}

		return f.items[i].AddedAt < f.items[j].AddedAt
	})
}

// replace swaps the queue for the post-dispatch remainder.
func (f *frontier) replace(remaining []QueuedURL) {
	f.items = remaining
	f.index = make(map[string]struct{}, len(remaining))

	for i := range remaining {
		f.index[remaining[i].URL] = struct{}{}
	}
}

// clear empties the frontier. Used by reset.
func (f *frontier) clear() {
	f.items = nil
	f.index = make(map[string]struct{})
}

// snapshot returns the queue slot for persistence. The slice aliases the
// live queue; callers must serialize it before the next mutation.
func (f *frontier) snapshot() []QueuedURL {
	if f.items == nil {
		return []QueuedURL{}
	}

	return f.items
}

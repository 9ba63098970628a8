package coordinator

import "sort"

// visitedIndex is an exact set of 32-bit URL hashes. Exact membership is
// fine at the default queue cap (100k hashes is 400 KiB); a hash collision
// makes a URL look visited, which under-crawls but never double-crawls.
type visitedIndex struct {
	hashes map[uint32]struct{}
}

func newVisitedIndex() *visitedIndex {
	return &visitedIndex{hashes: make(map[uint32]struct{})}
}

// restore rebuilds the index from a persisted slot.
func (v *visitedIndex) restore(hashes []uint32) {
	v.hashes = make(map[uint32]struct{}, len(hashes))

	for _, h := range hashes {
		v.hashes[h] = struct{}{}
	}
}

func (v *visitedIndex) contains(hash uint32) bool {
	_, ok := v.hashes[hash]
	return ok
}

func (v *visitedIndex) insert(hash uint32) {
	v.hashes[hash] = struct{}{}
}

func (v *visitedIndex) size() int {
	return len(v.hashes)
}

func (v *visitedIndex) clear() {
	v.hashes = make(map[uint32]struct{})
}

// snapshot returns the hashes sorted, so persisted snapshots are
// byte-stable for identical state.
func (v *visitedIndex) snapshot() []uint32 {
	out := make([]uint32, 0, len(v.hashes))

	for h := range v.hashes {
		out = append(out, h)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

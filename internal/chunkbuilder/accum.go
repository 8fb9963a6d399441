package chunkbuilder

import "math/bits"

// accumBitmap tracks the set of flat cell indices changed since the
// current chunk's snapshot (spec §4.4's accumulated_bits). It is the same
// word-bitmap idiom as internal/changetrack's per-thread bitmaps, but
// chunk-scoped rather than thread-scoped: one Builder owns exactly one,
// union-marked every sample and cleared only at a snapshot boundary.
type accumBitmap struct {
	words []uint64
}

func newAccumBitmap(cellCount uint64) *accumBitmap {
	return &accumBitmap{words: make([]uint64, (cellCount+63)/64)}
}

func (a *accumBitmap) markAll(indices []uint64) {
	for _, idx := range indices {
		word := idx / 64
		bit := idx % 64
		a.words[word] |= 1 << bit
	}
}

// forEachSet calls fn once per set bit, in ascending index order.
func (a *accumBitmap) forEachSet(fn func(index uint64)) {
	for wordIdx, w := range a.words {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			w &= w - 1
			fn(uint64(wordIdx)*64 + uint64(bit))
		}
	}
}

func (a *accumBitmap) reset() {
	clear(a.words)
}

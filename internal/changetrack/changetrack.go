// Package changetrack records, wait-free, which cell indices mutated during
// a sampling window so the capture phase can drain exactly the changed set
// without scanning the whole environment.
//
// Design: each writer goroutine registers once at simulation startup and
// receives its own *ThreadBitmap. Mark touches only that bitmap — no
// atomics, no shared cache line, no locks on the hot path. Drain is only
// safe to call from the single driver goroutine at a global barrier where
// no writer is active (see spec §5); this is a precondition the tracker
// documents but does not enforce at runtime, matching the teacher's
// decision to keep barrier invariants out of the hot path.
package changetrack

import (
	"math/bits"
	"sync"

	"github.com/evochora/evochora-sub000/internal/envview"
)

// ThreadBitmap is a single writer goroutine's private change bitmap, one
// bit per flat cell index. Writers must never share a ThreadBitmap across
// goroutines.
type ThreadBitmap struct {
	words []uint64
}

func newThreadBitmap(cellCount uint64) *ThreadBitmap {
	return &ThreadBitmap{words: make([]uint64, (cellCount+63)/64)}
}

// Mark records that the cell at index changed. Wait-free: a plain
// load-modify-store on the goroutine's own backing array.
func (b *ThreadBitmap) Mark(index uint64) {
	word := index / 64
	bit := index % 64
	b.words[word] |= 1 << bit
}

// Tracker owns the set of registered per-thread bitmaps and drives the
// barrier-synchronized drain.
type Tracker struct {
	cellCount uint64

	mu        sync.Mutex // guards registration only, never touched by Mark
	bitmaps   []*ThreadBitmap
	scratch   []uint64 // reused OR-merge accumulator, sized once
}

// New creates a Tracker for an environment with the given cell count.
func New(cellCount uint64) *Tracker {
	return &Tracker{
		cellCount: cellCount,
		scratch:   make([]uint64, (cellCount+63)/64),
	}
}

// Register creates and registers a new per-thread bitmap for a writer
// goroutine. Must be called before the writer starts marking, and only
// during the single-threaded startup phase — not concurrently with Drain.
func (t *Tracker) Register() *ThreadBitmap {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := newThreadBitmap(t.cellCount)
	t.bitmaps = append(t.bitmaps, b)
	return b
}

// DrainInto ORs all registered bitmaps together, extracts the set-bit
// indices, reads each changed cell's current state from view, and appends
// (index, molecule, owner) into the three sinks in ascending index order.
// All registered bitmaps are cleared afterward, retaining their backing
// storage for reuse.
//
// Must only be called from the single driver goroutine at a barrier where
// no writer goroutine is between Register and its next Mark call.
func (t *Tracker) DrainInto(view envview.View, addrSink *[]uint64, dataSink *[]int32, ownerSink *[]int32) {
	clear(t.scratch)
	for _, b := range t.bitmaps {
		for i, w := range b.words {
			t.scratch[i] |= w
		}
	}

	for wordIdx, w := range t.scratch {
		for w != 0 {
			bit := bits.TrailingZeros64(w)
			w &= w - 1 // clear lowest set bit
			index := uint64(wordIdx)*64 + uint64(bit)
			cell := view.CellAt(index)
			*addrSink = append(*addrSink, index)
			*dataSink = append(*dataSink, cell.Molecule)
			*ownerSink = append(*ownerSink, cell.Owner)
		}
	}

	for _, b := range t.bitmaps {
		clear(b.words)
	}
}

// Reset clears every registered bitmap without reading any cell state,
// retaining their backing storage for reuse. Used when a snapshot capture
// makes the currently-marked set moot (its cells are already fully
// represented in the snapshot) without needing the sinks DrainInto fills.
func (t *Tracker) Reset() {
	for _, b := range t.bitmaps {
		clear(b.words)
	}
}

// Empty reports whether no bitmap currently has any bit set, without
// mutating state. Useful for flush-on-shutdown paths that want to know
// whether a drain would produce anything.
func (t *Tracker) Empty() bool {
	for _, b := range t.bitmaps {
		for _, w := range b.words {
			if w != 0 {
				return false
			}
		}
	}
	return true
}

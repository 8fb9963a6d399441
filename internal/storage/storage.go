// Package storage implements chunk-as-BLOB persistence (spec §4.7): a
// write side that stages rows and commits them in one batch, and a read
// side that locates the chunk covering a requested tick.
//
// The table's logical key is first_tick (spec §6's schema), but the
// physical key used here is the pair (first_tick, last_tick): truncation
// (spec §4.8 step 5) persists a shorter chunk under a new last_tick while
// the original record — sharing the same first_tick — has not yet been
// moved to the superseded namespace. That transient duplication is exactly
// what TruncationDedup (internal/resume) is built to collapse; a storage
// layer keyed on first_tick alone could never produce the duplicate the
// dedup rule and crash-safety scenario (spec §8 scenario 6) depend on.
package storage

import (
	"errors"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

var (
	// ErrTickNotFound is returned by ReadChunkContaining when no stored
	// chunk covers the requested tick, and by SupersedeChunk when the
	// named (first_tick, last_tick) record does not exist.
	ErrTickNotFound = errors.New("tick not found")

	// ErrStorage wraps a transient I/O failure from the underlying
	// database or compression layer. The caller decides whether to retry
	// or DLQ; the strategy itself always rolls back and resets streaming
	// state on such a failure.
	ErrStorage = errors.New("storage error")
)

// ChunkMeta is the fixed-size metadata stored alongside each chunk BLOB,
// letting range queries and dedup decisions run without decompressing the
// body.
type ChunkMeta struct {
	FirstTick uint64
	LastTick  uint64
	TickCount uint32
}

// Strategy is the chunk-as-BLOB persistence contract (spec §4.7). The
// strategy never commits on its own; the containing database resource owns
// the transaction (here, CommitRawChunks opens and commits it).
type Strategy interface {
	// CreateTables is idempotent and safe under concurrent callers.
	// dimensions records the simulation grid shape for downstream readers.
	CreateTables(dimensions []uint64) error

	// WriteRawChunk stages one row keyed by (firstTick, lastTick). No
	// transaction is opened; the row is only visible after
	// CommitRawChunks succeeds.
	WriteRawChunk(firstTick, lastTick uint64, tickCount uint32, chunk tickpb.TickDataChunk) error

	// CommitRawChunks executes the staged batch within one transaction.
	CommitRawChunks() error

	// ResetStreamingState discards any staged rows without committing.
	// Called on failure to avoid leaking a stale batch into the next window.
	ResetStreamingState()

	// ReadChunkContaining returns the single row where
	// first_tick <= tick <= last_tick, or ErrTickNotFound if absent. If
	// more than one committed, non-superseded row matches (a transient
	// pre-dedup state), the one with the smallest last_tick is returned,
	// consistent with TruncationDedup's rule.
	ReadChunkContaining(tick uint64) (tickpb.TickDataChunk, error)

	// ListChunkMetas returns metadata for every committed, non-superseded
	// record, in ascending (first_tick, last_tick) order, without
	// decompressing or decoding any chunk body. It intentionally performs
	// no deduplication — that is internal/resume.Loader's job (spec
	// §4.8's TruncationDedup lives in the loader, not the strategy, so
	// every caller of the strategy sees the raw, possibly-duplicated
	// state and only the loader's List enforces the collapsed view).
	ListChunkMetas() ([]ChunkMeta, error)

	// SupersedeChunk moves the record at (firstTick, lastTick) out of the
	// active set and into a namespace ListChunkMetas/ReadChunkContaining
	// ignore, without deleting it (spec §4.8: "no committed data is ever
	// deleted outright").
	SupersedeChunk(firstTick, lastTick uint64) error
}

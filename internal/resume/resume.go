// Package resume implements ResumeLoader and TruncationDedup (spec §4.8)
// and RestoreMapper (spec §4.9): listing the stored chunk records with
// duplicate first_tick rows collapsed, truncating a chunk back to its
// last checkpoint when a crash left uncommitted deltas past it, and
// mapping a chosen checkpoint (snapshot or accumulated delta) onto the
// runtime state a simulation resumes from.
package resume

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/evochora/evochora-sub000/internal/callgroup"
	"github.com/evochora/evochora-sub000/internal/logging"
	"github.com/evochora/evochora-sub000/internal/storage"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// ErrRunNotFound is returned when no run metadata exists for a requested run_id.
var ErrRunNotFound = errors.New("run not found")

// RunMeta is the last-known-good metadata kept per run, mirroring the
// teacher's MetaStore capability that sits alongside its chunk manager.
type RunMeta struct {
	RunID     string
	StartedAt time.Time
	Dimensions []uint64
}

// RunMetaStore persists RunMeta by run_id. The in-process implementation
// below (MapRunMetaStore) is sufficient for tests and single-node use;
// a production deployment would back this with the same bbolt database
// storage.Strategy uses, keyed in its own bucket.
type RunMetaStore interface {
	Load(runID string) (RunMeta, error)
	Save(meta RunMeta) error
}

// MapRunMetaStore is an in-memory RunMetaStore, modeled on the teacher's
// mutex-guarded map stores (chunk/memory.Manager).
type MapRunMetaStore struct {
	runs map[string]RunMeta
}

// NewMapRunMetaStore creates an empty in-memory run metadata store.
func NewMapRunMetaStore() *MapRunMetaStore {
	return &MapRunMetaStore{runs: make(map[string]RunMeta)}
}

func (s *MapRunMetaStore) Load(runID string) (RunMeta, error) {
	meta, ok := s.runs[runID]
	if !ok {
		return RunMeta{}, ErrRunNotFound
	}
	return meta, nil
}

func (s *MapRunMetaStore) Save(meta RunMeta) error {
	s.runs[meta.RunID] = meta
	return nil
}

// Checkpoint identifies the tick a resume picks up from and whatever
// runtime state RestoreMapper selected for it.
type Checkpoint struct {
	CheckpointTick uint64
	ResumeFromTick uint64
	CellColumns    tickpb.CellColumns
	Organisms      []byte
	TotalOrganismsCreated uint64
	RNGState       []byte
	ProcessStates  []byte
}

// Result is what Loader.Resume reports: the run's metadata, the chunk it
// resumes from (already truncated if truncation was needed), and the
// selected checkpoint.
type Result struct {
	Meta       RunMeta
	Chunk      tickpb.TickDataChunk
	Checkpoint Checkpoint
	Truncated  bool
}

// Loader implements ResumeLoader over a storage.Strategy and a
// RunMetaStore. Concurrent Resume calls for the same run_id are
// deduplicated through an internal callgroup.Group so two callers can
// never race to truncate-and-supersede the same record; the second caller
// simply waits for and receives the first's result.
type Loader struct {
	strategy storage.Strategy
	metas    RunMetaStore
	logger   *slog.Logger
	group    callgroup.Group[string]

	mu      sync.Mutex
	results map[string]Result
}

// New constructs a Loader. logger may be nil, in which case a discard
// logger is used, matching the rest of the codebase's logging convention.
func New(strategy storage.Strategy, metas RunMetaStore, logger *slog.Logger) *Loader {
	return &Loader{
		strategy: strategy,
		metas:    metas,
		logger:   logging.Default(logger).With("component", "resume"),
	}
}

// List returns every chunk record held by the strategy, in ascending
// (first_tick, last_tick) order with TruncationDedup applied (spec §4.8
// step 3): when two records share a first_tick, only the one with the
// smaller last_tick survives, and a warning is logged for operator
// visibility. Records are not filtered by run_id. Every caller of List
// sees this same collapsed view; the underlying storage.Strategy never
// deduplicates on its own.
func (l *Loader) List() ([]storage.ChunkMeta, error) {
	raw, err := l.strategy.ListChunkMetas()
	if err != nil {
		return nil, err
	}
	// ListChunkMetas returns records sorted ascending by (first_tick,
	// last_tick), so within a shared first_tick the first one seen already
	// carries the smallest last_tick; later ones are the stale duplicates.
	out := make([]storage.ChunkMeta, 0, len(raw))
	for _, meta := range raw {
		if n := len(out); n > 0 && out[n-1].FirstTick == meta.FirstTick {
			l.logger.Warn("dedup: discarding record with larger last_tick for shared first_tick",
				"first_tick", meta.FirstTick, "discarded_last_tick", meta.LastTick, "kept_last_tick", out[n-1].LastTick)
			continue
		}
		out = append(out, meta)
	}
	return out, nil
}

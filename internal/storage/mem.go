package storage

import (
	"sort"
	"sync"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// stagedRow mirrors one WriteRawChunk call, held in memory until
// CommitRawChunks (or discarded by ResetStreamingState).
type stagedRow struct {
	meta  ChunkMeta
	chunk tickpb.TickDataChunk
}

// MemStrategy is an in-memory Strategy implementation, modeled on the
// teacher's mutex-guarded slice chunk manager. Used by the resume package
// tests so they never need a real database file on disk.
// Committed rows are held in a plain slice, not a map keyed by first_tick,
// because the physical key is (first_tick, last_tick) and duplicates must
// be representable (see package doc).
type MemStrategy struct {
	mu         sync.Mutex
	dimensions []uint64
	pending    []stagedRow
	committed  []stagedRow
	superseded []stagedRow
}

// NewMemStrategy creates an empty in-memory strategy.
func NewMemStrategy() *MemStrategy {
	return &MemStrategy{}
}

func (m *MemStrategy) CreateTables(dimensions []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dimensions
	return nil
}

func (m *MemStrategy) WriteRawChunk(firstTick, lastTick uint64, tickCount uint32, chunk tickpb.TickDataChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, stagedRow{
		meta:  ChunkMeta{FirstTick: firstTick, LastTick: lastTick, TickCount: tickCount},
		chunk: chunk,
	})
	return nil
}

func (m *MemStrategy) CommitRawChunks() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.committed = append(m.committed, m.pending...)
	m.pending = nil
	return nil
}

func (m *MemStrategy) ResetStreamingState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = nil
}

func (m *MemStrategy) ReadChunkContaining(tick uint64) (tickpb.TickDataChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	best := -1
	for i, row := range m.committed {
		if row.meta.FirstTick <= tick && tick <= row.meta.LastTick {
			if best == -1 || row.meta.LastTick < m.committed[best].meta.LastTick {
				best = i
			}
		}
	}
	if best == -1 {
		return tickpb.TickDataChunk{}, ErrTickNotFound
	}
	return m.committed[best].chunk, nil
}

func (m *MemStrategy) ListChunkMetas() ([]ChunkMeta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChunkMeta, len(m.committed))
	for i, row := range m.committed {
		out[i] = row.meta
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FirstTick != out[j].FirstTick {
			return out[i].FirstTick < out[j].FirstTick
		}
		return out[i].LastTick < out[j].LastTick
	})
	return out, nil
}

func (m *MemStrategy) SupersedeChunk(firstTick, lastTick uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.committed {
		if row.meta.FirstTick == firstTick && row.meta.LastTick == lastTick {
			m.superseded = append(m.superseded, row)
			m.committed = append(m.committed[:i], m.committed[i+1:]...)
			return nil
		}
	}
	return ErrTickNotFound
}

var _ Strategy = (*MemStrategy)(nil)

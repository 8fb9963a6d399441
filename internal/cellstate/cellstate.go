// Package cellstate provides the decoder's scratch reconstruction buffer:
// a primitive-keyed map from flat cell index to (molecule, owner) that
// supports clear-and-reuse without reallocating its backing table.
package cellstate

import (
	"slices"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// Value is the reconstructed state of one cell.
type Value struct {
	Molecule int32
	Owner    int32
}

// State is a single-owner, never-shared scratch map used during
// incremental reconstruction. Call Clear between independent
// reconstructions to reuse the backing map without a fresh allocation.
type State struct {
	cells map[uint64]Value
}

// New creates an empty State with capacity hinted by sizeHint.
func New(sizeHint int) *State {
	return &State{cells: make(map[uint64]Value, sizeHint)}
}

// Clear empties the map, retaining its backing storage for reuse.
func (s *State) Clear() {
	clear(s.cells)
}

// Set inserts or overwrites the cell at index. Molecule must be non-zero;
// callers that want to remove a cell must call Remove explicitly (the
// decoder does this when it sees molecule==0 in a delta, per spec §4.5).
func (s *State) Set(index uint64, molecule, owner int32) {
	s.cells[index] = Value{Molecule: molecule, Owner: owner}
}

// Remove deletes the cell at index, if present.
func (s *State) Remove(index uint64) {
	delete(s.cells, index)
}

// Len returns the number of cells currently held.
func (s *State) Len() int {
	return len(s.cells)
}

// ToColumns materializes the current contents as CellColumns, ordered by
// ascending flat index. Ordering is implementation-defined per spec §4.6
// but must be deterministic for a given input sequence; sorting by index
// satisfies that and additionally yields output that's useful to binary
// search.
func (s *State) ToColumns() tickpb.CellColumns {
	indices := make([]uint64, 0, len(s.cells))
	for idx := range s.cells {
		indices = append(indices, idx)
	}
	slices.Sort(indices)

	cols := tickpb.CellColumns{
		FlatIndices:  make([]uint64, len(indices)),
		MoleculeData: make([]int32, len(indices)),
		OwnerIDs:     make([]int32, len(indices)),
	}
	for i, idx := range indices {
		v := s.cells[idx]
		cols.FlatIndices[i] = idx
		cols.MoleculeData[i] = v.Molecule
		cols.OwnerIDs[i] = v.Owner
	}
	return cols
}

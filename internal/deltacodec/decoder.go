package deltacodec

import (
	"github.com/evochora/evochora-sub000/internal/cellstate"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// ApplyDelta applies one delta's changed cells onto a scratch State: a
// molecule of zero removes the entry (spec §4.1's clearing edge case),
// anything else inserts or overwrites.
func ApplyDelta(state *cellstate.State, delta tickpb.TickDelta) {
	cols := delta.ChangedCells
	for i, idx := range cols.FlatIndices {
		if cols.MoleculeData[i] == 0 {
			state.Remove(idx)
			continue
		}
		state.Set(idx, cols.MoleculeData[i], cols.OwnerIDs[i])
	}
}

// ReconstructEnvironment seeds a fresh State from the snapshot (skipping
// any molecule==0 entries, which should not occur in a well-formed
// snapshot but are tolerated defensively) and applies each delta in order,
// returning the fully reconstructed cell columns.
func ReconstructEnvironment(snapshot tickpb.TickData, deltas []tickpb.TickDelta) tickpb.CellColumns {
	state := cellstate.New(snapshot.CellColumns.Len())
	seedSnapshot(state, snapshot)
	for _, d := range deltas {
		ApplyDelta(state, d)
	}
	return state.ToColumns()
}

func seedSnapshot(state *cellstate.State, snapshot tickpb.TickData) {
	cols := snapshot.CellColumns
	for i, idx := range cols.FlatIndices {
		if cols.MoleculeData[i] == 0 {
			continue
		}
		state.Set(idx, cols.MoleculeData[i], cols.OwnerIDs[i])
	}
}

// validateChunk checks the structural invariants decode entry points rely
// on, returning a *CorruptedError (wrapping ErrChunkCorrupted) on the first
// violation found.
func validateChunk(chunk tickpb.TickDataChunk) error {
	if !chunk.Snapshot.CellColumns.Valid() {
		return corrupted("snapshot has mismatched column lengths")
	}
	if chunk.Snapshot.TickNumber != chunk.FirstTick {
		return corrupted("snapshot tick %d does not match first_tick %d", chunk.Snapshot.TickNumber, chunk.FirstTick)
	}
	if chunk.TickCount != uint32(1+len(chunk.Deltas)) { //nolint:gosec // bounded, see encoder
		return corrupted("tick_count %d does not match 1+len(deltas)=%d", chunk.TickCount, 1+len(chunk.Deltas))
	}

	prevTick := chunk.FirstTick
	for i, d := range chunk.Deltas {
		if !d.ChangedCells.Valid() {
			return corrupted("delta %d has mismatched column lengths", i)
		}
		if d.TickNumber <= prevTick {
			return corrupted("delta %d tick %d is not strictly greater than %d", i, d.TickNumber, prevTick)
		}
		if d.TickNumber > chunk.LastTick {
			return corrupted("delta %d tick %d exceeds last_tick %d", i, d.TickNumber, chunk.LastTick)
		}
		prevTick = d.TickNumber
	}
	if len(chunk.Deltas) == 0 && chunk.LastTick != chunk.FirstTick {
		return corrupted("chunk has no deltas but last_tick %d != first_tick %d", chunk.LastTick, chunk.FirstTick)
	}
	return nil
}

// DecompressChunk reconstructs one TickData per sampled tick in the chunk
// (the snapshot tick plus every delta's tick), applying each delta once to
// one scratch State carried forward rather than making one
// ReconstructEnvironment call per output tick. Each output tick still
// materializes the full, sorted cell columns of that tick.
func DecompressChunk(chunk tickpb.TickDataChunk, totalCells uint64) ([]tickpb.TickData, error) {
	if err := validateChunk(chunk); err != nil {
		return nil, err
	}

	state := cellstate.New(chunk.Snapshot.CellColumns.Len())
	seedSnapshot(state, chunk.Snapshot)

	out := make([]tickpb.TickData, 0, 1+len(chunk.Deltas))
	out = append(out, tickpb.TickData{
		TickNumber:            chunk.Snapshot.TickNumber,
		CellColumns:           state.ToColumns(),
		Organisms:             chunk.Snapshot.Organisms,
		TotalOrganismsCreated: chunk.Snapshot.TotalOrganismsCreated,
		RNGState:              chunk.Snapshot.RNGState,
		ProcessStates:         chunk.Snapshot.ProcessStates,
	})

	for _, d := range chunk.Deltas {
		ApplyDelta(state, d)
		td := tickpb.TickData{
			TickNumber:            d.TickNumber,
			CellColumns:           state.ToColumns(),
			Organisms:             d.Organisms,
			TotalOrganismsCreated: d.TotalOrganismsCreated,
		}
		if d.DeltaType == tickpb.DeltaAccumulated {
			td.RNGState = d.RNGState
			td.ProcessStates = d.ProcessStates
		}
		out = append(out, td)
	}
	return out, nil
}

// DecompressTick reconstructs the state at exactly one target tick,
// bounding work by O(|snapshot| + |accumulated delta| + A incrementals)
// per spec §4.5: it seeds from the snapshot, jumps straight to the latest
// ACCUMULATED delta at or before target (if any), then applies only the
// INCREMENTAL deltas between that point and target.
func DecompressTick(chunk tickpb.TickDataChunk, targetTick uint64, totalCells uint64) (tickpb.TickData, error) {
	if err := validateChunk(chunk); err != nil {
		return tickpb.TickData{}, err
	}
	if targetTick < chunk.FirstTick || targetTick > chunk.LastTick {
		return tickpb.TickData{}, corrupted("target tick %d outside chunk range [%d, %d]", targetTick, chunk.FirstTick, chunk.LastTick)
	}

	if targetTick == chunk.FirstTick {
		state := cellstate.New(chunk.Snapshot.CellColumns.Len())
		seedSnapshot(state, chunk.Snapshot)
		return tickpb.TickData{
			TickNumber:            chunk.Snapshot.TickNumber,
			CellColumns:           state.ToColumns(),
			Organisms:             chunk.Snapshot.Organisms,
			TotalOrganismsCreated: chunk.Snapshot.TotalOrganismsCreated,
			RNGState:              chunk.Snapshot.RNGState,
			ProcessStates:         chunk.Snapshot.ProcessStates,
		}, nil
	}

	// Find the target delta, and the latest ACCUMULATED delta at or before it.
	targetIdx := -1
	lastAccIdx := -1
	for i, d := range chunk.Deltas {
		if d.TickNumber == targetTick {
			targetIdx = i
		}
		if d.TickNumber <= targetTick && d.DeltaType == tickpb.DeltaAccumulated {
			lastAccIdx = i
		}
		if d.TickNumber > targetTick {
			break
		}
	}
	if targetIdx == -1 {
		return tickpb.TickData{}, corrupted("target tick %d is not a sampled tick in this chunk", targetTick)
	}

	state := cellstate.New(chunk.Snapshot.CellColumns.Len())
	applyFrom := 0
	if lastAccIdx == -1 {
		seedSnapshot(state, chunk.Snapshot)
	} else {
		seedSnapshot(state, chunk.Snapshot)
		ApplyDelta(state, chunk.Deltas[lastAccIdx])
		applyFrom = lastAccIdx + 1
	}

	for i := applyFrom; i <= targetIdx; i++ {
		ApplyDelta(state, chunk.Deltas[i])
	}

	target := chunk.Deltas[targetIdx]
	td := tickpb.TickData{
		TickNumber:            target.TickNumber,
		CellColumns:           state.ToColumns(),
		Organisms:             target.Organisms,
		TotalOrganismsCreated: target.TotalOrganismsCreated,
	}
	if target.DeltaType == tickpb.DeltaAccumulated {
		td.RNGState = target.RNGState
		td.ProcessStates = target.ProcessStates
	}
	return td, nil
}

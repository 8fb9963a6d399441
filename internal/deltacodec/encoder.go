// Package deltacodec is the pure, stateless reconstruction and assembly
// kernel: BuildDelta/BuildChunk produce protobuf-shaped records from
// primitive inputs (spec §4.3), and ReconstructEnvironment/DecompressChunk/
// DecompressTick turn a chunk back into full per-tick state (spec §4.5).
// Nothing in this package holds state across calls or performs IO.
package deltacodec

import (
	"fmt"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// BuildDelta assembles a TickDelta from already-extracted primitive
// columns. For DeltaIncremental, rngState and processStates must both be
// empty; for DeltaAccumulated, both must be non-empty. changedCells must
// not contain duplicate flat indices.
//
// Zero-copy: changedCells' backing slices are referenced directly, not
// copied — the caller (ChunkBuilder) must not mutate them after this call
// returns successfully.
func BuildDelta(
	tick uint64,
	kind tickpb.DeltaType,
	changedCells tickpb.CellColumns,
	organisms []byte,
	totalOrgsCreated uint64,
	rngState []byte,
	processStates []byte,
) (tickpb.TickDelta, error) {
	if !changedCells.Valid() {
		return tickpb.TickDelta{}, fmt.Errorf("%w: mismatched column lengths", ErrInvalidDelta)
	}
	if err := checkNoDuplicateIndices(changedCells); err != nil {
		return tickpb.TickDelta{}, err
	}

	switch kind {
	case tickpb.DeltaIncremental:
		if len(rngState) != 0 || len(processStates) != 0 {
			return tickpb.TickDelta{}, fmt.Errorf("%w: incremental delta must not carry rng/process state", ErrInvalidDelta)
		}
	case tickpb.DeltaAccumulated:
		if len(rngState) == 0 || len(processStates) == 0 {
			return tickpb.TickDelta{}, fmt.Errorf("%w: accumulated delta must carry rng and process state", ErrInvalidDelta)
		}
	default:
		return tickpb.TickDelta{}, fmt.Errorf("%w: unknown delta type %d", ErrInvalidDelta, kind)
	}

	return tickpb.TickDelta{
		TickNumber:            tick,
		DeltaType:             kind,
		ChangedCells:          changedCells,
		Organisms:             organisms,
		TotalOrganismsCreated: totalOrgsCreated,
		RNGState:              rngState,
		ProcessStates:         processStates,
	}, nil
}

// BuildChunk assembles and validates a TickDataChunk from a snapshot and
// its ordered deltas, per the invariants in spec §3:
//   - snapshot.TickNumber == FirstTick
//   - deltas strictly ascending by TickNumber, each > FirstTick and <= LastTick
//   - TickCount == 1 + len(deltas)
func BuildChunk(runID string, snapshot tickpb.TickData, deltas []tickpb.TickDelta) (tickpb.TickDataChunk, error) {
	if !snapshot.CellColumns.Valid() {
		return tickpb.TickDataChunk{}, fmt.Errorf("%w: snapshot has mismatched column lengths", ErrInvalidChunk)
	}

	firstTick := snapshot.TickNumber
	lastTick := firstTick
	prevTick := firstTick
	for i, d := range deltas {
		if !d.ChangedCells.Valid() {
			return tickpb.TickDataChunk{}, fmt.Errorf("%w: delta %d has mismatched column lengths", ErrInvalidChunk, i)
		}
		if d.TickNumber <= prevTick {
			return tickpb.TickDataChunk{}, fmt.Errorf("%w: delta %d tick %d is not strictly greater than %d", ErrInvalidChunk, i, d.TickNumber, prevTick)
		}
		prevTick = d.TickNumber
		lastTick = d.TickNumber
	}

	return tickpb.TickDataChunk{
		RunID:     runID,
		FirstTick: firstTick,
		LastTick:  lastTick,
		TickCount: uint32(1 + len(deltas)), //nolint:gosec // bounded by deltas slice length, never near uint32 overflow in practice
		Snapshot:  snapshot,
		Deltas:    deltas,
	}, nil
}

func checkNoDuplicateIndices(cols tickpb.CellColumns) error {
	seen := make(map[uint64]struct{}, len(cols.FlatIndices))
	for _, idx := range cols.FlatIndices {
		if _, ok := seen[idx]; ok {
			return fmt.Errorf("%w: duplicate changed-cell index %d", ErrInvalidDelta, idx)
		}
		seen[idx] = struct{}{}
	}
	return nil
}

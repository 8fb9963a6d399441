package resume

import (
	"github.com/evochora/evochora-sub000/internal/deltacodec"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// ReconstructCells implements RestoreMapper's cell product (spec §4.9):
// the snapshot alone if accDelta is nil, otherwise the snapshot with
// accDelta applied on top. accDelta is expected to be an ACCUMULATED
// delta; reconstruction is correct regardless of its type since it is
// simply applied as one delta, but callers choosing a checkpoint always
// pass the chunk's last ACCUMULATED delta, per §4.8 step 4.
func ReconstructCells(snapshot tickpb.TickData, accDelta *tickpb.TickDelta) tickpb.CellColumns {
	if accDelta == nil {
		return deltacodec.ReconstructEnvironment(snapshot, nil)
	}
	return deltacodec.ReconstructEnvironment(snapshot, []tickpb.TickDelta{*accDelta})
}

// SelectRuntimeState implements RestoreMapper's selection rule (spec
// §4.9): when an ACCUMULATED delta is present, the current tick, total
// organisms created, organisms, RNG state, and process states all come
// from the delta; otherwise they all come from the snapshot.
// resume_from_tick is checkpoint_tick + 1 — this function is the only
// place in the core that computes it.
func SelectRuntimeState(snapshot tickpb.TickData, accDelta *tickpb.TickDelta) Checkpoint {
	cells := ReconstructCells(snapshot, accDelta)

	if accDelta == nil {
		return Checkpoint{
			CheckpointTick:        snapshot.TickNumber,
			ResumeFromTick:        snapshot.TickNumber + 1,
			CellColumns:           cells,
			Organisms:             snapshot.Organisms,
			TotalOrganismsCreated: snapshot.TotalOrganismsCreated,
			RNGState:              snapshot.RNGState,
			ProcessStates:         snapshot.ProcessStates,
		}
	}

	return Checkpoint{
		CheckpointTick:        accDelta.TickNumber,
		ResumeFromTick:        accDelta.TickNumber + 1,
		CellColumns:           cells,
		Organisms:             accDelta.Organisms,
		TotalOrganismsCreated: accDelta.TotalOrganismsCreated,
		RNGState:              accDelta.RNGState,
		ProcessStates:         accDelta.ProcessStates,
	}
}

package resume

import (
	"errors"
	"testing"

	"github.com/evochora/evochora-sub000/internal/storage"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

func newTestLoader(t *testing.T) (*Loader, *storage.MemStrategy) {
	t.Helper()
	strat := storage.NewMemStrategy()
	if err := strat.CreateTables([]uint64{64, 64}); err != nil {
		t.Fatalf("CreateTables: %v", err)
	}
	metas := NewMapRunMetaStore()
	if err := metas.Save(RunMeta{RunID: "run1"}); err != nil {
		t.Fatalf("Save run meta: %v", err)
	}
	return New(strat, metas, nil), strat
}

func writeCommitted(t *testing.T, strat *storage.MemStrategy, chunk tickpb.TickDataChunk) {
	t.Helper()
	if err := strat.WriteRawChunk(chunk.FirstTick, chunk.LastTick, chunk.TickCount, chunk); err != nil {
		t.Fatalf("WriteRawChunk: %v", err)
	}
	if err := strat.CommitRawChunks(); err != nil {
		t.Fatalf("CommitRawChunks: %v", err)
	}
}

// scenario5Chunk builds the spec §8 scenario-5 fixture: ticks 1000..1060,
// ACC@1040, INC@1050, INC@1060.
func scenario5Chunk() tickpb.TickDataChunk {
	return tickpb.TickDataChunk{
		RunID:     "run1",
		FirstTick: 1000,
		LastTick:  1060,
		TickCount: 4,
		Snapshot: tickpb.TickData{
			TickNumber:  1000,
			CellColumns: tickpb.CellColumns{FlatIndices: []uint64{1}, MoleculeData: []int32{1}, OwnerIDs: []int32{1}},
			RNGState:    []byte("snapshot-rng"),
		},
		Deltas: []tickpb.TickDelta{
			{
				TickNumber:   1040,
				DeltaType:    tickpb.DeltaAccumulated,
				ChangedCells: tickpb.CellColumns{FlatIndices: []uint64{2}, MoleculeData: []int32{2}, OwnerIDs: []int32{1}},
				RNGState:     []byte("acc-1040-rng"),
			},
			{
				TickNumber:   1050,
				DeltaType:    tickpb.DeltaIncremental,
				ChangedCells: tickpb.CellColumns{FlatIndices: []uint64{3}, MoleculeData: []int32{3}, OwnerIDs: []int32{1}},
			},
			{
				TickNumber:   1060,
				DeltaType:    tickpb.DeltaIncremental,
				ChangedCells: tickpb.CellColumns{FlatIndices: []uint64{4}, MoleculeData: []int32{4}, OwnerIDs: []int32{1}},
			},
		},
	}
}

func TestResumeTruncatesToLastAccumulatedDelta(t *testing.T) {
	loader, strat := newTestLoader(t)
	writeCommitted(t, strat, scenario5Chunk())

	result, err := loader.Resume("run1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if !result.Truncated {
		t.Errorf("expected truncation")
	}
	if result.Chunk.LastTick != 1040 {
		t.Errorf("expected truncated last_tick 1040, got %d", result.Chunk.LastTick)
	}
	if len(result.Chunk.Deltas) != 1 || result.Chunk.Deltas[0].TickNumber != 1040 {
		t.Fatalf("expected exactly the ACC@1040 delta retained, got %+v", result.Chunk.Deltas)
	}
	if result.Checkpoint.CheckpointTick != 1040 || result.Checkpoint.ResumeFromTick != 1041 {
		t.Errorf("unexpected checkpoint: %+v", result.Checkpoint)
	}

	metas, err := loader.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 || metas[0].LastTick != 1040 {
		t.Fatalf("expected exactly one record (1000-1040) after truncation, got %+v", metas)
	}
}

func TestResumeIdempotentOnHealthyStore(t *testing.T) {
	loader, strat := newTestLoader(t)
	writeCommitted(t, strat, scenario5Chunk())

	first, err := loader.Resume("run1")
	if err != nil {
		t.Fatalf("first Resume: %v", err)
	}
	if !first.Truncated {
		t.Fatalf("expected first Resume to truncate")
	}

	second, err := loader.Resume("run1")
	if err != nil {
		t.Fatalf("second Resume: %v", err)
	}
	if second.Truncated {
		t.Errorf("expected second Resume to be a no-op, got truncation again")
	}
	if second.Chunk.LastTick != 1040 {
		t.Errorf("expected stable last_tick 1040, got %d", second.Chunk.LastTick)
	}
}

func TestCrashRecoveryDedupKeepsSmallerLastTick(t *testing.T) {
	loader, strat := newTestLoader(t)
	original := scenario5Chunk()
	truncated := tickpb.TickDataChunk{
		RunID:     original.RunID,
		FirstTick: original.FirstTick,
		LastTick:  1040,
		TickCount: 2,
		Snapshot:  original.Snapshot,
		Deltas:    original.Deltas[:1],
	}
	writeCommitted(t, strat, original)
	writeCommitted(t, strat, truncated)

	metas, err := loader.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 1 {
		t.Fatalf("expected dedup to collapse to one record, got %+v", metas)
	}
	if metas[0].LastTick != 1040 {
		t.Errorf("expected the smaller-last_tick record to survive, got %d", metas[0].LastTick)
	}
}

func TestResumeWithoutAccumulatedDeltaFallsBackToSnapshot(t *testing.T) {
	loader, strat := newTestLoader(t)
	chunk := tickpb.TickDataChunk{
		RunID:     "run1",
		FirstTick: 0,
		LastTick:  0,
		TickCount: 1,
		Snapshot: tickpb.TickData{
			TickNumber:  0,
			CellColumns: tickpb.CellColumns{FlatIndices: []uint64{1}, MoleculeData: []int32{9}, OwnerIDs: []int32{1}},
			RNGState:    []byte("rng0"),
		},
	}
	writeCommitted(t, strat, chunk)

	result, err := loader.Resume("run1")
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if result.Truncated {
		t.Errorf("expected no truncation for a snapshot-only chunk")
	}
	if result.Checkpoint.CheckpointTick != 0 || result.Checkpoint.ResumeFromTick != 1 {
		t.Errorf("unexpected checkpoint: %+v", result.Checkpoint)
	}
	if string(result.Checkpoint.RNGState) != "rng0" {
		t.Errorf("expected RNG state from snapshot, got %q", result.Checkpoint.RNGState)
	}
}

func TestResumeUnknownRunReturnsRunNotFound(t *testing.T) {
	loader, _ := newTestLoader(t)
	if _, err := loader.Resume("missing"); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

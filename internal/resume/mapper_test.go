package resume

import (
	"testing"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

func TestSelectRuntimeStateFromSnapshotWhenNoAccumulatedDelta(t *testing.T) {
	snapshot := tickpb.TickData{
		TickNumber:            10,
		CellColumns:           tickpb.CellColumns{FlatIndices: []uint64{1}, MoleculeData: []int32{5}, OwnerIDs: []int32{1}},
		TotalOrganismsCreated: 3,
		RNGState:              []byte("snap-rng"),
		ProcessStates:         []byte("snap-proc"),
	}

	cp := SelectRuntimeState(snapshot, nil)

	if cp.CheckpointTick != 10 || cp.ResumeFromTick != 11 {
		t.Errorf("unexpected ticks: %+v", cp)
	}
	if cp.TotalOrganismsCreated != 3 || string(cp.RNGState) != "snap-rng" {
		t.Errorf("expected snapshot-derived state, got %+v", cp)
	}
	if cp.CellColumns.Len() != 1 || cp.CellColumns.FlatIndices[0] != 1 {
		t.Errorf("expected reconstructed cells from snapshot alone, got %+v", cp.CellColumns)
	}
}

func TestSelectRuntimeStateFromAccumulatedDeltaWhenPresent(t *testing.T) {
	snapshot := tickpb.TickData{
		TickNumber:            10,
		CellColumns:           tickpb.CellColumns{FlatIndices: []uint64{1}, MoleculeData: []int32{5}, OwnerIDs: []int32{1}},
		TotalOrganismsCreated: 3,
		RNGState:              []byte("snap-rng"),
	}
	delta := tickpb.TickDelta{
		TickNumber:            20,
		DeltaType:             tickpb.DeltaAccumulated,
		ChangedCells:          tickpb.CellColumns{FlatIndices: []uint64{1, 2}, MoleculeData: []int32{0, 9}, OwnerIDs: []int32{0, 2}},
		TotalOrganismsCreated: 7,
		RNGState:              []byte("acc-rng"),
		ProcessStates:         []byte("acc-proc"),
	}

	cp := SelectRuntimeState(snapshot, &delta)

	if cp.CheckpointTick != 20 || cp.ResumeFromTick != 21 {
		t.Errorf("unexpected ticks: %+v", cp)
	}
	if cp.TotalOrganismsCreated != 7 || string(cp.RNGState) != "acc-rng" || string(cp.ProcessStates) != "acc-proc" {
		t.Errorf("expected accumulated-delta-derived state, got %+v", cp)
	}
	// cell 1 was cleared by the delta (molecule 0), cell 2 was added.
	for i, idx := range cp.CellColumns.FlatIndices {
		if idx == 1 {
			t.Errorf("expected cell 1 to be cleared, found at %d", i)
		}
	}
	found2 := false
	for i, idx := range cp.CellColumns.FlatIndices {
		if idx == 2 && cp.CellColumns.MoleculeData[i] == 9 {
			found2 = true
		}
	}
	if !found2 {
		t.Errorf("expected cell 2 with molecule 9 in reconstructed columns, got %+v", cp.CellColumns)
	}
}

package tickpb

import "testing"

func TestNewRunIDRoundTrip(t *testing.T) {
	id := NewRunID()
	if len(id) != 26 {
		t.Fatalf("expected 26-char run ID, got %d: %q", len(id), id)
	}
	ts, err := RunIDTime(id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ts.IsZero() {
		t.Errorf("expected non-zero embedded timestamp")
	}
}

func TestNewRunIDMonotonic(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a >= b {
		t.Errorf("expected lexicographically increasing IDs, got %q then %q", a, b)
	}
}

func TestRunIDTimeInvalidLength(t *testing.T) {
	if _, err := RunIDTime("short"); err == nil {
		t.Errorf("expected error for short run ID")
	}
}

func TestCellColumnsValid(t *testing.T) {
	valid := CellColumns{FlatIndices: []uint64{1, 2}, MoleculeData: []int32{1, 2}, OwnerIDs: []int32{1, 2}}
	if !valid.Valid() {
		t.Errorf("expected valid columns")
	}
	if valid.Len() != 2 {
		t.Errorf("expected len 2, got %d", valid.Len())
	}

	invalid := CellColumns{FlatIndices: []uint64{1, 2}, MoleculeData: []int32{1}, OwnerIDs: []int32{1, 2}}
	if invalid.Valid() {
		t.Errorf("expected invalid columns due to length mismatch")
	}
}

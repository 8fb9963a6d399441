package cellstate

import "testing"

func TestToColumnsDeterministicOrder(t *testing.T) {
	s := New(4)
	s.Set(5, 10, 1)
	s.Set(1, 20, 2)
	s.Set(3, 30, 3)

	cols := s.ToColumns()
	want := []uint64{1, 3, 5}
	if len(cols.FlatIndices) != len(want) {
		t.Fatalf("expected %d cells, got %d", len(want), len(cols.FlatIndices))
	}
	for i, idx := range want {
		if cols.FlatIndices[i] != idx {
			t.Errorf("index %d: want %d, got %d", i, idx, cols.FlatIndices[i])
		}
	}
}

func TestClearRetainsMap(t *testing.T) {
	s := New(2)
	s.Set(1, 1, 1)
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("expected empty state after clear, got %d entries", s.Len())
	}
	s.Set(2, 2, 2)
	if s.Len() != 1 {
		t.Errorf("expected 1 entry after reuse, got %d", s.Len())
	}
}

func TestRemove(t *testing.T) {
	s := New(1)
	s.Set(1, 5, 1)
	s.Remove(1)
	if s.Len() != 0 {
		t.Errorf("expected removed entry, got %d entries", s.Len())
	}
}

// Package envview defines the read-only capability set the projection core
// requires from the mutating simulation environment. The simulation kernel
// itself is an external collaborator (see spec §1); this package only
// specifies the boundary it must expose.
package envview

// Cell is the value stored at one flat index: a packed molecule integer and
// its owner. The molecule's internal structure (type/value/marker bits) is
// opaque to the core.
type Cell struct {
	Molecule int32
	Owner    int32
}

// View is the read-only accessor over the cell grid that the core requires
// to capture ticks. Its lifetime is bounded by the capture operation that
// receives it; implementations must not be retained past that call.
type View interface {
	// CellCount returns the total number of addressable flat indices.
	CellCount() uint64

	// CellAt returns the current value of the cell at the given flat index.
	CellAt(index uint64) Cell

	// IterateOccupied calls fn once for every cell whose molecule is
	// non-zero, in an implementation-defined but stable order for a given
	// environment state. Used to extract snapshots.
	IterateOccupied(fn func(index uint64, cell Cell))

	// ResetChangeTracking clears the change tracker after a drain. Called
	// by the capture path once the drained set has been consumed.
	ResetChangeTracking()
}

// Package tickpb defines the wire-shaped records exchanged between the
// projection engine and any downstream pipeline consumer: per-tick cell
// state, deltas, and the chunk that bundles a snapshot with its deltas.
//
// The shapes mirror the protobuf layout in the system's external interface
// (uint64/sint32 columns, an enum delta type, opaque organism/process-state
// blobs) but are encoded on the wire with msgpack, not protobuf codegen —
// see DESIGN.md for the reasoning.
package tickpb

// DeltaType distinguishes an incremental delta (changes since the previous
// sampled tick) from an accumulated delta (changes since the chunk's
// snapshot, doubling as a checkpoint).
type DeltaType uint8

const (
	// DeltaIncremental encodes changes since the previous sampled tick only.
	DeltaIncremental DeltaType = 1
	// DeltaAccumulated encodes the union of all changes since the chunk's
	// snapshot, and carries RNG/process state as a checkpoint.
	DeltaAccumulated DeltaType = 2
)

func (t DeltaType) String() string {
	switch t {
	case DeltaIncremental:
		return "INCREMENTAL"
	case DeltaAccumulated:
		return "ACCUMULATED"
	default:
		return "UNKNOWN"
	}
}

// CellColumns is a structure-of-arrays encoding of a set of cells.
// The three slices are parallel and of equal length; flat indices are
// unique within one instance. MoleculeData and OwnerIDs are signed on the
// wire (sint32) even though molecule/owner values are non-negative in
// practice, matching the external interface's wire types exactly.
type CellColumns struct {
	FlatIndices  []uint64 `msgpack:"flat_indices"`
	MoleculeData []int32  `msgpack:"molecule_data"`
	OwnerIDs     []int32  `msgpack:"owner_ids"`
}

// Len returns the number of cells encoded.
func (c CellColumns) Len() int {
	return len(c.FlatIndices)
}

// Valid reports whether the three backing slices have equal length.
func (c CellColumns) Valid() bool {
	return len(c.FlatIndices) == len(c.MoleculeData) && len(c.FlatIndices) == len(c.OwnerIDs)
}

// TickData is a complete snapshot of all occupied cells at one tick, plus
// organism and simulation-process state.
type TickData struct {
	TickNumber            uint64      `msgpack:"tick_number"`
	CellColumns           CellColumns `msgpack:"cell_columns"`
	Organisms             []byte      `msgpack:"organisms"`
	TotalOrganismsCreated uint64      `msgpack:"total_organisms_created"`
	RNGState              []byte      `msgpack:"rng_state"`
	ProcessStates         []byte      `msgpack:"process_states"`
}

// TickDelta encodes the cells that changed since some base tick, plus the
// complete organism list at this tick. RNGState and ProcessStates are only
// populated for DeltaAccumulated.
type TickDelta struct {
	TickNumber            uint64      `msgpack:"tick_number"`
	DeltaType             DeltaType   `msgpack:"delta_type"`
	ChangedCells          CellColumns `msgpack:"changed_cells"`
	Organisms             []byte      `msgpack:"organisms"`
	TotalOrganismsCreated uint64      `msgpack:"total_organisms_created"`
	RNGState              []byte      `msgpack:"rng_state"`
	ProcessStates         []byte      `msgpack:"process_states"`
}

// TickDataChunk is a self-contained unit of transmission: one snapshot plus
// an ordered sequence of deltas spanning a contiguous range of sampled
// ticks.
type TickDataChunk struct {
	RunID     string      `msgpack:"run_id"`
	FirstTick uint64      `msgpack:"first_tick"`
	LastTick  uint64      `msgpack:"last_tick"`
	TickCount uint32      `msgpack:"tick_count"`
	Snapshot  TickData    `msgpack:"snapshot"`
	Deltas    []TickDelta `msgpack:"deltas"`
}

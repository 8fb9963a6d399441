// Package chunkbuilder implements the streaming compressor that groups
// sampled ticks into self-contained chunks: one snapshot plus a sequence
// of incremental and accumulated deltas (spec §4.4). A Builder is a
// single-owner value with an owned scratch buffer (accumulated bitmap,
// per-column slices) that is explicitly cleared and reused per sample,
// never reallocated, matching the teacher's "no growable state kept
// across requests beyond what's explicitly reset" discipline.
package chunkbuilder

import (
	"fmt"
	"log/slog"

	"github.com/evochora/evochora-sub000/internal/cellstate"
	"github.com/evochora/evochora-sub000/internal/changetrack"
	"github.com/evochora/evochora-sub000/internal/deltacodec"
	"github.com/evochora/evochora-sub000/internal/envview"
	"github.com/evochora/evochora-sub000/internal/logging"
	"github.com/evochora/evochora-sub000/internal/projconfig"
	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// Builder captures one run's ticks into chunks. It must only be driven
// from the single capture-phase driver goroutine at the barrier described
// in spec §5 — CaptureTick and FlushPartialChunk are not safe to call
// concurrently with each other or with themselves.
type Builder struct {
	cfg    projconfig.BuilderConfig
	logger *slog.Logger
	runID  string

	hasSnapshot       bool
	seenFirstSnapshot bool
	snapshot          tickpb.TickData
	pendingDeltas     []tickpb.TickDelta
	samplesInChunk    uint64

	accBits *accumBitmap

	// Reused drain scratch, truncated (not reallocated) between captures.
	incrAddr  []uint64
	incrMol   []int32
	incrOwner []int32
}

// New validates cfg and constructs a Builder for a freshly minted run ID.
// Configuration is checked once here, never lazily — an invalid config is
// fatal at construction, per spec §7.
func New(cfg projconfig.BuilderConfig, logger *slog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = logging.Default(logger)
	return &Builder{
		cfg:    cfg,
		logger: logger.With("component", "chunkbuilder"),
		runID:  tickpb.NewRunID(),
	}, nil
}

// RunID returns the identifier assigned to this builder's run.
func (b *Builder) RunID() string {
	return b.runID
}

// CaptureTick implements spec §4.4's per-tick algorithm. It returns a
// non-nil chunk only when this call closed one (step 5); on a no-op tick
// or a tick that merely appends a delta, it returns (nil, nil).
//
// A chunk's sample budget (SamplesPerChunk, N·A·C) counts the snapshot
// itself as the first sample, so a chunk closes once 1+len(pendingDeltas)
// reaches that budget — never after fabricating a delta just to have
// something to close on. The degenerate N=A=C=1 configuration reaches
// that budget from the snapshot alone, with zero deltas: the tick that
// would otherwise open the next chunk instead closes the current one
// immediately, carrying no RNG/process state, and becomes the next
// chunk's snapshot on the following sample.
func (b *Builder) CaptureTick(
	tick uint64,
	tracker *changetrack.Tracker,
	view envview.View,
	organisms []byte,
	totalOrgsCreated uint64,
	rngState []byte,
	processStates []byte,
) (*tickpb.TickDataChunk, error) {
	s := b.cfg.SamplingInterval
	if tick%s != 0 && tick != 0 {
		return nil, nil
	}

	if b.accBits == nil {
		b.accBits = newAccumBitmap(view.CellCount())
	}

	switch {
	case !b.hasSnapshot:
		isGenesis := !b.seenFirstSnapshot
		b.captureSnapshot(tick, tracker, view, organisms, totalOrgsCreated, rngState, processStates)
		b.seenFirstSnapshot = true
		if isGenesis {
			// Spec §4.4 step 2's unconditional rule: the very first sample
			// of the whole run only ever records a snapshot, regardless of
			// how small the sample budget is.
			return nil, nil
		}

	case uint64(1+len(b.pendingDeltas)) >= b.cfg.SamplesPerChunk():
		// The snapshot alone already met the chunk's sample budget; this
		// tick's own changes belong to whatever chunk comes next and are
		// left untouched in tracker/view — the next captureSnapshot call
		// resets them via a fresh full scan.

	default:
		b.incrAddr = b.incrAddr[:0]
		b.incrMol = b.incrMol[:0]
		b.incrOwner = b.incrOwner[:0]
		tracker.DrainInto(view, &b.incrAddr, &b.incrMol, &b.incrOwner)
		view.ResetChangeTracking()
		b.accBits.markAll(b.incrAddr)

		samplesSoFar := b.samplesInChunk + 1
		isAccumulated := samplesSoFar%b.cfg.AccumulatedDeltaInterval == 0

		var delta tickpb.TickDelta
		var err error
		if isAccumulated {
			delta, err = b.buildAccumulatedDelta(tick, view, organisms, totalOrgsCreated, rngState, processStates)
			if err != nil {
				return nil, fmt.Errorf("chunkbuilder: accumulated delta at tick %d: %w", tick, err)
			}
		} else {
			cols := tickpb.CellColumns{
				FlatIndices:  append([]uint64(nil), b.incrAddr...),
				MoleculeData: append([]int32(nil), b.incrMol...),
				OwnerIDs:     append([]int32(nil), b.incrOwner...),
			}
			delta, err = deltacodec.BuildDelta(tick, tickpb.DeltaIncremental, cols, organisms, totalOrgsCreated, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("chunkbuilder: incremental delta at tick %d: %w", tick, err)
			}
		}
		b.pendingDeltas = append(b.pendingDeltas, delta)
		b.samplesInChunk++
	}

	if uint64(1+len(b.pendingDeltas)) < b.cfg.SamplesPerChunk() {
		return nil, nil
	}

	chunk, err := deltacodec.BuildChunk(b.runID, b.snapshot, b.pendingDeltas)
	if err != nil {
		return nil, fmt.Errorf("chunkbuilder: closing chunk at tick %d: %w", tick, err)
	}
	b.logger.Info("chunk closed",
		"run_id", b.runID, "first_tick", chunk.FirstTick, "last_tick", chunk.LastTick, "tick_count", chunk.TickCount)

	b.hasSnapshot = false
	b.pendingDeltas = nil
	b.samplesInChunk = 0
	b.accBits.reset()
	return &chunk, nil
}

func (b *Builder) captureSnapshot(tick uint64, tracker *changetrack.Tracker, view envview.View, organisms []byte, totalOrgsCreated uint64, rngState, processStates []byte) {
	state := cellstate.New(int(view.CellCount()))
	view.IterateOccupied(func(idx uint64, cell envview.Cell) {
		state.Set(idx, cell.Molecule, cell.Owner)
	})

	b.snapshot = tickpb.TickData{
		TickNumber:            tick,
		CellColumns:           state.ToColumns(),
		Organisms:             organisms,
		TotalOrganismsCreated: totalOrgsCreated,
		RNGState:              rngState,
		ProcessStates:         processStates,
	}
	b.hasSnapshot = true
	b.pendingDeltas = nil
	b.samplesInChunk = 0
	b.accBits.reset()
	tracker.Reset()
	view.ResetChangeTracking()

	b.logger.Debug("captured snapshot", "run_id", b.runID, "tick", tick, "cells", len(b.snapshot.CellColumns.FlatIndices))
}

// buildAccumulatedDelta reads the current value of every index marked in
// accBits directly from view — the bitmap only remembers which indices
// changed, not their values, so an up-to-date read is required at
// assembly time (spec §4.4 step 5/6).
func (b *Builder) buildAccumulatedDelta(
	tick uint64,
	view envview.View,
	organisms []byte,
	totalOrgsCreated uint64,
	rngState []byte,
	processStates []byte,
) (tickpb.TickDelta, error) {
	var addrs []uint64
	var mols []int32
	var owners []int32
	b.accBits.forEachSet(func(idx uint64) {
		cell := view.CellAt(idx)
		addrs = append(addrs, idx)
		mols = append(mols, cell.Molecule)
		owners = append(owners, cell.Owner)
	})
	cols := tickpb.CellColumns{FlatIndices: addrs, MoleculeData: mols, OwnerIDs: owners}
	return deltacodec.BuildDelta(tick, tickpb.DeltaAccumulated, cols, organisms, totalOrgsCreated, rngState, processStates)
}

// FlushPartialChunk implements spec §4.4's graceful-shutdown path. If no
// samples have been captured since the current snapshot, it returns
// (nil, nil). Otherwise it guarantees the emitted chunk's last delta is
// ACCUMULATED: if the most recent pending delta is INCREMENTAL, it is
// replaced in place (same tick_number — this is a synthetic terminal
// state, not a new sample) by an ACCUMULATED delta built from the
// accumulated bitmap and the current RNG/process state.
func (b *Builder) FlushPartialChunk(
	view envview.View,
	organisms []byte,
	totalOrgsCreated uint64,
	rngState []byte,
	processStates []byte,
) (*tickpb.TickDataChunk, error) {
	if !b.hasSnapshot || len(b.pendingDeltas) == 0 {
		return nil, nil
	}

	last := b.pendingDeltas[len(b.pendingDeltas)-1]
	if last.DeltaType != tickpb.DeltaAccumulated {
		delta, err := b.buildAccumulatedDelta(last.TickNumber, view, organisms, totalOrgsCreated, rngState, processStates)
		if err != nil {
			return nil, fmt.Errorf("chunkbuilder: flush: terminal accumulated delta: %w", err)
		}
		b.pendingDeltas[len(b.pendingDeltas)-1] = delta
	}

	chunk, err := deltacodec.BuildChunk(b.runID, b.snapshot, b.pendingDeltas)
	if err != nil {
		return nil, fmt.Errorf("chunkbuilder: flush: %w", err)
	}
	b.logger.Info("partial chunk flushed",
		"run_id", b.runID, "first_tick", chunk.FirstTick, "last_tick", chunk.LastTick, "tick_count", chunk.TickCount)

	b.hasSnapshot = false
	b.pendingDeltas = nil
	b.samplesInChunk = 0
	b.accBits.reset()
	return &chunk, nil
}

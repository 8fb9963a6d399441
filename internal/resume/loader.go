package resume

import (
	"fmt"

	"github.com/evochora/evochora-sub000/internal/tickpb"
)

// Resume runs the full resume algorithm (spec §4.8 steps 1-6) for runID:
// load run metadata, list the strategy's deduped records (not filtered by
// run_id; see List), select the last one,
// identify its checkpoint (the last ACCUMULATED delta, falling back to the
// snapshot), truncate away anything sampled after the checkpoint if
// necessary, and report the resulting chunk and checkpoint.
//
// Concurrent calls for the same runID are deduplicated via callgroup: only
// one goroutine runs resumeOnce and performs the truncate-and-supersede
// write at a time; other callers for the same runID block and receive that
// call's result instead of racing to write conflicting truncated records.
func (l *Loader) Resume(runID string) (Result, error) {
	errCh := l.group.DoChan(runID, func() error {
		result, err := l.resumeOnce(runID)
		if err != nil {
			return err
		}
		l.mu.Lock()
		if l.results == nil {
			l.results = make(map[string]Result)
		}
		l.results[runID] = result
		l.mu.Unlock()
		return nil
	})
	if err := <-errCh; err != nil {
		return Result{}, err
	}
	l.mu.Lock()
	result := l.results[runID]
	l.mu.Unlock()
	return result, nil
}

func (l *Loader) resumeOnce(runID string) (Result, error) {
	meta, err := l.metas.Load(runID)
	if err != nil {
		return Result{}, fmt.Errorf("resume %s: load run metadata: %w", runID, err)
	}

	metas, err := l.List()
	if err != nil {
		return Result{}, fmt.Errorf("resume %s: list chunk records: %w", runID, err)
	}
	if len(metas) == 0 {
		return Result{}, fmt.Errorf("resume %s: %w", runID, ErrRunNotFound)
	}
	last := metas[len(metas)-1]

	chunk, err := l.strategy.ReadChunkContaining(last.LastTick)
	if err != nil {
		return Result{}, fmt.Errorf("resume %s: read chunk %d-%d: %w", runID, last.FirstTick, last.LastTick, err)
	}

	checkpointIdx := -1
	for i := len(chunk.Deltas) - 1; i >= 0; i-- {
		if chunk.Deltas[i].DeltaType == tickpb.DeltaAccumulated {
			checkpointIdx = i
			break
		}
	}

	resumePoint := chunk.Snapshot.TickNumber
	if checkpointIdx != -1 {
		resumePoint = chunk.Deltas[checkpointIdx].TickNumber
	}

	truncated := false
	if resumePoint != chunk.LastTick {
		truncatedChunk := truncateChunk(chunk, resumePoint)
		if err := l.strategy.WriteRawChunk(truncatedChunk.FirstTick, truncatedChunk.LastTick, truncatedChunk.TickCount, truncatedChunk); err != nil {
			return Result{}, fmt.Errorf("resume %s: write truncated chunk: %w", runID, err)
		}
		if err := l.strategy.CommitRawChunks(); err != nil {
			return Result{}, fmt.Errorf("resume %s: commit truncated chunk: %w", runID, err)
		}
		if err := l.strategy.SupersedeChunk(last.FirstTick, last.LastTick); err != nil {
			return Result{}, fmt.Errorf("resume %s: supersede original chunk: %w", runID, err)
		}
		l.logger.Info("truncated chunk at resume", "run_id", runID,
			"original_last_tick", last.LastTick, "resume_point", resumePoint)
		chunk = truncatedChunk
		truncated = true
	}

	var accDelta *tickpb.TickDelta
	if checkpointIdx != -1 {
		accDelta = &chunk.Deltas[len(chunk.Deltas)-1]
	}
	checkpoint := SelectRuntimeState(chunk.Snapshot, accDelta)

	return Result{Meta: meta, Chunk: chunk, Checkpoint: checkpoint, Truncated: truncated}, nil
}

// truncateChunk returns a new chunk retaining the snapshot and every delta
// with tick <= resumePoint, keyed to end at resumePoint (spec §4.8 step 5).
func truncateChunk(chunk tickpb.TickDataChunk, resumePoint uint64) tickpb.TickDataChunk {
	kept := make([]tickpb.TickDelta, 0, len(chunk.Deltas))
	for _, d := range chunk.Deltas {
		if d.TickNumber > resumePoint {
			break
		}
		kept = append(kept, d)
	}
	return tickpb.TickDataChunk{
		RunID:     chunk.RunID,
		FirstTick: chunk.FirstTick,
		LastTick:  resumePoint,
		TickCount: uint32(1 + len(kept)), //nolint:gosec // bounded by chunk size
		Snapshot:  chunk.Snapshot,
		Deltas:    kept,
	}
}

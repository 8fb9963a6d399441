package deltacodec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChunk is returned when a TickDataChunk's invariants (spec §3)
	// are violated at encode time. The chunk is discarded; callers must not
	// retry with the same inputs without fixing the violation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDelta is returned when a TickDelta's own invariants are
	// violated at encode time (duplicate changed-cell indices, or
	// RNG/process-state fields present/absent inconsistent with its type).
	ErrInvalidDelta = errors.New("invalid delta")

	// ErrChunkCorrupted is the sentinel wrapped by CorruptedError. Matched
	// with errors.Is by callers that want to detect any decode-time
	// corruption without inspecting the reason.
	ErrChunkCorrupted = errors.New("chunk corrupted")
)

// CorruptedError reports a recoverable decode-time invariant violation
// (spec §7's ChunkCorrupted kind). Callers typically log a warning, skip
// the chunk, and continue — the core never aborts the process.
type CorruptedError struct {
	Reason string
}

func (e *CorruptedError) Error() string {
	return fmt.Sprintf("chunk corrupted: %s", e.Reason)
}

func (e *CorruptedError) Unwrap() error {
	return ErrChunkCorrupted
}

func corrupted(format string, args ...any) error {
	return &CorruptedError{Reason: fmt.Sprintf(format, args...)}
}

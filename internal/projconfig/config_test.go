package projconfig

import (
	"errors"
	"testing"
)

func validConfig() BuilderConfig {
	return BuilderConfig{
		SamplingInterval:         1,
		AccumulatedDeltaInterval: 2,
		SnapshotInterval:         3,
		ChunkInterval:            1,
		EstimatedDeltaRatio:      0.1,
		MaxAccumulatedBytes:      0,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsZeroIntervals(t *testing.T) {
	cases := []struct {
		name string
		mod  func(c *BuilderConfig)
	}{
		{"sampling", func(c *BuilderConfig) { c.SamplingInterval = 0 }},
		{"accumulated", func(c *BuilderConfig) { c.AccumulatedDeltaInterval = 0 }},
		{"snapshot", func(c *BuilderConfig) { c.SnapshotInterval = 0 }},
		{"chunk", func(c *BuilderConfig) { c.ChunkInterval = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			tc.mod(&c)
			err := c.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestValidateRejectsOutOfRangeRatio(t *testing.T) {
	c := validConfig()
	c.EstimatedDeltaRatio = 1.5
	if err := c.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSamplesPerChunk(t *testing.T) {
	c := BuilderConfig{SnapshotInterval: 3, AccumulatedDeltaInterval: 2, ChunkInterval: 1}
	if got := c.SamplesPerChunk(); got != 6 {
		t.Errorf("expected 6, got %d", got)
	}
}

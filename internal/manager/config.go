package manager

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"chesscomm/internal/commentary"
	"chesscomm/pkg/types"
)

// Defaults applied when corresponding ManagerConfig fields are unset.
const (
	defaultMaxConcurrent = 1
	defaultMaxQueueDepth = 32
	defaultMaxWait       = 30 * time.Second
	defaultDrainTimeout  = 30 * time.Second
)

// Generator produces commentary for one move.
type Generator interface {
	Generate(ctx context.Context, facts types.MoveFacts) (commentary.Result, error)
}

// Segmenter forwards segmentation requests upstream.
type Segmenter interface {
	Segment(ctx context.Context, req types.SegmentRequest) (types.SegmentResponse, error)
}

// ManagerConfig encapsulates all tunables for Manager construction.
type ManagerConfig struct {
	Generator Generator
	// Segmenter may be nil; Segment then reports the dependency unavailable.
	Segmenter Segmenter
	// MaxConcurrent bounds generations running at once.
	MaxConcurrent int
	// MaxQueueDepth bounds callers waiting for a generation slot.
	MaxQueueDepth int
	// MaxWait is how long a caller waits for a slot before getting too busy.
	MaxWait      time.Duration
	DrainTimeout time.Duration
	// ReadyCheck reports whether the model runtime can serve; nil means always.
	ReadyCheck func() bool
	Logger     zerolog.Logger
}

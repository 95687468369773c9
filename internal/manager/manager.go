package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"chesscomm/internal/llm"
	"chesscomm/pkg/types"
)

type Manager struct {
	gen   Generator
	seg   Segmenter
	ready func() bool
	log   zerolog.Logger

	sem           *semaphore.Weighted
	capacity      int
	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	draining atomic.Bool
	waiting  atomic.Int64
	inflight atomic.Int64

	mu          sync.RWMutex
	generations int
	fallbacks   int
	failures    int
	lastErr     string
	startTime   time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		gen:           cfg.Generator,
		seg:           cfg.Segmenter,
		ready:         cfg.ReadyCheck,
		log:           cfg.Logger,
		capacity:      cfg.MaxConcurrent,
		maxQueueDepth: cfg.MaxQueueDepth,
		maxWait:       cfg.MaxWait,
		drainTimeout:  cfg.DrainTimeout,
		startTime:     time.Now(),
	}
	// Apply defaults if unset
	if m.capacity <= 0 {
		m.capacity = defaultMaxConcurrent
	}
	if m.maxQueueDepth <= 0 {
		m.maxQueueDepth = defaultMaxQueueDepth
	}
	if m.maxWait <= 0 {
		m.maxWait = defaultMaxWait
	}
	if m.drainTimeout <= 0 {
		m.drainTimeout = defaultDrainTimeout
	}
	m.sem = semaphore.NewWeighted(int64(m.capacity))
	return m
}

// Commentary admits and runs one generation.
func (m *Manager) Commentary(ctx context.Context, facts types.MoveFacts) (types.CommentaryResponse, error) {
	if m.gen == nil {
		return types.CommentaryResponse{}, llm.ErrDependencyUnavailable("commentary generator is not configured")
	}
	release, err := m.beginGeneration(ctx)
	if err != nil {
		return types.CommentaryResponse{}, err
	}
	defer release()

	res, err := m.gen.Generate(ctx, facts)
	m.mu.Lock()
	if err != nil {
		m.failures++
		m.lastErr = err.Error()
	} else {
		m.generations++
		if res.RetriedOnCPU {
			m.fallbacks++
		}
	}
	m.mu.Unlock()
	if err != nil {
		return types.CommentaryResponse{}, err
	}
	return types.CommentaryResponse{
		Commentary:       res.Text,
		Device:           string(res.Plan.Device),
		Precision:        string(res.Plan.Precision),
		RetriedOnCPU:     res.RetriedOnCPU,
		RunID:            res.RunID,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
	}, nil
}

// Segment forwards req to the segmentation upstream.
func (m *Manager) Segment(ctx context.Context, req types.SegmentRequest) (types.SegmentResponse, error) {
	if m.seg == nil {
		return types.SegmentResponse{}, llm.ErrDependencyUnavailable("segmentation upstream is not configured")
	}
	if m.draining.Load() {
		return types.SegmentResponse{}, ErrTooBusy(ReasonDraining)
	}
	return m.seg.Segment(ctx, req)
}

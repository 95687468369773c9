package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"chesscomm/internal/commentary"
	"chesscomm/internal/device"
	"chesscomm/pkg/types"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// fakeGenerator blocks on gate (when set) and returns res or err.
type fakeGenerator struct {
	mu    sync.Mutex
	gate  chan struct{}
	res   commentary.Result
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, facts types.MoveFacts) (commentary.Result, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return commentary.Result{}, ctx.Err()
		}
	}
	return f.res, f.err
}

type fakeSegmenter struct{ resp types.SegmentResponse }

func (f fakeSegmenter) Segment(context.Context, types.SegmentRequest) (types.SegmentResponse, error) {
	return f.resp, nil
}

var okResult = commentary.Result{
	Text:             "Solid.",
	Plan:             device.CPUPlan(),
	RunID:            "run-1",
	PromptTokens:     10,
	CompletionTokens: 2,
}

// waitFor polls cond until it holds or the test times out.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chesscomm/internal/device"
	"chesscomm/pkg/types"
)

// SamplingParams controls a single generation call.
type SamplingParams struct {
	MaxNewTokens int
	Temperature  float32
	// DoSample selects stochastic sampling; false means greedy decoding.
	DoSample bool
	TopK     int
	TopP     float32
	// Seed fixes the sampler RNG when non-zero.
	Seed int
}

// Runtime loads models onto a device.
type Runtime interface {
	// Load prepares modelID on the device described by plan.
	Load(ctx context.Context, modelID string, plan device.Plan) (Session, error)
	// Close releases every resource the runtime started.
	Close() error
}

// Session is a loaded model and its tokenizer.
type Session interface {
	// Plan reports the device and precision the session currently runs on.
	Plan() device.Plan
	// Encode renders msgs with the model's chat template, appending the
	// generation prompt, and tokenizes the result.
	Encode(ctx context.Context, msgs []types.Message) ([]int32, error)
	// Generate returns input followed by the newly generated tokens.
	Generate(ctx context.Context, input []int32, p SamplingParams) ([]int32, error)
	// Decode renders tokens as text with control tokens suppressed.
	Decode(ctx context.Context, tokens []int32) (string, error)
	// MoveTo relocates the model to plan. It returns only once the session is
	// fully usable on the new device.
	MoveTo(ctx context.Context, plan device.Plan) error
	Close() error
}

// Backend names accepted by NewRuntime.
const (
	BackendServer = "server"
	BackendSpawn  = "spawn"
)

// Options configures NewRuntime.
type Options struct {
	Backend string

	// server backend
	ServerURL    string
	CPUServerURL string
	APIKey       string

	// spawn backend
	LlamaBin     string
	LlamaHost    string
	PortStart    int
	PortEnd      int
	CtxSize      int
	Threads      int
	ExtraArgs    []string
	ModelPath    string
	ModelsDir    string
	ReadyTimeout time.Duration

	// shared
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
	Publisher      EventPublisher
}

// NewRuntime builds the runtime selected by o.Backend.
func NewRuntime(o Options) (Runtime, error) {
	switch strings.ToLower(strings.TrimSpace(o.Backend)) {
	case "", BackendServer:
		if strings.TrimSpace(o.ServerURL) == "" {
			return nil, ErrDependencyUnavailable("llama server url is not configured")
		}
		return NewServerRuntime(o), nil
	case BackendSpawn:
		if strings.TrimSpace(o.LlamaBin) == "" {
			return nil, ErrDependencyUnavailable("llama-server binary is not configured")
		}
		return NewSpawnRuntime(o), nil
	default:
		return nil, fmt.Errorf("unknown llm backend: %q", o.Backend)
	}
}

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}

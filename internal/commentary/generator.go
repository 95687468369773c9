// Package commentary runs one commentary generation: device selection, model
// load, prompt encoding, sampling with a single CPU fallback, and decoding of
// the generated suffix.
package commentary

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chesscomm/internal/device"
	"chesscomm/internal/llm"
	"chesscomm/internal/movecheck"
	"chesscomm/internal/prompt"
	"chesscomm/pkg/types"
)

// State is a step of a generation run. Every transition is published as an
// llm.Event named after the state.
type State string

const (
	StateInit           State = "init"
	StateDeviceSelected State = "device_selected"
	StateModelLoaded    State = "model_loaded"
	StateGenerating     State = "generating"
	StateRetryingOnCPU  State = "retrying_on_cpu"
	StateSucceeded      State = "succeeded"
	StateFailed         State = "failed"
	StateDone           State = "done"
)

// Params returns the sampling parameters of every attempt, the CPU retry
// included.
func Params() llm.SamplingParams {
	return llm.SamplingParams{
		MaxNewTokens: 256,
		Temperature:  0.7,
		DoSample:     true,
		TopK:         50,
		TopP:         1.0,
	}
}

// Result is the outcome of a successful run.
type Result struct {
	Text             string
	Plan             device.Plan // device the text was generated on
	RetriedOnCPU     bool
	RunID            string
	PromptTokens     int
	CompletionTokens int
}

// Options configures New.
type Options struct {
	Runtime   llm.Runtime
	Probe     device.Probe
	ModelID   string
	Logger    zerolog.Logger
	Publisher llm.EventPublisher
	// SkipChecks disables the advisory move diagnostics.
	SkipChecks bool
}

// Generator produces commentary. It holds no model state between runs; each
// Generate call loads and closes its own session.
type Generator struct {
	rt         llm.Runtime
	probe      device.Probe
	modelID    string
	log        zerolog.Logger
	publisher  llm.EventPublisher
	skipChecks bool
}

func New(o Options) *Generator {
	pub := o.Publisher
	if pub == nil {
		pub = llm.Discard
	}
	probe := o.Probe
	if probe == nil {
		probe = device.Static{}
	}
	return &Generator{
		rt:         o.Runtime,
		probe:      probe,
		modelID:    o.ModelID,
		log:        o.Logger,
		publisher:  pub,
		skipChecks: o.SkipChecks,
	}
}

// run carries per-call bookkeeping.
type run struct {
	g     *Generator
	id    string
	start time.Time
	plan  device.Plan
}

func (r *run) enter(s State, fields map[string]any) {
	f := map[string]any{"run_id": r.id}
	for k, v := range fields {
		f[k] = v
	}
	r.g.publisher.Publish(llm.Event{Name: string(s), ModelID: r.g.modelID, Fields: f})
}

func (r *run) fail(err error) error {
	r.enter(StateFailed, map[string]any{"error": err.Error()})
	r.enter(StateDone, nil)
	r.observe("error")
	return err
}

func (r *run) observe(outcome string) {
	dev := string(r.plan.Device)
	if dev == "" {
		dev = "none"
	}
	generationTotal.WithLabelValues(dev, outcome).Inc()
	generationDuration.WithLabelValues(dev, outcome).Observe(time.Since(r.start).Seconds())
}

// Generate produces commentary for facts.
//
// A failed attempt is retried exactly once, on CPU, and only when the session
// was running on MPS and the failure is a degenerate sampling distribution.
// Every other failure is returned as is.
func (g *Generator) Generate(ctx context.Context, facts types.MoveFacts) (Result, error) {
	r := &run{g: g, id: uuid.NewString(), start: time.Now()}
	r.enter(StateInit, nil)

	if !g.skipChecks {
		for _, f := range movecheck.Check(facts) {
			g.log.Warn().Str("field", f.Field).Msg(f.Message)
		}
	}

	r.plan = device.Select(g.probe)
	r.enter(StateDeviceSelected, map[string]any{"device": string(r.plan.Device), "precision": string(r.plan.Precision)})
	g.log.Info().Str("device", string(r.plan.Device)).Str("precision", string(r.plan.Precision)).Msg("loading model")

	if g.rt == nil {
		return Result{}, r.fail(llm.ErrDependencyUnavailable("no llm runtime configured"))
	}
	sess, err := g.rt.Load(ctx, g.modelID, r.plan)
	if err != nil {
		return Result{}, r.fail(fmt.Errorf("load %s on %s: %w", g.modelID, r.plan, err))
	}
	defer sess.Close()
	r.enter(StateModelLoaded, nil)

	in, err := sess.Encode(ctx, prompt.Build(facts))
	if err != nil {
		return Result{}, r.fail(fmt.Errorf("encode prompt: %w", err))
	}

	params := Params()
	r.enter(StateGenerating, map[string]any{"prompt_tokens": len(in)})
	out, err := sess.Generate(ctx, in, params)
	retried := false
	if err != nil {
		if sess.Plan().Device != device.MPS || !llm.IsDegenerateSampling(err) {
			return Result{}, r.fail(fmt.Errorf("generate: %w", err))
		}
		g.log.Warn().Err(err).Msg("retrying on CPU")
		r.enter(StateRetryingOnCPU, map[string]any{"cause": err.Error()})
		cpuFallbackTotal.Inc()
		retried = true

		cpu := device.CPUPlan()
		if err := sess.MoveTo(ctx, cpu); err != nil {
			return Result{}, r.fail(fmt.Errorf("move to %s: %w", cpu, err))
		}
		r.plan = cpu
		out, err = sess.Generate(ctx, in, params)
		if err != nil {
			return Result{}, r.fail(fmt.Errorf("generate on %s: %w", cpu, err))
		}
	}

	if len(out) < len(in) {
		return Result{}, r.fail(fmt.Errorf("generation returned %d tokens for a %d token prompt", len(out), len(in)))
	}
	suffix := out[len(in):]
	text, err := sess.Decode(ctx, suffix)
	if err != nil {
		return Result{}, r.fail(fmt.Errorf("decode: %w", err))
	}

	r.enter(StateSucceeded, map[string]any{"device": string(r.plan.Device), "completion_tokens": len(suffix)})
	r.enter(StateDone, nil)
	r.observe("success")
	return Result{
		Text:             text,
		Plan:             r.plan,
		RetriedOnCPU:     retried,
		RunID:            r.id,
		PromptTokens:     len(in),
		CompletionTokens: len(suffix),
	}, nil
}

package llm

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"chesscomm/internal/device"
	"chesscomm/pkg/types"
)

// controlTokenPattern matches the textual form of control tokens that
// llama-server's detokenizer renders (Gemma turn markers, BOS/EOS, ChatML
// and Llama-3 style <|...|> markers).
var controlTokenPattern = regexp.MustCompile(`<(?:bos|eos|pad|unk|mask|start_of_turn|end_of_turn|/?s)>|<\|[a-zA-Z0-9_]+\|>`)

// stripControlTokens removes control token text from s.
func stripControlTokens(s string) string {
	return controlTokenPattern.ReplaceAllString(s, "")
}

// mover relocates a session and returns the base URL serving the new plan.
type mover func(ctx context.Context, from, to device.Plan) (string, error)

// remoteSession is a Session backed by a llama-server endpoint.
type remoteSession struct {
	client  *llamaClient
	modelID string
	move    mover
	release func() // called once by Close; may be nil

	mu      sync.Mutex
	baseURL string
	plan    device.Plan
	closed  bool
}

func (s *remoteSession) current() (string, device.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", s.plan, errors.New("llm session is closed")
	}
	return s.baseURL, s.plan, nil
}

func (s *remoteSession) Plan() device.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

func (s *remoteSession) Encode(ctx context.Context, msgs []types.Message) ([]int32, error) {
	base, _, err := s.current()
	if err != nil {
		return nil, err
	}
	rendered, err := s.client.applyTemplate(ctx, base, msgs)
	if err != nil {
		return nil, err
	}
	toks, err := s.client.tokenize(ctx, base, rendered)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errors.New("empty prompt after tokenization")
	}
	return toks, nil
}

func (s *remoteSession) Generate(ctx context.Context, input []int32, p SamplingParams) ([]int32, error) {
	base, _, err := s.current()
	if err != nil {
		return nil, err
	}
	req := completionRequest{
		Prompt:       input,
		NPredict:     p.MaxNewTokens,
		Temperature:  p.Temperature,
		TopK:         p.TopK,
		TopP:         p.TopP,
		Seed:         p.Seed,
		Stream:       false,
		ReturnTokens: true,
		CachePrompt:  false,
	}
	if !p.DoSample {
		// llama.cpp decodes greedily at temperature 0.
		req.Temperature = 0
	}
	resp, err := s.client.complete(ctx, base, req)
	if err != nil {
		return nil, err
	}
	generated := resp.Tokens
	if len(generated) == 0 && resp.Content != "" {
		// Older servers ignore return_tokens; recover ids from the text.
		if generated, err = s.client.tokenize(ctx, base, resp.Content); err != nil {
			return nil, err
		}
	}
	out := make([]int32, 0, len(input)+len(generated))
	out = append(out, input...)
	return append(out, generated...), nil
}

func (s *remoteSession) Decode(ctx context.Context, tokens []int32) (string, error) {
	if len(tokens) == 0 {
		return "", nil
	}
	base, _, err := s.current()
	if err != nil {
		return "", err
	}
	text, err := s.client.detokenize(ctx, base, tokens)
	if err != nil {
		return "", err
	}
	return stripControlTokens(text), nil
}

func (s *remoteSession) MoveTo(ctx context.Context, plan device.Plan) error {
	_, from, err := s.current()
	if err != nil {
		return err
	}
	if from == plan {
		return nil
	}
	base, err := s.move(ctx, from, plan)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.baseURL = base
	s.plan = plan
	s.mu.Unlock()
	return nil
}

// Close marks the session unusable and gives its process reference back.
// Spawned processes outlive sessions and are stopped by Runtime.Close.
func (s *remoteSession) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already && s.release != nil {
		s.release()
	}
	return nil
}

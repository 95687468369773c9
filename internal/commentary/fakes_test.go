package commentary

import (
	"context"
	"errors"
	"strings"
	"sync"

	"chesscomm/internal/device"
	"chesscomm/internal/llm"
	"chesscomm/pkg/types"
)

type attempt struct {
	out []int32
	err error
}

// fakeSession encodes every message to a fixed prompt and replays attempts
// in order. Tokens decode through vocab.
type fakeSession struct {
	mu       sync.Mutex
	plan     device.Plan
	prompt   []int32
	attempts []attempt
	vocab    map[int32]string
	moveErr  error

	encoded   [][]types.Message
	genPlans  []device.Plan
	genParams []llm.SamplingParams
	genInputs [][]int32
	decoded   [][]int32
	moves     []device.Plan
	closed    bool
}

func (s *fakeSession) Plan() device.Plan {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plan
}

func (s *fakeSession) Encode(_ context.Context, msgs []types.Message) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoded = append(s.encoded, msgs)
	return append([]int32(nil), s.prompt...), nil
}

func (s *fakeSession) Generate(_ context.Context, input []int32, p llm.SamplingParams) ([]int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.genPlans = append(s.genPlans, s.plan)
	s.genParams = append(s.genParams, p)
	s.genInputs = append(s.genInputs, append([]int32(nil), input...))
	if len(s.attempts) == 0 {
		return nil, errors.New("no scripted attempt left")
	}
	a := s.attempts[0]
	s.attempts = s.attempts[1:]
	if a.err != nil {
		return nil, a.err
	}
	return append(append([]int32(nil), input...), a.out...), nil
}

func (s *fakeSession) Decode(_ context.Context, tokens []int32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decoded = append(s.decoded, append([]int32(nil), tokens...))
	words := make([]string, 0, len(tokens))
	for _, t := range tokens {
		words = append(words, s.vocab[t])
	}
	return strings.Join(words, ""), nil
}

func (s *fakeSession) MoveTo(_ context.Context, plan device.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves = append(s.moves, plan)
	if s.moveErr != nil {
		return s.moveErr
	}
	s.plan = plan
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type fakeRuntime struct {
	sess    *fakeSession
	loadErr error
	loads   []device.Plan
	modelID string
}

func (r *fakeRuntime) Load(_ context.Context, modelID string, plan device.Plan) (llm.Session, error) {
	r.loads = append(r.loads, plan)
	r.modelID = modelID
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	r.sess.plan = plan
	return r.sess, nil
}

func (r *fakeRuntime) Close() error { return nil }

package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// fakeLlama is an in-memory llama-server. Words map to token ids through a
// fixed vocabulary; unknown words get fresh ids.
type fakeLlama struct {
	mu          sync.Mutex
	vocab       map[string]int32
	words       map[int32]string
	generated   string // text produced by /completion
	omitTokens  bool   // leave "tokens" out of /completion responses
	completeErr string // body returned with 500 from /completion
	unhealthy   bool
	completions []completionRequest
}

func newFakeLlama() *fakeLlama {
	f := &fakeLlama{vocab: map[string]int32{}, words: map[int32]string{}}
	for _, w := range []string{"<bos>", "<start_of_turn>", "<end_of_turn>", "<eos>"} {
		f.id(w)
	}
	return f
}

func (f *fakeLlama) id(w string) int32 {
	if id, ok := f.vocab[w]; ok {
		return id
	}
	id := int32(len(f.vocab) + 1)
	f.vocab[w] = id
	f.words[id] = w
	return id
}

func (f *fakeLlama) tokenize(s string) []int32 {
	var out []int32
	for _, w := range strings.Fields(s) {
		out = append(out, f.id(w))
	}
	return out
}

func (f *fakeLlama) detokenize(ids []int32) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, f.words[id])
	}
	return strings.Join(parts, " ")
}

func (f *fakeLlama) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		bad := f.unhealthy
		f.mu.Unlock()
		if bad {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/apply-template", func(w http.ResponseWriter, r *http.Request) {
		var req templateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("apply-template decode: %v", err)
		}
		var b strings.Builder
		b.WriteString("<bos> ")
		for _, m := range req.Messages {
			b.WriteString("<start_of_turn> " + string(m.Role) + " " + m.Content + " <end_of_turn> ")
		}
		b.WriteString("<start_of_turn> model")
		_ = json.NewEncoder(w).Encode(templateResponse{Prompt: b.String()})
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req tokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		toks := f.tokenize(req.Content)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(tokenizeResponse{Tokens: toks})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req detokenizeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		s := f.detokenize(req.Tokens)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(detokenizeResponse{Content: s})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		var req completionRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completions = append(f.completions, req)
		if f.completeErr != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(f.completeErr))
			return
		}
		resp := completionResponse{Content: f.generated}
		if !f.omitTokens {
			resp.Tokens = f.tokenize(f.generated)
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (f *fakeLlama) start(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(f.handler(t))
	t.Cleanup(ts.Close)
	return ts
}

func (f *fakeLlama) calls() []completionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completionRequest(nil), f.completions...)
}

func serverError500(msg string) string {
	b, _ := json.Marshal(map[string]any{"error": map[string]any{"code": 500, "message": msg, "type": "server_error"}})
	return string(b)
}

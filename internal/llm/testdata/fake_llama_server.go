package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// reply is what every successful /completion produces.
const reply = "a quiet developing move"

type vocab struct {
	mu    sync.Mutex
	ids   map[string]int32
	words map[int32]string
}

func (v *vocab) encode(s string) []int32 {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []int32
	for _, w := range strings.Fields(s) {
		id, ok := v.ids[w]
		if !ok {
			id = int32(len(v.ids) + 1)
			v.ids[w] = id
			v.words[id] = w
		}
		out = append(out, id)
	}
	return out
}

func (v *vocab) decode(ids []int32) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, v.words[id])
	}
	return strings.Join(parts, " ")
}

func main() {
	var model, host, port, ngl, dev, kvK, kvV, ctxSize, threads string
	// Accept the llama-server flags the spawn runtime passes.
	flag.StringVar(&model, "m", "", "model path")
	flag.StringVar(&host, "host", "127.0.0.1", "host")
	flag.StringVar(&port, "port", "0", "port")
	flag.StringVar(&ngl, "ngl", "0", "gpu layers")
	flag.StringVar(&dev, "device", "", "device list")
	flag.StringVar(&kvK, "cache-type-k", "f16", "k cache type")
	flag.StringVar(&kvV, "cache-type-v", "f16", "v cache type")
	flag.StringVar(&ctxSize, "c", "0", "context size")
	flag.StringVar(&threads, "t", "0", "threads")
	flag.Parse()

	// FAKE_LLAMA_DEGENERATE_ON_GPU makes every offloaded instance fail sampling.
	degenerate := os.Getenv("FAKE_LLAMA_DEGENERATE_ON_GPU") != "" && ngl != "0"
	v := &vocab{ids: map[string]int32{}, words: map[int32]string{}}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.HandleFunc("/apply-template", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		var b strings.Builder
		b.WriteString("<bos> ")
		for _, m := range req.Messages {
			b.WriteString("<start_of_turn> " + m.Role + " " + m.Content + " <end_of_turn> ")
		}
		b.WriteString("<start_of_turn> model")
		_ = json.NewEncoder(w).Encode(map[string]string{"prompt": b.String()})
	})
	mux.HandleFunc("/tokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string][]int32{"tokens": v.encode(req.Content)})
	})
	mux.HandleFunc("/detokenize", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Tokens []int32 `json:"tokens"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(map[string]string{"content": v.decode(req.Tokens)})
	})
	mux.HandleFunc("/completion", func(w http.ResponseWriter, r *http.Request) {
		if degenerate {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"code":500,"message":"probability tensor contains either inf, nan or element < 0","type":"server_error"}}`))
			return
		}
		text := reply + " <end_of_turn>"
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": text,
			"tokens":  v.encode(text),
		})
	})

	srv := &http.Server{Addr: fmt.Sprintf("%s:%s", host, port), Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	<-sigCh
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

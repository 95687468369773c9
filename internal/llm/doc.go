// Package llm talks to the language-model runtime that renders chat
// templates, tokenizes, samples and detokenizes on our behalf.
//
// Two runtimes are provided, both backed by llama.cpp's llama-server:
//
//   - server.go: an already running server reached over HTTP. An optional
//     second URL serves CPU-only requests so a session can be moved off an
//     accelerator.
//   - spawn.go: llama-server processes started per (model file, device plan),
//     with GPU layers and KV cache precision derived from the plan.
//
// Runtime failures are classified here, once. Callers branch on the kind via
// IsDegenerateSampling / IsDependencyUnavailable / IsModelNotFound and never
// inspect error text.
package llm

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"chesscomm/internal/llm"
)

// DefaultModelID is the fine-tuned commentary model.
const DefaultModelID = "NAKSTStudio/chess-gemma-commentary"

// Config holds runtime parameters for the CLI and the HTTP service.
// Zero values mean "unspecified" and are replaced by Default.
type Config struct {
	ModelID string `json:"model_id" yaml:"model_id" toml:"model_id"`

	// llm runtime
	Backend           string   `json:"backend" yaml:"backend" toml:"backend"`
	ServerURL         string   `json:"server_url" yaml:"server_url" toml:"server_url"`
	CPUServerURL      string   `json:"cpu_server_url" yaml:"cpu_server_url" toml:"cpu_server_url"`
	APIKey            string   `json:"api_key" yaml:"api_key" toml:"api_key"`
	RequestTimeoutSec int      `json:"request_timeout_sec" yaml:"request_timeout_sec" toml:"request_timeout_sec"`
	ReadyTimeoutSec   int      `json:"ready_timeout_sec" yaml:"ready_timeout_sec" toml:"ready_timeout_sec"`
	LlamaBin          string   `json:"llama_bin" yaml:"llama_bin" toml:"llama_bin"`
	ModelsDir         string   `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ModelPath         string   `json:"model_path" yaml:"model_path" toml:"model_path"`
	LlamaHost         string   `json:"llama_host" yaml:"llama_host" toml:"llama_host"`
	PortStart         int      `json:"port_start" yaml:"port_start" toml:"port_start"`
	PortEnd           int      `json:"port_end" yaml:"port_end" toml:"port_end"`
	CtxSize           int      `json:"ctx_size" yaml:"ctx_size" toml:"ctx_size"`
	Threads           int      `json:"threads" yaml:"threads" toml:"threads"`
	ExtraArgs         []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`

	LogLevel string `json:"log_level" yaml:"log_level" toml:"log_level"`

	// HTTP service
	Addr          string   `json:"addr" yaml:"addr" toml:"addr"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	MaxBodyBytes  int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	MaxConcurrent int      `json:"max_concurrent" yaml:"max_concurrent" toml:"max_concurrent"`
	QueueWaitSec  int      `json:"queue_wait_sec" yaml:"queue_wait_sec" toml:"queue_wait_sec"`
	SegmentURL    string   `json:"segment_url" yaml:"segment_url" toml:"segment_url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ModelID:           DefaultModelID,
		Backend:           llm.BackendServer,
		ServerURL:         "http://127.0.0.1:8081",
		RequestTimeoutSec: 300,
		ReadyTimeoutSec:   120,
		LlamaBin:          "llama-server",
		ModelsDir:         "~/models/llm",
		LlamaHost:         "127.0.0.1",
		LogLevel:          "info",
		Addr:              ":8080",
		MaxBodyBytes:      1 << 20,
		MaxConcurrent:     1,
		QueueWaitSec:      30,
	}
}

// Load reads a configuration file based on its extension and layers it over
// Default. Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CHESSCOMM_"

// ApplyEnv overlays CHESSCOMM_* variables onto cfg. lookup is usually
// os.LookupEnv; malformed numbers are reported rather than ignored.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}
	list := func(name string, dst *[]string) {
		if v, ok := lookup(EnvPrefix + name); ok && strings.TrimSpace(v) != "" {
			*dst = SplitCSV(v)
		}
	}

	str("MODEL_ID", &cfg.ModelID)
	str("BACKEND", &cfg.Backend)
	str("SERVER_URL", &cfg.ServerURL)
	str("CPU_SERVER_URL", &cfg.CPUServerURL)
	str("API_KEY", &cfg.APIKey)
	str("LLAMA_BIN", &cfg.LlamaBin)
	str("MODELS_DIR", &cfg.ModelsDir)
	str("MODEL_PATH", &cfg.ModelPath)
	str("LLAMA_HOST", &cfg.LlamaHost)
	str("LOG_LEVEL", &cfg.LogLevel)
	str("ADDR", &cfg.Addr)
	str("SEGMENT_URL", &cfg.SegmentURL)
	list("CORS_ORIGINS", &cfg.CORSOrigins)
	list("EXTRA_ARGS", &cfg.ExtraArgs)
	for name, dst := range map[string]*int{
		"REQUEST_TIMEOUT_SEC": &cfg.RequestTimeoutSec,
		"READY_TIMEOUT_SEC":   &cfg.ReadyTimeoutSec,
		"PORT_START":          &cfg.PortStart,
		"PORT_END":            &cfg.PortEnd,
		"CTX_SIZE":            &cfg.CtxSize,
		"THREADS":             &cfg.Threads,
		"MAX_CONCURRENT":      &cfg.MaxConcurrent,
		"QUEUE_WAIT_SEC":      &cfg.QueueWaitSec,
	} {
		if err := num(name, dst); err != nil {
			return err
		}
	}
	if v, ok := lookup(EnvPrefix + "MAX_BODY_BYTES"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sMAX_BODY_BYTES: %w", EnvPrefix, err)
		}
		cfg.MaxBodyBytes = n
	}
	return nil
}

// SplitCSV splits a comma separated list, trimming blanks and dropping empties.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// RuntimeOptions converts the runtime fields into llm.Options. Logger and
// Publisher are left for the caller.
func (c Config) RuntimeOptions() llm.Options {
	return llm.Options{
		Backend:        c.Backend,
		ServerURL:      c.ServerURL,
		CPUServerURL:   c.CPUServerURL,
		APIKey:         c.APIKey,
		LlamaBin:       c.LlamaBin,
		LlamaHost:      c.LlamaHost,
		PortStart:      c.PortStart,
		PortEnd:        c.PortEnd,
		CtxSize:        c.CtxSize,
		Threads:        c.Threads,
		ExtraArgs:      append([]string(nil), c.ExtraArgs...),
		ModelPath:      c.ModelPath,
		ModelsDir:      c.ModelsDir,
		ReadyTimeout:   time.Duration(c.ReadyTimeoutSec) * time.Second,
		RequestTimeout: time.Duration(c.RequestTimeoutSec) * time.Second,
		ConnectTimeout: 5 * time.Second,
	}
}

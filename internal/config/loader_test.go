package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "model_id: owner/m1\nbackend: spawn\nmodels_dir: /tmp\nthreads: 4\ncors_origins: [\"http://a\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ModelID != "owner/m1" || cfg.Backend != "spawn" || cfg.ModelsDir != "/tmp" || cfg.Threads != 4 || len(cfg.CORSOrigins) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	// untouched fields keep defaults
	if cfg.Addr != ":8080" || cfg.LogLevel != "info" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"server_url":"http://gpu:8081","cpu_server_url":"http://cpu:8082","max_concurrent":3}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServerURL != "http://gpu:8081" || cfg.CPUServerURL != "http://cpu:8082" || cfg.MaxConcurrent != 3 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.ModelID != DefaultModelID {
		t.Fatalf("model id default lost: %q", cfg.ModelID)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "addr=\":8090\"\nport_start=30000\nport_end=30010\nextra_args=[\"--jinja\"]\n")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8090" || cfg.PortStart != 30000 || cfg.PortEnd != 30010 || len(cfg.ExtraArgs) != 1 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error on empty path")
	}
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
	d := t.TempDir()
	cases := map[string]string{
		"cfg.txt":  "not supported",
		"bad.yaml": "addr: :8080\n: broken\n",
		"bad.json": `{ "addr": ":8080", "models_dir": }`,
		"bad.toml": "addr=:8080\nmodels_dir\n",
	}
	for name, body := range cases {
		if _, err := Load(writeTempFile(t, d, name, body)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := ApplyEnv(&cfg, envMap(map[string]string{
		"CHESSCOMM_BACKEND":        "spawn",
		"CHESSCOMM_THREADS":        " 6 ",
		"CHESSCOMM_CORS_ORIGINS":   "http://a, http://b,,",
		"CHESSCOMM_MAX_BODY_BYTES": "2048",
		"CHESSCOMM_SERVER_URL":     "   ",
	}))
	if err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.Backend != "spawn" || cfg.Threads != 6 || cfg.MaxBodyBytes != 2048 {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b" {
		t.Fatalf("unexpected origins: %v", cfg.CORSOrigins)
	}
	if cfg.ServerURL != Default().ServerURL {
		t.Fatalf("blank env must not override: %q", cfg.ServerURL)
	}
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	cfg := Default()
	if err := ApplyEnv(&cfg, envMap(map[string]string{"CHESSCOMM_PORT_START": "abc"})); err == nil {
		t.Fatalf("expected error for malformed number")
	}
	if err := ApplyEnv(&cfg, envMap(map[string]string{"CHESSCOMM_MAX_BODY_BYTES": "1M"})); err == nil {
		t.Fatalf("expected error for malformed size")
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , b , c ", []string{"a", "b", "c"}},
		{"a,,c", []string{"a", "c"}},
		{"", nil},
	}
	for _, c := range cases {
		got := SplitCSV(c.in)
		if len(got) != len(c.want) {
			t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Fatalf("%q -> %v, want %v", c.in, got, c.want)
			}
		}
	}
}

func TestRuntimeOptions(t *testing.T) {
	cfg := Default()
	cfg.RequestTimeoutSec = 10
	cfg.ExtraArgs = []string{"--jinja"}
	o := cfg.RuntimeOptions()
	if o.RequestTimeout != 10*time.Second || o.ReadyTimeout != 120*time.Second {
		t.Fatalf("unexpected timeouts: %+v", o)
	}
	if o.Backend != cfg.Backend || o.ServerURL != cfg.ServerURL || o.LlamaBin != cfg.LlamaBin {
		t.Fatalf("fields not carried: %+v", o)
	}
	o.ExtraArgs[0] = "mutated"
	if cfg.ExtraArgs[0] != "--jinja" {
		t.Fatalf("extra args must be copied")
	}
}

package device

import (
	"context"
	"errors"
	"testing"
)

func TestSelect(t *testing.T) {
	cases := []struct {
		name string
		p    Static
		want Plan
	}{
		{"cuda only", Static{CUDA: true}, Plan{CUDA, Float16}},
		{"cuda wins over mps", Static{CUDA: true, MPS: true}, Plan{CUDA, Float16}},
		{"mps only", Static{MPS: true}, Plan{MPS, Float32}},
		{"nothing", Static{}, Plan{CPU, Float32}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Select(tc.p); got != tc.want {
				t.Fatalf("Select(%+v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestSelect_MPSNeverHalf(t *testing.T) {
	if Select(Static{MPS: true}).Half() {
		t.Fatalf("mps must not be paired with float16")
	}
}

func TestCPUPlan(t *testing.T) {
	if p := CPUPlan(); p.Device != CPU || p.Precision != Float32 {
		t.Fatalf("unexpected cpu plan: %v", p)
	}
}

func fakeProbe(out string, runErr, lookErr error) SystemProbe {
	return SystemProbe{
		LookPath: func(string) (string, error) { return "/usr/bin/nvidia-smi", lookErr },
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte(out), runErr
		},
		GOOS:   "linux",
		GOARCH: "amd64",
	}
}

func TestSystemProbe_CUDA(t *testing.T) {
	t.Setenv("CUDA_VISIBLE_DEVICES", "0")
	if !fakeProbe("GPU 0: NVIDIA A10G (UUID: GPU-1)\n", nil, nil).CUDAAvailable() {
		t.Fatalf("expected cuda available")
	}
	if fakeProbe("", errors.New("exit 9"), nil).CUDAAvailable() {
		t.Fatalf("expected cuda unavailable when nvidia-smi fails")
	}
	if fakeProbe("", nil, errors.New("not found")).CUDAAvailable() {
		t.Fatalf("expected cuda unavailable without nvidia-smi")
	}
}

func TestSystemProbe_CUDAHiddenByEnv(t *testing.T) {
	t.Setenv("CUDA_VISIBLE_DEVICES", "-1")
	if fakeProbe("GPU 0: NVIDIA A10G\n", nil, nil).CUDAAvailable() {
		t.Fatalf("expected cuda hidden by CUDA_VISIBLE_DEVICES=-1")
	}
}

func TestSystemProbe_MPS(t *testing.T) {
	p := SystemProbe{GOOS: "darwin", GOARCH: "arm64"}
	if !p.MPSAvailable() {
		t.Fatalf("expected mps on darwin/arm64")
	}
	p.GOARCH = "amd64"
	if p.MPSAvailable() {
		t.Fatalf("expected no mps on darwin/amd64")
	}
}

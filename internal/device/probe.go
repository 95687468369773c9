package device

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// probeTimeout bounds the nvidia-smi call.
const probeTimeout = 3 * time.Second

// SystemProbe inspects the host. CUDA is available when nvidia-smi lists at
// least one GPU and CUDA_VISIBLE_DEVICES does not hide them all. MPS is
// available on Apple Silicon.
type SystemProbe struct {
	// LookPath and Run are swapped in tests.
	LookPath func(string) (string, error)
	Run      func(ctx context.Context, name string, args ...string) ([]byte, error)
	GOOS     string
	GOARCH   string
}

// NewSystemProbe returns a probe bound to the running host.
func NewSystemProbe() SystemProbe {
	return SystemProbe{
		LookPath: exec.LookPath,
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		GOOS:   runtime.GOOS,
		GOARCH: runtime.GOARCH,
	}
}

func (s SystemProbe) CUDAAvailable() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	if s.LookPath == nil || s.Run == nil {
		return false
	}
	bin, err := s.LookPath("nvidia-smi")
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	out, err := s.Run(ctx, bin, "-L")
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "GPU ")
}

func (s SystemProbe) MPSAvailable() bool {
	return s.GOOS == "darwin" && s.GOARCH == "arm64"
}

package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chesscomm/internal/device"
)

// serverRuntime uses llama-server instances someone else started. The primary
// URL serves whatever device it was launched on; CPUServerURL, when set,
// serves CPU-only requests.
//
// The plan handed to Load only labels the session: the remote device and
// precision were fixed when that server was launched and are not checked here,
// so the float16/float32 pairing of the plan is not enforced on this backend.
// Only a move to CPU changes behaviour, by switching to CPUServerURL.
type serverRuntime struct {
	client *llamaClient
	url    string
	cpuURL string
	log    zerolog.Logger
}

// NewServerRuntime constructs a runtime for already running servers.
func NewServerRuntime(o Options) Runtime {
	return &serverRuntime{
		client: newLlamaClient(o.APIKey, o.RequestTimeout, o.ConnectTimeout),
		url:    strings.TrimRight(o.ServerURL, "/"),
		cpuURL: strings.TrimRight(o.CPUServerURL, "/"),
		log:    o.Logger,
	}
}

func (r *serverRuntime) Load(ctx context.Context, modelID string, plan device.Plan) (Session, error) {
	base := r.url
	if plan.Device == device.CPU && r.cpuURL != "" {
		base = r.cpuURL
	}
	if !r.client.healthy(base, 5*time.Second) {
		return nil, ErrDependencyUnavailable(fmt.Sprintf("llama server at %s is not ready", base))
	}
	r.log.Debug().Str("model", modelID).Str("url", base).Str("device", string(plan.Device)).Msg("session opened")
	return &remoteSession{
		client:  r.client,
		modelID: modelID,
		baseURL: base,
		plan:    plan,
		move:    r.move,
	}, nil
}

func (r *serverRuntime) move(ctx context.Context, from, to device.Plan) (string, error) {
	if to.Device != device.CPU || r.cpuURL == "" {
		return "", ErrDependencyUnavailable(fmt.Sprintf("no llama server configured for %s", to))
	}
	if !r.client.healthy(r.cpuURL, 5*time.Second) {
		return "", ErrDependencyUnavailable(fmt.Sprintf("cpu llama server at %s is not ready", r.cpuURL))
	}
	r.log.Debug().Str("from", from.String()).Str("to", to.String()).Str("url", r.cpuURL).Msg("session moved")
	return r.cpuURL, nil
}

func (r *serverRuntime) Close() error { return nil }

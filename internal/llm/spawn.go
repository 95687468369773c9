package llm

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"chesscomm/internal/device"
	"chesscomm/internal/registry"
)

const (
	defaultReadyTimeout = 120 * time.Second
	// allGPULayers asks llama-server to offload every layer.
	allGPULayers = 999
)

// spawnRuntime starts one llama-server per (model path, plan) and shares it
// between the sessions loaded on that plan.
type spawnRuntime struct {
	opts      Options
	client    *llamaClient
	log       zerolog.Logger
	publisher EventPublisher

	mu    sync.Mutex
	procs map[string]*procInfo // key: procKey(modelPath, plan)
}

// procInfo tracks one llama-server. Callers that find it starting wait on
// ready; cmd, pid and stopping are guarded by spawnRuntime.mu.
type procInfo struct {
	key     string
	port    int
	baseURL string
	ready   chan struct{} // closed once startup finished
	err     error         // startup failure, set before ready closes
	done    chan struct{} // closed once the process exited

	cmd      *exec.Cmd
	pid      int
	refs     int // sessions holding the process
	stopping bool
}

// NewSpawnRuntime constructs a subprocess-backed runtime.
func NewSpawnRuntime(o Options) Runtime {
	return &spawnRuntime{
		opts:      o,
		client:    newLlamaClient(o.APIKey, o.RequestTimeout, o.ConnectTimeout),
		log:       o.Logger,
		publisher: publisherOrNoop(o.Publisher),
		procs:     make(map[string]*procInfo),
	}
}

func procKey(modelPath string, plan device.Plan) string { return modelPath + "|" + plan.String() }

// resolveModelPath finds the weights for modelID.
func (r *spawnRuntime) resolveModelPath(modelID string) (string, error) {
	if p := strings.TrimSpace(r.opts.ModelPath); p != "" {
		return p, nil
	}
	if strings.TrimSpace(r.opts.ModelsDir) == "" {
		return "", ErrModelNotFound(modelID)
	}
	models, err := registry.LoadDir(r.opts.ModelsDir)
	if err != nil {
		return "", fmt.Errorf("scan models dir: %w", err)
	}
	m, ok := registry.Resolve(models, modelID)
	if !ok {
		return "", ErrModelNotFound(modelID)
	}
	return m.Path, nil
}

func (r *spawnRuntime) Load(ctx context.Context, modelID string, plan device.Plan) (Session, error) {
	modelPath, err := r.resolveModelPath(modelID)
	if err != nil {
		return nil, err
	}
	p, err := r.acquire(ctx, modelPath, plan)
	if err != nil {
		return nil, err
	}
	var heldMu sync.Mutex
	held := p
	return &remoteSession{
		client:  r.client,
		modelID: modelID,
		baseURL: p.baseURL,
		plan:    plan,
		move: func(ctx context.Context, from, to device.Plan) (string, error) {
			next, err := r.acquire(ctx, modelPath, to)
			if err != nil {
				return "", err
			}
			heldMu.Lock()
			prev := held
			held = next
			heldMu.Unlock()
			// Free the accelerator only once the new process serves requests
			// and no other session still runs on the old one.
			r.release(prev, true)
			return next.baseURL, nil
		},
		release: func() {
			heldMu.Lock()
			h := held
			held = nil
			heldMu.Unlock()
			if h != nil {
				r.release(h, false)
			}
		},
	}, nil
}

// spawnArgs maps a plan onto llama-server flags: GPU layer offload for the
// device, KV cache type for the precision.
func spawnArgs(o Options, modelPath, host string, port int, plan device.Plan) []string {
	args := []string{
		"-m", modelPath,
		"--host", host,
		"--port", strconv.Itoa(port),
	}
	if o.CtxSize > 0 {
		args = append(args, "-c", strconv.Itoa(o.CtxSize))
	}
	if o.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(o.Threads))
	}
	if plan.Device == device.CPU {
		args = append(args, "-ngl", "0", "--device", "none")
	} else {
		args = append(args, "-ngl", strconv.Itoa(allGPULayers))
	}
	kv := "f32"
	if plan.Half() {
		kv = "f16"
	}
	args = append(args, "--cache-type-k", kv, "--cache-type-v", kv)
	return append(args, o.ExtraArgs...)
}

// acquire returns a ready llama-server for modelPath on plan and takes a
// reference on it. Concurrent callers for the same key share one startup.
func (r *spawnRuntime) acquire(ctx context.Context, modelPath string, plan device.Plan) (*procInfo, error) {
	key := procKey(modelPath, plan)
	for {
		r.mu.Lock()
		p := r.procs[key]
		if p == nil {
			fresh, err := r.reserve(key)
			r.mu.Unlock()
			if err != nil {
				return nil, err
			}
			if err := r.start(ctx, modelPath, plan, fresh); err != nil {
				return nil, err
			}
			return fresh, nil
		}
		p.refs++
		r.mu.Unlock()

		select {
		case <-p.ready:
		case <-ctx.Done():
			r.release(p, false)
			return nil, ctx.Err()
		}
		if p.err != nil {
			r.release(p, false)
			return nil, p.err
		}
		select {
		case <-p.done:
			// Exited after it became ready: drop it and start a fresh one.
			r.release(p, false)
			r.mu.Lock()
			if r.procs[key] == p {
				delete(r.procs, key)
			}
			r.mu.Unlock()
			continue
		default:
		}
		return p, nil
	}
}

// reserve registers a starting process under key with its port picked.
// Ports of processes this runtime already tracks are skipped. r.mu is held.
func (r *spawnRuntime) reserve(key string) (*procInfo, error) {
	host := r.host()
	var port int
	var err error
	if r.opts.PortStart > 0 && r.opts.PortEnd >= r.opts.PortStart {
		taken := make(map[int]bool, len(r.procs))
		for _, p := range r.procs {
			taken[p.port] = true
		}
		port, err = pickPortInRange(host, r.opts.PortStart, r.opts.PortEnd, taken)
	} else {
		port, err = pickFreePort(host)
	}
	if err != nil {
		return nil, err
	}
	p := &procInfo{
		key:     key,
		port:    port,
		baseURL: fmt.Sprintf("http://%s:%d", host, port),
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
		refs:    1,
	}
	r.procs[key] = p
	return p, nil
}

func (r *spawnRuntime) host() string {
	if h := strings.TrimSpace(r.opts.LlamaHost); h != "" {
		return h
	}
	return "127.0.0.1"
}

// start launches the process reserved in p and waits until it reports
// healthy. On failure p is dropped and its waiters see the same error.
func (r *spawnRuntime) start(ctx context.Context, modelPath string, plan device.Plan, p *procInfo) error {
	err := r.launch(ctx, modelPath, plan, p)
	if err != nil {
		p.err = err
		r.mu.Lock()
		if r.procs[p.key] == p {
			delete(r.procs, p.key)
		}
		r.mu.Unlock()
	}
	close(p.ready)
	return err
}

func (r *spawnRuntime) launch(ctx context.Context, modelPath string, plan device.Plan, p *procInfo) error {
	cmd := exec.Command(r.opts.LlamaBin, spawnArgs(r.opts, modelPath, r.host(), p.port, plan)...)
	stderr := newTailBuffer(stderrTailBytes)
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		close(p.done)
		return ErrDependencyUnavailable(fmt.Sprintf("start llama-server: %v", err))
	}
	pid := cmd.Process.Pid
	waitErrCh := make(chan error, 1)
	go func() {
		waitErrCh <- cmd.Wait()
		close(p.done)
	}()

	r.mu.Lock()
	p.cmd = cmd
	p.pid = pid
	stopping := p.stopping
	r.mu.Unlock()
	if stopping {
		// The runtime closed while this process was starting.
		_ = cmd.Process.Kill()
		<-p.done
		return ErrDependencyUnavailable("llm runtime closed")
	}
	r.log.Info().Str("model", modelPath).Int("pid", pid).Str("device", string(plan.Device)).Int("port", p.port).Msg("llama-server starting")
	r.publisher.Publish(Event{Name: "spawn_start", ModelID: modelPath, Fields: map[string]any{"pid": pid, "port": p.port, "device": string(plan.Device)}})

	readyTimeout := r.opts.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = defaultReadyTimeout
	}
	deadline := time.NewTimer(readyTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case werr := <-waitErrCh:
			r.log.Error().Str("model", modelPath).Int("pid", pid).AnErr("exit", werr).Msg("llama-server exited before ready")
			r.publisher.Publish(Event{Name: "spawn_exit", ModelID: modelPath, Fields: map[string]any{"pid": pid, "before_ready": true}})
			return ErrDependencyUnavailable(fmt.Sprintf("llama-server exited before ready: %v; stderr tail: %s", werr, stderr.String()))
		case <-deadline.C:
			r.terminate(p)
			r.publisher.Publish(Event{Name: "spawn_timeout", ModelID: modelPath, Fields: map[string]any{"pid": pid}})
			return ErrDependencyUnavailable(fmt.Sprintf("llama-server not ready in time: %s", p.baseURL))
		case <-ctx.Done():
			r.terminate(p)
			return ctx.Err()
		case <-tick.C:
			if r.client.healthy(p.baseURL, time.Second) {
				r.log.Info().Str("model", modelPath).Int("pid", pid).Str("url", p.baseURL).Msg("llama-server ready")
				r.publisher.Publish(Event{Name: "spawn_ready", ModelID: modelPath, Fields: map[string]any{"pid": pid, "url": p.baseURL}})
				return nil
			}
		}
	}
}

// release drops one reference on p. With stopIfIdle the process is stopped
// once nobody holds it; otherwise it stays up for later Loads.
func (r *spawnRuntime) release(p *procInfo, stopIfIdle bool) {
	r.mu.Lock()
	if p.refs > 0 {
		p.refs--
	}
	stop := stopIfIdle && p.refs == 0 && r.procs[p.key] == p
	if stop {
		delete(r.procs, p.key)
	}
	r.mu.Unlock()
	if stop {
		r.terminate(p)
	}
}

// terminate stops p: SIGTERM, then kill after 2s. A process still starting
// is killed by its starter once it sees stopping.
func (r *spawnRuntime) terminate(p *procInfo) {
	r.mu.Lock()
	if r.procs[p.key] == p {
		delete(r.procs, p.key)
	}
	p.stopping = true
	cmd, pid := p.cmd, p.pid
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(2 * time.Second):
		_ = cmd.Process.Kill()
		<-p.done
	}
	r.publisher.Publish(Event{Name: "spawn_stop", ModelID: p.key, Fields: map[string]any{"pid": pid}})
}

// Close terminates all managed subprocesses. Best effort.
func (r *spawnRuntime) Close() error {
	r.mu.Lock()
	procs := make([]*procInfo, 0, len(r.procs))
	for _, p := range r.procs {
		procs = append(procs, p)
	}
	r.mu.Unlock()
	var wg sync.WaitGroup
	for _, p := range procs {
		wg.Add(1)
		go func(p *procInfo) {
			defer wg.Done()
			r.terminate(p)
		}(p)
	}
	wg.Wait()
	return nil
}

func pickPortInRange(host string, start, end int, taken map[int]bool) (int, error) {
	for p := start; p <= end; p++ {
		if taken[p] {
			continue
		}
		l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(p)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return p, nil
	}
	return 0, fmt.Errorf("no free port in range %d-%d", start, end)
}

func pickFreePort(host string) (int, error) {
	l, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stderrTailBytes is how much llama-server stderr is kept for error reports.
const stderrTailBytes = 4096

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer { return &tailBuffer{limit: limit} }

func (t *tailBuffer) Write(b []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(b)
	if n >= t.limit {
		t.buf = append(t.buf[:0], b[n-t.limit:]...)
		return n, nil
	}
	if over := len(t.buf) + n - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	t.buf = append(t.buf, b...)
	return n, nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chesscomm/internal/manager"
	"chesscomm/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Commentary(ctx context.Context, facts types.MoveFacts) (types.CommentaryResponse, error)
	Segment(ctx context.Context, req types.SegmentRequest) (types.SegmentResponse, error)
	Status() types.StatusResponse
	Ready() bool
}

type api struct{ svc Service }

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			ExposedHeaders: []string{"X-Request-Id"},
			MaxAge:         300,
		}))
	}
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	a := &api{svc: svc}
	r.Post("/commentary", a.commentary)
	r.Post("/segment", a.segment)
	r.Get("/status", a.status)
	r.Get("/healthz", a.healthz)
	r.Get("/readyz", a.readyz)
	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)
	return r
}

// decodeJSON enforces the content type and body limit and decodes into v.
// It writes the error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// Oversized bodies also land here; keep the answer generic.
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// callContext joins the request with the server lifetime and applies the
// configured request timeout.
func callContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	if requestTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, requestTimeout)
	return tctx, func() { tcancel(); cancel() }
}

// fail maps err to a status, counts backpressure and writes the error.
func fail(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	if status == http.StatusTooManyRequests {
		IncrementBackpressure(manager.Reason(err))
	}
	writeJSONError(w, status, err.Error())
	return status
}

func missingFacts(f types.MoveFacts) []string {
	var missing []string
	for _, kv := range []struct{ name, v string }{
		{"fen", f.FEN}, {"move", f.Move}, {"side", f.Side},
		{"tag", f.Tag}, {"best_alt", f.BestAlt}, {"cp", f.CP},
	} {
		if strings.TrimSpace(kv.v) == "" {
			missing = append(missing, kv.name)
		}
	}
	return missing
}

// commentary godoc
// @Summary      Generate commentary for a move
// @Description  Runs one generation. Retries once on CPU when the MPS sampler produces an invalid distribution.
// @Tags         commentary
// @Accept       json
// @Produce      json
// @Param        request  body      types.MoveFacts  true  "Move facts"
// @Success      200      {object}  types.CommentaryResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      415      {object}  types.ErrorResponse
// @Failure      429      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Failure      500      {object}  types.ErrorResponse
// @Router       /commentary [post]
func (a *api) commentary(w http.ResponseWriter, r *http.Request) {
	var facts types.MoveFacts
	if !decodeJSON(w, r, &facts) {
		return
	}
	if missing := missingFacts(facts); len(missing) > 0 {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("missing required field(s): %s", strings.Join(missing, ", ")))
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	logStart(r, lvl, "commentary start")
	ctx, cancel := callContext(r)
	defer cancel()
	resp, err := a.svc.Commentary(ctx, facts)
	if err != nil {
		// If the client went away there is nobody to answer.
		if r.Context().Err() != nil {
			return
		}
		logEnd(r, lvl, "commentary end", fail(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	logEnd(r, lvl, "commentary end", http.StatusOK, start, nil)
}

// segment godoc
// @Summary      Segment objects in an image
// @Description  Validates the image and forwards it to the segmentation upstream.
// @Tags         segment
// @Accept       json
// @Produce      json
// @Param        request  body      types.SegmentRequest  true  "Image and prompt"
// @Success      200      {object}  types.SegmentResponse
// @Failure      400      {object}  types.ErrorResponse
// @Failure      502      {object}  types.ErrorResponse
// @Failure      503      {object}  types.ErrorResponse
// @Router       /segment [post]
func (a *api) segment(w http.ResponseWriter, r *http.Request) {
	var req types.SegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	lvl := requestLogLevel(r)
	start := time.Now()
	logStart(r, lvl, "segment start")
	ctx, cancel := callContext(r)
	defer cancel()
	resp, err := a.svc.Segment(ctx, req)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		logEnd(r, lvl, "segment end", fail(w, err), start, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
	logEnd(r, lvl, "segment end", http.StatusOK, start, nil)
}

// status godoc
// @Summary  Service status
// @Tags     ops
// @Produce  json
// @Success  200  {object}  types.StatusResponse
// @Router   /status [get]
func (a *api) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.Status())
}

// healthz godoc
// @Summary  Liveness probe
// @Tags     ops
// @Produce  json
// @Success  200  {object}  types.HealthResponse
// @Router   /healthz [get]
func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ok"})
}

// readyz godoc
// @Summary  Readiness probe
// @Tags     ops
// @Produce  json
// @Success  200  {object}  types.HealthResponse
// @Failure  503  {object}  types.HealthResponse
// @Router   /readyz [get]
func (a *api) readyz(w http.ResponseWriter, r *http.Request) {
	if a.svc.Ready() {
		writeJSON(w, http.StatusOK, types.HealthResponse{Status: "ready"})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, types.HealthResponse{Status: "loading"})
}

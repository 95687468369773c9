package types

// CommentaryResponse is returned by POST /commentary.
type CommentaryResponse struct {
	// Generated commentary text (prompt echo stripped).
	Commentary string `json:"commentary" example:"Black answers with the Sicilian..."`
	// Device the successful generation ran on.
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// Numeric precision used on that device.
	// example: float16
	Precision string `json:"precision" example:"float16"`
	// True when generation was retried on CPU after a sampling failure.
	// example: false
	RetriedOnCPU bool `json:"retried_on_cpu" example:"false"`
	// Identifier of this generation run.
	// example: 3f0c2a0e-8f1b-4b57-9d0c-2f1f0f0f0f0f
	RunID string `json:"run_id" example:"3f0c2a0e-8f1b-4b57-9d0c-2f1f0f0f0f0f"`
	// Number of prompt tokens sent to the model.
	// example: 142
	PromptTokens int `json:"prompt_tokens" example:"142"`
	// Number of tokens generated.
	// example: 48
	CompletionTokens int `json:"completion_tokens" example:"48"`
}

// SegmentRequest is the payload of POST /segment.
type SegmentRequest struct {
	// Base64-encoded PNG or JPEG image.
	ImageBase64 string `json:"image_base64"`
	// Text prompt naming the objects to segment. Defaults to "object".
	// example: chess piece
	Prompt string `json:"prompt,omitempty" example:"chess piece"`
	// Minimum mask confidence in [0, 1]. Defaults to 0.5.
	Confidence *float64 `json:"confidence,omitempty" example:"0.5"`
}

// SegmentResponse carries the upstream segmentation result.
type SegmentResponse struct {
	// One base64 PNG mask per detected object.
	MasksBase64 []string `json:"masks_base64"`
	// Bounding boxes as [x0, y0, x1, y1], aligned with MasksBase64.
	Boxes [][]float64 `json:"boxes"`
	// Confidence scores aligned with MasksBase64.
	Scores []float64 `json:"scores"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	// example: ok
	Status string `json:"status" example:"ok"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: ready
	State         string `json:"state" example:"ready"`
	Inflight      int    `json:"inflight"`
	Waiting       int    `json:"waiting"`
	MaxConcurrent int    `json:"max_concurrent"`
	MaxQueueDepth int    `json:"max_queue_depth"`
	Generations   int    `json:"generations"`
	CPUFallbacks  int    `json:"cpu_fallbacks"`
	Failures      int    `json:"failures"`
	LastError     string `json:"last_error,omitempty"`
	UptimeSec     int64  `json:"uptime_sec"`
}

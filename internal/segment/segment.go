// Package segment forwards image segmentation requests to an upstream SAM
// service and checks both sides of the exchange. No segmentation happens here.
package segment

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"chesscomm/pkg/types"
)

type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid segmentation input: " + e.msg }

// ErrInvalidInput reports a request the upstream should never see.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err is an input validation failure.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}

// upstreamError covers transport failures, non-2xx answers and malformed results.
type upstreamError struct{ msg string }

func (e upstreamError) Error() string { return "segmentation upstream: " + e.msg }

// ErrUpstream wraps an upstream failure.
func ErrUpstream(msg string) error { return upstreamError{msg: msg} }

// IsUpstream reports whether err came from the upstream service.
func IsUpstream(err error) bool {
	var e upstreamError
	return errors.As(err, &e)
}

// Defaults applied to requests that leave the fields out.
const (
	DefaultPrompt     = "object"
	DefaultConfidence = 0.5
)

// maxResponseBytes bounds the upstream payload; masks are full-size PNGs.
const maxResponseBytes = 64 << 20

// Client posts requests to a segmentation endpoint.
type Client struct {
	url  string
	http *http.Client
}

// New returns a client for the endpoint at url.
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{url: strings.TrimSpace(url), http: &http.Client{Timeout: timeout}}
}

// Segment validates req, forwards it and validates the answer.
func (c *Client) Segment(ctx context.Context, req types.SegmentRequest) (types.SegmentResponse, error) {
	var out types.SegmentResponse
	raw, err := ValidateRequest(req)
	if err != nil {
		return out, err
	}
	// Forward the bare base64 payload even if the caller sent a data URL.
	body, err := json.Marshal(withDefaults(types.SegmentRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(raw),
		Prompt:      req.Prompt,
		Confidence:  req.Confidence,
	}))
	if err != nil {
		return out, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return out, ErrUpstream(err.Error())
	}
	hreq.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(hreq)
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		return out, ErrUpstream(err.Error())
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return out, ErrUpstream(err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(b))
		if len(msg) > 512 {
			msg = msg[:512]
		}
		return out, ErrUpstream(fmt.Sprintf("%s: %s", resp.Status, msg))
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return out, ErrUpstream(fmt.Sprintf("decode response: %v", err))
	}
	if err := ValidateResponse(out); err != nil {
		return types.SegmentResponse{}, err
	}
	return out, nil
}

// withDefaults fills in the prompt and confidence the upstream assumes when
// they are absent.
func withDefaults(req types.SegmentRequest) types.SegmentRequest {
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		req.Prompt = DefaultPrompt
	}
	if req.Confidence == nil {
		c := DefaultConfidence
		req.Confidence = &c
	}
	return req
}

// ValidateRequest checks the confidence threshold and that the image decodes
// as PNG or JPEG. It returns the decoded image bytes.
func ValidateRequest(req types.SegmentRequest) ([]byte, error) {
	if c := req.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return nil, ErrInvalidInput("confidence must be between 0 and 1")
	}
	raw, err := decodeBase64(req.ImageBase64)
	if err != nil {
		return nil, ErrInvalidInput("image_base64: " + err.Error())
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrInvalidInput("image is not a PNG or JPEG")
	}
	if format != "png" && format != "jpeg" {
		return nil, ErrInvalidInput("unsupported image format " + format)
	}
	return raw, nil
}

// ValidateResponse checks that every mask is a PNG and that boxes and scores
// line up with the masks.
func ValidateResponse(r types.SegmentResponse) error {
	n := len(r.MasksBase64)
	if len(r.Boxes) != n || len(r.Scores) != n {
		return ErrUpstream(fmt.Sprintf("%d masks, %d boxes, %d scores", n, len(r.Boxes), len(r.Scores)))
	}
	for i, m := range r.MasksBase64 {
		raw, err := decodeBase64(m)
		if err != nil {
			return ErrUpstream(fmt.Sprintf("mask %d: %v", i, err))
		}
		if _, err := png.DecodeConfig(bytes.NewReader(raw)); err != nil {
			return ErrUpstream(fmt.Sprintf("mask %d is not a PNG", i))
		}
		if len(r.Boxes[i]) != 4 {
			return ErrUpstream(fmt.Sprintf("box %d has %d coordinates", i, len(r.Boxes[i])))
		}
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "data:") {
		i := strings.Index(s, ",")
		if i < 0 {
			return nil, errors.New("malformed data URL")
		}
		s = s[i+1:]
	}
	if s == "" {
		return nil, errors.New("empty")
	}
	return base64.StdEncoding.DecodeString(s)
}

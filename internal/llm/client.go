package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"chesscomm/pkg/types"
)

// llamaClient speaks llama-server's native JSON endpoints.
type llamaClient struct {
	httpClient *http.Client
	apiKey     string
	reqTimeout time.Duration
}

func newLlamaClient(apiKey string, reqTimeout, connectTimeout time.Duration) *llamaClient {
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout=0: every call carries its deadline on the context.
	return &llamaClient{
		httpClient: &http.Client{Transport: tr, Timeout: 0},
		apiKey:     apiKey,
		reqTimeout: reqTimeout,
	}
}

type templateRequest struct {
	Messages []types.Message `json:"messages"`
}

type templateResponse struct {
	Prompt string `json:"prompt"`
}

type tokenizeRequest struct {
	Content    string `json:"content"`
	AddSpecial bool   `json:"add_special"`
}

type tokenizeResponse struct {
	Tokens []int32 `json:"tokens"`
}

type detokenizeRequest struct {
	Tokens []int32 `json:"tokens"`
}

type detokenizeResponse struct {
	Content string `json:"content"`
}

type completionRequest struct {
	Prompt       []int32 `json:"prompt"`
	NPredict     int     `json:"n_predict"`
	Temperature  float32 `json:"temperature"`
	TopK         int     `json:"top_k"`
	TopP         float32 `json:"top_p"`
	Seed         int     `json:"seed,omitempty"`
	Stream       bool    `json:"stream"`
	ReturnTokens bool    `json:"return_tokens"`
	CachePrompt  bool    `json:"cache_prompt"`
}

type completionResponse struct {
	Content         string  `json:"content"`
	Tokens          []int32 `json:"tokens"`
	TokensPredicted int     `json:"tokens_predicted"`
	StopType        string  `json:"stop_type"`
}

// serverError mirrors llama-server's {"error":{...}} payload.
type serverError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *llamaClient) applyTemplate(ctx context.Context, baseURL string, msgs []types.Message) (string, error) {
	var out templateResponse
	if err := c.post(ctx, baseURL, "/apply-template", templateRequest{Messages: msgs}, &out); err != nil {
		return "", err
	}
	return out.Prompt, nil
}

func (c *llamaClient) tokenize(ctx context.Context, baseURL, content string) ([]int32, error) {
	var out tokenizeResponse
	// The template already carries BOS and turn markers.
	if err := c.post(ctx, baseURL, "/tokenize", tokenizeRequest{Content: content, AddSpecial: false}, &out); err != nil {
		return nil, err
	}
	return out.Tokens, nil
}

func (c *llamaClient) detokenize(ctx context.Context, baseURL string, tokens []int32) (string, error) {
	var out detokenizeResponse
	if err := c.post(ctx, baseURL, "/detokenize", detokenizeRequest{Tokens: tokens}, &out); err != nil {
		return "", err
	}
	return out.Content, nil
}

func (c *llamaClient) complete(ctx context.Context, baseURL string, req completionRequest) (completionResponse, error) {
	var out completionResponse
	err := c.post(ctx, baseURL, "/completion", req, &out)
	return out, err
}

// healthy reports whether the server at baseURL has a model loaded.
func (c *llamaClient) healthy(baseURL string, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (c *llamaClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *llamaClient) post(ctx context.Context, baseURL, path string, in, out any) error {
	if c.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.reqTimeout)
		defer cancel()
	}
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrDependencyUnavailable(fmt.Sprintf("llama server unreachable at %s: %v", baseURL, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return decodeServerError(path, resp.Status, b)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeServerError turns a non-2xx body into a typed error.
func decodeServerError(path, status string, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var se serverError
	if err := json.Unmarshal(body, &se); err == nil && se.Error.Message != "" {
		msg = se.Error.Message
	}
	return classifyRuntimeError(fmt.Sprintf("llama server %s %s", path, status), msg)
}

// Healthy reports whether the llama-server at baseURL answers /health.
func Healthy(baseURL, apiKey string, timeout time.Duration) bool {
	return newLlamaClient(apiKey, 0, timeout).healthy(strings.TrimRight(baseURL, "/"), timeout)
}

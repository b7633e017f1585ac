// Package dashscope edits product photos through the DashScope
// multimodal-generation API. One call per prompt: the reference image plus
// the instruction go in, an edited image URL comes out.
package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/providers"
	"github.com/caabsu/outlight-img2img/internal/providers/extract"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("dashscope: api key is required")

// Options configures the DashScope client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls to the DashScope image-edit API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
}

type editRequest struct {
	Model      string     `json:"model"`
	Input      editInput  `json:"input"`
	Parameters editParams `json:"parameters"`
}

type editInput struct {
	Messages []editMessage `json:"messages"`
}

type editMessage struct {
	Role    string        `json:"role"`
	Content []editContent `json:"content"`
}

type editContent struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
}

type editParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://dashscope-intl.aliyuncs.com"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "qwen-image-edit"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Generate runs one image edit. Provider rejections, unusable responses and
// missing artifacts come back as failed Results; only transport problems and
// cancellation surface as errors.
func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Result, error) {
	if !c.HasCredentials() {
		return providers.Result{}, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return providers.Result{}, errors.New("dashscope: prompt is required")
	}
	reference := strings.TrimSpace(req.ReferenceURL)
	if reference == "" {
		return providers.Result{}, errors.New("dashscope: reference url is required")
	}

	payload := editRequest{
		Model: c.model,
		Input: editInput{
			Messages: []editMessage{{
				Role: "user",
				Content: []editContent{
					{Image: reference},
					{Text: prompt},
				},
			}},
		},
	}
	if neg := req.Options.String("negative_prompt"); neg != "" {
		payload.Parameters.NegativePrompt = neg
	}
	if req.Options.Bool("watermark") {
		watermark := true
		payload.Parameters.Watermark = &watermark
	}
	if seed, ok := req.Options.Int("seed"); ok && seed > 0 {
		payload.Parameters.Seed = &seed
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return providers.Result{}, fmt.Errorf("dashscope: encode request: %w", err)
	}
	endpoint := c.baseURL + "/api/v1/services/aigc/multimodal-generation/generation"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return providers.Result{}, fmt.Errorf("dashscope: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return providers.Result{}, fmt.Errorf("dashscope: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return providers.Result{}, fmt.Errorf("dashscope: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var detail errorResponse
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
			return providers.Fail(fmt.Sprintf("dashscope: %s (%s)", detail.Message, detail.Code), raw), nil
		}
		return providers.Fail(fmt.Sprintf("dashscope: status %d", resp.StatusCode), raw), nil
	}

	var probe errorResponse
	if err := json.Unmarshal(raw, &probe); err != nil {
		return providers.Fail(fmt.Sprintf("dashscope: undecodable response: %v", err), raw), nil
	}
	if probe.Code != "" {
		return providers.Fail(fmt.Sprintf("dashscope: %s (%s)", probe.Message, probe.Code), raw), nil
	}

	url, shape, err := extract.FirstURL(raw, artifactFinders)
	if err != nil {
		return providers.Fail(err.Error(), raw), nil
	}
	c.logger.Debug().
		Str("model", c.model).
		Str("shape", shape).
		Str("request_id", req.RequestID).
		Msg("dashscope: edited image ready")
	return providers.Result{ArtifactURL: url, Format: "image"}, nil
}

var _ providers.Client = (*Client)(nil)

// Package ark generates short product videos through the Ark
// content-generation task API. One create call yields a task id, then the
// task is polled until it reaches a terminal state.
package ark

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
	"github.com/caabsu/outlight-img2img/internal/providers/poll"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("ark: api key is required")

// Options configures the Ark client.
type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	Poller         poll.Poller
	RequestTimeout time.Duration
}

// Client drives Ark content-generation tasks.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	logger     *infra.Logger
	poller     poll.Poller
}

type createRequest struct {
	Model   string        `json:"model"`
	Content []contentItem `json:"content"`
}

type contentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageRef `json:"image_url,omitempty"`
}

type imageRef struct {
	URL string `json:"url"`
}

type createResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Content struct {
		VideoURL string `json:"video_url"`
	} `json:"content"`
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://ark.cn-beijing.volces.com/api/v3"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "doubao-seedance-1-0-lite-i2v-250428"
	}
	logger := opts.Logger
	if logger == nil {
		discard := zerolog.New(io.Discard)
		logger = &discard
	}
	poller := opts.Poller
	if poller.Interval <= 0 {
		poller = poll.New(2*time.Second, 5*time.Minute)
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
		logger:     logger,
		poller:     poller,
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

// Generate creates one video task and polls it to completion. Task
// rejections, failed tasks and poll timeouts come back as failed Results;
// only transport problems on the create call and cancellation surface as
// errors.
func (c *Client) Generate(ctx context.Context, req providers.Request) (providers.Result, error) {
	if !c.HasCredentials() {
		return providers.Result{}, ErrMissingAPIKey
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return providers.Result{}, errors.New("ark: prompt is required")
	}
	reference := strings.TrimSpace(req.ReferenceURL)
	if reference == "" {
		return providers.Result{}, errors.New("ark: reference url is required")
	}

	taskID, failed, err := c.createTask(ctx, prompt, reference, req)
	if err != nil {
		return providers.Result{}, err
	}
	if failed != nil {
		return *failed, nil
	}

	c.logger.Debug().
		Str("model", c.model).
		Str("task_id", taskID).
		Str("request_id", req.RequestID).
		Msg("ark: task created")

	out := c.poller.Await(ctx, c.statusFetch(taskID))
	if !out.Succeeded {
		return providers.Fail(out.Message, nil), nil
	}
	return providers.Result{ArtifactURL: out.ArtifactURL, Format: "video"}, nil
}

func (c *Client) createTask(ctx context.Context, prompt, reference string, req providers.Request) (string, *providers.Result, error) {
	payload := createRequest{
		Model: c.model,
		Content: []contentItem{
			{Type: "text", Text: prompt + renderParams(req)},
			{Type: "image_url", ImageURL: &imageRef{URL: reference}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", nil, fmt.Errorf("ark: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/contents/generations/tasks", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("ark: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", nil, fmt.Errorf("ark: create task: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("ark: read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var detail errorEnvelope
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Error.Message != "" {
			failed := providers.Fail(fmt.Sprintf("ark: %s (%s)", detail.Error.Message, detail.Error.Code), raw)
			return "", &failed, nil
		}
		failed := providers.Fail(fmt.Sprintf("ark: create status %d", resp.StatusCode), raw)
		return "", &failed, nil
	}

	var created createResponse
	if err := json.Unmarshal(raw, &created); err != nil {
		failed := providers.Fail(fmt.Sprintf("ark: undecodable create response: %v", err), raw)
		return "", &failed, nil
	}
	if strings.TrimSpace(created.ID) == "" {
		failed := providers.Fail("ark: create returned no task id", raw)
		return "", &failed, nil
	}
	return created.ID, nil, nil
}

func (c *Client) statusFetch(taskID string) poll.FetchFunc {
	return func(ctx context.Context) (poll.Verdict, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/contents/generations/tasks/"+taskID, nil)
		if err != nil {
			return poll.Verdict{}, fmt.Errorf("ark: build status request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return poll.Verdict{}, fmt.Errorf("ark: fetch status: %w", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return poll.Verdict{}, fmt.Errorf("ark: read status: %w", err)
		}
		if resp.StatusCode >= 300 {
			return poll.Verdict{}, fmt.Errorf("ark: status endpoint returned %d", resp.StatusCode)
		}

		var decoded statusResponse
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return poll.Verdict{}, fmt.Errorf("ark: undecodable status response: %w", err)
		}
		return classifyStatus(decoded), nil
	}
}

// classifyStatus maps the Ark status vocabulary onto poll verdicts. States
// this client does not recognize count as still pending.
func classifyStatus(decoded statusResponse) poll.Verdict {
	state := strings.ToLower(strings.TrimSpace(decoded.Status))
	switch state {
	case "succeeded":
		url := strings.TrimSpace(decoded.Content.VideoURL)
		if url == "" {
			return poll.Verdict{State: poll.StateFailed, RawState: state, Message: "ark: succeeded without video url"}
		}
		return poll.Verdict{State: poll.StateSucceeded, RawState: state, ArtifactURL: url}
	case "failed":
		msg := strings.TrimSpace(decoded.Error.Message)
		if msg == "" {
			msg = "ark: task failed"
		} else if decoded.Error.Code != "" {
			msg = fmt.Sprintf("ark: %s (%s)", msg, decoded.Error.Code)
		} else {
			msg = "ark: " + msg
		}
		return poll.Verdict{State: poll.StateFailed, RawState: state, Message: msg}
	case "cancelled":
		return poll.Verdict{State: poll.StateFailed, RawState: state, Message: "ark: task cancelled by provider"}
	default:
		return poll.Verdict{State: poll.StatePending, RawState: state}
	}
}

// renderParams appends Ark text commands for the options the model
// understands.
func renderParams(req providers.Request) string {
	var b strings.Builder
	if resolution := req.Options.String("resolution"); resolution != "" {
		fmt.Fprintf(&b, " --resolution %s", resolution)
	}
	if ratio := req.Options.String("ratio"); ratio != "" {
		fmt.Fprintf(&b, " --ratio %s", ratio)
	}
	if duration, ok := req.Options.Int("duration"); ok && duration > 0 {
		fmt.Fprintf(&b, " --duration %d", duration)
	}
	return b.String()
}

var _ providers.Client = (*Client)(nil)

package runs

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/providers"
)

const defaultCapacity = 3

// ArtifactStore saves artifact bytes under a key and returns the stored key.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Recorder receives terminal lifecycle events for usage accounting.
type Recorder interface {
	RecordRun(status domain.RunStatus)
	RecordJob(state domain.JobState)
}

type nopRecorder struct{}

func (nopRecorder) RecordRun(domain.RunStatus) {}
func (nopRecorder) RecordJob(domain.JobState)  {}

// Options configures a Registry.
type Options struct {
	Capacity       int
	DefaultWorkers int
	Providers      *providers.Registry
	Store          ArtifactStore
	PublicBaseURL  string
	Recorder       Recorder
	HTTPClient     *http.Client
	Logger         infra.Logger
	Notify         func(domain.RunView)
	OnDelete       func(runID string)
	BaseContext    context.Context
}

// Registry admits a bounded number of concurrent runs. Submitting beyond
// capacity cancels and evicts the oldest run by creation time. It also
// tracks which run is the active selection for display.
type Registry struct {
	capacity       int
	defaultWorkers int
	providers      *providers.Registry
	store          ArtifactStore
	publicBase     string
	recorder       Recorder
	httpClient     *http.Client
	logger         infra.Logger
	notify         func(domain.RunView)
	onDelete       func(runID string)
	baseCtx        context.Context
	now            func() time.Time

	mu     sync.Mutex
	runs   []*Run
	active string
	wg     sync.WaitGroup
}

func NewRegistry(opts Options) *Registry {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	workers := clampWorkers(opts.DefaultWorkers)
	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseCtx := opts.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Registry{
		capacity:       capacity,
		defaultWorkers: workers,
		providers:      opts.Providers,
		store:          opts.Store,
		publicBase:     strings.TrimRight(opts.PublicBaseURL, "/"),
		recorder:       recorder,
		httpClient:     httpClient,
		logger:         opts.Logger,
		notify:         opts.Notify,
		onDelete:       opts.OnDelete,
		baseCtx:        baseCtx,
		now:            time.Now,
	}
}

// SubmitParams describes a new run. ReferenceURL must already be resolved;
// submission fails without creating anything when it is not a usable URL or
// the batch is empty.
type SubmitParams struct {
	Title        string
	ProductID    string
	ReferenceURL string
	Provider     string
	Prompts      []string
	Options      domain.Options
	Workers      int
}

// Submit validates the batch, admits the run (evicting the oldest run when
// at capacity), marks it the active selection and starts executing it.
func (reg *Registry) Submit(params SubmitParams) (domain.RunView, error) {
	prompts := make([]string, 0, len(params.Prompts))
	for _, prompt := range params.Prompts {
		trimmed := strings.TrimSpace(prompt)
		if trimmed == "" {
			return domain.RunView{}, domain.ErrBlankPrompt
		}
		prompts = append(prompts, trimmed)
	}
	if len(prompts) == 0 {
		return domain.RunView{}, domain.ErrEmptyBatch
	}
	if !domain.ValidReferenceURL(params.ReferenceURL) {
		return domain.RunView{}, domain.ErrNoReference
	}

	client, providerName := reg.providers.Lookup(params.Provider)
	if client == nil {
		return domain.RunView{}, fmt.Errorf("runs: no provider registered for %q", params.Provider)
	}

	workers := params.Workers
	if workers <= 0 {
		workers = reg.defaultWorkers
	}

	ctx, cancel := context.WithCancel(reg.baseCtx)
	run := &Run{
		ID:           uuid.NewString(),
		Title:        strings.TrimSpace(params.Title),
		ProductID:    params.ProductID,
		ReferenceURL: strings.TrimSpace(params.ReferenceURL),
		Provider:     providerName,
		Prompts:      prompts,
		Options:      params.Options,
		Workers:      clampWorkers(workers),
		CreatedAt:    reg.now(),
		cancel:       cancel,
		notify:       reg.notify,
		status:       domain.RunStatusRunning,
	}

	reg.mu.Lock()
	evicted := reg.evictToCapacityLocked()
	reg.runs = append(reg.runs, run)
	reg.active = run.ID
	reg.wg.Add(1)
	reg.mu.Unlock()

	for _, old := range evicted {
		old.Cancel()
		reg.logger.Info().
			Str("run_id", old.ID).
			Str("replaced_by", run.ID).
			Msg("runs: evicted oldest run at capacity")
	}

	go reg.execute(ctx, run, client)

	return run.Snapshot(), nil
}

// evictToCapacityLocked removes the oldest runs until one slot is free and
// returns them for cancellation. Caller holds the mutex.
func (reg *Registry) evictToCapacityLocked() []*Run {
	var evicted []*Run
	for len(reg.runs) >= reg.capacity {
		oldest := 0
		for i, r := range reg.runs {
			if r.CreatedAt.Before(reg.runs[oldest].CreatedAt) {
				oldest = i
			}
		}
		evicted = append(evicted, reg.runs[oldest])
		reg.runs = append(reg.runs[:oldest], reg.runs[oldest+1:]...)
	}
	return evicted
}

func (reg *Registry) execute(ctx context.Context, run *Run, client providers.Client) {
	defer reg.wg.Done()

	reg.logger.Info().
		Str("run_id", run.ID).
		Str("provider", run.Provider).
		Int("prompts", len(run.Prompts)).
		Int("workers", run.Workers).
		Msg("runs: run started")

	err := runPool(ctx, run.Prompts, run.Workers, func(ctx context.Context, index int, prompt string) error {
		return reg.runJob(ctx, run, client, index, prompt)
	})
	run.finish(err)

	status := run.Status()
	reg.recorder.RecordRun(status)
	event := reg.logger.Info()
	if status == domain.RunStatusError {
		event = reg.logger.Error().Err(err)
	}
	event.Str("run_id", run.ID).Str("status", string(status)).Msg("runs: run finished")
}

// runJob executes one prompt claim. Provider-level failures become recorded
// outcomes; returned errors abort the pool.
func (reg *Registry) runJob(ctx context.Context, run *Run, client providers.Client, index int, prompt string) error {
	result, err := client.Generate(ctx, providers.Request{
		Prompt:       prompt,
		ReferenceURL: run.ReferenceURL,
		RequestID:    fmt.Sprintf("%s-%02d", run.ID, index),
		Options:      run.Options,
	})
	if err != nil {
		return err
	}

	outcome := domain.JobOutcome{
		PromptIndex: index,
		Prompt:      prompt,
		FinishedAt:  reg.now(),
	}
	if result.Failed {
		outcome.State = domain.JobStateFailed
		outcome.Message = result.Message
		outcome.Diagnostic = result.Diagnostic
		reg.logger.Warn().
			Str("run_id", run.ID).
			Int("prompt_index", index).
			Str("reason", result.Message).
			Msg("runs: prompt failed")
	} else {
		outcome.State = domain.JobStateSucceeded
		outcome.ArtifactURL = reg.persistArtifact(ctx, run, index, result)
	}

	run.report(outcome)
	reg.recorder.RecordJob(outcome.State)
	return nil
}

// Cancel requests cancellation. Unknown ids fail; cancelling a terminal run
// is a no-op success.
func (reg *Registry) Cancel(id string) error {
	reg.mu.Lock()
	run := reg.findLocked(id)
	reg.mu.Unlock()
	if run == nil {
		return domain.ErrRunNotFound
	}
	run.Cancel()
	return nil
}

// Delete cancels the run when still running and removes it. When the active
// selection is deleted the newest surviving run becomes active.
func (reg *Registry) Delete(id string) error {
	reg.mu.Lock()
	idx := -1
	for i, r := range reg.runs {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		reg.mu.Unlock()
		return domain.ErrRunNotFound
	}
	run := reg.runs[idx]
	reg.runs = append(reg.runs[:idx], reg.runs[idx+1:]...)
	if reg.active == id {
		reg.active = reg.newestLocked()
	}
	reg.mu.Unlock()

	run.Cancel()
	if reg.onDelete != nil {
		reg.onDelete(id)
	}
	return nil
}

// newestLocked returns the id of the most recently created run, or "".
func (reg *Registry) newestLocked() string {
	if len(reg.runs) == 0 {
		return ""
	}
	newest := reg.runs[0]
	for _, r := range reg.runs[1:] {
		if r.CreatedAt.After(newest.CreatedAt) {
			newest = r
		}
	}
	return newest.ID
}

func (reg *Registry) findLocked(id string) *Run {
	for _, r := range reg.runs {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Get returns a snapshot of one run.
func (reg *Registry) Get(id string) (domain.RunView, error) {
	reg.mu.Lock()
	run := reg.findLocked(id)
	reg.mu.Unlock()
	if run == nil {
		return domain.RunView{}, domain.ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// List returns snapshots newest first plus the active run id.
func (reg *Registry) List() ([]domain.RunView, string) {
	reg.mu.Lock()
	runs := make([]*Run, len(reg.runs))
	copy(runs, reg.runs)
	active := reg.active
	reg.mu.Unlock()

	views := make([]domain.RunView, 0, len(runs))
	for i := len(runs) - 1; i >= 0; i-- {
		views = append(views, runs[i].Snapshot())
	}
	return views, active
}

// SetActive switches the active selection.
func (reg *Registry) SetActive(id string) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.findLocked(id) == nil {
		return domain.ErrRunNotFound
	}
	reg.active = id
	return nil
}

// Active returns the active run id, or "".
func (reg *Registry) Active() string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.active
}

// Close cancels every run and waits for their pools to drain.
func (reg *Registry) Close() {
	reg.mu.Lock()
	runs := make([]*Run, len(reg.runs))
	copy(runs, reg.runs)
	reg.mu.Unlock()

	for _, run := range runs {
		run.Cancel()
	}
	reg.wg.Wait()
}

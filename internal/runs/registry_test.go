package runs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/providers"
)

type scriptedClient struct {
	mu      sync.Mutex
	calls   []providers.Request
	handler func(ctx context.Context, req providers.Request) (providers.Result, error)
}

func (s *scriptedClient) Generate(ctx context.Context, req providers.Request) (providers.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.handler != nil {
		return s.handler(ctx, req)
	}
	return providers.Result{ArtifactURL: "https://cdn.example/" + req.RequestID + ".png", Format: "image"}, nil
}

func (s *scriptedClient) requests() []providers.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]providers.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// blockingClient parks every call until its context is cancelled.
func blockingClient(started chan<- struct{}) *scriptedClient {
	return &scriptedClient{handler: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		if started != nil {
			started <- struct{}{}
		}
		<-ctx.Done()
		return providers.Result{}, ctx.Err()
	}}
}

type countingRecorder struct {
	mu   sync.Mutex
	runs map[domain.RunStatus]int
	jobs map[domain.JobState]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		runs: make(map[domain.RunStatus]int),
		jobs: make(map[domain.JobState]int),
	}
}

func (c *countingRecorder) RecordRun(status domain.RunStatus) {
	c.mu.Lock()
	c.runs[status]++
	c.mu.Unlock()
}

func (c *countingRecorder) RecordJob(state domain.JobState) {
	c.mu.Lock()
	c.jobs[state]++
	c.mu.Unlock()
}

func (c *countingRecorder) runCount(status domain.RunStatus) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs[status]
}

func (c *countingRecorder) jobCount(state domain.JobState) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[state]
}

func newTestRegistry(client providers.Client, opts Options) *Registry {
	preg := providers.NewRegistry("stub", zerolog.Nop())
	preg.Register("stub", client)
	opts.Providers = preg
	opts.Logger = zerolog.Nop()
	if opts.DefaultWorkers == 0 {
		opts.DefaultWorkers = 2
	}
	return NewRegistry(opts)
}

func submitParams(prompts ...string) SubmitParams {
	return SubmitParams{
		Title:        "lookbook",
		ReferenceURL: "https://cdn.example/ref.png",
		Prompts:      prompts,
	}
}

func waitForStatus(t *testing.T, reg *Registry, id string, want domain.RunStatus) domain.RunView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view, err := reg.Get(id)
		if err != nil {
			t.Fatalf("get run %s: %v", id, err)
		}
		if view.Status == want {
			return view
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("run %s never reached %s", id, want)
	return domain.RunView{}
}

func TestSubmitRunsBatchToCompletion(t *testing.T) {
	client := &scriptedClient{}
	rec := newCountingRecorder()
	reg := newTestRegistry(client, Options{Recorder: rec})
	defer reg.Close()

	view, err := reg.Submit(submitParams("front view", "side view", "back view"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Provider != "stub" {
		t.Fatalf("provider = %q, want stub", view.Provider)
	}
	if view.Workers != 2 {
		t.Fatalf("workers = %d, want default 2", view.Workers)
	}
	if view.Progress.Total != 3 {
		t.Fatalf("total = %d, want 3", view.Progress.Total)
	}
	if got := reg.Active(); got != view.ID {
		t.Fatalf("active = %q, want %q", got, view.ID)
	}

	final := waitForStatus(t, reg, view.ID, domain.RunStatusDone)
	if len(final.Outcomes) != 3 {
		t.Fatalf("outcomes = %d, want 3", len(final.Outcomes))
	}
	for _, out := range final.Outcomes {
		if out.State != domain.JobStateSucceeded || out.ArtifactURL == "" {
			t.Fatalf("outcome = %+v, want succeeded with artifact", out)
		}
	}
	if final.LastFailure != nil {
		t.Fatalf("last failure = %+v, want none", final.LastFailure)
	}

	reqs := client.requests()
	if len(reqs) != 3 {
		t.Fatalf("provider calls = %d, want 3", len(reqs))
	}
	for _, req := range reqs {
		if req.ReferenceURL != "https://cdn.example/ref.png" {
			t.Fatalf("reference = %q", req.ReferenceURL)
		}
		if !strings.HasPrefix(req.RequestID, view.ID+"-") {
			t.Fatalf("request id = %q, want %s- prefix", req.RequestID, view.ID)
		}
	}

	reg.Close()
	if rec.runCount(domain.RunStatusDone) != 1 {
		t.Fatalf("recorded done runs = %d, want 1", rec.runCount(domain.RunStatusDone))
	}
	if rec.jobCount(domain.JobStateSucceeded) != 3 {
		t.Fatalf("recorded succeeded jobs = %d, want 3", rec.jobCount(domain.JobStateSucceeded))
	}
}

func TestSubmitClampsRequestedWorkers(t *testing.T) {
	started := make(chan struct{}, maxWorkers)
	client := blockingClient(started)
	reg := newTestRegistry(client, Options{})
	defer reg.Close()

	params := submitParams("a", "b", "c", "d")
	params.Workers = 9
	view, err := reg.Submit(params)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Workers != maxWorkers {
		t.Fatalf("workers = %d, want %d", view.Workers, maxWorkers)
	}
}

func TestSubmitUnknownProviderFallsBack(t *testing.T) {
	client := &scriptedClient{}
	reg := newTestRegistry(client, Options{})
	defer reg.Close()

	params := submitParams("solo")
	params.Provider = "does-not-exist"
	view, err := reg.Submit(params)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if view.Provider != "stub" {
		t.Fatalf("provider = %q, want stub fallback", view.Provider)
	}
	waitForStatus(t, reg, view.ID, domain.RunStatusDone)
}

func TestSubmitValidation(t *testing.T) {
	client := &scriptedClient{}
	reg := newTestRegistry(client, Options{})
	defer reg.Close()

	if _, err := reg.Submit(SubmitParams{ReferenceURL: "https://x.example/r.png"}); !errors.Is(err, domain.ErrEmptyBatch) {
		t.Fatalf("empty batch error = %v", err)
	}
	if _, err := reg.Submit(SubmitParams{ReferenceURL: "https://x.example/r.png", Prompts: []string{"ok", "  "}}); !errors.Is(err, domain.ErrBlankPrompt) {
		t.Fatalf("blank prompt error = %v", err)
	}
	if _, err := reg.Submit(SubmitParams{ReferenceURL: "./relative.png", Prompts: []string{"ok"}}); !errors.Is(err, domain.ErrNoReference) {
		t.Fatalf("relative reference error = %v", err)
	}
	if _, err := reg.Submit(SubmitParams{Prompts: []string{"ok"}}); !errors.Is(err, domain.ErrNoReference) {
		t.Fatalf("missing reference error = %v", err)
	}

	if views, active := reg.List(); len(views) != 0 || active != "" {
		t.Fatalf("rejected submissions left runs behind: %d active=%q", len(views), active)
	}
	if len(client.requests()) != 0 {
		t.Fatalf("provider called %d times for rejected submissions", len(client.requests()))
	}
}

func TestSubmitTrimsPrompts(t *testing.T) {
	client := &scriptedClient{}
	reg := newTestRegistry(client, Options{})
	defer reg.Close()

	view, err := reg.Submit(submitParams("  studio lighting  "))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForStatus(t, reg, view.ID, domain.RunStatusDone)

	reqs := client.requests()
	if len(reqs) != 1 || reqs[0].Prompt != "studio lighting" {
		t.Fatalf("requests = %+v, want trimmed prompt", reqs)
	}
}

func TestMixedOutcomesStillDone(t *testing.T) {
	client := &scriptedClient{handler: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		if strings.Contains(req.Prompt, "bad") {
			return providers.Fail("content rejected", []byte(`{"code":"DataInspectionFailed"}`)), nil
		}
		return providers.Result{ArtifactURL: "https://cdn.example/ok.png", Format: "image"}, nil
	}}
	rec := newCountingRecorder()
	reg := newTestRegistry(client, Options{Recorder: rec})
	defer reg.Close()

	view, err := reg.Submit(submitParams("good one", "bad one", "good two"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitForStatus(t, reg, view.ID, domain.RunStatusDone)
	if final.Progress.Completed != 3 {
		t.Fatalf("completed = %d, want 3", final.Progress.Completed)
	}
	if final.LastFailure == nil || final.LastFailure.Message != "content rejected" {
		t.Fatalf("last failure = %+v", final.LastFailure)
	}
	failed := 0
	for _, out := range final.Outcomes {
		if out.State == domain.JobStateFailed {
			failed++
			if len(out.Diagnostic) == 0 {
				t.Fatalf("failed outcome without diagnostic: %+v", out)
			}
		}
	}
	if failed != 1 {
		t.Fatalf("failed outcomes = %d, want 1", failed)
	}

	reg.Close()
	if rec.jobCount(domain.JobStateFailed) != 1 || rec.jobCount(domain.JobStateSucceeded) != 2 {
		t.Fatalf("recorded jobs = %d failed / %d succeeded",
			rec.jobCount(domain.JobStateFailed), rec.jobCount(domain.JobStateSucceeded))
	}
	if rec.runCount(domain.RunStatusDone) != 1 {
		t.Fatalf("recorded done runs = %d, want 1", rec.runCount(domain.RunStatusDone))
	}
}

func TestTransportErrorAbortsRun(t *testing.T) {
	boom := errors.New("dial tcp 10.0.0.1:443: connection refused")
	client := &scriptedClient{handler: func(ctx context.Context, req providers.Request) (providers.Result, error) {
		if req.Prompt == "second" {
			return providers.Result{}, boom
		}
		return providers.Result{ArtifactURL: "https://cdn.example/ok.png"}, nil
	}}
	rec := newCountingRecorder()
	reg := newTestRegistry(client, Options{DefaultWorkers: 1, Recorder: rec})
	defer reg.Close()

	view, err := reg.Submit(submitParams("first", "second", "third"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := waitForStatus(t, reg, view.ID, domain.RunStatusError)
	if !strings.Contains(final.ErrorMessage, "connection refused") {
		t.Fatalf("error message = %q", final.ErrorMessage)
	}
	if len(final.Outcomes) != 1 {
		t.Fatalf("outcomes = %d, want 1 before abort", len(final.Outcomes))
	}
	if got := len(client.requests()); got != 2 {
		t.Fatalf("provider calls = %d, want 2", got)
	}

	reg.Close()
	if rec.runCount(domain.RunStatusError) != 1 {
		t.Fatalf("recorded error runs = %d, want 1", rec.runCount(domain.RunStatusError))
	}
}

func TestCancelStopsClaiming(t *testing.T) {
	started := make(chan struct{}, 4)
	client := blockingClient(started)
	reg := newTestRegistry(client, Options{DefaultWorkers: 1})
	defer reg.Close()

	view, err := reg.Submit(submitParams("one", "two"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	<-started

	if err := reg.Cancel(view.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	final := waitForStatus(t, reg, view.ID, domain.RunStatusCancelled)
	if len(final.Outcomes) != 0 {
		t.Fatalf("outcomes = %d, want 0", len(final.Outcomes))
	}
	if got := len(client.requests()); got != 1 {
		t.Fatalf("provider calls = %d, want 1", got)
	}

	if err := reg.Cancel(view.ID); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if err := reg.Cancel("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("cancel missing = %v", err)
	}
}

func TestSubmitEvictsOldestAtCapacity(t *testing.T) {
	views := &viewRecorder{}
	client := blockingClient(nil)
	reg := newTestRegistry(client, Options{Capacity: 3, DefaultWorkers: 1, Notify: views.record})
	defer reg.Close()

	var tick atomic.Int64
	reg.now = func() time.Time { return time.Unix(0, tick.Add(1)) }

	a, err := reg.Submit(submitParams("a"))
	if err != nil {
		t.Fatalf("submit a: %v", err)
	}
	b, _ := reg.Submit(submitParams("b"))
	c, _ := reg.Submit(submitParams("c"))
	d, err := reg.Submit(submitParams("d"))
	if err != nil {
		t.Fatalf("submit d: %v", err)
	}

	list, active := reg.List()
	if len(list) != 3 {
		t.Fatalf("runs = %d, want 3", len(list))
	}
	if list[0].ID != d.ID || list[1].ID != c.ID || list[2].ID != b.ID {
		t.Fatalf("order = [%s %s %s], want newest first d c b", list[0].ID, list[1].ID, list[2].ID)
	}
	if active != d.ID {
		t.Fatalf("active = %q, want %q", active, d.ID)
	}

	if _, err := reg.Get(a.ID); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("evicted run lookup = %v, want not found", err)
	}
	if status, ok := views.lastStatus(a.ID); !ok || status != domain.RunStatusCancelled {
		t.Fatalf("evicted run status = %s (%v), want cancelled", status, ok)
	}
}

func TestDeleteReassignsActive(t *testing.T) {
	var mu sync.Mutex
	var deleted []string
	client := blockingClient(nil)
	reg := newTestRegistry(client, Options{DefaultWorkers: 1, OnDelete: func(id string) {
		mu.Lock()
		deleted = append(deleted, id)
		mu.Unlock()
	}})
	defer reg.Close()

	var tick atomic.Int64
	reg.now = func() time.Time { return time.Unix(0, tick.Add(1)) }

	a, _ := reg.Submit(submitParams("a"))
	b, _ := reg.Submit(submitParams("b"))
	if got := reg.Active(); got != b.ID {
		t.Fatalf("active = %q, want %q", got, b.ID)
	}

	if err := reg.Delete(b.ID); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	if got := reg.Active(); got != a.ID {
		t.Fatalf("active after delete = %q, want %q", got, a.ID)
	}
	if _, err := reg.Get(b.ID); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("deleted run lookup = %v", err)
	}

	if err := reg.Delete(a.ID); err != nil {
		t.Fatalf("delete a: %v", err)
	}
	if got := reg.Active(); got != "" {
		t.Fatalf("active after last delete = %q, want empty", got)
	}
	if err := reg.Delete("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("delete missing = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(deleted) != 2 || deleted[0] != b.ID || deleted[1] != a.ID {
		t.Fatalf("delete hook calls = %v", deleted)
	}
}

func TestSetActive(t *testing.T) {
	client := blockingClient(nil)
	reg := newTestRegistry(client, Options{DefaultWorkers: 1})
	defer reg.Close()

	a, _ := reg.Submit(submitParams("a"))
	b, _ := reg.Submit(submitParams("b"))
	if got := reg.Active(); got != b.ID {
		t.Fatalf("active = %q, want %q", got, b.ID)
	}

	if err := reg.SetActive(a.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if got := reg.Active(); got != a.ID {
		t.Fatalf("active = %q, want %q", got, a.ID)
	}
	if err := reg.SetActive("missing"); !errors.Is(err, domain.ErrRunNotFound) {
		t.Fatalf("set active missing = %v", err)
	}
	if got := reg.Active(); got != a.ID {
		t.Fatalf("active changed on failed switch: %q", got)
	}
}

func TestCloseCancelsRunningWork(t *testing.T) {
	client := blockingClient(nil)
	reg := newTestRegistry(client, Options{DefaultWorkers: 1})

	a, _ := reg.Submit(submitParams("a"))
	b, _ := reg.Submit(submitParams("b"))

	reg.Close()

	for _, id := range []string{a.ID, b.ID} {
		view, err := reg.Get(id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if view.Status != domain.RunStatusCancelled {
			t.Fatalf("run %s status = %s, want cancelled", id, view.Status)
		}
	}
}

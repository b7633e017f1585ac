package runs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/caabsu/outlight-img2img/internal/domain"
)

type viewRecorder struct {
	mu    sync.Mutex
	views []domain.RunView
}

func (v *viewRecorder) record(view domain.RunView) {
	v.mu.Lock()
	v.views = append(v.views, view)
	v.mu.Unlock()
}

func (v *viewRecorder) statuses() []domain.RunStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]domain.RunStatus, 0, len(v.views))
	for _, view := range v.views {
		out = append(out, view.Status)
	}
	return out
}

func (v *viewRecorder) lastStatus(id string) (domain.RunStatus, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := len(v.views) - 1; i >= 0; i-- {
		if v.views[i].ID == id {
			return v.views[i].Status, true
		}
	}
	return "", false
}

func newTestRun(notify func(domain.RunView)) (*Run, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	return &Run{
		ID:        "run-1",
		Prompts:   []string{"one", "two", "three"},
		Workers:   1,
		CreatedAt: time.Now(),
		cancel:    cancel,
		notify:    notify,
		status:    domain.RunStatusRunning,
	}, ctx
}

func TestReportTracksProgressAndLastFailure(t *testing.T) {
	run, _ := newTestRun(nil)

	run.report(domain.JobOutcome{PromptIndex: 1, Prompt: "two", State: domain.JobStateFailed, Message: "rejected"})
	run.report(domain.JobOutcome{PromptIndex: 0, Prompt: "one", State: domain.JobStateSucceeded, ArtifactURL: "https://cdn.example/a.png"})

	view := run.Snapshot()
	if view.Status != domain.RunStatusRunning {
		t.Fatalf("status = %s, want running", view.Status)
	}
	if view.Progress.Completed != 2 || view.Progress.Total != 3 {
		t.Fatalf("progress = %+v, want 2/3", view.Progress)
	}
	if view.LastFailure == nil || view.LastFailure.Message != "rejected" {
		t.Fatalf("last failure = %+v, want rejected", view.LastFailure)
	}
	if len(view.Outcomes) != 2 || view.Outcomes[0].PromptIndex != 1 {
		t.Fatalf("outcomes = %+v, want arrival order", view.Outcomes)
	}
}

func TestFinishMapsErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus domain.RunStatus
		wantErrMsg string
	}{
		{"nil is done", nil, domain.RunStatusDone, ""},
		{"cancellation", context.Canceled, domain.RunStatusCancelled, ""},
		{"deadline", context.DeadlineExceeded, domain.RunStatusCancelled, ""},
		{"failure", errors.New("dial tcp: connection refused"), domain.RunStatusError, "dial tcp: connection refused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			run, _ := newTestRun(nil)
			run.finish(tc.err)
			view := run.Snapshot()
			if view.Status != tc.wantStatus {
				t.Fatalf("status = %s, want %s", view.Status, tc.wantStatus)
			}
			if view.ErrorMessage != tc.wantErrMsg {
				t.Fatalf("error message = %q, want %q", view.ErrorMessage, tc.wantErrMsg)
			}
		})
	}
}

func TestFinishLatches(t *testing.T) {
	run, _ := newTestRun(nil)
	run.finish(nil)
	run.finish(errors.New("late failure"))

	view := run.Snapshot()
	if view.Status != domain.RunStatusDone {
		t.Fatalf("status = %s, want done after latch", view.Status)
	}
	if view.ErrorMessage != "" {
		t.Fatalf("error message = %q, want empty", view.ErrorMessage)
	}
}

func TestCancelLatchesAndNotifiesOnce(t *testing.T) {
	rec := &viewRecorder{}
	run, ctx := newTestRun(rec.record)

	run.Cancel()
	run.Cancel()
	run.finish(context.Canceled)

	if err := ctx.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("ctx err = %v, want canceled", err)
	}
	if got := run.Status(); got != domain.RunStatusCancelled {
		t.Fatalf("status = %s, want cancelled", got)
	}
	statuses := rec.statuses()
	if len(statuses) != 1 || statuses[0] != domain.RunStatusCancelled {
		t.Fatalf("notifications = %v, want single cancelled", statuses)
	}
}

func TestSnapshotCopiesOutcomes(t *testing.T) {
	run, _ := newTestRun(nil)
	run.report(domain.JobOutcome{PromptIndex: 0, State: domain.JobStateSucceeded})

	view := run.Snapshot()
	view.Outcomes[0].PromptIndex = 99

	if fresh := run.Snapshot(); fresh.Outcomes[0].PromptIndex != 0 {
		t.Fatal("snapshot shares outcome backing array")
	}
}

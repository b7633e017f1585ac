// Package runs orchestrates generation runs: a batch of prompts fanned out
// to a bounded worker pool against one reference asset, with live progress,
// cancellation and a small registry of concurrent runs.
package runs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/caabsu/outlight-img2img/internal/domain"
)

// Run tracks one prompt batch from submission to a terminal state. Status
// moves from running to exactly one of done, cancelled or error, and never
// changes again afterwards.
type Run struct {
	ID           string
	Title        string
	ProductID    string
	ReferenceURL string
	Provider     string
	Prompts      []string
	Options      domain.Options
	Workers      int
	CreatedAt    time.Time

	cancel context.CancelFunc
	notify func(domain.RunView)

	mu          sync.Mutex
	status      domain.RunStatus
	outcomes    []domain.JobOutcome
	lastFailure *domain.JobOutcome
	errMessage  string
}

// report appends one finished prompt outcome in arrival order.
func (r *Run) report(outcome domain.JobOutcome) {
	r.mu.Lock()
	r.outcomes = append(r.outcomes, outcome)
	if outcome.State == domain.JobStateFailed {
		copied := outcome
		r.lastFailure = &copied
	}
	view := r.snapshotLocked()
	r.mu.Unlock()

	if r.notify != nil {
		r.notify(view)
	}
}

// finish latches the terminal state once the pool drained. Cancellation that
// already flipped the status wins; a pool abort records its error.
func (r *Run) finish(err error) {
	r.mu.Lock()
	changed := !r.status.IsTerminal()
	if changed {
		switch {
		case err == nil:
			r.status = domain.RunStatusDone
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			r.status = domain.RunStatusCancelled
		default:
			r.status = domain.RunStatusError
			r.errMessage = err.Error()
		}
	}
	view := r.snapshotLocked()
	r.mu.Unlock()

	if changed && r.notify != nil {
		r.notify(view)
	}
}

// Cancel requests the run to stop. Idempotent; a terminal run is left as is.
func (r *Run) Cancel() {
	r.mu.Lock()
	changed := !r.status.IsTerminal()
	if changed {
		r.status = domain.RunStatusCancelled
	}
	view := r.snapshotLocked()
	r.mu.Unlock()

	r.cancel()
	if changed && r.notify != nil {
		r.notify(view)
	}
}

// Status returns the current lifecycle state.
func (r *Run) Status() domain.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Snapshot returns an immutable view of the run.
func (r *Run) Snapshot() domain.RunView {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Run) snapshotLocked() domain.RunView {
	outcomes := make([]domain.JobOutcome, len(r.outcomes))
	copy(outcomes, r.outcomes)

	var lastFailure *domain.JobOutcome
	if r.lastFailure != nil {
		copied := *r.lastFailure
		lastFailure = &copied
	}

	return domain.RunView{
		ID:           r.ID,
		Title:        r.Title,
		ProductID:    r.ProductID,
		ReferenceURL: r.ReferenceURL,
		Provider:     r.Provider,
		Status:       r.status,
		Prompts:      r.Prompts,
		Options:      r.Options,
		Workers:      r.Workers,
		Progress:     domain.Progress{Completed: len(outcomes), Total: len(r.Prompts)},
		Outcomes:     outcomes,
		LastFailure:  lastFailure,
		ErrorMessage: r.errMessage,
		CreatedAt:    r.CreatedAt,
	}
}

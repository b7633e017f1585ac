package usage

import (
	"context"
	"time"

	"github.com/caabsu/outlight-img2img/internal/domain"
	"github.com/caabsu/outlight-img2img/internal/infra"
	"github.com/caabsu/outlight-img2img/internal/runs"
)

const incrementTimeout = 5 * time.Second

// Recorder folds run lifecycle events into the daily usage counters. Counter
// updates are best effort and never block or fail a run.
type Recorder struct {
	stats  domain.StatsRepository
	logger infra.Logger
	now    func() time.Time
}

func NewRecorder(stats domain.StatsRepository, logger infra.Logger) *Recorder {
	return &Recorder{stats: stats, logger: logger, now: time.Now}
}

func (r *Recorder) RecordRun(status domain.RunStatus) {
	switch status {
	case domain.RunStatusDone:
		r.increment("runs_done")
	case domain.RunStatusCancelled:
		r.increment("runs_cancelled")
	case domain.RunStatusError:
		r.increment("runs_error")
	}
}

func (r *Recorder) RecordJob(state domain.JobState) {
	switch state {
	case domain.JobStateSucceeded:
		r.increment("jobs_succeeded")
	case domain.JobStateFailed:
		r.increment("jobs_failed")
	}
}

func (r *Recorder) increment(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), incrementTimeout)
	defer cancel()
	day := r.now().UTC().Format("2006-01-02")
	if err := r.stats.IncrementCounters(ctx, day, map[string]int{name: 1}); err != nil {
		r.logger.Warn().Err(err).Str("counter", name).Msg("usage: counter update failed")
	}
}

var _ runs.Recorder = (*Recorder)(nil)

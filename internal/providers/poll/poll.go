// Package poll drives asynchronous provider tasks to a terminal outcome on a
// fixed cadence: wait one interval, fetch the task status, classify it, and
// repeat until the task finishes, the deadline passes, or the context is
// cancelled.
package poll

import (
	"context"
	"fmt"
	"time"
)

// State classifies one observed task status.
type State int

const (
	StatePending State = iota
	StateSucceeded
	StateFailed
)

// Verdict is the classified form of one status fetch. RawState keeps the
// provider's own label so a timeout can report the last thing seen.
type Verdict struct {
	State       State
	RawState    string
	ArtifactURL string
	Message     string
}

// Outcome is the terminal result of a poll.
type Outcome struct {
	Succeeded   bool
	ArtifactURL string
	Message     string
}

// FetchFunc retrieves and classifies the current task status. A non-nil
// error means the fetch itself failed (network, decode) and the task is
// abandoned without retry.
type FetchFunc func(ctx context.Context) (Verdict, error)

// Poller polls with a fixed interval until Deadline has elapsed. The zero
// value is not usable; construct with New.
type Poller struct {
	Interval time.Duration
	Deadline time.Duration

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// New returns a Poller with the real clock. Non-positive intervals fall back
// to two seconds.
func New(interval, deadline time.Duration) Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Poller{
		Interval: interval,
		Deadline: deadline,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Await runs the poll loop and always returns a terminal Outcome; errors
// along the way become failed Outcomes. The first fetch happens one interval
// after the call, so a context cancelled at entry aborts with zero fetches.
func (p Poller) Await(ctx context.Context, fetch FetchFunc) Outcome {
	now := p.now
	if now == nil {
		now = time.Now
	}
	slp := p.sleep
	if slp == nil {
		slp = sleepContext
	}

	deadline := now().Add(p.Deadline)
	lastState := "none"
	for {
		if err := slp(ctx, p.Interval); err != nil {
			return Outcome{Message: "cancelled"}
		}
		if ctx.Err() != nil {
			return Outcome{Message: "cancelled"}
		}
		verdict, err := fetch(ctx)
		if err != nil {
			return Outcome{Message: err.Error()}
		}
		if verdict.RawState != "" {
			lastState = verdict.RawState
		}
		switch verdict.State {
		case StateSucceeded:
			return Outcome{Succeeded: true, ArtifactURL: verdict.ArtifactURL}
		case StateFailed:
			msg := verdict.Message
			if msg == "" {
				msg = "provider reported failure"
			}
			return Outcome{Message: msg}
		}
		if !now().Before(deadline) {
			return Outcome{Message: fmt.Sprintf("timed out, last state: %s", lastState)}
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// RunStatus enumerates run lifecycle states.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusDone      RunStatus = "done"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusError     RunStatus = "error"
)

// IsTerminal reports whether the status can no longer change.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusDone, RunStatusCancelled, RunStatusError:
		return true
	default:
		return false
	}
}

// JobState enumerates per-prompt job results.
type JobState string

const (
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
)

// JobOutcome is the terminal result of one prompt inside a run. Failed
// outcomes carry the provider message and, when available, a raw response
// excerpt for debugging.
type JobOutcome struct {
	PromptIndex int
	Prompt      string
	State       JobState
	ArtifactURL string
	Message     string
	Diagnostic  json.RawMessage
	FinishedAt  time.Time
}

// Progress counts finished prompts against the batch size. Completed
// includes failed prompts.
type Progress struct {
	Completed int
	Total     int
}

// RunView is an immutable snapshot of a run for API responses and event
// streams.
type RunView struct {
	ID           string
	Title        string
	ProductID    string
	ReferenceURL string
	Provider     string
	Status       RunStatus
	Prompts      []string
	Options      Options
	Workers      int
	Progress     Progress
	Outcomes     []JobOutcome
	LastFailure  *JobOutcome
	ErrorMessage string
	CreatedAt    time.Time
}

// Options carries provider-specific generation settings. The orchestration
// core passes it through untouched; providers read the keys they understand.
type Options map[string]any

// String returns the string value stored under key, or "" when absent or not
// a string.
func (o Options) String(key string) string {
	if o == nil {
		return ""
	}
	s, _ := o[key].(string)
	return strings.TrimSpace(s)
}

// Int returns the integer value stored under key. JSON numbers decode as
// float64, so both forms are accepted.
func (o Options) Int(key string) (int, bool) {
	if o == nil {
		return 0, false
	}
	switch v := o[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// Bool returns the boolean value stored under key, defaulting to false.
func (o Options) Bool(key string) bool {
	if o == nil {
		return false
	}
	b, _ := o[key].(bool)
	return b
}

package providers

import (
	"context"
	"encoding/json"

	"github.com/caabsu/outlight-img2img/internal/domain"
)

// Request is one generation job: a single prompt applied against the run's
// reference asset. Options passes through provider-specific settings.
type Request struct {
	Prompt       string
	ReferenceURL string
	RequestID    string
	Options      domain.Options
}

// Result is the provider-level outcome of one request. Failed results carry
// the provider's message plus an optional raw-response excerpt; Data holds
// artifact bytes when the provider already fetched them.
type Result struct {
	ArtifactURL string
	Data        []byte
	Format      string
	Failed      bool
	Message     string
	Diagnostic  json.RawMessage
}

// Client produces one artifact per call, single attempt. A non-nil error
// means the attempt could not run at all (transport failure, cancellation)
// and aborts the surrounding batch; provider-reported failures come back as
// a Result with Failed set.
type Client interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Fail builds a failed Result. The diagnostic is trimmed and, when it is not
// valid JSON, wrapped as a JSON string so outcome payloads stay encodable.
func Fail(message string, diagnostic []byte) Result {
	r := Result{Failed: true, Message: message}
	if len(diagnostic) == 0 {
		return r
	}
	d := Excerpt(diagnostic)
	if json.Valid(d) {
		r.Diagnostic = json.RawMessage(d)
		return r
	}
	if enc, err := json.Marshal(string(d)); err == nil {
		r.Diagnostic = json.RawMessage(enc)
	}
	return r
}

// Excerpt caps raw response bodies kept for diagnostics.
func Excerpt(body []byte) []byte {
	const max = 2048
	if len(body) <= max {
		return body
	}
	return body[:max]
}

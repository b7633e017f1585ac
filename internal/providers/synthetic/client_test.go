package synthetic

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caabsu/outlight-img2img/internal/providers"
)

func TestGenerateIsDeterministic(t *testing.T) {
	client := NewClient(Options{})
	req := providers.Request{Prompt: "front view", ReferenceURL: "https://cdn.example/denim.png"}

	first, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := client.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if first.ArtifactURL == "" || first.ArtifactURL != second.ArtifactURL {
		t.Fatalf("urls differ: %q vs %q", first.ArtifactURL, second.ArtifactURL)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("image bytes differ between identical requests")
	}
	if first.Format != "image/png" {
		t.Fatalf("format = %q, want image/png", first.Format)
	}
	if !bytes.HasPrefix(first.Data, []byte("\x89PNG")) {
		t.Fatal("data is not a png")
	}
}

func TestGenerateFailEvery(t *testing.T) {
	client := NewClient(Options{FailEvery: 2})
	req := providers.Request{Prompt: "p", ReferenceURL: "https://cdn.example/r.png"}

	wantFailed := []bool{false, true, false, true}
	for i, want := range wantFailed {
		result, err := client.Generate(context.Background(), req)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if result.Failed != want {
			t.Fatalf("call %d failed = %v, want %v", i+1, result.Failed, want)
		}
	}
}

func TestGenerateCancelledDuringLatency(t *testing.T) {
	client := NewClient(Options{Latency: time.Minute})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Generate(ctx, providers.Request{Prompt: "p", ReferenceURL: "https://cdn.example/r.png"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

package providers

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/rs/zerolog"
)

type stubClient struct {
	name string
}

func (s *stubClient) Generate(ctx context.Context, req Request) (Result, error) {
	return Result{ArtifactURL: "stub://" + s.name}, nil
}

func newTestRegistry() *Registry {
	reg := NewRegistry("dashscope", zerolog.New(io.Discard))
	reg.Register("dashscope", &stubClient{name: "dashscope"})
	reg.Register("ark", &stubClient{name: "ark"})
	return reg
}

func TestLookupKnown(t *testing.T) {
	reg := newTestRegistry()
	client, name := reg.Lookup("ark")
	if client == nil || name != "ark" {
		t.Fatalf("Lookup(ark) = %v, %q", client, name)
	}
}

func TestLookupEmptyUsesDefault(t *testing.T) {
	reg := newTestRegistry()
	client, name := reg.Lookup("")
	if client == nil || name != "dashscope" {
		t.Fatalf("Lookup(\"\") = %v, %q", client, name)
	}
}

func TestLookupUnknownUsesDefault(t *testing.T) {
	reg := newTestRegistry()
	client, name := reg.Lookup("midjourney")
	if client == nil || name != "dashscope" {
		t.Fatalf("Lookup(midjourney) = %v, %q", client, name)
	}
}

func TestLookupNoDefault(t *testing.T) {
	reg := NewRegistry("missing", zerolog.New(io.Discard))
	client, _ := reg.Lookup("anything")
	if client != nil {
		t.Fatal("expected nil client without default")
	}
}

func TestNames(t *testing.T) {
	reg := newTestRegistry()
	if got, want := reg.Names(), []string{"ark", "dashscope"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Names() = %v, want %v", got, want)
	}
}

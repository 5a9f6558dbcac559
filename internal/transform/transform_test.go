package transform

import (
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/helmgate/helmgate/internal/domain"
)

// marker records the order transformers fire in.
type marker struct {
	Identity
	name string
	log  *[]string
}

func (m *marker) Name() string { return m.name }

func (m *marker) TransformRequest(req *domain.Request) error {
	*m.log = append(*m.log, "req:"+m.name)
	return nil
}

func (m *marker) TransformResponse(resp *domain.Response) error {
	*m.log = append(*m.log, "resp:"+m.name)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestChainOrdering(t *testing.T) {
	var log []string
	chain := Chain{
		&marker{name: "a", log: &log},
		&marker{name: "b", log: &log},
		&marker{name: "c", log: &log},
	}

	req := &domain.Request{Model: "m"}
	if err := chain.TransformRequest(req); err != nil {
		t.Fatalf("TransformRequest: %v", err)
	}
	resp := &domain.Response{}
	if err := chain.TransformResponse(resp); err != nil {
		t.Fatalf("TransformResponse: %v", err)
	}

	want := []string{"req:a", "req:b", "req:c", "resp:c", "resp:b", "resp:a"}
	if !reflect.DeepEqual(log, want) {
		t.Errorf("order = %v, want %v", log, want)
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	req := &domain.Request{
		Model:  "m",
		System: "s",
		Messages: []domain.Message{
			{Role: domain.RoleUser, Content: domain.NewTextContent("hello")},
		},
	}
	before := req.Clone()

	var chain Chain
	if err := chain.TransformRequest(req); err != nil {
		t.Fatalf("TransformRequest: %v", err)
	}
	if !reflect.DeepEqual(req, before) {
		t.Error("empty chain mutated the request")
	}

	resp := &domain.Response{Content: []domain.ContentPart{domain.TextPart("hi")}}
	want := &domain.Response{Content: []domain.ContentPart{domain.TextPart("hi")}}
	if err := chain.TransformResponse(resp); err != nil {
		t.Fatalf("TransformResponse: %v", err)
	}
	if !reflect.DeepEqual(resp, want) {
		t.Error("empty chain mutated the response")
	}
}

func TestBuildChainDropsUnknownNames(t *testing.T) {
	var log []string
	r := NewRegistry()
	r.Register(&marker{name: "knownA", log: &log})
	r.Register(&marker{name: "knownB", log: &log})

	chain := r.BuildChain([]string{"knownA", "bogus", "knownB"}, testLogger())
	if len(chain) != 2 {
		t.Fatalf("chain length = %d, want 2", len(chain))
	}
	if chain[0].Name() != "knownA" || chain[1].Name() != "knownB" {
		t.Errorf("kept transformers = %s, %s", chain[0].Name(), chain[1].Name())
	}
}

func TestRegistryReplace(t *testing.T) {
	var log []string
	r := NewRegistry()
	r.Register(&marker{name: "x", log: &log})
	second := &marker{name: "x", log: &log}
	r.Register(second)

	got, ok := r.Get("x")
	if !ok {
		t.Fatal("transformer not found")
	}
	if got != second {
		t.Error("re-registration did not replace")
	}
}

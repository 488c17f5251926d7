package chat

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/ollama/ollama/api"

	"github.com/xiy/memoryd/internal/config"
	"github.com/xiy/memoryd/pkg/types"
)

type fakeMemory struct {
	relevant []types.SearchResult
	ingested []string
	contexts []string
}

func (f *fakeMemory) ProcessMessage(_ context.Context, text, msgContext string) (int64, error) {
	f.ingested = append(f.ingested, text)
	f.contexts = append(f.contexts, msgContext)
	return int64(len(f.ingested)), nil
}

func (f *fakeMemory) GetRelevant(_ context.Context, _ string, _ int) ([]types.SearchResult, error) {
	return f.relevant, nil
}

type fakeClient struct {
	models   []string
	reply    string
	lastReq  *api.ChatRequest
	chatErrs []error
}

func (f *fakeClient) List(_ context.Context) (*api.ListResponse, error) {
	resp := &api.ListResponse{}
	for _, m := range f.models {
		resp.Models = append(resp.Models, api.ListModelResponse{Name: m})
	}
	return resp, nil
}

func (f *fakeClient) Chat(_ context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error {
	f.lastReq = req
	if len(f.chatErrs) > 0 {
		err := f.chatErrs[0]
		f.chatErrs = f.chatErrs[1:]
		if err != nil {
			return err
		}
	}
	// stream the reply in two chunks
	half := len(f.reply) / 2
	for _, chunk := range []string{f.reply[:half], f.reply[half:]} {
		if err := fn(api.ChatResponse{Message: api.Message{Content: chunk}}); err != nil {
			return err
		}
	}
	return nil
}

func newTestSession(mem *fakeMemory, client *fakeClient) *Session {
	return &Session{
		id:     "test-session",
		client: client,
		mem:    mem,
		cfg:    config.Default(),
		logger: log.NewWithOptions(io.Discard, log.Options{}),
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	t.Parallel()
	if got := buildSystemPrompt(nil); got != "" {
		t.Fatalf("expected empty prompt for no memories, got %q", got)
	}

	relevant := []types.SearchResult{
		{Record: types.MemoryRecord{Content: "likes espresso"}},
		{Record: types.MemoryRecord{Content: "Lives in Lisbon"}},
		{Record: types.MemoryRecord{Content: "lives in lisbon"}},
	}
	got := buildSystemPrompt(relevant)
	if !strings.Contains(got, "lives in lisbon") {
		t.Fatalf("expected most repeated memory in prompt, got %q", got)
	}
	if !strings.Contains(got, "Previous relevant context:") {
		t.Fatalf("missing context preamble in %q", got)
	}
}

func TestBuildSystemPrompt_TieKeepsFirst(t *testing.T) {
	t.Parallel()
	relevant := []types.SearchResult{
		{Record: types.MemoryRecord{Content: "first fact"}},
		{Record: types.MemoryRecord{Content: "second fact"}},
	}
	got := buildSystemPrompt(relevant)
	if !strings.Contains(got, "first fact") {
		t.Fatalf("expected first memory to win ties, got %q", got)
	}
}

func TestRun_ExchangesAndIngests(t *testing.T) {
	t.Parallel()
	mem := &fakeMemory{
		relevant: []types.SearchResult{
			{Record: types.MemoryRecord{Content: "user prefers short answers"}},
		},
	}
	client := &fakeClient{models: []string{"phi"}, reply: "hello there"}
	s := newTestSession(mem, client)

	in := strings.NewReader("hi model\n/quit\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(mem.ingested) != 2 {
		t.Fatalf("expected user and assistant messages ingested, got %d", len(mem.ingested))
	}
	if mem.contexts[0] != "user_input" || mem.contexts[1] != "assistant_response" {
		t.Fatalf("unexpected ingest contexts %v", mem.contexts)
	}
	if mem.ingested[1] != "hello there" {
		t.Fatalf("expected assistant reply ingested, got %q", mem.ingested[1])
	}

	if client.lastReq == nil || len(client.lastReq.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %+v", client.lastReq)
	}
	if client.lastReq.Messages[0].Role != "system" {
		t.Fatalf("expected system message first, got role %q", client.lastReq.Messages[0].Role)
	}
	if !strings.Contains(out.String(), "hello there") {
		t.Fatalf("expected streamed reply in output, got %q", out.String())
	}
}

func TestRun_FallsBackToInstalledModel(t *testing.T) {
	t.Parallel()
	mem := &fakeMemory{}
	client := &fakeClient{models: []string{"llama3.2"}, reply: "ok"}
	s := newTestSession(mem, client)
	s.cfg.ChatModel = "phi"

	in := strings.NewReader("hello\n/quit\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if client.lastReq.Model != "llama3.2" {
		t.Fatalf("expected fallback to installed model, got %q", client.lastReq.Model)
	}
}

func TestRun_ChatFailureDoesNotIngest(t *testing.T) {
	t.Parallel()
	mem := &fakeMemory{}
	client := &fakeClient{models: []string{"phi"}, reply: "ok", chatErrs: []error{io.ErrUnexpectedEOF}}
	s := newTestSession(mem, client)

	in := strings.NewReader("hello\n/quit\n")
	var out bytes.Buffer
	if err := s.Run(context.Background(), in, &out); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(mem.ingested) != 0 {
		t.Fatalf("expected no ingests after chat failure, got %v", mem.ingested)
	}
}

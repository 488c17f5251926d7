package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/xiy/memoryd/internal/config"
	"github.com/xiy/memoryd/internal/memory"
	"github.com/xiy/memoryd/internal/store"
	"github.com/xiy/memoryd/pkg/types"
)

type fakeStore struct{}

func (fakeStore) Add(_ context.Context, _ types.AddInput) (int64, error) { return 1, nil }
func (fakeStore) List(_ context.Context, _ int, _ string) ([]types.MemoryRecord, error) {
	return nil, nil
}
func (fakeStore) SearchSimilar(_ context.Context, _ string, _ float64, _ int) ([]types.SearchResult, error) {
	return nil, nil
}
func (fakeStore) Update(_ context.Context, _ types.UpdateInput) error { return nil }
func (fakeStore) Delete(_ context.Context, _ int64) error             { return nil }
func (fakeStore) Get(_ context.Context, id int64) (types.MemoryRecord, error) {
	return types.MemoryRecord{ID: id}, nil
}
func (fakeStore) Stats(_ context.Context) (types.Stats, error) { return types.Stats{}, nil }
func (fakeStore) Close() error                                 { return nil }

type captureSink struct {
	rows []store.RequestLog
}

func (c *captureSink) InsertRequestLog(_ context.Context, rec store.RequestLog) error {
	c.rows = append(c.rows, rec)
	return nil
}

func newTestServer(sink RequestLogSink) *Server {
	logger := log.NewWithOptions(io.Discard, log.Options{})
	mgr := memory.NewManager(fakeStore{}, config.Default(), logger)
	return NewServer(mgr, logger, sink)
}

func TestHandle_ToolsList(t *testing.T) {
	t.Parallel()
	srv := newTestServer(nil)

	id := json.RawMessage(`1`)
	resp, ok := srv.handle(context.Background(), request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/list",
	})
	if !ok {
		t.Fatal("expected response")
	}
	if resp.Error != nil {
		t.Fatalf("unexpected error response: %+v", resp.Error)
	}

	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	tools, ok := result["tools"].([]ToolDefinition)
	if !ok || len(tools) != 9 {
		t.Fatalf("expected 9 tool definitions, got %d", len(tools))
	}
}

func TestReadWriteFramedMessage(t *testing.T) {
	t.Parallel()
	resp := response{JSONRPC: "2.0", ID: 1, Result: map[string]any{"ok": true}}
	var payloadBuf bytes.Buffer
	bw := bufio.NewWriter(&payloadBuf)
	if err := writeFramedMessage(bw, resp); err != nil {
		t.Fatalf("writeFramedMessage() error = %v", err)
	}
	br := bufio.NewReader(bytes.NewReader(payloadBuf.Bytes()))
	payload, err := readFramedMessage(br)
	if err != nil {
		t.Fatalf("readFramedMessage() error = %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("json.Unmarshal() error = %v", err)
	}
	if got["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", got["jsonrpc"])
	}
}

func TestReadMessage_JSONLine(t *testing.T) {
	t.Parallel()
	raw := []byte("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"ping\"}\n")
	br := bufio.NewReader(bytes.NewReader(raw))

	payload, mode, err := readMessage(br)
	if err != nil {
		t.Fatalf("readMessage() error = %v", err)
	}
	if mode != wireModeJSONLine {
		t.Fatalf("expected JSON-line mode, got %v", mode)
	}

	var req request
	if err := json.Unmarshal(payload, &req); err != nil {
		t.Fatalf("json.Unmarshal(payload) error = %v", err)
	}
	if req.Method != "ping" {
		t.Fatalf("expected method ping, got %q", req.Method)
	}
}

func TestServe_JSONLineInitialize(t *testing.T) {
	t.Parallel()
	srv := newTestServer(nil)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"initialize\",\"params\":{\"protocolVersion\":\"2024-11-05\"}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	line := bytes.TrimSpace(out.Bytes())
	if len(line) == 0 {
		t.Fatal("expected JSON-line response, got empty output")
	}
	if bytes.Contains(line, []byte("Content-Length:")) {
		t.Fatalf("expected JSON-line response, got framed output: %q", string(line))
	}

	var resp map[string]any
	if err := json.Unmarshal(line, &resp); err != nil {
		t.Fatalf("json.Unmarshal(response) error = %v", err)
	}
	if resp["jsonrpc"] != "2.0" {
		t.Fatalf("expected jsonrpc 2.0, got %v", resp["jsonrpc"])
	}
}

func TestServe_ToolCallAndRequestLog(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	srv := newTestServer(sink)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/call\",\"params\":{\"name\":\"memory_ingest\",\"arguments\":{\"text\":\"remember the launch\"}}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 request log row, got %d", len(sink.rows))
	}
	got := sink.rows[0]
	if got.Method != "tools/call" || got.ToolName != "memory_ingest" {
		t.Fatalf("unexpected request log %+v", got)
	}
	if !got.Success {
		t.Fatalf("expected successful ingest, got error %q", got.ErrorText)
	}
}

func TestServe_RejectsInvalidToolInput(t *testing.T) {
	t.Parallel()
	sink := &captureSink{}
	srv := newTestServer(sink)

	in := bytes.NewBufferString("{\"jsonrpc\":\"2.0\",\"id\":1,\"method\":\"tools/call\",\"params\":{\"name\":\"memory_search\",\"arguments\":{\"query\":\"\"}}}\n")
	var out bytes.Buffer
	if err := srv.Serve(context.Background(), in, &out); err != nil {
		t.Fatalf("Serve() error = %v", err)
	}

	if len(sink.rows) != 1 {
		t.Fatalf("expected 1 request log row, got %d", len(sink.rows))
	}
	got := sink.rows[0]
	if got.Success {
		t.Fatal("expected failed request for empty query")
	}
	if got.ErrorText == "" {
		t.Fatal("expected non-empty error text")
	}
}

func TestHandle_UnknownTool(t *testing.T) {
	t.Parallel()
	srv := newTestServer(nil)

	params, _ := json.Marshal(map[string]any{"name": "memory_promote", "arguments": map[string]any{}})
	id := json.RawMessage(`7`)
	resp, ok := srv.handle(context.Background(), request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "tools/call",
		Params:  params,
	})
	if !ok {
		t.Fatal("expected response")
	}
	result, ok := resp.Result.(map[string]any)
	if !ok {
		t.Fatalf("unexpected result type %T", resp.Result)
	}
	if isErr, _ := result["isError"].(bool); !isErr {
		t.Fatal("expected isError for unknown tool")
	}
}

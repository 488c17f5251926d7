// Package chat implements a terminal chat loop that augments an Ollama
// model with relevant stored memories and feeds the conversation back
// into the memory manager.
package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"github.com/xiy/memoryd/internal/config"
	"github.com/xiy/memoryd/pkg/types"
)

// memorySource is the slice of the memory manager the chat loop needs.
type memorySource interface {
	ProcessMessage(ctx context.Context, text, msgContext string) (int64, error)
	GetRelevant(ctx context.Context, contextText string, limit int) ([]types.SearchResult, error)
}

// chatClient is the slice of the Ollama API client the chat loop needs.
type chatClient interface {
	List(ctx context.Context) (*api.ListResponse, error)
	Chat(ctx context.Context, req *api.ChatRequest, fn api.ChatResponseFunc) error
}

// Session drives one interactive chat session.
type Session struct {
	id     string
	client chatClient
	mem    memorySource
	cfg    config.Config
	logger *log.Logger
}

// NewSession connects to the configured Ollama host and prepares a session.
func NewSession(cfg config.Config, mem memorySource, logger *log.Logger) (*Session, error) {
	host := cfg.OllamaHost
	if env := os.Getenv("OLLAMA_HOST"); env != "" {
		host = env
	}
	uri, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parse ollama host %q: %w", host, err)
	}
	return &Session{
		id:     uuid.NewString(),
		client: api.NewClient(uri, http.DefaultClient),
		mem:    mem,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Run reads user messages from in and writes model replies to out until
// EOF, "/quit", or context cancellation.
func (s *Session) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	models, err := s.availableModels(ctx)
	if err != nil {
		return fmt.Errorf("ollama is not reachable at %s: %w", s.cfg.OllamaHost, err)
	}

	model := s.cfg.ChatModel
	if !containsModel(models, model) && len(models) > 0 {
		s.logger.Warn("configured chat model not installed, falling back", "configured", model, "using", models[0])
		model = models[0]
	}

	fmt.Fprintf(out, "memoryd chat (session %s)\n", s.id)
	fmt.Fprintf(out, "model: %s, installed: %s\n", model, strings.Join(models, ", "))
	fmt.Fprintln(out, "type /quit to exit")

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		reply, err := s.exchange(ctx, model, line, out)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("chat request failed", "error", err)
			fmt.Fprintln(out, "(chat request failed, see logs)")
			continue
		}

		s.ingest(ctx, line, "user_input")
		s.ingest(ctx, reply, "assistant_response")
	}
}

// exchange sends one user message with memory context and streams the reply.
func (s *Session) exchange(ctx context.Context, model, message string, out io.Writer) (string, error) {
	relevant, err := s.mem.GetRelevant(ctx, message, s.cfg.DefaultRelevantLimit)
	if err != nil {
		s.logger.Warn("memory recall failed", "error", err)
		relevant = nil
	}

	messages := []api.Message{}
	if sys := buildSystemPrompt(relevant); sys != "" {
		messages = append(messages, api.Message{Role: "system", Content: sys})
	}
	messages = append(messages, api.Message{Role: "user", Content: message})

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
	}

	var reply strings.Builder
	err = s.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		reply.WriteString(resp.Message.Content)
		_, werr := io.WriteString(out, resp.Message.Content)
		return werr
	})
	if err != nil {
		return "", err
	}
	fmt.Fprintln(out)
	return strings.TrimSpace(reply.String()), nil
}

func (s *Session) ingest(ctx context.Context, text, msgContext string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if _, err := s.mem.ProcessMessage(ctx, text, msgContext); err != nil {
		s.logger.Warn("failed to store chat message", "context", msgContext, "error", err)
	}
}

func (s *Session) availableModels(ctx context.Context) ([]string, error) {
	resp, err := s.client.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// buildSystemPrompt folds recalled memories into a context block. The most
// frequently repeated memory content wins the summary slot, matching how
// repeated answers reinforce each other.
func buildSystemPrompt(relevant []types.SearchResult) string {
	if len(relevant) == 0 {
		return ""
	}

	counts := make(map[string]int, len(relevant))
	order := make([]string, 0, len(relevant))
	for _, r := range relevant {
		key := strings.ToLower(strings.TrimSpace(r.Record.Content))
		if key == "" {
			continue
		}
		if counts[key] == 0 {
			order = append(order, key)
		}
		counts[key]++
	}
	if len(order) == 0 {
		return ""
	}

	summary := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[summary] {
			summary = key
		}
	}

	return fmt.Sprintf(
		"Previous relevant context: %s\n\nInstructions: Provide a direct, natural response incorporating relevant context.",
		summary,
	)
}

func containsModel(models []string, name string) bool {
	for _, m := range models {
		if m == name || strings.TrimSuffix(m, ":latest") == name {
			return true
		}
	}
	return false
}

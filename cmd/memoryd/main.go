package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"

	"github.com/xiy/memoryd/internal/admin"
	"github.com/xiy/memoryd/internal/bootstrap"
	"github.com/xiy/memoryd/internal/chat"
	"github.com/xiy/memoryd/internal/config"
	"github.com/xiy/memoryd/internal/embeddings"
	"github.com/xiy/memoryd/internal/maintenance"
	"github.com/xiy/memoryd/internal/mcp"
	"github.com/xiy/memoryd/internal/memory"
	"github.com/xiy/memoryd/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	sub := os.Args[1]
	switch sub {
	case "serve":
		if err := runServe(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "chat":
		if err := runChat(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "bootstrap-clis":
		if err := runBootstrap(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "admin":
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	case "version", "--version", "-v":
		fmt.Println("memoryd v0.1.0")
	default:
		usage()
		os.Exit(2)
	}
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "config/memoryd.yaml", "Path to config file")
	hashEmbedder := fs.Bool("hash-embedder", false, "Use the deterministic local embedder instead of Ollama")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportCaller: false, Prefix: cfg.ServerName})
	setLogLevel(logger, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embedder := buildEmbedder(cfg, *hashEmbedder, logger)
	st, err := store.OpenSQLite(ctx, cfg.DBPath, embedder, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := memory.NewManager(st, cfg, logger)

	go maintenance.Start(ctx, logger, time.Duration(cfg.MaintenanceIntervalMinutes)*time.Minute, mgr)

	server := mcp.NewServer(mgr, logger, st)
	logger.Info("starting MCP stdio server", "db", cfg.DBPath)
	if err := server.Serve(ctx, os.Stdin, os.Stdout); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func runChat(args []string) error {
	fs := flag.NewFlagSet("chat", flag.ContinueOnError)
	configPath := fs.String("config", "config/memoryd.yaml", "Path to config file")
	model := fs.String("model", "", "Override the configured chat model")
	hashEmbedder := fs.Bool("hash-embedder", false, "Use the deterministic local embedder instead of Ollama")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}
	if *model != "" {
		cfg.ChatModel = *model
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{Prefix: cfg.ServerName})
	setLogLevel(logger, cfg.LogLevel)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	embedder := buildEmbedder(cfg, *hashEmbedder, logger)
	st, err := store.OpenSQLite(ctx, cfg.DBPath, embedder, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	mgr := memory.NewManager(st, cfg, logger)
	session, err := chat.NewSession(cfg, mgr, logger)
	if err != nil {
		return err
	}
	return session.Run(ctx, os.Stdin, os.Stdout)
}

func runBootstrap(args []string) error {
	fs := flag.NewFlagSet("bootstrap-clis", flag.ContinueOnError)
	configPath := fs.String("config", "config/memoryd.yaml", "Path to config file")
	scope := fs.String("scope", "user", "Config scope: user or project")
	serverName := fs.String("server-name", "memoryd", "MCP server registration name")
	serveCmd := fs.String("serve-command", "memoryd serve", "Command used by MCP clients to launch the stdio server")
	all := fs.Bool("all", false, "Configure all available CLIs")
	codex := fs.Bool("codex", false, "Configure Codex CLI")
	claude := fs.Bool("claude", false, "Configure Claude CLI")
	gemini := fs.Bool("gemini", false, "Configure Gemini CLI")
	dryRun := fs.Bool("dry-run", false, "Print intended commands without executing")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	return bootstrap.Bootstrap(logger, bootstrap.Options{
		ConfigPath: *configPath,
		Scope:      *scope,
		ServerName: *serverName,
		ServeCmd:   *serveCmd,
		All:        *all,
		Codex:      *codex,
		Claude:     *claude,
		Gemini:     *gemini,
		DryRun:     *dryRun,
	}, nil)
}

func runAdmin(args []string) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	configPath := fs.String("config", "config/memoryd.yaml", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	// The dashboard only reads, any embedder works here.
	st, err := store.OpenSQLite(context.Background(), cfg.DBPath, embeddings.NewHashProvider(0), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return admin.Run(ctx, st)
}

func buildEmbedder(cfg config.Config, forceHash bool, logger *log.Logger) embeddings.Provider {
	if forceHash {
		return embeddings.NewHashProvider(0)
	}
	p, err := embeddings.NewOllamaProvider(cfg.OllamaHost, cfg.EmbedModel, 0)
	if err != nil {
		logger.Warn("falling back to hash embedder", "error", err)
		return embeddings.NewHashProvider(0)
	}
	return p
}

func setLogLevel(logger *log.Logger, level string) {
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
}

func usage() {
	fmt.Print(`memoryd

Usage:
  memoryd serve [--config path] [--hash-embedder]
  memoryd chat [--config path] [--model name]
  memoryd bootstrap-clis [--config path] [--all|--codex --claude --gemini] [--scope user|project]
  memoryd admin [--config path]
  memoryd version
`)
}

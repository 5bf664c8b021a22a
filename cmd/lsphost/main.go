// Package main is the entry point for the lsphost binary: it instantiates
// a sandboxed analysis engine, bridges its stdio across the shared channel
// and opens a protocol session for a single tracked document.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dshills/lsphost/internal/bridge"
	"github.com/dshills/lsphost/internal/config"
	"github.com/dshills/lsphost/internal/engine"
	"github.com/dshills/lsphost/internal/lsp"
	"github.com/dshills/lsphost/internal/plugin"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath  = flag.String("config", "", "path to TOML configuration file")
		enginePath  = flag.String("engine", "", "path to the compiled engine module (overrides config)")
		pluginPath  = flag.String("plugin", "", "path to a Lua notification plugin")
		filePath    = flag.String("file", "", "document to open and track")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("lsphost %s (%s)\n", version, commit)
		return 0
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if *enginePath != "" {
		cfg.Engine.Path = *enginePath
	}
	if cfg.Engine.Path == "" {
		fmt.Fprintln(os.Stderr, "Error: no engine module configured (use -engine or engine.path)")
		return 1
	}

	log := newLogger(cfg.Logging.Level)
	slog.SetDefault(log)

	loader := engine.NewLoader(cfg.Engine.Path, engine.WithLoaderLogger(log))
	defer loader.Close()

	image, err := loader.Load()
	if err != nil {
		log.Error("engine image not loadable", "error", err)
		return 1
	}
	if cfg.Engine.WatchImage {
		if err := loader.Watch(); err != nil {
			log.Warn("engine image watch unavailable", "error", err)
		}
	}

	// Wire channel -> bridge -> client. The bridge feeds decoded messages
	// straight into the client; the client writes frames back through the
	// bridge into the channel the engine reads from.
	var client *lsp.Client
	br := bridge.New(func(msg []byte) { client.HandleMessage(msg) }, bridge.WithLogger(log))
	client = lsp.NewClient(br,
		lsp.WithClientLogger(log),
		lsp.WithAutoClose(cfg.Session.AutoClose),
	)

	moduleName := filepath.Base(cfg.Engine.Path)
	mod := engine.NewWasmModule(image, moduleName, loader.FS())
	host := engine.NewHost(mod, engine.StdIO{
		Stdin:  br.Stdin(),
		Stdout: br.Stdout(),
		Stderr: br.Stderr(),
	}, engine.WithHostLogger(log))

	if err := host.Start(); err != nil {
		log.Error("engine start failed", "error", err)
		return 1
	}
	br.Bind(bridge.NewChannel(cfg.Engine.ChannelCapacity))
	defer br.Close()

	if *pluginPath != "" {
		script, err := plugin.LoadScript(*pluginPath, plugin.WithScriptLogger(log))
		if err != nil {
			log.Error("plugin not loadable", "error", err)
			return 1
		}
		defer script.Close()
		client.Subscribe(script.Notify)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.RequestTimeout)
	err = client.Open(ctx, lsp.InitializeParams{
		Capabilities: lsp.ClientCapabilities{
			TextDocument: &lsp.TextDocumentClientCapabilities{
				Completion:         &lsp.CompletionClientCapabilities{ContextSupport: true},
				Hover:              &lsp.HoverClientCapabilities{ContentFormat: []string{"markdown", "plaintext"}},
				PublishDiagnostics: &lsp.PublishDiagnosticsClientCaps{VersionSupport: true},
			},
		},
	})
	cancel()
	if err != nil {
		log.Error("session open failed", "error", err)
		return 1
	}
	if info := client.ServerInfo(); info != nil {
		log.Info("session open", "engine", info.Name, "version", info.Version)
	}

	var doc *lsp.Document
	if *filePath != "" {
		doc, err = openDocument(client, *filePath, cfg.Session, log)
		if err != nil {
			log.Error("document open failed", "path", *filePath, "error", err)
			return 1
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		log.Info("shutting down", "signal", sig.String())
	case err := <-host.ExitChannel():
		if err != nil {
			log.Error("engine terminated", "error", err)
		} else {
			log.Info("engine halted")
		}
	case <-loader.Changed():
		log.Info("engine image replaced on disk, shutting down for restart")
	}

	if doc != nil {
		doc.Close()
	}
	ctx, cancel = context.WithTimeout(context.Background(), cfg.Session.RequestTimeout)
	defer cancel()
	if err := client.Close(ctx); err != nil {
		log.Warn("session close incomplete", "error", err)
	}
	return 0
}

// openDocument attaches a tracked document backed by an in-memory surface.
func openDocument(client *lsp.Client, path string, sess config.SessionConfig, log *slog.Logger) (*lsp.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	uri := lsp.DocumentURI("file://" + path)
	surface := &fileSurface{text: string(data)}
	doc := lsp.NewDocument(client, uri, sess.LanguageID, surface,
		lsp.WithDocumentLogger(log),
		lsp.WithCompletionLimit(sess.CompletionMaxResults),
		lsp.WithDiagnosticsCallback(func(diags []lsp.OffsetDiagnostic) {
			for _, d := range diags {
				log.Info("diagnostic",
					"severity", d.Severity.String(),
					"start", d.Start,
					"end", d.End,
					"message", d.Message,
				)
			}
		}),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := doc.Open(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// fileSurface is a minimal in-memory editor surface for the host binary.
type fileSurface struct {
	text string
}

func (s *fileSurface) Text() string {
	return s.text
}

// ApplyEdits applies descending-offset edits to the in-memory text.
func (s *fileSurface) ApplyEdits(edits []lsp.Edit) error {
	runes := []rune(s.text)
	for _, e := range edits {
		if e.Start < 0 || e.End < e.Start || e.End > len(runes) {
			return fmt.Errorf("edit [%d,%d) out of range", e.Start, e.End)
		}
		var b strings.Builder
		b.WriteString(string(runes[:e.Start]))
		b.WriteString(e.Text)
		b.WriteString(string(runes[e.End:]))
		runes = []rune(b.String())
	}
	s.text = string(runes)
	return nil
}

// newLogger builds a text logger at the configured level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

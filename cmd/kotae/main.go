// Package main is the kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/cli"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/fileid"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so development runs pick up the
// project config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "ingest":
		runIngest()
	case "documents":
		runDocuments()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "wipe":
		runWipe()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`kotae - ask questions about your documents

Usage:
  kotae server    [-config path] [-debug]        run the API server
  kotae ask       [flags] <question>             ask a question
  kotae ingest    [-config path] <file-or-dir>   ingest documents
  kotae documents [-config path] [-output fmt]   list indexed documents
  kotae delete    [-config path] <doc-id|path>   remove a document from the index
  kotae status    [-config path]                 show index statistics
  kotae wipe      [-config path] [-yes]          drop the whole index
  kotae version                                  print version
`)
}

// components bundles everything the pipeline needs, for commands that run
// against the index directly rather than through the HTTP API.
type components struct {
	Registry storage.Registry
	Embedder embedding.Embedder
	Store    vector.Store
	Ingestor *ingest.Ingestor
	Engine   *rag.Engine
}

func (c *components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	registry, err := storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		embedder = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			Endpoint:          cfg.Embedding.Endpoint,
			APIKey:            config.APIKey(cfg.Embedding.APIKeyEnv),
			Model:             cfg.Embedding.Model,
			Dimensions:        cfg.Embedding.Dimensions,
			MaxInputChars:     cfg.Embedding.MaxInputChars,
			Policy:            embedding.OversizePolicy(cfg.Embedding.OversizePolicy),
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		})
	}
	embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	// A wrong dimensions setting must fail here, not after index writes.
	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := embedder.Ping(pingCtx); err != nil {
		_ = registry.Close()
		return nil, fmt.Errorf("embedding service check failed: %w", err)
	}

	store, err := vector.NewStore(cfg.Vector.Store, cfg.Vector.Host, cfg.Vector.Port,
		cfg.Vector.Collection, cfg.Embedding.Dimensions)
	if err != nil {
		_ = registry.Close()
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		_ = store.Close()
		_ = registry.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	generator, err := generate.New(generate.Config{
		Provider: cfg.Generation.Provider,
		APIKey:   config.APIKey(cfg.Generation.APIKeyEnv),
		Model:    cfg.Generation.Model,
		BaseURL:  cfg.Generation.Endpoint,
	})
	if err != nil {
		_ = store.Close()
		_ = registry.Close()
		return nil, err
	}

	chunker := ingest.NewChunker(cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkOverlap)
	ingestor := ingest.NewIngestor(chunker, embedder, store, registry,
		ingest.WithLogger(logger),
		ingest.WithBatchSize(cfg.Embedding.BatchSize),
		ingest.WithFanout(cfg.Pipeline.Fanout),
		ingest.WithRetry(cfg.Pipeline.RetryPolicy()),
	)

	retriever := rag.NewRetriever(embedder, store, logger)
	engine := rag.NewEngine(retriever, generator, rag.Config{
		TopK:             cfg.Pipeline.TopK,
		ContextBudget:    cfg.Pipeline.ContextBudget,
		MaxRounds:        cfg.Pipeline.MaxRounds,
		RescoreThreshold: cfg.Pipeline.RescoreThreshold,
		MaxTokens:        cfg.Generation.MaxTokens,
		Retry:            cfg.Pipeline.RetryPolicy(),
	}, rag.WithLogger(logger))

	return &components{
		Registry: registry,
		Embedder: embedder,
		Store:    store,
		Ingestor: ingestor,
		Engine:   engine,
	}, nil
}

func mustSetup(configPath string) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedPath),
		zap.Bool("debug", debugMode))

	ctx := context.Background()
	comps, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize components", zap.Error(err))
	}
	defer comps.Close()

	srv := server.NewServer(comps.Engine, comps.Ingestor, comps.Registry, comps.Store, cfg, logger)

	watchCtx, watchCancel := context.WithCancel(ctx)
	defer watchCancel()
	if len(cfg.Watch.Directories) > 0 || cfg.Storage.CorpusDir != "" {
		roots := cfg.Watch.Directories
		if cfg.Storage.CorpusDir != "" {
			roots = append(roots, cfg.Storage.CorpusDir)
		}
		watchSvc := watcher.New(
			roots,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				if _, err := comps.Ingestor.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(path string) {
				abs, err := filepath.Abs(path)
				if err != nil {
					return
				}
				if _, err := comps.Ingestor.DeleteDocument(context.Background(), fileid.FileDocID(abs)); err != nil {
					logger.Warn("watch delete failed", zap.String("path", path), zap.Error(err))
				}
			},
			watcher.WithLogger(logger),
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
		go watchSvc.SyncExistingFiles()
		srv.SetWatcher(watchSvc, resolvedPath)
	}

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	watchCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func parseOutputFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text", "":
		return cli.OutputText
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "http://localhost:8080", "server URL (empty = run against the index directly)")
	topK := fs.Int("top-k", 0, "passages to retrieve (0 = config default)")
	source := fs.String("source", "", "restrict retrieval to one source document")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	req := &models.AskRequest{Question: question, TopK: *topK, Source: *source}

	var resp *models.AskResponse
	if *serverURL != "" {
		var err error
		resp, err = askViaHTTP(*serverURL, req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	} else {
		cfg, _, logger := mustSetup(*configPath)
		defer logger.Sync()
		comps, err := initializeComponents(context.Background(), cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
			os.Exit(1)
		}
		defer comps.Close()
		resp, err = comps.Engine.Ask(context.Background(), req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	}
	_ = cli.WriteAnswer(os.Stdout, resp, format)
}

func askViaHTTP(serverURL string, req *models.AskRequest) (*models.AskResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpResp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/ask",
		"application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("is the server running? %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}
	if httpResp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s", apiErr.Error)
		}
		return nil, fmt.Errorf("server returned %d", httpResp.StatusCode)
	}
	var resp models.AskResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kotae ingest [flags] <file-or-dir>...")
		os.Exit(1)
	}
	format := parseOutputFormat(*outputFormat)

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()
	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	ctx := context.Background()
	var reports []*models.IngestReport
	failed := false
	for _, target := range fs.Args() {
		info, err := os.Stat(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", target, err)
			failed = true
			continue
		}
		if info.IsDir() {
			dirReports, err := comps.Ingestor.IngestDirectory(ctx, target)
			reports = append(reports, dirReports...)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%v\n", err)
				failed = true
			}
			continue
		}
		report, err := comps.Ingestor.IngestFile(ctx, target)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", target, err)
			failed = true
		}
	}

	_ = cli.WriteIngestReports(os.Stdout, reports, format)
	if failed {
		os.Exit(1)
	}
}

func runDocuments() {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 100, "max documents to list")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])
	format := parseOutputFormat(*outputFormat)

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()
	registry, err := storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open registry: %v\n", err)
		os.Exit(1)
	}
	defer registry.Close()

	docs, err := registry.List(context.Background(), 0, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list documents: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteDocuments(os.Stdout, docs, format)
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Usage: kotae delete [flags] <doc-id|path>")
		os.Exit(1)
	}
	target := fs.Arg(0)
	docID := target
	if !strings.HasPrefix(target, "doc:") {
		abs, err := filepath.Abs(target)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid path: %v\n", err)
			os.Exit(1)
		}
		docID = fileid.FileDocID(abs)
	}

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()
	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	removed, err := comps.Ingestor.DeleteDocument(context.Background(), docID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deleted %s (%d chunks removed)\n", docID, removed)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()
	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	ctx := context.Background()
	docCount, err := comps.Registry.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	chunkCount, err := comps.Store.Count(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("documents: %d\nchunks:    %d\n", docCount, chunkCount)
	fmt.Printf("store:     %s (%s, %d dims)\n", cfg.Vector.Store, cfg.Vector.Collection, cfg.Embedding.Dimensions)
	if diskBytes, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath); err == nil {
		fmt.Printf("disk:      %d bytes\n", diskBytes)
	}
}

func runWipe() {
	fs := flag.NewFlagSet("wipe", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	if !*yes {
		fmt.Print("This removes every indexed document. Type 'yes' to continue: ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "yes" {
			fmt.Println("aborted")
			return
		}
	}

	cfg, _, logger := mustSetup(*configPath)
	defer logger.Sync()
	comps, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer comps.Close()

	if err := comps.Ingestor.Wipe(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Wipe failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("index wiped")
}

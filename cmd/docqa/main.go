package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/local"
	embopenai "docqa/internal/embedding/openai"
	genopenai "docqa/internal/generation/openai"
	"docqa/internal/generation/static"
	"docqa/internal/retriever"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	"docqa/internal/synthesizer"
	"docqa/internal/tui"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/pgvector"
	"docqa/internal/vectorstore/qdrant"
)

func main() {
	_ = godotenv.Load()

	var (
		cfgPath = flag.String("config", "", "Path to YAML config (default: ./config.yaml, then ~/.config/docqa/config.yaml)")
		ask     = flag.String("ask", "", "Ask a single question, print the answer and exit")
		verbose = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()
	inputs := flag.Args()
	if len(inputs) == 0 {
		fmt.Println("Usage: docqa [--config=config.yaml] [--ask \"question\"] doc1.md [doc2.txt ...]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var cfg *config.AppConfig
	var err error
	if *cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(*cfgPath)
	}
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx := context.Background()
	assistant, err := assemble(ctx, cfg)
	if err != nil {
		log.Fatalf("assemble pipeline: %v", err)
	}

	docs, err := loadDocuments(inputs)
	if err != nil {
		log.Fatalf("load documents: %v", err)
	}
	if len(docs) == 0 {
		log.Fatal("no .txt or .md documents found")
	}

	outcomes := assistant.IngestAll(ctx, docs)
	indexed := 0
	var corpus strings.Builder
	for i, out := range outcomes {
		if out.Err != nil {
			slog.Error("ingest failed", "document_id", out.Result.DocumentID, "error", out.Err)
			continue
		}
		indexed++
		corpus.WriteString(docs[i].Text)
		corpus.WriteString("\n")
	}
	if indexed == 0 {
		log.Fatal("no documents could be indexed")
	}

	if *ask != "" {
		answer, err := assistant.Ask(ctx, *ask, cfg.Retriever.TopK)
		if err != nil {
			log.Fatalf("ask: %v", err)
		}
		fmt.Println(answer.Text)
		for i, src := range answer.Sources {
			fmt.Printf("  %d. %s (%s)\n", i+1, src.Title, src.URL)
		}
		return
	}

	sum := summarizer.NewFrequency()
	summary, err := sum.Summarize(corpus.String(), cfg.Summarizer.MaxSentences)
	if err != nil {
		summary = fmt.Sprintf("%d documents indexed.", indexed)
	}

	m := tui.New(assistant, cfg.Retriever.TopK, summary)
	if _, err := tea.NewProgram(m).Run(); err != nil {
		log.Fatal(err)
	}
}

// assemble builds the pipeline components selected by the configuration.
func assemble(ctx context.Context, cfg *config.AppConfig) (*service.Assistant, error) {
	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "local":
		emb = local.New(cfg.Embedder.Dimension)
	case "openai":
		oc := cfg.Embedder.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           oc.BaseURL,
			APIKeyEnv:         oc.APIKeyEnv,
			Model:             oc.Model,
			Timeout:           time.Duration(oc.TimeoutSecs) * time.Second,
			BatchSize:         oc.BatchSize,
			MaxRetries:        oc.MaxRetries,
			RequestsPerSecond: oc.RequestsPerSecond,
		})
		if err != nil {
			return nil, err
		}
		emb = client
	}

	metric, err := vectorstore.ParseMetric(cfg.Store.Metric)
	if err != nil {
		return nil, err
	}
	var store domain.VectorStore
	switch cfg.Store.Type {
	case "memory":
		store = memory.New(metric)
	case "qdrant":
		qc := cfg.Store.Qdrant
		store, err = qdrant.New(qdrant.Config{
			URL:        qc.URL,
			APIKey:     qc.APIKey,
			Collection: qc.Collection,
			Metric:     metric,
			Timeout:    time.Duration(qc.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
	case "pgvector":
		pc := cfg.Store.Postgres
		store, err = pgvector.New(ctx, pgvector.Config{DSN: pc.DSN, Table: pc.Table, Metric: metric})
		if err != nil {
			return nil, err
		}
	}

	var gen domain.Generator
	switch cfg.Generator.Type {
	case "static":
		gen = static.New()
	case "openai":
		oc := cfg.Generator.OpenAI
		if oc == nil {
			oc = &config.OpenAIConfig{}
		}
		gen, err = genopenai.NewClient(genopenai.Config{
			BaseURL:     oc.BaseURL,
			APIKeyEnv:   oc.APIKeyEnv,
			Model:       oc.Model,
			Timeout:     time.Duration(oc.TimeoutSecs) * time.Second,
			MaxRetries:  oc.MaxRetries,
			Temperature: oc.Temperature,
			MaxTokens:   oc.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
	}

	ch, err := chunker.New(cfg.Chunker.MaxChars, cfg.Chunker.OverlapChars)
	if err != nil {
		return nil, err
	}
	ret, err := retriever.New(emb, store, cfg.Retriever.Oversample)
	if err != nil {
		return nil, err
	}
	syn, err := synthesizer.New(gen, cfg.Synthesizer.PromptBudget, cfg.Synthesizer.SystemPrompt)
	if err != nil {
		return nil, err
	}
	return service.New(ch, emb, store, ret, syn), nil
}

// loadDocuments reads .txt and .md files (globs allowed) into Documents.
// The document id derives from the file path, so re-running the command
// over an unchanged corpus re-uses the existing index entries.
func loadDocuments(paths []string) ([]domain.Document, error) {
	var docs []domain.Document
	for _, p := range paths {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			ext := strings.ToLower(filepath.Ext(m))
			if ext != ".txt" && ext != ".md" {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, err
			}
			abs, err := filepath.Abs(m)
			if err != nil {
				abs = m
			}
			fetched := time.Now().UTC()
			if info, err := os.Stat(m); err == nil {
				fetched = info.ModTime().UTC()
			}
			title := strings.TrimSuffix(filepath.Base(m), filepath.Ext(m))
			docs = append(docs, domain.Document{
				ID:        service.DeriveID(abs),
				Text:      string(data),
				Title:     title,
				URL:       "file://" + abs,
				FetchedAt: fetched,
			})
		}
	}
	return docs, nil
}

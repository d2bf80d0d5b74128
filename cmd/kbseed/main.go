// kbseed loads knowledge entries and response templates from a YAML file,
// embeds the knowledge and writes everything to the configured stores.
//
// Usage:
//
//	kbseed -file seed.yaml -reset -workers 8
//
// Configuration is read the same way as the API server (ENV selects config/<env>.yaml).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/bootstrap"
	"github.com/kailas-cloud/kbroute/internal/config"
	logpkg "github.com/kailas-cloud/kbroute/internal/logger"
	knowledgerepo "github.com/kailas-cloud/kbroute/internal/repository/knowledge"
	templaterepo "github.com/kailas-cloud/kbroute/internal/repository/template"
	qdrantTransport "github.com/kailas-cloud/kbroute/internal/transport/qdrant"
)

type flags struct {
	file      string
	reset     bool
	workers   int
	batchSize int
}

func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.file, "file", "seed.yaml", "YAML file with knowledge entries and templates")
	flag.BoolVar(&f.reset, "reset", false, "drop existing knowledge, vectors and templates first")
	flag.IntVar(&f.workers, "workers", 8, "parallel embedding requests")
	flag.IntVar(&f.batchSize, "batch-size", 100, "knowledge entries per write")
	flag.Parse()
	return f
}

func main() {
	fl := parseFlags()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, fl); err != nil {
		cancel()
		log.Fatal(err)
	}
}

func run(ctx context.Context, fl flags) error {
	start := time.Now()
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	file, err := loadSeedFile(fl.file)
	if err != nil {
		return err
	}
	logger.Info("Seed file loaded",
		zap.String("file", fl.file),
		zap.Int("knowledge", len(file.Knowledge)),
		zap.Int("templates", len(file.Templates)),
	)

	store, err := bootstrap.OpenStore(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	emb, err := bootstrap.BuildEmbedder(&cfg, store, logger)
	if err != nil {
		return err
	}

	s := &seeder{
		knowledge: knowledgerepo.New(store, cfg.Storage.KeyPrefix, cfg.Embedding.Dimensions, knowledgerepo.HNSWConfig{
			M:           cfg.Vector.HNSWM,
			EFConstruct: cfg.Vector.HNSWEFConstruct,
		}),
		templates: templaterepo.New(store, cfg.Storage.KeyPrefix, time.Minute),
		embedder:  emb.Client,
		dims:      cfg.Embedding.Dimensions,
		hnswM:     cfg.Vector.HNSWM,
		hnswEF:    cfg.Vector.HNSWEFConstruct,
		workers:   fl.workers,
		batchSize: max(fl.batchSize, 1),
		reset:     fl.reset,
		logger:    logger,
	}
	if cfg.Vector.Backend == "qdrant" {
		qs, err := qdrantTransport.New(cfg.Qdrant.Addr, cfg.Qdrant.Collection)
		if err != nil {
			return err
		}
		defer func() { _ = qs.Close() }()
		s.vectors = qs
	}

	rep, err := s.run(ctx, file)
	if err != nil {
		return err
	}
	logger.Info("Seeding complete",
		zap.Int("entries", rep.Entries),
		zap.Int("embedded", rep.Embedded),
		zap.Int("embed_failures", rep.EmbedFailures),
		zap.Int("templates", rep.Templates),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

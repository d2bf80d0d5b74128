package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/kbroute/internal/domain/knowledge"
	"github.com/kailas-cloud/kbroute/internal/domain/template"
)

// seedFile is the YAML document loaded by kbseed.
type seedFile struct {
	Knowledge []knowledge.Entry   `yaml:"knowledge"`
	Templates []template.Template `yaml:"templates"`
}

type knowledgeStore interface {
	Reset(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
	Put(ctx context.Context, entries []knowledge.Entry) error
}

type vectorStore interface {
	Reset(ctx context.Context) error
	EnsureCollection(ctx context.Context, dims, m, efConstruct int) error
	Put(ctx context.Context, entries []knowledge.Entry) error
}

type templateStore interface {
	Reset(ctx context.Context) error
	Put(ctx context.Context, ts []template.Template) error
}

type embedder interface {
	Embed(ctx context.Context, text string, dims int) ([]float32, error)
}

// report summarizes one seeding run.
type report struct {
	Entries        int
	Embedded       int
	EmbedFailures  int
	Templates      int
	VectorBackends int
}

type seeder struct {
	knowledge knowledgeStore
	vectors   vectorStore // nil unless a separate ANN backend is configured
	templates templateStore
	embedder  embedder
	dims      int
	hnswM     int
	hnswEF    int
	workers   int
	batchSize int
	reset     bool
	logger    *zap.Logger
}

func loadSeedFile(path string) (*seedFile, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range f.Knowledge {
		if err := f.Knowledge[i].Validate(); err != nil {
			return nil, fmt.Errorf("knowledge entry %d: %w", i, err)
		}
	}
	for i := range f.Templates {
		if err := f.Templates[i].Validate(); err != nil {
			return nil, fmt.Errorf("template %d: %w", f.Templates[i].ID, err)
		}
	}
	return &f, nil
}

func (s *seeder) run(ctx context.Context, f *seedFile) (report, error) {
	var rep report

	if s.reset {
		if err := s.resetAll(ctx); err != nil {
			return rep, err
		}
		s.logger.Info("Stores reset")
	}

	if err := s.knowledge.EnsureIndex(ctx); err != nil {
		return rep, fmt.Errorf("ensure index: %w", err)
	}
	if s.vectors != nil {
		if err := s.vectors.EnsureCollection(ctx, s.dims, s.hnswM, s.hnswEF); err != nil {
			return rep, fmt.Errorf("ensure collection: %w", err)
		}
		rep.VectorBackends = 1
	}

	embedded, failed, err := s.embed(ctx, f.Knowledge)
	if err != nil {
		return rep, err
	}
	rep.Entries, rep.Embedded, rep.EmbedFailures = len(f.Knowledge), embedded, failed

	for start := 0; start < len(f.Knowledge); start += s.batchSize {
		end := min(start+s.batchSize, len(f.Knowledge))
		batch := f.Knowledge[start:end]
		if err := s.knowledge.Put(ctx, batch); err != nil {
			return rep, fmt.Errorf("put knowledge [%d:%d]: %w", start, end, err)
		}
		if s.vectors != nil {
			if err := s.vectors.Put(ctx, batch); err != nil {
				return rep, fmt.Errorf("put vectors [%d:%d]: %w", start, end, err)
			}
		}
		s.logger.Info("Knowledge batch stored", zap.Int("from", start), zap.Int("to", end))
	}

	if err := s.templates.Put(ctx, f.Templates); err != nil {
		return rep, fmt.Errorf("put templates: %w", err)
	}
	rep.Templates = len(f.Templates)
	return rep, nil
}

func (s *seeder) resetAll(ctx context.Context) error {
	if err := s.knowledge.Reset(ctx); err != nil {
		return fmt.Errorf("reset knowledge: %w", err)
	}
	if s.vectors != nil {
		if err := s.vectors.Reset(ctx); err != nil {
			return fmt.Errorf("reset vectors: %w", err)
		}
	}
	if err := s.templates.Reset(ctx); err != nil {
		return fmt.Errorf("reset templates: %w", err)
	}
	return nil
}

// embed fills entry vectors in place. An entry whose embedding fails is kept
// without a vector; it stays reachable by lexical search.
func (s *seeder) embed(ctx context.Context, entries []knowledge.Entry) (embedded, failed int, err error) {
	var ok, bad atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.workers, 1))
	for i := range entries {
		e := &entries[i]
		g.Go(func() error {
			vec, err := s.embedder.Embed(gctx, e.EmbeddingText(), s.dims)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				bad.Add(1)
				s.logger.Warn("Embedding failed, entry stored without vector",
					zap.String("id", e.ID), zap.Error(err))
				return nil
			}
			e.Vector = vec
			ok.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, fmt.Errorf("embed knowledge: %w", err)
	}
	return int(ok.Load()), int(bad.Load()), nil
}

package knowledge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/kbroute/internal/db"
	"github.com/kailas-cloud/kbroute/internal/domain/knowledge"
	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
)

// Hash field names of a knowledge entry.
const (
	fieldTitle    = "title"
	fieldContent  = "content"
	fieldCategory = "category"
	fieldVector   = "vector"
)

var returnFields = []string{fieldTitle, fieldContent, fieldCategory}

// store is the consumer interface for knowledge entries (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string, limit int) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	SupportsTextSearch(ctx context.Context) bool
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// HNSWConfig holds index build parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores knowledge entries as hashes under <prefix>knowledge:<id>.
type Repo struct {
	store  store
	prefix string
	dims   int
	hnsw   HNSWConfig
}

// New creates a knowledge repository.
func New(s store, keyPrefix string, dims int, hnsw HNSWConfig) *Repo {
	return &Repo{store: s, prefix: keyPrefix, dims: dims, hnsw: hnsw}
}

// IndexName returns the FT index over knowledge hashes.
func (r *Repo) IndexName() string { return r.prefix + "knowledge:idx" }

func (r *Repo) keyPrefix() string { return r.prefix + "knowledge:" }

func (r *Repo) key(id string) string { return r.keyPrefix() + id }

// IndexDefinition returns the knowledge index schema.
// Only hashes carrying a vector field take part in KNN queries.
func (r *Repo) IndexDefinition() (*db.IndexDefinition, error) {
	def, err := db.NewIndex(r.IndexName()).
		Prefix(r.keyPrefix()).
		TextWeighted(fieldTitle, 2).
		Text(fieldContent).
		Tag(fieldCategory).
		VectorHNSW(fieldVector, r.dims, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build knowledge index: %w", err)
	}
	return def, nil
}

// EnsureIndex creates the knowledge index unless it already exists.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def, err := r.IndexDefinition()
	if err != nil {
		return err
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// Reset drops the index and deletes every knowledge hash.
func (r *Repo) Reset(ctx context.Context) error {
	if err := r.store.DropIndex(ctx, r.IndexName()); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
		return fmt.Errorf("drop index: %w", err)
	}
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*", 0)
	if err != nil {
		return fmt.Errorf("scan knowledge keys: %w", err)
	}
	for _, k := range keys {
		if err := r.store.Del(ctx, k); err != nil {
			return fmt.Errorf("del %s: %w", k, err)
		}
	}
	return nil
}

// Put stores entries in one pipelined round-trip. Entries without a vector are
// still reachable by text search and substring scan.
func (r *Repo) Put(ctx context.Context, entries []knowledge.Entry) error {
	items := make([]db.HashSetItem, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		if err := e.Validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		fields := map[string]string{
			fieldTitle:   e.Title,
			fieldContent: e.Content,
		}
		if e.Category != "" {
			fields[fieldCategory] = e.Category
		}
		if len(e.Vector) > 0 {
			if len(e.Vector) != r.dims {
				return fmt.Errorf("entry %s: vector has %d dims, index expects %d", e.ID, len(e.Vector), r.dims)
			}
			fields[fieldVector] = vectorToBytes(e.Vector)
		}
		items = append(items, db.HashSetItem{Key: r.key(e.ID), Fields: fields})
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store knowledge: %w", err)
	}
	return nil
}

// SupportsTextSearch proxies the capability check from the store.
func (r *Repo) SupportsTextSearch(ctx context.Context) bool {
	return r.store.SupportsTextSearch(ctx)
}

// SearchText runs an OR query of terms over title and content.
func (r *Repo) SearchText(ctx context.Context, terms []string, limit int) ([]hit.Hit, error) {
	sr, err := r.store.SearchText(ctx, &db.TextQuery{
		IndexName:    r.IndexName(),
		Fields:       []string{fieldTitle, fieldContent},
		Terms:        terms,
		TopK:         limit,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search text: %w", err)
	}
	return r.toHits(sr, origin.Lexical), nil
}

// SearchVector runs a KNN query with the given HNSW search breadth.
func (r *Repo) SearchVector(ctx context.Context, vector []float32, limit, ef int) ([]hit.Hit, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.IndexName(),
		Vector:       vector,
		K:            limit,
		EFRuntime:    ef,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn: %w", err)
	}
	return r.toHits(sr, origin.Vector), nil
}

// ScanAll loads up to limit entries (without vectors) for in-process matching.
func (r *Repo) ScanAll(ctx context.Context, limit int) ([]knowledge.Entry, error) {
	keys, err := r.store.Scan(ctx, r.keyPrefix()+"*", limit)
	if err != nil {
		return nil, fmt.Errorf("scan knowledge: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	maps, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("load knowledge: %w", err)
	}

	entries := make([]knowledge.Entry, 0, len(maps))
	for i, m := range maps {
		if len(m) == 0 {
			continue // deleted between SCAN and HGETALL
		}
		entries = append(entries, knowledge.Entry{
			ID:       strings.TrimPrefix(keys[i], r.keyPrefix()),
			Title:    m[fieldTitle],
			Content:  m[fieldContent],
			Category: m[fieldCategory],
		})
	}
	return entries, nil
}

func (r *Repo) toHits(sr *db.SearchResult, o origin.Origin) []hit.Hit {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}
	hits := make([]hit.Hit, 0, len(sr.Entries))
	for i, e := range sr.Entries {
		hits = append(hits, hit.New(
			strings.TrimPrefix(e.Key, r.keyPrefix()),
			e.Score,
			e.Fields[fieldTitle],
			e.Fields[fieldContent],
			e.Fields[fieldCategory],
			o,
			i+1,
		))
	}
	return hits
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

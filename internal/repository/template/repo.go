// Package template stores response templates as JSON documents and serves
// the approved set from a refreshed in-process snapshot.
package template

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/kbroute/internal/db"
	"github.com/kailas-cloud/kbroute/internal/domain"
	domtpl "github.com/kailas-cloud/kbroute/internal/domain/template"
)

const snapshotKey = "approved"

// store is the consumer interface for templates (ISP).
type store interface {
	JSONSetMulti(ctx context.Context, items []db.JSONSetItem) error
	JSONGetMulti(ctx context.Context, keys []string) ([][]byte, error)
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string, limit int) ([]string, error)
}

// Repo reads and writes templates at <prefix>template:<id>.
type Repo struct {
	store     store
	keyPrefix string
	snapshot  *expirable.LRU[string, []domtpl.Template]
}

// New creates a template repository. Approved templates are re-read from the
// store at most once per refresh interval.
func New(s store, keyPrefix string, refresh time.Duration) *Repo {
	return &Repo{
		store:     s,
		keyPrefix: keyPrefix,
		snapshot:  expirable.NewLRU[string, []domtpl.Template](1, nil, refresh),
	}
}

func (r *Repo) key(id int64) string {
	return r.keyPrefix + "template:" + strconv.FormatInt(id, 10)
}

func (r *Repo) pattern() string { return r.keyPrefix + "template:*" }

// Approved returns every approved template sorted by selection order.
// The returned slice is shared; callers must not modify it.
func (r *Repo) Approved(ctx context.Context) ([]domtpl.Template, error) {
	if ts, ok := r.snapshot.Get(snapshotKey); ok {
		return ts, nil
	}

	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	approved := make([]domtpl.Template, 0, len(all))
	for i := range all {
		if all[i].IsApproved() {
			approved = append(approved, all[i])
		}
	}
	sort.SliceStable(approved, func(i, j int) bool { return domtpl.Less(&approved[i], &approved[j]) })

	r.snapshot.Add(snapshotKey, approved)
	return approved, nil
}

// List reads every stored template regardless of status, ordered by id.
func (r *Repo) List(ctx context.Context) ([]domtpl.Template, error) {
	keys, err := r.store.Scan(ctx, r.pattern(), 0)
	if err != nil {
		return nil, fmt.Errorf("scan templates: %w", err)
	}
	if len(keys) == 0 {
		return []domtpl.Template{}, nil
	}

	docs, err := r.store.JSONGetMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get templates: %w", err)
	}

	out := make([]domtpl.Template, 0, len(docs))
	for i, raw := range docs {
		if raw == nil {
			continue
		}
		var t domtpl.Template
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("decode template %s: %w", keys[i], err)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Put stores templates after checking that no (category, intent, tone) slot
// ends up with two approved templates.
func (r *Repo) Put(ctx context.Context, ts []domtpl.Template) error {
	if len(ts) == 0 {
		return nil
	}
	for i := range ts {
		if err := ts[i].Validate(); err != nil {
			return fmt.Errorf("template %d: %w", ts[i].ID, err)
		}
	}

	existing, err := r.List(ctx)
	if err != nil {
		return err
	}
	if err := checkApprovedSlots(existing, ts); err != nil {
		return err
	}

	items := make([]db.JSONSetItem, len(ts))
	for i := range ts {
		data, err := json.Marshal(&ts[i])
		if err != nil {
			return fmt.Errorf("marshal template %d: %w", ts[i].ID, err)
		}
		items[i] = db.JSONSetItem{Key: r.key(ts[i].ID), Path: "$", Data: data}
	}
	if err := r.store.JSONSetMulti(ctx, items); err != nil {
		return fmt.Errorf("store templates: %w", err)
	}

	r.Invalidate()
	return nil
}

// Reset deletes every stored template.
func (r *Repo) Reset(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.pattern(), 0)
	if err != nil {
		return fmt.Errorf("scan templates: %w", err)
	}
	for _, k := range keys {
		if err := r.store.Del(ctx, k); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	r.Invalidate()
	return nil
}

// Invalidate drops the approved snapshot.
func (r *Repo) Invalidate() { r.snapshot.Purge() }

// checkApprovedSlots merges incoming over existing by id and rejects a second
// approved template in the same slot.
func checkApprovedSlots(existing, incoming []domtpl.Template) error {
	byID := make(map[int64]*domtpl.Template, len(existing)+len(incoming))
	for i := range existing {
		byID[existing[i].ID] = &existing[i]
	}
	for i := range incoming {
		byID[incoming[i].ID] = &incoming[i]
	}

	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	owner := make(map[string]int64)
	for _, id := range ids {
		t := byID[id]
		if !t.IsApproved() {
			continue
		}
		if prev, ok := owner[t.Slot()]; ok {
			return fmt.Errorf("templates %d and %d both approved for %s: %w",
				prev, id, t.Slot(), domain.ErrInvalidRecord)
		}
		owner[t.Slot()] = id
	}
	return nil
}

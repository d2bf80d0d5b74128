package template

import (
	"context"
	"path"

	"github.com/kailas-cloud/kbroute/internal/db"
)

// mockStore keeps JSON documents in memory and counts scans.
type mockStore struct {
	docs      map[string][]byte
	scanCalls int
	scanErr   error
	setErr    error
}

func newMockStore() *mockStore {
	return &mockStore{docs: make(map[string][]byte)}
}

func (m *mockStore) JSONSetMulti(_ context.Context, items []db.JSONSetItem) error {
	if m.setErr != nil {
		return m.setErr
	}
	for _, it := range items {
		m.docs[it.Key] = it.Data
	}
	return nil
}

func (m *mockStore) JSONGetMulti(_ context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = m.docs[k]
	}
	return out, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.docs, key)
	return nil
}

func (m *mockStore) Scan(_ context.Context, pattern string, _ int) ([]string, error) {
	m.scanCalls++
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	var keys []string
	for k := range m.docs {
		if ok, _ := path.Match(pattern, k); ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

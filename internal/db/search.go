package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	Vector       []float32
	K            int
	EFRuntime    int // HNSW search breadth; 0 keeps the index default
	ReturnFields []string
}

// TextQuery is the input for full-text search. Terms are OR-ed.
type TextQuery struct {
	IndexName    string
	Fields       []string // restrict matching to these TEXT fields; empty = all
	Terms        []string
	TopK         int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

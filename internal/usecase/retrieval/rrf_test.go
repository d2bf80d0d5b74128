package retrieval

import (
	"math"
	"reflect"
	"testing"

	"github.com/kailas-cloud/kbroute/internal/domain/search/hit"
	"github.com/kailas-cloud/kbroute/internal/domain/search/origin"
)

func hits(o origin.Origin, ids ...string) []hit.Hit {
	out := make([]hit.Hit, len(ids))
	for i, id := range ids {
		out[i] = hit.New(id, 1-float64(i)*0.1, "title-"+id, "content-"+id, "", o, i+1)
	}
	return out
}

func ids(hs []hit.Hit) []string {
	out := make([]string, len(hs))
	for i := range hs {
		out[i] = hs[i].ID()
	}
	return out
}

func TestFuseRRF_DisjointLists(t *testing.T) {
	results := fuseRRF(hits(origin.Lexical, "a", "b"), hits(origin.Vector, "c", "d"), 10)

	// Equal ranks tie; lexical comes first, then rank.
	want := []string{"a", "c", "b", "d"}
	if got := ids(results); !reflect.DeepEqual(got, want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
}

func TestFuseRRF_OverlappingLists(t *testing.T) {
	lex := hits(origin.Lexical, "b", "d", "a")
	vec := hits(origin.Vector, "a", "b", "c")

	results := fuseRRF(lex, vec, 10)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}

	// "b": 1/61 + 1/62; "a": 1/63 + 1/61
	if results[0].ID() != "b" || results[1].ID() != "a" {
		t.Errorf("order = %v", ids(results))
	}
	want := 1.0/61 + 1.0/62
	if math.Abs(results[0].Score()-want) > 1e-12 {
		t.Errorf("score = %v, want %v", results[0].Score(), want)
	}
	if results[0].Origin() != origin.Lexical {
		t.Errorf("shared hit must keep lexical fields, got %s", results[0].Origin())
	}
}

func TestFuseRRF_TopRankInBothOutranksTopInOne(t *testing.T) {
	results := fuseRRF(hits(origin.Lexical, "x", "y"), hits(origin.Vector, "x", "z"), 10)
	if results[0].ID() != "x" {
		t.Fatalf("expected x first, got %v", ids(results))
	}
	if results[0].Score() <= results[1].Score() {
		t.Errorf("overlap must score higher")
	}
}

func TestFuseRRF_UniqueIDsAndDescending(t *testing.T) {
	results := fuseRRF(hits(origin.Lexical, "a", "b", "c", "d"), hits(origin.Vector, "d", "c", "e"), 10)
	seen := map[string]bool{}
	for i := range results {
		if seen[results[i].ID()] {
			t.Fatalf("duplicate id %s", results[i].ID())
		}
		seen[results[i].ID()] = true
		if i > 0 && results[i].Score() > results[i-1].Score() {
			t.Fatalf("not descending at %d", i)
		}
	}
}

func TestFuseRRF_Deterministic(t *testing.T) {
	lex := hits(origin.Lexical, "a", "b", "c")
	vec := hits(origin.Vector, "c", "e", "a")
	first := fuseRRF(lex, vec, 4)
	for i := 0; i < 50; i++ {
		if got := fuseRRF(lex, vec, 4); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %v vs %v", i, ids(got), ids(first))
		}
	}
}

func TestFuseRRF_Truncates(t *testing.T) {
	results := fuseRRF(hits(origin.Lexical, "a", "b", "c"), hits(origin.Vector, "d", "e"), 2)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
}

func TestFuseRRF_EmptyInputs(t *testing.T) {
	t.Run("both empty", func(t *testing.T) {
		if results := fuseRRF(nil, nil, 10); len(results) != 0 {
			t.Fatalf("expected 0 results, got %d", len(results))
		}
	})

	t.Run("vector empty returns lexical slice", func(t *testing.T) {
		lex := hits(origin.Lexical, "a", "b", "c")
		results := fuseRRF(lex, nil, 2)
		if got := ids(results); !reflect.DeepEqual(got, []string{"a", "b"}) {
			t.Fatalf("got %v", got)
		}
		if results[0].Score() != lex[0].Score() {
			t.Errorf("degraded path must keep adapter scores")
		}
	})

	t.Run("lexical empty returns vector slice", func(t *testing.T) {
		results := fuseRRF(nil, hits(origin.Vector, "x"), 10)
		if len(results) != 1 || results[0].ID() != "x" {
			t.Fatalf("got %v", ids(results))
		}
	})
}

package vector

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("unexpected order: %+v", results)
	}
	if results[0].Score < results[1].Score {
		t.Error("scores should be non-increasing")
	}

	all, err := idx.Search(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("k larger than size should return all %d entries, got %d", 3, len(all))
	}
}

func TestMemoryIndex_tiesKeepInsertionOrder(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	ids := []string{"c0", "c1", "c2", "c3", "c4"}
	vecs := [][]float32{{0, 1}, {0, 1}, {1, 0}, {0, 1}, {0, 1}}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	results, err := idx.Search(ctx, []float32{0, 1}, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"c0", "c1", "c3"}
	for i, r := range results {
		if r.ID != want[i] {
			t.Errorf("result %d = %s, want %s", i, r.ID, want[i])
		}
	}
}

func TestMemoryIndex_dimensionErrors(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	err := idx.Add(ctx, []string{"ok", "bad"}, [][]float32{{1, 0}, {1, 0, 0}})
	if !errors.Is(err, ErrDimension) {
		t.Errorf("Add: want ErrDimension, got %v", err)
	}
	if idx.Size() != 0 {
		t.Error("a failed Add should add nothing")
	}
	if _, err := idx.Search(ctx, []float32{1}, 1); !errors.Is(err, ErrDimension) {
		t.Errorf("Search: want ErrDimension, got %v", err)
	}
	if _, err := NewMemoryIndex(0); err == nil {
		t.Error("zero dimensions should fail")
	}
}

func TestMemoryIndex_emptyAndZeroK(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	if res, err := idx.Search(ctx, []float32{1, 0}, 3); err != nil || len(res) != 0 {
		t.Errorf("empty index: got %v, %v", res, err)
	}
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	if res, err := idx.Search(ctx, []float32{1, 0}, 0); err != nil || len(res) != 0 {
		t.Errorf("k=0: got %v, %v", res, err)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	ctx := context.Background()
	idx, _ := NewMemoryIndex(3)
	ids := []string{"row0-0", "row0-1", "row1-0", "row1-1"}
	vecs := [][]float32{{0.6, 0.8, 0}, {0, 0, 1}, {0.6, 0.8, 0}, {1, 0, 0}}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "sub", "vectors.bin")
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 4 {
		t.Fatalf("loaded size = %d", loaded.Size())
	}
	query := []float32{0.6, 0.8, 0}
	before, _ := idx.Search(ctx, query, 4)
	after, _ := loaded.Search(ctx, query, 4)
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("result %d differs after reload: %+v vs %+v", i, before[i], after[i])
		}
	}
	gotIDs := loaded.IDs()
	for i := range ids {
		if gotIDs[i] != ids[i] {
			t.Errorf("IDs()[%d] = %s, want %s", i, gotIDs[i], ids[i])
		}
	}
}

func TestMemoryIndex_LoadErrors(t *testing.T) {
	dir := t.TempDir()
	idx, _ := NewMemoryIndex(3)
	if err := idx.Load(filepath.Join(dir, "missing.bin")); err == nil {
		t.Error("missing file should fail")
	}

	small, _ := NewMemoryIndex(2)
	_ = small.Add(context.Background(), []string{"a"}, [][]float32{{1, 0}})
	path := filepath.Join(dir, "two.bin")
	if err := small.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := idx.Load(path); !errors.Is(err, ErrDimension) {
		t.Errorf("want ErrDimension, got %v", err)
	}

	data, _ := os.ReadFile(path)
	truncated := filepath.Join(dir, "truncated.bin")
	if err := os.WriteFile(truncated, data[:len(data)-3], 0o644); err != nil {
		t.Fatal(err)
	}
	other, _ := NewMemoryIndex(2)
	if err := other.Load(truncated); err == nil {
		t.Error("truncated file should fail")
	}
}

func TestSimilarity(t *testing.T) {
	a := []float32{0.6, 0.8}
	if got := InnerProduct(a, a); math.Abs(got-1) > 1e-6 {
		t.Errorf("InnerProduct = %v", got)
	}
	if InnerProduct(a, []float32{1}) != 0 {
		t.Error("mismatched lengths should give 0")
	}
	long := []float32{1, 2, 3, 4, 5, 6, 7}
	if got := InnerProduct(long, long); got != 140 {
		t.Errorf("InnerProduct over unrolled tail = %v, want 140", got)
	}
}

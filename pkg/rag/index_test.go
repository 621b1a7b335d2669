package rag

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVectorIndexSearchRanksBySimilarity(t *testing.T) {
	ix := &vectorIndex{chunks: []chunk{
		{Content: "north", Vector: []float64{0, 1}},
		{Content: "east", Vector: []float64{1, 0}},
		{Content: "northeast", Vector: []float64{1, 1}},
	}}

	results := ix.search([]float64{1, 0.1}, 2)
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Content != "east" {
		t.Fatalf("best match = %q, want east", results[0].Content)
	}
	if results[1].Content != "northeast" {
		t.Fatalf("second match = %q, want northeast", results[1].Content)
	}
}

func TestVectorIndexSearchBounds(t *testing.T) {
	ix := &vectorIndex{}
	if got := ix.search([]float64{1}, 3); got != nil {
		t.Fatalf("empty index returned %v", got)
	}

	ix = &vectorIndex{chunks: []chunk{{Content: "only", Vector: []float64{1}}}}
	if got := ix.search([]float64{1}, 5); len(got) != 1 {
		t.Fatalf("k beyond size returned %d results", len(got))
	}
	if got := ix.search([]float64{1}, 0); got != nil {
		t.Fatalf("k=0 returned %v", got)
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := cosineSimilarity([]float64{1, 0}, []float64{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors similarity = %f", got)
	}
	if got := cosineSimilarity([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Fatalf("orthogonal vectors similarity = %f", got)
	}
	if got := cosineSimilarity([]float64{1, 0}, []float64{1}); got != 0 {
		t.Fatalf("mismatched lengths similarity = %f", got)
	}
	if got := cosineSimilarity([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Fatalf("zero vector similarity = %f", got)
	}
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.txt":        "alpha content",
		"nested/b.md":  "beta content",
		"skip.bin":     "ignored",
		"empty.txt":    "   ",
		"notes/c.yaml": "gamma: content",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	documents, err := loadDocuments(dir)
	if err != nil {
		t.Fatalf("loadDocuments error: %v", err)
	}
	if len(documents) != 3 {
		t.Fatalf("loaded %d documents, want 3: %+v", len(documents), documents)
	}

	sources := make(map[string]bool, len(documents))
	for _, doc := range documents {
		sources[doc.Source] = true
	}
	if !sources["a.txt"] || !sources[filepath.Join("nested", "b.md")] {
		t.Fatalf("sources = %v", sources)
	}
}

func TestLoadDocumentsMissingDir(t *testing.T) {
	if _, err := loadDocuments(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

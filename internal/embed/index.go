package embed

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const indexFile = "embeddings.json"

// Entry stores one indexed article title with its embedding vector.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Embedding []float32 `json:"embedding"`
}

// Index is the persisted embedding index structure. Vectors are stored
// normalized, so similarity is a plain dot product.
type Index struct {
	Entries   []Entry   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Hit is a single search result.
type Hit struct {
	ID    string
	Title string
	Score float64
}

// Add appends an entry with its vector normalized to unit length.
func (ix *Index) Add(id, title string, vector []float32) {
	ix.Entries = append(ix.Entries, Entry{ID: id, Title: title, Embedding: normalize(vector)})
}

// Search returns up to limit entries ranked by cosine similarity to the
// query vector.
func (ix *Index) Search(vector []float32, limit int) []Hit {
	query := normalize(vector)

	hits := make([]Hit, 0, len(ix.Entries))
	for _, e := range ix.Entries {
		hits = append(hits, Hit{ID: e.ID, Title: e.Title, Score: dot(e.Embedding, query)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits
}

// Save writes the index as a JSON document under dir.
func (ix *Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	ix.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(ix)
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, indexFile), raw, 0o640); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Load reads a previously saved index from dir.
func Load(dir string) (*Index, error) {
	raw, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var ix Index
	if err := json.Unmarshal(raw, &ix); err != nil {
		return nil, fmt.Errorf("parse index: %w", err)
	}
	return &ix, nil
}

func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

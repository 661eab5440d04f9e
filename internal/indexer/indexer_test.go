package indexer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"storyindex/internal/classify"
	"storyindex/internal/config"
	"storyindex/internal/embed"
	"storyindex/internal/model"
	"storyindex/internal/reddit"
	"storyindex/internal/storage"
)

type mockHTTP struct {
	body string
}

func (m *mockHTTP) Do(_ *http.Request) (*http.Response, error) {
	return &http.Response{
		StatusCode: 200,
		Body:       io.NopCloser(strings.NewReader(m.body)),
	}, nil
}

type classifyCall struct {
	Text   string
	Labels []string
}

type fakeClassifier struct {
	calls []classifyCall
	err   error
}

func (f *fakeClassifier) Classify(_ context.Context, text string, labels []string) ([]classify.Result, error) {
	f.calls = append(f.calls, classifyCall{Text: text, Labels: labels})
	if f.err != nil {
		return nil, f.err
	}
	return []classify.Result{
		{Label: "technology", Score: 0.88},
		{Label: "science", Score: 0.12},
	}, nil
}

type fakeEncoder struct {
	calls [][]string
}

func (f *fakeEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, float32(i)}
	}
	return vectors, nil
}

func child(id, title, url string, isSelf bool) string {
	return fmt.Sprintf(`{"data": {"id": %q, "subreddit": "Golang", "title": %q, "url": %q, "is_self": %t, "created_utc": 1700000000}}`,
		id, title, url, isSelf)
}

func listing(children ...string) string {
	return fmt.Sprintf(`{"data": {"after": "", "children": [%s]}}`, strings.Join(children, ","))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(`
name: test
api:
  subreddit: golang
  queries: ["database"]
  sort: top
  time: week
  ignore:
    - youtube\.com
labels:
  topic:
    values: [business, science, technology]
path: ` + t.TempDir() + "\n"))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	return cfg
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPersistsAcceptedSubmissionsAndBuildsIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := newTestStore(t)

	httpClient := &mockHTTP{body: listing(
		child("a1", "First story", "https://example.com/one", false),
		child("a2", "A self post", "https://reddit.example/r/golang/comments/a2", true),
		child("a3", "Broken link", "", false),
		child("a4", "A video", "https://www.youtube.com/watch?v=1", false),
		child("a5", "Second story", "https://example.com/two", false),
		child("a6", "First story again", "http://www.example.com/one/", false),
	)}

	classifier := &fakeClassifier{}
	encoder := &fakeEncoder{}
	builder := embed.NewBuilder(encoder, cfg.Path, testLogger())

	idx := New(cfg, reddit.New(httpClient), classifier, store, builder, testLogger())
	if err := idx.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	titles, err := store.ListTitles(ctx)
	if err != nil {
		t.Fatalf("list titles: %v", err)
	}
	want := []model.Title{
		{ID: "a1", Text: "First story"},
		{ID: "a5", Text: "Second story"},
	}
	if diff := cmp.Diff(want, titles); diff != "" {
		t.Errorf("stored titles mismatch (-want +got):\n%s", diff)
	}

	article, err := store.GetArticle(ctx, "a1")
	if err != nil {
		t.Fatalf("get article: %v", err)
	}
	if diff := cmp.Diff("golang", article.Source); diff != "" {
		t.Errorf("source not lowercased (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://example.com/one", article.Reference); diff != "" {
		t.Errorf("reference mismatch (-want +got):\n%s", diff)
	}

	labels, err := store.ListLabels(ctx, "a1")
	if err != nil {
		t.Fatalf("list labels: %v", err)
	}
	wantLabels := []model.Label{
		{ArticleID: "a1", Category: "topic", Value: "technology", Score: 0.88},
		{ArticleID: "a1", Category: "topic", Value: "science", Score: 0.12},
	}
	if diff := cmp.Diff(wantLabels, labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}

	// One classifier call per accepted submission per label set.
	if len(classifier.calls) != 2 {
		t.Fatalf("expected 2 classifier calls, got %d", len(classifier.calls))
	}
	if diff := cmp.Diff([]string{"business", "science", "technology"}, classifier.calls[0].Labels); diff != "" {
		t.Errorf("candidate values mismatch (-want +got):\n%s", diff)
	}

	// Index rebuilt over exactly the stored titles, in one bulk call.
	if len(encoder.calls) != 1 {
		t.Fatalf("expected one bulk encode call, got %d", len(encoder.calls))
	}
	if diff := cmp.Diff([]string{"First story", "Second story"}, encoder.calls[0]); diff != "" {
		t.Errorf("encoded texts mismatch (-want +got):\n%s", diff)
	}

	ix, err := embed.Load(cfg.Path)
	if err != nil {
		t.Fatalf("load index: %v", err)
	}
	gotIDs := make([]string, len(ix.Entries))
	for i, e := range ix.Entries {
		gotIDs[i] = e.ID
	}
	if diff := cmp.Diff([]string{"a1", "a5"}, gotIDs); diff != "" {
		t.Errorf("indexed ids mismatch (-want +got):\n%s", diff)
	}
}

func TestRunAbortsOnClassifierFailure(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	store := newTestStore(t)

	httpClient := &mockHTTP{body: listing(
		child("a1", "First story", "https://example.com/one", false),
	)}

	classifier := &fakeClassifier{err: fmt.Errorf("inference unavailable")}
	builder := embed.NewBuilder(&fakeEncoder{}, cfg.Path, testLogger())

	idx := New(cfg, reddit.New(httpClient), classifier, store, builder, testLogger())
	if err := idx.Run(ctx); err == nil {
		t.Fatal("expected classifier failure to abort the run")
	}

	// The index is never rebuilt for a failed run.
	if _, err := embed.Load(cfg.Path); err == nil {
		t.Fatal("expected no index to be written after a failed run")
	}
}

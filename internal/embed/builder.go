package embed

import (
	"context"
	"fmt"
	"log/slog"

	"storyindex/internal/model"
)

// TitleSource provides the (id, title) pairs to index.
type TitleSource interface {
	ListTitles(ctx context.Context) ([]model.Title, error)
}

// Builder rebuilds the embedding index from scratch over all stored
// article titles.
type Builder struct {
	encoder Encoder
	path    string
	log     *slog.Logger
}

// NewBuilder creates a Builder that saves the index under path.
func NewBuilder(encoder Encoder, path string, log *slog.Logger) *Builder {
	return &Builder{encoder: encoder, path: path, log: log}
}

// Build reads all stored titles, encodes them in one bulk call and saves
// the resulting index. This is a full rebuild, O(total article count).
func (b *Builder) Build(ctx context.Context, source TitleSource) error {
	titles, err := source.ListTitles(ctx)
	if err != nil {
		return fmt.Errorf("list titles: %w", err)
	}

	index := &Index{}
	if len(titles) > 0 {
		texts := make([]string, len(titles))
		for i, t := range titles {
			texts[i] = t.Text
		}

		vectors, err := b.encoder.Encode(ctx, texts)
		if err != nil {
			return fmt.Errorf("encode titles: %w", err)
		}

		for i, t := range titles {
			index.Add(t.ID, t.Text, vectors[i])
		}
	}

	if err := index.Save(b.path); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	b.log.Info("built embedding index", "articles", len(titles), "path", b.path)
	return nil
}

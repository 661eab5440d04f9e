// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"storyindex/internal/model"
)

// Storage is the interface for all persistence operations. Writes made
// during a run accumulate in a single transaction; Complete marks them
// durable.
type Storage interface {
	HasArticle(ctx context.Context, id, baseURL string) (bool, error)
	SaveArticle(ctx context.Context, article model.Article, labels []model.Label) error
	Complete(ctx context.Context) error
	ListTitles(ctx context.Context) ([]model.Title, error)

	Close() error
}

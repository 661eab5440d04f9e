// Package indexer drives one full ingestion run: query execution,
// per-submission filtering, label classification, persistence and the
// embedding index rebuild.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"storyindex/internal/classify"
	"storyindex/internal/config"
	"storyindex/internal/embed"
	"storyindex/internal/filter"
	"storyindex/internal/model"
	"storyindex/internal/reddit"
	"storyindex/internal/storage"
)

// Appended to every query to restrict results to external, safe links.
const querySuffix = " self:0 nsfw:0"

// Indexer executes index runs with explicitly injected collaborators.
type Indexer struct {
	cfg        *config.Config
	client     *reddit.Client
	classifier classify.Classifier
	store      storage.Storage
	builder    *embed.Builder
	log        *slog.Logger
}

// New creates an Indexer. All dependencies are required.
func New(cfg *config.Config, client *reddit.Client, classifier classify.Classifier,
	store storage.Storage, builder *embed.Builder, log *slog.Logger) *Indexer {
	return &Indexer{
		cfg:        cfg,
		client:     client,
		classifier: classifier,
		store:      store,
		builder:    builder,
		log:        log,
	}
}

// Run executes a single index run: all configured queries in order, a
// commit boundary, then a full embedding index rebuild. Any collaborator
// failure aborts the run.
func (x *Indexer) Run(ctx context.Context) error {
	x.log.Info("refreshing index", "name", x.cfg.Name)

	api := x.cfg.API
	var fetched, accepted int

	for _, query := range api.Queries {
		it := x.client.Search(api.Subreddit, query+querySuffix, api.Sort, api.Time)
		for {
			sub, ok, err := it.Next(ctx)
			if err != nil {
				return fmt.Errorf("search %q: %w", query, err)
			}
			if !ok {
				break
			}
			fetched++

			accept, err := filter.Accept(ctx, x.store, sub, api.IgnorePatterns())
			if err != nil {
				return err
			}
			if !accept {
				continue
			}

			if err := x.ingest(ctx, sub); err != nil {
				return err
			}
			accepted++
		}
	}

	if err := x.store.Complete(ctx); err != nil {
		return err
	}

	if err := x.builder.Build(ctx, x.store); err != nil {
		return err
	}

	x.log.Info("indexing complete", "name", x.cfg.Name,
		"fetched", fetched, "accepted", accepted, "skipped", fetched-accepted)
	return nil
}

// ingest persists one accepted submission and its labels as a unit.
func (x *Indexer) ingest(ctx context.Context, sub model.Submission) error {
	article := model.Article{
		ID:        sub.ID,
		Source:    strings.ToLower(sub.Subreddit),
		Created:   sub.Created,
		Title:     sub.Title,
		Reference: sub.URL,
		IndexedAt: time.Now(),
	}

	var labels []model.Label
	for _, category := range sortedCategories(x.cfg.Labels) {
		results, err := x.classifier.Classify(ctx, sub.Title, x.cfg.Labels[category].Values)
		if err != nil {
			return fmt.Errorf("classify %s: %w", sub.ID, err)
		}
		for _, r := range results {
			labels = append(labels, model.Label{
				ArticleID: sub.ID,
				Category:  category,
				Value:     r.Label,
				Score:     r.Score,
			})
		}
	}

	if err := x.store.SaveArticle(ctx, article, labels); err != nil {
		return fmt.Errorf("save article %s: %w", sub.ID, err)
	}

	x.log.Debug("saved article", "id", sub.ID, "title", sub.Title)
	return nil
}

func sortedCategories(labels map[string]config.LabelSet) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

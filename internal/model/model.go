// Package model defines the domain types used across the application.
package model

import "time"

// Submission is a single post returned by the platform's search API.
type Submission struct {
	ID        string
	Subreddit string
	Title     string
	URL       string
	IsSelf    bool
	Created   time.Time
}

// Article is the persisted record derived from an accepted submission.
// Reference holds the submission URL; duplicate detection matches base
// URLs against it.
type Article struct {
	ID        string
	Source    string
	Created   time.Time
	Title     string
	Reference string
	IndexedAt time.Time
}

// Label is a single classification result attached to an article.
type Label struct {
	ArticleID string
	Category  string
	Value     string
	Score     float64
}

// Title pairs an article id with its title for embedding index builds.
type Title struct {
	ID   string
	Text string
}

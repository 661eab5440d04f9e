package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite" // SQLite driver registration.

	"storyindex/internal/model"
	"storyindex/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A run holds one write transaction; a second pooled connection would
	// see a separate database when dsn is :memory:.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close rolls back any uncommitted run transaction and closes the database.
func (s *SQLite) Close() error {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	return s.db.Close()
}

// begin lazily opens the run transaction.
func (s *SQLite) begin(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	s.tx = tx
	return tx, nil
}

// HasArticle reports whether any stored article has the given id or a
// reference containing baseURL as a substring. Reads through the run
// transaction so duplicates within a run are caught before commit.
func (s *SQLite) HasArticle(ctx context.Context, id, baseURL string) (bool, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return false, err
	}

	query, args, err := sq.Select("1").
		From("articles").
		Where(sq.Or{sq.Eq{"id": id}, sq.Like{"reference": "%" + baseURL + "%"}}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lookup: %w", err)
	}

	var one int
	err = tx.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query article: %w", err)
	}
	return true, nil
}

// SaveArticle inserts an article and its labels as one unit within the
// run transaction.
func (s *SQLite) SaveArticle(ctx context.Context, article model.Article, labels []model.Label) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	query, args, err := sq.Insert("articles").
		Columns("id", "source", "created", "title", "reference", "indexed_at").
		Values(article.ID,
			article.Source,
			article.Created.UTC().Format(timeLayout),
			article.Title,
			article.Reference,
			article.IndexedAt.UTC().Format(timeLayout)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert article: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert article: %w", err)
	}

	for _, label := range labels {
		query, args, err := sq.Insert("labels").
			Columns("article_id", "category", "value", "score").
			Values(label.ArticleID, label.Category, label.Value, label.Score).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert label: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert label: %w", err)
		}
	}

	return nil
}

// Complete commits the run transaction, making all writes durable.
func (s *SQLite) Complete(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListTitles returns (id, title) pairs for all stored articles in
// insertion order.
func (s *SQLite) ListTitles(ctx context.Context) ([]model.Title, error) {
	query, args, err := sq.Select("id", "title").
		From("articles").
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list titles: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query titles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var titles []model.Title
	for rows.Next() {
		var t model.Title
		if err := rows.Scan(&t.ID, &t.Text); err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	return titles, rows.Err()
}

// ListLabels returns all labels stored for the given article in
// insertion order.
func (s *SQLite) ListLabels(ctx context.Context, articleID string) ([]model.Label, error) {
	query, args, err := sq.Select("article_id", "category", "value", "score").
		From("labels").
		Where(sq.Eq{"article_id": articleID}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list labels: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query labels: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var labels []model.Label
	for rows.Next() {
		var l model.Label
		if err := rows.Scan(&l.ArticleID, &l.Category, &l.Value, &l.Score); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// GetArticle returns a single article by its id.
func (s *SQLite) GetArticle(ctx context.Context, id string) (*model.Article, error) {
	query, args, err := sq.Select("id", "source", "created", "title", "reference", "indexed_at").
		From("articles").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get article: %w", err)
	}

	var a model.Article
	var created, indexed string
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&a.ID, &a.Source, &created, &a.Title, &a.Reference, &indexed)
	if err != nil {
		return nil, fmt.Errorf("scan article: %w", err)
	}
	a.Created, _ = time.Parse(timeLayout, created)
	a.IndexedAt, _ = time.Parse(timeLayout, indexed)
	return &a, nil
}

// Package filter implements url-based duplicate detection and the
// accept/reject rules for incoming submissions.
package filter

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"storyindex/internal/model"
)

var (
	schemeRe   = regexp.MustCompile(`^http(s)?://(www\.)?`)
	indexDocRe = regexp.MustCompile(`index\.htm(l)?$`)
)

// ArticleLookup answers whether a stored article matches an id or contains
// a base url within its reference field.
type ArticleLookup interface {
	HasArticle(ctx context.Context, id, baseURL string) (bool, error)
}

// BaseURL extracts a comparison key for the input url. Two urls differing
// only by query string, scheme, www prefix, a default index document or
// trailing slashes produce the same key.
func BaseURL(url string) string {
	url, _, _ = strings.Cut(url, "?")
	url = schemeRe.ReplaceAllString(url, "")
	url = indexDocRe.ReplaceAllString(url, "")
	return strings.TrimRight(url, "/")
}

// Accept reports whether a submission should be ingested. A submission is
// accepted only if it is not already stored (by id or base url), links to
// external web content and matches none of the ignore patterns.
// A lookup failure is returned as an error, never treated as "not found".
func Accept(ctx context.Context, lookup ArticleLookup, sub model.Submission, ignore []*regexp.Regexp) (bool, error) {
	exists, err := lookup.HasArticle(ctx, sub.ID, BaseURL(sub.URL))
	if err != nil {
		return false, fmt.Errorf("duplicate lookup: %w", err)
	}
	if exists || sub.IsSelf || !strings.HasPrefix(sub.URL, "http") {
		return false, nil
	}

	for _, re := range ignore {
		if re.MatchString(sub.URL) {
			return false, nil
		}
	}
	return true, nil
}

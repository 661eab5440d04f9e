// Package reddit implements a client for the Reddit search API.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"storyindex/internal/model"
)

const (
	baseURL         = "https://www.reddit.com"
	pageSize        = 100
	defaultAgent    = "storyindex/1.0"
	userAgentEnv    = "STORYINDEX_USER_AGENT"
	maxResponseSize = 10 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client searches subreddits for submissions.
type Client struct {
	client    HTTPClient
	base      string
	userAgent string
}

// New creates a Client with the given HTTP client.
func New(client HTTPClient) *Client {
	agent := os.Getenv(userAgentEnv)
	if agent == "" {
		agent = defaultAgent
	}
	return &Client{client: client, base: baseURL, userAgent: agent}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (c *Client) SetBaseURL(base string) {
	c.base = base
}

// Search returns a lazy iterator over all submissions matching query in the
// given subreddit. Pages are fetched on demand via the listing cursor, so
// an unbounded result set never materializes in memory at once.
func (c *Client) Search(subreddit, query, sort, timeFilter string) *Iterator {
	return &Iterator{
		client:     c,
		subreddit:  subreddit,
		query:      query,
		sort:       sort,
		timeFilter: timeFilter,
	}
}

// Iterator walks a search result set one submission at a time.
type Iterator struct {
	client     *Client
	subreddit  string
	query      string
	sort       string
	timeFilter string

	page  []model.Submission
	pos   int
	after string
	done  bool
}

// Next returns the next submission, fetching further pages as needed.
// The boolean is false once the result set is exhausted.
func (it *Iterator) Next(ctx context.Context) (model.Submission, bool, error) {
	for it.pos >= len(it.page) {
		if it.done {
			return model.Submission{}, false, nil
		}
		if err := it.fetchPage(ctx); err != nil {
			return model.Submission{}, false, err
		}
	}

	sub := it.page[it.pos]
	it.pos++
	return sub, true, nil
}

func (it *Iterator) fetchPage(ctx context.Context) error {
	params := url.Values{}
	params.Set("q", it.query)
	params.Set("sort", it.sort)
	params.Set("t", it.timeFilter)
	params.Set("restrict_sr", "1")
	params.Set("limit", strconv.Itoa(pageSize))
	params.Set("raw_json", "1")
	if it.after != "" {
		params.Set("after", it.after)
	}

	endpoint := fmt.Sprintf("%s/r/%s/search.json?%s", it.client.base, it.subreddit, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", it.client.userAgent)

	resp, err := it.client.client.Do(req)
	if err != nil {
		return fmt.Errorf("search %s: %w", it.subreddit, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("search %s: unexpected status %d", it.subreddit, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	var listing listingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return fmt.Errorf("parse listing: %w", err)
	}

	it.page = it.page[:0]
	it.pos = 0
	for _, child := range listing.Data.Children {
		d := child.Data
		it.page = append(it.page, model.Submission{
			ID:        d.ID,
			Subreddit: d.Subreddit,
			Title:     d.Title,
			URL:       d.URL,
			IsSelf:    d.IsSelf,
			Created:   time.Unix(int64(d.CreatedUTC), 0),
		})
	}

	it.after = listing.Data.After
	if it.after == "" || len(listing.Data.Children) == 0 {
		it.done = true
	}
	return nil
}

type listingResponse struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Data struct {
				ID         string  `json:"id"`
				Subreddit  string  `json:"subreddit"`
				Title      string  `json:"title"`
				URL        string  `json:"url"`
				IsSelf     bool    `json:"is_self"`
				CreatedUTC float64 `json:"created_utc"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

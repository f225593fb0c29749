// Package anilist is a thin client for the AniList GraphQL API, used to
// proxy anime search.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/anivouch/anivouch/internal/apperrors"
)

// searchQuery is the fixed GraphQL document: first page, 20 results,
// anime only.
const searchQuery = `
query ($search: String, $sort: [MediaSort]) {
  Page(page: 1, perPage: 20) {
    media(search: $search, type: ANIME, sort: $sort) {
      id
      title {
        romaji
        english
        native
      }
      coverImage {
        medium
      }
      genres
      averageScore
      episodes
      status
      format
      seasonYear
    }
  }
}
`

// MediaTitle carries the three title renderings AniList provides.
type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// CoverImage carries the medium-size cover URL.
type CoverImage struct {
	Medium string `json:"medium"`
}

// Media is one anime search result.
type Media struct {
	ID           int        `json:"id"`
	Title        MediaTitle `json:"title"`
	CoverImage   CoverImage `json:"coverImage"`
	Genres       []string   `json:"genres"`
	AverageScore *int       `json:"averageScore"`
	Episodes     *int       `json:"episodes"`
	Status       string     `json:"status"`
	Format       string     `json:"format"`
	SeasonYear   *int       `json:"seasonYear"`
}

// Client calls the AniList GraphQL endpoint. Outbound calls are throttled;
// AniList enforces its own per-minute quota and answers 429 past it.
type Client struct {
	url     string
	httpc   *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client throttled to requestsPerMinute, with a small
// burst allowance.
func NewClient(url string, requestsPerMinute int) *Client {
	return &Client{
		url:     url,
		httpc:   &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), 5),
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type searchResponse struct {
	Data struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
}

// Search runs the anime search with the given term and sort order. The sort
// value must already be validated against the MediaSort enum.
func (c *Client) Search(ctx context.Context, search, sort string) ([]Media, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(graphqlRequest{
		Query:     searchQuery,
		Variables: map[string]any{"search": search, "sort": sort},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call anilist: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.New("Failed to fetch from Anilist API", resp.StatusCode)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode anilist response: %w", err)
	}

	return out.Data.Page.Media, nil
}

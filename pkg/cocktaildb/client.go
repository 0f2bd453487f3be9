// Package cocktaildb is a small client for the TheCocktailDB drink search
// endpoint. It selects the first matching drink and renders it as a
// fixed-format recipe block.
package cocktaildb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// DefaultURL is the public search endpoint.
const DefaultURL = "https://www.thecocktaildb.com/api/json/v1/1/search.php"

// ErrNotFound is returned by Search when the service reports no drinks.
var ErrNotFound = errors.New("drink not found")

// maxBodyBytes bounds the response we are willing to decode.
const maxBodyBytes = 2 << 20

// Config locates the search.php endpoint and bounds each request.
type Config struct {
	URL     string        `envconfig:"COCKTAIL_URL" default:"https://www.thecocktaildb.com/api/json/v1/1/search.php"`
	Timeout time.Duration `envconfig:"COCKTAIL_TIMEOUT" default:"10s"`
}

// Client calls the search endpoint. No retries and no caching.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a client. A nil httpClient gets one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: cfg.URL, httpClient: httpClient}
}

type searchResponse struct {
	Drinks json.RawMessage `json:"drinks"`
}

// Search queries the service by drink name and returns the first candidate.
func (c *Client) Search(ctx context.Context, name string) (*Recipe, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse cocktail url: %w", err)
	}
	q := u.Query()
	q.Set("s", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build cocktail request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cocktail request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cocktail request: unexpected status %d", resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cocktail response: %w", err)
	}

	// drinks is null when nothing matched; some endpoints send a string instead.
	var drinks []map[string]any
	if len(body.Drinks) == 0 || json.Unmarshal(body.Drinks, &drinks) != nil || len(drinks) == 0 {
		return nil, ErrNotFound
	}

	return recipeFromRecord(drinks[0]), nil
}

// Lookup is the tool-facing operation: a rendered recipe, or a not-found
// message naming the query. Transport and decode failures are returned.
func (c *Client) Lookup(ctx context.Context, name string) (string, error) {
	recipe, err := c.Search(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return NotFoundMessage(name), nil
	}
	if err != nil {
		return "", err
	}
	return Render(recipe), nil
}

// NotFoundMessage is the literal answer for an unknown drink.
func NotFoundMessage(name string) string {
	return "Did not find the drink with name: " + name
}

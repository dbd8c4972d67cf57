// Package drinks is the client for the external drinks catalog API. Every
// protected call carries the session's bearer token; the backend performs
// its own token verification.
package drinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// PermissionDetail gates access to the long-form catalog.
const PermissionDetail = "get:drinks-detail"

// ErrUnauthorized means the backend rejected the bearer token or the
// session lacks the required permission.
var ErrUnauthorized = errors.New("drinks: request not authorized")

// Drink is one catalog entry.
type Drink struct {
	ID     int64        `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Ingredient is one part of a drink's recipe.
type Ingredient struct {
	Name  string `json:"name,omitempty"`
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// Client talks to the catalog API.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// NewClient builds a client for the API at baseURL. token supplies the
// current access token; an empty return means the call goes out
// unauthenticated.
func NewClient(baseURL string, token func() string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		token:   token,
	}
}

// Drinks fetches the public short-form catalog.
func (c *Client) Drinks(ctx context.Context) ([]Drink, error) {
	return c.fetch(ctx, "/drinks")
}

// DrinkDetails fetches the long-form catalog. The backend requires the
// get:drinks-detail permission.
func (c *Client) DrinkDetails(ctx context.Context) ([]Drink, error) {
	return c.fetch(ctx, "/drinks-detail")
}

type listResponse struct {
	Success bool    `json:"success"`
	Drinks  []Drink `json:"drinks"`
}

func (c *Client) fetch(ctx context.Context, path string) ([]Drink, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if tok := c.token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("catalog request: unexpected status %s", resp.Status)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	if !body.Success {
		return nil, errors.New("catalog request: backend reported failure")
	}
	return body.Drinks, nil
}

package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/ntodo/ntodo/internal/apperrors"
)

const (
	// BaseURL is the Notion API base URL.
	BaseURL = "https://api.notion.com/v1"
	// APIVersion is the Notion API version to use.
	APIVersion = "2022-06-28"

	// HTTP client configuration.
	httpTimeout = 10 * time.Second // Fixed timeout for every API request

	// Rate limiting configuration (~3 requests/second).
	rateLimitInterval = 350 * time.Millisecond

	// API pagination settings.
	defaultPageSize = 100

	// HTTP status codes.
	httpStatusBadRequest = 400 // First status code indicating an error
)

// Client is a Notion API client with rate limiting.
type Client struct {
	httpClient  *http.Client
	token       string
	rateLimiter *rate.Limiter
	baseURL     string
	apiVersion  string
	logger      *slog.Logger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = l
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(url string) ClientOption {
	return func(client *Client) {
		client.baseURL = url
	}
}

// NewClient creates a new Notion API client.
func NewClient(token string, opts ...ClientOption) *Client {
	client := &Client{
		httpClient:  &http.Client{Timeout: httpTimeout},
		token:       token,
		rateLimiter: rate.NewLimiter(rate.Every(rateLimitInterval), 1), // ~3 req/s
		baseURL:     BaseURL,
		apiVersion:  APIVersion,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// do performs a single HTTP request with rate limiting and error
// classification. There are no automatic retries; the caller's next poll
// cycle is the retry path.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")

	c.logger.DebugContext(ctx, "API request", "method", method, "path", path)
	startTime := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts, DNS and socket failures are all transient connectivity
		// errors from the caller's point of view.
		return apperrors.NewCommunicationError(err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if closeErr := resp.Body.Close(); closeErr != nil {
		c.logger.WarnContext(ctx, "failed to close response body", "error", closeErr)
	}
	if err != nil {
		return apperrors.NewCommunicationError(err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return apperrors.NewAuthenticationError(resp.StatusCode)
	}

	if resp.StatusCode >= httpStatusBadRequest {
		var errResp APIError
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			return apperrors.NewHTTPError(resp.StatusCode, string(respBody))
		}
		return &errResp
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	c.logger.DebugContext(ctx, "API response",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(startTime))

	return nil
}

// QueryDatabase queries a database with the given filter and returns all
// matching pages in server order.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, filter any) ([]Page, error) {
	c.logger.DebugContext(ctx, "Querying database", slog.String("databaseId", databaseID))

	var allPages []Page
	var cursor string

	for {
		body := map[string]any{
			"page_size": defaultPageSize,
		}
		if filter != nil {
			body["filter"] = filter
		}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var result QueryResponse
		path := fmt.Sprintf("/databases/%s/query", databaseID)
		if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
			return nil, fmt.Errorf("query database %s: %w", databaseID, err)
		}

		allPages = append(allPages, result.Results...)

		if !result.HasMore || result.NextCursor == nil {
			break
		}
		cursor = *result.NextCursor
	}

	c.logger.DebugContext(ctx, "database query complete",
		"database_id", databaseID,
		"pages_found", len(allPages))
	return allPages, nil
}

// GetDatabase retrieves a database schema by ID.
func (c *Client) GetDatabase(ctx context.Context, databaseID string) (*Database, error) {
	c.logger.DebugContext(ctx, "Fetching database schema", slog.String("databaseId", databaseID))

	var db Database
	path := "/databases/" + databaseID
	if err := c.do(ctx, http.MethodGet, path, nil, &db); err != nil {
		return nil, fmt.Errorf("get database %s: %w", databaseID, err)
	}
	return &db, nil
}

// CreatePage creates a new page in a database.
func (c *Client) CreatePage(ctx context.Context, page *Page) (*Page, error) {
	var created Page
	if err := c.do(ctx, http.MethodPost, "/pages", page, &created); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &created, nil
}

// UpdatePage applies a partial update to an existing page.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]Property) (*Page, error) {
	body := map[string]any{"properties": properties}

	var updated Page
	path := "/pages/" + pageID
	if err := c.do(ctx, http.MethodPatch, path, body, &updated); err != nil {
		return nil, fmt.Errorf("update page %s: %w", pageID, err)
	}
	return &updated, nil
}

// DeletePage archives a page. Notion exposes this through the blocks
// endpoint.
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	path := "/blocks/" + pageID
	if err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete page %s: %w", pageID, err)
	}
	return nil
}

// Validate checks that the token can query the database. It is used by the
// credential check before a configuration is accepted.
func (c *Client) Validate(ctx context.Context, databaseID string) error {
	body := map[string]any{"page_size": 1}

	var result QueryResponse
	path := fmt.Sprintf("/databases/%s/query", databaseID)
	if err := c.do(ctx, http.MethodPost, path, body, &result); err != nil {
		return fmt.Errorf("validate database %s: %w", databaseID, err)
	}
	return nil
}

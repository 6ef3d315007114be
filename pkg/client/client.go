package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/ciel-content/internal/markdown"
	"github.com/terra-clan/ciel-content/internal/models"
	"github.com/terra-clan/ciel-content/internal/query"
)

// ErrRequestFailed covers every transport error and non-2xx response. Callers
// only distinguish success from failure.
var ErrRequestFailed = errors.New("request failed")

// segmentMarkdown splits article bodies; replaced in tests
var segmentMarkdown = markdown.Segments

// Client is a Go SDK for the CIEL content API
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout bounds every request
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new content API client. baseURL includes the API
// prefix, e.g. http://localhost:8001/api.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "ciel-content/1.0",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type articleList struct {
	Articles []models.ArticleSummary `json:"articles"`
	Total    int                     `json:"total"`
}

type articleWire struct {
	models.ArticleSummary
	Content string   `json:"content"`
	Tags    []string `json:"tags"`
}

type likeResult struct {
	Likes int `json:"likes"`
}

// ListArticles retrieves one page of the listing described by d
func (c *Client) ListArticles(ctx context.Context, d query.Descriptor) (*models.ResultPage, error) {
	var result articleList
	if err := c.getJSON(ctx, "/articles?"+d.Values().Encode(), &result); err != nil {
		return nil, err
	}

	items := result.Articles
	if items == nil {
		items = []models.ArticleSummary{}
	}

	return &models.ResultPage{
		Items:      items,
		Total:      result.Total,
		Descriptor: d,
	}, nil
}

// GetArticle retrieves an article and splits its Markdown body into blocks
func (c *Client) GetArticle(ctx context.Context, id string) (*models.ArticleDetail, error) {
	var wire articleWire
	if err := c.getJSON(ctx, "/articles/"+url.PathEscape(id), &wire); err != nil {
		return nil, err
	}

	segments, err := segmentMarkdown([]byte(wire.Content))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to segment article %s: %v", ErrRequestFailed, id, err)
	}

	tags := wire.Tags
	if tags == nil {
		tags = []string{}
	}

	return &models.ArticleDetail{
		ArticleSummary: wire.ArticleSummary,
		Markdown:       wire.Content,
		Content:        segments,
		Tags:           tags,
	}, nil
}

// LikeArticle registers a like and returns the server's new count
func (c *Client) LikeArticle(ctx context.Context, id string) (int, error) {
	var result likeResult
	if err := c.postJSON(ctx, "/articles/"+url.PathEscape(id)+"/like", nil, &result); err != nil {
		return 0, err
	}
	return result.Likes, nil
}

// ListComments retrieves an article's comment thread in server order
func (c *Client) ListComments(ctx context.Context, articleID string) ([]models.Comment, error) {
	var comments []models.Comment
	if err := c.getJSON(ctx, "/articles/"+url.PathEscape(articleID)+"/comments", &comments); err != nil {
		return nil, err
	}
	if comments == nil {
		comments = []models.Comment{}
	}
	return comments, nil
}

// CreateComment posts a comment to an article
func (c *Client) CreateComment(ctx context.Context, articleID string, draft models.CommentDraft) (*models.Comment, error) {
	var comment models.Comment
	if err := c.postJSON(ctx, "/articles/"+url.PathEscape(articleID)+"/comments", draft, &comment); err != nil {
		return nil, err
	}
	return &comment, nil
}

// LikeComment registers a like on a comment and returns the new count
func (c *Client) LikeComment(ctx context.Context, id string) (int, error) {
	var result likeResult
	if err := c.postJSON(ctx, "/comments/"+url.PathEscape(id)+"/like", nil, &result); err != nil {
		return 0, err
	}
	return result.Likes, nil
}

// ListFormations retrieves every formation
func (c *Client) ListFormations(ctx context.Context) ([]models.Formation, error) {
	var formations []models.Formation
	if err := c.getJSON(ctx, "/formations", &formations); err != nil {
		return nil, err
	}
	return formations, nil
}

// GetFormation retrieves the formation of one level
func (c *Client) GetFormation(ctx context.Context, level models.Level) (*models.Formation, error) {
	var formation models.Formation
	if err := c.getJSON(ctx, "/formations/"+url.PathEscape(string(level)), &formation); err != nil {
		return nil, err
	}
	return &formation, nil
}

// GetCielInfo retrieves the programme's descriptive payload
func (c *Client) GetCielInfo(ctx context.Context) (*models.CielInfo, error) {
	var info models.CielInfo
	if err := c.getJSON(ctx, "/ciel-info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// ListCategories retrieves the stable list of article categories
func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.getJSON(ctx, "/categories", &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Health checks if the upstream is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func (c *Client) postJSON(ctx context.Context, path string, body, v any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, path, reader)
	if err != nil {
		return err
	}
	return decode(resp, v)
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: failed to unmarshal response: %v", ErrRequestFailed, err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrRequestFailed, err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrRequestFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s: HTTP %d: %s", ErrRequestFailed, method, path, resp.StatusCode, truncate(respBody, 200))
	}

	return respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

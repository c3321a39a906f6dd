// Package client talks to the chive project and pipeline API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/chive/backend/pkg/nodetype"
	"github.com/chive/backend/pkg/project"
)

const (
	DefaultBaseURL = "http://localhost:8080"
	DefaultTimeout = 30 * time.Second
	// PipelineTimeout leaves room for the server's own five minute wait.
	PipelineTimeout = 6 * time.Minute
	DefaultRate     = 5.0

	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

// Client is a rate-limited HTTP client for the chive API. It satisfies
// autosave.Storage and pipeline.Executor.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	userID     string
	username   string
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithUser sets the identity headers the auth gateway would add.
func WithUser(id, name string) ClientOption {
	return func(c *Client) {
		c.userID = id
		c.username = name
	}
}

// WithRateLimit caps requests per second.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), 1),
		baseURL:    DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, contentType string, body []byte, timeout time.Duration) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.userID != "" {
		req.Header.Set(HeaderUserID, c.userID)
		req.Header.Set(HeaderUsername, c.username)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrNetwork, err)
	}
	if resp.StatusCode >= 400 {
		var msg struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &msg) != nil || msg.Message == "" {
			msg.Message = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg.Message}
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, "", nil, DefaultTimeout)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", path, err)
	}
	return nil
}

func idQuery(key string, id int64) url.Values {
	return url.Values{key: {strconv.FormatInt(id, 10)}}
}

func (c *Client) LoadProject(ctx context.Context, id int64) (project.Project, error) {
	var p project.Project
	err := c.getJSON(ctx, "/api/project/load", idQuery("id", id), &p)
	return p, err
}

// SaveProject creates the project when p.ID is 0 and updates it otherwise.
func (c *Client) SaveProject(ctx context.Context, p project.Project) (project.Info, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return project.Info{}, fmt.Errorf("marshaling project: %w", err)
	}
	data, err := c.do(ctx, http.MethodPost, "/api/project/save", nil, "application/json", body, DefaultTimeout)
	if err != nil {
		return project.Info{}, err
	}
	var resp project.SaveResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return project.Info{}, fmt.Errorf("parsing save response: %w", err)
	}
	return resp.Project, nil
}

func (c *Client) ProjectInfo(ctx context.Context, id int64) (project.Info, error) {
	var info project.Info
	err := c.getJSON(ctx, "/api/projects/info", idQuery("projectId", id), &info)
	return info, err
}

// ListProjects returns the caller's projects, most recently updated first.
func (c *Client) ListProjects(ctx context.Context) ([]project.Info, error) {
	var infos []project.Info
	err := c.getJSON(ctx, "/api/projects/infos", nil, &infos)
	return infos, err
}

func (c *Client) NodeTypes(ctx context.Context) ([]nodetype.Descriptor, error) {
	var types []nodetype.Descriptor
	err := c.getJSON(ctx, "/api/node-types", nil, &types)
	return types, err
}

// RunPipeline posts a multipart execution request and returns the zip
// archive of results.
func (c *Client) RunPipeline(ctx context.Context, projectID int64, contentType string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/api/pipe", idQuery("id", projectID), contentType, body, PipelineTimeout)
}

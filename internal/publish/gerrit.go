package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/Iron-Ham/depo/internal/errors"
)

const (
	// DefaultParent is the category new projects are created under.
	DefaultParent = "All-Projects"

	// defaultTimeout is the REST request timeout.
	defaultTimeout = 30 * time.Second

	// maxResponseSize bounds a REST response body (32MB).
	maxResponseSize = 32 * 1024 * 1024

	// xssiGuard prefixes every JSON response of the Gerrit REST API.
	xssiGuard = ")]}'"
)

// GerritClient implements ReviewHost with the Gerrit REST API.
type GerritClient struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

// GerritOption configures a GerritClient.
type GerritOption func(*GerritClient)

// WithCredentials authenticates every request with HTTP basic auth. Requests
// then go to the authenticated "/a/" endpoints.
func WithCredentials(username, password string) GerritOption {
	return func(c *GerritClient) {
		c.username = username
		c.password = password
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) GerritOption {
	return func(c *GerritClient) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) GerritOption {
	return func(c *GerritClient) {
		c.httpClient = client
	}
}

// NewGerritClient creates a client for the Gerrit server at baseURL.
func NewGerritClient(baseURL string, opts ...GerritOption) *GerritClient {
	c := &GerritClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProjects implements ReviewHost.
func (c *GerritClient) ListProjects(ctx context.Context, prefix string) ([]string, error) {
	endpoint := c.endpoint("projects/")
	if prefix != "" {
		endpoint += "?p=" + url.QueryEscape(prefix)
	}

	body, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	doc := stripGuard(body)
	if !gjson.ValidBytes(doc) {
		return nil, errors.NewPublishError("invalid project list", errors.ErrHostRequest).WithHost(c.baseURL)
	}

	// the response maps each project name to its info
	var names []string
	gjson.ParseBytes(doc).ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	return names, nil
}

// CreateProject implements ReviewHost.
func (c *GerritClient) CreateProject(ctx context.Context, name, parent string) error {
	payload, err := json.Marshal(map[string]any{
		"parent":              parent,
		"create_empty_commit": false,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPut, c.endpoint("projects/"+url.PathEscape(name)), payload)
	if err == nil {
		return nil
	}
	var pubErr *errors.PublishError
	if errors.As(err, &pubErr) {
		if pubErr.StatusCode == http.StatusConflict {
			// created concurrently or hidden from the listing
			return nil
		}
		return pubErr.WithProject(name)
	}
	return err
}

func (c *GerritClient) endpoint(path string) string {
	if c.username != "" {
		return c.baseURL + "/a/" + path
	}
	return c.baseURL + "/" + path
}

func (c *GerritClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewPublishError(fmt.Sprintf("%s %s failed", method, endpoint),
			errors.Join(errors.ErrHostRequest, err)).WithHost(c.baseURL)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.NewPublishError("failed to read response", errors.Join(errors.ErrHostRequest, err)).
			WithHost(c.baseURL)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewPublishError(
			fmt.Sprintf("%s %s: %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(body))),
			errors.ErrHostRequest,
		).WithHost(c.baseURL).WithStatusCode(resp.StatusCode)
	}
	return body, nil
}

func stripGuard(body []byte) []byte {
	return bytes.TrimSpace(bytes.TrimPrefix(bytes.TrimSpace(body), []byte(xssiGuard)))
}

package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// ErrReadmeNotFound reports a repository whose README could not be fetched,
// including repositories that do not exist.
var ErrReadmeNotFound = errors.New("readme not found")

var repoURLPattern = regexp.MustCompile(`^https?://github\.com/([^/]+)/([^/]+)(?:/|$)`)

// Client fetches README content through the GitHub REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchReadme returns the raw README of a repository given either a full
// github.com URL or an "owner/repo" reference.
func (c *Client) FetchReadme(ctx context.Context, repo string) (string, error) {
	owner, name, ok := ParseRepo(repo)
	if !ok {
		return "", fmt.Errorf("%w: unrecognized repository reference %q", ErrReadmeNotFound, repo)
	}

	url := fmt.Sprintf("%s/repos/%s/%s/readme", c.baseURL, owner, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create readme request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3.raw")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch readme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrReadmeNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch readme: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read readme body: %w", err)
	}
	return string(body), nil
}

// ParseRepo extracts owner and repository name from a full github.com URL or
// an "owner/repo" reference. A trailing ".git" is stripped.
func ParseRepo(input string) (owner, name string, ok bool) {
	input = strings.TrimSpace(input)

	if m := repoURLPattern.FindStringSubmatch(input); m != nil {
		return m[1], strings.TrimSuffix(m[2], ".git"), true
	}

	if strings.Contains(input, "://") || strings.Contains(input, "github.com") {
		return "", "", false
	}

	parts := strings.Split(input, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

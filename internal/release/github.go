package release

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Release is the subset of published-release metadata the notifier consumes.
type Release struct {
	Name    string // release name, compared against the running version
	TagName string
	HTMLURL string // download / landing page
	Body    string // release notes markdown
}

// Source fetches release metadata for an owner/repo project.
type Source interface {
	Latest(ctx context.Context, owner, repo string) (Release, error)
	ByTag(ctx context.Context, owner, repo, tag string) (Release, error)
}

// GitHubClient implements Source against the GitHub releases API.
type GitHubClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewGitHubClient builds a client for api.github.com. token may be empty for
// anonymous access.
func NewGitHubClient(token string) *GitHubClient {
	return &GitHubClient{
		baseURL: "https://api.github.com",
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewGitHubClientWithBaseURL is used by tests to point at a stub server.
func NewGitHubClientWithBaseURL(baseURL, token string) *GitHubClient {
	c := NewGitHubClient(token)
	c.baseURL = baseURL
	return c
}

type githubRelease struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	HTMLURL string `json:"html_url"`
	Body    string `json:"body"`
}

func (c *GitHubClient) Latest(ctx context.Context, owner, repo string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, owner, repo)
	return c.fetch(ctx, url)
}

func (c *GitHubClient) ByTag(ctx context.Context, owner, repo, tag string) (Release, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.baseURL, owner, repo, tag)
	return c.fetch(ctx, url)
}

func (c *GitHubClient) fetch(ctx context.Context, url string) (Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Release{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Release{}, fmt.Errorf("failed to fetch release: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Release{}, fmt.Errorf("github API error: %s - %s", resp.Status, string(body))
	}

	var gr githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return Release{}, fmt.Errorf("failed to decode response: %w", err)
	}
	return Release{Name: gr.Name, TagName: gr.TagName, HTMLURL: gr.HTMLURL, Body: gr.Body}, nil
}

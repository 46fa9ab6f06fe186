package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ghascaler/internal/config"
	"ghascaler/pkg/logging"

	gogithub "github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"
)

// Client polls the GitHub Actions API for the configured repository.
type Client struct {
	gh    *gogithub.Client
	owner string
	repo  string
}

// NewClient builds a Client from the github section of the configuration.
// The repository owner and name are derived from the configured repo URL.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	owner, repo, err := splitRepoURL(cfg.Runners.RepoURL)
	if err != nil {
		return nil, err
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.PersonalAccessToken})
	httpClient := oauth2.NewClient(context.Background(), ts)
	httpClient.Timeout = 10 * time.Second

	gh := gogithub.NewClient(httpClient)
	if cfg.APIEndpoint != "" {
		gh, err = gh.WithEnterpriseURLs(cfg.APIEndpoint, cfg.APIEndpoint)
		if err != nil {
			return nil, fmt.Errorf("invalid github.api_endpoint: %w", err)
		}
	}

	return &Client{gh: gh, owner: owner, repo: repo}, nil
}

// GetQueueSnapshot implements Source. Two list calls, one per status; only
// the total counts are consumed, so the page size is kept minimal.
func (c *Client) GetQueueSnapshot(ctx context.Context) (Snapshot, error) {
	queued, err := c.countRuns(ctx, "queued")
	if err != nil {
		return Snapshot{}, &TransientError{Cause: err}
	}
	running, err := c.countRuns(ctx, "in_progress")
	if err != nil {
		return Snapshot{}, &TransientError{Cause: err}
	}

	snap := Snapshot{
		QueuedCount:  queued,
		RunningCount: running,
		Timestamp:    time.Now(),
	}
	logging.Debug("GitHub", "Queue snapshot for %s/%s: %d queued, %d running",
		c.owner, c.repo, snap.QueuedCount, snap.RunningCount)
	return snap, nil
}

func (c *Client) countRuns(ctx context.Context, status string) (int, error) {
	opts := &gogithub.ListWorkflowRunsOptions{
		Status:      status,
		ListOptions: gogithub.ListOptions{PerPage: 1},
	}
	runs, _, err := c.gh.Actions.ListRepositoryWorkflowRuns(ctx, c.owner, c.repo, opts)
	if err != nil {
		return 0, fmt.Errorf("listing %s workflow runs for %s/%s: %w", status, c.owner, c.repo, err)
	}
	return runs.GetTotalCount(), nil
}

// splitRepoURL extracts "owner" and "repo" from a repository URL like
// https://github.com/owner/repo (an optional .git suffix is dropped).
func splitRepoURL(repoURL string) (string, string, error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid repository URL '%s': %w", repoURL, err)
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository URL '%s' must have the form https://host/owner/repo", repoURL)
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

package github

import (
	"testing"

	"ghascaler/internal/config"
)

func TestSplitRepoURL(t *testing.T) {
	tests := []struct {
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{url: "https://github.com/acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{url: "https://github.com/acme/widgets.git", wantOwner: "acme", wantRepo: "widgets"},
		{url: "https://github.com/acme/widgets/", wantOwner: "acme", wantRepo: "widgets"},
		{url: "https://ghe.internal/acme/widgets", wantOwner: "acme", wantRepo: "widgets"},
		{url: "https://github.com/acme", wantErr: true},
		{url: "https://github.com/acme/widgets/extra", wantErr: true},
		{url: "https://github.com/", wantErr: true},
	}

	for _, tt := range tests {
		owner, repo, err := splitRepoURL(tt.url)
		if tt.wantErr {
			if err == nil {
				t.Errorf("splitRepoURL(%q): expected error", tt.url)
			}
			continue
		}
		if err != nil {
			t.Errorf("splitRepoURL(%q): %v", tt.url, err)
			continue
		}
		if owner != tt.wantOwner || repo != tt.wantRepo {
			t.Errorf("splitRepoURL(%q) = %s/%s, want %s/%s", tt.url, owner, repo, tt.wantOwner, tt.wantRepo)
		}
	}
}

func TestNewClient_RejectsBadRepoURL(t *testing.T) {
	_, err := NewClient(config.GitHubConfig{
		PersonalAccessToken: "ghp_token",
		Runners:             config.RunnerConfig{RepoURL: "https://github.com/just-an-owner"},
	})
	if err == nil {
		t.Error("expected error for URL without a repository")
	}
}

func TestNewClient_EnterpriseEndpoint(t *testing.T) {
	c, err := NewClient(config.GitHubConfig{
		PersonalAccessToken: "ghp_token",
		APIEndpoint:         "https://ghe.internal/api/v3/",
		Runners:             config.RunnerConfig{RepoURL: "https://ghe.internal/acme/widgets"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.owner != "acme" || c.repo != "widgets" {
		t.Errorf("unexpected owner/repo %s/%s", c.owner, c.repo)
	}
}

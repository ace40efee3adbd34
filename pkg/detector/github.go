package detector

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGitHubAPI is the public GitHub REST endpoint.
const DefaultGitHubAPI = "https://api.github.com"

// GitHubBranch reports the head commit sha of a repository branch.
type GitHubBranch struct {
	BaseURL string
	Repo    string // owner/name
	Branch  string
	Token   string
	Client  *http.Client
	Retry   RetryConfig
}

type githubBranchResponse struct {
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// NewGitHubBranch creates a detector for repo ("owner/name") and branch.
func NewGitHubBranch(repo, branch, token string) (*GitHubBranch, error) {
	if strings.Count(repo, "/") != 1 || strings.HasPrefix(repo, "/") || strings.HasSuffix(repo, "/") {
		return nil, fmt.Errorf("github repo must be owner/name, got %q", repo)
	}
	if branch == "" {
		branch = "main"
	}
	return &GitHubBranch{
		BaseURL: DefaultGitHubAPI,
		Repo:    repo,
		Branch:  branch,
		Token:   token,
		Retry:   DefaultRetryConfig(),
	}, nil
}

// LatestChangeID returns the branch head sha.
func (g *GitHubBranch) LatestChangeID(ctx context.Context) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/branches/%s",
		strings.TrimRight(g.BaseURL, "/"), g.Repo, url.PathEscape(g.Branch))

	auth := ""
	if g.Token != "" {
		auth = "Bearer " + g.Token
	}

	var body githubBranchResponse
	err := retryWithBackoff(ctx, g.Retry, func() error {
		return getJSON(ctx, newHTTPClient(g.Client), endpoint, auth, &body)
	})
	if err != nil {
		return "", err
	}
	return body.Commit.SHA, nil
}

package forge

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/eegrasp/graspci/internal/config"
	"github.com/eegrasp/graspci/internal/errors"
)

// GitHubClient implements Client against the GitHub REST API for a single repository.
type GitHubClient struct {
	*baseClient
	owner string
	repo  string
}

// NewGitHubClient creates a client for cfg.Repository using cfg.Token.
func NewGitHubClient(cfg config.ForgeConfig) (*GitHubClient, error) {
	return NewGitHubClientWithHTTP(cfg, &http.Client{Timeout: timeoutOr(cfg.Timeout, 30*time.Second)})
}

// NewGitHubClientWithHTTP is NewGitHubClient with a caller-supplied HTTP client.
func NewGitHubClientWithHTTP(cfg config.ForgeConfig, httpClient *http.Client) (*GitHubClient, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, ErrAuthRequired
	}
	owner, repo, ok := strings.Cut(cfg.Repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, ErrRepositoryRequired
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "https://api.github.com"
	}

	base := newBaseClient(httpClient, apiURL, cfg.Token)
	base.headers["Accept"] = "application/vnd.github+json"
	base.headers["X-GitHub-Api-Version"] = "2022-11-28"
	return &GitHubClient{baseClient: base, owner: owner, repo: repo}, nil
}

// Repository returns owner/name.
func (c *GitHubClient) Repository() string { return c.owner + "/" + c.repo }

type githubRef struct {
	Ref  string `json:"ref"`
	Repo *struct {
		FullName string `json:"full_name"`
	} `json:"repo"`
}

func (r githubRef) fullName() string {
	if r.Repo == nil {
		return ""
	}
	return r.Repo.FullName
}

type githubPull struct {
	Number int       `json:"number"`
	Title  string    `json:"title"`
	State  string    `json:"state"`
	Merged bool      `json:"merged"`
	Base   githubRef `json:"base"`
	Head   githubRef `json:"head"`
}

func (p githubPull) toPullRequest() *PullRequest {
	return &PullRequest{
		Number:   p.Number,
		Title:    p.Title,
		State:    p.State,
		Merged:   p.Merged,
		Base:     p.Base.Ref,
		Head:     p.Head.Ref,
		BaseRepo: p.Base.fullName(),
		HeadRepo: p.Head.fullName(),
	}
}

func (c *GitHubClient) repoPath(format string, args ...any) string {
	return fmt.Sprintf("repos/%s/%s/", url.PathEscape(c.owner), url.PathEscape(c.repo)) + fmt.Sprintf(format, args...)
}

// GetPullRequest fetches a pull request by number.
func (c *GitHubClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.repoPath("pulls/%d", number), nil)
	if err != nil {
		return nil, err
	}
	var pull githubPull
	if err := c.doRequest(req, &pull); err != nil {
		return nil, err
	}
	return pull.toPullRequest(), nil
}

// AddLabels adds labels to the pull request's issue.
func (c *GitHubClient) AddLabels(ctx context.Context, number int, labels ...string) error {
	body := map[string][]string{"labels": labels}
	req, err := c.newRequest(ctx, http.MethodPost, c.repoPath("issues/%d/labels", number), body)
	if err != nil {
		return err
	}
	return c.doRequest(req, nil)
}

// MergePullRequest merges the pull request with the given method (merge, squash or rebase).
func (c *GitHubClient) MergePullRequest(ctx context.Context, number int, method string) (*MergeResult, error) {
	body := map[string]string{"merge_method": method}
	req, err := c.newRequest(ctx, http.MethodPut, c.repoPath("pulls/%d/merge", number), body)
	if err != nil {
		return nil, err
	}
	var res MergeResult
	if err := c.doRequest(req, &res); err != nil {
		switch statusCode(err) {
		case http.StatusMethodNotAllowed, http.StatusConflict:
			refused := ErrMergeRefused.WithContext("pull_request", number)
			if ce, ok := errors.AsClassified(err); ok {
				if resp, ok := ce.Context().GetString("response"); ok {
					refused = refused.WithContext("response", resp)
				}
			}
			return nil, refused
		}
		return nil, err
	}
	if !res.Merged {
		return &res, ErrMergeRefused.WithContext("pull_request", number).WithContext("response", res.Message)
	}
	return &res, nil
}

// DeleteBranch removes refs/heads/<branch> from the repository.
func (c *GitHubClient) DeleteBranch(ctx context.Context, branch string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.repoPath("git/refs/heads/%s", branch), nil)
	if err != nil {
		return err
	}
	if err := c.doRequest(req, nil); err != nil {
		// GitHub answers 422 "Reference does not exist" for missing refs.
		switch statusCode(err) {
		case http.StatusNotFound, http.StatusUnprocessableEntity:
			return ErrBranchNotFound.WithContext("branch", branch)
		}
		return err
	}
	return nil
}

func timeoutOr(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

// Package forge is a small GitHub REST client covering the calls the auto-merge gate needs.
package forge

import (
	"context"
	"strings"
)

// PullRequest identifies a pull request and the branches it joins.
type PullRequest struct {
	Number   int
	Title    string
	Base     string // target branch
	Head     string // source branch
	BaseRepo string // owner/name the PR is opened against
	HeadRepo string // owner/name that owns Head; differs from BaseRepo for forks
	Merged   bool
	State    string
}

// IsFork reports whether the head branch lives outside the base repository.
func (pr PullRequest) IsFork() bool {
	return pr.HeadRepo != "" && pr.BaseRepo != "" && !strings.EqualFold(pr.HeadRepo, pr.BaseRepo)
}

// MergeResult is GitHub's answer to a merge request.
type MergeResult struct {
	SHA     string `json:"sha"`
	Merged  bool   `json:"merged"`
	Message string `json:"message"`
}

// Client is the subset of the GitHub API used by graspci.
type Client interface {
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)
	AddLabels(ctx context.Context, number int, labels ...string) error
	MergePullRequest(ctx context.Context, number int, method string) (*MergeResult, error)
	DeleteBranch(ctx context.Context, branch string) error
}

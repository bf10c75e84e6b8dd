// Package cienv reads the GitHub Actions environment a workflow step runs in.
package cienv

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/forge"
)

// Env is a snapshot of the GITHUB_* variables.
type Env struct {
	Ref        string
	Repository string
	BaseRef    string
	HeadRef    string
	EventName  string
	EventPath  string
	Actions    bool
}

// FromEnvironment reads the process environment.
func FromEnvironment() Env {
	return Lookup(os.Getenv)
}

// Lookup reads the variables through getenv.
func Lookup(getenv func(string) string) Env {
	return Env{
		Ref:        getenv("GITHUB_REF"),
		Repository: getenv("GITHUB_REPOSITORY"),
		BaseRef:    getenv("GITHUB_BASE_REF"),
		HeadRef:    getenv("GITHUB_HEAD_REF"),
		EventName:  getenv("GITHUB_EVENT_NAME"),
		EventPath:  getenv("GITHUB_EVENT_PATH"),
		Actions:    getenv("GITHUB_ACTIONS") == "true",
	}
}

// IsPullRequest reports whether the run was triggered by a pull request event.
func (e Env) IsPullRequest() bool {
	return e.EventName == "pull_request" || e.EventName == "pull_request_target"
}

// ErrNotPullRequest signals that no pull request could be derived from the environment.
var ErrNotPullRequest = errors.ValidationError("not running for a pull request (use --pr, --base and --head)").Build()

type eventRef struct {
	Ref  string `json:"ref"`
	Repo *struct {
		FullName string `json:"full_name"`
	} `json:"repo"`
}

type pullRequestEvent struct {
	Number      int `json:"number"`
	PullRequest *struct {
		Number int      `json:"number"`
		Title  string   `json:"title"`
		Base   eventRef `json:"base"`
		Head   eventRef `json:"head"`
	} `json:"pull_request"`
}

// PullRequest derives the triggering pull request, preferring the event payload.
func (e Env) PullRequest() (*forge.PullRequest, error) {
	if e.EventPath != "" {
		pr, err := readEvent(e.EventPath)
		if err != nil {
			return nil, err
		}
		if pr != nil {
			if pr.BaseRepo == "" {
				pr.BaseRepo = e.Repository
			}
			return pr, nil
		}
	}

	number := pullNumberFromRef(e.Ref)
	if number == 0 || e.BaseRef == "" || e.HeadRef == "" {
		return nil, ErrNotPullRequest
	}
	return &forge.PullRequest{
		Number:   number,
		Base:     e.BaseRef,
		Head:     e.HeadRef,
		BaseRepo: e.Repository,
	}, nil
}

func readEvent(path string) (*forge.PullRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.FileSystemError("failed to read GitHub event payload").WithCause(err).WithContext("path", path).Build()
	}
	var ev pullRequestEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, errors.ValidationError("malformed GitHub event payload").WithCause(err).WithContext("path", path).Build()
	}
	if ev.PullRequest == nil {
		return nil, nil
	}
	number := ev.PullRequest.Number
	if number == 0 {
		number = ev.Number
	}
	pr := &forge.PullRequest{
		Number: number,
		Title:  ev.PullRequest.Title,
		Base:   ev.PullRequest.Base.Ref,
		Head:   ev.PullRequest.Head.Ref,
	}
	if r := ev.PullRequest.Base.Repo; r != nil {
		pr.BaseRepo = r.FullName
	}
	if r := ev.PullRequest.Head.Repo; r != nil {
		pr.HeadRepo = r.FullName
	}
	return pr, nil
}

// pullNumberFromRef parses refs/pull/<n>/merge.
func pullNumberFromRef(ref string) int {
	rest, ok := strings.CutPrefix(ref, "refs/pull/")
	if !ok {
		return 0
	}
	num, _, _ := strings.Cut(rest, "/")
	n, err := strconv.Atoi(num)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

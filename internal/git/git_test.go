package git

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

var commitAuthor = object.Signature{Name: "graspci", Email: "graspci@example.com"}

func initRepo(t *testing.T) (*git.Repository, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	return repo, dir
}

func commit(t *testing.T, repo *git.Repository, dir, name string) plumbing.Hash {
	t.Helper()
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := commitAuthor
	sig.When = time.Now()
	hash, err := wt.Commit("add "+name, &git.CommitOptions{Author: &sig})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	return hash
}

func TestReadHeadBranch(t *testing.T) {
	repo, dir := initRepo(t)
	hash := commit(t, repo, dir, "a.txt")

	head, err := ReadHead(dir)
	if err != nil {
		t.Fatalf("read head: %v", err)
	}
	if head.Commit != hash.String() {
		t.Errorf("commit = %s, want %s", head.Commit, hash)
	}
	if head.Branch != "master" {
		t.Errorf("branch = %q, want master", head.Branch)
	}
	if got := head.Ref(); got != "refs/heads/master" {
		t.Errorf("ref = %q", got)
	}
}

func TestReadHeadTags(t *testing.T) {
	repo, dir := initRepo(t)
	first := commit(t, repo, dir, "a.txt")
	if _, err := repo.CreateTag("v0.9.0", first, nil); err != nil {
		t.Fatalf("tag: %v", err)
	}
	second := commit(t, repo, dir, "b.txt")
	if _, err := repo.CreateTag("v1.0.0", second, nil); err != nil {
		t.Fatalf("tag: %v", err)
	}
	sig := commitAuthor
	sig.When = time.Now()
	if _, err := repo.CreateTag("v1.0.1", second, &git.CreateTagOptions{Tagger: &sig, Message: "release"}); err != nil {
		t.Fatalf("annotated tag: %v", err)
	}

	head, err := ReadHead(filepath.Join(dir))
	if err != nil {
		t.Fatalf("read head: %v", err)
	}
	if len(head.Tags) != 2 || head.Tags[0] != "v1.0.0" || head.Tags[1] != "v1.0.1" {
		t.Fatalf("tags = %v", head.Tags)
	}
	if got := head.Ref(); got != "refs/tags/v1.0.1" {
		t.Errorf("ref = %q", got)
	}
}

func TestReadHeadDetectsParent(t *testing.T) {
	repo, dir := initRepo(t)
	commit(t, repo, dir, "a.txt")
	sub := filepath.Join(dir, "examples")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadHead(sub); err != nil {
		t.Fatalf("expected parent repository to be found: %v", err)
	}
}

func TestReadHeadNotARepository(t *testing.T) {
	if _, err := ReadHead(t.TempDir()); err == nil {
		t.Fatal("expected error outside a repository")
	}
}

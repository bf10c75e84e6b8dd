// Package git resolves refs of the local checkout with go-git.
package git

import (
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/eegrasp/graspci/internal/errors"
)

// Head describes what HEAD points at.
type Head struct {
	Commit string
	Branch string   // short branch name, empty when detached
	Tags   []string // short names of tags pointing at Commit, sorted
}

// Ref returns the fully qualified ref a CI system would report for this checkout:
// the last tag at HEAD, else the branch, else the bare commit.
func (h Head) Ref() string {
	switch {
	case len(h.Tags) > 0:
		return plumbing.NewTagReferenceName(h.Tags[len(h.Tags)-1]).String()
	case h.Branch != "":
		return plumbing.NewBranchReferenceName(h.Branch).String()
	}
	return h.Commit
}

func open(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.GitError("failed to open git repository").WithCause(err).WithContext("path", path).Build()
	}
	return repo, nil
}

// ReadHead inspects the repository containing path.
func ReadHead(path string) (*Head, error) {
	repo, err := open(path)
	if err != nil {
		return nil, err
	}
	ref, err := repo.Head()
	if err != nil {
		return nil, errors.GitError("failed to resolve HEAD").WithCause(err).WithContext("path", path).Build()
	}

	head := &Head{Commit: ref.Hash().String()}
	if ref.Name().IsBranch() {
		head.Branch = ref.Name().Short()
	}

	tags, err := tagsAt(repo, ref.Hash())
	if err != nil {
		return nil, err
	}
	head.Tags = tags
	return head, nil
}

// tagsAt lists lightweight and annotated tags whose target commit is hash.
func tagsAt(repo *git.Repository, hash plumbing.Hash) ([]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, errors.GitError("failed to list tags").WithCause(err).Build()
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		target := ref.Hash()
		if tag, terr := repo.TagObject(target); terr == nil {
			commit, cerr := tag.Commit()
			if cerr != nil {
				// Tags of trees or blobs never match a commit.
				return nil //nolint:nilerr // skip non-commit tags
			}
			target = commit.Hash
		}
		if target == hash {
			names = append(names, ref.Name().Short())
		}
		return nil
	})
	if err != nil {
		return nil, errors.GitError("failed to inspect tags").WithCause(err).Build()
	}
	sort.Strings(names)
	return names, nil
}

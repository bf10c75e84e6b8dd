package release

import (
	"strings"

	"golang.org/x/mod/semver"

	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/pyversion"
)

const tagPrefix = "refs/tags/"

var (
	// ErrNotATag rejects a release triggered by anything but a tag ref.
	ErrNotATag = errors.ReleaseError("ref is not a tag").Build()

	// ErrInvalidTag rejects a tag that is not a v-prefixed MAJOR.MINOR.PATCH version.
	ErrInvalidTag = errors.ReleaseError("tag is not a vMAJOR.MINOR.PATCH version").Build()

	// ErrInvalidVersion rejects a version argument that is not MAJOR.MINOR.PATCH.
	ErrInvalidVersion = errors.ValidationError("version is not MAJOR.MINOR.PATCH").Build()
)

// Tag is a release tag and the package version derived from it.
type Tag struct {
	Name    string // v1.2.3
	Version string // 1.2.3
}

// ParseTagRef validates ref (refs/tags/v1.2.3) and returns its tag.
func ParseTagRef(ref string) (Tag, error) {
	name, ok := strings.CutPrefix(ref, tagPrefix)
	if !ok || name == "" {
		return Tag{}, ErrNotATag.WithContext("ref", ref)
	}
	if !isFullSemver(name) {
		return Tag{}, ErrInvalidTag.WithContext("ref", ref).WithContext("tag", name)
	}
	return Tag{Name: name, Version: pyversion.Normalize(name)}, nil
}

// ParseVersion accepts 1.2.3 or v1.2.3 under the same rules as release tags.
func ParseVersion(v string) (Tag, error) {
	name := "v" + strings.TrimPrefix(strings.TrimSpace(v), "v")
	if !isFullSemver(name) {
		return Tag{}, ErrInvalidVersion.WithContext("version", v)
	}
	return Tag{Name: name, Version: pyversion.Normalize(name)}, nil
}

// isFullSemver accepts v1.2.3 and v1.2.3-rc.1 but not the v1 / v1.2 shorthands semver allows.
func isFullSemver(name string) bool {
	if !strings.HasPrefix(name, "v") || !semver.IsValid(name) {
		return false
	}
	core := strings.TrimPrefix(name, "v")
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core = core[:i]
	}
	return strings.Count(core, ".") == 2
}

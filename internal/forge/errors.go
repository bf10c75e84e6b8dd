package forge

import "github.com/eegrasp/graspci/internal/errors"

var (
	// ErrAuthRequired signals that no API token was configured.
	ErrAuthRequired = errors.AuthError("GitHub token required (set GITHUB_TOKEN)").Build()

	// ErrRepositoryRequired signals that no owner/name repository was configured.
	ErrRepositoryRequired = errors.ConfigError("repository required (set GITHUB_REPOSITORY or forge.repository)").Build()

	// ErrMergeRefused signals a 405 or 409 from the merge endpoint.
	ErrMergeRefused = errors.ForgeError("pull request is not mergeable").Build()

	// ErrBranchNotFound signals that the branch to delete does not exist.
	ErrBranchNotFound = errors.NewError(errors.CategoryNotFound, "branch not found").WithSeverity(errors.SeverityWarning).Build()
)

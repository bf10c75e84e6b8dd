// Package git reads the local checkout with go-git: the commit, branch and
// tags at HEAD. The release command uses it to infer the triggering ref when
// neither --ref nor GITHUB_REF is given.
package git

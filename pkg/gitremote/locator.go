package gitremote

import (
	"regexp"
	"strings"
)

var repoLocatorRe = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+?)(?:\.git)?(?:/tree/([^/]+)(?:/(.+))?)?$`)

// ParseLocator parses a raw repository locator into a RemoteRef.
//
// Recognized shapes:
//
//	https://github.com/owner/repo
//	https://github.com/owner/repo.git
//	https://github.com/owner/repo/tree/<branch>
//	https://github.com/owner/repo/tree/<branch>/<subdir>
//
// Everything after the branch segment of a /tree/ URL is the subdirectory.
func ParseLocator(raw string) (RemoteRef, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" {
		return RemoteRef{}, &InvalidReferenceError{Locator: raw, Reason: "empty locator"}
	}

	m := repoLocatorRe.FindStringSubmatch(trimmed)
	if m == nil {
		return RemoteRef{}, &InvalidReferenceError{
			Locator: raw,
			Reason:  "expected https://github.com/<owner>/<repo>[/tree/<branch>[/<subdir>]]",
		}
	}

	owner, repo, branch, subdir := m[1], m[2], m[3], m[4]
	return RemoteRef{
		RepoURL:      "https://github.com/" + owner + "/" + repo,
		BranchOrTag:  branch,
		Subdirectory: strings.Trim(subdir, "/"),
	}, nil
}

// CloneURL returns the URL git uses to clone the referenced repository.
func (r RemoteRef) CloneURL() string {
	return r.RepoURL + ".git"
}

// String renders the reference back into locator form.
func (r RemoteRef) String() string {
	if r.BranchOrTag == "" && r.Subdirectory == "" {
		return r.RepoURL
	}
	branch := r.BranchOrTag
	if branch == "" {
		branch = "HEAD"
	}
	s := r.RepoURL + "/tree/" + branch
	if r.Subdirectory != "" {
		s += "/" + r.Subdirectory
	}
	return s
}

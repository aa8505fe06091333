package gitremote

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestCandidateRefs(t *testing.T) {
	t.Run("named branch or tag", func(t *testing.T) {
		refs := candidateRefs("v1.2.0")
		assert.Equal(t, []string{"refs/heads/v1.2.0", "refs/tags/v1.2.0"}, refs)
	})

	t.Run("default branch fallback order", func(t *testing.T) {
		refs := candidateRefs("")
		assert.Equal(t, []string{"refs/heads/main", "refs/heads/master", "HEAD"}, refs)
	})
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("connection reset")

	assert.True(t, IsRetryable(&RemoteUnreachableError{RepoURL: "https://github.com/o/r", Cause: cause}))
	assert.True(t, IsRetryable(&SnapshotIncompleteError{RepoURL: "https://github.com/o/r", Cause: cause}))
	assert.False(t, IsRetryable(&RefNotFoundError{RepoURL: "https://github.com/o/r", Ref: "main"}))
	assert.False(t, IsRetryable(&InvalidReferenceError{Locator: "bogus", Reason: "not a url"}))
	assert.False(t, IsRetryable(errors.New("something else")))

	// Wrapped retryable errors are still recognized.
	wrapped := errors.Wrap(&RemoteUnreachableError{RepoURL: "https://github.com/o/r", Cause: cause}, "resolve failed")
	assert.True(t, IsRetryable(wrapped))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: timeout")

	unreachable := &RemoteUnreachableError{RepoURL: "https://github.com/o/r", Cause: cause}
	assert.ErrorIs(t, unreachable, cause)
	assert.Contains(t, unreachable.Error(), "unreachable")

	incomplete := &SnapshotIncompleteError{RepoURL: "https://github.com/o/r", Cause: cause}
	assert.ErrorIs(t, incomplete, cause)
	assert.Contains(t, incomplete.Error(), "incomplete")

	notFound := &RefNotFoundError{RepoURL: "https://github.com/o/r", Ref: "release"}
	assert.Contains(t, notFound.Error(), `"release"`)
}

func TestNewGitCLIOptions(t *testing.T) {
	g := NewGitCLI(
		WithGitPath("/usr/local/bin/git"),
		WithResolveTimeout(5*time.Second),
		WithFetchTimeout(30*time.Second),
		WithRetry(1, 10*time.Millisecond),
	)

	assert.Equal(t, "/usr/local/bin/git", g.gitPath)
	assert.Equal(t, 5*time.Second, g.resolveTimeout)
	assert.Equal(t, 30*time.Second, g.fetchTimeout)
	assert.Equal(t, uint(1), g.retryAttempts)
	assert.Equal(t, 10*time.Millisecond, g.retryDelay)
}

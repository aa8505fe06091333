package gitremote

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jingkaihe/skillman/pkg/fileset"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/pkg/errors"
)

const (
	defaultResolveTimeout = 15 * time.Second
	defaultFetchTimeout   = 2 * time.Minute
	defaultRetryAttempts  = 3
	defaultRetryDelay     = 500 * time.Millisecond
)

var snapshotExcludes = []string{".git", ".git/**"}

// GitCLI implements Remote by shelling out to the git binary. Resolution uses
// ls-remote (no checkout); snapshots use a shallow clone into a temp
// directory that is removed before returning.
type GitCLI struct {
	gitPath        string
	resolveTimeout time.Duration
	fetchTimeout   time.Duration
	retryAttempts  uint
	retryDelay     time.Duration
	now            func() time.Time
}

// GitCLIOption configures a GitCLI
type GitCLIOption func(*GitCLI)

// WithGitPath overrides the git binary path
func WithGitPath(path string) GitCLIOption {
	return func(g *GitCLI) { g.gitPath = path }
}

// WithResolveTimeout sets the per-invocation timeout for ref listing
func WithResolveTimeout(d time.Duration) GitCLIOption {
	return func(g *GitCLI) { g.resolveTimeout = d }
}

// WithFetchTimeout sets the timeout for clone operations
func WithFetchTimeout(d time.Duration) GitCLIOption {
	return func(g *GitCLI) { g.fetchTimeout = d }
}

// WithRetry configures retry attempts and the initial backoff delay for
// retryable (unreachable/incomplete) failures
func WithRetry(attempts uint, delay time.Duration) GitCLIOption {
	return func(g *GitCLI) {
		g.retryAttempts = attempts
		g.retryDelay = delay
	}
}

// NewGitCLI creates a git-subprocess backed Remote
func NewGitCLI(opts ...GitCLIOption) *GitCLI {
	g := &GitCLI{
		gitPath:        "git",
		resolveTimeout: defaultResolveTimeout,
		fetchTimeout:   defaultFetchTimeout,
		retryAttempts:  defaultRetryAttempts,
		retryDelay:     defaultRetryDelay,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsRetryable reports whether an error is transient per the package error
// taxonomy: unreachable remotes and incomplete snapshots retry, malformed or
// absent references do not.
func IsRetryable(err error) bool {
	var unreachable *RemoteUnreachableError
	var incomplete *SnapshotIncompleteError
	return errors.As(err, &unreachable) || errors.As(err, &incomplete)
}

// ResolveRef resolves the ref via git ls-remote. When no branch or tag is
// named, it tries main, then master, then HEAD, matching the convention of
// the repositories this tool tracks.
func (g *GitCLI) ResolveRef(ctx context.Context, ref RemoteRef) (ResolvedCommit, error) {
	var resolved ResolvedCommit
	err := retry.Do(
		func() error {
			commit, err := g.resolveOnce(ctx, ref)
			if err != nil {
				return err
			}
			resolved = commit
			return nil
		},
		retry.RetryIf(IsRetryable),
		retry.Attempts(g.retryAttempts),
		retry.Delay(g.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return ResolvedCommit{}, err
	}
	return resolved, nil
}

func (g *GitCLI) resolveOnce(ctx context.Context, ref RemoteRef) (ResolvedCommit, error) {
	log := logger.G(ctx).WithField("repo", ref.RepoURL)

	for _, candidate := range candidateRefs(ref.BranchOrTag) {
		out, err := g.runGit(ctx, g.resolveTimeout, "", "ls-remote", ref.CloneURL(), candidate)
		if err != nil {
			return ResolvedCommit{}, &RemoteUnreachableError{RepoURL: ref.RepoURL, Cause: err}
		}
		if fields := strings.Fields(out); len(fields) > 0 {
			log.WithField("ref", candidate).WithField("commit", fields[0]).Debug("resolved remote reference")
			return ResolvedCommit{
				Ref:        ref,
				CommitHash: fields[0],
				ResolvedAt: g.now(),
			}, nil
		}
	}

	name := ref.BranchOrTag
	if name == "" {
		name = "HEAD"
	}
	return ResolvedCommit{}, &RefNotFoundError{RepoURL: ref.RepoURL, Ref: name}
}

func candidateRefs(branchOrTag string) []string {
	if branchOrTag != "" {
		return []string{
			"refs/heads/" + branchOrTag,
			"refs/tags/" + branchOrTag,
		}
	}
	return []string{"refs/heads/main", "refs/heads/master", "HEAD"}
}

// FetchSnapshot shallow-clones the repository into a temp directory and walks
// the scoped tree into a fileset. The commit recorded on the snapshot is the
// HEAD of the clone, which may differ from the originally resolved hash if
// the remote moved between resolve and fetch; callers record only hashes
// that were actually fetched.
func (g *GitCLI) FetchSnapshot(ctx context.Context, commit ResolvedCommit) (*Snapshot, error) {
	var snapshot *Snapshot
	err := retry.Do(
		func() error {
			snap, err := g.fetchOnce(ctx, commit)
			if err != nil {
				return err
			}
			snapshot = snap
			return nil
		},
		retry.RetryIf(IsRetryable),
		retry.Attempts(g.retryAttempts),
		retry.Delay(g.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (g *GitCLI) fetchOnce(ctx context.Context, commit ResolvedCommit) (*Snapshot, error) {
	ref := commit.Ref

	tmpDir, err := os.MkdirTemp("", "skillman-snapshot-*")
	if err != nil {
		return nil, errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(tmpDir)

	cloneArgs := []string{"clone", "--quiet", "--depth", "1"}
	if ref.BranchOrTag != "" {
		cloneArgs = append(cloneArgs, "--branch", ref.BranchOrTag, "--single-branch")
	}
	cloneArgs = append(cloneArgs, ref.CloneURL(), tmpDir)

	if _, err := g.runGit(ctx, g.fetchTimeout, "", cloneArgs...); err != nil {
		return nil, &RemoteUnreachableError{RepoURL: ref.RepoURL, Cause: err}
	}

	head, err := g.runGit(ctx, g.resolveTimeout, tmpDir, "rev-parse", "HEAD")
	if err != nil {
		return nil, &SnapshotIncompleteError{RepoURL: ref.RepoURL, Cause: err}
	}

	scope := tmpDir
	if ref.Subdirectory != "" {
		scope = filepath.Join(tmpDir, filepath.FromSlash(ref.Subdirectory))
		if _, err := os.Stat(scope); err != nil {
			return nil, &RefNotFoundError{RepoURL: ref.RepoURL, Ref: ref.Subdirectory}
		}
	}

	files, err := fileset.Walk(scope, snapshotExcludes)
	if err != nil {
		return nil, &SnapshotIncompleteError{RepoURL: ref.RepoURL, Cause: err}
	}

	logger.G(ctx).WithFields(map[string]interface{}{
		"repo":   ref.RepoURL,
		"commit": strings.TrimSpace(head),
		"files":  len(files),
	}).Debug("fetched remote snapshot")

	return &Snapshot{
		Commit: ResolvedCommit{
			Ref:        ref,
			CommitHash: strings.TrimSpace(head),
			ResolvedAt: g.now(),
		},
		Files: files,
	}, nil
}

// CommitDistance counts commits in from..to using a bare treeless clone.
// Strictly best-effort: any failure (old git, server without filter support,
// unrelated histories) surfaces as an error the caller is expected to drop.
func (g *GitCLI) CommitDistance(ctx context.Context, ref RemoteRef, from, to string) (int, error) {
	if from == "" || to == "" {
		return 0, errors.New("commit distance requires both endpoints")
	}

	tmpDir, err := os.MkdirTemp("", "skillman-distance-*")
	if err != nil {
		return 0, errors.Wrap(err, "failed to create temp directory")
	}
	defer os.RemoveAll(tmpDir)

	cloneArgs := []string{"clone", "--quiet", "--bare", "--filter=tree:0"}
	if ref.BranchOrTag != "" {
		cloneArgs = append(cloneArgs, "--branch", ref.BranchOrTag, "--single-branch")
	}
	cloneArgs = append(cloneArgs, ref.CloneURL(), tmpDir)

	if _, err := g.runGit(ctx, g.fetchTimeout, "", cloneArgs...); err != nil {
		return 0, &RemoteUnreachableError{RepoURL: ref.RepoURL, Cause: err}
	}

	out, err := g.runGit(ctx, g.resolveTimeout, tmpDir, "rev-list", "--count", from+".."+to)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count commits")
	}

	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected rev-list output %q", out)
	}
	return count, nil
}

func (g *GitCLI) runGit(ctx context.Context, timeout time.Duration, dir string, args ...string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, g.gitPath, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if cctx.Err() == context.DeadlineExceeded {
			return "", errors.Wrapf(cctx.Err(), "git %s timed out after %s", args[0], timeout)
		}
		return "", errors.Wrapf(err, "git %s failed: %s", args[0], strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}

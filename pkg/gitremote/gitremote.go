// Package gitremote resolves repository references to concrete commits and
// fetches repository trees at those commits. Remote access is modeled as two
// capability operations behind the Remote interface so the transport can be
// swapped; GitCLI is the git-subprocess backend.
package gitremote

import (
	"context"
	"time"

	"github.com/jingkaihe/skillman/pkg/fileset"
)

// RemoteRef is a normalized repository reference: repository URL, optional
// branch or tag (empty means the remote default branch) and optional
// subdirectory scope (empty means the repository root). Immutable once
// constructed by ParseLocator.
type RemoteRef struct {
	RepoURL      string
	BranchOrTag  string
	Subdirectory string
}

// ResolvedCommit pins a RemoteRef to the concrete commit it pointed at when
// resolution ran. Two resolutions of the same ref at different times may
// legitimately yield different commits.
type ResolvedCommit struct {
	Ref        RemoteRef
	CommitHash string
	ResolvedAt time.Time
}

// Snapshot is the complete file tree of a repository (or its subdirectory
// scope) at one specific commit.
type Snapshot struct {
	Commit ResolvedCommit
	Files  fileset.Set
}

// Remote abstracts the two source-control read capabilities the sync engine
// needs. Implementations must honor context cancellation and surface the
// error taxonomy defined in this package.
type Remote interface {
	// ResolveRef resolves the named branch/tag (or the remote default) to
	// the commit it currently points to, without a working-copy checkout.
	ResolveRef(ctx context.Context, ref RemoteRef) (ResolvedCommit, error)

	// FetchSnapshot retrieves the full file tree at the resolved commit,
	// scoped to the ref's subdirectory. Partial fetches are discarded and
	// reported as SnapshotIncompleteError.
	FetchSnapshot(ctx context.Context, commit ResolvedCommit) (*Snapshot, error)

	// CommitDistance counts commits between two hashes on the ref's
	// branch, best-effort. Callers omit the distance on error.
	CommitDistance(ctx context.Context, ref RemoteRef, from, to string) (int, error)
}

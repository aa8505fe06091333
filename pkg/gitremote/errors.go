package gitremote

import "fmt"

// InvalidReferenceError indicates a locator string that does not match a
// recognized repository-locator shape. Never retried.
type InvalidReferenceError struct {
	Locator string
	Reason  string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("invalid repository reference %q: %s", e.Locator, e.Reason)
}

// RemoteUnreachableError indicates a network or timeout failure talking to
// the remote. Safe to retry with backoff.
type RemoteUnreachableError struct {
	RepoURL string
	Cause   error
}

func (e *RemoteUnreachableError) Error() string {
	return fmt.Sprintf("remote %s unreachable: %v", e.RepoURL, e.Cause)
}

func (e *RemoteUnreachableError) Unwrap() error {
	return e.Cause
}

// RefNotFoundError indicates the named branch, tag or subdirectory does not
// exist on the remote. Never retried.
type RefNotFoundError struct {
	RepoURL string
	Ref     string
}

func (e *RefNotFoundError) Error() string {
	return fmt.Sprintf("reference %q not found in %s", e.Ref, e.RepoURL)
}

// SnapshotIncompleteError indicates a tree fetch that died partway. Partial
// results are discarded; retry semantics follow RemoteUnreachableError.
type SnapshotIncompleteError struct {
	RepoURL string
	Cause   error
}

func (e *SnapshotIncompleteError) Error() string {
	return fmt.Sprintf("incomplete snapshot fetch from %s: %v", e.RepoURL, e.Cause)
}

func (e *SnapshotIncompleteError) Unwrap() error {
	return e.Cause
}

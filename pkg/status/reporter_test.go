package status

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jingkaihe/skillman/pkg/gitremote"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote resolves every repository to a fixed commit hash keyed by repo
// URL and counts how many lookups it served.
type fakeRemote struct {
	heads     map[string]string
	distances map[string]int
	resolveErr error
	calls     atomic.Int64
}

func (f *fakeRemote) ResolveRef(ctx context.Context, ref gitremote.RemoteRef) (gitremote.ResolvedCommit, error) {
	f.calls.Add(1)
	if f.resolveErr != nil {
		return gitremote.ResolvedCommit{}, f.resolveErr
	}
	head, ok := f.heads[ref.RepoURL]
	if !ok {
		return gitremote.ResolvedCommit{}, &gitremote.RefNotFoundError{RepoURL: ref.RepoURL, Ref: "HEAD"}
	}
	return gitremote.ResolvedCommit{Ref: ref, CommitHash: head}, nil
}

func (f *fakeRemote) FetchSnapshot(ctx context.Context, commit gitremote.ResolvedCommit) (*gitremote.Snapshot, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRemote) CommitDistance(ctx context.Context, ref gitremote.RemoteRef, from, to string) (int, error) {
	distance, ok := f.distances[ref.RepoURL]
	if !ok {
		return 0, errors.New("distance unavailable")
	}
	return distance, nil
}

func writeSkill(t *testing.T, root, name, header string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, skills.SkillFileName), []byte(header), 0o644))
}

func testInventory(t *testing.T) (*skills.Inventory, string) {
	t.Helper()
	root := t.TempDir()
	inv, err := skills.NewInventory(skills.WithRoot(root))
	require.NoError(t, err)
	return inv, root
}

func findStatus(t *testing.T, report *Report, name string) SkillStatus {
	t.Helper()
	for _, s := range report.Skills {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("skill %s not in report", name)
	return SkillStatus{}
}

func TestRun(t *testing.T) {
	inv, root := testInventory(t)

	writeSkill(t, root, "current-skill", `---
name: current-skill
github_url: https://github.com/owner/current
github_hash: aaa
---
`)
	writeSkill(t, root, "stale-skill", `---
name: stale-skill
github_url: https://github.com/owner/stale
github_hash: old
---
`)
	writeSkill(t, root, "untracked-skill", `---
name: untracked-skill
---
`)

	remote := &fakeRemote{
		heads: map[string]string{
			"https://github.com/owner/current": "aaa",
			"https://github.com/owner/stale":   "bbb",
		},
		distances: map[string]int{
			"https://github.com/owner/stale": 3,
		},
	}

	report, err := NewReporter(inv, remote).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Current)
	assert.Equal(t, 1, report.Stale)
	assert.Equal(t, 1, report.Unknown)

	current := findStatus(t, report, "current-skill")
	assert.Equal(t, StateCurrent, current.State)
	assert.Equal(t, "aaa", current.RemoteHash)
	assert.Equal(t, "up to date", current.Message)

	stale := findStatus(t, report, "stale-skill")
	assert.Equal(t, StateStale, stale.State)
	require.NotNil(t, stale.CommitsBehind)
	assert.Equal(t, 3, *stale.CommitsBehind)
	assert.Equal(t, "3 commit(s) behind", stale.Message)

	untracked := findStatus(t, report, "untracked-skill")
	assert.Equal(t, StateUnknown, untracked.State)
	assert.Equal(t, "no source repository recorded", untracked.Message)

	// Untracked skills never hit the remote.
	assert.Equal(t, int64(2), remote.calls.Load())

	// The untracked skill has no source URL, so it does not fail the batch.
	assert.NoError(t, report.Err())
}

func TestRunUnreachableRemote(t *testing.T) {
	inv, root := testInventory(t)
	writeSkill(t, root, "broken", `---
name: broken
github_url: https://github.com/owner/broken
github_hash: aaa
---
`)

	remote := &fakeRemote{
		resolveErr: &gitremote.RemoteUnreachableError{
			RepoURL: "https://github.com/owner/broken",
			Cause:   errors.New("dial tcp: timeout"),
		},
	}

	report, err := NewReporter(inv, remote).Run(context.Background())
	require.NoError(t, err)

	broken := findStatus(t, report, "broken")
	assert.Equal(t, StateUnknown, broken.State)
	assert.Contains(t, broken.Message, "unreachable")

	// A tracked skill that could not be checked fails the batch.
	assert.Error(t, report.Err())
}

func TestRunDistanceUnavailableIsBestEffort(t *testing.T) {
	inv, root := testInventory(t)
	writeSkill(t, root, "stale", `---
name: stale
github_url: https://github.com/owner/stale
github_hash: old
---
`)

	remote := &fakeRemote{
		heads: map[string]string{"https://github.com/owner/stale": "bbb"},
	}

	report, err := NewReporter(inv, remote).Run(context.Background())
	require.NoError(t, err)

	stale := findStatus(t, report, "stale")
	assert.Equal(t, StateStale, stale.State)
	assert.Nil(t, stale.CommitsBehind)
	assert.Equal(t, "new commits available", stale.Message)
}

func TestRunWithoutDistance(t *testing.T) {
	inv, root := testInventory(t)
	writeSkill(t, root, "stale", `---
name: stale
github_url: https://github.com/owner/stale
github_hash: old
---
`)

	remote := &fakeRemote{
		heads:     map[string]string{"https://github.com/owner/stale": "bbb"},
		distances: map[string]int{"https://github.com/owner/stale": 7},
	}

	report, err := NewReporter(inv, remote, WithoutDistance()).Run(context.Background())
	require.NoError(t, err)

	stale := findStatus(t, report, "stale")
	assert.Equal(t, StateStale, stale.State)
	assert.Nil(t, stale.CommitsBehind)
}

func TestRunNoRecordedHash(t *testing.T) {
	inv, root := testInventory(t)
	writeSkill(t, root, "no-hash", `---
name: no-hash
github_url: https://github.com/owner/repo
---
`)

	remote := &fakeRemote{heads: map[string]string{"https://github.com/owner/repo": "aaa"}}

	report, err := NewReporter(inv, remote).Run(context.Background())
	require.NoError(t, err)

	status := findStatus(t, report, "no-hash")
	assert.Equal(t, StateUnknown, status.State)
	assert.Equal(t, "no recorded hash", status.Message)
	assert.Equal(t, "aaa", status.RemoteHash)
}

func TestRunCanceledContext(t *testing.T) {
	inv, root := testInventory(t)
	writeSkill(t, root, "skill-a", `---
name: skill-a
github_url: https://github.com/owner/a
github_hash: aaa
---
`)
	writeSkill(t, root, "skill-b", `---
name: skill-b
github_url: https://github.com/owner/b
github_hash: bbb
---
`)

	remote := &fakeRemote{heads: map[string]string{}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewReporter(inv, remote).Run(ctx)
	require.NoError(t, err)

	// No new units start after cancellation; every skill is reported.
	assert.Equal(t, 2, report.Total)
	for _, s := range report.Skills {
		assert.Equal(t, StateUnknown, s.State)
		assert.Equal(t, "scan canceled", s.Message)
	}
	assert.Equal(t, int64(0), remote.calls.Load())
}

func TestRunEmptyInventory(t *testing.T) {
	inv, _ := testInventory(t)

	report, err := NewReporter(inv, &fakeRemote{}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Total)
	assert.NoError(t, report.Err())
}

// Package diffplan computes file-level synchronization plans between a
// remote snapshot and a local skill directory. Plans are ordered so that new
// content lands before stale content is removed, and local-only files are
// never scheduled for deletion.
package diffplan

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/jingkaihe/skillman/pkg/fileset"
	"github.com/jingkaihe/skillman/pkg/gitremote"
)

// DefaultLocalExcludes are the ephemeral artifacts stripped from the local
// file set before planning: version-control internals, backup snapshots, OS
// droppings, and the metadata header itself (rewritten separately by the
// executor, never diffed against upstream).
var DefaultLocalExcludes = []string{
	".git",
	".git/**",
	"*.backup.*",
	"*.backup.*/**",
	"**/.DS_Store",
	"SKILL.md",
}

// ActionType enumerates the mutations a plan can contain
type ActionType string

const (
	// ActionCreate writes a file that exists remotely but not locally
	ActionCreate ActionType = "create"
	// ActionUpdate replaces a file whose content digest differs
	ActionUpdate ActionType = "update"
	// ActionDelete removes a file that was removed upstream
	ActionDelete ActionType = "delete"
)

// Action is one step of a synchronization plan. OldDigest records the local
// digest observed at planning time; the executor re-checks it immediately
// before mutating and skips the action as a conflict on mismatch.
type Action struct {
	Type      ActionType     `json:"action"`
	Path      string         `json:"path"`
	Entry     *fileset.Entry `json:"-"`
	OldDigest string         `json:"oldDigest,omitempty"`
	NewDigest string         `json:"newDigest,omitempty"`
	ChmodOnly bool           `json:"chmodOnly,omitempty"`
	Reason    string         `json:"reason"`
}

// Plan is an ordered list of actions computed against one specific
// (ResolvedCommit, local file set) pair. A plan goes stale if either side
// changes before execution; staleness is detected per-action at apply time.
type Plan struct {
	Commit   gitremote.ResolvedCommit
	SkillDir string
	Actions  []Action
	// Manifest is the remote tree's path -> digest projection, persisted
	// after a clean apply so the next plan can tell upstream-removed files
	// from local-only additions.
	Manifest map[string]string
}

// Empty reports whether the plan contains no actions
func (p *Plan) Empty() bool {
	return len(p.Actions) == 0
}

// Counts returns the number of creates, updates and deletes
func (p *Plan) Counts() (creates, updates, deletes int) {
	for _, a := range p.Actions {
		switch a.Type {
		case ActionCreate:
			creates++
		case ActionUpdate:
			updates++
		case ActionDelete:
			deletes++
		}
	}
	return
}

// Planner computes plans. Protected patterns shield matching paths from
// deletion even when the previous manifest says they came from upstream.
type Planner struct {
	protected []string
}

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithProtectedPatterns sets doublestar patterns that are never deleted
func WithProtectedPatterns(patterns ...string) PlannerOption {
	return func(p *Planner) {
		p.protected = append(p.protected, patterns...)
	}
}

// NewPlanner creates a Planner
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Compute diffs the remote snapshot against the local set.
//
//   - remote path absent locally: Create
//   - present in both with differing digest: Update (executable-bit-only
//     changes become a metadata-only Update)
//   - local path absent remotely: Delete, but ONLY when the previous sync
//     manifest shows the path came from upstream. Local-only additions are
//     intentional customizations and are never auto-deleted, whatever the
//     remote looks like. With no manifest (first sync), nothing is deleted.
//
// Ordering: creates and updates in path-lexicographic order, deletes last,
// so an interrupted run favors availability of new content over cleanup.
func (pl *Planner) Compute(commit gitremote.ResolvedCommit, skillDir string, remote, local fileset.Set, previous map[string]string) *Plan {
	plan := &Plan{
		Commit:   commit,
		SkillDir: skillDir,
		Manifest: remote.Digests(),
	}

	var mutations []Action
	for _, path := range remote.Paths() {
		remoteEntry := remote[path]
		localEntry, exists := local[path]

		if !exists {
			entry := remoteEntry
			mutations = append(mutations, Action{
				Type:      ActionCreate,
				Path:      path,
				Entry:     &entry,
				NewDigest: remoteEntry.Digest,
				Reason:    "new upstream file",
			})
			continue
		}

		if localEntry.Digest != remoteEntry.Digest {
			entry := remoteEntry
			mutations = append(mutations, Action{
				Type:      ActionUpdate,
				Path:      path,
				Entry:     &entry,
				OldDigest: localEntry.Digest,
				NewDigest: remoteEntry.Digest,
				Reason:    "upstream content changed",
			})
			continue
		}

		if localEntry.Kind == fileset.KindFile && localEntry.Executable != remoteEntry.Executable {
			entry := remoteEntry
			mutations = append(mutations, Action{
				Type:      ActionUpdate,
				Path:      path,
				Entry:     &entry,
				OldDigest: localEntry.Digest,
				NewDigest: remoteEntry.Digest,
				ChmodOnly: true,
				Reason:    "executable bit changed",
			})
		}
	}

	sort.Slice(mutations, func(i, j int) bool { return mutations[i].Path < mutations[j].Path })
	plan.Actions = mutations

	var deletes []Action
	for _, path := range local.Paths() {
		if _, exists := remote[path]; exists {
			continue
		}
		if _, tracked := previous[path]; !tracked || pl.isProtected(path) {
			continue
		}
		deletes = append(deletes, Action{
			Type:      ActionDelete,
			Path:      path,
			OldDigest: local[path].Digest,
			Reason:    "removed upstream",
		})
	}
	sort.Slice(deletes, func(i, j int) bool { return deletes[i].Path < deletes[j].Path })
	plan.Actions = append(plan.Actions, deletes...)

	return plan
}

// LocalSet walks a skill directory into a fileset with the default
// ephemeral-artifact exclusions applied.
func LocalSet(skillDir string) (fileset.Set, error) {
	return fileset.Walk(skillDir, DefaultLocalExcludes)
}

func (pl *Planner) isProtected(path string) bool {
	for _, pattern := range pl.protected {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

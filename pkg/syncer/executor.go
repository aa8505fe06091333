// Package syncer applies synchronization plans to the local file system:
// optional pre-apply backup, per-action conflict checking, and the atomic
// metadata-header rewrite that commits a successful sync.
package syncer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/skillman/pkg/diffplan"
	"github.com/jingkaihe/skillman/pkg/fileset"
	"github.com/jingkaihe/skillman/pkg/logger"
	"github.com/jingkaihe/skillman/pkg/skills"
	"github.com/pkg/errors"
)

// BackupFailedError aborts an apply before any mutation: when a backup was
// requested and cannot be taken, the target tree is left untouched.
type BackupFailedError struct {
	SkillDir string
	Cause    error
}

func (e *BackupFailedError) Error() string {
	return fmt.Sprintf("backup of %s failed: %v", e.SkillDir, e.Cause)
}

func (e *BackupFailedError) Unwrap() error {
	return e.Cause
}

// Options controls an Apply call
type Options struct {
	// Backup takes a timestamped full copy of the skill directory before
	// any mutation
	Backup bool
}

// Conflict records a single action skipped because its on-disk target
// changed between planning and execution. Conflicts do not abort the batch.
type Conflict struct {
	Path           string `json:"path"`
	Reason         string `json:"reason"`
	ExpectedDigest string `json:"expectedDigest,omitempty"`
	ActualDigest   string `json:"actualDigest,omitempty"`
}

// Result reports the outcome of one apply
type Result struct {
	RunID             string     `json:"runId"`
	SkillDir          string     `json:"skillDir"`
	OldHash           string     `json:"oldHash,omitempty"`
	NewHash           string     `json:"newHash"`
	Created           int        `json:"created"`
	Updated           int        `json:"updated"`
	Deleted           int        `json:"deleted"`
	Conflicts         []Conflict `json:"conflicts,omitempty"`
	BackupPath        string     `json:"backupPath,omitempty"`
	MetadataCommitted bool       `json:"metadataCommitted"`
	StartedAt         time.Time  `json:"startedAt"`
	DurationMS        int64      `json:"durationMs"`
}

// Complete reports whether every action applied cleanly. An incomplete
// result means the metadata header was left untouched and the sync should be
// rerun after the conflicting local edits are resolved.
func (r *Result) Complete() bool {
	return len(r.Conflicts) == 0
}

// ConflictError aggregates the conflicts into one error for reporting, or
// nil when the apply was complete.
func (r *Result) ConflictError() error {
	if len(r.Conflicts) == 0 {
		return nil
	}
	var merr *multierror.Error
	for _, c := range r.Conflicts {
		merr = multierror.Append(merr, errors.Errorf("%s: %s", c.Path, c.Reason))
	}
	return errors.Wrap(merr.ErrorOrNil(), "sync incomplete, rerun after resolving conflicting local edits")
}

// Executor applies plans
type Executor struct {
	now func() time.Time
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// NewExecutor creates an Executor
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply executes the plan's actions in order. Each action's target is
// digest-checked immediately before mutation; a mismatch turns that single
// action into a conflict and the rest of the plan proceeds. With zero
// conflicts the metadata header is rewritten atomically; otherwise it is
// left untouched. Once started, an apply runs to completion: cancellation is
// only observed before the first mutation.
func (e *Executor) Apply(ctx context.Context, plan *diffplan.Plan, opts Options) (*Result, error) {
	started := e.now()
	result := &Result{
		RunID:     uuid.New().String(),
		SkillDir:  plan.SkillDir,
		NewHash:   plan.Commit.CommitHash,
		StartedAt: started,
	}
	if record, err := skills.LoadRecord(plan.SkillDir); err == nil {
		result.OldHash = record.RecordedHash
	}

	if err := ctx.Err(); err != nil {
		return result, errors.Wrap(err, "sync canceled before apply")
	}

	log := logger.G(ctx).WithField("skill_dir", plan.SkillDir).WithField("run_id", result.RunID)

	if opts.Backup {
		backupPath, err := e.backup(plan.SkillDir, started)
		if err != nil {
			return result, &BackupFailedError{SkillDir: plan.SkillDir, Cause: err}
		}
		result.BackupPath = backupPath
		log.WithField("backup", backupPath).Debug("backup created")
	}

	for _, action := range plan.Actions {
		if conflict := e.applyAction(plan.SkillDir, action, result); conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			log.WithField("path", conflict.Path).WithField("reason", conflict.Reason).Warn("action skipped due to conflict")
		}
	}

	if result.Complete() && !plan.Empty() {
		if err := e.commitMetadata(plan); err != nil {
			return result, err
		}
		result.MetadataCommitted = true
	}

	result.DurationMS = e.now().Sub(started).Milliseconds()
	return result, nil
}

func (e *Executor) applyAction(skillDir string, action diffplan.Action, result *Result) *Conflict {
	target := filepath.Join(skillDir, filepath.FromSlash(action.Path))

	current, err := fileset.DigestFile(target)
	if err != nil {
		return &Conflict{Path: action.Path, Reason: fmt.Sprintf("failed to inspect target: %v", err)}
	}

	switch action.Type {
	case diffplan.ActionCreate:
		if current == action.NewDigest {
			// Already at the desired content, likely a rerun.
			result.Created++
			return nil
		}
		if current != "" {
			return &Conflict{
				Path:           action.Path,
				Reason:         "file appeared locally since planning",
				ExpectedDigest: "",
				ActualDigest:   current,
			}
		}
		if err := writeEntry(target, action.Entry); err != nil {
			return &Conflict{Path: action.Path, Reason: err.Error()}
		}
		result.Created++

	case diffplan.ActionUpdate:
		if current == action.NewDigest {
			if action.ChmodOnly {
				if err := chmodEntry(target, action.Entry); err != nil {
					return &Conflict{Path: action.Path, Reason: err.Error()}
				}
			}
			result.Updated++
			return nil
		}
		if current != action.OldDigest {
			return &Conflict{
				Path:           action.Path,
				Reason:         "local file changed since planning",
				ExpectedDigest: action.OldDigest,
				ActualDigest:   current,
			}
		}
		if action.ChmodOnly {
			if err := chmodEntry(target, action.Entry); err != nil {
				return &Conflict{Path: action.Path, Reason: err.Error()}
			}
		} else if err := writeEntry(target, action.Entry); err != nil {
			return &Conflict{Path: action.Path, Reason: err.Error()}
		}
		result.Updated++

	case diffplan.ActionDelete:
		if current == "" {
			result.Deleted++
			return nil
		}
		if current != action.OldDigest {
			return &Conflict{
				Path:           action.Path,
				Reason:         "local file changed since planning",
				ExpectedDigest: action.OldDigest,
				ActualDigest:   current,
			}
		}
		if err := os.Remove(target); err != nil {
			return &Conflict{Path: action.Path, Reason: err.Error()}
		}
		result.Deleted++
	}

	return nil
}

func (e *Executor) commitMetadata(plan *diffplan.Plan) error {
	syncedAt := e.now().UTC().Format(time.RFC3339)
	return skills.UpdateHeader(plan.SkillDir, func(meta *skills.Metadata) {
		meta.Set(skills.FieldGithubHash, plan.Commit.CommitHash)
		if version := meta.Get(skills.FieldVersion); version != "" {
			meta.Set(skills.FieldVersion, skills.BumpPatch(version))
		}
		meta.Set(skills.FieldLastSynced, syncedAt)
	})
}

func writeEntry(target string, entry *fileset.Entry) error {
	if entry == nil {
		return errors.New("action carries no content")
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrap(err, "failed to create parent directory")
	}

	if entry.Kind == fileset.KindSymlink {
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to replace symlink")
		}
		return errors.Wrap(os.Symlink(entry.LinkTarget, target), "failed to create symlink")
	}

	perm := os.FileMode(0o644)
	if entry.Executable {
		perm = 0o755
	}
	if err := os.WriteFile(target, entry.Content, perm); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	// WriteFile does not chmod an existing file.
	return errors.Wrap(os.Chmod(target, perm), "failed to set file mode")
}

func chmodEntry(target string, entry *fileset.Entry) error {
	if entry == nil {
		return errors.New("action carries no content")
	}
	perm := os.FileMode(0o644)
	if entry.Executable {
		perm = 0o755
	}
	return errors.Wrap(os.Chmod(target, perm), "failed to set file mode")
}

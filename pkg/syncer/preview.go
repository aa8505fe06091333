package syncer

import (
	"fmt"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jingkaihe/skillman/pkg/diffplan"
	"github.com/jingkaihe/skillman/pkg/fileset"
)

// Preview renders a plan as a human-readable change list without touching
// the file system. Updates are shown as unified diffs against the local
// content captured at planning time; a preview is a pure projection of what
// Apply would do.
func (e *Executor) Preview(plan *diffplan.Plan, local fileset.Set) string {
	if plan.Empty() {
		return "No changes. Skill is in sync with the resolved commit.\n"
	}

	var b strings.Builder
	creates, updates, deletes := plan.Counts()
	fmt.Fprintf(&b, "Plan for %s at %s: %d to create, %d to update, %d to delete\n\n",
		plan.SkillDir, shortHash(plan.Commit.CommitHash), creates, updates, deletes)

	for _, action := range plan.Actions {
		switch action.Type {
		case diffplan.ActionCreate:
			fmt.Fprintf(&b, "+ %s (%s)\n", action.Path, action.Reason)
		case diffplan.ActionDelete:
			fmt.Fprintf(&b, "- %s (%s)\n", action.Path, action.Reason)
		case diffplan.ActionUpdate:
			fmt.Fprintf(&b, "~ %s (%s)\n", action.Path, action.Reason)
			if diff := updateDiff(action, local); diff != "" {
				b.WriteString(indent(diff, "  "))
			}
		}
	}

	return b.String()
}

func updateDiff(action diffplan.Action, local fileset.Set) string {
	if action.ChmodOnly || action.Entry == nil || action.Entry.Kind != fileset.KindFile {
		return ""
	}
	localEntry, ok := local[action.Path]
	if !ok || localEntry.Kind != fileset.KindFile {
		return ""
	}
	return udiff.Unified(action.Path, action.Path, string(localEntry.Content), string(action.Entry.Content))
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}

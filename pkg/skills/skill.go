// Package skills enumerates the local skills directory and owns the SKILL.md
// metadata header: parsing it into SkillRecord values and rewriting it
// atomically after a successful sync.
package skills

import (
	"strconv"
	"strings"
)

// SkillFileName is the metadata header file that marks a directory as a skill
const SkillFileName = "SKILL.md"

// Recognized metadata header fields
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldGithubURL   = "github_url"
	FieldGithubHash  = "github_hash"
	FieldVersion     = "version"
	FieldCreatedAt   = "created_at"
	FieldLastSynced  = "last_synced_at"
)

// SkillRecord is the structured view of one installed skill. Records are
// produced by Inventory scans and mutated on disk only by the sync executor
// after a successful apply.
type SkillRecord struct {
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	LocalPath       string `json:"localPath"`
	SourceURL       string `json:"sourceUrl,omitempty"`
	RecordedHash    string `json:"recordedHash,omitempty"`
	DeclaredVersion string `json:"version,omitempty"`
	CreatedAt       string `json:"createdAt,omitempty"`
}

// HasSource reports whether the skill tracks an upstream repository. Skills
// without a github_url are listed but reported with unknown provenance.
func (r SkillRecord) HasSource() bool {
	return r.SourceURL != ""
}

// BumpPatch increments the patch component of a MAJOR.MINOR.PATCH version
// string. Versions that do not parse as three dot-separated integers are
// returned unchanged; the version field is free-form by contract.
func BumpPatch(version string) string {
	parts := strings.Split(version, ".")
	if len(parts) != 3 {
		return version
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return version
		}
		nums[i] = n
	}
	return strconv.Itoa(nums[0]) + "." + strconv.Itoa(nums[1]) + "." + strconv.Itoa(nums[2]+1)
}

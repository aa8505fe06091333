package skills

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

// Inventory scans a skills root directory for installed skills. Scans are
// stateless: every call re-reads the directory, so results never go stale.
type Inventory struct {
	root string
}

// Option is a function that configures an Inventory
type Option func(*Inventory) error

// WithRoot sets a custom skills root directory
func WithRoot(dir string) Option {
	return func(inv *Inventory) error {
		if dir == "" {
			return errors.New("skills root cannot be empty")
		}
		inv.root = dir
		return nil
	}
}

// WithDefaultRoot points the inventory at ~/.skillman/skills
func WithDefaultRoot() Option {
	return func(inv *Inventory) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return errors.Wrap(err, "failed to get user home directory")
		}
		inv.root = filepath.Join(homeDir, ".skillman", "skills")
		return nil
	}
}

// NewInventory creates a new inventory instance
func NewInventory(opts ...Option) (*Inventory, error) {
	inv := &Inventory{}

	if len(opts) == 0 {
		if err := WithDefaultRoot()(inv); err != nil {
			return nil, err
		}
	} else {
		for _, opt := range opts {
			if err := opt(inv); err != nil {
				return nil, err
			}
		}
	}

	return inv, nil
}

// Root returns the skills root directory
func (inv *Inventory) Root() string {
	return inv.root
}

// Scan enumerates the skills root one level deep. A subdirectory is a skill
// iff it contains a parsable SKILL.md with at least a name field; backup
// directories and anything unparsable are skipped. Skills are not nested.
func (inv *Inventory) Scan() ([]SkillRecord, error) {
	entries, err := os.ReadDir(inv.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to read skills root %s", inv.root)
	}

	var records []SkillRecord
	for _, entry := range entries {
		if !entry.IsDir() || isBackupDir(entry.Name()) {
			continue
		}

		skillDir := filepath.Join(inv.root, entry.Name())
		record, err := LoadRecord(skillDir)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	return records, nil
}

// Get returns the record for a named skill.
func (inv *Inventory) Get(name string) (SkillRecord, error) {
	records, err := inv.Scan()
	if err != nil {
		return SkillRecord{}, err
	}
	for _, record := range records {
		if record.Name == name {
			return record, nil
		}
	}
	return SkillRecord{}, errors.Errorf("skill '%s' not found in %s", name, inv.root)
}

// ResolvePath resolves a skill identifier to its directory. Identifiers may
// be a path (absolute or relative) or a bare skill directory name looked up
// under the skills root.
func (inv *Inventory) ResolvePath(identifier string) (string, error) {
	if hasSkillHeader(identifier) {
		abs, err := filepath.Abs(identifier)
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve path")
		}
		return abs, nil
	}

	candidate := filepath.Join(inv.root, identifier)
	if hasSkillHeader(candidate) {
		return candidate, nil
	}

	return "", errors.Errorf("skill '%s' not found (searched %s and the local path)", identifier, inv.root)
}

func hasSkillHeader(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(dir, SkillFileName))
	return err == nil
}

func isBackupDir(name string) bool {
	return strings.Contains(name, ".backup.")
}

// LoadRecord parses a skill directory's SKILL.md into a SkillRecord. A
// header missing github_url/github_hash yields a record with unset
// provenance fields, not an error; a missing name is an error.
func LoadRecord(skillDir string) (SkillRecord, error) {
	content, err := os.ReadFile(filepath.Join(skillDir, SkillFileName))
	if err != nil {
		return SkillRecord{}, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return SkillRecord{}, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return SkillRecord{}, errors.New("missing frontmatter")
	}

	name, _ := metaData[FieldName].(string)
	if name == "" {
		return SkillRecord{}, errors.New("skill name is required in frontmatter")
	}

	record := SkillRecord{
		Name:      name,
		LocalPath: skillDir,
	}
	if v, ok := metaData[FieldDescription].(string); ok {
		record.Description = v
	}
	if v, ok := metaData[FieldGithubURL].(string); ok {
		record.SourceURL = v
	}
	if v, ok := metaData[FieldGithubHash].(string); ok {
		record.RecordedHash = v
	}
	record.DeclaredVersion = stringify(metaData[FieldVersion])
	record.CreatedAt = stringify(metaData[FieldCreatedAt])

	return record, nil
}

// stringify tolerates YAML scalars that parse as non-strings (e.g. a version
// like 1.0 decoding as a float).
func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

// Metadata is the parsed SKILL.md frontmatter block. It wraps the yaml.v3
// node tree rather than a map so that serializing writes keys back in their
// original order and unknown keys survive a round-trip untouched.
type Metadata struct {
	mapping *yaml.Node
}

// NewMetadata creates an empty metadata block.
func NewMetadata() *Metadata {
	return &Metadata{
		mapping: &yaml.Node{Kind: yaml.MappingNode},
	}
}

// ParseDocument splits SKILL.md content into its frontmatter block and body.
// The document must start with a `---` line and contain a closing `---`.
func ParseDocument(content []byte) (*Metadata, string, error) {
	text := string(content)
	if !strings.HasPrefix(text, frontmatterDelimiter) {
		return nil, "", errors.New("missing frontmatter")
	}

	lines := strings.Split(text, "\n")
	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
			closing = i
			break
		}
	}
	if closing == -1 {
		return nil, "", errors.New("unterminated frontmatter")
	}

	front := strings.Join(lines[1:closing], "\n")
	body := strings.Join(lines[closing+1:], "\n")

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(front), &doc); err != nil {
		return nil, "", errors.Wrap(err, "failed to parse frontmatter")
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, "", errors.New("frontmatter is not a key-value mapping")
	}

	return &Metadata{mapping: doc.Content[0]}, body, nil
}

// Get returns the scalar value for key, or empty string if absent.
func (m *Metadata) Get(key string) string {
	for i := 0; i+1 < len(m.mapping.Content); i += 2 {
		if m.mapping.Content[i].Value == key {
			return m.mapping.Content[i+1].Value
		}
	}
	return ""
}

// Set replaces the value for key, appending the key if it is not present.
// Existing keys keep their position.
func (m *Metadata) Set(key, value string) {
	for i := 0; i+1 < len(m.mapping.Content); i += 2 {
		if m.mapping.Content[i].Value == key {
			m.mapping.Content[i+1] = scalarNode(value)
			return
		}
	}
	m.mapping.Content = append(m.mapping.Content, scalarNode(key), scalarNode(value))
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// Render reassembles a full SKILL.md document from the metadata block and
// body, with `---` boundary markers around the frontmatter.
func (m *Metadata) Render(body string) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(m.mapping); err != nil {
		return nil, errors.Wrap(err, "failed to serialize frontmatter")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to serialize frontmatter")
	}

	var out bytes.Buffer
	out.WriteString(frontmatterDelimiter + "\n")
	out.Write(buf.Bytes())
	out.WriteString(frontmatterDelimiter + "\n")
	out.WriteString(body)
	return out.Bytes(), nil
}

// UpdateHeader rewrites a skill's metadata header in place: parse, apply the
// mutation, serialize, then write-to-temp-and-rename so a crash never leaves
// a half-written SKILL.md.
func UpdateHeader(skillDir string, mutate func(*Metadata)) error {
	path := filepath.Join(skillDir, SkillFileName)

	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read skill header")
	}

	meta, body, err := ParseDocument(content)
	if err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}

	mutate(meta)

	rendered, err := meta.Render(body)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, rendered, 0o644)
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".skill-header-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to write temp file")
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to chmod temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to close temp file")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to replace file")
	}
	return nil
}

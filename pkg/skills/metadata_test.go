package skills

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHeader = `---
name: test-skill
description: A skill used in tests
github_url: https://github.com/owner/repo
github_hash: abc123
version: 1.0.0
created_at: "2026-01-10T12:00:00Z"
---

# Test Skill

Body content.
`

func TestParseDocument(t *testing.T) {
	meta, body, err := ParseDocument([]byte(sampleHeader))
	require.NoError(t, err)

	assert.Equal(t, "test-skill", meta.Get(FieldName))
	assert.Equal(t, "A skill used in tests", meta.Get(FieldDescription))
	assert.Equal(t, "https://github.com/owner/repo", meta.Get(FieldGithubURL))
	assert.Equal(t, "abc123", meta.Get(FieldGithubHash))
	assert.Contains(t, body, "# Test Skill")
	assert.Contains(t, body, "Body content.")
}

func TestParseDocumentErrors(t *testing.T) {
	t.Run("missing frontmatter", func(t *testing.T) {
		_, _, err := ParseDocument([]byte("# Just markdown\n"))
		assert.Error(t, err)
	})

	t.Run("unterminated frontmatter", func(t *testing.T) {
		_, _, err := ParseDocument([]byte("---\nname: x\n"))
		assert.Error(t, err)
	})

	t.Run("non-mapping frontmatter", func(t *testing.T) {
		_, _, err := ParseDocument([]byte("---\n- a\n- b\n---\n"))
		assert.Error(t, err)
	})
}

func TestMetadataSetGet(t *testing.T) {
	meta := NewMetadata()
	assert.Empty(t, meta.Get("missing"))

	meta.Set("name", "my-skill")
	meta.Set("version", "0.1.0")
	assert.Equal(t, "my-skill", meta.Get("name"))

	meta.Set("name", "renamed")
	assert.Equal(t, "renamed", meta.Get("name"))
}

func TestRenderPreservesKeyOrder(t *testing.T) {
	meta, body, err := ParseDocument([]byte(sampleHeader))
	require.NoError(t, err)

	meta.Set(FieldGithubHash, "def456")
	meta.Set("custom_field", "kept")

	rendered, err := meta.Render(body)
	require.NoError(t, err)
	text := string(rendered)

	// Keys keep their original positions; new keys append at the end.
	nameIdx := strings.Index(text, "name:")
	descIdx := strings.Index(text, "description:")
	hashIdx := strings.Index(text, "github_hash:")
	customIdx := strings.Index(text, "custom_field:")
	require.True(t, nameIdx >= 0 && descIdx >= 0 && hashIdx >= 0 && customIdx >= 0)
	assert.Less(t, nameIdx, descIdx)
	assert.Less(t, descIdx, hashIdx)
	assert.Less(t, hashIdx, customIdx)

	assert.Contains(t, text, "github_hash: def456")
	assert.Contains(t, text, "Body content.")

	// The rendered document parses back to the same values.
	reparsed, _, err := ParseDocument(rendered)
	require.NoError(t, err)
	assert.Equal(t, "def456", reparsed.Get(FieldGithubHash))
	assert.Equal(t, "kept", reparsed.Get("custom_field"))
}

func TestUpdateHeader(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, SkillFileName), []byte(sampleHeader), 0o644))

	err := UpdateHeader(tmpDir, func(meta *Metadata) {
		meta.Set(FieldGithubHash, "newhash")
		meta.Set(FieldLastSynced, "2026-02-01T00:00:00Z")
	})
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(tmpDir, SkillFileName))
	require.NoError(t, err)
	meta, body, err := ParseDocument(content)
	require.NoError(t, err)
	assert.Equal(t, "newhash", meta.Get(FieldGithubHash))
	assert.Equal(t, "2026-02-01T00:00:00Z", meta.Get(FieldLastSynced))
	assert.Contains(t, body, "Body content.")

	// No temp files left behind.
	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUpdateHeaderMissingFile(t *testing.T) {
	err := UpdateHeader(t.TempDir(), func(meta *Metadata) {})
	assert.Error(t, err)
}

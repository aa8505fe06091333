package gitremote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocator(t *testing.T) {
	tests := []struct {
		name     string
		locator  string
		expected RemoteRef
	}{
		{
			name:    "bare repository",
			locator: "https://github.com/owner/repo",
			expected: RemoteRef{
				RepoURL: "https://github.com/owner/repo",
			},
		},
		{
			name:    "dot git suffix",
			locator: "https://github.com/owner/repo.git",
			expected: RemoteRef{
				RepoURL: "https://github.com/owner/repo",
			},
		},
		{
			name:    "trailing slash",
			locator: "https://github.com/owner/repo/",
			expected: RemoteRef{
				RepoURL: "https://github.com/owner/repo",
			},
		},
		{
			name:    "branch",
			locator: "https://github.com/owner/repo/tree/develop",
			expected: RemoteRef{
				RepoURL:     "https://github.com/owner/repo",
				BranchOrTag: "develop",
			},
		},
		{
			name:    "branch and subdirectory",
			locator: "https://github.com/owner/repo/tree/main/skills/my-skill",
			expected: RemoteRef{
				RepoURL:      "https://github.com/owner/repo",
				BranchOrTag:  "main",
				Subdirectory: "skills/my-skill",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ref, err := ParseLocator(tt.locator)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ref)
		})
	}
}

func TestParseLocatorInvalid(t *testing.T) {
	tests := []struct {
		name    string
		locator string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not github", "https://gitlab.com/owner/repo"},
		{"missing repo", "https://github.com/owner"},
		{"ssh url", "git@github.com:owner/repo.git"},
		{"blob url", "https://github.com/owner/repo/blob/main/file.md"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocator(tt.locator)
			require.Error(t, err)

			var invalid *InvalidReferenceError
			assert.ErrorAs(t, err, &invalid)
		})
	}
}

func TestCloneURL(t *testing.T) {
	ref, err := ParseLocator("https://github.com/owner/repo/tree/main/sub")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/owner/repo.git", ref.CloneURL())
}

func TestRemoteRefString(t *testing.T) {
	tests := []struct {
		name     string
		ref      RemoteRef
		expected string
	}{
		{
			name:     "bare",
			ref:      RemoteRef{RepoURL: "https://github.com/owner/repo"},
			expected: "https://github.com/owner/repo",
		},
		{
			name:     "branch",
			ref:      RemoteRef{RepoURL: "https://github.com/owner/repo", BranchOrTag: "main"},
			expected: "https://github.com/owner/repo/tree/main",
		},
		{
			name:     "branch and subdir",
			ref:      RemoteRef{RepoURL: "https://github.com/owner/repo", BranchOrTag: "main", Subdirectory: "a/b"},
			expected: "https://github.com/owner/repo/tree/main/a/b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.ref.String())
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	original := "https://github.com/owner/repo/tree/main/skills/my-skill"
	ref, err := ParseLocator(original)
	require.NoError(t, err)

	reparsed, err := ParseLocator(ref.String())
	require.NoError(t, err)
	assert.Equal(t, ref, reparsed)
}

// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
		want  Secrets
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AdobeAccessToken, "  eyJhbGciOi.token  \n")
				writeFile(t, dir, "proxy-password", "hunter2")
				return dir
			},
			want: Secrets{
				AdobeAccessToken: "eyJhbGciOi.token",
				"proxy-password": "hunter2",
			},
		},
		{
			name: "returns empty set for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: Secrets{},
		},
		{
			name: "skips empty files, dotfiles, and directories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, AdobeAccessToken, "valid")
				writeFile(t, dir, "empty", "")
				writeFile(t, dir, "blank", "   \n\t  ")
				writeFile(t, dir, ".gitkeep", "x")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o755))
				return dir
			},
			want: Secrets{AdobeAccessToken: "valid"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Load(tt.setup(t))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadNotADirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	writeFile(t, filepath.Dir(path), "file", "x")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestGetPrefersFallback(t *testing.T) {
	s := Secrets{AdobeAccessToken: "from-file"}

	assert.Equal(t, "from-flag", s.Get(AdobeAccessToken, "from-flag"))
	assert.Equal(t, "from-file", s.Get(AdobeAccessToken, ""))
	assert.Empty(t, s.Get("missing", ""))

	keys := Secrets{"b": "2", "a": "1"}.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"a", "b"}, keys)
}

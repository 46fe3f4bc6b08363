package source

import (
	"os"
	"path/filepath"
	"testing"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInlineCode(t *testing.T) {
	file, err := Resolve("println(1);", "")
	require.NoError(t, err)
	assert.Equal(t, InlineName, file.Name)
	assert.Equal(t, "println(1);", file.Contents)
	assert.Empty(t, file.Path)
}

func TestResolveInlineCodeWinsOverInput(t *testing.T) {
	file, err := Resolve("exit 0;", "does-not-exist.oxi")
	require.NoError(t, err)
	assert.Equal(t, "does-not-exist.oxi", file.Name)
	assert.Equal(t, "exit 0;", file.Contents)
}

func TestResolveFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "hello.oxi", `println("hi");`)

	file, err := Resolve("", path)
	require.NoError(t, err)
	assert.Equal(t, path, file.Name)
	assert.Equal(t, path, file.Path)
	assert.Equal(t, `println("hi");`, file.Contents)
}

func TestResolveDirectoryEntrypoints(t *testing.T) {
	t.Run("main.oxi", func(t *testing.T) {
		dir := t.TempDir()
		want := writeFile(t, dir, "main.oxi", "exit 1;")
		writeFile(t, dir, filepath.Join("src", "main.oxi"), "exit 2;")

		file, err := Resolve("", dir)
		require.NoError(t, err)
		assert.Equal(t, want, file.Path)
		assert.Equal(t, "exit 1;", file.Contents)
	})

	t.Run("src/main.oxi", func(t *testing.T) {
		dir := t.TempDir()
		want := writeFile(t, dir, filepath.Join("src", "main.oxi"), "exit 2;")

		file, err := Resolve("", dir)
		require.NoError(t, err)
		assert.Equal(t, want, file.Path)
		assert.Equal(t, dir, file.Name)
	})

	t.Run("main.oxi directory is skipped", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "main.oxi"), 0o755))
		want := writeFile(t, dir, filepath.Join("src", "main.oxi"), "exit 3;")

		file, err := Resolve("", dir)
		require.NoError(t, err)
		assert.Equal(t, want, file.Path)
	})
}

func TestResolveErrors(t *testing.T) {
	empty := t.TempDir()

	tests := []struct {
		name  string
		input string
		code  string
	}{
		{name: "no input", input: "", code: ErrCodeNoInput},
		{name: "missing file", input: filepath.Join(empty, "missing.oxi"), code: ErrCodeNotFound},
		{name: "no entrypoint", input: empty, code: ErrCodeNoEntrypoint},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve("", tt.input)
			require.Error(t, err)
			coder, ok := err.(goerrors.ErrorCoder)
			require.True(t, ok, "expected coded error, got %T", err)
			assert.Equal(t, tt.code, string(coder.ErrorCode()))
		})
	}
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

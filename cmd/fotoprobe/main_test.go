package main

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/fotoprobe/internal/testutil/exiftest"
)

func executeRootCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// libraryConfig writes a config with a persistent library under dir.
func libraryConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf(`
logging:
  level: ERROR
  output: stderr
session:
  type: store
content:
  type: filesystem
  filesystem:
    path: %q
catalog:
  type: badger
  badger:
    path: %q
`, filepath.Join(dir, "content"), filepath.Join(dir, "catalog"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

// ============================================================================
// Commands
// ============================================================================

func TestVersionCommand(t *testing.T) {
	out, err := executeRootCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "fotoprobe dev\n", out)
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fotoprobe.yaml")

	out, err := executeRootCommand(t, "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = executeRootCommand(t, "init", "--output", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = executeRootCommand(t, "init", "--output", path, "--force")
	assert.NoError(t, err)
}

func TestIngestAndProbe(t *testing.T) {
	dir := t.TempDir()
	configPath := libraryConfig(t, dir)

	photo := filepath.Join(dir, "photo.jpg")
	data := exiftest.JPEG(exiftest.TIFF(binary.BigEndian, exiftest.Sample()), exiftest.Padding(0xe2, 40000), exiftest.Padding(0xe3, 40000))
	require.NoError(t, os.WriteFile(photo, data, 0644))

	out, err := executeRootCommand(t, "-c", configPath, "ingest", photo, "--peer", "chat", "--peer-id", "42", "--message", "1001")
	require.NoError(t, err)
	assert.Contains(t, out, "chat/42/1001")
	assert.Contains(t, out, "photo")

	t.Run("Text", func(t *testing.T) {
		out, err := executeRootCommand(t, "-c", configPath, "probe", "--peer", "chat", "--peer-id", "42", "--message", "1001", "--tags")
		require.NoError(t, err)
		assert.Contains(t, out, "success")
		assert.Contains(t, out, "X100V")
		assert.Contains(t, out, "Make")
	})

	t.Run("JSON", func(t *testing.T) {
		out, err := executeRootCommand(t, "-c", configPath, "probe", "--peer", "chat", "--peer-id", "42", "--message", "1001", "--json")
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &decoded))
		assert.Equal(t, "success", decoded["status"])
		assert.Greater(t, decoded["windows"], float64(1))
	})

	t.Run("MissingMessage", func(t *testing.T) {
		out, err := executeRootCommand(t, "-c", configPath, "probe", "--peer", "chat", "--peer-id", "42", "--message", "9")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not_found")
		assert.True(t, strings.Contains(out, "failed"))
	})
}

func TestLibraryCommands(t *testing.T) {
	dir := t.TempDir()
	configPath := libraryConfig(t, dir)

	photo := filepath.Join(dir, "photo.jpg")
	require.NoError(t, os.WriteFile(photo, exiftest.JPEG(exiftest.TIFF(binary.LittleEndian, exiftest.Sample())), 0644))
	ingest := []string{"-c", configPath, "ingest", photo, "--peer", "chat", "--peer-id", "7", "--message", "3"}

	_, err := executeRootCommand(t, ingest...)
	require.NoError(t, err)

	_, err = executeRootCommand(t, ingest...)
	assert.ErrorContains(t, err, "already in library")

	_, err = executeRootCommand(t, append(ingest, "--force")...)
	require.NoError(t, err)

	out, err := executeRootCommand(t, "-c", configPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "chat:7/3")
	assert.Contains(t, out, "chat/7/3")
	assert.Contains(t, out, "1 message(s)")

	out, err = executeRootCommand(t, "-c", configPath, "remove", "--peer", "chat", "--peer-id", "7", "--message", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed chat:7/3")

	out, err = executeRootCommand(t, "-c", configPath, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "0 message(s)")

	_, err = executeRootCommand(t, "-c", configPath, "remove", "--peer", "chat", "--peer-id", "7", "--message", "3")
	assert.ErrorContains(t, err, "not found")

	_, err = os.Stat(filepath.Join(dir, "content", hex.EncodeToString([]byte("chat/7/3"))))
	assert.True(t, os.IsNotExist(err), "content file should be gone, stat err: %v", err)
}

func TestProbeCommand_Validation(t *testing.T) {
	_, err := executeRootCommand(t, "probe", "--peer", "group", "--message", "1")
	assert.ErrorContains(t, err, "unknown peer kind")

	_, err = executeRootCommand(t, "probe")
	assert.Error(t, err)
}

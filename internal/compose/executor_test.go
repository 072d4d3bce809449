package compose

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	dir  string
	env  []string
	argv []string
}

func (r *recordingRunner) Run(_ context.Context, dir string, env []string, name string, args ...string) error {
	r.dir = dir
	r.env = env
	r.argv = append([]string{name}, args...)
	return nil
}

func writeComposeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("services: {}\n"), 0644))
	return path
}

func TestUp_BuildsComposeCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, "docker-compose.n8n.yml")

	runner := &recordingRunner{}
	exec := NewExecutorWithRunner(dir, runner)

	require.NoError(t, exec.Up(context.Background(), "docker-compose.n8n.yml", "aipm-n8n"))

	assert.Equal(t, []string{
		"docker", "compose", "-f", path, "-p", "aipm-n8n", "up", "-d",
	}, runner.argv)
	assert.Equal(t, dir, runner.dir)
}

func TestDown_RemovesContainersAndOrphans(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, "docker-compose.tooljet.yml")

	runner := &recordingRunner{}
	exec := NewExecutorWithRunner(dir, runner)

	require.NoError(t, exec.Down(context.Background(), "docker-compose.tooljet.yml", "aipm-tooljet"))

	assert.Equal(t, []string{
		"docker", "compose", "-f", path, "-p", "aipm-tooljet", "down", "--remove-orphans",
	}, runner.argv)
}

func TestUp_MissingComposeFileIsFatal(t *testing.T) {
	runner := &recordingRunner{}
	exec := NewExecutorWithRunner(t.TempDir(), runner)

	err := exec.Up(context.Background(), "docker-compose.ghost.yml", "aipm-ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.Empty(t, runner.argv, "nothing must be invoked when the compose file is missing")
}

func TestUp_AbsoluteComposePath(t *testing.T) {
	dir := t.TempDir()
	path := writeComposeFile(t, dir, "stack.yml")

	runner := &recordingRunner{}
	exec := NewExecutorWithRunner(t.TempDir(), runner)

	require.NoError(t, exec.Up(context.Background(), path, "aipm-stack"))
	assert.Contains(t, runner.argv, path)
}

func TestEnviron_MergesDotenv(t *testing.T) {
	dir := t.TempDir()
	writeComposeFile(t, dir, "docker-compose.n8n.yml")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("N8N_ENCRYPTION_KEY=sekrit\n"), 0644))

	runner := &recordingRunner{}
	exec := NewExecutorWithRunner(dir, runner)
	require.NoError(t, exec.Up(context.Background(), "docker-compose.n8n.yml", "aipm-n8n"))

	found := false
	for _, kv := range runner.env {
		if strings.HasPrefix(kv, "N8N_ENCRYPTION_KEY=") {
			found = true
		}
	}
	assert.True(t, found, ".env variables must reach the compose invocation")
}

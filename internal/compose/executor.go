// Package compose drives the docker compose CLI for services defined by
// compose files. The engine API has no compose endpoint; the compose file
// format is a CLI-level contract.
package compose

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Runner executes a command. Production uses exec; tests record argv.
type Runner interface {
	Run(ctx context.Context, dir string, env []string, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = env

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if output.Len() > 0 {
		log.Debug().Str("command", name).Strs("args", args).Msg(output.String())
	}
	if err != nil {
		return fmt.Errorf("%s %v failed: %w (output: %s)", name, args, err, output.String())
	}
	return nil
}

// Executor runs compose up/down for one compose file at a time.
type Executor struct {
	dir    string
	runner Runner
}

// NewExecutor creates an executor rooted at the compose directory.
func NewExecutor(dir string) *Executor {
	return &Executor{dir: dir, runner: execRunner{}}
}

// NewExecutorWithRunner injects a custom runner (for tests).
func NewExecutorWithRunner(dir string, runner Runner) *Executor {
	return &Executor{dir: dir, runner: runner}
}

// Up brings the project's containers up detached. The context bounds the
// whole invocation.
func (e *Executor) Up(ctx context.Context, file, project string) error {
	path, err := e.resolve(file)
	if err != nil {
		return err
	}

	log.Info().Str("project", project).Str("file", file).Msg("Bringing services up")
	return e.runner.Run(ctx, e.dir, e.environ(),
		"docker", "compose", "-f", path, "-p", project, "up", "-d")
}

// Down tears the project down completely: containers removed, orphans
// included, named volumes preserved.
func (e *Executor) Down(ctx context.Context, file, project string) error {
	path, err := e.resolve(file)
	if err != nil {
		return err
	}

	log.Info().Str("project", project).Str("file", file).Msg("Tearing services down")
	return e.runner.Run(ctx, e.dir, e.environ(),
		"docker", "compose", "-f", path, "-p", project, "down", "--remove-orphans")
}

// resolve checks the compose file exists before anything is invoked; a
// missing file is a fatal setup error, not a retryable one.
func (e *Executor) resolve(file string) (string, error) {
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.dir, file)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("compose file %s not found: %w", path, err)
	}
	return path, nil
}

// environ merges the compose directory's .env over the process environment
// so compose files see their variables regardless of the caller's shell.
func (e *Executor) environ() []string {
	env := os.Environ()

	dotenv := filepath.Join(e.dir, ".env")
	vars, err := godotenv.Read(dotenv)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("file", dotenv).Msg("Could not read .env")
		}
		return env
	}
	for k, v := range vars {
		env = append(env, k+"="+v)
	}
	return env
}

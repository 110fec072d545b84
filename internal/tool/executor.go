// Package tool invokes the external audio tools (demucs, basic-pitch,
// MuseScore) as subprocesses and verifies the artifacts they produce.
package tool

import (
	"context"
	"os/exec"
)

// Executor abstracts process execution so the tool adapters can be tested
// without the real binaries installed.
type Executor interface {
	CommandContext(ctx context.Context, name string, args ...string) Command
}

// Command is a single spawned process.
type Command interface {
	SetDir(dir string)
	CombinedOutput() ([]byte, error)
}

// NewExecutor returns an Executor backed by os/exec.
func NewExecutor() Executor {
	return osExecutor{}
}

type osExecutor struct{}

func (osExecutor) CommandContext(ctx context.Context, name string, args ...string) Command {
	return &osCommand{cmd: exec.CommandContext(ctx, name, args...)}
}

type osCommand struct {
	cmd *exec.Cmd
}

func (c *osCommand) SetDir(dir string) {
	c.cmd.Dir = dir
}

func (c *osCommand) CombinedOutput() ([]byte, error) {
	return c.cmd.CombinedOutput()
}

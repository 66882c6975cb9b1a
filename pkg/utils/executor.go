package utils

import (
	"io"
	"os/exec"
)

// The Executor interface runs external commands to completion. Long running
// daemons are not started through it, only the helper binaries the cluster
// bootstrap shells out to (cfssl, kubectl, ip, ...).
type Executor interface {
	// Run executes cmd with arguments and returns its output. When combined
	// is true, stderr is captured together with stdout.
	Run(combined bool, cmd string, arguments ...string) ([]byte, error)
	// Pipe executes cmd with stdin connected to the given reader.
	Pipe(stdin io.Reader, combined bool, cmd string, arguments ...string) ([]byte, error)
	// LookPath resolves cmd against PATH.
	LookPath(cmd string) (string, error)
}

type CommandExecutor struct {
}

func (c *CommandExecutor) Run(combined bool, cmd string, arguments ...string) ([]byte, error) {
	command := exec.Command(cmd, arguments...)
	if combined {
		return command.CombinedOutput()
	} else {
		return command.Output()
	}
}

func (c *CommandExecutor) Pipe(stdin io.Reader, combined bool, cmd string, arguments ...string) ([]byte, error) {
	command := exec.Command(cmd, arguments...)
	command.Stdin = stdin
	if combined {
		return command.CombinedOutput()
	} else {
		return command.Output()
	}
}

func (c *CommandExecutor) LookPath(cmd string) (string, error) {
	return exec.LookPath(cmd)
}

var Exec Executor = &CommandExecutor{}

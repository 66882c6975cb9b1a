/*
Copyright © 2025 The kubernix authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package shell drops the user into an interactive shell wired up with
// the environment of a running cluster.
package shell

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

// Spawn starts an interactive shell with the cluster environment read
// from the env file below root. The caller waits on the returned
// command.
func Spawn(root string) (*exec.Cmd, error) {
	envFile := filepath.Join(root, constants.EnvFile)
	vars, err := godotenv.Read(envFile)
	if err != nil {
		return nil, errors.Wrapf(err, "While reading %s", envFile)
	}

	name := os.Getenv("SHELL")
	if name == "" {
		name = "/bin/sh"
	}

	command := exec.Command(name)
	command.Env = os.Environ()
	for key, value := range vars {
		command.Env = append(command.Env, key+"="+value)
	}
	command.Env = append(command.Env,
		"PS1=("+constants.AppName+") "+os.Getenv("PS1"))
	command.Stdin = os.Stdin
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr

	log.WithField("shell", name).Info("Spawning interactive shell, exit to stop")
	if err := command.Start(); err != nil {
		return nil, errors.Wrapf(err, "While starting %s", name)
	}
	return command, nil
}

// Run attaches a new shell to an already running cluster and blocks
// until the user leaves it.
func Run(root string) error {
	if inside := os.Getenv(constants.EnvVariable); inside != "" {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"already inside the environment of the cluster below %s", inside)
	}

	envFile := filepath.Join(root, constants.EnvFile)
	exists, err := utils.FS.Exists(envFile)
	if err != nil {
		return errors.Wrapf(err, "While checking %s", envFile)
	}
	if !exists {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"%s not found, is a cluster running below %s?", envFile, root)
	}

	command, err := Spawn(root)
	if err != nil {
		return err
	}

	err = command.Wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.WithField("code", exitErr.ExitCode()).Debug("Shell exited nonzero")
		return nil
	}
	return err
}

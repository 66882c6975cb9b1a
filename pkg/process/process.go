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

// Package process runs one long-lived child with its output redirected
// to a log file and detects readiness by scanning that log for a marker
// substring.
package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/utils"
)

const (
	// DefaultReadyTimeout bounds the wait for a readiness marker.
	DefaultReadyTimeout = 30 * time.Second

	// stopTimeout bounds the wait for a child to exit after SIGTERM.
	// The watcher is detached when it elapses, never SIGKILLed.
	stopTimeout = 10 * time.Second

	scanInterval = 200 * time.Millisecond
	excerptLines = 20
)

// Death reports a child that exited although no stop was requested.
type Death struct {
	Name string
	Err  error
}

// Process is one supervised child. The watcher goroutine only observes
// the exit and reports it, stopping is always driven from the outside.
type Process struct {
	Name    string
	LogFile string

	cmd      *exec.Cmd
	deaths   chan<- Death
	intended chan struct{}
	waited   chan struct{}
	waitErr  error
	stopOnce sync.Once
	stopErr  error
}

// Start spawns the command with stdout and stderr redirected to
// <logDir>/<name>.log and a watcher goroutine awaiting its exit.
func Start(name string, logDir string, command []string, deaths chan<- Death) (*Process, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("empty command for %s", name)
	}

	logFile := filepath.Join(logDir, name+".log")
	f, err := utils.FS.Create(logFile)
	if err != nil {
		return nil, errors.Wrapf(err, "While creating log file %s", logFile)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Stdout = f
	cmd.Stderr = f
	if err = cmd.Start(); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "While starting %s", name)
	}

	p := &Process{
		Name:     name,
		LogFile:  logFile,
		cmd:      cmd,
		deaths:   deaths,
		intended: make(chan struct{}),
		waited:   make(chan struct{}),
	}
	log.WithFields(log.Fields{
		"name": name,
		"pid":  cmd.Process.Pid,
		"log":  logFile,
	}).Info("Started process")

	go p.watch(f)
	return p, nil
}

func (p *Process) watch(logFile io.Closer) {
	err := p.cmd.Wait()
	logFile.Close()
	p.waitErr = err
	close(p.waited)

	select {
	case <-p.intended:
		return
	default:
	}

	reason := "exit status 0"
	if err != nil {
		reason = err.Error()
	}
	log.WithFields(log.Fields{
		"name": p.Name,
		"log":  p.LogFile,
	}).Errorf("Process terminated unexpectedly: %s", reason)

	failure := kubernixapi.Failuref(kubernixapi.UnexpectedExit,
		"%s terminated before stop was requested: %s", p.Name, reason)
	if p.deaths != nil {
		p.deaths <- Death{Name: p.Name, Err: failure}
	}
}

// Pid returns the child process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// WaitReady scans the log file until a line contains marker. The probe is
// purely log based, there is no port or RPC check. A child that died
// keeps being scanned until the full timeout elapses, its marker will
// simply never show up. On timeout or cancellation the child is stopped
// and an excerpt of its log is part of the returned error.
func (p *Process) WaitReady(ctx context.Context, marker string, timeout time.Duration) error {
	log.WithFields(log.Fields{
		"name":   p.Name,
		"marker": marker,
	}).Info("Waiting for process to become ready")

	err := wait.PollUntilContextTimeout(ctx, scanInterval, timeout, true, func(context.Context) (bool, error) {
		content, err := utils.FS.ReadFile(p.LogFile)
		if err != nil {
			return false, nil
		}
		for _, line := range strings.Split(string(content), "\n") {
			if strings.Contains(line, marker) {
				return true, nil
			}
		}
		return false, nil
	})
	if err == nil {
		log.WithField("name", p.Name).Info("Process is ready")
		return nil
	}

	if stopErr := p.Stop(); stopErr != nil {
		log.WithError(stopErr).WithField("name", p.Name).Warn("Stopping after failed readiness wait")
	}
	excerpt, _ := Excerpt(p.LogFile, excerptLines)
	if ctx.Err() != nil {
		return kubernixapi.Failuref(kubernixapi.UserCancel,
			"interrupted while waiting for %s to become ready", p.Name)
	}
	return kubernixapi.Failuref(kubernixapi.Readiness,
		"%s did not log %q within %s, last output:\n%s", p.Name, marker, timeout, excerpt)
}

// Stop closes the intent channel first so the watcher knows the exit is
// expected, sends SIGTERM and waits for the watcher with a secondary
// deadline. Subsequent calls are no-ops returning the first result.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		close(p.intended)
		log.WithFields(log.Fields{
			"name": p.Name,
			"pid":  p.Pid(),
		}).Info("Stopping process")

		if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			p.stopErr = errors.Wrapf(err, "While stopping %s", p.Name)
		}

		select {
		case <-p.waited:
			log.WithField("name", p.Name).Debug("Process exited")
		case <-time.After(stopTimeout):
			log.WithField("name", p.Name).Warn("Process did not exit in time, detaching")
		}
	})
	return p.stopErr
}

// Excerpt returns the last lines of a log file.
func Excerpt(logFile string, lines int) (string, error) {
	return utils.FS.Pipe(logFile).Last(lines).String()
}

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

// Package container wraps node processes in podman or docker invocations
// for multi-node clusters.
package container

import (
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/utils"
)

// nodeBinaries are copied into the image build context. The required
// ones run inside the node containers, the helpers are picked up when
// the host provides them.
var (
	requiredBinaries = []string{"crio", "kubelet", "kube-proxy"}
	helperBinaries   = []string{"runc", "crun", "conmon"}
)

type Runtime struct {
	Binary string
}

func NewRuntime(binary string) *Runtime {
	return &Runtime{Binary: binary}
}

// EnsureImage builds the node base image unless it already exists. The
// build context is staged below <root>/image with the host binaries the
// nodes need.
func (r *Runtime) EnsureImage(root string) error {
	if _, err := utils.Exec.Run(false, r.Binary, "image", "inspect", constants.ImageName); err == nil {
		log.WithField("image", constants.ImageName).Info("Node image already present")
		return nil
	}

	stage := filepath.Join(root, constants.ImageDir)
	binDir := filepath.Join(stage, "bin")
	if err := utils.FS.MkdirAll(binDir, 0o755); err != nil {
		return errors.Wrapf(err, "While creating %s", binDir)
	}
	if err := assets.Write("Dockerfile", filepath.Join(stage, "Dockerfile"), nil, 0o644); err != nil {
		return err
	}

	for _, binary := range requiredBinaries {
		if err := stageBinary(binDir, binary); err != nil {
			return err
		}
	}
	for _, binary := range helperBinaries {
		if err := stageBinary(binDir, binary); err != nil {
			log.WithField("binary", binary).Debug("Helper binary not staged")
		}
	}

	log.WithFields(log.Fields{
		"image": constants.ImageName,
		"stage": stage,
	}).Info("Building node image")
	out, err := utils.Exec.Run(true, r.Binary, "build", "-t", constants.ImageName, stage)
	if err != nil {
		return errors.Wrapf(err, "While building node image: %s", string(out))
	}
	return nil
}

func stageBinary(binDir, binary string) error {
	source, err := utils.Exec.LookPath(binary)
	if err != nil {
		return errors.Wrapf(err, "While locating %s", binary)
	}
	payload, err := utils.FS.ReadFile(source)
	if err != nil {
		return errors.Wrapf(err, "While reading %s", source)
	}
	target := filepath.Join(binDir, binary)
	if err = utils.FS.WriteFile(target, payload, 0o755); err != nil {
		return errors.Wrapf(err, "While staging %s", target)
	}
	return nil
}

// Wrap turns a node process command into a container invocation sharing
// the host network and the cluster root. The container hostname is the
// node name so that the kubelet registers under it, the container name
// is derived from the process name since every node runs several
// processes.
func (r *Runtime) Wrap(name string, node string, root string, command []string) []string {
	wrapped := []string{
		r.Binary, "run", "--rm",
		"--net=host",
		"--privileged",
		"--hostname=" + node,
		"--name=" + ContainerName(name),
		"--volume=" + root + ":" + root,
	}
	if exists, err := utils.FS.DirExists("/dev/mapper"); err == nil && exists {
		wrapped = append(wrapped, "--volume=/dev/mapper:/dev/mapper")
	}
	wrapped = append(wrapped, constants.ImageName)
	return append(wrapped, command...)
}

// Remove clears a stale container left over from a previous run. Missing
// containers are fine.
func (r *Runtime) Remove(name string) {
	container := ContainerName(name)
	if out, err := utils.Exec.Run(true, r.Binary, "rm", "-f", container); err != nil {
		log.WithField("container", container).Debugf("Not removed: %s", string(out))
	}
}

func ContainerName(name string) string {
	return constants.ContainerPrefix + name
}

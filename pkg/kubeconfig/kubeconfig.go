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

// Package kubeconfig emits the five client configuration files through
// kubectl, one per cluster role.
package kubeconfig

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/kube"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/utils"
)

type Kubeconfigs struct {
	Dir               string
	Admin             string
	Kubelet           string
	Proxy             string
	ControllerManager string
	Scheduler         string
}

// Paths returns the kubeconfig locations below <root>/kubeconfig without
// touching the filesystem.
func Paths(root string) *Kubeconfigs {
	dir := filepath.Join(root, constants.KubeconfigDir)
	return &Kubeconfigs{
		Dir:               dir,
		Admin:             filepath.Join(dir, "admin.kubeconfig"),
		Kubelet:           filepath.Join(dir, "kubelet.kubeconfig"),
		Proxy:             filepath.Join(dir, "kube-proxy.kubeconfig"),
		ControllerManager: filepath.Join(dir, "kube-controller-manager.kubeconfig"),
		Scheduler:         filepath.Join(dir, "kube-scheduler.kubeconfig"),
	}
}

// Setup writes the kubeconfig files below <root>/kubeconfig. Unlike the
// certificates these are rebuilt on every run, kubectl overwrites the
// existing files in place. The kubelet config points at the host IP so
// that containerized nodes reach the API server, everything else talks
// to 127.0.0.1.
func Setup(root string, p *pki.Pki, hostIP net.IP) (*Kubeconfigs, error) {
	k := Paths(root)
	if err := utils.FS.MkdirAll(k.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "While creating %s", k.Dir)
	}

	builds := []struct {
		file   string
		id     *pki.Identity
		server string
	}{
		{k.Admin, p.Admin, "127.0.0.1"},
		{k.Kubelet, p.Kubelets[0], hostIP.String()},
		{k.Proxy, p.Proxy, "127.0.0.1"},
		{k.ControllerManager, p.ControllerManager, "127.0.0.1"},
		{k.Scheduler, p.Scheduler, "127.0.0.1"},
	}
	for _, b := range builds {
		if err := build(b.file, b.id, p.CA, b.server); err != nil {
			return nil, err
		}
	}
	return k, nil
}

func build(file string, id *pki.Identity, ca *pki.Identity, server string) error {
	log.WithFields(log.Fields{
		"file": file,
		"user": id.User,
	}).Debug("Writing kubeconfig")

	steps := [][]string{
		{
			"set-cluster", constants.ClusterName,
			"--certificate-authority=" + ca.Cert,
			"--embed-certs=true",
			fmt.Sprintf("--server=https://%s:%d", server, constants.ApiPort),
		},
		{
			"set-credentials", id.User,
			"--client-certificate=" + id.Cert,
			"--client-key=" + id.Key,
			"--embed-certs=true",
		},
		{
			"set-context", constants.ContextName,
			"--cluster=" + constants.ClusterName,
			"--user=" + id.User,
		},
		{"use-context", constants.ContextName},
	}
	for _, step := range steps {
		args := append([]string{"config"}, step...)
		args = append(args, "--kubeconfig="+file)
		out, err := utils.Exec.Run(true, constants.KubectlCmd, args...)
		if err != nil {
			return errors.Wrapf(err, "While building kubeconfig %s: %s", file, string(out))
		}
	}
	return nil
}

// Validate loads the admin kubeconfig back and checks that kubectl left
// a usable configuration behind.
func (k *Kubeconfigs) Validate() error {
	config, err := kube.LoadFromFile(k.Admin)
	if err != nil {
		return errors.Wrapf(err, "While loading %s", k.Admin)
	}
	return config.Validate()
}

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

// Package provision deploys workloads into the running cluster: the
// CoreDNS addon and optional user overlays.
package provision

// cSpell: words kustomizer filesys coredns resmap

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	appsv1 "k8s.io/api/apps/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/kustomize/api/provider"
	"sigs.k8s.io/kustomize/api/resmap"
	"sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/network"
	"github.com/kubernix/kubernix/pkg/utils"
)

// ApplyManifest pipes a rendered manifest into kubectl apply.
func ApplyManifest(kubeconfig string, manifest []byte) error {
	out, err := utils.Exec.Pipe(bytes.NewReader(manifest), true,
		constants.KubectlCmd, "--kubeconfig", kubeconfig, "apply", "-f", "-")
	log.Trace(string(out))
	if err != nil {
		return errors.Wrapf(err, "While applying manifest: %s", string(out))
	}
	return nil
}

// CoreDNS renders the cluster DNS manifest below the root and deploys
// it with the service IP reserved in the network layout.
func CoreDNS(root string, layout *network.Layout, kubeconfig string) error {
	target := filepath.Join(root, constants.CorednsDir, constants.CorednsFile)
	err := assets.Write("coredns.yml.tmpl", target, map[string]string{
		"DNS":    layout.DNS.String(),
		"Domain": constants.ClusterDomain,
	}, 0o644)
	if err != nil {
		return err
	}
	payload, err := utils.FS.ReadFile(target)
	if err != nil {
		return errors.Wrapf(err, "While reading %s", target)
	}

	log.WithField("clusterIP", layout.DNS.String()).Info("Deploying CoreDNS")
	return ApplyManifest(kubeconfig, payload)
}

// WaitForCoreDNS polls the coredns deployment until at least one replica
// reports ready.
func WaitForCoreDNS(ctx context.Context, kubeconfig string, timeout time.Duration) error {
	log.Info("Waiting for CoreDNS to become ready")
	err := wait.PollUntilContextTimeout(ctx, 2*time.Second, timeout, true,
		func(context.Context) (bool, error) {
			out, err := utils.Exec.Run(false, constants.KubectlCmd,
				"--kubeconfig", kubeconfig,
				"get", "deployment", "-n", "kube-system", "coredns", "-o", "json")
			if err != nil {
				return false, nil
			}
			deployment := &appsv1.Deployment{}
			if err := json.Unmarshal(out, deployment); err != nil {
				return false, nil
			}
			return deployment.Status.ReadyReplicas > 0, nil
		})
	return errors.Wrap(err, "While waiting for CoreDNS")
}

// ApplyOverlay deploys a user provided overlay, either a kustomization
// directory or a single manifest file.
func ApplyOverlay(overlay string, kubeconfig string) error {
	isDir, err := utils.FS.DirExists(overlay)
	if err != nil {
		return errors.Wrapf(err, "While checking %s", overlay)
	}
	if isDir {
		log.WithField("directory", overlay).Info("Applying overlay kustomization")
		return ApplyKustomization(kubeconfig, filesys.MakeFsOnDisk(), overlay)
	}

	exists, err := utils.FS.Exists(overlay)
	if err != nil {
		return errors.Wrapf(err, "While checking %s", overlay)
	}
	if !exists {
		return kubernixapi.Failuref(kubernixapi.Precondition,
			"overlay %s does not exist", overlay)
	}
	payload, err := utils.FS.ReadFile(overlay)
	if err != nil {
		return errors.Wrapf(err, "While reading %s", overlay)
	}

	log.WithField("file", overlay).Info("Applying overlay manifest")
	return ApplyManifest(kubeconfig, payload)
}

// ApplyKustomization builds and applies a kustomization. Cluster scoped
// resources go first so that namespaces and custom resource definitions
// exist before anything referencing them.
func ApplyKustomization(kubeconfig string, fSys filesys.FileSystem, dirname string) error {
	resources, err := RunKustomization(fSys, dirname)
	if err != nil {
		return errors.Wrap(err, "While building kustomization")
	}

	clusterScoped := resmap.NewFactory(provider.NewDefaultDepProvider().GetResourceFactory()).
		FromResourceSlice(resources.ClusterScoped())
	if clusterScoped.Size() != 0 {
		ids := clusterScoped.AllIds()
		log.WithField("resources", ids).Debug("Cluster resources")
		if err := applyResmap(kubeconfig, clusterScoped); err != nil {
			return err
		}
		for _, id := range ids {
			if err := resources.Remove(id); err != nil {
				return err
			}
		}
	}

	log.WithField("resources", resources.AllIds()).Debug("Namespaced resources")
	return applyResmap(kubeconfig, resources)
}

// RunKustomization builds the kustomization in dirname into a resource
// map.
func RunKustomization(fSys filesys.FileSystem, dirname string) (resmap.ResMap, error) {
	k := krusty.MakeKustomizer(EnablePlugins(krusty.MakeDefaultOptions()))
	return k.Run(fSys, dirname)
}

// EnablePlugins widens the kustomize plugin configuration so that
// overlays may use helm charts and exec functions.
func EnablePlugins(opts *krusty.Options) *krusty.Options {
	opts.PluginConfig = types.EnabledPluginConfig(types.BploUseStaticallyLinked) // cSpell: disable-line
	opts.PluginConfig.FnpLoadingOptions.EnableExec = true
	opts.PluginConfig.FnpLoadingOptions.AsCurrentUser = true
	opts.PluginConfig.HelmConfig.Command = "helm"
	opts.LoadRestrictions = types.LoadRestrictionsNone
	return opts
}

func applyResmap(kubeconfig string, resources resmap.ResMap) error {
	if resources.Size() == 0 {
		return nil
	}
	out, err := resources.AsYaml()
	if err != nil {
		return errors.Wrap(err, "While serializing resources")
	}
	return ApplyManifest(kubeconfig, out)
}

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

// Package supervisor owns the lifecycle of a cluster run: preparing the
// host, starting every process in dependency order, provisioning addons
// and tearing everything down in reverse order.
package supervisor

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/assets"
	"github.com/kubernix/kubernix/pkg/components"
	"github.com/kubernix/kubernix/pkg/constants"
	"github.com/kubernix/kubernix/pkg/container"
	"github.com/kubernix/kubernix/pkg/kube"
	"github.com/kubernix/kubernix/pkg/kubeconfig"
	"github.com/kubernix/kubernix/pkg/network"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/process"
	"github.com/kubernix/kubernix/pkg/provision"
	"github.com/kubernix/kubernix/pkg/shell"
	"github.com/kubernix/kubernix/pkg/system"
	"github.com/kubernix/kubernix/pkg/utils"
)

const (
	deathsBuffer     = 64
	coreDNSTimeout   = 3 * time.Minute
	workloadsTimeout = 2 * time.Minute
)

// Supervisor drives one cluster run from bootstrap to teardown.
type Supervisor struct {
	cluster   *v1alpha1.KubernixCluster
	comp      *components.Cluster
	runtime   *container.Runtime
	processes []*process.Process
	nodeUnits []string
	deaths    chan process.Death
}

func New(cluster *v1alpha1.KubernixCluster) *Supervisor {
	return &Supervisor{
		cluster: cluster,
		deaths:  make(chan process.Death, deathsBuffer),
	}
}

// Run bootstraps the cluster and blocks until it is torn down again. The
// first interrupt requests a cooperative shutdown, a second one exits
// the program immediately. Whatever happened during startup, every
// process started so far is stopped in reverse order before Run returns.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	signals := make(chan os.Signal, 2)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(signals)
		close(signals)
	}()
	go func() {
		sig, ok := <-signals
		if !ok {
			return
		}
		log.WithField("signal", sig).Info("Received signal, stopping the cluster")
		cancel()
		if _, ok := <-signals; ok {
			log.Error("Received second signal, exiting immediately")
			os.Exit(1)
		}
	}()

	err := s.bootstrap(ctx)
	if err != nil && kubernixapi.KindOf(err) == kubernixapi.UserCancel {
		log.Info("Shutdown requested")
		err = nil
	} else if err != nil {
		log.WithError(err).Error("Cluster startup failed")
	}

	if teardownErr := s.teardown(); teardownErr != nil && err == nil {
		err = teardownErr
	}

	if err != nil {
		s.cluster.Update(kubernixapi.Failed, "failed", s.processStates())
		return err
	}
	s.cluster.Update(kubernixapi.Done, "done", s.processStates())
	return nil
}

func (s *Supervisor) bootstrap(ctx context.Context) error {
	if err := s.prepare(); err != nil {
		return err
	}
	if err := s.startCore(ctx); err != nil {
		return err
	}
	if err := s.startNodes(ctx); err != nil {
		return err
	}
	if err := s.provision(ctx); err != nil {
		return err
	}
	s.ready()
	return s.wait(ctx)
}

// prepare validates the host, plans the network and issues certificates
// and kubeconfigs. Everything here is idempotent so that a run can reuse
// the root of a previous one.
func (s *Supervisor) prepare() error {
	spec := &s.cluster.Spec
	s.cluster.Update(kubernixapi.Preparing, "prepare", nil)

	if err := system.CheckNotNested(); err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if err := system.CheckBinaries(spec); err != nil {
		return err
	}

	layout, err := network.NewLayout(spec.Cidr)
	if err != nil {
		return err
	}
	hostIP, err := system.HostIP()
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Precondition, err)
	}
	hostname, err := system.Hostname()
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Precondition, err)
	}

	if err := system.EnsureKernelModules(); err != nil {
		return kubernixapi.NewFailure(kubernixapi.Precondition, err)
	}
	if err := system.EnsureSysctls(); err != nil {
		return kubernixapi.NewFailure(kubernixapi.Precondition, err)
	}
	if err := network.WarnOnConflictingRoutes(layout.Base); err != nil {
		log.WithError(err).Warn("Could not inspect host routes")
	}

	logDir := filepath.Join(spec.Root, constants.LogDir)
	if err := utils.FS.MkdirAll(logDir, 0o755); err != nil {
		return kubernixapi.Failuref(kubernixapi.Provisioning, "creating %s: %v", logDir, err)
	}
	policy := filepath.Join(spec.Root, constants.PolicyFile)
	err = utils.ExecuteIfNotExist(policy, func() error {
		return assets.Write("policy.json", policy, nil, 0o644)
	})
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}

	names := components.NodeNames(hostname, spec.Nodes)
	p, err := pki.Setup(spec.Root, layout, hostname, names)
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}
	kubeconfigs, err := kubeconfig.Setup(spec.Root, p, hostIP)
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}
	if err := kubeconfigs.Validate(); err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}

	if spec.MultiNode() {
		s.runtime = container.NewRuntime(spec.ContainerRuntime)
		if err := s.runtime.EnsureImage(spec.Root); err != nil {
			return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
		}
		if err := network.EnsureNodeMappings(hostIP, names); err != nil {
			log.WithError(err).Warn("Could not map node names in /etc/hosts")
		}
	}

	s.comp = &components.Cluster{
		Root:        spec.Root,
		Layout:      layout,
		HostIP:      hostIP,
		Hostname:    hostname,
		Pki:         p,
		Kubeconfigs: kubeconfigs,
		Nodes:       spec.Nodes,
	}
	return nil
}

func (s *Supervisor) startCore(ctx context.Context) error {
	s.cluster.Update(kubernixapi.StartingCore, "start-core", nil)

	builders := []func() (*components.Startup, error){
		s.comp.Etcd,
		s.comp.APIServer,
		s.comp.ControllerManager,
		s.comp.Scheduler,
	}
	for _, builder := range builders {
		startup, err := builder()
		if err != nil {
			return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
		}
		if err := s.launch(ctx, startup); err != nil {
			return err
		}
	}
	return nil
}

func (s *Supervisor) startNodes(ctx context.Context) error {
	spec := &s.cluster.Spec
	s.cluster.Update(kubernixapi.StartingNodes, "start-nodes", nil)

	names := components.NodeNames(s.comp.Hostname, spec.Nodes)
	for index, node := range names {
		kubeletID := s.comp.Pki.Kubelets[index]
		builders := []func() (*components.Startup, error){
			func() (*components.Startup, error) { return s.comp.Crio(node) },
			func() (*components.Startup, error) { return s.comp.Kubelet(node, kubeletID) },
			func() (*components.Startup, error) { return s.comp.Proxy(node) },
		}
		for _, builder := range builders {
			startup, err := builder()
			if err != nil {
				return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
			}
			if err := s.launch(ctx, startup); err != nil {
				return err
			}
		}
	}
	return nil
}

// launch starts one process and waits for its readiness marker. The
// process joins the supervised set only once it reported ready, a failed
// readiness wait already stopped its own child.
func (s *Supervisor) launch(ctx context.Context, startup *components.Startup) error {
	command := startup.Command
	if s.runtime != nil && startup.Node != "" {
		s.runtime.Remove(startup.Name)
		s.nodeUnits = append(s.nodeUnits, startup.Name)
		command = s.runtime.Wrap(startup.Name, startup.Node, s.comp.Root, command)
	}

	logDir := filepath.Join(s.comp.Root, constants.LogDir)
	p, err := process.Start(startup.Name, logDir, command, s.deaths)
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}
	if err := p.WaitReady(ctx, startup.Marker, process.DefaultReadyTimeout); err != nil {
		return err
	}
	s.processes = append(s.processes, p)
	return nil
}

func (s *Supervisor) provision(ctx context.Context) error {
	admin := s.comp.Kubeconfigs.Admin
	if err := provision.CoreDNS(s.comp.Root, s.comp.Layout, admin); err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}
	if err := provision.WaitForCoreDNS(ctx, admin, coreDNSTimeout); err != nil {
		if ctx.Err() != nil {
			return kubernixapi.Failuref(kubernixapi.UserCancel,
				"interrupted while waiting for CoreDNS")
		}
		return kubernixapi.NewFailure(kubernixapi.Readiness, err)
	}

	if overlay := s.cluster.Spec.Overlay; overlay != "" {
		if err := provision.ApplyOverlay(overlay, admin); err != nil {
			return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
		}
		return s.awaitWorkloads(ctx, admin)
	}
	return nil
}

// awaitWorkloads gives the overlay workloads a settling window. A slow
// workload does not fail the bootstrap, the cluster itself is healthy
// and `kubernix status` shows what is still missing.
func (s *Supervisor) awaitWorkloads(ctx context.Context, admin string) error {
	config, err := kube.LoadFromFile(admin)
	if err != nil {
		return kubernixapi.NewFailure(kubernixapi.Provisioning, err)
	}
	if err := config.WaitForWorkloads(ctx, workloadsTimeout, nil); err != nil {
		if ctx.Err() != nil {
			return kubernixapi.Failuref(kubernixapi.UserCancel,
				"interrupted while waiting for overlay workloads")
		}
		log.WithError(err).Warn("Overlay workloads not settled yet")
	}
	return nil
}

// ready persists the final state and writes the env file consumed by the
// interactive shell and by `kubernix shell`.
func (s *Supervisor) ready() {
	s.cluster.Update(kubernixapi.Ready, "ready", s.processStates())

	firstNode := components.NodeName(s.comp.Hostname, 0, s.cluster.Spec.Nodes)
	envFile := s.cluster.Spec.EnvFile()
	env := map[string]string{
		"KUBECONFIG":                 s.comp.Kubeconfigs.Admin,
		constants.EnvVariable:        s.comp.Root,
		"CONTAINER_RUNTIME_ENDPOINT": "unix://" + s.comp.CrioSocket(firstNode),
	}
	if err := godotenv.Write(env, envFile); err != nil {
		log.WithError(err).Warn("Could not write environment file")
	}

	log.WithFields(log.Fields{
		"kubeconfig": s.comp.Kubeconfigs.Admin,
		"env":        envFile,
	}).Info("Cluster is up and running")
}

// wait blocks until the user leaves the interactive shell, a supervised
// process dies unexpectedly or a shutdown signal arrives.
func (s *Supervisor) wait(ctx context.Context) error {
	var shellDone chan error
	if !s.cluster.Spec.NoShell {
		command, err := shell.Spawn(s.comp.Root)
		if err != nil {
			log.WithError(err).Warn("Could not spawn interactive shell")
		} else {
			shellDone = make(chan error, 1)
			go func() { shellDone <- command.Wait() }()
		}
	}
	if shellDone == nil {
		log.Info("Running until a signal arrives")
	}

	select {
	case <-ctx.Done():
		return kubernixapi.Failuref(kubernixapi.UserCancel, "shutdown requested")
	case death := <-s.deaths:
		return death.Err
	case err := <-shellDone:
		if err != nil {
			log.WithError(err).Debug("Shell exited nonzero")
		}
		log.Info("Shell exited, tearing the cluster down")
		return nil
	}
}

// teardown stops every supervised process in reverse start order and
// clears node containers. It always runs to completion, collecting the
// failures it encounters.
func (s *Supervisor) teardown() error {
	s.cluster.Update(kubernixapi.Stopping, "teardown", nil)
	log.WithField("processes", len(s.processes)).Info("Tearing the cluster down")

	var errs []error
	for i := len(s.processes) - 1; i >= 0; i-- {
		p := s.processes[i]
		if err := p.Stop(); err != nil {
			errs = append(errs, kubernixapi.Failuref(kubernixapi.Teardown,
				"stopping %s: %v", p.Name, err))
		}
	}

	if s.runtime != nil {
		for i := len(s.nodeUnits) - 1; i >= 0; i-- {
			s.runtime.Remove(s.nodeUnits[i])
		}
	}

	return utilerrors.NewAggregate(errs)
}

func (s *Supervisor) processStates() []v1alpha1.ProcessState {
	states := make([]v1alpha1.ProcessState, 0, len(s.processes))
	for _, p := range s.processes {
		states = append(states, v1alpha1.ProcessState{
			Name:    p.Name,
			Pid:     p.Pid(),
			LogFile: p.LogFile,
			Ready:   true,
		})
	}
	return states
}

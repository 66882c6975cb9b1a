package status_test

import (
	"context"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/suite"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/kubeconfig"
	"github.com/kubernix/kubernix/pkg/network"
	"github.com/kubernix/kubernix/pkg/pki"
	"github.com/kubernix/kubernix/pkg/status"
	"github.com/kubernix/kubernix/pkg/utils"
)

type CheckersTestSuite struct {
	suite.Suite
	originalFS utils.FileSystem
}

func (s *CheckersTestSuite) SetupTest() {
	s.originalFS = utils.FS
	utils.FS = utils.NewMemMapFS()
}

func (s *CheckersTestSuite) TeardownTest() {
	utils.FS = s.originalFS
}

func (s *CheckersTestSuite) runCheck(check *status.Check) *status.CheckResult {
	executor := status.NewCheckExecutor([]*status.Check{check})
	return executor.Run(context.Background())[0]
}

func (s *CheckersTestSuite) TestRootCheck() {
	s.Require().NoError(utils.FS.MkdirAll("/var/cluster", 0o755))

	result := s.runCheck(status.RootCheck("/var/cluster"))
	s.True(result.Success())

	result = s.runCheck(status.RootCheck("/nowhere"))
	s.True(result.Failed())
	s.Contains(result.Message, "does not exist")
}

func (s *CheckersTestSuite) TestClusterStateCheck() {
	spec := v1alpha1.KubernixClusterSpec{}
	v1alpha1.SetDefaults_KubernixClusterSpec(&spec)
	spec.Root = "/var/cluster"
	cluster := v1alpha1.NewKubernixCluster(spec)
	cluster.Update(kubernixapi.Ready, "ready", nil)

	result := s.runCheck(status.ClusterStateCheck("/var/cluster"))
	s.True(result.Success())
	s.Contains(result.Message, "Ready")
	s.Contains(result.Message, cluster.Status.RunID)
}

func (s *CheckersTestSuite) TestClusterStateCheckNotReady() {
	spec := v1alpha1.KubernixClusterSpec{}
	v1alpha1.SetDefaults_KubernixClusterSpec(&spec)
	spec.Root = "/var/cluster"
	cluster := v1alpha1.NewKubernixCluster(spec)
	cluster.Update(kubernixapi.Failed, "teardown", nil)

	result := s.runCheck(status.ClusterStateCheck("/var/cluster"))
	s.True(result.Failed())
	s.Contains(result.Message, "Failed")
}

func (s *CheckersTestSuite) TestClusterStateCheckMissingStatus() {
	result := s.runCheck(status.ClusterStateCheck("/var/cluster"))
	s.True(result.Failed())
	s.Error(result.Error)
}

func (s *CheckersTestSuite) TestFileCheck() {
	s.Require().NoError(utils.FS.WriteFile("/var/cluster/policy.json", []byte("{}"), 0o644))
	s.Require().NoError(utils.FS.MkdirAll("/var/cluster/log", 0o755))

	result := s.runCheck(status.FileCheck("policy", "/var/cluster/policy.json"))
	s.True(result.Success())

	result = s.runCheck(status.FileCheck("log", "/var/cluster/log"))
	s.True(result.Failed())
	s.Contains(result.Message, "directory")

	result = s.runCheck(status.FileCheck("missing", "/var/cluster/nothing"))
	s.True(result.Failed())
}

func (s *CheckersTestSuite) TestPkiCheck() {
	layout, err := network.NewLayout("10.10.0.0/16")
	s.Require().NoError(err)
	s.Require().NoError(utils.FS.MkdirAll("/var/cluster/pki", 0o755))
	p, err := pki.Setup("/var/cluster", layout, "myhost", []string{"myhost"})
	s.Require().NoError(err)

	for _, id := range p.Identities() {
		s.Require().NoError(utils.FS.WriteFile(id.Cert, []byte("cert"), 0o644))
		s.Require().NoError(utils.FS.WriteFile(id.Key, []byte("key"), 0o600))
	}

	result := s.runCheck(status.PkiCheck(p))
	s.True(result.Success())
	s.Contains(result.Message, "8 identities")
}

func (s *CheckersTestSuite) TestPkiCheckMissingFile() {
	layout, err := network.NewLayout("10.10.0.0/16")
	s.Require().NoError(err)
	s.Require().NoError(utils.FS.MkdirAll("/var/cluster/pki", 0o755))
	p, err := pki.Setup("/var/cluster", layout, "myhost", []string{"myhost"})
	s.Require().NoError(err)

	for _, id := range p.Identities() {
		if id == p.Admin {
			continue
		}
		s.Require().NoError(utils.FS.WriteFile(id.Cert, []byte("cert"), 0o644))
		s.Require().NoError(utils.FS.WriteFile(id.Key, []byte("key"), 0o600))
	}

	result := s.runCheck(status.PkiCheck(p))
	s.True(result.Failed())
	s.Contains(result.Message, "admin.pem")
}

func (s *CheckersTestSuite) TestKubeconfigsCheck() {
	dir := "/var/cluster/kubeconfig"
	k := &kubeconfig.Kubeconfigs{
		Dir:               dir,
		Admin:             dir + "/admin.kubeconfig",
		Kubelet:           dir + "/kubelet.kubeconfig",
		Proxy:             dir + "/kube-proxy.kubeconfig",
		ControllerManager: dir + "/kube-controller-manager.kubeconfig",
		Scheduler:         dir + "/kube-scheduler.kubeconfig",
	}
	for _, file := range []string{k.Admin, k.Kubelet, k.Proxy, k.ControllerManager} {
		s.Require().NoError(utils.FS.WriteFile(file, []byte("config"), 0o600))
	}

	result := s.runCheck(status.KubeconfigsCheck(k))
	s.True(result.Failed())
	s.Contains(result.Message, "kube-scheduler.kubeconfig")

	s.Require().NoError(utils.FS.WriteFile(k.Scheduler, []byte("config"), 0o600))
	result = s.runCheck(status.KubeconfigsCheck(k))
	s.True(result.Success())
}

func (s *CheckersTestSuite) TestProcessCheck() {
	alive := v1alpha1.ProcessState{Name: "etcd", Pid: os.Getpid()}
	result := s.runCheck(status.ProcessCheck(alive))
	s.True(result.Success())
	s.Contains(result.Message, "Running")

	command := exec.Command("/bin/true")
	s.Require().NoError(command.Start())
	s.Require().NoError(command.Wait())

	dead := v1alpha1.ProcessState{Name: "crio", Pid: command.Process.Pid}
	result = s.runCheck(status.ProcessCheck(dead))
	s.True(result.Failed())
	s.Contains(result.Message, "gone")
}

func (s *CheckersTestSuite) TestProcessesPhase() {
	phase := status.ProcessesPhase([]v1alpha1.ProcessState{
		{Name: "etcd", Pid: os.Getpid()},
		{Name: "kube-apiserver", Pid: os.Getpid()},
	})

	s.Equal("processes", phase.Name)
	s.Len(phase.SubChecks, 2)
	s.Equal("process_etcd", phase.SubChecks[0].Name)
}

func (s *CheckersTestSuite) TestWorkloadResultPrinter() {
	check := status.WorkloadsCheck("/var/cluster/kubeconfig/admin.kubeconfig")
	result := &status.CheckResult{
		Check:  check,
		Status: status.StatusSuccess,
		CheckData: &status.WorkloadData{
			States: []*v1alpha1.WorkloadState{
				{Namespace: "kube-system", Name: "coredns", Ok: true},
				{Namespace: "default", Name: "web", Ok: false, Message: "0/1 replicas"},
			},
		},
	}

	output := result.Format("", "*")
	s.Contains(output, "coredns")
	s.Contains(output, "web")
	s.Contains(output, "🟩")
	s.Contains(output, "🟥")
}

func TestCheckersTestSuite(t *testing.T) {
	suite.Run(t, new(CheckersTestSuite))
}

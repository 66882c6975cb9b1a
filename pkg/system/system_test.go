package system_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/apis/kubernix/v1alpha1"
	"github.com/kubernix/kubernix/pkg/system"
	"github.com/kubernix/kubernix/pkg/testutils"
	"github.com/kubernix/kubernix/pkg/utils"
)

type SystemTestSuite struct {
	suite.Suite
	originalExec utils.Executor
	mock         *testutils.MockExecutor
}

func (s *SystemTestSuite) SetupTest() {
	s.originalExec = utils.Exec
	s.mock = &testutils.MockExecutor{}
	utils.Exec = s.mock
}

func (s *SystemTestSuite) TeardownTest() {
	utils.Exec = s.originalExec
}

func (s *SystemTestSuite) TestHostIP() {
	route := "1.2.3.4 via 192.168.1.1 dev eth0 src 192.168.1.17 uid 0\n    cache\n"
	s.mock.On("Run", false, "ip", "route", "get", "1.2.3.4").Return(route, nil)

	ip, err := system.HostIP()
	s.Require().NoError(err)
	s.Equal("192.168.1.17", ip.String())
	s.mock.AssertExpectations(s.T())
}

func (s *SystemTestSuite) TestHostIPGarbage() {
	s.mock.On("Run", false, "ip", "route", "get", "1.2.3.4").Return("no route to host\n", nil)

	_, err := system.HostIP()
	s.Error(err)
}

func (s *SystemTestSuite) TestHostIPCommandFailure() {
	s.mock.On("Run", false, "ip", "route", "get", "1.2.3.4").Return("", assert.AnError)

	_, err := system.HostIP()
	s.ErrorContains(err, "While getting default route")
}

func (s *SystemTestSuite) TestEnsureSysctls() {
	for _, key := range []string{
		"net.bridge.bridge-nf-call-iptables",
		"net.bridge.bridge-nf-call-ip6tables",
		"net.ipv4.conf.all.route_localnet",
		"net.ipv4.ip_forward",
	} {
		s.mock.On("Run", true, "sysctl", "-w", key+"=1").Return("", nil)
	}

	s.NoError(system.EnsureSysctls())
	s.mock.AssertExpectations(s.T())
}

func (s *SystemTestSuite) TestEnsureSysctlsFailure() {
	s.mock.On("Run", true, "sysctl", "-w", "net.bridge.bridge-nf-call-iptables=1").
		Return("sysctl: permission denied", assert.AnError)

	s.ErrorContains(system.EnsureSysctls(), "permission denied")
}

func (s *SystemTestSuite) TestCheckBinaries() {
	spec := &v1alpha1.KubernixClusterSpec{}
	v1alpha1.SetDefaults_KubernixClusterSpec(spec)
	spec.Packages = []string{"helm"}

	s.mock.On("LookPath", "etcd").Return("/usr/bin/etcd", nil)
	s.mock.On("LookPath", "kube-apiserver").Return("", assert.AnError)
	s.mock.On("LookPath", "kube-controller-manager").Return("/usr/bin/kube-controller-manager", nil)
	s.mock.On("LookPath", "kube-scheduler").Return("/usr/bin/kube-scheduler", nil)
	s.mock.On("LookPath", "kubelet").Return("/usr/bin/kubelet", nil)
	s.mock.On("LookPath", "kube-proxy").Return("/usr/bin/kube-proxy", nil)
	s.mock.On("LookPath", "crio").Return("/usr/bin/crio", nil)
	s.mock.On("LookPath", "cfssl").Return("/usr/bin/cfssl", nil)
	s.mock.On("LookPath", "cfssljson").Return("/usr/bin/cfssljson", nil)
	s.mock.On("LookPath", "kubectl").Return("/usr/bin/kubectl", nil)
	s.mock.On("LookPath", "ip").Return("/sbin/ip", nil)
	s.mock.On("LookPath", "modprobe").Return("/sbin/modprobe", nil)
	s.mock.On("LookPath", "sysctl").Return("/sbin/sysctl", nil)
	s.mock.On("LookPath", "helm").Return("", assert.AnError)

	err := system.CheckBinaries(spec)
	s.Require().Error(err)
	s.True(kubernixapi.IsKind(err, kubernixapi.Precondition))
	s.ErrorContains(err, "kube-apiserver")
	s.ErrorContains(err, "helm")
	s.NotContains(err.Error(), "podman")
}

func (s *SystemTestSuite) TestCheckBinariesMultiNode() {
	spec := &v1alpha1.KubernixClusterSpec{Nodes: 2}
	v1alpha1.SetDefaults_KubernixClusterSpec(spec)

	s.mock.On("LookPath", mock.Anything).Return("", assert.AnError)

	err := system.CheckBinaries(spec)
	s.Require().Error(err)
	s.ErrorContains(err, "podman")
}

func (s *SystemTestSuite) TestCheckNotNested() {
	s.T().Setenv("KUBERNIX_ENV", "")
	s.NoError(system.CheckNotNested())

	s.T().Setenv("KUBERNIX_ENV", "/var/cluster")
	err := system.CheckNotNested()
	s.Require().Error(err)
	s.True(kubernixapi.IsKind(err, kubernixapi.Precondition))
}

func TestSystemTestSuite(t *testing.T) {
	suite.Run(t, new(SystemTestSuite))
}

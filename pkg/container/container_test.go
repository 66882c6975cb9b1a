package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/kubernix/kubernix/pkg/container"
	"github.com/kubernix/kubernix/pkg/testutils"
	"github.com/kubernix/kubernix/pkg/utils"
)

type ContainerTestSuite struct {
	suite.Suite
	originalExec utils.Executor
	originalFS   utils.FileSystem
	mock         *testutils.MockExecutor
	runtime      *container.Runtime
}

func (s *ContainerTestSuite) SetupTest() {
	s.originalExec = utils.Exec
	s.originalFS = utils.FS
	s.mock = &testutils.MockExecutor{}
	utils.Exec = s.mock
	utils.FS = utils.NewMemMapFS()
	s.runtime = container.NewRuntime("podman")
}

func (s *ContainerTestSuite) TeardownTest() {
	utils.Exec = s.originalExec
	utils.FS = s.originalFS
}

func (s *ContainerTestSuite) TestEnsureImageSkipsExisting() {
	s.mock.On("Run", false, "podman", "image", "inspect", "kubernix:base").Return("{}", nil)

	s.NoError(s.runtime.EnsureImage("/var/cluster"))
	s.mock.AssertNumberOfCalls(s.T(), "Run", 1)
}

func (s *ContainerTestSuite) TestEnsureImageBuilds() {
	s.mock.On("Run", false, "podman", "image", "inspect", "kubernix:base").
		Return("no such image", assert.AnError)
	for _, binary := range []string{"crio", "kubelet", "kube-proxy", "runc", "crun", "conmon"} {
		path := "/usr/bin/" + binary
		s.Require().NoError(utils.FS.WriteFile(path, []byte(binary), 0o755))
		s.mock.On("LookPath", binary).Return(path, nil)
	}
	s.mock.On("Run", true, "podman", "build", "-t", "kubernix:base", "/var/cluster/image").
		Return("", nil)

	s.Require().NoError(s.runtime.EnsureImage("/var/cluster"))
	s.mock.AssertExpectations(s.T())

	payload, err := utils.FS.ReadFile("/var/cluster/image/bin/kubelet")
	s.Require().NoError(err)
	s.Equal("kubelet", string(payload))

	dockerfile, err := utils.FS.ReadFile("/var/cluster/image/Dockerfile")
	s.Require().NoError(err)
	s.Contains(string(dockerfile), "FROM ubuntu:24.04")
}

func (s *ContainerTestSuite) TestEnsureImageMissingRequiredBinary() {
	s.mock.On("Run", false, "podman", "image", "inspect", "kubernix:base").
		Return("no such image", assert.AnError)
	s.mock.On("LookPath", "crio").Return("", assert.AnError)

	err := s.runtime.EnsureImage("/var/cluster")
	s.Require().Error(err)
	s.ErrorContains(err, "crio")
}

func (s *ContainerTestSuite) TestEnsureImageToleratesMissingHelpers() {
	s.mock.On("Run", false, "podman", "image", "inspect", "kubernix:base").
		Return("no such image", assert.AnError)
	for _, binary := range []string{"crio", "kubelet", "kube-proxy"} {
		path := "/usr/bin/" + binary
		s.Require().NoError(utils.FS.WriteFile(path, []byte(binary), 0o755))
		s.mock.On("LookPath", binary).Return(path, nil)
	}
	for _, helper := range []string{"runc", "crun", "conmon"} {
		s.mock.On("LookPath", helper).Return("", assert.AnError)
	}
	s.mock.On("Run", true, "podman", "build", "-t", "kubernix:base", "/var/cluster/image").
		Return("", nil)

	s.NoError(s.runtime.EnsureImage("/var/cluster"))
}

func (s *ContainerTestSuite) TestWrap() {
	command := s.runtime.Wrap(
		"node-1-crio", "node-1", "/var/cluster",
		[]string{"crio", "--listen=/var/cluster/crio-node-1/crio.sock"})

	s.Equal([]string{
		"podman", "run", "--rm",
		"--net=host",
		"--privileged",
		"--hostname=node-1",
		"--name=kubernix-node-1-crio",
		"--volume=/var/cluster:/var/cluster",
		"kubernix:base",
		"crio", "--listen=/var/cluster/crio-node-1/crio.sock",
	}, command)
}

func (s *ContainerTestSuite) TestWrapWithDevMapper() {
	s.Require().NoError(utils.FS.MkdirAll("/dev/mapper", 0o755))

	command := s.runtime.Wrap("node-0-kubelet", "node-0", "/var/cluster", []string{"kubelet"})
	s.Contains(command, "--volume=/dev/mapper:/dev/mapper")
}

func (s *ContainerTestSuite) TestRemove() {
	s.mock.On("Run", true, "podman", "rm", "-f", "kubernix-node-0-kubelet").Return("", nil)

	s.runtime.Remove("node-0-kubelet")
	s.mock.AssertExpectations(s.T())
}

func TestContainerTestSuite(t *testing.T) {
	suite.Run(t, new(ContainerTestSuite))
}

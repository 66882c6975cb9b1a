package shell_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kubernixapi "github.com/kubernix/kubernix/pkg/apis/kubernix"
	"github.com/kubernix/kubernix/pkg/shell"
)

func writeEnvFile(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	err := os.WriteFile(filepath.Join(root, "kubernix.env"),
		[]byte("KUBECONFIG=/var/cluster/kubeconfig/admin.kubeconfig\n"), 0o644)
	require.NoError(t, err)
	return root
}

func TestSpawn(t *testing.T) {
	t.Setenv("SHELL", "/bin/true")
	root := writeEnvFile(t)

	command, err := shell.Spawn(root)
	require.NoError(t, err)
	assert.Contains(t, command.Env, "KUBECONFIG=/var/cluster/kubeconfig/admin.kubeconfig")
	require.NoError(t, command.Wait())
}

func TestSpawnMissingEnvFile(t *testing.T) {
	_, err := shell.Spawn(t.TempDir())
	require.Error(t, err)
}

func TestRun(t *testing.T) {
	t.Setenv("KUBERNIX_ENV", "")
	t.Setenv("SHELL", "/bin/true")
	require.NoError(t, shell.Run(writeEnvFile(t)))
}

func TestRunSwallowsNonzeroExit(t *testing.T) {
	t.Setenv("KUBERNIX_ENV", "")
	t.Setenv("SHELL", "/bin/false")
	require.NoError(t, shell.Run(writeEnvFile(t)))
}

func TestRunWithoutCluster(t *testing.T) {
	t.Setenv("KUBERNIX_ENV", "")
	err := shell.Run(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, kubernixapi.Precondition, kubernixapi.KindOf(err))
}

func TestRunNested(t *testing.T) {
	t.Setenv("KUBERNIX_ENV", "/var/cluster")
	err := shell.Run(writeEnvFile(t))
	require.Error(t, err)
	assert.Equal(t, kubernixapi.Precondition, kubernixapi.KindOf(err))
	assert.ErrorContains(t, err, "/var/cluster")
}

package kubernix_test

import (
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernix/kubernix/pkg/apis/kubernix"
)

func TestFailureWrapping(t *testing.T) {
	t.Parallel()

	cause := errors.Wrap(os.ErrNotExist, "reading pki directory")
	err := kubernix.NewFailure(kubernix.Precondition, cause)
	require.Error(t, err)

	assert.Equal(t, kubernix.Precondition, kubernix.KindOf(err))
	assert.True(t, kubernix.IsKind(err, kubernix.Precondition))
	assert.False(t, kubernix.IsKind(err, kubernix.Teardown))

	// The cause stays reachable through the failure.
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "precondition: ")
	assert.Contains(t, err.Error(), "reading pki directory")
}

func TestFailureNilCause(t *testing.T) {
	t.Parallel()

	assert.NoError(t, kubernix.NewFailure(kubernix.Provisioning, nil))
}

func TestFailuref(t *testing.T) {
	t.Parallel()

	err := kubernix.Failuref(kubernix.Readiness, "etcd did not become ready after %s", "30s")
	assert.Equal(t, "readiness: etcd did not become ready after 30s", err.Error())
}

func TestKindOfUnclassified(t *testing.T) {
	t.Parallel()

	assert.Equal(t, kubernix.UnknownFailure, kubernix.KindOf(errors.New("plain")))
	assert.Equal(t, kubernix.UnknownFailure, kubernix.KindOf(nil))
}

func TestClusterStateRoundTrip(t *testing.T) {
	t.Parallel()

	for _, state := range []kubernix.ClusterState{
		kubernix.Init, kubernix.Preparing, kubernix.StartingCore,
		kubernix.StartingNodes, kubernix.Ready, kubernix.Stopping,
		kubernix.Done, kubernix.Failed,
	} {
		data, err := state.MarshalJSON()
		require.NoError(t, err)

		var decoded kubernix.ClusterState
		require.NoError(t, decoded.UnmarshalJSON(data))
		assert.Equal(t, state, decoded)
	}
}

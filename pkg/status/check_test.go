package status_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubernix/kubernix/pkg/status"
)

func success(message string) status.CheckFn {
	return func(context.Context, status.CheckData) (bool, string, error) {
		return true, message, nil
	}
}

func failure(message string) status.CheckFn {
	return func(context.Context, status.CheckData) (bool, string, error) {
		return false, message, nil
	}
}

func TestExecutorRunsAllChecks(t *testing.T) {
	executor := status.NewCheckExecutor([]*status.Check{
		{Name: "one", Description: "First", CheckFn: success("ok")},
		{Name: "two", Description: "Second", CheckFn: success("ok")},
	})

	results := executor.Run(context.Background())

	require.Len(t, results, 2)
	for _, result := range results {
		assert.True(t, result.Success())
	}
	assert.False(t, executor.Failed())
}

func TestExecutorSkipsDependentOnFailure(t *testing.T) {
	executor := status.NewCheckExecutor([]*status.Check{
		{Name: "first", Description: "First", CheckFn: failure("broken")},
		{
			Name:        "second",
			Description: "Second",
			DependsOn:   []string{"first"},
			CheckFn:     success("ok"),
		},
	})

	results := executor.Run(context.Background())

	assert.True(t, results[0].Failed())
	assert.Equal(t, status.StatusSkipped, results[1].Status)
	assert.Contains(t, results[1].Message, "first")
	assert.True(t, executor.Failed())
}

func TestPhaseAggregatesSubChecks(t *testing.T) {
	phase := status.NewPhase("phase", "A phase", []*status.Check{
		{Name: "good", Description: "Good", CheckFn: success("ok")},
		{Name: "bad", Description: "Bad", CheckFn: failure("broken")},
	})
	executor := status.NewCheckExecutor([]*status.Check{phase})

	results := executor.Run(context.Background())

	require.Len(t, results, 1)
	assert.True(t, results[0].Failed())
	require.Error(t, results[0].Error)
	assert.Contains(t, results[0].Error.Error(), "1 sub-checks failed")
}

func TestDependencyOnPhase(t *testing.T) {
	phase := status.NewPhase("phase", "A phase", []*status.Check{
		{Name: "inner", Description: "Inner", CheckFn: failure("broken")},
	})
	executor := status.NewCheckExecutor([]*status.Check{
		phase,
		{
			Name:        "after",
			Description: "After the phase",
			DependsOn:   []string{"phase"},
			CheckFn:     success("ok"),
		},
	})

	results := executor.Run(context.Background())
	assert.Equal(t, status.StatusSkipped, results[1].Status)
}

func TestCheckWithoutFunctionFails(t *testing.T) {
	executor := status.NewCheckExecutor([]*status.Check{
		{Name: "empty", Description: "Empty"},
	})

	results := executor.Run(context.Background())

	assert.True(t, results[0].Failed())
	require.Error(t, results[0].Error)
	assert.Contains(t, results[0].Error.Error(), "no check function")
}

func TestExecutorHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	executor := status.NewCheckExecutor([]*status.Check{
		{
			Name:        "stuck",
			Description: "Never finishes on its own",
			CheckFn: func(ctx context.Context, _ status.CheckData) (bool, string, error) {
				<-ctx.Done()
				return false, "", ctx.Err()
			},
		},
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		executor.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("executor did not return after cancellation")
	}
}

func TestFormatRendersTree(t *testing.T) {
	phase := status.NewPhase("phase", "Phase", []*status.Check{
		{Name: "good", Description: "Looks fine", CheckFn: success("all good")},
	})
	executor := status.NewCheckExecutor([]*status.Check{phase})
	executor.Run(context.Background())

	output := executor.Results[0].Format("", "*")
	assert.Contains(t, output, "Phase")
	assert.Contains(t, output, "Looks fine")
	assert.Contains(t, output, "all good")
	assert.Contains(t, output, "✓")
}

// Package status runs concurrent health checks against a cluster and
// renders their progress in the terminal.
package status

// cSpell: words lipgloss
import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

type CheckStatus int

const (
	StatusPending CheckStatus = iota
	StatusRunning
	StatusSkipped
	StatusSuccess
	StatusFailed
)

type CheckData any

type CheckDataBuilder func() CheckData

type CheckFn func(ctx context.Context, data CheckData) (bool, string, error)

type CustomResultPrinter func(result *CheckResult, prefix string, spinView string) string

// Check describes one verification. A check with SubChecks acts as a
// phase and derives its result from its children. DependsOn references
// other checks by name, a check only runs once all of them succeeded.
type Check struct {
	CheckFn          CheckFn
	CheckDataBuilder CheckDataBuilder
	CustomPrinter    CustomResultPrinter
	Name             string
	Description      string
	DependsOn        []string
	SubChecks        []*Check
}

type CheckResult struct {
	Error         error
	CheckData     CheckData
	Check         *Check
	Done          chan struct{}
	Message       string
	SubResults    []*CheckResult
	ParentResults []*CheckResult
	Status        CheckStatus
}

type CheckExecutor struct {
	Checks  []*Check
	Results []*CheckResult
}

func NewPhase(name, description string, subChecks []*Check) *Check {
	return &Check{
		Name:        name,
		Description: description,
		SubChecks:   subChecks,
	}
}

func (c *Check) newResult() *CheckResult {
	var subResults []*CheckResult
	for _, subCheck := range c.SubChecks {
		subResults = append(subResults, subCheck.newResult())
	}

	var checkData CheckData
	if c.CheckDataBuilder != nil {
		checkData = c.CheckDataBuilder()
	}

	return &CheckResult{
		Check:      c,
		SubResults: subResults,
		Done:       make(chan struct{}),
		CheckData:  checkData,
	}
}

func (r *CheckResult) Name() string {
	return r.Check.Name
}

func (r *CheckResult) Success() bool {
	return r.Status == StatusSuccess
}

func (r *CheckResult) Failed() bool {
	return r.Status == StatusFailed
}

func (r *CheckResult) fillNameMap(nameMap map[string]*CheckResult) {
	nameMap[r.Name()] = r
	for _, subResult := range r.SubResults {
		subResult.fillNameMap(nameMap)
	}
}

func (r *CheckResult) fillDependencies(nameMap map[string]*CheckResult) {
	for _, depName := range r.Check.DependsOn {
		if depResult, ok := nameMap[depName]; ok {
			r.ParentResults = append(r.ParentResults, depResult)
		}
	}

	for _, subResult := range r.SubResults {
		subResult.fillDependencies(nameMap)
	}
}

func (r *CheckResult) waitForDependencies(ctx context.Context) bool {
	for _, parent := range r.ParentResults {
		select {
		case <-ctx.Done():
			return false
		case <-parent.Done:
			if !parent.Success() {
				r.Status = StatusSkipped
				r.Message = fmt.Sprintf("Skipped due to failure of %s", parent.Name())
				return false
			}
		}
	}
	return true
}

func (r *CheckResult) waitForSubChecks(ctx context.Context) {
	failed := 0
	for _, subResult := range r.SubResults {
		select {
		case <-ctx.Done():
			return
		case <-subResult.Done:
			if subResult.Failed() {
				failed++
			}
		}
	}
	if failed > 0 {
		r.Status = StatusFailed
		r.Error = fmt.Errorf("%d sub-checks failed", failed)
	} else {
		r.Status = StatusSuccess
	}
}

func (r *CheckResult) runCheckFn(ctx context.Context) {
	if r.Check.CheckFn == nil {
		r.Error = fmt.Errorf("no check function defined for %s", r.Name())
		r.Status = StatusFailed
		return
	}

	success, message, err := r.Check.CheckFn(ctx, r.CheckData)
	r.Message = message
	r.Error = err
	if success {
		r.Status = StatusSuccess
	} else {
		r.Status = StatusFailed
	}
}

func (r *CheckResult) Run(ctx context.Context) {
	go func() {
		defer close(r.Done)

		r.Status = StatusPending
		if !r.waitForDependencies(ctx) {
			return
		}

		r.Status = StatusRunning

		// A phase runs its children concurrently and aggregates them.
		if len(r.SubResults) > 0 {
			for _, subResult := range r.SubResults {
				subResult.Run(ctx)
			}
			r.waitForSubChecks(ctx)
			return
		}

		r.runCheckFn(ctx)
	}()
}

func NewCheckExecutor(checks []*Check) *CheckExecutor {
	results := make([]*CheckResult, 0, len(checks))
	for _, check := range checks {
		results = append(results, check.newResult())
	}

	nameMap := make(map[string]*CheckResult)
	for _, result := range results {
		result.fillNameMap(nameMap)
	}
	for _, result := range results {
		result.fillDependencies(nameMap)
	}

	return &CheckExecutor{Checks: checks, Results: results}
}

// Run starts all top level checks and blocks until they completed or the
// context got cancelled.
func (e *CheckExecutor) Run(ctx context.Context) []*CheckResult {
	for _, result := range e.Results {
		result.Run(ctx)
	}

	allDone := make(chan struct{})
	go func() {
		for _, result := range e.Results {
			<-result.Done
		}
		close(allDone)
	}()

	select {
	case <-ctx.Done():
	case <-allDone:
	}
	return e.Results
}

// Failed reports whether any check did not succeed.
func (e *CheckExecutor) Failed() bool {
	for _, result := range e.Results {
		if !result.Success() {
			return true
		}
	}
	return false
}

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))  // Green
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	grayStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240")) // Gray
)

func (r *CheckResult) StatusString(spinView string) string {
	var status string
	var statusStyle lipgloss.Style

	switch r.Status {
	case StatusPending:
		status = "⋯"
		statusStyle = grayStyle
	case StatusRunning:
		return spinView
	case StatusSkipped:
		status = "⊝"
		statusStyle = grayStyle
	case StatusSuccess:
		status = "✓"
		statusStyle = successStyle
	case StatusFailed:
		status = "✗"
		statusStyle = errorStyle
	}

	return statusStyle.Render(status)
}

func (r *CheckResult) FormatResult(prefix string, spinView string) string {
	status := r.StatusString(spinView)

	description := r.Check.Description
	if r.Error != nil || r.Status == StatusFailed {
		description = errorStyle.Render(description)
	}

	output := fmt.Sprintf("%s%s %s", prefix, status, description)
	if r.Error != nil {
		output += fmt.Sprintf(" - %s", errorStyle.Render(r.Error.Error()))
	} else if r.Message != "" {
		output += fmt.Sprintf(" - %s", grayStyle.Render(r.Message))
	}
	output += "\n"

	for _, subResult := range r.SubResults {
		output += subResult.Format(prefix+"  ", spinView)
	}

	return output
}

func (r *CheckResult) Format(prefix string, spinView string) string {
	if r.Check.CustomPrinter != nil {
		return r.Check.CustomPrinter(r, prefix, spinView)
	}
	return r.FormatResult(prefix, spinView)
}

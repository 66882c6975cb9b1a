package status

// cSpell: words lipgloss
// cSpell: disable
import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	log "github.com/sirupsen/logrus"
)

// cSpell: enable

// CheckModel renders a running CheckExecutor as a live terminal view.
type CheckModel struct {
	executor *CheckExecutor
	ctx      context.Context //nolint:containedctx // passed to the checks at Init time
	cancel   context.CancelFunc
	spinner  spinner.Model
}

func NewCheckModel(ctx context.Context, executor *CheckExecutor) CheckModel {
	newCtx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return CheckModel{
		executor: executor,
		ctx:      newCtx,
		cancel:   cancel,
		spinner:  s,
	}
}

func (m CheckModel) Init() tea.Cmd { //nolint:gocritic // Implements tea.Model
	go m.executor.Run(m.ctx)

	return tea.Batch(
		tea.ClearScreen,
		m.spinner.Tick,
	)
}

func (m CheckModel) Update( //nolint:gocritic // Implements tea.Model
	msg tea.Msg,
) (tea.Model, tea.Cmd) {
	switch msg.(type) {
	case tea.KeyMsg:
		log.Debug("Canceling checks")
		m.cancel()
		return m, tea.Quit
	default:
		allDone := true
		for _, result := range m.executor.Results {
			select {
			case <-result.Done:
				continue
			default:
				allDone = false
			}
		}
		if allDone {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m CheckModel) View() string { //nolint:gocritic // Implements tea.Model
	var output string
	for _, result := range m.executor.Results {
		output += result.Format("", m.spinner.View())
	}
	return output
}

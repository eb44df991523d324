package cli

import (
	"context"
	"cppmsplit/internal/core/ports"
	"cppmsplit/internal/data/history"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxTUIItems = 200

var (
	titleStyle = lipgloss.NewStyle().
			MarginLeft(2).
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true).
			Render

	docStyle = lipgloss.NewStyle().Margin(1, 2)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)
)

type item struct {
	title, desc string
	failed      bool
}

func (i item) Title() string       { return i.title }
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return i.title + i.desc }

type panel int

const (
	panelRecent panel = iota
	panelHistory
)

type model struct {
	list       list.Model
	svc        ports.TranslationService
	mode       panel
	recent     []item
	lastReport ports.TranslateReport
	lastUpdate time.Time
	batches    int
	historyErr string
}

type reportMsg struct {
	report ports.TranslateReport
}

type historyMsg struct {
	rows []history.Translation
	err  error
}

func initialModel(svc ports.TranslationService) model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Recent Translations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)

	return model{
		list:       l,
		svc:        svc,
		lastUpdate: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.mode == panelRecent {
				m.mode = panelHistory
				m.list.Title = "Translation History"
				return m, loadHistoryCmd(m.svc)
			}
			m.mode = panelRecent
			m.list.Title = "Recent Translations"
			m.list.SetItems(toListItems(m.recent))
			return m, nil
		}
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		m.list.SetSize(msg.Width-h, msg.Height-v-4)
	case reportMsg:
		m.lastReport = msg.report
		m.lastUpdate = time.Now()
		m.batches++
		m.recent = append(reportItems(msg.report), m.recent...)
		if len(m.recent) > maxTUIItems {
			m.recent = m.recent[:maxTUIItems]
		}
		if m.mode == panelRecent {
			m.list.SetItems(toListItems(m.recent))
		}
		return m, nil
	case historyMsg:
		if msg.err != nil {
			m.historyErr = msg.err.Error()
			m.list.SetItems(nil)
			return m, nil
		}
		m.historyErr = ""
		if m.mode == panelHistory {
			m.list.SetItems(toListItems(historyItems(msg.rows)))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m model) View() string {
	status := statusStyle.Render(fmt.Sprintf("Last update: %v | %d batches | tab: recent/history | q: quit",
		m.lastUpdate.Format("15:04:05"), m.batches))

	r := m.lastReport
	var summary string
	if r.Failed == 0 {
		summary = successStyle.Render(fmt.Sprintf("%d translated, %d cached", r.Translated, r.Cached))
	} else {
		summary = failStyle.Render(fmt.Sprintf("%d failed", r.Failed)) +
			fmt.Sprintf(" | %d translated, %d cached", r.Translated, r.Cached)
	}
	if r.Removed > 0 {
		summary += fmt.Sprintf(" | %d removed", r.Removed)
	}

	header := fmt.Sprintf("%s\n%s | %s\n", titleStyle("cppmsplit watch"), status, summary)
	if m.historyErr != "" {
		header += failStyle.Render("history: "+m.historyErr) + "\n"
	}
	return docStyle.Render(header + "\n" + m.list.View())
}

func reportItems(r ports.TranslateReport) []item {
	items := make([]item, 0, len(r.Units))
	for _, u := range r.Units {
		it := item{title: filepath.Base(u.UnitPath)}
		switch u.Status {
		case history.StatusFailed:
			it.failed = true
			it.title = "✗ " + it.title
			it.desc = fmt.Sprintf("[%s] %v", u.ErrorCode, u.Err)
		case history.StatusCached:
			it.title = "= " + it.title
			it.desc = "unchanged: " + filepath.Base(u.SourcePath)
		default:
			it.title = "✓ " + it.title
			it.desc = fmt.Sprintf("%s, %s (%d constructs, %s)",
				filepath.Base(u.HeaderPath), filepath.Base(u.SourcePath), u.Constructs, u.Duration.Round(time.Microsecond))
		}
		items = append(items, it)
	}
	return items
}

func historyItems(rows []history.Translation) []item {
	items := make([]item, 0, len(rows))
	for _, row := range rows {
		it := item{
			title: fmt.Sprintf("%s %s", row.Status, filepath.Base(row.UnitPath)),
			desc:  row.Timestamp.Local().Format("2006-01-02 15:04:05"),
		}
		if row.Status == history.StatusFailed {
			it.failed = true
			it.desc += " [" + row.ErrorCode + "] " + row.ErrorMessage
		}
		items = append(items, it)
	}
	return items
}

func toListItems(items []item) []list.Item {
	out := make([]list.Item, 0, len(items))
	for _, it := range items {
		out = append(out, it)
	}
	return out
}

func loadHistoryCmd(svc ports.TranslationService) tea.Cmd {
	return func() tea.Msg {
		if svc == nil {
			return historyMsg{err: fmt.Errorf("translation service unavailable")}
		}
		rows, err := svc.History(context.Background(), maxTUIItems)
		return historyMsg{rows: rows, err: err}
	}
}

// tuiProgram forwards batch reports into a bubbletea program.
type tuiProgram struct {
	program *tea.Program
}

func newTUIProgram(svc ports.TranslationService) *tuiProgram {
	return &tuiProgram{program: tea.NewProgram(initialModel(svc), tea.WithAltScreen())}
}

// Send never blocks; reports published before Run are delivered once the
// program starts reading messages.
func (t *tuiProgram) Send(r ports.TranslateReport) {
	go t.program.Send(reportMsg{report: r})
}

// Run blocks until the user quits or ctx is done.
func (t *tuiProgram) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		t.program.Quit()
	}()
	_, err := t.program.Run()
	return err
}

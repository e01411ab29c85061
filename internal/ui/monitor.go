package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// MonitorUpdate is a snapshot of emulator counters.
type MonitorUpdate struct {
	Event       string
	Sent        uint64
	Received    uint64
	Notices     uint64
	LastLatency time.Duration
	MeanLatency time.Duration
}

// MonitorUI shows live emulator counters until stopped or the user quits.
type MonitorUI struct {
	program *tea.Program
	model   *monitorModel
	updates chan MonitorUpdate
	exited  chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

type monitorModel struct {
	title     string
	spinner   spinner.Model
	updates   chan MonitorUpdate
	last      MonitorUpdate
	history   []string
	startTime time.Time
	quitting  bool
}

const monitorHistory = 5

func NewMonitorUI(title string) *MonitorUI {
	updates := make(chan MonitorUpdate, 100)
	model := newMonitorModel(title, updates)
	return &MonitorUI{
		program: tea.NewProgram(model),
		model:   model,
		updates: updates,
		exited:  make(chan struct{}),
	}
}

func newMonitorModel(title string, updates chan MonitorUpdate) *monitorModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &monitorModel{
		title:     title,
		spinner:   s,
		updates:   updates,
		startTime: time.Now(),
	}
}

// Start runs the program in its own goroutine.
func (ui *MonitorUI) Start() {
	ui.wg.Add(1)
	go func() {
		defer ui.wg.Done()
		defer close(ui.exited)
		if _, err := ui.program.Run(); err != nil {
			PrintError(fmt.Sprintf("UI error: %v", err))
		}
	}()
}

// Update never blocks; snapshots are dropped while the UI is behind.
func (ui *MonitorUI) Update(u MonitorUpdate) {
	select {
	case ui.updates <- u:
	default:
	}
}

// Exited is closed when the program ends, including when the user quits.
func (ui *MonitorUI) Exited() <-chan struct{} {
	return ui.exited
}

func (ui *MonitorUI) Stop() {
	ui.once.Do(func() {
		ui.program.Quit()
		ui.wg.Wait()
	})
}

func (m *monitorModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.listenForUpdates())
}

func (m *monitorModel) listenForUpdates() tea.Cmd {
	return func() tea.Msg {
		return <-m.updates
	}
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case MonitorUpdate:
		m.last = msg
		if msg.Event != "" {
			m.history = append(m.history, msg.Event)
			if len(m.history) > monitorHistory {
				m.history = m.history[len(m.history)-monitorHistory:]
			}
		}
		return m, m.listenForUpdates()
	}

	return m, nil
}

func (m *monitorModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(fmt.Sprintf("\n%s %s\n\n", m.spinner.View(), TitleStyle.Render(m.title)))
	b.WriteString(fmt.Sprintf("  Sent:      %s\n", BoldStyle.Render(fmt.Sprint(m.last.Sent))))
	b.WriteString(fmt.Sprintf("  Received:  %s\n", BoldStyle.Render(fmt.Sprint(m.last.Received))))
	b.WriteString(fmt.Sprintf("  Notices:   %s\n", BoldStyle.Render(fmt.Sprint(m.last.Notices))))
	b.WriteString(fmt.Sprintf("  Latency:   %s %s\n",
		formatLatency(m.last.LastLatency),
		MutedStyle.Render("(mean "+formatLatency(m.last.MeanLatency)+")")))
	b.WriteString(MutedStyle.Render(fmt.Sprintf("  Uptime:    %s", time.Since(m.startTime).Round(time.Second))))
	b.WriteString("\n\n")

	for _, line := range m.history {
		b.WriteString("  " + MutedStyle.Render(line) + "\n")
	}

	b.WriteString("\n" + MutedStyle.Render("Press q to stop"))

	return b.String()
}

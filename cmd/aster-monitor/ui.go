package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/asterworks/go-aster/pkg/telemetry"
)

const (
	headerHeight = 2
	legendHeight = 2
	footerHeight = 9 // diagnostics row + log box
	maxLogs      = 4
	borderSize   = 2

	statusPollEvery = 2 * time.Second

	// chartYRange covers the NAO/Pepper joint envelope in radians.
	chartYRange = 2.2
)

// palette assigns stable, distinct colors to joints in discovery order.
var palette = []string{"196", "208", "226", "46", "51", "201", "129", "39", "214", "118"}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type (
	jointMsg     telemetry.JointState
	stiffMsg     telemetry.Stiffness
	diagMsg      telemetry.Report
	logMsg       string
	statusMsg    driverStatus
	statusErrMsg struct{ err error }
	pollMsg      struct{}
)

type model struct {
	feed  *feed
	chart *streamlinechart.Model

	width  int
	height int

	status    driverStatus
	statusErr error
	stiffness telemetry.Stiffness
	report    telemetry.Report
	hasReport bool

	// jointOrder preserves discovery order for the legend; colors maps each
	// joint to its chart style.
	jointOrder []string
	colors     map[string]lipgloss.Style

	logs     []string
	quitting bool
}

func initialModel(f *feed) model {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-chartYRange, chartYRange),
	)
	return model{
		feed:   f,
		chart:  &chart,
		colors: make(map[string]lipgloss.Style),
	}
}

func (m *model) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// jointStyle returns the joint's color, assigning the next palette entry
// the first time a joint is seen.
func (m *model) jointStyle(name string) lipgloss.Style {
	if style, ok := m.colors[name]; ok {
		return style
	}
	color := palette[len(m.jointOrder)%len(palette)]
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
	m.colors[name] = style
	m.jointOrder = append(m.jointOrder, name)
	m.chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	return style
}

func (m *model) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func waitForJoints(f *feed) tea.Cmd {
	return func() tea.Msg { return jointMsg(<-f.joints) }
}

func waitForStiffness(f *feed) tea.Cmd {
	return func() tea.Msg { return stiffMsg(<-f.stiffs) }
}

func waitForDiagnostics(f *feed) tea.Cmd {
	return func() tea.Msg { return diagMsg(<-f.diags) }
}

func waitForLog(f *feed) tea.Cmd {
	return func() tea.Msg { return logMsg(<-f.logs) }
}

func schedulePoll() tea.Cmd {
	return tea.Tick(statusPollEvery, func(time.Time) tea.Msg { return pollMsg{} })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		waitForJoints(m.feed),
		waitForStiffness(m.feed),
		waitForDiagnostics(m.feed),
		waitForLog(m.feed),
		func() tea.Msg { return fetchStatus(m.feed.addr) },
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w, h := m.chartSize()
		m.chart.Resize(w, h)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case jointMsg:
		js := telemetry.JointState(msg)
		for i, name := range js.Names {
			if i >= len(js.Positions) {
				break
			}
			m.jointStyle(name)
			m.chart.PushDataSet(name, js.Positions[i])
		}
		m.chart.DrawAll()
		return m, waitForJoints(m.feed)

	case stiffMsg:
		m.stiffness = telemetry.Stiffness(msg)
		return m, waitForStiffness(m.feed)

	case diagMsg:
		m.report = telemetry.Report(msg)
		m.hasReport = true
		return m, waitForDiagnostics(m.feed)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.feed)

	case statusMsg:
		m.status = driverStatus(msg)
		m.statusErr = nil
		return m, schedulePoll()

	case statusErrMsg:
		m.statusErr = msg.err
		return m, schedulePoll()

	case pollMsg:
		return m, func() tea.Msg { return fetchStatus(m.feed.addr) }
	}

	return m, nil
}

func (m model) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("aster monitor"))
	sb.WriteString("  ")
	sb.WriteString(m.renderStatusLine())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	sb.WriteString(m.renderDiagnostics())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 40))

	logLines := statusStyle.Render("Press 'q' to quit")
	if len(m.logs) > 0 {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m model) renderStatusLine() string {
	if m.statusErr != nil {
		return errStyle.Render(fmt.Sprintf("driver unreachable: %v", m.statusErr))
	}

	conn := errStyle.Render("disconnected")
	if m.status.Connected {
		conn = okStyle.Render("connected")
	}

	rate := ""
	if m.status.Stats.MeanTick > 0 {
		rate = fmt.Sprintf("  %.1f Hz", 1.0/m.status.Stats.MeanTick)
	}

	return fmt.Sprintf("%s  %s%s  ticks %d  stiffness %s",
		m.status.Robot, conn, rate, m.status.Stats.Ticks, gauge(m.stiffnessValue()))
}

// stiffnessValue prefers the stream sample and falls back to the polled
// status before the first stiffness message arrives.
func (m model) stiffnessValue() float64 {
	if m.stiffness.Stamp.IsZero() {
		return m.status.Stiffness
	}
	return m.stiffness.Value
}

func (m model) renderLegend() string {
	if len(m.jointOrder) == 0 {
		return statusStyle.Render("waiting for joint telemetry...")
	}
	items := make([]string, 0, len(m.jointOrder))
	for _, name := range m.jointOrder {
		items = append(items, m.colors[name].Bold(true).Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

func (m model) renderDiagnostics() string {
	if !m.hasReport {
		return statusStyle.Render("no diagnostics yet")
	}

	level := okStyle.Render("OK")
	switch m.report.Level {
	case telemetry.LevelWarn:
		level = warnStyle.Render("WARN")
	case telemetry.LevelError:
		level = errStyle.Render("ERROR")
	}

	var notes []string
	for _, j := range m.report.Joints {
		if j.Level != telemetry.LevelOK {
			notes = append(notes, fmt.Sprintf("%s %.0f°C %s", j.Name, j.Temperature, j.Message))
		}
	}
	line := fmt.Sprintf("diag %s  battery %3.0f%%", level, m.report.Battery*100)
	if len(notes) > 0 {
		line += "  " + warnStyle.Render(strings.Join(notes, ", "))
	}
	return line
}

// gauge renders a five-segment stiffness bar.
func gauge(v float64) string {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*5 + 0.5)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", 5-filled) + fmt.Sprintf(" %.2f", v)
}

package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/inference-sim/hostsim/sim"
)

const (
	maxSpeed     = 16
	maxLogLines  = 500
	logHeight    = 8
	defaultWidth = 80
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	passStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

var playSettings = defaultSettings()

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Configure servers and watch levels run in a terminal dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("play needs an interactive terminal; use run for headless play")
		}
		st, err := loadSettings(configPath, cmd.Flags())
		if err != nil {
			return err
		}
		sess, err := newSession(st)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logrus.Warnf("closing outcome sinks: %v", err)
			}
		}()
		// The dashboard owns the screen; keep logrus quiet while it runs.
		logrus.SetLevel(logrus.ErrorLevel)
		_, err = tea.NewProgram(newPlayModel(sess), tea.WithAltScreen()).Run()
		return err
	},
}

type tickMsg time.Time

// playModel is the bubbletea model for the play dashboard. All simulator
// access happens inside Update, so the single-threaded engine is never
// touched concurrently.
type playModel struct {
	sess     *session
	servers  table.Model
	log      viewport.Model
	bar      progress.Model
	lines    []string
	width    int
	paused   bool
	speed    int
	message  string
	lastErr  error
	finished bool
}

func newPlayModel(sess *session) playModel {
	cols := []table.Column{
		{Title: "ID", Width: 4},
		{Title: "Mode", Width: 8},
		{Title: "CPU", Width: 4},
		{Title: "Queue", Width: 7},
		{Title: "Serving", Width: 9},
		{Title: "Timer", Width: 8},
		{Title: "Outputs", Width: 12},
	}
	m := playModel{
		sess:    sess,
		servers: table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(6)),
		log:     viewport.New(defaultWidth, logHeight),
		bar:     progress.New(progress.WithDefaultGradient()),
		width:   defaultWidth,
		speed:   1,
	}
	m.refreshServers()
	m.appendLog(fmt.Sprintf("Level %q loaded. Configure servers, then press space to start.", sess.level().Title))
	return m
}

func (m playModel) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m playModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.sess.settings.TickDuration(), func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m playModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.log.Width = msg.Width
		m.bar.Width = min(msg.Width-4, 60)
		m.refreshLog()
		return m, nil
	case tickMsg:
		if !m.paused && m.sess.sim.Phase() == sim.PhaseRunning {
			m.step()
		}
		return m, m.scheduleTick()
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.servers, cmd = m.servers.Update(msg)
	return m, cmd
}

func (m playModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.sess.sim
	switch msg.String() {
	case "ctrl+c", "esc":
		return m, tea.Quit
	case " ", "space":
		if s.Phase() == sim.PhasePlanning {
			s.Start()
			m.appendLog("Traffic incoming!")
		}
	case "p":
		m.paused = !m.paused
	case "+", "=":
		m.speed = min(m.speed*2, maxSpeed)
	case "-":
		m.speed = max(m.speed/2, 1)
	case "c":
		m.report(s.PurchaseCPUUpgrade(m.selected()), "CPU upgraded")
	case "k":
		m.report(s.PurchaseQueueUpgrade(m.selected()), "queue slot added")
	case "x":
		m.report(s.ResetUpgrades(m.selected()), "upgrades refunded")
	case "m":
		m.toggleMode()
	case "o":
		m.cycleOutput()
	case "r":
		m.sess.reloadLevel()
		m.message = ""
		m.appendLog("Level reloaded, servers kept.")
	case "R":
		m.report(m.sess.resetLevel(), "Level reset.")
		m.message = ""
	case "n":
		if res, ok := s.Results(); ok && res.Passed {
			more, err := m.sess.advance()
			switch {
			case err != nil:
				m.lastErr = err
			case !more:
				m.finished = true
				m.appendLog("Campaign complete!")
			default:
				m.message = ""
				m.appendLog(fmt.Sprintf("Level %q loaded.", m.sess.level().Title))
			}
		}
	default:
		var cmd tea.Cmd
		m.servers, cmd = m.servers.Update(msg)
		return m, cmd
	}
	m.refreshServers()
	return m, nil
}

// step runs speed ticks and logs the interesting outcomes.
func (m *playModel) step() {
	for i := 0; i < m.speed; i++ {
		out, err := m.sess.tick()
		if err != nil {
			m.lastErr = err
		}
		for _, o := range out {
			switch o.Kind {
			case sim.OutcomeDropped:
				m.appendLog(fmt.Sprintf("%6.1fs  request %d dropped at server %d (%s)", o.Clock.Seconds(), o.Request, o.Server, o.Reason))
			case sim.OutcomeGraded:
				m.message = m.sess.progression.RecordResult(*o.Results)
				m.appendLog(o.Results.String())
			}
		}
		if m.sess.sim.Phase() != sim.PhaseRunning {
			break
		}
	}
	m.refreshServers()
}

func (m *playModel) selected() sim.ServerID {
	ids := m.sess.sim.ServerIDs()
	if len(ids) == 0 {
		return sim.NoServer
	}
	c := m.servers.Cursor()
	if c < 0 || c >= len(ids) {
		c = 0
	}
	return ids[c]
}

func (m *playModel) toggleMode() {
	id := m.selected()
	snap, err := m.sess.sim.Server(id)
	if err != nil {
		m.lastErr = err
		return
	}
	mode := sim.ModeProxy
	if snap.Mode == sim.ModeProxy {
		mode = sim.ModeProcess
	}
	m.report(m.sess.sim.SetServerMode(id, mode), fmt.Sprintf("server %d is now %s", id, mode))
}

// cycleOutput adds the next server not yet wired as an output of the
// selected proxy, clearing the list once every other server is wired.
func (m *playModel) cycleOutput() {
	id := m.selected()
	snap, err := m.sess.sim.Server(id)
	if err != nil {
		m.lastErr = err
		return
	}
	if snap.Mode != sim.ModeProxy {
		m.appendLog(fmt.Sprintf("server %d is not a proxy", id))
		return
	}
	wired := make(map[sim.ServerID]bool, len(snap.Outputs))
	for _, o := range snap.Outputs {
		wired[o] = true
	}
	for _, cand := range m.sess.sim.ServerIDs() {
		if cand != id && !wired[cand] {
			outputs := append(snap.Outputs, cand)
			m.report(m.sess.sim.SetServerOutputs(id, outputs), fmt.Sprintf("server %d forwards to %v", id, outputs))
			return
		}
	}
	m.report(m.sess.sim.SetServerOutputs(id, nil), fmt.Sprintf("server %d outputs cleared", id))
}

func (m *playModel) report(err error, ok string) {
	if err != nil {
		m.lastErr = err
		m.appendLog("error: " + err.Error())
		return
	}
	m.lastErr = nil
	m.appendLog(ok)
}

func (m *playModel) appendLog(line string) {
	m.lines = append(m.lines, line)
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
	m.refreshLog()
}

func (m *playModel) refreshLog() {
	wrapped := make([]string, len(m.lines))
	for i, l := range m.lines {
		wrapped[i] = wordwrap.String(l, max(m.log.Width, 20))
	}
	m.log.SetContent(strings.Join(wrapped, "\n"))
	m.log.GotoBottom()
}

func (m *playModel) refreshServers() {
	snaps := m.sess.sim.Servers()
	rows := make([]table.Row, len(snaps))
	for i, sn := range snaps {
		serving := "-"
		if sn.Serving {
			serving = fmt.Sprintf("#%d", sn.Current)
		}
		outputs := "-"
		if len(sn.Outputs) > 0 {
			outputs = fmt.Sprint(sn.Outputs)
		}
		rows[i] = table.Row{
			fmt.Sprint(sn.ID),
			string(sn.Mode),
			fmt.Sprint(sn.ProcessingPower),
			fmt.Sprintf("%d/%d", len(sn.Queued), sn.QueueSize),
			serving,
			fmt.Sprintf("%.0f%%", sn.Timer.Fraction()*100),
			outputs,
		}
	}
	m.servers.SetRows(rows)
	m.servers.SetHeight(max(len(rows)+1, 2))
}

func (m playModel) View() string {
	s := m.sess.sim
	lvl := m.sess.level()
	idx, _ := m.sess.progression.Current()
	width := max(m.width, 20)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Level %d/%d: %s", idx+1, m.sess.progression.Len(), lvl.Title)))
	b.WriteString("\n")
	if s.Phase() == sim.PhasePlanning && lvl.IntroText != "" {
		b.WriteString(wordwrap.String(lvl.IntroText, width))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	stats := s.SnapshotStats()
	points := s.Points()
	b.WriteString(fmt.Sprintf("phase %-8s  clock %6.1fs  speed x%d  in flight %d  handled %d  dropped %d  points %d/%d\n",
		s.Phase(), s.Clock().Seconds(), m.speed, s.InFlight(), stats.HandledRequests, stats.DroppedRequests,
		points.Remaining(), points.Total))
	b.WriteString(m.bar.ViewAs(s.Progress()))
	b.WriteString("\n\n")
	b.WriteString(m.servers.View())
	b.WriteString("\n\n")

	if res, ok := s.Results(); ok {
		style := failStyle
		if res.Passed {
			style = passStyle
		}
		b.WriteString(style.Render(res.String()))
		b.WriteString("\n")
		if m.message != "" {
			b.WriteString(wordwrap.String(m.message, width))
			b.WriteString("\n")
		}
	}
	if m.finished {
		b.WriteString(passStyle.Render("All levels complete."))
		b.WriteString("\n")
	}
	b.WriteString(m.log.View())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(failStyle.Render(m.lastErr.Error()))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("space start · p pause · +/- speed · ↑/↓ select · c cpu · k queue · x refund · m mode · o outputs · r reload · R reset · n next · esc quit"))
	return b.String()
}

func init() {
	addSettingsFlags(playCmd.Flags(), &playSettings)
	rootCmd.AddCommand(playCmd)
}

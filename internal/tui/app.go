// Package tui is the terminal front end. It renders repository snapshots and
// routes every user action through the conversation controller; all state
// changes flow back in as typed messages on the bubbletea event loop.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"tripdesk/internal/api"
	"tripdesk/internal/app"
	"tripdesk/internal/chat"
	"tripdesk/internal/trip"
	"tripdesk/internal/utils"
)

const (
	sidebarWidth   = 30
	inputHeight    = 3
	healthInterval = 30 * time.Second
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	userStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	botStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Bold(true)
	planStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	suggestStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
	inputStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
)

type turnMsg struct{ turn chat.Turn }

type healthMsg struct{ up bool }

type tickMsg time.Time

type model struct {
	cfg    app.Config
	logger *utils.Logger
	ctrl   *chat.Controller
	repo   *trip.Repository

	width  int
	height int

	tripsList  list.Model
	transcript viewport.Model
	input      textarea.Model
	spinner    spinner.Model
	keys       keyMap
	help       help.Model

	showHelp   bool
	focusTrips bool
	notice     string
}

// Run wires the store, repository, backend client and controller, then hands
// control to the bubbletea program until exit.
func Run(cfg app.Config, logger *utils.Logger) error {
	store := trip.NewStore(cfg.DataDir, logger)
	repo := trip.NewRepository(store)
	client := api.NewClient(cfg.APIURL, logger)
	ctrl := chat.NewController(repo, client, cfg.UserID, logger)

	input := textarea.New()
	input.Placeholder = "อยากไปเที่ยวที่ไหนคะ..."
	input.Prompt = ""
	input.ShowLineNumbers = false
	input.SetHeight(1)
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = dimStyle

	tripsList := newTripList()
	transcript := viewport.New(0, 0)

	m := model{
		cfg:        cfg,
		logger:     logger,
		ctrl:       ctrl,
		repo:       repo,
		tripsList:  tripsList,
		transcript: transcript,
		input:      input,
		spinner:    spin,
		keys:       defaultKeyMap,
		help:       help.New(),
	}
	m.refreshTrips()
	m.refreshTranscript()

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newTripList() list.Model {
	delegate := list.NewDefaultDelegate()
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	return l
}

func (m model) Init() tea.Cmd {
	return tea.Batch(healthCmd(m.ctrl), tickCmd(), m.spinner.Tick, textarea.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshTranscript()
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Typing() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case turnMsg:
		m.refreshTrips()
		m.refreshTranscript()
		if msg.turn.Err != nil && !m.ctrl.Reachable() {
			m.notice = "เชื่อมต่อไม่ได้ — ตรวจสอบเครือข่ายแล้วลองใหม่"
		}
		return m, nil

	case healthMsg:
		if msg.up {
			m.notice = ""
		} else {
			m.notice = "แบ็กเอนด์ไม่ตอบสนอง"
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(healthCmd(m.ctrl), tickCmd())

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateFocused(msg)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return m, nil

	case key.Matches(msg, m.keys.Focus):
		m.focusTrips = !m.focusTrips
		if m.focusTrips {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		return m, nil

	case key.Matches(msg, m.keys.Cancel):
		m.ctrl.CancelEdit()
		m.input.SetValue("")
		m.notice = ""
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.ctrl.Stop()
		return m, nil

	case key.Matches(msg, m.keys.NewTrip):
		m.ctrl.NewTrip()
		m.refreshTrips()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.DeleteTrip):
		if err := m.ctrl.DeleteTrip(m.repo.ActiveID()); err != nil {
			m.notice = err.Error()
		}
		m.refreshTrips()
		m.refreshTranscript()
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m.startRegenerate()

	case key.Matches(msg, m.keys.Edit):
		m.startEdit()
		return m, nil

	case key.Matches(msg, m.keys.Booking):
		active := m.repo.ActiveID()
		return m, tea.Batch(m.spinner.Tick, bookingCmd(m.ctrl, active))

	case key.Matches(msg, m.keys.Send) && !m.focusTrips:
		return m.startSend()
	}

	if n, ok := choiceKey(msg); ok {
		return m.selectChoice(n)
	}

	if m.focusTrips && msg.String() == "enter" {
		if item, ok := m.tripsList.SelectedItem().(tripItem); ok {
			if err := m.repo.SetActive(item.data.ID); err == nil {
				m.refreshTranscript()
			}
		}
		return m, nil
	}

	return m.updateFocused(msg)
}

func (m model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.focusTrips {
		m.tripsList, cmd = m.tripsList.Update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) startSend() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	active := m.repo.ActiveID()
	p, err := m.ctrl.StartSend(active, text)
	if err != nil {
		m.noticeFor(err)
		return m, nil
	}
	m.input.SetValue("")
	m.notice = ""
	m.refreshTranscript()
	return m, tea.Batch(m.spinner.Tick, finishCmd(m.ctrl, p))
}

func (m model) startRegenerate() (tea.Model, tea.Cmd) {
	active := m.repo.Active()
	last, ok := lastUserMessage(active)
	if !ok {
		return m, nil
	}
	p, err := m.ctrl.StartRegenerate(active.ID, last.ID, last.Text)
	if err != nil {
		m.noticeFor(err)
		return m, nil
	}
	if p == nil {
		// Cooldown window: silently ignored.
		return m, nil
	}
	m.refreshTranscript()
	return m, tea.Batch(m.spinner.Tick, finishCmd(m.ctrl, p))
}

func (m *model) startEdit() {
	active := m.repo.Active()
	last, ok := lastUserMessage(active)
	if !ok {
		return
	}
	m.ctrl.StartEdit(last.ID)
	m.input.SetValue(last.Text)
	m.input.CursorEnd()
	m.notice = "กำลังแก้ไขข้อความ — enter เพื่อส่งใหม่, esc เพื่อยกเลิก"
}

func (m model) selectChoice(n int) (tea.Model, tea.Cmd) {
	active := m.repo.Active()
	choiceID, ok := resolveChoice(active, n)
	if !ok {
		return m, nil
	}
	return m, tea.Batch(m.spinner.Tick, selectChoiceCmd(m.ctrl, active.ID, choiceID))
}

func (m *model) noticeFor(err error) {
	switch {
	case err == nil:
	case err == chat.ErrOffline:
		m.notice = "ยังเชื่อมต่อไม่ได้ — ส่งข้อความไม่สำเร็จ"
	case err == chat.ErrEmptyMessage:
	default:
		m.notice = err.Error()
	}
}

func (m *model) layout() {
	bodyHeight := m.height - 2 - inputHeight - 3
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	m.tripsList.SetSize(sidebarWidth, bodyHeight)
	m.transcript.Width = m.transcriptWidth()
	m.transcript.Height = bodyHeight
	m.input.SetWidth(m.width - 4)
}

func (m model) transcriptWidth() int {
	w := m.width - sidebarWidth - 3
	if w < 20 {
		w = 20
	}
	return w
}

func (m *model) refreshTrips() {
	trips := m.repo.List()
	m.tripsList.SetItems(buildTripItems(trips))
}

func (m *model) refreshTranscript() {
	active := m.repo.Active()
	m.transcript.SetContent(renderTranscript(active, m.transcriptWidth()))
	m.transcript.GotoBottom()
}

func (m model) View() string {
	header := headerStyle.Render("tripdesk") + dimStyle.Render("  ·  "+m.repo.Active().Title) + "  " + m.connBadge()

	sidebar := m.tripsList.View()
	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, " ", m.transcript.View())

	lines := []string{header, body, m.planLine(), m.suggestLine(), m.inputLine()}
	if m.notice != "" {
		lines = append(lines, errStyle.Render(m.notice))
	}
	if m.showHelp {
		lines = append(lines, m.help.FullHelpView(m.keys.FullHelp()))
	} else {
		lines = append(lines, m.help.ShortHelpView(m.keys.ShortHelp()))
	}
	return strings.Join(lines, "\n")
}

func (m model) connBadge() string {
	if m.ctrl.Typing() {
		return m.spinner.View() + dimStyle.Render(" กำลังพิมพ์...")
	}
	if !m.ctrl.Reachable() {
		return errStyle.Render("● offline")
	}
	return dimStyle.Render("● online")
}

func (m model) planLine() string {
	active := m.repo.Active()
	view := chat.EffectivePlan(active.Messages, m.ctrl.Override())
	if view == nil || view.Plan == nil {
		return dimStyle.Render("ยังไม่มีแผนที่เลือก")
	}
	summary := view.Plan.Summary
	if summary == "" {
		summary = view.Plan.ID
	}
	line := "แผนปัจจุบัน: " + summary
	if view.Plan.TotalPrice > 0 {
		line += fmt.Sprintf("  (%.0f %s)", view.Plan.TotalPrice, currencyOr(view.Plan.Currency))
	}
	if view.Slots != nil && view.Slots.Destination != "" {
		line += "  → " + view.Slots.Destination
	}
	return planStyle.Render(ansi.Truncate(line, m.width, "…"))
}

func (m model) suggestLine() string {
	active := m.repo.Active()
	if len(active.Messages) == 0 {
		return ""
	}
	last := active.Messages[len(active.Messages)-1]
	if last.Type != trip.MessageBot || len(last.Suggestions) == 0 {
		return ""
	}
	return suggestStyle.Render(ansi.Truncate("ลองถาม: "+strings.Join(last.Suggestions, " · "), m.width, "…"))
}

func (m model) inputLine() string {
	return inputStyle.Width(m.width - 2).Render(m.input.View())
}

// renderTranscript lays out one trip's conversation for the viewport.
func renderTranscript(t trip.Trip, width int) string {
	var b strings.Builder
	for _, msg := range t.Messages {
		var prefix string
		text := msg.Text
		if msg.Type == trip.MessageUser {
			prefix = userStyle.Render("คุณ ▸ ")
		} else {
			prefix = botStyle.Render("บอท ▸ ")
			text = chat.DisplayText(text)
		}
		b.WriteString(prefix)
		b.WriteString(ansi.Wrap(text, width-7, ""))
		b.WriteString("\n")
		for i, choice := range msg.PlanChoices {
			label := choice.Label
			if label == "" {
				label = choice.Summary
			}
			b.WriteString(dimStyle.Render(fmt.Sprintf("   [alt+%d] %s", i+1, label)))
			b.WriteString("\n")
		}
		if len(msg.SearchResults) > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("   ผลการค้นหา %d รายการ", len(msg.SearchResults))))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// choiceKey maps alt+1..alt+9 to the nth offered plan choice.
func choiceKey(msg tea.KeyMsg) (int, bool) {
	s := msg.String()
	if !strings.HasPrefix(s, "alt+") || len(s) != 5 {
		return 0, false
	}
	d := s[4]
	if d < '1' || d > '9' {
		return 0, false
	}
	return int(d - '0'), true
}

// resolveChoice maps the nth choice of the latest bot message that offered
// any to its choice id.
func resolveChoice(t trip.Trip, n int) (string, bool) {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		msg := t.Messages[i]
		if msg.Type != trip.MessageBot || len(msg.PlanChoices) == 0 {
			continue
		}
		if n < 1 || n > len(msg.PlanChoices) {
			return "", false
		}
		choice := msg.PlanChoices[n-1]
		if choice.ID != "" {
			return choice.ID, true
		}
		return fmt.Sprint(n), true
	}
	return "", false
}

func lastUserMessage(t trip.Trip) (trip.Message, bool) {
	for i := len(t.Messages) - 1; i >= 0; i-- {
		if t.Messages[i].Type == trip.MessageUser {
			return t.Messages[i], true
		}
	}
	return trip.Message{}, false
}

func currencyOr(c string) string {
	if c == "" {
		return "THB"
	}
	return c
}

func finishCmd(ctrl *chat.Controller, p *chat.Pending) tea.Cmd {
	return func() tea.Msg {
		return turnMsg{turn: ctrl.Finish(p)}
	}
}

func selectChoiceCmd(ctrl *chat.Controller, tripID, digit string) tea.Cmd {
	return func() tea.Msg {
		return turnMsg{turn: ctrl.SelectPlanChoice(tripID, digit)}
	}
}

func bookingCmd(ctrl *chat.Controller, tripID string) tea.Cmd {
	return func() tea.Msg {
		return turnMsg{turn: ctrl.ConfirmBooking(tripID)}
	}
}

func healthCmd(ctrl *chat.Controller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return healthMsg{up: ctrl.CheckHealth(ctx)}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(healthInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Package shell is the interactive terminal front end: login view,
// confidentiality notice and the paged command center with the copilot chat.
package shell

import (
	"context"
	"errors"
	"strings"

	"opscenter/cmd/opscenter/ui"
	"opscenter/internal/app"
	"opscenter/internal/auth"
	"opscenter/internal/copilot"
	"opscenter/internal/dashboard"
	"opscenter/internal/logging"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const chatPanelHeight = 12

var defaultQuote = dashboard.QuoteInput{ListPrice: 100000, DiscountPct: 15, Cost: 40000}

// inputPurpose says what the text input is collecting.
type inputPurpose int

const (
	inputNone inputPurpose = iota
	inputChat
	inputAnalysis
)

// Options tune the model; zero values are fine.
type Options struct {
	// GlamourStyle overrides the markdown style ("dark", "light", "notty").
	GlamourStyle string
}

// Model is the bubbletea model for the whole shell.
type Model struct {
	app    *app.Context
	ctx    context.Context
	styles ui.Styles

	width  int
	height int

	snap        auth.Snapshot
	updates     <-chan auth.Snapshot
	unsubscribe func()
	task        *auth.LoginTask

	spinner  spinner.Model
	viewport viewport.Model
	style    string
	renderer *glamour.TermRenderer

	// Per-user workspace, cleared on sign-out. epoch tags async results so
	// replies for a signed-out user are dropped.
	workCtx    context.Context
	workCancel context.CancelFunc
	epoch      int

	page            int
	plan            *dashboard.TerritoryPlan
	quote           dashboard.QuoteInput
	comp            dashboard.CompPlan
	briefing        string
	analysis        string
	loadingInsights bool
	opportunities   []dashboard.Opportunity
	scanning        bool

	chat       *copilot.Chat
	chatBusy   bool
	chatDraft  string
	chatStream *chatStream
	input      textinput.Model
	purpose    inputPurpose

	status string
}

// New builds the model. The caller must eventually call Close.
func New(ctx context.Context, a *app.Context, opts Options) Model {
	styles := ui.NewStyles(ui.ThemeFor(a.Config.UI.Theme))

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	in := textinput.New()
	in.Prompt = "› "
	in.CharLimit = 2000

	style := opts.GlamourStyle
	if style == "" {
		style = "light"
		if styles.Theme.IsDark {
			style = "dark"
		}
	}

	updates, unsubscribe := a.Gate.Subscribe()
	m := Model{
		app:         a,
		ctx:         ctx,
		styles:      styles,
		width:       100,
		height:      30,
		snap:        a.Gate.Snapshot(),
		updates:     updates,
		unsubscribe: unsubscribe,
		spinner:     sp,
		viewport:    viewport.New(100, 24),
		style:       style,
		plan:        dashboard.SamplePlan(),
		quote:       defaultQuote,
		comp:        dashboard.DefaultCompPlan(),
		input:       in,
	}
	m.workCtx, m.workCancel = context.WithCancel(ctx)
	if a.Copilot != nil {
		m.chat = a.Copilot.NewChat()
	}
	m.renderer = m.newRenderer()
	m.refreshPage(true)
	return m
}

// Close releases the gate subscription and stops in-flight requests.
func (m Model) Close() {
	if m.workCancel != nil {
		m.workCancel()
	}
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func (m Model) newRenderer() *glamour.TermRenderer {
	wrap := m.width - 6
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.style),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		logging.UIDebug("markdown renderer unavailable: %v", err)
		return nil
	}
	return r
}

func (m Model) markdown(md string) string {
	if m.renderer == nil {
		return md
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// Messages

type snapshotMsg auth.Snapshot

type subscriptionClosedMsg struct{}

type initializedMsg struct{ state auth.State }

type loginResultMsg struct{ err error }

type briefingMsg struct {
	epoch int
	text  string
	err   error
}

type analysisMsg struct {
	epoch int
	text  string
	err   error
}

type scanResultMsg struct {
	epoch         int
	opportunities []dashboard.Opportunity
	err           error
}

type chatChunkMsg struct {
	stream *chatStream
	text   string
}

type chatDoneMsg struct {
	stream *chatStream
	err    error
}

type chatStream struct {
	chunks chan string
	err    chan error
	cancel context.CancelFunc
}

// Commands

func waitForSnapshot(updates <-chan auth.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

func initialize(ctx context.Context, g *auth.Gate) tea.Cmd {
	return func() tea.Msg {
		return initializedMsg{state: g.Initialize(ctx)}
	}
}

func waitLogin(task *auth.LoginTask) tea.Cmd {
	return func() tea.Msg {
		_, err := task.Wait(context.Background())
		return loginResultMsg{err: err}
	}
}

func loadBriefing(ctx context.Context, epoch int, cp *copilot.Copilot) tea.Cmd {
	return func() tea.Msg {
		b, err := cp.Briefing(ctx)
		if b == nil {
			return briefingMsg{epoch: epoch, err: err}
		}
		var sb strings.Builder
		sb.WriteString("## Executive summary\n\n" + b.Summary + "\n\n## Regulatory news\n\n")
		if b.News != nil {
			sb.WriteString(b.News.Text + "\n")
			if len(b.News.Sources) > 0 {
				sb.WriteString("\nSources:\n\n")
				for _, s := range b.News.Sources {
					sb.WriteString("- [" + s.Title + "](" + s.URI + ")\n")
				}
			}
		}
		return briefingMsg{epoch: epoch, text: sb.String(), err: err}
	}
}

func runAnalysis(ctx context.Context, epoch int, cp *copilot.Copilot, query string) tea.Cmd {
	return func() tea.Msg {
		text, err := cp.StrategicAnalysis(ctx, query)
		return analysisMsg{epoch: epoch, text: text, err: err}
	}
}

func runScan(ctx context.Context, epoch int, s *dashboard.Scanner) tea.Cmd {
	return func() tea.Msg {
		opps, err := s.Scan(ctx)
		return scanResultMsg{epoch: epoch, opportunities: opps, err: err}
	}
}

func startChat(ctx context.Context, chat *copilot.Chat, text string) *chatStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chatStream{chunks: make(chan string, 16), err: make(chan error, 1), cancel: cancel}
	go func() {
		defer cancel()
		_, err := chat.Send(ctx, text, func(partial string) {
			select {
			case s.chunks <- partial:
			case <-ctx.Done():
			}
		})
		close(s.chunks)
		s.err <- err
	}()
	return s
}

func waitChat(s *chatStream) tea.Cmd {
	return func() tea.Msg {
		if chunk, ok := <-s.chunks; ok {
			return chatChunkMsg{stream: s, text: chunk}
		}
		return chatDoneMsg{stream: s, err: <-s.err}
	}
}

// Init starts the startup lookup and the snapshot subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		waitForSnapshot(m.updates),
		initialize(m.ctx, m.app.Gate),
	)
}

func (m Model) inShell() bool {
	return m.snap.State == auth.StateAuthenticated && m.app.Consent.Accepted()
}

func (m Model) busy() bool {
	return m.snap.State.Loading() || m.scanning || m.chatBusy || m.loadingInsights
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case snapshotMsg:
		prev := m.snap.State
		m.setSnapshot(auth.Snapshot(msg))
		if prev != m.snap.State {
			logging.UIDebug("gate %s -> %s", prev, m.snap.State)
			m.refreshPage(false)
		}
		return m, waitForSnapshot(m.updates)

	case subscriptionClosedMsg:
		return m, nil

	case initializedMsg:
		m.setSnapshot(m.app.Gate.Snapshot())
		m.refreshPage(false)
		return m, nil

	case loginResultMsg:
		m.task = nil
		m.setSnapshot(m.app.Gate.Snapshot())
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, auth.ErrLoginCancelled):
			m.status = "Sign-in cancelled."
		default:
			m.status = ""
		}
		m.refreshPage(false)
		return m, nil

	case briefingMsg:
		if msg.epoch != m.epoch {
			return m, nil
		}
		m.loadingInsights = false
		m.briefing = msg.text
		if msg.text == "" {
			m.briefing = copilot.FallbackSummary
		}
		if msg.err != nil {
			m.status = "Some insights could not be generated."
		}
		m.refreshPage(false)
		return m, nil

	case analysisMsg:
		if msg.epoch != m.epoch {
			return m, nil
		}
		m.loadingInsights = false
		m.analysis = msg.text
		if msg.err != nil {
			m.analysis = copilot.FallbackAnalysis
		}
		m.refreshPage(false)
		return m, nil

	case scanResultMsg:
		if msg.epoch != m.epoch {
			return m, nil
		}
		m.scanning = false
		if msg.err != nil {
			m.status = "Scan interrupted."
		} else {
			m.opportunities = msg.opportunities
		}
		m.refreshPage(false)
		return m, nil

	case chatChunkMsg:
		if msg.stream != m.chatStream {
			return m, nil
		}
		m.chatDraft = msg.text
		return m, waitChat(m.chatStream)

	case chatDoneMsg:
		if msg.stream != m.chatStream {
			return m, nil
		}
		m.chatBusy = false
		m.chatDraft = ""
		m.chatStream = nil
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	if m.inShell() {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		if m.task != nil {
			m.task.Cancel()
		}
		return m, tea.Quit
	}

	switch {
	case m.snap.State == auth.StateInitializing:
		return m, nil

	case m.snap.State == auth.StateUnauthenticated:
		switch key {
		case "enter":
			m.status = ""
			m.task = m.app.Gate.Login(m.ctx)
			m.setSnapshot(m.app.Gate.Snapshot())
			return m, tea.Batch(waitLogin(m.task), m.spinner.Tick)
		case "q":
			return m, tea.Quit
		}
		return m, nil

	case m.snap.State == auth.StateAuthenticating:
		if key == "esc" && m.task != nil {
			m.task.Cancel()
		}
		return m, nil

	case !m.app.Consent.Accepted():
		switch key {
		case "enter", "y":
			if err := m.app.Consent.Accept(); err != nil {
				m.status = err.Error()
				return m, nil
			}
			m.refreshPage(true)
		case "x", "esc":
			m.app.SignOut()
			m.setSnapshot(m.app.Gate.Snapshot())
		}
		return m, nil
	}

	if m.purpose != inputNone {
		return m.handleInputKey(msg)
	}
	return m.handleShellKey(msg)
}

func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.purpose = inputNone
		m.input.Blur()
		m.resize()
		return m, nil
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		if m.purpose == inputAnalysis {
			m.purpose = inputNone
			m.input.Blur()
			m.resize()
			m.loadingInsights = true
			return m, tea.Batch(runAnalysis(m.workCtx, m.epoch, m.app.Copilot, text), m.spinner.Tick)
		}
		if m.chatBusy {
			return m, nil
		}
		m.chatBusy = true
		m.chatStream = startChat(m.workCtx, m.chat, text)
		return m, tea.Batch(waitChat(m.chatStream), m.spinner.Tick)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleShellKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	page := dashboard.Pages[m.page]
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab", "right", "l":
		m.page = (m.page + 1) % len(dashboard.Pages)
		m.status = ""
		m.refreshPage(true)
		return m, nil
	case "shift+tab", "left", "h":
		m.page = (m.page - 1 + len(dashboard.Pages)) % len(dashboard.Pages)
		m.status = ""
		m.refreshPage(true)
		return m, nil
	case "x":
		m.app.SignOut()
		m.setSnapshot(m.app.Gate.Snapshot())
		return m, nil
	case "c":
		if m.chat == nil {
			m.status = "Copilot is disabled. Set GEMINI_API_KEY and OPSCENTER_ENABLE_AI=1."
			return m, nil
		}
		m.purpose = inputChat
		m.input.Placeholder = "Ask the WK Ops Copilot..."
		m.resize()
		cmd := m.input.Focus()
		return m, cmd
	}

	switch page.Path {
	case "/insights":
		if m.app.Copilot == nil || m.loadingInsights {
			break
		}
		switch msg.String() {
		case "r":
			m.loadingInsights = true
			return m, tea.Batch(loadBriefing(m.workCtx, m.epoch, m.app.Copilot), m.spinner.Tick)
		case "a":
			m.purpose = inputAnalysis
			m.input.Placeholder = "Strategic question for deep analysis..."
			m.resize()
			cmd := m.input.Focus()
			return m, cmd
		}
	case "/workflow-automation":
		if msg.String() == "s" && !m.scanning {
			m.scanning = true
			m.opportunities = nil
			m.refreshPage(false)
			return m, tea.Batch(runScan(m.workCtx, m.epoch, m.app.Scanner), m.spinner.Tick)
		}
	case "/performance":
		switch msg.String() {
		case "+", "=":
			m.comp = m.comp.AdjustQuota(1)
		case "-":
			m.comp = m.comp.AdjustQuota(-1)
		case "]":
			m.comp = m.comp.AdjustWinRate(1)
		case "[":
			m.comp = m.comp.AdjustWinRate(-1)
		}
		m.refreshPage(false)
		return m, nil
	case "/deal-desk":
		switch msg.String() {
		case "+", "=":
			m.quote.DiscountPct = min(m.quote.DiscountPct+1, 50)
		case "-":
			m.quote.DiscountPct = max(m.quote.DiscountPct-1, 0)
		}
		m.refreshPage(false)
		return m, nil
	case "/territory-manager":
		switch msg.String() {
		case "m":
			if len(m.plan.Source) > 0 {
				_ = m.plan.MoveToTarget(m.plan.Source[0].ID)
			}
		case "n":
			if len(m.plan.Target) > 0 {
				_ = m.plan.MoveToSource(m.plan.Target[len(m.plan.Target)-1].ID)
			}
		}
		m.refreshPage(false)
		return m, nil
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// setSnapshot adopts a gate snapshot. When the session ends, everything the
// signed-out user produced is dropped.
func (m *Model) setSnapshot(s auth.Snapshot) {
	signedOut := m.snap.Session != nil && s.Session == nil
	m.snap = s
	if signedOut {
		m.resetWorkspace()
	}
}

// resetWorkspace cancels in-flight requests and restores every per-user
// field to its initial value.
func (m *Model) resetWorkspace() {
	m.workCancel()
	m.workCtx, m.workCancel = context.WithCancel(m.ctx)
	m.epoch++

	if m.chatStream != nil {
		m.chatStream.cancel()
		m.chatStream = nil
	}
	m.chat = nil
	if m.app.Copilot != nil {
		m.chat = m.app.Copilot.NewChat()
	}
	m.chatBusy = false
	m.chatDraft = ""
	m.purpose = inputNone
	m.input.Reset()
	m.input.Blur()

	m.page = 0
	m.plan = dashboard.SamplePlan()
	m.quote = defaultQuote
	m.comp = dashboard.DefaultCompPlan()
	m.briefing = ""
	m.analysis = ""
	m.loadingInsights = false
	m.opportunities = nil
	m.scanning = false

	m.app.Consent.Reset()
	m.resize()
	m.viewport.GotoTop()
	logging.UI("workspace cleared after sign-out")
}

// resize fits the viewport between the header rows, the footer and the
// chat panel.
func (m *Model) resize() {
	h := m.height - 4
	if m.purpose != inputNone {
		h -= chatPanelHeight
	}
	if h < 3 {
		h = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
	m.input.Width = m.width - 6
	m.renderer = m.newRenderer()
	m.refreshPage(false)
}

func (m *Model) refreshPage(top bool) {
	in := pageInputs{
		data:          m.app.Data,
		plan:          m.plan,
		quote:         m.quote,
		comp:          m.comp,
		briefing:      m.briefing,
		analysis:      m.analysis,
		opportunities: m.opportunities,
		scanning:      m.scanning,
		aiEnabled:     m.app.Copilot != nil,
	}
	if m.snap.Session != nil {
		in.userName = m.snap.Session.DisplayName()
	}
	m.viewport.SetContent(m.markdown(pageMarkdown(dashboard.Pages[m.page], in)))
	if top {
		m.viewport.GotoTop()
	}
}

// Run drives the shell until the user quits.
func Run(ctx context.Context, a *app.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := New(ctx, a, Options{})
	defer m.Close()

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

package shell

import (
	"context"
	"iter"
	"testing"
	"time"

	"opscenter/internal/app"
	"opscenter/internal/auth"
	"opscenter/internal/config"
	"opscenter/internal/copilot"
	"opscenter/internal/dashboard"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestApp(t *testing.T, provider auth.IdentityProvider, clock clockwork.Clock) *app.Context {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Auth.InitDelay = "0s"
	cfg.Auth.LoginLatency = "0s"
	cfg.Storage.Backend = config.BackendMemory
	cfg.UI.Theme = "light"

	a, err := app.New(context.Background(), app.Options{
		Workspace: t.TempDir(),
		Config:    cfg,
		Provider:  provider,
		Clock:     clock,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func newTestModel(t *testing.T, a *app.Context) Model {
	t.Helper()
	m := New(context.Background(), a, Options{GlamourStyle: "notty"})
	t.Cleanup(m.Close)
	m, _ = update(m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

// collect runs cmd (and any batched commands) in the background and
// forwards every resulting message.
func collect(cmd tea.Cmd, out chan<- tea.Msg) {
	if cmd == nil {
		return
	}
	go func() {
		msg := cmd()
		if batch, ok := msg.(tea.BatchMsg); ok {
			for _, c := range batch {
				collect(c, out)
			}
			return
		}
		out <- msg
	}()
}

// await returns the first message of type T produced by cmd.
func await[T any](t *testing.T, cmd tea.Cmd) T {
	t.Helper()
	out := make(chan tea.Msg, 32)
	collect(cmd, out)
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg := <-out:
			if v, ok := msg.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("no %T produced", zero)
			return zero
		}
	}
}

// signIn drives the model from startup to the application shell.
func signIn(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(m, await[initializedMsg](t, m.Init()))

	m, cmd := update(m, keyEnter)
	res := await[loginResultMsg](t, cmd)
	require.NoError(t, res.err)
	m, _ = update(m, res)

	m, _ = update(m, keyEnter)
	return m
}

func TestStartupShowsLoadingThenLogin(t *testing.T) {
	m := newTestModel(t, newTestApp(t, nil, nil))
	assert.Contains(t, m.View(), "Restoring session")

	m, _ = update(m, await[initializedMsg](t, m.Init()))
	assert.Contains(t, m.View(), "Sign in with Wolters Kluwer SSO")
	assert.Contains(t, m.View(), "helpdesk@wolterskluwer.com")
}

func TestLoginNoticeAndShell(t *testing.T) {
	a := newTestApp(t, nil, nil)
	m := newTestModel(t, a)
	m, _ = update(m, await[initializedMsg](t, m.Init()))

	m, cmd := update(m, keyEnter)
	res := await[loginResultMsg](t, cmd)
	require.NoError(t, res.err)
	m, _ = update(m, res)

	require.True(t, a.Gate.IsAuthenticated())
	assert.Contains(t, m.View(), "Confidential System")
	assert.False(t, a.Consent.Accepted())

	m, _ = update(m, keyEnter)
	assert.True(t, a.Consent.Accepted())
	view := m.View()
	assert.Contains(t, view, "Alex Rivera")
	assert.Contains(t, view, "ADMIN")
	assert.Contains(t, view, "Command center overview")

	m, _ = update(m, keyTab)
	assert.Contains(t, m.View(), "Funnel health")

	m, _ = update(m, runes("x"))
	assert.False(t, a.Gate.IsAuthenticated())
	assert.False(t, a.Consent.Accepted())
	assert.Contains(t, m.View(), "Sign in with Wolters Kluwer SSO")
}

func TestNoticeCanBeDeclined(t *testing.T) {
	a := newTestApp(t, nil, nil)
	m := newTestModel(t, a)
	m, _ = update(m, await[initializedMsg](t, m.Init()))
	m, cmd := update(m, keyEnter)
	m, _ = update(m, await[loginResultMsg](t, cmd))

	m, _ = update(m, runes("x"))
	assert.False(t, a.Gate.IsAuthenticated())
	assert.Contains(t, m.View(), "Sign in")
}

func TestLoginCancelFromView(t *testing.T) {
	clock := clockwork.NewFakeClock()
	provider := auth.NewMockProvider(clock, time.Minute, auth.Identity{Subject: "WK-1"})
	a := newTestApp(t, provider, clock)
	m := newTestModel(t, a)
	m, _ = update(m, await[initializedMsg](t, m.Init()))

	m, cmd := update(m, keyEnter)
	assert.Contains(t, m.View(), "Waiting for the identity provider")

	m, _ = update(m, keyEsc)
	res := await[loginResultMsg](t, cmd)
	assert.ErrorIs(t, res.err, auth.ErrLoginCancelled)

	m, _ = update(m, res)
	assert.Equal(t, auth.StateUnauthenticated, a.Gate.State())
	assert.Contains(t, m.View(), "Sign-in cancelled.")
}

func TestLoginFailureIsShown(t *testing.T) {
	a := newTestApp(t, failingProvider{}, nil)
	m := newTestModel(t, a)
	m, _ = update(m, await[initializedMsg](t, m.Init()))

	m, cmd := update(m, keyEnter)
	m, _ = update(m, await[loginResultMsg](t, cmd))
	assert.Contains(t, m.View(), "Sign-in was rejected: account disabled")
}

type failingProvider struct{}

func (failingProvider) Name() string { return "failing" }

func (failingProvider) Authenticate(context.Context) (*auth.Identity, error) {
	return nil, &auth.RejectedError{Reason: "account disabled"}
}

func gotoPage(t *testing.T, m Model, path string) Model {
	t.Helper()
	for dashboard.Pages[m.page].Path != path {
		m, _ = update(m, keyTab)
	}
	return m
}

func TestDealDeskDiscount(t *testing.T) {
	m := signIn(t, newTestModel(t, newTestApp(t, nil, nil)))
	m = gotoPage(t, m, "/deal-desk")
	assert.Contains(t, m.View(), "Within auto-approval limits")

	for i := 0; i < 6; i++ {
		m, _ = update(m, runes("+"))
	}
	assert.EqualValues(t, 21, m.quote.DiscountPct)
	assert.Contains(t, m.View(), "approval required")

	for i := 0; i < 60; i++ {
		m, _ = update(m, runes("-"))
	}
	assert.Zero(t, m.quote.DiscountPct)
}

func TestPerformanceSimulator(t *testing.T) {
	m := signIn(t, newTestModel(t, newTestApp(t, nil, nil)))
	m = gotoPage(t, m, "/performance")
	assert.Contains(t, m.View(), "$50,000")

	for _, k := range []string{"+", "+", "]", "]"} {
		m, _ = update(m, runes(k))
	}
	assert.InDelta(t, 1.2, m.comp.QuotaMult, 1e-9)
	assert.InDelta(t, 1.1, m.comp.WinRateMult, 1e-9)
	assert.Contains(t, m.View(), "$66,000")

	for i := 0; i < 30; i++ {
		m, _ = update(m, runes("-"))
		m, _ = update(m, runes("["))
	}
	assert.Equal(t, dashboard.CompPlan{QuotaMult: dashboard.MinQuotaMult, WinRateMult: dashboard.MinWinRateMult}, m.comp)
	assert.Contains(t, m.View(), "$20,000")
}

func TestTerritoryMoves(t *testing.T) {
	m := signIn(t, newTestModel(t, newTestApp(t, nil, nil)))
	m = gotoPage(t, m, "/territory-manager")

	m, _ = update(m, runes("m"))
	assert.Len(t, m.plan.Source, 2)
	assert.Len(t, m.plan.Target, 3)

	m, _ = update(m, runes("n"))
	assert.Len(t, m.plan.Source, 3)
}

func TestWorkflowScan(t *testing.T) {
	clock := clockwork.NewFakeClock()
	m := signIn(t, newTestModel(t, newTestApp(t, nil, clock)))
	m = gotoPage(t, m, "/workflow-automation")

	m, cmd := update(m, runes("s"))
	assert.True(t, m.scanning)
	assert.Contains(t, m.View(), "Analyzing access logs")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go func() {
		if clock.BlockUntilContext(ctx, 1) == nil {
			clock.Advance(dashboard.ScanDuration)
		}
	}()
	m, _ = update(m, await[scanResultMsg](t, cmd))

	assert.False(t, m.scanning)
	assert.Len(t, m.opportunities, 3)
	assert.Contains(t, m.View(), "3 opportunities found")
}

func TestCopilotDisabled(t *testing.T) {
	m := signIn(t, newTestModel(t, newTestApp(t, nil, nil)))

	m, _ = update(m, runes("c"))
	assert.Equal(t, inputNone, m.purpose)
	assert.Contains(t, m.View(), "Copilot is disabled")

	m = gotoPage(t, m, "/insights")
	assert.Contains(t, m.View(), "AI insights are disabled")
}

func TestSnapshotSignOutFromElsewhere(t *testing.T) {
	a := newTestApp(t, nil, nil)
	m := signIn(t, newTestModel(t, a))
	require.True(t, m.inShell())

	a.Gate.Logout()
	m, cmd := update(m, snapshotMsg(a.Gate.Snapshot()))
	assert.NotNil(t, cmd, "subscription keeps listening")
	assert.Contains(t, m.View(), "Sign in")
}

// cannedGenerator streams a fixed reply.
type cannedGenerator struct{ reply string }

func (g cannedGenerator) Generate(context.Context, string, []*genai.Content, *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(g.reply, genai.RoleModel)}},
	}, nil
}

func (g cannedGenerator) Stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		resp, err := g.Generate(ctx, model, contents, cfg)
		yield(resp, err)
	}
}

func TestSignOutClearsWorkspace(t *testing.T) {
	a := newTestApp(t, nil, nil)
	a.Copilot = copilot.NewWithGenerator(cannedGenerator{reply: "Pipeline looks healthy."}, a.Config, a.Data)
	m := signIn(t, newTestModel(t, a))

	m, _ = update(m, runes("c"))
	m, _ = update(m, runes("How is Q3 tracking?"))
	m, cmd := update(m, keyEnter)
	m, cmd = update(m, await[chatChunkMsg](t, cmd))
	m, _ = update(m, await[chatDoneMsg](t, cmd))
	require.Len(t, m.chat.Messages(), 3)
	m, _ = update(m, keyEsc)

	m = gotoPage(t, m, "/deal-desk")
	m, _ = update(m, runes("+"))
	m.briefing = "Executive summary for Alex"
	m.analysis = "Deep analysis for Alex"
	m.opportunities = []dashboard.Opportunity{{Title: "Automate renewals"}}
	oldChat, oldEpoch := m.chat, m.epoch

	m, _ = update(m, runes("x"))
	require.False(t, a.Gate.IsAuthenticated())
	assert.Zero(t, m.page)
	assert.Empty(t, m.briefing)
	assert.Empty(t, m.analysis)
	assert.Empty(t, m.opportunities)
	assert.EqualValues(t, 15, m.quote.DiscountPct)
	assert.NotSame(t, oldChat, m.chat)

	// Replies addressed to the previous user are dropped.
	m, _ = update(m, briefingMsg{epoch: oldEpoch, text: "late summary"})
	assert.Empty(t, m.briefing)
	m, _ = update(m, chatChunkMsg{stream: &chatStream{}, text: "late reply"})
	assert.Empty(t, m.chatDraft)

	m, cmd = update(m, keyEnter)
	m, _ = update(m, await[loginResultMsg](t, cmd))
	m, _ = update(m, keyEnter)
	require.True(t, m.inShell())

	msgs := m.chat.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, copilot.RoleModel, msgs[0].Role)
	assert.Contains(t, msgs[0].Text, "WK Ops Copilot")
	assert.NotContains(t, m.View(), "Executive summary for Alex")
}

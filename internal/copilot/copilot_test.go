package copilot

import (
	"context"
	"errors"
	"iter"
	"sync"
	"testing"
	"time"

	"opscenter/internal/config"
	"opscenter/internal/dashboard"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type call struct {
	ctx      context.Context
	model    string
	contents []*genai.Content
	cfg      *genai.GenerateContentConfig
}

// fakeGenerator records requests and answers from canned responses.
type fakeGenerator struct {
	mu     sync.Mutex
	calls  []call
	reply  func(c call) (*genai.GenerateContentResponse, error)
	chunks []string
	err    error
}

func (f *fakeGenerator) record(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) call {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := call{ctx: ctx, model: model, contents: contents, cfg: cfg}
	f.calls = append(f.calls, c)
	return c
}

func (f *fakeGenerator) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	c := f.record(ctx, model, contents, cfg)
	if f.reply == nil {
		return textResponse("ok"), f.err
	}
	return f.reply(c)
}

func (f *fakeGenerator) Stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	f.record(ctx, model, contents, cfg)
	return func(yield func(*genai.GenerateContentResponse, error) bool) {
		for _, chunk := range f.chunks {
			if !yield(textResponse(chunk), nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText(text, genai.RoleModel)}},
	}
}

func testAI() config.AIConfig {
	return config.DefaultConfig().AI
}

func TestNewRequiresConfiguration(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	cfg.Features.EnableAI = true
	_, err = New(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, ErrNotConfigured, "enabled without a key")
}

func TestExecutiveSummary(t *testing.T) {
	gen := &fakeGenerator{reply: func(c call) (*genai.GenerateContentResponse, error) {
		return textResponse("## Summary\n- pipeline healthy"), nil
	}}
	cp := newCopilot(gen, testAI(), time.Second, dashboard.Sample())

	got, err := cp.ExecutiveSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "## Summary\n- pipeline healthy", got)

	require.Len(t, gen.calls, 1)
	assert.Equal(t, "gemini-2.5-flash", gen.calls[0].model)
	prompt := gen.calls[0].contents[0].Parts[0].Text
	assert.Contains(t, prompt, `"Northstar Systems"`)
	assert.Contains(t, prompt, `"rep_performance"`)
}

func TestExecutiveSummaryEmpty(t *testing.T) {
	gen := &fakeGenerator{reply: func(call) (*genai.GenerateContentResponse, error) {
		return &genai.GenerateContentResponse{}, nil
	}}
	got, err := newCopilot(gen, testAI(), 0, nil).ExecutiveSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "No summary generated.", got)
}

func TestRegulatoryBriefSources(t *testing.T) {
	gen := &fakeGenerator{reply: func(c call) (*genai.GenerateContentResponse, error) {
		resp := textResponse("CTA deadlines moved.")
		resp.Candidates[0].GroundingMetadata = &genai.GroundingMetadata{
			GroundingChunks: []*genai.GroundingChunk{
				{Web: &genai.GroundingChunkWeb{Title: "FinCEN", URI: "https://fincen.gov/boi"}},
				{Web: &genai.GroundingChunkWeb{Title: "FinCEN dup", URI: "https://fincen.gov/boi"}},
				{Web: &genai.GroundingChunkWeb{Title: "Reuters", URI: "https://reuters.com/cta"}},
				{},
			},
		}
		return resp, nil
	}}
	cp := newCopilot(gen, testAI(), time.Second, nil)

	b, err := cp.RegulatoryBrief(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "CTA deadlines moved.", b.Text)
	assert.Equal(t, []Source{
		{Title: "FinCEN", URI: "https://fincen.gov/boi"},
		{Title: "Reuters", URI: "https://reuters.com/cta"},
	}, b.Sources)

	require.Len(t, gen.calls[0].cfg.Tools, 1)
	assert.NotNil(t, gen.calls[0].cfg.Tools[0].GoogleSearch)
}

func TestStrategicAnalysisUsesThinkingBudget(t *testing.T) {
	gen := &fakeGenerator{}
	cp := newCopilot(gen, testAI(), time.Second, nil)

	_, err := cp.StrategicAnalysis(context.Background(), "  ")
	assert.Error(t, err)

	got, err := cp.StrategicAnalysis(context.Background(), "Should we expand into the Midwest?")
	require.NoError(t, err)
	assert.Equal(t, "ok", got)

	c := gen.calls[0]
	assert.Equal(t, "gemini-3-pro-preview", c.model)
	require.NotNil(t, c.cfg.ThinkingConfig)
	assert.EqualValues(t, 32768, *c.cfg.ThinkingConfig.ThinkingBudget)
	assert.Contains(t, c.contents[0].Parts[0].Text, "Midwest")
}

func TestBriefingFallsBackPerPart(t *testing.T) {
	boom := errors.New("quota exhausted")
	briefFailed := make(chan struct{})
	gen := &fakeGenerator{reply: func(c call) (*genai.GenerateContentResponse, error) {
		if c.cfg != nil && len(c.cfg.Tools) > 0 {
			close(briefFailed)
			return nil, boom
		}
		// The summary is still in flight when the brief fails.
		<-briefFailed
		select {
		case <-c.ctx.Done():
			return nil, c.ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
		return textResponse("summary"), nil
	}}
	cp := newCopilot(gen, testAI(), 5*time.Second, nil)

	b, err := cp.Briefing(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, FallbackBrief, b.News.Text)
	assert.Equal(t, "summary", b.Summary)
}

func TestBriefingSummaryFailureKeepsBrief(t *testing.T) {
	boom := errors.New("model overloaded")
	gen := &fakeGenerator{reply: func(c call) (*genai.GenerateContentResponse, error) {
		if c.cfg != nil && len(c.cfg.Tools) > 0 {
			return textResponse("brief"), nil
		}
		return nil, boom
	}}
	cp := newCopilot(gen, testAI(), 5*time.Second, nil)

	b, err := cp.Briefing(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, FallbackSummary, b.Summary)
	assert.Equal(t, "brief", b.News.Text)
}

func TestChatStreams(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"Pipeline ", "looks ", "healthy."}}
	chat := newCopilot(gen, testAI(), time.Second, nil).NewChat()

	var seen []string
	reply, err := chat.Send(context.Background(), "How is the pipeline?", func(s string) { seen = append(seen, s) })
	require.NoError(t, err)
	assert.Equal(t, "Pipeline looks healthy.", reply.Text)
	assert.Equal(t, []string{"Pipeline ", "Pipeline looks ", "Pipeline looks healthy."}, seen)

	msgs := chat.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleModel, msgs[0].Role, "welcome message")
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.NotEqual(t, msgs[1].ID, msgs[2].ID)

	c := gen.calls[0]
	assert.Equal(t, "gemini-3-pro-preview", c.model)
	assert.Contains(t, c.cfg.SystemInstruction.Parts[0].Text, "WK Ops Copilot")
	require.Len(t, c.contents, 1, "welcome message is not sent as history")

	_, err = chat.Send(context.Background(), "And compliance?", nil)
	require.NoError(t, err)
	history := gen.calls[1].contents
	require.Len(t, history, 3)
	assert.Equal(t, "model", history[1].Role)
	assert.Equal(t, "And compliance?", history[2].Parts[0].Text)
}

func TestChatFailure(t *testing.T) {
	gen := &fakeGenerator{chunks: []string{"partial"}, err: errors.New("connection reset")}
	chat := newCopilot(gen, testAI(), time.Second, nil).NewChat()

	reply, err := chat.Send(context.Background(), "hello", nil)
	assert.Error(t, err)
	assert.True(t, reply.Failed)
	assert.Equal(t, FallbackChat, reply.Text)

	gen.err = nil
	gen.chunks = []string{"hi"}
	_, err = chat.Send(context.Background(), "again", nil)
	require.NoError(t, err)
	for _, c := range gen.calls[1].contents {
		assert.NotEqual(t, FallbackChat, c.Parts[0].Text, "fallback replies stay out of history")
	}

	_, err = chat.Send(context.Background(), "   ", nil)
	assert.Error(t, err)
}

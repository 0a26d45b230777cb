// Package copilot wraps the Gemini models behind the command center's AI
// features: executive summaries, grounded regulatory briefs, strategic
// analysis and the streaming assistant chat.
package copilot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"opscenter/internal/config"
	"opscenter/internal/dashboard"
	"opscenter/internal/logging"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// ErrNotConfigured is returned when AI is disabled or no API key is set.
var ErrNotConfigured = errors.New("copilot is not configured (enable AI and set GEMINI_API_KEY)")

// Text shown in place of a failed generation.
const (
	FallbackSummary  = "Unable to generate insights at this time. Please try again later."
	FallbackBrief    = "Error retrieving regulatory news."
	FallbackAnalysis = "Unable to complete strategic analysis."
	FallbackChat     = "I'm having trouble connecting to the network. Please try again."
)

// Generator is the slice of the genai Models service the copilot uses.
type Generator interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

type genaiModels struct {
	models *genai.Models
}

func (g genaiModels) Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return g.models.GenerateContent(ctx, model, contents, cfg)
}

func (g genaiModels) Stream(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error] {
	return g.models.GenerateContentStream(ctx, model, contents, cfg)
}

// Copilot issues requests against the configured models.
type Copilot struct {
	gen     Generator
	ai      config.AIConfig
	timeout time.Duration
	data    *dashboard.Dataset
}

// New creates a copilot backed by the Gemini API.
func New(ctx context.Context, cfg *config.Config, data *dashboard.Dataset) (*Copilot, error) {
	if !cfg.AIEnabled() {
		return nil, ErrNotConfigured
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.AI.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return newCopilot(genaiModels{models: client.Models}, cfg.AI, cfg.GetAITimeout(), data), nil
}

// NewWithGenerator creates a copilot over an arbitrary generator.
func NewWithGenerator(gen Generator, cfg *config.Config, data *dashboard.Dataset) *Copilot {
	return newCopilot(gen, cfg.AI, cfg.GetAITimeout(), data)
}

func newCopilot(gen Generator, ai config.AIConfig, timeout time.Duration, data *dashboard.Dataset) *Copilot {
	if data == nil {
		data = dashboard.Sample()
	}
	return &Copilot{gen: gen, ai: ai, timeout: timeout, data: data}
}

func (c *Copilot) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// ExecutiveSummary asks for a short markdown summary of the dashboard data.
func (c *Copilot) ExecutiveSummary(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	dataContext, err := json.Marshal(c.data.CopilotContext())
	if err != nil {
		return "", fmt.Errorf("failed to encode dashboard context: %w", err)
	}

	prompt := fmt.Sprintf(`You are a Senior Sales Operations Analyst at Wolters Kluwer.
Analyze the following JSON data representing our current Sales Pipeline, Forecast, Compliance Risks, and Rep Performance.

Data Context: %s

Please provide a professional, concise Executive Summary (approx 150-200 words) formatted as Markdown
with a heading and bullet points.

Focus on:
1. Pipeline Health & Forecast Trends.
2. Critical Compliance Risks (High risk scores).
3. Performance gaps or highlights.
4. One strategic recommendation.

Do not wrap the answer in a code block.`, dataContext)

	start := time.Now()
	resp, err := c.gen.Generate(ctx, c.ai.Model, genai.Text(prompt), nil)
	if err != nil {
		logging.APIError("executive summary failed: %v", err)
		return "", fmt.Errorf("executive summary: %w", err)
	}
	logging.API("executive summary generated in %v", time.Since(start))

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "No summary generated.", nil
	}
	return text, nil
}

// Source is a web page a grounded answer cited.
type Source struct {
	Title string
	URI   string
}

// Brief is a search-grounded answer.
type Brief struct {
	Text    string
	Sources []Source
}

const regulatoryQuery = "What are the latest significant changes in US corporate transparency act and " +
	"beneficial ownership reporting requirements for 2024/2025? focusing on compliance deadlines."

// RegulatoryBrief answers the standing regulatory question with Google
// Search grounding and returns the cited sources.
func (c *Copilot) RegulatoryBrief(ctx context.Context) (*Brief, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	cfg := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	}
	resp, err := c.gen.Generate(ctx, c.ai.Model, genai.Text(regulatoryQuery), cfg)
	if err != nil {
		logging.APIError("regulatory brief failed: %v", err)
		return nil, fmt.Errorf("regulatory brief: %w", err)
	}

	b := &Brief{Text: strings.TrimSpace(resp.Text()), Sources: groundingSources(resp)}
	if b.Text == "" {
		b.Text = "No regulatory updates found."
	}
	logging.API("regulatory brief grounded on %d sources", len(b.Sources))
	return b, nil
}

func groundingSources(resp *genai.GenerateContentResponse) []Source {
	if len(resp.Candidates) == 0 || resp.Candidates[0].GroundingMetadata == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []Source
	for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
		if chunk == nil || chunk.Web == nil || chunk.Web.URI == "" || seen[chunk.Web.URI] {
			continue
		}
		seen[chunk.Web.URI] = true
		out = append(out, Source{Title: chunk.Web.Title, URI: chunk.Web.URI})
	}
	return out
}

// StrategicAnalysis runs a query against the reasoning model with a large
// thinking budget.
func (c *Copilot) StrategicAnalysis(ctx context.Context, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", fmt.Errorf("strategic analysis needs a query")
	}
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	budget := c.ai.ThinkingBudget
	cfg := &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: &budget},
	}
	prompt := fmt.Sprintf("Context: You are a Sales Operations Director. Analyze this strategic query: %q. "+
		"Provide a detailed, reasoning-based strategy.", query)

	resp, err := c.gen.Generate(ctx, c.ai.ReasoningModel, genai.Text(prompt), cfg)
	if err != nil {
		logging.APIError("strategic analysis failed: %v", err)
		return "", fmt.Errorf("strategic analysis: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "Analysis complete but no output returned.", nil
	}
	return text, nil
}

// Briefing is the insights page payload.
type Briefing struct {
	Summary string
	News    *Brief
}

// Briefing fetches the executive summary and the regulatory brief
// concurrently. The two requests are independent: a failure in either
// returns the fallback text for that part only, along with the first error.
func (c *Copilot) Briefing(ctx context.Context) (*Briefing, error) {
	out := &Briefing{}
	var g errgroup.Group
	g.Go(func() error {
		s, err := c.ExecutiveSummary(ctx)
		if err != nil {
			out.Summary = FallbackSummary
			return err
		}
		out.Summary = s
		return nil
	})
	g.Go(func() error {
		b, err := c.RegulatoryBrief(ctx)
		if err != nil {
			out.News = &Brief{Text: FallbackBrief}
			return err
		}
		out.News = b
		return nil
	})
	err := g.Wait()
	return out, err
}

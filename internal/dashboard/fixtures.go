// Package dashboard holds the command center's sample datasets and the small
// calculators behind its pages.
package dashboard

// PipelineStage is one step of the sales funnel.
type PipelineStage struct {
	Stage string `json:"stage"`
	Count int    `json:"count"`
}

// ForecastPoint is the forecast revenue for a month.
type ForecastPoint struct {
	Month string `json:"month"`
	Value int64  `json:"value"`
}

// StalledDeal is an opportunity without recent activity.
type StalledDeal struct {
	DealID         string `json:"deal_id"`
	Owner          string `json:"owner"`
	InactivityDays int    `json:"inactivity_days"`
	Value          int64  `json:"value"`
}

// LifecycleStatus is where an entity milestone stands.
type LifecycleStatus string

const (
	LifecycleCompleted LifecycleStatus = "completed"
	LifecycleCurrent   LifecycleStatus = "current"
	LifecycleUpcoming  LifecycleStatus = "upcoming"
)

// LifecycleEvent is a milestone in a legal entity's lifecycle.
type LifecycleEvent struct {
	Phase  string          `json:"phase"`
	Date   string          `json:"date"`
	Status LifecycleStatus `json:"status"`
}

// RiskScore is an entity's compliance risk.
type RiskScore struct {
	Entity      string `json:"entity"`
	Risk        int    `json:"risk"`
	MissingDocs int    `json:"missing_docs"`
	Deadline    string `json:"deadline"`
}

// RepPerformance is a sales rep's quota attainment in percent.
type RepPerformance struct {
	Name       string `json:"name"`
	Quota      int64  `json:"quota"`
	Attainment int    `json:"attainment"`
}

// Territory is a region's health score in [0, 1].
type Territory struct {
	Region string  `json:"region"`
	Score  float64 `json:"score"`
}

// InsightTone classifies an insight card.
type InsightTone string

const (
	TonePositive InsightTone = "positive"
	ToneNegative InsightTone = "negative"
	ToneNeutral  InsightTone = "neutral"
)

// Insight is a headline observation.
type Insight struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Tone        InsightTone `json:"type"`
	Source      string      `json:"source,omitempty"`
	URL         string      `json:"url,omitempty"`
}

// PartnerDoc is a channel partner document.
type PartnerDoc struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	LastModified string `json:"last_modified"`
}

// LeadStage is a step in lead maturation with its hand-off SLA.
type LeadStage struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SLAHours int    `json:"sla_hours"`
	Owner    string `json:"owner"`
}

// Account is a customer account that can be moved between territories.
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Dataset bundles every fixture the pages and the copilot read.
type Dataset struct {
	Pipeline    []PipelineStage  `json:"pipeline"`
	Forecast    []ForecastPoint  `json:"forecast"`
	Stalled     []StalledDeal    `json:"stalled_deals"`
	Lifecycle   []LifecycleEvent `json:"entity_lifecycle"`
	Risks       []RiskScore      `json:"risk_entities"`
	Reps        []RepPerformance `json:"rep_performance"`
	Territories []Territory      `json:"territories"`
	Insights    []Insight        `json:"insights"`
	PartnerDocs []PartnerDoc     `json:"partner_docs"`
	LeadStages  []LeadStage      `json:"lead_stages"`
}

// Sample returns a fresh copy of the demo dataset.
func Sample() *Dataset {
	return &Dataset{
		Pipeline: []PipelineStage{
			{"Prospect", 120},
			{"Qualified", 75},
			{"Proposal", 40},
			{"Negotiation", 20},
			{"Closed Won", 12},
		},
		Forecast: []ForecastPoint{
			{"Jan", 220000},
			{"Feb", 245000},
			{"Mar", 300000},
			{"Apr", 280000},
			{"May", 340000},
			{"Jun", 390000},
		},
		Stalled: []StalledDeal{
			{"D-1001", "Alex", 42, 50000},
			{"D-1002", "Jordan", 55, 75000},
			{"D-1005", "Casey", 35, 22000},
		},
		Lifecycle: []LifecycleEvent{
			{"Formation", "2024-01-12", LifecycleCompleted},
			{"Initial Filing", "2024-01-15", LifecycleCompleted},
			{"Annual Report Due", "2024-05-01", LifecycleCurrent},
			{"Registered Agent Update", "2024-09-10", LifecycleUpcoming},
		},
		Risks: []RiskScore{
			{"ABC LLC", 18, 1, "2024-04-30"},
			{"Ventura Inc", 72, 4, "2024-03-15"},
			{"Global Trade Co", 45, 2, "2024-06-01"},
			{"Northstar Systems", 85, 5, "2024-02-28"},
		},
		Reps: []RepPerformance{
			{"Alicia", 150000, 112},
			{"Brian", 140000, 98},
			{"Celeste", 130000, 76},
			{"David", 160000, 105},
			{"Eva", 140000, 65},
		},
		Territories: []Territory{
			{"Northeast", 0.78},
			{"Midwest", 0.64},
			{"Southwest", 0.55},
			{"West Coast", 0.88},
			{"Southeast", 0.72},
		},
		Insights: []Insight{
			{
				Title:       "Pipeline Trending Up",
				Description: "Week-over-week pipeline increased 12% driven by mid-market activity.",
				Tone:        TonePositive,
			},
			{
				Title:       "Compliance Risk Rising",
				Description: "Three entities entered 'At Risk' due to missed filings in the Southwest region.",
				Tone:        ToneNegative,
			},
		},
		PartnerDocs: []PartnerDoc{
			{"DOC-001", "Reseller Agreement 2024", "Agreement", "Approved", "2024-03-10"},
			{"DOC-002", "Q2 Marketing Kit", "Marketing", "Draft", "2024-03-18"},
			{"DOC-003", "Technical Enablement Guide", "Enablement", "Review", "2024-03-15"},
		},
		LeadStages: []LeadStage{
			{"1", "MQL", 24, "Marketing"},
			{"2", "SAL", 48, "SDR"},
			{"3", "SQL", 72, "AE"},
		},
	}
}

// CopilotContext is the slice of the dataset sent to the copilot for the
// executive summary.
func (d *Dataset) CopilotContext() map[string]any {
	return map[string]any{
		"pipeline":        d.Pipeline,
		"forecast":        d.Forecast,
		"risk_entities":   d.Risks,
		"rep_performance": d.Reps,
	}
}

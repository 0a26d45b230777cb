package dashboard

import "strings"

// Page identifies a screen of the application shell.
type Page struct {
	Path  string
	Title string
	// Blurb is the one-line subtitle under the page title.
	Blurb string
}

// Pages lists the routed pages in navigation order. The first is home.
var Pages = []Page{
	{"/", "Home", "Command center overview."},
	{"/pipeline", "Pipeline", "Funnel health, forecast and stalled deals."},
	{"/compliance", "Compliance", "Entity lifecycle and risk scoring."},
	{"/performance", "Performance", "Rep attainment and commission modeling."},
	{"/insights", "Insights", "AI summaries, regulatory news and strategy."},
	{"/territory-manager", "Territory Manager", "Account reassignment and coverage."},
	{"/lead-maturation", "Lead Maturation", "MQL to opportunity lifecycle and SLAs."},
	{"/sfdc-console", "SFDC Console", "Salesforce org health."},
	{"/deal-desk", "Deal Desk", "Pricing worksheets and margin analysis."},
	{"/partner-docs", "Partner Docs", "Channel agreements and enablement."},
	{"/reporting-suite", "Reporting Suite", "Scheduled and ad-hoc reports."},
	{"/workflow-automation", "Workflow Automation", "Identify inefficiencies and automation ROI."},
	{"/about", "About", "About the command center."},
}

// Resolve maps a path to its page. Unknown paths land on home.
func Resolve(path string) Page {
	p := strings.TrimSuffix(strings.TrimPrefix(path, "#"), "/")
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, pg := range Pages {
		if pg.Path == p {
			return pg
		}
	}
	return Pages[0]
}

// Index returns the navigation position of a path.
func Index(path string) int {
	target := Resolve(path).Path
	for i, pg := range Pages {
		if pg.Path == target {
			return i
		}
	}
	return 0
}

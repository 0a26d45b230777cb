package shell

import (
	"fmt"
	"strings"

	"opscenter/internal/dashboard"
)

// pageInputs carries the per-session state some pages render.
type pageInputs struct {
	data          *dashboard.Dataset
	plan          *dashboard.TerritoryPlan
	quote         dashboard.QuoteInput
	comp          dashboard.CompPlan
	briefing      string
	analysis      string
	opportunities []dashboard.Opportunity
	scanning      bool
	aiEnabled     bool
	userName      string
}

// pageMarkdown renders a page body as markdown.
func pageMarkdown(p dashboard.Page, in pageInputs) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n_%s_\n\n", p.Title, p.Blurb)

	d := in.data
	switch p.Path {
	case "/":
		if in.userName != "" {
			fmt.Fprintf(&b, "Welcome back, **%s**.\n\n", in.userName)
		}
		var won, forecast int64
		for _, s := range d.Pipeline {
			if s.Stage == "Closed Won" {
				won = int64(s.Count)
			}
		}
		if n := len(d.Forecast); n > 0 {
			forecast = d.Forecast[n-1].Value
		}
		fmt.Fprintf(&b, "| Metric | Value |\n|---|---|\n")
		fmt.Fprintf(&b, "| Deals closed won | %d |\n", won)
		fmt.Fprintf(&b, "| Forecast (%s) | $%s |\n", d.Forecast[len(d.Forecast)-1].Month, thousands(forecast))
		fmt.Fprintf(&b, "| High-risk entities | %d |\n", len(d.HighRisk()))
		fmt.Fprintf(&b, "| Stalled deals | %d |\n\n", len(d.Stalled))
		b.WriteString("## Insights\n\n")
		for _, i := range d.Insights {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", i.Title, i.Tone, i.Description)
		}

	case "/pipeline":
		rates := dashboard.ConversionRates(d.Pipeline)
		b.WriteString("| Stage | Deals | Conversion |\n|---|---:|---:|\n")
		for i, s := range d.Pipeline {
			conv := "-"
			if i > 0 {
				conv = fmt.Sprintf("%.1f%%", rates[i])
			}
			fmt.Fprintf(&b, "| %s | %d | %s |\n", s.Stage, s.Count, conv)
		}
		b.WriteString("\n## Forecast\n\n| Month | Value |\n|---|---:|\n")
		for _, f := range d.Forecast {
			fmt.Fprintf(&b, "| %s | $%s |\n", f.Month, thousands(f.Value))
		}
		b.WriteString("\n## Stalled deals\n\n| Deal | Owner | Idle days | Value |\n|---|---|---:|---:|\n")
		for _, s := range d.Stalled {
			fmt.Fprintf(&b, "| %s | %s | %d | $%s |\n", s.DealID, s.Owner, s.InactivityDays, thousands(s.Value))
		}

	case "/compliance":
		b.WriteString("## Entity lifecycle\n\n")
		for _, e := range d.Lifecycle {
			fmt.Fprintf(&b, "- %s **%s** (%s)\n", e.Date, e.Phase, e.Status)
		}
		b.WriteString("\n## Risk scores\n\n| Entity | Risk | Level | Missing docs | Deadline |\n|---|---:|---|---:|---|\n")
		for _, r := range d.Risks {
			fmt.Fprintf(&b, "| %s | %d | %s | %d | %s |\n", r.Entity, r.Risk, dashboard.RiskLevel(r.Risk), r.MissingDocs, r.Deadline)
		}

	case "/performance":
		b.WriteString("| Rep | Quota | Attainment | Status |\n|---|---:|---:|---|\n")
		for _, r := range d.Reps {
			fmt.Fprintf(&b, "| %s | $%s | %d%% | %s |\n", r.Name, thousands(r.Quota), r.Attainment, dashboard.RepStatus(r.Attainment))
		}
		b.WriteString("\n## Territory health\n\n")
		for _, t := range d.Territories {
			fmt.Fprintf(&b, "- %s: %.0f/100\n", t.Region, t.Score*100)
		}
		b.WriteString("\n## Compensation simulator\n\n")
		fmt.Fprintf(&b, "- Quota multiplier: %.1fx\n", in.comp.QuotaMult)
		fmt.Fprintf(&b, "- Win-rate multiplier: %.2fx\n", in.comp.WinRateMult)
		fmt.Fprintf(&b, "\nEstimated commission pool: **$%s**\n", thousands(in.comp.Pool()))

	case "/insights":
		switch {
		case !in.aiEnabled:
			b.WriteString("AI insights are disabled. Set `GEMINI_API_KEY` and `OPSCENTER_ENABLE_AI=1` to enable them.\n")
		case in.briefing == "":
			b.WriteString("Press **r** to generate the executive summary and regulatory brief.\n")
		default:
			b.WriteString(in.briefing)
			b.WriteString("\n")
		}
		if in.analysis != "" {
			b.WriteString("\n## Strategic analysis\n\n")
			b.WriteString(in.analysis)
			b.WriteString("\n")
		}

	case "/territory-manager":
		src, dst := in.plan.Totals()
		b.WriteString("| Book | Accounts | Value | Capacity used |\n|---|---:|---:|---:|\n")
		fmt.Fprintf(&b, "| Source rep | %d | $%s | %.0f%% |\n", len(in.plan.Source), thousands(src),
			float64(src)/float64(dashboard.DefaultRepCapacity)*100)
		fmt.Fprintf(&b, "| Target rep | %d | $%s | %.0f%% |\n\n", len(in.plan.Target), thousands(dst),
			float64(dst)/float64(dashboard.DefaultRepCapacity)*100)
		for _, a := range in.plan.Source {
			fmt.Fprintf(&b, "- %s %s ($%s) in source book\n", a.ID, a.Name, thousands(a.Value))
		}
		for _, a := range in.plan.Target {
			fmt.Fprintf(&b, "- %s %s ($%s) in target book\n", a.ID, a.Name, thousands(a.Value))
		}

	case "/lead-maturation":
		b.WriteString("| Stage | SLA | Owner |\n|---|---:|---|\n")
		for _, s := range d.LeadStages {
			fmt.Fprintf(&b, "| %s | %dh | %s |\n", s.Name, s.SLAHours, s.Owner)
		}

	case "/sfdc-console":
		b.WriteString("- Org status: **Healthy**\n- API usage: 42% of daily limit\n- Pending validation rule changes: 3\n")

	case "/deal-desk":
		q, err := dashboard.PriceQuote(in.quote)
		if err != nil {
			fmt.Fprintf(&b, "Invalid worksheet: %v\n", err)
			break
		}
		b.WriteString("| Input | Value |\n|---|---:|\n")
		fmt.Fprintf(&b, "| List price | $%s |\n| Discount | %.0f%% |\n| Cost | $%s |\n\n",
			thousands(int64(in.quote.ListPrice)), in.quote.DiscountPct, thousands(int64(in.quote.Cost)))
		fmt.Fprintf(&b, "Final price **$%s**, margin **%.1f%%** ($%s)\n\n",
			thousands(int64(q.FinalPrice)), q.MarginPct, thousands(int64(q.Margin)))
		if q.ApprovalRequired {
			fmt.Fprintf(&b, "Deal desk approval required: %s\n", strings.Join(q.Reasons, ", "))
		} else {
			b.WriteString("Within auto-approval limits.\n")
		}
		b.WriteString("\nUse **+/-** to adjust the discount.\n")

	case "/partner-docs":
		b.WriteString("| ID | Title | Type | Status | Modified |\n|---|---|---|---|---|\n")
		for _, p := range d.PartnerDocs {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", p.ID, p.Title, p.Type, p.Status, p.LastModified)
		}

	case "/reporting-suite":
		b.WriteString("- Weekly Forecast Rollup (Mondays 08:00)\n- Compliance Exposure by Region (monthly)\n- Rep Attainment Leaderboard (daily)\n")

	case "/workflow-automation":
		switch {
		case in.scanning:
			b.WriteString("Analyzing access logs and user activity...\n")
		case len(in.opportunities) == 0:
			b.WriteString("Press **s** to scan Sales Ops workflows for manual bottlenecks.\n")
		default:
			fmt.Fprintf(&b, "Scan complete: %d opportunities found.\n\n", len(in.opportunities))
			b.WriteString("| Opportunity | Savings | Est. ROI |\n|---|---|---:|\n")
			for _, o := range in.opportunities {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", o.Title, o.Savings, o.ROI)
			}
		}

	case "/about":
		b.WriteString("The Sales Ops command center brings pipeline, compliance and performance data into one " +
			"terminal workspace, with an AI copilot for summaries and strategy.\n")
	}
	return b.String()
}

// thousands formats n with comma separators.
func thousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var out []byte
	for i := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, s[i])
	}
	if neg {
		return "-" + string(out)
	}
	return string(out)
}

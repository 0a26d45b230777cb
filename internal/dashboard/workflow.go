package dashboard

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// ScanDuration is how long a simulated process-mining scan takes.
const ScanDuration = 2 * time.Second

// Opportunity is an automation candidate found by a scan.
type Opportunity struct {
	Title       string
	Savings     string
	Description string
	ROI         string
}

// Scanner simulates mining Sales Ops workflows for manual bottlenecks.
type Scanner struct {
	clock clockwork.Clock
}

// NewScanner returns a scanner on the given clock; nil means the real clock.
func NewScanner(clock clockwork.Clock) *Scanner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scanner{clock: clock}
}

// Scan waits ScanDuration and reports the fixed findings.
func (s *Scanner) Scan(ctx context.Context) ([]Opportunity, error) {
	select {
	case <-s.clock.After(ScanDuration):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []Opportunity{
		{"Manual Data Entry", "15 hrs/mo", "Reps manually copying Lead data to Opportunity fields.", "$12,000/yr"},
		{"Approval Latency", "8 hrs/mo", "Quote approvals sitting in email inboxes > 24h.", "$6,500/yr"},
		{"Report Generation", "4 hrs/mo", "Sales Ops manually compiling Weekly Forecast Excel.", "$3,200/yr"},
	}, nil
}

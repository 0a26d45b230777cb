package auth

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// MockProvider stands in for a directory service. It waits for the
// configured latency, then asserts a fixed identity.
type MockProvider struct {
	clock    clockwork.Clock
	latency  time.Duration
	identity Identity
}

// NewMockProvider returns a provider that always signs in as identity.
func NewMockProvider(clock clockwork.Clock, latency time.Duration, identity Identity) *MockProvider {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MockProvider{clock: clock, latency: latency, identity: identity}
}

func (p *MockProvider) Name() string { return "mock" }

func (p *MockProvider) Authenticate(ctx context.Context) (*Identity, error) {
	if p.latency > 0 {
		select {
		case <-p.clock.After(p.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := p.identity
	id.Groups = append([]string(nil), p.identity.Groups...)
	return &id, nil
}

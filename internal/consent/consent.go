// Package consent tracks acceptance of the confidentiality notice shown
// between sign-in and the application shell.
package consent

import (
	"errors"
	"fmt"
	"strings"

	"opscenter/internal/config"
	"opscenter/internal/logging"
	"opscenter/internal/storage"
)

// AcceptedKey is the record marking the notice as accepted.
const AcceptedKey = "wk_legal_accepted"

// Notice is the confidentiality notice.
type Notice struct {
	Title   string
	Company string
	Version string
	Lead    string
	Terms   []string
}

// DefaultNotice builds the notice for the configured company.
func DefaultNotice(company config.CompanyConfig) Notice {
	return Notice{
		Title:   "Confidential System",
		Company: company.Name,
		Version: company.LegalDisclaimerVersion,
		Lead: "You are accessing a Wolters Kluwer FCC | CT Corporation restricted system " +
			"containing sensitive pipeline, revenue, and client compliance data.",
		Terms: []string{
			"You will not export data to unapproved devices.",
			"All AI-generated insights must be verified before external use.",
			"Access is logged and monitored for security purposes.",
		},
	}
}

// Markdown renders the notice for the terminal markdown renderer.
func (n Notice) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", n.Title)
	b.WriteString("**AUTHORIZED USE ONLY.**\n\n")
	b.WriteString(n.Lead + "\n\n")
	b.WriteString("By proceeding, you agree that:\n\n")
	for _, t := range n.Terms {
		b.WriteString("- " + t + "\n")
	}
	if n.Version != "" {
		fmt.Fprintf(&b, "\n_Disclaimer version %s_\n", n.Version)
	}
	return b.String()
}

// Tracker records acceptance in a store scoped to the process session, so
// the notice is shown again on every launch.
type Tracker struct {
	store   storage.Store
	version string
}

// NewTracker returns a tracker for the given notice version.
func NewTracker(store storage.Store, version string) *Tracker {
	return &Tracker{store: store, version: version}
}

// Accepted reports whether the current notice version was accepted.
func (t *Tracker) Accepted() bool {
	v, err := t.store.Get(AcceptedKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			logging.StorageWarn("consent record unreadable: %v", err)
		}
		return false
	}
	return string(v) == t.version
}

// Accept records acceptance of the current version.
func (t *Tracker) Accept() error {
	if err := t.store.Set(AcceptedKey, []byte(t.version)); err != nil {
		return fmt.Errorf("failed to record consent: %w", err)
	}
	logging.Session("confidentiality notice %s accepted", t.version)
	return nil
}

// Reset forgets acceptance, used on sign-out.
func (t *Tracker) Reset() {
	if err := t.store.Remove(AcceptedKey); err != nil {
		logging.StorageWarn("failed to clear consent: %v", err)
	}
}

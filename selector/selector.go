// Package selector resolves loosely-specified step targets against live
// page markup. Targets arrive as comma-separated candidate selectors from
// the planner; pages are uncontrolled third-party markup, so resolution
// degrades through ordered tiers, explicit candidates first and generic
// heuristics after, before declaring failure. The first visible, interactable
// match in tier/pattern order always wins; there is no scoring.
package selector

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNoMatch is returned when every tier has been exhausted without
	// finding a usable element.
	ErrNoMatch = errors.New("no usable element found")
)

// Intent is what the caller wants to do with the resolved element. It
// decides which fallback tiers apply beyond the explicit candidates.
type Intent string

const (
	IntentClick  Intent = "click"
	IntentType   Intent = "type"
	IntentVerify Intent = "verify"
)

// Element is one concrete page element the resolver can hand back to a
// step executor.
type Element interface {
	IsVisible() (bool, error)
	InnerText() (string, error)
	GetAttribute(name string) (string, error)
	Click() error
	Fill(value string) error
}

// Page is the minimal page surface the resolver needs. The browser
// package adapts a live Playwright page to it; tests use fakes.
type Page interface {
	// WaitVisible blocks until the first element matching the selector
	// becomes visible, or the timeout elapses.
	WaitVisible(selector string, timeout time.Duration) (Element, error)

	// FindAll returns the elements currently matching the selector,
	// without waiting.
	FindAll(selector string) ([]Element, error)
}

// Default timing for the resolution tiers.
const (
	DefaultCandidateTimeout  = 5 * time.Second
	PasswordCandidateTimeout = 10 * time.Second
	passwordRevealDelay      = 3 * time.Second
	inputDiscoveryAttempts   = 3
	inputDiscoveryDelay      = 2 * time.Second
)

// Options tunes a single resolution.
type Options struct {
	// Timeout is the per-candidate visibility wait for the explicit tier.
	// Zero means DefaultCandidateTimeout.
	Timeout time.Duration

	// PasswordLike marks targets that frequently render dynamically after
	// a prior step (password fields revealed after email entry). It
	// triggers an extra settle delay and a password-specific discovery
	// tier for type intents.
	PasswordLike bool

	// EmailLike narrows type-intent input discovery to email-shaped
	// inputs.
	EmailLike bool
}

// ParseCandidates splits a comma-delimited candidate string into trimmed,
// non-empty selectors, preserving order.
func ParseCandidates(raw string) []string {
	parts := strings.Split(raw, ",")
	candidates := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			candidates = append(candidates, p)
		}
	}
	return candidates
}

// LooksLikePassword reports whether a target/value pair hints at a
// password field.
func LooksLikePassword(target, value string) bool {
	return containsFold(target, "password") || containsFold(value, "password")
}

// LooksLikeEmail reports whether a target/value pair hints at an email
// field.
func LooksLikeEmail(target, value string) bool {
	return containsFold(target, "email") || strings.Contains(value, "@")
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), substr)
}

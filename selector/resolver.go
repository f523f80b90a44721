package selector

import (
	"context"
	"fmt"
	"time"

	"github.com/probelab/uitester/logger"
)

// Resolver locates elements for step execution using the tiered fallback
// strategy. It is stateless apart from its collaborators and safe to
// reuse across steps of one job.
type Resolver struct {
	page   Page
	logger logger.Logger

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewResolver creates a resolver bound to one page.
func NewResolver(page Page, log logger.Logger) *Resolver {
	return &Resolver{
		page:   page,
		logger: log,
		sleep:  sleepCtx,
	}
}

// Resolve returns the first usable element for the candidate string, or
// ErrNoMatch once every applicable tier is exhausted. Tier order: explicit
// candidates, then click heuristics and link discovery (click intent), or
// input discovery (type intent). The first visible match wins outright.
func (r *Resolver) Resolve(ctx context.Context, candidates string, intent Intent, opts Options) (Element, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultCandidateTimeout
	}

	strategies := 0

	if el := r.resolveExplicit(ctx, candidates, opts.Timeout); el != nil {
		return el, nil
	}
	strategies++

	switch intent {
	case IntentClick:
		if el := r.resolveClickHeuristics(ctx); el != nil {
			return el, nil
		}
		strategies++

		if el := r.resolveLinks(ctx); el != nil {
			return el, nil
		}
		strategies++

	case IntentType:
		el, err := r.resolveInputs(ctx, opts)
		if err != nil {
			return nil, err
		}
		if el != nil {
			return el, nil
		}
		strategies++
	}

	return nil, fmt.Errorf("%w: %q (%d strategies attempted)", ErrNoMatch, candidates, strategies)
}

// resolveExplicit tries each comma-separated candidate in order, waiting
// briefly for it to become visible. The first candidate that resolves
// wins immediately.
func (r *Resolver) resolveExplicit(ctx context.Context, candidates string, timeout time.Duration) Element {
	for _, candidate := range ParseCandidates(candidates) {
		if ctx.Err() != nil {
			return nil
		}
		el, err := r.page.WaitVisible(candidate, timeout)
		if err != nil {
			r.logger.Debug(ctx, "candidate selector did not resolve", map[string]interface{}{
				"selector": candidate,
				"error":    err.Error(),
			})
			continue
		}
		r.logger.Debug(ctx, "candidate selector resolved", map[string]interface{}{
			"selector": candidate,
		})
		return el
	}
	return nil
}

// clickPattern is one entry in the heuristic discovery priority list.
type clickPattern struct {
	selector string
	// lastResort patterns accept any visible match regardless of text.
	lastResort bool
}

// clickPatterns is the fixed priority list for heuristic click discovery,
// from most to least specific. The bare "button" entry is the
// unconditional last resort.
var clickPatterns = []clickPattern{
	{selector: `button[type="submit"]`},
	{selector: `input[type="submit"]`},
	{selector: `button:has-text("Log in")`},
	{selector: `button:has-text("Sign in")`},
	{selector: `button:has-text("Submit")`},
	{selector: `[role="button"]`},
	{selector: `#login, #signin, #submit, .login-button, .signin-button, .submit-button, .btn-login, .btn-submit`},
	{selector: `button`, lastResort: true},
}

// affirmativeWords mark visible text that suggests a login/submit/enter
// affordance.
var affirmativeWords = []string{
	"log in", "login", "sign in", "signin", "submit",
	"continue", "enter", "next", "ok", "go",
}

// isAffirmativeText reports whether button text suggests an affirmative
// action. Empty text is accepted too: icon-only buttons are plausible
// click targets.
func isAffirmativeText(text string) bool {
	text = normalizeText(text)
	if text == "" {
		return true
	}
	for _, w := range affirmativeWords {
		if containsFold(text, w) {
			return true
		}
	}
	return false
}

func normalizeText(s string) string {
	fields := make([]rune, 0, len(s))
	space := false
	for _, c := range s {
		if c == ' ' || c == '\n' || c == '\t' || c == '\r' {
			space = true
			continue
		}
		if space && len(fields) > 0 {
			fields = append(fields, ' ')
		}
		space = false
		fields = append(fields, c)
	}
	return string(fields)
}

// resolveClickHeuristics scans the fixed pattern priority list for a
// visible element whose text suggests an affirmative action.
func (r *Resolver) resolveClickHeuristics(ctx context.Context) Element {
	for _, pattern := range clickPatterns {
		if ctx.Err() != nil {
			return nil
		}
		matches, err := r.page.FindAll(pattern.selector)
		if err != nil {
			continue
		}
		for _, el := range matches {
			visible, err := el.IsVisible()
			if err != nil || !visible {
				continue
			}
			if pattern.lastResort {
				r.logger.Debug(ctx, "heuristic click discovery accepted last-resort button", map[string]interface{}{
					"pattern": pattern.selector,
				})
				return el
			}
			text, _ := el.InnerText()
			if isAffirmativeText(text) {
				r.logger.Debug(ctx, "heuristic click discovery matched", map[string]interface{}{
					"pattern": pattern.selector,
					"text":    normalizeText(text),
				})
				return el
			}
		}
	}
	return nil
}

// linkWords match anchors that plausibly lead to a login flow.
var linkWords = []string{"login", "signin", "log", "sign"}

// resolveLinks is the final click fallback: the first visible anchor
// whose text or href mentions logging in or signing in.
func (r *Resolver) resolveLinks(ctx context.Context) Element {
	anchors, err := r.page.FindAll("a")
	if err != nil {
		return nil
	}
	for _, a := range anchors {
		if ctx.Err() != nil {
			return nil
		}
		visible, err := a.IsVisible()
		if err != nil || !visible {
			continue
		}
		text, _ := a.InnerText()
		href, _ := a.GetAttribute("href")
		for _, w := range linkWords {
			if containsFold(text, w) || containsFold(href, w) {
				r.logger.Debug(ctx, "link discovery matched", map[string]interface{}{
					"text": normalizeText(text),
					"href": href,
				})
				return a
			}
		}
	}
	return nil
}

// Broad input discovery selectors for the type-intent fallback tier.
const (
	passwordInputSelector = `input[type="password"]`
	emailInputSelector    = `input[type="email"], input[name*="email" i], input[id*="email" i], input[placeholder*="email" i]`
	genericInputSelector  = `input:not([type="hidden"]):not([type="submit"]):not([type="checkbox"]):not([type="radio"]), textarea`
)

// resolveInputs is the type-intent fallback: discover a plausible input
// by field shape. Fields frequently appear asynchronously, so discovery
// retries with an inter-attempt delay. Password-like fields get an extra
// head start because they often render only after email entry.
func (r *Resolver) resolveInputs(ctx context.Context, opts Options) (Element, error) {
	sel := genericInputSelector
	switch {
	case opts.PasswordLike:
		sel = passwordInputSelector
		if err := r.sleep(ctx, passwordRevealDelay); err != nil {
			return nil, err
		}
	case opts.EmailLike:
		sel = emailInputSelector
	}

	for attempt := 0; attempt < inputDiscoveryAttempts; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, inputDiscoveryDelay); err != nil {
				return nil, err
			}
		}
		matches, err := r.page.FindAll(sel)
		if err != nil {
			continue
		}
		for _, el := range matches {
			visible, err := el.IsVisible()
			if err != nil || !visible {
				continue
			}
			r.logger.Debug(ctx, "input discovery matched", map[string]interface{}{
				"selector": sel,
				"attempt":  attempt + 1,
			})
			return el, nil
		}
	}
	return nil, nil
}

// sleepCtx waits for the duration unless the context is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

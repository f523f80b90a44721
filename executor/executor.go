// Package executor turns one typed plan step into one ExecutedStep
// against the current page state. It never lets an error or panic
// escape: every failure is converted into a failed outcome, after a
// best-effort error screenshot, so the orchestrator above it only ever
// deals in results.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
	"github.com/probelab/uitester/selector"
)

var (
	// ErrUnsupportedAction is returned for step actions the executor
	// does not recognize.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// NavWait names how long navigation should consider the page "arrived".
type NavWait string

const (
	// NavWaitNetworkIdle waits for the network to go fully idle.
	NavWaitNetworkIdle NavWait = "networkidle"

	// NavWaitDOMContentLoaded waits only for the initial document.
	NavWaitDOMContentLoaded NavWait = "domcontentloaded"
)

// Page is the browser surface a step executor drives. The browser
// package adapts a live Playwright page; tests use fakes.
type Page interface {
	selector.Page

	// Navigate loads the URL and blocks until the wait condition is
	// reached or the timeout elapses.
	Navigate(url string, wait NavWait, timeout time.Duration) error

	// WaitLoaded blocks until the page reaches a stable load state.
	WaitLoaded(timeout time.Duration) error

	// ScrollToBottom scrolls the page to its maximum vertical extent.
	ScrollToBottom() error
}

// Recorder captures screenshots tagged with a label, returning the
// stored path.
type Recorder interface {
	Capture(ctx context.Context, label string) (string, error)
}

// Timing carries the fixed delays and timeouts of step execution.
// Target pages render asynchronously, so every action is followed by a
// settle delay before the next observation.
type Timing struct {
	NavTimeout       time.Duration
	NavRetryTimeout  time.Duration
	NavSettle        time.Duration
	ActionSettle     time.Duration
	LoadStateTimeout time.Duration
	CandidateTimeout time.Duration
	PasswordTimeout  time.Duration
	DefaultWait      time.Duration
}

// DefaultTiming returns the engine's standard step timing.
func DefaultTiming() Timing {
	return Timing{
		NavTimeout:       30 * time.Second,
		NavRetryTimeout:  15 * time.Second,
		NavSettle:        2 * time.Second,
		ActionSettle:     time.Second,
		LoadStateTimeout: 10 * time.Second,
		CandidateTimeout: selector.DefaultCandidateTimeout,
		PasswordTimeout:  selector.PasswordCandidateTimeout,
		DefaultWait:      2 * time.Second,
	}
}

// Executor runs individual plan steps. It is stateless across steps and
// safe to reuse for every step of a job.
type Executor struct {
	timing Timing
	logger logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a step executor.
func New(timing Timing, log logger.Logger) *Executor {
	return &Executor{
		timing: timing,
		logger: log,
		sleep:  sleepCtx,
	}
}

// Run executes one step and returns its outcome. It never returns an
// error and never panics outward; failures are reported through the
// ExecutedStep, with a best-effort error screenshot attached.
func (e *Executor) Run(ctx context.Context, page Page, rec Recorder, step plan.Step, index int, req plan.Request) (executed report.ExecutedStep) {
	executed = report.ExecutedStep{
		Index:       index,
		Action:      step.Action,
		Description: step.Description,
		Optional:    step.IsOptional,
	}

	defer func() {
		executed.Timestamp = time.Now()
		if r := recover(); r != nil {
			e.logger.Error(ctx, "step panicked", map[string]interface{}{
				"action": string(step.Action),
				"panic":  fmt.Sprint(r),
			})
			executed.Success = false
			executed.Error = fmt.Sprintf("step panicked: %v", r)
			e.attachErrorScreenshot(ctx, rec, &executed)
		}
	}()

	shot, err := e.run(ctx, page, rec, step, req)
	if err != nil {
		e.logger.Warn(ctx, "step failed", map[string]interface{}{
			"action": string(step.Action),
			"target": step.Target,
			"error":  err.Error(),
		})
		executed.Error = err.Error()
		e.attachErrorScreenshot(ctx, rec, &executed)
		return executed
	}

	executed.Success = true
	executed.ScreenshotPath = shot
	return executed
}

func (e *Executor) run(ctx context.Context, page Page, rec Recorder, step plan.Step, req plan.Request) (string, error) {
	switch step.Action {
	case plan.ActionNavigate:
		return e.runNavigate(ctx, page, rec, step, req)
	case plan.ActionClick:
		return e.runClick(ctx, page, rec, step)
	case plan.ActionType:
		return e.runType(ctx, page, rec, step, req)
	case plan.ActionVerify:
		return e.runVerify(ctx, page, step)
	case plan.ActionWait:
		return "", e.runWait(ctx, step)
	case plan.ActionScreenshot:
		return e.runScreenshot(ctx, rec, step)
	case plan.ActionScroll:
		return e.runScroll(ctx, page, rec)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAction, step.Action)
	}
}

// runNavigate loads the step target (defaulting to the request URL), first
// with a full network-idle wait, then once more with the weaker
// content-loaded condition when the idle wait times out. Heavy pages
// never go network-idle but are still perfectly testable.
func (e *Executor) runNavigate(ctx context.Context, page Page, rec Recorder, step plan.Step, req plan.Request) (string, error) {
	target := strings.TrimSpace(step.Target)
	if target == "" {
		target = req.URL
	}
	url := plan.NormalizeURL(target)

	if err := page.Navigate(url, NavWaitNetworkIdle, e.timing.NavTimeout); err != nil {
		e.logger.Warn(ctx, "network-idle navigation failed, retrying with content-loaded wait", map[string]interface{}{
			"url":   url,
			"error": err.Error(),
		})
		if err := page.Navigate(url, NavWaitDOMContentLoaded, e.timing.NavRetryTimeout); err != nil {
			return "", fmt.Errorf("navigation to %s failed: %w", url, err)
		}
	}

	// Client-side frameworks keep rendering after load; give them room.
	if err := e.sleep(ctx, e.timing.NavSettle); err != nil {
		return "", err
	}
	return e.capture(ctx, rec, "navigate"), nil
}

func (e *Executor) runClick(ctx context.Context, page Page, rec Recorder, step plan.Step) (string, error) {
	res := selector.NewResolver(page, e.logger)
	el, err := res.Resolve(ctx, step.Target, selector.IntentClick, selector.Options{
		Timeout: e.timing.CandidateTimeout,
	})
	if err != nil {
		return "", err
	}
	if err := el.Click(); err != nil {
		return "", fmt.Errorf("click on %q failed: %w", step.Target, err)
	}

	// The click may trigger navigation; wait for a stable load state
	// but do not fail the step when the page never fully settles.
	if err := page.WaitLoaded(e.timing.LoadStateTimeout); err != nil {
		e.logger.Debug(ctx, "load state wait after click timed out", map[string]interface{}{
			"target": step.Target,
		})
	}
	if err := e.sleep(ctx, e.timing.ActionSettle); err != nil {
		return "", err
	}
	return e.capture(ctx, rec, "click"), nil
}

func (e *Executor) runType(ctx context.Context, page Page, rec Recorder, step plan.Step, req plan.Request) (string, error) {
	value := plan.SubstitutePlaceholders(step.Value, req.Parameters)

	// Password fields frequently render dynamically after a prior step,
	// so they get a longer discovery timeout.
	passwordLike := selector.LooksLikePassword(step.Target, step.Value) ||
		plan.UsesPlaceholder(step.Value, "password")
	timeout := e.timing.CandidateTimeout
	if passwordLike {
		timeout = e.timing.PasswordTimeout
	}

	res := selector.NewResolver(page, e.logger)
	el, err := res.Resolve(ctx, step.Target, selector.IntentType, selector.Options{
		Timeout:      timeout,
		PasswordLike: passwordLike,
		EmailLike:    selector.LooksLikeEmail(step.Target, value),
	})
	if err != nil {
		return "", err
	}
	if err := el.Fill(value); err != nil {
		return "", fmt.Errorf("fill on %q failed: %w", step.Target, err)
	}
	return e.capture(ctx, rec, "type"), nil
}

// runVerify resolves the target without mutating anything. Resolution
// failure is the step failure; no screenshot is required.
func (e *Executor) runVerify(ctx context.Context, page Page, step plan.Step) (string, error) {
	res := selector.NewResolver(page, e.logger)
	_, err := res.Resolve(ctx, step.Target, selector.IntentVerify, selector.Options{
		Timeout: e.timing.CandidateTimeout,
	})
	return "", err
}

// runWait suspends for the step value in milliseconds, defaulting when
// the value does not parse.
func (e *Executor) runWait(ctx context.Context, step plan.Step) error {
	d := e.timing.DefaultWait
	if ms, err := strconv.Atoi(strings.TrimSpace(step.Value)); err == nil && ms >= 0 {
		d = time.Duration(ms) * time.Millisecond
	}
	return e.sleep(ctx, d)
}

// runScreenshot captures an artifact tagged with the step target. Unlike
// the incidental captures after other actions, the artifact is the whole
// point here, so a capture failure fails the step.
func (e *Executor) runScreenshot(ctx context.Context, rec Recorder, step plan.Step) (string, error) {
	label := strings.TrimSpace(step.Target)
	if label == "" {
		label = "screenshot"
	}
	shot, err := rec.Capture(ctx, label)
	if err != nil {
		return "", fmt.Errorf("screenshot capture failed: %w", err)
	}
	return shot, nil
}

func (e *Executor) runScroll(ctx context.Context, page Page, rec Recorder) (string, error) {
	if err := page.ScrollToBottom(); err != nil {
		return "", fmt.Errorf("scroll failed: %w", err)
	}
	if err := e.sleep(ctx, e.timing.ActionSettle); err != nil {
		return "", err
	}
	return e.capture(ctx, rec, "scroll"), nil
}

// capture takes a best-effort screenshot; capture failures are logged
// and never fail the step.
func (e *Executor) capture(ctx context.Context, rec Recorder, label string) string {
	shot, err := rec.Capture(ctx, label)
	if err != nil {
		e.logger.Warn(ctx, "screenshot capture failed", map[string]interface{}{
			"label": label,
			"error": err.Error(),
		})
		return ""
	}
	return shot
}

func (e *Executor) attachErrorScreenshot(ctx context.Context, rec Recorder, executed *report.ExecutedStep) {
	if executed.ScreenshotPath != "" {
		return
	}
	if shot, err := rec.Capture(ctx, "error"); err == nil {
		executed.ScreenshotPath = shot
	}
}

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

package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/probelab/uitester/executor"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
	"github.com/probelab/uitester/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPage struct {
	shots   []string
	shotErr error
}

func (p *stubPage) WaitVisible(sel string, timeout time.Duration) (selector.Element, error) {
	return nil, errors.New("not visible")
}
func (p *stubPage) FindAll(sel string) ([]selector.Element, error) { return nil, nil }
func (p *stubPage) Navigate(url string, wait executor.NavWait, timeout time.Duration) error {
	return nil
}
func (p *stubPage) WaitLoaded(timeout time.Duration) error { return nil }
func (p *stubPage) ScrollToBottom() error                  { return nil }
func (p *stubPage) Screenshot(path string) error {
	if p.shotErr != nil {
		return p.shotErr
	}
	p.shots = append(p.shots, path)
	return nil
}

type stubSession struct {
	page *stubPage

	traceStartErr error
	traceStopErr  error
	closePageErr  error

	tracePath  string
	pageClosed bool
	closed     bool
}

func (s *stubSession) Page() Page          { return s.page }
func (s *stubSession) StartTracing() error { return s.traceStartErr }
func (s *stubSession) StopTracing(path string) error {
	if s.traceStopErr != nil {
		return s.traceStopErr
	}
	s.tracePath = path
	return nil
}
func (s *stubSession) ClosePage() error {
	s.pageClosed = true
	return s.closePageErr
}
func (s *stubSession) Close() { s.closed = true }

type stubLauncher struct {
	session   *stubSession
	launchErr error
	// recordVideo mimics the browser dropping a recording into the
	// per-job temp directory.
	recordVideo bool
}

func (l *stubLauncher) Launch(videoDir string) (Session, error) {
	if l.launchErr != nil {
		return nil, l.launchErr
	}
	if l.recordVideo {
		name := filepath.Join(videoDir, "pw-recording.webm")
		if err := os.WriteFile(name, []byte("webm"), 0o644); err != nil {
			return nil, err
		}
	}
	return l.session, nil
}

type scriptedRunner struct {
	failAt  map[int]bool
	panicAt int
	calls   int
}

func (r *scriptedRunner) Run(ctx context.Context, page executor.Page, rec executor.Recorder, step plan.Step, index int, req plan.Request) report.ExecutedStep {
	r.calls++
	if r.panicAt > 0 && index == r.panicAt-1 {
		panic("browser process died")
	}
	shot, _ := rec.Capture(ctx, string(step.Action))
	return report.ExecutedStep{
		Index:          index,
		Action:         step.Action,
		Success:        !r.failAt[index],
		Optional:       step.IsOptional,
		ScreenshotPath: shot,
		Error:          errText(r.failAt[index]),
		Timestamp:      time.Now(),
	}
}

func errText(failed bool) string {
	if failed {
		return "no usable element found"
	}
	return ""
}

func newTestEngine(t *testing.T, launcher Launcher, runner Runner) *Engine {
	t.Helper()
	e := New(launcher, runner, t.TempDir(), logger.NewTestLogger())
	e.wait = func(d time.Duration) {}
	e.newJobID = func() string { return "abcd1234" }
	return e
}

func loginPlan() plan.Plan {
	return plan.Plan{
		Description: "login flow",
		Steps: []plan.Step{
			{Action: plan.ActionNavigate},
			{Action: plan.ActionType, Target: "#email", Value: "{email}"},
			{Action: plan.ActionClick, Target: "#submit"},
			{Action: plan.ActionVerify, Target: "#dashboard", IsOptional: true},
		},
	}
}

func TestEngine_Execute(t *testing.T) {
	req := plan.Request{URL: "https://example.com", TestIntent: "log in"}

	t.Run("all steps passing yields success with full artifacts", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		runner := &scriptedRunner{}
		e := newTestEngine(t, launcher, runner)

		result := e.Execute(context.Background(), req, loginPlan())

		require.True(t, result.Success, result.ErrorMessage)
		assert.Equal(t, "abcd1234", result.JobID)
		require.Len(t, result.ExecutedSteps, 4)
		for i, step := range result.ExecutedSteps {
			assert.Equal(t, i, step.Index)
		}
		// Four per-step captures plus the unconditional final one.
		assert.Len(t, result.ScreenshotPaths, 5)
		assert.NotEmpty(t, result.TracePath)
		assert.NotEmpty(t, result.VideoPath)
		assert.FileExists(t, result.VideoPath)
		assert.True(t, session.pageClosed)
		assert.True(t, session.closed)
		assert.Empty(t, result.CleanupErrors)
	})

	t.Run("required step failure short-circuits the plan", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		runner := &scriptedRunner{failAt: map[int]bool{1: true}}
		e := newTestEngine(t, launcher, runner)

		result := e.Execute(context.Background(), req, loginPlan())

		assert.False(t, result.Success)
		assert.Len(t, result.ExecutedSteps, 2)
		assert.Equal(t, 2, runner.calls)
		// Artifacts are still finalized on the failure path.
		assert.NotEmpty(t, result.TracePath)
		assert.NotEmpty(t, result.VideoPath)
		assert.True(t, session.closed)
	})

	t.Run("optional step failure does not stop or flip the job", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		runner := &scriptedRunner{failAt: map[int]bool{3: true}}
		e := newTestEngine(t, launcher, runner)

		result := e.Execute(context.Background(), req, loginPlan())

		assert.True(t, result.Success, result.ErrorMessage)
		assert.Len(t, result.ExecutedSteps, 4)
		assert.Equal(t, 4, runner.calls)
	})

	t.Run("empty plan is trivially successful with only the final screenshot", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		e := newTestEngine(t, launcher, &scriptedRunner{})

		result := e.Execute(context.Background(), req, plan.Plan{})

		assert.True(t, result.Success, result.ErrorMessage)
		assert.Empty(t, result.ExecutedSteps)
		assert.Len(t, result.ScreenshotPaths, 1)
	})

	t.Run("launch failure fails the job before any step", func(t *testing.T) {
		launcher := &stubLauncher{launchErr: errors.New("chromium not installed")}
		runner := &scriptedRunner{}
		e := newTestEngine(t, launcher, runner)

		result := e.Execute(context.Background(), req, loginPlan())

		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "acquire browser session")
		assert.Zero(t, runner.calls)
	})

	t.Run("panic during iteration becomes a job fault with finalization intact", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		runner := &scriptedRunner{panicAt: 3}
		e := newTestEngine(t, launcher, runner)

		result := e.Execute(context.Background(), req, loginPlan())

		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "job panicked")
		assert.Contains(t, result.ErrorMessage, "browser process died")
		assert.Len(t, result.ExecutedSteps, 2)
		assert.True(t, session.pageClosed)
		assert.True(t, session.closed)
		assert.NotEmpty(t, result.VideoPath)
	})

	t.Run("cleanup failures are recorded, not raised", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}, closePageErr: errors.New("target closed")}
		launcher := &stubLauncher{session: session, recordVideo: true}
		e := newTestEngine(t, launcher, &scriptedRunner{})

		result := e.Execute(context.Background(), req, loginPlan())

		assert.True(t, result.Success, result.ErrorMessage)
		require.Len(t, result.CleanupErrors, 1)
		assert.Contains(t, result.CleanupErrors[0], "close page")
	})

	t.Run("missing video recording is a cleanup error only", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: false}
		e := newTestEngine(t, launcher, &scriptedRunner{})

		result := e.Execute(context.Background(), req, loginPlan())

		assert.True(t, result.Success, result.ErrorMessage)
		assert.Empty(t, result.VideoPath)
		require.NotEmpty(t, result.CleanupErrors)
		assert.Contains(t, result.CleanupErrors[0], "finalize video")
	})

	t.Run("trace start failure skips trace stop without failing the job", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}, traceStartErr: errors.New("tracing unavailable")}
		launcher := &stubLauncher{session: session, recordVideo: true}
		e := newTestEngine(t, launcher, &scriptedRunner{})

		result := e.Execute(context.Background(), req, loginPlan())

		assert.True(t, result.Success, result.ErrorMessage)
		assert.Empty(t, result.TracePath)
		assert.Empty(t, session.tracePath)
	})

	t.Run("cancelled context aborts before the next step", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		runner := &scriptedRunner{}
		e := newTestEngine(t, launcher, runner)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result := e.Execute(ctx, req, loginPlan())

		assert.False(t, result.Success)
		assert.Contains(t, result.ErrorMessage, "job cancelled")
		assert.Zero(t, runner.calls)
		assert.True(t, session.closed)
	})

	t.Run("fresh job ids never reuse artifact paths", func(t *testing.T) {
		session := &stubSession{page: &stubPage{}}
		launcher := &stubLauncher{session: session, recordVideo: true}
		e := newTestEngine(t, launcher, &scriptedRunner{})
		ids := []string{"job1aaaa", "job2bbbb"}
		e.newJobID = func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}

		first := e.Execute(context.Background(), req, plan.Plan{})
		second := e.Execute(context.Background(), req, plan.Plan{})

		assert.NotEqual(t, first.VideoPath, second.VideoPath)
		assert.NotEqual(t, first.TracePath, second.TracePath)
		for _, p := range second.ScreenshotPaths {
			assert.NotContains(t, first.ScreenshotPaths, p)
		}
	})
}

func TestEngine_Execute_DurationIsMeasured(t *testing.T) {
	session := &stubSession{page: &stubPage{}}
	launcher := &stubLauncher{session: session, recordVideo: true}
	e := newTestEngine(t, launcher, &scriptedRunner{})

	result := e.Execute(context.Background(), plan.Request{URL: "https://example.com"}, plan.Plan{})
	assert.Greater(t, result.Duration, time.Duration(0))
}

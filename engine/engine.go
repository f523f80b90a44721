package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/probelab/uitester/artifact"
	"github.com/probelab/uitester/executor"
	"github.com/probelab/uitester/internal/jobid"
	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
)

// DefaultVideoGrace is how long finalization waits after closing the
// page for the video recording to flush to disk.
const DefaultVideoGrace = 1 * time.Second

// Page is the slice of a browser page the engine and its collaborators
// drive: step execution plus screenshot capture.
type Page interface {
	executor.Page
	artifact.Screenshotter
}

// Session is one exclusively owned browser instance serving a single
// job from launch to teardown.
type Session interface {
	Page() Page
	StartTracing() error
	StopTracing(path string) error
	ClosePage() error
	Close()
}

// Launcher creates sessions. A non-empty videoDir enables video
// recording into that directory.
type Launcher interface {
	Launch(videoDir string) (Session, error)
}

// Runner executes a single plan step. *executor.Executor satisfies
// this.
type Runner interface {
	Run(ctx context.Context, page executor.Page, rec executor.Recorder, step plan.Step, index int, req plan.Request) report.ExecutedStep
}

// Engine runs whole test plans: one job, one browser session, steps
// strictly in plan order with guaranteed artifact finalization on every
// exit path.
type Engine struct {
	launcher      Launcher
	runner        Runner
	artifactsRoot string
	logger        logger.Logger

	videoGrace time.Duration
	wait       func(d time.Duration)
	newJobID   func() string
}

// New creates an engine writing artifacts under artifactsRoot.
func New(launcher Launcher, runner Runner, artifactsRoot string, log logger.Logger) *Engine {
	return &Engine{
		launcher:      launcher,
		runner:        runner,
		artifactsRoot: artifactsRoot,
		logger:        log,
		videoGrace:    DefaultVideoGrace,
		wait:          time.Sleep,
		newJobID:      jobid.New,
	}
}

// Execute runs the plan against a fresh browser session and returns
// the aggregated result. It never returns an error; every fault is
// folded into the result. The context aborts in-flight waits and
// navigations but never skips finalization.
func (e *Engine) Execute(ctx context.Context, req plan.Request, p plan.Plan) report.Result {
	start := time.Now()
	result := report.Result{
		JobID:      e.newJobID(),
		URL:        req.URL,
		TestIntent: req.TestIntent,
	}

	e.logger.Info(ctx, "job started", map[string]interface{}{
		"job_id": result.JobID,
		"url":    req.URL,
		"steps":  len(p.Steps),
	})

	layout, err := artifact.NewLayout(e.artifactsRoot, result.JobID)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("prepare artifacts: %v", err)
		result.Duration = time.Since(start)
		return result
	}

	session, err := e.launcher.Launch(layout.VideoTempDir())
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("acquire browser session: %v", err)
		_ = os.RemoveAll(layout.VideoTempDir())
		result.Duration = time.Since(start)
		return result
	}

	traceStarted := false
	if err := session.StartTracing(); err != nil {
		e.logger.Warn(ctx, "trace start failed", map[string]interface{}{
			"job_id": result.JobID,
			"error":  err.Error(),
		})
	} else {
		traceStarted = true
	}

	page := session.Page()
	rec := artifact.NewRecorder(layout, page, e.logger)

	e.runSteps(ctx, page, rec, p, req, &result)

	// One unconditional capture of the end state, on every exit path.
	if shot, err := rec.Capture(ctx, "final"); err == nil {
		result.ScreenshotPaths = append(result.ScreenshotPaths, shot)
	}

	result.Success = result.ErrorMessage == "" && report.AllStepsAcceptable(result.ExecutedSteps)

	e.finalize(ctx, session, layout, traceStarted, &result)

	result.Duration = time.Since(start)
	e.logger.Info(ctx, "job finished", map[string]interface{}{
		"job_id":   result.JobID,
		"success":  result.Success,
		"steps":    len(result.ExecutedSteps),
		"duration": result.Duration.String(),
	})
	return result
}

// runSteps iterates the plan in order, short-circuiting on the first
// required step failure. It is the error boundary for step iteration:
// a panic is converted into a job fault with a best-effort error
// screenshot, never propagated.
func (e *Engine) runSteps(ctx context.Context, page Page, rec executor.Recorder, p plan.Plan, req plan.Request, result *report.Result) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error(ctx, "job panicked", map[string]interface{}{
				"job_id": result.JobID,
				"panic":  fmt.Sprint(r),
			})
			result.ErrorMessage = fmt.Sprintf("job panicked: %v", r)
			if shot, err := rec.Capture(ctx, "error"); err == nil {
				result.ScreenshotPaths = append(result.ScreenshotPaths, shot)
			}
		}
	}()

	for i, step := range p.Steps {
		if err := ctx.Err(); err != nil {
			result.ErrorMessage = fmt.Sprintf("job cancelled: %v", err)
			return
		}

		executed := e.runner.Run(ctx, page, rec, step, i, req)
		result.ExecutedSteps = append(result.ExecutedSteps, executed)
		if executed.ScreenshotPath != "" {
			result.ScreenshotPaths = append(result.ScreenshotPaths, executed.ScreenshotPath)
		}

		if !executed.Success && !executed.Optional {
			e.logger.Warn(ctx, "required step failed, aborting remaining plan", map[string]interface{}{
				"job_id": result.JobID,
				"index":  i,
				"action": string(step.Action),
				"error":  executed.Error,
			})
			return
		}
	}
}

// finalize tears the session down in a fixed order: close the page to
// flush the video, stop the trace, wait out the flush grace, relocate
// the video, then close everything. Each sub-failure is recorded on the
// result and logged; none may alter the already decided success value.
func (e *Engine) finalize(ctx context.Context, session Session, layout *artifact.Layout, traceStarted bool, result *report.Result) {
	record := func(stage string, err error) {
		if err == nil {
			return
		}
		e.logger.Warn(ctx, "cleanup step failed", map[string]interface{}{
			"job_id": result.JobID,
			"stage":  stage,
			"error":  err.Error(),
		})
		result.CleanupErrors = append(result.CleanupErrors, fmt.Sprintf("%s: %v", stage, err))
	}

	record("close page", session.ClosePage())

	if traceStarted {
		if err := session.StopTracing(layout.TracePath()); err != nil {
			record("stop trace", err)
		} else {
			result.TracePath = layout.TracePath()
		}
	}

	e.wait(e.videoGrace)
	if path, err := layout.FinalizeVideo(); err != nil {
		record("finalize video", err)
	} else {
		result.VideoPath = path
	}

	session.Close()
}

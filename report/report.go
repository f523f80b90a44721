package report

import (
	"time"

	"github.com/probelab/uitester/plan"
)

// ExecutedStep records the outcome of one plan step. It is created
// exactly once per attempted step, in plan order, after the step
// completes. Index references the position of the originating step in
// the plan, so optionality never has to be re-derived from descriptions.
type ExecutedStep struct {
	Index          int         `json:"index"`
	Action         plan.Action `json:"action"`
	Description    string      `json:"description"`
	Success        bool        `json:"success"`
	Error          string      `json:"error,omitempty"`
	Optional       bool        `json:"optional,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
	ScreenshotPath string      `json:"screenshot_path,omitempty"`
}

// Result is the verifiable report of one job. It is owned exclusively by
// the orchestrator until returned to the caller, and immutable after.
type Result struct {
	JobID           string         `json:"job_id"`
	URL             string         `json:"url"`
	TestIntent      string         `json:"test_intent"`
	Success         bool           `json:"success"`
	Duration        time.Duration  `json:"duration"`
	ExecutedSteps   []ExecutedStep `json:"executed_steps"`
	ScreenshotPaths []string       `json:"screenshot_paths,omitempty"`
	TracePath       string         `json:"trace_path,omitempty"`
	VideoPath       string         `json:"video_path,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	CleanupErrors   []string       `json:"cleanup_errors,omitempty"`
	AIAnalysis      string         `json:"ai_analysis,omitempty"`
}

// AllStepsAcceptable reports whether every executed step either succeeded
// or was optional. A job with zero executed steps is trivially acceptable:
// absence of failure is success.
func AllStepsAcceptable(steps []ExecutedStep) bool {
	for _, s := range steps {
		if !s.Success && !s.Optional {
			return false
		}
	}
	return true
}

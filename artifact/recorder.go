package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/probelab/uitester/logger"
)

// Screenshotter captures a full page image to a path. The browser page
// adapter satisfies this.
type Screenshotter interface {
	Screenshot(path string) error
}

// Recorder captures screenshots for one job under that job's layout.
type Recorder struct {
	layout *Layout
	page   Screenshotter
	logger logger.Logger

	now func() time.Time
}

// NewRecorder creates a recorder bound to a job layout and page.
func NewRecorder(layout *Layout, page Screenshotter, log logger.Logger) *Recorder {
	return &Recorder{
		layout: layout,
		page:   page,
		logger: log,
		now:    time.Now,
	}
}

// Capture takes a full page screenshot tagged with label and returns
// the path it was written to.
func (r *Recorder) Capture(ctx context.Context, label string) (string, error) {
	path := r.layout.ScreenshotPath(label, r.now())
	if err := r.page.Screenshot(path); err != nil {
		return "", fmt.Errorf("screenshot %q: %w", label, err)
	}
	r.logger.Debug(ctx, "screenshot captured", map[string]interface{}{
		"label": label,
		"path":  path,
	})
	return path, nil
}

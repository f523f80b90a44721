package artifact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoVideo is returned by FinalizeVideo when the recording
	// directory holds no video file.
	ErrNoVideo = errors.New("no video file produced")
)

// Layout fixes where a job's artifacts live on disk. Screenshots share
// one directory across jobs; videos and traces get one file per job.
// Every name is keyed by jobID, so concurrent jobs never collide.
//
//	{root}/screenshots/{jobID}_{label}_{HHmmss}.png
//	{root}/videos/{jobID}.webm
//	{root}/traces/{jobID}.zip
type Layout struct {
	root  string
	jobID string
}

// NewLayout creates the artifact directories for a job, including the
// temporary per-job video recording directory.
func NewLayout(root, jobID string) (*Layout, error) {
	l := &Layout{root: root, jobID: jobID}
	for _, dir := range []string{
		l.screenshotsDir(),
		l.videosDir(),
		l.tracesDir(),
		l.VideoTempDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create artifact dir %s: %w", dir, err)
		}
	}
	return l, nil
}

func (l *Layout) screenshotsDir() string { return filepath.Join(l.root, "screenshots") }
func (l *Layout) videosDir() string      { return filepath.Join(l.root, "videos") }
func (l *Layout) tracesDir() string      { return filepath.Join(l.root, "traces") }

// VideoTempDir is where the browser context records its video before
// finalization relocates it.
func (l *Layout) VideoTempDir() string {
	return filepath.Join(l.videosDir(), l.jobID+"_recording")
}

// ScreenshotPath returns the path for a capture taken at t.
func (l *Layout) ScreenshotPath(label string, t time.Time) string {
	name := fmt.Sprintf("%s_%s_%s.png", l.jobID, sanitizeLabel(label), t.Format("150405"))
	return filepath.Join(l.screenshotsDir(), name)
}

// VideoPath is the stable path the finalized video is moved to.
func (l *Layout) VideoPath() string {
	return filepath.Join(l.videosDir(), l.jobID+".webm")
}

// TracePath is where the trace archive is written at job end.
func (l *Layout) TracePath() string {
	return filepath.Join(l.tracesDir(), l.jobID+".zip")
}

// FinalizeVideo moves the single recorded video file from the temp
// directory to the stable jobID-keyed path and removes the temp
// directory. Call only after the page has closed and the recording has
// flushed.
func (l *Layout) FinalizeVideo() (string, error) {
	tempDir := l.VideoTempDir()
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		return "", fmt.Errorf("read video dir: %w", err)
	}

	var src string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".webm") {
			src = filepath.Join(tempDir, e.Name())
			break
		}
	}
	if src == "" {
		_ = os.RemoveAll(tempDir)
		return "", ErrNoVideo
	}

	dst := l.VideoPath()
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move video: %w", err)
	}
	if err := os.RemoveAll(tempDir); err != nil {
		return dst, fmt.Errorf("remove video temp dir: %w", err)
	}
	return dst, nil
}

// sanitizeLabel keeps screenshot names filesystem safe: lower case,
// spaces collapsed to dashes, everything outside [a-z0-9_-] dropped.
func sanitizeLabel(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return "screenshot"
	}
	var b strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "screenshot"
	}
	return b.String()
}

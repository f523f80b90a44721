package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/probelab/uitester/logger"
	"github.com/probelab/uitester/report"
)

// Mirror copies a finished job's artifacts into blob storage under
// jobs/{jobID}/ so reporting collaborators can fetch them after local
// disks are recycled. Mirroring is best-effort: individual upload
// failures are logged and skipped, never surfaced to the job.
type Mirror struct {
	store  BlobStorage
	logger logger.Logger
}

// NewMirror creates a mirror writing into store.
func NewMirror(store BlobStorage, log logger.Logger) *Mirror {
	return &Mirror{store: store, logger: log}
}

// MirrorResult uploads every artifact the result references and
// returns the keys written.
func (m *Mirror) MirrorResult(ctx context.Context, result report.Result) []string {
	var keys []string

	for _, shot := range result.ScreenshotPaths {
		if key := m.upload(ctx, result.JobID, "screenshots", shot); key != "" {
			keys = append(keys, key)
		}
	}
	if key := m.upload(ctx, result.JobID, "videos", result.VideoPath); key != "" {
		keys = append(keys, key)
	}
	if key := m.upload(ctx, result.JobID, "traces", result.TracePath); key != "" {
		keys = append(keys, key)
	}

	return keys
}

func (m *Mirror) upload(ctx context.Context, jobID, kind, local string) string {
	if local == "" {
		return ""
	}

	f, err := os.Open(local)
	if err != nil {
		m.logger.Warn(ctx, "artifact missing, skipping mirror", map[string]interface{}{
			"job_id": jobID,
			"path":   local,
			"error":  err.Error(),
		})
		return ""
	}
	defer f.Close()

	key := path.Join("jobs", jobID, kind, filepath.Base(local))
	if err := m.store.Upload(ctx, key, f); err != nil {
		m.logger.Warn(ctx, "artifact mirror upload failed", map[string]interface{}{
			"job_id": jobID,
			"key":    key,
			"error":  err.Error(),
		})
		return ""
	}

	return key
}

package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/probelab/uitester/logger"
	"gorm.io/gorm"
)

// MySQLStore implements the Store interface using GORM and MySQL.
type MySQLStore struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewMySQLStore creates a new MySQL-backed job store.
func NewMySQLStore(db *gorm.DB, log logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:     db,
		logger: log,
	}
}

// Create creates a new job in the database.
func (s *MySQLStore) Create(ctx context.Context, j *Job) error {
	if err := j.Validate(); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(j).Error; err != nil {
		s.logger.Error(ctx, "failed to create job", map[string]interface{}{
			"error": err.Error(),
			"url":   j.Request.URL,
		})
		return err
	}

	s.logger.Info(ctx, "job created", map[string]interface{}{
		"job_id": j.ID.String(),
		"url":    j.Request.URL,
	})

	return nil
}

// GetByID retrieves a job by its ID.
func (s *MySQLStore) GetByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	err := s.db.WithContext(ctx).
		Where("id = ?", id).
		First(&j).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		s.logger.Error(ctx, "failed to get job by ID", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return nil, err
	}

	return &j, nil
}

// Update updates a job with the given setters.
func (s *MySQLStore) Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error {
	j, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	for _, setter := range setters {
		if err := setter(j); err != nil {
			return err
		}
	}

	if err := s.db.WithContext(ctx).Save(j).Error; err != nil {
		s.logger.Error(ctx, "failed to update job", map[string]interface{}{
			"error":  err.Error(),
			"job_id": id.String(),
		})
		return err
	}

	return nil
}

// List retrieves a paginated list of jobs, newest first.
func (s *MySQLStore) List(ctx context.Context, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list jobs", map[string]interface{}{
			"error":  err.Error(),
			"limit":  limit,
			"offset": offset,
		})
		return nil, err
	}

	return jobs, nil
}

// Count returns the total number of jobs.
func (s *MySQLStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&Job{}).
		Count(&count).Error

	if err != nil {
		s.logger.Error(ctx, "failed to count jobs", map[string]interface{}{
			"error": err.Error(),
		})
		return 0, err
	}

	return int(count), nil
}

// ListByStatus retrieves a paginated list of jobs in the given status.
func (s *MySQLStore) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Job, error) {
	var jobs []*Job
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&jobs).Error

	if err != nil {
		s.logger.Error(ctx, "failed to list jobs by status", map[string]interface{}{
			"error":  err.Error(),
			"status": string(status),
		})
		return nil, err
	}

	return jobs, nil
}

// Complete marks a job as finished with the given status and result.
func (s *MySQLStore) Complete(ctx context.Context, id uuid.UUID, status Status, result *ResultJSON) error {
	return s.Update(ctx, id, func(j *Job) error {
		return j.Complete(status, result)
	})
}

// ClaimNextCreated claims the oldest created job with a guarded update
// so two workers can never claim the same row.
func (s *MySQLStore) ClaimNextCreated(ctx context.Context) (*Job, error) {
	for {
		var j Job
		err := s.db.WithContext(ctx).
			Where("status = ?", StatusCreated).
			Order("created_at ASC").
			First(&j).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil
			}
			return nil, err
		}

		now := time.Now()
		res := s.db.WithContext(ctx).
			Model(&Job{}).
			Where("id = ? AND status = ?", j.ID, StatusCreated).
			Updates(map[string]interface{}{
				"status":     StatusRunning,
				"start_time": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			// Another worker got there first; try the next one.
			continue
		}

		j.Status = StatusRunning
		j.StartTime = &now
		s.logger.Info(ctx, "job claimed", map[string]interface{}{
			"job_id": j.ID.String(),
		})
		return &j, nil
	}
}

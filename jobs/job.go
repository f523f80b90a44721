package jobs

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/probelab/uitester/plan"
	"github.com/probelab/uitester/report"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidStatus     = errors.New("invalid job status")
	ErrJobAlreadyStarted = errors.New("job already started")
	ErrJobNotRunning     = errors.New("job is not running")
	ErrJobFinished       = errors.New("job already finished")
)

type Status string

const (
	StatusCreated Status = "created"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusFailed  Status = "failed"
	StatusSuccess Status = "success"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusCreated, StatusRunning, StatusStopped, StatusFailed, StatusSuccess:
		return true
	}
	return false
}

// Terminal reports whether a job in this status will never change
// again.
func (s Status) Terminal() bool {
	switch s {
	case StatusStopped, StatusFailed, StatusSuccess:
		return true
	}
	return false
}

// RequestJSON stores the test request as a JSON column.
type RequestJSON plan.Request

func (r RequestJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *RequestJSON) Scan(value interface{}) error {
	return scanJSON(value, r)
}

// PlanJSON stores the test plan as a JSON column.
type PlanJSON plan.Plan

func (p PlanJSON) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PlanJSON) Scan(value interface{}) error {
	return scanJSON(value, p)
}

// ResultJSON stores the execution result as a JSON column.
type ResultJSON report.Result

func (r ResultJSON) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *ResultJSON) Scan(value interface{}) error {
	return scanJSON(value, r)
}

func scanJSON(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		return errors.New("failed to scan JSON column: unsupported type")
	}
}

// Job is one queued end-to-end execution of a test plan.
type Job struct {
	ID        uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	Status    Status      `json:"status" gorm:"type:varchar(20);not null;default:'created';index:idx_jobs_status"`
	Request   RequestJSON `json:"request" gorm:"type:json"`
	Plan      PlanJSON    `json:"plan" gorm:"type:json"`
	Result    *ResultJSON `json:"result,omitempty" gorm:"type:json"`
	StartTime *time.Time  `json:"start_time,omitempty"`
	EndTime   *time.Time  `json:"end_time,omitempty"`
	Duration  *int64      `json:"duration,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

func (j *Job) Validate() error {
	req := plan.Request(j.Request)
	return req.Validate()
}

// Start marks the job as running.
func (j *Job) Start() error {
	if j.Status != StatusCreated {
		return ErrJobAlreadyStarted
	}
	now := time.Now()
	j.Status = StatusRunning
	j.StartTime = &now
	return nil
}

// Complete marks the job as finished with the given status and result.
func (j *Job) Complete(status Status, result *ResultJSON) error {
	if j.Status != StatusRunning {
		return ErrJobNotRunning
	}
	if status != StatusSuccess && status != StatusFailed && status != StatusStopped {
		return ErrInvalidStatus
	}
	now := time.Now()
	j.Status = status
	j.EndTime = &now
	j.Result = result
	if j.StartTime != nil {
		duration := now.Sub(*j.StartTime).Milliseconds()
		j.Duration = &duration
	}
	return nil
}

// Stop cancels a job that has not started running.
func (j *Job) Stop() error {
	if j.Status.Terminal() {
		return ErrJobFinished
	}
	if j.Status == StatusRunning {
		return ErrJobAlreadyStarted
	}
	now := time.Now()
	j.Status = StatusStopped
	j.EndTime = &now
	return nil
}

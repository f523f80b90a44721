package jobs

import (
	"context"

	"github.com/google/uuid"
)

type Store interface {
	Create(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)
	Update(ctx context.Context, id uuid.UUID, setters ...UpdateSetter) error
	List(ctx context.Context, limit, offset int) ([]*Job, error)
	Count(ctx context.Context) (int, error)
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]*Job, error)
	Complete(ctx context.Context, id uuid.UUID, status Status, result *ResultJSON) error

	// ClaimNextCreated atomically claims the oldest created job and
	// marks it running. Returns (nil, nil) when no job is waiting.
	ClaimNextCreated(ctx context.Context) (*Job, error)
}

type UpdateSetter func(*Job) error

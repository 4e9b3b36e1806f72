package activity

import (
	"context"

	"go.uber.org/zap"

	"github.com/yetuga/portal/internal/models"
	"github.com/yetuga/portal/internal/pkg/pagination"
	"github.com/yetuga/portal/internal/pkg/response"
)

// Repository persists and lists activity rows.
type Repository interface {
	Create(ctx context.Context, row *models.ActivityModel) error
	List(ctx context.Context, f Filter, q pagination.Query) ([]Record, response.Pagination, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Recorder is the Logger backed by a Repository. Every entry is mirrored to
// the process log; a row that cannot be stored is dropped with a warning.
type Recorder struct {
	repo   Repository
	logger *zap.Logger
}

func NewRecorder(repo Repository, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{repo: repo, logger: logger}
}

func (r *Recorder) Log(ctx context.Context, e Entry) {
	e = withClientDefaults(ctx, e)
	fields := []zap.Field{
		zap.Int64("user_id", e.UserID),
		zap.String("action", e.Action),
		zap.String("details", e.Details),
		zap.String("ip", e.IPAddress),
	}
	r.logger.Info("activity", fields...)
	if r.repo == nil {
		return
	}

	row := &models.ActivityModel{
		UserID:    e.UserID,
		Action:    e.Action,
		Details:   e.Details,
		IPAddress: e.IPAddress,
		UserAgent: e.UserAgent,
	}
	if err := r.repo.Create(ctx, row); err != nil {
		r.logger.Warn("activity log write failed", append(fields, zap.Error(err))...)
	}
}

// List passes through to the repository.
func (r *Recorder) List(ctx context.Context, f Filter, q pagination.Query) ([]Record, response.Pagination, error) {
	if r.repo == nil {
		return []Record{}, pagination.Normalize(q).Meta(0), nil
	}
	return r.repo.List(ctx, f, q)
}

// Recent passes through to the repository.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	if r.repo == nil {
		return []Record{}, nil
	}
	return r.repo.Recent(ctx, limit)
}

func toRecord(m models.ActivityModel) Record {
	return Record{
		ID:        m.ID,
		UserID:    m.UserID,
		Action:    m.Action,
		Details:   m.Details,
		IPAddress: m.IPAddress,
		UserAgent: m.UserAgent,
		CreatedAt: m.CreatedAt,
	}
}

package audit

import (
	"context"
	"encoding/json"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/turtacn/possync/internal/config"
	"github.com/turtacn/possync/internal/domain/models"
	"github.com/turtacn/possync/pkg/errors"
	"github.com/turtacn/possync/pkg/logger"
)

// RunRecorder persists one bookkeeping row per orchestration run.
type RunRecorder interface {
	RecordRun(ctx context.Context, report models.RunReport) error
}

// GormRunRecorder writes sync_runs rows through gorm. The table carries no
// tenant column and sits outside the row-level security policies.
type GormRunRecorder struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewGormRunRecorder opens a dedicated gorm handle for run bookkeeping.
func NewGormRunRecorder(cfg *config.DatabaseConfig, log logger.Logger) (*GormRunRecorder, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.ErrTransient("failed to open run recorder database").WithCause(err)
	}
	return &GormRunRecorder{
		db:     db,
		logger: log.WithComponent("GormRunRecorder"),
	}, nil
}

// RecordRun stores the run summary with the full result list as JSON detail.
func (r *GormRunRecorder) RecordRun(ctx context.Context, report models.RunReport) error {
	detail, err := json.Marshal(report.Results)
	if err != nil {
		return errors.ErrInternal("failed to marshal run detail").WithCause(err)
	}

	run := models.SyncRun{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Tenants:    report.Tenants,
		Tasks:      len(report.Results),
		Successes:  report.Successes,
		Indexed:    report.Indexed,
		Detail:     string(detail),
	}

	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		r.logger.Error(ctx, "failed to record sync run", err)
		return errors.ErrTransient("failed to record sync run").WithCause(err)
	}

	r.logger.Info(ctx, "sync run recorded",
		logger.Int64("run_id", int64(run.ID)),
		logger.Int("tasks", run.Tasks),
		logger.Int("successes", run.Successes),
	)
	return nil
}

var _ RunRecorder = (*GormRunRecorder)(nil)

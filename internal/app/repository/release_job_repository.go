package repository

import (
	"time"

	"github.com/ikkim/vintage-store-backend/internal/app/model"
	"github.com/ikkim/vintage-store-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReleaseJobRepository interface {
	// Schedule stores jobs, ignoring any whose (product, version) stamp already exists.
	Schedule(jobs []model.ReleaseJob) error
	FindDue(now time.Time, limit int) ([]model.ReleaseJob, error)
	MarkFinished(id uint, status model.ReleaseJobStatus) error
	// MarkAttemptFailed records a failed run. The job stays pending for the
	// next tick unless final is set.
	MarkAttemptFailed(id uint, reason string, final bool) error
}

type releaseJobRepository struct {
	db *gorm.DB
}

func NewReleaseJobRepository(db *gorm.DB) ReleaseJobRepository {
	return &releaseJobRepository{db: db}
}

func (r *releaseJobRepository) Schedule(jobs []model.ReleaseJob) error {
	if len(jobs) == 0 {
		return nil
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}, {Name: "reservation_version"}},
		DoNothing: true,
	}).Create(&jobs).Error
	if err != nil {
		logger.Error("Failed to schedule release jobs in database", err, map[string]interface{}{
			"count": len(jobs),
		})
		return err
	}

	logger.Debug("Release jobs scheduled in database", map[string]interface{}{
		"count": len(jobs),
	})
	return nil
}

func (r *releaseJobRepository) FindDue(now time.Time, limit int) ([]model.ReleaseJob, error) {
	var jobs []model.ReleaseJob
	query := r.db.Where("status = ? AND run_at <= ?", model.ReleaseJobPending, now).
		Order("run_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&jobs).Error; err != nil {
		logger.Error("Failed to find due release jobs in database", err)
		return nil, err
	}
	return jobs, nil
}

func (r *releaseJobRepository) MarkFinished(id uint, status model.ReleaseJobStatus) error {
	return r.db.Model(&model.ReleaseJob{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":   status,
		"attempts": gorm.Expr("attempts + ?", 1),
	}).Error
}

func (r *releaseJobRepository) MarkAttemptFailed(id uint, reason string, final bool) error {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + ?", 1),
		"last_error": reason,
	}
	if final {
		updates["status"] = model.ReleaseJobFailed
	}
	if err := r.db.Model(&model.ReleaseJob{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		logger.Error("Failed to record release job failure in database", err, map[string]interface{}{
			"release_job_id": id,
		})
		return err
	}
	return nil
}

package model

import (
	"time"
)

type ReleaseJobStatus string

const (
	ReleaseJobPending ReleaseJobStatus = "pending"
	ReleaseJobDone    ReleaseJobStatus = "done"
	ReleaseJobSkipped ReleaseJobStatus = "skipped"
	ReleaseJobFailed  ReleaseJobStatus = "failed"
)

// ReleaseJob is a persisted, delayed "free this reservation" task. It only
// applies while the product still carries ReservationVersion.
type ReleaseJob struct {
	ID                 uint             `gorm:"primarykey" json:"id"`
	ProductID          uint             `gorm:"not null;uniqueIndex:idx_release_jobs_product_version" json:"product_id"`
	ReservationVersion int64            `gorm:"not null;uniqueIndex:idx_release_jobs_product_version" json:"reservation_version"`
	RunAt              time.Time        `gorm:"not null;index" json:"run_at"`
	Status             ReleaseJobStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Attempts           int              `gorm:"not null;default:0" json:"attempts"`
	LastError          string           `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (ReleaseJob) TableName() string {
	return "release_jobs"
}

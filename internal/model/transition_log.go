package model

import "time"

// TransitionLog is one committed lifecycle transition, appended by the
// journal after every store mutation that changed a job's status.
type TransitionLog struct {
	ID         int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	JobKind    JobKind   `gorm:"size:16;not null;index:idx_transition_job" json:"jobKind"`
	JobID      string    `gorm:"size:64;not null;index:idx_transition_job" json:"jobId"`
	FromStatus JobStatus `gorm:"size:16;not null" json:"fromStatus"`
	ToStatus   JobStatus `gorm:"size:16;not null" json:"toStatus"`
	Trigger    string    `gorm:"size:16;not null" json:"trigger"`
	RecordedAt time.Time `gorm:"not null;index" json:"recordedAt"`
}

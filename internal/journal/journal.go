// Package journal appends an audit row for every committed lifecycle
// transition. It observes the job store after commit; a journal failure is
// logged and never blocks or reorders store mutations.
package journal

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

// Journal writes transition rows through gorm.
type Journal struct {
	db *gorm.DB
}

// New creates a journal backed by the given database.
func New(db *gorm.DB) *Journal {
	return &Journal{db: db}
}

// Listener returns the store listener that records status transitions.
// Mutations that did not change the status (field-only patches) are not
// journaled.
func (j *Journal) Listener() store.Listener {
	return func(c store.Change) {
		if !c.Inserted && c.PrevStatus == c.Job.Status {
			return
		}
		from := c.PrevStatus
		if c.Inserted {
			from = ""
		}
		row := model.TransitionLog{
			JobKind:    c.Key.Kind,
			JobID:      c.Key.ID,
			FromStatus: from,
			ToStatus:   c.Job.Status,
			Trigger:    c.Trigger,
			RecordedAt: time.Now().UTC(),
		}
		if err := j.db.Create(&row).Error; err != nil {
			log.Printf("journal: failed to record transition for %s/%s: %v", c.Key.Kind, c.Key.ID, err)
		}
	}
}

// History returns the recorded transitions for one job, oldest first.
func (j *Journal) History(ctx context.Context, key model.JobKey) ([]model.TransitionLog, error) {
	var rows []model.TransitionLog
	err := j.db.WithContext(ctx).
		Where("job_kind = ? AND job_id = ?", key.Kind, key.ID).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

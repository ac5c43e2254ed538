package model

import "time"

// Patch is a partial update merged into an existing job. Nil fields are
// left untouched. Trigger identifies the writer for the journal
// ("action", "push", "refresh").
type Patch struct {
	Status           *JobStatus
	RecallReason     *string
	SolutionCategory *string
	SolutionText     *string
	MeterReading     *int64
	StartedAt        *time.Time
	CompletedAt      *time.Time
	Trigger          string
}

// Apply merges the patch into j and reports whether anything changed.
func (p Patch) Apply(j *Job) bool {
	before := *j
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.RecallReason != nil {
		j.RecallReason = *p.RecallReason
	}
	if p.SolutionCategory != nil {
		j.SolutionCategory = *p.SolutionCategory
	}
	if p.SolutionText != nil {
		j.SolutionText = *p.SolutionText
	}
	if p.MeterReading != nil {
		j.MeterReading = *p.MeterReading
	}
	if p.StartedAt != nil {
		j.StartedAt = *p.StartedAt
	}
	if p.CompletedAt != nil {
		j.CompletedAt = *p.CompletedAt
	}
	return *j != before
}

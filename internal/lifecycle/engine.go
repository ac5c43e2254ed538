// Package lifecycle is the sole authority for validating and applying job
// state transitions, whether triggered by a technician action or by an
// inbound realtime event. All writes go through the job store's serialized
// mutation path; nothing mutates jobs directly.
package lifecycle

import (
	"log"
	"time"

	"fieldservice-backend/internal/metrics"
	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

// CategorySet is the backend-provided enumerated list of valid solution
// categories, the guard's valid-value set for completions.
type CategorySet map[string]struct{}

// NewCategorySet builds a set from the backend's category list.
func NewCategorySet(names []string) CategorySet {
	set := make(CategorySet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Contains reports whether name is a known category.
func (c CategorySet) Contains(name string) bool {
	_, ok := c[name]
	return ok
}

// StartFields carries the technician's input for a start transition. OnSite
// is advisory only and never gates the transition.
type StartFields struct {
	RecallReason string
	MeterReading int64
	OnSite       bool
}

// CompleteFields carries the technician's input for a complete transition.
type CompleteFields struct {
	SolutionCategory string
	SolutionText     string
	MeterReading     int64
}

// Engine validates and applies transitions onto the job store.
type Engine struct {
	store   *store.Store
	metrics *metrics.Collector
}

// New creates an engine writing to the given store.
func New(s *store.Store, m *metrics.Collector) *Engine {
	return &Engine{store: s, metrics: m}
}

// ValidateStart checks the start guard without touching the store or the
// network. A Due breakdown in pending requires a non-empty recall reason.
func (e *Engine) ValidateStart(job model.Job, f StartFields) error {
	if job.Status != model.StatusPending {
		return &TransitionError{Action: "start", From: string(job.Status)}
	}
	if job.DueRecall() && f.RecallReason == "" && job.RecallReason == "" {
		return ErrMissingRecallReason
	}
	return nil
}

// ValidateComplete checks the complete guard: a started job, a solution
// category drawn from the known set, and non-empty solution text.
func (e *Engine) ValidateComplete(job model.Job, f CompleteFields, known CategorySet) error {
	if job.Status != model.StatusStarted {
		return &TransitionError{Action: "complete", From: string(job.Status)}
	}
	if f.SolutionCategory == "" || f.SolutionText == "" {
		return ErrMissingSolution
	}
	if !known.Contains(f.SolutionCategory) {
		return ErrInvalidCategory
	}
	return nil
}

// ValidateRecall checks the recall submission guard.
func (e *Engine) ValidateRecall(job model.Job, reason string) error {
	if job.Status != model.StatusPending {
		return &TransitionError{Action: "recall", From: string(job.Status)}
	}
	if reason == "" {
		return ErrMissingRecallReason
	}
	return nil
}

// ConfirmStart applies a backend-confirmed start to the store.
func (e *Engine) ConfirmStart(key model.JobKey, f StartFields, at time.Time) bool {
	started := model.StatusStarted
	patch := model.Patch{
		Status:    &started,
		StartedAt: &at,
		Trigger:   store.TriggerAction,
	}
	if f.RecallReason != "" {
		patch.RecallReason = &f.RecallReason
	}
	if key.Kind == model.KindServiceVisit {
		reading := f.MeterReading
		patch.MeterReading = &reading
	}
	return e.store.ApplyPatch(key, patch)
}

// ConfirmComplete applies a backend-confirmed completion to the store.
func (e *Engine) ConfirmComplete(key model.JobKey, f CompleteFields, at time.Time) bool {
	completed := model.StatusCompleted
	patch := model.Patch{
		Status:           &completed,
		SolutionCategory: &f.SolutionCategory,
		SolutionText:     &f.SolutionText,
		CompletedAt:      &at,
		Trigger:          store.TriggerAction,
	}
	if key.Kind == model.KindServiceVisit {
		reading := f.MeterReading
		patch.MeterReading = &reading
	}
	return e.store.ApplyPatch(key, patch)
}

// ConfirmRecall records a backend-accepted recall justification. The job
// stays pending; the reason satisfies the Due start guard from then on.
func (e *Engine) ConfirmRecall(key model.JobKey, reason string) bool {
	return e.store.ApplyPatch(key, model.Patch{
		RecallReason: &reason,
		Trigger:      store.TriggerAction,
	})
}

// ApplyEvent applies a normalized realtime event to the store.
//
//   - Assigned for an unknown identity creates the job in pending; for a
//     known identity it is dropped (full replacement is the refresh path).
//   - StatusChanged must move the status forward; regressive or identical
//     statuses are ignored without listener notification.
//   - Cancelled moves pending or started jobs to the cancelled terminal.
func (e *Engine) ApplyEvent(ev model.JobEvent) {
	switch ev.Type {
	case model.EventAssigned:
		if _, known := e.store.Get(ev.Key()); known {
			e.recordIgnored()
			return
		}
		job := ev.Job
		job.Status = model.StatusPending
		e.store.Upsert(job, store.TriggerPush)
		e.recordApplied()

	case model.EventStatusChanged:
		target := ev.Status
		applied := e.store.Mutate(ev.Key(), store.TriggerPush, func(j *model.Job) bool {
			if j.Status.Terminal() {
				return false
			}
			if target.Rank() <= j.Status.Rank() {
				return false
			}
			j.Status = target
			return true
		})
		if applied {
			e.recordApplied()
		} else {
			e.recordIgnored()
		}

	case model.EventCancelled:
		applied := e.store.Mutate(ev.Key(), store.TriggerPush, func(j *model.Job) bool {
			if j.Status != model.StatusPending && j.Status != model.StatusStarted {
				return false
			}
			j.Status = model.StatusCancelled
			return true
		})
		if applied {
			e.recordApplied()
		} else {
			e.recordIgnored()
		}

	default:
		log.Printf("lifecycle: unknown event type %q for job %s/%s", ev.Type, ev.Kind, ev.JobID)
		e.recordIgnored()
	}
}

func (e *Engine) recordApplied() {
	if e.metrics != nil {
		e.metrics.RecordApplied()
	}
}

func (e *Engine) recordIgnored() {
	if e.metrics != nil {
		e.metrics.RecordIgnored()
	}
}

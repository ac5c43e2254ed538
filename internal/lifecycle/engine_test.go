package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

func newEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s := store.New(nil)
	return New(s, nil), s
}

func pendingBreakdown(id, callType string) model.Job {
	return model.Job{
		Kind:         model.KindBreakdown,
		ID:           id,
		Status:       model.StatusPending,
		Type:         callType,
		MeterReading: model.MeterReadingUnknown,
	}
}

func pendingService(id string) model.Job {
	return model.Job{
		Kind:         model.KindServiceVisit,
		ID:           id,
		Status:       model.StatusPending,
		MeterReading: model.MeterReadingUnknown,
	}
}

var knownCategories = NewCategorySet([]string{"Electrical", "Mechanical", "Software"})

func TestValidateStart_FreshBreakdownNeedsNoReason(t *testing.T) {
	e, _ := newEngine(t)

	job := pendingBreakdown("208299", model.BreakdownTypeAssign)
	assert.NoError(t, e.ValidateStart(job, StartFields{}))
}

func TestValidateStart_DueBreakdownRequiresRecallReason(t *testing.T) {
	e, s := newEngine(t)

	job := pendingBreakdown("300", model.BreakdownTypeDue)
	s.Upsert(job, store.TriggerRefresh)

	err := e.ValidateStart(job, StartFields{})
	require.ErrorIs(t, err, ErrMissingRecallReason)

	// The store is untouched by a failed guard.
	got, _ := s.Get(job.Key())
	assert.Equal(t, model.StatusPending, got.Status)

	assert.NoError(t, e.ValidateStart(job, StartFields{RecallReason: "missed parts on first visit"}))
}

func TestValidateStart_PreviouslyRecalledReasonSatisfiesGuard(t *testing.T) {
	e, _ := newEngine(t)

	job := pendingBreakdown("301", model.BreakdownTypeDue)
	job.RecallReason = "recorded earlier via recall"
	assert.NoError(t, e.ValidateStart(job, StartFields{}))
}

func TestValidateStart_RejectsNonPending(t *testing.T) {
	e, _ := newEngine(t)

	job := pendingBreakdown("302", model.BreakdownTypeAssign)
	job.Status = model.StatusStarted

	var terr *TransitionError
	require.ErrorAs(t, e.ValidateStart(job, StartFields{}), &terr)
	assert.Equal(t, "start", terr.Action)
}

func TestValidateComplete_Guards(t *testing.T) {
	e, _ := newEngine(t)

	job := pendingBreakdown("303", model.BreakdownTypeAssign)
	job.Status = model.StatusStarted

	tests := []struct {
		name    string
		fields  CompleteFields
		wantErr error
	}{
		{"missing category", CompleteFields{SolutionText: "replaced fuse"}, ErrMissingSolution},
		{"missing text", CompleteFields{SolutionCategory: "Electrical"}, ErrMissingSolution},
		{"unknown category", CompleteFields{SolutionCategory: "Plumbing", SolutionText: "x"}, ErrInvalidCategory},
		{"valid", CompleteFields{SolutionCategory: "Electrical", SolutionText: "replaced fuse"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.ValidateComplete(job, tt.fields, knownCategories)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateComplete_RejectsNonStarted(t *testing.T) {
	e, _ := newEngine(t)

	job := pendingBreakdown("304", model.BreakdownTypeAssign)
	fields := CompleteFields{SolutionCategory: "Electrical", SolutionText: "done"}

	var terr *TransitionError
	require.ErrorAs(t, e.ValidateComplete(job, fields, knownCategories), &terr)

	job.Status = model.StatusCompleted
	require.ErrorAs(t, e.ValidateComplete(job, fields, knownCategories), &terr)
}

func TestConfirmStart_RecordsTimestampAndFields(t *testing.T) {
	e, s := newEngine(t)

	job := pendingBreakdown("305", model.BreakdownTypeDue)
	s.Upsert(job, store.TriggerRefresh)

	at := time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC)
	require.True(t, e.ConfirmStart(job.Key(), StartFields{RecallReason: "parts now on hand"}, at))

	got, _ := s.Get(job.Key())
	assert.Equal(t, model.StatusStarted, got.Status)
	assert.Equal(t, at, got.StartedAt)
	assert.Equal(t, "parts now on hand", got.RecallReason)
}

func TestConfirmStart_ServiceRecordsMeterReading(t *testing.T) {
	e, s := newEngine(t)

	job := pendingService("400")
	s.Upsert(job, store.TriggerRefresh)

	at := time.Now().UTC()
	require.True(t, e.ConfirmStart(job.Key(), StartFields{MeterReading: 120034}, at))

	got, _ := s.Get(job.Key())
	assert.Equal(t, int64(120034), got.MeterReading)
}

func TestConfirmComplete_StoresSolutionFields(t *testing.T) {
	e, s := newEngine(t)

	job := pendingService("401")
	job.Status = model.StatusStarted
	s.Upsert(job, store.TriggerRefresh)

	at := time.Now().UTC()
	fields := CompleteFields{SolutionCategory: "Mechanical", SolutionText: "belt tensioned", MeterReading: 120100}
	require.True(t, e.ConfirmComplete(job.Key(), fields, at))

	got, _ := s.Get(job.Key())
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, "Mechanical", got.SolutionCategory)
	assert.Equal(t, "belt tensioned", got.SolutionText)
	assert.Equal(t, int64(120100), got.MeterReading)
	assert.Equal(t, at, got.CompletedAt)
}

func TestApplyEvent_AssignedCreatesPendingJob(t *testing.T) {
	e, s := newEngine(t)

	ev := model.JobEvent{
		Kind:  model.KindBreakdown,
		JobID: "500",
		Type:  model.EventAssigned,
		Job:   pendingBreakdown("500", model.BreakdownTypeAssign),
	}
	e.ApplyEvent(ev)

	got, ok := s.Get(ev.Key())
	require.True(t, ok)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestApplyEvent_AssignedForKnownIdentityIsIdempotent(t *testing.T) {
	e, s := newEngine(t)

	job := pendingBreakdown("501", model.BreakdownTypeAssign)
	job.CustomerName = "Original"
	s.Upsert(job, store.TriggerRefresh)

	var notified int
	s.Subscribe(func(store.Change) { notified++ })

	dup := job
	dup.CustomerName = "Replayed"
	e.ApplyEvent(model.JobEvent{Kind: job.Kind, JobID: job.ID, Type: model.EventAssigned, Job: dup})

	got, _ := s.Get(job.Key())
	assert.Equal(t, "Original", got.CustomerName)
	assert.Zero(t, notified)
}

func TestApplyEvent_StatusChangedForwardOnly(t *testing.T) {
	e, s := newEngine(t)

	job := pendingBreakdown("502", model.BreakdownTypeAssign)
	job.Status = model.StatusStarted
	s.Upsert(job, store.TriggerRefresh)

	var notified int
	s.Subscribe(func(store.Change) { notified++ })

	// Regressive and identical statuses are ignored without notification.
	e.ApplyEvent(model.JobEvent{Kind: job.Kind, JobID: job.ID, Type: model.EventStatusChanged, Status: model.StatusPending})
	e.ApplyEvent(model.JobEvent{Kind: job.Kind, JobID: job.ID, Type: model.EventStatusChanged, Status: model.StatusStarted})
	got, _ := s.Get(job.Key())
	assert.Equal(t, model.StatusStarted, got.Status)
	assert.Zero(t, notified)

	// Forward moves apply.
	e.ApplyEvent(model.JobEvent{Kind: job.Kind, JobID: job.ID, Type: model.EventStatusChanged, Status: model.StatusCompleted})
	got, _ = s.Get(job.Key())
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.Equal(t, 1, notified)

	// Completed is terminal: nothing moves it back.
	e.ApplyEvent(model.JobEvent{Kind: job.Kind, JobID: job.ID, Type: model.EventStatusChanged, Status: model.StatusStarted})
	got, _ = s.Get(job.Key())
	assert.Equal(t, model.StatusCompleted, got.Status)
}

func TestApplyEvent_CancelledFromPendingOrStartedOnly(t *testing.T) {
	e, s := newEngine(t)

	pending := pendingBreakdown("503", model.BreakdownTypeAssign)
	s.Upsert(pending, store.TriggerRefresh)
	e.ApplyEvent(model.JobEvent{Kind: pending.Kind, JobID: pending.ID, Type: model.EventCancelled})
	got, _ := s.Get(pending.Key())
	assert.Equal(t, model.StatusCancelled, got.Status)

	done := pendingBreakdown("504", model.BreakdownTypeAssign)
	done.Status = model.StatusCompleted
	s.Upsert(done, store.TriggerRefresh)
	e.ApplyEvent(model.JobEvent{Kind: done.Kind, JobID: done.ID, Type: model.EventCancelled})
	got, _ = s.Get(done.Key())
	assert.Equal(t, model.StatusCompleted, got.Status)
}

// The fresh-assignment scenario: a pending breakdown of type Assign starts
// without any recall reason; the Due guard does not apply.
func TestScenario_AssignTypeStartsWithoutReason(t *testing.T) {
	e, s := newEngine(t)

	job := pendingBreakdown("208299", model.BreakdownTypeAssign)
	s.Upsert(job, store.TriggerRefresh)

	require.NoError(t, e.ValidateStart(job, StartFields{}))
	require.True(t, e.ConfirmStart(job.Key(), StartFields{}, time.Now().UTC()))

	got, _ := s.Get(job.Key())
	assert.Equal(t, model.StatusStarted, got.Status)
}

func TestCategorySet(t *testing.T) {
	set := NewCategorySet([]string{"A", "B"})
	assert.True(t, set.Contains("A"))
	assert.False(t, set.Contains("C"))
	assert.False(t, NewCategorySet(nil).Contains(""))
}

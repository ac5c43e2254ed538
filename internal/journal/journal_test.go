package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

func newTestJournal(t *testing.T) (*Journal, *store.Store) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.TransitionLog{}))

	s := store.New(nil)
	j := New(db)
	s.Subscribe(j.Listener())
	return j, s
}

func TestJournal_RecordsStatusTransitions(t *testing.T) {
	j, s := newTestJournal(t)

	job := model.Job{Kind: model.KindBreakdown, ID: "700", Status: model.StatusPending}
	key := job.Key()
	s.Upsert(job, store.TriggerPush)

	started := model.StatusStarted
	s.ApplyPatch(key, model.Patch{Status: &started, Trigger: store.TriggerAction})
	completed := model.StatusCompleted
	s.ApplyPatch(key, model.Patch{Status: &completed, Trigger: store.TriggerAction})

	rows, err := j.History(context.Background(), key)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, model.JobStatus(""), rows[0].FromStatus)
	assert.Equal(t, model.StatusPending, rows[0].ToStatus)
	assert.Equal(t, store.TriggerPush, rows[0].Trigger)

	assert.Equal(t, model.StatusPending, rows[1].FromStatus)
	assert.Equal(t, model.StatusStarted, rows[1].ToStatus)
	assert.Equal(t, store.TriggerAction, rows[1].Trigger)

	assert.Equal(t, model.StatusStarted, rows[2].FromStatus)
	assert.Equal(t, model.StatusCompleted, rows[2].ToStatus)
}

func TestJournal_SkipsFieldOnlyPatches(t *testing.T) {
	j, s := newTestJournal(t)

	job := model.Job{Kind: model.KindBreakdown, ID: "701", Status: model.StatusPending, Type: model.BreakdownTypeDue}
	s.Upsert(job, store.TriggerRefresh)

	reason := "relapse after repair"
	s.ApplyPatch(job.Key(), model.Patch{RecallReason: &reason, Trigger: store.TriggerAction})

	rows, err := j.History(context.Background(), job.Key())
	require.NoError(t, err)
	// Only the insert is journaled; the reason patch changed no status.
	require.Len(t, rows, 1)
	assert.Equal(t, model.StatusPending, rows[0].ToStatus)
}

func TestJournal_HistoryIsPerJob(t *testing.T) {
	j, s := newTestJournal(t)

	s.Upsert(model.Job{Kind: model.KindBreakdown, ID: "702", Status: model.StatusPending}, store.TriggerPush)
	s.Upsert(model.Job{Kind: model.KindServiceVisit, ID: "702", Status: model.StatusPending}, store.TriggerPush)

	rows, err := j.History(context.Background(), model.JobKey{Kind: model.KindBreakdown, ID: "702"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, model.KindBreakdown, rows[0].JobKind)
}

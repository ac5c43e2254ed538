package notify

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func pushResponse(status int) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}
}

func TestWorkerPool_DispatchQueues(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	a := Announcement{Key: model.JobKey{Kind: model.KindBreakdown, ID: "123"}, Message: "hi"}
	wp.Dispatch(a)

	select {
	case got := <-wp.jobs:
		assert.Equal(t, a, got)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for announcement to be dispatched")
	}
}

func TestWorkerPool_SendsToAllSubscriptions(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			assert.Equal(t, "https://example.com/push", sub.Endpoint)
			assert.Equal(t, "New breakdown job 101 assigned (Acme Mills)", string(payload))
			wg.Done()
			return pushResponse(http.StatusCreated), nil
		},
	}

	mock.ExpectQuery(`SELECT .* FROM "push_subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
			AddRow("https://example.com/push", "test_p256dh", "test_auth", time.Now()))

	wp.Dispatch(Announcement{
		Key:     model.JobKey{Kind: model.KindBreakdown, ID: "101"},
		Message: "New breakdown job 101 assigned (Acme Mills)",
	})
	wg.Wait()
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	gormDB, mock := newTestDB(t)
	wp := NewWorkerPool(1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.sender = &mockSender{
		SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
			return pushResponse(http.StatusGone), nil
		},
	}

	mock.ExpectQuery(`SELECT .* FROM "push_subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
			AddRow("https://example.com/expired", "p", "a", time.Now()))

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE "push_subscriptions"."endpoint" = \$1`).
		WithArgs("https://example.com/expired").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	wp.Dispatch(Announcement{Key: model.JobKey{Kind: model.KindBreakdown, ID: "102"}, Message: "m"})

	// A short sleep to allow the worker to process the announcement.
	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListener_AnnouncesOnlyPushedInserts(t *testing.T) {
	db, _ := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})
	listener := wp.Listener()

	// Pushed insert is announced.
	listener(store.Change{
		Key:      model.JobKey{Kind: model.KindServiceVisit, ID: "1"},
		Job:      model.Job{Kind: model.KindServiceVisit, ID: "1", CustomerName: "Bright Dairy"},
		Trigger:  store.TriggerPush,
		Inserted: true,
	})
	select {
	case a := <-wp.jobs:
		assert.Equal(t, "New service visit 1 assigned (Bright Dairy)", a.Message)
	case <-time.After(1 * time.Second):
		t.Fatal("expected an announcement for a pushed insert")
	}

	// Refresh inserts and status patches are not announced.
	listener(store.Change{
		Key:      model.JobKey{Kind: model.KindServiceVisit, ID: "2"},
		Trigger:  store.TriggerRefresh,
		Inserted: true,
	})
	listener(store.Change{
		Key:     model.JobKey{Kind: model.KindServiceVisit, ID: "1"},
		Trigger: store.TriggerPush,
	})
	select {
	case a := <-wp.jobs:
		t.Fatalf("unexpected announcement %v", a)
	default:
	}
}

// Package notify announces newly assigned jobs to the technician's
// subscribed browsers via Web Push. A worker pool drains announcements off
// a buffered channel so a slow push provider never blocks the store.
package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"fieldservice-backend/internal/model"
	"fieldservice-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Announcement is one push message to fan out to every subscription.
type Announcement struct {
	Key     model.JobKey
	Message string
}

// WorkerPool manages the workers sending announcements.
type WorkerPool struct {
	size    int
	jobs    chan Announcement
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Announcement, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notify worker %d started", id)
	for {
		select {
		case a := <-wp.jobs:
			wp.fanOut(ctx, a)
		case <-ctx.Done():
			log.Printf("notify worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an announcement, dropping it when the pool is saturated;
// push announcements are best-effort by contract.
func (wp *WorkerPool) Dispatch(a Announcement) {
	select {
	case wp.jobs <- a:
	default:
		log.Printf("notify: dropping announcement for %s/%s, queue full", a.Key.Kind, a.Key.ID)
	}
}

// Listener returns the store listener that announces newly assigned jobs
// pushed in by the realtime channel. Bulk-refresh inserts are not
// announced; the UI refreshes those itself.
func (wp *WorkerPool) Listener() store.Listener {
	return func(c store.Change) {
		if !c.Inserted || c.Trigger != store.TriggerPush {
			return
		}
		label := "service visit"
		if c.Key.Kind == model.KindBreakdown {
			label = "breakdown job"
		}
		msg := fmt.Sprintf("New %s %s assigned", label, c.Key.ID)
		if c.Job.CustomerName != "" {
			msg = fmt.Sprintf("%s (%s)", msg, c.Job.CustomerName)
		}
		wp.Dispatch(Announcement{Key: c.Key, Message: msg})
	}
}

// fanOut sends one announcement to every stored subscription.
func (wp *WorkerPool) fanOut(ctx context.Context, a Announcement) {
	var subscriptions []model.PushSubscription
	if err := wp.db.WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("notify: error fetching subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	log.Printf("notify: sending %d notifications for job %s/%s", len(subscriptions), a.Key.Kind, a.Key.ID)
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(a.Message))
	}
}

func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("notify: error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("notify: subscription for endpoint %s is expired, deleting", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("notify: failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}

package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// VehicleLookup resolves a car for the notification text.
type VehicleLookup interface {
	Vehicle(id int64) (model.Vehicle, bool)
}

// Observer counts push outcomes.
type Observer interface {
	ObservePush(outcome string)
}

// Payload is the JSON body delivered to the service worker.
type Payload struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Kind    broadcast.Kind `json:"kind"`
	CarID   int64          `json:"car_id,omitempty"`
	Version uint64         `json:"version"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size     int
	jobs     chan broadcast.Signal
	store    store.Store
	webpush  *webpush.Options
	sender   NotificationSender
	vehicles VehicleLookup
	observer Observer
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, vehicles VehicleLookup) *WorkerPool {
	return &WorkerPool{
		size:     size,
		jobs:     make(chan broadcast.Signal, size),
		store:    s,
		webpush:  webpushOptions,
		sender:   &WebPushSender{},
		vehicles: vehicles,
	}
}

func (wp *WorkerPool) SetObserver(o Observer) {
	wp.observer = o
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// Listen feeds completion signals from the hub to the workers until ctx is done.
func (wp *WorkerPool) Listen(ctx context.Context, hub *broadcast.Hub) {
	signals, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			if sig.Kind != broadcast.KindDeliveryCompleted && sig.Kind != broadcast.KindCheckCompleted {
				continue
			}
			select {
			case wp.jobs <- sig:
			case <-ctx.Done():
				return
			}
		}
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case sig := <-wp.jobs:
			log.Printf("Worker %d processing %s for car %d", id, sig.Kind, sig.CarID)
			wp.sendNotificationsForSignal(ctx, sig)
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a job to the worker pool.
func (wp *WorkerPool) Dispatch(sig broadcast.Signal) {
	wp.jobs <- sig
}

func (wp *WorkerPool) payloadFor(sig broadcast.Signal) Payload {
	label := fmt.Sprintf("#%d", sig.CarID)
	if wp.vehicles != nil {
		if v, ok := wp.vehicles.Vehicle(sig.CarID); ok {
			switch {
			case v.PlateNumber != "":
				label = v.PlateNumber
			case v.Name != "":
				label = v.Name
			}
		}
	}

	p := Payload{Kind: sig.Kind, CarID: sig.CarID, Version: sig.Version}
	switch sig.Kind {
	case broadcast.KindDeliveryCompleted:
		p.Title = "Delivery completed"
		p.Body = fmt.Sprintf("Car %s has been delivered", label)
	case broadcast.KindCheckCompleted:
		p.Title = "Rental completed"
		p.Body = fmt.Sprintf("Car %s is free again", label)
	default:
		p.Title = "Fleet updated"
		p.Body = fmt.Sprintf("Car %s changed", label)
	}
	return p
}

// sendNotificationsForSignal fetches interested subscriptions and notifies each of them.
func (wp *WorkerPool) sendNotificationsForSignal(ctx context.Context, sig broadcast.Signal) {
	subscriptions, err := wp.store.SubscriptionsForCar(ctx, sig.CarID)
	if err != nil {
		log.Printf("Error fetching subscriptions for car %d: %v", sig.CarID, err)
		return
	}

	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(wp.payloadFor(sig))
	if err != nil {
		log.Printf("Error encoding notification for car %d: %v", sig.CarID, err)
		return
	}

	log.Printf("Sending %d notifications for car %d", len(subscriptions), sig.CarID)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func (wp *WorkerPool) observe(outcome string) {
	if wp.observer != nil {
		wp.observer.ObservePush(outcome)
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		wp.observe("error")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		wp.observe("expired")
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return
	}
	wp.observe("sent")
}

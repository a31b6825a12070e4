package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"fleet-rental-backend/internal/broadcast"
)

// Publisher announces that the cache has been reloaded.
type Publisher interface {
	Publish(kind broadcast.Kind, carID int64) broadcast.Signal
}

// Scheduler runs a full refresh on a cron schedule.
type Scheduler struct {
	cron      *cron.Cron
	refresher *Refresher
	hub       Publisher
	timeout   time.Duration
}

// NewScheduler registers the periodic refresh. Schedule accepts the standard
// five-field syntax and descriptors such as "@every 1m".
func NewScheduler(spec string, refresher *Refresher, hub Publisher, timeout time.Duration) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	s := &Scheduler{cron: c, refresher: refresher, hub: hub, timeout: timeout}

	if _, err := c.AddFunc(spec, s.RunOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// RunOnce performs one refresh cycle.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	log.Println("Executing reconcile cycle...")
	logged("reconcile", s.refresher.RefreshAll)(ctx)
	s.hub.Publish(broadcast.KindRefreshed, 0)
}

// Start runs the schedule until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	log.Println("Starting reconcile scheduler...")
	s.cron.Start()
	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
		log.Println("Reconcile scheduler shut down.")
	}()
}

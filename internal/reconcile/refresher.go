// Package reconcile reloads cached backend state, either on demand after a
// command or periodically on a cron schedule.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"fleet-rental-backend/internal/cache"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
)

// Source is the read side of the backend.
type Source interface {
	User(ctx context.Context) (*model.User, error)
	Vehicles(ctx context.Context, filter command.Filter) ([]model.Vehicle, error)
	CurrentDelivery(ctx context.Context) (*model.Vehicle, error)
}

// Observer is told about every refresh attempt.
type Observer interface {
	ObserveRefresh(target string, err error)
}

// Refresher copies backend state into the snapshot cache.
type Refresher struct {
	src      Source
	store    *cache.Store
	observer Observer
}

func NewRefresher(src Source, store *cache.Store) *Refresher {
	return &Refresher{src: src, store: store}
}

func (r *Refresher) SetObserver(o Observer) {
	r.observer = o
}

func (r *Refresher) observe(target string, err error) {
	if r.observer != nil {
		r.observer.ObserveRefresh(target, err)
	}
}

// RefreshUser refetches the profile.
func (r *Refresher) RefreshUser(ctx context.Context) error {
	u, err := r.src.User(ctx)
	r.observe("user", err)
	if err != nil {
		return fmt.Errorf("refresh user: %w", err)
	}
	r.store.SetUser(u)
	return nil
}

// RefreshVehicles loads every listing and swaps them into the cache together.
// A listing that fails to load keeps its previous contents.
func (r *Refresher) RefreshVehicles(ctx context.Context) error {
	lists := make(map[command.Filter][]model.Vehicle, len(command.Filters()))
	var errs []error
	for _, filter := range command.Filters() {
		list, err := r.src.Vehicles(ctx, filter)
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s vehicles: %w", filter, err))
			continue
		}
		lists[filter] = list
	}
	if len(lists) > 0 {
		r.store.ReplaceVehicles(lists)
	}
	err := errors.Join(errs...)
	r.observe("vehicles", err)
	return err
}

// RefreshDelivery loads the active delivery point. Having no delivery is a
// normal outcome and clears the overlay.
func (r *Refresher) RefreshDelivery(ctx context.Context) error {
	v, err := r.src.CurrentDelivery(ctx)
	if errors.Is(err, command.ErrNoCurrentDelivery) {
		r.observe("delivery", nil)
		r.store.ClearDelivery()
		return nil
	}
	r.observe("delivery", err)
	if err != nil {
		return fmt.Errorf("refresh delivery: %w", err)
	}
	if v.DeliveryCoordinates != nil {
		r.store.SetDelivery(*v.DeliveryCoordinates)
	} else {
		r.store.ClearDelivery()
	}
	return nil
}

// RefreshAll runs every refresh and reports the failures together.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	return errors.Join(
		r.RefreshUser(ctx),
		r.RefreshVehicles(ctx),
		r.RefreshDelivery(ctx),
	)
}

// logged wraps a refresh so its failure is only logged.
func logged(name string, fn func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			log.Printf("Warning: %s failed: %v", name, err)
		}
	}
}

// Package cache holds the last known vehicle listings, user profile and
// delivery overlay. Entries are replaced wholesale, never mutated in place,
// so a reader sees either the old or the new snapshot.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
)

const (
	vehiclesPrefix = "vehicles:"
	userKey        = "user"
	deliveryKey    = "delivery"
)

// Store is an in-memory snapshot cache.
type Store struct {
	c       *gocache.Cache
	mu      sync.RWMutex // writers hold it for the whole update; listing readers share it
	version atomic.Uint64
}

// New creates an empty store. Snapshots do not expire on their own; they are
// replaced by refreshes.
func New() *Store {
	return &Store{c: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Version increases on every write.
func (s *Store) Version() uint64 {
	return s.version.Load()
}

func (s *Store) set(key string, v any) {
	s.c.Set(key, v, gocache.NoExpiration)
	s.version.Add(1)
}

// SetVehicles replaces the listing for filter.
func (s *Store) SetVehicles(filter command.Filter, list []model.Vehicle) {
	snapshot := make([]model.Vehicle, len(list))
	copy(snapshot, list)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(vehiclesPrefix+string(filter), snapshot)
}

// ReplaceVehicles swaps in several listings at once. Filters missing from
// lists keep their current listing.
func (s *Store) ReplaceVehicles(lists map[command.Filter][]model.Vehicle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for filter, list := range lists {
		snapshot := make([]model.Vehicle, len(list))
		copy(snapshot, list)
		s.c.Set(vehiclesPrefix+string(filter), snapshot, gocache.NoExpiration)
	}
	s.version.Add(1)
}

// Vehicles returns a copy of the listing for filter.
func (s *Store) Vehicles(filter command.Filter) ([]model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vehicles(filter)
}

func (s *Store) vehicles(filter command.Filter) ([]model.Vehicle, bool) {
	v, ok := s.c.Get(vehiclesPrefix + string(filter))
	if !ok {
		return nil, false
	}
	list := v.([]model.Vehicle)
	out := make([]model.Vehicle, len(list))
	copy(out, list)
	return out, true
}

// Vehicle finds a car in any cached listing.
func (s *Store) Vehicle(id int64) (model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if list, ok := s.vehicles(command.FilterAll); ok {
		for _, v := range list {
			if v.ID == id {
				return v, true
			}
		}
	}
	for key, item := range s.c.Items() {
		if !strings.HasPrefix(key, vehiclesPrefix) {
			continue
		}
		for _, v := range item.Object.([]model.Vehicle) {
			if v.ID == id {
				return v, true
			}
		}
	}
	return model.Vehicle{}, false
}

// UpdateStatus rewrites the status of a car in every listing and in the
// cached user's active rental. It reports whether the car was found.
func (s *Store) UpdateStatus(id int64, status model.VehicleStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for key, item := range s.c.Items() {
		if !strings.HasPrefix(key, vehiclesPrefix) {
			continue
		}
		list := item.Object.([]model.Vehicle)
		idx := -1
		for i, v := range list {
			if v.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}
		next := make([]model.Vehicle, len(list))
		copy(next, list)
		next[idx].Status = status
		s.set(key, next)
		found = true
	}

	if u, ok := s.User(); ok && u.CurrentRental != nil && u.CurrentRental.CarDetails.ID == id {
		rental := *u.CurrentRental
		rental.CarDetails.Status = status
		u.CurrentRental = &rental
		s.set(userKey, u)
		found = true
	}
	return found
}

// SetUser replaces the cached profile.
func (s *Store) SetUser(u *model.User) {
	if u == nil {
		return
	}
	cp := *u
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(userKey, &cp)
}

// User returns a shallow copy of the cached profile.
func (s *Store) User() (*model.User, bool) {
	v, ok := s.c.Get(userKey)
	if !ok {
		return nil, false
	}
	cp := *v.(*model.User)
	return &cp, true
}

// SetDelivery records the drop-off point of the active delivery.
func (s *Store) SetDelivery(c model.Coordinates) {
	s.set(deliveryKey, c)
}

// Delivery returns the active delivery point, if any.
func (s *Store) Delivery() (model.Coordinates, bool) {
	v, ok := s.c.Get(deliveryKey)
	if !ok {
		return model.Coordinates{}, false
	}
	return v.(model.Coordinates), true
}

func (s *Store) ClearDelivery() {
	s.c.Delete(deliveryKey)
	s.version.Add(1)
}

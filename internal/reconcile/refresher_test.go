package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/cache"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
)

type fakeSource struct {
	user     *model.User
	userErr  error
	lists    map[command.Filter][]model.Vehicle
	listErr  map[command.Filter]error
	delivery *model.Vehicle
	delErr   error
}

func (f *fakeSource) User(context.Context) (*model.User, error) {
	return f.user, f.userErr
}

func (f *fakeSource) Vehicles(_ context.Context, filter command.Filter) ([]model.Vehicle, error) {
	if err := f.listErr[filter]; err != nil {
		return nil, err
	}
	return f.lists[filter], nil
}

func (f *fakeSource) CurrentDelivery(context.Context) (*model.Vehicle, error) {
	return f.delivery, f.delErr
}

func TestRefresher_RefreshVehiclesReplacesListings(t *testing.T) {
	store := cache.New()
	store.SetVehicles(command.FilterAll, []model.Vehicle{{ID: 99}})

	src := &fakeSource{lists: map[command.Filter][]model.Vehicle{
		command.FilterAll:     {{ID: 1}, {ID: 2}},
		command.FilterPending: {{ID: 1}},
	}}
	r := NewRefresher(src, store)
	require.NoError(t, r.RefreshVehicles(context.Background()))

	all, ok := store.Vehicles(command.FilterAll)
	require.True(t, ok)
	assert.Len(t, all, 2)
	_, ok = store.Vehicle(99)
	assert.False(t, ok)
}

func TestRefresher_PartialFailureKeepsPreviousListing(t *testing.T) {
	store := cache.New()
	store.SetVehicles(command.FilterInUse, []model.Vehicle{{ID: 5}})

	src := &fakeSource{
		lists:   map[command.Filter][]model.Vehicle{command.FilterAll: {{ID: 1}}},
		listErr: map[command.Filter]error{command.FilterInUse: errors.New("boom")},
	}
	err := NewRefresher(src, store).RefreshVehicles(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in_use")

	inUse, ok := store.Vehicles(command.FilterInUse)
	require.True(t, ok)
	assert.Equal(t, int64(5), inUse[0].ID)
	all, ok := store.Vehicles(command.FilterAll)
	require.True(t, ok)
	assert.Equal(t, int64(1), all[0].ID)
}

// blockingSource holds the first listing fetch until release is closed.
type blockingSource struct {
	fakeSource
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) Vehicles(ctx context.Context, filter command.Filter) ([]model.Vehicle, error) {
	if filter == command.FilterAll {
		close(b.entered)
		<-b.release
	}
	return b.fakeSource.Vehicles(ctx, filter)
}

func TestRefresher_ReadersSeeOldListingDuringRefetch(t *testing.T) {
	store := cache.New()
	store.SetVehicles(command.FilterAll, []model.Vehicle{{ID: 7, Status: model.StatusPending}})

	src := &blockingSource{
		fakeSource: fakeSource{lists: map[command.Filter][]model.Vehicle{
			command.FilterAll: {{ID: 7, Status: model.StatusChecking}},
		}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	done := make(chan error, 1)
	go func() { done <- NewRefresher(src, store).RefreshVehicles(context.Background()) }()

	<-src.entered
	v, ok := store.Vehicle(7)
	require.True(t, ok, "car must stay readable while the listings reload")
	assert.Equal(t, model.StatusPending, v.Status)

	close(src.release)
	require.NoError(t, <-done)
	v, ok = store.Vehicle(7)
	require.True(t, ok)
	assert.Equal(t, model.StatusChecking, v.Status)
}

func TestRefresher_RefreshDelivery(t *testing.T) {
	store := cache.New()
	src := &fakeSource{delivery: &model.Vehicle{ID: 1, DeliveryCoordinates: &model.Coordinates{Latitude: 1, Longitude: 2}}}
	r := NewRefresher(src, store)

	require.NoError(t, r.RefreshDelivery(context.Background()))
	c, ok := store.Delivery()
	require.True(t, ok)
	assert.Equal(t, 1.0, c.Latitude)

	src.delivery, src.delErr = nil, command.ErrNoCurrentDelivery
	require.NoError(t, r.RefreshDelivery(context.Background()))
	_, ok = store.Delivery()
	assert.False(t, ok)

	src.delErr = errors.New("timeout")
	assert.Error(t, r.RefreshDelivery(context.Background()))
}

func TestRefresher_RefreshUser(t *testing.T) {
	store := cache.New()
	src := &fakeSource{user: &model.User{ID: 4, Role: "mechanic"}}
	r := NewRefresher(src, store)

	require.NoError(t, r.RefreshUser(context.Background()))
	u, ok := store.User()
	require.True(t, ok)
	assert.Equal(t, int64(4), u.ID)

	src.userErr = errors.New("unauthorized")
	assert.Error(t, r.RefreshUser(context.Background()))
}

func TestScheduler(t *testing.T) {
	store := cache.New()
	hub := broadcast.NewHub(4)
	signals, unsub := hub.Subscribe()
	defer unsub()

	r := NewRefresher(&fakeSource{user: &model.User{ID: 1}, delErr: command.ErrNoCurrentDelivery}, store)

	_, err := NewScheduler("not a schedule", r, hub, time.Second)
	assert.Error(t, err)

	s, err := NewScheduler("@every 1h", r, hub, time.Second)
	require.NoError(t, err)
	s.RunOnce()

	select {
	case sig := <-signals:
		assert.Equal(t, broadcast.KindRefreshed, sig.Kind)
	case <-time.After(time.Second):
		t.Fatal("no refresh signal")
	}
	_, ok := store.User()
	assert.True(t, ok)
}

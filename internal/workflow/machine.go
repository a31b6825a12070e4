// Package workflow drives a vehicle through reservation, delivery, the
// direct rental flow and completion, issuing one backend command per step.
package workflow

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/pricing"
)

// Backend is the command side of the rental backend.
type Backend interface {
	ReserveVehicle(ctx context.Context, carID int64) error
	AcceptDelivery(ctx context.Context, carID int64) error
	StartDelivery(ctx context.Context) error
	StartCheck(ctx context.Context) error
	CancelCheck(ctx context.Context) error
	PerformVehicleAction(ctx context.Context, role command.Role, action command.VehicleAction) error
	UploadPhotos(ctx context.Context, flow command.Flow, phase command.Phase, photos []command.Photo) error
	CompleteDelivery(ctx context.Context) error
	CompleteCheckCar(ctx context.Context, rent pricing.RentalData) error
}

// Refresher reloads cached state.
type Refresher interface {
	RefreshUser(ctx context.Context) error
	RefreshVehicles(ctx context.Context) error
	RefreshDelivery(ctx context.Context) error
}

// Cache is the snapshot store the machine reads and updates.
type Cache interface {
	Vehicle(id int64) (model.Vehicle, bool)
	UpdateStatus(id int64, status model.VehicleStatus) bool
	User() (*model.User, bool)
	ClearDelivery()
}

type Publisher interface {
	Publish(kind broadcast.Kind, carID int64) broadcast.Signal
}

// Journal persists one entry per issued command.
type Journal interface {
	RecordAction(ctx context.Context, entry *model.ActionLog) error
}

// Options tune timing. Zero values get defaults.
type Options struct {
	RefreshDelay time.Duration
	MarkerWindow time.Duration
	// Schedule runs f after d. Defaults to time.AfterFunc.
	Schedule func(d time.Duration, f func())
	Now      func() time.Time
}

// Machine is safe for concurrent use. Calls for the same vehicle are not
// serialized; the backend resolves races.
type Machine struct {
	backend   Backend
	cache     Cache
	refresher Refresher
	hub       Publisher
	journal   Journal
	marker    *Marker
	evidence  *Evidence
	delay     time.Duration
	schedule  func(time.Duration, func())
	now       func() time.Time
}

func New(backend Backend, c Cache, refresher Refresher, hub Publisher, journal Journal, opts Options) *Machine {
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = time.Second
	}
	if opts.MarkerWindow <= 0 {
		opts.MarkerWindow = time.Second
	}
	if opts.Schedule == nil {
		opts.Schedule = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Machine{
		backend:   backend,
		cache:     c,
		refresher: refresher,
		hub:       hub,
		journal:   journal,
		marker:    NewMarker(opts.MarkerWindow, opts.Now),
		evidence:  NewEvidence(),
		delay:     opts.RefreshDelay,
		schedule:  opts.Schedule,
		now:       opts.Now,
	}
}

// step is one backend command and the status it moves the car to on success.
type step struct {
	action Action
	role   command.Role
	carID  int64
	from   model.VehicleStatus
	to     model.VehicleStatus
	call   func(ctx context.Context) error
}

func (m *Machine) run(ctx context.Context, s step) error {
	requestID := uuid.NewString()
	ctx = command.WithRequestID(ctx, requestID)

	err := s.call(ctx)
	m.record(ctx, requestID, s, err)
	if err != nil {
		log.Printf("%s on car %d rejected: %v", s.action, s.carID, err)
		return newActionError(s.action, err)
	}

	if s.to != "" && s.carID != 0 {
		if s.from != "" && !CanTransition(s.from, s.to) {
			log.Printf("Warning: backend accepted %s on car %d moving %s -> %s outside the known transitions", s.action, s.carID, s.from, s.to)
		}
		m.cache.UpdateStatus(s.carID, s.to)
		m.hub.Publish(broadcast.KindStatusChanged, s.carID)
	}
	return nil
}

func (m *Machine) record(ctx context.Context, requestID string, s step, err error) {
	if m.journal == nil {
		return
	}
	entry := &model.ActionLog{
		RequestID:  requestID,
		CarID:      s.carID,
		Action:     string(s.action),
		Role:       string(s.role),
		Succeeded:  err == nil,
		FromStatus: string(s.from),
		CreatedAt:  m.now().UTC(),
	}
	if err == nil {
		entry.ToStatus = string(s.to)
	} else {
		entry.Message = newActionError(s.action, err).Message
	}
	if jerr := m.journal.RecordAction(context.WithoutCancel(ctx), entry); jerr != nil {
		log.Printf("Failed to journal %s for car %d: %v", s.action, s.carID, jerr)
	}
}

func (m *Machine) cachedVehicle(action Action, carID int64) (model.Vehicle, error) {
	v, ok := m.cache.Vehicle(carID)
	if !ok {
		return model.Vehicle{}, &ActionError{Action: action, Message: "Vehicle not found", Err: fmt.Errorf("car %d: %w", carID, ErrVehicleNotCached)}
	}
	return v, nil
}

// activeUser returns the cached profile, refetching it when absent.
func (m *Machine) activeUser(ctx context.Context) *model.User {
	if u, ok := m.cache.User(); ok {
		return u
	}
	if err := m.refresher.RefreshUser(ctx); err != nil {
		log.Printf("Warning: could not load user profile: %v", err)
		return nil
	}
	u, _ := m.cache.User()
	return u
}

func activeCar(u *model.User) (int64, model.VehicleStatus) {
	if u == nil || u.CurrentRental == nil {
		return 0, ""
	}
	return u.CurrentRental.CarDetails.ID, u.CurrentRental.CarDetails.Status
}

// Reserve books a pending car for a check.
func (m *Machine) Reserve(ctx context.Context, carID int64) error {
	v, err := m.cachedVehicle(ActionReserveCheck, carID)
	if err != nil {
		return err
	}
	return m.run(ctx, step{
		action: ActionReserveCheck, role: command.RoleMechanic, carID: carID,
		from: v.Status, to: model.StatusChecking,
		call: func(ctx context.Context) error { return m.backend.ReserveVehicle(ctx, carID) },
	})
}

// AcceptDelivery takes a reserved car into the delivery flow.
func (m *Machine) AcceptDelivery(ctx context.Context, carID int64) error {
	v, err := m.cachedVehicle(ActionAcceptDelivery, carID)
	if err != nil {
		return err
	}
	return m.run(ctx, step{
		action: ActionAcceptDelivery, role: command.RoleMechanic, carID: carID,
		from: v.Status, to: model.StatusDeliveryAccepted,
		call: func(ctx context.Context) error { return m.backend.AcceptDelivery(ctx, carID) },
	})
}

// StartDelivery sets off with the accepted car and loads its drop-off point.
func (m *Machine) StartDelivery(ctx context.Context) error {
	carID, from := activeCar(m.activeUser(ctx))
	err := m.run(ctx, step{
		action: ActionStartDelivery, role: command.RoleMechanic, carID: carID,
		from: from, to: model.StatusInDelivery,
		call: m.backend.StartDelivery,
	})
	if err != nil {
		return err
	}
	logged("delivery refresh", m.refresher.RefreshDelivery)(ctx)
	return nil
}

// StartCheck hands the checked car over for direct use.
func (m *Machine) StartCheck(ctx context.Context) error {
	carID, from := activeCar(m.activeUser(ctx))
	return m.run(ctx, step{
		action: ActionStartCheck, role: command.RoleMechanic, carID: carID,
		from: from, to: model.StatusInUse,
		call: m.backend.StartCheck,
	})
}

// CancelCheck releases the car back to the pending pool.
func (m *Machine) CancelCheck(ctx context.Context) error {
	carID, from := activeCar(m.activeUser(ctx))
	err := m.run(ctx, step{
		action: ActionCancelCheck, role: command.RoleMechanic, carID: carID,
		from: from, to: model.StatusPending,
		call: m.backend.CancelCheck,
	})
	if err != nil {
		return err
	}
	logged("user refresh", m.refresher.RefreshUser)(ctx)
	return nil
}

// Pause takes the key from the car.
func (m *Machine) Pause(ctx context.Context) (command.Role, error) {
	return m.vehicleAction(ctx, ActionTakeKey, command.ActionTakeKey)
}

// Resume gives the key back to the car.
func (m *Machine) Resume(ctx context.Context) (command.Role, error) {
	return m.vehicleAction(ctx, ActionGiveKey, command.ActionGiveKey)
}

func (m *Machine) Lock(ctx context.Context) (command.Role, error) {
	return m.vehicleAction(ctx, ActionCloseVehicle, command.ActionCloseVehicle)
}

func (m *Machine) Unlock(ctx context.Context) (command.Role, error) {
	return m.vehicleAction(ctx, ActionOpenVehicle, command.ActionOpenVehicle)
}

// RoleFor picks the endpoint family for an active rental status: the renter
// endpoints once the car is in use, the mechanic ones otherwise.
func RoleFor(status model.VehicleStatus) command.Role {
	if status == model.StatusInUse {
		return command.RoleRenter
	}
	return command.RoleMechanic
}

func (m *Machine) vehicleAction(ctx context.Context, action Action, va command.VehicleAction) (command.Role, error) {
	carID, status := activeCar(m.activeUser(ctx))
	if !actionable(status) {
		return "", &ActionError{Action: action, Message: "No active rental", Err: ErrNoActiveRental}
	}

	role := RoleFor(status)
	err := m.run(ctx, step{
		action: action, role: role, carID: carID, from: status,
		call: func(ctx context.Context) error { return m.backend.PerformVehicleAction(ctx, role, va) },
	})
	if err != nil {
		return role, err
	}
	m.marker.Record(action)
	return role, nil
}

// LastAction returns the recent vehicle action, if still within its window.
func (m *Machine) LastAction() (LastAction, bool) {
	return m.marker.Current()
}

// UploadEvidence sends a photo set. Uploading the after-delivery photos also
// completes the delivery; completed reports whether that happened.
func (m *Machine) UploadEvidence(ctx context.Context, flow command.Flow, phase command.Phase, photos []command.Photo) (completed bool, err error) {
	action := ActionUploadBefore
	if phase == command.PhaseAfter {
		action = ActionUploadAfter
	}
	carID, status := activeCar(m.activeUser(ctx))

	err = m.run(ctx, step{
		action: action, role: command.RoleMechanic, carID: carID, from: status,
		call: func(ctx context.Context) error { return m.backend.UploadPhotos(ctx, flow, phase, photos) },
	})
	if err != nil {
		return false, err
	}
	if phase == command.PhaseAfter {
		m.evidence.Record(flow, carID)
	}

	if flow == command.FlowDelivery && phase == command.PhaseAfter {
		if err := m.CompleteDelivery(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// requireEvidence fails unless the after photos of flow were uploaded for carID.
func (m *Machine) requireEvidence(action Action, flow command.Flow, carID int64) error {
	if m.evidence.Has(flow, carID) {
		return nil
	}
	return &ActionError{Action: action, Message: "Upload the after photos first", Err: fmt.Errorf("car %d: %w", carID, ErrEvidenceMissing)}
}

// CompleteDelivery closes the active delivery and reloads everything that
// depends on it. The after-delivery photos must have been uploaded.
func (m *Machine) CompleteDelivery(ctx context.Context) error {
	carID, from := activeCar(m.activeUser(ctx))
	if err := m.requireEvidence(ActionCompleteDelivery, command.FlowDelivery, carID); err != nil {
		return err
	}
	err := m.run(ctx, step{
		action: ActionCompleteDelivery, role: command.RoleMechanic, carID: carID,
		from: from, to: model.StatusCompleted,
		call: m.backend.CompleteDelivery,
	})
	if err != nil {
		return err
	}
	m.evidence.Forget(command.FlowDelivery, carID)
	m.afterCompletion(ctx, broadcast.KindDeliveryCompleted, carID)
	return nil
}

// CompleteCheckCar closes a direct rental with the booked mode and duration.
func (m *Machine) CompleteCheckCar(ctx context.Context, rent pricing.RentalData) error {
	if mc, err := pricing.Config(rent.RentalType); err != nil {
		return &ActionError{Action: ActionCompleteCheck, Message: "Unknown rental mode", Err: err}
	} else if rent.Duration < 0 || rent.Duration > mc.MaxDuration {
		return &ActionError{Action: ActionCompleteCheck, Message: "Duration out of range", Err: pricing.ErrDurationOutOfRange}
	}
	if err := m.requireEvidence(ActionCompleteCheck, command.FlowCheck, rent.CarID); err != nil {
		return err
	}

	var from model.VehicleStatus
	if v, ok := m.cache.Vehicle(rent.CarID); ok {
		from = v.Status
	}
	err := m.run(ctx, step{
		action: ActionCompleteCheck, role: command.RoleMechanic, carID: rent.CarID,
		from: from, to: model.StatusCompleted,
		call: func(ctx context.Context) error { return m.backend.CompleteCheckCar(ctx, rent) },
	})
	if err != nil {
		return err
	}
	m.evidence.Forget(command.FlowCheck, rent.CarID)
	m.afterCompletion(ctx, broadcast.KindCheckCompleted, rent.CarID)
	return nil
}

// afterCompletion runs the post-completion refresh sequence. Each step is
// independent: a failure is logged and the sequence carries on.
func (m *Machine) afterCompletion(ctx context.Context, kind broadcast.Kind, carID int64) {
	m.cache.ClearDelivery()
	logged("delivery refresh", m.refresher.RefreshDelivery)(ctx)
	logged("user refresh", m.refresher.RefreshUser)(ctx)
	logged("vehicle refresh", m.refresher.RefreshVehicles)(ctx)
	m.hub.Publish(kind, carID)

	m.schedule(m.delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logged("delayed vehicle refresh", m.refresher.RefreshVehicles)(ctx)
	})
}

func logged(name string, fn func(context.Context) error) func(context.Context) {
	return func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			log.Printf("Warning: %s failed: %v", name, err)
		}
	}
}

package workflow

import (
	"errors"
	"fmt"

	"fleet-rental-backend/internal/command"
)

var (
	ErrVehicleNotCached = errors.New("vehicle is not in any cached listing")
	ErrNoActiveRental   = errors.New("no active rental in delivery or use")
	ErrEvidenceMissing  = errors.New("after photos have not been uploaded")
)

// Action names a state machine operation.
type Action string

const (
	ActionReserveCheck     Action = "reserve_check"
	ActionAcceptDelivery   Action = "accept_delivery"
	ActionStartDelivery    Action = "start_delivery"
	ActionStartCheck       Action = "start_check"
	ActionCancelCheck      Action = "cancel_check"
	ActionOpenVehicle      Action = "open_vehicle"
	ActionCloseVehicle     Action = "close_vehicle"
	ActionGiveKey          Action = "give_key"
	ActionTakeKey          Action = "take_key"
	ActionUploadBefore     Action = "upload_before"
	ActionUploadAfter      Action = "upload_after"
	ActionCompleteCheck    Action = "complete_check"
	ActionCompleteDelivery Action = "complete_delivery"
)

var fallbackMessages = map[Action]string{
	ActionReserveCheck:     "Failed to reserve the vehicle",
	ActionAcceptDelivery:   "Failed to accept the delivery",
	ActionStartDelivery:    "Failed to start the delivery",
	ActionStartCheck:       "Failed to start the check",
	ActionCancelCheck:      "Failed to cancel the check",
	ActionOpenVehicle:      "Failed to unlock the vehicle",
	ActionCloseVehicle:     "Failed to lock the vehicle",
	ActionGiveKey:          "Failed to resume",
	ActionTakeKey:          "Failed to pause",
	ActionUploadBefore:     "Failed to upload photos",
	ActionUploadAfter:      "Failed to upload photos",
	ActionCompleteCheck:    "Failed to complete the rental",
	ActionCompleteDelivery: "Failed to complete the delivery",
}

// ActionError is what every failed operation returns. Message is safe to show
// to the user.
type ActionError struct {
	Action  Action
	Message string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Action, e.Message, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// newActionError prefers the backend's detail over the generic message.
func newActionError(action Action, err error) *ActionError {
	msg := fallbackMessages[action]
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) && cmdErr.Detail != "" {
		msg = cmdErr.Detail
	}
	return &ActionError{Action: action, Message: msg, Err: err}
}

package workflow

import "fleet-rental-backend/internal/model"

// AllowedTransitions lists the status changes the mechanic and rental flows
// are expected to make. The backend has the final word; a transition outside
// this table is still applied and logged.
var AllowedTransitions = map[model.VehicleStatus][]model.VehicleStatus{
	model.StatusPending:          {model.StatusChecking},
	model.StatusChecking:         {model.StatusDeliveryAccepted, model.StatusInUse, model.StatusPending},
	model.StatusDeliveryAccepted: {model.StatusInDelivery},
	model.StatusInDelivery:       {model.StatusCompleted},
	model.StatusInUse:            {model.StatusCompleted, model.StatusPending},
	model.StatusCompleted:        {model.StatusPending},
}

// CanTransition checks if a status change is in the table.
func CanTransition(from, to model.VehicleStatus) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// actionable reports whether pause, resume, lock and unlock apply.
func actionable(s model.VehicleStatus) bool {
	return s == model.StatusInDelivery || s == model.StatusInUse
}

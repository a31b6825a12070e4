package command

import (
	"fmt"

	"fleet-rental-backend/config"
)

// Role decides which side of the backend receives a vehicle action.
type Role string

const (
	RoleRenter   Role = "renter"
	RoleMechanic Role = "mechanic"
)

// VehicleAction is a physical action on the car shared by renters and mechanics.
type VehicleAction string

const (
	ActionOpenVehicle  VehicleAction = "open_vehicle"
	ActionCloseVehicle VehicleAction = "close_vehicle"
	ActionGiveKey      VehicleAction = "give_key"
	ActionTakeKey      VehicleAction = "take_key"
)

// VehicleRouter maps a vehicle action to the endpoint that performs it.
type VehicleRouter interface {
	Role() Role
	Path(action VehicleAction) (string, error)
}

type tableRouter struct {
	role  Role
	paths map[VehicleAction]string
}

func (r tableRouter) Role() Role { return r.role }

func (r tableRouter) Path(action VehicleAction) (string, error) {
	p, ok := r.paths[action]
	if !ok {
		return "", fmt.Errorf("%s router has no route for %q", r.role, action)
	}
	return p, nil
}

func newMechanicRouter() VehicleRouter {
	return tableRouter{role: RoleMechanic, paths: map[VehicleAction]string{
		ActionOpenVehicle:  "/mechanic/open",
		ActionCloseVehicle: "/mechanic/close",
		ActionGiveKey:      "/mechanic/give-key",
		ActionTakeKey:      "/mechanic/take-key",
	}}
}

func newRenterRouter(routes config.RenterRoutes) VehicleRouter {
	return tableRouter{role: RoleRenter, paths: map[VehicleAction]string{
		ActionOpenVehicle:  routes.Open,
		ActionCloseVehicle: routes.Close,
		ActionGiveKey:      routes.GiveKey,
		ActionTakeKey:      routes.TakeKey,
	}}
}

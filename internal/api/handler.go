package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"fleet-rental-backend/internal/broadcast"
	"fleet-rental-backend/internal/cache"
	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/pricing"
	"fleet-rental-backend/internal/store"
	"fleet-rental-backend/internal/workflow"
)

// VehicleSource reads vehicles straight from the backend on a cache miss.
type VehicleSource interface {
	Vehicles(ctx context.Context, filter command.Filter) ([]model.Vehicle, error)
	Search(ctx context.Context, query string) ([]model.Vehicle, error)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	webpush  *webpush.Options
	machine  *workflow.Machine
	cache    *cache.Store
	vehicles VehicleSource
	hub      *broadcast.Hub
}

// Deps groups what the handlers need.
type Deps struct {
	Store    store.Store
	WebPush  *webpush.Options
	Machine  *workflow.Machine
	Cache    *cache.Store
	Vehicles VehicleSource
	Hub      *broadcast.Hub
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:    d.Store,
		webpush:  d.WebPush,
		machine:  d.Machine,
		cache:    d.Cache,
		vehicles: d.Vehicles,
		hub:      d.Hub,
	}
}

// writeActionError maps state machine failures to HTTP answers carrying the
// user-facing message.
func writeActionError(c *gin.Context, err error) {
	var actionErr *workflow.ActionError
	if !errors.As(err, &actionErr) {
		log.Printf("Unexpected error on %s: %v", c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	var cmdErr *command.Error
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, workflow.ErrVehicleNotCached):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrNoActiveRental), errors.Is(err, workflow.ErrEvidenceMissing):
		status = http.StatusConflict
	case errors.Is(err, pricing.ErrUnknownMode), errors.Is(err, pricing.ErrDurationOutOfRange):
		status = http.StatusBadRequest
	case errors.As(err, &cmdErr) && cmdErr.Status >= 400 && cmdErr.Status < 500:
		status = http.StatusUnprocessableEntity
	}

	c.JSON(status, gin.H{"error": actionErr.Message, "action": actionErr.Action})
}

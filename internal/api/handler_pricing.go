package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/model"
	"fleet-rental-backend/internal/pricing"
)

type rentalModeResponse struct {
	Mode          pricing.RentalMode `json:"mode"`
	MaxDuration   int                `json:"max_duration"`
	HasOpeningFee bool               `json:"has_opening_fee"`
	UnitLabel     string             `json:"unit_label"`
}

// GetRentalModes lists the rental modes with the unit label for ?duration (default 1).
func (h *Handler) GetRentalModes(c *gin.Context) {
	n := 1
	if raw := c.Query("duration"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be an integer"})
			return
		}
		n = v
	}

	modes := make([]rentalModeResponse, 0, len(pricing.Modes()))
	for _, mode := range pricing.Modes() {
		cfg, _ := pricing.Config(mode)
		label, _ := pricing.UnitLabel(mode, n)
		modes = append(modes, rentalModeResponse{
			Mode:          mode,
			MaxDuration:   cfg.MaxDuration,
			HasOpeningFee: cfg.HasOpeningFee,
			UnitLabel:     label,
		})
	}
	c.JSON(http.StatusOK, gin.H{"modes": modes})
}

type quoteResponse struct {
	CarID       int64              `json:"car_id"`
	Mode        pricing.RentalMode `json:"mode"`
	Duration    int                `json:"duration"`
	MaxDuration int                `json:"max_duration"`
	UnitLabel   string             `json:"unit_label"`
	pricing.CostBreakdown
}

func newQuoteResponse(carID int64, sel pricing.Selection, car pricing.Car) (quoteResponse, error) {
	cost, err := sel.Quote(car)
	if err != nil {
		return quoteResponse{}, err
	}
	label, err := pricing.UnitLabel(sel.Mode, sel.Duration)
	if err != nil {
		return quoteResponse{}, err
	}
	return quoteResponse{
		CarID:         carID,
		Mode:          sel.Mode,
		Duration:      sel.Duration,
		MaxDuration:   pricing.MaxDuration(sel.Mode),
		UnitLabel:     label,
		CostBreakdown: cost,
	}, nil
}

// lookupVehicle reads a car from the cache, loading the full listing once on a miss.
func (h *Handler) lookupVehicle(ctx context.Context, id int64) (model.Vehicle, bool) {
	if v, ok := h.cache.Vehicle(id); ok {
		return v, true
	}
	list, err := h.vehicles.Vehicles(ctx, command.FilterAll)
	if err != nil {
		return model.Vehicle{}, false
	}
	h.cache.SetVehicles(command.FilterAll, list)
	return h.cache.Vehicle(id)
}

func (h *Handler) carFromPath(c *gin.Context) (model.Vehicle, bool) {
	id, err := strconv.ParseInt(c.Param("car_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
		return model.Vehicle{}, false
	}
	v, ok := h.lookupVehicle(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "car not found"})
		return model.Vehicle{}, false
	}
	return v, true
}

func writePricingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrUnknownMode), errors.Is(err, pricing.ErrDurationOutOfRange):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pricing.ErrInvalidTariff):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// GetQuote prices a car for ?mode and ?duration.
func (h *Handler) GetQuote(c *gin.Context) {
	v, ok := h.carFromPath(c)
	if !ok {
		return
	}

	mode, err := pricing.ParseMode(c.DefaultQuery("mode", string(pricing.ModeMinutes)))
	if err != nil {
		writePricingError(c, err)
		return
	}
	duration, err := strconv.Atoi(c.DefaultQuery("duration", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be an integer"})
		return
	}

	resp, err := newQuoteResponse(v.ID, pricing.Selection{Mode: mode, Duration: duration}, v.Tariff())
	if err != nil {
		writePricingError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type stepRequest struct {
	Mode     pricing.RentalMode `json:"mode" binding:"required"`
	Duration int                `json:"duration"`
	Op       string             `json:"op" binding:"required,oneof=increment decrement set switch_mode"`
	Value    int                `json:"value"`
	Target   pricing.RentalMode `json:"target_mode"`
}

type stepResponse struct {
	Selection  pricing.Selection  `json:"selection"`
	Quote      quoteResponse      `json:"quote"`
	RentalData pricing.RentalData `json:"rental_data"`
}

// PostQuoteStep applies one stepper operation to a selection and re-quotes it.
func (h *Handler) PostQuoteStep(c *gin.Context) {
	v, ok := h.carFromPath(c)
	if !ok {
		return
	}

	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := pricing.Config(req.Mode); err != nil {
		writePricingError(c, err)
		return
	}

	sel := pricing.Selection{Mode: req.Mode, Duration: req.Duration}.SetDuration(req.Duration)
	switch req.Op {
	case "increment":
		sel = sel.Increment()
	case "decrement":
		sel = sel.Decrement()
	case "set":
		sel = sel.SetDuration(req.Value)
	case "switch_mode":
		next, err := sel.SwitchMode(req.Target)
		if err != nil {
			writePricingError(c, err)
			return
		}
		sel = next
	}

	quote, err := newQuoteResponse(v.ID, sel, v.Tariff())
	if err != nil {
		writePricingError(c, err)
		return
	}
	c.JSON(http.StatusOK, stepResponse{Selection: sel, Quote: quote, RentalData: sel.RentalData(v.ID)})
}

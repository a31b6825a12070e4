package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fleet-rental-backend/internal/command"
	"fleet-rental-backend/internal/pricing"
)

const maxUploadBytes = 32 << 20

func carIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("car_id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
		return 0, false
	}
	return id, true
}

func (h *Handler) Reserve(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}
	if err := h.machine.Reserve(c.Request.Context(), id); err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "checking"})
}

func (h *Handler) AcceptDelivery(c *gin.Context) {
	id, ok := carIDParam(c)
	if !ok {
		return
	}
	if err := h.machine.AcceptDelivery(c.Request.Context(), id); err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "delivery_accepted"})
}

func respond(c *gin.Context, err error) {
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *Handler) StartDelivery(c *gin.Context) {
	respond(c, h.machine.StartDelivery(c.Request.Context()))
}

func (h *Handler) StartCheck(c *gin.Context) {
	respond(c, h.machine.StartCheck(c.Request.Context()))
}

func (h *Handler) CancelCheck(c *gin.Context) {
	respond(c, h.machine.CancelCheck(c.Request.Context()))
}

func (h *Handler) CompleteDelivery(c *gin.Context) {
	respond(c, h.machine.CompleteDelivery(c.Request.Context()))
}

// CompleteCheck closes a direct rental; the body is the booking payload.
func (h *Handler) CompleteCheck(c *gin.Context) {
	var rent pricing.RentalData
	if err := c.ShouldBindJSON(&rent); err != nil || rent.CarID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "car_id, rental_type and duration are required"})
		return
	}
	if err := h.machine.CompleteCheckCar(c.Request.Context(), rent); err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// respondRole reports which endpoint family served a vehicle action.
func respondRole(c *gin.Context, role command.Role, err error) {
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "role": role})
}

func (h *Handler) Pause(c *gin.Context) {
	role, err := h.machine.Pause(c.Request.Context())
	respondRole(c, role, err)
}

func (h *Handler) Resume(c *gin.Context) {
	role, err := h.machine.Resume(c.Request.Context())
	respondRole(c, role, err)
}

func (h *Handler) Lock(c *gin.Context) {
	role, err := h.machine.Lock(c.Request.Context())
	respondRole(c, role, err)
}

func (h *Handler) Unlock(c *gin.Context) {
	role, err := h.machine.Unlock(c.Request.Context())
	respondRole(c, role, err)
}

// GetLastAction returns the confirmation marker while it is visible.
func (h *Handler) GetLastAction(c *gin.Context) {
	last, ok := h.machine.LastAction()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"active": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": true, "action": last.Action, "at": last.At})
}

// UploadPhotos forwards a multipart photo set, keeping the form field names.
func (h *Handler) UploadPhotos(c *gin.Context) {
	flow := command.Flow(c.Param("flow"))
	phase := command.Phase(c.Param("phase"))
	if (flow != command.FlowCheck && flow != command.FlowDelivery) || (phase != command.PhaseBefore && phase != command.PhaseAfter) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown upload target"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart form expected"})
		return
	}

	var photos []command.Photo
	for field, headers := range form.File {
		for _, fh := range headers {
			data, err := readFormFile(fh)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("failed to read %s", fh.Filename)})
				return
			}
			photos = append(photos, command.Photo{
				Field:       field,
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}
	if len(photos) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no photos attached"})
		return
	}

	completed, err := h.machine.UploadEvidence(c.Request.Context(), flow, phase, photos)
	if err != nil {
		writeActionError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "completed": completed, "photos": len(photos)})
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// GetActions lists the command journal, newest first.
func (h *Handler) GetActions(c *gin.Context) {
	var carID int64
	if raw := c.Query("car_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
			return
		}
		carID = id
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return
	}

	entries, err := h.store.RecentActions(c.Request.Context(), carID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": entries})
}

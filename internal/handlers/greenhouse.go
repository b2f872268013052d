package handlers

import (
	"errors"
	"net/http"
	"strings"

	"greenhouse_control/internal/controller"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	statusOK      = "ok"
	statusUpdated = "updated"
	statusForced  = "forced"

	errGetStatus       = "failed to load status"
	errUpdateThreshold = "failed to update thresholds"
	errOverride        = "failed to override actuator"
	errNoReadingYet    = "no reading has been evaluated yet"
	errUnknownChannel  = "unknown channel; use pump, fan or leds"
	errEmptyUpdate     = "no threshold fields given"
	errInvalidBodyPref = "invalid body: "
	errSignIn          = "sign-in is unavailable"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// OverrideRequest forces one actuator channel until the next reading.
type OverrideRequest struct {
	// Channel: pump, fan or leds (bomba, ventilador, luces accepted)
	Channel string `json:"channel" binding:"required" example:"fan"`
	On      *bool  `json:"on" binding:"required" example:"true"`
}

// CommandRequest carries one free-text operator command.
type CommandRequest struct {
	Text string `json:"text" binding:"required" example:"/estado"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Coordinator status
// @Description  Latest reading and command (one consistent snapshot), alert flags, system state and links.
// @Tags         greenhouse
// @Produce      json
// @Success      200  {object}  service.Status
// @Failure      401  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/status [get]
// @Security     BearerAuth
func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Monitoring.Status(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Current thresholds
// @Tags         greenhouse
// @Produce      json
// @Success      200  {object}  models.Thresholds
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/thresholds [get]
// @Security     BearerAuth
func (h *Handler) getThresholds(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Control.Thresholds())
}

// @Summary      Update thresholds
// @Description  Applies every field or none. Field names: soil_low, soil_high, temp_low, temp_high, co2_high, light_low, voltage_low, signal_low (Spanish aliases accepted).
// @Tags         greenhouse
// @Accept       json
// @Produce      json
// @Param        body  body      map[string]number  true  "Field updates"
// @Success      200   {object}  map[string]interface{}  "status, thresholds"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/thresholds [put]
// @Security     BearerAuth
func (h *Handler) updateThresholds(c *gin.Context) {
	var updates map[string]float64
	if ok := h.bindJSONOrBadRequest(c, &updates); !ok {
		return
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errEmptyUpdate})
		return
	}

	th, err := h.services.Control.UpdateThresholds(c.Request.Context(), updates)
	switch {
	case errors.Is(err, controller.ErrUnknownThreshold),
		errors.Is(err, controller.ErrThresholdRange),
		errors.Is(err, controller.ErrThresholdOrder):
		if h.log != nil {
			h.log.Infow("thresholds_rejected", "err", err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errUpdateThreshold, "thresholds_update_failed", err)
		return
	}
	if h.log != nil {
		h.log.Infow("thresholds_updated", "operator_id", operatorID(c), "fields", len(updates))
	}
	c.JSON(http.StatusOK, gin.H{"status": statusUpdated, "thresholds": th})
}

// @Summary      Override an actuator
// @Description  Forces one channel until the next reading is evaluated.
// @Tags         greenhouse
// @Accept       json
// @Produce      json
// @Param        body  body      OverrideRequest  true  "Override"
// @Success      200   {object}  map[string]interface{}  "status, seq, command"
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/actuators/override [post]
// @Security     BearerAuth
func (h *Handler) overrideActuator(c *gin.Context) {
	var req OverrideRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	ch, ok := service.ParseChannel(req.Channel)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": errUnknownChannel})
		return
	}

	snap, err := h.services.Control.Override(c.Request.Context(), ch, *req.On)
	switch {
	case errors.Is(err, controller.ErrNoReading):
		c.JSON(http.StatusConflict, gin.H{"error": errNoReadingYet})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errOverride, "override_failed", err, "channel", ch)
		return
	}
	if h.log != nil {
		h.log.Infow("override_requested", "operator_id", operatorID(c), "channel", ch, "on", *req.On)
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  statusForced,
		"seq":     snap.Seq,
		"command": snap.Command,
		"source":  snap.Source,
	})
}

// @Summary      Run an operator command
// @Description  Same vocabulary as the remote chat channel (/datos, /estado, /umbral, /umbrales, /activar, /desactivar, /actuadores, /guia). Unrecognized text gets a generic reply.
// @Tags         greenhouse
// @Accept       json
// @Produce      json
// @Param        body  body      CommandRequest  true  "Command"
// @Success      200   {object}  service.Reply
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Router       /api/v1/commands [post]
// @Security     BearerAuth
func (h *Handler) executeCommand(c *gin.Context) {
	var req CommandRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	reply := h.services.Control.Execute(c.Request.Context(), strings.TrimSpace(req.Text))
	c.JSON(http.StatusOK, reply)
}

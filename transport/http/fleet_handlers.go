package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/layer-3/bustrack/core"
	"github.com/layer-3/bustrack/service"
)

const maxRequestBody = 1 << 20

// FleetHandlers forward bus, driver and location requests with the caller's bearer token
type FleetHandlers struct {
	fleetService *service.FleetService
}

// NewFleetHandlers creates new fleet handlers
func NewFleetHandlers(fleetService *service.FleetService) *FleetHandlers {
	return &FleetHandlers{
		fleetService: fleetService,
	}
}

// passThrough writes an upstream answer, or an upstream failure, verbatim
func passThrough(c *gin.Context, up *core.Upstream, err error) {
	if err != nil {
		var upstream *core.UpstreamError
		if errors.As(err, &upstream) && json.Valid(upstream.Body) {
			_ = c.Error(err)
			c.Data(upstream.StatusCode, "application/json", upstream.Body)
			c.Abort()
			return
		}
		abortWithError(c, err, http.StatusUnauthorized)
		return
	}
	c.Data(up.StatusCode, up.ContentType, up.Body)
}

func readBody(c *gin.Context) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBody))
	if err != nil || !json.Valid(body) {
		badRequest(c)
		return nil, false
	}
	return body, true
}

func (h *FleetHandlers) ListBuses(c *gin.Context) {
	buses, err := h.fleetService.ListBuses(c.Request.Context(), bearerFrom(c))
	if err != nil {
		if core.KindOf(err) == core.KindNotFound {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "No buses found."})
			return
		}
		passThrough(c, nil, err)
		return
	}

	c.JSON(http.StatusOK, buses)
}

func (h *FleetHandlers) AddBus(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	up, err := h.fleetService.AddBus(c.Request.Context(), bearerFrom(c), body)
	passThrough(c, up, err)
}

func (h *FleetHandlers) GetBus(c *gin.Context) {
	up, err := h.fleetService.GetBusForDriver(c.Request.Context(), bearerFrom(c), c.Query("email"))
	passThrough(c, up, err)
}

func (h *FleetHandlers) StoreLocation(c *gin.Context) {
	var location core.Location
	if err := c.ShouldBindJSON(&location); err != nil {
		var invalid *core.Error
		if errors.As(err, &invalid) {
			abortWithError(c, invalid, http.StatusBadRequest)
			return
		}
		badRequest(c)
		return
	}

	up, err := h.fleetService.StoreLocation(c.Request.Context(), bearerFrom(c), location)
	passThrough(c, up, err)
}

func (h *FleetHandlers) ListLocations(c *gin.Context) {
	locations, err := h.fleetService.ListLocations(c.Request.Context(), bearerFrom(c))
	if err != nil {
		var upstream *core.UpstreamError
		switch {
		case errors.As(err, &upstream):
			_ = c.Error(err)
			c.AbortWithStatusJSON(upstream.StatusCode, gin.H{"message": "Failed to fetch bus locations."})
		case core.KindOf(err) == core.KindNotFound:
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "No buses found."})
		default:
			abortWithError(c, err, http.StatusUnauthorized)
		}
		return
	}

	c.JSON(http.StatusOK, locations)
}

func (h *FleetHandlers) AddUser(c *gin.Context) {
	body, ok := readBody(c)
	if !ok {
		return
	}

	up, err := h.fleetService.AddUser(c.Request.Context(), bearerFrom(c), body)
	passThrough(c, up, err)
}

package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/api/dto"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/service"
)

type AnalyticsHandler struct {
	analyticsService service.AnalyticsService
	log              *logger.Logger
}

func NewAnalyticsHandler(analyticsService service.AnalyticsService, log *logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		log:              log,
	}
}

// Built-in series the read API can address by method name.
var timeDataMethods = map[string]bool{
	"locations":      true,
	"sessions":       true,
	"users":          true,
	"devices":        true,
	"device_details": true,
	"carriers":       true,
	"app_versions":   true,
	"cities":         true,
}

// Fetch serves one dashboard read. Responses support JSONP through the
// callback parameter; an unknown application answers an empty 200 so
// the read API leaks nothing about which keys exist.
func (h *AnalyticsHandler) Fetch(c *gin.Context) {
	ctx := c.Request.Context()

	req := &dto.AnalyticsRequest{
		AppKey:     c.Query("app_key"),
		Method:     c.Query("method"),
		Event:      c.Query("event"),
		Action:     c.Query("action"),
		Dimensions: c.Query("dimensions"),
		Timestamp:  c.Query("timestamp"),
	}

	if err := req.Validate(); err != nil {
		NewErrorResponse(c, http.StatusBadRequest, "Invalid request parameters", err)
		return
	}

	var (
		result any
		err    error
	)
	switch {
	case timeDataMethods[req.Method]:
		result, err = h.analyticsService.FetchTimeData(ctx, req)
	case req.Method == "events":
		result, err = h.analyticsService.FetchEvents(ctx, req)
	case req.Method == "get_events":
		result, err = h.analyticsService.FetchEventsCatalog(ctx, req)
	default:
		NewErrorResponse(c, http.StatusBadRequest, "Unknown method", nil)
		return
	}

	if err != nil {
		if ierr.IsNotFound(err) {
			c.Status(http.StatusOK)
			return
		}
		h.log.Errorw("failed to serve read request", "method", req.Method, "error", err)
		NewErrorResponse(c, http.StatusInternalServerError, "Failed to fetch data", err)
		return
	}

	c.JSONP(http.StatusOK, result)
}

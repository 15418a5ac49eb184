package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tallyhq/tally/internal/api/dto"
	"github.com/tallyhq/tally/internal/config"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/types"
)

type IngestHandler struct {
	ingestService service.IngestService
	config        *config.Configuration
	log           *logger.Logger
}

func NewIngestHandler(ingestService service.IngestService, cfg *config.Configuration, log *logger.Logger) *IngestHandler {
	return &IngestHandler{
		ingestService: ingestService,
		config:        cfg,
		log:           log,
	}
}

// Track accepts one SDK write request. The SDK fires and forgets, so
// everything past parameter validation answers 200: processing
// failures are an operator problem, not a client one.
func (h *IngestHandler) Track(c *gin.Context) {
	ctx := c.Request.Context()

	req := &dto.TrackRequest{
		AppKey:          c.Query("app_key"),
		DeviceID:        c.Query("device_id"),
		IPAddress:       c.ClientIP(),
		SDKVersion:      c.Query("sdk_version"),
		Timestamp:       c.Query("timestamp"),
		SessionDuration: c.Query("session_duration"),
		BeginSession:    c.Query("begin_session") != "",
		EndSession:      c.Query("end_session") != "",
	}
	req.Metrics = dto.ParseMetrics(c.Query("metrics"), h.log)
	req.Events = dto.ParseEvents(c.Query("events"), h.log)
	if h.config.Users.Dimensions {
		req.Dimensions = dto.ParseDimensions(c.Query("dimensions"), h.config.Users.DimensionsWhitelist, h.log)
	}

	if err := req.Validate(); err != nil {
		NewErrorResponse(c, http.StatusBadRequest, "Invalid request parameters", err)
		return
	}

	if err := h.ingestService.Track(ctx, req); err != nil {
		h.log.Errorw("failed to process write request",
			"request_id", types.GetRequestID(ctx),
			"app_key", req.AppKey,
			"error", err)
	}

	c.Status(http.StatusOK)
}

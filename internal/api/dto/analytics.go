package dto

import (
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/validator"
)

// AnalyticsRequest is one decoded read request.
type AnalyticsRequest struct {
	AppKey string `validate:"required"`
	Method string
	Event  string
	Action string
	// Dimensions optionally addresses a single dimension document by
	// id instead of the application-wide one.
	Dimensions string
	Timestamp  string
}

func (r *AnalyticsRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return ierr.WithError(err).
			WithHint("The app_key parameter is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

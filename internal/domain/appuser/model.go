package appuser

import (
	"github.com/tallyhq/tally/internal/domain/app"
)

// AppUser is the per-application, per-device identity record. Field
// names keep the short codes of the stored documents.
type AppUser struct {
	ID                   string          `json:"id" dynamodbav:"uid"`
	AppID                string          `json:"app_id" dynamodbav:"app_id"`
	DeviceID             string          `json:"device_id" dynamodbav:"did"`
	LastSeen             int64           `json:"last_seen" dynamodbav:"ls"`
	SessionDuration      int64           `json:"session_duration" dynamodbav:"sd"`
	TotalSessionDuration int64           `json:"total_session_duration" dynamodbav:"tsd"`
	SessionCount         int64           `json:"session_count" dynamodbav:"sc"`
	CountryCode          string          `json:"country_code" dynamodbav:"cc"`
	Device               string          `json:"device" dynamodbav:"d"`
	Carrier              string          `json:"carrier" dynamodbav:"c"`
	Platform             string          `json:"platform" dynamodbav:"p"`
	PlatformVersion      string          `json:"platform_version" dynamodbav:"pv"`
	AppVersion           string          `json:"app_version" dynamodbav:"av"`
	Dimensions           []app.Dimension `json:"dimensions,omitempty" dynamodbav:"dm"`
}

// SessionProps are the user properties refreshed on every session.
// Empty strings are not written.
type SessionProps struct {
	LastSeen        int64
	DeviceID        string
	CountryCode     string
	Device          string
	Carrier         string
	Platform        string
	PlatformVersion string
	AppVersion      string
}

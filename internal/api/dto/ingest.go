package dto

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/tallyhq/tally/internal/aggregation"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/logger"
	"github.com/tallyhq/tally/internal/types"
	"github.com/tallyhq/tally/internal/validator"
)

// TrackRequest is one decoded write request. The SDK sends everything
// as query string parameters, with metrics, events and dimensions as
// embedded JSON.
type TrackRequest struct {
	AppKey     string `validate:"required"`
	DeviceID   string `validate:"required"`
	IPAddress  string
	SDKVersion string

	Timestamp       string
	SessionDuration string
	BeginSession    bool
	EndSession      bool

	Metrics    map[string]string
	Events     []aggregation.Event
	Dimensions map[string]string
}

func (r *TrackRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return ierr.WithError(err).
			WithHint("Both app_key and device_id parameters are required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// The metric keys a client may report. Everything else is dropped.
var allowedMetrics = []string{"_os", "_os_version", "_device", "_resolution", "_carrier", "_app_version"}

// ParseMetrics decodes the metrics JSON parameter. Carrier names are
// normalized to title case and the OS version is prefixed with the
// lowercased first letter of the OS so "4.1" from Android and iOS stay
// distinct. Malformed JSON drops the whole parameter.
func ParseMetrics(raw string, log *logger.Logger) map[string]string {
	if raw == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnw("metrics JSON parsing failed", "error", err)
		return nil
	}

	metrics := make(map[string]string)
	for key, value := range parsed {
		if !lo.Contains(allowedMetrics, key) {
			continue
		}
		if s := stringify(value); s != "" {
			metrics[key] = s
		}
	}

	if carrier, ok := metrics["_carrier"]; ok {
		metrics["_carrier"] = titleCase(carrier)
	}
	if os, ok := metrics["_os"]; ok && metrics["_os_version"] != "" {
		metrics["_os_version"] = strings.ToLower(os[:1]) + metrics["_os_version"]
	}

	return metrics
}

// ParseEvents decodes the events JSON parameter. Malformed JSON drops
// the whole parameter; individual events missing a key or a numeric
// count are filtered out later by the processor.
func ParseEvents(raw string, log *logger.Logger) []aggregation.Event {
	if raw == "" {
		return nil
	}

	var parsed []struct {
		ID           string         `json:"id"`
		Key          string         `json:"key"`
		Count        any            `json:"count"`
		Sum          any            `json:"sum"`
		Timestamp    any            `json:"timestamp"`
		Segmentation map[string]any `json:"segmentation"`
		SegKey       string         `json:"seg_key"`
		SegValue     string         `json:"seg_val"`
	}
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnw("events JSON parsing failed", "error", err)
		return nil
	}

	events := make([]aggregation.Event, 0, len(parsed))
	for _, p := range parsed {
		event := aggregation.Event{
			ID:       p.ID,
			Key:      p.Key,
			SegKey:   p.SegKey,
			SegValue: p.SegValue,
		}
		if count, ok := number(p.Count); ok {
			event.Count = count
		}
		if sum, ok := number(p.Sum); ok {
			event.Sum = sum
			event.HasSum = true
		}
		if ts := stringify(p.Timestamp); ts != "" {
			event.Timestamp = ts
		}
		if len(p.Segmentation) > 0 {
			event.Segmentation = make(map[string]string, len(p.Segmentation))
			for k, v := range p.Segmentation {
				event.Segmentation[k] = stringify(v)
			}
		}
		events = append(events, event)
	}
	return events
}

// ParseDimensions decodes the dimensions JSON parameter, sanitizing
// keys and filtering by the configured whitelist. An empty whitelist
// accepts every key.
func ParseDimensions(raw string, whitelist []string, log *logger.Logger) map[string]string {
	if raw == "" {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		log.Warnw("user dimensions JSON parsing failed", "error", err)
		return nil
	}

	dimensions := make(map[string]string)
	for key, value := range parsed {
		if len(whitelist) > 0 && !lo.Contains(whitelist, key) {
			continue
		}
		dimensions[types.SanitizeFieldKey(key)] = stringify(value)
	}
	return dimensions
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		encoded, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// number accepts JSON numbers and numeric strings, matching the loose
// typing of older SDKs.
func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		parsed, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
	}
	return strings.Join(words, " ")
}

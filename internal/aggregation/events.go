package aggregation

import (
	"time"

	"github.com/samber/lo"

	"github.com/tallyhq/tally/internal/publisher"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/types"
)

// Event is one custom event occurrence as received from the SDK.
type Event struct {
	ID           string
	Key          string
	Count        float64
	Sum          float64
	HasSum       bool
	Timestamp    string
	Segmentation map[string]string

	// Older SDKs send a single segmentation pair instead of the map.
	SegKey   string
	SegValue string
}

// SegmentUpdate is one pending counter mutation of an event
// collection. Collection carries the short event key only; callers
// append the document-set suffix when applying.
type SegmentUpdate struct {
	ShortName string
	Segment   string
	Update    store.Update
}

// EventPlan is everything one batch of events changes: the per-segment
// counter updates, the catalog additions and the raw log records.
type EventPlan struct {
	Updates []SegmentUpdate
	// CatalogKeys lists the short event keys seen in the batch.
	CatalogKeys []string
	// CatalogSegments maps short event keys to the segmentation keys
	// seen for them.
	CatalogSegments map[string][]string
	LogRecords      []*publisher.EventRecord
}

// EventProcessor folds a batch of raw events into the minimal set of
// store updates. Events carrying their own timestamp are bucketed at
// that instant instead of the request's.
type EventProcessor struct {
	appID        string
	userID       string
	loc          *time.Location
	base         TimeContext
	serverNow    time.Time
	logEnabled   bool
	logWhitelist []string
}

func NewEventProcessor(appID, userID string, loc *time.Location, base TimeContext, serverNow time.Time, logEnabled bool, logWhitelist []string) *EventProcessor {
	return &EventProcessor{
		appID:        appID,
		userID:       userID,
		loc:          loc,
		base:         base,
		serverNow:    serverNow,
		logEnabled:   logEnabled,
		logWhitelist: logWhitelist,
	}
}

func (p *EventProcessor) Process(events []Event) EventPlan {
	plan := EventPlan{CatalogSegments: make(map[string][]string)}

	// collection -> segment -> pending increments
	pending := make(map[string]map[string]map[string]float64)
	// collection -> meta set field -> members, applied with the
	// no-segment document so meta lives in one place per collection
	metaSets := make(map[string]map[string][]string)

	for _, event := range events {
		if event.Key == "" || event.Count == 0 {
			continue
		}

		shortName := types.SanitizeEventKey(event.Key)
		if len(shortName)+len(p.appID) > types.MaxCollectionNameLen {
			continue
		}

		tc := p.base
		if event.Timestamp != "" {
			tc = NewTimeContext(p.loc, event.Timestamp, p.serverNow)
		}

		if p.shouldLog(event.Key) {
			plan.LogRecords = append(plan.LogRecords, p.logRecord(event, tc))
		}

		if !lo.Contains(plan.CatalogKeys, shortName) {
			plan.CatalogKeys = append(plan.CatalogKeys, shortName)
		}

		noSegment := make(map[string]float64)
		if event.HasSum {
			FillBuckets(noSegment, tc, types.MetricSum.String(), event.Sum)
		}
		FillBuckets(noSegment, tc, types.MetricCount.String(), event.Count)
		mergeInc(pendingSegment(pending, shortName, types.NoSegment), noSegment)

		for segKey, segValue := range event.segmentation() {
			if segValue == "" {
				continue
			}
			segValue = types.SanitizeFieldKey(segValue)

			segmented := make(map[string]float64)
			if event.HasSum {
				FillBuckets(segmented, tc, segValue+"."+types.MetricSum.String(), event.Sum)
			}
			FillBuckets(segmented, tc, segValue+"."+types.MetricCount.String(), event.Count)
			mergeInc(pendingSegment(pending, shortName, segKey), segmented)

			sets := metaSets[shortName]
			if sets == nil {
				sets = make(map[string][]string)
				metaSets[shortName] = sets
			}
			if !lo.Contains(sets["meta."+segKey], segValue) {
				sets["meta."+segKey] = append(sets["meta."+segKey], segValue)
			}
			if !lo.Contains(sets["meta.segments"], segKey) {
				sets["meta.segments"] = append(sets["meta.segments"], segKey)
			}
			if !lo.Contains(plan.CatalogSegments[shortName], segKey) {
				plan.CatalogSegments[shortName] = append(plan.CatalogSegments[shortName], segKey)
			}
		}
	}

	for _, shortName := range plan.CatalogKeys {
		segments := pending[shortName]
		for segment, inc := range segments {
			update := store.Update{Inc: inc}
			if segment == types.NoSegment {
				update.AddToSet = metaSets[shortName]
			}
			plan.Updates = append(plan.Updates, SegmentUpdate{
				ShortName: shortName,
				Segment:   segment,
				Update:    update,
			})
		}
	}

	return plan
}

func (p *EventProcessor) shouldLog(key string) bool {
	if !p.logEnabled {
		return false
	}
	return len(p.logWhitelist) == 0 || lo.Contains(p.logWhitelist, key)
}

func (p *EventProcessor) logRecord(event Event, tc TimeContext) *publisher.EventRecord {
	id := event.ID
	if id == "" {
		id = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EVENT_RECORD)
	}
	record := &publisher.EventRecord{
		ID:        id,
		AppID:     p.appID,
		UserID:    p.userID,
		Key:       event.Key,
		Timestamp: tc.Timestamp,
		Count:     event.Count,
	}
	if event.HasSum {
		record.Sum = event.Sum
	}
	if len(event.Segmentation) > 0 {
		record.Segmentation = event.Segmentation
	}
	return record
}

// segmentation normalizes the legacy single-pair form into the map
// form so processing only deals with one shape.
func (e Event) segmentation() map[string]string {
	if len(e.Segmentation) > 0 {
		return e.Segmentation
	}
	if e.SegKey != "" && e.SegValue != "" {
		return map[string]string{e.SegKey: e.SegValue}
	}
	return nil
}

func pendingSegment(pending map[string]map[string]map[string]float64, shortName, segment string) map[string]float64 {
	segments := pending[shortName]
	if segments == nil {
		segments = make(map[string]map[string]float64)
		pending[shortName] = segments
	}
	inc := segments[segment]
	if inc == nil {
		inc = make(map[string]float64)
		segments[segment] = inc
	}
	return inc
}

func mergeInc(dst, src map[string]float64) {
	for field, delta := range src {
		dst[field] += delta
	}
}

package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/tallyhq/tally/internal/aggregation"
	"github.com/tallyhq/tally/internal/api/dto"
	"github.com/tallyhq/tally/internal/domain/app"
	"github.com/tallyhq/tally/internal/domain/appuser"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/store"
	"github.com/tallyhq/tally/internal/types"
)

// IngestService turns one SDK write request into counter updates.
// Requests against unknown application keys are dropped silently so
// probing clients learn nothing.
type IngestService interface {
	Track(ctx context.Context, req *dto.TrackRequest) error

	// Wait blocks until background document reconciliation has drained.
	Wait()
}

type ingestService struct {
	ServiceParams
	background *conc.WaitGroup
}

func NewIngestService(params ServiceParams) IngestService {
	return &ingestService{
		ServiceParams: params,
		background:    conc.NewWaitGroup(),
	}
}

func (s *ingestService) Wait() {
	s.background.Wait()
}

func (s *ingestService) Track(ctx context.Context, req *dto.TrackRequest) error {
	a, err := s.AppRepo.GetByKey(ctx, req.AppKey)
	if err != nil {
		if ierr.IsNotFound(err) {
			s.Logger.Debugw("dropping request for unknown app key", "app_key", req.AppKey)
			return nil
		}
		return err
	}

	userID := s.appUserID(req)
	ctx = types.SetAppID(ctx, a.ID)
	ctx = types.SetAppUserID(ctx, userID)

	loc := a.Location()
	tc := aggregation.NewTimeContext(loc, req.Timestamp, s.now())

	user, err := s.UserRepo.Get(ctx, a.ID, userID)
	if err != nil && !ierr.IsNotFound(err) {
		return err
	}
	userExists := err == nil

	dims, err := s.resolveDimensions(ctx, a, user, userExists, userID, req)
	if err != nil {
		return err
	}

	switch {
	case len(req.Events) > 0:
		inc := make(map[string]float64)
		aggregation.FillBuckets(inc, tc, types.MetricEvents.String(), 1)
		s.applyWithDimensions(ctx, types.CollectionSessions, a.ID, store.Update{Inc: inc}, true, dims)
		return s.processEvents(ctx, a, userID, loc, tc, dims, req.Events)
	case req.SessionDuration != "":
		return s.processSessionDuration(ctx, a, userID, tc, dims, req.SessionDuration)
	default:
		return s.processSession(ctx, a, user, userExists, userID, tc, loc, dims, req)
	}
}

// appUserID derives the stable per-application user identity from the
// device id, hashed together with the app key unless configured
// otherwise for backwards compatibility.
func (s *ingestService) appUserID(req *dto.TrackRequest) string {
	if !s.Config.Users.HashDeviceIDs {
		return req.DeviceID
	}
	sum := sha1.Sum([]byte(req.AppKey + req.DeviceID))
	return hex.EncodeToString(sum[:])
}

func (s *ingestService) resolveDimensions(ctx context.Context, a *app.App, user *appuser.AppUser, userExists bool, userID string, req *dto.TrackRequest) ([]app.Dimension, error) {
	if !s.Config.Users.Dimensions {
		return nil, nil
	}
	if len(req.Dimensions) == 0 {
		if userExists {
			return user.Dimensions, nil
		}
		return nil, nil
	}

	var userDims []app.Dimension
	if userExists {
		userDims = user.Dimensions
	}
	res := aggregation.ResolveDimensions(req.Dimensions, userDims, a.Dimensions, userExists, s.Config.Users.Cartesian)

	if len(res.NewForApp) > 0 {
		if err := s.AppRepo.AppendDimensions(ctx, a.Key, res.NewForApp); err != nil {
			return nil, err
		}
	}
	if res.UserChanged {
		if err := s.UserRepo.SetDimensions(ctx, a.ID, userID, res.Dimensions); err != nil {
			return nil, err
		}
	}
	return res.Dimensions, nil
}

// processSession handles the begin/end session branch. Geo resolution
// happens only here; pure duration and event requests never need it.
func (s *ingestService) processSession(ctx context.Context, a *app.App, user *appuser.AppUser, userExists bool, userID string, tc aggregation.TimeContext, loc *time.Location, dims []app.Dimension, req *dto.TrackRequest) error {
	country, city := "Unknown", "Unknown"
	if location, ok := s.Geo.Lookup(req.IPAddress); ok {
		if location.Country != "" {
			country = location.Country
		}
		if location.City != "" {
			city = location.City
		}
	}

	switch {
	case req.BeginSession:
		return s.processUserSession(ctx, a, user, userExists, userID, tc, loc, dims, req, country, city)
	case req.EndSession:
		if userExists && user.SessionDuration > 0 {
			return s.processDurationRange(ctx, a, userID, tc, dims, user.SessionDuration)
		}
		return nil
	default:
		return nil
	}
}

func (s *ingestService) processSessionDuration(ctx context.Context, a *app.App, userID string, tc aggregation.TimeContext, dims []app.Dimension, raw string) error {
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.Logger.Debugw("ignoring non-numeric session_duration", "value", raw)
		return nil
	}

	inc := make(map[string]float64)
	aggregation.FillBuckets(inc, tc, types.MetricDuration.String(), float64(seconds))
	s.applyWithDimensions(ctx, types.CollectionSessions, a.ID, store.Update{Inc: inc}, true, dims)

	return s.UserRepo.AddSessionDuration(ctx, a.ID, userID, seconds)
}

// processDurationRange buckets the accumulated session duration once a
// session ends, then resets the running counter. The sessions
// documents are guaranteed to exist at this point, so the update
// deliberately does not upsert.
func (s *ingestService) processDurationRange(ctx context.Context, a *app.App, userID string, tc aggregation.TimeContext, dims []app.Dimension, totalSeconds int64) error {
	r := aggregation.DurationRange(totalSeconds)

	inc := make(map[string]float64)
	aggregation.FillBuckets(inc, tc, types.MetricDurations.String()+"."+r, 1)
	update := store.Update{
		Inc:      inc,
		AddToSet: map[string][]string{"meta.d-ranges": {r}},
	}
	s.applyWithDimensions(ctx, types.CollectionSessions, a.ID, update, false, dims)

	return s.UserRepo.ResetSessionDuration(ctx, a.ID, userID)
}

func (s *ingestService) processUserSession(ctx context.Context, a *app.App, user *appuser.AppUser, userExists bool, userID string, tc aggregation.TimeContext, loc *time.Location, dims []app.Dimension, req *dto.TrackRequest, country, city string) error {
	var (
		sessions  = make(map[string]float64)
		locations = make(map[string]float64)
		cities    = make(map[string]float64)
		users     = make(map[string]float64)
		userSets  = make(map[string][]string)
	)

	total := types.MetricTotal.String()
	unique := types.MetricUnique.String()

	aggregation.FillBuckets(sessions, tc, total, 1)
	aggregation.FillBuckets(locations, tc, country+"."+total, 1)
	aggregation.FillBuckets(cities, tc, city+"."+total, 1)

	var uniqueLevels []string
	if userExists {
		frequency := aggregation.FrequencyRange(tc.Timestamp - user.LastSeen)
		loyalty := aggregation.LoyaltyRange(user.SessionCount + 1)

		var hourlyUnique bool
		uniqueLevels, hourlyUnique = aggregation.UniqueLevels(tc, user.LastSeen, loc)
		if hourlyUnique {
			sessions[tc.Hourly+"."+unique]++
		}
		for _, level := range uniqueLevels {
			sessions[level+"."+unique]++
			locations[level+"."+country+"."+unique]++
			cities[level+"."+city+"."+unique]++
			users[level+"."+types.MetricFrequency.String()+"."+frequency]++
			users[level+"."+types.MetricLoyalty.String()+"."+loyalty]++
		}
		if len(uniqueLevels) > 0 {
			userSets["meta.f-ranges"] = []string{frequency}
			userSets["meta.l-ranges"] = []string{loyalty}
			s.applyWithDimensions(ctx, types.CollectionUsers, a.ID, store.Update{Inc: users, AddToSet: userSets}, true, dims)
		}
	} else {
		// Never seen before: both new and unique on every level.
		aggregation.FillBuckets(sessions, tc, types.MetricNew.String(), 1)
		aggregation.FillBuckets(sessions, tc, unique, 1)
		aggregation.FillBuckets(locations, tc, country+"."+types.MetricNew.String(), 1)
		aggregation.FillBuckets(locations, tc, country+"."+unique, 1)
		aggregation.FillBuckets(cities, tc, city+"."+types.MetricNew.String(), 1)
		aggregation.FillBuckets(cities, tc, city+"."+unique, 1)

		aggregation.FillBuckets(users, tc, types.MetricFrequency.String()+".0", 1)
		aggregation.FillBuckets(users, tc, types.MetricLoyalty.String()+".0", 1)
		userSets["meta.f-ranges"] = []string{"0"}
		userSets["meta.l-ranges"] = []string{"0"}
		s.applyWithDimensions(ctx, types.CollectionUsers, a.ID, store.Update{Inc: users, AddToSet: userSets}, true, dims)
	}

	s.applyWithDimensions(ctx, types.CollectionSessions, a.ID, store.Update{Inc: sessions}, true, dims)
	s.applyWithDimensions(ctx, types.CollectionLocations, a.ID, store.Update{
		Inc:      locations,
		AddToSet: map[string][]string{"meta.countries": {country}},
	}, true, dims)

	// City counters only make sense within the application's home
	// country; foreign cities would dwarf the set otherwise.
	if a.Country == country {
		s.applyWithDimensions(ctx, types.CollectionCities, a.ID, store.Update{
			Inc:      cities,
			Set:      map[string]string{"country": country},
			AddToSet: map[string][]string{"meta.cities": {city}},
		}, true, dims)
	}

	return s.processPredefinedMetrics(ctx, a, userID, tc, dims, req, userExists, uniqueLevels, country)
}

type metricSpec struct {
	name   string
	set    string
	assign func(*appuser.SessionProps, string)
}

type metricGroup struct {
	collection string
	metrics    []metricSpec
}

var predefinedMetrics = []metricGroup{
	{types.CollectionDevices, []metricSpec{
		{"_device", "devices", func(p *appuser.SessionProps, v string) { p.Device = v }},
	}},
	{types.CollectionCarriers, []metricSpec{
		{"_carrier", "carriers", func(p *appuser.SessionProps, v string) { p.Carrier = v }},
	}},
	{types.CollectionDeviceDetails, []metricSpec{
		{"_os", "os", func(p *appuser.SessionProps, v string) { p.Platform = v }},
		{"_os_version", "os_versions", func(p *appuser.SessionProps, v string) { p.PlatformVersion = v }},
		{"_resolution", "resolutions", nil},
	}},
	{types.CollectionAppVersions, []metricSpec{
		{"_app_version", "app_versions", func(p *appuser.SessionProps, v string) { p.AppVersion = v }},
	}},
}

func (s *ingestService) processPredefinedMetrics(ctx context.Context, a *app.App, userID string, tc aggregation.TimeContext, dims []app.Dimension, req *dto.TrackRequest, userExists bool, uniqueLevels []string, country string) error {
	props := appuser.SessionProps{
		LastSeen:    tc.Timestamp,
		DeviceID:    req.DeviceID,
		CountryCode: country,
	}

	if len(req.Metrics) == 0 {
		return s.UserRepo.RecordSession(ctx, a.ID, userID, props)
	}

	total := types.MetricTotal.String()
	unique := types.MetricUnique.String()

	for _, group := range predefinedMetrics {
		inc := make(map[string]float64)
		sets := make(map[string][]string)

		for _, spec := range group.metrics {
			value := req.Metrics[spec.name]
			if value == "" {
				continue
			}
			value = types.SanitizeFieldKey(value)

			sets["meta."+spec.set] = append(sets["meta."+spec.set], value)
			aggregation.FillBuckets(inc, tc, value+"."+total, 1)

			if !userExists {
				aggregation.FillBuckets(inc, tc, value+"."+types.MetricNew.String(), 1)
				aggregation.FillBuckets(inc, tc, value+"."+unique, 1)
			} else {
				for _, level := range uniqueLevels {
					inc[level+"."+value+"."+unique]++
				}
			}

			if spec.assign != nil {
				spec.assign(&props, value)
			}
		}

		if len(inc) > 0 {
			s.applyWithDimensions(ctx, group.collection, a.ID, store.Update{Inc: inc, AddToSet: sets}, true, dims)
		}
	}

	return s.UserRepo.RecordSession(ctx, a.ID, userID, props)
}

func (s *ingestService) processEvents(ctx context.Context, a *app.App, userID string, loc *time.Location, tc aggregation.TimeContext, dims []app.Dimension, events []aggregation.Event) error {
	processor := aggregation.NewEventProcessor(
		a.ID, userID, loc, tc, s.now(),
		s.Config.Events.Log, s.Config.Events.Whitelist,
	)
	plan := processor.Process(events)

	// Event counters live in per-event collections; fanning out means
	// mirroring each update into the dimension's copy of the
	// collection rather than another document of the same one.
	for _, u := range plan.Updates {
		if err := s.Store.Apply(ctx, u.ShortName+a.ID, u.Segment, u.Update, true); err != nil {
			return err
		}
		for _, dim := range dims {
			if err := s.Store.Apply(ctx, u.ShortName+dim.ID, u.Segment, u.Update, true); err != nil {
				return err
			}
		}
	}

	for _, record := range plan.LogRecords {
		if err := s.EventLog.Publish(ctx, record); err != nil {
			s.Logger.Errorw("failed to publish event record",
				"event_id", record.ID,
				"app_user_id", types.GetAppUserID(ctx),
				"key", record.Key,
				"error", err,
			)
		}
	}

	if len(plan.CatalogKeys) > 0 {
		sets := map[string][]string{"list": plan.CatalogKeys}
		for shortName, segKeys := range plan.CatalogSegments {
			sets["segments."+shortName] = segKeys
		}
		if err := s.Store.Apply(ctx, types.CollectionEvents, a.ID, store.Update{AddToSet: sets}, true); err != nil {
			return err
		}
	}

	return nil
}

// applyWithDimensions writes one update to the application document
// and every dimension document of a collection. The multi-document
// path cannot upsert, so missing documents are detected by the match
// count and created out of band; a failed creation only delays the
// counters until the next request recreates the same update shape.
func (s *ingestService) applyWithDimensions(ctx context.Context, collection, id string, update store.Update, upsert bool, dims []app.Dimension) {
	if len(dims) == 0 {
		if err := s.Store.Apply(ctx, collection, id, update, upsert); err != nil {
			s.Logger.Errorw("counter update failed",
				"app_id", types.GetAppID(ctx),
				"collection", collection,
				"doc_id", id,
				"error", err)
		}
		return
	}

	ids := make([]string, 0, len(dims)+1)
	ids = append(ids, id)
	for _, dim := range dims {
		ids = append(ids, dim.ID)
	}

	matched, err := s.Store.ApplyMulti(ctx, collection, ids, update)
	if err != nil {
		s.Logger.Errorw("counter update failed", "collection", collection, "doc_ids", ids, "error", err)
		return
	}
	if !upsert || matched == len(ids) {
		return
	}

	s.background.Go(func() {
		ctx := context.Background()
		if matched == 0 {
			if err := s.Store.Apply(ctx, collection, id, update, true); err != nil {
				s.Logger.Errorw("document creation failed", "collection", collection, "doc_id", id, "error", err)
			}
		}
		for _, dim := range dims {
			exists, err := s.Store.Exists(ctx, collection, dim.ID)
			if err != nil {
				s.Logger.Errorw("document check failed", "collection", collection, "doc_id", dim.ID, "error", err)
				continue
			}
			if !exists {
				if err := s.Store.Apply(ctx, collection, dim.ID, update, true); err != nil {
					s.Logger.Errorw("document creation failed", "collection", collection, "doc_id", dim.ID, "error", err)
				}
			}
		}
	})
}

package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/tallyhq/tally/internal/aggregation"
	"github.com/tallyhq/tally/internal/api/dto"
	"github.com/tallyhq/tally/internal/domain/app"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/testutil"
)

type AnalyticsServiceSuite struct {
	testutil.BaseServiceTestSuite
	analyticsService AnalyticsService
	ingestService    IngestService
	testApp          *app.App
}

func TestAnalyticsService(t *testing.T) {
	suite.Run(t, new(AnalyticsServiceSuite))
}

func (s *AnalyticsServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()

	s.testApp = &app.App{
		ID:       "app_test",
		Key:      "key-1",
		Name:     "Test App",
		Timezone: "UTC",
		Country:  "TR",
	}
	s.NoError(s.GetAppRepo().Create(s.GetContext(), s.testApp))

	params := ServiceParams{
		Logger:   s.GetLogger(),
		Config:   s.GetConfig(),
		Store:    s.GetStore(),
		AppRepo:  s.GetAppRepo(),
		UserRepo: s.GetUserRepo(),
		Geo:      s.GetGeoResolver(),
		EventLog: s.GetEventLog(),
		Now:      s.GetNow,
	}
	s.analyticsService = NewAnalyticsService(params)
	s.ingestService = NewIngestService(params)
}

func (s *AnalyticsServiceSuite) track(req *dto.TrackRequest) {
	s.T().Helper()
	req.AppKey = "key-1"
	req.DeviceID = "device-1"
	s.NoError(s.ingestService.Track(s.GetContext(), req))
	s.ingestService.Wait()
}

func (s *AnalyticsServiceSuite) TestFetchTimeDataExpandsBuckets() {
	s.track(&dto.TrackRequest{BeginSession: true})

	result, err := s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "sessions",
	})
	s.Require().NoError(err)

	s.Equal(s.testApp.ID, result["_id"])

	year, ok := result["2024"].(map[string]any)
	s.Require().True(ok, "expected nested year object")
	month, ok := year["7"].(map[string]any)
	s.Require().True(ok)
	day, ok := month["20"].(map[string]any)
	s.Require().True(ok)
	s.Equal(float64(1), day["t"])
	s.Equal(float64(1), day["n"])

	hour, ok := day["13"].(map[string]any)
	s.Require().True(ok)
	s.Equal(float64(1), hour["t"])
}

func (s *AnalyticsServiceSuite) TestFetchTimeDataMissingDocument() {
	result, err := s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "sessions",
	})
	s.Require().NoError(err)
	s.Equal(map[string]any{"2024": map[string]any{}}, result)
}

func (s *AnalyticsServiceSuite) TestFetchTimeDataUnknownApp() {
	_, err := s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "no-such-key",
		Method: "sessions",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *AnalyticsServiceSuite) TestFetchTimeDataRefreshProjection() {
	s.track(&dto.TrackRequest{BeginSession: true})
	s.track(&dto.TrackRequest{EndSession: true, SessionDuration: ""})

	result, err := s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "sessions",
		Action: "refresh",
	})
	s.Require().NoError(err)

	// Only the current day and meta survive the refresh projection, so
	// the year object holds exactly the current month.
	year, ok := result["2024"].(map[string]any)
	s.Require().True(ok)
	s.NotContains(year, "t")

	month, ok := year["7"].(map[string]any)
	s.Require().True(ok)
	s.NotContains(month, "t")
	s.Contains(month, "20")
}

func (s *AnalyticsServiceSuite) TestFetchTimeDataDimensionOverride() {
	s.track(&dto.TrackRequest{
		BeginSession: true,
		Dimensions:   map[string]string{"plan": "pro"},
	})

	a, err := s.GetAppRepo().GetByKey(s.GetContext(), "key-1")
	s.Require().NoError(err)
	s.Require().Len(a.Dimensions, 1)
	dimID := a.Dimensions[0].ID

	result, err := s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey:     "key-1",
		Method:     "sessions",
		Dimensions: dimID,
	})
	s.Require().NoError(err)
	s.Equal(dimID, result["_id"])

	// Unknown dimension ids fall back to the app-wide document.
	result, err = s.analyticsService.FetchTimeData(s.GetContext(), &dto.AnalyticsRequest{
		AppKey:     "key-1",
		Method:     "sessions",
		Dimensions: "dim_nonexistent",
	})
	s.Require().NoError(err)
	s.Equal(s.testApp.ID, result["_id"])
}

func (s *AnalyticsServiceSuite) TestFetchEvents() {
	s.track(&dto.TrackRequest{
		Events: []aggregation.Event{
			{Key: "purchase", Count: 2, Segmentation: map[string]string{"tier": "gold"}},
		},
	})

	result, err := s.analyticsService.FetchEvents(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "events",
		Event:  "purchase",
	})
	s.Require().NoError(err)

	docs, ok := result.([]map[string]any)
	s.Require().True(ok)
	s.Len(docs, 2)

	ids := []string{docs[0]["_id"].(string), docs[1]["_id"].(string)}
	s.ElementsMatch([]string{"no-segment", "tier"}, ids)
}

func (s *AnalyticsServiceSuite) TestFetchEventsDefaultsToFirstCatalogEntry() {
	s.track(&dto.TrackRequest{
		Events: []aggregation.Event{{Key: "purchase", Count: 1}},
	})

	result, err := s.analyticsService.FetchEvents(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "events",
	})
	s.Require().NoError(err)

	docs, ok := result.([]map[string]any)
	s.Require().True(ok)
	s.Require().Len(docs, 1)
	s.Equal("no-segment", docs[0]["_id"])
}

func (s *AnalyticsServiceSuite) TestFetchEventsEmptyCatalog() {
	result, err := s.analyticsService.FetchEvents(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "events",
	})
	s.Require().NoError(err)
	s.Equal(map[string]any{}, result)
}

func (s *AnalyticsServiceSuite) TestFetchEventsCatalog() {
	s.track(&dto.TrackRequest{
		Events: []aggregation.Event{
			{Key: "purchase", Count: 1, Segmentation: map[string]string{"tier": "gold"}},
			{Key: "login", Count: 1},
		},
	})

	result, err := s.analyticsService.FetchEventsCatalog(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "get_events",
	})
	s.Require().NoError(err)

	s.Equal(s.testApp.ID, result["_id"])
	s.ElementsMatch([]string{"purchase", "login"}, result["list"])

	segments, ok := result["segments"].(map[string]any)
	s.Require().True(ok)
	s.ElementsMatch([]string{"tier"}, segments["purchase"])
}

func (s *AnalyticsServiceSuite) TestFetchEventsCatalogEmpty() {
	result, err := s.analyticsService.FetchEventsCatalog(s.GetContext(), &dto.AnalyticsRequest{
		AppKey: "key-1",
		Method: "get_events",
	})
	s.Require().NoError(err)
	s.Equal(map[string]any{}, result)
}

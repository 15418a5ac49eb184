package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/tallyhq/tally/internal/aggregation"
	"github.com/tallyhq/tally/internal/api/dto"
	"github.com/tallyhq/tally/internal/domain/app"
	ierr "github.com/tallyhq/tally/internal/errors"
	"github.com/tallyhq/tally/internal/types"
)

// AnalyticsService serves the read side: expanded counter documents in
// the nested year/month/day shape dashboards consume.
type AnalyticsService interface {
	// FetchTimeData returns one built-in metric series document.
	FetchTimeData(ctx context.Context, req *dto.AnalyticsRequest) (map[string]any, error)

	// FetchEvents returns every segment document of one custom event,
	// defaulting to the first event in the application's catalog.
	FetchEvents(ctx context.Context, req *dto.AnalyticsRequest) (any, error)

	// FetchEventsCatalog returns the application's event catalog.
	FetchEventsCatalog(ctx context.Context, req *dto.AnalyticsRequest) (map[string]any, error)
}

type analyticsService struct {
	ServiceParams
}

func NewAnalyticsService(params ServiceParams) AnalyticsService {
	return &analyticsService{ServiceParams: params}
}

func (s *analyticsService) FetchTimeData(ctx context.Context, req *dto.AnalyticsRequest) (map[string]any, error) {
	a, err := s.AppRepo.GetByKey(ctx, req.AppKey)
	if err != nil {
		return nil, err
	}

	tc := aggregation.NewTimeContext(a.Location(), req.Timestamp, s.now())
	docID := s.resolveDimensionID(a, req.Dimensions)

	doc, err := s.Store.FindOne(ctx, req.Method, docID, refreshFields(req, tc))
	if err != nil {
		if ierr.IsNotFound(err) {
			return emptySeries(tc), nil
		}
		return nil, err
	}

	expanded := doc.Expand()
	expanded["_id"] = doc.ID
	return expanded, nil
}

func (s *analyticsService) FetchEvents(ctx context.Context, req *dto.AnalyticsRequest) (any, error) {
	a, err := s.AppRepo.GetByKey(ctx, req.AppKey)
	if err != nil {
		return nil, err
	}

	tc := aggregation.NewTimeContext(a.Location(), req.Timestamp, s.now())
	docID := s.resolveDimensionID(a, req.Dimensions)

	event := req.Event
	if event == "" {
		catalog, err := s.Store.FindOne(ctx, types.CollectionEvents, docID, nil)
		if err != nil {
			if ierr.IsNotFound(err) {
				return map[string]any{}, nil
			}
			return nil, err
		}
		list, _ := catalog.Fields["list"].([]string)
		if len(list) == 0 {
			return map[string]any{}, nil
		}
		event = list[0]
	}

	docs, err := s.Store.Find(ctx, event+docID, refreshFields(req, tc))
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return emptySeries(tc), nil
	}

	out := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		expanded := doc.Expand()
		expanded["_id"] = doc.ID
		out = append(out, expanded)
	}
	return out, nil
}

func (s *analyticsService) FetchEventsCatalog(ctx context.Context, req *dto.AnalyticsRequest) (map[string]any, error) {
	a, err := s.AppRepo.GetByKey(ctx, req.AppKey)
	if err != nil {
		return nil, err
	}

	doc, err := s.Store.FindOne(ctx, types.CollectionEvents, a.ID, nil)
	if err != nil {
		if ierr.IsNotFound(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	expanded := doc.Expand()
	// Clients track the addressed dimension through the returned id.
	expanded["_id"] = s.resolveDimensionID(a, req.Dimensions)
	return expanded, nil
}

// resolveDimensionID swaps the application-wide document for a single
// dimension's copy when the request addresses exactly one known
// dimension id.
func (s *analyticsService) resolveDimensionID(a *app.App, raw string) string {
	if raw == "" {
		return a.ID
	}
	requested := strings.Split(raw, "|")
	if len(requested) != 1 {
		return a.ID
	}
	for _, dim := range a.Dimensions {
		if dim.ID == requested[0] {
			return dim.ID
		}
	}
	return a.ID
}

// Dashboard refreshes only need the current day plus meta, which keeps
// the hot-path reads small.
func refreshFields(req *dto.AnalyticsRequest, tc aggregation.TimeContext) []string {
	if req.Action != "refresh" {
		return nil
	}
	return []string{tc.Daily, "meta"}
}

func emptySeries(tc aggregation.TimeContext) map[string]any {
	return map[string]any{strconv.Itoa(tc.Now.Year()): map[string]any{}}
}

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarcinSar/moja-dzialka-sub000/core"
	"github.com/MarcinSar/moja-dzialka-sub000/embedding"
	"github.com/MarcinSar/moja-dzialka-sub000/features"
	"github.com/MarcinSar/moja-dzialka-sub000/index"
	"github.com/MarcinSar/moja-dzialka-sub000/search"
)

type stubQuerier struct {
	resp *core.QueryResponse
	err  error
	got  *core.PreferenceQuery
}

func (s *stubQuerier) Search(_ context.Context, q *core.PreferenceQuery) (*core.QueryResponse, error) {
	s.got = q
	return s.resp, s.err
}

func (s *stubQuerier) Detail(_ context.Context, id string) (*core.Parcel, error) {
	if s.err != nil {
		return nil, s.err
	}
	return nil, fmt.Errorf("%w: %s", search.ErrParcelNotFound, id)
}

type unavailable struct{}

func (unavailable) Current() (*index.Generation, error) {
	return nil, core.ErrIndexUnavailable
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestNew(t *testing.T) {
	_, err := New(nil, unavailable{})
	assert.ErrorIs(t, err, ErrQuerierRequired)

	_, err = New(&stubQuerier{}, nil)
	assert.ErrorIs(t, err, ErrSourceRequired)

	_, err = New(&stubQuerier{}, unavailable{}, WithRequestTimeout(-time.Second))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestSearchErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid", fmt.Errorf("%w: weight forest out of range", core.ErrInvalidRequest), http.StatusBadRequest, "invalid_request"},
		{"no coverage", fmt.Errorf("%w: gmina %q", core.ErrNoCoverage, "Kraków"), http.StatusUnprocessableEntity, "unsupported_area"},
		{"unavailable", core.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"},
		{"configuration", core.ErrConfiguration, http.StatusInternalServerError, "configuration"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&stubQuerier{err: tt.err}, unavailable{}, WithRetryAfter(3*time.Second))
			require.NoError(t, err)

			rec := do(t, s.Routes(), http.MethodPost, "/v1/search", `{"weights":{"forest":0.9}}`)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, errorCode(t, rec))
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.Equal(t, "3", rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestSearchMalformedBody(t *testing.T) {
	s, err := New(&stubQuerier{}, unavailable{})
	require.NoError(t, err)

	for _, body := range []string{`{`, `{"weights":"x"}`, `{"unknown_field":1}`} {
		rec := do(t, s.Routes(), http.MethodPost, "/v1/search", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "invalid_request", errorCode(t, rec))
	}
}

func TestSearchDecodesQuery(t *testing.T) {
	q := &stubQuerier{resp: &core.QueryResponse{Results: []core.RankedResult{}, SnapshotID: "s1"}}
	s, err := New(q, unavailable{})
	require.NoError(t, err)

	rec := do(t, s.Routes(), http.MethodPost, "/v1/search",
		`{"location":{"gmina":"Gdańsk"},"categories":{"nature":["green"]},"weights":{"quiet":0.8},"limit":5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, q.got)
	assert.Equal(t, "Gdańsk", q.got.Location.Gmina)
	assert.Equal(t, 0.8, q.got.Weights[core.PrefQuiet])
	assert.Equal(t, 5, q.got.Limit)
	assert.Len(t, q.got.Categories.Nature, 1)

	var resp core.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "s1", resp.SnapshotID)
}

func TestMethodNotAllowed(t *testing.T) {
	s, err := New(&stubQuerier{}, unavailable{})
	require.NoError(t, err)

	rec := do(t, s.Routes(), http.MethodGet, "/v1/search", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthAndReadiness(t *testing.T) {
	s, err := New(&stubQuerier{}, unavailable{})
	require.NoError(t, err)

	rec := do(t, s.Routes(), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.Routes(), http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestMetricsRoute(t *testing.T) {
	s, err := New(&stubQuerier{}, unavailable{})
	require.NoError(t, err)
	rec := do(t, s.Routes(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s, err = New(&stubQuerier{}, unavailable{}, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("dzialka_queries_total 1\n"))
	})))
	require.NoError(t, err)
	rec = do(t, s.Routes(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dzialka_queries_total")
}

func testParcel(i int) *core.Parcel {
	x, y := 477000+float64(i%5)*60, 720000+float64(i/5)*60
	return &core.Parcel{
		ID:             fmt.Sprintf("2261011.%04d", i),
		Geometry:       core.Rectangle(core.Point{X: x, Y: y}, 30, 30),
		AreaM2:         900 + float64(i)*20,
		Administrative: core.Administrative{Gmina: "Gdańsk"},
		Zoning:         &core.Zoning{Symbol: "MN"},
		Distances: map[core.POIKind]float64{
			core.POIForest:   float64(50 + i*150),
			core.POIWater:    float64(400 + i*40),
			core.POISchool:   float64(300 + i*60),
			core.POIBusStop:  float64(100 + i*30),
			core.POIMainRoad: float64(150 + i*90),
		},
		BufferCoverage: map[core.CoverKind]float64{core.CoverForest: float64(i%10) / 10},
	}
}

func TestEndToEnd(t *testing.T) {
	scorer, err := features.NewScorer(features.DefaultConfig())
	require.NoError(t, err)
	builder, err := index.NewBuilder(scorer, embedding.NewBuilder(embedding.MustSchema(embedding.DefaultParams())))
	require.NoError(t, err)

	parcels := make([]*core.Parcel, 12)
	for i := range parcels {
		parcels[i] = testParcel(i)
	}
	gen, err := builder.Build(context.Background(), parcels)
	require.NoError(t, err)

	handle, err := index.NewHandle()
	require.NoError(t, err)
	searcher, err := search.NewSearcher(handle)
	require.NoError(t, err)
	s, err := New(searcher, handle)
	require.NoError(t, err)
	h := s.Routes()

	rec := do(t, h, http.MethodPost, "/v1/search", `{"weights":{"forest":1}}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err = handle.Publish(gen)
	require.NoError(t, err)

	rec = do(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), gen.SnapshotID)

	rec = do(t, h, http.MethodPost, "/v1/search", `{"location":{"gmina":"Gdańsk"},"weights":{"forest":1},"limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp core.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 3)
	assert.Equal(t, gen.SnapshotID, resp.SnapshotID)
	assert.Equal(t, 1, resp.Results[0].Rank)

	rec = do(t, h, http.MethodPost, "/v1/search", `{"location":{"gmina":"Kraków"}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unsupported_area", errorCode(t, rec))

	rec = do(t, h, http.MethodPost, "/v1/search", `{"weights":{"forest":1.5}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for _, body := range []string{
		`{"area":{"min_m2":0,"max_m2":1200}}`,
		`{"area":{"min_m2":900,"max_m2":0}}`,
		`{"area":{}}`,
	} {
		rec = do(t, h, http.MethodPost, "/v1/search", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}

	rec = do(t, h, http.MethodPost, "/v1/search", `{"area":{"max_m2":100000},"limit":3}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	id := resp.Results[0].ParcelID
	rec = do(t, h, http.MethodGet, "/v1/parcels/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p core.Parcel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, id, p.ID)
	require.NotNil(t, p.Scores)

	rec = do(t, h, http.MethodGet, "/v1/parcels/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DRSN-tech/outfit-recsys/internal/cfg"
	"github.com/DRSN-tech/outfit-recsys/internal/usecase"
	"github.com/DRSN-tech/outfit-recsys/pkg/e"
	"github.com/DRSN-tech/outfit-recsys/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecUC struct {
	items   []usecase.RecommendedItem
	err     error
	similar *usecase.SimilarItemsReq
	search  *usecase.TextSearchReq
	popular *usecase.PopularReq
	user    *usecase.UserRecommendationsReq
}

func (f *fakeRecUC) SimilarItems(_ context.Context, req *usecase.SimilarItemsReq) (*usecase.RecommendationsRes, error) {
	f.similar = req
	return f.result()
}

func (f *fakeRecUC) TextSearch(_ context.Context, req *usecase.TextSearchReq) (*usecase.RecommendationsRes, error) {
	f.search = req
	return f.result()
}

func (f *fakeRecUC) Popular(_ context.Context, req *usecase.PopularReq) (*usecase.RecommendationsRes, error) {
	f.popular = req
	return f.result()
}

func (f *fakeRecUC) CollaborativeForUser(_ context.Context, req *usecase.UserRecommendationsReq) (*usecase.RecommendationsRes, error) {
	f.user = req
	return f.result()
}

func (f *fakeRecUC) Health() *usecase.HealthRes {
	return &usecase.HealthRes{
		ArtifactVersion: "v1",
		Modes: map[string]usecase.ModeStatus{
			usecase.ModeSimilar: {Available: true},
			usecase.ModeSearch:  {Available: false, Reason: "embedding model unavailable"},
		},
	}
}

func (f *fakeRecUC) result() (*usecase.RecommendationsRes, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.RecommendationsRes{Items: f.items}, nil
}

type fakeHistoryUC struct {
	recorded *usecase.RecordInteractionReq
	entries  []usecase.HistoryEntry
	err      error
}

func (f *fakeHistoryUC) RecordInteraction(_ context.Context, req *usecase.RecordInteractionReq) (*usecase.HistoryEntry, error) {
	f.recorded = req
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.HistoryEntry{ItemID: req.ItemID}, nil
}

func (f *fakeHistoryUC) RecentHistory(_ context.Context, _ *usecase.RecentHistoryReq) (*usecase.RecentHistoryRes, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &usecase.RecentHistoryRes{Entries: f.entries}, nil
}

var defaults = &cfg.RecommendCfg{
	ImageBaseURL:       "http://img/",
	DefaultSimilarK:    3,
	DefaultSearchTopN:  20,
	DefaultPopularTopN: 5,
	DefaultUserTopN:    5,
}

func newTestServer(rec *fakeRecUC, hist *fakeHistoryUC) *httptest.Server {
	mux := chi.NewRouter()
	NewRouter(mux, logger.NewNop()).Init(rec, hist, defaults)
	return httptest.NewServer(mux)
}

func get(t *testing.T, srv *httptest.Server, path string, out any) int {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func score(v float32) *float32 { return &v }

func TestSimilarItemsRoute(t *testing.T) {
	rec := &fakeRecUC{items: []usecase.RecommendedItem{{ID: 7, URL: "http://img/tops/cloth/7.jpg"}}}
	srv := newTestServer(rec, &fakeHistoryUC{})
	defer srv.Close()

	var body SimilarResponse
	status := get(t, srv, "/api/v1/recommend/42", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, int64(42), rec.similar.ItemID)
	assert.Equal(t, 3, rec.similar.K)
	assert.Equal(t, []ItemLink{{ID: 7, URL: "http://img/tops/cloth/7.jpg"}}, body.Recommendations)
}

func TestPopularRouteIsNotAnItemID(t *testing.T) {
	rec := &fakeRecUC{items: []usecase.RecommendedItem{{ID: 1, Category: "top", URL: "u"}}}
	srv := newTestServer(rec, &fakeHistoryUC{})
	defer srv.Close()

	var body PopularResponse
	status := get(t, srv, "/api/v1/recommend/popular?top_n=2", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, rec.similar)
	assert.Equal(t, 2, rec.popular.TopN)
	assert.Equal(t, "top", body.RecommendedPopular[0].Category)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{"unknown item", "/api/v1/recommend/999", fmt.Errorf("%w: %w", e.ErrItemNotFound, e.ErrUnknownItem), http.StatusNotFound, "item_not_found"},
		{"bad id", "/api/v1/recommend/abc", nil, http.StatusBadRequest, "invalid_id"},
		{"bad top_n", "/api/v1/recommend/popular?top_n=x", nil, http.StatusBadRequest, "invalid_top_n"},
		{"no history", "/api/v1/recommend/user/5", e.ErrNoHistory, http.StatusNotFound, "no_history"},
		{"blank query", "/api/v1/search?query=%20%20", nil, http.StatusBadRequest, "empty_query"},
		{"missing query", "/api/v1/search", nil, http.StatusBadRequest, "empty_query"},
		{"search disabled", "/api/v1/search?query=red", fmt.Errorf("%w: %w", e.ErrSearchUnavailable, e.ErrModelUnavailable), http.StatusServiceUnavailable, "search_unavailable"},
		{"model timeout", "/api/v1/search?query=red", fmt.Errorf("%w: %w", e.ErrSearchUnavailable, e.ErrModelTimeout), http.StatusGatewayTimeout, "model_timeout"},
		{"similar disabled", "/api/v1/recommend/1", fmt.Errorf("%w: %w", e.ErrSimilarUnavailable, e.ErrArtifactCorrupt), http.StatusServiceUnavailable, "similar_unavailable"},
		{"internal", "/api/v1/recommend/popular", fmt.Errorf("pool closed"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(&fakeRecUC{err: tt.err}, &fakeHistoryUC{})
			defer srv.Close()

			var body ErrorResponse
			status := get(t, srv, tt.path, &body)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.code, body.Error)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestSearchRoundsScores(t *testing.T) {
	rec := &fakeRecUC{items: []usecase.RecommendedItem{
		{ID: 3, Title: "White Shirt", Category: "top", URL: "u", Score: score(0.123456)},
	}}
	srv := newTestServer(rec, &fakeHistoryUC{})
	defer srv.Close()

	var body SearchResponse
	status := get(t, srv, "/api/v1/search?query=white+shirt&top_n=1", &body)

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "white shirt", rec.search.Query)
	assert.Equal(t, 1, rec.search.TopN)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "White Shirt", body.Items[0].Title)
	assert.Equal(t, 0.1235, *body.Items[0].Score)
}

func TestSearchEmptyResult(t *testing.T) {
	srv := newTestServer(&fakeRecUC{}, &fakeHistoryUC{})
	defer srv.Close()

	var body SearchResponse
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/v1/search?query=x", &body))
	assert.Equal(t, "No matching items found", body.Message)
	assert.Empty(t, body.Items)
}

func TestAddHistory(t *testing.T) {
	hist := &fakeHistoryUC{}
	srv := newTestServer(&fakeRecUC{}, hist)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/add-history", "application/json", strings.NewReader(`{"user_id": 1, "clothing_id": 9}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, &usecase.RecordInteractionReq{UserID: 1, ItemID: 9}, hist.recorded)
}

func TestAddHistoryRejectsNonJSON(t *testing.T) {
	hist := &fakeHistoryUC{}
	srv := newTestServer(&fakeRecUC{}, hist)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/v1/add-history", "text/plain", strings.NewReader(`user_id=1`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "expected_json", body.Error)
	assert.Nil(t, hist.recorded)
}

func TestGetHistory(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	hist := &fakeHistoryUC{entries: []usecase.HistoryEntry{
		{ItemID: 4, Title: "Blue Jeans", Category: "bottom", URL: "http://img/bottoms/cloth/4.jpg", CreatedAt: at},
	}}
	srv := newTestServer(&fakeRecUC{}, hist)
	defer srv.Close()

	var body HistoryResponse
	assert.Equal(t, http.StatusOK, get(t, srv, "/api/v1/get-history?user_id=1", &body))
	assert.Equal(t, "Success", body.Message)
	assert.Equal(t, []HistoryItem{{ID: 4, Image: "http://img/bottoms/cloth/4.jpg", Title: "Blue Jeans", Category: "bottom", CreatedAt: "2026-02-03 04:05:06"}}, body.History)

	var errBody ErrorResponse
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/v1/get-history", &errBody))
	assert.Equal(t, "missing_fields", errBody.Error)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeRecUC{}, &fakeHistoryUC{})
	defer srv.Close()

	var body HealthResponse
	assert.Equal(t, http.StatusOK, get(t, srv, "/healthz", &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "v1", body.ArtifactVersion)
	assert.True(t, body.Modes[usecase.ModeSimilar].Available)
	assert.False(t, body.Modes[usecase.ModeSearch].Available)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(&fakeRecUC{}, &fakeHistoryUC{})
	defer srv.Close()

	get(t, srv, "/healthz", nil)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSwaggerDocumentsSearchFailures(t *testing.T) {
	srv := newTestServer(&fakeRecUC{}, &fakeHistoryUC{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Paths map[string]map[string]struct {
			Responses map[string]any `json:"responses"`
		} `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))

	search := doc.Paths["/search"]["get"].Responses
	for _, code := range []string{"400", "500", "503", "504"} {
		assert.Contains(t, search, code)
	}
	assert.Contains(t, doc.Paths["/recommend/{id}"]["get"].Responses, "503")
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Damonbodine/sauce-rival-insight/internal/domain"
)

type fakeBusinessStore struct {
	business *domain.BusinessInput
	created  *domain.BusinessInput
	err      error
}

func (f *fakeBusinessStore) Create(ctx context.Context, business *domain.BusinessInput) error {
	f.created = business
	return f.err
}

func (f *fakeBusinessStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BusinessInput, error) {
	if f.business == nil || f.business.ID != id {
		return nil, domain.NotFoundError("business", id)
	}
	return f.business, nil
}

type fakeSiteReader struct {
	sites []*domain.CompetitorSite
}

func (f *fakeSiteReader) ListByBusiness(ctx context.Context, businessID uuid.UUID) ([]*domain.CompetitorSite, error) {
	return f.sites, nil
}

type fakeAnalysisReader struct {
	analysis *domain.CompetitorAnalysis
	err      error
}

func (f *fakeAnalysisReader) LatestByBusiness(ctx context.Context, businessID uuid.UUID) (*domain.CompetitorAnalysis, error) {
	return f.analysis, f.err
}

type fakeReportCache struct {
	cached *domain.BusinessReport
	set    *domain.BusinessReport
	gets   int
}

func (f *fakeReportCache) GetReport(ctx context.Context, businessID uuid.UUID) (*domain.BusinessReport, error) {
	f.gets++
	return f.cached, nil
}

func (f *fakeReportCache) SetReport(ctx context.Context, report *domain.BusinessReport) error {
	f.set = report
	return nil
}

func getReport(t *testing.T, handler *BusinessHandler, id string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v1/businesses/{id}/report", handler.GetReport)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/businesses/"+id+"/report", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestBusinessHandler_Create(t *testing.T) {
	store := &fakeBusinessStore{}
	handler := NewBusinessHandler(store, &fakeSiteReader{}, &fakeAnalysisReader{}, nil, zap.NewNop())

	rec := postJSON(t, handler.Create,
		`{"description":"artisanal hot sauce maker","keywords":["hot sauce"],"website_url":"https://sauceworks.example.com"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, store.created)
	assert.Equal(t, "artisanal hot sauce maker", store.created.Description)
	assert.Equal(t, []string{"hot sauce"}, store.created.Keywords)
	require.NotNil(t, store.created.WebsiteURL)
	assert.Equal(t, "https://sauceworks.example.com", *store.created.WebsiteURL)

	var resp domain.BusinessInput
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, store.created.ID, resp.ID)
	assert.False(t, resp.URLAnalyzed)
}

func TestBusinessHandler_Create_RequiresDescriptionOrURL(t *testing.T) {
	handler := NewBusinessHandler(&fakeBusinessStore{}, &fakeSiteReader{}, &fakeAnalysisReader{}, nil, zap.NewNop())

	rec := postJSON(t, handler.Create, `{"keywords":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "description is required", resp["error"])

	// A URL alone is accepted; website analysis fills the description
	rec = postJSON(t, handler.Create, `{"website_url":"https://sauceworks.example.com"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestBusinessHandler_GetReport(t *testing.T) {
	business := domain.NewBusinessInput("artisanal hot sauce maker", []string{"hot sauce"}, nil)
	site := domain.NewCompetitorSite(business.ID, "Rival", "https://rival.example.com", nil, nil)
	analysis := domain.NewCompetitorAnalysis(business.ID, []domain.CompetitorResult{}, "Narrative.")
	cache := &fakeReportCache{}

	handler := NewBusinessHandler(
		&fakeBusinessStore{business: business},
		&fakeSiteReader{sites: []*domain.CompetitorSite{site}},
		&fakeAnalysisReader{analysis: analysis},
		cache,
		zap.NewNop(),
	)
	rec := getReport(t, handler, business.ID.String())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.BusinessReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Business)
	assert.Equal(t, business.ID, resp.Business.ID)
	require.Len(t, resp.Competitors, 1)
	assert.Equal(t, "Rival", resp.Competitors[0].Name)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "Narrative.", resp.Analysis.SummaryInsights)

	// The assembled report is cached for next time
	require.NotNil(t, cache.set)
	assert.Equal(t, business.ID, cache.set.Business.ID)
}

func TestBusinessHandler_GetReport_NoAnalysisYet(t *testing.T) {
	business := domain.NewBusinessInput("artisanal hot sauce maker", nil, nil)
	reader := &fakeAnalysisReader{err: domain.NotFoundError("analysis", business.ID)}

	handler := NewBusinessHandler(
		&fakeBusinessStore{business: business}, &fakeSiteReader{}, reader, nil, zap.NewNop())
	rec := getReport(t, handler, business.ID.String())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotNil(t, resp["business"])
	assert.NotContains(t, resp, "analysis")
}

func TestBusinessHandler_GetReport_CacheHitSkipsStore(t *testing.T) {
	business := domain.NewBusinessInput("cached business", nil, nil)
	cached := &domain.BusinessReport{
		Business: business,
		Analysis: domain.NewCompetitorAnalysis(business.ID, []domain.CompetitorResult{}, "From cache."),
	}
	cache := &fakeReportCache{cached: cached}

	// The store would 404; the cached report must short-circuit it
	handler := NewBusinessHandler(&fakeBusinessStore{}, &fakeSiteReader{}, &fakeAnalysisReader{}, cache, zap.NewNop())
	rec := getReport(t, handler, business.ID.String())

	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.BusinessReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "From cache.", resp.Analysis.SummaryInsights)
	assert.Equal(t, 1, cache.gets)
}

func TestBusinessHandler_GetReport_UnknownBusiness(t *testing.T) {
	handler := NewBusinessHandler(&fakeBusinessStore{}, &fakeSiteReader{}, &fakeAnalysisReader{}, nil, zap.NewNop())
	rec := getReport(t, handler, uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBusinessHandler_GetReport_InvalidID(t *testing.T) {
	handler := NewBusinessHandler(&fakeBusinessStore{}, &fakeSiteReader{}, &fakeAnalysisReader{}, nil, zap.NewNop())
	rec := getReport(t, handler, "not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiovespa/models"
	"radiovespa/services"
	"radiovespa/utils"
)

type staticFeed []models.Listing

func (f staticFeed) Load(context.Context) ([]models.Listing, error) { return f, nil }

type memReviews struct {
	mu        sync.Mutex
	reviews   []models.Review
	submitErr error
}

func (m *memReviews) Submit(_ context.Context, in models.ReviewInput) (models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitErr != nil {
		return models.Review{}, m.submitErr
	}
	r := models.Review{
		ID:        in.ListingID + "-" + time.Now().String(),
		ListingID: in.ListingID,
		Recommend: in.Recommend,
		Tags:      in.Tags,
		Comment:   in.Comment,
		Source:    in.Source,
	}
	m.reviews = append([]models.Review{r}, m.reviews...)
	return r, nil
}

func (m *memReviews) Recent(_ context.Context, id string, limit int) ([]models.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Review
	for _, r := range m.reviews {
		if r.ListingID == id && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReviews) Close() error { return nil }

var testListings = staticFeed{
	{ID: "1", Name: "Ahmed", Phone: "612 345 678", Services: []string{"mudanzas"}, Size: models.SizeLarge, Visible: true},
	{ID: "2", Name: "Lucía", Phone: "+34 699 000 111", Services: []string{"paquetería"}, Size: models.SizeSmall, Visible: true, Featured: true},
	{ID: "3", Name: "Oculta", Phone: "600000000", Visible: false},
	{ID: "4", Name: "Sin teléfono", Services: []string{"mudanzas"}, Visible: true},
}

func newTestServer(t *testing.T, cfg Config, reviews *memReviews) *Server {
	t.Helper()
	logger := utils.NewNopLogger()
	stats := services.NewStatsLoader(reviews, logger)
	dir := services.NewDirectory(testListings, services.NewCleaner(logger), stats, logger)

	s, err := NewServer(cfg, dir, stats, reviews, logger)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestIndexRendersVisibleListings(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	body := rr.Body.String()
	assert.Contains(t, body, "3 Vespas disponibles")
	assert.Contains(t, body, "Orden rotativo diario")
	assert.Contains(t, body, "Ahmed")
	assert.NotContains(t, body, "Oculta")
	assert.Less(t, strings.Index(body, "Lucía"), strings.Index(body, "Ahmed"), "featured first")
}

func TestIndexFilters(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/?servicio=mudanzas&tamano=grande", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "1 Vespas disponibles")
}

func TestListingsJSON(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/listings?q=luc", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Count    int              `json:"count"`
		Listings []models.Listing `json:"listings"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	assert.Equal(t, "2", body.Listings[0].ID)
}

func TestStatsEndpoint(t *testing.T) {
	reviews := &memReviews{reviews: []models.Review{
		{ListingID: "1", Recommend: true, Tags: []string{"rápido", "amable"}, Comment: "Muy bien"},
		{ListingID: "1", Recommend: false, Tags: []string{"rápido"}},
	}}
	s := newTestServer(t, Config{}, reviews)

	// rendering registers the lazy loaders
	serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, 1, s.visibility.Pending("1"))

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/1", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var got statsView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, statsView{
		Total:         2,
		Recommends:    1,
		RecommendPct:  50,
		TopTags:       []string{"rápido", "amable"},
		LatestComment: "Muy bien",
	}, got)
	assert.Zero(t, s.visibility.Pending("1"))

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestContactRedirectsToWhatsApp(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/contactar/1", nil))
	require.Equal(t, http.StatusFound, rr.Code)

	loc, err := url.Parse(rr.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "wa.me", loc.Host)
	assert.Equal(t, "/34612345678", loc.Path)
	assert.Equal(t, "Hola 👋, vengo de RadioVespa. Quisiera contactar con *Ahmed*. ¿Está disponible?", loc.Query().Get("text"))

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/contactar/4", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
	rr = serve(s, httptest.NewRequest(http.MethodGet, "/contactar/3", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestContactBeaconIsThrottled(t *testing.T) {
	var mu sync.Mutex
	var hits []string
	counter := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Query().Get("id"))
		mu.Unlock()
	}))
	defer counter.Close()

	s := newTestServer(t, Config{BeaconURL: counter.URL, BeaconWorkers: 1, FetchTimeout: time.Second}, &memReviews{})
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	serve(s, httptest.NewRequest(http.MethodGet, "/contactar/1", nil))
	now = now.Add(300 * time.Millisecond)
	serve(s, httptest.NewRequest(http.MethodGet, "/contactar/1", nil))
	now = now.Add(time.Second)
	serve(s, httptest.NewRequest(http.MethodGet, "/contactar/1", nil))

	s.Close()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"1", "1"}, hits)
}

func TestSubmitReviewInvalidatesStats(t *testing.T) {
	reviews := &memReviews{}
	s := newTestServer(t, Config{}, reviews)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/api/stats/2", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	_, cached := s.stats.Cached("2")
	require.True(t, cached)

	form := url.Values{
		"recommend": {"si"},
		"tags":      {"puntual", "amable", "fuerte", "rápido"},
		"comment":   {"  Perfecto  "},
	}
	req := httptest.NewRequest(http.MethodPost, "/resena/2", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr = serve(s, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/resena/2?enviada=1", rr.Header().Get("Location"))
	require.Len(t, reviews.reviews, 1)
	assert.Equal(t, []string{"puntual", "amable", "fuerte"}, reviews.reviews[0].Tags)
	assert.Equal(t, "Perfecto", reviews.reviews[0].Comment)
	assert.Equal(t, "web", reviews.reviews[0].Source)
	assert.True(t, reviews.reviews[0].Recommend)

	_, cached = s.stats.Cached("2")
	assert.False(t, cached)
}

func TestSubmitReviewFailure(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{submitErr: errors.New("disk full")})

	form := url.Values{"recommend": {"no"}}
	req := httptest.NewRequest(http.MethodPost, "/resena/1", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := serve(s, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "No se pudo guardar")
}

func TestReviewFormUnknownListing(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/resena/99", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = serve(s, httptest.NewRequest(http.MethodGet, "/resena/1?enviada=1", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Gracias")
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, Config{}, &memReviews{})
	rr := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

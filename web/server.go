package web

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"radiovespa/models"
	"radiovespa/services"
	"radiovespa/storage"
	"radiovespa/utils"
)

//go:embed templates/*.html
var templateFS embed.FS

// contactWindow suppresses double clicks on the same contact button.
const contactWindow = 800 * time.Millisecond

// maxCommentLen caps the stored review comment, in runes.
const maxCommentLen = 500

const contactMessage = "Hola 👋, vengo de RadioVespa. Quisiera contactar con *%s*. ¿Está disponible?"

// Config tunes the front-end.
type Config struct {
	CountryCode   string
	BeaconURL     string
	BeaconWorkers int
	GeoCountry    string
	GeoLookupURL  string
	FetchTimeout  time.Duration

	// TrustedProxies are the reverse proxies whose X-Forwarded-For header is
	// believed. Without any, the connection address is the client.
	TrustedProxies []netip.Prefix

	// GeoLookup overrides the HTTP country lookup.
	GeoLookup CountryLookup
}

// Server renders the directory and serves its JSON endpoints.
type Server struct {
	cfg        Config
	dir        *services.Directory
	stats      *services.StatsLoader
	visibility *services.VisibilityTracker
	reviews    storage.ReviewStore
	beacon     *Beacon
	throttle   *utils.ClickThrottle
	geo        *GeoGate
	pages      *template.Template
	logger     *utils.Logger
	now        func() time.Time
}

func NewServer(cfg Config, dir *services.Directory, stats *services.StatsLoader, reviews storage.ReviewStore, logger *utils.Logger) (*Server, error) {
	pages, err := template.New("").Funcs(template.FuncMap{
		"join": strings.Join,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("web: parse templates: %w", err)
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = utils.DefaultCountryCode
	}

	s := &Server{
		cfg:        cfg,
		dir:        dir,
		stats:      stats,
		visibility: services.NewVisibilityTracker(),
		reviews:    reviews,
		beacon:     NewBeacon(cfg.BeaconURL, cfg.FetchTimeout, cfg.BeaconWorkers, logger),
		throttle:   utils.NewClickThrottle(contactWindow),
		pages:      pages,
		logger:     logger,
		now:        time.Now,
	}
	if cfg.GeoCountry != "" {
		lookup := cfg.GeoLookup
		if lookup == nil {
			lookup = NewIPAPILookup(cfg.GeoLookupURL, cfg.FetchTimeout)
		}
		s.geo = NewGeoGate(cfg.GeoCountry, lookup, logger)
	}
	return s, nil
}

// Register adds the routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.index)
	mux.HandleFunc("GET /api/listings", s.listings)
	mux.HandleFunc("GET /api/stats/{id}", s.listingStats)
	mux.HandleFunc("GET /contactar/{id}", s.contact)
	mux.HandleFunc("GET /resena/{id}", s.reviewForm)
	mux.HandleFunc("POST /resena/{id}", s.submitReview)
	mux.HandleFunc("GET /healthz", s.health)
}

// Handler returns the routed handler, behind the geo gate when configured.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	if s.geo != nil {
		return s.geo.Middleware(s.cfg.TrustedProxies, mux)
	}
	return mux
}

// Close drains pending click reports.
func (s *Server) Close() {
	s.beacon.Close()
}

type statsView struct {
	Total         int      `json:"total"`
	Recommends    int      `json:"recommends"`
	RecommendPct  int      `json:"recommendPct"`
	TopTags       []string `json:"topTags"`
	LatestComment string   `json:"latestComment,omitempty"`
}

func newStatsView(st models.ReviewStats) statsView {
	return statsView{
		Total:         st.Total,
		Recommends:    st.Recommends,
		RecommendPct:  st.RecommendPercent(),
		TopTags:       services.TopTags(st, 3),
		LatestComment: st.LatestComment,
	}
}

type card struct {
	models.Listing
	Stats *statsView
}

type indexPage struct {
	Filter   services.Filter
	Services []string
	Sizes    []models.Size
	Cards    []card
	Count    int
}

func filterFromQuery(r *http.Request) services.Filter {
	q := r.URL.Query()
	return services.Filter{
		Service: q.Get("servicio"),
		Size:    models.Size(q.Get("tamano")),
		Text:    q.Get("q"),
	}
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	f := filterFromQuery(r)
	list := s.dir.Query(r.Context(), f)

	page := indexPage{
		Filter:   f,
		Services: s.dir.Services(r.Context()),
		Sizes:    models.Sizes,
		Cards:    make([]card, 0, len(list)),
		Count:    len(list),
	}
	for _, l := range list {
		c := card{Listing: l}
		if st, ok := s.stats.Cached(l.ID); ok {
			v := newStatsView(st)
			c.Stats = &v
		} else if s.visibility.Pending(l.ID) == 0 {
			s.stats.Watch(s.visibility, l.ID)
		}
		page.Cards = append(page.Cards, c)
	}
	s.render(w, http.StatusOK, "index.html", page)
}

func (s *Server) listings(w http.ResponseWriter, r *http.Request) {
	list := s.dir.Query(r.Context(), filterFromQuery(r))
	respondJSON(w, map[string]any{
		"seed":     s.dir.Seed(),
		"count":    len(list),
		"listings": list,
	})
}

// listingStats is called by the page when a card scrolls into view.
func (s *Server) listingStats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.dir.Find(r.Context(), id); !ok {
		http.NotFound(w, r)
		return
	}
	s.visibility.Notify(id)
	respondJSON(w, newStatsView(s.stats.Load(r.Context(), id)))
}

func (s *Server) contact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	l, ok := s.dir.Find(r.Context(), id)
	if !ok || utils.DigitsOnly(l.Phone) == "" {
		http.NotFound(w, r)
		return
	}

	if s.throttle.Allow(clientIP(r, s.cfg.TrustedProxies).String()+"|"+id, s.now()) {
		s.beacon.Fire(id)
	}

	link := utils.WALinkWithText(l.Phone, s.cfg.CountryCode, fmt.Sprintf(contactMessage, l.Name))
	http.Redirect(w, r, link, http.StatusFound)
}

type reviewPage struct {
	Listing models.Listing
	Options []string
	Stats   statsView
	Sent    bool
	Error   string
}

func (s *Server) reviewForm(w http.ResponseWriter, r *http.Request) {
	l, ok := s.dir.Find(r.Context(), r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, "review.html", reviewPage{
		Listing: l,
		Options: models.ReviewTagOptions,
		Stats:   newStatsView(s.stats.Load(r.Context(), l.ID)),
		Sent:    r.URL.Query().Get("enviada") == "1",
	})
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request) {
	l, ok := s.dir.Find(r.Context(), r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tags := r.PostForm["tags"]
	if extra := strings.TrimSpace(r.PostForm.Get("otra")); extra != "" {
		tags = append(tags, strings.ToLower(extra))
	}
	comment := []rune(strings.TrimSpace(r.PostForm.Get("comment")))
	if len(comment) > maxCommentLen {
		comment = comment[:maxCommentLen]
	}

	in := services.SanitizeReview(models.ReviewInput{
		ListingID: l.ID,
		Recommend: r.PostForm.Get("recommend") != "no",
		Tags:      tags,
		Comment:   string(comment),
	})
	if _, err := s.reviews.Submit(r.Context(), in); err != nil {
		s.logger.Error("[web] Saving review for %s failed: %v", l.ID, err)
		s.render(w, http.StatusInternalServerError, "review.html", reviewPage{
			Listing: l,
			Options: models.ReviewTagOptions,
			Stats:   newStatsView(s.stats.Load(r.Context(), l.ID)),
			Error:   "No se pudo guardar tu reseña. Inténtalo de nuevo.",
		})
		return
	}
	s.stats.Invalidate(l.ID)

	http.Redirect(w, r, "/resena/"+url.PathEscape(l.ID)+"?enviada=1", http.StatusSeeOther)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error("[web] Rendering %s: %v", name, err)
	}
}

func respondJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

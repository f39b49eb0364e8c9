package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"radiovespa/utils"
)

// trustedPrefixes are IPv4 ranges let through without a lookup.
var trustedPrefixes = []string{"80.", "81.", "82."}

// maxGeoCache bounds the per-IP decision cache; it is cleared when full.
const maxGeoCache = 10000

// CountryLookup resolves the ISO country code of an IP address.
type CountryLookup interface {
	Country(ctx context.Context, ip string) (string, error)
}

// IPAPILookup queries an ipapi.co compatible service at "<base>/<ip>/json/".
type IPAPILookup struct {
	base   string
	client *http.Client
}

func NewIPAPILookup(base string, timeout time.Duration) *IPAPILookup {
	return &IPAPILookup{
		base:   strings.TrimRight(base, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (l *IPAPILookup) Country(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.base+"/"+ip+"/json/", nil)
	if err != nil {
		return "", err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geo: status %d", resp.StatusCode)
	}
	var body struct {
		Country string `json:"country"`
		Error   bool   `json:"error"`
		Reason  string `json:"reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("geo: decode: %w", err)
	}
	if body.Error {
		return "", fmt.Errorf("geo: %s", body.Reason)
	}
	return strings.ToUpper(body.Country), nil
}

// GeoGate restricts access to clients located in one country. Lookup
// failures let the request through.
type GeoGate struct {
	country string
	lookup  CountryLookup
	logger  *utils.Logger

	mu    sync.Mutex
	cache map[string]bool
}

func NewGeoGate(country string, lookup CountryLookup, logger *utils.Logger) *GeoGate {
	return &GeoGate{
		country: strings.ToUpper(country),
		lookup:  lookup,
		logger:  logger,
		cache:   make(map[string]bool),
	}
}

// Allowed decides whether addr may use the site. An address that could not
// be resolved is let through like any other lookup failure.
func (g *GeoGate) Allowed(ctx context.Context, addr netip.Addr) bool {
	if !addr.IsValid() {
		return true
	}
	addr = addr.Unmap().WithZone("")
	ip := addr.String()
	if addr.Is4() {
		for _, p := range trustedPrefixes {
			if strings.HasPrefix(ip, p) {
				return true
			}
		}
	}

	g.mu.Lock()
	allowed, ok := g.cache[ip]
	g.mu.Unlock()
	if ok {
		return allowed
	}

	country, err := g.lookup.Country(ctx, ip)
	if err != nil {
		g.logger.Warn("[geo] Lookup for %s failed, allowing: %v", ip, err)
		return true
	}
	allowed = country == g.country

	g.mu.Lock()
	if len(g.cache) >= maxGeoCache {
		g.cache = make(map[string]bool)
	}
	g.cache[ip] = allowed
	g.mu.Unlock()
	return allowed
}

// Middleware blocks requests from other countries with 403. The client
// address is resolved with the proxies in trusted.
func (g *GeoGate) Middleware(trusted []netip.Prefix, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || g.Allowed(r.Context(), clientIP(r, trusted)) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, blockedPage)
	})
}

const blockedPage = `<!doctype html><html lang="es"><meta charset="utf-8"><title>Acceso restringido</title>
<body><h1>Acceso restringido</h1><p>Esta aplicación solo está disponible para usuarios en <strong>España</strong>.</p></body></html>`

// clientIP resolves the address of the caller. X-Forwarded-For is only
// honoured when the connection comes from a trusted proxy; its hops are then
// walked right to left and the first untrusted one wins. A hop that is not an
// IP address stops the walk at the last address known to be good.
func clientIP(r *http.Request, trusted []netip.Prefix) netip.Addr {
	remote := remoteAddr(r.RemoteAddr)
	if !remote.IsValid() || !isTrusted(remote, trusted) {
		return remote
	}

	hops := r.Header.Values("X-Forwarded-For")
	var parts []string
	for _, h := range hops {
		parts = append(parts, strings.Split(h, ",")...)
	}
	addr := remote
	for i := len(parts) - 1; i >= 0; i-- {
		hop, err := netip.ParseAddr(strings.TrimSpace(parts[i]))
		if err != nil {
			return addr
		}
		addr = hop.Unmap()
		if !isTrusted(addr, trusted) {
			return addr
		}
	}
	return addr
}

func remoteAddr(s string) netip.Addr {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		return ap.Addr().Unmap()
	}
	if a, err := netip.ParseAddr(s); err == nil {
		return a.Unmap()
	}
	return netip.Addr{}
}

func isTrusted(addr netip.Addr, trusted []netip.Prefix) bool {
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

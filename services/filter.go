package services

import (
	"sort"
	"strings"

	"radiovespa/models"
)

// Filter holds the active directory criteria. Empty fields match everything.
type Filter struct {
	Service string
	Size    models.Size
	Text    string
}

// IsZero reports whether no criterion is set.
func (f Filter) IsZero() bool {
	return strings.TrimSpace(f.Service) == "" && f.Size == "" && strings.TrimSpace(f.Text) == ""
}

// ApplyFilter returns the visible listings matching f, featured ones first.
// Within each partition the order of all is kept, so the rotation is never
// reshuffled by a filter change.
func ApplyFilter(all []models.Listing, f Filter) []models.Listing {
	service := strings.TrimSpace(f.Service)
	text := normalizeQuery(f.Text)

	featured := make([]models.Listing, 0)
	rest := make([]models.Listing, 0, len(all))
	for _, l := range all {
		if !l.Visible {
			continue
		}
		if service != "" && !hasService(l, service) {
			continue
		}
		if f.Size != "" && l.Size != f.Size {
			continue
		}
		if text != "" && !strings.Contains(searchText(l), text) {
			continue
		}
		if l.Featured {
			featured = append(featured, l)
		} else {
			rest = append(rest, l)
		}
	}
	return append(featured, rest...)
}

// ServiceOptions returns the distinct trimmed service names, sorted.
func ServiceOptions(all []models.Listing) []string {
	seen := make(map[string]struct{})
	for _, l := range all {
		for _, s := range l.Services {
			if s = strings.TrimSpace(s); s != "" {
				seen[s] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func hasService(l models.Listing, service string) bool {
	for _, s := range l.Services {
		if strings.TrimSpace(s) == service {
			return true
		}
	}
	return false
}

func searchText(l models.Listing) string {
	parts := make([]string, 0, 2+len(l.Tags))
	parts = append(parts, l.Name, l.Notes)
	parts = append(parts, l.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

func normalizeQuery(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

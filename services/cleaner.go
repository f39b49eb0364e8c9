package services

import (
	"strings"
	"unicode"

	"radiovespa/models"
	"radiovespa/utils"
)

// Cleaner turns feed listings into the validated set the directory shows.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops hidden, nameless and duplicate listings and normalises the rest.
// Input order is preserved.
func (c *Cleaner) Clean(raw []models.Listing) []models.Listing {
	seen := make(map[string]struct{})
	result := make([]models.Listing, 0, len(raw))

	for _, r := range raw {
		id := strings.TrimSpace(r.ID)
		name := normaliseText(r.Name)

		if !r.Visible {
			c.logger.Debug("[cleaner] Hidden listing skipped: %s", id)
			continue
		}
		if id == "" || name == "" {
			c.logger.Warn("[cleaner] Dropping listing without id or name: %q / %q", id, r.Name)
			continue
		}
		if _, dup := seen[id]; dup {
			c.logger.Debug("[cleaner] Duplicate id skipped: %s", id)
			continue
		}
		seen[id] = struct{}{}

		l := r
		l.ID = id
		l.Name = name
		l.Phone = utils.DigitsOnly(r.Phone)
		l.Services = normaliseList(r.Services)
		l.Zones = normaliseList(r.Zones)
		l.Tags = normaliseList(r.Tags)
		l.Notes = normaliseText(r.Notes)
		l.Size = c.normaliseSize(id, r.Size)
		l.Schedule = strings.ToLower(strings.TrimSpace(r.Schedule))
		if l.Schedule == "" {
			l.Schedule = models.DefaultSchedule
		}
		if l.VerifiedJobs < 0 {
			l.VerifiedJobs = 0
		}
		if l.Rating < 0 || l.Rating > 5 {
			l.Rating = 0
		}
		if l.Phone == "" {
			c.logger.Warn("[cleaner] Listing %s has no phone number", id)
		}

		result = append(result, l)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

func (c *Cleaner) normaliseSize(id string, s models.Size) models.Size {
	v := models.Size(strings.ToLower(strings.TrimSpace(string(s))))
	if v == "" {
		return models.DefaultSize
	}
	for _, known := range models.Sizes {
		if v == known {
			return v
		}
	}
	c.logger.Warn("[cleaner] Listing %s has unknown size %q, using %s", id, s, models.DefaultSize)
	return models.DefaultSize
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}

func normaliseList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = normaliseText(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

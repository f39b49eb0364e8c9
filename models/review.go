package models

import "time"

// MaxReviewTags caps how many tags a single review may carry.
const MaxReviewTags = 3

// ReviewTagOptions are the tags suggested by the review form.
// Submitted tags are not restricted to this list.
var ReviewTagOptions = []string{
	"cuidadoso",
	"rápido",
	"amable",
	"puntual",
	"fuerte",
	"experimentado",
	"confiable",
}

// Review is one append-only customer opinion about a listing.
type Review struct {
	ID        string    `json:"id"`
	ListingID string    `json:"vespaId"`
	Recommend bool      `json:"recommend"`
	Tags      []string  `json:"tags"`
	Comment   string    `json:"comment,omitempty"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewInput is what a caller submits; the store assigns id and timestamp.
type ReviewInput struct {
	ListingID string
	Recommend bool
	Tags      []string
	Comment   string
	Source    string
}

// ReviewStats is the aggregate shown next to a listing.
type ReviewStats struct {
	Total         int            `json:"total"`
	Recommends    int            `json:"recommends"`
	TagsCount     map[string]int `json:"tagsCount"`
	LatestComment string         `json:"latestComment,omitempty"`
}

// RecommendPercent rounds recommends/total to a whole percentage.
func (s ReviewStats) RecommendPercent() int {
	if s.Total == 0 {
		return 0
	}
	return int(float64(s.Recommends)*100/float64(s.Total) + 0.5)
}

package services

import (
	"sort"
	"strings"

	"radiovespa/models"
)

// RecentReviewLimit is how many reviews feed a listing's aggregate.
const RecentReviewLimit = 30

// AggregateReviews summarizes reviews given newest first.
func AggregateReviews(reviews []models.Review) models.ReviewStats {
	stats := models.ReviewStats{
		Total:     len(reviews),
		TagsCount: make(map[string]int),
	}
	for _, r := range reviews {
		if r.Recommend {
			stats.Recommends++
		}
		for _, t := range r.Tags {
			stats.TagsCount[t]++
		}
		if stats.LatestComment == "" && strings.TrimSpace(r.Comment) != "" {
			stats.LatestComment = r.Comment
		}
	}
	return stats
}

// TopTags returns up to limit tags ordered by mention count, most frequent
// first. Equal counts are ordered alphabetically.
func TopTags(stats models.ReviewStats, limit int) []string {
	if len(stats.TagsCount) == 0 || limit <= 0 {
		return []string{}
	}

	tags := make([]string, 0, len(stats.TagsCount))
	for t := range stats.TagsCount {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool {
		ci, cj := stats.TagsCount[tags[i]], stats.TagsCount[tags[j]]
		if ci != cj {
			return ci > cj
		}
		return tags[i] < tags[j]
	})

	if len(tags) > limit {
		tags = tags[:limit]
	}
	return tags
}

// SanitizeReview trims the comment, caps tags at models.MaxReviewTags and
// defaults the source to "web".
func SanitizeReview(in models.ReviewInput) models.ReviewInput {
	out := models.ReviewInput{
		ListingID: strings.TrimSpace(in.ListingID),
		Recommend: in.Recommend,
		Comment:   strings.TrimSpace(in.Comment),
		Source:    strings.TrimSpace(in.Source),
	}
	for _, t := range in.Tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		out.Tags = append(out.Tags, t)
		if len(out.Tags) == models.MaxReviewTags {
			break
		}
	}
	if out.Source == "" {
		out.Source = "web"
	}
	return out
}

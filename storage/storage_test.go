package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"radiovespa/feed"
	"radiovespa/models"
)

func openTestReviews(t *testing.T) *SQLiteReviews {
	t.Helper()
	s, err := OpenReviews(filepath.Join(t.TempDir(), "nested", "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReviewsSubmitAndRecent(t *testing.T) {
	s := openTestReviews(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, comment := range []string{"primera", "segunda", "tercera"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := s.Submit(ctx, models.ReviewInput{ListingID: "7", Recommend: i != 1, Tags: []string{"amable"}, Comment: comment})
		require.NoError(t, err)
	}
	_, err := s.Submit(ctx, models.ReviewInput{ListingID: "8", Recommend: true})
	require.NoError(t, err)

	got, err := s.Recent(ctx, "7", 30)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "tercera", got[0].Comment, "newest first")
	assert.Equal(t, "primera", got[2].Comment)
	assert.False(t, got[1].Recommend)
	assert.Equal(t, []string{"amable"}, got[0].Tags)
	assert.Equal(t, "web", got[0].Source)
	assert.True(t, got[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	limited, err := s.Recent(ctx, "7", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestReviewsCapsTags(t *testing.T) {
	s := openTestReviews(t)
	r, err := s.Submit(context.Background(), models.ReviewInput{
		ListingID: "1",
		Tags:      []string{"a", "b", "c", "d"},
		Source:    "app",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, r.Tags)
	assert.Equal(t, "app", r.Source)
	assert.NotEmpty(t, r.ID)
}

func TestReviewsRequireListing(t *testing.T) {
	s := openTestReviews(t)
	_, err := s.Submit(context.Background(), models.ReviewInput{})
	assert.Error(t, err)
}

func TestReviewsUnknownListingIsEmpty(t *testing.T) {
	s := openTestReviews(t)
	got, err := s.Recent(context.Background(), "nobody", 30)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCSVWriterProducesReadableFeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "rotation.csv")
	w, err := NewCSVWriter(path)
	require.NoError(t, err)

	in := []models.Listing{
		{ID: "1", Name: "Vespa, con coma", Phone: "34600000001", Services: []string{"portes"}, Size: models.SizeSmall, Schedule: "tarde", Visible: true, Featured: true},
		{ID: "2", Name: "Otra", Phone: "34600000002", Size: models.SizeLarge, Schedule: "flexible", Visible: true, VerifiedJobs: 8},
	}
	require.NoError(t, w.WriteListings(in))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := feed.ParseCSV(f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Vespa, con coma", got[0].Name)
	assert.True(t, got[0].Featured)
	assert.Equal(t, 8, got[1].VerifiedJobs)
}

func TestUpsertSkipsNonNumericIDs(t *testing.T) {
	// no numeric ids means no statement is issued, so a nil pool is never touched
	pg := NewPostgres(nil)
	n, err := pg.UpsertListings(context.Background(), []models.Listing{{ID: "abc"}, {ID: "-3"}, {ID: ""}})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

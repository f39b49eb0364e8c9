package services

import (
	"testing"

	"radiovespa/models"
)

func sampleListings() []models.Listing {
	return []models.Listing{
		{ID: "1", Name: "Vespa A", Services: []string{"portes"}, Size: models.SizeSmall, Zones: []string{"Centro"}, VerifiedJobs: 12, Rating: 4.5, Featured: true},
		{ID: "2", Name: "Vespa B", Services: []string{"portes", "mudanzas"}, Size: models.SizeLarge, Zones: []string{"Centro"}, VerifiedJobs: 30, Rating: 5},
		{ID: "3", Name: "Vespa C", Services: []string{"mudanzas"}, Size: models.SizeLarge, Zones: []string{"Príncipe"}, VerifiedJobs: 0},
		{ID: "4", Name: "Vespa D", Services: []string{"portes"}, Size: models.SizeMedium, VerifiedJobs: 4, Rating: 4},
	}
}

func TestInsightCounts(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.TotalListings != 4 {
		t.Errorf("TotalListings: got %d, want 4", r.TotalListings)
	}
	if r.Featured != 1 {
		t.Errorf("Featured: got %d, want 1", r.Featured)
	}
	if r.TotalJobs != 46 {
		t.Errorf("TotalJobs: got %d, want 46", r.TotalJobs)
	}
}

func TestInsightAverageRating(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.AverageRating != 4.5 {
		t.Errorf("AverageRating: got %.2f, want 4.50", r.AverageRating)
	}
}

func TestInsightMostJobs(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if len(r.MostJobs) != 3 {
		t.Fatalf("MostJobs len: got %d, want 3", len(r.MostJobs))
	}
	if r.MostJobs[0].Name != "Vespa B" {
		t.Errorf("MostJobs[0]: got %q, want %q", r.MostJobs[0].Name, "Vespa B")
	}
}

func TestInsightGrouping(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(sampleListings())
	if r.ByService["portes"] != 3 {
		t.Errorf("portes count: got %d, want 3", r.ByService["portes"])
	}
	if r.BySize[models.SizeLarge] != 2 {
		t.Errorf("grande count: got %d, want 2", r.BySize[models.SizeLarge])
	}
	if r.ByZone["Centro"] != 2 {
		t.Errorf("Centro count: got %d, want 2", r.ByZone["Centro"])
	}
}

func TestInsightEmptyInput(t *testing.T) {
	svc := NewInsightService(newTestLogger())
	r := svc.Generate(nil)
	if r.TotalListings != 0 {
		t.Errorf("expected 0 total listings for empty input")
	}
}

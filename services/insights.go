package services

import (
	"fmt"
	"sort"
	"strings"

	"radiovespa/models"
	"radiovespa/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate summarises the listings of one rotation.
func (s *InsightService) Generate(listings []models.Listing) *models.DirectoryReport {
	report := &models.DirectoryReport{
		ByService: make(map[string]int),
		BySize:    make(map[models.Size]int),
		ByZone:    make(map[string]int),
	}

	if len(listings) == 0 {
		return report
	}

	report.TotalListings = len(listings)

	var rated []*models.Listing
	var ratingSum float64
	byJobs := make([]*models.Listing, 0, len(listings))

	for i := range listings {
		l := &listings[i]
		if l.Featured {
			report.Featured++
		}
		report.TotalJobs += l.VerifiedJobs
		report.BySize[l.Size]++
		for _, svc := range l.Services {
			report.ByService[svc]++
		}
		for _, z := range l.Zones {
			report.ByZone[z]++
		}
		if l.Rating > 0 {
			rated = append(rated, l)
			ratingSum += l.Rating
		}
		if l.VerifiedJobs > 0 {
			byJobs = append(byJobs, l)
		}
	}

	if len(rated) > 0 {
		report.AverageRating = round2(ratingSum / float64(len(rated)))
	}

	// Top 5 by verified jobs
	sort.SliceStable(byJobs, func(i, j int) bool {
		return byJobs[i].VerifiedJobs > byJobs[j].VerifiedJobs
	})
	if len(byJobs) > 5 {
		report.MostJobs = byJobs[:5]
	} else {
		report.MostJobs = byJobs
	}

	s.logger.Debug("[insights] %d listings, %d featured", report.TotalListings, report.Featured)
	return report
}

func (s *InsightService) Print(r *models.DirectoryReport, seed uint32) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  🚚 RADIOVESPA DIRECTORY\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Visible listings : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  Featured         : \033[1m%d\033[0m\n", r.Featured)
	fmt.Printf("  Verified jobs    : \033[1m%d\033[0m\n", r.TotalJobs)
	if r.AverageRating > 0 {
		fmt.Printf("  Average rating   : \033[1;32m%.2f ★\033[0m\n", r.AverageRating)
	}
	fmt.Printf("  Rotation seed    : %d\n", seed)
	fmt.Println()

	fmt.Printf("\033[1;33m  Most Verified Jobs\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.MostJobs) == 0 {
		fmt.Printf("  No verified jobs yet\n")
	} else {
		for i, l := range r.MostJobs {
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%d\033[0m\n",
				i+1, truncate(l.Name, 38), l.VerifiedJobs)
		}
	}
	fmt.Println()

	printCounts("Listings by Service", r.ByService, thin)

	sizes := make(map[string]int, len(r.BySize))
	for k, v := range r.BySize {
		sizes[string(k)] = v
	}
	printCounts("Listings by Size", sizes, thin)
	printCounts("Listings by Zone", r.ByZone, thin)

	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(title string, counts map[string]int, thin string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(counts) == 0 {
		fmt.Printf("  No data\n\n")
		return
	}

	type kv struct {
		key   string
		count int
	}
	var rows []kv
	for k, c := range counts {
		rows = append(rows, kv{k, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, row := range rows {
		bar := strings.Repeat("█", row.count)
		fmt.Printf("  %-30s %s (%d)\n", truncate(row.key, 28), bar, row.count)
	}
	fmt.Println()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

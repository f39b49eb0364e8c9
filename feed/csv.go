package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"radiovespa/models"
	"radiovespa/utils"
)

// Header lists the CSV columns in the order the exporter writes them.
// Parsing is header-driven, so input files may order or omit them freely.
var Header = []string{
	"id", "nombre", "telefono", "servicios", "tamano", "zonas", "horario", "notas",
	"visible", "prioridad", "trabajosVerificados", "etiquetas", "destacado", "rating", "reviews",
}

// ParseCSV decodes a header-driven listing sheet. Blank lines are skipped and
// a file with only a header yields no listings.
func ParseCSV(r io.Reader) ([]models.Listing, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []models.Listing{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("csv: read header: %w", err)
	}

	index := make(map[string]int, len(head))
	for i, h := range head {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	listings := make([]models.Listing, 0)
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", line, err)
		}
		if blankRow(row) {
			continue
		}
		listings = append(listings, parseRow(row, index))
	}
	return listings, nil
}

func parseRow(row []string, index map[string]int) models.Listing {
	get := func(key string) string {
		i, ok := index[key]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	id := get("id")
	if id == "" {
		id = uuid.NewString()
	}
	size := models.Size(strings.ToLower(get("tamano")))
	if size == "" {
		size = models.DefaultSize
	}
	schedule := get("horario")
	if schedule == "" {
		schedule = models.DefaultSchedule
	}

	return models.Listing{
		ID:           id,
		Name:         get("nombre"),
		Phone:        utils.DigitsOnly(get("telefono")),
		Services:     toList(get("servicios")),
		Size:         size,
		Zones:        toList(get("zonas")),
		Schedule:     schedule,
		Notes:        get("notas"),
		Visible:      !strings.EqualFold(get("visible"), "false"),
		Priority:     toInt(get("prioridad")),
		VerifiedJobs: toInt(get("trabajosVerificados")),
		Tags:         toList(get("etiquetas")),
		Featured:     strings.EqualFold(get("destacado"), "true"),
		Rating:       toFloat(get("rating")),
		Reviews:      toInt(get("reviews")),
	}
}

// Record renders l as a CSV row in Header order.
func Record(l models.Listing) []string {
	return []string{
		l.ID,
		l.Name,
		l.Phone,
		strings.Join(l.Services, ";"),
		string(l.Size),
		strings.Join(l.Zones, ";"),
		l.Schedule,
		l.Notes,
		strconv.FormatBool(l.Visible),
		strconv.Itoa(l.Priority),
		strconv.Itoa(l.VerifiedJobs),
		strings.Join(l.Tags, ";"),
		strconv.FormatBool(l.Featured),
		strconv.FormatFloat(l.Rating, 'f', -1, 64),
		strconv.Itoa(l.Reviews),
	}
}

// toList converts "a;b;c" to ["a","b","c"], trimming and dropping blanks.
func toList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func toInt(s string) int {
	if s == "" {
		return 0
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}

func toFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

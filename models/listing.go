package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Size is the van size category of a listing.
type Size string

const (
	SizeSmall  Size = "pequeña"
	SizeMedium Size = "mediana"
	SizeLarge  Size = "grande"
)

// Sizes lists the size categories in display order.
var Sizes = []Size{SizeSmall, SizeMedium, SizeLarge}

const (
	DefaultSize     = SizeMedium
	DefaultSchedule = "flexible"
)

// Listing is a directory entry for a transport provider ("vespa").
// Field names on the wire follow the published feed.
type Listing struct {
	ID           string   `json:"id"`
	Name         string   `json:"nombre"`
	Phone        string   `json:"telefono"`
	Services     []string `json:"servicios"`
	Size         Size     `json:"tamano"`
	Zones        []string `json:"zonas"`
	Schedule     string   `json:"horario"`
	Notes        string   `json:"notas,omitempty"`
	Visible      bool     `json:"visible"`
	Priority     int      `json:"prioridad"`
	VerifiedJobs int      `json:"trabajosVerificados"`
	Tags         []string `json:"etiquetas,omitempty"`
	Featured     bool     `json:"destacado,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	Reviews      int      `json:"reviews,omitempty"`
}

// UnmarshalJSON treats a missing "visible" as true and accepts numeric ids.
func (l *Listing) UnmarshalJSON(data []byte) error {
	type alias Listing
	aux := struct {
		*alias
		ID      json.RawMessage `json:"id"`
		Visible *bool           `json:"visible"`
	}{alias: (*alias)(l)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	l.Visible = aux.Visible == nil || *aux.Visible

	id := strings.TrimSpace(string(aux.ID))
	switch {
	case id == "" || id == "null":
		l.ID = ""
	case strings.HasPrefix(id, `"`):
		var s string
		if err := json.Unmarshal(aux.ID, &s); err != nil {
			return fmt.Errorf("listing id: %w", err)
		}
		l.ID = s
	default:
		if _, err := strconv.ParseFloat(id, 64); err != nil {
			return fmt.Errorf("listing id: unsupported value %s", id)
		}
		l.ID = id
	}
	return nil
}

// NumericID returns the listing id as used by the relational store.
func (l Listing) NumericID() (int, bool) {
	n, err := strconv.Atoi(l.ID)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Click is a logged intent to contact a listing through the bot.
type Click struct {
	ListingID int
	Requester string
	At        time.Time
}

// DirectoryReport holds summary figures over the current rotation.
type DirectoryReport struct {
	TotalListings int
	Featured      int
	TotalJobs     int
	AverageRating float64
	ByService     map[string]int
	BySize        map[Size]int
	ByZone        map[string]int
	MostJobs      []*Listing
}

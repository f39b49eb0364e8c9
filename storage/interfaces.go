package storage

import (
	"context"
	"errors"

	"radiovespa/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// ClickRecorder appends click records.
type ClickRecorder interface {
	RecordClick(ctx context.Context, click models.Click) error
}

// PhoneLookup resolves a listing's phone number by its numeric id.
type PhoneLookup interface {
	PhoneByID(ctx context.Context, id int) (string, error)
}

// ListingWriter persists listings for the bot to resolve.
type ListingWriter interface {
	UpsertListings(ctx context.Context, listings []models.Listing) (int, error)
	Close() error
}

// ReviewStore is the append-only review log.
type ReviewStore interface {
	Submit(ctx context.Context, in models.ReviewInput) (models.Review, error)
	Recent(ctx context.Context, listingID string, limit int) ([]models.Review, error)
	Close() error
}

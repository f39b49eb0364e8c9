package services

import (
	"math/rand/v2"
	"time"
	"unicode/utf16"
)

const (
	fnvOffsetBasis uint32 = 0x811c9dc5
	fnvPrime       uint32 = 0x01000193
)

// HashSeed hashes s with 32-bit FNV-1a over its UTF-16 code units, so the
// result matches what a browser computes with charCodeAt.
func HashSeed(s string) uint32 {
	h := fnvOffsetBasis
	for _, unit := range utf16.Encode([]rune(s)) {
		h ^= uint32(unit)
		h *= fnvPrime
	}
	return h
}

// DailySeed derives the rotation seed for the UTC calendar day of t.
func DailySeed(t time.Time) uint32 {
	return HashSeed(t.UTC().Format("2006-01-02"))
}

// Mulberry32 is a small deterministic 32-bit PRNG.
type Mulberry32 struct {
	state uint32
}

// NewMulberry32 seeds a generator.
func NewMulberry32(seed uint32) *Mulberry32 {
	return &Mulberry32{state: seed}
}

// Float64 returns the next value in [0, 1).
func (m *Mulberry32) Float64() float64 {
	m.state += 0x6d2b79f5
	t := m.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	return float64(t^(t>>14)) / 4294967296
}

// SeededShuffle returns a Fisher–Yates permutation of items driven by a
// Mulberry32 generator. The same seed and input order always give the same
// output. items is not modified.
func SeededShuffle[T any](items []T, seed uint32) []T {
	return shuffleWith(items, NewMulberry32(seed).Float64)
}

// Shuffle returns a non-deterministic permutation of items.
func Shuffle[T any](items []T) []T {
	return shuffleWith(items, rand.Float64)
}

func shuffleWith[T any](items []T, next func() float64) []T {
	out := make([]T, len(items))
	copy(out, items)
	for i := len(out) - 1; i > 0; i-- {
		j := int(next() * float64(i+1))
		out[i], out[j] = out[j], out[i]
	}
	return out
}

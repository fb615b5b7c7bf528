package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"hotelsync/internal/domain"
)

// Pure transfer-record-to-entity mapping. No storage, no network, no hidden
// state; the clock is passed in so offers stamp a deterministic LastSeenAt.

var (
	chainTokenRe = regexp.MustCompile(`(?i)\b(hotel|inn|resort)\b`)
	nonAlnumRe   = regexp.MustCompile(`[^a-z0-9 ]+`)
	spaceRunRe   = regexp.MustCompile(`\s+`)
)

// MapHotel builds a Hotel entity from a provider record. Missing rating
// defaults to 0 and missing description to "".
func MapHotel(rec domain.HotelRecord, source string) domain.Hotel {
	h := domain.Hotel{
		Title:       NormalizeTitle(rec.Name),
		Address:     rec.Address.Formatted(),
		Description: rec.Description,
		Source:      source,
		ExternalID:  rec.ExternalID,
	}
	if rec.Rating != nil {
		h.Rating = *rec.Rating
	}
	return h
}

// MapOffer builds the (Room, Offer) pair for an offer record. The offer's
// RoomID is left zero; the caller wires it after the room upsert assigns a
// surrogate ID.
func MapOffer(rec domain.OfferRecord, source string, hotel domain.Hotel, now time.Time) (domain.Room, domain.Offer) {
	room := domain.Room{
		Title:      rec.Room.Title(),
		Type:       rec.Room.NormalizedType(),
		Capacity:   rec.Room.ResolvedCapacity(),
		HotelID:    hotel.ID,
		Source:     source,
		ExternalID: RoomExternalID(rec.HotelExternalID, rec.Room),
	}
	offer := domain.Offer{
		Price:      rec.Price,
		Currency:   rec.Currency,
		CheckIn:    rec.CheckIn,
		CheckOut:   rec.CheckOut,
		Source:     source,
		ExternalID: rec.OfferID,
		LastSeenAt: now,
		IsActive:   true,
	}
	return room, offer
}

// ApplyRating overwrites the hotel's rating with the record's overall
// rating.
func ApplyRating(h *domain.Hotel, rec domain.RatingRecord) {
	h.Rating = rec.OverallRating
}

// NormalizeTitle trims and title-cases a hotel name, keeping common chain
// tokens in canonical form. Casers are stateful and not goroutine-safe, so
// each call builds its own; they are cheap.
func NormalizeTitle(name string) string {
	t := cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(name)))
	return chainTokenRe.ReplaceAllStringFunc(t, func(m string) string {
		switch strings.ToLower(m) {
		case "hotel":
			return "Hotel"
		case "inn":
			return "Inn"
		default:
			return "Resort"
		}
	})
}

// RoomExternalID derives a stable room key from the hotel and the room's
// invariant characteristics, so repeated runs describing the same physical
// room type land on the same natural key even when the description text
// drifts in formatting.
func RoomExternalID(hotelExternalID string, room domain.RoomRecord) string {
	parts := []string{
		hotelExternalID,
		strings.ToLower(room.NormalizedType()),
		normalizeDescription(room.Description),
	}
	if room.Capacity != nil {
		parts = append(parts, fmt.Sprintf("cap:%d", *room.Capacity))
	}
	if room.Estimate != nil && room.Estimate.Beds > 0 {
		parts = append(parts, fmt.Sprintf("beds:%d", room.Estimate.Beds))
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return hotelExternalID + "_" + hex.EncodeToString(sum[:])[:16]
}

// normalizeDescription lowercases, strips punctuation, and collapses
// whitespace so cosmetic drift doesn't change the derived key.
func normalizeDescription(s string) string {
	s = nonAlnumRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}

package app_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/app"
	"hotelsync/internal/domain"
)

func TestNormalizeTitle(t *testing.T) {
	cases := map[string]string{
		"  GRAND HOTEL BERLIN ": "Grand Hotel Berlin",
		"holiday inn munich":    "Holiday Inn Munich",
		"PARADISE RESORT & SPA": "Paradise Resort & Spa",
		"le méridien":           "Le Méridien",
	}
	for in, want := range cases {
		assert.Equal(t, want, app.NormalizeTitle(in), "input %q", in)
	}
}

// Normalization runs on every hotel of every scope, and scopes fan out
// across workers; the race detector must stay quiet here.
func TestNormalizeTitleConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := app.NormalizeTitle("grand hotel berlin"); got != "Grand Hotel Berlin" {
					t.Errorf("NormalizeTitle = %q", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestAddressFormatted(t *testing.T) {
	a := domain.Address{Line: "Unter den Linden 1", City: "Berlin", PostalCode: "10117", CountryCode: "DE"}
	assert.Equal(t, "Unter den Linden 1, Berlin, 10117, DE", a.Formatted())

	// blank parts are skipped, no dangling separators
	a = domain.Address{City: "Berlin", CountryCode: "DE"}
	assert.Equal(t, "Berlin, DE", a.Formatted())

	assert.Equal(t, "", domain.Address{}.Formatted())
}

func TestMapHotelDefaults(t *testing.T) {
	rec := domain.HotelRecord{
		ExternalID: "HLBER001",
		Name:       "grand hotel berlin",
		Address:    domain.Address{City: "Berlin", CountryCode: "DE"},
	}
	h := app.MapHotel(rec, "amadeus")

	assert.Equal(t, "Grand Hotel Berlin", h.Title)
	assert.Equal(t, "Berlin, DE", h.Address)
	assert.Zero(t, h.Rating)
	assert.Empty(t, h.Description)
	assert.Equal(t, "amadeus", h.Source)
	assert.Equal(t, "HLBER001", h.ExternalID)

	rating := 4.2
	rec.Rating = &rating
	assert.Equal(t, 4.2, app.MapHotel(rec, "amadeus").Rating)
}

func TestRoomRecordResolution(t *testing.T) {
	cap3 := 3

	// explicit capacity wins
	r := domain.RoomRecord{Type: "DELUXE", Capacity: &cap3, Estimate: &domain.TypeEstimate{Beds: 1}}
	assert.Equal(t, 3, r.ResolvedCapacity())

	// estimate beds next
	r = domain.RoomRecord{Type: "DELUXE", Estimate: &domain.TypeEstimate{Beds: 3}}
	assert.Equal(t, 3, r.ResolvedCapacity())

	// default of 2
	assert.Equal(t, 2, domain.RoomRecord{Type: "DELUXE"}.ResolvedCapacity())

	// normalized type prefers estimate category
	r = domain.RoomRecord{Type: "A1K", Estimate: &domain.TypeEstimate{Category: "DELUXE_ROOM"}}
	assert.Equal(t, "DELUXE_ROOM", r.NormalizedType())
	assert.Equal(t, "A1K", domain.RoomRecord{Type: "A1K"}.NormalizedType())

	// title falls back to type code
	assert.Equal(t, "King bed, city view", domain.RoomRecord{Type: "A1K", Description: "King bed, city view"}.Title())
	assert.Equal(t, "A1K", domain.RoomRecord{Type: "A1K", Description: "  "}.Title())
}

func TestRoomExternalIDStability(t *testing.T) {
	cap2 := 2
	base := domain.RoomRecord{
		Type:        "A1K",
		Description: "King bed, city view",
		Capacity:    &cap2,
	}

	id := app.RoomExternalID("HLBER001", base)
	require.NotEmpty(t, id)
	assert.True(t, len(id) == len("HLBER001")+1+16, "id %q has unexpected length", id)
	assert.Contains(t, id, "HLBER001_")

	// cosmetic description drift maps to the same key
	drifted := base
	drifted.Description = "  KING BED -- CITY   VIEW!! "
	assert.Equal(t, id, app.RoomExternalID("HLBER001", drifted))

	// a real characteristic change does not
	other := base
	other.Description = "Twin beds, garden view"
	assert.NotEqual(t, id, app.RoomExternalID("HLBER001", other))

	cap4 := 4
	bigger := base
	bigger.Capacity = &cap4
	assert.NotEqual(t, id, app.RoomExternalID("HLBER001", bigger))

	// same room under a different hotel is a different key
	assert.NotEqual(t, id, app.RoomExternalID("HLPAR002", base))
}

func TestMapOffer(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	hotel := domain.Hotel{ID: 42, Source: "amadeus", ExternalID: "HLBER001"}
	rec := domain.OfferRecord{
		HotelExternalID: "HLBER001",
		OfferID:         "OFF-123",
		Price:           180.50,
		Currency:        "EUR",
		CheckIn:         "2025-10-15",
		CheckOut:        "2025-10-17",
		Room:            domain.RoomRecord{Type: "A1K", Description: "King bed"},
	}

	room, offer := app.MapOffer(rec, "amadeus", hotel, now)

	assert.Equal(t, int64(42), room.HotelID)
	assert.Equal(t, "King bed", room.Title)
	assert.Equal(t, "A1K", room.Type)
	assert.Equal(t, 2, room.Capacity)
	assert.Equal(t, "amadeus", room.Source)
	assert.Equal(t, app.RoomExternalID("HLBER001", rec.Room), room.ExternalID)

	assert.Equal(t, 180.50, offer.Price)
	assert.Equal(t, "EUR", offer.Currency)
	assert.Equal(t, "2025-10-15", offer.CheckIn)
	assert.Equal(t, "2025-10-17", offer.CheckOut)
	assert.Equal(t, "OFF-123", offer.ExternalID)
	assert.Equal(t, now, offer.LastSeenAt)
	assert.True(t, offer.IsActive)
	// caller wires RoomID after the room upsert
	assert.Zero(t, offer.RoomID)
}

func TestApplyRating(t *testing.T) {
	h := domain.Hotel{Rating: 4.0}
	app.ApplyRating(&h, domain.RatingRecord{HotelExternalID: "HLBER001", OverallRating: 88})
	assert.Equal(t, float64(88), h.Rating)
}

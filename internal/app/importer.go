package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"hotelsync/internal/adapters/observability"
	"hotelsync/internal/domain"
)

// Stats accumulates the counters of one import run. Errors collects
// per-item failures; Aborted is set only when a top-level failure (auth,
// empty-handed provider) cut the run short.
type Stats struct {
	HotelsProcessed   int
	HotelsCreated     int
	HotelsUpdated     int
	RoomsProcessed    int
	RoomsCreated      int
	RoomsUpdated      int
	OffersProcessed   int
	OffersCreated     int
	OffersUpdated     int
	OffersDeactivated int64
	Errors            []string
	Aborted           bool
}

// Importer drives the four-phase sync for one provider: hotel catalog,
// ratings, offers/rooms, stale-offer reconciliation. Phases are strictly
// sequential and each is best-effort; a single bad record never aborts the
// run.
type Importer struct {
	provider      domain.Provider
	repo          domain.CatalogRepository
	importRatings bool
	now           func() time.Time
}

func NewImporter(p domain.Provider, repo domain.CatalogRepository, importRatings bool) *Importer {
	return &Importer{provider: p, repo: repo, importRatings: importRatings, now: time.Now}
}

func (im *Importer) Run(ctx context.Context, scope domain.Scope, params domain.SearchParams) Stats {
	var stats Stats
	source := im.provider.Name()

	// Phase A: hotel catalog.
	log.Info().Str("provider", source).Stringer("scope", scope).Msg("phase A: importing hotel catalog")
	records, err := im.provider.ListHotels(ctx, scope)
	if err != nil {
		// Nothing to work with either way, but only a credentials problem
		// is fatal to the whole command; a transport failure is an ordinary
		// run error.
		stats.Errors = append(stats.Errors, err.Error())
		if errors.Is(err, domain.ErrAuth) {
			stats.Aborted = true
			observability.ObserveRun(source, "aborted")
			log.Error().Str("provider", source).Err(err).Msg("import aborted")
			return stats
		}
		observability.ObserveRun(source, "failed")
		log.Error().Str("provider", source).Err(err).Msg("hotel catalog fetch failed")
		return stats
	}

	hotels := make([]domain.Hotel, 0, len(records))
	for _, rec := range records {
		h := MapHotel(rec, source)
		created, err := im.repo.UpsertHotel(ctx, &h)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("hotel %s: %v", rec.ExternalID, err))
			continue
		}
		stats.HotelsProcessed++
		if created {
			stats.HotelsCreated++
		} else {
			stats.HotelsUpdated++
		}
		observability.ObserveUpsert("hotel", created)
		hotels = append(hotels, h)
	}

	// Phase B: ratings, gated by configuration and on having any hotels.
	if len(hotels) > 0 && im.importRatings {
		log.Info().Str("provider", source).Int("hotels", len(hotels)).Msg("phase B: importing ratings")
		im.importHotelRatings(ctx, hotels, &stats)
	}

	// Phase C: offers and rooms.
	var seen []string
	if len(hotels) > 0 {
		log.Info().Str("provider", source).Int("hotels", len(hotels)).Msg("phase C: importing offers and rooms")
		seen = im.importOffers(ctx, hotels, params, &stats)
	}

	// Phase D: flip offers not re-observed this run. An empty seen set
	// means a degenerate run; skipping avoids mass-deactivation.
	if len(seen) > 0 {
		log.Info().Str("provider", source).Int("seen", len(seen)).Msg("phase D: reconciling stale offers")
		n, err := im.repo.DeactivateStaleOffers(ctx, source, seen)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("reconcile: %v", err))
		} else {
			stats.OffersDeactivated = n
			observability.ObserveDeactivated(source, n)
		}
	}

	observability.ObserveRun(source, "completed")
	return stats
}

func (im *Importer) importHotelRatings(ctx context.Context, hotels []domain.Hotel, stats *Stats) {
	ids := hotelExternalIDs(hotels)
	ratings, err := im.provider.Ratings(ctx, ids)
	if err != nil {
		// Partial results may still have come back; record and keep going.
		stats.Errors = append(stats.Errors, fmt.Sprintf("ratings: %v", err))
	}

	byID := make(map[string]domain.RatingRecord, len(ratings))
	for _, r := range ratings {
		byID[r.HotelExternalID] = r
	}

	for i := range hotels {
		rec, ok := byID[hotels[i].ExternalID]
		if !ok {
			continue
		}
		ApplyRating(&hotels[i], rec)
		if _, err := im.repo.UpsertHotel(ctx, &hotels[i]); err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("hotel %s: rating: %v", hotels[i].ExternalID, err))
		}
	}
}

func (im *Importer) importOffers(ctx context.Context, hotels []domain.Hotel, params domain.SearchParams, stats *Stats) []string {
	source := im.provider.Name()
	byExt := make(map[string]domain.Hotel, len(hotels))
	for _, h := range hotels {
		byExt[h.ExternalID] = h
	}

	offers, err := im.provider.ListOffers(ctx, hotelExternalIDs(hotels), params)
	if err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("offers: %v", err))
	}

	var seen []string
	for _, rec := range offers {
		// Offers for hotels outside the requested set are dropped, not
		// errors.
		hotel, ok := byExt[rec.HotelExternalID]
		if !ok {
			continue
		}

		room, offer := MapOffer(rec, source, hotel, im.now())

		roomCreated, err := im.repo.UpsertRoom(ctx, &room)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("offer %s: %v", rec.OfferID, err))
			continue
		}
		offer.RoomID = room.ID

		offerCreated, err := im.repo.UpsertOffer(ctx, &offer)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("offer %s: %v", rec.OfferID, err))
			continue
		}
		seen = append(seen, offer.ExternalID)

		stats.RoomsProcessed++
		if roomCreated {
			stats.RoomsCreated++
		} else {
			stats.RoomsUpdated++
		}
		observability.ObserveUpsert("room", roomCreated)

		stats.OffersProcessed++
		if offerCreated {
			stats.OffersCreated++
		} else {
			stats.OffersUpdated++
		}
		observability.ObserveUpsert("offer", offerCreated)
	}
	return seen
}

func hotelExternalIDs(hotels []domain.Hotel) []string {
	ids := make([]string, len(hotels))
	for i, h := range hotels {
		ids[i] = h.ExternalID
	}
	return ids
}

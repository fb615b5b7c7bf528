package domain

import (
	"context"
	"errors"
)

var (
	// ErrAuth means the provider rejected credentials or returned a token
	// response missing required fields. Fatal to a run.
	ErrAuth = errors.New("provider authentication failed")

	// ErrUnknownProvider is a registry lookup miss. Fatal, raised before
	// any network call.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMalformedResponse means a provider response failed to parse or
	// was missing expected fields.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Provider is the capability set every external inventory integration
// implements. ListOffers and Ratings may return partial results alongside
// a non-nil error when individual batches fail.
type Provider interface {
	Authenticate(ctx context.Context) (AccessToken, error)
	ListHotels(ctx context.Context, scope Scope) ([]HotelRecord, error)
	ListOffers(ctx context.Context, hotelExternalIDs []string, params SearchParams) ([]OfferRecord, error)
	Ratings(ctx context.Context, hotelExternalIDs []string) ([]RatingRecord, error)
	Name() string
}

// CatalogRepository is the storage contract for imported entities. Upserts
// key on (source, external_id), populate the entity's surrogate ID, and
// report whether a new row was created.
type CatalogRepository interface {
	UpsertHotel(ctx context.Context, h *Hotel) (created bool, err error)
	UpsertRoom(ctx context.Context, r *Room) (created bool, err error)
	UpsertOffer(ctx context.Context, o *Offer) (created bool, err error)

	// DeactivateStaleOffers flips is_active off on every active offer of
	// source whose external_id is not in seenExternalIDs, returning the
	// affected-row count.
	DeactivateStaleOffers(ctx context.Context, source string, seenExternalIDs []string) (int64, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

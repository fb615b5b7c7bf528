package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"hotelsync/internal/domain"
)

// Repo implements domain.CatalogRepository on MySQL. Upserts are single
// statements keyed on the (source, external_id) unique constraint, so two
// concurrent runs cannot double-insert the same natural key.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) UpsertHotel(ctx context.Context, h *domain.Hotel) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertHotelSQL,
		h.Title, h.Address, h.Rating, h.Description, h.Source, h.ExternalID)
	if err != nil {
		return false, err
	}
	return r.finishUpsert(ctx, res, &h.ID, "hotels", h.Source, h.ExternalID)
}

func (r *Repo) UpsertRoom(ctx context.Context, room *domain.Room) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertRoomSQL,
		room.Title, room.Type, room.Capacity, room.HotelID, room.Source, room.ExternalID)
	if err != nil {
		return false, err
	}
	return r.finishUpsert(ctx, res, &room.ID, "rooms", room.Source, room.ExternalID)
}

func (r *Repo) UpsertOffer(ctx context.Context, o *domain.Offer) (bool, error) {
	res, err := r.db.ExecContext(ctx, upsertOfferSQL,
		o.Price, o.Currency, nilIfEmpty(o.CheckIn), nilIfEmpty(o.CheckOut),
		o.RoomID, o.Source, o.ExternalID, o.LastSeenAt, o.IsActive)
	if err != nil {
		return false, err
	}
	return r.finishUpsert(ctx, res, &o.ID, "offers", o.Source, o.ExternalID)
}

func (r *Repo) DeactivateStaleOffers(ctx context.Context, source string, seenExternalIDs []string) (int64, error) {
	if len(seenExternalIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(seenExternalIDs)-1) + "?"
	args := make([]any, 0, len(seenExternalIDs)+1)
	args = append(args, source)
	for _, id := range seenExternalIDs {
		args = append(args, id)
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(deactivateStaleOffersSQL, placeholders), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// finishUpsert recovers the surrogate ID and whether the statement
// inserted a new row (affected == 1; 0 or 2 mean the row already existed).
// An affected count of 0 means no column changed at all, and LastInsertId
// is not trustworthy on that path, so the ID comes from a keyed lookup.
func (r *Repo) finishUpsert(ctx context.Context, res sql.Result, id *int64, table, source, externalID string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		q := fmt.Sprintf(selectIDSQL, table)
		if err := r.db.QueryRowContext(ctx, q, source, externalID).Scan(id); err != nil {
			return false, err
		}
		return false, nil
	}
	newID, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	*id = newID
	return n == 1, nil
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

package mysql

// Atomic natural-key upserts. LAST_INSERT_ID(id) makes LastInsertId()
// return the surrogate key on the duplicate path too; RowsAffected is 1
// for an insert and 0/2 for an update, which is how created is detected.

const upsertHotelSQL = `
INSERT INTO hotels
  (title, address, rating, description, source, external_id)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id          = LAST_INSERT_ID(id),
  title       = VALUES(title),
  address     = VALUES(address),
  rating      = VALUES(rating),
  description = VALUES(description),
  updated_at  = CURRENT_TIMESTAMP
`

const upsertRoomSQL = `
INSERT INTO rooms
  (title, type, capacity, hotel_id, source, external_id)
VALUES
  (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id         = LAST_INSERT_ID(id),
  title      = VALUES(title),
  type       = VALUES(type),
  capacity   = VALUES(capacity),
  hotel_id   = VALUES(hotel_id),
  updated_at = CURRENT_TIMESTAMP
`

const upsertOfferSQL = `
INSERT INTO offers
  (price, currency, check_in, check_out, room_id, source, external_id, last_seen_at, is_active)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id           = LAST_INSERT_ID(id),
  price        = VALUES(price),
  currency     = VALUES(currency),
  check_in     = VALUES(check_in),
  check_out    = VALUES(check_out),
  room_id      = VALUES(room_id),
  last_seen_at = VALUES(last_seen_at),
  is_active    = VALUES(is_active),
  updated_at   = CURRENT_TIMESTAMP
`

// %s is the table name; used when an upsert changed nothing and the
// surrogate ID has to be looked up by natural key.
const selectIDSQL = `SELECT id FROM %s WHERE source = ? AND external_id = ?`

// %s is the placeholder list for the seen external IDs.
const deactivateStaleOffersSQL = `
UPDATE offers
SET is_active = 0
WHERE source = ? AND external_id NOT IN (%s) AND is_active = 1
`

package mysql

// -----------------------------------------------------------------------------
// HOTELS / MAPPINGS
// -----------------------------------------------------------------------------

const insertHotelSQL = `
INSERT INTO hotels
  (name, normalized_name, city, lat, lon, stars, amenities, distance_to_haram_m, walking_time_min, updated_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const enrichHotelSQL = `
UPDATE hotels SET
  lat                 = COALESCE(?, lat),
  lon                 = COALESCE(?, lon),
  stars               = COALESCE(?, stars),
  amenities           = COALESCE(?, amenities),
  distance_to_haram_m = COALESCE(?, distance_to_haram_m),
  walking_time_min    = COALESCE(?, walking_time_min),
  updated_at          = ?
WHERE id = ?
`

const hotelColumns = `
  id, name, normalized_name, city, lat, lon, stars, amenities,
  distance_to_haram_m, walking_time_min, updated_at`

const getHotelSQL = `SELECT` + hotelColumns + `
FROM hotels WHERE id = ?`

const getHotelByNameSQL = `SELECT` + hotelColumns + `
FROM hotels WHERE city = ? AND normalized_name = ?`

const listHotelsByCitySQL = `SELECT` + hotelColumns + `
FROM hotels WHERE city = ? ORDER BY id`

const upsertMappingSQL = `
INSERT INTO provider_mappings
  (provider, provider_hotel_id, hotel_id, confidence, needs_review, disagreements, last_seen)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  hotel_id      = VALUES(hotel_id),
  confidence    = VALUES(confidence),
  needs_review  = VALUES(needs_review),
  disagreements = VALUES(disagreements),
  last_seen     = VALUES(last_seen)
`

const touchMappingSQL = `
UPDATE provider_mappings SET
  confidence    = ?,
  disagreements = ?,
  needs_review  = ?,
  last_seen     = CURRENT_TIMESTAMP
WHERE provider = ? AND provider_hotel_id = ?
`

const confirmMappingSQL = `
UPDATE provider_mappings SET
  confidence    = 100,
  needs_review  = 0,
  disagreements = 0
WHERE provider = ? AND provider_hotel_id = ?
`

const getMappingSQL = `
SELECT provider, provider_hotel_id, hotel_id, confidence, needs_review, disagreements, last_seen
FROM provider_mappings
WHERE provider = ? AND provider_hotel_id = ?
`

// -----------------------------------------------------------------------------
// OFFERS / PRICE HISTORY
// -----------------------------------------------------------------------------

const insertOfferSQL = `
INSERT INTO offers
  (hotel_id, provider, city, check_in, check_out, adults, children,
   room_type, board_type, currency, total, per_night, taxes, total_idr,
   rooms_left, status, fetched_at, raw, schema_version)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const offerColumns = `
  id, hotel_id, provider, city, check_in, check_out, adults, children,
  room_type, board_type, currency, total, per_night, taxes, total_idr,
  rooms_left, status, fetched_at, raw, schema_version`

const listOffersSQL = `SELECT` + offerColumns + `
FROM offers
WHERE hotel_id = ?
ORDER BY fetched_at DESC, id DESC
LIMIT ?`

const recentOffersSQL = `SELECT` + offerColumns + `
FROM offers
WHERE hotel_id = ? AND check_in = ?
ORDER BY fetched_at DESC, id DESC
LIMIT ?`

const calendarOffersSQL = `SELECT` + offerColumns + `
FROM offers
WHERE hotel_id = ? AND check_in >= ? AND check_in < ?
ORDER BY check_in, fetched_at DESC, id DESC`

const insertHistorySQL = `
INSERT INTO price_history
  (hotel_id, provider, check_in, price, status, recorded_at, change_percent)
VALUES
  (?, ?, ?, ?, ?, ?, ?)
`

const latestHistorySQL = `
SELECT id, hotel_id, provider, check_in, price, status, recorded_at, change_percent
FROM price_history
WHERE hotel_id = ? AND provider = ? AND check_in = ?
ORDER BY recorded_at DESC, id DESC
LIMIT 1
`

const listHistorySQL = `
SELECT id, hotel_id, provider, check_in, price, status, recorded_at, change_percent
FROM price_history
WHERE hotel_id = ? AND recorded_at >= ?
ORDER BY recorded_at
`

// -----------------------------------------------------------------------------
// CRAWL QUEUE
// -----------------------------------------------------------------------------

// Insert only when no live job carries the same fingerprint; RowsAffected
// tells the caller whether a row was created.
const enqueueJobSQL = `
INSERT INTO crawl_jobs (id, type, payload, fingerprint, status, run_at, attempts)
SELECT ?, ?, ?, ?, 'queued', ?, 0
FROM DUAL
WHERE NOT EXISTS (
  SELECT 1 FROM crawl_jobs
  WHERE fingerprint = ? AND status IN ('queued', 'running')
)
`

// SKIP LOCKED keeps concurrent crawler processes from claiming the same rows.
const claimJobsSQL = `
SELECT id, type, payload, fingerprint, status, run_at, attempts, last_error, created_at, updated_at
FROM crawl_jobs
WHERE status = 'queued' AND run_at <= CURRENT_TIMESTAMP
ORDER BY run_at
LIMIT ?
FOR UPDATE SKIP LOCKED
`

const markRunningSQL = `UPDATE crawl_jobs SET status = 'running' WHERE id = ?`

const markDoneSQL = `UPDATE crawl_jobs SET status = 'done' WHERE id = ?`

const rescheduleJobSQL = `
UPDATE crawl_jobs SET status = 'queued', run_at = ?, attempts = ?, last_error = ?
WHERE id = ?
`

const markFailedSQL = `UPDATE crawl_jobs SET status = 'failed', last_error = ? WHERE id = ?`

const requeueFailedSQL = `
UPDATE crawl_jobs SET status = 'queued', attempts = 0, run_at = CURRENT_TIMESTAMP
WHERE id = ? AND status = 'failed'
`

const getJobSQL = `
SELECT id, type, payload, fingerprint, status, run_at, attempts, last_error, created_at, updated_at
FROM crawl_jobs
WHERE id = ?
`

const getJobByFingerprintSQL = `
SELECT id, type, payload, fingerprint, status, run_at, attempts, last_error, created_at, updated_at
FROM crawl_jobs
WHERE fingerprint = ? AND status IN ('queued', 'running')
ORDER BY created_at DESC
LIMIT 1
`

const listJobsSQL = `
SELECT id, type, payload, fingerprint, status, run_at, attempts, last_error, created_at, updated_at
FROM crawl_jobs
WHERE (? = '' OR status = ?)
ORDER BY updated_at DESC
LIMIT ?
`

const insertCrawlLogSQL = `
INSERT INTO crawl_logs (job_id, provider, ok, http_code, latency_ms, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

const providerHealthSQL = `
SELECT
  provider,
  COUNT(*)                          AS calls,
  SUM(IF(ok = 0, 1, 0))             AS failures,
  AVG(latency_ms)                   AS avg_latency_ms,
  MAX(created_at)                   AS last_call
FROM crawl_logs
WHERE created_at >= ? AND provider <> ''
GROUP BY provider
ORDER BY provider
`

// -----------------------------------------------------------------------------
// TRANSPORT
// -----------------------------------------------------------------------------

const deleteTransportSQL = `DELETE FROM transport_schedule WHERE operator = ?`

const insertTransportSQL = `
INSERT INTO transport_schedule
  (operator, mode, from_city, to_city, depart, arrive, duration_min, price, class, available, fetched_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const listTransportSQL = `
SELECT id, operator, mode, from_city, to_city, depart, arrive, duration_min, price, class, available, fetched_at
FROM transport_schedule
WHERE from_city = ? AND to_city = ?
ORDER BY depart
`

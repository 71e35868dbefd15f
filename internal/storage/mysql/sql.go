package mysql

// is_expired is derived at read time: an explicit sweep flag OR a token
// past its expiry timestamp. Never stored as a separate truth.
const selectBookingSQL = `
SELECT b.id, b.token, b.trip_id, b.customer_name, b.customer_email,
       b.adults, b.children, b.total_price, b.currency,
       b.details_completed, b.payment_completed,
       (b.expired OR b.expires_at < NOW()) AS is_expired,
       b.expires_at
FROM bookings b
`

const getBookingByTokenSQL = selectBookingSQL + `WHERE b.token = ?`

const getBookingByIDSQL = selectBookingSQL + `WHERE b.id = ?`

const listBookingsSQL = selectBookingSQL + `ORDER BY b.id DESC LIMIT ?`

const insertBookingSQL = `
INSERT INTO bookings
  (token, trip_id, customer_name, customer_email, adults, children,
   total_price, currency, expires_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const markPaidSQL = `
UPDATE bookings
SET payment_completed = 1, updated_at = CURRENT_TIMESTAMP
WHERE token = ? AND payment_completed = 0 AND expired = 0 AND expires_at >= NOW()
`

const completeDetailsSQL = `
UPDATE bookings
SET details_completed = 1, updated_at = CURRENT_TIMESTAMP
WHERE token = ? AND details_completed = 0 AND payment_completed = 1
  AND expired = 0 AND expires_at >= NOW()
`

const insertPassengersPrefix = `
INSERT INTO passengers
  (booking_id, position, full_name, email, phone, nationality, birth_date,
   passport_number, passport_country, passport_expiry, social_handle,
   emergency_contact_name, emergency_contact_phone, dietary_notes,
   allergies, notes, is_adult)
VALUES `

const selectOverdueSQL = `
SELECT b.id, b.token, b.trip_id, b.customer_name, b.customer_email,
       b.adults, b.children, b.total_price, b.currency,
       b.details_completed, b.payment_completed,
       1 AS is_expired,
       b.expires_at
FROM bookings b
WHERE b.expired = 0 AND b.details_completed = 0 AND b.payment_completed = 0
  AND b.expires_at < ?
FOR UPDATE
`

const markExpiredSQL = `
UPDATE bookings
SET expired = 1, updated_at = CURRENT_TIMESTAMP
WHERE expired = 0 AND details_completed = 0 AND payment_completed = 0
  AND expires_at < ?
`

const getTripSQL = `
SELECT id, title, price, price_display, departure_date, duration
FROM trips
WHERE id = ?
`

const upsertTripSQL = `
INSERT INTO trips
  (id, title, price, price_display, departure_date, duration)
VALUES (?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  title          = VALUES(title),
  price          = VALUES(price),
  price_display  = VALUES(price_display),
  departure_date = VALUES(departure_date),
  duration       = VALUES(duration),
  updated_at     = CURRENT_TIMESTAMP
`

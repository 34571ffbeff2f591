package database

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"squash-venue-enrichment/internal/models"
	errs "squash-venue-enrichment/pkg/errors"
	"squash-venue-enrichment/pkg/geography"
	"squash-venue-enrichment/pkg/utils"
)

const venueColumns = `id, name, address1, address2, city, region, postcode, country,
	lat, lng, g_place_id, status, category_id,
	no_of_courts, no_of_glass_courts, no_of_non_glass_courts, no_of_outdoor_courts,
	no_of_singles_courts, no_of_doubles_courts, court_count_searched_at,
	website, facebook_url,
	deletion_reason, deletion_reason_details, deletion_flagged_by, deletion_flagged_at,
	created_at, updated_at, deleted_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVenue(s rowScanner) (*models.Venue, error) {
	var (
		v                                                   models.Venue
		address1, address2, city, region, postcode, country sql.NullString
		placeID, website, facebook                          sql.NullString
		delReason, delDetails, delBy                        sql.NullString
		lat, lng                                            sql.NullFloat64
		courts, glass, nonGlass, outdoor, singles, doubles  sql.NullInt64
		searchedAt, flaggedAt, deletedAt                    sql.NullTime
	)
	if err := s.Scan(
		&v.ID, &v.Name, &address1, &address2, &city, &region, &postcode, &country,
		&lat, &lng, &placeID, &v.Status, &v.CategoryID,
		&courts, &glass, &nonGlass, &outdoor, &singles, &doubles, &searchedAt,
		&website, &facebook,
		&delReason, &delDetails, &delBy, &flaggedAt,
		&v.CreatedAt, &v.UpdatedAt, &deletedAt,
	); err != nil {
		return nil, err
	}

	v.Address1 = address1.String
	v.Address2 = address2.String
	v.City = city.String
	v.Region = region.String
	v.Postcode = postcode.String
	v.Country = country.String
	v.GPlaceID = placeID.String
	v.Website = website.String
	v.FacebookURL = facebook.String
	v.DeletionReason = delReason.String
	v.DeletionReasonDetails = delDetails.String
	v.DeletionFlaggedBy = delBy.String

	v.Lat = nullFloat(lat)
	v.Lng = nullFloat(lng)
	v.NoOfCourts = nullInt(courts)
	v.GlassCourts = nullInt(glass)
	v.NonGlassCourts = nullInt(nonGlass)
	v.OutdoorCourts = nullInt(outdoor)
	v.SinglesCourts = nullInt(singles)
	v.DoublesCourts = nullInt(doubles)
	v.CourtCountSearchedAt = nullTime(searchedAt)
	v.DeletionFlaggedAt = nullTime(flaggedAt)
	v.DeletedAt = nullTime(deletedAt)
	return &v, nil
}

func nullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	i := int(n.Int64)
	return &i
}

func nullTime(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: strings.TrimSpace(s) != ""}
}

func intArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func floatArg(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func timeArg(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

func queryVenues(ctx context.Context, q func(context.Context, string, ...any) (*sql.Rows, error), op, query string, args ...any) ([]models.Venue, error) {
	rows, err := q(ctx, query, args...)
	if err != nil {
		return nil, errs.NewDB(op, "failed to query venues", err)
	}
	defer rows.Close()

	var venues []models.Venue
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, errs.NewDB(op, "failed to scan venue", err)
		}
		venues = append(venues, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB(op, "row iteration", err)
	}
	return venues, nil
}

// InsertVenueCtx stores a new venue and sets v.ID. Timestamps default to now.
func (db *DB) InsertVenueCtx(ctx context.Context, v *models.Venue) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	ts := now()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = ts
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = ts
	}
	if v.Status == "" {
		v.Status = models.StatusApproved
	}
	if v.CategoryID == 0 {
		v.CategoryID = models.CategoryDontKnow
	}

	query := `INSERT INTO venues (name, address1, address2, city, region, postcode, country,
		lat, lng, g_place_id, status, category_id,
		no_of_courts, no_of_glass_courts, no_of_non_glass_courts, no_of_outdoor_courts,
		no_of_singles_courts, no_of_doubles_courts, court_count_searched_at,
		website, facebook_url, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := db.conn.ExecContext(ctx, query,
		v.Name, nullString(v.Address1), nullString(v.Address2), nullString(v.City),
		nullString(v.Region), nullString(v.Postcode), nullString(v.Country),
		floatArg(v.Lat), floatArg(v.Lng), nullString(v.GPlaceID), v.Status, v.CategoryID,
		intArg(v.NoOfCourts), intArg(v.GlassCourts), intArg(v.NonGlassCourts), intArg(v.OutdoorCourts),
		intArg(v.SinglesCourts), intArg(v.DoublesCourts), timeArg(v.CourtCountSearchedAt),
		nullString(v.Website), nullString(v.FacebookURL),
		v.CreatedAt.UTC(), v.UpdatedAt.UTC(), timeArg(v.DeletedAt),
	)
	if err != nil {
		return errs.NewDB("InsertVenueCtx", "failed to insert venue", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return errs.NewDB("InsertVenueCtx", "failed to get last insert ID", err)
	}
	v.ID = id
	return nil
}

// GetVenueCtx loads one venue, soft-deleted rows included. Missing ids wrap
// errs.ErrNotFound.
func (db *DB) GetVenueCtx(ctx context.Context, venueID int64) (*models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	v, err := scanVenue(db.conn.QueryRowContext(ctx, `SELECT `+venueColumns+` FROM venues WHERE id = ?`, venueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewDB("GetVenueCtx", "venue not found", errs.ErrNotFound)
	}
	if err != nil {
		return nil, errs.NewDB("GetVenueCtx", "failed to load venue", err)
	}
	return v, nil
}

// ListVenuesForCategorizationCtx returns live gap-category venues that carry a
// Place ID. Venues without a court count come first, then the least recently
// updated, so repeated runs rotate through the backlog.
func (db *DB) ListVenuesForCategorizationCtx(ctx context.Context, limit int) ([]models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + venueColumns + ` FROM venues
		WHERE deleted_at IS NULL
		  AND status <> ?
		  AND category_id = ?
		  AND g_place_id IS NOT NULL AND g_place_id <> ''
		ORDER BY CASE WHEN no_of_courts IS NULL OR no_of_courts = 0 THEN 0 ELSE 1 END,
		         updated_at ASC, id ASC
		LIMIT ?`
	return queryVenues(ctx, db.conn.QueryContext, "ListVenuesForCategorizationCtx", query,
		models.StatusFlaggedForDeletion, models.CategoryDontKnow, limit)
}

// FindVenueByPlaceIDCtx returns the live venue other than excludeVenueID that
// owns placeID, or nil when the id is free.
func (db *DB) FindVenueByPlaceIDCtx(ctx context.Context, placeID string, excludeVenueID int64) (*models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT ` + venueColumns + ` FROM venues
		WHERE g_place_id = ? AND id <> ? AND deleted_at IS NULL
		LIMIT 1`
	v, err := scanVenue(db.conn.QueryRowContext(ctx, query, placeID, excludeVenueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.NewDB("FindVenueByPlaceIDCtx", "failed to query venue by place id", err)
	}
	return v, nil
}

// FindVenuesAtAddressCtx returns other approved, live venues whose full
// address normalizes to the same string as venue's.
func (db *DB) FindVenuesAtAddressCtx(ctx context.Context, venue models.Venue) ([]models.Venue, error) {
	if strings.TrimSpace(venue.Address1) == "" {
		return nil, nil
	}
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT ` + venueColumns + ` FROM venues
		WHERE id <> ? AND deleted_at IS NULL AND status = ?
		  AND LOWER(TRIM(address1)) = LOWER(TRIM(?))`
	candidates, err := queryVenues(ctx, db.conn.QueryContext, "FindVenuesAtAddressCtx", query,
		venue.ID, models.StatusApproved, venue.Address1)
	if err != nil {
		return nil, err
	}

	full := venue.FullAddress()
	out := candidates[:0]
	for _, c := range candidates {
		if utils.SameAddress(full, c.FullAddress()) {
			out = append(out, c)
		}
	}
	return out, nil
}

// FindVenuesNearCtx returns approved, live venues within radiusMeters of the
// point, nearest first.
func (db *DB) FindVenuesNearCtx(ctx context.Context, lat, lng, radiusMeters float64, excludeVenueID int64) ([]models.NearbyVenue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	center := maps.LatLng{Lat: lat, Lng: lng}
	box := geography.BoundingBox(center, radiusMeters)
	query := `SELECT ` + venueColumns + ` FROM venues
		WHERE id <> ? AND deleted_at IS NULL AND status = ?
		  AND lat IS NOT NULL AND lng IS NOT NULL
		  AND lat BETWEEN ? AND ? AND lng BETWEEN ? AND ?`
	candidates, err := queryVenues(ctx, db.conn.QueryContext, "FindVenuesNearCtx", query,
		excludeVenueID, models.StatusApproved, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, err
	}

	var out []models.NearbyVenue
	for _, c := range candidates {
		d := geography.Distance(center, maps.LatLng{Lat: *c.Lat, Lng: *c.Lng})
		if d <= radiusMeters {
			out = append(out, models.NearbyVenue{Venue: c, DistanceMeters: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DistanceMeters < out[j].DistanceMeters })
	return out, nil
}

func (db *DB) execVenueUpdate(ctx context.Context, op, query string, args ...any) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.NewDB(op, "failed to update venue", err)
	}
	return checkRowsAffected(res, op)
}

// UpdatePlaceIDCtx replaces the stored Place ID. A collision with another
// venue surfaces as a duplicate-key error (see IsDuplicateKey).
func (db *DB) UpdatePlaceIDCtx(ctx context.Context, venueID int64, placeID string) error {
	return db.execVenueUpdate(ctx, "UpdatePlaceIDCtx",
		`UPDATE venues SET g_place_id = ?, updated_at = ? WHERE id = ?`, placeID, now(), venueID)
}

// UpdateNameCtx renames a venue.
func (db *DB) UpdateNameCtx(ctx context.Context, venueID int64, name string) error {
	return db.execVenueUpdate(ctx, "UpdateNameCtx",
		`UPDATE venues SET name = ?, updated_at = ? WHERE id = ?`, name, now(), venueID)
}

// TouchVenueCtx bumps updated_at so the venue rotates to the back of the queue.
func (db *DB) TouchVenueCtx(ctx context.Context, venueID int64) error {
	return db.execVenueUpdate(ctx, "TouchVenueCtx",
		`UPDATE venues SET updated_at = ? WHERE id = ?`, now(), venueID)
}

// MarkCourtCountSearchedCtx records that a court-count search ran, whatever it found.
func (db *DB) MarkCourtCountSearchedCtx(ctx context.Context, venueID int64) error {
	ts := now()
	return db.execVenueUpdate(ctx, "MarkCourtCountSearchedCtx",
		`UPDATE venues SET court_count_searched_at = ?, updated_at = ? WHERE id = ?`, ts, ts, venueID)
}

// FlagVenueForDeletionCtx moves a venue to the flagged_for_deletion state.
func (db *DB) FlagVenueForDeletionCtx(ctx context.Context, venueID int64, reason, details, flaggedBy string) error {
	ts := now()
	return db.execVenueUpdate(ctx, "FlagVenueForDeletionCtx",
		`UPDATE venues SET status = ?, deletion_reason = ?, deletion_reason_details = ?,
			deletion_flagged_by = ?, deletion_flagged_at = ?, updated_at = ?
		WHERE id = ?`,
		models.StatusFlaggedForDeletion, reason, nullString(details), flaggedBy, ts, ts, venueID)
}

// GetVenueForUpdateTx loads a venue inside tx. On MySQL the row is locked
// until the transaction ends; SQLite serializes writers already.
func (db *DB) GetVenueForUpdateTx(ctx context.Context, tx *sql.Tx, venueID int64) (*models.Venue, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT ` + venueColumns + ` FROM venues WHERE id = ?`
	if db.dialect == MySQL {
		query += ` FOR UPDATE`
	}
	v, err := scanVenue(tx.QueryRowContext(ctx, query, venueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewDB("GetVenueForUpdateTx", "venue not found", errs.ErrNotFound)
	}
	if err != nil {
		return nil, errs.NewDB("GetVenueForUpdateTx", "failed to load venue", err)
	}
	return v, nil
}

func (db *DB) execVenueUpdateTx(ctx context.Context, tx *sql.Tx, op, query string, args ...any) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.NewDB(op, "failed to update venue", err)
	}
	return checkRowsAffected(res, op)
}

// SetVenueCategoryTx writes the category inside tx.
func (db *DB) SetVenueCategoryTx(ctx context.Context, tx *sql.Tx, venueID int64, categoryID int) error {
	return db.execVenueUpdateTx(ctx, tx, "SetVenueCategoryTx",
		`UPDATE venues SET category_id = ?, updated_at = ? WHERE id = ?`, categoryID, now(), venueID)
}

// SetVenueCourtCountTx writes no_of_courts inside tx and marks the venue
// searched.
func (db *DB) SetVenueCourtCountTx(ctx context.Context, tx *sql.Tx, venueID int64, courts int) error {
	ts := now()
	return db.execVenueUpdateTx(ctx, tx, "SetVenueCourtCountTx",
		`UPDATE venues SET no_of_courts = ?, court_count_searched_at = ?, updated_at = ? WHERE id = ?`, courts, ts, ts, venueID)
}

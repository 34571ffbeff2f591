package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"squash-venue-enrichment/internal/models"
	"squash-venue-enrichment/pkg/database"
)

// NewDB opens a migrated SQLite database in the test's temp dir. It is closed
// when the test ends.
func NewDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open("sqlite", filepath.Join(t.TempDir(), "venues.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

// InsertVenue stores v and returns it with its id set.
func InsertVenue(t *testing.T, db *database.DB, v models.Venue) models.Venue {
	t.Helper()
	require.NoError(t, db.InsertVenueCtx(context.Background(), &v))
	return v
}

// MustGetVenue reloads a venue.
func MustGetVenue(t *testing.T, db *database.DB, id int64) models.Venue {
	t.Helper()
	v, err := db.GetVenueCtx(context.Background(), id)
	require.NoError(t, err)
	return *v
}

// FailAuditInserts installs a trigger that aborts every audit insert, to
// exercise rollback paths.
func FailAuditInserts(t *testing.T, db *database.DB) {
	t.Helper()
	_, err := db.Conn().Exec(`CREATE TRIGGER fail_audit BEFORE INSERT ON venue_audit_logs
		BEGIN SELECT RAISE(ABORT, 'audit insert rejected'); END`)
	require.NoError(t, err)
}

// FailVenueColumnUpdates installs a trigger that aborts any update of column
// on venues. Audit rows are written before the venue row, so this fails a
// transaction after its audit insert succeeded.
func FailVenueColumnUpdates(t *testing.T, db *database.DB, column string) {
	t.Helper()
	_, err := db.Conn().Exec(`CREATE TRIGGER fail_venue_` + column + ` BEFORE UPDATE OF ` + column + ` ON venues
		BEGIN SELECT RAISE(ABORT, '` + column + ` update rejected'); END`)
	require.NoError(t, err)
}

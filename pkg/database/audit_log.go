package database

import (
	"context"
	"database/sql"

	"squash-venue-enrichment/internal/domain"
	errs "squash-venue-enrichment/pkg/errors"
)

// CreateAuditLogTx inserts an audit entry inside tx and sets entry.ID.
func (db *DB) CreateAuditLogTx(ctx context.Context, tx *sql.Tx, entry *domain.VenueAuditLog) error {
	ctx, cancel := db.withWriteTimeout(ctx)
	defer cancel()

	query := `INSERT INTO venue_audit_logs
	          (venue_id, field, old_value, new_value, confidence, reasoning, source, changed_by, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := tx.ExecContext(ctx, query,
		entry.VenueID,
		entry.Field,
		entry.OldValue,
		entry.NewValue,
		entry.Confidence,
		entry.Reasoning,
		entry.Source,
		entry.ChangedBy,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return errs.NewDB("CreateAuditLogTx", "failed to insert audit log", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errs.NewDB("CreateAuditLogTx", "failed to get last insert ID", err)
	}
	entry.ID = id
	return nil
}

// ListAuditLogsCtx returns a venue's audit trail, newest first.
func (db *DB) ListAuditLogsCtx(ctx context.Context, venueID int64) ([]domain.VenueAuditLog, error) {
	ctx, cancel := db.withReadTimeout(ctx)
	defer cancel()

	query := `SELECT id, venue_id, field, old_value, new_value, confidence, reasoning, source, changed_by, created_at
	          FROM venue_audit_logs
	          WHERE venue_id = ?
	          ORDER BY created_at DESC, id DESC`

	rows, err := db.conn.QueryContext(ctx, query, venueID)
	if err != nil {
		return nil, errs.NewDB("ListAuditLogsCtx", "failed to query audit logs", err)
	}
	defer rows.Close()

	var logs []domain.VenueAuditLog
	for rows.Next() {
		var (
			log       domain.VenueAuditLog
			old, nv   sql.NullString
			reasoning sql.NullString
		)
		if err := rows.Scan(
			&log.ID,
			&log.VenueID,
			&log.Field,
			&old,
			&nv,
			&log.Confidence,
			&reasoning,
			&log.Source,
			&log.ChangedBy,
			&log.CreatedAt,
		); err != nil {
			return nil, errs.NewDB("ListAuditLogsCtx", "failed to scan audit log", err)
		}
		if old.Valid {
			s := old.String
			log.OldValue = &s
		}
		if nv.Valid {
			s := nv.String
			log.NewValue = &s
		}
		log.Reasoning = reasoning.String
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.NewDB("ListAuditLogsCtx", "row iteration", err)
	}
	return logs, nil
}

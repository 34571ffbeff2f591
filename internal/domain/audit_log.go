package domain

import (
	"strconv"
	"time"

	"squash-venue-enrichment/internal/models"
)

// Audited venue fields.
const (
	AuditFieldCategory   = "category_id"
	AuditFieldCourtCount = "no_of_courts"
)

// AuditMeta carries the why/who of a mutation into its audit row.
type AuditMeta struct {
	Confidence models.Confidence
	Reasoning  string
	Source     models.Source
	ChangedBy  string
}

// VenueAuditLog is an append-only record of one field change.
// Rows are never updated or deleted.
type VenueAuditLog struct {
	ID         int64     `json:"id"`
	VenueID    int64     `json:"venue_id"`
	Field      string    `json:"field"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	Confidence string    `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
	Source     string    `json:"source"`
	ChangedBy  string    `json:"changed_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewAuditLog creates an audit entry for an integer field transition.
// A nil old value records that the field was previously unset.
func NewAuditLog(venueID int64, field string, oldValue *int, newValue int, meta AuditMeta) *VenueAuditLog {
	var old *string
	if oldValue != nil {
		s := strconv.Itoa(*oldValue)
		old = &s
	}
	nv := strconv.Itoa(newValue)
	return &VenueAuditLog{
		VenueID:    venueID,
		Field:      field,
		OldValue:   old,
		NewValue:   &nv,
		Confidence: string(meta.Confidence),
		Reasoning:  meta.Reasoning,
		Source:     string(meta.Source),
		ChangedBy:  meta.ChangedBy,
		CreatedAt:  time.Now().UTC(),
	}
}

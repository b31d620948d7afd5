// Package model defines the core domain models used throughout the application.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Record is implemented by every entity that belongs to exactly one user and
// is addressed by a caller-supplied id.
type Record interface {
	RecordID() string
	OwnerID() string
}

// Timestamps holds the creation and modification times shared by all records.
type Timestamps struct {
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Touch sets UpdatedAt to now, and CreatedAt too when it has never been set.
func (ts *Timestamps) Touch(now time.Time) {
	if ts.CreatedAt.IsZero() {
		ts.CreatedAt = now
	}
	ts.UpdatedAt = now
}

// NewID returns a fresh random record id.
func NewID() string {
	return uuid.NewString()
}

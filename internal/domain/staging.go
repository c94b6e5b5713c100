package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// Side names one of the two staging tables.
type Side string

const (
	SideList Side = "list"
	SideCRM  Side = "crm"
)

// StagingRecord is one normalized snapshot of a person on one side of the
// sync. ContactID is only meaningful on the CRM side; MatchedContactID only
// on the list side.
type StagingRecord struct {
	Email     string    `json:"email" db:"email"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Interests Interests `json:"interests" db:"interests"`
	Hash      string    `json:"hash" db:"hash"`

	// ContactID is the CRM contact the row was collected from.
	ContactID int64 `json:"contact_id,omitempty" db:"contact_id"`

	// MatchedContactID is nil while unresolved (or quarantined), 0 when the
	// subscriber should become a new contact, otherwise the CRM contact id.
	MatchedContactID *int64 `json:"matched_contact_id,omitempty" db:"matched_contact_id"`
}

// NewStagingRecord builds a record and computes its content hash. Use it
// (or Rehash) whenever names or interests change.
func NewStagingRecord(email, firstName, lastName string, interests Interests) StagingRecord {
	r := StagingRecord{
		Email:     strings.TrimSpace(email),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Interests: interests,
	}
	r.Rehash()
	return r
}

// Rehash recomputes Hash from the current names and interests.
func (r *StagingRecord) Rehash() {
	r.Hash = ContentHash(r.FirstName, r.LastName, r.Interests)
}

// ContentHash digests the fields that are compared between the two sides.
// Email is deliberately excluded: both sides may hold a different but
// valid address for the same person.
func ContentHash(firstName, lastName string, interests Interests) string {
	h := md5.New()
	h.Write([]byte(firstName))
	h.Write([]byte{0})
	h.Write([]byte(lastName))
	h.Write([]byte{0})
	h.Write([]byte(interests.Canonical()))
	return hex.EncodeToString(h.Sum(nil))
}

// EmailKey is the comparison form of an email address.
func EmailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsMatched reports whether the row has a resolved identity (new or existing).
func (r StagingRecord) IsMatched() bool { return r.MatchedContactID != nil }

// Matched returns the resolved contact id; ok is false while unresolved.
func (r StagingRecord) Matched() (id int64, ok bool) {
	if r.MatchedContactID == nil {
		return 0, false
	}
	return *r.MatchedContactID, true
}

// ContactIDPtr is a small helper for setting MatchedContactID.
func ContactIDPtr(id int64) *int64 { return &id }

// SplitFullName splits a combined name into first and last name: the last
// word becomes the last name and everything before it the first name. A
// single word is treated as a first name.
func SplitFullName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}

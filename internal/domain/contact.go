package domain

// Contact is the CRM view of a person as the sync needs it.
type Contact struct {
	ID        int64  `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`

	// InGroup is set by lookups that were asked about a specific group
	// (e.g. candidate resolution against the membership group).
	InGroup bool `json:"in_group,omitempty" db:"-"`
}

// ContactUpdate is a partial create-or-update. A zero ID creates a new
// contact; nil fields are left untouched.
type ContactUpdate struct {
	ID        int64
	Email     *string
	FirstName *string
	LastName  *string
}

// IsEmpty reports whether the update would change nothing on an existing
// contact.
func (u ContactUpdate) IsEmpty() bool {
	return u.ID != 0 && u.Email == nil && u.FirstName == nil && u.LastName == nil
}

// NameKey identifies a contact by email and exact names (matcher tier 3).
type NameKey struct {
	Email     string
	FirstName string
	LastName  string
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

package listsync

import (
	"context"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
)

// CRM is the narrow contract the sync needs from the CRM. Email lookups
// are case-insensitive and map keys use domain.EmailKey.
type CRM interface {
	// RefreshGroupCache rebuilds cached membership of smart groups.
	RefreshGroupCache(ctx context.Context, groupIDs []int64) error

	// ContactsInGroup returns every mailable contact in the group, one per
	// contact, carrying its preferred usable email.
	ContactsInGroup(ctx context.Context, groupID int64) ([]domain.Contact, error)

	// GroupMembers reports which of contactIDs are members of the group.
	GroupMembers(ctx context.Context, groupID int64, contactIDs []int64) (map[int64]bool, error)

	// UniqueContactsByEmail returns, for each email held by exactly one
	// non-deleted contact, that contact's id.
	UniqueContactsByEmail(ctx context.Context, emails []string) (map[string]int64, error)

	// UniqueContactsByEmailName is like UniqueContactsByEmail but keyed by
	// email plus exact first and last name. Returned keys carry EmailKey.
	UniqueContactsByEmailName(ctx context.Context, keys []domain.NameKey) (map[domain.NameKey]int64, error)

	// ContactsByEmail returns every non-deleted contact holding email, with
	// InGroup set for members of groupID.
	ContactsByEmail(ctx context.Context, email string, groupID int64) ([]domain.Contact, error)

	// GetContacts loads contacts by id.
	GetContacts(ctx context.Context, ids []int64) (map[int64]domain.Contact, error)

	// AddToGroup and RemoveFromGroup change membership for many contacts at
	// once. Already-applied changes are ignored.
	AddToGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error
	RemoveFromGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error

	// SaveContact creates a contact (zero ID) or updates the non-nil fields
	// of an existing one, returning its id.
	SaveContact(ctx context.Context, u domain.ContactUpdate) (int64, error)
}

// StagingStore holds the two staging tables of each list. Rows are unique
// per side by (email, hash); duplicate inserts are ignored.
type StagingStore interface {
	// Reset creates the side's table for the list, or empties it.
	Reset(ctx context.Context, listID string, side domain.Side) error

	// Insert adds rows to one side and returns how many were new.
	Insert(ctx context.Context, listID string, side domain.Side, rows []domain.StagingRecord) (int, error)

	// MatchByEmail sets the matched contact of unmatched list rows whose
	// email equals a CRM row's email, preferring the lowest contact id.
	MatchByEmail(ctx context.Context, listID string) (int, error)

	// Unmatched returns list rows with no matched contact.
	Unmatched(ctx context.Context, listID string) ([]domain.StagingRecord, error)

	// SetMatched records resolved identities for list rows.
	SetMatched(ctx context.Context, listID string, matches []Match) error

	// DeleteDoubles removes CRM rows whose email belongs to a list row
	// matched to a different contact.
	DeleteDoubles(ctx context.Context, listID string) (int, error)

	// DeleteInSync removes every list/CRM pair with the same contact and
	// the same hash, returning the number of pairs removed.
	DeleteInSync(ctx context.Context, listID string) (int, error)

	// Rows returns all rows of one side ordered by email.
	Rows(ctx context.Context, listID string, side domain.Side) ([]domain.StagingRecord, error)

	// Drop removes both tables of the list.
	Drop(ctx context.Context, listID string) error
}

// Match assigns a contact to the list row identified by Email and Hash.
type Match struct {
	Email     string
	Hash      string
	ContactID int64
}

// QuarantineLog is the operator-visible record of unresolvable rows.
type QuarantineLog interface {
	Clear(ctx context.Context, groupID int64) error
	Record(ctx context.Context, e domain.QuarantineEntry) error
	List(ctx context.Context, groupID int64) ([]domain.QuarantineEntry, error)
}

// ListAPI is the part of the remote client the engine drives.
type ListAPI interface {
	EachSubscribedMember(ctx context.Context, listID string, pageSize int, fn func(mailchimp.Member) error) error
	RunOperations(ctx context.Context, ops []mailchimp.Operation) (mailchimp.BatchResult, error)
}

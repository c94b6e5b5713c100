package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

// ErrContactNotFound is returned when an update names a missing or deleted
// contact.
var ErrContactNotFound = errors.New("contact not found")

// CRMRepo implements listsync.CRM against the crm_* reference schema.
// Group membership is read through crm_group_members, which unions static
// memberships with the materialized smart group view.
type CRMRepo struct{ db *sql.DB }

// NewCRMRepo creates a Postgres-backed CRM repository.
func NewCRMRepo(db *sql.DB) *CRMRepo { return &CRMRepo{db: db} }

var _ listsync.CRM = (*CRMRepo)(nil)

// preferredEmail picks a contact's bulk address, else primary, else any,
// skipping addresses on hold.
const preferredEmail = `
	SELECT address FROM crm_contact_emails
	WHERE contact_id = c.id AND NOT on_hold AND address <> ''
	ORDER BY is_bulk DESC, is_primary DESC, id
	LIMIT 1`

func (r *CRMRepo) RefreshGroupCache(ctx context.Context, groupIDs []int64) error {
	var smart int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM crm_groups WHERE id = ANY($1) AND is_smart`,
		pq.Array(groupIDs),
	).Scan(&smart); err != nil {
		return fmt.Errorf("count smart groups: %w", err)
	}
	if smart == 0 {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, `REFRESH MATERIALIZED VIEW crm_smart_group_contacts`); err != nil {
		return fmt.Errorf("refresh smart groups: %w", err)
	}
	return nil
}

func (r *CRMRepo) ContactsInGroup(ctx context.Context, groupID int64) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, e.address, c.first_name, c.last_name
		FROM crm_group_members g
		JOIN crm_contacts c ON c.id = g.contact_id
		JOIN LATERAL (`+preferredEmail+`) e ON true
		WHERE g.group_id = $1
		  AND NOT c.deleted AND NOT c.opt_out AND NOT c.do_not_email AND NOT c.deceased
		ORDER BY c.id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group contacts: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName); err != nil {
			return nil, fmt.Errorf("scan group contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CRMRepo) GroupMembers(ctx context.Context, groupID int64, contactIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool)
	if len(contactIDs) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT contact_id FROM crm_group_members WHERE group_id = $1 AND contact_id = ANY($2)`,
		groupID, pq.Array(contactIDs),
	)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		out[id] = true
	}
	return out, rows.Err()
}

func (r *CRMRepo) UniqueContactsByEmail(ctx context.Context, emails []string) (map[string]int64, error) {
	out := make(map[string]int64)
	if len(emails) == 0 {
		return out, nil
	}
	keys := make([]string, len(emails))
	for i, e := range emails {
		keys[i] = domain.EmailKey(e)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT lower(e.address), min(c.id)
		FROM crm_contact_emails e
		JOIN crm_contacts c ON c.id = e.contact_id
		WHERE NOT c.deleted AND lower(e.address) = ANY($1)
		GROUP BY lower(e.address)
		HAVING COUNT(DISTINCT c.id) = 1
	`, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("query unique emails: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var email string
		var id int64
		if err := rows.Scan(&email, &id); err != nil {
			return nil, fmt.Errorf("scan unique email: %w", err)
		}
		out[email] = id
	}
	return out, rows.Err()
}

func (r *CRMRepo) UniqueContactsByEmailName(ctx context.Context, keys []domain.NameKey) (map[domain.NameKey]int64, error) {
	out := make(map[domain.NameKey]int64)
	if len(keys) == 0 {
		return out, nil
	}
	emails := make([]string, len(keys))
	firsts := make([]string, len(keys))
	lasts := make([]string, len(keys))
	for i, k := range keys {
		emails[i], firsts[i], lasts[i] = domain.EmailKey(k.Email), k.FirstName, k.LastName
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT k.email, k.first_name, k.last_name, min(c.id)
		FROM unnest($1::text[], $2::text[], $3::text[]) AS k(email, first_name, last_name)
		JOIN crm_contact_emails e ON lower(e.address) = k.email
		JOIN crm_contacts c ON c.id = e.contact_id
		  AND c.first_name = k.first_name AND c.last_name = k.last_name
		WHERE NOT c.deleted
		GROUP BY k.email, k.first_name, k.last_name
		HAVING COUNT(DISTINCT c.id) = 1
	`, pq.Array(emails), pq.Array(firsts), pq.Array(lasts))
	if err != nil {
		return nil, fmt.Errorf("query unique names: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k domain.NameKey
		var id int64
		if err := rows.Scan(&k.Email, &k.FirstName, &k.LastName, &id); err != nil {
			return nil, fmt.Errorf("scan unique name: %w", err)
		}
		out[k] = id
	}
	return out, rows.Err()
}

func (r *CRMRepo) ContactsByEmail(ctx context.Context, email string, groupID int64) ([]domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (c.id) c.id, e.address, c.first_name, c.last_name,
		       EXISTS (SELECT 1 FROM crm_group_members g WHERE g.group_id = $2 AND g.contact_id = c.id)
		FROM crm_contact_emails e
		JOIN crm_contacts c ON c.id = e.contact_id
		WHERE NOT c.deleted AND lower(e.address) = $1
		ORDER BY c.id, e.id
	`, domain.EmailKey(email), groupID)
	if err != nil {
		return nil, fmt.Errorf("query contacts by email: %w", err)
	}
	defer rows.Close()

	var out []domain.Contact
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName, &c.InGroup); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CRMRepo) GetContacts(ctx context.Context, ids []int64) (map[int64]domain.Contact, error) {
	out := make(map[int64]domain.Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, COALESCE(e.address, ''), c.first_name, c.last_name
		FROM crm_contacts c
		LEFT JOIN LATERAL (
			SELECT address FROM crm_contact_emails
			WHERE contact_id = c.id
			ORDER BY on_hold, is_bulk DESC, is_primary DESC, id
			LIMIT 1
		) e ON true
		WHERE c.id = ANY($1) AND NOT c.deleted
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query contacts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c domain.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.FirstName, &c.LastName); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// AddToGroup inserts memberships and writes one audit row per membership
// that actually changed.
func (r *CRMRepo) AddToGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	if len(contactIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		WITH ins AS (
			INSERT INTO crm_group_contacts (group_id, contact_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT DO NOTHING
			RETURNING contact_id
		)
		INSERT INTO crm_group_changes (group_id, contact_id, added, origin, actor, reason)
		SELECT $1, contact_id, true, $3, $4, $5 FROM ins
	`, groupID, pq.Array(contactIDs), string(change.Origin), change.Actor, change.Reason)
	if err != nil {
		return fmt.Errorf("add to group %d: %w", groupID, err)
	}
	return nil
}

func (r *CRMRepo) RemoveFromGroup(ctx context.Context, groupID int64, contactIDs []int64, change domain.GroupChange) error {
	if len(contactIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		WITH del AS (
			DELETE FROM crm_group_contacts
			WHERE group_id = $1 AND contact_id = ANY($2)
			RETURNING contact_id
		)
		INSERT INTO crm_group_changes (group_id, contact_id, added, origin, actor, reason)
		SELECT $1, contact_id, false, $3, $4, $5 FROM del
	`, groupID, pq.Array(contactIDs), string(change.Origin), change.Actor, change.Reason)
	if err != nil {
		return fmt.Errorf("remove from group %d: %w", groupID, err)
	}
	return nil
}

// SaveContact creates or partially updates a contact. A new email address
// becomes the contact's primary address.
func (r *CRMRepo) SaveContact(ctx context.Context, u domain.ContactUpdate) (int64, error) {
	if u.ID == 0 && (u.Email == nil || *u.Email == "") {
		return 0, fmt.Errorf("save contact: new contact needs an email")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin save contact: %w", err)
	}
	defer tx.Rollback()

	id := u.ID
	if id == 0 {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO crm_contacts (first_name, last_name, created_at, updated_at)
			VALUES (COALESCE($1, ''), COALESCE($2, ''), NOW(), NOW())
			RETURNING id
		`, nullString(u.FirstName), nullString(u.LastName)).Scan(&id); err != nil {
			return 0, fmt.Errorf("insert contact: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE crm_contacts
			SET first_name = COALESCE($2, first_name),
			    last_name = COALESCE($3, last_name),
			    updated_at = NOW()
			WHERE id = $1 AND NOT deleted
		`, id, nullString(u.FirstName), nullString(u.LastName))
		if err != nil {
			return 0, fmt.Errorf("update contact %d: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return 0, fmt.Errorf("update contact %d: %w", id, ErrContactNotFound)
		}
	}

	if u.Email != nil && *u.Email != "" {
		var held bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM crm_contact_emails WHERE contact_id = $1 AND lower(address) = $2)`,
			id, domain.EmailKey(*u.Email),
		).Scan(&held); err != nil {
			return 0, fmt.Errorf("check contact email: %w", err)
		}
		if !held {
			if _, err := tx.ExecContext(ctx,
				`UPDATE crm_contact_emails SET is_primary = false WHERE contact_id = $1`, id); err != nil {
				return 0, fmt.Errorf("demote primary email: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO crm_contact_emails (contact_id, address, is_primary) VALUES ($1, $2, true)`,
				id, *u.Email); err != nil {
				return 0, fmt.Errorf("insert contact email: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit save contact: %w", err)
	}
	return id, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

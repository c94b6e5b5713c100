package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"hash/crc32"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

// StagingRepo implements listsync.StagingStore with one pair of tables per
// list: listsync_m_<list> for the mailing list side and listsync_c_<list>
// for the CRM side, where <list> is the sanitized id plus a checksum of the
// raw id.
type StagingRepo struct{ db *sql.DB }

// NewStagingRepo creates a Postgres-backed staging store.
func NewStagingRepo(db *sql.DB) *StagingRepo { return &StagingRepo{db: db} }

var _ listsync.StagingStore = (*StagingRepo)(nil)

// TableName returns the quoted staging table name for one side of a list.
func TableName(listID string, side domain.Side) string {
	prefix := "listsync_m_"
	if side == domain.SideCRM {
		prefix = "listsync_c_"
	}
	name := sanitize(listID)
	if len(name) > maxListName {
		name = name[:maxListName]
	}
	return pq.QuoteIdentifier(fmt.Sprintf("%s%s_%08x", prefix, name, crc32.ChecksumIEEE([]byte(listID))))
}

// Keeps the full name under the 63 byte identifier limit.
const maxListName = 40

func sanitize(listID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(listID) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func (r *StagingRepo) Reset(ctx context.Context, listID string, side domain.Side) error {
	table := TableName(listID, side)
	var ddl string
	if side == domain.SideCRM {
		ddl = `CREATE TABLE IF NOT EXISTS %s (
			contact_id BIGINT NOT NULL,
			email TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			interests JSONB NOT NULL DEFAULT '{}',
			hash TEXT NOT NULL,
			UNIQUE (email, hash)
		)`
	} else {
		ddl = `CREATE TABLE IF NOT EXISTS %s (
			email TEXT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			interests JSONB NOT NULL DEFAULT '{}',
			hash TEXT NOT NULL,
			matched_contact_id BIGINT,
			UNIQUE (email, hash)
		)`
	}
	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(ddl, table)); err != nil {
		return fmt.Errorf("create staging table %s: %w", table, err)
	}
	if _, err := r.db.ExecContext(ctx, "TRUNCATE "+table); err != nil {
		return fmt.Errorf("truncate staging table %s: %w", table, err)
	}
	return nil
}

// Insert streams rows into a temp table with COPY and merges them, letting
// the unique (email, hash) constraint drop duplicates.
func (r *StagingRepo) Insert(ctx context.Context, listID string, side domain.Side, rows []domain.StagingRecord) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	table := TableName(listID, side)
	cols := []string{"email", "first_name", "last_name", "interests", "hash"}
	if side == domain.SideCRM {
		cols = append(cols, "contact_id")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin staging insert: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TEMP TABLE _listsync_load (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`, table)); err != nil {
		return 0, fmt.Errorf("create load table: %w", err)
	}

	stmt, err := tx.Prepare(pq.CopyIn("_listsync_load", cols...))
	if err != nil {
		return 0, fmt.Errorf("prepare copy: %w", err)
	}
	for _, row := range rows {
		interests, err := row.Interests.Value()
		if err != nil {
			stmt.Close()
			return 0, err
		}
		args := []interface{}{row.Email, row.FirstName, row.LastName, interests, row.Hash}
		if side == domain.SideCRM {
			args = append(args, row.ContactID)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("copy staging row: %w", err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return 0, fmt.Errorf("flush copy: %w", err)
	}
	stmt.Close()

	list := strings.Join(cols, ", ")
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT %s FROM _listsync_load
		ON CONFLICT (email, hash) DO NOTHING
	`, table, list, list))
	if err != nil {
		return 0, fmt.Errorf("merge staging rows: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit staging insert: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *StagingRepo) MatchByEmail(ctx context.Context, listID string) (int, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s m SET matched_contact_id = c.contact_id
		FROM (
			SELECT lower(email) AS email_key, min(contact_id) AS contact_id
			FROM %s GROUP BY lower(email)
		) c
		WHERE m.matched_contact_id IS NULL AND lower(m.email) = c.email_key
	`, TableName(listID, domain.SideList), TableName(listID, domain.SideCRM)))
	if err != nil {
		return 0, fmt.Errorf("match by email: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *StagingRepo) Unmatched(ctx context.Context, listID string) ([]domain.StagingRecord, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT email, first_name, last_name, interests, hash, matched_contact_id
		FROM %s WHERE matched_contact_id IS NULL
		ORDER BY email, hash
	`, TableName(listID, domain.SideList)))
	if err != nil {
		return nil, fmt.Errorf("query unmatched: %w", err)
	}
	defer rows.Close()
	return scanListRows(rows)
}

func (r *StagingRepo) SetMatched(ctx context.Context, listID string, matches []listsync.Match) error {
	if len(matches) == 0 {
		return nil
	}
	emails := make([]string, len(matches))
	hashes := make([]string, len(matches))
	ids := make([]int64, len(matches))
	for i, m := range matches {
		emails[i], hashes[i], ids[i] = m.Email, m.Hash, m.ContactID
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE %s m SET matched_contact_id = u.contact_id
		FROM unnest($1::text[], $2::text[], $3::bigint[]) AS u(email, hash, contact_id)
		WHERE m.email = u.email AND m.hash = u.hash
	`, TableName(listID, domain.SideList)), pq.Array(emails), pq.Array(hashes), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("set matched: %w", err)
	}
	return nil
}

func (r *StagingRepo) DeleteDoubles(ctx context.Context, listID string) (int, error) {
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM %s c USING %s m
		WHERE lower(c.email) = lower(m.email)
		  AND m.matched_contact_id IS NOT NULL
		  AND m.matched_contact_id <> c.contact_id
	`, TableName(listID, domain.SideCRM), TableName(listID, domain.SideList)))
	if err != nil {
		return 0, fmt.Errorf("delete doubles: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// DeleteInSync removes both halves of every pair in one statement so the
// pairs are computed from the same snapshot.
func (r *StagingRepo) DeleteInSync(ctx context.Context, listID string) (int, error) {
	m, c := TableName(listID, domain.SideList), TableName(listID, domain.SideCRM)
	var n int
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		WITH pairs AS (
			SELECT DISTINCT m.matched_contact_id AS contact_id, m.hash
			FROM %[1]s m JOIN %[2]s c
			  ON c.contact_id = m.matched_contact_id AND c.hash = m.hash
		), dm AS (
			DELETE FROM %[1]s m USING pairs p
			WHERE m.matched_contact_id = p.contact_id AND m.hash = p.hash
			RETURNING 1
		), dc AS (
			DELETE FROM %[2]s c USING pairs p
			WHERE c.contact_id = p.contact_id AND c.hash = p.hash
			RETURNING 1
		)
		SELECT count(*) FROM dm
	`, m, c)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("delete in-sync pairs: %w", err)
	}
	return n, nil
}

func (r *StagingRepo) Rows(ctx context.Context, listID string, side domain.Side) ([]domain.StagingRecord, error) {
	table := TableName(listID, side)
	if side == domain.SideCRM {
		rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
			SELECT email, first_name, last_name, interests, hash, contact_id
			FROM %s ORDER BY email, hash
		`, table))
		if err != nil {
			return nil, fmt.Errorf("query crm rows: %w", err)
		}
		defer rows.Close()

		var out []domain.StagingRecord
		for rows.Next() {
			var rec domain.StagingRecord
			if err := rows.Scan(&rec.Email, &rec.FirstName, &rec.LastName, &rec.Interests, &rec.Hash, &rec.ContactID); err != nil {
				return nil, fmt.Errorf("scan crm row: %w", err)
			}
			out = append(out, rec)
		}
		return out, rows.Err()
	}

	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT email, first_name, last_name, interests, hash, matched_contact_id
		FROM %s ORDER BY email, hash
	`, table))
	if err != nil {
		return nil, fmt.Errorf("query list rows: %w", err)
	}
	defer rows.Close()
	return scanListRows(rows)
}

func scanListRows(rows *sql.Rows) ([]domain.StagingRecord, error) {
	var out []domain.StagingRecord
	for rows.Next() {
		var rec domain.StagingRecord
		var matched sql.NullInt64
		if err := rows.Scan(&rec.Email, &rec.FirstName, &rec.LastName, &rec.Interests, &rec.Hash, &matched); err != nil {
			return nil, fmt.Errorf("scan list row: %w", err)
		}
		if matched.Valid {
			rec.MatchedContactID = domain.ContactIDPtr(matched.Int64)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *StagingRepo) Drop(ctx context.Context, listID string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s, %s`,
		TableName(listID, domain.SideList), TableName(listID, domain.SideCRM)))
	if err != nil {
		return fmt.Errorf("drop staging tables: %w", err)
	}
	return nil
}

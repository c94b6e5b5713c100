package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/service/listsync"
)

// QuarantineRepo implements listsync.QuarantineLog on listsync_quarantine.
type QuarantineRepo struct{ db *sql.DB }

// NewQuarantineRepo creates a Postgres-backed quarantine log.
func NewQuarantineRepo(db *sql.DB) *QuarantineRepo { return &QuarantineRepo{db: db} }

var _ listsync.QuarantineLog = (*QuarantineRepo)(nil)

func (r *QuarantineRepo) Clear(ctx context.Context, groupID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM listsync_quarantine WHERE group_id = $1`, groupID); err != nil {
		return fmt.Errorf("clear quarantine: %w", err)
	}
	return nil
}

func (r *QuarantineRepo) Record(ctx context.Context, e domain.QuarantineEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO listsync_quarantine (group_id, email, name, reason, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, e.GroupID, e.Email, e.Name, e.Reason)
	if err != nil {
		return fmt.Errorf("record quarantine: %w", err)
	}
	return nil
}

func (r *QuarantineRepo) List(ctx context.Context, groupID int64) ([]domain.QuarantineEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_id, email, name, reason, created_at
		FROM listsync_quarantine
		WHERE group_id = $1
		ORDER BY created_at, email
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list quarantine: %w", err)
	}
	defer rows.Close()

	var out []domain.QuarantineEntry
	for rows.Next() {
		var e domain.QuarantineEntry
		if err := rows.Scan(&e.GroupID, &e.Email, &e.Name, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan quarantine: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

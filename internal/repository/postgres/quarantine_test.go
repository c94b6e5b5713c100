package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
)

func TestQuarantineRepo(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewQuarantineRepo(db)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`DELETE FROM listsync_quarantine`).WithArgs(int64(100)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`INSERT INTO listsync_quarantine`).
		WithArgs(int64(100), "dup@x.com", "Pat Doe", "2 CRM contacts share this email").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`FROM listsync_quarantine`).WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"group_id", "email", "name", "reason", "created_at"}).
			AddRow(int64(100), "dup@x.com", "Pat Doe", "2 CRM contacts share this email", at))

	require.NoError(t, repo.Clear(ctx, 100))
	require.NoError(t, repo.Record(ctx, domain.QuarantineEntry{
		GroupID: 100, Email: "dup@x.com", Name: "Pat Doe", Reason: "2 CRM contacts share this email",
	}))
	got, err := repo.List(ctx, 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, at, got[0].CreatedAt)
}

package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
)

func TestCRMRepo_ContactsInGroup(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`FROM crm_group_members g`).
		WithArgs(int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "first_name", "last_name"}).
			AddRow(int64(1), "a@x.com", "Ann", "Lee").
			AddRow(int64(2), "b@x.com", "", ""))

	got, err := NewCRMRepo(db).ContactsInGroup(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, []domain.Contact{
		{ID: 1, Email: "a@x.com", FirstName: "Ann", LastName: "Lee"},
		{ID: 2, Email: "b@x.com"},
	}, got)
}

func TestCRMRepo_RefreshOnlyForSmartGroups(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewCRMRepo(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM crm_groups`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	require.NoError(t, repo.RefreshGroupCache(context.Background(), []int64{100}))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM crm_groups`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`REFRESH MATERIALIZED VIEW crm_smart_group_contacts`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, repo.RefreshGroupCache(context.Background(), []int64{100, 101}))
}

func TestCRMRepo_UniqueContactsByEmailLowercases(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`HAVING COUNT\(DISTINCT c.id\) = 1`).
		WithArgs(pq.Array([]string{"a@x.com", "b@x.com"})).
		WillReturnRows(sqlmock.NewRows([]string{"email", "id"}).AddRow("a@x.com", int64(9)))

	got, err := NewCRMRepo(db).UniqueContactsByEmail(context.Background(), []string{"A@X.com ", "b@x.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a@x.com": 9}, got)
}

func TestCRMRepo_UniqueContactsByEmailName(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`FROM unnest`).
		WithArgs(pq.Array([]string{"a@x.com"}), pq.Array([]string{"Ann"}), pq.Array([]string{"Lee"})).
		WillReturnRows(sqlmock.NewRows([]string{"email", "first_name", "last_name", "id"}).
			AddRow("a@x.com", "Ann", "Lee", int64(4)))

	got, err := NewCRMRepo(db).UniqueContactsByEmailName(context.Background(),
		[]domain.NameKey{{Email: "A@x.com", FirstName: "Ann", LastName: "Lee"}})
	require.NoError(t, err)
	assert.Equal(t, int64(4), got[domain.NameKey{Email: "a@x.com", FirstName: "Ann", LastName: "Lee"}])
}

func TestCRMRepo_ContactsByEmailMarksGroupMembers(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectQuery(`SELECT DISTINCT ON \(c.id\)`).
		WithArgs("a@x.com", int64(100)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "address", "first_name", "last_name", "in_group"}).
			AddRow(int64(1), "A@x.com", "Ann", "Lee", false).
			AddRow(int64(2), "a@x.com", "Ann", "Lee", true))

	got, err := NewCRMRepo(db).ContactsByEmail(context.Background(), "A@X.COM", 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.False(t, got[0].InGroup)
	assert.True(t, got[1].InGroup)
}

func TestCRMRepo_GroupMembersAndContactsSkipEmptyInput(t *testing.T) {
	db, _, done := newMock(t)
	defer done()
	repo := NewCRMRepo(db)

	m, err := repo.GroupMembers(context.Background(), 100, nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	cs, err := repo.GetContacts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, cs)

	require.NoError(t, repo.AddToGroup(context.Background(), 100, nil, domain.GroupChange{}))
}

func TestCRMRepo_GroupChangesAreAudited(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()
	repo := NewCRMRepo(db)
	change := domain.GroupChange{Origin: domain.OriginBatch, Actor: "listsync", Reason: "mailing list sync L1"}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO crm_group_contacts`)).
		WithArgs(int64(100), pq.Array([]int64{1, 2}), "batch", "listsync", "mailing list sync L1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM crm_group_contacts`)).
		WithArgs(int64(101), pq.Array([]int64{3}), "batch", "listsync", "mailing list sync L1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddToGroup(context.Background(), 100, []int64{1, 2}, change))
	require.NoError(t, repo.RemoveFromGroup(context.Background(), 101, []int64{3}, change))
}

func TestCRMRepo_SaveContactCreates(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO crm_contacts`).
		WithArgs("Jo", "Bloggs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(42), "jo@x.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec(`UPDATE crm_contact_emails SET is_primary = false`).
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`INSERT INTO crm_contact_emails`).
		WithArgs(int64(42), "Jo@x.com").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	id, err := NewCRMRepo(db).SaveContact(context.Background(), domain.ContactUpdate{
		Email:     domain.StringPtr("Jo@x.com"),
		FirstName: domain.StringPtr("Jo"),
		LastName:  domain.StringPtr("Bloggs"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestCRMRepo_SaveContactUpdatesOnlyGivenFields(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE crm_contacts`).
		WithArgs(int64(7), nil, "Smith").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := NewCRMRepo(db).SaveContact(context.Background(), domain.ContactUpdate{
		ID:       7,
		LastName: domain.StringPtr("Smith"),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
}

func TestCRMRepo_SaveContactMissing(t *testing.T) {
	db, mock, done := newMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE crm_contacts`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := NewCRMRepo(db).SaveContact(context.Background(), domain.ContactUpdate{ID: 7, FirstName: domain.StringPtr("X")})
	assert.True(t, errors.Is(err, ErrContactNotFound))

	_, err = NewCRMRepo(db).SaveContact(context.Background(), domain.ContactUpdate{})
	assert.Error(t, err)
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
)

func TestContact_UsableEmail(t *testing.T) {
	c := Contact{Emails: []Email{
		{Address: "any@x.com"},
		{Address: "primary@x.com", Primary: true},
		{Address: "bulk@x.com", Bulk: true, OnHold: true},
	}}
	assert.Equal(t, "primary@x.com", c.UsableEmail())

	c.Emails[2].OnHold = false
	assert.Equal(t, "bulk@x.com", c.UsableEmail())

	assert.Equal(t, "", Contact{Emails: []Email{{Address: "h@x.com", OnHold: true}}}.UsableEmail())
}

func TestCRM_UniqueLookups(t *testing.T) {
	m := NewCRM()
	ctx := context.Background()
	solo := m.AddContact("solo@x.com", "So", "Lo")
	m.AddContact("pair@x.com", "Ann", "Lee")
	bob := m.AddContact("PAIR@x.com", "Bob", "Lee")
	m.Put(Contact{Deleted: true, FirstName: "Ann", LastName: "Lee", Emails: []Email{{Address: "solo@x.com"}}})

	byEmail, err := m.UniqueContactsByEmail(ctx, []string{"solo@x.com", "pair@x.com", "none@x.com"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"solo@x.com": solo}, byEmail)

	key := domain.NameKey{Email: "Pair@x.com", FirstName: "Bob", LastName: "Lee"}
	byName, err := m.UniqueContactsByEmailName(ctx, []domain.NameKey{key})
	require.NoError(t, err)
	assert.Equal(t, bob, byName[domain.NameKey{Email: "pair@x.com", FirstName: "Bob", LastName: "Lee"}])

	m.Join(5, bob)
	cs, err := m.ContactsByEmail(ctx, "pair@x.com", 5)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	assert.False(t, cs[0].InGroup)
	assert.True(t, cs[1].InGroup)
	assert.Equal(t, "PAIR@x.com", cs[1].Email)
}

func TestCRM_GroupChangesAndSave(t *testing.T) {
	m := NewCRM()
	ctx := context.Background()
	change := domain.GroupChange{Origin: domain.OriginBatch, Actor: "test"}

	id, err := m.SaveContact(ctx, domain.ContactUpdate{Email: domain.StringPtr("n@x.com"), FirstName: domain.StringPtr("N")})
	require.NoError(t, err)
	require.NoError(t, m.AddToGroup(ctx, 1, []int64{id, id}, change))
	require.NoError(t, m.RemoveFromGroup(ctx, 2, []int64{id}, change))
	assert.Len(t, m.Events(), 1, "repeat and no-op changes are not recorded")

	_, err = m.SaveContact(ctx, domain.ContactUpdate{ID: id, LastName: domain.StringPtr("Body")})
	require.NoError(t, err)
	c, _ := m.Contact(id)
	assert.Equal(t, "N", c.FirstName)
	assert.Equal(t, "Body", c.LastName)

	_, err = m.SaveContact(ctx, domain.ContactUpdate{})
	assert.Error(t, err)
	assert.Error(t, m.AddToGroup(ctx, 1, []int64{999}, change))
}

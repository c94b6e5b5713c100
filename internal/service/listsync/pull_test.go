package listsync_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp/mailchimptest"
	"github.com/ignite/listsync/internal/service/listsync"
)

func TestPull_NewSubscriberBecomesContact(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	h.srv.PutMember(listID, mailchimptest.Member{
		Email:       "a@x.com",
		MergeFields: map[string]string{"NAME": "Jo Bloggs"},
	})

	h.collectAndMatch(t, domain.DirectionPull)
	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPull)
	require.NoError(t, err)

	res, err := h.svc.Pull(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, listsync.PullResult{Created: 1}, res)

	ids := h.crm.FindByEmail("a@x.com")
	require.Len(t, ids, 1)
	c, _ := h.crm.Contact(ids[0])
	assert.Equal(t, "Jo", c.FirstName)
	assert.Equal(t, "Bloggs", c.LastName)
	assert.True(t, h.crm.InGroup(membershipID, ids[0]))
}

func TestPull_RemovalOnly(t *testing.T) {
	h := newHarness(t, listsync.Options{Actor: "nightly"})
	ctx := context.Background()
	a := h.crm.AddContact("a@x.com", "Ann", "Lee")
	h.crm.Join(membershipID, a)

	h.collectAndMatch(t, domain.DirectionPull)
	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPull)
	require.NoError(t, err)

	res, err := h.svc.Pull(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 0, h.crm.Saves())

	events := h.crm.Events()
	require.Len(t, events, 1)
	assert.Equal(t, membershipID, events[0].GroupID)
	assert.Equal(t, a, events[0].ContactID)
	assert.False(t, events[0].Added)
	assert.Equal(t, domain.OriginBatch, events[0].Change.Origin)
	assert.Equal(t, "nightly", events[0].Change.Actor)
}

func TestPull_JoinsAndAppliesDeltas(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	// Known contact outside the group, subscribed with a fuller name and
	// both interests ticked.
	b := h.crm.AddContact("bob@x.com", "Bob", "")
	h.crm.Join(eventsGroupID, b)
	h.subscribe("bob@x.com", "Bob", "Stone", map[string]bool{newsInterest: true, eventsInterest: false})

	match := h.collectAndMatch(t, domain.DirectionPull)
	assert.Equal(t, 1, match.ByUniqueEmail)
	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPull)
	require.NoError(t, err)

	res, err := h.svc.Pull(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, listsync.PullResult{Joined: 1, Updated: 1}, res)

	c, _ := h.crm.Contact(b)
	assert.Equal(t, "Stone", c.LastName)
	assert.True(t, h.crm.InGroup(membershipID, b))
	assert.True(t, h.crm.InGroup(newsGroupID, b))
	assert.True(t, h.crm.InGroup(eventsGroupID, b), "list may not update the events group")
}

func TestPull_NameNoClobber(t *testing.T) {
	cur := domain.NewStagingRecord("a@x.com", "Ann", "Lee", domain.Interests{})

	upd := listsync.PullNameUpdate(7, cur, domain.NewStagingRecord("a@x.com", "", "Lee", domain.Interests{}))
	assert.True(t, upd.IsEmpty())

	upd = listsync.PullNameUpdate(7, cur, domain.NewStagingRecord("a@x.com", "Anna", "", domain.Interests{}))
	require.NotNil(t, upd.FirstName)
	assert.Equal(t, "Anna", *upd.FirstName)
	assert.Nil(t, upd.LastName)
	assert.Equal(t, int64(7), upd.ID)
}

func TestPull_AdditionsBeforeRemovals(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	stay := h.crm.AddContact("stay@x.com", "St", "Ay")
	leave := h.crm.AddContact("leave@x.com", "Le", "Ave")
	h.crm.Join(membershipID, stay, leave)
	h.crm.Join(newsGroupID, stay)
	h.subscribe("stay@x.com", "St", "Ay", map[string]bool{newsInterest: false})
	h.subscribe("new@x.com", "New", "Person", map[string]bool{newsInterest: true})

	h.collectAndMatch(t, domain.DirectionPull)
	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPull)
	require.NoError(t, err)

	res, err := h.svc.Pull(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Removed)
	assert.Equal(t, 1, res.InSync)
	assert.Equal(t, 1, res.Updated)

	seenRemoval := false
	for _, e := range h.crm.Events() {
		if !e.Added {
			seenRemoval = true
			continue
		}
		assert.False(t, seenRemoval, "addition after a removal")
	}
	assert.True(t, seenRemoval)
	assert.False(t, h.crm.InGroup(membershipID, leave))
	assert.False(t, h.crm.InGroup(newsGroupID, stay))
}

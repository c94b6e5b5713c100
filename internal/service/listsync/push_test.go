package listsync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/listsync/internal/domain"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/mailchimp/mailchimptest"
	"github.com/ignite/listsync/internal/repository/memory"
	"github.com/ignite/listsync/internal/service/listsync"
)

func TestPush_NewContactIsAdded(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	a := h.crm.AddContact("a@x.com", "Ann", "Lee")
	h.crm.Join(membershipID, a)
	h.crm.Join(newsGroupID, a)

	list, err := h.svc.CollectList(ctx, h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Rows)
	crm, err := h.svc.CollectCRM(ctx, h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 1, crm.Rows)

	match, err := h.svc.Match(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, match.Matched())

	_, err = h.svc.Reduce(ctx, h.cfg, domain.DirectionPush)
	require.NoError(t, err)

	res, err := h.svc.Push(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Additions)
	assert.Equal(t, 0, res.Updates)
	assert.Equal(t, 0, res.Unsubscribes)

	m, ok := h.srv.Member(listID, "a@x.com")
	require.True(t, ok)
	assert.Equal(t, "subscribed", m.Status)
	assert.Equal(t, "Ann", m.MergeFields["FNAME"])
	assert.True(t, m.Interests[newsInterest])
	assert.False(t, m.Interests[eventsInterest])
}

func TestPush_UpdatesAndUnsubscribes(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	b := h.crm.AddContact("bob@x.com", "Bob", "Stone")
	h.crm.Join(membershipID, b)
	h.subscribe("bob@x.com", "Robert", "Stone", nil)
	h.subscribe("gone@x.com", "Gone", "Away", nil)

	h.collectAndMatch(t, domain.DirectionPush)
	_, err := h.svc.Reduce(context.Background(), h.cfg, domain.DirectionPush)
	require.NoError(t, err)

	res, err := h.svc.Push(context.Background(), h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Additions)
	assert.Equal(t, 1, res.Updates)
	assert.Equal(t, 1, res.Unsubscribes)
	assert.Equal(t, mailchimp.ModeSerial, res.Batch.Mode)

	m, _ := h.srv.Member(listID, "bob@x.com")
	assert.Equal(t, "Bob", m.MergeFields["FNAME"])
	m, _ = h.srv.Member(listID, "gone@x.com")
	assert.Equal(t, "unsubscribed", m.Status)
}

func TestPush_EmailChangeUpdatesPartner(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	// The contact now mails from a new bulk address but still holds the
	// subscribed one, so the matcher finds it by the old address.
	id := h.crm.Put(memory.Contact{FirstName: "Cy", LastName: "Ng", Emails: []memory.Email{
		{Address: "cy@old.com", Primary: true},
		{Address: "cy@new.com", Bulk: true},
	}})
	h.crm.Join(membershipID, id)
	h.subscribe("cy@old.com", "Cy", "Ng", nil)

	match := h.collectAndMatch(t, domain.DirectionPush)
	assert.Equal(t, 1, match.ByUniqueEmail)
	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPush)
	require.NoError(t, err)

	res, err := h.svc.Push(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updates)
	assert.Equal(t, 0, res.Additions)
	assert.Equal(t, 0, res.Unsubscribes)

	_, ok := h.srv.Member(listID, "cy@new.com")
	assert.True(t, ok, "member moved to the new address")
	_, ok = h.srv.Member(listID, "cy@old.com")
	assert.False(t, ok)
}

func TestPushDelta_NameNoClobber(t *testing.T) {
	l := domain.NewStagingRecord("a@x.com", "X", "Smith", domain.Interests{})

	_, changed := listsync.PushDelta(domain.NewStagingRecord("a@x.com", "", "Smith", domain.Interests{}), l)
	assert.False(t, changed, "empty CRM first name must not clear the list value")

	body, changed := listsync.PushDelta(domain.NewStagingRecord("a@x.com", "Y", "Smith", domain.Interests{}), l)
	assert.True(t, changed)
	assert.Equal(t, "Y", body.MergeFields[mailchimp.MergeFirstName])
	_, hasLast := body.MergeFields[mailchimp.MergeLastName]
	assert.False(t, hasLast)
}

func TestPushDelta_EmailAndInterests(t *testing.T) {
	l := domain.NewStagingRecord("A@X.com", "Ann", "Lee", domain.NewInterests(map[string]bool{"i1": false}))

	_, changed := listsync.PushDelta(domain.NewStagingRecord("a@x.com", "Ann", "Lee", domain.Interests{}), l)
	assert.False(t, changed, "case-only email differences and empty CRM interests are not changes")

	body, changed := listsync.PushDelta(domain.NewStagingRecord("ann@y.com", "Ann", "Lee",
		domain.NewInterests(map[string]bool{"i1": true})), l)
	assert.True(t, changed)
	assert.Equal(t, "ann@y.com", body.EmailAddress)
	assert.Equal(t, map[string]bool{"i1": true}, body.Interests)
	assert.Nil(t, body.MergeFields)
}

func TestPush_QuarantinedRowsUntouched(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	ctx := context.Background()
	// Two contacts outside the group share the subscriber's email and
	// neither name fits.
	h.crm.AddContact("dup@x.com", "Sam", "Smith")
	h.crm.AddContact("dup@x.com", "Sue", "Jones")
	h.subscribe("dup@x.com", "Pat", "Brown", nil)

	match := h.collectAndMatch(t, domain.DirectionPush)
	assert.Equal(t, 1, match.Failures)

	_, err := h.svc.Reduce(ctx, h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	h.srv.ResetRequests()

	res, err := h.svc.Push(ctx, h.cfg)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Additions+res.Updates+res.Unsubscribes)
	assert.Empty(t, h.srv.Requests())
}

func TestPush_DryRunSendsNothing(t *testing.T) {
	h := newHarness(t, listsync.Options{DryRun: true})
	a := h.crm.AddContact("a@x.com", "Ann", "Lee")
	h.crm.Join(membershipID, a)
	h.subscribe("gone@x.com", "Gone", "Away", nil)

	stats, err := h.svc.Sync(context.Background(), h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	require.NotNil(t, stats.Push)
	assert.True(t, stats.Push.DryRun)
	assert.Equal(t, 1, stats.Push.Additions)
	assert.Equal(t, 1, stats.Push.Unsubscribes)

	assert.Equal(t, 0, h.srv.CountRequests(http.MethodPut, "/lists/"))
	assert.Equal(t, 0, h.srv.CountRequests(http.MethodPatch, "/lists/"))
	assert.Equal(t, 0, h.srv.CountRequests(http.MethodPost, "/batches"))
}

func TestPush_ChunksOperations(t *testing.T) {
	crm := memory.NewCRM()
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com", "d@x.com", "e@x.com"} {
		crm.Join(membershipID, crm.AddContact(email, "", ""))
	}
	api := &recordingAPI{}
	svc := listsync.NewService(crm, memory.NewStagingStore(), memory.NewQuarantineLog(), api,
		listsync.Options{MaxBatchSize: 2})
	cfg, err := listsync.ListConfig(listID, testMappings())
	require.NoError(t, err)

	stats, err := svc.Sync(context.Background(), cfg, domain.DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Push.Additions)
	require.Len(t, api.chunks, 3)
	assert.Len(t, api.chunks[0], 2)
	assert.Len(t, api.chunks[2], 1)
	assert.Equal(t, 5, stats.Push.Batch.Submitted)

	var body mailchimp.MemberUpsert
	require.NoError(t, json.Unmarshal([]byte(api.chunks[0][0].Body), &body))
	assert.Equal(t, mailchimp.StatusSubscribed, body.StatusIfNew)
	assert.Nil(t, body.MergeFields, "empty names are not sent")
}

func TestPush_UsesBatchAboveSerialThreshold(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	h.client = mailchimp.NewClient(mailchimp.Config{BaseURL: h.srv.URL, SerialThreshold: 2})
	h.client.SetHTTPClient(http.DefaultClient)
	h.svc = listsync.NewService(h.crm, h.store, h.quarantine, h.client, listsync.Options{})
	for _, email := range []string{"a@x.com", "b@x.com", "c@x.com"} {
		h.crm.Join(membershipID, h.crm.AddContact(email, "A", "B"))
	}

	stats, err := h.svc.Sync(context.Background(), h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, mailchimp.ModeBatch, stats.Push.Batch.Mode)
	assert.Equal(t, 1, h.srv.CountRequests(http.MethodPost, "/batches"))
	assert.Len(t, h.srv.Members(listID), 3)
}

func TestPush_UnsubscribedMemberIsResubscribedOnce(t *testing.T) {
	h := newHarness(t, listsync.Options{})
	a := h.crm.AddContact("a@x.com", "Ann", "Lee")
	h.crm.Join(membershipID, a)
	h.srv.PutMember(listID, mailchimptest.Member{
		Email:       "a@x.com",
		Status:      "unsubscribed",
		MergeFields: map[string]string{"FNAME": "Ann", "LNAME": "Lee"},
	})

	stats, err := h.svc.Sync(context.Background(), h.cfg, domain.DirectionPush)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Push.Additions)
	m, ok := h.srv.Member(listID, "a@x.com")
	require.True(t, ok)
	assert.Equal(t, "subscribed", m.Status)

	for i := 0; i < 2; i++ {
		stats, err = h.svc.Sync(context.Background(), h.cfg, domain.DirectionPush)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Push.Additions, "run %d", i+2)
		assert.Equal(t, 0, stats.Mutations(), "run %d", i+2)
	}
}
